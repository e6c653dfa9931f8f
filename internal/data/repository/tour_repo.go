package repository

import (
	"context"
	"errors"
	"fmt"

	"tour-booking/internal/data/entity"
	"tour-booking/pkg/database"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"
)

type TourFilter struct {
	Search        string
	Location      string
	Difficulty    string
	PublishedOnly bool
}

type TourRepository interface {
	Create(ctx context.Context, tour *entity.Tour) error
	FindByID(ctx context.Context, id uuid.UUID) (*entity.Tour, error)
	FindAll(ctx context.Context, filter TourFilter, limit, offset int) ([]*entity.Tour, error)
	Count(ctx context.Context, filter TourFilter) (int64, error)
	Update(ctx context.Context, tour *entity.Tour) error
	Delete(ctx context.Context, id uuid.UUID) error
}

type tourRepository struct {
	db  database.Querier
	log *zap.Logger
}

func NewTourRepository(db database.Querier, log *zap.Logger) TourRepository {
	return &tourRepository{
		db:  db,
		log: log.With(zap.String("repository", "tour")),
	}
}

const tourColumns = `id, operator_id, title, description, location, duration_in_minutes, difficulty,
		base_price, participant_prices, max_participants, is_published, created_at, updated_at, deleted_at`

func scanTour(row pgx.Row) (*entity.Tour, error) {
	var tour entity.Tour
	err := row.Scan(
		&tour.ID,
		&tour.OperatorID,
		&tour.Title,
		&tour.Description,
		&tour.Location,
		&tour.DurationInMinutes,
		&tour.Difficulty,
		&tour.BasePrice,
		&tour.ParticipantPrices,
		&tour.MaxParticipants,
		&tour.IsPublished,
		&tour.CreatedAt,
		&tour.UpdatedAt,
		&tour.DeletedAt,
	)
	if err != nil {
		return nil, err
	}
	return &tour, nil
}

func (r *tourRepository) Create(ctx context.Context, tour *entity.Tour) error {
	query := `
		INSERT INTO tours (id, operator_id, title, description, location, duration_in_minutes, difficulty,
		                   base_price, participant_prices, max_participants, is_published, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
	`

	_, err := r.db.Exec(ctx, query,
		tour.ID,
		tour.OperatorID,
		tour.Title,
		tour.Description,
		tour.Location,
		tour.DurationInMinutes,
		tour.Difficulty,
		tour.BasePrice,
		tour.ParticipantPrices,
		tour.MaxParticipants,
		tour.IsPublished,
		tour.CreatedAt,
		tour.UpdatedAt,
	)
	if err != nil {
		r.log.Error("Failed to create tour", zap.Error(err), zap.String("title", tour.Title))
		return fmt.Errorf("create tour %s: %w", tour.Title, err)
	}

	return nil
}

func (r *tourRepository) FindByID(ctx context.Context, id uuid.UUID) (*entity.Tour, error) {
	query := `SELECT ` + tourColumns + ` FROM tours WHERE id = $1 AND deleted_at IS NULL`

	tour, err := scanTour(r.db.QueryRow(ctx, query, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		r.log.Error("Failed to find tour by ID", zap.Error(err), zap.String("tour_id", id.String()))
		return nil, fmt.Errorf("find tour by ID %s: %w", id.String(), err)
	}

	return tour, nil
}

// where builds the shared WHERE clause; placeholders start at $1.
func (f TourFilter) where() (string, []any) {
	clause := `deleted_at IS NULL`
	var args []any

	if f.PublishedOnly {
		clause += ` AND is_published = TRUE`
	}
	if f.Search != "" {
		args = append(args, "%"+f.Search+"%")
		clause += fmt.Sprintf(` AND (title ILIKE $%d OR description ILIKE $%d)`, len(args), len(args))
	}
	if f.Location != "" {
		args = append(args, "%"+f.Location+"%")
		clause += fmt.Sprintf(` AND location ILIKE $%d`, len(args))
	}
	if f.Difficulty != "" {
		args = append(args, f.Difficulty)
		clause += fmt.Sprintf(` AND difficulty = $%d`, len(args))
	}

	return clause, args
}

func (r *tourRepository) FindAll(ctx context.Context, filter TourFilter, limit, offset int) ([]*entity.Tour, error) {
	where, args := filter.where()
	args = append(args, limit, offset)

	query := fmt.Sprintf(`
		SELECT %s
		FROM tours
		WHERE %s
		ORDER BY created_at DESC
		LIMIT $%d OFFSET $%d
	`, tourColumns, where, len(args)-1, len(args))

	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		r.log.Error("Failed to list tours", zap.Error(err), zap.Int("limit", limit), zap.Int("offset", offset))
		return nil, fmt.Errorf("list tours: %w", err)
	}
	defer rows.Close()

	var tours []*entity.Tour
	for rows.Next() {
		tour, err := scanTour(rows)
		if err != nil {
			r.log.Error("Failed to scan tour row", zap.Error(err))
			return nil, fmt.Errorf("scan tour row: %w", err)
		}
		tours = append(tours, tour)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate tour rows: %w", err)
	}

	return tours, nil
}

func (r *tourRepository) Count(ctx context.Context, filter TourFilter) (int64, error) {
	where, args := filter.where()
	query := `SELECT COUNT(*) FROM tours WHERE ` + where

	var count int64
	if err := r.db.QueryRow(ctx, query, args...).Scan(&count); err != nil {
		r.log.Error("Failed to count tours", zap.Error(err))
		return 0, fmt.Errorf("count tours: %w", err)
	}

	return count, nil
}

func (r *tourRepository) Update(ctx context.Context, tour *entity.Tour) error {
	query := `
		UPDATE tours
		SET title = $2, description = $3, location = $4, duration_in_minutes = $5, difficulty = $6,
		    base_price = $7, participant_prices = $8, max_participants = $9, is_published = $10,
		    updated_at = $11
		WHERE id = $1 AND deleted_at IS NULL
	`

	result, err := r.db.Exec(ctx, query,
		tour.ID,
		tour.Title,
		tour.Description,
		tour.Location,
		tour.DurationInMinutes,
		tour.Difficulty,
		tour.BasePrice,
		tour.ParticipantPrices,
		tour.MaxParticipants,
		tour.IsPublished,
		tour.UpdatedAt,
	)
	if err != nil {
		r.log.Error("Failed to update tour", zap.Error(err), zap.String("tour_id", tour.ID.String()))
		return fmt.Errorf("update tour %s: %w", tour.ID.String(), err)
	}

	if result.RowsAffected() == 0 {
		return fmt.Errorf("tour %s: %w", tour.ID.String(), ErrNotFound)
	}

	return nil
}

// Delete is a soft delete; bookings keep pointing at the row.
func (r *tourRepository) Delete(ctx context.Context, id uuid.UUID) error {
	query := `UPDATE tours SET deleted_at = NOW(), is_published = FALSE WHERE id = $1 AND deleted_at IS NULL`

	result, err := r.db.Exec(ctx, query, id)
	if err != nil {
		r.log.Error("Failed to delete tour", zap.Error(err), zap.String("tour_id", id.String()))
		return fmt.Errorf("delete tour %s: %w", id.String(), err)
	}

	if result.RowsAffected() == 0 {
		return fmt.Errorf("tour %s: %w", id.String(), ErrNotFound)
	}

	r.log.Info("Tour deleted", zap.String("tour_id", id.String()))
	return nil
}
