package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"tour-booking/internal/data/entity"
	"tour-booking/pkg/database"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"
)

// ErrCapacityBelowBooked is returned when an upsert would leave booked_slots > total_slots.
var ErrCapacityBelowBooked = errors.New("total slots cannot be lower than booked slots")

type InventoryRepository interface {
	Upsert(ctx context.Context, inv *entity.TourInventory) (*entity.TourInventory, error)
	EnsureDefault(ctx context.Context, tourID uuid.UUID, date time.Time, totalSlots int) error
	Find(ctx context.Context, tourID uuid.UUID, date time.Time) (*entity.TourInventory, error)
	FindRange(ctx context.Context, tourID uuid.UUID, from, to time.Time) ([]*entity.TourInventory, error)

	// Reserve increments booked_slots by n only if capacity remains.
	// It reports false, with no change, when it does not.
	Reserve(ctx context.Context, tourID uuid.UUID, date time.Time, n int) (bool, error)
	Release(ctx context.Context, tourID uuid.UUID, date time.Time, n int) error
}

type inventoryRepository struct {
	db  database.Querier
	log *zap.Logger
}

func NewInventoryRepository(db database.Querier, log *zap.Logger) InventoryRepository {
	return &inventoryRepository{
		db:  db,
		log: log.With(zap.String("repository", "inventory")),
	}
}

func (r *inventoryRepository) Upsert(ctx context.Context, inv *entity.TourInventory) (*entity.TourInventory, error) {
	query := `
		INSERT INTO tour_inventory (tour_id, date, total_slots, booked_slots, updated_at)
		VALUES ($1, $2, $3, 0, NOW())
		ON CONFLICT (tour_id, date) DO UPDATE
		SET total_slots = EXCLUDED.total_slots, updated_at = NOW()
		WHERE tour_inventory.booked_slots <= EXCLUDED.total_slots
		RETURNING tour_id, date, total_slots, booked_slots, updated_at
	`

	var out entity.TourInventory
	err := r.db.QueryRow(ctx, query, inv.TourID, inv.Date, inv.TotalSlots).Scan(
		&out.TourID,
		&out.Date,
		&out.TotalSlots,
		&out.BookedSlots,
		&out.UpdatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrCapacityBelowBooked
	}
	if err != nil {
		r.log.Error("Failed to upsert inventory",
			zap.Error(err),
			zap.String("tour_id", inv.TourID.String()),
			zap.Time("date", inv.Date),
		)
		return nil, fmt.Errorf("upsert inventory for tour %s: %w", inv.TourID.String(), err)
	}

	return &out, nil
}

func (r *inventoryRepository) EnsureDefault(ctx context.Context, tourID uuid.UUID, date time.Time, totalSlots int) error {
	query := `
		INSERT INTO tour_inventory (tour_id, date, total_slots, booked_slots, updated_at)
		VALUES ($1, $2, $3, 0, NOW())
		ON CONFLICT (tour_id, date) DO NOTHING
	`

	if _, err := r.db.Exec(ctx, query, tourID, date, totalSlots); err != nil {
		r.log.Error("Failed to seed inventory",
			zap.Error(err),
			zap.String("tour_id", tourID.String()),
			zap.Time("date", date),
		)
		return fmt.Errorf("seed inventory for tour %s: %w", tourID.String(), err)
	}

	return nil
}

func (r *inventoryRepository) Find(ctx context.Context, tourID uuid.UUID, date time.Time) (*entity.TourInventory, error) {
	query := `
		SELECT tour_id, date, total_slots, booked_slots, updated_at
		FROM tour_inventory
		WHERE tour_id = $1 AND date = $2
	`

	var inv entity.TourInventory
	err := r.db.QueryRow(ctx, query, tourID, date).Scan(
		&inv.TourID,
		&inv.Date,
		&inv.TotalSlots,
		&inv.BookedSlots,
		&inv.UpdatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		r.log.Error("Failed to find inventory", zap.Error(err), zap.String("tour_id", tourID.String()))
		return nil, fmt.Errorf("find inventory for tour %s: %w", tourID.String(), err)
	}

	return &inv, nil
}

func (r *inventoryRepository) FindRange(ctx context.Context, tourID uuid.UUID, from, to time.Time) ([]*entity.TourInventory, error) {
	query := `
		SELECT tour_id, date, total_slots, booked_slots, updated_at
		FROM tour_inventory
		WHERE tour_id = $1 AND date BETWEEN $2 AND $3
		ORDER BY date
	`

	rows, err := r.db.Query(ctx, query, tourID, from, to)
	if err != nil {
		r.log.Error("Failed to list inventory", zap.Error(err), zap.String("tour_id", tourID.String()))
		return nil, fmt.Errorf("list inventory for tour %s: %w", tourID.String(), err)
	}
	defer rows.Close()

	var records []*entity.TourInventory
	for rows.Next() {
		var inv entity.TourInventory
		if err := rows.Scan(&inv.TourID, &inv.Date, &inv.TotalSlots, &inv.BookedSlots, &inv.UpdatedAt); err != nil {
			r.log.Error("Failed to scan inventory row", zap.Error(err))
			return nil, fmt.Errorf("scan inventory row: %w", err)
		}
		records = append(records, &inv)
	}

	return records, rows.Err()
}

func (r *inventoryRepository) Reserve(ctx context.Context, tourID uuid.UUID, date time.Time, n int) (bool, error) {
	// Check and increment in one statement; concurrent reservations serialize on the row lock.
	query := `
		UPDATE tour_inventory
		SET booked_slots = booked_slots + $3, updated_at = NOW()
		WHERE tour_id = $1 AND date = $2 AND booked_slots + $3 <= total_slots
		RETURNING booked_slots
	`

	var booked int
	err := r.db.QueryRow(ctx, query, tourID, date, n).Scan(&booked)
	if errors.Is(err, pgx.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		r.log.Error("Failed to reserve slots",
			zap.Error(err),
			zap.String("tour_id", tourID.String()),
			zap.Time("date", date),
			zap.Int("slots", n),
		)
		return false, fmt.Errorf("reserve %d slots for tour %s: %w", n, tourID.String(), err)
	}

	r.log.Debug("Slots reserved",
		zap.String("tour_id", tourID.String()),
		zap.Time("date", date),
		zap.Int("slots", n),
		zap.Int("booked_slots", booked),
	)
	return true, nil
}

func (r *inventoryRepository) Release(ctx context.Context, tourID uuid.UUID, date time.Time, n int) error {
	query := `
		UPDATE tour_inventory
		SET booked_slots = GREATEST(booked_slots - $3, 0), updated_at = NOW()
		WHERE tour_id = $1 AND date = $2
	`

	result, err := r.db.Exec(ctx, query, tourID, date, n)
	if err != nil {
		r.log.Error("Failed to release slots",
			zap.Error(err),
			zap.String("tour_id", tourID.String()),
			zap.Time("date", date),
			zap.Int("slots", n),
		)
		return fmt.Errorf("release %d slots for tour %s: %w", n, tourID.String(), err)
	}

	if result.RowsAffected() == 0 {
		r.log.Warn("Release found no inventory record",
			zap.String("tour_id", tourID.String()),
			zap.Time("date", date),
		)
	}

	return nil
}
