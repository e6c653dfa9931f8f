package repository

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"tour-booking/internal/data/entity"
	"tour-booking/pkg/database"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"
)

// ==================== PRICING RULES ====================

type PricingRuleRepository interface {
	Create(ctx context.Context, rule *entity.PricingRule) error
	FindByTourID(ctx context.Context, tourID uuid.UUID) ([]*entity.PricingRule, error)
	// FindCovering returns rules whose date range contains date, oldest first.
	FindCovering(ctx context.Context, tourID uuid.UUID, date time.Time) ([]*entity.PricingRule, error)
	Delete(ctx context.Context, tourID, id uuid.UUID) error
}

type pricingRuleRepository struct {
	db  database.Querier
	log *zap.Logger
}

func NewPricingRuleRepository(db database.Querier, log *zap.Logger) PricingRuleRepository {
	return &pricingRuleRepository{
		db:  db,
		log: log.With(zap.String("repository", "pricing_rule")),
	}
}

func (r *pricingRuleRepository) Create(ctx context.Context, rule *entity.PricingRule) error {
	query := `
		INSERT INTO pricing_rules (id, tour_id, name, start_date, end_date, prices, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`

	_, err := r.db.Exec(ctx, query,
		rule.ID,
		rule.TourID,
		rule.Name,
		rule.StartDate,
		rule.EndDate,
		rule.Prices,
		rule.CreatedAt,
		rule.UpdatedAt,
	)
	if err != nil {
		r.log.Error("Failed to create pricing rule", zap.Error(err), zap.String("tour_id", rule.TourID.String()))
		return fmt.Errorf("create pricing rule for tour %s: %w", rule.TourID.String(), err)
	}

	return nil
}

func (r *pricingRuleRepository) list(ctx context.Context, query string, args ...any) ([]*entity.PricingRule, error) {
	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var rules []*entity.PricingRule
	for rows.Next() {
		var rule entity.PricingRule
		err := rows.Scan(
			&rule.ID,
			&rule.TourID,
			&rule.Name,
			&rule.StartDate,
			&rule.EndDate,
			&rule.Prices,
			&rule.CreatedAt,
			&rule.UpdatedAt,
		)
		if err != nil {
			return nil, err
		}
		rules = append(rules, &rule)
	}

	return rules, rows.Err()
}

func (r *pricingRuleRepository) FindByTourID(ctx context.Context, tourID uuid.UUID) ([]*entity.PricingRule, error) {
	query := `
		SELECT id, tour_id, name, start_date, end_date, prices, created_at, updated_at
		FROM pricing_rules
		WHERE tour_id = $1
		ORDER BY start_date, created_at
	`

	rules, err := r.list(ctx, query, tourID)
	if err != nil {
		r.log.Error("Failed to list pricing rules", zap.Error(err), zap.String("tour_id", tourID.String()))
		return nil, fmt.Errorf("list pricing rules for tour %s: %w", tourID.String(), err)
	}
	return rules, nil
}

func (r *pricingRuleRepository) FindCovering(ctx context.Context, tourID uuid.UUID, date time.Time) ([]*entity.PricingRule, error) {
	query := `
		SELECT id, tour_id, name, start_date, end_date, prices, created_at, updated_at
		FROM pricing_rules
		WHERE tour_id = $1 AND start_date <= $2 AND end_date >= $2
		ORDER BY created_at
	`

	rules, err := r.list(ctx, query, tourID, date)
	if err != nil {
		r.log.Error("Failed to find covering pricing rules",
			zap.Error(err),
			zap.String("tour_id", tourID.String()),
			zap.Time("date", date),
		)
		return nil, fmt.Errorf("find pricing rules for tour %s: %w", tourID.String(), err)
	}
	return rules, nil
}

func (r *pricingRuleRepository) Delete(ctx context.Context, tourID, id uuid.UUID) error {
	query := `DELETE FROM pricing_rules WHERE id = $1 AND tour_id = $2`

	result, err := r.db.Exec(ctx, query, id, tourID)
	if err != nil {
		r.log.Error("Failed to delete pricing rule", zap.Error(err), zap.String("rule_id", id.String()))
		return fmt.Errorf("delete pricing rule %s: %w", id.String(), err)
	}

	if result.RowsAffected() == 0 {
		return fmt.Errorf("pricing rule %s: %w", id.String(), ErrNotFound)
	}

	return nil
}

// ==================== ADD-ONS ====================

type AddonRepository interface {
	Create(ctx context.Context, addon *entity.Addon) error
	FindByTourID(ctx context.Context, tourID uuid.UUID, activeOnly bool) ([]*entity.Addon, error)
	FindByIDs(ctx context.Context, ids []uuid.UUID) ([]*entity.Addon, error)
	SetActive(ctx context.Context, tourID, id uuid.UUID, active bool) error
}

type addonRepository struct {
	db  database.Querier
	log *zap.Logger
}

func NewAddonRepository(db database.Querier, log *zap.Logger) AddonRepository {
	return &addonRepository{
		db:  db,
		log: log.With(zap.String("repository", "addon")),
	}
}

func (r *addonRepository) Create(ctx context.Context, addon *entity.Addon) error {
	query := `
		INSERT INTO tour_addons (id, tour_id, name, price, is_active, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`

	_, err := r.db.Exec(ctx, query,
		addon.ID,
		addon.TourID,
		addon.Name,
		addon.Price,
		addon.IsActive,
		addon.CreatedAt,
		addon.UpdatedAt,
	)
	if err != nil {
		r.log.Error("Failed to create addon", zap.Error(err), zap.String("tour_id", addon.TourID.String()))
		return fmt.Errorf("create addon %s: %w", addon.Name, err)
	}

	return nil
}

func (r *addonRepository) list(ctx context.Context, query string, args ...any) ([]*entity.Addon, error) {
	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var addons []*entity.Addon
	for rows.Next() {
		var addon entity.Addon
		err := rows.Scan(
			&addon.ID,
			&addon.TourID,
			&addon.Name,
			&addon.Price,
			&addon.IsActive,
			&addon.CreatedAt,
			&addon.UpdatedAt,
		)
		if err != nil {
			return nil, err
		}
		addons = append(addons, &addon)
	}

	return addons, rows.Err()
}

func (r *addonRepository) FindByTourID(ctx context.Context, tourID uuid.UUID, activeOnly bool) ([]*entity.Addon, error) {
	query := `
		SELECT id, tour_id, name, price, is_active, created_at, updated_at
		FROM tour_addons
		WHERE tour_id = $1 AND (is_active OR NOT $2)
		ORDER BY name
	`

	addons, err := r.list(ctx, query, tourID, activeOnly)
	if err != nil {
		r.log.Error("Failed to list addons", zap.Error(err), zap.String("tour_id", tourID.String()))
		return nil, fmt.Errorf("list addons for tour %s: %w", tourID.String(), err)
	}
	return addons, nil
}

func (r *addonRepository) FindByIDs(ctx context.Context, ids []uuid.UUID) ([]*entity.Addon, error) {
	if len(ids) == 0 {
		return nil, nil
	}

	query := `
		SELECT id, tour_id, name, price, is_active, created_at, updated_at
		FROM tour_addons
		WHERE id = ANY($1)
	`

	addons, err := r.list(ctx, query, ids)
	if err != nil {
		r.log.Error("Failed to find addons by IDs", zap.Error(err), zap.Int("count", len(ids)))
		return nil, fmt.Errorf("find addons by IDs: %w", err)
	}
	return addons, nil
}

func (r *addonRepository) SetActive(ctx context.Context, tourID, id uuid.UUID, active bool) error {
	query := `UPDATE tour_addons SET is_active = $3, updated_at = NOW() WHERE id = $1 AND tour_id = $2`

	result, err := r.db.Exec(ctx, query, id, tourID, active)
	if err != nil {
		r.log.Error("Failed to update addon", zap.Error(err), zap.String("addon_id", id.String()))
		return fmt.Errorf("update addon %s: %w", id.String(), err)
	}

	if result.RowsAffected() == 0 {
		return fmt.Errorf("addon %s: %w", id.String(), ErrNotFound)
	}

	return nil
}

// ==================== COUPONS ====================

type CouponRepository interface {
	Create(ctx context.Context, coupon *entity.Coupon) error
	FindByCode(ctx context.Context, code string) (*entity.Coupon, error)
	FindAll(ctx context.Context, limit, offset int) ([]*entity.Coupon, error)
	SetActive(ctx context.Context, code string, active bool) error
}

type couponRepository struct {
	db  database.Querier
	log *zap.Logger
}

func NewCouponRepository(db database.Querier, log *zap.Logger) CouponRepository {
	return &couponRepository{
		db:  db,
		log: log.With(zap.String("repository", "coupon")),
	}
}

func (r *couponRepository) Create(ctx context.Context, coupon *entity.Coupon) error {
	query := `
		INSERT INTO coupons (id, code, discount_type, value, is_active, valid_from, expires_at, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`

	_, err := r.db.Exec(ctx, query,
		coupon.ID,
		strings.ToUpper(coupon.Code),
		coupon.DiscountType,
		coupon.Value,
		coupon.IsActive,
		coupon.ValidFrom,
		coupon.ExpiresAt,
		coupon.CreatedAt,
		coupon.UpdatedAt,
	)
	if err != nil {
		r.log.Error("Failed to create coupon", zap.Error(err), zap.String("code", coupon.Code))
		return fmt.Errorf("create coupon %s: %w", coupon.Code, err)
	}

	return nil
}

func scanCoupon(row pgx.Row) (*entity.Coupon, error) {
	var coupon entity.Coupon
	err := row.Scan(
		&coupon.ID,
		&coupon.Code,
		&coupon.DiscountType,
		&coupon.Value,
		&coupon.IsActive,
		&coupon.ValidFrom,
		&coupon.ExpiresAt,
		&coupon.CreatedAt,
		&coupon.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &coupon, nil
}

// FindByCode matches case-insensitively; codes are stored upper-case.
func (r *couponRepository) FindByCode(ctx context.Context, code string) (*entity.Coupon, error) {
	query := `
		SELECT id, code, discount_type, value, is_active, valid_from, expires_at, created_at, updated_at
		FROM coupons
		WHERE code = $1
	`

	coupon, err := scanCoupon(r.db.QueryRow(ctx, query, strings.ToUpper(strings.TrimSpace(code))))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		r.log.Error("Failed to find coupon", zap.Error(err), zap.String("code", code))
		return nil, fmt.Errorf("find coupon %s: %w", code, err)
	}

	return coupon, nil
}

func (r *couponRepository) FindAll(ctx context.Context, limit, offset int) ([]*entity.Coupon, error) {
	query := `
		SELECT id, code, discount_type, value, is_active, valid_from, expires_at, created_at, updated_at
		FROM coupons
		ORDER BY created_at DESC
		LIMIT $1 OFFSET $2
	`

	rows, err := r.db.Query(ctx, query, limit, offset)
	if err != nil {
		r.log.Error("Failed to list coupons", zap.Error(err))
		return nil, fmt.Errorf("list coupons: %w", err)
	}
	defer rows.Close()

	var coupons []*entity.Coupon
	for rows.Next() {
		coupon, err := scanCoupon(rows)
		if err != nil {
			return nil, fmt.Errorf("scan coupon row: %w", err)
		}
		coupons = append(coupons, coupon)
	}

	return coupons, rows.Err()
}

func (r *couponRepository) SetActive(ctx context.Context, code string, active bool) error {
	query := `UPDATE coupons SET is_active = $2, updated_at = NOW() WHERE code = $1`

	result, err := r.db.Exec(ctx, query, strings.ToUpper(code), active)
	if err != nil {
		r.log.Error("Failed to update coupon", zap.Error(err), zap.String("code", code))
		return fmt.Errorf("update coupon %s: %w", code, err)
	}

	if result.RowsAffected() == 0 {
		return fmt.Errorf("coupon %s: %w", code, ErrNotFound)
	}

	return nil
}
