package entity

import "time"

type DiscountType string

const (
	DiscountFixed      DiscountType = "fixed"
	DiscountPercentage DiscountType = "percentage"
)

type Coupon struct {
	BaseNoDelete
	Code         string       `db:"code"`
	DiscountType DiscountType `db:"discount_type"`
	Value        float64      `db:"value"`
	IsActive     bool         `db:"is_active"`
	ValidFrom    *time.Time   `db:"valid_from"`
	ExpiresAt    *time.Time   `db:"expires_at"`
}

// Usable reports whether the coupon may be applied at the given instant.
func (c *Coupon) Usable(at time.Time) bool {
	if !c.IsActive {
		return false
	}
	if c.ValidFrom != nil && at.Before(*c.ValidFrom) {
		return false
	}
	if c.ExpiresAt != nil && !at.Before(*c.ExpiresAt) {
		return false
	}
	return true
}
