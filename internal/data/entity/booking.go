package entity

import (
	"time"

	"github.com/google/uuid"
)

type BookingStatus string

const (
	BookingStatusAwaitingPayment BookingStatus = "awaiting_payment"
	BookingStatusConfirmed       BookingStatus = "confirmed"
	BookingStatusCancelled       BookingStatus = "cancelled"
	BookingStatusExpired         BookingStatus = "expired"
)

// IsTerminal: confirmed, cancelled and expired never change again.
func (s BookingStatus) IsTerminal() bool {
	return s == BookingStatusConfirmed || s == BookingStatusCancelled || s == BookingStatusExpired
}

// ReleasesSlots reports whether entering this status hands capacity back to the ledger.
func (s BookingStatus) ReleasesSlots() bool {
	return s == BookingStatusCancelled || s == BookingStatusExpired
}

type Participant struct {
	Type  ParticipantType `json:"type"`
	Count int             `json:"count"`
}

// PriceLine is one row of the pricing snapshot.
type PriceLine struct {
	Kind      string  `json:"kind"`
	Reference string  `json:"reference"`
	Quantity  int     `json:"quantity"`
	UnitPrice float64 `json:"unit_price"`
	Amount    float64 `json:"amount"`
}

// PriceBreakdown is persisted on the booking and never recomputed.
type PriceBreakdown struct {
	Currency       string      `json:"currency"`
	BaseSubtotal   float64     `json:"base_subtotal"`
	AddonsSubtotal float64     `json:"addons_subtotal"`
	Discount       float64     `json:"discount"`
	Total          float64     `json:"total"`
	CouponCode     *string     `json:"coupon_code,omitempty"`
	PricingRuleID  *string     `json:"pricing_rule_id,omitempty"`
	Lines          []PriceLine `json:"lines"`
}

type Booking struct {
	BaseNoDelete
	OrderID          string         `db:"order_id"`
	TourID           uuid.UUID      `db:"tour_id"`
	UserID           uuid.UUID      `db:"user_id"`
	BookingDate      time.Time      `db:"booking_date"`
	ParticipantCount int            `db:"participant_count"`
	Participants     []Participant  `db:"participants"`
	AddonIDs         []uuid.UUID    `db:"addon_ids"`
	PricingBreakdown PriceBreakdown `db:"pricing_breakdown"`
	TotalAmount      float64        `db:"total_amount"`
	Status           BookingStatus  `db:"status"`
	ContactName      string         `db:"contact_name"`
	ContactEmail     string         `db:"contact_email"`
	ContactPhone     *string        `db:"contact_phone"`
	SpecialRequests  *string        `db:"special_requests"`
	ExpiresAt        time.Time      `db:"expires_at"`
	SlotsReleasedAt  *time.Time     `db:"slots_released_at"`
	CancelledAt      *time.Time     `db:"cancelled_at"`
	ConfirmedAt      *time.Time     `db:"confirmed_at"`
}
