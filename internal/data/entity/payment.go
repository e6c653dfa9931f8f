package entity

import (
	"time"

	"github.com/google/uuid"
)

type PaymentStatus string

const (
	PaymentStatusPending PaymentStatus = "pending"
	PaymentStatusPaid    PaymentStatus = "paid"
	PaymentStatusFailed  PaymentStatus = "failed"
	PaymentStatusExpired PaymentStatus = "expired"
)

func (s PaymentStatus) IsFinal() bool {
	return s == PaymentStatusPaid || s == PaymentStatusFailed || s == PaymentStatusExpired
}

type Payment struct {
	BaseNoDelete
	BookingID     uuid.UUID     `db:"booking_id"`
	Provider      string        `db:"provider"`
	OrderID       string        `db:"order_id"`
	TransactionID *string       `db:"transaction_id"`
	Amount        float64       `db:"amount"`
	Currency      string        `db:"currency"`
	Status        PaymentStatus `db:"status"`
	PaymentType   *string       `db:"payment_type"`
	SnapToken     *string       `db:"snap_token"`
	RedirectURL   *string       `db:"redirect_url"`
	RawPayload    []byte        `db:"raw_payload"`
	PaidAt        *time.Time    `db:"paid_at"`
}

// PaymentEvent records one processed provider notification. The unique key
// (provider, transaction_id, status) makes replays a no-op.
type PaymentEvent struct {
	BaseSimple
	PaymentID     uuid.UUID     `db:"payment_id"`
	Provider      string        `db:"provider"`
	TransactionID string        `db:"transaction_id"`
	Status        PaymentStatus `db:"status"`
	RawPayload    []byte        `db:"raw_payload"`
}
