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

type PaymentSettlement struct {
	Status        entity.PaymentStatus
	TransactionID *string
	PaymentType   *string
	RawPayload    []byte
}

type PaymentRepository interface {
	Create(ctx context.Context, payment *entity.Payment) error
	FindByID(ctx context.Context, id uuid.UUID) (*entity.Payment, error)
	FindByOrderID(ctx context.Context, orderID string) (*entity.Payment, error)
	FindByBookingID(ctx context.Context, bookingID uuid.UUID) ([]*entity.Payment, error)
	CountByBookingID(ctx context.Context, bookingID uuid.UUID) (int, error)
	SetCheckout(ctx context.Context, id uuid.UUID, token, redirectURL string) error

	// Settle moves a pending payment to a final status. It returns nil, nil when
	// the payment is no longer pending.
	Settle(ctx context.Context, id uuid.UUID, s PaymentSettlement) (*entity.Payment, error)
}

type paymentRepository struct {
	db  database.Querier
	log *zap.Logger
}

func NewPaymentRepository(db database.Querier, log *zap.Logger) PaymentRepository {
	return &paymentRepository{
		db:  db,
		log: log.With(zap.String("repository", "payment")),
	}
}

const paymentColumns = `id, booking_id, provider, order_id, transaction_id, amount, currency, status,
		payment_type, snap_token, redirect_url, raw_payload, paid_at, created_at, updated_at`

func scanPayment(row pgx.Row) (*entity.Payment, error) {
	var payment entity.Payment
	err := row.Scan(
		&payment.ID,
		&payment.BookingID,
		&payment.Provider,
		&payment.OrderID,
		&payment.TransactionID,
		&payment.Amount,
		&payment.Currency,
		&payment.Status,
		&payment.PaymentType,
		&payment.SnapToken,
		&payment.RedirectURL,
		&payment.RawPayload,
		&payment.PaidAt,
		&payment.CreatedAt,
		&payment.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &payment, nil
}

func (r *paymentRepository) Create(ctx context.Context, payment *entity.Payment) error {
	query := `
		INSERT INTO payments (id, booking_id, provider, order_id, amount, currency, status, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`

	_, err := r.db.Exec(ctx, query,
		payment.ID,
		payment.BookingID,
		payment.Provider,
		payment.OrderID,
		payment.Amount,
		payment.Currency,
		payment.Status,
		payment.CreatedAt,
		payment.UpdatedAt,
	)
	if err != nil {
		r.log.Error("Failed to create payment",
			zap.Error(err),
			zap.String("booking_id", payment.BookingID.String()),
			zap.String("order_id", payment.OrderID),
		)
		return fmt.Errorf("create payment for booking %s: %w", payment.BookingID.String(), err)
	}

	return nil
}

func (r *paymentRepository) findOne(ctx context.Context, where string, arg any) (*entity.Payment, error) {
	query := `SELECT ` + paymentColumns + ` FROM payments WHERE ` + where

	payment, err := scanPayment(r.db.QueryRow(ctx, query, arg))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	return payment, err
}

func (r *paymentRepository) FindByID(ctx context.Context, id uuid.UUID) (*entity.Payment, error) {
	payment, err := r.findOne(ctx, "id = $1", id)
	if err != nil {
		r.log.Error("Failed to find payment by ID", zap.Error(err), zap.String("payment_id", id.String()))
		return nil, fmt.Errorf("find payment by ID %s: %w", id.String(), err)
	}
	return payment, nil
}

func (r *paymentRepository) FindByOrderID(ctx context.Context, orderID string) (*entity.Payment, error) {
	payment, err := r.findOne(ctx, "order_id = $1", orderID)
	if err != nil {
		r.log.Error("Failed to find payment by order ID", zap.Error(err), zap.String("order_id", orderID))
		return nil, fmt.Errorf("find payment by order ID %s: %w", orderID, err)
	}
	return payment, nil
}

// FindByBookingID returns every attempt for a booking, newest first.
func (r *paymentRepository) FindByBookingID(ctx context.Context, bookingID uuid.UUID) ([]*entity.Payment, error) {
	query := `SELECT ` + paymentColumns + ` FROM payments WHERE booking_id = $1 ORDER BY created_at DESC`

	rows, err := r.db.Query(ctx, query, bookingID)
	if err != nil {
		r.log.Error("Failed to find payments by booking", zap.Error(err), zap.String("booking_id", bookingID.String()))
		return nil, fmt.Errorf("find payments for booking %s: %w", bookingID.String(), err)
	}
	defer rows.Close()

	var payments []*entity.Payment
	for rows.Next() {
		payment, err := scanPayment(rows)
		if err != nil {
			return nil, fmt.Errorf("scan payment row: %w", err)
		}
		payments = append(payments, payment)
	}

	return payments, rows.Err()
}

func (r *paymentRepository) CountByBookingID(ctx context.Context, bookingID uuid.UUID) (int, error) {
	query := `SELECT COUNT(*) FROM payments WHERE booking_id = $1`

	var count int
	if err := r.db.QueryRow(ctx, query, bookingID).Scan(&count); err != nil {
		r.log.Error("Failed to count payments", zap.Error(err), zap.String("booking_id", bookingID.String()))
		return 0, fmt.Errorf("count payments for booking %s: %w", bookingID.String(), err)
	}

	return count, nil
}

func (r *paymentRepository) SetCheckout(ctx context.Context, id uuid.UUID, token, redirectURL string) error {
	query := `UPDATE payments SET snap_token = $2, redirect_url = $3, updated_at = NOW() WHERE id = $1`

	result, err := r.db.Exec(ctx, query, id, token, redirectURL)
	if err != nil {
		r.log.Error("Failed to store checkout", zap.Error(err), zap.String("payment_id", id.String()))
		return fmt.Errorf("store checkout for payment %s: %w", id.String(), err)
	}

	if result.RowsAffected() == 0 {
		return fmt.Errorf("payment %s: %w", id.String(), ErrNotFound)
	}

	return nil
}

func (r *paymentRepository) Settle(ctx context.Context, id uuid.UUID, s PaymentSettlement) (*entity.Payment, error) {
	query := `
		UPDATE payments
		SET status = $2,
		    transaction_id = COALESCE($3, transaction_id),
		    payment_type = COALESCE($4, payment_type),
		    raw_payload = COALESCE($5, raw_payload),
		    paid_at = CASE WHEN $2 = 'paid' THEN NOW() ELSE paid_at END,
		    updated_at = NOW()
		WHERE id = $1 AND status = 'pending'
		RETURNING ` + paymentColumns

	payment, err := scanPayment(r.db.QueryRow(ctx, query, id, s.Status, s.TransactionID, s.PaymentType, s.RawPayload))
	if errors.Is(err, pgx.ErrNoRows) {
		r.log.Info("Payment already settled",
			zap.String("payment_id", id.String()),
			zap.String("status", string(s.Status)),
		)
		return nil, nil
	}
	if err != nil {
		r.log.Error("Failed to settle payment",
			zap.Error(err),
			zap.String("payment_id", id.String()),
			zap.String("status", string(s.Status)),
		)
		return nil, fmt.Errorf("settle payment %s: %w", id.String(), err)
	}

	return payment, nil
}

// ==================== PAYMENT EVENTS ====================

type PaymentEventRepository interface {
	// Record stores a processed notification. false means it was already recorded.
	Record(ctx context.Context, event *entity.PaymentEvent) (bool, error)
}

type paymentEventRepository struct {
	db  database.Querier
	log *zap.Logger
}

func NewPaymentEventRepository(db database.Querier, log *zap.Logger) PaymentEventRepository {
	return &paymentEventRepository{
		db:  db,
		log: log.With(zap.String("repository", "payment_event")),
	}
}

func (r *paymentEventRepository) Record(ctx context.Context, event *entity.PaymentEvent) (bool, error) {
	query := `
		INSERT INTO payment_events (id, payment_id, provider, transaction_id, status, raw_payload, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (provider, transaction_id, status) DO NOTHING
	`

	result, err := r.db.Exec(ctx, query,
		event.ID,
		event.PaymentID,
		event.Provider,
		event.TransactionID,
		event.Status,
		event.RawPayload,
		event.CreatedAt,
	)
	if err != nil {
		r.log.Error("Failed to record payment event",
			zap.Error(err),
			zap.String("transaction_id", event.TransactionID),
			zap.String("status", string(event.Status)),
		)
		return false, fmt.Errorf("record payment event %s: %w", event.TransactionID, err)
	}

	return result.RowsAffected() == 1, nil
}
