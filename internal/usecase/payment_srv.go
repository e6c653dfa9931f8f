package usecase

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strconv"
	"time"

	"tour-booking/internal/data/entity"
	"tour-booking/internal/data/repository"
	"tour-booking/internal/dto/request"
	"tour-booking/internal/dto/response"
	"tour-booking/internal/gateway"
	"tour-booking/pkg/metrics"
	"tour-booking/pkg/utils"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Webhook outcomes, also used as metric labels.
const (
	OutcomeConfirmed      = "confirmed"
	OutcomeCancelled      = "cancelled"
	OutcomePaymentExpired = "payment_expired"
	OutcomePending        = "pending"
	OutcomeIgnored        = "ignored"
	OutcomeDuplicate      = "duplicate"
	OutcomeAlreadySettled = "already_settled"
	OutcomeStaleBooking   = "stale_booking"
	OutcomeRejected       = "rejected"
)

type PaymentService interface {
	Initiate(ctx context.Context, actor Actor, req *request.InitiatePaymentRequest) (*response.PaymentInitResponse, error)
	// HandleWebhook authenticates a provider notification and settles it exactly once.
	HandleWebhook(ctx context.Context, payload []byte) (*response.WebhookResponse, error)
	// Verify returns the stored status, polling the provider while it is still pending.
	Verify(ctx context.Context, paymentID uuid.UUID, actor Actor) (*response.PaymentResponse, error)
}

type paymentService struct {
	repo    *repository.Repository
	gateway gateway.Gateway
	config  *utils.Config
	events  *eventEmitter
	log     *zap.Logger
	now     clock
}

func NewPaymentService(
	repo *repository.Repository,
	gw gateway.Gateway,
	config *utils.Config,
	events *eventEmitter,
	log *zap.Logger,
) PaymentService {
	return &paymentService{
		repo:    repo,
		gateway: gw,
		config:  config,
		events:  events,
		log:     log.With(zap.String("service", "payment")),
		now:     systemClock,
	}
}

// ==================== INITIATE ====================

func (s *paymentService) Initiate(ctx context.Context, actor Actor, req *request.InitiatePaymentRequest) (*response.PaymentInitResponse, error) {
	if errs := utils.ValidateStruct(req); len(errs) > 0 {
		return nil, validationError(errs)
	}
	bookingID, err := uuid.Parse(req.BookingID)
	if err != nil {
		return nil, fieldError("booking_id", "Must be a valid UUID")
	}

	// 1. Booking harus milik user dan masih menunggu pembayaran
	booking, err := s.repo.Booking.FindByID(ctx, bookingID)
	if err != nil {
		s.log.Error("Failed to find booking", zap.Error(err), zap.String("booking_id", bookingID.String()))
		return nil, fmt.Errorf("find booking: %w", err)
	}
	if booking == nil {
		return nil, ErrBookingNotFound
	}
	if !actor.owns(booking.UserID) {
		return nil, ErrForbidden
	}
	if booking.Status != entity.BookingStatusAwaitingPayment {
		return nil, fmt.Errorf("%w: booking is %s", ErrInvalidState, booking.Status)
	}
	now := s.now()
	if !now.Before(booking.ExpiresAt) {
		return nil, fmt.Errorf("%w: reservation has expired", ErrInvalidState)
	}

	if s.gateway.ChargedAmount(booking.TotalAmount) < 1 {
		return nil, ErrNothingToCharge
	}

	// 2. Pakai ulang sesi yang masih pending
	attempts, err := s.repo.Payment.FindByBookingID(ctx, bookingID)
	if err != nil {
		s.log.Error("Failed to load payments", zap.Error(err), zap.String("booking_id", bookingID.String()))
		return nil, fmt.Errorf("load payments: %w", err)
	}
	if len(attempts) > 0 {
		latest := attempts[0]
		if latest.Status == entity.PaymentStatusPending && latest.SnapToken != nil {
			s.log.Info("Reusing pending payment session",
				zap.String("payment_id", latest.ID.String()),
				zap.String("booking_id", bookingID.String()),
			)
			return initResponse(latest), nil
		}
	}

	// 3. Payment baru, amount dari snapshot booking
	currency := booking.PricingBreakdown.Currency
	if currency == "" {
		currency = s.config.Booking.Currency
	}
	payment := &entity.Payment{
		BaseNoDelete: entity.BaseNoDelete{
			ID:        uuid.New(),
			CreatedAt: now,
			UpdatedAt: now,
		},
		BookingID: booking.ID,
		Provider:  s.gateway.Name(),
		OrderID:   booking.OrderID + "-" + strconv.Itoa(len(attempts)+1),
		Amount:    booking.TotalAmount,
		Currency:  currency,
		Status:    entity.PaymentStatusPending,
	}
	if err := s.repo.Payment.Create(ctx, payment); err != nil {
		s.log.Error("Failed to create payment", zap.Error(err), zap.String("booking_id", bookingID.String()))
		return nil, fmt.Errorf("create payment: %w", err)
	}

	// 4. Panggil gateway
	checkout, err := s.gateway.CreateCheckout(ctx, gateway.CheckoutRequest{
		OrderID:  payment.OrderID,
		Amount:   payment.Amount,
		Currency: payment.Currency,
		Customer: gateway.Customer{
			Name:  booking.ContactName,
			Email: booking.ContactEmail,
			Phone: deref(booking.ContactPhone),
		},
		Items:         checkoutItems(booking),
		ExpiryMinutes: minutesUntil(now, booking.ExpiresAt),
	})
	if err != nil {
		s.log.Error("Payment initiation failed",
			zap.Error(err),
			zap.String("payment_id", payment.ID.String()),
			zap.String("booking_id", bookingID.String()),
		)
		if _, serr := s.repo.Payment.Settle(ctx, payment.ID, repository.PaymentSettlement{Status: entity.PaymentStatusFailed}); serr != nil {
			s.log.Error("Failed to mark payment failed", zap.Error(serr), zap.String("payment_id", payment.ID.String()))
		}
		return nil, fmt.Errorf("%w: %v", ErrPaymentInitiationFailed, err)
	}

	if err := s.repo.Payment.SetCheckout(ctx, payment.ID, checkout.Token, checkout.RedirectURL); err != nil {
		s.log.Error("Failed to store checkout", zap.Error(err), zap.String("payment_id", payment.ID.String()))
		return nil, fmt.Errorf("store checkout: %w", err)
	}
	payment.SnapToken = &checkout.Token
	payment.RedirectURL = &checkout.RedirectURL

	s.log.Info("Payment initiated",
		zap.String("payment_id", payment.ID.String()),
		zap.String("booking_id", bookingID.String()),
		zap.String("order_id", payment.OrderID),
		zap.Float64("amount", payment.Amount),
	)

	return initResponse(payment), nil
}

// ==================== WEBHOOK ====================

func (s *paymentService) HandleWebhook(ctx context.Context, payload []byte) (*response.WebhookResponse, error) {
	n, err := s.gateway.ParseNotification(payload)
	if err != nil {
		metrics.IncWebhook(OutcomeRejected)
		s.log.Warn("Webhook rejected", zap.Error(err))
		return nil, fmt.Errorf("%w: %v", ErrWebhookValidationFailed, err)
	}

	outcome, err := s.settle(ctx, n)
	if err != nil {
		if errors.Is(err, ErrWebhookValidationFailed) {
			metrics.IncWebhook(OutcomeRejected)
		}
		return nil, err
	}

	metrics.IncWebhook(outcome)
	return &response.WebhookResponse{OrderID: n.OrderID, Outcome: outcome}, nil
}

// settle applies a provider status report. It is shared by the webhook and
// by Verify, and is safe to run any number of times for the same report.
func (s *paymentService) settle(ctx context.Context, n *gateway.Notification) (string, error) {
	log := s.log.With(
		zap.String("order_id", n.OrderID),
		zap.String("transaction_id", n.TransactionID),
		zap.String("provider_status", n.TransactionStatus),
	)

	payment, err := s.repo.Payment.FindByOrderID(ctx, n.OrderID)
	if err != nil {
		log.Error("Failed to find payment", zap.Error(err))
		return "", fmt.Errorf("find payment: %w", err)
	}
	if payment == nil {
		log.Warn("Notification for unknown order")
		return "", ErrPaymentNotFound
	}

	if n.Status == "" {
		log.Info("Ignoring unmapped provider status")
		return OutcomeIgnored, nil
	}
	if n.Status == entity.PaymentStatusPending {
		return OutcomePending, nil
	}

	expected := s.gateway.ChargedAmount(payment.Amount)
	if math.Abs(n.GrossAmount-expected) > 0.005 {
		log.Warn("Notification amount mismatch",
			zap.Float64("expected", expected),
			zap.Float64("reported", n.GrossAmount),
		)
		return "", fmt.Errorf("%w: amount mismatch", ErrWebhookValidationFailed)
	}

	txID := n.TransactionID
	if txID == "" {
		txID = n.OrderID
	}

	var (
		outcome string
		settled *entity.Payment
		booking *entity.Booking
	)
	err = s.repo.Tx.WithinTx(ctx, func(tx *repository.Repository) error {
		// 1. Dedup by (provider, transaction_id, status)
		recorded, err := tx.PaymentEvent.Record(ctx, &entity.PaymentEvent{
			BaseSimple:    entity.BaseSimple{ID: uuid.New(), CreatedAt: s.now()},
			PaymentID:     payment.ID,
			Provider:      payment.Provider,
			TransactionID: txID,
			Status:        n.Status,
			RawPayload:    n.Raw,
		})
		if err != nil {
			return err
		}
		if !recorded {
			outcome = OutcomeDuplicate
			return nil
		}

		// 2. Payment pending -> final
		settled, err = tx.Payment.Settle(ctx, payment.ID, repository.PaymentSettlement{
			Status:        n.Status,
			TransactionID: &txID,
			PaymentType:   optional(n.PaymentType),
			RawPayload:    n.Raw,
		})
		if err != nil {
			return err
		}
		if settled == nil {
			outcome = OutcomeAlreadySettled
			return nil
		}

		// 3. Booking ikut dalam transaksi yang sama
		switch n.Status {
		case entity.PaymentStatusPaid:
			booking, err = confirmBooking(ctx, tx, payment.BookingID)
			outcome = OutcomeConfirmed
		case entity.PaymentStatusFailed:
			booking, err = closeBooking(ctx, tx, payment.BookingID, entity.BookingStatusCancelled)
			outcome = OutcomeCancelled
		default:
			// expired: booking ditinggal untuk sweep
			outcome = OutcomePaymentExpired
		}
		if errors.Is(err, ErrStaleTransition) {
			outcome = OutcomeStaleBooking
			return nil
		}
		return err
	})
	if err != nil {
		log.Error("Failed to settle payment", zap.Error(err), zap.String("payment_id", payment.ID.String()))
		return "", fmt.Errorf("settle payment: %w", err)
	}

	switch outcome {
	case OutcomeConfirmed:
		metrics.IncTransition(string(entity.BookingStatusConfirmed))
		s.events.booking(ctx, EventBookingConfirmed, booking)
	case OutcomeCancelled:
		metrics.IncTransition(string(entity.BookingStatusCancelled))
		s.events.booking(ctx, EventBookingCancelled, booking)
	case OutcomeStaleBooking:
		if n.Status == entity.PaymentStatusPaid {
			// uang sudah masuk tapi booking sudah expired/cancelled
			log.Warn("Paid notification for closed booking, needs refund",
				zap.String("payment_id", payment.ID.String()),
				zap.String("booking_id", payment.BookingID.String()),
			)
		}
	}
	if settled != nil && settled.Status == entity.PaymentStatusFailed {
		s.events.paymentFailed(ctx, settled)
	}

	log.Info("Payment notification processed",
		zap.String("payment_id", payment.ID.String()),
		zap.String("status", string(n.Status)),
		zap.String("outcome", outcome),
	)
	return outcome, nil
}

// ==================== VERIFY ====================

func (s *paymentService) Verify(ctx context.Context, paymentID uuid.UUID, actor Actor) (*response.PaymentResponse, error) {
	payment, err := s.repo.Payment.FindByID(ctx, paymentID)
	if err != nil {
		s.log.Error("Failed to find payment", zap.Error(err), zap.String("payment_id", paymentID.String()))
		return nil, fmt.Errorf("find payment: %w", err)
	}
	if payment == nil {
		return nil, ErrPaymentNotFound
	}

	booking, err := s.repo.Booking.FindByID(ctx, payment.BookingID)
	if err != nil {
		return nil, fmt.Errorf("find booking: %w", err)
	}
	if booking == nil {
		return nil, ErrBookingNotFound
	}
	if !actor.owns(booking.UserID) {
		return nil, ErrForbidden
	}

	if payment.Status == entity.PaymentStatusPending {
		if s.poll(ctx, payment) {
			if payment, err = s.repo.Payment.FindByID(ctx, paymentID); err != nil {
				return nil, fmt.Errorf("reload payment: %w", err)
			}
			if booking, err = s.repo.Booking.FindByID(ctx, payment.BookingID); err != nil {
				return nil, fmt.Errorf("reload booking: %w", err)
			}
		}
	}

	resp := response.PaymentToResponse(payment)
	resp.BookingStatus = booking.Status
	return &resp, nil
}

// poll asks the provider for a pending payment's status and settles it.
// Provider errors leave the stored status as the answer.
func (s *paymentService) poll(ctx context.Context, payment *entity.Payment) bool {
	n, err := s.gateway.GetStatus(ctx, payment.OrderID)
	if errors.Is(err, gateway.ErrTransactionNotFound) {
		// customer belum bayar
		return false
	}
	if err != nil {
		s.log.Warn("Status poll failed", zap.Error(err), zap.String("payment_id", payment.ID.String()))
		return false
	}

	outcome, err := s.settle(ctx, n)
	if err != nil {
		s.log.Warn("Polled status not applied", zap.Error(err), zap.String("payment_id", payment.ID.String()))
		return false
	}
	return outcome != OutcomePending && outcome != OutcomeIgnored
}

// ==================== HELPERS ====================

func initResponse(p *entity.Payment) *response.PaymentInitResponse {
	return &response.PaymentInitResponse{
		PaymentID:   p.ID.String(),
		BookingID:   p.BookingID.String(),
		OrderID:     p.OrderID,
		Provider:    p.Provider,
		Token:       deref(p.SnapToken),
		RedirectURL: deref(p.RedirectURL),
		Amount:      p.Amount,
		Currency:    p.Currency,
		Status:      p.Status,
	}
}

// checkoutItems mirrors the price snapshot so the provider page shows the same lines.
func checkoutItems(b *entity.Booking) []gateway.Item {
	items := make([]gateway.Item, 0, len(b.PricingBreakdown.Lines))
	for _, line := range b.PricingBreakdown.Lines {
		name := line.Reference
		switch line.Kind {
		case LineParticipant:
			name = "Participant (" + line.Reference + ")"
		case LineAddon:
			name = "Add-on"
		case LineDiscount:
			name = "Discount " + line.Reference
		}
		items = append(items, gateway.Item{
			ID:       line.Kind + ":" + line.Reference,
			Name:     name,
			Price:    line.UnitPrice,
			Quantity: line.Quantity,
		})
	}
	return items
}

func minutesUntil(now, t time.Time) int {
	m := int(math.Ceil(t.Sub(now).Minutes()))
	if m < 1 {
		return 1
	}
	return m
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

func optional(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
