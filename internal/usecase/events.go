package usecase

import (
	"context"
	"time"

	"tour-booking/internal/data/entity"
	"tour-booking/pkg/mq"
	"tour-booking/pkg/utils"

	"go.uber.org/zap"
)

// Routing keys on the booking exchange.
const (
	EventBookingConfirmed = "booking.confirmed"
	EventBookingCancelled = "booking.cancelled"
	EventBookingExpired   = "booking.expired"
	EventPaymentFailed    = "payment.failed"

	eventVersion = 1
)

type Event struct {
	Event      string    `json:"event"`
	Version    int       `json:"version"`
	OccurredAt time.Time `json:"occurred_at"`
	Data       any       `json:"data"`
}

type BookingEventData struct {
	BookingID        string               `json:"booking_id"`
	OrderID          string               `json:"order_id"`
	TourID           string               `json:"tour_id"`
	UserID           string               `json:"user_id"`
	BookingDate      string               `json:"booking_date"`
	ParticipantCount int                  `json:"participant_count"`
	TotalAmount      float64              `json:"total_amount"`
	Currency         string               `json:"currency"`
	Status           entity.BookingStatus `json:"status"`
}

type PaymentEventData struct {
	PaymentID     string               `json:"payment_id"`
	BookingID     string               `json:"booking_id"`
	OrderID       string               `json:"order_id"`
	TransactionID *string              `json:"transaction_id,omitempty"`
	Amount        float64              `json:"amount"`
	Status        entity.PaymentStatus `json:"status"`
}

// eventEmitter publishes after commit. A failed publish is logged and never
// undoes the state change it describes.
type eventEmitter struct {
	pub     mq.Publisher
	log     *zap.Logger
	timeout time.Duration
}

func newEventEmitter(pub mq.Publisher, log *zap.Logger) *eventEmitter {
	if pub == nil {
		pub = mq.NopPublisher{}
	}
	return &eventEmitter{
		pub:     pub,
		log:     log.With(zap.String("component", "events")),
		timeout: 5 * time.Second,
	}
}

func (e *eventEmitter) emit(ctx context.Context, key string, data any) {
	// request bisa sudah selesai, event tetap dikirim
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), e.timeout)
	defer cancel()

	ev := Event{
		Event:      key,
		Version:    eventVersion,
		OccurredAt: time.Now().UTC(),
		Data:       data,
	}
	if err := e.pub.PublishJSON(ctx, key, ev); err != nil {
		e.log.Error("Failed to publish event", zap.String("event", key), zap.Error(err))
	}
}

func (e *eventEmitter) booking(ctx context.Context, key string, b *entity.Booking) {
	e.emit(ctx, key, BookingEventData{
		BookingID:        b.ID.String(),
		OrderID:          b.OrderID,
		TourID:           b.TourID.String(),
		UserID:           b.UserID.String(),
		BookingDate:      utils.FormatDate(b.BookingDate),
		ParticipantCount: b.ParticipantCount,
		TotalAmount:      b.TotalAmount,
		Currency:         b.PricingBreakdown.Currency,
		Status:           b.Status,
	})
}

func (e *eventEmitter) paymentFailed(ctx context.Context, p *entity.Payment) {
	e.emit(ctx, EventPaymentFailed, PaymentEventData{
		PaymentID:     p.ID.String(),
		BookingID:     p.BookingID.String(),
		OrderID:       p.OrderID,
		TransactionID: p.TransactionID,
		Amount:        p.Amount,
		Status:        p.Status,
	})
}
