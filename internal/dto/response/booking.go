package response

import (
	"time"

	"tour-booking/internal/data/entity"
	"tour-booking/pkg/utils"
)

type BookingResponse struct {
	ID               string                `json:"id"`
	OrderID          string                `json:"order_id"`
	TourID           string                `json:"tour_id"`
	UserID           string                `json:"user_id"`
	BookingDate      string                `json:"booking_date"`
	ParticipantCount int                   `json:"participant_count"`
	Participants     []entity.Participant  `json:"participants"`
	PricingBreakdown entity.PriceBreakdown `json:"pricing_breakdown"`
	TotalAmount      float64               `json:"total_amount"`
	Status           entity.BookingStatus  `json:"status"`
	ContactName      string                `json:"contact_name"`
	ContactEmail     string                `json:"contact_email"`
	ContactPhone     *string               `json:"contact_phone,omitempty"`
	SpecialRequests  *string               `json:"special_requests,omitempty"`
	ExpiresAt        *time.Time            `json:"expires_at,omitempty"`
	ConfirmedAt      *time.Time            `json:"confirmed_at,omitempty"`
	CancelledAt      *time.Time            `json:"cancelled_at,omitempty"`
	CreatedAt        time.Time             `json:"created_at"`
}

func BookingToResponse(b *entity.Booking) BookingResponse {
	resp := BookingResponse{
		ID:               b.ID.String(),
		OrderID:          b.OrderID,
		TourID:           b.TourID.String(),
		UserID:           b.UserID.String(),
		BookingDate:      utils.FormatDate(b.BookingDate),
		ParticipantCount: b.ParticipantCount,
		Participants:     b.Participants,
		PricingBreakdown: b.PricingBreakdown,
		TotalAmount:      b.TotalAmount,
		Status:           b.Status,
		ContactName:      b.ContactName,
		ContactEmail:     b.ContactEmail,
		ContactPhone:     b.ContactPhone,
		SpecialRequests:  b.SpecialRequests,
		ConfirmedAt:      b.ConfirmedAt,
		CancelledAt:      b.CancelledAt,
		CreatedAt:        b.CreatedAt,
	}

	// expires_at hanya relevan selama menunggu pembayaran
	if b.Status == entity.BookingStatusAwaitingPayment {
		expiresAt := b.ExpiresAt
		resp.ExpiresAt = &expiresAt
	}

	return resp
}
