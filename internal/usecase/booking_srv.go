package usecase

import (
	"context"
	"errors"
	"fmt"

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

type BookingService interface {
	// Customer endpoints (butuh auth)
	CreateBooking(ctx context.Context, userID uuid.UUID, req *request.CreateBookingRequest) (*response.BookingResponse, error)
	GetBooking(ctx context.Context, bookingID uuid.UUID, actor Actor) (*response.BookingResponse, error)
	GetUserBookings(ctx context.Context, userID uuid.UUID, req *request.PaginatedRequest) (*response.PaginatedResponse[response.BookingResponse], error)
	CancelBooking(ctx context.Context, bookingID uuid.UUID, actor Actor) (*response.BookingResponse, error)

	// Admin endpoints
	GetAllBookings(ctx context.Context, req *request.BookingListRequest) (*response.PaginatedResponse[response.BookingResponse], error)

	// ReleaseSlots returns a closed booking's slots to the ledger. Repeated calls are no-ops.
	ReleaseSlots(ctx context.Context, bookingID uuid.UUID) (bool, error)
}

// Actor is the authenticated caller of an owner-or-admin operation.
type Actor struct {
	UserID  uuid.UUID
	IsAdmin bool
}

func (a Actor) owns(userID uuid.UUID) bool {
	return a.IsAdmin || a.UserID == userID
}

type bookingService struct {
	repo    *repository.Repository
	pricing PricingService
	gateway gateway.Gateway
	config  *utils.Config
	events  *eventEmitter
	log     *zap.Logger
	now     clock
}

func NewBookingService(
	repo *repository.Repository,
	pricing PricingService,
	gw gateway.Gateway,
	config *utils.Config,
	events *eventEmitter,
	log *zap.Logger,
) BookingService {
	return &bookingService{
		repo:    repo,
		pricing: pricing,
		gateway: gw,
		config:  config,
		events:  events,
		log:     log.With(zap.String("service", "booking")),
		now:     systemClock,
	}
}

func (s *bookingService) CreateBooking(ctx context.Context, userID uuid.UUID, req *request.CreateBookingRequest) (*response.BookingResponse, error) {
	// 1. Validasi input
	if errs := utils.ValidateStruct(req); len(errs) > 0 {
		s.log.Warn("Create booking validation failed", zap.Any("errors", errs))
		return nil, validationError(errs)
	}

	tourID, err := uuid.Parse(req.TourID)
	if err != nil {
		return nil, fieldError("tour_id", "Must be a valid UUID")
	}
	now := s.now()
	date, err := parseBookingDate(req.Date, now)
	if err != nil {
		return nil, err
	}
	addonIDs, err := parseUUIDs("addon_ids", req.AddonIDs)
	if err != nil {
		return nil, err
	}
	participants := toParticipants(req.Participants)
	headCount := ParticipantTotal(participants)

	// 2. Tour harus ada dan published
	tour, err := s.repo.Tour.FindByID(ctx, tourID)
	if err != nil {
		s.log.Error("Failed to find tour", zap.Error(err), zap.String("tour_id", tourID.String()))
		return nil, fmt.Errorf("find tour: %w", err)
	}
	if tour == nil {
		return nil, ErrTourNotFound
	}
	if !tour.IsPublished {
		return nil, ErrTourUnavailable
	}
	if tour.MaxParticipants > 0 && headCount > tour.MaxParticipants {
		return nil, fieldError("participants", fmt.Sprintf("This tour takes at most %d participants per booking", tour.MaxParticipants))
	}

	// 3. Harga selalu dihitung ulang di server
	breakdown, err := s.pricing.PriceFor(ctx, tour, date, participants, addonIDs, req.CouponCode)
	if err != nil {
		return nil, err
	}
	if req.DisplayedTotal != nil && utils.RoundMoney(*req.DisplayedTotal) != breakdown.Total {
		s.log.Info("Client total differs from server price",
			zap.String("tour_id", tourID.String()),
			zap.Float64("client_total", *req.DisplayedTotal),
			zap.Float64("server_total", breakdown.Total),
		)
	}
	// Total yang tidak bisa ditagih provider tidak boleh menahan slot
	if s.gateway.ChargedAmount(breakdown.Total) < 1 {
		s.log.Info("Booking total below chargeable minimum",
			zap.String("tour_id", tourID.String()),
			zap.Float64("total", breakdown.Total),
		)
		return nil, ErrNothingToCharge
	}

	booking := &entity.Booking{
		BaseNoDelete: entity.BaseNoDelete{
			ID:        uuid.New(),
			CreatedAt: now,
			UpdatedAt: now,
		},
		OrderID:          utils.GenerateOrderID(now),
		TourID:           tour.ID,
		UserID:           userID,
		BookingDate:      date,
		ParticipantCount: headCount,
		Participants:     participants,
		AddonIDs:         addonIDs,
		PricingBreakdown: *breakdown,
		TotalAmount:      breakdown.Total,
		Status:           entity.BookingStatusAwaitingPayment,
		ContactName:      req.ContactName,
		ContactEmail:     req.ContactEmail,
		ContactPhone:     req.ContactPhone,
		SpecialRequests:  req.SpecialRequests,
		ExpiresAt:        now.Add(s.config.Booking.ReservationTTL),
	}

	// 4. Reserve slot + insert booking dalam satu transaksi
	err = s.repo.Tx.WithinTx(ctx, func(tx *repository.Repository) error {
		return s.reserve(ctx, tx, tour, booking)
	})
	switch {
	case errors.Is(err, ErrInsufficientCapacity), errors.Is(err, ErrInventoryNotConfigured):
		metrics.IncReservation("insufficient_capacity")
		s.log.Info("Reservation rejected",
			zap.String("tour_id", tour.ID.String()),
			zap.String("date", utils.FormatDate(date)),
			zap.Int("requested", headCount),
			zap.Error(err),
		)
		return nil, err
	case err != nil:
		metrics.IncReservation("error")
		s.log.Error("Failed to create booking", zap.Error(err), zap.String("tour_id", tour.ID.String()))
		return nil, fmt.Errorf("create booking: %w", err)
	}

	metrics.IncReservation("reserved")
	s.log.Info("Booking created",
		zap.String("booking_id", booking.ID.String()),
		zap.String("order_id", booking.OrderID),
		zap.String("tour_id", tour.ID.String()),
		zap.String("date", utils.FormatDate(date)),
		zap.Int("participants", headCount),
		zap.Float64("total", booking.TotalAmount),
	)

	resp := response.BookingToResponse(booking)
	return &resp, nil
}

// reserve takes the slots with a single conditional increment, then inserts the booking.
func (s *bookingService) reserve(ctx context.Context, tx *repository.Repository, tour *entity.Tour, booking *entity.Booking) error {
	if !s.config.Booking.RequireInventory {
		if err := tx.Inventory.EnsureDefault(ctx, tour.ID, booking.BookingDate, tour.MaxParticipants); err != nil {
			return err
		}
	}

	ok, err := tx.Inventory.Reserve(ctx, tour.ID, booking.BookingDate, booking.ParticipantCount)
	if err != nil {
		return err
	}
	if !ok {
		inv, err := tx.Inventory.Find(ctx, tour.ID, booking.BookingDate)
		if err != nil {
			return err
		}
		if inv == nil {
			return ErrInventoryNotConfigured
		}
		return ErrInsufficientCapacity
	}

	return tx.Booking.Create(ctx, booking)
}

func (s *bookingService) GetBooking(ctx context.Context, bookingID uuid.UUID, actor Actor) (*response.BookingResponse, error) {
	booking, err := s.findOwned(ctx, bookingID, actor)
	if err != nil {
		return nil, err
	}

	resp := response.BookingToResponse(booking)
	return &resp, nil
}

func (s *bookingService) GetUserBookings(ctx context.Context, userID uuid.UUID, req *request.PaginatedRequest) (*response.PaginatedResponse[response.BookingResponse], error) {
	normalizePage(req)

	bookings, err := s.repo.Booking.FindByUserID(ctx, userID, req.Limit(), req.Offset())
	if err != nil {
		s.log.Error("Failed to get user bookings", zap.Error(err), zap.String("user_id", userID.String()))
		return nil, fmt.Errorf("list bookings: %w", err)
	}

	total, err := s.repo.Booking.CountByUserID(ctx, userID)
	if err != nil {
		s.log.Error("Failed to count user bookings", zap.Error(err), zap.String("user_id", userID.String()))
		return nil, fmt.Errorf("count bookings: %w", err)
	}

	return response.NewPaginatedResponse(toBookingResponses(bookings), req.Page, req.PerPage, total), nil
}

func (s *bookingService) GetAllBookings(ctx context.Context, req *request.BookingListRequest) (*response.PaginatedResponse[response.BookingResponse], error) {
	if errs := utils.ValidateStruct(req); len(errs) > 0 {
		return nil, validationError(errs)
	}
	normalizePage(&req.PaginatedRequest)

	bookings, err := s.repo.Booking.FindAll(ctx, req.Status, req.Limit(), req.Offset())
	if err != nil {
		s.log.Error("Failed to list bookings", zap.Error(err))
		return nil, fmt.Errorf("list bookings: %w", err)
	}

	total, err := s.repo.Booking.CountAll(ctx, req.Status)
	if err != nil {
		s.log.Error("Failed to count bookings", zap.Error(err))
		return nil, fmt.Errorf("count bookings: %w", err)
	}

	return response.NewPaginatedResponse(toBookingResponses(bookings), req.Page, req.PerPage, total), nil
}

func (s *bookingService) CancelBooking(ctx context.Context, bookingID uuid.UUID, actor Actor) (*response.BookingResponse, error) {
	booking, err := s.findOwned(ctx, bookingID, actor)
	if err != nil {
		return nil, err
	}
	if booking.Status != entity.BookingStatusAwaitingPayment {
		return nil, fmt.Errorf("%w: booking is %s", ErrInvalidState, booking.Status)
	}

	var cancelled *entity.Booking
	err = s.repo.Tx.WithinTx(ctx, func(tx *repository.Repository) error {
		cancelled, err = closeBooking(ctx, tx, bookingID, entity.BookingStatusCancelled)
		return err
	})
	if errors.Is(err, ErrStaleTransition) {
		// webhook atau sweep sudah menang duluan
		s.log.Info("Cancel lost race", zap.String("booking_id", bookingID.String()))
		return nil, fmt.Errorf("%w: booking was updated concurrently", ErrInvalidState)
	}
	if err != nil {
		s.log.Error("Failed to cancel booking", zap.Error(err), zap.String("booking_id", bookingID.String()))
		return nil, fmt.Errorf("cancel booking: %w", err)
	}

	metrics.IncTransition(string(entity.BookingStatusCancelled))
	s.log.Info("Booking cancelled",
		zap.String("booking_id", bookingID.String()),
		zap.String("by", actor.UserID.String()),
		zap.Bool("admin", actor.IsAdmin),
	)
	s.events.booking(ctx, EventBookingCancelled, cancelled)

	resp := response.BookingToResponse(cancelled)
	return &resp, nil
}

func (s *bookingService) ReleaseSlots(ctx context.Context, bookingID uuid.UUID) (bool, error) {
	var released bool
	err := s.repo.Tx.WithinTx(ctx, func(tx *repository.Repository) error {
		booking, err := tx.Booking.FindByID(ctx, bookingID)
		if err != nil {
			return err
		}
		if booking == nil {
			return ErrBookingNotFound
		}
		released, err = releaseSlots(ctx, tx, booking)
		return err
	})
	if err != nil {
		return false, err
	}

	if !released {
		s.log.Debug("Release was a no-op", zap.String("booking_id", bookingID.String()))
	}
	return released, nil
}

// ==================== HELPER METHODS ====================

func (s *bookingService) findOwned(ctx context.Context, bookingID uuid.UUID, actor Actor) (*entity.Booking, error) {
	booking, err := s.repo.Booking.FindByID(ctx, bookingID)
	if err != nil {
		s.log.Error("Failed to find booking", zap.Error(err), zap.String("booking_id", bookingID.String()))
		return nil, fmt.Errorf("find booking: %w", err)
	}
	if booking == nil {
		return nil, ErrBookingNotFound
	}
	if !actor.owns(booking.UserID) {
		s.log.Warn("Booking access denied",
			zap.String("booking_id", bookingID.String()),
			zap.String("user_id", actor.UserID.String()),
		)
		return nil, ErrForbidden
	}
	return booking, nil
}

func toBookingResponses(bookings []*entity.Booking) []response.BookingResponse {
	data := make([]response.BookingResponse, 0, len(bookings))
	for _, b := range bookings {
		data = append(data, response.BookingToResponse(b))
	}
	return data
}
