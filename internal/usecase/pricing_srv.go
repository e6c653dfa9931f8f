package usecase

import (
	"context"
	"fmt"
	"strings"
	"time"

	"tour-booking/internal/data/entity"
	"tour-booking/internal/data/repository"
	"tour-booking/internal/dto/request"
	"tour-booking/pkg/utils"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

type PricingService interface {
	// Quote prices a prospective booking for display; it reserves nothing.
	Quote(ctx context.Context, tourID uuid.UUID, req *request.QuoteRequest) (*entity.PriceBreakdown, error)
	PriceFor(ctx context.Context, tour *entity.Tour, date time.Time, participants []entity.Participant, addonIDs []uuid.UUID, couponCode *string) (*entity.PriceBreakdown, error)
}

type pricingService struct {
	repo   *repository.Repository
	config *utils.Config
	log    *zap.Logger
	now    clock
}

func NewPricingService(repo *repository.Repository, config *utils.Config, log *zap.Logger) PricingService {
	return &pricingService{
		repo:   repo,
		config: config,
		log:    log.With(zap.String("service", "pricing")),
		now:    systemClock,
	}
}

func (s *pricingService) Quote(ctx context.Context, tourID uuid.UUID, req *request.QuoteRequest) (*entity.PriceBreakdown, error) {
	if errs := utils.ValidateStruct(req); len(errs) > 0 {
		return nil, validationError(errs)
	}

	date, err := parseBookingDate(req.Date, s.now())
	if err != nil {
		return nil, err
	}
	participants := toParticipants(req.Participants)
	addonIDs, err := parseUUIDs("addon_ids", req.AddonIDs)
	if err != nil {
		return nil, err
	}

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

	return s.PriceFor(ctx, tour, date, participants, addonIDs, req.CouponCode)
}

func (s *pricingService) PriceFor(
	ctx context.Context,
	tour *entity.Tour,
	date time.Time,
	participants []entity.Participant,
	addonIDs []uuid.UUID,
	couponCode *string,
) (*entity.PriceBreakdown, error) {
	rules, err := s.repo.PricingRule.FindCovering(ctx, tour.ID, date)
	if err != nil {
		return nil, fmt.Errorf("load pricing rules: %w", err)
	}

	var addons []*entity.Addon
	if len(addonIDs) > 0 {
		addons, err = s.repo.Addon.FindByIDs(ctx, addonIDs)
		if err != nil {
			return nil, fmt.Errorf("load add-ons: %w", err)
		}
	}

	var coupon *entity.Coupon
	if couponCode != nil && strings.TrimSpace(*couponCode) != "" {
		coupon, err = s.repo.Coupon.FindByCode(ctx, *couponCode)
		if err != nil {
			return nil, fmt.Errorf("load coupon: %w", err)
		}
	}

	breakdown, err := CalculatePrice(PricingInput{
		Tour:         tour,
		Date:         date,
		Participants: participants,
		Rules:        rules,
		AddonIDs:     addonIDs,
		Addons:       addons,
		CouponCode:   couponCode,
		Coupon:       coupon,
		Currency:     s.config.Booking.Currency,
		At:           s.now(),
	})
	if err != nil {
		s.log.Info("Pricing rejected",
			zap.String("tour_id", tour.ID.String()),
			zap.String("date", utils.FormatDate(date)),
			zap.Error(err),
		)
		return nil, err
	}

	return breakdown, nil
}

// ==================== HELPERS ====================

// parseBookingDate rejects dates before today (UTC).
func parseBookingDate(value string, now time.Time) (time.Time, error) {
	date, err := utils.ParseDate(value)
	if err != nil {
		return time.Time{}, fieldError("date", "Must be a date in format 2006-01-02")
	}

	today := now.UTC().Truncate(24 * time.Hour)
	if date.Before(today) {
		return time.Time{}, fieldError("date", "Date must not be in the past")
	}
	return date, nil
}

func toParticipants(reqs []request.ParticipantRequest) []entity.Participant {
	participants := make([]entity.Participant, 0, len(reqs))
	for _, p := range reqs {
		participants = append(participants, entity.Participant{
			Type:  entity.ParticipantType(p.Type),
			Count: p.Count,
		})
	}
	return participants
}

func parseUUIDs(field string, values []string) ([]uuid.UUID, error) {
	ids := make([]uuid.UUID, 0, len(values))
	for _, v := range values {
		id, err := uuid.Parse(v)
		if err != nil {
			return nil, fieldError(field, "Must be a valid UUID")
		}
		ids = append(ids, id)
	}
	return ids, nil
}
