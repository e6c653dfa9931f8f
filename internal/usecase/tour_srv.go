package usecase

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"tour-booking/internal/data/entity"
	"tour-booking/internal/data/repository"
	"tour-booking/internal/dto/request"
	"tour-booking/internal/dto/response"
	"tour-booking/pkg/utils"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// maxAvailabilityDays bounds one availability query.
const maxAvailabilityDays = 92

type TourService interface {
	// Public endpoints
	ListTours(ctx context.Context, req *request.TourListRequest, publishedOnly bool) (*response.PaginatedResponse[response.TourResponse], error)
	GetTour(ctx context.Context, tourID uuid.UUID, includeUnpublished bool) (*response.TourDetailResponse, error)
	GetAvailability(ctx context.Context, tourID uuid.UUID, req *request.AvailabilityRequest) ([]response.InventoryResponse, error)

	// Admin endpoints
	CreateTour(ctx context.Context, operatorID uuid.UUID, req *request.CreateTourRequest) (*response.TourResponse, error)
	UpdateTour(ctx context.Context, tourID uuid.UUID, req *request.UpdateTourRequest) (*response.TourResponse, error)
	DeleteTour(ctx context.Context, tourID uuid.UUID) error
	UpsertInventory(ctx context.Context, tourID uuid.UUID, req *request.UpsertInventoryRequest) (*response.InventoryResponse, error)

	CreatePricingRule(ctx context.Context, tourID uuid.UUID, req *request.CreatePricingRuleRequest) (*response.PricingRuleResponse, error)
	ListPricingRules(ctx context.Context, tourID uuid.UUID) ([]response.PricingRuleResponse, error)
	DeletePricingRule(ctx context.Context, tourID, ruleID uuid.UUID) error

	CreateAddon(ctx context.Context, tourID uuid.UUID, req *request.CreateAddonRequest) (*response.AddonResponse, error)
	ListAddons(ctx context.Context, tourID uuid.UUID) ([]response.AddonResponse, error)
	SetAddonActive(ctx context.Context, tourID, addonID uuid.UUID, active bool) error

	CreateCoupon(ctx context.Context, req *request.CreateCouponRequest) (*response.CouponResponse, error)
	ListCoupons(ctx context.Context, req *request.PaginatedRequest) ([]response.CouponResponse, error)
	SetCouponActive(ctx context.Context, code string, active bool) error
}

type tourService struct {
	repo *repository.Repository
	log  *zap.Logger
	now  clock
}

func NewTourService(repo *repository.Repository, log *zap.Logger) TourService {
	return &tourService{
		repo: repo,
		log:  log.With(zap.String("service", "tour")),
		now:  systemClock,
	}
}

// ==================== CATALOG ====================

func (s *tourService) ListTours(ctx context.Context, req *request.TourListRequest, publishedOnly bool) (*response.PaginatedResponse[response.TourResponse], error) {
	normalizePage(&req.PaginatedRequest)
	if errs := utils.ValidateStruct(req); len(errs) > 0 {
		return nil, validationError(errs)
	}

	filter := repository.TourFilter{
		Search:        strings.TrimSpace(req.Search),
		Location:      strings.TrimSpace(req.Location),
		Difficulty:    req.Difficulty,
		PublishedOnly: publishedOnly,
	}

	tours, err := s.repo.Tour.FindAll(ctx, filter, req.Limit(), req.Offset())
	if err != nil {
		s.log.Error("Failed to list tours", zap.Error(err))
		return nil, fmt.Errorf("list tours: %w", err)
	}
	total, err := s.repo.Tour.Count(ctx, filter)
	if err != nil {
		s.log.Error("Failed to count tours", zap.Error(err))
		return nil, fmt.Errorf("count tours: %w", err)
	}

	data := make([]response.TourResponse, 0, len(tours))
	for _, t := range tours {
		data = append(data, response.TourToResponse(t))
	}
	return response.NewPaginatedResponse(data, req.Page, req.PerPage, total), nil
}

func (s *tourService) GetTour(ctx context.Context, tourID uuid.UUID, includeUnpublished bool) (*response.TourDetailResponse, error) {
	tour, err := s.findTour(ctx, tourID)
	if err != nil {
		return nil, err
	}
	if !tour.IsPublished && !includeUnpublished {
		return nil, ErrTourNotFound
	}

	addons, err := s.repo.Addon.FindByTourID(ctx, tourID, !includeUnpublished)
	if err != nil {
		s.log.Error("Failed to list add-ons", zap.Error(err), zap.String("tour_id", tourID.String()))
		return nil, fmt.Errorf("list add-ons: %w", err)
	}

	detail := &response.TourDetailResponse{
		TourResponse: response.TourToResponse(tour),
		Addons:       make([]response.AddonResponse, 0, len(addons)),
	}
	for _, a := range addons {
		detail.Addons = append(detail.Addons, response.AddonToResponse(a))
	}
	return detail, nil
}

func (s *tourService) GetAvailability(ctx context.Context, tourID uuid.UUID, req *request.AvailabilityRequest) ([]response.InventoryResponse, error) {
	if errs := utils.ValidateStruct(req); len(errs) > 0 {
		return nil, validationError(errs)
	}
	from, to, err := parseRange(req.From, req.To)
	if err != nil {
		return nil, err
	}
	if to.Sub(from) > maxAvailabilityDays*24*time.Hour {
		return nil, fieldError("to", fmt.Sprintf("Range must not exceed %d days", maxAvailabilityDays))
	}

	if _, err := s.findTour(ctx, tourID); err != nil {
		return nil, err
	}

	records, err := s.repo.Inventory.FindRange(ctx, tourID, from, to)
	if err != nil {
		s.log.Error("Failed to load availability", zap.Error(err), zap.String("tour_id", tourID.String()))
		return nil, fmt.Errorf("load availability: %w", err)
	}

	out := make([]response.InventoryResponse, 0, len(records))
	for _, r := range records {
		out = append(out, response.InventoryToResponse(r))
	}
	return out, nil
}

// ==================== TOUR ADMIN ====================

func (s *tourService) CreateTour(ctx context.Context, operatorID uuid.UUID, req *request.CreateTourRequest) (*response.TourResponse, error) {
	if errs := utils.ValidateStruct(req); len(errs) > 0 {
		s.log.Warn("Create tour validation failed", zap.Any("errors", errs))
		return nil, validationError(errs)
	}

	now := s.now()
	tour := &entity.Tour{
		Base: entity.Base{
			ID:        uuid.New(),
			CreatedAt: now,
			UpdatedAt: now,
		},
		OperatorID:        operatorID,
		Title:             req.Title,
		Description:       req.Description,
		Location:          req.Location,
		DurationInMinutes: req.DurationInMinutes,
		Difficulty:        entity.TourDifficulty(req.Difficulty),
		BasePrice:         utils.RoundMoney(req.BasePrice),
		ParticipantPrices: toPriceTable(req.ParticipantPrices),
		MaxParticipants:   req.MaxParticipants,
		IsPublished:       req.IsPublished,
	}

	if err := s.repo.Tour.Create(ctx, tour); err != nil {
		s.log.Error("Failed to create tour", zap.Error(err))
		return nil, fmt.Errorf("create tour: %w", err)
	}

	s.log.Info("Tour created", zap.String("tour_id", tour.ID.String()), zap.String("title", tour.Title))
	resp := response.TourToResponse(tour)
	return &resp, nil
}

func (s *tourService) UpdateTour(ctx context.Context, tourID uuid.UUID, req *request.UpdateTourRequest) (*response.TourResponse, error) {
	if errs := utils.ValidateStruct(req); len(errs) > 0 {
		return nil, validationError(errs)
	}

	tour, err := s.findTour(ctx, tourID)
	if err != nil {
		return nil, err
	}

	// Update fields yang dikirim saja
	if req.Title != nil {
		tour.Title = *req.Title
	}
	if req.Description != nil {
		tour.Description = req.Description
	}
	if req.Location != nil {
		tour.Location = *req.Location
	}
	if req.DurationInMinutes != nil {
		tour.DurationInMinutes = *req.DurationInMinutes
	}
	if req.Difficulty != nil {
		tour.Difficulty = entity.TourDifficulty(*req.Difficulty)
	}
	if req.BasePrice != nil {
		tour.BasePrice = utils.RoundMoney(*req.BasePrice)
	}
	if req.ParticipantPrices != nil {
		tour.ParticipantPrices = toPriceTable(req.ParticipantPrices)
	}
	if req.MaxParticipants != nil {
		tour.MaxParticipants = *req.MaxParticipants
	}
	if req.IsPublished != nil {
		tour.IsPublished = *req.IsPublished
	}
	tour.UpdatedAt = s.now()

	if err := s.repo.Tour.Update(ctx, tour); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrTourNotFound
		}
		s.log.Error("Failed to update tour", zap.Error(err), zap.String("tour_id", tourID.String()))
		return nil, fmt.Errorf("update tour: %w", err)
	}

	s.log.Info("Tour updated", zap.String("tour_id", tourID.String()))
	resp := response.TourToResponse(tour)
	return &resp, nil
}

func (s *tourService) DeleteTour(ctx context.Context, tourID uuid.UUID) error {
	if err := s.repo.Tour.Delete(ctx, tourID); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return ErrTourNotFound
		}
		s.log.Error("Failed to delete tour", zap.Error(err), zap.String("tour_id", tourID.String()))
		return fmt.Errorf("delete tour: %w", err)
	}

	s.log.Info("Tour deleted", zap.String("tour_id", tourID.String()))
	return nil
}

func (s *tourService) UpsertInventory(ctx context.Context, tourID uuid.UUID, req *request.UpsertInventoryRequest) (*response.InventoryResponse, error) {
	if errs := utils.ValidateStruct(req); len(errs) > 0 {
		return nil, validationError(errs)
	}
	date, err := utils.ParseDate(req.Date)
	if err != nil {
		return nil, fieldError("date", "Must be a date in format 2006-01-02")
	}

	if _, err := s.findTour(ctx, tourID); err != nil {
		return nil, err
	}

	inv, err := s.repo.Inventory.Upsert(ctx, &entity.TourInventory{TourID: tourID, Date: date, TotalSlots: req.TotalSlots})
	if errors.Is(err, repository.ErrCapacityBelowBooked) {
		return nil, fieldError("total_slots", "Capacity cannot be lower than slots already booked")
	}
	if err != nil {
		s.log.Error("Failed to upsert inventory", zap.Error(err), zap.String("tour_id", tourID.String()))
		return nil, fmt.Errorf("upsert inventory: %w", err)
	}

	s.log.Info("Inventory updated",
		zap.String("tour_id", tourID.String()),
		zap.String("date", req.Date),
		zap.Int("total_slots", inv.TotalSlots),
		zap.Int("booked_slots", inv.BookedSlots),
	)
	resp := response.InventoryToResponse(inv)
	return &resp, nil
}

// ==================== PRICING RULES ====================

func (s *tourService) CreatePricingRule(ctx context.Context, tourID uuid.UUID, req *request.CreatePricingRuleRequest) (*response.PricingRuleResponse, error) {
	if errs := utils.ValidateStruct(req); len(errs) > 0 {
		return nil, validationError(errs)
	}
	start, end, err := parseRange(req.StartDate, req.EndDate)
	if err != nil {
		return nil, err
	}
	if _, err := s.findTour(ctx, tourID); err != nil {
		return nil, err
	}

	now := s.now()
	rule := &entity.PricingRule{
		BaseNoDelete: entity.BaseNoDelete{ID: uuid.New(), CreatedAt: now, UpdatedAt: now},
		TourID:       tourID,
		Name:         req.Name,
		StartDate:    start,
		EndDate:      end,
		Prices:       toPriceTable(req.Prices),
	}
	if err := s.repo.PricingRule.Create(ctx, rule); err != nil {
		s.log.Error("Failed to create pricing rule", zap.Error(err), zap.String("tour_id", tourID.String()))
		return nil, fmt.Errorf("create pricing rule: %w", err)
	}

	resp := response.PricingRuleToResponse(rule)
	return &resp, nil
}

func (s *tourService) ListPricingRules(ctx context.Context, tourID uuid.UUID) ([]response.PricingRuleResponse, error) {
	rules, err := s.repo.PricingRule.FindByTourID(ctx, tourID)
	if err != nil {
		return nil, fmt.Errorf("list pricing rules: %w", err)
	}

	out := make([]response.PricingRuleResponse, 0, len(rules))
	for _, r := range rules {
		out = append(out, response.PricingRuleToResponse(r))
	}
	return out, nil
}

func (s *tourService) DeletePricingRule(ctx context.Context, tourID, ruleID uuid.UUID) error {
	if err := s.repo.PricingRule.Delete(ctx, tourID, ruleID); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return ErrNotFound
		}
		return fmt.Errorf("delete pricing rule: %w", err)
	}
	return nil
}

// ==================== ADD-ONS ====================

func (s *tourService) CreateAddon(ctx context.Context, tourID uuid.UUID, req *request.CreateAddonRequest) (*response.AddonResponse, error) {
	if errs := utils.ValidateStruct(req); len(errs) > 0 {
		return nil, validationError(errs)
	}
	if _, err := s.findTour(ctx, tourID); err != nil {
		return nil, err
	}

	now := s.now()
	addon := &entity.Addon{
		BaseNoDelete: entity.BaseNoDelete{ID: uuid.New(), CreatedAt: now, UpdatedAt: now},
		TourID:       tourID,
		Name:         req.Name,
		Price:        utils.RoundMoney(req.Price),
		IsActive:     true,
	}
	if err := s.repo.Addon.Create(ctx, addon); err != nil {
		s.log.Error("Failed to create add-on", zap.Error(err), zap.String("tour_id", tourID.String()))
		return nil, fmt.Errorf("create add-on: %w", err)
	}

	resp := response.AddonToResponse(addon)
	return &resp, nil
}

func (s *tourService) ListAddons(ctx context.Context, tourID uuid.UUID) ([]response.AddonResponse, error) {
	addons, err := s.repo.Addon.FindByTourID(ctx, tourID, false)
	if err != nil {
		return nil, fmt.Errorf("list add-ons: %w", err)
	}

	out := make([]response.AddonResponse, 0, len(addons))
	for _, a := range addons {
		out = append(out, response.AddonToResponse(a))
	}
	return out, nil
}

func (s *tourService) SetAddonActive(ctx context.Context, tourID, addonID uuid.UUID, active bool) error {
	if err := s.repo.Addon.SetActive(ctx, tourID, addonID, active); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return ErrNotFound
		}
		return fmt.Errorf("update add-on: %w", err)
	}
	return nil
}

// ==================== COUPONS ====================

func (s *tourService) CreateCoupon(ctx context.Context, req *request.CreateCouponRequest) (*response.CouponResponse, error) {
	if errs := utils.ValidateStruct(req); len(errs) > 0 {
		return nil, validationError(errs)
	}
	if req.DiscountType == string(entity.DiscountPercentage) && req.Value > 100 {
		return nil, fieldError("value", "Percentage must be at most 100")
	}

	validFrom, err := parseOptionalTime("valid_from", req.ValidFrom)
	if err != nil {
		return nil, err
	}
	expiresAt, err := parseOptionalTime("expires_at", req.ExpiresAt)
	if err != nil {
		return nil, err
	}
	if validFrom != nil && expiresAt != nil && !expiresAt.After(*validFrom) {
		return nil, fieldError("expires_at", "Must be after valid_from")
	}

	existing, err := s.repo.Coupon.FindByCode(ctx, req.Code)
	if err != nil {
		return nil, fmt.Errorf("check coupon: %w", err)
	}
	if existing != nil {
		return nil, fmt.Errorf("coupon code already used: %w", ErrAlreadyExists)
	}

	now := s.now()
	coupon := &entity.Coupon{
		BaseNoDelete: entity.BaseNoDelete{ID: uuid.New(), CreatedAt: now, UpdatedAt: now},
		Code:         strings.ToUpper(strings.TrimSpace(req.Code)),
		DiscountType: entity.DiscountType(req.DiscountType),
		Value:        req.Value,
		IsActive:     true,
		ValidFrom:    validFrom,
		ExpiresAt:    expiresAt,
	}
	if err := s.repo.Coupon.Create(ctx, coupon); err != nil {
		s.log.Error("Failed to create coupon", zap.Error(err), zap.String("code", coupon.Code))
		return nil, fmt.Errorf("create coupon: %w", err)
	}

	s.log.Info("Coupon created", zap.String("code", coupon.Code))
	resp := response.CouponToResponse(coupon)
	return &resp, nil
}

func (s *tourService) ListCoupons(ctx context.Context, req *request.PaginatedRequest) ([]response.CouponResponse, error) {
	normalizePage(req)

	coupons, err := s.repo.Coupon.FindAll(ctx, req.Limit(), req.Offset())
	if err != nil {
		return nil, fmt.Errorf("list coupons: %w", err)
	}

	out := make([]response.CouponResponse, 0, len(coupons))
	for _, c := range coupons {
		out = append(out, response.CouponToResponse(c))
	}
	return out, nil
}

func (s *tourService) SetCouponActive(ctx context.Context, code string, active bool) error {
	if err := s.repo.Coupon.SetActive(ctx, code, active); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return ErrNotFound
		}
		return fmt.Errorf("update coupon: %w", err)
	}

	s.log.Info("Coupon updated", zap.String("code", code), zap.Bool("active", active))
	return nil
}

// ==================== HELPERS ====================

func (s *tourService) findTour(ctx context.Context, tourID uuid.UUID) (*entity.Tour, error) {
	tour, err := s.repo.Tour.FindByID(ctx, tourID)
	if err != nil {
		s.log.Error("Failed to find tour", zap.Error(err), zap.String("tour_id", tourID.String()))
		return nil, fmt.Errorf("find tour: %w", err)
	}
	if tour == nil {
		return nil, ErrTourNotFound
	}
	return tour, nil
}

func toPriceTable(prices map[string]float64) entity.PriceTable {
	if len(prices) == 0 {
		return nil
	}
	table := make(entity.PriceTable, len(prices))
	for k, v := range prices {
		table[entity.ParticipantType(k)] = utils.RoundMoney(v)
	}
	return table
}

func parseRange(fromValue, toValue string) (time.Time, time.Time, error) {
	from, err := utils.ParseDate(fromValue)
	if err != nil {
		return time.Time{}, time.Time{}, fieldError("from", "Must be a date in format 2006-01-02")
	}
	to, err := utils.ParseDate(toValue)
	if err != nil {
		return time.Time{}, time.Time{}, fieldError("to", "Must be a date in format 2006-01-02")
	}
	if to.Before(from) {
		return time.Time{}, time.Time{}, fieldError("to", "Must not be before the start date")
	}
	return from, to, nil
}

func parseOptionalTime(field string, value *string) (*time.Time, error) {
	if value == nil || *value == "" {
		return nil, nil
	}
	t, err := time.Parse(time.RFC3339, *value)
	if err != nil {
		return nil, fieldError(field, "Must be an RFC3339 timestamp")
	}
	t = t.UTC()
	return &t, nil
}
