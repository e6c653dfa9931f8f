package response

import (
	"time"

	"tour-booking/internal/data/entity"
	"tour-booking/pkg/utils"
)

type TourResponse struct {
	ID                string                `json:"id"`
	OperatorID        string                `json:"operator_id"`
	Title             string                `json:"title"`
	Description       *string               `json:"description,omitempty"`
	Location          string                `json:"location"`
	DurationInMinutes int                   `json:"duration_in_minutes"`
	Difficulty        entity.TourDifficulty `json:"difficulty"`
	BasePrice         float64               `json:"base_price"`
	ParticipantPrices entity.PriceTable     `json:"participant_prices,omitempty"`
	MaxParticipants   int                   `json:"max_participants"`
	IsPublished       bool                  `json:"is_published"`
	CreatedAt         time.Time             `json:"created_at"`
	UpdatedAt         time.Time             `json:"updated_at"`
}

// TourDetailResponse adds the active add-ons a customer can pick at checkout.
type TourDetailResponse struct {
	TourResponse
	Addons []AddonResponse `json:"addons"`
}

type InventoryResponse struct {
	Date        string `json:"date"`
	TotalSlots  int    `json:"total_slots"`
	BookedSlots int    `json:"booked_slots"`
	Available   int    `json:"available"`
}

type PricingRuleResponse struct {
	ID        string            `json:"id"`
	Name      string            `json:"name"`
	StartDate string            `json:"start_date"`
	EndDate   string            `json:"end_date"`
	Prices    entity.PriceTable `json:"prices"`
	CreatedAt time.Time         `json:"created_at"`
}

type AddonResponse struct {
	ID       string  `json:"id"`
	Name     string  `json:"name"`
	Price    float64 `json:"price"`
	IsActive bool    `json:"is_active"`
}

type CouponResponse struct {
	ID           string              `json:"id"`
	Code         string              `json:"code"`
	DiscountType entity.DiscountType `json:"discount_type"`
	Value        float64             `json:"value"`
	IsActive     bool                `json:"is_active"`
	ValidFrom    *time.Time          `json:"valid_from,omitempty"`
	ExpiresAt    *time.Time          `json:"expires_at,omitempty"`
}

func TourToResponse(tour *entity.Tour) TourResponse {
	return TourResponse{
		ID:                tour.ID.String(),
		OperatorID:        tour.OperatorID.String(),
		Title:             tour.Title,
		Description:       tour.Description,
		Location:          tour.Location,
		DurationInMinutes: tour.DurationInMinutes,
		Difficulty:        tour.Difficulty,
		BasePrice:         tour.BasePrice,
		ParticipantPrices: tour.ParticipantPrices,
		MaxParticipants:   tour.MaxParticipants,
		IsPublished:       tour.IsPublished,
		CreatedAt:         tour.CreatedAt,
		UpdatedAt:         tour.UpdatedAt,
	}
}

func InventoryToResponse(inv *entity.TourInventory) InventoryResponse {
	return InventoryResponse{
		Date:        utils.FormatDate(inv.Date),
		TotalSlots:  inv.TotalSlots,
		BookedSlots: inv.BookedSlots,
		Available:   inv.Available(),
	}
}

func PricingRuleToResponse(rule *entity.PricingRule) PricingRuleResponse {
	return PricingRuleResponse{
		ID:        rule.ID.String(),
		Name:      rule.Name,
		StartDate: utils.FormatDate(rule.StartDate),
		EndDate:   utils.FormatDate(rule.EndDate),
		Prices:    rule.Prices,
		CreatedAt: rule.CreatedAt,
	}
}

func AddonToResponse(addon *entity.Addon) AddonResponse {
	return AddonResponse{
		ID:       addon.ID.String(),
		Name:     addon.Name,
		Price:    addon.Price,
		IsActive: addon.IsActive,
	}
}

func CouponToResponse(coupon *entity.Coupon) CouponResponse {
	return CouponResponse{
		ID:           coupon.ID.String(),
		Code:         coupon.Code,
		DiscountType: coupon.DiscountType,
		Value:        coupon.Value,
		IsActive:     coupon.IsActive,
		ValidFrom:    coupon.ValidFrom,
		ExpiresAt:    coupon.ExpiresAt,
	}
}
