package request

type TourListRequest struct {
	PaginatedRequest
	Search     string `json:"search"`
	Location   string `json:"location"`
	Difficulty string `json:"difficulty" validate:"omitempty,oneof=easy moderate hard"`
}

type CreateTourRequest struct {
	Title             string             `json:"title" validate:"required,min=3,max=200"`
	Description       *string            `json:"description,omitempty"`
	Location          string             `json:"location" validate:"required,max=200"`
	DurationInMinutes int                `json:"duration_in_minutes" validate:"required,gt=0"`
	Difficulty        string             `json:"difficulty" validate:"required,oneof=easy moderate hard"`
	BasePrice         float64            `json:"base_price" validate:"gte=0"`
	ParticipantPrices map[string]float64 `json:"participant_prices,omitempty" validate:"omitempty,dive,keys,oneof=adult child senior infant,endkeys,gte=0"`
	MaxParticipants   int                `json:"max_participants" validate:"required,gt=0"`
	IsPublished       bool               `json:"is_published"`
}

// UpdateTourRequest: field nil berarti tidak diubah
type UpdateTourRequest struct {
	Title             *string            `json:"title,omitempty" validate:"omitempty,min=3,max=200"`
	Description       *string            `json:"description,omitempty"`
	Location          *string            `json:"location,omitempty" validate:"omitempty,max=200"`
	DurationInMinutes *int               `json:"duration_in_minutes,omitempty" validate:"omitempty,gt=0"`
	Difficulty        *string            `json:"difficulty,omitempty" validate:"omitempty,oneof=easy moderate hard"`
	BasePrice         *float64           `json:"base_price,omitempty" validate:"omitempty,gte=0"`
	ParticipantPrices map[string]float64 `json:"participant_prices,omitempty" validate:"omitempty,dive,keys,oneof=adult child senior infant,endkeys,gte=0"`
	MaxParticipants   *int               `json:"max_participants,omitempty" validate:"omitempty,gt=0"`
	IsPublished       *bool              `json:"is_published,omitempty"`
}

type UpsertInventoryRequest struct {
	Date       string `json:"date" validate:"required,datetime=2006-01-02"`
	TotalSlots int    `json:"total_slots" validate:"gte=0"`
}

type AvailabilityRequest struct {
	From string `json:"from" validate:"required,datetime=2006-01-02"`
	To   string `json:"to" validate:"required,datetime=2006-01-02"`
}

type CreatePricingRuleRequest struct {
	Name      string             `json:"name" validate:"required,max=100"`
	StartDate string             `json:"start_date" validate:"required,datetime=2006-01-02"`
	EndDate   string             `json:"end_date" validate:"required,datetime=2006-01-02"`
	Prices    map[string]float64 `json:"prices" validate:"required,min=1,dive,keys,oneof=adult child senior infant,endkeys,gte=0"`
}

type CreateAddonRequest struct {
	Name  string  `json:"name" validate:"required,max=100"`
	Price float64 `json:"price" validate:"gte=0"`
}

type SetActiveRequest struct {
	IsActive bool `json:"is_active"`
}

type CreateCouponRequest struct {
	Code         string  `json:"code" validate:"required,min=3,max=50"`
	DiscountType string  `json:"discount_type" validate:"required,oneof=fixed percentage"`
	Value        float64 `json:"value" validate:"gt=0"`
	ValidFrom    *string `json:"valid_from,omitempty" validate:"omitempty,datetime=2006-01-02T15:04:05Z07:00"`
	ExpiresAt    *string `json:"expires_at,omitempty" validate:"omitempty,datetime=2006-01-02T15:04:05Z07:00"`
}

type QuoteRequest struct {
	Date         string               `json:"date" validate:"required,datetime=2006-01-02"`
	Participants []ParticipantRequest `json:"participants" validate:"required,min=1,dive"`
	AddonIDs     []string             `json:"addon_ids,omitempty" validate:"omitempty,dive,uuid"`
	CouponCode   *string              `json:"coupon_code,omitempty"`
}
