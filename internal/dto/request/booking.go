package request

type ParticipantRequest struct {
	Type  string `json:"type" validate:"required,oneof=adult child senior infant"`
	Count int    `json:"count" validate:"required,gte=1,lte=100"`
}

type CreateBookingRequest struct {
	TourID          string               `json:"tour_id" validate:"required,uuid"`
	Date            string               `json:"date" validate:"required,datetime=2006-01-02"`
	Participants    []ParticipantRequest `json:"participants" validate:"required,min=1,dive"`
	AddonIDs        []string             `json:"addon_ids,omitempty" validate:"omitempty,dive,uuid"`
	CouponCode      *string              `json:"coupon_code,omitempty"`
	ContactName     string               `json:"contact_name" validate:"required,max=100"`
	ContactEmail    string               `json:"contact_email" validate:"required,email"`
	ContactPhone    *string              `json:"contact_phone,omitempty" validate:"omitempty,min=10,max=15"`
	SpecialRequests *string              `json:"special_requests,omitempty" validate:"omitempty,max=1000"`

	// DisplayedTotal is what the client showed the customer. Never used for pricing.
	DisplayedTotal *float64 `json:"total_amount,omitempty"`
}

type BookingListRequest struct {
	PaginatedRequest
	Status string `json:"status" validate:"omitempty,oneof=awaiting_payment confirmed cancelled expired"`
}
