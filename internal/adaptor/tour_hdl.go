package adaptor

import (
	"net/http"

	"tour-booking/internal/dto/request"
	"tour-booking/internal/usecase"
	"tour-booking/pkg/utils"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
)

type TourHandler struct {
	service usecase.TourService
	pricing usecase.PricingService
	log     *zap.Logger
}

func NewTourHandler(service usecase.TourService, pricing usecase.PricingService, log *zap.Logger) *TourHandler {
	return &TourHandler{
		service: service,
		pricing: pricing,
		log:     log.With(zap.String("handler", "tour")),
	}
}

func tourListFrom(r *http.Request) *request.TourListRequest {
	query := r.URL.Query()
	return &request.TourListRequest{
		PaginatedRequest: pageFrom(r),
		Search:           query.Get("search"),
		Location:         query.Get("location"),
		Difficulty:       query.Get("difficulty"),
	}
}

// ==================== PUBLIC ====================

// ListTours handles GET /api/tours
func (h *TourHandler) ListTours(w http.ResponseWriter, r *http.Request) {
	tours, err := h.service.ListTours(r.Context(), tourListFrom(r), true)
	if err != nil {
		handleServiceError(h.log, w, err, "list tours")
		return
	}

	utils.ResponseSuccess(w, "success", tours)
}

// GetTour handles GET /api/tours/{id}
func (h *TourHandler) GetTour(w http.ResponseWriter, r *http.Request) {
	tourID, ok := pathUUID(w, r, "id")
	if !ok {
		return
	}

	tour, err := h.service.GetTour(r.Context(), tourID, false)
	if err != nil {
		handleServiceError(h.log, w, err, "get tour")
		return
	}

	utils.ResponseSuccess(w, "success", tour)
}

// GetAvailability handles GET /api/tours/{id}/availability?from=&to=
func (h *TourHandler) GetAvailability(w http.ResponseWriter, r *http.Request) {
	tourID, ok := pathUUID(w, r, "id")
	if !ok {
		return
	}

	query := r.URL.Query()
	req := &request.AvailabilityRequest{From: query.Get("from"), To: query.Get("to")}

	availability, err := h.service.GetAvailability(r.Context(), tourID, req)
	if err != nil {
		handleServiceError(h.log, w, err, "get availability")
		return
	}

	utils.ResponseSuccess(w, "success", availability)
}

// Quote handles POST /api/tours/{id}/quote
func (h *TourHandler) Quote(w http.ResponseWriter, r *http.Request) {
	tourID, ok := pathUUID(w, r, "id")
	if !ok {
		return
	}

	var req request.QuoteRequest
	if err := decodeJSON(r, &req); err != nil {
		utils.ResponseBadRequest(w, "Invalid request body", nil)
		return
	}

	quote, err := h.pricing.Quote(r.Context(), tourID, &req)
	if err != nil {
		handleServiceError(h.log, w, err, "quote")
		return
	}

	utils.ResponseSuccess(w, "success", quote)
}

// ==================== ADMIN ====================

// AdminListTours handles GET /api/admin/tours, drafts included
func (h *TourHandler) AdminListTours(w http.ResponseWriter, r *http.Request) {
	tours, err := h.service.ListTours(r.Context(), tourListFrom(r), false)
	if err != nil {
		handleServiceError(h.log, w, err, "admin list tours")
		return
	}

	utils.ResponseSuccess(w, "success", tours)
}

// AdminGetTour handles GET /api/admin/tours/{id}
func (h *TourHandler) AdminGetTour(w http.ResponseWriter, r *http.Request) {
	tourID, ok := pathUUID(w, r, "id")
	if !ok {
		return
	}

	tour, err := h.service.GetTour(r.Context(), tourID, true)
	if err != nil {
		handleServiceError(h.log, w, err, "admin get tour")
		return
	}

	utils.ResponseSuccess(w, "success", tour)
}

// CreateTour handles POST /api/admin/tours
func (h *TourHandler) CreateTour(w http.ResponseWriter, r *http.Request) {
	operatorID, ok := utils.GetUserIDFromContext(r.Context())
	if !ok {
		utils.ResponseUnauthorized(w, "Authentication required")
		return
	}

	var req request.CreateTourRequest
	if err := decodeJSON(r, &req); err != nil {
		utils.ResponseBadRequest(w, "Invalid request body", nil)
		return
	}

	tour, err := h.service.CreateTour(r.Context(), operatorID, &req)
	if err != nil {
		handleServiceError(h.log, w, err, "create tour")
		return
	}

	utils.ResponseCreated(w, "Tour created", tour)
}

// UpdateTour handles PATCH /api/admin/tours/{id}
func (h *TourHandler) UpdateTour(w http.ResponseWriter, r *http.Request) {
	tourID, ok := pathUUID(w, r, "id")
	if !ok {
		return
	}

	var req request.UpdateTourRequest
	if err := decodeJSON(r, &req); err != nil {
		utils.ResponseBadRequest(w, "Invalid request body", nil)
		return
	}

	tour, err := h.service.UpdateTour(r.Context(), tourID, &req)
	if err != nil {
		handleServiceError(h.log, w, err, "update tour")
		return
	}

	utils.ResponseSuccess(w, "Tour updated", tour)
}

// DeleteTour handles DELETE /api/admin/tours/{id}
func (h *TourHandler) DeleteTour(w http.ResponseWriter, r *http.Request) {
	tourID, ok := pathUUID(w, r, "id")
	if !ok {
		return
	}

	if err := h.service.DeleteTour(r.Context(), tourID); err != nil {
		handleServiceError(h.log, w, err, "delete tour")
		return
	}

	utils.ResponseSuccess(w, "Tour deleted", nil)
}

// UpsertInventory handles PUT /api/admin/tours/{id}/inventory
func (h *TourHandler) UpsertInventory(w http.ResponseWriter, r *http.Request) {
	tourID, ok := pathUUID(w, r, "id")
	if !ok {
		return
	}

	var req request.UpsertInventoryRequest
	if err := decodeJSON(r, &req); err != nil {
		utils.ResponseBadRequest(w, "Invalid request body", nil)
		return
	}

	inventory, err := h.service.UpsertInventory(r.Context(), tourID, &req)
	if err != nil {
		handleServiceError(h.log, w, err, "upsert inventory")
		return
	}

	utils.ResponseSuccess(w, "Inventory saved", inventory)
}

// CreatePricingRule handles POST /api/admin/tours/{id}/pricing-rules
func (h *TourHandler) CreatePricingRule(w http.ResponseWriter, r *http.Request) {
	tourID, ok := pathUUID(w, r, "id")
	if !ok {
		return
	}

	var req request.CreatePricingRuleRequest
	if err := decodeJSON(r, &req); err != nil {
		utils.ResponseBadRequest(w, "Invalid request body", nil)
		return
	}

	rule, err := h.service.CreatePricingRule(r.Context(), tourID, &req)
	if err != nil {
		handleServiceError(h.log, w, err, "create pricing rule")
		return
	}

	utils.ResponseCreated(w, "Pricing rule created", rule)
}

// ListPricingRules handles GET /api/admin/tours/{id}/pricing-rules
func (h *TourHandler) ListPricingRules(w http.ResponseWriter, r *http.Request) {
	tourID, ok := pathUUID(w, r, "id")
	if !ok {
		return
	}

	rules, err := h.service.ListPricingRules(r.Context(), tourID)
	if err != nil {
		handleServiceError(h.log, w, err, "list pricing rules")
		return
	}

	utils.ResponseSuccess(w, "success", rules)
}

// DeletePricingRule handles DELETE /api/admin/tours/{id}/pricing-rules/{ruleID}
func (h *TourHandler) DeletePricingRule(w http.ResponseWriter, r *http.Request) {
	tourID, ok := pathUUID(w, r, "id")
	if !ok {
		return
	}
	ruleID, ok := pathUUID(w, r, "ruleID")
	if !ok {
		return
	}

	if err := h.service.DeletePricingRule(r.Context(), tourID, ruleID); err != nil {
		handleServiceError(h.log, w, err, "delete pricing rule")
		return
	}

	utils.ResponseSuccess(w, "Pricing rule deleted", nil)
}

// CreateAddon handles POST /api/admin/tours/{id}/addons
func (h *TourHandler) CreateAddon(w http.ResponseWriter, r *http.Request) {
	tourID, ok := pathUUID(w, r, "id")
	if !ok {
		return
	}

	var req request.CreateAddonRequest
	if err := decodeJSON(r, &req); err != nil {
		utils.ResponseBadRequest(w, "Invalid request body", nil)
		return
	}

	addon, err := h.service.CreateAddon(r.Context(), tourID, &req)
	if err != nil {
		handleServiceError(h.log, w, err, "create addon")
		return
	}

	utils.ResponseCreated(w, "Add-on created", addon)
}

// ListAddons handles GET /api/tours/{id}/addons
func (h *TourHandler) ListAddons(w http.ResponseWriter, r *http.Request) {
	tourID, ok := pathUUID(w, r, "id")
	if !ok {
		return
	}

	addons, err := h.service.ListAddons(r.Context(), tourID)
	if err != nil {
		handleServiceError(h.log, w, err, "list addons")
		return
	}

	utils.ResponseSuccess(w, "success", addons)
}

// SetAddonActive handles PATCH /api/admin/tours/{id}/addons/{addonID}
func (h *TourHandler) SetAddonActive(w http.ResponseWriter, r *http.Request) {
	tourID, ok := pathUUID(w, r, "id")
	if !ok {
		return
	}
	addonID, ok := pathUUID(w, r, "addonID")
	if !ok {
		return
	}

	var req request.SetActiveRequest
	if err := decodeJSON(r, &req); err != nil {
		utils.ResponseBadRequest(w, "Invalid request body", nil)
		return
	}

	if err := h.service.SetAddonActive(r.Context(), tourID, addonID, req.IsActive); err != nil {
		handleServiceError(h.log, w, err, "set addon active")
		return
	}

	utils.ResponseSuccess(w, "Add-on updated", nil)
}

// CreateCoupon handles POST /api/admin/coupons
func (h *TourHandler) CreateCoupon(w http.ResponseWriter, r *http.Request) {
	var req request.CreateCouponRequest
	if err := decodeJSON(r, &req); err != nil {
		utils.ResponseBadRequest(w, "Invalid request body", nil)
		return
	}

	coupon, err := h.service.CreateCoupon(r.Context(), &req)
	if err != nil {
		handleServiceError(h.log, w, err, "create coupon")
		return
	}

	utils.ResponseCreated(w, "Coupon created", coupon)
}

// ListCoupons handles GET /api/admin/coupons
func (h *TourHandler) ListCoupons(w http.ResponseWriter, r *http.Request) {
	req := pageFrom(r)

	coupons, err := h.service.ListCoupons(r.Context(), &req)
	if err != nil {
		handleServiceError(h.log, w, err, "list coupons")
		return
	}

	utils.ResponseSuccess(w, "success", coupons)
}

// SetCouponActive handles PATCH /api/admin/coupons/{code}
func (h *TourHandler) SetCouponActive(w http.ResponseWriter, r *http.Request) {
	code := chi.URLParam(r, "code")
	if code == "" {
		utils.ResponseBadRequest(w, "Coupon code is required", nil)
		return
	}

	var req request.SetActiveRequest
	if err := decodeJSON(r, &req); err != nil {
		utils.ResponseBadRequest(w, "Invalid request body", nil)
		return
	}

	if err := h.service.SetCouponActive(r.Context(), code, req.IsActive); err != nil {
		handleServiceError(h.log, w, err, "set coupon active")
		return
	}

	utils.ResponseSuccess(w, "Coupon updated", nil)
}
