package adaptor

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"tour-booking/internal/data/repository"
	"tour-booking/internal/dto/request"
	"tour-booking/internal/usecase"
	"tour-booking/pkg/utils"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

const maxBodyBytes = 1 << 20

type Handler struct {
	Auth    *AuthHandler
	User    *UserHandler
	Tour    *TourHandler
	Booking *BookingHandler
	Payment *PaymentHandler
	Job     *JobHandler
}

func NewHandler(service *usecase.Service, log *zap.Logger) *Handler {
	return &Handler{
		Auth:    NewAuthHandler(service.Auth, log),
		User:    NewUserHandler(service.User, log),
		Tour:    NewTourHandler(service.Tour, service.Pricing, log),
		Booking: NewBookingHandler(service.Booking, log),
		Payment: NewPaymentHandler(service.Payment, log),
		Job:     NewJobHandler(service.Expiry, service.Auth, log),
	}
}

// handleServiceError maps usecase errors to HTTP responses
func handleServiceError(log *zap.Logger, w http.ResponseWriter, err error, operation string) {
	var validation *usecase.ValidationError

	switch {
	case errors.As(err, &validation):
		utils.ResponseBadRequest(w, "Validation failed", validation.Fields)
	case errors.Is(err, usecase.ErrValidation):
		utils.ResponseBadRequest(w, err.Error(), nil)

	case errors.Is(err, usecase.ErrInvalidCoupon):
		utils.ResponseUnprocessable(w, usecase.ErrInvalidCoupon.Error(), nil)

	case errors.Is(err, usecase.ErrNothingToCharge):
		utils.ResponseUnprocessable(w, usecase.ErrNothingToCharge.Error(), nil)

	case errors.Is(err, usecase.ErrInsufficientCapacity),
		errors.Is(err, usecase.ErrInventoryNotConfigured),
		errors.Is(err, usecase.ErrInvalidState),
		errors.Is(err, usecase.ErrTourUnavailable),
		errors.Is(err, usecase.ErrAlreadyExists),
		errors.Is(err, usecase.ErrStaleTransition):
		utils.ResponseConflict(w, err.Error())

	case errors.Is(err, usecase.ErrPaymentInitiationFailed):
		log.Warn("Payment provider failure", zap.String("operation", operation), zap.Error(err))
		utils.ResponseBadGateway(w, usecase.ErrPaymentInitiationFailed.Error())

	case errors.Is(err, usecase.ErrWebhookValidationFailed),
		errors.Is(err, usecase.ErrInvalidCredentials):
		utils.ResponseUnauthorized(w, err.Error())

	case errors.Is(err, usecase.ErrForbidden),
		errors.Is(err, usecase.ErrAccountInactive):
		utils.ResponseForbidden(w, err.Error())

	case errors.Is(err, usecase.ErrBookingNotFound),
		errors.Is(err, usecase.ErrTourNotFound),
		errors.Is(err, usecase.ErrPaymentNotFound),
		errors.Is(err, usecase.ErrUserNotFound),
		errors.Is(err, usecase.ErrNotFound),
		errors.Is(err, repository.ErrNotFound):
		utils.ResponseNotFound(w, err.Error())

	default:
		log.Error("Unhandled service error", zap.String("operation", operation), zap.Error(err))
		utils.ResponseInternalError(w, "Internal server error")
	}
}

func decodeJSON(r *http.Request, dst any) error {
	dec := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes))
	return dec.Decode(dst)
}

func pathUUID(w http.ResponseWriter, r *http.Request, name string) (uuid.UUID, bool) {
	id, err := uuid.Parse(chi.URLParam(r, name))
	if err != nil {
		utils.ResponseBadRequest(w, "Invalid "+name, nil)
		return uuid.Nil, false
	}
	return id, true
}

// actorFrom builds the caller identity set by AuthSession
func actorFrom(w http.ResponseWriter, r *http.Request) (usecase.Actor, bool) {
	userID, ok := utils.GetUserIDFromContext(r.Context())
	if !ok {
		utils.ResponseUnauthorized(w, "Authentication required")
		return usecase.Actor{}, false
	}
	return usecase.Actor{UserID: userID, IsAdmin: utils.IsAdminFromContext(r.Context())}, true
}

func pageFrom(r *http.Request) request.PaginatedRequest {
	query := r.URL.Query()
	page := request.PaginatedRequest{
		Page:    utils.ParseInt(query.Get("page"), 1),
		PerPage: utils.ParseInt(query.Get("per_page"), 10),
	}
	if page.Page < 1 {
		page.Page = 1
	}
	if page.PerPage < 1 {
		page.PerPage = 10
	}
	if page.PerPage > 100 {
		page.PerPage = 100
	}
	return page
}
