package usecase

import (
	"errors"
	"fmt"

	"tour-booking/pkg/utils"
)

var (
	ErrValidation = errors.New("validation failed")

	ErrInsufficientCapacity    = errors.New("not enough availability for the selected date")
	ErrInventoryNotConfigured  = errors.New("no availability has been configured for the selected date")
	ErrInvalidCoupon           = errors.New("coupon is invalid, inactive or expired")
	ErrNothingToCharge         = errors.New("booking total is below the minimum chargeable amount")
	ErrPaymentInitiationFailed = errors.New("payment could not be initiated")
	ErrWebhookValidationFailed = errors.New("payment notification failed validation")
	ErrStaleTransition         = errors.New("booking is no longer in the expected state")

	ErrBookingNotFound = errors.New("booking not found")
	ErrTourNotFound    = errors.New("tour not found")
	ErrPaymentNotFound = errors.New("payment not found")
	ErrUserNotFound    = errors.New("user not found")
	ErrNotFound        = errors.New("resource not found")

	ErrTourUnavailable    = errors.New("tour is not available for booking")
	ErrInvalidState       = errors.New("booking cannot be processed in its current state")
	ErrForbidden          = errors.New("you are not allowed to access this resource")
	ErrAlreadyExists      = errors.New("resource already exists")
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrAccountInactive    = errors.New("account is deactivated")
)

// ValidationError carries per-field messages for the response body.
type ValidationError struct {
	Fields map[string]string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", ErrValidation.Error(), utils.FormatValidationErrors(e.Fields))
}

func (e *ValidationError) Unwrap() error {
	return ErrValidation
}

func validationError(fields map[string]string) error {
	return &ValidationError{Fields: fields}
}

func fieldError(field, msg string) error {
	return &ValidationError{Fields: map[string]string{field: msg}}
}
