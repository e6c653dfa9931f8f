package usecase

import (
	"time"

	"tour-booking/internal/data/repository"
	"tour-booking/internal/gateway"
	"tour-booking/pkg/lock"
	"tour-booking/pkg/mq"
	"tour-booking/pkg/utils"

	"go.uber.org/zap"
)

type Service struct {
	Auth    AuthService
	User    UserService
	Tour    TourService
	Pricing PricingService
	Booking BookingService
	Payment PaymentService
	Expiry  ExpiryService
}

// Deps groups the outbound collaborators of the booking workflow.
type Deps struct {
	Gateway   gateway.Gateway
	Publisher mq.Publisher
	Locker    lock.Locker
}

func NewService(repo *repository.Repository, config *utils.Config, deps Deps, log *zap.Logger) *Service {
	if deps.Publisher == nil {
		deps.Publisher = mq.NopPublisher{}
	}
	if deps.Locker == nil {
		deps.Locker = lock.LocalLocker{}
	}

	events := newEventEmitter(deps.Publisher, log)
	pricing := NewPricingService(repo, config, log)

	return &Service{
		Auth:    NewAuthService(repo, config, log),
		User:    NewUserService(repo.User, log),
		Tour:    NewTourService(repo, log),
		Pricing: pricing,
		Booking: NewBookingService(repo, pricing, deps.Gateway, config, events, log),
		Payment: NewPaymentService(repo, deps.Gateway, config, events, log),
		Expiry:  NewExpiryService(repo, deps.Locker, config, events, log),
	}
}

// clock is swapped in tests
type clock func() time.Time

func systemClock() time.Time {
	return time.Now().UTC()
}
