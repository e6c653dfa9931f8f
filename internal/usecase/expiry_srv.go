package usecase

import (
	"context"
	"errors"
	"fmt"
	"time"

	"tour-booking/internal/data/entity"
	"tour-booking/internal/data/repository"
	"tour-booking/internal/dto/response"
	"tour-booking/pkg/lock"
	"tour-booking/pkg/metrics"
	"tour-booking/pkg/utils"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

const sweepLockKey = "expiry-sweep"

type ExpiryService interface {
	// Sweep expires awaiting_payment bookings past their expires_at and
	// releases their slots. Safe to run concurrently and repeatedly.
	Sweep(ctx context.Context) (*response.SweepResponse, error)
}

type expiryService struct {
	repo   *repository.Repository
	locker lock.Locker
	config *utils.Config
	events *eventEmitter
	log    *zap.Logger
	now    clock
}

func NewExpiryService(
	repo *repository.Repository,
	locker lock.Locker,
	config *utils.Config,
	events *eventEmitter,
	log *zap.Logger,
) ExpiryService {
	return &expiryService{
		repo:   repo,
		locker: locker,
		config: config,
		events: events,
		log:    log.With(zap.String("service", "expiry")),
		now:    systemClock,
	}
}

func (s *expiryService) Sweep(ctx context.Context) (*response.SweepResponse, error) {
	result := &response.SweepResponse{}

	// 1. Satu sweep aktif antar instance
	ttl := s.config.Jobs.LockTTL
	if ttl <= 0 {
		ttl = time.Minute
	}
	release, err := s.locker.Acquire(ctx, sweepLockKey, ttl)
	if err != nil {
		s.log.Error("Failed to acquire sweep lock", zap.Error(err))
		return nil, fmt.Errorf("acquire sweep lock: %w", err)
	}
	if release == nil {
		s.log.Info("Sweep already running elsewhere")
		result.LockBusy = true
		return result, nil
	}
	defer func() {
		if err := release(context.WithoutCancel(ctx)); err != nil {
			s.log.Warn("Failed to release sweep lock", zap.Error(err))
		}
	}()

	// 2. Ambil batch yang sudah lewat expires_at
	batch := s.config.Booking.SweepBatchSize
	if batch <= 0 {
		batch = 100
	}
	ids, err := s.repo.Booking.FindExpiredAwaiting(ctx, s.now(), batch)
	if err != nil {
		s.log.Error("Failed to find expired bookings", zap.Error(err))
		return nil, fmt.Errorf("find expired bookings: %w", err)
	}
	result.Processed = len(ids)

	// 3. Tiap booking di transaksi sendiri
	for _, id := range ids {
		expired, err := s.expireOne(ctx, id)
		switch {
		case errors.Is(err, ErrStaleTransition):
			// webhook atau cancel menang duluan
			result.Skipped++
		case err != nil:
			result.Failed++
			s.log.Error("Failed to expire booking", zap.Error(err), zap.String("booking_id", id.String()))
		default:
			result.Expired++
			metrics.IncTransition(string(entity.BookingStatusExpired))
			s.events.booking(ctx, EventBookingExpired, expired)
		}
	}

	metrics.AddSweepExpired(result.Expired)
	if result.Processed > 0 {
		s.log.Info("Expiry sweep finished",
			zap.Int("processed", result.Processed),
			zap.Int("expired", result.Expired),
			zap.Int("skipped", result.Skipped),
			zap.Int("failed", result.Failed),
		)
	}

	return result, nil
}

func (s *expiryService) expireOne(ctx context.Context, id uuid.UUID) (*entity.Booking, error) {
	var booking *entity.Booking
	err := s.repo.Tx.WithinTx(ctx, func(tx *repository.Repository) error {
		var err error
		booking, err = closeBooking(ctx, tx, id, entity.BookingStatusExpired)
		return err
	})
	return booking, err
}
