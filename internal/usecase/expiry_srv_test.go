package usecase

import (
	"context"
	"sync"
	"testing"
	"time"

	"tour-booking/internal/data/entity"
	"tour-booking/pkg/lock"

	"github.com/alicebob/miniredis/v2"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestSweep_ExpiresOnlyOverdueBookings(t *testing.T) {
	env := newTestEnv(t, 10)
	now := time.Now().UTC()
	env.setNow(now)
	owner := uuid.New()

	overdue := env.book(t, owner, 2)
	fresh := env.book(t, owner, 3)
	env.store.setBookingExpiry(mustUUID(t, overdue.ID), now.Add(-time.Minute))

	result, err := env.svc.Expiry.Sweep(context.Background())

	require.NoError(t, err)
	assert.Equal(t, 1, result.Processed)
	assert.Equal(t, 1, result.Expired)
	assert.False(t, result.LockBusy)

	expired := env.store.booking(mustUUID(t, overdue.ID))
	assert.Equal(t, entity.BookingStatusExpired, expired.Status)
	assert.NotNil(t, expired.SlotsReleasedAt)
	assert.Equal(t, entity.BookingStatusAwaitingPayment, env.store.booking(mustUUID(t, fresh.ID)).Status)
	assert.Equal(t, 3, env.booked())
	assert.Equal(t, 1, env.pub.count(EventBookingExpired))

	again, err := env.svc.Expiry.Sweep(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 0, again.Processed)
	assert.Equal(t, 3, env.booked())
}

func TestSweep_RespectsBatchSize(t *testing.T) {
	env := newTestEnv(t, 10)
	env.cfg.Booking.SweepBatchSize = 2
	now := time.Now().UTC()
	env.setNow(now)
	for i := 0; i < 3; i++ {
		env.book(t, uuid.New(), 1)
	}
	env.setNow(now.Add(time.Hour))

	first, err := env.svc.Expiry.Sweep(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, first.Expired)

	second, err := env.svc.Expiry.Sweep(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, second.Expired)
	assert.Equal(t, 0, env.booked())
}

func TestSweep_ConcurrentRunsReleaseOnce(t *testing.T) {
	env := newTestEnv(t, 10)
	now := time.Now().UTC()
	env.setNow(now)
	for i := 0; i < 4; i++ {
		env.book(t, uuid.New(), 2)
	}
	env.setNow(now.Add(time.Hour))

	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		expired int
	)
	for i := 0; i < 5; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			result, err := env.svc.Expiry.Sweep(context.Background())
			if !assert.NoError(t, err) {
				return
			}
			mu.Lock()
			expired += result.Expired
			mu.Unlock()
		}()
	}
	wg.Wait()

	assert.Equal(t, 4, expired)
	assert.Equal(t, 0, env.booked())
	assert.Equal(t, 4, env.pub.count(EventBookingExpired))
}

func TestSweep_SkipsWhenLockHeld(t *testing.T) {
	env := newTestEnv(t, 10)
	now := time.Now().UTC()
	env.setNow(now)
	env.book(t, uuid.New(), 2)

	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })
	locker := lock.NewRedisLocker(client, "tour-booking:")

	svc := NewExpiryService(env.store.repository(), locker, env.cfg, newEventEmitter(env.pub, zap.NewNop()), zap.NewNop()).(*expiryService)
	svc.now = func() time.Time { return now.Add(time.Hour) }

	// another instance is mid-sweep
	release, err := locker.Acquire(context.Background(), sweepLockKey, time.Minute)
	require.NoError(t, err)
	require.NotNil(t, release)

	busy, err := svc.Sweep(context.Background())
	require.NoError(t, err)
	assert.True(t, busy.LockBusy)
	assert.Equal(t, 0, busy.Processed)
	assert.Equal(t, 2, env.booked())

	require.NoError(t, release(context.Background()))

	done, err := svc.Sweep(context.Background())
	require.NoError(t, err)
	assert.False(t, done.LockBusy)
	assert.Equal(t, 1, done.Expired)
	assert.Equal(t, 0, env.booked())
	assert.False(t, mr.Exists("tour-booking:"+sweepLockKey))
}
