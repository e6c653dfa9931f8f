package scheduler

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"tour-booking/internal/dto/request"
	"tour-booking/internal/dto/response"
	"tour-booking/pkg/utils"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type countingExpiry struct {
	calls atomic.Int32
	err   error
}

func (c *countingExpiry) Sweep(context.Context) (*response.SweepResponse, error) {
	c.calls.Add(1)
	if c.err != nil {
		return nil, c.err
	}
	return &response.SweepResponse{Processed: 1, Expired: 1}, nil
}

type countingAuth struct {
	cleaned atomic.Int32
}

func (a *countingAuth) Register(context.Context, *request.RegisterRequest) (*response.AuthResponse, error) {
	return nil, nil
}

func (a *countingAuth) Login(context.Context, *request.LoginRequest) (*response.AuthResponse, error) {
	return nil, nil
}

func (a *countingAuth) Logout(context.Context, string) error { return nil }

func (a *countingAuth) CleanExpiredSessions(context.Context) (int64, error) {
	a.cleaned.Add(1)
	return 2, nil
}

func TestRunSweep(t *testing.T) {
	expiry := &countingExpiry{}
	s := New(expiry, nil, utils.JobsConfig{}, zap.NewNop())

	_, err := s.runSweep(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int32(1), expiry.calls.Load())
}

func TestRunSweep_PropagatesError(t *testing.T) {
	boom := errors.New("db down")
	s := New(&countingExpiry{err: boom}, nil, utils.JobsConfig{}, zap.NewNop())

	_, err := s.runSweep(context.Background())
	assert.ErrorIs(t, err, boom)
}

func TestStart_InvalidSchedule(t *testing.T) {
	s := New(&countingExpiry{}, nil, utils.JobsConfig{SweepSchedule: "not a schedule"}, zap.NewNop())

	assert.Error(t, s.Start())
}

func TestStart_RunsSweepOnSchedule(t *testing.T) {
	expiry := &countingExpiry{}
	s := New(expiry, &countingAuth{}, utils.JobsConfig{SweepSchedule: "* * * * * *"}, zap.NewNop())

	require.NoError(t, s.Start())
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		s.Stop(ctx)
	})

	assert.Eventually(t, func() bool {
		return expiry.calls.Load() >= 1
	}, 3*time.Second, 50*time.Millisecond)
}

func TestSessionCleanupJob(t *testing.T) {
	auth := &countingAuth{}
	s := New(&countingExpiry{}, auth, utils.JobsConfig{}, zap.NewNop())

	s.sessionCleanupJob()

	assert.Equal(t, int32(1), auth.cleaned.Load())
}
