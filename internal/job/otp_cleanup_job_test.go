package job

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/cribnosh/verify-api/internal/config"
	"github.com/cribnosh/verify-api/internal/model"
	"github.com/cribnosh/verify-api/internal/repository"
	"github.com/cribnosh/verify-api/internal/service"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
)

type stubCleaner struct {
	calls int
	err   error
}

func (s *stubCleaner) CleanupExpiredOTPs(context.Context) (*model.CleanupResult, error) {
	s.calls++
	if s.err != nil {
		return nil, s.err
	}
	return &model.CleanupResult{}, nil
}

func TestOTPCleanupJobPropagatesErrors(t *testing.T) {
	cleaner := &stubCleaner{err: errors.New("db down")}
	j := NewOTPCleanupJob(cleaner)
	require.Equal(t, "otp_cleanup", j.Name())
	require.EqualError(t, j.Run(context.Background()), "db down")
	require.Equal(t, 1, cleaner.calls)

	require.NoError(t, NewOTPCleanupJob(nil).Run(context.Background()))
}

func TestOTPCleanupJobSweepsExpired(t *testing.T) {
	ctx := context.Background()
	store := repository.NewMemoryOTPStore()
	now := time.Now()

	expired := &model.OTP{ID: uuid.New(), Code: "111111", MaxAttempts: 3, ExpiresAt: now.Add(-time.Minute), CreatedAt: now.Add(-6 * time.Minute)}
	expired.SetIdentifier(model.Identifier{Kind: model.IdentifierEmail, Value: "old@example.com"})
	live := &model.OTP{ID: uuid.New(), Code: "222222", MaxAttempts: 3, ExpiresAt: now.Add(time.Hour), CreatedAt: now}
	live.SetIdentifier(model.Identifier{Kind: model.IdentifierEmail, Value: "new@example.com"})
	require.NoError(t, store.Create(ctx, expired))
	require.NoError(t, store.Create(ctx, live))

	svc := service.NewOTPService(store, service.NewWaitlistService(repository.NewMemoryWaitlistStore()), nil, nil, config.OTPConfig{
		Expiry:             5 * time.Minute,
		DefaultMaxAttempts: 3,
		MaxPerIdentifier:   5,
		RateWindow:         time.Hour,
	})

	j := NewOTPCleanupJob(svc)
	require.NoError(t, j.Run(ctx))
	require.Equal(t, 1, store.Count())

	// idempotent
	require.NoError(t, j.Run(ctx))
	require.Equal(t, 1, store.Count())
}
