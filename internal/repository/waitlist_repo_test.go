package repository

import (
	"context"
	"testing"
	"time"

	"github.com/cribnosh/verify-api/internal/model"
	"github.com/cribnosh/verify-api/internal/testutil"
	"github.com/stretchr/testify/require"
)

type waitlistStore interface {
	FindByIdentifier(ctx context.Context, id model.Identifier) (*model.WaitlistEntry, error)
	Upsert(ctx context.Context, in model.WaitlistUpsert, now time.Time) (model.WaitlistResult, error)
	List(ctx context.Context, status model.WaitlistStatus, limit, offset int) ([]model.WaitlistEntry, int64, error)
}

func runWaitlistSuite(t *testing.T, open func(t *testing.T) waitlistStore) {
	ctx := context.Background()
	now := time.Now().UTC().Truncate(time.Millisecond)

	t.Run("upsert is idempotent", func(t *testing.T) {
		s := open(t)
		first, err := s.Upsert(ctx, model.WaitlistUpsert{Identifier: emailID, Name: "Ada", Source: "web"}, now)
		require.NoError(t, err)
		require.False(t, first.IsExisting)

		second, err := s.Upsert(ctx, model.WaitlistUpsert{Identifier: emailID, Name: "Someone Else"}, now.Add(time.Minute))
		require.NoError(t, err)
		require.True(t, second.IsExisting)
		require.Equal(t, first.WaitlistID, second.WaitlistID)

		entry, err := s.FindByIdentifier(ctx, emailID)
		require.NoError(t, err)
		require.Equal(t, "Ada", entry.Name)
		require.Equal(t, model.WaitlistStatusActive, entry.Status)
		require.Nil(t, entry.Phone)
	})

	t.Run("phone only entries are keyed by phone", func(t *testing.T) {
		s := open(t)
		res, err := s.Upsert(ctx, model.WaitlistUpsert{Identifier: phoneID}, now)
		require.NoError(t, err)

		entry, err := s.FindByIdentifier(ctx, phoneID)
		require.NoError(t, err)
		require.Equal(t, res.WaitlistID, entry.ID)
		require.Nil(t, entry.Email)

		_, err = s.FindByIdentifier(ctx, emailID)
		require.ErrorIs(t, err, ErrNotFound)
	})

	t.Run("list pages newest first", func(t *testing.T) {
		s := open(t)
		_, err := s.Upsert(ctx, model.WaitlistUpsert{Identifier: emailID}, now)
		require.NoError(t, err)
		_, err = s.Upsert(ctx, model.WaitlistUpsert{Identifier: phoneID}, now.Add(time.Minute))
		require.NoError(t, err)

		entries, total, err := s.List(ctx, "", 1, 0)
		require.NoError(t, err)
		require.EqualValues(t, 2, total)
		require.Len(t, entries, 1)
		require.NotNil(t, entries[0].Phone)

		entries, _, err = s.List(ctx, model.WaitlistStatusConverted, 10, 0)
		require.NoError(t, err)
		require.Empty(t, entries)
	})
}

func TestMemoryWaitlistStore(t *testing.T) {
	runWaitlistSuite(t, func(t *testing.T) waitlistStore { return NewMemoryWaitlistStore() })
}

func TestPostgresWaitlistRepository(t *testing.T) {
	runWaitlistSuite(t, func(t *testing.T) waitlistStore { return NewWaitlistRepository(testutil.OpenTestDB(t)) })
}
