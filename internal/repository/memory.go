package repository

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/cribnosh/verify-api/internal/model"
	"github.com/google/uuid"
)

// MemoryOTPStore is an in-process OTPRepository for local runs and tests.
// Records are copied on the way in and out so callers never share state.
type MemoryOTPStore struct {
	mu        sync.Mutex
	otps      []model.OTP
	issuances []model.OTPIssuance
}

func NewMemoryOTPStore() *MemoryOTPStore {
	return &MemoryOTPStore{}
}

func (s *MemoryOTPStore) Create(_ context.Context, otp *model.OTP) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.otps = append(s.otps, cloneOTP(otp))
	return nil
}

func (s *MemoryOTPStore) Replace(_ context.Context, otp *model.OTP) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.deleteWhere(func(o *model.OTP) bool { return o.Identifier() == otp.Identifier() })
	s.otps = append(s.otps, cloneOTP(otp))
	return nil
}

func (s *MemoryOTPStore) DeleteByIdentifier(_ context.Context, id model.Identifier) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.deleteWhere(func(o *model.OTP) bool { return o.Identifier() == id }), nil
}

func (s *MemoryOTPStore) Latest(_ context.Context, id model.Identifier) (*model.OTP, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var latest *model.OTP
	for i := range s.otps {
		o := &s.otps[i]
		if o.Identifier() != id {
			continue
		}
		// later inserts win ties
		if latest == nil || !o.CreatedAt.Before(latest.CreatedAt) {
			latest = o
		}
	}
	if latest == nil {
		return nil, ErrNotFound
	}
	out := cloneOTP(latest)
	return &out, nil
}

func (s *MemoryOTPStore) Update(_ context.Context, otp *model.OTP) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range s.otps {
		stored := &s.otps[i]
		if stored.ID != otp.ID {
			continue
		}
		if stored.Version != otp.Version {
			return ErrStale
		}
		stored.Attempts = otp.Attempts
		stored.IsUsed = otp.IsUsed
		stored.VerifiedAt = cloneTime(otp.VerifiedAt)
		stored.UpdatedAt = otp.UpdatedAt
		stored.Version++
		otp.Version = stored.Version
		return nil
	}
	return ErrStale
}

func (s *MemoryOTPStore) Delete(_ context.Context, id uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.deleteWhere(func(o *model.OTP) bool { return o.ID == id })
	return nil
}

func (s *MemoryOTPStore) DeleteExpired(_ context.Context, now time.Time) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.deleteWhere(func(o *model.OTP) bool { return o.ExpiresAt.Before(now) }), nil
}

func (s *MemoryOTPStore) RecordIssuance(_ context.Context, issuance *model.OTPIssuance) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.issuances = append(s.issuances, *issuance)
	return nil
}

func (s *MemoryOTPStore) CountIssuancesSince(_ context.Context, id model.Identifier, since time.Time) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var n int64
	for _, is := range s.issuances {
		if is.IdentifierKind == id.Kind && is.Identifier == id.Value && is.CreatedAt.After(since) {
			n++
		}
	}
	return n, nil
}

func (s *MemoryOTPStore) PruneIssuances(_ context.Context, before time.Time) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	kept := s.issuances[:0]
	var n int64
	for _, is := range s.issuances {
		if is.CreatedAt.Before(before) {
			n++
			continue
		}
		kept = append(kept, is)
	}
	s.issuances = kept
	return n, nil
}

// Count returns the number of stored records (test helper).
func (s *MemoryOTPStore) Count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.otps)
}

func (s *MemoryOTPStore) deleteWhere(match func(*model.OTP) bool) int64 {
	kept := s.otps[:0]
	var n int64
	for i := range s.otps {
		if match(&s.otps[i]) {
			n++
			continue
		}
		kept = append(kept, s.otps[i])
	}
	s.otps = kept
	return n
}

func cloneOTP(o *model.OTP) model.OTP {
	out := *o
	if o.Phone != nil {
		v := *o.Phone
		out.Phone = &v
	}
	if o.Email != nil {
		v := *o.Email
		out.Email = &v
	}
	out.VerifiedAt = cloneTime(o.VerifiedAt)
	return out
}

func cloneTime(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	v := *t
	return &v
}

// MemoryWaitlistStore is the in-process counterpart of WaitlistRepository
type MemoryWaitlistStore struct {
	mu      sync.Mutex
	entries []model.WaitlistEntry
}

func NewMemoryWaitlistStore() *MemoryWaitlistStore {
	return &MemoryWaitlistStore{}
}

func (s *MemoryWaitlistStore) FindByIdentifier(_ context.Context, id model.Identifier) (*model.WaitlistEntry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range s.entries {
		if s.entries[i].Matches(id) {
			entry := s.entries[i]
			return &entry, nil
		}
	}
	return nil, ErrNotFound
}

func (s *MemoryWaitlistStore) Upsert(_ context.Context, in model.WaitlistUpsert, now time.Time) (model.WaitlistResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range s.entries {
		if s.entries[i].Matches(in.Identifier) {
			return model.WaitlistResult{WaitlistID: s.entries[i].ID, IsExisting: true}, nil
		}
	}
	entry := newWaitlistEntry(in, now)
	s.entries = append(s.entries, *entry)
	return model.WaitlistResult{WaitlistID: entry.ID}, nil
}

func (s *MemoryWaitlistStore) List(_ context.Context, status model.WaitlistStatus, limit, offset int) ([]model.WaitlistEntry, int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var matched []model.WaitlistEntry
	for _, e := range s.entries {
		if status == "" || e.Status == status {
			matched = append(matched, e)
		}
	}
	sort.SliceStable(matched, func(i, j int) bool { return matched[i].JoinedAt.After(matched[j].JoinedAt) })
	total := int64(len(matched))
	if offset >= len(matched) {
		return []model.WaitlistEntry{}, total, nil
	}
	end := offset + limit
	if end > len(matched) {
		end = len(matched)
	}
	return matched[offset:end], total, nil
}
