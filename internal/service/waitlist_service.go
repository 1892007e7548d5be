package service

import (
	"context"
	"errors"
	"time"

	"github.com/cribnosh/verify-api/internal/model"
	"github.com/cribnosh/verify-api/internal/repository"
	"github.com/cribnosh/verify-api/pkg/apperr"
)

// WaitlistStore is implemented by repository.WaitlistRepository and the memory store.
type WaitlistStore interface {
	FindByIdentifier(ctx context.Context, id model.Identifier) (*model.WaitlistEntry, error)
	Upsert(ctx context.Context, in model.WaitlistUpsert, now time.Time) (model.WaitlistResult, error)
	List(ctx context.Context, status model.WaitlistStatus, limit, offset int) ([]model.WaitlistEntry, int64, error)
}

// WaitlistService owns the signup side effect of issuance
type WaitlistService struct {
	store WaitlistStore
	now   func() time.Time
}

func NewWaitlistService(store WaitlistStore) *WaitlistService {
	return &WaitlistService{store: store, now: time.Now}
}

// Upsert joins the identifier to the waitlist, or returns its existing entry.
func (s *WaitlistService) Upsert(ctx context.Context, in model.WaitlistUpsert) (model.WaitlistResult, error) {
	res, err := s.store.Upsert(ctx, in, s.now())
	if err != nil {
		return model.WaitlistResult{}, apperr.Internal("WaitlistService.Upsert", err)
	}
	return res, nil
}

// Lookup returns nil without error when the identifier never joined.
func (s *WaitlistService) Lookup(ctx context.Context, id model.Identifier) (*model.WaitlistEntry, error) {
	entry, err := s.store.FindByIdentifier(ctx, id)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, apperr.Internal("WaitlistService.Lookup", err)
	}
	return entry, nil
}

// List pages through entries for the admin API
func (s *WaitlistService) List(ctx context.Context, req model.WaitlistListRequest) (*model.WaitlistListResponse, error) {
	entries, total, err := s.store.List(ctx, req.Status, req.Limit, req.Offset)
	if err != nil {
		return nil, apperr.Internal("WaitlistService.List", err)
	}
	if entries == nil {
		entries = []model.WaitlistEntry{}
	}
	return &model.WaitlistListResponse{Entries: entries, Total: total}, nil
}
