package repository

import (
	"context"
	"errors"
	"time"

	"github.com/cribnosh/verify-api/internal/model"
	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// WaitlistRepository handles database operations for WaitlistEntry
type WaitlistRepository struct {
	db *gorm.DB
}

func NewWaitlistRepository(db *gorm.DB) *WaitlistRepository {
	return &WaitlistRepository{db: db}
}

// FindByIdentifier finds the entry keyed by an email or phone
func (r *WaitlistRepository) FindByIdentifier(ctx context.Context, id model.Identifier) (*model.WaitlistEntry, error) {
	var entry model.WaitlistEntry
	err := r.db.WithContext(ctx).Where(id.Column()+" = ?", id.Value).First(&entry).Error
	if err != nil {
		return nil, translate(err)
	}
	return &entry, nil
}

// Upsert returns the existing entry for the identifier, or inserts a new one.
// The insert ignores unique conflicts so that two concurrent first-time
// signups resolve to the same row.
func (r *WaitlistRepository) Upsert(ctx context.Context, in model.WaitlistUpsert, now time.Time) (model.WaitlistResult, error) {
	existing, err := r.FindByIdentifier(ctx, in.Identifier)
	if err == nil {
		return model.WaitlistResult{WaitlistID: existing.ID, IsExisting: true}, nil
	}
	if !errors.Is(err, ErrNotFound) {
		return model.WaitlistResult{}, err
	}

	entry := newWaitlistEntry(in, now)
	res := r.db.WithContext(ctx).Clauses(clause.OnConflict{DoNothing: true}).Create(entry)
	if res.Error != nil {
		return model.WaitlistResult{}, res.Error
	}
	if res.RowsAffected == 0 {
		// Lost the race to a concurrent insert
		existing, err = r.FindByIdentifier(ctx, in.Identifier)
		if err != nil {
			return model.WaitlistResult{}, err
		}
		return model.WaitlistResult{WaitlistID: existing.ID, IsExisting: true}, nil
	}
	return model.WaitlistResult{WaitlistID: entry.ID}, nil
}

// List pages through entries, newest first
func (r *WaitlistRepository) List(ctx context.Context, status model.WaitlistStatus, limit, offset int) ([]model.WaitlistEntry, int64, error) {
	q := r.db.WithContext(ctx).Model(&model.WaitlistEntry{})
	if status != "" {
		q = q.Where("status = ?", status)
	}
	var total int64
	if err := q.Count(&total).Error; err != nil {
		return nil, 0, err
	}
	var entries []model.WaitlistEntry
	err := q.Order("joined_at DESC").Limit(limit).Offset(offset).Find(&entries).Error
	return entries, total, err
}

func newWaitlistEntry(in model.WaitlistUpsert, now time.Time) *model.WaitlistEntry {
	entry := &model.WaitlistEntry{
		ID:           uuid.New(),
		Name:         in.Name,
		Location:     in.Location,
		ReferralCode: in.ReferralCode,
		Source:       in.Source,
		Status:       model.WaitlistStatusActive,
		JoinedAt:     now,
		UpdatedAt:    now,
	}
	value := in.Identifier.Value
	switch in.Identifier.Kind {
	case model.IdentifierEmail:
		entry.Email = &value
	case model.IdentifierPhone:
		entry.Phone = &value
	}
	return entry
}
