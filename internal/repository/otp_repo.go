package repository

import (
	"context"
	"time"

	"github.com/cribnosh/verify-api/internal/model"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// OTPRepository handles database operations for OTP records and the issuance log
type OTPRepository struct {
	db *gorm.DB
}

func NewOTPRepository(db *gorm.DB) *OTPRepository {
	return &OTPRepository{db: db}
}

// Create inserts a new OTP record
func (r *OTPRepository) Create(ctx context.Context, otp *model.OTP) error {
	return r.db.WithContext(ctx).Create(otp).Error
}

// Replace deletes every record for the identifier and inserts otp in one transaction
func (r *OTPRepository) Replace(ctx context.Context, otp *model.OTP) error {
	id := otp.Identifier()
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where(id.Column()+" = ?", id.Value).Delete(&model.OTP{}).Error; err != nil {
			return err
		}
		return tx.Create(otp).Error
	})
}

// DeleteByIdentifier removes all records for the identifier
func (r *OTPRepository) DeleteByIdentifier(ctx context.Context, id model.Identifier) (int64, error) {
	res := r.db.WithContext(ctx).Where(id.Column()+" = ?", id.Value).Delete(&model.OTP{})
	return res.RowsAffected, res.Error
}

// Latest finds the most recently created record for the identifier
func (r *OTPRepository) Latest(ctx context.Context, id model.Identifier) (*model.OTP, error) {
	var otp model.OTP
	err := r.db.WithContext(ctx).
		Where(id.Column()+" = ?", id.Value).
		Order("created_at DESC").
		First(&otp).Error
	if err != nil {
		return nil, translate(err)
	}
	return &otp, nil
}

// Update persists the mutable counters of otp if nobody else has touched it
// since it was read. On success otp.Version is bumped.
func (r *OTPRepository) Update(ctx context.Context, otp *model.OTP) error {
	updates := map[string]interface{}{
		"attempts":    otp.Attempts,
		"is_used":     otp.IsUsed,
		"verified_at": otp.VerifiedAt,
		"updated_at":  otp.UpdatedAt,
		"version":     otp.Version + 1,
	}
	res := r.db.WithContext(ctx).Model(&model.OTP{}).
		Where("id = ? AND version = ?", otp.ID, otp.Version).
		Updates(updates)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrStale
	}
	otp.Version++
	return nil
}

// Delete removes a single record; missing rows are not an error
func (r *OTPRepository) Delete(ctx context.Context, id uuid.UUID) error {
	return r.db.WithContext(ctx).Where("id = ?", id).Delete(&model.OTP{}).Error
}

// DeleteExpired removes all records whose expiry is before now (housekeeping)
func (r *OTPRepository) DeleteExpired(ctx context.Context, now time.Time) (int64, error) {
	res := r.db.WithContext(ctx).Where("expires_at < ?", now).Delete(&model.OTP{})
	return res.RowsAffected, res.Error
}

// RecordIssuance appends an entry to the issuance log
func (r *OTPRepository) RecordIssuance(ctx context.Context, issuance *model.OTPIssuance) error {
	return r.db.WithContext(ctx).Create(issuance).Error
}

// CountIssuancesSince counts how many codes were issued to the identifier after since (rate limiting)
func (r *OTPRepository) CountIssuancesSince(ctx context.Context, id model.Identifier, since time.Time) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&model.OTPIssuance{}).
		Where("identifier_kind = ? AND identifier = ? AND created_at > ?", id.Kind, id.Value, since).
		Count(&count).Error
	return count, err
}

// PruneIssuances drops log entries older than before
func (r *OTPRepository) PruneIssuances(ctx context.Context, before time.Time) (int64, error) {
	res := r.db.WithContext(ctx).Where("created_at < ?", before).Delete(&model.OTPIssuance{})
	return res.RowsAffected, res.Error
}
