package job

import (
	"context"

	"github.com/cribnosh/verify-api/internal/model"
)

// Cleaner is implemented by service.OTPService
type Cleaner interface {
	CleanupExpiredOTPs(ctx context.Context) (*model.CleanupResult, error)
}

// OTPCleanupJob hard-deletes expired codes and stale issuance log rows.
type OTPCleanupJob struct {
	cleaner Cleaner
}

func NewOTPCleanupJob(cleaner Cleaner) *OTPCleanupJob {
	return &OTPCleanupJob{cleaner: cleaner}
}

func (j *OTPCleanupJob) Name() string {
	return "otp_cleanup"
}

func (j *OTPCleanupJob) Run(ctx context.Context) error {
	if j.cleaner == nil {
		return nil
	}
	_, err := j.cleaner.CleanupExpiredOTPs(ctx)
	return err
}
