package service

import (
	"context"
	"crypto/subtle"
	"errors"
	"fmt"
	"time"

	"github.com/cribnosh/verify-api/internal/config"
	"github.com/cribnosh/verify-api/internal/delivery"
	"github.com/cribnosh/verify-api/internal/model"
	"github.com/cribnosh/verify-api/internal/repository"
	"github.com/cribnosh/verify-api/pkg/apperr"
	"github.com/cribnosh/verify-api/pkg/logger"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

const (
	// verification re-runs after losing an optimistic update race
	maxVerifyRetries = 3

	MessageIssued   = "OTP created and user added to waitlist successfully"
	MessageVerified = "Verification successful"
)

// OTPStore is implemented by repository.OTPRepository and repository.MemoryOTPStore.
type OTPStore interface {
	IssuanceCounter
	Replace(ctx context.Context, otp *model.OTP) error
	Latest(ctx context.Context, id model.Identifier) (*model.OTP, error)
	Update(ctx context.Context, otp *model.OTP) error
	Delete(ctx context.Context, id uuid.UUID) error
	DeleteExpired(ctx context.Context, now time.Time) (int64, error)
	RecordIssuance(ctx context.Context, issuance *model.OTPIssuance) error
	PruneIssuances(ctx context.Context, before time.Time) (int64, error)
}

// EventPublisher receives OTP lifecycle events. Publishing never blocks the
// request path.
type EventPublisher interface {
	Publish(ctx context.Context, event model.WSEvent)
}

type IssueRequest struct {
	Phone        string
	Email        string
	Code         string
	MaxAttempts  *int
	Name         string
	Location     string
	ReferralCode string
	Source       string
}

type VerifyRequest struct {
	Phone string
	Email string
	Code  string
}

// OTPService handles OTP issuance, verification and the expiry sweep
type OTPService struct {
	store      OTPStore
	waitlist   *WaitlistService
	limiter    *RateLimiter
	dispatcher delivery.Dispatcher
	events     EventPublisher
	cfg        config.OTPConfig
	now        func() time.Time
}

func NewOTPService(
	store OTPStore,
	waitlist *WaitlistService,
	dispatcher delivery.Dispatcher,
	events EventPublisher,
	cfg config.OTPConfig,
) *OTPService {
	return &OTPService{
		store:      store,
		waitlist:   waitlist,
		limiter:    NewRateLimiter(store, cfg.MaxPerIdentifier, cfg.RateWindow),
		dispatcher: dispatcher,
		events:     events,
		cfg:        cfg,
		now:        time.Now,
	}
}

// GenerateCode returns the configured development code, or a random one.
func (s *OTPService) GenerateCode() (string, error) {
	if s.cfg.FixedCode != "" {
		return s.cfg.FixedCode, nil
	}
	return generateOTPCode(codeLength)
}

// ==================== Issue ====================

// IssueOTP replaces any prior code for the identifier with req.Code and
// sends it out of band. Delivery failures are logged, never returned.
func (s *OTPService) IssueOTP(ctx context.Context, req IssueRequest) (*model.IssueResult, error) {
	const op = "OTPService.IssueOTP"

	id, err := ParseIdentifier(op, req.Phone, req.Email)
	if err != nil {
		return nil, s.fail(err, model.Identifier{})
	}
	if err := ValidateCode(op, req.Code); err != nil {
		return nil, s.fail(err, id)
	}
	maxAttempts, err := ResolveMaxAttempts(op, req.MaxAttempts, s.cfg.DefaultMaxAttempts)
	if err != nil {
		return nil, s.fail(err, id)
	}

	if err := s.limiter.Allow(ctx, id); err != nil {
		return nil, s.fail(err, id)
	}

	wl, err := s.waitlist.Upsert(ctx, model.WaitlistUpsert{
		Identifier:   id,
		Name:         req.Name,
		Location:     req.Location,
		ReferralCode: req.ReferralCode,
		Source:       req.Source,
	})
	if err != nil {
		return nil, s.fail(err, id)
	}

	now := s.now()
	otp := &model.OTP{
		ID:          uuid.New(),
		Code:        req.Code,
		ExpiresAt:   now.Add(s.cfg.Expiry),
		MaxAttempts: maxAttempts,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	otp.SetIdentifier(id)

	if err := s.store.Replace(ctx, otp); err != nil {
		return nil, s.fail(apperr.Internal(op, err), id)
	}
	if err := s.store.RecordIssuance(ctx, &model.OTPIssuance{
		ID:             uuid.New(),
		IdentifierKind: id.Kind,
		Identifier:     id.Value,
		CreatedAt:      now,
	}); err != nil {
		return nil, s.fail(apperr.Internal(op, err), id)
	}

	result := &model.IssueResult{
		OTP:      otp,
		Waitlist: wl,
		Code:     req.Code,
		Message:  MessageIssued,
	}
	s.dispatch(ctx, id, otp, result)

	zap.L().Info("🔐 otp issued",
		zap.String("otp_id", otp.ID.String()),
		zap.String("identifier", logger.MaskIdentifier(id.Value)),
		zap.Int("max_attempts", maxAttempts),
		zap.Bool("delivered", result.Delivered),
		zap.Bool("waitlist_existing", wl.IsExisting))

	delivered := result.Delivered
	s.publish(ctx, model.WSEventOTPIssued, otp, id, model.OTPEvent{Delivered: &delivered})
	return result, nil
}

func (s *OTPService) dispatch(ctx context.Context, id model.Identifier, otp *model.OTP, result *model.IssueResult) {
	if s.dispatcher == nil {
		return
	}
	// the record already exists, so a caller hanging up must not abort delivery
	sendCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.cfg.DeliveryTimeout)
	defer cancel()

	res, err := s.dispatcher.Send(sendCtx, id, otp.Code, s.cfg.ExpiryMinutes())
	if err != nil || !res.Success {
		zap.L().Warn("⚠️  otp delivery failed",
			zap.String("otp_id", otp.ID.String()),
			zap.String("identifier", logger.MaskIdentifier(id.Value)),
			zap.String("provider", res.Provider),
			zap.Error(err))
		return
	}
	result.Delivered = true
	result.MessageID = res.MessageID
}

// ==================== Verify ====================

// VerifyOTP checks code against the latest record for the identifier.
func (s *OTPService) VerifyOTP(ctx context.Context, req VerifyRequest) (*model.VerifyResult, error) {
	const op = "OTPService.VerifyOTP"

	id, err := ParseIdentifier(op, req.Phone, req.Email)
	if err != nil {
		return nil, s.fail(err, model.Identifier{})
	}
	if err := ValidateCode(op, req.Code); err != nil {
		return nil, s.fail(err, id)
	}

	for attempt := 1; ; attempt++ {
		res, err := s.verifyOnce(ctx, op, id, req.Code)
		if !errors.Is(err, repository.ErrStale) {
			if err != nil {
				return nil, s.fail(err, id)
			}
			return res, nil
		}
		if attempt >= maxVerifyRetries {
			return nil, s.fail(apperr.New(apperr.KindConflict, op,
				"Verification is already in progress for this code. Please try again.").
				With("retries", attempt), id)
		}
		zap.L().Debug("otp update raced, reloading", zap.Int("attempt", attempt))
	}
}

// verifyOnce runs the state machine against a freshly loaded record.
// A lost update race surfaces as repository.ErrStale.
func (s *OTPService) verifyOnce(ctx context.Context, op string, id model.Identifier, code string) (*model.VerifyResult, error) {
	otp, err := s.store.Latest(ctx, id)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, apperr.New(apperr.KindNotFound, op,
			fmt.Sprintf("No verification code found for this %s. Please request a new verification code.", id.Label()))
	}
	if err != nil {
		return nil, apperr.Internal(op, err)
	}

	now := s.now()
	if otp.IsExpired(now) {
		if err := s.store.Delete(ctx, otp.ID); err != nil {
			return nil, apperr.Internal(op, err)
		}
		s.publish(ctx, model.WSEventOTPExpired, otp, id, model.OTPEvent{})
		return nil, apperr.New(apperr.KindExpired, op,
			"Verification code has expired. Please request a new verification code.").
			With("otp_id", otp.ID.String())
	}

	if otp.IsUsed {
		if otp.VerifiedAt == nil && otp.IsExhausted() {
			return nil, attemptsExceeded(op, otp,
				"Maximum verification attempts exceeded. Please request a new verification code.")
		}
		return nil, apperr.New(apperr.KindConflict, op,
			"This verification code has already been used. Please request a new one.").
			With("otp_id", otp.ID.String())
	}

	if otp.IsExhausted() {
		otp.IsUsed = true
		otp.UpdatedAt = now
		if err := s.persist(ctx, op, otp); err != nil {
			return nil, err
		}
		return nil, attemptsExceeded(op, otp,
			"Maximum verification attempts exceeded. Please request a new verification code.")
	}

	match := subtle.ConstantTimeCompare([]byte(otp.Code), []byte(code)) == 1
	otp.Attempts++
	otp.UpdatedAt = now

	if !match {
		if otp.IsExhausted() {
			otp.IsUsed = true
		}
		if err := s.persist(ctx, op, otp); err != nil {
			return nil, err
		}
		remaining := otp.RemainingAttempts()
		s.publish(ctx, model.WSEventOTPFailed, otp, id, model.OTPEvent{Reason: "invalid_code", Remaining: &remaining})
		if remaining == 0 {
			return nil, attemptsExceeded(op, otp,
				"Invalid verification code. Maximum attempts exceeded. Please request a new verification code.")
		}
		return nil, apperr.New(apperr.KindInvalidCode, op,
			fmt.Sprintf("Invalid verification code. %s remaining.", pluralAttempts(remaining))).
			With("otp_id", otp.ID.String()).
			With("attempts", otp.Attempts).
			With("remaining", remaining)
	}

	otp.IsUsed = true
	verifiedAt := now
	otp.VerifiedAt = &verifiedAt
	if err := s.persist(ctx, op, otp); err != nil {
		return nil, err
	}

	// the code is already consumed, so a failed lookup only loses the reference
	entry, err := s.waitlist.Lookup(ctx, id)
	if err != nil {
		zap.L().Warn("⚠️  waitlist lookup failed after verification", zap.Error(err))
		entry = nil
	}

	zap.L().Info("✅ otp verified",
		zap.String("otp_id", otp.ID.String()),
		zap.String("identifier", logger.MaskIdentifier(id.Value)),
		zap.Int("attempts", otp.Attempts))
	s.publish(ctx, model.WSEventOTPVerified, otp, id, model.OTPEvent{})

	return &model.VerifyResult{OTP: otp, Waitlist: entry, Message: MessageVerified}, nil
}

// persist passes repository.ErrStale through untouched so VerifyOTP can retry.
func (s *OTPService) persist(ctx context.Context, op string, otp *model.OTP) error {
	err := s.store.Update(ctx, otp)
	if err == nil || errors.Is(err, repository.ErrStale) {
		return err
	}
	return apperr.Internal(op, err)
}

func attemptsExceeded(op string, otp *model.OTP, msg string) error {
	return apperr.New(apperr.KindAttemptsExceeded, op, msg).
		With("otp_id", otp.ID.String()).
		With("attempts", otp.Attempts).
		With("max_attempts", otp.MaxAttempts)
}

func pluralAttempts(n int) string {
	if n == 1 {
		return "1 attempt"
	}
	return fmt.Sprintf("%d attempts", n)
}

// ==================== Cleanup ====================

// CleanupExpiredOTPs hard-deletes expired records and prunes issuance log
// entries that no longer count toward any rate-limit window. Idempotent.
func (s *OTPService) CleanupExpiredOTPs(ctx context.Context) (*model.CleanupResult, error) {
	const op = "OTPService.CleanupExpiredOTPs"
	now := s.now()

	deleted, err := s.store.DeleteExpired(ctx, now)
	if err != nil {
		return nil, s.fail(apperr.Internal(op, err), model.Identifier{})
	}
	pruned, err := s.store.PruneIssuances(ctx, now.Add(-s.cfg.RateWindow))
	if err != nil {
		return nil, s.fail(apperr.Internal(op, err), model.Identifier{})
	}

	if deleted > 0 {
		zap.L().Info("🧹 expired otps swept", zap.Int64("deleted", deleted), zap.Int64("issuances_pruned", pruned))
		s.publish(ctx, model.WSEventOTPSwept, nil, model.Identifier{}, model.OTPEvent{Count: deleted})
	}
	return &model.CleanupResult{Deleted: deleted, IssuancesPruned: pruned}, nil
}

// ==================== Helpers ====================

// fail logs err with its structured context and returns it unchanged.
func (s *OTPService) fail(err error, id model.Identifier) error {
	fields := []zap.Field{zap.Error(err)}
	if ae, ok := apperr.As(err); ok {
		fields = append(fields, ae.ZapFields()...)
	}
	if !id.IsZero() {
		fields = append(fields,
			zap.String("identifier_kind", string(id.Kind)),
			zap.String("identifier", logger.MaskIdentifier(id.Value)))
	}
	if apperr.KindOf(err) == apperr.KindInternal {
		zap.L().Error("❌ otp operation failed", fields...)
	} else {
		zap.L().Info("otp request rejected", fields...)
	}
	return err
}

func (s *OTPService) publish(ctx context.Context, eventType string, otp *model.OTP, id model.Identifier, payload model.OTPEvent) {
	if s.events == nil {
		return
	}
	if otp != nil {
		payload.OTPID = otp.ID.String()
	}
	if !id.IsZero() {
		payload.Kind = id.Kind
		payload.Identifier = logger.MaskIdentifier(id.Value)
	}
	payload.At = s.now().UnixMilli()
	s.events.Publish(ctx, model.WSEvent{Type: eventType, Payload: payload})
}
