package service

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/cribnosh/verify-api/internal/config"
	"github.com/cribnosh/verify-api/internal/delivery"
	"github.com/cribnosh/verify-api/internal/model"
	"github.com/cribnosh/verify-api/internal/repository"
	"github.com/cribnosh/verify-api/pkg/apperr"
	"github.com/stretchr/testify/require"
)

type testClock struct {
	mu sync.Mutex
	t  time.Time
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *testClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = c.t.Add(d)
}

type recordingDispatcher struct {
	mu    sync.Mutex
	sent  []string
	fail  bool
	calls int
}

func (d *recordingDispatcher) Send(_ context.Context, id model.Identifier, code string, _ int) (delivery.Result, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.calls++
	if d.fail {
		return delivery.Result{Provider: "test"}, errors.New("provider unavailable")
	}
	d.sent = append(d.sent, id.Value+"="+code)
	return delivery.Result{Success: true, MessageID: "m1", Provider: "test"}, nil
}

type recordingPublisher struct {
	mu     sync.Mutex
	events []model.WSEvent
}

func (p *recordingPublisher) Publish(_ context.Context, e model.WSEvent) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, e)
}

func (p *recordingPublisher) types() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]string, 0, len(p.events))
	for _, e := range p.events {
		out = append(out, e.Type)
	}
	return out
}

type fixture struct {
	svc        *OTPService
	store      *repository.MemoryOTPStore
	dispatcher *recordingDispatcher
	events     *recordingPublisher
	clock      *testClock
}

func testOTPConfig() config.OTPConfig {
	return config.OTPConfig{
		Expiry:             5 * time.Minute,
		DefaultMaxAttempts: 3,
		MaxPerIdentifier:   20,
		RateWindow:         time.Hour,
		DeliveryTimeout:    time.Second,
	}
}

func newFixture(t *testing.T, cfg config.OTPConfig) *fixture {
	t.Helper()
	f := &fixture{
		store:      repository.NewMemoryOTPStore(),
		dispatcher: &recordingDispatcher{},
		events:     &recordingPublisher{},
		clock:      &testClock{t: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)},
	}
	waitlist := NewWaitlistService(repository.NewMemoryWaitlistStore())
	f.svc = NewOTPService(f.store, waitlist, f.dispatcher, f.events, cfg)
	f.svc.now = f.clock.Now
	f.svc.limiter.now = f.clock.Now
	waitlist.now = f.clock.Now
	return f
}

func (f *fixture) issue(t *testing.T, req IssueRequest) *model.IssueResult {
	t.Helper()
	res, err := f.svc.IssueOTP(context.Background(), req)
	require.NoError(t, err)
	return res
}

func requireKind(t *testing.T, err error, kind apperr.Kind) *apperr.Error {
	t.Helper()
	require.Error(t, err)
	ae, ok := apperr.As(err)
	require.True(t, ok, "expected *apperr.Error, got %T", err)
	require.Equal(t, kind, ae.Kind, ae.Message)
	return ae
}

func TestIssueThenVerify(t *testing.T) {
	f := newFixture(t, testOTPConfig())
	ctx := context.Background()

	issued := f.issue(t, IssueRequest{Email: "a@b.com", Code: "123456", Name: "Ada"})
	require.Equal(t, MessageIssued, issued.Message)
	require.True(t, issued.Delivered)
	require.False(t, issued.Waitlist.IsExisting)
	require.Equal(t, 3, issued.OTP.MaxAttempts)
	require.Equal(t, f.clock.Now().Add(5*time.Minute), issued.OTP.ExpiresAt)
	require.Equal(t, []string{"a@b.com=123456"}, f.dispatcher.sent)

	res, err := f.svc.VerifyOTP(ctx, VerifyRequest{Email: "a@b.com", Code: "123456"})
	require.NoError(t, err)
	require.Equal(t, MessageVerified, res.Message)
	require.True(t, res.OTP.IsUsed)
	require.Equal(t, 1, res.OTP.Attempts)
	require.NotNil(t, res.OTP.VerifiedAt)
	require.NotNil(t, res.Waitlist)
	require.Equal(t, issued.Waitlist.WaitlistID, res.Waitlist.ID)

	stored, err := f.store.Latest(ctx, model.Identifier{Kind: model.IdentifierEmail, Value: "a@b.com"})
	require.NoError(t, err)
	require.True(t, stored.IsUsed)

	require.Equal(t, []string{model.WSEventOTPIssued, model.WSEventOTPVerified}, f.events.types())
}

func TestVerifySameCodeTwiceConflicts(t *testing.T) {
	f := newFixture(t, testOTPConfig())
	ctx := context.Background()
	f.issue(t, IssueRequest{Email: "x@y.com", Code: "555555"})

	_, err := f.svc.VerifyOTP(ctx, VerifyRequest{Email: "x@y.com", Code: "555555"})
	require.NoError(t, err)

	_, err = f.svc.VerifyOTP(ctx, VerifyRequest{Email: "x@y.com", Code: "555555"})
	ae := requireKind(t, err, apperr.KindConflict)
	require.Contains(t, ae.Message, "already been used")
}

func TestIssueTwiceLeavesOneActiveRecord(t *testing.T) {
	f := newFixture(t, testOTPConfig())
	ctx := context.Background()

	first := f.issue(t, IssueRequest{Email: "a@b.com", Code: "111111"})
	f.clock.Advance(time.Second)
	second := f.issue(t, IssueRequest{Email: "a@b.com", Code: "222222"})

	require.Equal(t, 1, f.store.Count())
	require.True(t, second.Waitlist.IsExisting)
	require.Equal(t, first.Waitlist.WaitlistID, second.Waitlist.WaitlistID)

	_, err := f.svc.VerifyOTP(ctx, VerifyRequest{Email: "a@b.com", Code: "111111"})
	requireKind(t, err, apperr.KindInvalidCode)

	res, err := f.svc.VerifyOTP(ctx, VerifyRequest{Email: "a@b.com", Code: "222222"})
	require.NoError(t, err)
	require.Equal(t, second.OTP.ID, res.OTP.ID)
}

func TestWrongCodesExhaustRecord(t *testing.T) {
	f := newFixture(t, testOTPConfig())
	ctx := context.Background()
	three := 3
	f.issue(t, IssueRequest{Email: "a@b.com", Code: "123456", MaxAttempts: &three})

	_, err := f.svc.VerifyOTP(ctx, VerifyRequest{Email: "a@b.com", Code: "000000"})
	ae := requireKind(t, err, apperr.KindInvalidCode)
	require.Contains(t, ae.Message, "2 attempts remaining")
	require.Equal(t, 2, ae.Fields["remaining"])

	_, err = f.svc.VerifyOTP(ctx, VerifyRequest{Email: "a@b.com", Code: "000000"})
	ae = requireKind(t, err, apperr.KindInvalidCode)
	require.Contains(t, ae.Message, "1 attempt remaining")

	_, err = f.svc.VerifyOTP(ctx, VerifyRequest{Email: "a@b.com", Code: "000000"})
	ae = requireKind(t, err, apperr.KindAttemptsExceeded)
	require.Contains(t, ae.Message, "Maximum attempts exceeded")

	stored, err := f.store.Latest(ctx, model.Identifier{Kind: model.IdentifierEmail, Value: "a@b.com"})
	require.NoError(t, err)
	require.True(t, stored.IsUsed)
	require.Equal(t, 3, stored.Attempts)
	require.Nil(t, stored.VerifiedAt)

	// the correct code no longer helps, and the record reads as exhausted
	_, err = f.svc.VerifyOTP(ctx, VerifyRequest{Email: "a@b.com", Code: "123456"})
	requireKind(t, err, apperr.KindAttemptsExceeded)

	stored, err = f.store.Latest(ctx, model.Identifier{Kind: model.IdentifierEmail, Value: "a@b.com"})
	require.NoError(t, err)
	require.Equal(t, 3, stored.Attempts)
	require.Equal(t, model.OTPStateExhausted, stored.State(f.clock.Now()))
}

func TestSingleAttemptCeilingFlipsImmediately(t *testing.T) {
	f := newFixture(t, testOTPConfig())
	ctx := context.Background()
	one := 1
	f.issue(t, IssueRequest{Phone: "+447700900123", Code: "123456", MaxAttempts: &one})

	_, err := f.svc.VerifyOTP(ctx, VerifyRequest{Phone: "+447700900123", Code: "654321"})
	requireKind(t, err, apperr.KindAttemptsExceeded)

	stored, err := f.store.Latest(ctx, model.Identifier{Kind: model.IdentifierPhone, Value: "+447700900123"})
	require.NoError(t, err)
	require.True(t, stored.IsUsed)
	require.Equal(t, 1, stored.Attempts)
}

func TestExhaustedRecordWithoutFlipIsForceConsumed(t *testing.T) {
	f := newFixture(t, testOTPConfig())
	ctx := context.Background()
	f.issue(t, IssueRequest{Email: "a@b.com", Code: "123456"})

	// a record written by an older deployment that never flipped at the ceiling
	id := model.Identifier{Kind: model.IdentifierEmail, Value: "a@b.com"}
	stored, err := f.store.Latest(ctx, id)
	require.NoError(t, err)
	stored.Attempts = stored.MaxAttempts
	require.NoError(t, f.store.Update(ctx, stored))

	_, err = f.svc.VerifyOTP(ctx, VerifyRequest{Email: "a@b.com", Code: "123456"})
	requireKind(t, err, apperr.KindAttemptsExceeded)

	stored, err = f.store.Latest(ctx, id)
	require.NoError(t, err)
	require.True(t, stored.IsUsed)
	require.Equal(t, stored.MaxAttempts, stored.Attempts)
}

func TestExpiredCodeIsDeleted(t *testing.T) {
	f := newFixture(t, testOTPConfig())
	ctx := context.Background()
	f.issue(t, IssueRequest{Phone: "+447123456789", Code: "111111"})

	f.clock.Advance(5*time.Minute + time.Millisecond)

	_, err := f.svc.VerifyOTP(ctx, VerifyRequest{Phone: "+447123456789", Code: "111111"})
	ae := requireKind(t, err, apperr.KindExpired)
	require.Contains(t, ae.Message, "expired")
	require.Equal(t, 0, f.store.Count())

	_, err = f.svc.VerifyOTP(ctx, VerifyRequest{Phone: "+447123456789", Code: "111111"})
	ae = requireKind(t, err, apperr.KindNotFound)
	require.Contains(t, ae.Message, "phone number")
	require.Contains(t, f.events.types(), model.WSEventOTPExpired)
}

func TestVerifyAtExactExpiryStillActive(t *testing.T) {
	f := newFixture(t, testOTPConfig())
	f.issue(t, IssueRequest{Email: "a@b.com", Code: "123456"})
	f.clock.Advance(5 * time.Minute)

	_, err := f.svc.VerifyOTP(context.Background(), VerifyRequest{Email: "a@b.com", Code: "123456"})
	require.NoError(t, err)
}

func TestVerifyWithoutIssueIsNotFound(t *testing.T) {
	f := newFixture(t, testOTPConfig())
	_, err := f.svc.VerifyOTP(context.Background(), VerifyRequest{Email: "nobody@b.com", Code: "123456"})
	ae := requireKind(t, err, apperr.KindNotFound)
	require.Contains(t, ae.Message, "email address")
}

func TestIssueValidation(t *testing.T) {
	f := newFixture(t, testOTPConfig())
	ctx := context.Background()
	zero, eleven := 0, 11

	cases := []IssueRequest{
		{Code: "123456"},
		{Phone: "+447700900123", Email: "a@b.com", Code: "123456"},
		{Email: "a@b.com", Code: "12345"},
		{Email: "a@b.com", Code: "abcdef"},
		{Email: "a@b.com", Code: "1234567"},
		{Email: "not-an-email", Code: "123456"},
		{Phone: "07700 900123", Code: "123456"},
		{Email: "a@b.com", Code: "123456", MaxAttempts: &zero},
		{Email: "a@b.com", Code: "123456", MaxAttempts: &eleven},
	}
	for _, req := range cases {
		_, err := f.svc.IssueOTP(ctx, req)
		requireKind(t, err, apperr.KindValidation)
	}
	require.Equal(t, 0, f.store.Count())
	require.Zero(t, f.dispatcher.calls)
}

func TestVerifyValidation(t *testing.T) {
	f := newFixture(t, testOTPConfig())
	ctx := context.Background()

	_, err := f.svc.VerifyOTP(ctx, VerifyRequest{Code: "123456"})
	requireKind(t, err, apperr.KindValidation)
	_, err = f.svc.VerifyOTP(ctx, VerifyRequest{Email: "a@b.com", Phone: "+447700900123", Code: "123456"})
	requireKind(t, err, apperr.KindValidation)
	_, err = f.svc.VerifyOTP(ctx, VerifyRequest{Email: "a@b.com", Code: "12 456"})
	requireKind(t, err, apperr.KindValidation)
}

func TestIdentifierNormalization(t *testing.T) {
	f := newFixture(t, testOTPConfig())
	f.issue(t, IssueRequest{Email: "  Ada@Example.COM ", Code: "123456"})

	_, err := f.svc.VerifyOTP(context.Background(), VerifyRequest{Email: "ada@example.com", Code: "123456"})
	require.NoError(t, err)

	f.issue(t, IssueRequest{Phone: "+44 7700-900123", Code: "123456"})
	_, err = f.svc.VerifyOTP(context.Background(), VerifyRequest{Phone: "+447700900123", Code: "123456"})
	require.NoError(t, err)
}

func TestRateLimitPerIdentifier(t *testing.T) {
	cfg := testOTPConfig()
	cfg.MaxPerIdentifier = 2
	f := newFixture(t, cfg)
	ctx := context.Background()

	f.issue(t, IssueRequest{Email: "a@b.com", Code: "123456"})
	f.issue(t, IssueRequest{Email: "a@b.com", Code: "123456"})

	_, err := f.svc.IssueOTP(ctx, IssueRequest{Email: "a@b.com", Code: "123456"})
	ae := requireKind(t, err, apperr.KindRateLimited)
	require.EqualValues(t, 2, ae.Fields["count"])

	// other identifiers are unaffected
	f.issue(t, IssueRequest{Email: "c@d.com", Code: "123456"})

	f.clock.Advance(time.Hour + time.Second)
	f.issue(t, IssueRequest{Email: "a@b.com", Code: "123456"})
}

func TestDeliveryFailureIsSwallowed(t *testing.T) {
	f := newFixture(t, testOTPConfig())
	f.dispatcher.fail = true

	res := f.issue(t, IssueRequest{Email: "a@b.com", Code: "123456"})
	require.False(t, res.Delivered)
	require.Equal(t, 1, f.dispatcher.calls)

	_, err := f.svc.VerifyOTP(context.Background(), VerifyRequest{Email: "a@b.com", Code: "123456"})
	require.NoError(t, err)
}

func TestCleanupExpiredOTPs(t *testing.T) {
	f := newFixture(t, testOTPConfig())
	ctx := context.Background()

	f.issue(t, IssueRequest{Email: "a@b.com", Code: "123456"})
	f.clock.Advance(3 * time.Minute)
	f.issue(t, IssueRequest{Email: "c@d.com", Code: "123456"})
	f.clock.Advance(3 * time.Minute)

	res, err := f.svc.CleanupExpiredOTPs(ctx)
	require.NoError(t, err)
	require.EqualValues(t, 1, res.Deleted)
	require.Equal(t, 1, f.store.Count())

	res, err = f.svc.CleanupExpiredOTPs(ctx)
	require.NoError(t, err)
	require.EqualValues(t, 0, res.Deleted)

	_, err = f.svc.VerifyOTP(ctx, VerifyRequest{Email: "c@d.com", Code: "123456"})
	require.NoError(t, err)
}

func TestCleanupOnEmptyStore(t *testing.T) {
	f := newFixture(t, testOTPConfig())
	res, err := f.svc.CleanupExpiredOTPs(context.Background())
	require.NoError(t, err)
	require.EqualValues(t, 0, res.Deleted)
	require.Empty(t, f.events.types())
}

// staleStore loses the first n optimistic updates
type staleStore struct {
	*repository.MemoryOTPStore
	mu    sync.Mutex
	stale int
}

func (s *staleStore) Update(ctx context.Context, otp *model.OTP) error {
	s.mu.Lock()
	if s.stale > 0 {
		s.stale--
		s.mu.Unlock()
		return repository.ErrStale
	}
	s.mu.Unlock()
	return s.MemoryOTPStore.Update(ctx, otp)
}

func TestVerifyRetriesAfterLostRace(t *testing.T) {
	f := newFixture(t, testOTPConfig())
	store := &staleStore{MemoryOTPStore: f.store, stale: 1}
	f.svc.store = store
	f.issue(t, IssueRequest{Email: "a@b.com", Code: "123456"})

	res, err := f.svc.VerifyOTP(context.Background(), VerifyRequest{Email: "a@b.com", Code: "123456"})
	require.NoError(t, err)
	require.Equal(t, 1, res.OTP.Attempts)

	f.issue(t, IssueRequest{Email: "c@d.com", Code: "123456"})
	store.stale = maxVerifyRetries
	_, err = f.svc.VerifyOTP(context.Background(), VerifyRequest{Email: "c@d.com", Code: "123456"})
	requireKind(t, err, apperr.KindConflict)
}

func TestConcurrentVerifySucceedsOnce(t *testing.T) {
	f := newFixture(t, testOTPConfig())
	f.issue(t, IssueRequest{Email: "a@b.com", Code: "123456"})

	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		successes int
	)
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := f.svc.VerifyOTP(context.Background(), VerifyRequest{Email: "a@b.com", Code: "123456"})
			if err == nil {
				mu.Lock()
				successes++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()
	require.Equal(t, 1, successes)
}

func TestGenerateCode(t *testing.T) {
	f := newFixture(t, testOTPConfig())
	code, err := f.svc.GenerateCode()
	require.NoError(t, err)
	require.NoError(t, ValidateCode("test", code))

	cfg := testOTPConfig()
	cfg.FixedCode = "123456"
	f = newFixture(t, cfg)
	code, err = f.svc.GenerateCode()
	require.NoError(t, err)
	require.Equal(t, "123456", code)
}
