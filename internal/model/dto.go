package model

import "github.com/google/uuid"

// ========== OTP DTOs ==========

// SendOTPRequest carries exactly one of phone or email.
type SendOTPRequest struct {
	Phone        string `json:"phone" binding:"omitempty,max=32"`
	Email        string `json:"email" binding:"omitempty,max=255"`
	MaxAttempts  *int   `json:"max_attempts" binding:"omitempty"`
	Name         string `json:"name" binding:"max=100"`
	Location     string `json:"location" binding:"max=255"`
	ReferralCode string `json:"referral_code" binding:"max=64"`
	Source       string `json:"source" binding:"max=64"`
}

type SendOTPResponse struct {
	Success     bool      `json:"success"`
	Message     string    `json:"message"`
	OTPID       uuid.UUID `json:"otp_id"`
	WaitlistID  uuid.UUID `json:"waitlist_id"`
	IsExisting  bool      `json:"is_existing"`
	ExpiresAt   int64     `json:"expires_at"` // unix ms
	ExpiresIn   int       `json:"expires_in"` // seconds until code expires
	MaxAttempts int       `json:"max_attempts"`
	Delivered   bool      `json:"delivered"`
	TestCode    string    `json:"test_code,omitempty"`
}

type VerifyOTPRequest struct {
	Phone string `json:"phone" binding:"omitempty,max=32"`
	Email string `json:"email" binding:"omitempty,max=255"`
	Code  string `json:"code" binding:"required"`
}

type VerifyOTPResponse struct {
	Success        bool           `json:"success"`
	Message        string         `json:"message"`
	OTPID          uuid.UUID      `json:"otp_id"`
	Identifier     string         `json:"identifier"`
	IdentifierType IdentifierKind `json:"identifier_type"`
	VerifiedAt     int64          `json:"verified_at"` // unix ms
	WaitlistID     *uuid.UUID     `json:"waitlist_id,omitempty"`
	IsWaitlistUser bool           `json:"is_waitlist_user"`
}

// IssueResult is the service-level outcome of an issuance.
type IssueResult struct {
	OTP       *OTP
	Waitlist  WaitlistResult
	Delivered bool
	MessageID string
	Code      string
	Message   string
}

// VerifyResult is the service-level outcome of a successful verification.
type VerifyResult struct {
	OTP      *OTP
	Waitlist *WaitlistEntry // nil when the identifier never joined
	Message  string
}

// CleanupResult reports how many expired records a sweep removed
type CleanupResult struct {
	Deleted         int64 `json:"deleted"`
	IssuancesPruned int64 `json:"issuances_pruned"`
}

// ========== Admin DTOs ==========

type AdminLoginRequest struct {
	Username string `json:"username" binding:"required,max=64"`
	Password string `json:"password" binding:"required,min=6"`
}

type AdminLoginResponse struct {
	Token     string `json:"token"`
	ExpiresAt int64  `json:"expires_at"` // unix ms
}

// WaitlistListRequest looks up one entry when Email or Phone is set,
// otherwise pages through entries.
type WaitlistListRequest struct {
	Email  string         `form:"email" binding:"omitempty,max=255"`
	Phone  string         `form:"phone" binding:"omitempty,max=32"`
	Status WaitlistStatus `form:"status" binding:"omitempty,oneof=active converted inactive"`
	Limit  int            `form:"limit,default=50" binding:"min=1,max=500"`
	Offset int            `form:"offset,default=0" binding:"min=0"`
}

type WaitlistListResponse struct {
	Entries []WaitlistEntry `json:"entries"`
	Total   int64           `json:"total"`
}

// ========== WebSocket Event DTOs ==========

type WSEvent struct {
	Type    string      `json:"type"`
	Payload interface{} `json:"payload"`
}

// OTP lifecycle event types
const (
	WSEventOTPIssued   = "otp.issued"
	WSEventOTPVerified = "otp.verified"
	WSEventOTPFailed   = "otp.failed"
	WSEventOTPExpired  = "otp.expired"
	WSEventOTPSwept    = "otp.swept"
)

// OTPEvent never carries the code; the identifier is masked.
type OTPEvent struct {
	OTPID      string         `json:"otp_id,omitempty"`
	Kind       IdentifierKind `json:"kind,omitempty"`
	Identifier string         `json:"identifier,omitempty"`
	Reason     string         `json:"reason,omitempty"`
	Remaining  *int           `json:"remaining,omitempty"`
	Delivered  *bool          `json:"delivered,omitempty"`
	Count      int64          `json:"count,omitempty"`
	At         int64          `json:"at"`
}

// ========== Common ==========

type ErrorResponse struct {
	Error   string                 `json:"error"`
	Message string                 `json:"message,omitempty"`
	Details map[string]interface{} `json:"details,omitempty"`
}

type SuccessResponse struct {
	Message string      `json:"message"`
	Data    interface{} `json:"data,omitempty"`
}
