package model

import (
	"time"

	"github.com/google/uuid"
)

// OTPState is the derived lifecycle state of a record.
type OTPState string

const (
	OTPStateActive    OTPState = "active"
	OTPStateExpired   OTPState = "expired"
	OTPStateExhausted OTPState = "exhausted"
	OTPStateConsumed  OTPState = "consumed"
)

// OTP represents a one-time passcode bound to exactly one phone number or email address
type OTP struct {
	ID          uuid.UUID  `json:"id" gorm:"type:uuid;primaryKey"`
	Phone       *string    `json:"phone,omitempty" gorm:"size:32;index:idx_otps_phone"`
	Email       *string    `json:"email,omitempty" gorm:"size:255;index:idx_otps_email"`
	Code        string     `json:"-" gorm:"size:6;not null"` // 6-digit numeric code, never mutated
	ExpiresAt   time.Time  `json:"expires_at" gorm:"not null;index:idx_otps_expires_at"`
	Attempts    int        `json:"attempts" gorm:"not null;default:0"`
	MaxAttempts int        `json:"max_attempts" gorm:"not null;default:3"`
	IsUsed      bool       `json:"is_used" gorm:"not null;default:false"`
	VerifiedAt  *time.Time `json:"verified_at"` // NULL unless a code matched
	Version     int        `json:"-" gorm:"not null;default:0"`
	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at"`
}

func (OTP) TableName() string { return "otps" }

// Identifier returns the verification subject of the record.
func (o *OTP) Identifier() Identifier {
	if o.Phone != nil {
		return Identifier{Kind: IdentifierPhone, Value: *o.Phone}
	}
	if o.Email != nil {
		return Identifier{Kind: IdentifierEmail, Value: *o.Email}
	}
	return Identifier{}
}

// SetIdentifier binds the record to id, clearing the other column.
func (o *OTP) SetIdentifier(id Identifier) {
	value := id.Value
	o.Phone, o.Email = nil, nil
	switch id.Kind {
	case IdentifierPhone:
		o.Phone = &value
	case IdentifierEmail:
		o.Email = &value
	}
}

// IsExpired reports whether now is past the expiry instant
func (o *OTP) IsExpired(now time.Time) bool {
	return now.After(o.ExpiresAt)
}

// IsExhausted reports whether the attempt ceiling has been reached
func (o *OTP) IsExhausted() bool {
	return o.Attempts >= o.MaxAttempts
}

// RemainingAttempts never goes below zero
func (o *OTP) RemainingAttempts() int {
	if r := o.MaxAttempts - o.Attempts; r > 0 {
		return r
	}
	return 0
}

// State derives the lifecycle state at now. Expiry wins over the other
// terminal states because an expired record is deleted on detection.
func (o *OTP) State(now time.Time) OTPState {
	switch {
	case o.IsExpired(now):
		return OTPStateExpired
	case o.IsUsed && o.VerifiedAt != nil:
		return OTPStateConsumed
	case o.IsUsed || o.IsExhausted():
		return OTPStateExhausted
	default:
		return OTPStateActive
	}
}

// OTPIssuance is an append-only log of issuance events used for rate limiting.
// OTP rows cannot serve as the counter because every issuance deletes the
// previous rows for the identifier.
type OTPIssuance struct {
	ID             uuid.UUID      `json:"id" gorm:"type:uuid;primaryKey"`
	IdentifierKind IdentifierKind `json:"identifier_kind" gorm:"size:16;not null;index:idx_otp_issuances_lookup,priority:1"`
	Identifier     string         `json:"identifier" gorm:"size:255;not null;index:idx_otp_issuances_lookup,priority:2"`
	CreatedAt      time.Time      `json:"created_at" gorm:"not null;index:idx_otp_issuances_lookup,priority:3"`
}

func (OTPIssuance) TableName() string { return "otp_issuances" }
