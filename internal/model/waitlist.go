package model

import (
	"time"

	"github.com/google/uuid"
)

// WaitlistStatus mirrors the admin lifecycle of a signup
type WaitlistStatus string

const (
	WaitlistStatusActive    WaitlistStatus = "active"
	WaitlistStatusConverted WaitlistStatus = "converted"
	WaitlistStatusInactive  WaitlistStatus = "inactive"
)

// WaitlistEntry represents a prospective user signup
type WaitlistEntry struct {
	ID           uuid.UUID      `json:"id" gorm:"type:uuid;primaryKey"`
	Email        *string        `json:"email,omitempty" gorm:"size:255;uniqueIndex:idx_waitlist_email"`
	Phone        *string        `json:"phone,omitempty" gorm:"size:32;uniqueIndex:idx_waitlist_phone"`
	Name         string         `json:"name" gorm:"size:100"`
	Location     string         `json:"location" gorm:"size:255"`
	ReferralCode string         `json:"referral_code" gorm:"size:64"`
	Source       string         `json:"source" gorm:"size:64"`
	Status       WaitlistStatus `json:"status" gorm:"size:16;not null;default:'active'"`
	JoinedAt     time.Time      `json:"joined_at" gorm:"not null"`
	UpdatedAt    time.Time      `json:"updated_at"`
}

func (WaitlistEntry) TableName() string { return "waitlist_entries" }

// Matches reports whether the entry is keyed by id.
func (w *WaitlistEntry) Matches(id Identifier) bool {
	switch id.Kind {
	case IdentifierEmail:
		return w.Email != nil && *w.Email == id.Value
	case IdentifierPhone:
		return w.Phone != nil && *w.Phone == id.Value
	}
	return false
}

// WaitlistUpsert is the input of a waitlist upsert
type WaitlistUpsert struct {
	Identifier   Identifier
	Name         string
	Location     string
	ReferralCode string
	Source       string
}

// WaitlistResult is the outcome of an idempotent upsert
type WaitlistResult struct {
	WaitlistID uuid.UUID `json:"waitlist_id"`
	IsExisting bool      `json:"is_existing"`
}
