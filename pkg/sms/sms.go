package sms

import (
	"context"
	"fmt"
)

// Provider sends a verification code to a phone number in E.164 form.
type Provider interface {
	Name() string
	SendOTP(ctx context.Context, phone, code string, expiryMinutes int) (messageID string, err error)
}

// Config selects and configures a provider
type Config struct {
	Provider string // twilio | authkey | log
	SenderID string

	TwilioAccountSID string
	TwilioAuthToken  string
	TwilioFrom       string

	AuthKeyKey         string
	AuthKeyTemplateID  string
	AuthKeyCountryCode string
}

// New builds the provider named by cfg.Provider
func New(cfg Config) (Provider, error) {
	switch cfg.Provider {
	case "twilio":
		p, err := NewTwilio(cfg.TwilioAccountSID, cfg.TwilioAuthToken, cfg.TwilioFrom, cfg.SenderID)
		if err != nil {
			return nil, err
		}
		return p, nil
	case "authkey":
		p, err := NewAuthKey(cfg.AuthKeyKey, cfg.AuthKeyTemplateID, cfg.AuthKeyCountryCode, cfg.SenderID)
		if err != nil {
			return nil, err
		}
		return p, nil
	case "log", "":
		return NewLog(), nil
	default:
		return nil, fmt.Errorf("unknown sms provider %q", cfg.Provider)
	}
}

func messageBody(sender, code string, expiryMinutes int) string {
	return fmt.Sprintf("Your %s verification code is: %s. This code expires in %d minutes.", sender, code, expiryMinutes)
}
