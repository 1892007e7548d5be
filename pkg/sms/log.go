package sms

import (
	"context"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Log skips SMS sending and writes the code to the debug log (local environment)
type Log struct{}

func NewLog() *Log { return &Log{} }

func (Log) Name() string { return "log" }

func (Log) SendOTP(_ context.Context, phone, code string, expiryMinutes int) (string, error) {
	zap.L().Debug("📱 [sms noop] skipping SMS",
		zap.String("to", maskTail(phone)),
		zap.String("code", code),
		zap.Int("expiry_minutes", expiryMinutes))
	return "log-" + uuid.NewString(), nil
}
