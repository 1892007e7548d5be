package sms

import (
	"context"
	"fmt"

	"github.com/twilio/twilio-go"
	twilioApi "github.com/twilio/twilio-go/rest/api/v2010"
)

type messageCreator interface {
	CreateMessage(params *twilioApi.CreateMessageParams) (*twilioApi.ApiV2010Message, error)
}

// Twilio sends plain SMS through the Twilio Messages API
type Twilio struct {
	api    messageCreator
	from   string
	sender string
}

// NewTwilio creates a new Twilio provider instance
func NewTwilio(accountSid, authToken, from, sender string) (*Twilio, error) {
	if accountSid == "" || authToken == "" || from == "" {
		return nil, fmt.Errorf("missing Twilio credentials (TWILIO_ACCOUNT_SID, TWILIO_AUTH_TOKEN, TWILIO_FROM)")
	}

	client := twilio.NewRestClientWithParams(twilio.ClientParams{
		Username: accountSid,
		Password: authToken,
	})

	return &Twilio{api: client.Api, from: from, sender: sender}, nil
}

func (t *Twilio) Name() string { return "twilio" }

// SendOTP sends the code as a text message. The Twilio SDK has no context
// support, so ctx is only checked before the call.
func (t *Twilio) SendOTP(ctx context.Context, phone, code string, expiryMinutes int) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	params := &twilioApi.CreateMessageParams{}
	params.SetFrom(t.from)
	params.SetTo(phone)
	params.SetBody(messageBody(t.sender, code, expiryMinutes))

	resp, err := t.api.CreateMessage(params)
	if err != nil {
		return "", fmt.Errorf("twilio create message: %w", err)
	}
	if resp == nil || resp.Sid == nil {
		return "", nil
	}
	return *resp.Sid, nil
}
