package delivery

import (
	"context"
	"fmt"

	"github.com/cribnosh/verify-api/internal/model"
	"github.com/cribnosh/verify-api/pkg/mailer"
	"github.com/cribnosh/verify-api/pkg/sms"
)

// Result is what a provider reports for one delivery attempt
type Result struct {
	Success   bool
	MessageID string
	Provider  string
}

// Dispatcher sends a code to its identifier out of band
type Dispatcher interface {
	Send(ctx context.Context, id model.Identifier, code string, expiryMinutes int) (Result, error)
}

// EmailDispatcher delivers codes through the SMTP mailer
type EmailDispatcher struct {
	mailer *mailer.Mailer
}

func NewEmailDispatcher(m *mailer.Mailer) *EmailDispatcher {
	return &EmailDispatcher{mailer: m}
}

// Send runs the SMTP exchange in the background so that ctx bounds the wait.
func (d *EmailDispatcher) Send(ctx context.Context, id model.Identifier, code string, expiryMinutes int) (Result, error) {
	type outcome struct {
		messageID string
		err       error
	}
	done := make(chan outcome, 1)
	go func() {
		messageID, err := d.mailer.SendOTP(id.Value, code, expiryMinutes)
		done <- outcome{messageID, err}
	}()

	select {
	case <-ctx.Done():
		return Result{Provider: "smtp"}, ctx.Err()
	case out := <-done:
		if out.err != nil {
			return Result{Provider: "smtp"}, out.err
		}
		return Result{Success: true, MessageID: out.messageID, Provider: "smtp"}, nil
	}
}

// SMSDispatcher delivers codes through the configured SMS provider
type SMSDispatcher struct {
	provider sms.Provider
}

func NewSMSDispatcher(p sms.Provider) *SMSDispatcher {
	return &SMSDispatcher{provider: p}
}

func (d *SMSDispatcher) Send(ctx context.Context, id model.Identifier, code string, expiryMinutes int) (Result, error) {
	messageID, err := d.provider.SendOTP(ctx, id.Value, code, expiryMinutes)
	if err != nil {
		return Result{Provider: d.provider.Name()}, err
	}
	return Result{Success: true, MessageID: messageID, Provider: d.provider.Name()}, nil
}

// Router picks the dispatcher matching the identifier kind
type Router struct {
	email Dispatcher
	sms   Dispatcher
}

func NewRouter(email, sms Dispatcher) *Router {
	return &Router{email: email, sms: sms}
}

func (r *Router) Send(ctx context.Context, id model.Identifier, code string, expiryMinutes int) (Result, error) {
	var d Dispatcher
	switch id.Kind {
	case model.IdentifierEmail:
		d = r.email
	case model.IdentifierPhone:
		d = r.sms
	}
	if d == nil {
		return Result{}, fmt.Errorf("no dispatcher for %s identifiers", id.Kind)
	}
	return d.Send(ctx, id, code, expiryMinutes)
}
