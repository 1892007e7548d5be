package mailer

import (
	"bytes"
	"fmt"
	"html/template"
	"net/smtp"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Config holds SMTP configuration
type Config struct {
	Host     string
	Port     string
	Username string
	Password string
	From     string
	FromName string
}

// SendFunc matches smtp.SendMail
type SendFunc func(addr string, a smtp.Auth, from string, to []string, msg []byte) error

// Mailer handles sending emails
type Mailer struct {
	config   Config
	sendMail SendFunc
	otpTmpl  *template.Template
}

// New creates a new Mailer instance
func New(cfg Config) *Mailer {
	return &Mailer{
		config:   cfg,
		sendMail: smtp.SendMail,
		otpTmpl:  template.Must(template.New("otp").Parse(otpTemplate)),
	}
}

// WithSendFunc swaps the SMTP transport, used by tests.
func (m *Mailer) WithSendFunc(fn SendFunc) *Mailer {
	m.sendMail = fn
	return m
}

// SendOTP emails a verification code and returns the Message-ID it used
func (m *Mailer) SendOTP(toEmail, code string, expiryMinutes int) (string, error) {
	subject := "CribNosh - Your verification code"

	var body bytes.Buffer
	err := m.otpTmpl.Execute(&body, map[string]interface{}{
		"Code":          code,
		"ExpiryMinutes": expiryMinutes,
		"Year":          time.Now().Year(),
	})
	if err != nil {
		return "", fmt.Errorf("failed to render email template: %w", err)
	}

	return m.send(toEmail, subject, body.String())
}

// send delivers an email via SMTP
func (m *Mailer) send(to, subject, htmlBody string) (string, error) {
	addr := fmt.Sprintf("%s:%s", m.config.Host, m.config.Port)
	messageID := fmt.Sprintf("<%s@%s>", uuid.NewString(), domainOf(m.config.From))

	headers := map[string]string{
		"From":         fmt.Sprintf("%s <%s>", m.config.FromName, m.config.From),
		"To":           to,
		"Subject":      subject,
		"Message-ID":   messageID,
		"MIME-Version": "1.0",
		"Content-Type": "text/html; charset=\"utf-8\"",
	}
	keys := make([]string, 0, len(headers))
	for k := range headers {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var msg bytes.Buffer
	for _, k := range keys {
		msg.WriteString(fmt.Sprintf("%s: %s\r\n", k, headers[k]))
	}
	msg.WriteString("\r\n")
	msg.WriteString(htmlBody)

	var auth smtp.Auth
	if m.config.Username != "" && m.config.Password != "" {
		auth = smtp.PlainAuth("", m.config.Username, m.config.Password, m.config.Host)
	}

	if err := m.sendMail(addr, auth, m.config.From, []string{to}, msg.Bytes()); err != nil {
		return "", fmt.Errorf("failed to send email: %w", err)
	}

	zap.L().Debug("📧 email sent", zap.String("subject", subject), zap.String("message_id", messageID))
	return messageID, nil
}

func domainOf(addr string) string {
	if at := strings.LastIndexByte(addr, '@'); at >= 0 && at < len(addr)-1 {
		return addr[at+1:]
	}
	return "localhost"
}

const otpTemplate = `<!DOCTYPE html>
<html>
<head>
    <meta charset="utf-8">
    <meta name="viewport" content="width=device-width, initial-scale=1.0">
</head>
<body style="margin:0;padding:0;background-color:#faf7f2;font-family:'Segoe UI',Tahoma,Geneva,Verdana,sans-serif;">
    <div style="max-width:500px;margin:40px auto;background:#ffffff;border-radius:16px;overflow:hidden;border:1px solid #f0e6d8;">
        <div style="background:#ff3b30;padding:28px;text-align:center;">
            <h1 style="color:#fff;margin:0;font-size:26px;font-weight:700;">CribNosh</h1>
            <p style="color:rgba(255,255,255,0.9);margin:8px 0 0;font-size:14px;">Verify it's you</p>
        </div>

        <div style="padding:32px;">
            <p style="color:#334155;font-size:15px;line-height:1.6;margin:0 0 24px;">
                Use this code to finish joining the waitlist:
            </p>

            <div style="background:#fff4f3;border:2px dashed #ffb4ae;border-radius:12px;padding:24px;text-align:center;margin:0 0 24px;">
                <span style="font-size:36px;font-weight:800;letter-spacing:8px;color:#ff3b30;font-family:'Courier New',monospace;">{{.Code}}</span>
            </div>

            <p style="color:#64748b;font-size:13px;line-height:1.5;margin:0 0 8px;">
                This code expires in <strong>{{.ExpiryMinutes}} minutes</strong> and can only be used once.
            </p>
            <p style="color:#64748b;font-size:13px;line-height:1.5;margin:0;">
                If you didn't request this code, you can ignore this email.
            </p>
        </div>

        <div style="padding:16px 32px;border-top:1px solid #f0e6d8;text-align:center;">
            <p style="color:#94a3b8;font-size:12px;margin:0;">© {{.Year}} CribNosh. All rights reserved.</p>
        </div>
    </div>
</body>
</html>`
