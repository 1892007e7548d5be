package sms

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

const authKeyBaseURL = "https://api.authkey.io/request"

// AuthKey sends OTPs via the AuthKey.io template API
type AuthKey struct {
	authKey     string
	templateID  string
	countryCode string
	company     string
	baseURL     string
	client      *http.Client
}

// NewAuthKey creates an AuthKey.io provider
func NewAuthKey(authKey, templateID, countryCode, company string) (*AuthKey, error) {
	if authKey == "" || templateID == "" {
		return nil, fmt.Errorf("missing AuthKey credentials (AUTHKEY_KEY, AUTHKEY_TEMPLATE_ID)")
	}
	return &AuthKey{
		authKey:     authKey,
		templateID:  templateID,
		countryCode: strings.TrimPrefix(countryCode, "+"),
		company:     company,
		baseURL:     authKeyBaseURL,
		client:      &http.Client{Timeout: 15 * time.Second},
	}, nil
}

func (a *AuthKey) Name() string { return "authkey" }

type authKeyResponse struct {
	Message string `json:"Message"`
	LogID   string `json:"LogID"`
}

func (a *AuthKey) SendOTP(ctx context.Context, phone, code string, _ int) (string, error) {
	mobile, err := a.nationalNumber(phone)
	if err != nil {
		return "", err
	}

	params := url.Values{}
	params.Add("authkey", a.authKey)
	params.Add("mobile", mobile)
	params.Add("country_code", a.countryCode)
	params.Add("sid", a.templateID)
	params.Add("company", a.company)
	params.Add("otp", code)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, a.baseURL+"?"+params.Encode(), nil)
	if err != nil {
		return "", err
	}
	resp, err := a.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("failed to send OTP via AuthKey: %w", err)
	}
	defer resp.Body.Close()

	body, _ := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("AuthKey API returned status %d: %s", resp.StatusCode, string(body))
	}

	var parsed authKeyResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		// the API answers 200 with non-JSON bodies on some plans
		return "", nil
	}
	return parsed.LogID, nil
}

// nationalNumber strips the configured calling code from an E.164 number.
func (a *AuthKey) nationalNumber(phone string) (string, error) {
	prefix := "+" + a.countryCode
	if !strings.HasPrefix(phone, prefix) || len(phone) == len(prefix) {
		return "", fmt.Errorf("authkey: %s is outside country code +%s", maskTail(phone), a.countryCode)
	}
	return phone[len(prefix):], nil
}

func maskTail(phone string) string {
	if len(phone) <= 4 {
		return "****"
	}
	return strings.Repeat("*", len(phone)-4) + phone[len(phone)-4:]
}
