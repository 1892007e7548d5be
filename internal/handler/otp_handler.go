package handler

import (
	"net/http"
	"time"

	"github.com/cribnosh/verify-api/internal/config"
	"github.com/cribnosh/verify-api/internal/model"
	"github.com/cribnosh/verify-api/internal/service"
	"github.com/cribnosh/verify-api/pkg/apperr"
	"github.com/gin-gonic/gin"
)

// OTPHandler handles the public issuance and verification endpoints
type OTPHandler struct {
	otpService *service.OTPService
	cfg        config.OTPConfig
}

func NewOTPHandler(otpService *service.OTPService, cfg config.OTPConfig) *OTPHandler {
	return &OTPHandler{
		otpService: otpService,
		cfg:        cfg,
	}
}

// Send godoc
// @Summary Issue a verification code and join the waitlist
// @Description Exactly one of phone (E.164) or email is required. Any earlier code for the identifier is replaced.
// @Tags OTP
// @Accept json
// @Produce json
// @Param body body model.SendOTPRequest true "Send OTP request"
// @Success 200 {object} model.SendOTPResponse
// @Failure 400 {object} model.ErrorResponse
// @Failure 429 {object} model.ErrorResponse
// @Router /otp/send [post]
func (h *OTPHandler) Send(c *gin.Context) {
	var req model.SendOTPRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBindError(c, err)
		return
	}

	code, err := h.otpService.GenerateCode()
	if err != nil {
		respondError(c, apperr.Internal("OTPHandler.Send", err))
		return
	}

	res, err := h.otpService.IssueOTP(c.Request.Context(), service.IssueRequest{
		Phone:        req.Phone,
		Email:        req.Email,
		Code:         code,
		MaxAttempts:  req.MaxAttempts,
		Name:         req.Name,
		Location:     req.Location,
		ReferralCode: req.ReferralCode,
		Source:       req.Source,
	})
	if err != nil {
		respondError(c, err)
		return
	}

	resp := model.SendOTPResponse{
		Success:     true,
		Message:     res.Message,
		OTPID:       res.OTP.ID,
		WaitlistID:  res.Waitlist.WaitlistID,
		IsExisting:  res.Waitlist.IsExisting,
		ExpiresAt:   res.OTP.ExpiresAt.UnixMilli(),
		ExpiresIn:   int(h.cfg.Expiry / time.Second),
		MaxAttempts: res.OTP.MaxAttempts,
		Delivered:   res.Delivered,
	}
	if h.cfg.ExposeCode {
		resp.TestCode = res.Code
	}
	c.JSON(http.StatusOK, resp)
}

// Verify godoc
// @Summary Verify a code for a phone number or email address
// @Tags OTP
// @Accept json
// @Produce json
// @Param body body model.VerifyOTPRequest true "Verify OTP request"
// @Success 200 {object} model.VerifyOTPResponse
// @Failure 400 {object} model.ErrorResponse
// @Failure 404 {object} model.ErrorResponse
// @Failure 409 {object} model.ErrorResponse
// @Failure 410 {object} model.ErrorResponse
// @Failure 429 {object} model.ErrorResponse
// @Router /otp/verify [post]
func (h *OTPHandler) Verify(c *gin.Context) {
	var req model.VerifyOTPRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBindError(c, err)
		return
	}

	res, err := h.otpService.VerifyOTP(c.Request.Context(), service.VerifyRequest{
		Phone: req.Phone,
		Email: req.Email,
		Code:  req.Code,
	})
	if err != nil {
		respondError(c, err)
		return
	}

	id := res.OTP.Identifier()
	resp := model.VerifyOTPResponse{
		Success:        true,
		Message:        res.Message,
		OTPID:          res.OTP.ID,
		Identifier:     id.Value,
		IdentifierType: id.Kind,
	}
	if res.OTP.VerifiedAt != nil {
		resp.VerifiedAt = res.OTP.VerifiedAt.UnixMilli()
	}
	if res.Waitlist != nil {
		waitlistID := res.Waitlist.ID
		resp.WaitlistID = &waitlistID
		resp.IsWaitlistUser = true
	}
	c.JSON(http.StatusOK, resp)
}
