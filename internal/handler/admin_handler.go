package handler

import (
	"net/http"

	"github.com/cribnosh/verify-api/internal/middleware"
	"github.com/cribnosh/verify-api/internal/model"
	"github.com/cribnosh/verify-api/internal/service"
	"github.com/cribnosh/verify-api/pkg/apperr"
	"github.com/gin-gonic/gin"
)

// AdminHandler handles the operator endpoints
type AdminHandler struct {
	adminService    *service.AdminService
	otpService      *service.OTPService
	waitlistService *service.WaitlistService
}

func NewAdminHandler(adminService *service.AdminService, otpService *service.OTPService, waitlistService *service.WaitlistService) *AdminHandler {
	return &AdminHandler{
		adminService:    adminService,
		otpService:      otpService,
		waitlistService: waitlistService,
	}
}

// Login godoc
// @Summary Log in as an operator
// @Tags Admin
// @Accept json
// @Produce json
// @Param body body model.AdminLoginRequest true "Admin credentials"
// @Success 200 {object} model.AdminLoginResponse
// @Failure 401 {object} model.ErrorResponse
// @Router /admin/login [post]
func (h *AdminHandler) Login(c *gin.Context) {
	var req model.AdminLoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBindError(c, err)
		return
	}

	resp, err := h.adminService.Login(c.Request.Context(), req)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

// Logout godoc
// @Summary Revoke the current admin token
// @Tags Admin
// @Produce json
// @Security BearerAuth
// @Success 200 {object} model.SuccessResponse
// @Router /admin/logout [post]
func (h *AdminHandler) Logout(c *gin.Context) {
	if err := h.adminService.Logout(c.Request.Context(), c.GetString(middleware.ContextTokenKey)); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, model.SuccessResponse{Message: "Logged out successfully"})
}

// Cleanup godoc
// @Summary Sweep expired verification codes now
// @Tags Admin
// @Produce json
// @Security BearerAuth
// @Success 200 {object} model.CleanupResult
// @Failure 500 {object} model.ErrorResponse
// @Router /admin/otp/cleanup [post]
func (h *AdminHandler) Cleanup(c *gin.Context) {
	res, err := h.otpService.CleanupExpiredOTPs(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, res)
}

// Waitlist godoc
// @Summary Look up or list waitlist entries
// @Description With email or phone, returns the single matching entry. Otherwise pages through entries.
// @Tags Admin
// @Produce json
// @Security BearerAuth
// @Param email query string false "Email address"
// @Param phone query string false "Phone number (E.164)"
// @Param status query string false "active, converted or inactive"
// @Param limit query int false "Page size" default(50)
// @Param offset query int false "Offset" default(0)
// @Success 200 {object} model.WaitlistListResponse
// @Failure 404 {object} model.ErrorResponse
// @Router /admin/waitlist [get]
func (h *AdminHandler) Waitlist(c *gin.Context) {
	const op = "AdminHandler.Waitlist"
	var req model.WaitlistListRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		respondBindError(c, err)
		return
	}

	if req.Email == "" && req.Phone == "" {
		resp, err := h.waitlistService.List(c.Request.Context(), req)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, resp)
		return
	}

	id, err := service.ParseIdentifier(op, req.Phone, req.Email)
	if err != nil {
		respondError(c, err)
		return
	}
	entry, err := h.waitlistService.Lookup(c.Request.Context(), id)
	if err != nil {
		respondError(c, err)
		return
	}
	if entry == nil {
		respondError(c, apperr.New(apperr.KindNotFound, op, "No waitlist entry for this "+id.Label()))
		return
	}
	c.JSON(http.StatusOK, model.WaitlistListResponse{Entries: []model.WaitlistEntry{*entry}, Total: 1})
}
