package handler

import (
	"net/http"
	"time"

	"github.com/cribnosh/verify-api/internal/config"
	"github.com/cribnosh/verify-api/internal/middleware"
	"github.com/cribnosh/verify-api/pkg/auth"
	"github.com/gin-gonic/gin"
)

type RouterDeps struct {
	OTP        *OTPHandler
	Admin      *AdminHandler
	Events     *EventsHandler
	JWTManager *auth.JWTManager
	Blacklist  auth.Blacklist
	Counter    middleware.CounterStore
	Throttle   config.ThrottleConfig
}

// RegisterRoutes mounts the health check, the websocket feed and /api/v1.
func RegisterRoutes(router *gin.Engine, deps RouterDeps) {
	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"status":  "ok",
			"service": "verify-api",
			"time":    time.Now().Format(time.RFC3339),
		})
	})

	// auth via query parameter
	router.GET("/ws/events", deps.Events.Stream)

	api := router.Group("/api/v1")
	{
		otpGroup := api.Group("/otp")
		{
			otpGroup.POST("/send",
				middleware.Throttle("otp_send", deps.Throttle.SendLimit, deps.Throttle.SendWindow, deps.Counter),
				deps.OTP.Send)
			otpGroup.POST("/verify",
				middleware.Throttle("otp_verify", deps.Throttle.VerifyLimit, deps.Throttle.VerifyWindow, deps.Counter),
				deps.OTP.Verify)
		}

		api.POST("/admin/login",
			middleware.Throttle("admin_login", deps.Throttle.VerifyLimit, deps.Throttle.VerifyWindow, deps.Counter),
			deps.Admin.Login)

		admin := api.Group("/admin")
		admin.Use(middleware.AuthMiddleware(deps.JWTManager, deps.Blacklist))
		{
			admin.POST("/logout", deps.Admin.Logout)
			admin.POST("/otp/cleanup", deps.Admin.Cleanup)
			admin.GET("/waitlist", deps.Admin.Waitlist)
		}
	}
}
