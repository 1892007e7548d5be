package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/cribnosh/verify-api/internal/config"
	"github.com/cribnosh/verify-api/internal/delivery"
	"github.com/cribnosh/verify-api/internal/handler"
	"github.com/cribnosh/verify-api/internal/job"
	"github.com/cribnosh/verify-api/internal/middleware"
	"github.com/cribnosh/verify-api/internal/schedule"
	"github.com/cribnosh/verify-api/internal/service"
	"github.com/cribnosh/verify-api/internal/ws"
	"github.com/cribnosh/verify-api/pkg/auth"
	"github.com/cribnosh/verify-api/pkg/mailer"
	"github.com/cribnosh/verify-api/pkg/sms"
	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"go.uber.org/zap"
)

func newServeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "run the HTTP API and the cleanup schedule",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, flush, err := bootstrap()
			if err != nil {
				return err
			}
			defer flush()
			return runServer(cfg)
		},
	}
}

func runServer(cfg *config.Config) error {
	zap.L().Info("🚀 Starting Verify API", zap.String("env", cfg.App.Env), zap.String("store", cfg.Store.Driver))

	// ==================== Storage ====================
	st, err := openStores(cfg)
	if err != nil {
		return err
	}
	defer st.close()

	// ==================== Redis (optional) ====================
	var rdb *redis.Client
	if cfg.Redis.Enabled() {
		rdb = redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr(),
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		pingCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		err := rdb.Ping(pingCtx).Err()
		cancel()
		if err != nil {
			return fmt.Errorf("connect to redis: %w", err)
		}
		defer rdb.Close()
		zap.L().Info("✅ Connected to Redis", zap.String("addr", cfg.Redis.Addr()))
	} else {
		zap.L().Warn("⚠️  Redis disabled: throttles, token revocation and events are local to this instance")
	}

	var (
		blacklist auth.Blacklist
		counter   middleware.CounterStore
	)
	if rdb != nil {
		blacklist = auth.NewRedisBlacklist(rdb)
		counter = middleware.NewRedisCounter(rdb)
	} else {
		blacklist = auth.NewMemoryBlacklist(cfg.Throttle.CacheSize, cfg.JWT.Expiry)
		counter = middleware.NewMemoryCounter(cfg.Throttle.CacheSize, max(cfg.Throttle.SendWindow, cfg.Throttle.VerifyWindow))
	}

	// ==================== Delivery ====================
	mailClient := mailer.New(mailer.Config{
		Host:     cfg.SMTP.Host,
		Port:     cfg.SMTP.Port,
		Username: cfg.SMTP.Username,
		Password: cfg.SMTP.Password,
		From:     cfg.SMTP.From,
		FromName: cfg.SMTP.FromName,
	})
	zap.L().Info("📧 SMTP configured", zap.String("host", cfg.SMTP.Host), zap.String("port", cfg.SMTP.Port))

	smsProvider, err := sms.New(sms.Config{
		Provider:           cfg.SMS.Provider,
		SenderID:           cfg.SMS.SenderID,
		TwilioAccountSID:   cfg.SMS.TwilioAccountSID,
		TwilioAuthToken:    cfg.SMS.TwilioAuthToken,
		TwilioFrom:         cfg.SMS.TwilioFrom,
		AuthKeyKey:         cfg.SMS.AuthKeyKey,
		AuthKeyTemplateID:  cfg.SMS.AuthKeyTemplateID,
		AuthKeyCountryCode: cfg.SMS.AuthKeyCountryCode,
	})
	if err != nil {
		return fmt.Errorf("sms provider: %w", err)
	}
	zap.L().Info("📱 SMS provider configured", zap.String("provider", smsProvider.Name()))

	dispatcher := delivery.NewRouter(
		delivery.NewEmailDispatcher(mailClient),
		delivery.NewSMSDispatcher(smsProvider),
	)

	// ==================== Event hub ====================
	hubCtx, hubCancel := context.WithCancel(context.Background())
	defer hubCancel()
	hub := ws.NewHub(rdb)
	go hub.Run(hubCtx)

	// ==================== Services ====================
	jwtManager := auth.NewJWTManager(cfg.JWT.Secret, cfg.JWT.Expiry)
	waitlistService := service.NewWaitlistService(st.waitlist)
	otpService := service.NewOTPService(st.otp, waitlistService, dispatcher, hub, cfg.OTP)
	adminService := service.NewAdminService(cfg.Admin, jwtManager, blacklist)
	if cfg.Admin.PasswordHash == "" {
		zap.L().Warn("⚠️  ADMIN_PASSWORD_HASH not set, admin login disabled")
	}

	// ==================== Cleanup schedule ====================
	scheduler := schedule.NewCronScheduler()
	if cfg.Cleanup.Enabled {
		if err := scheduler.AddJob(job.NewOTPCleanupJob(otpService), cfg.Cleanup.Spec); err != nil {
			return fmt.Errorf("schedule cleanup: %w", err)
		}
	}
	scheduler.Start(hubCtx)
	defer scheduler.Stop()

	// ==================== Gin Router ====================
	if cfg.App.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}
	router := gin.Default()

	// Serve swagger.json at /docs/swagger.json to avoid conflict with /swagger/* wildcard
	router.StaticFile("/docs/swagger.json", "./docs/swagger.json")
	router.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler, ginSwagger.URL("/docs/swagger.json")))

	router.Use(middleware.CORSMiddleware(cfg.CORS.Origins))

	handler.RegisterRoutes(router, handler.RouterDeps{
		OTP:        handler.NewOTPHandler(otpService, cfg.OTP),
		Admin:      handler.NewAdminHandler(adminService, otpService, waitlistService),
		Events:     handler.NewEventsHandler(hub, jwtManager, blacklist, cfg.CORS.Origins),
		JWTManager: jwtManager,
		Blacklist:  blacklist,
		Counter:    counter,
		Throttle:   cfg.Throttle,
	})

	// ==================== Start Server ====================
	srv := &http.Server{
		Addr:              ":" + cfg.App.Port,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	serveErr := make(chan error, 1)
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
	}()

	zap.L().Info("🌐 Verify API running", zap.String("addr", "http://0.0.0.0:"+cfg.App.Port))
	zap.L().Info("📋 API docs", zap.String("url", "http://0.0.0.0:"+cfg.App.Port+"/swagger/index.html"))
	zap.L().Info("🔌 Event feed", zap.String("url", "ws://0.0.0.0:"+cfg.App.Port+"/ws/events?token=<jwt>"))

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	select {
	case <-quit:
	case err := <-serveErr:
		return fmt.Errorf("server failed: %w", err)
	}
	zap.L().Info("🛑 Shutting down server...")

	// Give ongoing requests 5 seconds to complete
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server forced to shutdown: %w", err)
	}

	hubCancel()
	zap.L().Info("✅ Server exited gracefully")
	return nil
}
