package service

import (
	"context"
	"crypto/subtle"
	"time"

	"github.com/cribnosh/verify-api/internal/config"
	"github.com/cribnosh/verify-api/internal/model"
	"github.com/cribnosh/verify-api/pkg/apperr"
	"github.com/cribnosh/verify-api/pkg/auth"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
)

const RoleAdmin = "admin"

// AdminService authenticates operators of the admin API
type AdminService struct {
	cfg       config.AdminConfig
	jwt       *auth.JWTManager
	blacklist auth.Blacklist
}

func NewAdminService(cfg config.AdminConfig, jwt *auth.JWTManager, blacklist auth.Blacklist) *AdminService {
	return &AdminService{cfg: cfg, jwt: jwt, blacklist: blacklist}
}

// Login checks the configured credentials and issues a token
func (s *AdminService) Login(ctx context.Context, req model.AdminLoginRequest) (*model.AdminLoginResponse, error) {
	const op = "AdminService.Login"
	if s.cfg.PasswordHash == "" {
		return nil, apperr.New(apperr.KindUnauthorized, op, "Admin login is disabled")
	}

	userOK := subtle.ConstantTimeCompare([]byte(req.Username), []byte(s.cfg.Username)) == 1
	// always run bcrypt so a wrong username costs the same as a wrong password
	passErr := bcrypt.CompareHashAndPassword([]byte(s.cfg.PasswordHash), []byte(req.Password))
	if !userOK || passErr != nil {
		zap.L().Info("admin login rejected", zap.String("username", req.Username))
		return nil, apperr.New(apperr.KindUnauthorized, op, "Invalid username or password")
	}

	token, expiresAt, err := s.jwt.GenerateToken(req.Username, RoleAdmin)
	if err != nil {
		return nil, apperr.Internal(op, err)
	}
	zap.L().Info("👤 admin logged in", zap.String("username", req.Username))
	return &model.AdminLoginResponse{Token: token, ExpiresAt: expiresAt.UnixMilli()}, nil
}

// Logout blacklists the token for the rest of its lifetime
func (s *AdminService) Logout(ctx context.Context, tokenString string) error {
	const op = "AdminService.Logout"
	claims, err := s.jwt.ValidateToken(tokenString)
	if err != nil {
		return apperr.New(apperr.KindUnauthorized, op, "Invalid or expired token")
	}

	expiresIn := time.Until(claims.ExpiresAt.Time)
	if expiresIn <= 0 {
		return nil
	}
	if err := s.blacklist.Revoke(ctx, tokenString, expiresIn); err != nil {
		return apperr.Internal(op, err)
	}
	return nil
}

// HashPassword produces the value for ADMIN_PASSWORD_HASH
func HashPassword(password string) (string, error) {
	hashed, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", err
	}
	return string(hashed), nil
}
