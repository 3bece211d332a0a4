package handlers

import (
	"crypto/subtle"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/md-rashed-zaman/spabook/libs/auth"
	"github.com/md-rashed-zaman/spabook/libs/httpx"
	"github.com/md-rashed-zaman/spabook/services/spa-service/internal/apperror"
)

const RoleAdmin = "admin"

type LoginConfig struct {
	AdminEmail        string
	AdminPasswordHash string
	JWTSecret         string
	TokenTTL          time.Duration
}

// LoginHandler issues admin tokens for the single back-office account.
type LoginHandler struct {
	cfg    LoginConfig
	logger *slog.Logger
}

func NewLoginHandler(cfg LoginConfig, logger *slog.Logger) *LoginHandler {
	if cfg.TokenTTL <= 0 {
		cfg.TokenTTL = 8 * time.Hour
	}
	return &LoginHandler{cfg: cfg, logger: logger}
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type loginResponse struct {
	Token     string `json:"token"`
	ExpiresAt string `json:"expires_at"`
}

func (h *LoginHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	email := strings.ToLower(strings.TrimSpace(req.Email))
	if email == "" || req.Password == "" {
		writeError(w, r, h.logger, apperror.Validation("email and password are required", nil))
		return
	}

	emailOK := subtle.ConstantTimeCompare([]byte(email), []byte(strings.ToLower(h.cfg.AdminEmail))) == 1
	// bcrypt runs even when the email does not match.
	pwErr := auth.VerifyPassword(h.cfg.AdminPasswordHash, req.Password)
	if !emailOK || pwErr != nil || h.cfg.AdminPasswordHash == "" {
		h.logger.Warn("admin login rejected", "client", httpx.ClientAddr(r))
		http.Error(w, "invalid credentials", http.StatusUnauthorized)
		return
	}

	claims := auth.NewClaims(email, RoleAdmin, h.cfg.TokenTTL)
	token, err := auth.SignHS256(claims, h.cfg.JWTSecret)
	if err != nil {
		writeError(w, r, h.logger, apperror.Transient("sign token", err))
		return
	}
	h.logger.Info("admin login", "subject", email)
	writeJSON(w, http.StatusOK, loginResponse{Token: token, ExpiresAt: formatTime(claims.ExpiresAt.Time)})
}
