package handlers

import (
	"errors"
	"math"
	"net/http"
	"strconv"
	"strings"
	"time"

	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"

	"p9e.in/reasonsform/middleware"
	"p9e.in/reasonsform/models"
	"p9e.in/reasonsform/pkg/apperr"
	"p9e.in/reasonsform/pkg/logger"
	"p9e.in/reasonsform/pkg/throttle"
)

type loginReq struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type loginResp struct {
	Token       string       `json:"token"`
	ExpiresAt   time.Time    `json:"expires_at"`
	Admin       adminPayload `json:"admin"`
	Permissions []string     `json:"permissions"`
}

type adminPayload struct {
	ID       string `json:"id"`
	Username string `json:"username"`
	Role     string `json:"role"`
}

const invalidCredentials = "invalid username or password"

// Login handles POST /admin/login. Repeated failures for the same username
// and address are locked out for a while and answered with 429.
func (h *Handler) Login(w http.ResponseWriter, r *http.Request) {
	var req loginReq
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	username := strings.TrimSpace(req.Username)
	if username == "" || req.Password == "" {
		writeError(w, r, apperr.Validation("", "username and password are required"))
		return
	}

	ip := middleware.ClientIP(r)
	key := throttle.Key(username, ip)
	if ok, wait := h.limiter.Allow(key); !ok {
		w.Header().Set("Retry-After", strconv.Itoa(int(math.Ceil(wait.Seconds()))))
		apperr.Write(w, http.StatusTooManyRequests, apperr.CodeTooManyRequests, "too many failed logins, try again later", "")
		return
	}

	var admin models.AdminUser
	err := h.db.WithContext(r.Context()).Where("username = ? AND is_active = ?", username, true).First(&admin).Error
	if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
		writeError(w, r, apperr.FromStorage(err))
		return
	}
	if err != nil || bcrypt.CompareHashAndPassword([]byte(admin.PasswordHash), []byte(req.Password)) != nil {
		if h.limiter.Fail(key) {
			logger.Warn("⚠️  Login locked for %s from %s", username, ip)
		}
		apperr.Write(w, http.StatusUnauthorized, apperr.CodeUnauthorized, invalidCredentials, "")
		return
	}
	h.limiter.Reset(key)

	token, expires, err := middleware.GenerateToken(admin.ID.String(), admin.Username, admin.Role)
	if err != nil {
		writeError(w, r, apperr.Internal(err))
		return
	}
	now := time.Now()
	if err := h.db.WithContext(r.Context()).Model(&admin).Update("last_login_at", &now).Error; err != nil {
		logger.Warn("⚠️  Failed to record login time for %s: %v", admin.Username, err)
	}

	logger.Info("✅ Admin %s logged in from %s", admin.Username, ip)
	writeJSON(w, http.StatusOK, loginResp{
		Token:     token,
		ExpiresAt: expires,
		Admin: adminPayload{
			ID:       admin.ID.String(),
			Username: admin.Username,
			Role:     admin.Role,
		},
		Permissions: middleware.PermissionsFor(admin.Role),
	})
}

// Me handles GET /admin/me.
func (h *Handler) Me(w http.ResponseWriter, r *http.Request) {
	c := middleware.GetClaims(r)
	writeJSON(w, http.StatusOK, map[string]any{
		"admin":       adminPayload{ID: c.AdminID, Username: c.Username, Role: c.Role},
		"permissions": middleware.Permissions(r),
	})
}

// Health handles GET /health; it reports 503 when the database is unreachable.
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	sqlDB, err := h.db.DB()
	if err == nil {
		err = sqlDB.PingContext(r.Context())
	}
	if err != nil {
		logger.Warn("⚠️  Health check failed: %v", err)
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "unavailable"})
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
