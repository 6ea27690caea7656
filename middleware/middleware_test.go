package middleware

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/gorilla/mux"

	"p9e.in/reasonsform/config"
	"p9e.in/reasonsform/models"
)

var testSecret = []byte("0123456789abcdef0123456789abcdef")

func okHandler(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusNoContent)
}

func TestJWTMiddleware(t *testing.T) {
	Configure(testSecret, false)
	valid, _, err := GenerateToken("a1", "alice", models.RoleOperator)
	if err != nil {
		t.Fatal(err)
	}

	expired := jwt.NewWithClaims(jwt.SigningMethodHS256, Claims{
		Username: "alice",
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(-time.Minute)),
		},
	})
	expiredStr, _ := expired.SignedString(testSecret)

	forged := jwt.NewWithClaims(jwt.SigningMethodHS256, Claims{
		Username: "mallory",
		Role:     models.RoleSuperAdmin,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
	})
	forgedStr, _ := forged.SignedString([]byte("another-secret-another-secret-00"))

	noExp := jwt.NewWithClaims(jwt.SigningMethodHS256, Claims{Username: "alice"})
	noExpStr, _ := noExp.SignedString(testSecret)

	tests := []struct {
		name   string
		header string
		status int
	}{
		{"valid", "Bearer " + valid, http.StatusNoContent},
		{"lowercase scheme", "bearer " + valid, http.StatusNoContent},
		{"missing", "", http.StatusUnauthorized},
		{"basic auth", "Basic YWRtaW46YWRtaW4=", http.StatusUnauthorized},
		{"expired", "Bearer " + expiredStr, http.StatusUnauthorized},
		{"wrong key", "Bearer " + forgedStr, http.StatusUnauthorized},
		{"no expiry", "Bearer " + noExpStr, http.StatusUnauthorized},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/admin/claims", nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			rec := httptest.NewRecorder()
			JWTMiddleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				if c := GetClaims(r); c == nil || c.Username != "alice" || Actor(r) != "alice" {
					t.Errorf("claims not in context: %+v", c)
				}
				w.WriteHeader(http.StatusNoContent)
			})).ServeHTTP(rec, req)

			if rec.Code != tt.status {
				t.Errorf("status = %d, want %d", rec.Code, tt.status)
			}
		})
	}
}

func TestRequirePermission(t *testing.T) {
	tests := []struct {
		role       string
		permission string
		status     int
	}{
		{models.RoleSuperAdmin, config.PermClaimsDelete, http.StatusNoContent},
		{models.RoleOperator, config.PermClaimsStatus, http.StatusNoContent},
		{models.RoleOperator, config.PermFilesWrite, http.StatusNoContent},
		{models.RoleViewer, config.PermClaimsRead, http.StatusNoContent},
		{models.RoleViewer, config.PermFilesRead, http.StatusNoContent},
		{models.RoleViewer, config.PermClaimsExport, http.StatusNoContent},
		{models.RoleViewer, config.PermClaimsUpdate, http.StatusForbidden},
		{models.RoleViewer, config.PermClaimsDelete, http.StatusForbidden},
		{"intern", config.PermClaimsRead, http.StatusForbidden},
	}
	for _, tt := range tests {
		t.Run(tt.role+" "+tt.permission, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			req = req.WithContext(context.WithValue(req.Context(), adminClaimsKey, &Claims{Username: "u", Role: tt.role}))
			rec := httptest.NewRecorder()
			RequirePermission(tt.permission)(http.HandlerFunc(okHandler)).ServeHTTP(rec, req)
			if rec.Code != tt.status {
				t.Errorf("status = %d, want %d", rec.Code, tt.status)
			}
		})
	}

	rec := httptest.NewRecorder()
	RequirePermission(config.PermClaimsRead)(http.HandlerFunc(okHandler)).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	if rec.Code != http.StatusUnauthorized {
		t.Errorf("no claims: status = %d, want 401", rec.Code)
	}
}

func TestClientIP(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.RemoteAddr = "198.51.100.4:51234"
	req.Header.Set("X-Forwarded-For", "203.0.113.9, 10.0.0.1")

	Configure(testSecret, false)
	if got := ClientIP(req); got != "198.51.100.4" {
		t.Errorf("untrusted proxy: ClientIP = %q", got)
	}
	Configure(testSecret, true)
	if got := ClientIP(req); got != "203.0.113.9" {
		t.Errorf("trusted proxy: ClientIP = %q", got)
	}
	Configure(testSecret, false)
}

func TestTimeout(t *testing.T) {
	var deadline time.Time
	h := Timeout(time.Second)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		deadline, _ = r.Context().Deadline()
	}))
	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/", nil))
	if deadline.IsZero() || time.Until(deadline) > time.Second {
		t.Errorf("deadline = %v", deadline)
	}
}

func TestMetricsUsesRouteTemplate(t *testing.T) {
	r := mux.NewRouter()
	r.Use(Metrics)
	r.HandleFunc("/admin/claims/{id:[0-9]+}", okHandler)

	var seen string
	r.Use(func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
			seen = routeTemplate(req)
			next.ServeHTTP(w, req)
		})
	})

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/admin/claims/42", nil))
	if rec.Code != http.StatusNoContent {
		t.Fatalf("status = %d", rec.Code)
	}
	if seen != "/admin/claims/{id:[0-9]+}" {
		t.Errorf("route label = %q", seen)
	}
}

func TestCORSPreflight(t *testing.T) {
	rec := httptest.NewRecorder()
	CORS(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Error("preflight reached the handler")
	})).ServeHTTP(rec, httptest.NewRequest(http.MethodOptions, "/api/claims", nil))
	if rec.Code != http.StatusOK || rec.Header().Get("Access-Control-Allow-Origin") != "*" {
		t.Errorf("status=%d headers=%v", rec.Code, rec.Header())
	}
}
