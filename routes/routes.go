package routes

import (
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/swaggo/swag"

	"p9e.in/reasonsform/config"
	_ "p9e.in/reasonsform/docs"
	"p9e.in/reasonsform/handlers"
	"p9e.in/reasonsform/middleware"
)

// RegisterRoutes sets up all application routes. Service calls are bounded
// by timeout.
func RegisterRoutes(h *handlers.Handler, timeout time.Duration) http.Handler {
	r := mux.NewRouter()
	r.Use(middleware.Metrics)

	// =====================================================
	// Operational
	// =====================================================
	r.Handle("/metrics", promhttp.Handler()).Methods("GET")
	r.HandleFunc("/health", h.Health).Methods("GET")
	r.HandleFunc("/swagger/doc.json", serveDoc).Methods("GET")

	// =====================================================
	// Public Routes (no authentication)
	// =====================================================
	public := r.PathPrefix("/api").Subrouter()
	public.Use(middleware.Timeout(timeout))
	public.HandleFunc("/claims", h.SubmitClaim).Methods("POST")
	public.HandleFunc("/claims/status/{code}", h.ClaimStatus).Methods("GET")

	// =====================================================
	// Admin Routes (require JWT authentication)
	// =====================================================
	r.Handle("/admin/login", middleware.Timeout(timeout)(http.HandlerFunc(h.Login))).Methods("POST")

	admin := r.PathPrefix("/admin").Subrouter()
	admin.Use(middleware.JWTMiddleware)
	admin.Use(middleware.Timeout(timeout))
	registerAdminRoutes(admin, h)

	return r
}

func registerAdminRoutes(admin *mux.Router, h *handlers.Handler) {
	admin.HandleFunc("/me", h.Me).Methods("GET")

	admin.Handle("/claims", guard(config.PermClaimsRead, h.ListClaims)).Methods("GET")
	admin.Handle("/claims", guard(config.PermClaimsCreate, h.CreateClaim)).Methods("POST")
	admin.Handle("/claims/export", guard(config.PermClaimsExport, h.ExportClaims)).Methods("GET")
	admin.Handle("/claims/{id:[0-9]+}", guard(config.PermClaimsRead, h.GetClaim)).Methods("GET")
	admin.Handle("/claims/{id:[0-9]+}", guard(config.PermClaimsUpdate, h.UpdateClaim)).Methods("PUT")
	admin.Handle("/claims/{id:[0-9]+}", guard(config.PermClaimsDelete, h.DeleteClaim)).Methods("DELETE")
	admin.Handle("/claims/{id:[0-9]+}/status", guard(config.PermClaimsStatus, h.SetStatus)).Methods("PUT")
	admin.Handle("/claims/{id:[0-9]+}/files", guard(config.PermFilesWrite, h.AddFiles)).Methods("POST")
	admin.Handle("/claims/{id:[0-9]+}/files/{fileId:[0-9]+}", guard(config.PermFilesWrite, h.DeleteFile)).Methods("DELETE")

	admin.Handle("/files/{storedFilename}", guard(config.PermFilesRead, h.DownloadFile)).Methods("GET")
}

func guard(permission string, fn http.HandlerFunc) http.Handler {
	return middleware.RequirePermission(permission)(fn)
}

func serveDoc(w http.ResponseWriter, r *http.Request) {
	doc, err := swag.ReadDoc()
	if err != nil {
		http.Error(w, "api documentation unavailable", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	_, _ = w.Write([]byte(doc))
}
