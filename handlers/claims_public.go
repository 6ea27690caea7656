package handlers

import (
	"net/http"

	"github.com/gorilla/mux"

	"p9e.in/reasonsform/middleware"
)

// receipt is the public submission response. The surrogate id stays internal.
type receipt struct {
	RequestCode string `json:"request_code"`
}

// SubmitClaim handles POST /api/claims.
func (h *Handler) SubmitClaim(w http.ResponseWriter, r *http.Request) {
	sub, err := h.submission(w, r, middleware.ClientIP(r))
	if err != nil {
		writeError(w, r, err)
		return
	}
	created, err := h.claims.SubmitClaim(r.Context(), sub)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, receipt{RequestCode: created.RequestCode})
}

// ClaimStatus handles GET /api/claims/status/{code}.
func (h *Handler) ClaimStatus(w http.ResponseWriter, r *http.Request) {
	st, err := h.claims.GetPublicStatus(r.Context(), mux.Vars(r)["code"])
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, st)
}
