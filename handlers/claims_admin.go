package handlers

import (
	"bytes"
	"encoding/json"
	"fmt"
	"mime"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gorilla/mux"

	"p9e.in/reasonsform/middleware"
	"p9e.in/reasonsform/models"
	"p9e.in/reasonsform/pkg/apperr"
	"p9e.in/reasonsform/pkg/claims"
	"p9e.in/reasonsform/pkg/export"
)

const deleteFilesField = "_delete_files"

var contentTypes = map[string]string{
	"jpg": "image/jpeg",
	"png": "image/png",
	"pdf": "application/pdf",
}

type listResponse struct {
	Items []models.RequestListItem `json:"items"`
	Total int64                    `json:"total"`
}

func listFilter(r *http.Request) (claims.ListFilter, error) {
	q := r.URL.Query()
	f := claims.ListFilter{
		Type:   models.RequestType(q.Get("type")),
		Status: models.RequestStatus(q.Get("status")),
		Search: q.Get("q"),
	}
	for name, dst := range map[string]*int{"limit": &f.Limit, "offset": &f.Offset} {
		if v := q.Get(name); v != "" {
			n, err := strconv.Atoi(v)
			if err != nil || n < 0 {
				return f, apperr.Validation(name, "must be a non-negative integer")
			}
			*dst = n
		}
	}
	return f, nil
}

// ListClaims handles GET /admin/claims.
func (h *Handler) ListClaims(w http.ResponseWriter, r *http.Request) {
	f, err := listFilter(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	items, total, err := h.claims.ListClaims(r.Context(), f)
	if err != nil {
		writeError(w, r, err)
		return
	}
	if items == nil {
		items = []models.RequestListItem{}
	}
	writeJSON(w, http.StatusOK, listResponse{Items: items, Total: total})
}

// GetClaim handles GET /admin/claims/{id}.
func (h *Handler) GetClaim(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		writeError(w, r, err)
		return
	}
	req, err := h.claims.GetClaim(r.Context(), id)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, req)
}

// CreateClaim handles POST /admin/claims.
func (h *Handler) CreateClaim(w http.ResponseWriter, r *http.Request) {
	sub, err := h.submission(w, r, middleware.ClientIP(r))
	if err != nil {
		writeError(w, r, err)
		return
	}
	created, err := h.claims.CreateClaim(r.Context(), sub, middleware.Actor(r))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, created)
}

// UpdateClaim handles PUT /admin/claims/{id}. The body is either multipart
// (fields, _delete_files and new files) or a JSON object of fields with an
// optional _delete_files array.
func (h *Handler) UpdateClaim(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		writeError(w, r, err)
		return
	}

	var u claims.Update
	if isMultipart(r) {
		u, err = h.multipartUpdate(w, r)
	} else {
		u, err = jsonUpdate(r)
	}
	if err != nil {
		writeError(w, r, err)
		return
	}

	if err := h.claims.UpdateClaim(r.Context(), id, u, middleware.Actor(r)); err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"message": "claim updated"})
}

func (h *Handler) multipartUpdate(w http.ResponseWriter, r *http.Request) (claims.Update, error) {
	if err := h.parseMultipart(w, r); err != nil {
		return claims.Update{}, err
	}
	u := claims.Update{Fields: claims.Patch{}}
	for key, values := range r.MultipartForm.Value {
		if len(values) == 0 {
			continue
		}
		if key == deleteFilesField || key == deleteFilesField+"[]" {
			ids, err := parseIDs(values)
			if err != nil {
				return u, err
			}
			u.DeleteFiles = append(u.DeleteFiles, ids...)
			continue
		}
		u.Fields[key] = values[0]
	}
	files, err := formUploads(r.MultipartForm)
	if err != nil {
		return u, err
	}
	u.Files = files
	return u, nil
}

func jsonUpdate(r *http.Request) (claims.Update, error) {
	var body map[string]json.RawMessage
	if err := decodeJSON(r, &body); err != nil {
		return claims.Update{}, err
	}
	u := claims.Update{Fields: claims.Patch{}}
	for key, raw := range body {
		if key == deleteFilesField {
			if err := json.Unmarshal(raw, &u.DeleteFiles); err != nil {
				return u, apperr.Validation(deleteFilesField, "must be an array of file ids")
			}
			continue
		}
		v, err := scalar(raw)
		if err != nil {
			return u, apperr.Validation(key, "must be a string, number or boolean")
		}
		u.Fields[key] = v
	}
	return u, nil
}

// scalar renders a JSON string, number, boolean or null as a form value.
func scalar(raw json.RawMessage) (string, error) {
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	var v any
	if err := dec.Decode(&v); err != nil {
		return "", err
	}
	switch x := v.(type) {
	case nil:
		return "", nil
	case string:
		return x, nil
	case json.Number:
		return x.String(), nil
	case bool:
		return strconv.FormatBool(x), nil
	}
	return "", fmt.Errorf("unsupported value %s", raw)
}

// parseIDs accepts repeated values and comma-separated lists.
func parseIDs(values []string) ([]uint, error) {
	var ids []uint
	for _, v := range values {
		for _, part := range strings.Split(v, ",") {
			part = strings.TrimSpace(part)
			if part == "" {
				continue
			}
			n, err := strconv.ParseUint(part, 10, 64)
			if err != nil || n == 0 {
				return nil, apperr.Validation(deleteFilesField, "%q is not a file id", part)
			}
			ids = append(ids, uint(n))
		}
	}
	return ids, nil
}

type statusRequest struct {
	Status models.RequestStatus `json:"status"`
}

// SetStatus handles PUT /admin/claims/{id}/status.
func (h *Handler) SetStatus(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		writeError(w, r, err)
		return
	}
	var body statusRequest
	if err := decodeJSON(r, &body); err != nil {
		writeError(w, r, err)
		return
	}
	if err := h.claims.SetStatus(r.Context(), id, body.Status, middleware.Actor(r)); err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"id": id, "status": body.Status})
}

// AddFiles handles POST /admin/claims/{id}/files with a category field and
// files[] parts.
func (h *Handler) AddFiles(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		writeError(w, r, err)
		return
	}
	if err := h.parseMultipart(w, r); err != nil {
		writeError(w, r, err)
		return
	}
	headers := append(r.MultipartForm.File["files[]"], r.MultipartForm.File["files"]...)
	uploads, err := readFileHeaders(headers)
	if err != nil {
		writeError(w, r, err)
		return
	}
	category := models.AttachmentCategory(strings.TrimSpace(r.FormValue("category")))
	added, err := h.claims.AddFiles(r.Context(), id, category, uploads)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]int{"added": added})
}

// DeleteFile handles DELETE /admin/claims/{id}/files/{fileId}.
func (h *Handler) DeleteFile(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		writeError(w, r, err)
		return
	}
	fileID, err := pathID(r, "fileId")
	if err != nil {
		writeError(w, r, err)
		return
	}
	if err := h.claims.DeleteFile(r.Context(), id, fileID); err != nil {
		writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// DeleteClaim handles DELETE /admin/claims/{id}.
func (h *Handler) DeleteClaim(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		writeError(w, r, err)
		return
	}
	if err := h.claims.DeleteClaim(r.Context(), id); err != nil {
		writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// DownloadFile handles GET /admin/files/{storedFilename}. Images and PDFs
// open inline unless ?download=1 is given.
func (h *Handler) DownloadFile(w http.ResponseWriter, r *http.Request) {
	att, data, err := h.claims.DownloadFile(r.Context(), mux.Vars(r)["storedFilename"])
	if err != nil {
		writeError(w, r, err)
		return
	}

	ctype, ok := contentTypes[att.FileType]
	if !ok {
		ctype = "application/octet-stream"
	}
	disposition := "inline"
	if formBool(r.URL.Query().Get("download")) {
		disposition = "attachment"
	}
	w.Header().Set("Content-Type", ctype)
	w.Header().Set("Content-Disposition", mime.FormatMediaType(disposition, map[string]string{"filename": att.OriginalName}))
	w.Header().Set("Content-Length", strconv.Itoa(len(data)))
	w.Header().Set("X-Content-Type-Options", "nosniff")
	w.Header().Set("Cache-Control", "private, no-store")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(data)
}

// ExportClaims handles GET /admin/claims/export?format=xlsx|csv. List
// filters apply.
func (h *Handler) ExportClaims(w http.ResponseWriter, r *http.Request) {
	format, err := export.ParseFormat(r.URL.Query().Get("format"))
	if err != nil {
		writeError(w, r, apperr.Validation("format", "must be xlsx or csv"))
		return
	}
	f, err := listFilter(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	items, _, err := h.claims.ListClaims(r.Context(), f)
	if err != nil {
		writeError(w, r, err)
		return
	}
	data, err := export.Write(format, items)
	if err != nil {
		writeError(w, r, apperr.Internal(err))
		return
	}

	w.Header().Set("Content-Type", format.ContentType())
	w.Header().Set("Content-Disposition", mime.FormatMediaType("attachment", map[string]string{"filename": format.Filename(time.Now())}))
	w.Header().Set("Content-Length", strconv.Itoa(len(data)))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(data)
}
