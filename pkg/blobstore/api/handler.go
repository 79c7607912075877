// Package api exposes the blob service over HTTP. Routes and payloads follow
// the v1 wire contract: token in the AuthToken header, blobs addressed by
// UUID under /blobs.
package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/render"
	"github.com/google/uuid"

	"github.com/apdi/blobstore/pkg/blobstore"
)

// tokenHeader carries the opaque client token.
const tokenHeader = "AuthToken"

// Handler handles HTTP requests for blobs
type Handler struct {
	service blobstore.Service
}

// NewHandler creates a new blob handler
func NewHandler(service blobstore.Service) *Handler {
	return &Handler{service: service}
}

// Routes returns the routes for blobs
func (h *Handler) Routes() chi.Router {
	r := chi.NewRouter()

	r.Post("/", h.CreateBlob)
	r.Get("/", h.ListBlobs)
	r.Get("/{id}", h.ReadBlob)
	r.Put("/{id}", h.WriteBlob)
	r.Delete("/{id}", h.DeleteBlob)

	r.Get("/{id}/hash", h.DigestBlob)

	r.Get("/{id}/acl", h.GetACL)
	r.Put("/{id}/acl", h.ReplaceACL)
	r.Patch("/{id}/acl", h.AddACL)
	r.Delete("/{id}/acl/{user}", h.RevokeACL)

	r.Get("/{id}/visibility", h.GetVisibility)
	r.Put("/{id}/visibility", h.SetVisibility)

	return r
}

// ErrorResponse is the body for error responses
type ErrorResponse struct {
	Error string `json:"error"`
}

// writeError maps the service error taxonomy onto HTTP statuses.
func writeError(w http.ResponseWriter, r *http.Request, err error) {
	status := http.StatusInternalServerError

	var identityErr *blobstore.IdentityError
	switch {
	case errors.As(err, &identityErr):
		status = http.StatusUnauthorized
	case errors.Is(err, blobstore.ErrBlobNotFound), errors.Is(err, blobstore.ErrGrantNotFound):
		status = http.StatusNotFound
	case errors.Is(err, blobstore.ErrBlobAlreadyExists):
		status = http.StatusConflict
	case errors.Is(err, blobstore.ErrInsufficientPermissions):
		status = http.StatusForbidden
	case errors.Is(err, blobstore.ErrInvalidVisibility), errors.Is(err, blobstore.ErrUnknownDigestAlgorithm):
		status = http.StatusBadRequest
	}

	if status == http.StatusInternalServerError {
		slog.Error("blob request failed", "path", r.URL.Path, "error", err)
	}

	render.Status(r, status)
	render.JSON(w, r, ErrorResponse{Error: err.Error()})
}

func requestToken(r *http.Request) string {
	return r.Header.Get(tokenHeader)
}

func blobID(r *http.Request) (uuid.UUID, error) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		return uuid.Nil, fmt.Errorf("invalid blob id")
	}
	return id, nil
}

// CreateBlobRequest is the request body for creating a blob
type CreateBlobRequest struct {
	Visibility string `json:"visibility,omitempty"`
}

// BlobResponse is the response body for a created or listed blob
type BlobResponse struct {
	BlobID string `json:"blobId"`
	URL    string `json:"URL"`
}

func blobURL(r *http.Request, id uuid.UUID) string {
	root := strings.TrimRight(requestRoot(r), "/")
	return fmt.Sprintf("%s/blobs/%s", root, id)
}

// requestRoot reconstructs the mount point of the blob routes from the
// request path, so returned URLs survive any route prefix.
func requestRoot(r *http.Request) string {
	path := r.URL.Path
	if i := strings.Index(path, "/blobs"); i >= 0 {
		return path[:i]
	}
	return ""
}

// CreateBlob creates a new blob owned by the caller
func (h *Handler) CreateBlob(w http.ResponseWriter, r *http.Request) {
	var req CreateBlobRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	visibility := blobstore.VisibilityPrivate
	if req.Visibility != "" {
		var err error
		visibility, err = blobstore.ParseVisibility(req.Visibility)
		if err != nil {
			writeError(w, r, err)
			return
		}
	}

	record, err := h.service.CreateBlob(r.Context(), blobstore.CreateBlobRequest{
		Token:      requestToken(r),
		Visibility: visibility,
	})
	if err != nil {
		writeError(w, r, err)
		return
	}

	render.Status(r, http.StatusCreated)
	render.JSON(w, r, BlobResponse{BlobID: record.ID.String(), URL: blobURL(r, record.ID)})
}

// ListBlobsResponse is the response body for listing the caller's blobs
type ListBlobsResponse struct {
	Blobs []BlobResponse `json:"blobs"`
}

// ListBlobs lists the caller's blobs
func (h *Handler) ListBlobs(w http.ResponseWriter, r *http.Request) {
	records, err := h.service.ListOwned(r.Context(), requestToken(r))
	if err != nil {
		writeError(w, r, err)
		return
	}

	resp := ListBlobsResponse{Blobs: make([]BlobResponse, 0, len(records))}
	for _, record := range records {
		resp.Blobs = append(resp.Blobs, BlobResponse{
			BlobID: record.ID.String(),
			URL:    blobURL(r, record.ID),
		})
	}
	render.JSON(w, r, resp)
}

// ReadBlob streams the blob's content
func (h *Handler) ReadBlob(w http.ResponseWriter, r *http.Request) {
	id, err := blobID(r)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	stream, err := h.service.ReadBlob(r.Context(), requestToken(r), id)
	if err != nil {
		writeError(w, r, err)
		return
	}
	defer stream.Close()

	w.Header().Set("Content-Type", "application/octet-stream")
	if _, err := io.Copy(w, stream); err != nil {
		slog.Error("streaming blob content failed", "blob_id", id, "error", err)
	}
}

// WriteBlob fully replaces the blob's content with the request body
func (h *Handler) WriteBlob(w http.ResponseWriter, r *http.Request) {
	id, err := blobID(r)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	if _, err := h.service.WriteBlob(r.Context(), requestToken(r), id, r.Body); err != nil {
		writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// DeleteBlob removes the blob, its grants and its content
func (h *Handler) DeleteBlob(w http.ResponseWriter, r *http.Request) {
	id, err := blobID(r)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	if err := h.service.DeleteBlob(r.Context(), requestToken(r), id); err != nil {
		writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// DigestBlob returns hex digests of the blob content. Algorithms come from
// the "type" query parameter as a comma-separated list, defaulting to md5.
func (h *Handler) DigestBlob(w http.ResponseWriter, r *http.Request) {
	id, err := blobID(r)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	names := strings.Split(r.URL.Query().Get("type"), ",")
	if len(names) == 1 && names[0] == "" {
		names = []string{string(blobstore.DigestMD5)}
	}

	digests, err := h.service.Digest(r.Context(), requestToken(r), id, names)
	if err != nil {
		writeError(w, r, err)
		return
	}
	render.JSON(w, r, digests)
}

// ACLRequest is the request body for replacing or extending the ACL
type ACLRequest struct {
	ACL []string `json:"acl"`
}

// ACLResponse is the response body for reading the ACL
type ACLResponse struct {
	AllowedUsers []string `json:"allowed_users"`
}

// GetACL returns the blob's grant set
func (h *Handler) GetACL(w http.ResponseWriter, r *http.Request) {
	id, err := blobID(r)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	grantees, err := h.service.ListGrantees(r.Context(), requestToken(r), id)
	if err != nil {
		writeError(w, r, err)
		return
	}
	render.JSON(w, r, ACLResponse{AllowedUsers: grantees})
}

func decodeACL(w http.ResponseWriter, r *http.Request) ([]string, bool) {
	var req ACLRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return nil, false
	}
	if req.ACL == nil {
		http.Error(w, "missing 'acl' key in JSON body", http.StatusBadRequest)
		return nil, false
	}
	return req.ACL, true
}

// ReplaceACL atomically replaces the blob's grant set
func (h *Handler) ReplaceACL(w http.ResponseWriter, r *http.Request) {
	id, err := blobID(r)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	acl, ok := decodeACL(w, r)
	if !ok {
		return
	}

	if err := h.service.ReplaceACL(r.Context(), requestToken(r), id, acl); err != nil {
		writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// AddACL adds grantees to the blob's grant set
func (h *Handler) AddACL(w http.ResponseWriter, r *http.Request) {
	id, err := blobID(r)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	acl, ok := decodeACL(w, r)
	if !ok {
		return
	}

	if err := h.service.Grant(r.Context(), requestToken(r), id, acl...); err != nil {
		writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// RevokeACL removes a single grantee
func (h *Handler) RevokeACL(w http.ResponseWriter, r *http.Request) {
	id, err := blobID(r)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	if err := h.service.Revoke(r.Context(), requestToken(r), id, chi.URLParam(r, "user")); err != nil {
		writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// VisibilityRequest is the request body for updating visibility
type VisibilityRequest struct {
	Visibility string `json:"visibility"`
}

// VisibilityResponse is the response body for reading visibility
type VisibilityResponse struct {
	Visibility string `json:"visibility"`
}

// GetVisibility returns the blob's visibility
func (h *Handler) GetVisibility(w http.ResponseWriter, r *http.Request) {
	id, err := blobID(r)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	visibility, err := h.service.GetVisibility(r.Context(), requestToken(r), id)
	if err != nil {
		writeError(w, r, err)
		return
	}
	render.JSON(w, r, VisibilityResponse{Visibility: string(visibility)})
}

// SetVisibility updates the blob's visibility
func (h *Handler) SetVisibility(w http.ResponseWriter, r *http.Request) {
	id, err := blobID(r)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	var req VisibilityRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	if req.Visibility == "" {
		http.Error(w, "missing 'visibility' key in JSON body", http.StatusBadRequest)
		return
	}

	visibility, err := blobstore.ParseVisibility(req.Visibility)
	if err != nil {
		writeError(w, r, err)
		return
	}

	if err := h.service.SetVisibility(r.Context(), requestToken(r), id, visibility); err != nil {
		writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
