package api

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/render"
	"github.com/google/uuid"
	"github.com/pubflow/pubflow/pkg/pubflow"
)

// ContentHandler handles HTTP requests for content entities.
type ContentHandler struct {
	service pubflow.Service
}

// NewContentHandler creates a new content handler
func NewContentHandler(service pubflow.Service) *ContentHandler {
	return &ContentHandler{service: service}
}

// Routes returns the routes for content
func (h *ContentHandler) Routes() chi.Router {
	r := chi.NewRouter()

	r.Get("/", h.ListContent)
	r.With(RequirePrincipal).Post("/", h.SaveContent)

	r.Get("/{id}", h.GetContent)
	r.With(RequirePrincipal).Put("/{id}", h.SaveContent)
	r.With(RequirePrincipal).Delete("/{id}", h.DeleteContent)

	// Alias resolution, e.g. /path/en/article/hello-world
	r.Get("/path/{language}/*", h.GetContentByPath)

	return r
}

// SaveContentRequest is the request body for creating or updating content.
// The author is always the authenticated principal.
type SaveContentRequest struct {
	Type        string         `json:"type"`
	Title       string         `json:"title"`
	Description string         `json:"description"`
	Body        string         `json:"body"`
	Language    string         `json:"language"`
	Status      string         `json:"status,omitempty"`
	Alias       string         `json:"alias,omitempty"`
	VideoLinks  []string       `json:"video_links,omitempty"`
	Section     string         `json:"section,omitempty"`
	Tags        []string       `json:"tags,omitempty"`
	PublishTime *time.Time     `json:"publish_time,omitempty"`
	Options     map[string]any `json:"options,omitempty"`
}

// ContentResponse is the response body for a content entity. Body holds the
// stored form; RenderedBody is populated when ?render=true is given.
type ContentResponse struct {
	ID           string               `json:"id"`
	Type         string               `json:"type"`
	Title        string               `json:"title"`
	Description  string               `json:"description,omitempty"`
	Body         string               `json:"body,omitempty"`
	RenderedBody string               `json:"rendered_body,omitempty"`
	Language     string               `json:"language"`
	Status       string               `json:"status"`
	AuthorID     string               `json:"author_id,omitempty"`
	AliasID      string               `json:"alias_id,omitempty"`
	Section      string               `json:"section,omitempty"`
	Tags         []string             `json:"tags,omitempty"`
	Images       []pubflow.Attachment `json:"images,omitempty"`
	VideoLinks   []string             `json:"video_links,omitempty"`
	PublishTime  *time.Time           `json:"publish_time,omitempty"`
	CreatedAt    time.Time            `json:"created_at"`
	UpdatedAt    time.Time            `json:"updated_at"`
}

// ContentListResponse is the response body for a listing page.
type ContentListResponse struct {
	Items   []ContentResponse `json:"items"`
	Total   int64             `json:"total"`
	Page    int               `json:"page"`
	PerPage int               `json:"per_page"`
}

// SaveContent creates a new content entity, or updates the one addressed by
// the {id} route parameter.
func (h *ContentHandler) SaveContent(w http.ResponseWriter, r *http.Request) {
	var req SaveContentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	var id uuid.UUID
	if idStr := chi.URLParam(r, "id"); idStr != "" {
		var err error
		if id, err = uuid.Parse(idStr); err != nil {
			http.Error(w, "Invalid content ID", http.StatusBadRequest)
			return
		}
	}

	principal := PrincipalFromContext(r.Context())
	content, err := h.service.SaveContent(r.Context(), principal, pubflow.SaveContentRequest{
		ID:          id,
		Type:        req.Type,
		Title:       req.Title,
		Description: req.Description,
		Body:        req.Body,
		Language:    req.Language,
		Status:      pubflow.Status(req.Status),
		Alias:       req.Alias,
		VideoLinks:  req.VideoLinks,
		Section:     req.Section,
		Tags:        req.Tags,
		PublishTime: req.PublishTime,
		Options:     req.Options,
	})
	if err != nil {
		slog.Error("Failed to save content", "type", req.Type, "error", err)
		writeError(w, err)
		return
	}

	slog.Info("Content saved", "content_id", content.ID.String(), "status", content.Status)
	if id == uuid.Nil {
		render.Status(r, http.StatusCreated)
	}
	render.JSON(w, r, h.toResponse(content, false))
}

// GetContent retrieves a content entity by ID
func (h *ContentHandler) GetContent(w http.ResponseWriter, r *http.Request) {
	idStr := chi.URLParam(r, "id")
	id, err := uuid.Parse(idStr)
	if err != nil {
		http.Error(w, "Invalid content ID", http.StatusBadRequest)
		return
	}

	content, err := h.service.GetContent(r.Context(), id)
	if err != nil {
		slog.Error("Failed to get content", "content_id", idStr, "error", err)
		writeError(w, err)
		return
	}

	render.JSON(w, r, h.toResponse(content, r.URL.Query().Get("render") == "true"))
}

// GetContentByPath resolves a content entity through its alias path.
func (h *ContentHandler) GetContentByPath(w http.ResponseWriter, r *http.Request) {
	language := chi.URLParam(r, "language")
	path := chi.URLParam(r, "*")
	if path == "" {
		http.Error(w, "Missing alias path", http.StatusBadRequest)
		return
	}

	content, err := h.service.GetContentByPath(r.Context(), path, language)
	if err != nil {
		slog.Warn("Failed to resolve alias path", "path", path, "language", language, "error", err)
		writeError(w, err)
		return
	}

	render.JSON(w, r, h.toResponse(content, r.URL.Query().Get("render") == "true"))
}

// DeleteContent deletes a content entity by ID
func (h *ContentHandler) DeleteContent(w http.ResponseWriter, r *http.Request) {
	idStr := chi.URLParam(r, "id")
	id, err := uuid.Parse(idStr)
	if err != nil {
		http.Error(w, "Invalid content ID", http.StatusBadRequest)
		return
	}

	principal := PrincipalFromContext(r.Context())
	if err := h.service.DeleteContent(r.Context(), principal, id); err != nil {
		slog.Error("Failed to delete content", "content_id", idStr, "error", err)
		writeError(w, err)
		return
	}

	slog.Info("Content deleted", "content_id", idStr)
	w.WriteHeader(http.StatusNoContent)
}

// ListContent lists or searches content entities.
//
// Query parameters: type (required), language, status, q, author_id, page,
// per_page, include_scheduled.
func (h *ContentHandler) ListContent(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	req := pubflow.ListContentRequest{
		Type:             q.Get("type"),
		Language:         q.Get("language"),
		Status:           q.Get("status"),
		Query:            q.Get("q"),
		IncludeScheduled: q.Get("include_scheduled") == "true",
	}
	if req.Type == "" {
		http.Error(w, "Missing required 'type' parameter", http.StatusBadRequest)
		return
	}
	if authorStr := q.Get("author_id"); authorStr != "" {
		authorID, err := uuid.Parse(authorStr)
		if err != nil {
			http.Error(w, "Invalid author ID", http.StatusBadRequest)
			return
		}
		req.AuthorID = &authorID
	}
	req.Page, _ = strconv.Atoi(q.Get("page"))
	req.PerPage, _ = strconv.Atoi(q.Get("per_page"))

	page, err := h.service.ListContent(r.Context(), req)
	if err != nil {
		slog.Error("Failed to list content", "type", req.Type, "error", err)
		writeError(w, err)
		return
	}

	resp := ContentListResponse{
		Items:   []ContentResponse{},
		Total:   page.Total,
		Page:    page.Page,
		PerPage: page.PerPage,
	}
	for _, c := range page.Items {
		resp.Items = append(resp.Items, h.toResponse(c, false))
	}

	render.JSON(w, r, resp)
}

func (h *ContentHandler) toResponse(c *pubflow.Content, rendered bool) ContentResponse {
	resp := ContentResponse{
		ID:          c.ID.String(),
		Type:        c.Type,
		Title:       c.Title,
		Description: c.Description,
		Body:        c.Body,
		Language:    c.Language,
		Status:      string(c.Status),
		Section:     c.Section,
		Tags:        c.Tags,
		Images:      c.Images,
		VideoLinks:  c.VideoLinks,
		PublishTime: c.PublishTime,
		CreatedAt:   c.CreatedAt,
		UpdatedAt:   c.UpdatedAt,
	}
	if c.AuthorID != uuid.Nil {
		resp.AuthorID = c.AuthorID.String()
	}
	if c.AliasID != uuid.Nil {
		resp.AliasID = c.AliasID.String()
	}
	if rendered {
		resp.RenderedBody = h.service.RenderBody(c, pubflow.RenderOptions{Alt: c.Title})
	}
	return resp
}

// writeError maps service errors onto HTTP status codes.
func writeError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, pubflow.ErrContentNotFound),
		errors.Is(err, pubflow.ErrAliasNotFound):
		status = http.StatusNotFound
	case errors.Is(err, pubflow.ErrTypeNotRegistered),
		errors.Is(err, pubflow.ErrUnsupportedLanguage),
		errors.Is(err, pubflow.ErrInvalidStatus),
		errors.Is(err, pubflow.ErrInvalidAlias):
		status = http.StatusBadRequest
	case errors.Is(err, pubflow.ErrAliasExists),
		errors.Is(err, pubflow.ErrAlreadyRunning):
		status = http.StatusConflict
	case errors.Is(err, pubflow.ErrPermissionDenied):
		status = http.StatusForbidden
	case errors.Is(err, pubflow.ErrAnonymousAuthor):
		status = http.StatusUnauthorized
	}
	http.Error(w, err.Error(), status)
}
