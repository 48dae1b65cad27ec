package http

import (
	"context"
	"net/http"

	"github.com/atinyakov/tavola/internal/common"
	"github.com/atinyakov/tavola/internal/models"
	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
)

// CategoryStore persists gallery categories.
type CategoryStore interface {
	List(ctx context.Context) ([]models.Category, error)
	Create(ctx context.Context, c *models.Category) (*models.Category, error)
	Update(ctx context.Context, c *models.Category) (*models.Category, error)
	Delete(ctx context.Context, id string) error
}

// CategoryHandler serves category listing and administration.
type CategoryHandler struct {
	Store CategoryStore
	Log   *zap.Logger
}

type categoryRequest struct {
	Name      string `json:"name"`
	Slug      string `json:"slug"`
	SortOrder int    `json:"sortOrder"`
}

func (req *categoryRequest) toModel(id string) (*models.Category, error) {
	if err := common.RequireFields(common.Text("name", req.Name)); err != nil {
		return nil, err
	}
	slug := req.Slug
	if slug != "" {
		slug = models.Slugify(slug)
	}
	return &models.Category{ID: id, Name: req.Name, Slug: slug, SortOrder: req.SortOrder}, nil
}

func (h *CategoryHandler) List(w http.ResponseWriter, r *http.Request) {
	list, err := h.Store.List(r.Context())
	if err != nil {
		writeServiceError(w, h.Log, err, "")
		return
	}
	writeJSON(w, http.StatusOK, list)
}

func (h *CategoryHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req categoryRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeServiceError(w, h.Log, err, "")
		return
	}
	c, err := req.toModel("")
	if err == nil {
		c, err = h.Store.Create(r.Context(), c)
	}
	if err != nil {
		writeServiceError(w, h.Log, err, "")
		return
	}
	writeJSON(w, http.StatusCreated, c)
}

func (h *CategoryHandler) Update(w http.ResponseWriter, r *http.Request) {
	var req categoryRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeServiceError(w, h.Log, err, "")
		return
	}
	c, err := req.toModel(chi.URLParam(r, "id"))
	if err == nil {
		c, err = h.Store.Update(r.Context(), c)
	}
	if err != nil {
		writeServiceError(w, h.Log, err, "Category not found")
		return
	}
	writeJSON(w, http.StatusOK, c)
}

func (h *CategoryHandler) Delete(w http.ResponseWriter, r *http.Request) {
	if err := h.Store.Delete(r.Context(), chi.URLParam(r, "id")); err != nil {
		writeServiceError(w, h.Log, err, "Category not found")
		return
	}
	writeMessage(w, http.StatusOK, "Category deleted")
}
