package http

import (
	"context"
	"net/http"

	"github.com/atinyakov/tavola/internal/common"
	"github.com/atinyakov/tavola/internal/models"
	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
)

// DishStore persists gallery dishes.
type DishStore interface {
	List(ctx context.Context, categoryID string) ([]models.Dish, error)
	Get(ctx context.Context, id string) (*models.Dish, error)
	Create(ctx context.Context, d *models.Dish) (*models.Dish, error)
	Update(ctx context.Context, d *models.Dish) (*models.Dish, error)
	Delete(ctx context.Context, id string) error
}

// DishHandler serves the dish gallery and its administration.
type DishHandler struct {
	Store DishStore
	Log   *zap.Logger
}

type dishRequest struct {
	Title       string `json:"title"`
	Description string `json:"description"`
	ImageURL    string `json:"imageUrl"`
	CategoryID  string `json:"categoryId"`
	SortOrder   int    `json:"sortOrder"`
}

func (req *dishRequest) toModel(id string) (*models.Dish, error) {
	err := common.RequireFields(
		common.Text("title", req.Title),
		common.Text("description", req.Description),
		common.Text("imageUrl", req.ImageURL),
		common.Text("categoryId", req.CategoryID),
	)
	if err != nil {
		return nil, err
	}
	return &models.Dish{
		ID:          id,
		Title:       req.Title,
		Description: req.Description,
		ImageURL:    req.ImageURL,
		CategoryID:  req.CategoryID,
		SortOrder:   req.SortOrder,
	}, nil
}

// List returns the gallery, optionally filtered by ?categoryId=.
func (h *DishHandler) List(w http.ResponseWriter, r *http.Request) {
	list, err := h.Store.List(r.Context(), r.URL.Query().Get("categoryId"))
	if err != nil {
		writeServiceError(w, h.Log, err, "")
		return
	}
	writeJSON(w, http.StatusOK, list)
}

func (h *DishHandler) Get(w http.ResponseWriter, r *http.Request) {
	d, err := h.Store.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeServiceError(w, h.Log, err, "Dish not found")
		return
	}
	writeJSON(w, http.StatusOK, d)
}

func (h *DishHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req dishRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeServiceError(w, h.Log, err, "")
		return
	}
	d, err := req.toModel("")
	if err == nil {
		d, err = h.Store.Create(r.Context(), d)
	}
	if err != nil {
		writeServiceError(w, h.Log, err, "")
		return
	}
	writeJSON(w, http.StatusCreated, d)
}

func (h *DishHandler) Update(w http.ResponseWriter, r *http.Request) {
	var req dishRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeServiceError(w, h.Log, err, "")
		return
	}
	d, err := req.toModel(chi.URLParam(r, "id"))
	if err == nil {
		d, err = h.Store.Update(r.Context(), d)
	}
	if err != nil {
		writeServiceError(w, h.Log, err, "Dish not found")
		return
	}
	writeJSON(w, http.StatusOK, d)
}

func (h *DishHandler) Delete(w http.ResponseWriter, r *http.Request) {
	if err := h.Store.Delete(r.Context(), chi.URLParam(r, "id")); err != nil {
		writeServiceError(w, h.Log, err, "Dish not found")
		return
	}
	writeMessage(w, http.StatusOK, "Dish deleted")
}
