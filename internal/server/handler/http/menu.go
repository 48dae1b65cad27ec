package http

import (
	"context"
	"net/http"

	"github.com/atinyakov/tavola/internal/common"
	"github.com/atinyakov/tavola/internal/models"
	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
)

// MenuStore persists menu items.
type MenuStore interface {
	List(ctx context.Context, onlyAvailable bool) ([]models.MenuItem, error)
	Create(ctx context.Context, m *models.MenuItem) (*models.MenuItem, error)
	Update(ctx context.Context, m *models.MenuItem) (*models.MenuItem, error)
	Delete(ctx context.Context, id string) error
	Reorder(ctx context.Context, ids []string) error
}

// MenuHandler serves the public menu and its administration.
type MenuHandler struct {
	Store MenuStore
	Log   *zap.Logger
}

type menuItemRequest struct {
	Name        string   `json:"name"`
	Description string   `json:"description"`
	Price       *float64 `json:"price"`
	Section     string   `json:"section"`
	Available   *bool    `json:"available"`
	SortOrder   int      `json:"sortOrder"`
}

func (req *menuItemRequest) toModel(id string) (*models.MenuItem, error) {
	err := common.RequireFields(
		common.Text("name", req.Name),
		common.Field{Name: "price", Present: req.Price != nil},
		common.Text("section", req.Section),
	)
	if err != nil {
		return nil, err
	}
	if *req.Price < 0 {
		return nil, &common.RequestError{Reason: "price must not be negative"}
	}
	available := true
	if req.Available != nil {
		available = *req.Available
	}
	return &models.MenuItem{
		ID:          id,
		Name:        req.Name,
		Description: req.Description,
		Price:       *req.Price,
		Section:     req.Section,
		Available:   available,
		SortOrder:   req.SortOrder,
	}, nil
}

// Public returns the items currently offered.
func (h *MenuHandler) Public(w http.ResponseWriter, r *http.Request) {
	h.list(w, r, true)
}

// All returns every item including unavailable ones.
func (h *MenuHandler) All(w http.ResponseWriter, r *http.Request) {
	h.list(w, r, false)
}

func (h *MenuHandler) list(w http.ResponseWriter, r *http.Request, onlyAvailable bool) {
	items, err := h.Store.List(r.Context(), onlyAvailable)
	if err != nil {
		writeServiceError(w, h.Log, err, "")
		return
	}
	writeJSON(w, http.StatusOK, items)
}

func (h *MenuHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req menuItemRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeServiceError(w, h.Log, err, "")
		return
	}
	m, err := req.toModel("")
	if err == nil {
		m, err = h.Store.Create(r.Context(), m)
	}
	if err != nil {
		writeServiceError(w, h.Log, err, "")
		return
	}
	writeJSON(w, http.StatusCreated, m)
}

func (h *MenuHandler) Update(w http.ResponseWriter, r *http.Request) {
	var req menuItemRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeServiceError(w, h.Log, err, "")
		return
	}
	m, err := req.toModel(chi.URLParam(r, "id"))
	if err == nil {
		m, err = h.Store.Update(r.Context(), m)
	}
	if err != nil {
		writeServiceError(w, h.Log, err, "Menu item not found")
		return
	}
	writeJSON(w, http.StatusOK, m)
}

func (h *MenuHandler) Delete(w http.ResponseWriter, r *http.Request) {
	if err := h.Store.Delete(r.Context(), chi.URLParam(r, "id")); err != nil {
		writeServiceError(w, h.Log, err, "Menu item not found")
		return
	}
	writeMessage(w, http.StatusOK, "Menu item deleted")
}

type reorderRequest struct {
	IDs []string `json:"ids"`
}

// Reorder sets the display order of menu items to the order of ids.
func (h *MenuHandler) Reorder(w http.ResponseWriter, r *http.Request) {
	var req reorderRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeServiceError(w, h.Log, err, "")
		return
	}
	if err := common.RequireFields(common.Field{Name: "ids", Present: len(req.IDs) > 0}); err != nil {
		writeServiceError(w, h.Log, err, "")
		return
	}
	seen := make(map[string]struct{}, len(req.IDs))
	for _, id := range req.IDs {
		if _, dup := seen[id]; dup || id == "" {
			writeServiceError(w, h.Log, &common.RequestError{Reason: "ids must be unique and non-empty"}, "")
			return
		}
		seen[id] = struct{}{}
	}
	if err := h.Store.Reorder(r.Context(), req.IDs); err != nil {
		writeServiceError(w, h.Log, err, "Menu item not found")
		return
	}
	writeMessage(w, http.StatusOK, "Menu reordered")
}
