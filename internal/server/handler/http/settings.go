package http

import (
	"context"
	"net/http"

	"github.com/atinyakov/tavola/internal/common"
	"github.com/atinyakov/tavola/internal/models"
	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
)

// SettingsStore persists application settings.
type SettingsStore interface {
	List(ctx context.Context) ([]models.Setting, error)
	ListPublic(ctx context.Context) ([]models.Setting, error)
	Get(ctx context.Context, key string) (*models.Setting, error)
	Set(ctx context.Context, key, value string) (*models.Setting, error)
	Delete(ctx context.Context, key string) error
}

// SettingsHandler serves settings administration.
type SettingsHandler struct {
	Store SettingsStore
	Log   *zap.Logger
}

type settingRequest struct {
	Value *string `json:"value"`
}

func (h *SettingsHandler) List(w http.ResponseWriter, r *http.Request) {
	list, err := h.Store.List(r.Context())
	if err != nil {
		writeServiceError(w, h.Log, err, "")
		return
	}
	writeJSON(w, http.StatusOK, list)
}

func (h *SettingsHandler) Get(w http.ResponseWriter, r *http.Request) {
	s, err := h.Store.Get(r.Context(), chi.URLParam(r, "key"))
	if err != nil {
		writeServiceError(w, h.Log, err, "Setting not found")
		return
	}
	writeJSON(w, http.StatusOK, s)
}

// Put creates or replaces the setting named in the path.
func (h *SettingsHandler) Put(w http.ResponseWriter, r *http.Request) {
	var req settingRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeServiceError(w, h.Log, err, "")
		return
	}
	if err := common.RequireFields(common.Field{Name: "value", Present: req.Value != nil}); err != nil {
		writeServiceError(w, h.Log, err, "")
		return
	}
	s, err := h.Store.Set(r.Context(), chi.URLParam(r, "key"), *req.Value)
	if err != nil {
		writeServiceError(w, h.Log, err, "")
		return
	}
	writeJSON(w, http.StatusOK, s)
}

func (h *SettingsHandler) Delete(w http.ResponseWriter, r *http.Request) {
	if err := h.Store.Delete(r.Context(), chi.URLParam(r, "key")); err != nil {
		writeServiceError(w, h.Log, err, "Setting not found")
		return
	}
	writeMessage(w, http.StatusOK, "Setting deleted")
}
