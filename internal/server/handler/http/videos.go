package http

import (
	"context"
	"net/http"

	"github.com/atinyakov/tavola/internal/common"
	"github.com/atinyakov/tavola/internal/models"
	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
)

// VideoStore persists locally hosted videos.
type VideoStore interface {
	List(ctx context.Context) ([]models.Video, error)
	Create(ctx context.Context, v *models.Video) (*models.Video, error)
	Update(ctx context.Context, v *models.Video) (*models.Video, error)
	Delete(ctx context.Context, id string) error
}

// VideoHandler serves local videos and their administration.
type VideoHandler struct {
	Store VideoStore
	Log   *zap.Logger
}

type videoRequest struct {
	Title        string `json:"title"`
	Description  string `json:"description"`
	VideoURL     string `json:"videoUrl"`
	ThumbnailURL string `json:"thumbnailUrl"`
	SortOrder    int    `json:"sortOrder"`
}

func (req *videoRequest) toModel(id string) (*models.Video, error) {
	err := common.RequireFields(
		common.Text("title", req.Title),
		common.Text("videoUrl", req.VideoURL),
	)
	if err != nil {
		return nil, err
	}
	return &models.Video{
		ID:           id,
		Title:        req.Title,
		Description:  req.Description,
		VideoURL:     req.VideoURL,
		ThumbnailURL: req.ThumbnailURL,
		SortOrder:    req.SortOrder,
	}, nil
}

func (h *VideoHandler) List(w http.ResponseWriter, r *http.Request) {
	list, err := h.Store.List(r.Context())
	if err != nil {
		writeServiceError(w, h.Log, err, "")
		return
	}
	writeJSON(w, http.StatusOK, list)
}

func (h *VideoHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req videoRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeServiceError(w, h.Log, err, "")
		return
	}
	v, err := req.toModel("")
	if err == nil {
		v, err = h.Store.Create(r.Context(), v)
	}
	if err != nil {
		writeServiceError(w, h.Log, err, "")
		return
	}
	writeJSON(w, http.StatusCreated, v)
}

func (h *VideoHandler) Update(w http.ResponseWriter, r *http.Request) {
	var req videoRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeServiceError(w, h.Log, err, "")
		return
	}
	v, err := req.toModel(chi.URLParam(r, "id"))
	if err == nil {
		v, err = h.Store.Update(r.Context(), v)
	}
	if err != nil {
		writeServiceError(w, h.Log, err, "Video not found")
		return
	}
	writeJSON(w, http.StatusOK, v)
}

func (h *VideoHandler) Delete(w http.ResponseWriter, r *http.Request) {
	if err := h.Store.Delete(r.Context(), chi.URLParam(r, "id")); err != nil {
		writeServiceError(w, h.Log, err, "Video not found")
		return
	}
	writeMessage(w, http.StatusOK, "Video deleted")
}
