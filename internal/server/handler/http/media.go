package http

import (
	"context"
	"net/http"

	"github.com/atinyakov/tavola/internal/common"
	"github.com/atinyakov/tavola/internal/media"
	"go.uber.org/zap"
)

// UploadSigner issues presigned upload URLs.
type UploadSigner interface {
	PresignUpload(ctx context.Context, filename, contentType string) (*media.Upload, error)
}

// MediaHandler hands out presigned uploads. Signer is nil when no bucket is
// configured.
type MediaHandler struct {
	Signer UploadSigner
	Log    *zap.Logger
}

type presignRequest struct {
	Filename    string `json:"filename"`
	ContentType string `json:"contentType"`
}

func (h *MediaHandler) Presign(w http.ResponseWriter, r *http.Request) {
	if h.Signer == nil {
		writeMessage(w, http.StatusServiceUnavailable, "Media uploads are not configured")
		return
	}
	var req presignRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeServiceError(w, h.Log, err, "")
		return
	}
	err := common.RequireFields(
		common.Text("filename", req.Filename),
		common.Text("contentType", req.ContentType),
	)
	if err != nil {
		writeServiceError(w, h.Log, err, "")
		return
	}
	upload, err := h.Signer.PresignUpload(r.Context(), req.Filename, req.ContentType)
	if err != nil {
		writeServiceError(w, h.Log, err, "")
		return
	}
	writeJSON(w, http.StatusOK, upload)
}
