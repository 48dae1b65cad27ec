package http

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/atinyakov/tavola/internal/common"
	"github.com/atinyakov/tavola/internal/models"
	"github.com/atinyakov/tavola/internal/youtube"
	"github.com/skip2/go-qrcode"
	"go.uber.org/zap"
)

const (
	// YouTubeAPIKeySetting holds the Data API key.
	YouTubeAPIKeySetting = "youtube_api_key"
	// YouTubeChannelSetting overrides the configured channel id when set.
	YouTubeChannelSetting = "youtube_channel_id"

	qrSize = 256
)

// PublicSettings reads the settings the public site may see.
type PublicSettings interface {
	ListPublic(ctx context.Context) ([]models.Setting, error)
	Get(ctx context.Context, key string) (*models.Setting, error)
}

// VideoFeed returns the latest uploads of a channel.
type VideoFeed interface {
	Latest(ctx context.Context, apiKey, channelID string) ([]models.YouTubeVideo, error)
}

// SiteHandler serves public site data that is not a content table.
type SiteHandler struct {
	Settings  PublicSettings
	Feed      VideoFeed
	SiteURL   string
	ChannelID string
	Log       *zap.Logger
}

// Info returns the site_* settings as a key/value object.
func (h *SiteHandler) Info(w http.ResponseWriter, r *http.Request) {
	list, err := h.Settings.ListPublic(r.Context())
	if err != nil {
		writeServiceError(w, h.Log, err, "")
		return
	}
	out := make(map[string]string, len(list))
	for _, s := range list {
		out[s.Key] = s.Value
	}
	writeJSON(w, http.StatusOK, out)
}

// MenuQR renders a PNG QR code pointing at the public menu page.
func (h *SiteHandler) MenuQR(w http.ResponseWriter, r *http.Request) {
	png, err := qrcode.Encode(strings.TrimRight(h.SiteURL, "/")+"/menu", qrcode.Medium, qrSize)
	if err != nil {
		writeServiceError(w, h.Log, err, "")
		return
	}
	w.Header().Set("Content-Type", "image/png")
	w.Header().Set("Cache-Control", "public, max-age=3600")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(png)
}

// YouTubeVideos proxies the channel's latest uploads.
func (h *SiteHandler) YouTubeVideos(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	apiKey, err := h.settingValue(ctx, YouTubeAPIKeySetting)
	if err != nil {
		writeServiceError(w, h.Log, err, "")
		return
	}
	channel, err := h.settingValue(ctx, YouTubeChannelSetting)
	if err != nil {
		writeServiceError(w, h.Log, err, "")
		return
	}
	if channel == "" {
		channel = h.ChannelID
	}

	videos, err := h.Feed.Latest(ctx, apiKey, channel)
	switch {
	case errors.Is(err, youtube.ErrNotConfigured):
		writeMessage(w, http.StatusServiceUnavailable, "YouTube integration is not configured")
	case err != nil:
		h.Log.Warn("youtube fetch failed", zap.Error(err))
		writeMessage(w, http.StatusBadGateway, "YouTube is unavailable")
	default:
		writeJSON(w, http.StatusOK, videos)
	}
}

func (h *SiteHandler) settingValue(ctx context.Context, key string) (string, error) {
	s, err := h.Settings.Get(ctx, key)
	if errors.Is(err, common.ErrNotFound) {
		return "", nil
	}
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(s.Value), nil
}
