package http

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"

	"github.com/atinyakov/tavola/internal/common"
	"go.uber.org/zap"
)

const maxBodyBytes = 1 << 20

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeMessage(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"message": message})
}

// decodeJSON reads a single JSON object from the request body.
func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err := dec.Decode(dst); err != nil {
		if errors.Is(err, io.EOF) {
			return &common.RequestError{Reason: "request body is empty"}
		}
		return &common.RequestError{Reason: "invalid JSON body"}
	}
	return nil
}

// writeServiceError maps err onto a status code and message. notFound is the
// message used for ErrNotFound. Unexpected errors are logged and hidden.
func writeServiceError(w http.ResponseWriter, log *zap.Logger, err error, notFound string) {
	var (
		ve *common.ValidationError
		re *common.RequestError
	)
	switch {
	case errors.As(err, &ve):
		writeMessage(w, http.StatusBadRequest, "Missing required fields: "+strings.Join(ve.Missing, ", "))
	case errors.As(err, &re):
		writeMessage(w, http.StatusBadRequest, "Invalid request: "+re.Reason)
	case errors.Is(err, common.ErrReservedKey):
		writeMessage(w, http.StatusBadRequest, "Settings key is reserved")
	case errors.Is(err, common.ErrBadRequest):
		writeMessage(w, http.StatusBadRequest, "Invalid request")
	case errors.Is(err, common.ErrInvalidCredentials):
		writeMessage(w, http.StatusUnauthorized, "Invalid credentials")
	case errors.Is(err, common.ErrUnauthenticated):
		writeMessage(w, http.StatusUnauthorized, "Authentication required")
	case errors.Is(err, common.ErrNotFound):
		writeMessage(w, http.StatusNotFound, notFound)
	case errors.Is(err, common.ErrConflict):
		writeMessage(w, http.StatusConflict, "Conflicts with existing data")
	case errors.Is(err, common.ErrRateLimited):
		writeMessage(w, http.StatusTooManyRequests, "Too many requests")
	default:
		log.Error("request failed", zap.Error(err))
		writeMessage(w, http.StatusInternalServerError, "Internal server error")
	}
}
