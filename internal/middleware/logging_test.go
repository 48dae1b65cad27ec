package middleware

import (
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/atinyakov/tavola/internal/models"
	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

func bufferLogger() (*zap.Logger, *bytes.Buffer) {
	var buf bytes.Buffer
	core := zapcore.NewCore(
		zapcore.NewConsoleEncoder(zap.NewDevelopmentEncoderConfig()),
		zapcore.AddSync(&buf),
		zapcore.DebugLevel,
	)
	return zap.New(core), &buf
}

func TestWithRequestLogging_AuthenticatedUser(t *testing.T) {
	logger, buf := bufferLogger()
	v := validatorFunc(func(context.Context, string) (*models.SessionRecord, error) {
		return &models.SessionRecord{Username: "admin"}, nil
	})
	h := WithRequestLogging(logger)(RequireSession(v, logger)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusCreated)
		_, _ = w.Write([]byte("{}"))
	})))

	h.ServeHTTP(httptest.NewRecorder(), withCookie(httptest.NewRequest(http.MethodPost, "/api/admin/dishes", nil), "tok"))

	out := buf.String()
	assert.Contains(t, out, "/api/admin/dishes")
	assert.Contains(t, out, `"status": 201`)
	assert.Contains(t, out, `"user": "admin"`)
}

func TestWithRequestLogging_ErrorLevel(t *testing.T) {
	logger, buf := bufferLogger()
	h := WithRequestLogging(logger)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "boom", http.StatusInternalServerError)
	}))

	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/api/menu", nil))

	assert.True(t, strings.Contains(buf.String(), "ERROR"), buf.String())
}

type recordedRequest struct {
	method, route string
	status        int
}

type observerFunc func(method, route string, status int, elapsed time.Duration)

func (f observerFunc) ObserveRequest(method, route string, status int, elapsed time.Duration) {
	f(method, route, status, elapsed)
}

func TestWithMetrics_RoutePattern(t *testing.T) {
	var got []recordedRequest
	obs := observerFunc(func(method, route string, status int, _ time.Duration) {
		got = append(got, recordedRequest{method, route, status})
	})

	r := chi.NewRouter()
	r.Use(WithMetrics(obs))
	r.Get("/api/dishes/{id}", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	})
	r.Get("/api/menu", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("[]"))
	})

	r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/api/dishes/42", nil))
	r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/api/menu", nil))

	assert.Equal(t, []recordedRequest{
		{"GET", "/api/dishes/{id}", 404},
		{"GET", "/api/menu", 200},
	}, got)
}
