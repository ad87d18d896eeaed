package observability

import (
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/require"
)

func TestMiddlewareUsesRoutePattern(t *testing.T) {
	require := require.New(t)
	m := NewMetrics()
	r := chi.NewRouter()
	r.Use(m.Middleware)
	r.Get("/guilds/{guildID}", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	})
	r.Handle("/metrics", m.Handler())

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/guilds/123", nil))
	require.Equal(http.StatusTeapot, rec.Code)

	m.EventPublished("MESSAGE_CREATE", nil)
	m.EventPublished("MESSAGE_CREATE", errors.New("down"))
	m.JobDone("messages:purge", nil)
	m.SessionOpened()

	rec = httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	body, _ := io.ReadAll(rec.Body)
	text := string(body)
	require.True(strings.Contains(text, `derailed_http_requests_total{code="418",route="/guilds/{guildID}"} 1`), text)
	require.Contains(text, `derailed_events_published_total{status="failure",type="MESSAGE_CREATE"} 1`)
	require.Contains(text, `derailed_jobs_total{status="success",type="messages:purge"} 1`)
	require.Contains(text, "derailed_gateway_sessions 1")
}

func TestNilMetrics(t *testing.T) {
	var m *Metrics
	m.SessionOpened()
	m.EventPublished("READY", nil)
	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusServiceUnavailable, rec.Code)
}
