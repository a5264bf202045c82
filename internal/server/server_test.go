package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/HerbHall/skillpath/internal/auth"
	"github.com/HerbHall/skillpath/internal/match"
	"github.com/HerbHall/skillpath/internal/metrics"
	"github.com/HerbHall/skillpath/internal/searchlog"
	"github.com/HerbHall/skillpath/internal/session"
	"github.com/HerbHall/skillpath/internal/testutil"
)

type fakeSearchLog struct {
	searches []searchlog.Search
	launches []searchlog.Launch
	err      error
	last     searchlog.Filter
}

func (f *fakeSearchLog) ListSearches(_ context.Context, filter searchlog.Filter) ([]searchlog.Search, error) {
	f.last = filter
	return f.searches, f.err
}

func (f *fakeSearchLog) ListLaunches(_ context.Context, filter searchlog.Filter) ([]searchlog.Launch, error) {
	f.last = filter
	return f.launches, f.err
}

type extraRoutes struct{}

func (extraRoutes) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("GET /api/v1/extra", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	})
}

func newTestServer(t *testing.T, mutate func(*Deps)) (*Server, *session.Manager) {
	t.Helper()
	sessions := session.NewManager(0, zap.NewNop(), nil)
	deps := Deps{
		Sessions:  sessions,
		SearchLog: &fakeSearchLog{},
		Live: http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			w.WriteHeader(http.StatusAccepted)
		}),
		Routes: []RouteRegistrar{extraRoutes{}},
	}
	if mutate != nil {
		mutate(&deps)
	}
	return New(":0", time.Second, deps, zap.NewNop()), sessions
}

func get(t *testing.T, h http.Handler, target string, header ...string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, target, nil)
	for i := 0; i+1 < len(header); i += 2 {
		req.Header.Set(header[i], header[i+1])
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestHealth(t *testing.T) {
	srv, sessions := newTestServer(t, nil)
	_, err := sessions.Open(context.Background(), "test")
	require.NoError(t, err)

	rec := get(t, srv.Handler(), "/api/v1/health")

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "dev", rec.Header().Get("X-SkillPath-Version"))
	var body map[string]any
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&body))
	assert.Equal(t, "ok", body["status"])
	assert.Equal(t, "skillpath", body["service"])
	assert.Equal(t, float64(1), body["sessions"])
}

func TestSessionsAndHistory(t *testing.T) {
	srv, sessions := newTestServer(t, nil)
	sess, err := sessions.Open(context.Background(), "live")
	require.NoError(t, err)
	sess.History.Record("bigquery", match.Selection{{Entry: testutil.Lab("BigQuery Basics"), Similarity: 0.7}})
	sess.History.Record("cloud run", nil)

	rec := get(t, srv.Handler(), "/api/v1/sessions")
	require.Equal(t, http.StatusOK, rec.Code)
	var views []session.View
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&views))
	require.Len(t, views, 1)
	assert.Equal(t, sess.ID, views[0].ID)
	assert.Equal(t, 2, views[0].Searches)

	rec = get(t, srv.Handler(), "/api/v1/sessions/"+sess.ID)
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = get(t, srv.Handler(), "/api/v1/sessions/"+sess.ID+"/history")
	require.Equal(t, http.StatusOK, rec.Code)
	var hist historyResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&hist))
	require.Len(t, hist.Searches, 2)
	assert.Equal(t, "bigquery", hist.Searches[0].Query)
	assert.Equal(t, "BigQuery Basics", hist.Searches[0].Results[0].Title)
	assert.Equal(t, "cloud run", hist.Searches[1].Query)

	rec = get(t, srv.Handler(), "/api/v1/sessions/missing/history")
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "application/problem+json", rec.Header().Get("Content-Type"))
}

func TestSearches(t *testing.T) {
	log := &fakeSearchLog{searches: []searchlog.Search{{ID: 1, SessionID: "s1", Query: "bigquery"}}}
	srv, _ := newTestServer(t, func(d *Deps) { d.SearchLog = log })

	rec := get(t, srv.Handler(), "/api/v1/searches?session_id=s1&limit=5")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, searchlog.Filter{SessionID: "s1", Limit: 5}, log.last)
	assert.Contains(t, rec.Body.String(), "bigquery")

	rec = get(t, srv.Handler(), "/api/v1/launches")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, searchlog.Filter{}, log.last)

	for _, bad := range []string{"abc", "0", "-1", "100000"} {
		rec = get(t, srv.Handler(), "/api/v1/searches?limit="+bad)
		assert.Equal(t, http.StatusBadRequest, rec.Code, "limit=%s", bad)
	}

	log.err = errors.New("disk full")
	rec = get(t, srv.Handler(), "/api/v1/searches")
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
}

func TestSearchesDisabled(t *testing.T) {
	srv, _ := newTestServer(t, func(d *Deps) { d.SearchLog = nil })

	rec := get(t, srv.Handler(), "/api/v1/searches")
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestRoutes(t *testing.T) {
	srv, _ := newTestServer(t, nil)

	assert.Equal(t, http.StatusAccepted, get(t, srv.Handler(), "/api/v1/live").Code)
	assert.Equal(t, http.StatusTeapot, get(t, srv.Handler(), "/api/v1/extra").Code)

	rec := get(t, srv.Handler(), "/api/v1/nope")
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "application/problem+json", rec.Header().Get("Content-Type"))

	assert.Equal(t, http.StatusNotFound, get(t, srv.Handler(), "/metrics").Code, "metrics not mounted without a gatherer")
}

func TestMetricsEndpoint(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := metrics.New(reg)
	m.SessionOpened()
	srv, _ := newTestServer(t, func(d *Deps) { d.Gatherer = reg })

	rec := get(t, srv.Handler(), "/metrics")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "skillpath_session_active 1")
}

func TestAuthRequired(t *testing.T) {
	a := auth.New(auth.Config{JWTSecret: "s3cret", Issuer: "skillpath"}, zap.NewNop())
	srv, _ := newTestServer(t, func(d *Deps) { d.Auth = a })

	assert.Equal(t, http.StatusOK, get(t, srv.Handler(), "/api/v1/health").Code, "health stays public")

	rec := get(t, srv.Handler(), "/api/v1/sessions")
	require.Equal(t, http.StatusUnauthorized, rec.Code)
	var p Problem
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&p))
	assert.Equal(t, ProblemTypeUnauthorized, p.Type)
	assert.Equal(t, "/api/v1/sessions", p.Instance)

	token, err := a.IssueToken("tester", time.Hour, time.Now())
	require.NoError(t, err)

	rec = get(t, srv.Handler(), "/api/v1/sessions", "Authorization", "Bearer "+token)
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = get(t, srv.Handler(), "/api/v1/live?token="+token)
	assert.Equal(t, http.StatusAccepted, rec.Code)

	rec = get(t, srv.Handler(), "/api/v1/live?token="+strings.Repeat("x", 10))
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}
