package handler

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vsinha/picktrack/pkg/application/dto"
	"github.com/vsinha/picktrack/pkg/application/services/picking"
	"github.com/vsinha/picktrack/pkg/application/services/reconcile"
	"github.com/vsinha/picktrack/pkg/domain/entities"
	"github.com/vsinha/picktrack/pkg/infrastructure/repositories/memory"
)

func newTestServer(t *testing.T) (*httptest.Server, *entities.Order, *entities.Pick) {
	t.Helper()
	ctx := context.Background()
	store := memory.NewStore()

	order, _ := entities.NewOrder("SO-77")
	require.NoError(t, store.CreateOrder(ctx, order))
	t1, _ := entities.NewTool(order.ID, "T1", "M")
	t2, _ := entities.NewTool(order.ID, "T2", "M")
	require.NoError(t, store.CreateTool(ctx, t1))
	require.NoError(t, store.CreateTool(ctx, t2))
	li, _ := entities.NewLineItem(order.ID, "BOLT", 2, 2, []string{t1.ID})
	require.NoError(t, store.CreateLineItem(ctx, li))
	stray, _ := entities.NewPick(li.ID, t2.ID, 1, "ann", time.Now(), "")
	require.NoError(t, store.CreatePick(ctx, stray))

	router := NewRouter(store, picking.NewService(store, nil), reconcile.NewService(store, nil), nil)
	srv := httptest.NewServer(router)
	t.Cleanup(srv.Close)
	return srv, order, stray
}

func getJSON(t *testing.T, url string, v any) int {
	t.Helper()
	resp, err := http.Get(url)
	require.NoError(t, err)
	defer resp.Body.Close()
	if v != nil {
		require.NoError(t, json.NewDecoder(resp.Body).Decode(v))
	}
	return resp.StatusCode
}

func TestHealth(t *testing.T) {
	srv, _, _ := newTestServer(t)
	var body map[string]string
	assert.Equal(t, http.StatusOK, getJSON(t, srv.URL+"/healthz", &body))
	assert.Equal(t, "ok", body["status"])
}

func TestProgress_ByIDAndSONumber(t *testing.T) {
	srv, order, _ := newTestServer(t)

	for _, ref := range []string{order.ID, order.SONumber} {
		var report dto.ProgressReport
		require.Equal(t, http.StatusOK, getJSON(t, srv.URL+"/orders/"+ref+"/progress", &report))
		assert.Equal(t, order.ID, report.OrderID)
		assert.Equal(t, entities.Quantity(2), report.TotalNeeded)
		assert.Equal(t, entities.Quantity(1), report.TotalPicked)
	}
}

func TestExcessPicksAndAudit(t *testing.T) {
	srv, order, stray := newTestServer(t)

	var picks []dto.ExcessPick
	require.Equal(t, http.StatusOK, getJSON(t, srv.URL+"/orders/"+order.ID+"/excess-picks", &picks))
	require.Len(t, picks, 1)
	assert.Equal(t, stray.ID, picks[0].PickID)
	assert.Equal(t, "T2", picks[0].ToolNumber)

	var audit dto.AuditReport
	require.Equal(t, http.StatusOK, getJSON(t, srv.URL+"/orders/"+order.ID+"/audit", &audit))
	require.Len(t, audit.Violations, 1)
	assert.Equal(t, entities.ViolationExcessPick, audit.Violations[0].Kind)
}

func TestUnknownOrderIs404(t *testing.T) {
	srv, _, _ := newTestServer(t)
	var body map[string]string
	assert.Equal(t, http.StatusNotFound, getJSON(t, srv.URL+"/orders/nope/audit", &body))
	assert.Contains(t, body["error"], "not found")
}

type brokenInspector struct{}

func (brokenInspector) DetectExcessPicks(context.Context, string) ([]dto.ExcessPick, error) {
	return nil, errors.New("boom")
}

func (brokenInspector) Audit(context.Context, string) (*dto.AuditReport, error) {
	return nil, errors.New("boom")
}

func TestStoreFailureIs500(t *testing.T) {
	ctx := context.Background()
	store := memory.NewStore()
	order, _ := entities.NewOrder("SO-1")
	require.NoError(t, store.CreateOrder(ctx, order))

	router := NewRouter(store, picking.NewService(store, nil), brokenInspector{}, nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/orders/SO-1/audit", nil))
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.NotContains(t, rec.Body.String(), "boom")
}

func TestMetricsEndpoint(t *testing.T) {
	srv, _, _ := newTestServer(t)
	getJSON(t, srv.URL+"/healthz", nil)

	resp, err := http.Get(srv.URL + "/metrics")
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var b strings.Builder
	_, err = io.Copy(&b, resp.Body)
	require.NoError(t, err)
	assert.Contains(t, b.String(), `picktrack_http_requests_total{route="/healthz",status="200"}`)
}

func TestUnmatchedPathsShareOneRouteLabel(t *testing.T) {
	srv, _, _ := newTestServer(t)
	for _, path := range []string{"/no/such/path", "/another-missing-page"} {
		resp, err := http.Get(srv.URL + path)
		require.NoError(t, err)
		resp.Body.Close()
		assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	}

	resp, err := http.Get(srv.URL + "/metrics")
	require.NoError(t, err)
	defer resp.Body.Close()
	var b strings.Builder
	_, err = io.Copy(&b, resp.Body)
	require.NoError(t, err)

	body := b.String()
	assert.Contains(t, body, `picktrack_http_requests_total{route="unmatched",status="404"}`)
	assert.NotContains(t, body, "/no/such/path")
	assert.NotContains(t, body, "/another-missing-page")
}
