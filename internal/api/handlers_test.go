// Callejero - Holy Week Events and Pedestrian Navigation
// Copyright 2026 Callejero Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/callejero-app/callejero

package api

import (
	"bytes"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/goccy/go-json"

	"github.com/callejero-app/callejero/internal/cache"
	"github.com/callejero-app/callejero/internal/config"
	"github.com/callejero-app/callejero/internal/crowd"
	"github.com/callejero-app/callejero/internal/graph"
	"github.com/callejero-app/callejero/internal/models"
	"github.com/callejero-app/callejero/internal/routing"
	"github.com/callejero-app/callejero/internal/session"
)

// apiResponse mirrors the envelope for test decoding.
type apiResponse struct {
	Status   string          `json:"status"`
	Data     json.RawMessage `json:"data"`
	Metadata struct {
		Cached bool `json:"cached"`
	} `json:"metadata"`
	Error *models.APIError `json:"error"`
}

func newTestHandler(t *testing.T) (*Handler, http.Handler) {
	t.Helper()

	src := &routing.StaticSources{}
	engine, err := routing.NewEngine(graph.NewStore(nil), routing.Dependencies{
		Restrictions: src,
		Occupations:  src,
		CrowdSignals: src,
		Targets:      routing.NewLandmarkResolver(),
		Results:      cache.NewResultCache(time.Minute),
	}, routing.DefaultConfig())
	if err != nil {
		t.Fatalf("NewEngine() error = %v", err)
	}

	h := NewHandler(engine, session.NewRegistry(time.Hour), crowd.NewStore(), defaultTestConfig())
	return h, NewRouter(h)
}

func defaultTestConfig() *config.Config {
	return &config.Config{
		Server: config.ServerConfig{
			Host:            "127.0.0.1",
			Port:            8437,
			Timeout:         30 * time.Second,
			CORSOrigins:     []string{"*"},
			RateLimitReqs:   10000,
			RateLimitWindow: time.Minute,
		},
		Session: config.SessionConfig{
			UpdatesPerSecond:        1000,
			UpdateBurst:             1000,
			MovementThresholdMeters: 80,
			RouteRetention:          30 * time.Minute,
		},
		Crowd: config.CrowdConfig{
			PruneInterval:   time.Minute,
			ReportLimitReqs: 10000,
			ReportLimitWin:  time.Minute,
		},
	}
}

func doJSON(t *testing.T, router http.Handler, method, path string, body interface{}) (*httptest.ResponseRecorder, apiResponse) {
	t.Helper()

	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("encoding request: %v", err)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	var resp apiResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decoding response %q: %v", rec.Body.String(), err)
	}
	return rec, resp
}

func TestHealthLive(t *testing.T) {
	_, router := newTestHandler(t)

	rec, resp := doJSON(t, router, http.MethodGet, "/api/v1/health/live", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	if resp.Status != "success" {
		t.Errorf("envelope status = %q, want success", resp.Status)
	}
}

func TestHealthReady(t *testing.T) {
	_, router := newTestHandler(t)

	rec, resp := doJSON(t, router, http.MethodGet, "/api/v1/health/ready", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}

	var data struct {
		Status        string `json:"status"`
		FallbackGraph bool   `json:"fallback_graph"`
		GraphNodes    int    `json:"graph_nodes"`
	}
	if err := json.Unmarshal(resp.Data, &data); err != nil {
		t.Fatalf("decoding data: %v", err)
	}
	if data.Status != "ready" {
		t.Errorf("health status = %q, want ready", data.Status)
	}
	if !data.FallbackGraph {
		t.Error("empty-snapshot server should report the fallback graph")
	}
	if data.GraphNodes == 0 {
		t.Error("fallback graph reports zero nodes")
	}
}

func TestOptimalRouteWithDestination(t *testing.T) {
	_, router := newTestHandler(t)

	body := RouteRequest{
		Origin:      Point{Lat: 37.3862, Lng: -5.9926},
		Destination: &Point{Lat: 37.4008, Lng: -5.9900},
	}
	rec, resp := doJSON(t, router, http.MethodPost, "/api/v1/routing/optimal", body)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200; body %s", rec.Code, rec.Body.String())
	}

	var route models.RouteResult
	if err := json.Unmarshal(resp.Data, &route); err != nil {
		t.Fatalf("decoding route: %v", err)
	}
	if route.ETASeconds <= 0 {
		t.Errorf("ETASeconds = %d, want positive", route.ETASeconds)
	}
	if len(route.Polyline) < 2 {
		t.Errorf("polyline has %d points, want at least 2", len(route.Polyline))
	}
	if !route.HasWarning(models.WarnFallbackGraph) {
		t.Error("fallback-graph route missing its warning")
	}
}

func TestOptimalRouteCachedOnRepeat(t *testing.T) {
	_, router := newTestHandler(t)

	body := RouteRequest{
		Origin:      Point{Lat: 37.3862, Lng: -5.9926},
		Destination: &Point{Lat: 37.4008, Lng: -5.9900},
		When:        time.Now().Format(time.RFC3339),
	}
	_, first := doJSON(t, router, http.MethodPost, "/api/v1/routing/optimal", body)
	if first.Metadata.Cached {
		t.Error("first computation reported cached")
	}
	_, second := doJSON(t, router, http.MethodPost, "/api/v1/routing/optimal", body)
	if !second.Metadata.Cached {
		t.Error("identical repeat not served from cache")
	}
}

func TestOptimalRouteWithTarget(t *testing.T) {
	_, router := newTestHandler(t)

	body := RouteRequest{
		Origin: Point{Lat: 37.3862, Lng: -5.9926},
		Target: &models.Target{Type: "landmark", ID: "macarena"},
	}
	rec, _ := doJSON(t, router, http.MethodPost, "/api/v1/routing/optimal", body)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200; body %s", rec.Code, rec.Body.String())
	}
}

func TestOptimalRouteUnknownTarget(t *testing.T) {
	_, router := newTestHandler(t)

	body := RouteRequest{
		Origin: Point{Lat: 37.3862, Lng: -5.9926},
		Target: &models.Target{Type: "event", ID: "no-such"},
	}
	rec, resp := doJSON(t, router, http.MethodPost, "/api/v1/routing/optimal", body)
	if rec.Code != http.StatusNotFound {
		t.Fatalf("status = %d, want 404", rec.Code)
	}
	if resp.Error == nil || resp.Error.Code != "TARGET_UNRESOLVED" {
		t.Errorf("error = %+v, want TARGET_UNRESOLVED", resp.Error)
	}
}

func TestOptimalRouteDestinationTargetExclusivity(t *testing.T) {
	_, router := newTestHandler(t)

	// Neither.
	rec, resp := doJSON(t, router, http.MethodPost, "/api/v1/routing/optimal", RouteRequest{
		Origin: Point{Lat: 37.3862, Lng: -5.9926},
	})
	if rec.Code != http.StatusBadRequest || resp.Error == nil || resp.Error.Code != "INVALID_QUERY" {
		t.Errorf("neither: status %d error %+v, want 400 INVALID_QUERY", rec.Code, resp.Error)
	}

	// Both.
	rec, resp = doJSON(t, router, http.MethodPost, "/api/v1/routing/optimal", RouteRequest{
		Origin:      Point{Lat: 37.3862, Lng: -5.9926},
		Destination: &Point{Lat: 37.4008, Lng: -5.9900},
		Target:      &models.Target{Type: "landmark", ID: "giralda"},
	})
	if rec.Code != http.StatusBadRequest || resp.Error == nil || resp.Error.Code != "INVALID_QUERY" {
		t.Errorf("both: status %d error %+v, want 400 INVALID_QUERY", rec.Code, resp.Error)
	}
}

func TestOptimalRouteValidation(t *testing.T) {
	_, router := newTestHandler(t)

	rec, resp := doJSON(t, router, http.MethodPost, "/api/v1/routing/optimal", RouteRequest{
		Origin:      Point{Lat: 95, Lng: -5.9926},
		Destination: &Point{Lat: 37.4008, Lng: -5.9900},
	})
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rec.Code)
	}
	if resp.Error == nil || resp.Error.Code != "VALIDATION_ERROR" {
		t.Errorf("error = %+v, want VALIDATION_ERROR", resp.Error)
	}
}

func TestOptimalRouteBadWhen(t *testing.T) {
	_, router := newTestHandler(t)

	rec, resp := doJSON(t, router, http.MethodPost, "/api/v1/routing/optimal", RouteRequest{
		Origin:      Point{Lat: 37.3862, Lng: -5.9926},
		Destination: &Point{Lat: 37.4008, Lng: -5.9900},
		When:        "yesterday evening",
	})
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rec.Code)
	}
	if resp.Error == nil || resp.Error.Code != "VALIDATION_ERROR" {
		t.Errorf("error = %+v, want VALIDATION_ERROR", resp.Error)
	}
}

func TestOptimalRouteMalformedBody(t *testing.T) {
	_, router := newTestHandler(t)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/routing/optimal", bytes.NewBufferString("{{{"))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	if rec.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", rec.Code)
	}
}

func TestLastRouteLifecycle(t *testing.T) {
	h, router := newTestHandler(t)

	rec, resp := doJSON(t, router, http.MethodGet, "/api/v1/routing/last/plan-9", nil)
	if rec.Code != http.StatusNotFound || resp.Error == nil || resp.Error.Code != "NOT_FOUND" {
		t.Fatalf("unknown plan: status %d error %+v, want 404 NOT_FOUND", rec.Code, resp.Error)
	}

	h.registry.RememberRoute("plan-9", &models.RouteResult{
		Profile:    models.RouteProfilePrimary,
		Polyline:   [][]float64{{37.39, -5.99}, {37.40, -5.99}},
		ETASeconds: 480,
	}, time.Now())

	rec, resp = doJSON(t, router, http.MethodGet, "/api/v1/routing/last/plan-9", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	var data struct {
		PlanID string              `json:"plan_id"`
		Route  *models.RouteResult `json:"route"`
	}
	if err := json.Unmarshal(resp.Data, &data); err != nil {
		t.Fatalf("decoding data: %v", err)
	}
	if data.PlanID != "plan-9" || data.Route == nil || data.Route.ETASeconds != 480 {
		t.Errorf("data = %+v, want the remembered route", data)
	}
}

func TestCrowdReportAndSignals(t *testing.T) {
	_, router := newTestHandler(t)

	rec, _ := doJSON(t, router, http.MethodPost, "/api/v1/crowd/reports", crowd.Report{
		ReporterID: "walker-1",
		Lat:        37.3921,
		Lng:        -5.9968,
		Severity:   4,
	})
	if rec.Code != http.StatusAccepted {
		t.Fatalf("status = %d, want 202; body %s", rec.Code, rec.Body.String())
	}

	rec, resp := doJSON(t, router, http.MethodGet, "/api/v1/crowd/signals", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("signals status = %d, want 200", rec.Code)
	}
	var data struct {
		Count int `json:"count"`
	}
	if err := json.Unmarshal(resp.Data, &data); err != nil {
		t.Fatalf("decoding data: %v", err)
	}
	if data.Count != 1 {
		t.Errorf("signal count = %d, want 1", data.Count)
	}

	rec, resp = doJSON(t, router, http.MethodGet, "/api/v1/crowd/signals?geohash=37.392:-5.997", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("filtered signals status = %d, want 200", rec.Code)
	}
	if err := json.Unmarshal(resp.Data, &data); err != nil {
		t.Fatalf("decoding filtered data: %v", err)
	}
	if data.Count != 1 {
		t.Errorf("filtered signal count = %d, want 1", data.Count)
	}

	rec, resp = doJSON(t, router, http.MethodGet, "/api/v1/crowd/signals?geohash=0.000:0.000", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("empty-filter signals status = %d, want 200", rec.Code)
	}
	if err := json.Unmarshal(resp.Data, &data); err != nil {
		t.Fatalf("decoding empty-filter data: %v", err)
	}
	if data.Count != 0 {
		t.Errorf("empty-filter signal count = %d, want 0", data.Count)
	}
}

func TestCrowdReportInvalidSeverity(t *testing.T) {
	_, router := newTestHandler(t)

	rec, resp := doJSON(t, router, http.MethodPost, "/api/v1/crowd/reports", crowd.Report{
		ReporterID: "walker-1",
		Lat:        37.3921,
		Lng:        -5.9968,
		Severity:   9,
	})
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rec.Code)
	}
	if resp.Error == nil || resp.Error.Code != "VALIDATION_ERROR" {
		t.Errorf("error = %+v, want VALIDATION_ERROR", resp.Error)
	}
}

func TestMetricsEndpointExposed(t *testing.T) {
	_, router := newTestHandler(t)

	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Errorf("status = %d, want 200", rec.Code)
	}
}
