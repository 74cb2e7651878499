package server

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"

	"github.com/onnwee/twixelwall/config"
	"github.com/onnwee/twixelwall/wall"
)

func newTestMux(t *testing.T) (http.Handler, *config.Config) {
	t.Helper()
	cfg := &config.Config{
		TwitchChannel:    "testchannel",
		TwitchOAuthToken: "oauth:testtoken",
		CanvasPath:       filepath.Join(t.TempDir(), "canvas.png"),
		CanvasWidth:      10,
		CanvasHeight:     10,
		AllowAlpha:       true,
		QueueSize:        16,
	}
	bot := wall.New(cfg, nil)
	if err := bot.Bootstrap(); err != nil {
		t.Fatalf("Bootstrap() error: %v", err)
	}
	return NewMux(nil, cfg, bot), cfg
}

func doRequest(t *testing.T, h http.Handler, method, path string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, nil)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestHealthz(t *testing.T) {
	mux, _ := newTestMux(t)
	rec := doRequest(t, mux, http.MethodGet, "/healthz")
	if rec.Code != http.StatusOK {
		t.Errorf("GET /healthz = %d, want 200", rec.Code)
	}
	if got := rec.Body.String(); got != "ok" {
		t.Errorf("body = %q, want ok", got)
	}
}

func TestHealthzMissingCanvas(t *testing.T) {
	cfg := &config.Config{
		CanvasPath:   filepath.Join(t.TempDir(), "never-created.png"),
		CanvasWidth:  10,
		CanvasHeight: 10,
		QueueSize:    16,
	}
	mux := NewMux(nil, cfg, nil)
	rec := doRequest(t, mux, http.MethodGet, "/healthz")
	if rec.Code != http.StatusServiceUnavailable {
		t.Errorf("GET /healthz without canvas = %d, want 503", rec.Code)
	}
}

func TestReadyz(t *testing.T) {
	mux, _ := newTestMux(t)
	rec := doRequest(t, mux, http.MethodGet, "/readyz")
	if rec.Code != http.StatusOK {
		t.Fatalf("GET /readyz = %d, want 200; body=%s", rec.Code, rec.Body.String())
	}
	var body map[string]string
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode readyz body: %v", err)
	}
	if body["status"] != "ready" {
		t.Errorf("status = %q, want ready", body["status"])
	}
}

func TestReadyzMissingCredentials(t *testing.T) {
	cfg := &config.Config{
		CanvasPath:   filepath.Join(t.TempDir(), "canvas.png"),
		CanvasWidth:  10,
		CanvasHeight: 10,
		QueueSize:    16,
	}
	bot := wall.New(cfg, nil)
	if err := bot.Bootstrap(); err != nil {
		t.Fatal(err)
	}
	mux := NewMux(nil, cfg, bot)
	rec := doRequest(t, mux, http.MethodGet, "/readyz")
	if rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("GET /readyz = %d, want 503", rec.Code)
	}
	var body map[string]string
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode readyz body: %v", err)
	}
	if body["failed_check"] != "credentials" {
		t.Errorf("failed_check = %q, want credentials", body["failed_check"])
	}
}

func TestStatus(t *testing.T) {
	mux, cfg := newTestMux(t)
	rec := doRequest(t, mux, http.MethodGet, "/status")
	if rec.Code != http.StatusOK {
		t.Fatalf("GET /status = %d, want 200", rec.Code)
	}
	var body map[string]any
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode status body: %v", err)
	}
	if body["channel"] != "testchannel" {
		t.Errorf("channel = %v, want testchannel", body["channel"])
	}
	if body["alpha_enabled"] != true {
		t.Errorf("alpha_enabled = %v, want true", body["alpha_enabled"])
	}
	if body["journal"] != false {
		t.Errorf("journal = %v, want false without a database", body["journal"])
	}
	canvasInfo, ok := body["canvas"].(map[string]any)
	if !ok {
		t.Fatalf("canvas field = %T, want object", body["canvas"])
	}
	if canvasInfo["path"] != cfg.CanvasPath {
		t.Errorf("canvas.path = %v, want %v", canvasInfo["path"], cfg.CanvasPath)
	}
	if canvasInfo["width"] != float64(10) || canvasInfo["height"] != float64(10) {
		t.Errorf("canvas size = %vx%v, want 10x10", canvasInfo["width"], canvasInfo["height"])
	}
	if _, ok := canvasInfo["size_bytes"]; !ok {
		t.Error("canvas.size_bytes missing for an existing canvas")
	}
	if body["queue_depth"] != float64(0) {
		t.Errorf("queue_depth = %v, want 0", body["queue_depth"])
	}
	if body["queue_capacity"] != float64(16) {
		t.Errorf("queue_capacity = %v, want 16", body["queue_capacity"])
	}
}

func TestStatusMethodNotAllowed(t *testing.T) {
	mux, _ := newTestMux(t)
	rec := doRequest(t, mux, http.MethodPost, "/status")
	if rec.Code != http.StatusMethodNotAllowed {
		t.Errorf("POST /status = %d, want 405", rec.Code)
	}
}

func TestCanvasServesPNG(t *testing.T) {
	mux, _ := newTestMux(t)
	rec := doRequest(t, mux, http.MethodGet, "/canvas")
	if rec.Code != http.StatusOK {
		t.Fatalf("GET /canvas = %d, want 200", rec.Code)
	}
	if ct := rec.Header().Get("Content-Type"); !strings.Contains(ct, "image/png") {
		t.Errorf("Content-Type = %q, want image/png", ct)
	}
	if cc := rec.Header().Get("Cache-Control"); cc != "no-store" {
		t.Errorf("Cache-Control = %q, want no-store", cc)
	}
	// PNG signature
	if b := rec.Body.Bytes(); len(b) < 8 || b[0] != 0x89 || string(b[1:4]) != "PNG" {
		t.Error("body is not a PNG")
	}
}

func TestCanvasMissing(t *testing.T) {
	cfg := &config.Config{
		CanvasPath:   filepath.Join(t.TempDir(), "never-created.png"),
		CanvasWidth:  10,
		CanvasHeight: 10,
		QueueSize:    16,
	}
	mux := NewMux(nil, cfg, nil)
	rec := doRequest(t, mux, http.MethodGet, "/canvas")
	if rec.Code != http.StatusNotFound {
		t.Errorf("GET /canvas without file = %d, want 404", rec.Code)
	}
	rec = doRequest(t, mux, http.MethodPost, "/canvas")
	if rec.Code != http.StatusMethodNotAllowed {
		t.Errorf("POST /canvas = %d, want 405", rec.Code)
	}
}

func TestMetricsEndpoint(t *testing.T) {
	mux, _ := newTestMux(t)
	rec := doRequest(t, mux, http.MethodGet, "/metrics")
	if rec.Code != http.StatusOK {
		t.Errorf("GET /metrics = %d, want 200", rec.Code)
	}
}

func TestCorrelationIDEcho(t *testing.T) {
	mux, _ := newTestMux(t)
	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	req.Header.Set("X-Correlation-ID", "fixed-corr-id")
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)
	if got := rec.Header().Get("X-Correlation-ID"); got != "fixed-corr-id" {
		t.Errorf("X-Correlation-ID = %q, want fixed-corr-id", got)
	}

	req = httptest.NewRequest(http.MethodGet, "/healthz", nil)
	rec = httptest.NewRecorder()
	mux.ServeHTTP(rec, req)
	if rec.Header().Get("X-Correlation-ID") == "" {
		t.Error("missing generated X-Correlation-ID")
	}
}

func TestOAuthStartRequiresConfig(t *testing.T) {
	mux, _ := newTestMux(t) // no client ID, no database
	rec := doRequest(t, mux, http.MethodGet, "/auth/twitch/start")
	if rec.Code == http.StatusOK || rec.Code == http.StatusFound {
		t.Errorf("GET /auth/twitch/start without OAuth config = %d, want an error status", rec.Code)
	}
}
