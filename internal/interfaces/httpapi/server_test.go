package httpapi

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"arbsig/internal/application/event"
	"arbsig/internal/application/port"
	"arbsig/internal/application/service"
	"arbsig/internal/domain/model"
	domainservice "arbsig/internal/domain/service"
)

type stubHub struct{}

func (stubHub) Subscribe(model.StreamKey, port.UpdateHandler) (port.Unsubscribe, error) {
	return func() {}, nil
}
func (stubHub) IsConnected(model.StreamKey) bool     { return true }
func (stubHub) LastUpdate(model.StreamKey) time.Time { return time.Time{} }
func (stubHub) Stats() []port.StreamStats {
	return []port.StreamStats{{Key: model.NewStreamKey("BINANCE", "BTCUSDT"), Subscribers: 1, Connected: true}}
}

type stubRepo struct{}

func (stubRepo) Create(context.Context, *model.Signal) error { return nil }
func (stubRepo) UpdateStatus(context.Context, string, model.SignalStatus, int64) error {
	return nil
}
func (stubRepo) ListByStatus(context.Context, model.SignalStatus) ([]*model.Signal, error) {
	return nil, nil
}
func (stubRepo) AppendEvent(context.Context, string, model.EventType, string) error { return nil }
func (stubRepo) Close() error                                                       { return nil }

func newTestServer() (*Server, *event.Bus) {
	bus := event.NewBus(0)
	engine := service.NewEngine(stubRepo{}, stubHub{}, domainservice.NewQuoteCache(), bus, nil)
	return NewServer(engine, stubHub{}, bus, ":0"), bus
}

func doJSON(t *testing.T, srv *Server, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	var req *http.Request
	if body != "" {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	} else {
		req = httptest.NewRequest(method, path, nil)
	}
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)
	return rec
}

const validBody = `{
	"user_id": "u1",
	"instrument": "BTCUSDT",
	"primary_venue": "BINANCE",
	"hedge_venue": "BYBIT",
	"strategy": "price_only",
	"min_price_spread_percent": 0.5,
	"primary_side": "long",
	"hedge_side": "short"
}`

func TestCreateSignal(t *testing.T) {
	srv, _ := newTestServer()

	rec := doJSON(t, srv, http.MethodPost, "/api/signals", validBody)
	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", rec.Code, rec.Body.String())
	}

	var sig model.Signal
	if err := json.Unmarshal(rec.Body.Bytes(), &sig); err != nil {
		t.Fatalf("bad response body: %v", err)
	}
	if sig.ID == "" || sig.Status != model.StatusActive {
		t.Errorf("created signal: %+v", sig)
	}
}

func TestCreateSignalValidationError(t *testing.T) {
	srv, _ := newTestServer()

	// combined 策略缺资金费阈值
	body := strings.Replace(validBody, `"price_only"`, `"combined"`, 1)
	rec := doJSON(t, srv, http.MethodPost, "/api/signals", body)
	if rec.Code != http.StatusBadRequest {
		t.Errorf("expected 400, got %d: %s", rec.Code, rec.Body.String())
	}
}

func TestGetSignal(t *testing.T) {
	srv, _ := newTestServer()

	rec := doJSON(t, srv, http.MethodPost, "/api/signals", validBody)
	var sig model.Signal
	_ = json.Unmarshal(rec.Body.Bytes(), &sig)

	rec = doJSON(t, srv, http.MethodGet, "/api/signals/"+sig.ID, "")
	if rec.Code != http.StatusOK {
		t.Errorf("expected 200, got %d", rec.Code)
	}

	rec = doJSON(t, srv, http.MethodGet, "/api/signals/nonexistent", "")
	if rec.Code != http.StatusNotFound {
		t.Errorf("expected 404, got %d", rec.Code)
	}
}

func TestListSignalsWithUserFilter(t *testing.T) {
	srv, _ := newTestServer()

	_ = doJSON(t, srv, http.MethodPost, "/api/signals", validBody)
	other := strings.Replace(validBody, `"u1"`, `"u2"`, 1)
	_ = doJSON(t, srv, http.MethodPost, "/api/signals", other)

	rec := doJSON(t, srv, http.MethodGet, "/api/signals", "")
	var all []model.Signal
	_ = json.Unmarshal(rec.Body.Bytes(), &all)
	if len(all) != 2 {
		t.Errorf("expected 2 signals, got %d", len(all))
	}

	rec = doJSON(t, srv, http.MethodGet, "/api/signals?user_id=u2", "")
	var filtered []model.Signal
	_ = json.Unmarshal(rec.Body.Bytes(), &filtered)
	if len(filtered) != 1 || filtered[0].UserID != "u2" {
		t.Errorf("user filter wrong: %+v", filtered)
	}
}

func TestStopSignal(t *testing.T) {
	srv, _ := newTestServer()

	rec := doJSON(t, srv, http.MethodPost, "/api/signals", validBody)
	var sig model.Signal
	_ = json.Unmarshal(rec.Body.Bytes(), &sig)

	rec = doJSON(t, srv, http.MethodPost, "/api/signals/"+sig.ID+"/stop", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}

	// 已停止的信号再停要 404
	rec = doJSON(t, srv, http.MethodPost, "/api/signals/"+sig.ID+"/stop", "")
	if rec.Code != http.StatusNotFound {
		t.Errorf("expected 404, got %d", rec.Code)
	}
}

func TestStreamsEndpoint(t *testing.T) {
	srv, _ := newTestServer()

	rec := doJSON(t, srv, http.MethodGet, "/api/streams", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	var stats []port.StreamStats
	if err := json.Unmarshal(rec.Body.Bytes(), &stats); err != nil {
		t.Fatalf("bad body: %v", err)
	}
	if len(stats) != 1 || stats[0].Key.Venue != "BINANCE" {
		t.Errorf("stats: %+v", stats)
	}
}

func TestHealthz(t *testing.T) {
	srv, _ := newTestServer()

	rec := doJSON(t, srv, http.MethodGet, "/healthz", "")
	if rec.Code != http.StatusOK {
		t.Errorf("expected 200, got %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), `"status":"ok"`) {
		t.Errorf("body: %s", rec.Body.String())
	}
}
