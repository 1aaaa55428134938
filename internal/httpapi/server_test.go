package httpapi

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"mempool-sentinel/internal/domain"
	"mempool-sentinel/internal/hub"
	"mempool-sentinel/internal/sink"
	"mempool-sentinel/internal/storage/memory"
)

type testServer struct {
	*httptest.Server
	alerts     *memory.AlertStore
	watchlists *memory.WatchlistStore
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()

	alerts := memory.NewAlertStore()
	watchlists := memory.NewWatchlistStore()

	api := NewServer(Options{
		AlertStore:     alerts,
		WatchlistStore: watchlists,
		Sink:           sink.New(sink.Options{AlertStore: alerts}),
		FeedState:      func() string { return "connected" },
	})

	ts := httptest.NewServer(api.Handler())
	t.Cleanup(ts.Close)
	return &testServer{Server: ts, alerts: alerts, watchlists: watchlists}
}

func (ts *testServer) seedAlerts(t *testing.T, count int) {
	t.Helper()
	for i := 1; i <= count; i++ {
		err := ts.alerts.Insert(context.Background(), &domain.Alert{
			Chain:     "ethereum",
			EventType: domain.EventPendingLargeSwap,
			Severity:  70,
			USDValue:  float64(i * 1000),
			TxHash:    fmt.Sprintf("0x%02x", i),
			CreatedAt: time.Now().UTC(),
		})
		if err != nil {
			t.Fatalf("seed alert %d: %v", i, err)
		}
	}
}

func getJSON(t *testing.T, url string, out any) int {
	t.Helper()
	resp, err := http.Get(url)
	if err != nil {
		t.Fatalf("GET %s: %v", url, err)
	}
	defer resp.Body.Close()
	if out != nil && resp.StatusCode < 300 {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			t.Fatalf("decode %s: %v", url, err)
		}
	}
	return resp.StatusCode
}

func postJSON(t *testing.T, url string, body any, out any) int {
	t.Helper()
	raw, err := json.Marshal(body)
	if err != nil {
		t.Fatalf("marshal body: %v", err)
	}
	resp, err := http.Post(url, "application/json", bytes.NewReader(raw))
	if err != nil {
		t.Fatalf("POST %s: %v", url, err)
	}
	defer resp.Body.Close()
	if out != nil && resp.StatusCode < 300 {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			t.Fatalf("decode %s: %v", url, err)
		}
	}
	return resp.StatusCode
}

func TestHealthAndStatus(t *testing.T) {
	ts := newTestServer(t)

	resp, err := http.Get(ts.URL + "/health")
	if err != nil || resp.StatusCode != http.StatusOK {
		t.Fatalf("health: %v (status %d)", err, resp.StatusCode)
	}
	resp.Body.Close()

	var status StatusResponse
	if code := getJSON(t, ts.URL+"/status", &status); code != http.StatusOK {
		t.Fatalf("status code %d", code)
	}
	if status.Status != "running" || status.FeedState != "connected" {
		t.Errorf("unexpected status: %+v", status)
	}
}

func TestAlertsListAndLimit(t *testing.T) {
	ts := newTestServer(t)
	ts.seedAlerts(t, 5)

	var alerts []*domain.Alert
	if code := getJSON(t, ts.URL+"/api/alerts", &alerts); code != http.StatusOK {
		t.Fatalf("list code %d", code)
	}
	if len(alerts) != 5 {
		t.Fatalf("expected 5 alerts, got %d", len(alerts))
	}
	// Newest first.
	if alerts[0].USDValue != 5000 {
		t.Errorf("expected newest first, got %v", alerts[0].USDValue)
	}

	alerts = nil
	if code := getJSON(t, ts.URL+"/api/alerts?limit=2", &alerts); code != http.StatusOK {
		t.Fatalf("limited list code %d", code)
	}
	if len(alerts) != 2 {
		t.Errorf("expected 2 alerts, got %d", len(alerts))
	}

	if code := getJSON(t, ts.URL+"/api/alerts?limit=nope", nil); code != http.StatusBadRequest {
		t.Errorf("bad limit: expected 400, got %d", code)
	}
}

func TestWatchlistsCreateAndConflict(t *testing.T) {
	ts := newTestServer(t)

	body := map[string]any{
		"name":      "whales",
		"addresses": []string{"0xAAAA"},
		"tokens":    []string{"0xdac17f958d2ee523a2206206994597c13d831ec7"},
	}

	var created domain.Watchlist
	if code := postJSON(t, ts.URL+"/api/watchlists", body, &created); code != http.StatusCreated {
		t.Fatalf("create code %d", code)
	}
	if created.Name != "whales" {
		t.Errorf("unexpected created watchlist: %+v", created)
	}

	if code := postJSON(t, ts.URL+"/api/watchlists", body, nil); code != http.StatusConflict {
		t.Errorf("duplicate name: expected 409, got %d", code)
	}

	if code := postJSON(t, ts.URL+"/api/watchlists", map[string]any{"addresses": []string{"0x1"}}, nil); code != http.StatusBadRequest {
		t.Errorf("missing name: expected 400, got %d", code)
	}

	var lists []*domain.Watchlist
	if code := getJSON(t, ts.URL+"/api/watchlists", &lists); code != http.StatusOK {
		t.Fatalf("list code %d", code)
	}
	if len(lists) != 1 {
		t.Errorf("expected 1 watchlist, got %d", len(lists))
	}
}

func TestTestAlertGoesThroughSink(t *testing.T) {
	ts := newTestServer(t)

	var alert domain.Alert
	if code := postJSON(t, ts.URL+"/api/alerts/test", map[string]any{"usd_value": 99000.0}, &alert); code != http.StatusCreated {
		t.Fatalf("test alert code %d", code)
	}
	if alert.ID == 0 || alert.USDValue != 99000 {
		t.Errorf("test alert not persisted: %+v", alert)
	}

	n, err := ts.alerts.Count(context.Background())
	if err != nil || n != 1 {
		t.Errorf("expected 1 stored alert, got %d (err %v)", n, err)
	}
}

func TestMetricsExposed(t *testing.T) {
	ts := newTestServer(t)
	resp, err := http.Get(ts.URL + "/metrics")
	if err != nil {
		t.Fatalf("metrics: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("metrics code %d", resp.StatusCode)
	}
}

func TestWSSubscriberReceivesInjectedAlert(t *testing.T) {
	alerts := memory.NewAlertStore()
	liveHub := hub.New(nil)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go liveHub.Run(ctx)

	api := NewServer(Options{
		AlertStore:     alerts,
		WatchlistStore: memory.NewWatchlistStore(),
		Hub:            liveHub,
		Sink:           sink.New(sink.Options{AlertStore: alerts, Hub: liveHub}),
	})
	ts := httptest.NewServer(api.Handler())
	defer ts.Close()

	wsURL := "ws" + strings.TrimPrefix(ts.URL, "http") + "/ws"
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	if err != nil {
		t.Fatalf("dial ws: %v", err)
	}
	defer conn.Close()

	// Give the hub loop time to register the subscriber before broadcasting.
	deadline := time.Now().Add(2 * time.Second)
	for liveHub.Count() == 0 {
		if time.Now().After(deadline) {
			t.Fatal("subscriber never registered")
		}
		time.Sleep(5 * time.Millisecond)
	}

	if code := postJSON(t, ts.URL+"/api/alerts/test", map[string]any{"usd_value": 70000.0}, nil); code != http.StatusCreated {
		t.Fatalf("test alert code %d", code)
	}

	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	var got domain.Alert
	if err := conn.ReadJSON(&got); err != nil {
		t.Fatalf("read broadcast: %v", err)
	}
	if got.ID == 0 || got.USDValue != 70000 {
		t.Errorf("unexpected broadcast alert: %+v", got)
	}
}

func TestWSUnavailableWithoutHub(t *testing.T) {
	ts := newTestServer(t)

	url := "ws" + strings.TrimPrefix(ts.URL, "http") + "/ws"
	_, resp, err := websocket.DefaultDialer.Dial(url, nil)
	if err == nil {
		t.Fatal("expected dial failure without a hub")
	}
	if resp == nil || resp.StatusCode != http.StatusServiceUnavailable {
		t.Errorf("expected 503, got %+v", resp)
	}
}
