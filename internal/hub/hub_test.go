package hub

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"mempool-sentinel/internal/domain"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

// hubServer runs a hub and exposes it on a test WebSocket endpoint that
// replays the given backlog to each new subscriber.
func hubServer(t *testing.T, backlog []*domain.Alert) (*Hub, *httptest.Server, context.CancelFunc) {
	t.Helper()

	h := New(nil)
	ctx, cancel := context.WithCancel(context.Background())
	go h.Run(ctx)

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			t.Errorf("upgrade: %v", err)
			return
		}
		h.ServeConn(conn, backlog)
	}))

	return h, server, cancel
}

func dial(t *testing.T, server *httptest.Server) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(server.URL, "http")
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	return conn
}

func readAlert(t *testing.T, conn *websocket.Conn) *domain.Alert {
	t.Helper()
	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, msg, err := conn.ReadMessage()
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	var a domain.Alert
	if err := json.Unmarshal(msg, &a); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	return &a
}

func TestHub_BroadcastReachesSubscribers(t *testing.T) {
	h, server, cancel := hubServer(t, nil)
	defer cancel()
	defer server.Close()

	conn1 := dial(t, server)
	defer conn1.Close()
	conn2 := dial(t, server)
	defer conn2.Close()

	waitForCount(t, h, 2)

	h.Broadcast(&domain.Alert{ID: 42, Chain: "ethereum", Severity: 99, TxHash: "0xabc"})

	for _, conn := range []*websocket.Conn{conn1, conn2} {
		a := readAlert(t, conn)
		if a.ID != 42 || a.Severity != 99 {
			t.Errorf("unexpected alert: %+v", a)
		}
	}
}

func TestHub_BacklogReplayedOldestFirst(t *testing.T) {
	// Stored newest-first, as AlertStore.ListRecent returns them.
	backlog := []*domain.Alert{
		{ID: 3, TxHash: "0x3"},
		{ID: 2, TxHash: "0x2"},
		{ID: 1, TxHash: "0x1"},
	}

	_, server, cancel := hubServer(t, backlog)
	defer cancel()
	defer server.Close()

	conn := dial(t, server)
	defer conn.Close()

	for _, wantID := range []int64{1, 2, 3} {
		a := readAlert(t, conn)
		if a.ID != wantID {
			t.Fatalf("expected backlog alert %d, got %d", wantID, a.ID)
		}
	}
}

func TestHub_UnregisterOnClose(t *testing.T) {
	h, server, cancel := hubServer(t, nil)
	defer cancel()
	defer server.Close()

	conn := dial(t, server)
	waitForCount(t, h, 1)

	conn.Close()
	waitForCount(t, h, 0)
}

func waitForCount(t *testing.T, h *Hub, want int) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if h.Count() == want {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatalf("subscriber count never reached %d (now %d)", want, h.Count())
}
