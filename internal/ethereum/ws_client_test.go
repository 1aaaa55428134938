package ethereum

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

// fakeNode upgrades one connection, confirms the first eth_subscribe with
// subID, then streams the given hashes as eth_subscription notifications.
func fakeNode(t *testing.T, subID string, hashes []string, closeAfter bool) *httptest.Server {
	t.Helper()

	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			t.Errorf("upgrade: %v", err)
			return
		}
		defer conn.Close()

		_, msg, err := conn.ReadMessage()
		if err != nil {
			return
		}

		var req wsRequest
		if err := json.Unmarshal(msg, &req); err != nil {
			t.Errorf("unmarshal request: %v", err)
			return
		}
		if req.Method != "eth_subscribe" {
			t.Errorf("expected eth_subscribe, got %s", req.Method)
		}

		if err := conn.WriteJSON(wsSubscribeResponse{
			JSONRPC: "2.0",
			ID:      req.ID,
			Result:  subID,
		}); err != nil {
			return
		}

		for _, h := range hashes {
			notif := wsNotification{
				JSONRPC: "2.0",
				Method:  "eth_subscription",
				Params: &wsNotificationParams{
					Subscription: subID,
					Result:       h,
				},
			}
			if err := conn.WriteJSON(notif); err != nil {
				return
			}
		}

		if closeAfter {
			return
		}

		// Keep the connection open until the client goes away.
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}))
}

func wsURL(server *httptest.Server) string {
	return "ws" + strings.TrimPrefix(server.URL, "http")
}

func TestWSClient_SubscribePendingTransactions(t *testing.T) {
	want := []string{"0xaaa", "0xbbb", "0xccc"}
	server := fakeNode(t, "0xsub1", want, false)
	defer server.Close()

	client, err := DialWS(context.Background(), wsURL(server), nil)
	if err != nil {
		t.Fatalf("DialWS: %v", err)
	}
	defer client.Close()

	ch, err := client.SubscribePendingTransactions(context.Background())
	if err != nil {
		t.Fatalf("SubscribePendingTransactions: %v", err)
	}

	for i, w := range want {
		select {
		case got := <-ch:
			if got != w {
				t.Errorf("hash %d: got %s, want %s", i, got, w)
			}
		case <-time.After(2 * time.Second):
			t.Fatalf("timeout waiting for hash %d", i)
		}
	}

	if client.Hashes() == nil {
		t.Error("Hashes should return the subscription channel")
	}
}

func TestWSClient_ErrOnServerClose(t *testing.T) {
	server := fakeNode(t, "0xsub1", nil, true)
	defer server.Close()

	client, err := DialWS(context.Background(), wsURL(server), nil)
	if err != nil {
		t.Fatalf("DialWS: %v", err)
	}
	defer client.Close()

	if _, err := client.SubscribePendingTransactions(context.Background()); err != nil {
		t.Fatalf("SubscribePendingTransactions: %v", err)
	}

	select {
	case err, ok := <-client.Err():
		if ok && err == nil {
			t.Error("expected non-nil transport error")
		}
	case <-time.After(2 * time.Second):
		t.Fatal("timeout waiting for transport error")
	}
}

func TestWSClient_SubscribeTimeout(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()

		// Swallow the subscribe request and never confirm.
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}))
	defer server.Close()

	cfg := DefaultWSConfig()
	cfg.SubscribeTimeout = 100 * time.Millisecond

	client, err := DialWS(context.Background(), wsURL(server), &cfg)
	if err != nil {
		t.Fatalf("DialWS: %v", err)
	}
	defer client.Close()

	if _, err := client.SubscribePendingTransactions(context.Background()); err == nil {
		t.Fatal("expected subscription timeout")
	}
}

func TestWSClient_CloseIdempotent(t *testing.T) {
	server := fakeNode(t, "0xsub1", nil, false)
	defer server.Close()

	client, err := DialWS(context.Background(), wsURL(server), nil)
	if err != nil {
		t.Fatalf("DialWS: %v", err)
	}

	if err := client.Close(); err != nil {
		t.Errorf("first Close: %v", err)
	}
	if err := client.Close(); err != nil {
		t.Errorf("second Close: %v", err)
	}
}
