package ethereum

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"
)

// WSConfig configures WebSocket client behavior.
type WSConfig struct {
	// HandshakeTimeout bounds the initial dial.
	HandshakeTimeout time.Duration
	// PingInterval is interval for sending ping frames.
	PingInterval time.Duration
	// ReadTimeout is timeout for reading messages.
	ReadTimeout time.Duration
	// WriteTimeout is timeout for writing messages.
	WriteTimeout time.Duration
	// SubscribeTimeout bounds the wait for a subscription confirmation.
	SubscribeTimeout time.Duration
}

// DefaultWSConfig returns default WebSocket configuration.
func DefaultWSConfig() WSConfig {
	return WSConfig{
		HandshakeTimeout: 10 * time.Second,
		PingInterval:     30 * time.Second,
		ReadTimeout:      60 * time.Second,
		WriteTimeout:     10 * time.Second,
		SubscribeTimeout: 30 * time.Second,
	}
}

// WSClient is a single-connection JSON-RPC subscription client.
//
// It does not reconnect: a transport failure is reported once on Err and the
// client is finished. Retry policy belongs to the feed manager, which dials
// a fresh client per attempt.
type WSClient struct {
	config WSConfig

	conn      *websocket.Conn
	writeMu   sync.Mutex
	closed    atomic.Bool
	requestID atomic.Uint64

	// subs maps subscription ID to the hash channel receiving its notifications.
	subs   map[string]chan string
	subsMu sync.RWMutex

	// pendingSubs maps request ID to the channel waiting for a subscription ID.
	pendingSubs   map[uint64]chan string
	pendingSubsMu sync.Mutex

	// errCh reports the first fatal transport error, then is closed.
	errCh   chan error
	errOnce sync.Once

	done chan struct{}
	wg   sync.WaitGroup

	// hashes is set by SubscribePendingTransactions; Hashes returns it.
	hashes   chan string
	hashesMu sync.Mutex
}

// DialWS connects to the endpoint and starts the read and ping loops.
func DialWS(ctx context.Context, endpoint string, config *WSConfig) (*WSClient, error) {
	cfg := DefaultWSConfig()
	if config != nil {
		cfg = *config
	}

	dialer := websocket.Dialer{
		HandshakeTimeout: cfg.HandshakeTimeout,
	}
	conn, _, err := dialer.DialContext(ctx, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("websocket dial: %w", err)
	}

	c := &WSClient{
		config:      cfg,
		conn:        conn,
		subs:        make(map[string]chan string),
		pendingSubs: make(map[uint64]chan string),
		errCh:       make(chan error, 1),
		done:        make(chan struct{}),
	}

	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(cfg.ReadTimeout))
	})

	c.wg.Add(2)
	go c.readLoop()
	go c.pingLoop()

	return c, nil
}

// SubscribePendingTransactions issues eth_subscribe("newPendingTransactions")
// and returns the channel delivering pending transaction hashes.
func (c *WSClient) SubscribePendingTransactions(ctx context.Context) (<-chan string, error) {
	if c.closed.Load() {
		return nil, fmt.Errorf("client closed")
	}

	reqID := c.requestID.Add(1)
	req := wsRequest{
		JSONRPC: "2.0",
		ID:      reqID,
		Method:  "eth_subscribe",
		Params:  []interface{}{"newPendingTransactions"},
	}

	confirmCh := make(chan string, 1)
	c.pendingSubsMu.Lock()
	c.pendingSubs[reqID] = confirmCh
	c.pendingSubsMu.Unlock()

	if err := c.writeJSON(req); err != nil {
		c.pendingSubsMu.Lock()
		delete(c.pendingSubs, reqID)
		c.pendingSubsMu.Unlock()
		return nil, fmt.Errorf("write subscribe: %w", err)
	}

	var subID string
	select {
	case subID = <-confirmCh:
		if subID == "" {
			return nil, fmt.Errorf("client closed")
		}
	case <-time.After(c.config.SubscribeTimeout):
		c.pendingSubsMu.Lock()
		delete(c.pendingSubs, reqID)
		c.pendingSubsMu.Unlock()
		return nil, fmt.Errorf("subscription timeout after %s", c.config.SubscribeTimeout)
	case <-c.done:
		return nil, fmt.Errorf("client closed")
	case <-ctx.Done():
		c.pendingSubsMu.Lock()
		delete(c.pendingSubs, reqID)
		c.pendingSubsMu.Unlock()
		return nil, ctx.Err()
	}

	// Large buffer absorbs mempool bursts; sends block rather than drop.
	ch := make(chan string, 10000)
	c.subsMu.Lock()
	c.subs[subID] = ch
	c.subsMu.Unlock()

	c.hashesMu.Lock()
	c.hashes = ch
	c.hashesMu.Unlock()

	return ch, nil
}

// Hashes returns the channel from the most recent subscription, or nil if
// SubscribePendingTransactions has not succeeded yet.
func (c *WSClient) Hashes() <-chan string {
	c.hashesMu.Lock()
	defer c.hashesMu.Unlock()
	return c.hashes
}

// Err reports the first fatal transport error. The channel is closed when
// the client shuts down.
func (c *WSClient) Err() <-chan error {
	return c.errCh
}

// Close closes the WebSocket connection. Idempotent.
func (c *WSClient) Close() error {
	if c.closed.Swap(true) {
		return nil
	}

	close(c.done)

	c.writeMu.Lock()
	c.conn.WriteMessage(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
	c.conn.Close()
	c.writeMu.Unlock()

	c.wg.Wait()

	c.subsMu.Lock()
	for id, ch := range c.subs {
		close(ch)
		delete(c.subs, id)
	}
	c.subsMu.Unlock()

	c.pendingSubsMu.Lock()
	for id, ch := range c.pendingSubs {
		close(ch)
		delete(c.pendingSubs, id)
	}
	c.pendingSubsMu.Unlock()

	c.errOnce.Do(func() { close(c.errCh) })
	return nil
}

// writeJSON serializes writes; gorilla connections allow one writer at a time.
func (c *WSClient) writeJSON(v interface{}) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	c.conn.SetWriteDeadline(time.Now().Add(c.config.WriteTimeout))
	return c.conn.WriteJSON(v)
}

// fail reports a fatal transport error exactly once.
func (c *WSClient) fail(err error) {
	c.errOnce.Do(func() {
		c.errCh <- err
		close(c.errCh)
	})
}

// readLoop reads messages and dispatches them until the connection dies.
func (c *WSClient) readLoop() {
	defer c.wg.Done()

	for {
		c.conn.SetReadDeadline(time.Now().Add(c.config.ReadTimeout))
		_, message, err := c.conn.ReadMessage()
		if err != nil {
			if !c.closed.Load() {
				c.fail(fmt.Errorf("websocket read: %w", err))
			}
			return
		}
		c.handleMessage(message)
	}
}

// handleMessage processes one incoming WebSocket message.
func (c *WSClient) handleMessage(message []byte) {
	// Subscription confirmation first: it carries a request id.
	var resp wsSubscribeResponse
	if err := json.Unmarshal(message, &resp); err == nil && resp.ID != 0 && resp.Result != "" {
		c.handleSubscribeResponse(&resp)
		return
	}

	var notif wsNotification
	if err := json.Unmarshal(message, &notif); err == nil && notif.Method == "eth_subscription" {
		c.handleSubscriptionNotification(&notif)
		return
	}

	var errResp struct {
		ID    uint64 `json:"id"`
		Error *struct {
			Code    int    `json:"code"`
			Message string `json:"message"`
		} `json:"error"`
	}
	if err := json.Unmarshal(message, &errResp); err == nil && errResp.Error != nil {
		// The waiting subscriber times out; nothing else to do here.
		c.pendingSubsMu.Lock()
		delete(c.pendingSubs, errResp.ID)
		c.pendingSubsMu.Unlock()
	}
}

// handleSubscribeResponse delivers the subscription id to the waiting caller.
func (c *WSClient) handleSubscribeResponse(resp *wsSubscribeResponse) {
	c.pendingSubsMu.Lock()
	ch, ok := c.pendingSubs[resp.ID]
	if ok {
		delete(c.pendingSubs, resp.ID)
	}
	c.pendingSubsMu.Unlock()

	if ok {
		select {
		case ch <- resp.Result:
		default:
		}
	}
}

// handleSubscriptionNotification routes a pending transaction hash to its
// subscription channel.
func (c *WSClient) handleSubscriptionNotification(notif *wsNotification) {
	if notif.Params == nil || notif.Params.Result == "" {
		return
	}

	c.subsMu.RLock()
	ch, ok := c.subs[notif.Params.Subscription]
	c.subsMu.RUnlock()

	if ok {
		select {
		case ch <- notif.Params.Result:
		case <-c.done:
		}
	}
}

// pingLoop sends periodic ping frames to keep the connection alive.
func (c *WSClient) pingLoop() {
	defer c.wg.Done()

	ticker := time.NewTicker(c.config.PingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-c.done:
			return
		case <-ticker.C:
			c.writeMu.Lock()
			c.conn.SetWriteDeadline(time.Now().Add(c.config.WriteTimeout))
			// A failed ping surfaces on the read side; nothing to do here.
			_ = c.conn.WriteMessage(websocket.PingMessage, nil)
			c.writeMu.Unlock()
		}
	}
}

// WebSocket message types.

type wsRequest struct {
	JSONRPC string        `json:"jsonrpc"`
	ID      uint64        `json:"id"`
	Method  string        `json:"method"`
	Params  []interface{} `json:"params,omitempty"`
}

type wsSubscribeResponse struct {
	JSONRPC string `json:"jsonrpc"`
	ID      uint64 `json:"id"`
	Result  string `json:"result"` // subscription ID
}

type wsNotification struct {
	JSONRPC string                `json:"jsonrpc"`
	Method  string                `json:"method"`
	Params  *wsNotificationParams `json:"params"`
}

type wsNotificationParams struct {
	Subscription string `json:"subscription"`
	Result       string `json:"result"` // pending transaction hash
}
