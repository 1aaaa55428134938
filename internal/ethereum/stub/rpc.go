package stub

import (
	"context"
	"strings"
	"sync"

	"mempool-sentinel/internal/ethereum"
)

// RPCClient implements ethereum.TransactionFetcher for tests and replays.
// Unknown hashes return (nil, nil), mirroring the real client's not-found
// behavior.
type RPCClient struct {
	mu           sync.RWMutex
	Transactions map[string]*ethereum.Transaction

	// Err, when set, is returned by every lookup.
	Err error
}

// NewRPCClient creates a new stub RPC client.
func NewRPCClient() *RPCClient {
	return &RPCClient{
		Transactions: make(map[string]*ethereum.Transaction),
	}
}

// Compile-time interface check.
var _ ethereum.TransactionFetcher = (*RPCClient)(nil)

// Add registers a transaction under its own hash.
func (c *RPCClient) Add(tx *ethereum.Transaction) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.Transactions[strings.ToLower(tx.Hash)] = tx
}

// TransactionByHash retrieves a transaction from the stub store.
func (c *RPCClient) TransactionByHash(_ context.Context, hash string) (*ethereum.Transaction, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	if c.Err != nil {
		return nil, c.Err
	}
	tx, ok := c.Transactions[strings.ToLower(hash)]
	if !ok {
		return nil, nil
	}
	return tx, nil
}
