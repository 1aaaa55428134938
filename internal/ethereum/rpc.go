package ethereum

import (
	"context"
	"math/big"
	"strings"
)

// TransactionFetcher defines the node lookup interface the pipeline needs.
type TransactionFetcher interface {
	// TransactionByHash retrieves a transaction by hash.
	// Returns (nil, nil) when the node does not know the hash.
	TransactionByHash(ctx context.Context, hash string) (*Transaction, error)
}

// Transaction is a raw transaction as delivered by the node. All numeric
// fields are 0x-prefixed hex strings; To is empty for contract creation.
type Transaction struct {
	Hash     string `json:"hash"`
	From     string `json:"from"`
	To       string `json:"to"`
	Value    string `json:"value"`
	Input    string `json:"input"`
	Nonce    string `json:"nonce"`
	Gas      string `json:"gas"`
	GasPrice string `json:"gasPrice"`
}

// ParseHexBig parses a 0x-prefixed hex quantity into a big.Int.
// Empty and "0x" both parse as zero.
func ParseHexBig(s string) (*big.Int, bool) {
	s = strings.TrimPrefix(strings.TrimSpace(s), "0x")
	if s == "" {
		return big.NewInt(0), true
	}
	v, ok := new(big.Int).SetString(s, 16)
	if !ok {
		return nil, false
	}
	return v, true
}

// ValueWei returns the transaction value in wei, or zero if the field
// does not parse.
func (t *Transaction) ValueWei() *big.Int {
	v, ok := ParseHexBig(t.Value)
	if !ok {
		return big.NewInt(0)
	}
	return v
}
