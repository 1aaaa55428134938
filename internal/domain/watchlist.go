package domain

import "time"

// Watchlist is a named set of addresses and token contracts that force an
// alert below the USD threshold. Corresponds to the watchlists table.
// Matching is case-insensitive; stores persist entries lower-cased.
type Watchlist struct {
	ID        int64     `json:"id"`
	Name      string    `json:"name"`
	Addresses []string  `json:"addresses"` // sender addresses to watch
	Tokens    []string  `json:"tokens"`    // token contract addresses to watch
	CreatedAt time.Time `json:"created_at"`
}
