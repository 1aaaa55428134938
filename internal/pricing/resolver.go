package pricing

import (
	"context"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"mempool-sentinel/internal/observability"
)

// Default resolver tuning.
const (
	DefaultNativeTTL         = 120 * time.Second
	DefaultTokenTTL          = 300 * time.Second
	DefaultFallbackNativeUSD = 2000.0
)

// Options configures a Resolver.
type Options struct {
	// NativeSource resolves the native-asset price. Required for live prices;
	// nil means the fallback constant serves every call.
	NativeSource NativePriceSource

	// TokenSource resolves token prices. Nil disables token valuation:
	// every TokenUSD call reports unavailable.
	TokenSource TokenPriceSource

	NativeTTL time.Duration
	TokenTTL  time.Duration

	// FallbackNativeUSD serves native price requests when the source fails
	// and no cached value exists yet.
	FallbackNativeUSD float64

	Logger *zap.Logger
}

// Resolver resolves asset prices with time-bounded caching. The caches are
// the only state shared across concurrent pipeline runs; duplicate refreshes
// on a cold key are acceptable, torn reads are not.
type Resolver struct {
	nativeSource NativePriceSource
	tokenSource  TokenPriceSource

	nativeTTL time.Duration
	tokenTTL  time.Duration
	fallback  float64

	mu          sync.RWMutex
	nativePrice float64
	nativeExp   time.Time
	lastNative  float64 // last successfully fetched value, served on source failure
	tokens      map[string]tokenEntry

	// nowFn is swappable for fake-clock TTL tests.
	nowFn func() time.Time

	logger *zap.Logger
}

type tokenEntry struct {
	quote   TokenQuote
	expires time.Time
}

// NewResolver creates a price resolver.
func NewResolver(opts Options) *Resolver {
	if opts.NativeTTL <= 0 {
		opts.NativeTTL = DefaultNativeTTL
	}
	if opts.TokenTTL <= 0 {
		opts.TokenTTL = DefaultTokenTTL
	}
	if opts.FallbackNativeUSD <= 0 {
		opts.FallbackNativeUSD = DefaultFallbackNativeUSD
	}
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}

	return &Resolver{
		nativeSource: opts.NativeSource,
		tokenSource:  opts.TokenSource,
		nativeTTL:    opts.NativeTTL,
		tokenTTL:     opts.TokenTTL,
		fallback:     opts.FallbackNativeUSD,
		tokens:       make(map[string]tokenEntry),
		nowFn:        time.Now,
		logger:       opts.Logger,
	}
}

// NativeUSD returns the native-asset USD price. Never fails: on a source
// error the last known value is served, or the fallback constant before the
// first successful fetch.
func (r *Resolver) NativeUSD(ctx context.Context) float64 {
	now := r.nowFn()

	r.mu.RLock()
	price, exp := r.nativePrice, r.nativeExp
	last := r.lastNative
	r.mu.RUnlock()

	if now.Before(exp) {
		observability.RecordPriceCacheHit("native")
		return price
	}
	observability.RecordPriceCacheMiss("native")

	if r.nativeSource == nil {
		if last > 0 {
			return last
		}
		return r.fallback
	}

	fresh, err := r.nativeSource.NativeUSD(ctx)
	if err != nil || fresh <= 0 {
		observability.RecordPriceRefreshFailure("native")
		r.logger.Warn("native price refresh failed", zap.Error(err))
		if last > 0 {
			return last
		}
		return r.fallback
	}

	r.mu.Lock()
	r.nativePrice = fresh
	r.nativeExp = now.Add(r.nativeTTL)
	r.lastNative = fresh
	r.mu.Unlock()

	return fresh
}

// TokenUSD returns the cached USD quote for a token, keyed by lower-cased
// address. The second return is false when no price is available; the caller
// must treat the asset as unvaluable for this observation.
func (r *Resolver) TokenUSD(ctx context.Context, tokenAddr string) (TokenQuote, bool) {
	key := strings.ToLower(tokenAddr)
	now := r.nowFn()

	r.mu.RLock()
	entry, ok := r.tokens[key]
	r.mu.RUnlock()

	if ok {
		if now.Before(entry.expires) {
			observability.RecordPriceCacheHit("token")
			return entry.quote, true
		}
		// Expired entries are removed rather than served stale.
		r.mu.Lock()
		if e, still := r.tokens[key]; still && !now.Before(e.expires) {
			delete(r.tokens, key)
		}
		r.mu.Unlock()
	}
	observability.RecordPriceCacheMiss("token")

	if r.tokenSource == nil {
		return TokenQuote{}, false
	}

	quote, err := r.tokenSource.TokenUSD(ctx, key)
	if err != nil || quote.PriceUSD <= 0 {
		observability.RecordPriceRefreshFailure("token")
		r.logger.Debug("token price unavailable",
			zap.String("token", key),
			zap.Error(err))
		return TokenQuote{}, false
	}

	r.mu.Lock()
	r.tokens[key] = tokenEntry{quote: quote, expires: now.Add(r.tokenTTL)}
	r.mu.Unlock()

	return quote, true
}
