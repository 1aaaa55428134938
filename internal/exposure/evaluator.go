package exposure

import (
	"context"
	"fmt"
	"math/big"

	"mempool-sentinel/internal/classify"
	"mempool-sentinel/internal/pricing"
)

// Result is the value-denominated exposure of one classified transaction.
type Result struct {
	// USDValue is the estimated economic size. Zero means the observation
	// could not be valued and is dropped upstream.
	USDValue float64
	// Severity is the 0-99 score derived from USDValue.
	Severity int
	// Summary is a one-line human-readable description.
	Summary string
	// Token is the first-hop token address for token-in swaps, empty otherwise.
	Token string
}

// Evaluator turns classified calls into USD exposure and severity.
type Evaluator struct {
	resolver *pricing.Resolver
}

// NewEvaluator creates an evaluator backed by the given price resolver.
func NewEvaluator(resolver *pricing.Resolver) *Evaluator {
	return &Evaluator{resolver: resolver}
}

// Evaluate computes the USD exposure of a classified transaction.
func (e *Evaluator) Evaluate(ctx context.Context, d *classify.Decoded) Result {
	switch d.Kind {
	case classify.KindNativeTransfer, classify.KindSwapNativeIn:
		eth := weiToEther(d.ValueWei)
		usd := eth * e.resolver.NativeUSD(ctx)
		verb := "transfers"
		if d.Kind == classify.KindSwapNativeIn {
			verb = "swaps in"
		}
		return Result{
			USDValue: usd,
			Severity: Score(usd),
			Summary:  fmt.Sprintf("%s: %s %s %.4f ETH (~$%.2f)", d.Kind, d.From, verb, eth, usd),
		}

	case classify.KindSwapTokenIn:
		token := d.Path[0]
		quote, ok := e.resolver.TokenUSD(ctx, token)
		if !ok {
			return Result{
				Summary: fmt.Sprintf("%s: %s swaps unpriceable token %s", d.Kind, d.From, token),
				Token:   token,
			}
		}
		amount := scaleByDecimals(d.AmountIn, quote.Decimals)
		usd := amount * quote.PriceUSD
		return Result{
			USDValue: usd,
			Severity: Score(usd),
			Summary:  fmt.Sprintf("%s: %s swaps in %.4f of %s (~$%.2f)", d.Kind, d.From, amount, token, usd),
			Token:    token,
		}

	default:
		return Result{Summary: fmt.Sprintf("%s: %s", d.Kind, d.From)}
	}
}

// Score maps a USD value to a 0-99 severity. Inclusive lower bounds, highest
// matching bucket wins.
func Score(usd float64) int {
	switch {
	case usd >= 500000:
		return 99
	case usd >= 200000:
		return 92
	case usd >= 100000:
		return 85
	case usd >= 50000:
		return 70
	case usd >= 10000:
		return 55
	default:
		return 40
	}
}

var weiPerEther = new(big.Float).SetInt(new(big.Int).Exp(big.NewInt(10), big.NewInt(18), nil))

// weiToEther converts a wei amount to ether as float64.
func weiToEther(wei *big.Int) float64 {
	if wei == nil {
		return 0
	}
	eth, _ := new(big.Float).Quo(new(big.Float).SetInt(wei), weiPerEther).Float64()
	return eth
}

// scaleByDecimals converts a raw token amount to whole units.
func scaleByDecimals(amount *big.Int, decimals int) float64 {
	if amount == nil {
		return 0
	}
	if decimals < 0 {
		decimals = 0
	}
	div := new(big.Float).SetInt(new(big.Int).Exp(big.NewInt(10), big.NewInt(int64(decimals)), nil))
	v, _ := new(big.Float).Quo(new(big.Float).SetInt(amount), div).Float64()
	return v
}
