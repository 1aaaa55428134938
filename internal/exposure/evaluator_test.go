package exposure

import (
	"context"
	"errors"
	"math"
	"math/big"
	"strings"
	"testing"

	"mempool-sentinel/internal/classify"
	"mempool-sentinel/internal/pricing"
)

type fixedNative struct{ price float64 }

func (s fixedNative) NativeUSD(_ context.Context) (float64, error) { return s.price, nil }

type fixedToken struct{ quotes map[string]pricing.TokenQuote }

func (s fixedToken) TokenUSD(_ context.Context, addr string) (pricing.TokenQuote, error) {
	q, ok := s.quotes[addr]
	if !ok {
		return pricing.TokenQuote{}, errors.New("no price")
	}
	return q, nil
}

func ethWei(n int64) *big.Int {
	return new(big.Int).Mul(big.NewInt(n), big.NewInt(1e18))
}

func TestScore_Table(t *testing.T) {
	tests := []struct {
		usd  float64
		want int
	}{
		{0, 40},
		{9999.99, 40},
		{10000, 55},
		{49999.99, 55},
		{50000, 70},
		{99999.99, 70},
		{100000, 85},
		{199999.99, 85},
		{200000, 92},
		{499999, 92},
		{499999.99, 92},
		{500000, 99},
		{12345678, 99},
	}

	prev := 0
	for _, tt := range tests {
		got := Score(tt.usd)
		if got != tt.want {
			t.Errorf("Score(%v) = %d, want %d", tt.usd, got, tt.want)
		}
		if got < prev {
			t.Errorf("Score not monotonic at %v: %d < %d", tt.usd, got, prev)
		}
		prev = got
	}
}

func TestEvaluate_NativeKinds(t *testing.T) {
	resolver := pricing.NewResolver(pricing.Options{NativeSource: fixedNative{price: 2000}})
	e := NewEvaluator(resolver)

	for _, kind := range []classify.Kind{classify.KindNativeTransfer, classify.KindSwapNativeIn} {
		t.Run(kind.String(), func(t *testing.T) {
			d := &classify.Decoded{
				Kind:     kind,
				From:     "0xsender",
				ValueWei: ethWei(30),
			}

			res := e.Evaluate(context.Background(), d)
			if math.Abs(res.USDValue-60000) > 1e-6 {
				t.Errorf("expected usd 60000, got %v", res.USDValue)
			}
			if res.Severity != 70 {
				t.Errorf("expected severity 70, got %d", res.Severity)
			}
			if !strings.Contains(res.Summary, "0xsender") || !strings.Contains(res.Summary, kind.String()) {
				t.Errorf("summary missing sender or kind: %q", res.Summary)
			}
		})
	}
}

func TestEvaluate_TokenSwap(t *testing.T) {
	token := "0xdac17f958d2ee523a2206206994597c13d831ec7"
	resolver := pricing.NewResolver(pricing.Options{
		TokenSource: fixedToken{quotes: map[string]pricing.TokenQuote{
			token: {PriceUSD: 2.0, Decimals: 6},
		}},
	})
	e := NewEvaluator(resolver)

	// 150,000 units of a 6-decimals token at $2 = $300,000.
	d := &classify.Decoded{
		Kind:     classify.KindSwapTokenIn,
		From:     "0xsender",
		AmountIn: new(big.Int).Mul(big.NewInt(150000), big.NewInt(1e6)),
		Path:     []string{token, "0xother"},
	}

	res := e.Evaluate(context.Background(), d)
	if math.Abs(res.USDValue-300000) > 1e-6 {
		t.Errorf("expected usd 300000, got %v", res.USDValue)
	}
	if res.Severity != 92 {
		t.Errorf("expected severity 92, got %d", res.Severity)
	}
	if res.Token != token {
		t.Errorf("expected token %s, got %s", token, res.Token)
	}
}

func TestEvaluate_TokenSwap_PriceUnavailable(t *testing.T) {
	resolver := pricing.NewResolver(pricing.Options{}) // no token source
	e := NewEvaluator(resolver)

	d := &classify.Decoded{
		Kind:     classify.KindSwapTokenIn,
		From:     "0xsender",
		AmountIn: big.NewInt(1e18),
		Path:     []string{"0xunknown"},
	}

	res := e.Evaluate(context.Background(), d)
	if res.USDValue != 0 {
		t.Errorf("expected zero exposure for unpriceable token, got %v", res.USDValue)
	}
	if res.Token != "0xunknown" {
		t.Errorf("expected token recorded, got %q", res.Token)
	}
}
