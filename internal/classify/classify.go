package classify

import (
	"math/big"
	"strings"

	"mempool-sentinel/internal/ethereum"
)

// Kind identifies the semantic shape of a classified call.
type Kind int

const (
	// KindUnrecognized marks transactions that carry no interest; the
	// pipeline drops them without further processing.
	KindUnrecognized Kind = iota
	// KindNativeTransfer is a plain ether transfer above the native floor.
	KindNativeTransfer
	// KindSwapNativeIn is a router swap paying ether in (swapExactETHForTokens).
	KindSwapNativeIn
	// KindSwapTokenIn is a router swap paying a token in
	// (swapExactTokensForTokens / swapExactTokensForETH).
	KindSwapTokenIn
)

// String returns the kind name used in summaries and raw context.
func (k Kind) String() string {
	switch k {
	case KindNativeTransfer:
		return "native_transfer"
	case KindSwapNativeIn:
		return "swap_native_in"
	case KindSwapTokenIn:
		return "swap_token_in"
	default:
		return "unrecognized"
	}
}

// Decoded is the classification of one pending transaction. Owned by the
// pipeline run that produced it and discarded when the run completes.
type Decoded struct {
	Kind     Kind
	From     string
	To       string
	Router   string   // registry name when To is a known router
	ValueWei *big.Int // native value carried by the transaction

	// Swap fields, set only for the swap kinds.
	AmountIn     *big.Int // token amount in (token-in swaps)
	AmountOutMin *big.Int
	Path         []string // token addresses, lower-cased
}

// minNativeWei is the plain-transfer interest floor: 1 ether.
var minNativeWei, _ = new(big.Int).SetString("1000000000000000000", 10)

// Classify decodes a raw pending transaction into a semantic event.
// Pure function of the input and the static router registry. Returns nil for
// contract creations (no recipient).
func Classify(tx *ethereum.Transaction) *Decoded {
	if tx == nil || tx.To == "" {
		return nil
	}

	value := tx.ValueWei()
	d := &Decoded{
		Kind:     KindUnrecognized,
		From:     strings.ToLower(tx.From),
		To:       strings.ToLower(tx.To),
		ValueWei: value,
	}

	if router := RouterName(tx.To); router != "" {
		if decodeRouterCall(d, tx.Input) {
			d.Router = router
			return d
		}
	}

	// Not a known router call: a large enough plain transfer still counts.
	if value.Cmp(minNativeWei) > 0 {
		d.Kind = KindNativeTransfer
	}
	return d
}

// decodeRouterCall decodes the calldata against the known swap selectors,
// filling d and returning true on success.
func decodeRouterCall(d *Decoded, input string) bool {
	data := strings.ToLower(strings.TrimPrefix(input, "0x"))
	if len(data) < 8 {
		return false
	}
	selector, args := data[:8], data[8:]

	switch selector {
	case selSwapExactETHForTokens:
		// amountOutMin, path offset; ether in comes from the tx value.
		outMin, ok := word(args, 0)
		if !ok {
			return false
		}
		path, ok := addressArray(args, 1)
		if !ok || len(path) == 0 {
			return false
		}
		d.Kind = KindSwapNativeIn
		d.AmountOutMin = outMin
		d.Path = path
		return true

	case selSwapExactTokensForETH, selSwapExactTokensForTokens:
		// amountIn, amountOutMin, path offset.
		amountIn, ok := word(args, 0)
		if !ok {
			return false
		}
		outMin, ok := word(args, 1)
		if !ok {
			return false
		}
		path, ok := addressArray(args, 2)
		if !ok || len(path) == 0 {
			return false
		}
		d.Kind = KindSwapTokenIn
		d.AmountIn = amountIn
		d.AmountOutMin = outMin
		d.Path = path
		return true
	}

	return false
}

// word extracts the i-th 32-byte ABI word as a big.Int.
func word(args string, i int) (*big.Int, bool) {
	start := i * 64
	if start+64 > len(args) {
		return nil, false
	}
	v, ok := new(big.Int).SetString(args[start:start+64], 16)
	if !ok {
		return nil, false
	}
	return v, true
}

// addressArray decodes a dynamic address[] argument whose offset sits in the
// i-th argument word. Addresses occupy the last 40 hex chars of their word.
func addressArray(args string, i int) ([]string, bool) {
	offset, ok := word(args, i)
	if !ok || !offset.IsInt64() || offset.Int64()%32 != 0 {
		return nil, false
	}
	lengthIdx := int(offset.Int64() / 32)

	length, ok := word(args, lengthIdx)
	if !ok || !length.IsInt64() {
		return nil, false
	}
	n := int(length.Int64())
	if n < 0 || n > 16 { // swap paths are short; anything longer is malformed
		return nil, false
	}

	addrs := make([]string, 0, n)
	for j := 0; j < n; j++ {
		w := lengthIdx + 1 + j
		start := w * 64
		if start+64 > len(args) {
			return nil, false
		}
		addrs = append(addrs, "0x"+args[start+24:start+64])
	}
	return addrs, true
}
