package classify

import (
	"fmt"
	"math/big"
	"strings"
	"testing"

	"mempool-sentinel/internal/ethereum"
)

const (
	uniswapRouter = "0x7A250d5630B4cF539739dF2C5dAcb4c659F2488D"
	tokenA        = "0xdac17f958d2ee523a2206206994597c13d831ec7"
	tokenB        = "0x6b175474e89094c44da98b954eedeac495271d0f"
)

// abiWord pads a hex quantity to a 32-byte ABI word.
func abiWord(v *big.Int) string {
	return fmt.Sprintf("%064s", v.Text(16))
}

// abiAddr pads an address into a 32-byte ABI word.
func abiAddr(addr string) string {
	return fmt.Sprintf("%064s", strings.TrimPrefix(strings.ToLower(addr), "0x"))
}

// ethSwapInput builds swapExactETHForTokens calldata with the given path.
func ethSwapInput(amountOutMin *big.Int, path ...string) string {
	// amountOutMin, path offset, to, deadline, then the dynamic array.
	var b strings.Builder
	b.WriteString("0x" + selSwapExactETHForTokens)
	b.WriteString(abiWord(amountOutMin))
	b.WriteString(abiWord(big.NewInt(128))) // offset: 4 static words
	b.WriteString(abiAddr("0x000000000000000000000000000000000000beef"))
	b.WriteString(abiWord(big.NewInt(1999999999)))
	b.WriteString(abiWord(big.NewInt(int64(len(path)))))
	for _, p := range path {
		b.WriteString(abiAddr(p))
	}
	return b.String()
}

// tokenSwapInput builds swapExactTokensForTokens / swapExactTokensForETH
// calldata with the given selector, input amount, and path.
func tokenSwapInput(selector string, amountIn, amountOutMin *big.Int, path ...string) string {
	var b strings.Builder
	b.WriteString("0x" + selector)
	b.WriteString(abiWord(amountIn))
	b.WriteString(abiWord(amountOutMin))
	b.WriteString(abiWord(big.NewInt(160))) // offset: 5 static words
	b.WriteString(abiAddr("0x000000000000000000000000000000000000beef"))
	b.WriteString(abiWord(big.NewInt(1999999999)))
	b.WriteString(abiWord(big.NewInt(int64(len(path)))))
	for _, p := range path {
		b.WriteString(abiAddr(p))
	}
	return b.String()
}

func ether(n int64) string {
	wei := new(big.Int).Mul(big.NewInt(n), big.NewInt(1e18))
	return "0x" + wei.Text(16)
}

func TestClassify_SwapNativeIn(t *testing.T) {
	tx := &ethereum.Transaction{
		Hash:  "0x1",
		From:  "0xAAAA567890123456789012345678901234567890",
		To:    uniswapRouter,
		Value: ether(5),
		Input: ethSwapInput(big.NewInt(1000), tokenA, tokenB),
	}

	d := Classify(tx)
	if d == nil {
		t.Fatal("expected classification")
	}
	if d.Kind != KindSwapNativeIn {
		t.Fatalf("expected KindSwapNativeIn, got %s", d.Kind)
	}
	if d.Router != "uniswap_v2" {
		t.Errorf("expected router uniswap_v2, got %q", d.Router)
	}
	if len(d.Path) != 2 || d.Path[0] != tokenA || d.Path[1] != tokenB {
		t.Errorf("unexpected path: %v", d.Path)
	}
	if d.AmountOutMin.Int64() != 1000 {
		t.Errorf("expected amountOutMin 1000, got %s", d.AmountOutMin)
	}
	if d.From != strings.ToLower(tx.From) {
		t.Errorf("sender not lower-cased: %s", d.From)
	}
}

func TestClassify_SwapTokenIn(t *testing.T) {
	amountIn := new(big.Int).Mul(big.NewInt(250000), big.NewInt(1e6)) // 250k of a 6-decimals token

	for _, selector := range []string{selSwapExactTokensForTokens, selSwapExactTokensForETH} {
		t.Run(selector, func(t *testing.T) {
			tx := &ethereum.Transaction{
				Hash:  "0x2",
				From:  "0xaaaa567890123456789012345678901234567890",
				To:    strings.ToUpper(uniswapRouter), // registry match is case-insensitive
				Value: "0x0",
				Input: tokenSwapInput(selector, amountIn, big.NewInt(1), tokenA, tokenB),
			}

			d := Classify(tx)
			if d == nil || d.Kind != KindSwapTokenIn {
				t.Fatalf("expected KindSwapTokenIn, got %+v", d)
			}
			if d.AmountIn.Cmp(amountIn) != 0 {
				t.Errorf("expected amountIn %s, got %s", amountIn, d.AmountIn)
			}
			if len(d.Path) != 2 || d.Path[0] != tokenA {
				t.Errorf("unexpected path: %v", d.Path)
			}
		})
	}
}

func TestClassify_NativeTransfer(t *testing.T) {
	tx := &ethereum.Transaction{
		Hash:  "0x3",
		From:  "0xaaaa567890123456789012345678901234567890",
		To:    "0xbbbb567890123456789012345678901234567890",
		Value: ether(3),
		Input: "0x",
	}

	d := Classify(tx)
	if d == nil || d.Kind != KindNativeTransfer {
		t.Fatalf("expected KindNativeTransfer, got %+v", d)
	}
	if d.ValueWei.Cmp(new(big.Int).Mul(big.NewInt(3), big.NewInt(1e18))) != 0 {
		t.Errorf("unexpected value: %s", d.ValueWei)
	}
}

func TestClassify_Unrecognized(t *testing.T) {
	tests := []struct {
		name string
		tx   *ethereum.Transaction
	}{
		{
			name: "small transfer at the floor",
			tx: &ethereum.Transaction{
				From: "0xaaaa", To: "0xbbbb", Value: ether(1), Input: "0x",
			},
		},
		{
			name: "zero value call to unknown contract",
			tx: &ethereum.Transaction{
				From: "0xaaaa", To: "0xbbbb", Value: "0x0",
				Input: "0xa9059cbb" + abiAddr(tokenA) + abiWord(big.NewInt(1)),
			},
		},
		{
			name: "router call with unknown selector and no value",
			tx: &ethereum.Transaction{
				From: "0xaaaa", To: uniswapRouter, Value: "0x0",
				Input: "0xdeadbeef",
			},
		},
		{
			name: "router call with truncated calldata",
			tx: &ethereum.Transaction{
				From: "0xaaaa", To: uniswapRouter, Value: "0x0",
				Input: "0x" + selSwapExactTokensForTokens + abiWord(big.NewInt(7)),
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := Classify(tt.tx)
			if d == nil {
				t.Fatal("expected a Decoded with KindUnrecognized, got nil")
			}
			if d.Kind != KindUnrecognized {
				t.Errorf("expected KindUnrecognized, got %s", d.Kind)
			}
		})
	}
}

func TestClassify_ContractCreation(t *testing.T) {
	tx := &ethereum.Transaction{
		From:  "0xaaaa567890123456789012345678901234567890",
		To:    "",
		Value: ether(10),
		Input: "0x60806040",
	}

	if d := Classify(tx); d != nil {
		t.Errorf("expected nil for contract creation, got %+v", d)
	}
}

func TestClassify_RouterDecodeFailureFallsBackToTransfer(t *testing.T) {
	// Malformed swap calldata on a known router, but the value is large:
	// classification falls back to a plain native transfer.
	tx := &ethereum.Transaction{
		From:  "0xaaaa567890123456789012345678901234567890",
		To:    uniswapRouter,
		Value: ether(2),
		Input: "0x" + selSwapExactETHForTokens + "00ff",
	}

	d := Classify(tx)
	if d == nil || d.Kind != KindNativeTransfer {
		t.Fatalf("expected fallback to KindNativeTransfer, got %+v", d)
	}
}
