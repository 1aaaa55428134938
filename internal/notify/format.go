package notify

import (
	"fmt"
	"strings"

	"mempool-sentinel/internal/domain"
)

// OneLine renders an alert as a single plain-text line.
func OneLine(a *domain.Alert) string {
	line := fmt.Sprintf("[%s] severity %d: $%.2f pending tx %s",
		a.Chain, a.Severity, a.USDValue, shortHash(a.TxHash))
	if summary, ok := a.RawContext["summary"].(string); ok && summary != "" {
		line += " — " + summary
	}
	return line
}

// Markdown renders an alert as a Markdown block for chat channels.
func Markdown(a *domain.Alert) string {
	var b strings.Builder
	fmt.Fprintf(&b, "*Mempool alert* — severity %d\n", a.Severity)
	fmt.Fprintf(&b, "- Chain: %s\n", a.Chain)
	fmt.Fprintf(&b, "- Event: %s\n", a.EventType)
	fmt.Fprintf(&b, "- Value: $%.2f\n", a.USDValue)
	fmt.Fprintf(&b, "- Tx: `%s`\n", a.TxHash)
	if summary, ok := a.RawContext["summary"].(string); ok && summary != "" {
		fmt.Fprintf(&b, "- %s\n", summary)
	}
	if watched, ok := a.RawContext["is_watched"].(bool); ok && watched {
		b.WriteString("- Watchlist hit\n")
	}
	return b.String()
}

// shortHash truncates a transaction hash for display.
func shortHash(h string) string {
	if len(h) <= 14 {
		return h
	}
	return h[:10] + "…" + h[len(h)-4:]
}
