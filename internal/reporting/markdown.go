package reporting

import (
	"fmt"
	"strings"
	"time"
)

// RenderMarkdown renders a digest as a Markdown document.
func RenderMarkdown(d *Digest) string {
	var sb strings.Builder

	sb.WriteString("# Mempool Alert Digest\n\n")
	sb.WriteString(fmt.Sprintf("Generated: %s\n\n", d.GeneratedAt.Format(time.RFC3339)))
	sb.WriteString(fmt.Sprintf("Window: %s (since %s)\n\n", d.Window, d.Since.Format(time.RFC3339)))

	sb.WriteString("## Summary\n\n")
	sb.WriteString("| Metric | Value |\n")
	sb.WriteString("|--------|-------|\n")
	sb.WriteString(fmt.Sprintf("| Total Alerts | %d |\n", d.TotalAlerts))
	sb.WriteString(fmt.Sprintf("| Total USD Value | $%.2f |\n", d.TotalUSD))
	sb.WriteString("\n")

	sb.WriteString("## Severity Histogram\n\n")
	if len(d.SeverityHistogram) > 0 {
		sb.WriteString("| Severity | Count |\n")
		sb.WriteString("|----------|-------|\n")
		for _, row := range d.SeverityHistogram {
			sb.WriteString(fmt.Sprintf("| %d | %d |\n", row.Severity, row.Count))
		}
	} else {
		sb.WriteString("No alerts in window.\n")
	}
	sb.WriteString("\n")

	sb.WriteString("## Top Alerts by USD Value\n\n")
	if len(d.TopAlerts) > 0 {
		sb.WriteString("| ID | Tx Hash | Event | Severity | USD Value | Created |\n")
		sb.WriteString("|----|---------|-------|----------|-----------|--------|\n")
		for _, row := range d.TopAlerts {
			sb.WriteString(fmt.Sprintf("| %d | %s | %s | %d | $%.2f | %s |\n",
				row.ID, row.TxHash, row.EventType, row.Severity, row.USDValue,
				row.CreatedAt.Format(time.RFC3339)))
		}
	} else {
		sb.WriteString("No alerts in window.\n")
	}
	sb.WriteString("\n")

	return sb.String()
}
