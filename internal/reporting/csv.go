package reporting

import (
	"fmt"
	"strings"
	"time"
)

// RenderCSV renders the digest's top alerts as CSV.
func RenderCSV(rows []TopAlertRow) string {
	var sb strings.Builder

	sb.WriteString("id,tx_hash,event_type,severity,usd_value,created_at\n")

	for _, r := range rows {
		sb.WriteString(fmt.Sprintf("%d,%s,%s,%d,%.2f,%s\n",
			r.ID,
			r.TxHash,
			r.EventType,
			r.Severity,
			r.USDValue,
			r.CreatedAt.Format(time.RFC3339),
		))
	}

	return sb.String()
}
