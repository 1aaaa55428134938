// Package notify implements best-effort alert notification channels.
//
// Every channel is optional: absent configuration disables it at startup.
// Dispatch failures are logged by the caller and never retried.
package notify

import (
	"context"

	"mempool-sentinel/internal/domain"
)

// Notifier is one notification channel.
type Notifier interface {
	// Name identifies the channel in logs and metrics.
	Name() string

	// Send dispatches one alert. Best-effort: the caller swallows errors.
	Send(ctx context.Context, alert *domain.Alert) error
}
