package notify

import (
	"context"
	"fmt"
	"net/smtp"
	"strings"

	"mempool-sentinel/internal/domain"
)

// EmailConfig holds SMTP settings for the transactional email channel.
type EmailConfig struct {
	Host     string
	Port     int
	Username string
	Password string
	From     string
	To       []string
}

// EmailNotifier sends alerts as plain-text transactional email.
// No mail library is used; net/smtp covers a single plain-auth send.
type EmailNotifier struct {
	cfg EmailConfig

	// sendFn is swappable for tests; defaults to smtp.SendMail.
	sendFn func(addr string, a smtp.Auth, from string, to []string, msg []byte) error
}

// NewEmailNotifier creates an email channel.
func NewEmailNotifier(cfg EmailConfig) *EmailNotifier {
	return &EmailNotifier{
		cfg:    cfg,
		sendFn: smtp.SendMail,
	}
}

// Compile-time interface check.
var _ Notifier = (*EmailNotifier)(nil)

// Name identifies the channel.
func (n *EmailNotifier) Name() string { return "email" }

// Send delivers the alert to the configured recipient list.
func (n *EmailNotifier) Send(_ context.Context, alert *domain.Alert) error {
	if len(n.cfg.To) == 0 {
		return fmt.Errorf("no recipients configured")
	}

	subject := fmt.Sprintf("Mempool alert: severity %d, $%.0f", alert.Severity, alert.USDValue)

	var b strings.Builder
	fmt.Fprintf(&b, "From: %s\r\n", n.cfg.From)
	fmt.Fprintf(&b, "To: %s\r\n", strings.Join(n.cfg.To, ", "))
	fmt.Fprintf(&b, "Subject: %s\r\n", subject)
	b.WriteString("MIME-Version: 1.0\r\nContent-Type: text/plain; charset=utf-8\r\n\r\n")
	b.WriteString(OneLine(alert))
	b.WriteString("\r\n")

	addr := fmt.Sprintf("%s:%d", n.cfg.Host, n.cfg.Port)
	var auth smtp.Auth
	if n.cfg.Username != "" {
		auth = smtp.PlainAuth("", n.cfg.Username, n.cfg.Password, n.cfg.Host)
	}

	if err := n.sendFn(addr, auth, n.cfg.From, n.cfg.To, []byte(b.String())); err != nil {
		return fmt.Errorf("send mail: %w", err)
	}
	return nil
}
