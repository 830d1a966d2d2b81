package mail

import (
	"context"
	"strings"

	"github.com/campusdocs/portal/internal/config"
	"go.uber.org/zap"
)

// Message is a single plain-text email.
type Message struct {
	From    string
	To      []string
	Subject string
	Body    string
}

// Recipients returns the trimmed, non-empty recipient addresses.
func (m Message) Recipients() []string {
	out := make([]string, 0, len(m.To))
	for _, addr := range m.To {
		if addr = strings.TrimSpace(addr); addr != "" {
			out = append(out, addr)
		}
	}
	return out
}

// Transport delivers a message and reports how many messages the remote end
// accepted. A nil error with a zero count means nothing was delivered.
type Transport interface {
	Name() string
	Send(ctx context.Context, msg Message) (int, error)
}

// BuildTransports returns the SMTP transport and, when an API key is
// configured, the SendGrid fallback. fallback is nil otherwise.
func BuildTransports(cfg config.MailRuntimeConfig, logger *zap.Logger) (primary, fallback Transport) {
	primary = NewSMTPTransport(SMTPConfig{
		Host:       cfg.SMTP.Host,
		Port:       cfg.SMTP.Port,
		User:       cfg.SMTP.User,
		Pass:       cfg.SMTP.Pass,
		DebugLevel: cfg.SMTPDebugLevel,
	}, logger)
	if cfg.FallbackEnabled() {
		fallback = NewSendGridTransport(cfg.SendGrid.APIKey, cfg.SendGrid.Endpoint)
	}
	return primary, fallback
}
