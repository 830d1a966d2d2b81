package notify

import (
	"context"
	"errors"
	"fmt"
	"runtime/debug"
	"strings"

	"github.com/campusdocs/portal/internal/models"
	"github.com/campusdocs/portal/internal/pkg/mail"
	"go.uber.org/zap"
)

var (
	errNothingAccepted = errors.New("transport accepted no messages")
	errNoTransport     = errors.New("no transport configured")
)

// transportLabels maps transport names to the form used in delivery log text.
var transportLabels = map[string]string{
	"smtp":     "SMTP",
	"sendgrid": "SendGrid",
}

func transportLabel(name string) string {
	if label, ok := transportLabels[name]; ok {
		return label
	}
	return name
}

// unconfiguredTransport stands in for a missing primary so every attempt
// still ends in a logged failure.
type unconfiguredTransport struct{}

func (unconfiguredTransport) Name() string { return "unconfigured" }

func (unconfiguredTransport) Send(context.Context, mail.Message) (int, error) {
	return 0, errNoTransport
}

// Sender is implemented by Notifier. Callers that only need to dispatch a
// message depend on this.
type Sender interface {
	Notify(ctx context.Context, msg mail.Message) Outcome
}

// Notifier sends a message through the primary transport, falls back to the
// secondary one when configured, and records every attempt in the delivery
// log. It never panics and never returns an error to the caller; problems
// are reported in the Outcome.
type Notifier struct {
	log      *DeliveryLog
	primary  mail.Transport
	fallback mail.Transport
	from     string
	logger   *zap.Logger
}

type Option func(*Notifier)

// WithFallback sets the secondary transport. A nil transport disables it.
func WithFallback(t mail.Transport) Option {
	return func(n *Notifier) { n.fallback = t }
}

func WithLogger(logger *zap.Logger) Option {
	return func(n *Notifier) {
		if logger != nil {
			n.logger = logger
		}
	}
}

// NewNotifier builds a Notifier. A nil primary makes every send fail with a
// logged error instead of panicking.
func NewNotifier(log *DeliveryLog, from string, primary mail.Transport, opts ...Option) *Notifier {
	if primary == nil {
		primary = unconfiguredTransport{}
	}
	n := &Notifier{log: log, primary: primary, from: from, logger: zap.NewNop()}
	for _, opt := range opts {
		opt(n)
	}
	n.logger = n.logger.Named("Notifier")
	return n
}

// From returns the default sender address.
func (n *Notifier) From() string { return n.from }

// Notify sends msg. Delivery log writes are detached from ctx cancellation
// so the row always reflects what happened on the wire.
func (n *Notifier) Notify(ctx context.Context, msg mail.Message) (out Outcome) {
	if strings.TrimSpace(msg.From) == "" {
		msg.From = n.from
	}
	logCtx := context.WithoutCancel(ctx)
	var entry *models.DeliveryLogModel
	defer func() {
		if r := recover(); r != nil {
			n.logger.Error("notifier panic", zap.Any("panic", r), zap.ByteString("stack", debug.Stack()))
			out.fail(KindOrchestration, "", fmt.Errorf("panic: %v", r))
			if entry != nil && !out.Sent {
				n.update(logCtx, &out, entry, false, fmt.Sprintf("notifier panic: %v", r))
			}
		}
	}()

	var err error
	entry, err = n.log.Open(logCtx, msg)
	if err != nil {
		n.logger.Error("open delivery log failed, message not sent", zap.String("subject", msg.Subject), zap.Error(err))
		out.fail(KindOrchestration, "", fmt.Errorf("open delivery log: %w", err))
		return out
	}
	out.LogID = entry.ID

	if len(msg.Recipients()) == 0 {
		out.fail(KindNoRecipients, "", errors.New("message has no recipients"))
		return out
	}

	primaryName := n.primary.Name()
	stack, err := attempt(ctx, n.primary, msg)
	observeAttempt(primaryName, err == nil)
	if err == nil {
		out.Sent = true
		out.Via = primaryName
		n.update(logCtx, &out, entry, true, "")
		return out
	}

	out.fail(KindPrimary, primaryName, err)
	n.logger.Warn("primary transport failed", zap.String("transport", primaryName), zap.String("log_id", entry.ID), zap.Error(err))
	n.update(logCtx, &out, entry, false, fmt.Sprintf("%s send error: %v\n\nTraceback:\n%s", transportLabel(primaryName), err, stack))

	if n.fallback == nil {
		return out
	}

	fallbackName := n.fallback.Name()
	_, err = attempt(ctx, n.fallback, msg)
	observeAttempt(fallbackName, err == nil)
	if err == nil {
		out.Sent = true
		out.Via = fallbackName
		n.update(logCtx, &out, entry, true, fmt.Sprintf("Fallback: sent via %s.", transportLabel(fallbackName)))
		return out
	}

	out.fail(KindSecondary, fallbackName, err)
	n.logger.Warn("fallback transport failed", zap.String("transport", fallbackName), zap.String("log_id", entry.ID), zap.Error(err))
	n.update(logCtx, &out, entry, false, fmt.Sprintf("%s fallback failed: %v", transportLabel(fallbackName), err))
	return out
}

func (n *Notifier) update(ctx context.Context, out *Outcome, entry *models.DeliveryLogModel, sent bool, errText string) {
	if err := n.log.Update(ctx, entry, sent, errText); err != nil {
		n.logger.Error("update delivery log failed", zap.String("log_id", entry.ID), zap.Bool("sent", sent), zap.Error(err))
		out.fail(KindOrchestration, "", fmt.Errorf("update delivery log: %w", err))
	}
}

// attempt runs one transport. A panic or a zero accepted count becomes an
// error; stack is the goroutine trace captured at the point of failure.
func attempt(ctx context.Context, t mail.Transport, msg mail.Message) (stack []byte, err error) {
	defer func() {
		if r := recover(); r != nil {
			stack = debug.Stack()
			err = fmt.Errorf("panic: %v", r)
		}
	}()
	count, err := t.Send(ctx, msg)
	if err == nil && count < 1 {
		err = errNothingAccepted
	}
	if err != nil {
		stack = debug.Stack()
	}
	return stack, err
}
