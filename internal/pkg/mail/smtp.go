package mail

import (
	"bytes"
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"mime"
	"mime/multipart"
	"net"
	"net/smtp"
	"net/textproto"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

const defaultSMTPTimeout = 30 * time.Second

var errAllRecipientsRefused = errors.New("all recipients were refused")

type SMTPConfig struct {
	Host string
	Port int
	User string
	Pass string
	// DebugLevel > 0 logs every protocol step. It never changes behaviour.
	DebugLevel int
	Timeout    time.Duration
}

// SMTPTransport sends through a relay with net/smtp. STARTTLS is used when
// the server offers it; port 465 uses implicit TLS.
type SMTPTransport struct {
	cfg    SMTPConfig
	logger *zap.Logger
	dialFn func(ctx context.Context, addr string) (net.Conn, error)
}

func NewSMTPTransport(cfg SMTPConfig, logger *zap.Logger) *SMTPTransport {
	if cfg.Port == 0 {
		cfg.Port = 25
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaultSMTPTimeout
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &SMTPTransport{cfg: cfg, logger: logger.Named("SMTP")}
}

func (t *SMTPTransport) Name() string { return "smtp" }

func (t *SMTPTransport) Send(ctx context.Context, msg Message) (int, error) {
	to := msg.Recipients()
	if len(to) == 0 {
		return 0, nil
	}
	payload, err := BuildMIME(msg, time.Now())
	if err != nil {
		return 0, fmt.Errorf("build message: %w", err)
	}

	addr := net.JoinHostPort(t.cfg.Host, strconv.Itoa(t.cfg.Port))
	t.debug("dial", zap.String("addr", addr))
	conn, err := t.dial(ctx, addr)
	if err != nil {
		return 0, fmt.Errorf("dial %s: %w", addr, err)
	}
	deadline := time.Now().Add(t.cfg.Timeout)
	if d, ok := ctx.Deadline(); ok && d.Before(deadline) {
		deadline = d
	}
	if err := conn.SetDeadline(deadline); err != nil {
		conn.Close()
		return 0, fmt.Errorf("set deadline: %w", err)
	}

	client, err := smtp.NewClient(conn, t.cfg.Host)
	if err != nil {
		conn.Close()
		return 0, fmt.Errorf("smtp handshake: %w", err)
	}
	defer client.Close()

	if ok, _ := client.Extension("STARTTLS"); ok && t.cfg.Port != 465 {
		t.debug("starttls")
		if err := client.StartTLS(&tls.Config{ServerName: t.cfg.Host}); err != nil {
			return 0, fmt.Errorf("starttls: %w", err)
		}
	}
	if t.cfg.User != "" {
		if ok, _ := client.Extension("AUTH"); ok {
			t.debug("auth", zap.String("user", t.cfg.User))
			if err := client.Auth(smtp.PlainAuth("", t.cfg.User, t.cfg.Pass, t.cfg.Host)); err != nil {
				return 0, fmt.Errorf("auth: %w", err)
			}
		}
	}

	t.debug("mail from", zap.String("from", msg.From))
	if err := client.Mail(msg.From); err != nil {
		return 0, fmt.Errorf("mail from: %w", err)
	}
	accepted := 0
	for _, rcpt := range to {
		if err := client.Rcpt(rcpt); err != nil {
			t.logger.Warn("recipient refused", zap.String("rcpt", rcpt), zap.Error(err))
			continue
		}
		t.debug("rcpt to", zap.String("rcpt", rcpt))
		accepted++
	}
	if accepted == 0 {
		return 0, errAllRecipientsRefused
	}

	w, err := client.Data()
	if err != nil {
		return 0, fmt.Errorf("data: %w", err)
	}
	if _, err := w.Write(payload); err != nil {
		return 0, fmt.Errorf("write body: %w", err)
	}
	if err := w.Close(); err != nil {
		return 0, fmt.Errorf("end data: %w", err)
	}
	t.debug("quit", zap.Int("accepted_rcpts", accepted))
	if err := client.Quit(); err != nil {
		t.logger.Warn("quit failed after delivery", zap.Error(err))
	}
	return 1, nil
}

func (t *SMTPTransport) dial(ctx context.Context, addr string) (net.Conn, error) {
	if t.dialFn != nil {
		return t.dialFn(ctx, addr)
	}
	dialer := &net.Dialer{Timeout: t.cfg.Timeout}
	if t.cfg.Port == 465 {
		td := &tls.Dialer{NetDialer: dialer, Config: &tls.Config{ServerName: t.cfg.Host}}
		return td.DialContext(ctx, "tcp", addr)
	}
	return dialer.DialContext(ctx, "tcp", addr)
}

func (t *SMTPTransport) debug(step string, fields ...zap.Field) {
	if t.cfg.DebugLevel <= 0 {
		return
	}
	t.logger.Info("smtp "+step, fields...)
}

// BuildMIME renders msg as multipart/alternative with the plain body and an
// HTML rendering of it.
func BuildMIME(msg Message, now time.Time) ([]byte, error) {
	html, err := RenderHTML(msg.Body)
	if err != nil {
		return nil, err
	}

	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	for _, part := range []struct {
		contentType string
		content     string
	}{
		{"text/plain; charset=UTF-8", msg.Body},
		{"text/html; charset=UTF-8", html},
	} {
		pw, err := mw.CreatePart(textproto.MIMEHeader{
			"Content-Type":              {part.contentType},
			"Content-Transfer-Encoding": {"8bit"},
		})
		if err != nil {
			return nil, err
		}
		if _, err := pw.Write([]byte(part.content)); err != nil {
			return nil, err
		}
	}
	if err := mw.Close(); err != nil {
		return nil, err
	}

	var out bytes.Buffer
	out.WriteString("MIME-Version: 1.0\r\n")
	out.WriteString(fmt.Sprintf("From: %s\r\n", msg.From))
	out.WriteString(fmt.Sprintf("To: %s\r\n", strings.Join(msg.Recipients(), ", ")))
	out.WriteString(fmt.Sprintf("Subject: %s\r\n", mime.QEncoding.Encode("utf-8", msg.Subject)))
	out.WriteString(fmt.Sprintf("Date: %s\r\n", now.Format(time.RFC1123Z)))
	out.WriteString(fmt.Sprintf("Message-ID: <%s@%s>\r\n", uuid.NewString(), messageIDHost(msg.From)))
	out.WriteString(fmt.Sprintf("Content-Type: multipart/alternative; boundary=%q\r\n", mw.Boundary()))
	out.WriteString("\r\n")
	out.Write(body.Bytes())
	return out.Bytes(), nil
}

func messageIDHost(from string) string {
	if i := strings.LastIndex(from, "@"); i >= 0 && i < len(from)-1 {
		return strings.Trim(from[i+1:], "> ")
	}
	return "localhost"
}
