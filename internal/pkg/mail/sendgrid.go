package mail

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

const (
	DefaultSendGridEndpoint = "https://api.sendgrid.com/v3/mail/send"
	sendGridTimeout         = 10 * time.Second
)

// SendGridTransport posts to the SendGrid v3 mail API.
type SendGridTransport struct {
	apiKey   string
	endpoint string
	client   *http.Client
}

func NewSendGridTransport(apiKey, endpoint string) *SendGridTransport {
	endpoint = strings.TrimSpace(endpoint)
	if endpoint == "" {
		endpoint = DefaultSendGridEndpoint
	}
	return &SendGridTransport{
		apiKey:   apiKey,
		endpoint: endpoint,
		client:   &http.Client{Timeout: sendGridTimeout},
	}
}

func (t *SendGridTransport) Name() string { return "sendgrid" }

type sendGridAddress struct {
	Email string `json:"email"`
}

type sendGridPersonalization struct {
	To []sendGridAddress `json:"to"`
}

type sendGridContent struct {
	Type  string `json:"type"`
	Value string `json:"value"`
}

type sendGridPayload struct {
	Personalizations []sendGridPersonalization `json:"personalizations"`
	From             sendGridAddress           `json:"from"`
	Subject          string                    `json:"subject"`
	Content          []sendGridContent         `json:"content"`
}

// StatusError is returned when SendGrid answers with anything but 200/202.
type StatusError struct {
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("sendgrid returned %d: %s", e.StatusCode, e.Body)
}

func (t *SendGridTransport) Send(ctx context.Context, msg Message) (int, error) {
	to := msg.Recipients()
	if len(to) == 0 {
		return 0, nil
	}
	addrs := make([]sendGridAddress, 0, len(to))
	for _, addr := range to {
		addrs = append(addrs, sendGridAddress{Email: addr})
	}
	payload, err := json.Marshal(sendGridPayload{
		Personalizations: []sendGridPersonalization{{To: addrs}},
		From:             sendGridAddress{Email: msg.From},
		Subject:          msg.Subject,
		Content:          []sendGridContent{{Type: "text/plain", Value: msg.Body}},
	})
	if err != nil {
		return 0, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, t.endpoint, bytes.NewReader(payload))
	if err != nil {
		return 0, err
	}
	req.Header.Set("Authorization", "Bearer "+t.apiKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := t.client.Do(req)
	if err != nil {
		return 0, err
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusOK || resp.StatusCode == http.StatusAccepted {
		_, _ = io.Copy(io.Discard, resp.Body)
		return 1, nil
	}
	body, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
	return 0, &StatusError{StatusCode: resp.StatusCode, Body: strings.TrimSpace(string(body))}
}
