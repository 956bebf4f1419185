// Package telex implements the outbound notification sink used to push
// generated digests into a channel.
package telex

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/rs/zerolog"

	perrors "github.com/p-blackswan/devtrack-agent/internal/errors"
	"github.com/p-blackswan/devtrack-agent/internal/metrics"
)

const defaultTimeout = 10 * time.Second

// Client posts messages to the configured outbound URL.
type Client struct {
	url     string
	client  *http.Client
	metrics *metrics.Metrics
	logger  zerolog.Logger
}

// Option configures the client.
type Option func(*Client)

// WithHTTPClient overrides the HTTP client (for tests).
func WithHTTPClient(c *http.Client) Option {
	return func(cl *Client) { cl.client = c }
}

// WithMetrics attaches external-call counters.
func WithMetrics(m *metrics.Metrics) Option {
	return func(cl *Client) { cl.metrics = m }
}

// WithTimeout sets the request timeout.
func WithTimeout(d time.Duration) Option {
	return func(cl *Client) { cl.client.Timeout = d }
}

// NewClient constructs a client for the given outbound URL.
func NewClient(url string, logger zerolog.Logger, opts ...Option) *Client {
	c := &Client{
		url:    url,
		client: &http.Client{Timeout: defaultTimeout},
		logger: logger.With().Str("component", "telex").Logger(),
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

type outboundMessage struct {
	Channel string       `json:"channel"`
	Type    string       `json:"type"`
	Body    outboundBody `json:"body"`
}

type outboundBody struct {
	Text string `json:"text"`
}

// PostMessage delivers one message to the outbound channel. Implements
// digest.Notifier; the caller treats delivery as fire-and-forget.
func (c *Client) PostMessage(channel, text string) error {
	payload := outboundMessage{Channel: channel, Type: "message", Body: outboundBody{Text: text}}
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal outbound message: %w", err)
	}

	resp, err := c.client.Post(c.url, "application/json", bytes.NewReader(body))
	if err != nil {
		c.metrics.ObserveExternalCall("telex", "error")
		return fmt.Errorf("telex http: %w", perrors.Classify(err))
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		raw, _ := io.ReadAll(resp.Body)
		c.metrics.ObserveExternalCall("telex", "error")
		return perrors.NewAPIError("telex", resp.StatusCode, string(raw))
	}

	c.metrics.ObserveExternalCall("telex", "ok")
	return nil
}
