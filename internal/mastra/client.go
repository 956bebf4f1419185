// Package mastra implements the client for the external conversational
// agent. The call is best-effort: any failure is logged and swallowed.
package mastra

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/rs/zerolog"

	"github.com/p-blackswan/devtrack-agent/internal/bot"
	perrors "github.com/p-blackswan/devtrack-agent/internal/errors"
	"github.com/p-blackswan/devtrack-agent/internal/metrics"
)

const defaultTimeout = 15 * time.Second

// Client calls the external agent endpoint.
type Client struct {
	url     string
	apiKey  string
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

// NewClient constructs a client for the given agent URL. apiKey may be empty.
func NewClient(url, apiKey string, logger zerolog.Logger, opts ...Option) *Client {
	c := &Client{
		url:    url,
		apiKey: apiKey,
		client: &http.Client{Timeout: defaultTimeout},
		logger: logger.With().Str("component", "mastra").Logger(),
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

// ---- wire types ----

type agentRequest struct {
	Input        string       `json:"input"`
	SystemPrompt string       `json:"system_prompt,omitempty"`
	Metadata     bot.Metadata `json:"metadata"`
}

type agentResponse struct {
	Output  string `json:"output"`
	Actions []any  `json:"actions,omitempty"`
}

// Query sends the input to the external agent and returns its reply, or nil
// when the call fails or yields no usable output. Implements
// bot.ExternalAgent.
func (c *Client) Query(ctx context.Context, input, systemPrompt string, md bot.Metadata) *bot.AgentReply {
	resp, err := c.call(ctx, agentRequest{Input: input, SystemPrompt: systemPrompt, Metadata: md})
	if err != nil {
		c.metrics.ObserveExternalCall("mastra", "error")
		c.logger.Error().Err(err).Str("url", c.url).Msg("external agent call failed")
		return nil
	}
	c.metrics.ObserveExternalCall("mastra", "ok")
	if resp.Output == "" {
		return nil
	}
	return &bot.AgentReply{Output: resp.Output, Actions: resp.Actions}
}

func (c *Client) call(ctx context.Context, req agentRequest) (*agentResponse, error) {
	body, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	if c.apiKey != "" {
		httpReq.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	httpResp, err := c.client.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("mastra http: %w", perrors.Classify(err))
	}
	defer httpResp.Body.Close()

	raw, err := io.ReadAll(httpResp.Body)
	if err != nil {
		return nil, fmt.Errorf("read body: %w", err)
	}
	if httpResp.StatusCode < 200 || httpResp.StatusCode >= 300 {
		return nil, perrors.NewAPIError("mastra", httpResp.StatusCode, string(raw))
	}

	var out agentResponse
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, fmt.Errorf("unmarshal response: %w", err)
	}
	return &out, nil
}
