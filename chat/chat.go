// Package chat proxies the site's chat widget to an OpenAI compatible completion API.
package chat

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/jrsteele09/go-portal/internal/metrics"
	"github.com/rs/zerolog/log"
	"github.com/sony/gobreaker"
)

const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"

	DefaultHistoryLimit = 12
	maxMessageLength    = 2000
)

var (
	ErrEmptyConversation = errors.New("conversation has no user message")
	ErrUpstream          = errors.New("chat upstream failed")
	ErrUnavailable       = errors.New("chat temporarily unavailable")
)

type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// Client calls POST {baseURL}/chat/completions
type Client struct {
	baseURL      string
	apiKey       string
	model        string
	systemPrompt string
	historyLimit int
	httpClient   *http.Client
	breaker      *gobreaker.CircuitBreaker
	metrics      *metrics.Metrics
}

// Option defines a function type to modify the Client instance.
type Option func(*Client)

func WithSystemPrompt(prompt string) Option {
	return func(c *Client) {
		c.systemPrompt = prompt
	}
}

func WithHistoryLimit(n int) Option {
	return func(c *Client) {
		if n > 0 {
			c.historyLimit = n
		}
	}
}

func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		c.httpClient.Timeout = d
	}
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(c *Client) {
		c.metrics = m
	}
}

// WithBreakerSettings replaces the circuit breaker settings
func WithBreakerSettings(st gobreaker.Settings) Option {
	return func(c *Client) {
		c.breaker = gobreaker.NewCircuitBreaker(st)
	}
}

func New(baseURL, apiKey, model string, options ...Option) (*Client, error) {
	if baseURL == "" {
		return nil, errors.New("[chat New] base url is required")
	}
	if model == "" {
		return nil, errors.New("[chat New] model is required")
	}
	c := &Client{
		baseURL:      strings.TrimRight(baseURL, "/"),
		apiKey:       apiKey,
		model:        model,
		historyLimit: DefaultHistoryLimit,
		httpClient:   &http.Client{Timeout: 30 * time.Second},
		breaker: gobreaker.NewCircuitBreaker(gobreaker.Settings{
			Name:        "chat-completions",
			MaxRequests: 1,
			Interval:    time.Minute,
			Timeout:     30 * time.Second,
			ReadyToTrip: func(counts gobreaker.Counts) bool {
				return counts.ConsecutiveFailures >= 5
			},
			OnStateChange: func(name string, from, to gobreaker.State) {
				log.Warn().Str("breaker", name).Str("from", from.String()).Str("to", to.String()).Msg("circuit breaker state changed")
			},
		}),
	}
	for _, opt := range options {
		opt(c)
	}
	return c, nil
}

// Prepare drops system and empty messages sent by the browser, truncates long ones, keeps
// the last historyLimit and puts the configured system prompt first.
func (c *Client) Prepare(history []Message) ([]Message, error) {
	kept := make([]Message, 0, len(history))
	for _, m := range history {
		content := strings.TrimSpace(m.Content)
		if content == "" || (m.Role != RoleUser && m.Role != RoleAssistant) {
			continue
		}
		content = truncate(content, maxMessageLength)
		kept = append(kept, Message{Role: m.Role, Content: content})
	}
	if len(kept) == 0 || kept[len(kept)-1].Role != RoleUser {
		return nil, ErrEmptyConversation
	}
	if len(kept) > c.historyLimit {
		kept = kept[len(kept)-c.historyLimit:]
	}
	if c.systemPrompt != "" {
		kept = append([]Message{{Role: RoleSystem, Content: c.systemPrompt}}, kept...)
	}
	return kept, nil
}

// truncate cuts s to at most n bytes without splitting a rune
func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	for n > 0 && !utf8.RuneStart(s[n]) {
		n--
	}
	return s[:n]
}

type completionRequest struct {
	Model    string    `json:"model"`
	Messages []Message `json:"messages"`
}

type completionResponse struct {
	Choices []struct {
		Message Message `json:"message"`
	} `json:"choices"`
	Error *struct {
		Message string `json:"message"`
	} `json:"error"`
}

// Complete returns the assistant's reply to history
func (c *Client) Complete(ctx context.Context, history []Message) (Message, error) {
	messages, err := c.Prepare(history)
	if err != nil {
		return Message{}, err
	}

	if err := ctx.Err(); err != nil {
		return Message{}, err
	}

	// caller cancellations are not upstream failures
	var abandoned error
	result, err := c.breaker.Execute(func() (interface{}, error) {
		reply, err := c.call(ctx, messages)
		if err != nil && ctx.Err() != nil {
			abandoned = ctx.Err()
			return nil, nil
		}
		return reply, err
	})
	switch {
	case abandoned != nil:
		c.metrics.ObserveChat(metrics.OutcomeSkipped)
		log.Debug().Err(abandoned).Msg("chat request abandoned by caller")
		return Message{}, abandoned
	case errors.Is(err, gobreaker.ErrOpenState), errors.Is(err, gobreaker.ErrTooManyRequests):
		c.metrics.ObserveChat(metrics.OutcomeSkipped)
		return Message{}, fmt.Errorf("%w: %w", ErrUnavailable, err)
	case err != nil:
		c.metrics.ObserveChat(metrics.OutcomeFailure)
		log.Error().Err(err).Msg("chat completion failed")
		return Message{}, fmt.Errorf("%w: %w", ErrUpstream, err)
	}
	c.metrics.ObserveChat(metrics.OutcomeSuccess)
	return result.(Message), nil
}

func (c *Client) call(ctx context.Context, messages []Message) (Message, error) {
	body, err := json.Marshal(completionRequest{Model: c.model, Messages: messages})
	if err != nil {
		return Message{}, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/chat/completions", bytes.NewReader(body))
	if err != nil {
		return Message{}, err
	}
	req.Header.Set("Content-Type", "application/json")
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return Message{}, err
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return Message{}, err
	}
	var out completionResponse
	decodeErr := json.Unmarshal(data, &out)
	if resp.StatusCode != http.StatusOK {
		if decodeErr == nil && out.Error != nil && out.Error.Message != "" {
			return Message{}, fmt.Errorf("status %d: %s", resp.StatusCode, out.Error.Message)
		}
		return Message{}, fmt.Errorf("status %d", resp.StatusCode)
	}
	if decodeErr != nil {
		return Message{}, fmt.Errorf("decode completion: %w", decodeErr)
	}
	if len(out.Choices) == 0 || strings.TrimSpace(out.Choices[0].Message.Content) == "" {
		return Message{}, errors.New("completion has no choices")
	}
	reply := out.Choices[0].Message
	reply.Role = RoleAssistant
	return reply, nil
}
