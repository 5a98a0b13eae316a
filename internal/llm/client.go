// Package llm wraps the chat completion endpoint used for answer generation,
// agent insights and drawing enrichment.
package llm

import (
	"context"
	"fmt"
	"time"

	openai "github.com/sashabaranov/go-openai"

	"buildrag/internal/config"
	"buildrag/internal/logging"
	"buildrag/internal/retry"
)

// Message is one chat turn.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// Chat roles.
const (
	RoleSystem    = openai.ChatMessageRoleSystem
	RoleUser      = openai.ChatMessageRoleUser
	RoleAssistant = openai.ChatMessageRoleAssistant
)

// Client is the chat completion client. Every call carries the configured
// deadline and retries transient failures with backoff.
type Client struct {
	client  *openai.Client
	cfg     *config.LLMConfig
	timeout time.Duration
	logger  logging.Logger
}

// NewClient builds the client from config.
func NewClient(cfg *config.LLMConfig) (*Client, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("LLM API key is required")
	}
	clientCfg := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		clientCfg.BaseURL = cfg.BaseURL
	}
	timeout := 60 * time.Second
	if cfg.TimeoutSeconds > 0 {
		timeout = time.Duration(cfg.TimeoutSeconds) * time.Second
	}
	return &Client{
		client:  openai.NewClientWithConfig(clientCfg),
		cfg:     cfg,
		timeout: timeout,
		logger:  logging.WithComponent("llm"),
	}, nil
}

// Chat sends the message list and returns the assistant reply.
func (c *Client) Chat(ctx context.Context, messages []Message) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	chatMessages := make([]openai.ChatCompletionMessage, len(messages))
	for i, m := range messages {
		chatMessages[i] = openai.ChatCompletionMessage{Role: m.Role, Content: m.Content}
	}

	retryCfg := retry.DefaultConfig()
	if c.cfg.MaxRetries > 0 {
		retryCfg.MaxAttempts = c.cfg.MaxRetries
	}

	start := time.Now()
	var resp openai.ChatCompletionResponse
	err := retry.Do(ctx, retryCfg, func(ctx context.Context) error {
		var callErr error
		resp, callErr = c.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
			Model:       c.cfg.Model,
			Messages:    chatMessages,
			Temperature: c.cfg.Temperature,
			MaxTokens:   c.cfg.MaxTokens,
		})
		return callErr
	})
	if err != nil {
		return "", fmt.Errorf("chat completion failed: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("chat completion returned no choices")
	}

	c.logger.Debug("chat completion",
		"model", c.cfg.Model,
		"took_ms", time.Since(start).Milliseconds(),
		"prompt_tokens", resp.Usage.PromptTokens,
		"completion_tokens", resp.Usage.CompletionTokens,
	)
	return resp.Choices[0].Message.Content, nil
}

// Complete is the single-shot system+user form used by enrichment.
func (c *Client) Complete(ctx context.Context, system, user string) (string, error) {
	return c.Chat(ctx, []Message{
		{Role: RoleSystem, Content: system},
		{Role: RoleUser, Content: user},
	})
}

// Model returns the configured model name.
func (c *Client) Model() string {
	return c.cfg.Model
}
