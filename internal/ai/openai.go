package ai

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/internlog/internlog/internal/diary"
	openai "github.com/openai/openai-go/v3"
	"github.com/openai/openai-go/v3/option"
	"github.com/openai/openai-go/v3/shared"
)

// ChatProvider talks to any OpenAI-compatible chat-completions endpoint.
// OpenAI, Groq, Cerebras and Gemini (compat mode) all speak this protocol,
// so one implementation covers the whole registry; only the base URL,
// model and credential differ.
type ChatProvider struct {
	name    string
	model   string
	timeout time.Duration
	client  openai.Client
	logger  *slog.Logger
}

func NewChatProvider(name, baseURL, apiKey, model string, timeout time.Duration, logger *slog.Logger) *ChatProvider {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	if timeout <= 0 {
		timeout = 120 * time.Second
	}

	opts := []option.RequestOption{
		option.WithAPIKey(apiKey),
		option.WithMaxRetries(0), // the chain owns retry policy
	}
	if baseURL != "" {
		opts = append(opts, option.WithBaseURL(baseURL))
	}

	return &ChatProvider{
		name:    name,
		model:   model,
		timeout: timeout,
		client:  openai.NewClient(opts...),
		logger:  logger,
	}
}

func (c *ChatProvider) Name() string { return c.name }

func (c *ChatProvider) Synthesize(ctx context.Context, req Request) ([]diary.Entry, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	open := len(req.OpenSlots())
	systemPrompt := buildSystemPrompt(req)
	userPrompt := buildUserPrompt(req)

	c.logger.Debug("synthesis request",
		"provider", c.name,
		"model", c.model,
		"open_slots", open,
		"system_prompt_len", len(systemPrompt),
		"user_prompt_len", len(userPrompt),
	)

	start := time.Now()
	resp, err := c.client.Chat.Completions.New(ctx, openai.ChatCompletionNewParams{
		Model: shared.ChatModel(c.model),
		Messages: []openai.ChatCompletionMessageParamUnion{
			openai.SystemMessage(systemPrompt),
			openai.UserMessage(userPrompt),
		},
		Temperature: openai.Float(0.7),
		MaxTokens:   openai.Int(int64(min(8192, open*350+500))),
		ResponseFormat: openai.ChatCompletionNewParamsResponseFormatUnion{
			OfJSONSchema: &shared.ResponseFormatJSONSchemaParam{
				JSONSchema: shared.ResponseFormatJSONSchemaJSONSchemaParam{
					Name:   "diary_entries",
					Schema: ResponseSchema(),
					Strict: openai.Bool(true),
				},
			},
		},
	})
	elapsed := time.Since(start)

	if err != nil {
		c.logger.Warn("synthesis request failed",
			"provider", c.name,
			"elapsed", elapsed,
			"error", err,
		)
		return nil, c.classify(err)
	}

	if len(resp.Choices) == 0 {
		return nil, &MalformedResponseError{Provider: c.name, Reason: "response has no choices"}
	}
	raw := resp.Choices[0].Message.Content

	c.logger.Debug("synthesis response",
		"provider", c.name,
		"elapsed", elapsed,
		"content_len", len(raw),
		"content", truncateStr(raw, 2000),
	)

	return parseResponse(c.name, raw, req)
}

// classify maps transport errors onto the chain's taxonomy so the fallback
// loop can decide between fall-through and retry.
func (c *ChatProvider) classify(err error) error {
	if errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("%s: request timed out: %w", c.name, context.DeadlineExceeded)
	}

	var apierr *openai.Error
	if errors.As(err, &apierr) {
		switch apierr.StatusCode {
		case 429, 402:
			return &QuotaExceededError{Provider: c.name, Err: err}
		case 401, 403:
			return &AuthError{Provider: c.name, Err: err}
		}
	}
	return fmt.Errorf("%s: %w", c.name, err)
}
