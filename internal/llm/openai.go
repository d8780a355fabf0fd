package llm

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/sashabaranov/go-openai"
	"go.uber.org/zap"
)

// DefaultTimeout bounds a single model call.
const DefaultTimeout = 15 * time.Second

// OpenAIConfig configures OpenAIModel.
type OpenAIConfig struct {
	APIKey    string
	BaseURL   string
	Model     string
	MaxTokens int
	Timeout   time.Duration
}

// OpenAIModel talks to any OpenAI compatible chat completion endpoint.
type OpenAIModel struct {
	client    *openai.Client
	model     string
	maxTokens int
	timeout   time.Duration
	logger    *zap.Logger
}

func NewOpenAIModel(cfg OpenAIConfig, logger *zap.Logger) *OpenAIModel {
	clientCfg := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		clientCfg.BaseURL = cfg.BaseURL
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	model := cfg.Model
	if model == "" {
		model = openai.GPT4oMini
	}
	return &OpenAIModel{
		client:    openai.NewClientWithConfig(clientCfg),
		model:     model,
		maxTokens: cfg.MaxTokens,
		timeout:   timeout,
		logger:    logger.With(zap.String("component", "llm")),
	}
}

func (m *OpenAIModel) Invoke(ctx context.Context, req Request) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, m.timeout)
	defer cancel()

	model := req.Model
	if model == "" {
		model = m.model
	}
	maxTokens := req.MaxTokens
	if maxTokens == 0 {
		maxTokens = m.maxTokens
	}

	chatReq := openai.ChatCompletionRequest{
		Model:       model,
		Messages:    toOpenAIMessages(req.Messages),
		MaxTokens:   maxTokens,
		Temperature: req.Temperature,
	}
	if req.JSON {
		chatReq.ResponseFormat = &openai.ChatCompletionResponseFormat{
			Type: openai.ChatCompletionResponseFormatTypeJSONObject,
		}
	}

	start := time.Now()
	resp, err := m.client.CreateChatCompletion(ctx, chatReq)
	if err != nil {
		m.logger.Error("Model invocation failed",
			zap.Error(err),
			zap.String("model", model),
			zap.Duration("elapsed", time.Since(start)))
		return "", classifyError(ctx, err)
	}
	if len(resp.Choices) == 0 {
		return "", ErrEmptyResponse
	}

	m.logger.Debug("Model invocation finished",
		zap.String("model", model),
		zap.Int("total_tokens", resp.Usage.TotalTokens),
		zap.Duration("elapsed", time.Since(start)))

	return strings.TrimSpace(resp.Choices[0].Message.Content), nil
}

func classifyError(ctx context.Context, err error) error {
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return fmt.Errorf("%w: %v", ErrTimeout, err)
	}
	return fmt.Errorf("%w: %v", ErrTransport, err)
}

func toOpenAIMessages(msgs []Message) []openai.ChatCompletionMessage {
	out := make([]openai.ChatCompletionMessage, 0, len(msgs))
	for _, msg := range msgs {
		role := openai.ChatMessageRoleUser
		switch msg.Role {
		case RoleSystem:
			role = openai.ChatMessageRoleSystem
		case RoleAssistant:
			role = openai.ChatMessageRoleAssistant
		}
		out = append(out, openai.ChatCompletionMessage{Role: role, Content: msg.Content})
	}
	return out
}
