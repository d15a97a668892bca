package llm

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/pavelanni/exammgr/internal/llm/prompts"
	"github.com/pavelanni/exammgr/internal/model"

	openai "github.com/sashabaranov/go-openai"
)

// Supported providers. Both speak the OpenAI chat completions protocol.
const (
	ProviderOpenAI = "openai"
	ProviderGemini = "gemini"
)

// GeminiBaseURL is Gemini's OpenAI-compatible endpoint.
const GeminiBaseURL = "https://generativelanguage.googleapis.com/v1beta/openai/"

// ErrNoQuestions is returned when the model's reply holds no usable question.
var ErrNoQuestions = errors.New("LLM returned no usable questions")

// Client generates exam questions through an OpenAI-compatible API.
type Client struct {
	api      *openai.Client
	model    string
	provider string
	hasKey   bool
}

// New creates a new LLM client. An empty baseURL selects the provider's default.
func New(provider, baseURL, apiKey, modelName string) (*Client, error) {
	provider = strings.ToLower(strings.TrimSpace(provider))
	if provider == "" {
		provider = ProviderOpenAI
	}
	config := openai.DefaultConfig(apiKey)
	switch provider {
	case ProviderOpenAI:
	case ProviderGemini:
		config.BaseURL = GeminiBaseURL
	default:
		return nil, fmt.Errorf("unknown LLM provider %q: %w", provider, model.ErrValidation)
	}
	if baseURL != "" {
		config.BaseURL = baseURL
	}
	return &Client{
		api:      openai.NewClientWithConfig(config),
		model:    modelName,
		provider: provider,
		hasKey:   strings.TrimSpace(apiKey) != "",
	}, nil
}

// Provider returns the configured provider name.
func (c *Client) Provider() string { return c.provider }

// Ping checks that the endpoint is reachable by listing models.
func (c *Client) Ping(ctx context.Context) error {
	if _, err := c.api.ListModels(ctx); err != nil {
		return fmt.Errorf("list models: %w", err)
	}
	return nil
}

// GenerateQuestions asks the model for count multiple choice questions on topic.
// Replies may be a bare JSON array, an array inside markdown fences or an object
// with a "questions" array. Incomplete entries are dropped.
func (c *Client) GenerateQuestions(ctx context.Context, topic, difficulty string, count int) ([]model.QuestionDraft, error) {
	switch {
	case strings.TrimSpace(topic) == "":
		return nil, fmt.Errorf("topic is required: %w", model.ErrValidation)
	case strings.TrimSpace(difficulty) == "":
		return nil, fmt.Errorf("difficulty is required: %w", model.ErrValidation)
	case count <= 0:
		return nil, fmt.Errorf("question count must be positive: %w", model.ErrValidation)
	case !c.hasKey:
		return nil, fmt.Errorf("%s API key is not configured: %w", c.provider, model.ErrValidation)
	}

	prompt, err := prompts.BuildGeneratePrompt(topic, difficulty, count)
	if err != nil {
		return nil, fmt.Errorf("build prompt: %w", err)
	}

	resp, err := c.api.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: c.model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: prompts.SystemPrompt},
			{Role: openai.ChatMessageRoleUser, Content: prompt},
		},
		Temperature: 0.7,
	})
	if err != nil {
		return nil, fmt.Errorf("LLM API call: %w", err)
	}

	if len(resp.Choices) == 0 {
		return nil, fmt.Errorf("LLM returned no choices")
	}

	raw := resp.Choices[0].Message.Content
	slog.Debug("LLM response", "raw", raw)

	drafts, err := parseDrafts(raw)
	if err != nil {
		return nil, fmt.Errorf("parse LLM response: %w", err)
	}
	if len(drafts) == 0 {
		return nil, ErrNoQuestions
	}
	if len(drafts) > count {
		drafts = drafts[:count]
	}
	return drafts, nil
}

func parseDrafts(raw string) ([]model.QuestionDraft, error) {
	body := stripFences(raw)

	var drafts []model.QuestionDraft
	if strings.HasPrefix(body, "{") {
		var wrapped struct {
			Questions []model.QuestionDraft `json:"questions"`
		}
		if err := json.Unmarshal([]byte(body), &wrapped); err != nil {
			return nil, err
		}
		drafts = wrapped.Questions
	} else if err := json.Unmarshal([]byte(body), &drafts); err != nil {
		return nil, err
	}

	out := drafts[:0]
	for _, d := range drafts {
		if !d.Complete() {
			slog.Debug("skipping incomplete generated question", "text", d.QuestionText)
			continue
		}
		d.CorrectAnswer = strings.ToUpper(strings.TrimSpace(d.CorrectAnswer))
		out = append(out, d)
	}
	return out, nil
}

// stripFences removes a surrounding ``` or ```json block.
func stripFences(s string) string {
	s = strings.TrimSpace(s)
	if strings.HasPrefix(s, "```") {
		s = strings.TrimPrefix(s, "```")
		s = strings.TrimPrefix(s, "json")
		s = strings.TrimSuffix(strings.TrimSpace(s), "```")
	}
	return strings.TrimSpace(s)
}
