package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	openai "github.com/sashabaranov/go-openai"
	"github.com/sirupsen/logrus"
	"google.golang.org/genai"

	"github.com/pageza/storefront-assistant/backend/config"
)

// ErrEmptyGeneration is returned when the model answers with no text
var ErrEmptyGeneration = errors.New("model returned an empty reply")

// GenerationRequest is everything a model sees for one reply
type GenerationRequest struct {
	System  string
	History []Message
	// Prompt carries the action outcome the reply must be based on
	Prompt string
}

// Generator writes the assistant's reply with a hosted model
type Generator interface {
	Name() string
	Generate(ctx context.Context, req GenerationRequest) (string, error)
}

// GeminiConfig configures a GeminiGenerator
type GeminiConfig struct {
	APIKey      string
	Model       string
	Temperature float32
	// BaseURL overrides the API endpoint, mostly for tests
	BaseURL string
}

// GeminiGenerator uses the Gemini API through google.golang.org/genai
type GeminiGenerator struct {
	client      *genai.Client
	model       string
	temperature float32
}

// NewGeminiGenerator creates a Gemini-backed generator
func NewGeminiGenerator(ctx context.Context, cfg GeminiConfig) (*GeminiGenerator, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("GEMINI_API_KEY is required for the gemini provider")
	}
	if cfg.Model == "" {
		cfg.Model = "gemini-2.0-flash"
	}

	clientCfg := &genai.ClientConfig{
		APIKey:  cfg.APIKey,
		Backend: genai.BackendGeminiAPI,
	}
	if cfg.BaseURL != "" {
		clientCfg.HTTPOptions = genai.HTTPOptions{BaseURL: cfg.BaseURL}
	}
	client, err := genai.NewClient(ctx, clientCfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create GenAI client: %w", err)
	}

	return &GeminiGenerator{client: client, model: cfg.Model, temperature: cfg.Temperature}, nil
}

// Name implements Generator
func (g *GeminiGenerator) Name() string { return "gemini" }

// Generate implements Generator
func (g *GeminiGenerator) Generate(ctx context.Context, req GenerationRequest) (string, error) {
	contents := make([]*genai.Content, 0, len(req.History)+1)
	for _, m := range req.History {
		var role genai.Role = genai.RoleUser
		if m.Role == RoleAssistant {
			role = genai.RoleModel
		}
		contents = append(contents, genai.NewContentFromText(m.Content, role))
	}
	contents = append(contents, genai.NewContentFromText(req.Prompt, genai.RoleUser))

	resp, err := g.client.Models.GenerateContent(ctx, g.model, contents, &genai.GenerateContentConfig{
		SystemInstruction: genai.NewContentFromText(req.System, genai.RoleUser),
		Temperature:       genai.Ptr[float32](g.temperature),
	})
	if err != nil {
		return "", fmt.Errorf("GenAI generate failed: %w", err)
	}

	text := strings.TrimSpace(resp.Text())
	if text == "" {
		return "", ErrEmptyGeneration
	}
	return text, nil
}

// OpenAIConfig configures an OpenAIGenerator
type OpenAIConfig struct {
	APIKey      string
	BaseURL     string
	Model       string
	Temperature float32
}

// OpenAIGenerator talks to any OpenAI-compatible chat completion API.
// The defaults point at DeepSeek.
type OpenAIGenerator struct {
	client      *openai.Client
	model       string
	temperature float32
}

// NewOpenAIGenerator creates a chat completion generator
func NewOpenAIGenerator(cfg OpenAIConfig) (*OpenAIGenerator, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("DEEPSEEK_API_KEY is required for the openai provider")
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = "https://api.deepseek.com/v1"
	}
	if cfg.Model == "" {
		cfg.Model = "deepseek-chat"
	}

	clientCfg := openai.DefaultConfig(cfg.APIKey)
	clientCfg.BaseURL = strings.TrimSuffix(strings.TrimSuffix(cfg.BaseURL, "/"), "/chat/completions")

	return &OpenAIGenerator{
		client:      openai.NewClientWithConfig(clientCfg),
		model:       cfg.Model,
		temperature: cfg.Temperature,
	}, nil
}

// Name implements Generator
func (g *OpenAIGenerator) Name() string { return "openai" }

// Generate implements Generator
func (g *OpenAIGenerator) Generate(ctx context.Context, req GenerationRequest) (string, error) {
	messages := make([]openai.ChatCompletionMessage, 0, len(req.History)+2)
	messages = append(messages, openai.ChatCompletionMessage{Role: openai.ChatMessageRoleSystem, Content: req.System})
	for _, m := range req.History {
		role := openai.ChatMessageRoleUser
		if m.Role == RoleAssistant {
			role = openai.ChatMessageRoleAssistant
		}
		messages = append(messages, openai.ChatCompletionMessage{Role: role, Content: m.Content})
	}
	messages = append(messages, openai.ChatCompletionMessage{Role: openai.ChatMessageRoleUser, Content: req.Prompt})

	resp, err := g.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:       g.model,
		Messages:    messages,
		Temperature: g.temperature,
		MaxTokens:   400,
	})
	if err != nil {
		return "", fmt.Errorf("chat completion failed: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", ErrEmptyGeneration
	}

	text := strings.TrimSpace(resp.Choices[0].Message.Content)
	if text == "" {
		return "", ErrEmptyGeneration
	}
	return text, nil
}

// NewGenerator builds the generator selected by AI_PROVIDER. It returns nil
// for "none", in which case replies come from templates only.
func NewGenerator(ctx context.Context, cfg *config.Config, log logrus.FieldLogger) (Generator, error) {
	switch strings.ToLower(cfg.AIProvider) {
	case "", "none":
		log.Info("[LLM] no AI provider configured, using template replies")
		return nil, nil
	case "gemini":
		gen, err := NewGeminiGenerator(ctx, GeminiConfig{
			APIKey:      cfg.GeminiAPIKey,
			Model:       cfg.GeminiModel,
			Temperature: cfg.AITemperature,
		})
		if err != nil {
			return nil, err
		}
		log.WithField("model", cfg.GeminiModel).Info("[LLM] using Gemini")
		return gen, nil
	case "openai":
		gen, err := NewOpenAIGenerator(OpenAIConfig{
			APIKey:      cfg.DeepSeekAPIKey,
			BaseURL:     cfg.DeepSeekAPIURL,
			Model:       cfg.DeepSeekModel,
			Temperature: cfg.AITemperature,
		})
		if err != nil {
			return nil, err
		}
		log.WithFields(logrus.Fields{"model": cfg.DeepSeekModel, "url": cfg.DeepSeekAPIURL}).Info("[LLM] using OpenAI-compatible API")
		return gen, nil
	default:
		return nil, fmt.Errorf("unknown AI provider %q", cfg.AIProvider)
	}
}
