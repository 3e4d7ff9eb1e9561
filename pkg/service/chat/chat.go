package chat

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"

	"github.com/maxwin66/companion/pkg/domain"
	"github.com/sashabaranov/go-openai"
)

const systemPrompt = "Kamu adalah teman ngobrol yang hangat dan ramah. Jawab singkat, santai, dan dalam bahasa yang dipakai pengguna."

type Service interface {
	Reply(ctx context.Context, history []domain.HistoryTurn, message, model string) (string, error)
	GenerateImage(ctx context.Context, prompt string) (string, error)
}

// Config tunes the completions.
type Config struct {
	Model            string
	MaxTokens        int
	Temperature      float32
	PresencePenalty  float32
	FrequencyPenalty float32
}

type GPTService struct {
	client *openai.Client
	cfg    Config
}

func NewGPTService(apiKey string, cfg Config) *GPTService {
	return NewGPTServiceWithConfig(openai.DefaultConfig(apiKey), cfg)
}

// NewGPTServiceWithConfig builds the service over a custom client
// configuration, such as another base URL.
func NewGPTServiceWithConfig(clientCfg openai.ClientConfig, cfg Config) *GPTService {
	if cfg.Model == "" {
		cfg.Model = openai.GPT4o
	}
	if cfg.MaxTokens == 0 {
		cfg.MaxTokens = 300
	}
	if cfg.Temperature == 0 {
		cfg.Temperature = 0.7
	}
	return &GPTService{
		client: openai.NewClientWithConfig(clientCfg),
		cfg:    cfg,
	}
}

var selectableModels = map[string]bool{
	openai.GPT4o:     true,
	openai.GPT4oMini: true,
}

func (s *GPTService) model(selected string) string {
	if selectableModels[selected] {
		return selected
	}
	return s.cfg.Model
}

// buildMessages lays out prior turns as alternating user and assistant
// messages after the system prompt.
func buildMessages(history []domain.HistoryTurn, message string) []openai.ChatCompletionMessage {
	chatMessages := []openai.ChatCompletionMessage{{
		Role:    openai.ChatMessageRoleSystem,
		Content: systemPrompt,
	}}
	for _, turn := range history {
		chatMessages = append(chatMessages,
			openai.ChatCompletionMessage{Role: openai.ChatMessageRoleUser, Content: turn.Question},
			openai.ChatCompletionMessage{Role: openai.ChatMessageRoleAssistant, Content: turn.Answer},
		)
	}
	return append(chatMessages, openai.ChatCompletionMessage{
		Role:    openai.ChatMessageRoleUser,
		Content: message,
	})
}

func (s *GPTService) Reply(ctx context.Context, history []domain.HistoryTurn, message, model string) (string, error) {
	const maxRetries = 3
	var lastErr error

	chatMessages := buildMessages(history, message)

	for attempt := 0; attempt < maxRetries; attempt++ {
		resp, err := s.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
			Model:            s.model(model),
			Messages:         chatMessages,
			MaxTokens:        s.cfg.MaxTokens,
			Temperature:      s.cfg.Temperature,
			PresencePenalty:  s.cfg.PresencePenalty,
			FrequencyPenalty: s.cfg.FrequencyPenalty,
		})
		if err != nil {
			if ctx.Err() != nil {
				return "", ctx.Err()
			}
			lastErr = err
			log.Printf("Chat completion attempt %d failed: %v", attempt+1, err)
			continue
		}
		if len(resp.Choices) > 0 && strings.TrimSpace(resp.Choices[0].Message.Content) != "" {
			return resp.Choices[0].Message.Content, nil
		}
		lastErr = errors.New("empty completion")
	}

	return "", fmt.Errorf("no valid response after %d attempts: %w", maxRetries, lastErr)
}

// GenerateImage returns a base64-encoded PNG for prompt.
func (s *GPTService) GenerateImage(ctx context.Context, prompt string) (string, error) {
	resp, err := s.client.CreateImage(ctx, openai.ImageRequest{
		Prompt:         prompt,
		Model:          openai.CreateImageModelDallE3,
		N:              1,
		Size:           openai.CreateImageSize1024x1024,
		ResponseFormat: openai.CreateImageResponseFormatB64JSON,
	})
	if err != nil {
		return "", fmt.Errorf("create image: %w", err)
	}
	if len(resp.Data) == 0 || resp.Data[0].B64JSON == "" {
		return "", errors.New("no image generated")
	}
	return resp.Data[0].B64JSON, nil
}
