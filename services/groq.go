package services

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"

	"github.com/Keepitcity/proof/consultation"
	"github.com/Keepitcity/proof/prompts"
)

// GroqClient voices the client persona through Groq's OpenAI-compatible
// chat completions endpoint.
type GroqClient struct {
	client *openai.Client
	model  string
}

func NewGroqClient(baseURL, apiKey, model string) *GroqClient {
	options := []option.RequestOption{option.WithBaseURL(baseURL)}
	if apiKey == "" {
		slog.Warn("GROQ_API_KEY is not set, persona requests will be unauthenticated")
	} else {
		options = append(options, option.WithAPIKey(apiKey))
	}
	if model == "" {
		model = DefaultGroqModel
	}

	client := openai.NewClient(options...)
	return &GroqClient{client: &client, model: model}
}

// Reply implements consultation.PersonaAgent
func (g *GroqClient) Reply(ctx context.Context, turns []prompts.Turn, params consultation.GenerationParams) (string, error) {
	resp, err := g.client.Chat.Completions.New(ctx, openai.ChatCompletionNewParams{
		Messages:    chatMessages(turns),
		Model:       g.model,
		Temperature: openai.Float(params.Temperature),
		MaxTokens:   openai.Int(int64(params.MaxTokens)),
	})
	if err != nil {
		return "", fmt.Errorf("groq chat completion: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("groq returned no choices")
	}
	return resp.Choices[0].Message.Content, nil
}

func chatMessages(turns []prompts.Turn) []openai.ChatCompletionMessageParamUnion {
	messages := make([]openai.ChatCompletionMessageParamUnion, 0, len(turns))
	for _, t := range turns {
		switch t.Role {
		case prompts.TurnSystem:
			messages = append(messages, openai.SystemMessage(t.Content))
		case prompts.TurnAgent:
			messages = append(messages, openai.AssistantMessage(t.Content))
		default:
			messages = append(messages, openai.UserMessage(t.Content))
		}
	}
	return messages
}
