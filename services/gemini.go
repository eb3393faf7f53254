package services

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"google.golang.org/genai"

	"github.com/Keepitcity/proof/consultation"
	"github.com/Keepitcity/proof/prompts"
)

const (
	EvaluatorTemperature = 0.3
	EvaluatorMaxTokens   = 2000
)

// GeminiClient grades finished calls and can also voice the persona
type GeminiClient struct {
	genaiClient *genai.Client
	model       string
}

func NewGeminiClient(ctx context.Context, apiKey, model string) (*GeminiClient, error) {
	genaiClient, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		slog.Error("Failed to create genai client", "error", err)
		return nil, fmt.Errorf("failed to create genai client: %w", err)
	}
	if model == "" {
		model = DefaultGeminiModel
	}
	return &GeminiClient{genaiClient: genaiClient, model: model}, nil
}

// Evaluate implements consultation.Evaluator. The prompt goes out as a
// single user message.
func (g *GeminiClient) Evaluate(ctx context.Context, prompt string) (string, error) {
	if g.genaiClient == nil {
		return "", fmt.Errorf("genai client not initialized")
	}

	temp := float32(EvaluatorTemperature)
	result, err := g.genaiClient.Models.GenerateContent(
		ctx,
		g.model,
		genai.Text(prompt),
		&genai.GenerateContentConfig{
			Temperature:     &temp,
			MaxOutputTokens: EvaluatorMaxTokens,
		},
	)
	if err != nil {
		return "", fmt.Errorf("failed to generate evaluation: %w", err)
	}

	text := result.Text()
	slog.Info("Generated evaluation", "model", g.model, "response_length", len(text))
	return text, nil
}

// Reply implements consultation.PersonaAgent
func (g *GeminiClient) Reply(ctx context.Context, turns []prompts.Turn, params consultation.GenerationParams) (string, error) {
	if g.genaiClient == nil {
		return "", fmt.Errorf("genai client not initialized")
	}

	system, history := prompts.SplitSystem(turns)
	temp := float32(params.Temperature)
	config := &genai.GenerateContentConfig{
		Temperature:     &temp,
		MaxOutputTokens: int32(params.MaxTokens),
	}
	if system != "" {
		config.SystemInstruction = genai.NewContentFromText(system, genai.RoleUser)
	}

	result, err := g.genaiClient.Models.GenerateContent(ctx, g.model, buildContents(history), config)
	if err != nil {
		return "", fmt.Errorf("failed to generate persona reply: %w", err)
	}
	return result.Text(), nil
}

// buildContents maps persona turns to the model role and everything else to
// the user role. Gemini rejects an empty contents list, so a bare history
// gets a placeholder user turn.
func buildContents(turns []prompts.Turn) []*genai.Content {
	var contents []*genai.Content
	for _, t := range turns {
		if strings.TrimSpace(t.Content) == "" {
			continue
		}
		var role genai.Role = genai.RoleUser
		if t.Role == prompts.TurnAgent {
			role = genai.RoleModel
		}
		contents = append(contents, genai.NewContentFromText(t.Content, role))
	}
	if len(contents) == 0 {
		contents = append(contents, genai.NewContentFromText(prompts.OpeningDirective, genai.RoleUser))
	}
	return contents
}
