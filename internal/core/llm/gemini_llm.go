package llm

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/generative-ai-go/genai"
	"google.golang.org/api/option"

	"github.com/markdave123-py/Examina/internal/core"
)

const systemInstruction = "You are an exam author. You turn study material into well-formed exam questions and answer only in the format requested."

// GeminiLLM is a CompletionClient bound to one Gemini API key.
type GeminiLLM struct {
	client      *genai.Client
	temperature float32
	maxTokens   int32
}

func NewGeminiLLM(ctx context.Context, apiKey string) (*GeminiLLM, error) {
	if apiKey == "" {
		return nil, core.ErrNotConfigured
	}
	cl, err := genai.NewClient(ctx, option.WithAPIKey(apiKey))
	if err != nil {
		return nil, fmt.Errorf("gemini client: %w", err)
	}
	return &GeminiLLM{client: cl, temperature: 0.4, maxTokens: 8192}, nil
}

func (g *GeminiLLM) Close() error {
	if g.client != nil {
		return g.client.Close()
	}
	return nil
}

// Complete sends prompt to model and returns the concatenated text parts.
func (g *GeminiLLM) Complete(ctx context.Context, model, prompt string) (string, error) {
	m := g.client.GenerativeModel(model)
	m.SystemInstruction = &genai.Content{
		Parts: []genai.Part{genai.Text(systemInstruction)},
	}
	m.SetTemperature(g.temperature)
	m.SetMaxOutputTokens(g.maxTokens)

	resp, err := m.GenerateContent(ctx, genai.Text(prompt))
	if err != nil {
		if core.IsRateLimited(err) {
			return "", &core.RateLimitError{Err: fmt.Errorf("gemini generate %s: %w", model, err)}
		}
		return "", fmt.Errorf("gemini generate %s: %w", model, err)
	}
	if len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
		if resp.PromptFeedback != nil && resp.PromptFeedback.BlockReason != genai.BlockReasonUnspecified {
			return "", fmt.Errorf("gemini generate %s: prompt blocked: %s", model, resp.PromptFeedback.BlockReason)
		}
		return "", errors.New("gemini generate: empty response")
	}

	var b strings.Builder
	for _, p := range resp.Candidates[0].Content.Parts {
		if t, ok := p.(genai.Text); ok {
			b.WriteString(string(t))
		}
	}
	return b.String(), nil
}

var _ core.CompletionClient = (*GeminiLLM)(nil)
