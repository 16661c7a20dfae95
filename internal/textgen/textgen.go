// Package textgen produces bot post and comment text with a language model.
package textgen

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/generative-ai-go/genai"
	"golang.org/x/time/rate"
	"google.golang.org/api/option"

	"social_bots/internal/metrics"
)

// Prompt is a structured generation request.
type Prompt struct {
	// System sets the persona and rules.
	System string
	// User is the task itself.
	User string
}

// Generator turns a prompt into text.
type Generator interface {
	Generate(ctx context.Context, p Prompt) (string, error)
}

// Gemini implements Generator on the Google Gemini API.
type Gemini struct {
	client  *genai.Client
	model   string
	limiter *rate.Limiter
}

// NewGemini creates a Gemini generator limited to rpm requests per minute.
// rpm <= 0 disables the limit.
func NewGemini(ctx context.Context, apiKey, model string, rpm int) (*Gemini, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("API key is required")
	}

	client, err := genai.NewClient(ctx, option.WithAPIKey(apiKey))
	if err != nil {
		return nil, fmt.Errorf("create gemini client: %w", err)
	}

	return &Gemini{
		client:  client,
		model:   model,
		limiter: newLimiter(rpm),
	}, nil
}

func newLimiter(rpm int) *rate.Limiter {
	if rpm <= 0 {
		return rate.NewLimiter(rate.Inf, 1)
	}
	return rate.NewLimiter(rate.Every(time.Minute/time.Duration(rpm)), 1)
}

// Generate implements Generator.
func (g *Gemini) Generate(ctx context.Context, p Prompt) (string, error) {
	if err := g.limiter.Wait(ctx); err != nil {
		return "", fmt.Errorf("wait for rate limit: %w", err)
	}

	m := g.client.GenerativeModel(g.model)
	m.SetTemperature(0.9)
	if p.System != "" {
		m.SystemInstruction = genai.NewUserContent(genai.Text(p.System))
	}

	start := time.Now()
	resp, err := m.GenerateContent(ctx, genai.Text(p.User))
	if err != nil {
		metrics.RecordGeneration("error", time.Since(start).Seconds())
		return "", fmt.Errorf("generate content: %w", err)
	}

	text, err := extractText(resp)
	if err != nil {
		metrics.RecordGeneration("empty", time.Since(start).Seconds())
		return "", err
	}
	metrics.RecordGeneration("ok", time.Since(start).Seconds())
	return text, nil
}

// Close releases the API client.
func (g *Gemini) Close() error {
	if g.client != nil {
		return g.client.Close()
	}
	return nil
}

func extractText(resp *genai.GenerateContentResponse) (string, error) {
	if resp == nil || len(resp.Candidates) == 0 {
		return "", fmt.Errorf("no candidates in response")
	}

	candidate := resp.Candidates[0]
	if candidate.Content == nil || len(candidate.Content.Parts) == 0 {
		return "", fmt.Errorf("no content in response")
	}

	var parts []string
	for _, part := range candidate.Content.Parts {
		if text, ok := part.(genai.Text); ok {
			parts = append(parts, string(text))
		}
	}
	if len(parts) == 0 {
		return "", fmt.Errorf("no text parts in response")
	}

	return strings.TrimSpace(strings.Join(parts, "")), nil
}
