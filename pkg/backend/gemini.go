package backend

import (
	"context"
	"errors"
	"fmt"

	"google.golang.org/genai"
)

// Gemini implements Text and Imager using Google's genai SDK.
type Gemini struct {
	client     *genai.Client
	model      string
	imageModel string
	maxTokens  int
}

func NewGemini(ctx context.Context, apiKey, model string, maxTokens int) (*Gemini, error) {
	if model == "" {
		model = "gemini-2.5-flash"
	}
	if apiKey == "" {
		maxTokens = 0
	}
	client, err := genai.NewClient(ctx, &genai.ClientConfig{APIKey: apiKey})
	if err != nil {
		return nil, fmt.Errorf("gemini client: %w", err)
	}
	return &Gemini{
		client:     client,
		model:      model,
		imageModel: "imagen-3.0-generate-002",
		maxTokens:  maxTokens,
	}, nil
}

func (g *Gemini) MaxTokens() int { return g.maxTokens }

func (g *Gemini) Complete(ctx context.Context, prompt string) (string, error) {
	return g.Converse(ctx, []Message{{Role: RoleUser, Content: prompt}}, 0.7)
}

func (g *Gemini) Converse(ctx context.Context, messages []Message, temperature float64) (string, error) {
	if g.maxTokens == 0 {
		return "", ErrUnavailable
	}

	contents := make([]*genai.Content, 0, len(messages))
	for _, m := range messages {
		role := genai.Role(genai.RoleUser)
		if m.Role == RoleAssistant {
			role = genai.RoleModel
		}
		contents = append(contents, genai.NewContentFromText(m.Content, role))
	}

	temp := float32(temperature)
	config := &genai.GenerateContentConfig{
		Temperature:     &temp,
		MaxOutputTokens: int32(g.maxTokens),
	}

	result, err := g.client.Models.GenerateContent(ctx, g.model, contents, config)
	if err != nil {
		return "", fmt.Errorf("gemini completion error: %w", err)
	}
	text := result.Text()
	if text == "" {
		return "", errors.New("empty completion content")
	}
	return text, nil
}

func (g *Gemini) Image(ctx context.Context, prompt string) ([]byte, error) {
	if g.maxTokens == 0 {
		return nil, ErrUnavailable
	}

	resp, err := g.client.Models.GenerateImages(ctx, g.imageModel, prompt, &genai.GenerateImagesConfig{
		NumberOfImages: 1,
	})
	if err != nil {
		return nil, fmt.Errorf("gemini image error: %w", err)
	}
	if len(resp.GeneratedImages) == 0 || resp.GeneratedImages[0].Image == nil {
		return nil, errors.New("no image returned")
	}
	return resp.GeneratedImages[0].Image.ImageBytes, nil
}
