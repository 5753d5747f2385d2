package suggest

import (
	"context"
	"fmt"

	"google.golang.org/genai"
)

// GeminiModel generates completions with the Gen AI SDK.
// Vertex vs Gemini Dev is controlled via env vars:
//   - GOOGLE_GENAI_USE_VERTEXAI=True  -> Vertex AI
//   - GOOGLE_CLOUD_PROJECT
//   - GOOGLE_CLOUD_LOCATION
type GeminiModel struct {
	client *genai.Client
	name   string
}

// NewGeminiModel creates a client for the named model.
func NewGeminiModel(ctx context.Context, name string) (*GeminiModel, error) {
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		HTTPOptions: genai.HTTPOptions{APIVersion: "v1"},
	})
	if err != nil {
		return nil, fmt.Errorf("NewGeminiModel: create genai client: %w", err)
	}
	return &GeminiModel{client: client, name: name}, nil
}

// Generate implements Model.
func (m *GeminiModel) Generate(ctx context.Context, prompt string) (string, error) {
	contents := []*genai.Content{
		{
			Role:  "user",
			Parts: []*genai.Part{{Text: prompt}},
		},
	}

	resp, err := m.client.Models.GenerateContent(ctx, m.name, contents, nil)
	if err != nil {
		return "", fmt.Errorf("Generate: %s: %w", m.name, err)
	}
	return resp.Text(), nil
}

var _ Model = (*GeminiModel)(nil)
