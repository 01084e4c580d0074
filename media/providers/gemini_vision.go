package providers

import (
	"context"
	"fmt"
	"strings"

	"google.golang.org/genai"
)

const DefaultVisionModel = "gemini-2.0-flash"

type GeminiConfig struct {
	APIKey  string
	Model   string
	BaseURL string
}

// GeminiVision describes images and summarizes documents with Gemini.
type GeminiVision struct {
	client *genai.Client
	model  string
}

func NewGeminiVision(ctx context.Context, cfg GeminiConfig) (*GeminiVision, error) {
	clientCfg := &genai.ClientConfig{
		APIKey:  cfg.APIKey,
		Backend: genai.BackendGeminiAPI,
	}
	if cfg.BaseURL != "" {
		clientCfg.HTTPOptions = genai.HTTPOptions{BaseURL: cfg.BaseURL}
	}
	client, err := genai.NewClient(ctx, clientCfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create gemini client: %w", err)
	}
	model := cfg.Model
	if model == "" {
		model = DefaultVisionModel
	}
	return &GeminiVision{client: client, model: model}, nil
}

func (g *GeminiVision) DescribeImage(ctx context.Context, data []byte, mimeType, caption string) (string, error) {
	prompt := "Describe this image sent by a customer to a business on WhatsApp. Transcribe any visible text literally. Be concise and factual."
	if strings.TrimSpace(caption) != "" {
		prompt += fmt.Sprintf("\nThe customer wrote this caption: %q", caption)
	}
	return g.generate(ctx, prompt, &genai.Blob{MIMEType: mimeType, Data: data})
}

func (g *GeminiVision) SummarizeDocument(ctx context.Context, data []byte, mimeType, filename string) (string, error) {
	prompt := "Summarize the document sent by a customer to a business on WhatsApp. Keep names, numbers, dates and amounts exactly as written."
	if filename != "" {
		prompt += fmt.Sprintf("\nFile name: %s", filename)
	}
	if strings.HasPrefix(mimeType, "text/") {
		return g.generate(ctx, prompt+"\n\n-----\n"+string(data), nil)
	}
	return g.generate(ctx, prompt, &genai.Blob{MIMEType: mimeType, Data: data})
}

func (g *GeminiVision) generate(ctx context.Context, prompt string, blob *genai.Blob) (string, error) {
	parts := []*genai.Part{{Text: prompt}}
	if blob != nil {
		parts = append(parts, &genai.Part{InlineData: blob})
	}
	contents := []*genai.Content{{Role: genai.RoleUser, Parts: parts}}

	result, err := g.client.Models.GenerateContent(ctx, g.model, contents, nil)
	if err != nil {
		return "", err
	}
	return result.Text(), nil
}
