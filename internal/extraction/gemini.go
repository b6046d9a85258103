package extraction

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/generative-ai-go/genai"
	"google.golang.org/api/option"
)

// Gemini implements Generator using Google Gemini.
type Gemini struct {
	client  *genai.Client
	model   *genai.GenerativeModel
	timeout time.Duration
}

// NewGemini creates a new Gemini Generator instance.
func NewGemini(apiKey string, modelName string) (*Gemini, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("gemini api key is required")
	}
	if modelName == "" {
		modelName = "gemini-2.0-flash"
	}

	ctx := context.Background()
	client, err := genai.NewClient(ctx, option.WithAPIKey(apiKey))
	if err != nil {
		return nil, fmt.Errorf("creating gemini client: %w", err)
	}

	return &Gemini{
		client: client,
		model:  client.GenerativeModel(modelName),
		// Videos and multi-frame inputs need more headroom than a single
		// receipt photo.
		timeout: 60 * time.Second,
	}, nil
}

// Generate submits the prompt and document parts and returns the raw model
// text.
func (g *Gemini) Generate(ctx context.Context, prompt string, parts ...Part) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, g.timeout)
	defer cancel()

	genaiParts := make([]genai.Part, 0, len(parts)+1)
	genaiParts = append(genaiParts, genai.Text(prompt))
	for _, p := range parts {
		if p.Text != "" {
			genaiParts = append(genaiParts, genai.Text(p.Text))
			continue
		}
		genaiParts = append(genaiParts, genai.Blob{MIMEType: p.MIME, Data: p.Data})
	}

	resp, err := g.model.GenerateContent(ctx, genaiParts...)
	if err != nil {
		return "", fmt.Errorf("generating content: %w", err)
	}

	if len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil || len(resp.Candidates[0].Content.Parts) == 0 {
		return "", fmt.Errorf("no response from gemini")
	}

	var out strings.Builder
	for _, part := range resp.Candidates[0].Content.Parts {
		if text, ok := part.(genai.Text); ok {
			out.WriteString(string(text))
		}
	}

	return out.String(), nil
}

// Close closes the Gemini client.
func (g *Gemini) Close() error {
	return g.client.Close()
}
