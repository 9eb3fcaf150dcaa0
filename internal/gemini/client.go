// Package gemini wraps the Gemini API client for evidence upload and
// multimodal report generation.
package gemini

import (
	"context"
	"fmt"

	"github.com/rs/zerolog/log"
	"google.golang.org/genai"
)

// DefaultModelName is the model used when no override is configured.
const DefaultModelName = "gemini-3-flash-preview"

// NewClient creates a Gemini API client for the given API key.
func NewClient(ctx context.Context, apiKey string) (*genai.Client, error) {
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("create Gemini client: %w", err)
	}

	log.Debug().Msg("Gemini client initialized")
	return client, nil
}
