package gemini

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"
	"google.golang.org/genai"

	"github.com/ischool-ai/session-auditor/internal/config"
)

// Usage records token consumption for one generation call.
type Usage struct {
	InputTokens  int32
	OutputTokens int32
}

// Add accumulates another call's usage into u.
func (u *Usage) Add(other Usage) {
	u.InputTokens += other.InputTokens
	u.OutputTokens += other.OutputTokens
}

// Cost converts accumulated usage to dollars at the given per-million-token
// rates.
func (u Usage) Cost(costs config.Costs) float64 {
	return float64(u.InputTokens)/1e6*costs.InputPerMillion +
		float64(u.OutputTokens)/1e6*costs.OutputPerMillion
}

// GenerateReport sends the evidence files and prompt to the model and
// returns the raw response text. The sampling configuration is pinned from
// the run config so repeated passes within a run stay comparable.
func GenerateReport(ctx context.Context, client *genai.Client, model config.Model, systemInstruction, prompt string, uploads []UploadedArtifact) (string, Usage, error) {
	genCfg := buildConfig(model, systemInstruction)

	// Evidence first, instruction text last.
	parts := make([]*genai.Part, 0, len(uploads)+1)
	for _, u := range uploads {
		parts = append(parts, &genai.Part{
			FileData: &genai.FileData{
				MIMEType: u.Artifact.MIMEType,
				FileURI:  u.File.URI,
			},
		})
	}
	parts = append(parts, &genai.Part{Text: prompt})

	contents := []*genai.Content{{Role: "user", Parts: parts}}

	log.Info().
		Str("model", model.Name).
		Int("attachments", len(uploads)).
		Int("prompt_length", len(prompt)).
		Msg("Requesting report generation")

	start := time.Now()
	resp, err := client.Models.GenerateContent(ctx, model.Name, contents, genCfg)
	elapsed := time.Since(start)

	if err != nil {
		log.Error().Err(err).Dur("duration", elapsed).Msg("Report generation failed")
		return "", Usage{}, fmt.Errorf("generate content: %w", err)
	}
	if resp == nil {
		log.Warn().Dur("duration", elapsed).Msg("Received nil response from Gemini")
		return "", Usage{}, fmt.Errorf("received empty response from Gemini API")
	}

	var usage Usage
	if resp.UsageMetadata != nil {
		usage.InputTokens = resp.UsageMetadata.PromptTokenCount
		usage.OutputTokens = resp.UsageMetadata.CandidatesTokenCount
	}

	text := resp.Text()
	log.Info().
		Dur("duration", elapsed).
		Int("response_length", len(text)).
		Int32("input_tokens", usage.InputTokens).
		Int32("output_tokens", usage.OutputTokens).
		Msg("Report generation complete")

	return text, usage, nil
}

// buildConfig assembles the generation config from run settings.
func buildConfig(model config.Model, systemInstruction string) *genai.GenerateContentConfig {
	cfg := &genai.GenerateContentConfig{
		Temperature:      genai.Ptr(float32(model.Temperature)),
		TopP:             genai.Ptr(float32(model.TopP)),
		TopK:             genai.Ptr(float32(model.TopK)),
		Seed:             genai.Ptr(int32(model.Seed)),
		CandidateCount:   1,
		ResponseMIMEType: "application/json",
		SystemInstruction: &genai.Content{
			Parts: []*genai.Part{{Text: systemInstruction}},
		},
	}

	if model.MaxOutputTokens > 0 {
		cfg.MaxOutputTokens = int32(model.MaxOutputTokens)
	}
	if lvl := thinkingLevel(model.ThinkingLevel); lvl != "" {
		cfg.ThinkingConfig = &genai.ThinkingConfig{ThinkingLevel: lvl}
	}
	if res := mediaResolution(model.MediaResolution); res != "" {
		cfg.MediaResolution = res
	}
	if model.UseSearch {
		cfg.Tools = []*genai.Tool{{GoogleSearch: &genai.GoogleSearch{}}}
	}

	return cfg
}

func thinkingLevel(level string) genai.ThinkingLevel {
	switch level {
	case "minimal":
		return genai.ThinkingLevel("MINIMAL")
	case "low":
		return genai.ThinkingLevelLow
	case "high":
		return genai.ThinkingLevelHigh
	default:
		return ""
	}
}

func mediaResolution(res string) genai.MediaResolution {
	switch res {
	case "low":
		return genai.MediaResolutionLow
	case "medium":
		return genai.MediaResolutionMedium
	case "high":
		return genai.MediaResolutionHigh
	default:
		return ""
	}
}
