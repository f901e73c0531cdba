// Package gemini implements the AI contracts on top of the Google GenAI API:
// question generation, resume analysis, transcript scoring and speech
// synthesis.
package gemini

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"google.golang.org/genai"

	"github.com/spigell/interview-coach/internal/utils"
)

const (
	defaultTextModel   = "gemini-2.5-flash"
	defaultSpeechModel = "gemini-2.5-flash-preview-tts"
	defaultVoice       = "Kore"

	defaultMaxRetries = 2
)

var retryDelay = 2 * time.Second

// Config holds the model selection for a Generator. Zero values fall back to
// the defaults above.
type Config struct {
	TextModel   string
	SpeechModel string
	Voice       string
}

// Generator wraps the Google GenAI client to provide prompt-based JSON
// interactions and text-to-speech synthesis.
type Generator struct {
	client      *genai.Client
	textModel   string
	speechModel string
	voice       string
	maxRetries  int
}

// NewGenerator creates a new Generator configured for the Gemini API backend.
func NewGenerator(ctx context.Context, apiKey string, cfg Config) (*Generator, error) {
	apiKey = strings.TrimSpace(apiKey)
	if apiKey == "" {
		return nil, errors.New("gemini api key is required")
	}

	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("create genai client: %w", err)
	}

	g := &Generator{
		client:      client,
		textModel:   strings.TrimSpace(cfg.TextModel),
		speechModel: strings.TrimSpace(cfg.SpeechModel),
		voice:       strings.TrimSpace(cfg.Voice),
		maxRetries:  defaultMaxRetries,
	}
	if g.textModel == "" {
		g.textModel = defaultTextModel
	}
	if g.speechModel == "" {
		g.speechModel = defaultSpeechModel
	}
	if g.voice == "" {
		g.voice = defaultVoice
	}

	return g, nil
}

// GenerateJSON sends the parts to Gemini in structured-output mode and returns
// the raw textual response. The schema constrains the model but the caller
// still parses defensively.
func (g *Generator) GenerateJSON(ctx context.Context, parts []*genai.Part, schema *genai.Schema) (string, error) {
	if g == nil || g.client == nil {
		return "", errors.New("gemini generator is not initialized")
	}
	if len(parts) == 0 {
		return "", errors.New("prompt must not be empty")
	}

	cfg := &genai.GenerateContentConfig{
		ResponseMIMEType: "application/json",
		ResponseSchema:   schema,
	}
	contents := []*genai.Content{{Role: genai.RoleUser, Parts: parts}}

	resp, err := g.generate(ctx, g.textModel, contents, cfg)
	if err != nil {
		return "", fmt.Errorf("generate content: %w", err)
	}

	var builder strings.Builder
	for _, candidate := range resp.Candidates {
		if candidate == nil || candidate.Content == nil {
			continue
		}
		for _, part := range candidate.Content.Parts {
			if part == nil {
				continue
			}
			text := strings.TrimSpace(part.Text)
			if text == "" {
				continue
			}
			if builder.Len() > 0 {
				builder.WriteString("\n")
			}
			builder.WriteString(text)
		}
	}

	output := strings.TrimSpace(builder.String())
	if output == "" {
		return "", errors.New("gemini api returned empty response")
	}

	return output, nil
}

// Synthesize converts text to raw 16-bit little-endian PCM at 24 kHz using the
// speech model and the configured prebuilt voice.
func (g *Generator) Synthesize(ctx context.Context, text string) ([]byte, error) {
	if g == nil || g.client == nil {
		return nil, errors.New("gemini generator is not initialized")
	}

	text = strings.TrimSpace(text)
	if text == "" {
		return nil, errors.New("text must not be empty")
	}

	cfg := &genai.GenerateContentConfig{
		ResponseModalities: []string{"AUDIO"},
		SpeechConfig: &genai.SpeechConfig{
			VoiceConfig: &genai.VoiceConfig{
				PrebuiltVoiceConfig: &genai.PrebuiltVoiceConfig{VoiceName: g.voice},
			},
		},
	}

	resp, err := g.generate(ctx, g.speechModel, genai.Text(text), cfg)
	if err != nil {
		return nil, fmt.Errorf("synthesize speech: %w", err)
	}

	for _, candidate := range resp.Candidates {
		if candidate == nil || candidate.Content == nil {
			continue
		}
		for _, part := range candidate.Content.Parts {
			if part == nil || part.InlineData == nil {
				continue
			}
			if len(part.InlineData.Data) > 0 {
				return part.InlineData.Data, nil
			}
		}
	}

	return nil, errors.New("gemini api returned no audio data")
}

// generate calls the model, retrying transient API failures a bounded number
// of times. Non-API errors and client mistakes fail immediately.
func (g *Generator) generate(ctx context.Context, model string, contents []*genai.Content, cfg *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error) {
	var lastErr error
	for attempt := 0; attempt <= g.maxRetries; attempt++ {
		if attempt > 0 {
			if err := utils.WaitFor(ctx, retryDelay); err != nil {
				return nil, err
			}
		}

		resp, err := g.client.Models.GenerateContent(ctx, model, contents, cfg)
		if err == nil {
			return resp, nil
		}

		lastErr = err
		if !isTemporary(err) {
			break
		}
	}

	return nil, lastErr
}

func isTemporary(err error) bool {
	var apiErr genai.APIError
	if !errors.As(err, &apiErr) {
		return false
	}
	return apiErr.Code == http.StatusTooManyRequests || apiErr.Code >= http.StatusInternalServerError
}

// TextModel returns the configured text model identifier.
func (g *Generator) TextModel() string {
	if g == nil {
		return ""
	}
	return g.textModel
}

// SpeechModel returns the configured speech model identifier.
func (g *Generator) SpeechModel() string {
	if g == nil {
		return ""
	}
	return g.speechModel
}
