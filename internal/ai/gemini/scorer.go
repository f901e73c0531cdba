package gemini

import (
	"context"
	"errors"
	"fmt"
	"strings"

	_ "embed"

	"go.uber.org/zap"
	"google.golang.org/genai"

	"github.com/spigell/interview-coach/internal/ai"
	"github.com/spigell/interview-coach/internal/transcript"
)

//go:embed report_prompt.md
var reportPrompt string

var reportSchema = &genai.Schema{
	Type: genai.TypeObject,
	Properties: map[string]*genai.Schema{
		"overallScore":     {Type: genai.TypeNumber},
		"starCompliance":   {Type: genai.TypeNumber},
		"behavioralScore":  {Type: genai.TypeNumber},
		"technicalScore":   {Type: genai.TypeNumber},
		"feedback":         {Type: genai.TypeString},
		"keyStrengths":     {Type: genai.TypeArray, Items: &genai.Schema{Type: genai.TypeString}},
		"improvementAreas": {Type: genai.TypeArray, Items: &genai.Schema{Type: genai.TypeString}},
		"suggestedCourses": {
			Type: genai.TypeArray,
			Items: &genai.Schema{
				Type: genai.TypeObject,
				Properties: map[string]*genai.Schema{
					"title":    {Type: genai.TypeString},
					"provider": {Type: genai.TypeString},
					"url":      {Type: genai.TypeString},
				},
				Required: []string{"title"},
			},
		},
	},
	Required: []string{"overallScore", "starCompliance", "feedback"},
}

// ScoreTranscript evaluates a completed interview. One-shot: a malformed or
// incomplete response is a hard failure and the caller decides whether to
// retry the whole call.
func (c *Coach) ScoreTranscript(ctx context.Context, entries []transcript.Entry, resume ai.ResumeInput, jobDescription string) (*ai.Report, error) {
	if len(entries) == 0 {
		return nil, errors.New("transcript is empty")
	}

	prompt := strings.ReplaceAll(reportPrompt, "{{JOB_DESCRIPTION}}", strings.TrimSpace(jobDescription))
	prompt = strings.ReplaceAll(prompt, "{{TRANSCRIPT}}", transcript.Render(entries))

	raw, err := c.generator.GenerateJSON(ctx, resumeParts(prompt, resume), reportSchema)
	if err != nil {
		return nil, fmt.Errorf("score transcript: %w", err)
	}

	c.debugExchange("gemini transcript scoring", prompt, raw,
		zap.Int("transcript_entries", len(entries)),
	)

	return parseReport(raw)
}

func parseReport(raw string) (*ai.Report, error) {
	var data map[string]any
	if err := unmarshalLenient([]byte(extractJSON(raw)), &data); err != nil {
		return nil, fmt.Errorf("parse scoring response: %w", err)
	}

	var report ai.Report
	if err := decodeWeak(data, &report); err != nil {
		return nil, fmt.Errorf("decode scoring response: %w", err)
	}

	if strings.TrimSpace(report.Feedback) == "" {
		return nil, errors.New("scoring response is missing feedback")
	}
	if _, ok := data["overallScore"]; !ok {
		return nil, errors.New("scoring response is missing overall score")
	}

	report.OverallScore = clampScore(report.OverallScore)
	report.STARCompliance = clampScore(report.STARCompliance)
	report.BehavioralScore = clampScore(report.BehavioralScore)
	report.TechnicalScore = clampScore(report.TechnicalScore)

	return &report, nil
}
