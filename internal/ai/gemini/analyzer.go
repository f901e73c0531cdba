package gemini

import (
	"context"
	"errors"
	"fmt"
	"strings"

	_ "embed"

	"google.golang.org/genai"

	"github.com/spigell/interview-coach/internal/ai"
)

//go:embed resume_prompt.md
var resumePrompt string

var insightsSchema = &genai.Schema{
	Type: genai.TypeObject,
	Properties: map[string]*genai.Schema{
		"score":           {Type: genai.TypeNumber},
		"extractedSkills": {Type: genai.TypeArray, Items: &genai.Schema{Type: genai.TypeString}},
		"experienceYears": {Type: genai.TypeNumber},
		"summary":         {Type: genai.TypeString},
		"gaps":            {Type: genai.TypeArray, Items: &genai.Schema{Type: genai.TypeString}},
	},
	Required: []string{"score", "summary"},
}

// AnalyzeResume matches the resume against the job description and returns
// structured insights. A resume is required; the insights feed the setup
// screen only and never gate the interview itself.
func (c *Coach) AnalyzeResume(ctx context.Context, resume ai.ResumeInput, jobDescription string) (*ai.ResumeInsights, error) {
	if resume.IsEmpty() {
		return nil, errors.New("resume is required")
	}
	if strings.TrimSpace(jobDescription) == "" {
		return nil, errors.New("job description is required")
	}

	prompt := strings.ReplaceAll(resumePrompt, "{{JOB_DESCRIPTION}}", strings.TrimSpace(jobDescription))

	raw, err := c.generator.GenerateJSON(ctx, resumeParts(prompt, resume), insightsSchema)
	if err != nil {
		return nil, fmt.Errorf("analyze resume: %w", err)
	}

	c.debugExchange("gemini resume analysis", prompt, raw)

	return parseInsights(raw)
}

func parseInsights(raw string) (*ai.ResumeInsights, error) {
	var data map[string]any
	if err := unmarshalLenient([]byte(extractJSON(raw)), &data); err != nil {
		return nil, fmt.Errorf("parse resume analysis response: %w", err)
	}

	var insights ai.ResumeInsights
	if err := decodeWeak(data, &insights); err != nil {
		return nil, fmt.Errorf("decode resume analysis response: %w", err)
	}

	insights.MatchScore = clampScore(insights.MatchScore)
	if insights.ExperienceYears < 0 {
		insights.ExperienceYears = 0
	}

	return &insights, nil
}
