// Package ai defines the contracts for the external AI capabilities used by
// the interview engine: question generation, resume analysis, transcript
// scoring and speech synthesis.
package ai

import (
	"context"
	"strings"

	"github.com/spigell/interview-coach/internal/transcript"
)

// Stage tags the kind of interview the questions should target.
type Stage string

const (
	StageBehavioral   Stage = "behavioral"
	StageTechnical    Stage = "technical"
	StageSystemDesign Stage = "system design"
	StageCultureFit   Stage = "culture fit"
	StageCaseStudy    Stage = "case study"
)

// ResumeInput carries the candidate resume either as raw text or as a binary
// document with a declared media type. Data takes precedence over Text.
type ResumeInput struct {
	Text     string
	Data     []byte
	MIMEType string
}

// IsEmpty reports whether neither text nor binary content is present.
func (r ResumeInput) IsEmpty() bool {
	return strings.TrimSpace(r.Text) == "" && len(r.Data) == 0
}

// ResumeInsights is the structured result of matching a resume against a job
// description.
type ResumeInsights struct {
	MatchScore      float64  `mapstructure:"score"`
	Skills          []string `mapstructure:"extractedSkills"`
	ExperienceYears float64  `mapstructure:"experienceYears"`
	Summary         string   `mapstructure:"summary"`
	Gaps            []string `mapstructure:"gaps"`
}

// Course is a recommended learning resource in the final report.
type Course struct {
	Title    string `mapstructure:"title"`
	Provider string `mapstructure:"provider"`
	URL      string `mapstructure:"url"`
}

// Report is the terminal output of a scored interview. Produced exactly once
// per session; all scores are within [0, 100].
type Report struct {
	OverallScore     float64  `mapstructure:"overallScore"`
	STARCompliance   float64  `mapstructure:"starCompliance"`
	BehavioralScore  float64  `mapstructure:"behavioralScore"`
	TechnicalScore   float64  `mapstructure:"technicalScore"`
	Feedback         string   `mapstructure:"feedback"`
	KeyStrengths     []string `mapstructure:"keyStrengths"`
	ImprovementAreas []string `mapstructure:"improvementAreas"`
	SuggestedCourses []Course `mapstructure:"suggestedCourses"`
}

// QuestionGenerator produces an ordered list of at least one interview
// question from the candidate materials.
type QuestionGenerator interface {
	GenerateQuestions(ctx context.Context, resume ResumeInput, jobDescription string, stage Stage, count int) ([]string, error)
}

// ResumeAnalyzer matches a resume against a job description.
type ResumeAnalyzer interface {
	AnalyzeResume(ctx context.Context, resume ResumeInput, jobDescription string) (*ResumeInsights, error)
}

// Scorer evaluates a completed interview transcript. One-shot: there is no
// retry built in, and a malformed response is a hard failure.
type Scorer interface {
	ScoreTranscript(ctx context.Context, entries []transcript.Entry, resume ResumeInput, jobDescription string) (*Report, error)
}

// Synthesizer converts text into a raw 16-bit PCM audio payload.
type Synthesizer interface {
	Synthesize(ctx context.Context, text string) ([]byte, error)
}
