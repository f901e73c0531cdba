package gemini

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	_ "embed"

	"go.uber.org/zap"
	"google.golang.org/genai"

	"github.com/spigell/interview-coach/internal/ai"
)

//go:embed questions_prompt.md
var questionsPrompt string

const defaultQuestionCount = 5

var questionsSchema = &genai.Schema{
	Type: genai.TypeObject,
	Properties: map[string]*genai.Schema{
		"questions": {
			Type:  genai.TypeArray,
			Items: &genai.Schema{Type: genai.TypeString},
		},
	},
	Required: []string{"questions"},
}

// GenerateQuestions asks the model for count interview questions tailored to
// the candidate materials. The returned slice is never empty on success.
func (c *Coach) GenerateQuestions(ctx context.Context, resume ai.ResumeInput, jobDescription string, stage ai.Stage, count int) ([]string, error) {
	if strings.TrimSpace(jobDescription) == "" {
		return nil, errors.New("job description is required")
	}
	if count <= 0 {
		count = defaultQuestionCount
	}
	if stage == "" {
		stage = ai.StageBehavioral
	}

	prompt := strings.ReplaceAll(questionsPrompt, "{{STAGE}}", string(stage))
	prompt = strings.ReplaceAll(prompt, "{{JOB_DESCRIPTION}}", strings.TrimSpace(jobDescription))
	prompt = strings.ReplaceAll(prompt, "{{COUNT}}", strconv.Itoa(count))

	raw, err := c.generator.GenerateJSON(ctx, resumeParts(prompt, resume), questionsSchema)
	if err != nil {
		return nil, fmt.Errorf("generate questions: %w", err)
	}

	c.debugExchange("gemini question generation", prompt, raw,
		zap.String("stage", string(stage)),
		zap.Int("requested", count),
	)

	questions, err := parseQuestions(raw)
	if err != nil {
		return nil, err
	}

	return questions, nil
}

func parseQuestions(raw string) ([]string, error) {
	cleaned := extractJSON(raw)

	var data map[string]any
	if err := unmarshalLenient([]byte(cleaned), &data); err != nil {
		// Some models reply with a bare array despite the schema.
		var list []any
		if listErr := unmarshalLenient([]byte(cleaned), &list); listErr != nil {
			return nil, fmt.Errorf("parse questions response: %w", err)
		}
		data = map[string]any{"questions": list}
	}

	questions := coerceStrings(data["questions"])
	if len(questions) == 0 {
		return nil, errors.New("model returned no usable questions")
	}

	return questions, nil
}
