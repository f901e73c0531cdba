package gemini

import (
	"context"
	"strings"

	"go.uber.org/zap"
	"google.golang.org/genai"

	"github.com/spigell/interview-coach/internal/ai"
	"github.com/spigell/interview-coach/internal/logger"
)

type jsonGenerator interface {
	GenerateJSON(ctx context.Context, parts []*genai.Part, schema *genai.Schema) (string, error)
}

const defaultMaxLogLength = 200

// Coach implements question generation, resume analysis and transcript
// scoring on top of a JSON-mode content generator.
type Coach struct {
	generator jsonGenerator
	logger    *zap.Logger
	maxLogLen int
}

// NewCoach builds a Coach over the provided generator.
func NewCoach(generator jsonGenerator, log *zap.Logger, maxLogLength int) *Coach {
	if maxLogLength <= 0 {
		maxLogLength = defaultMaxLogLength
	}
	if log == nil {
		log = zap.NewNop()
	}

	return &Coach{
		generator: generator,
		logger:    log,
		maxLogLen: maxLogLength,
	}
}

// resumeParts renders the resume into the prompt: inline when it is plain
// text, as an attached document part when it is a binary upload.
func resumeParts(prompt string, resume ai.ResumeInput) []*genai.Part {
	if len(resume.Data) > 0 {
		prompt = strings.ReplaceAll(prompt, "{{RESUME}}", "(see the attached document)")
		return []*genai.Part{
			{Text: prompt},
			{InlineData: &genai.Blob{MIMEType: resume.MIMEType, Data: resume.Data}},
		}
	}

	text := strings.TrimSpace(resume.Text)
	if text == "" {
		text = "(not provided)"
	}
	return []*genai.Part{{Text: strings.ReplaceAll(prompt, "{{RESUME}}", text)}}
}

func (c *Coach) debugExchange(step string, prompt, raw string, fields ...zap.Field) {
	fields = append(fields,
		zap.String("prompt_preview", logger.TruncateForLog(prompt, c.maxLogLen)),
		zap.String("response_preview", logger.TruncateForLog(raw, c.maxLogLen)),
	)
	c.logger.Debug(step, fields...)
}
