package cmd

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"

	"github.com/spigell/interview-coach/internal/ai"
	"github.com/spigell/interview-coach/internal/ai/gemini"
	"github.com/spigell/interview-coach/internal/capture"
	"github.com/spigell/interview-coach/internal/interview"
	"github.com/spigell/interview-coach/internal/logger"
	"github.com/spigell/interview-coach/internal/playback"
	"github.com/spigell/interview-coach/internal/secrets"
	"github.com/spigell/interview-coach/internal/transcript"

	"github.com/manifoldco/promptui"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"
)

const (
	PromptYes            = "Yes"
	PromptNo             = "No"
	PromptStartRecording = "Start recording"
	PromptStopRecording  = "Stop recording"
	PromptTypeAnswer     = "Type the answer"
	PromptSubmitAnswer   = "Submit answer"
	PromptShowTranscript = "Show transcript"
	PromptQuit           = "Quit"

	answerPreviewLength = 80
)

var errExit = errors.New("exit requested")

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run a mock interview session",
	Run: func(cmd *cobra.Command, _ []string) {
		run(cmd)
	},
}

func init() {
	rootCmd.AddCommand(runCmd)

	runCmd.Flags().StringP("resume-file", "r", "", "path to the resume (plain text, markdown or pdf)")
	runCmd.Flags().String("job-description-file", "", "path to the job description")
	runCmd.Flags().IntP("questions", "q", 0, "number of interview questions to generate")
	runCmd.Flags().String("stage", "", "interview stage: behavioral, technical, system design, culture fit, case study")
	runCmd.Flags().Bool("no-voice", false, "disable speech capture and playback for this session")

	viper.BindPFlag("resume-file", runCmd.Flags().Lookup("resume-file"))
	viper.BindPFlag("job-description-file", runCmd.Flags().Lookup("job-description-file"))
	viper.BindPFlag("interview.questions", runCmd.Flags().Lookup("questions"))
	viper.BindPFlag("interview.stage", runCmd.Flags().Lookup("stage"))
}

// run is the main command for the cli.
func run(cmd *cobra.Command) {
	ctx := context.Background()

	logg, err := logger.New(viper.GetBool("json"), viper.GetBool("debug"))
	if err != nil {
		log.Fatalf("creating a logger: %s", err)
	}

	config, err := getConfig()
	if err != nil {
		logg.Fatal("getting a config", zap.Error(err))
	}

	logg.Info("starting the interview-coach", zap.String("version", version))

	// do not bother error since there is a valid parseable config
	pretty, _ := json.MarshalIndent(config, "", "  ")
	logg.Debug(fmt.Sprintf("starting with config: \n %s", pretty))

	resume, err := loadResume(viper.GetString("resume-file"))
	if err != nil {
		logg.Fatal("loading resume", zap.Error(err),
			zap.String("hint", "pass --resume-file or set the 'resume-file' key in the configuration file"),
		)
	}

	jobDescription, err := loadJobDescription(viper.GetString("job-description-file"))
	if err != nil {
		logg.Fatal("loading job description", zap.Error(err),
			zap.String("hint", "pass --job-description-file or set the 'job-description-file' key in the configuration file"),
		)
	}

	coach, generator, err := newCoach(ctx, config.AI, logg)
	if err != nil {
		logg.Fatal("building ai coach", zap.Error(err))
	}

	insights, err := coach.AnalyzeResume(ctx, resume, jobDescription)
	if err != nil {
		// Insights feed the setup screen only; the interview can run without them.
		logg.Warn("resume analysis failed", zap.Error(err))
	} else {
		printInsights(insights)
	}

	stage := parseStage(viper.GetString("interview.stage"), logg)

	logg.Info("generating interview questions",
		zap.String("stage", string(stage)),
		zap.Int("requested", viper.GetInt("interview.questions")),
	)

	questions, err := coach.GenerateQuestions(ctx, resume, jobDescription, stage, viper.GetInt("interview.questions"))
	if err != nil {
		logg.Fatal("generating questions", zap.Error(err))
	}

	var sess *interview.Session

	deps := interview.Deps{Scorer: coach, Logger: logg}

	voiceOff, _ := cmd.Flags().GetBool("no-voice")
	if config.Voice.Enabled && !voiceOff {
		adapter := capture.NewAdapter(
			capture.WSFactory(config.Voice.RecognizerEndpoint, logg),
			func(text string) {
				if sess != nil {
					sess.AppendAnswerText(text)
				}
			},
			logg,
			capture.WithRestartBudget(config.Voice.RestartBudget),
		)

		player := &playback.CmdPlayer{Command: config.Voice.PlayerCommand}
		deps.Capture = adapter
		deps.Speaker = playback.NewSpeaker(generator, player,
			logger.WithCommonFields(logg, "gemini", generator.SpeechModel()))
	}

	sess, err = interview.New(questions, resume, jobDescription, deps)
	if err != nil {
		logg.Fatal("creating session", zap.Error(err))
	}
	defer sess.Close()

	if err := sess.Start(ctx); err != nil {
		logg.Fatal("starting session", zap.Error(err))
	}

	for {
		printStatus(sess)

		menu := promptui.Select{
			Label: "Choose an action",
			Items: menuItems(sess),
		}

		_, action, err := menu.Run()
		if err != nil {
			logg.Fatal("exiting", zap.Error(err))
		}

		if err := handleAction(ctx, action, sess, logg); err != nil {
			if errors.Is(err, errExit) {
				return
			}
			logg.Warn("action failed", zap.Error(err))
		}
	}
}

// menuItems builds the action list for the current session state. Voice
// actions appear only when capture is actually available.
func menuItems(sess *interview.Session) []string {
	items := make([]string, 0, 5)

	if sess.VoiceSupported() {
		if sess.Status() == interview.StatusRecording {
			items = append(items, PromptStopRecording)
		} else {
			items = append(items, PromptStartRecording)
		}
	}

	return append(items, PromptTypeAnswer, PromptSubmitAnswer, PromptShowTranscript, PromptQuit)
}

func handleAction(ctx context.Context, action string, sess *interview.Session, logg *zap.Logger) error {
	switch action {
	case PromptStartRecording, PromptStopRecording:
		if err := sess.ToggleRecording(); err != nil {
			return err
		}
		if err := sess.CaptureErr(); err != nil {
			fmt.Println(captureHint(err))
		}
		return nil
	case PromptTypeAnswer:
		answer := promptui.Prompt{
			Label:   "Your answer",
			Default: sess.Answer(),
		}
		text, err := answer.Run()
		if err != nil {
			return err
		}
		return sess.ManualTextInput(text)
	case PromptSubmitAnswer:
		report, err := sess.SubmitAnswer(ctx)
		if err != nil {
			return fmt.Errorf("%w (submit again to retry)", err)
		}
		if report != nil {
			printReport(report)
			logg.Info("interview finished", zap.Int64("elapsed_seconds", sess.Elapsed()))
			return errExit
		}
		return nil
	case PromptShowTranscript:
		fmt.Println(transcript.Render(sess.Transcript()))
		return nil
	case PromptQuit:
		confirm := promptui.Select{Label: "Quit the interview?", Items: []string{PromptYes, PromptNo}}
		_, answer, err := confirm.Run()
		if err != nil {
			return err
		}
		if answer == PromptYes {
			logg.Info("exiting", zap.String("reason", "got quit from prompt"))
			return errExit
		}
		return nil
	default:
		return fmt.Errorf("invalid action: %s", action)
	}
}

func printStatus(sess *interview.Session) {
	fmt.Printf("\nQuestion %d of %d [%s, %ds elapsed]\n%s\n",
		sess.CurrentIndex()+1, sess.QuestionCount(), sess.Status(), sess.Elapsed(), sess.CurrentQuestion())

	if answer := sess.Answer(); answer != "" {
		fmt.Printf("Current answer: %s\n", logger.TruncateForLog(answer, answerPreviewLength))
	}

	if err := sess.CaptureErr(); err != nil {
		fmt.Println(captureHint(err))
	}
}

// captureHint maps a classified capture failure to a remediation the
// candidate can act on without aborting the interview.
func captureHint(err error) string {
	switch capture.KindOf(err) {
	case capture.ErrPermissionDenied:
		return "Microphone access was denied. Type the answer instead."
	case capture.ErrNetwork:
		return "The recognition service is unreachable. Start recording again to retry, or type the answer."
	case capture.ErrUnsupported:
		return "Voice capture is not available here. Type the answer instead."
	default:
		return fmt.Sprintf("Voice capture failed: %v. Type the answer instead.", err)
	}
}

func printInsights(insights *ai.ResumeInsights) {
	fmt.Printf("\nResume match: %.0f/100\n", insights.MatchScore)
	if insights.Summary != "" {
		fmt.Printf("%s\n", insights.Summary)
	}
	if insights.ExperienceYears > 0 {
		fmt.Printf("Relevant experience: %.1f years\n", insights.ExperienceYears)
	}
	if len(insights.Skills) > 0 {
		fmt.Printf("Skills: %s\n", strings.Join(insights.Skills, ", "))
	}
	if len(insights.Gaps) > 0 {
		fmt.Printf("Gaps: %s\n", strings.Join(insights.Gaps, ", "))
	}
}

func printReport(report *ai.Report) {
	fmt.Printf("\n=== Interview Report ===\n")
	fmt.Printf("Overall score:    %.0f/100\n", report.OverallScore)
	fmt.Printf("STAR compliance:  %.0f/100\n", report.STARCompliance)
	fmt.Printf("Behavioral score: %.0f/100\n", report.BehavioralScore)
	fmt.Printf("Technical score:  %.0f/100\n", report.TechnicalScore)
	fmt.Printf("\n%s\n", report.Feedback)

	if len(report.KeyStrengths) > 0 {
		fmt.Println("\nKey strengths:")
		for _, s := range report.KeyStrengths {
			fmt.Printf("  - %s\n", s)
		}
	}

	if len(report.ImprovementAreas) > 0 {
		fmt.Println("\nImprovement areas:")
		for _, s := range report.ImprovementAreas {
			fmt.Printf("  - %s\n", s)
		}
	}

	if len(report.SuggestedCourses) > 0 {
		fmt.Println("\nSuggested courses:")
		for _, c := range report.SuggestedCourses {
			line := c.Title
			if c.Provider != "" {
				line += " / " + c.Provider
			}
			if c.URL != "" {
				line += " / " + c.URL
			}
			fmt.Printf("  - %s\n", line)
		}
	}
}

func newCoach(ctx context.Context, cfg *AIConfig, logg *zap.Logger) (*gemini.Coach, *gemini.Generator, error) {
	if cfg == nil || cfg.Gemini == nil {
		return nil, nil, errors.New("gemini configuration is required under the 'ai' section")
	}

	provider := strings.TrimSpace(strings.ToLower(cfg.Provider))
	if provider != "" && provider != "gemini" {
		return nil, nil, fmt.Errorf("unsupported ai provider: %s", cfg.Provider)
	}

	apiKey, err := secrets.Load(secrets.Source{
		Name: "gemini api key",
		File: cfg.Gemini.APIKeyFile,
	})
	if err != nil {
		return nil, nil, fmt.Errorf("%w (set ai.gemini.api-key-file or GEMINI_API_KEY_FILE)", err)
	}

	generator, err := gemini.NewGenerator(ctx, apiKey, gemini.Config{
		TextModel:   cfg.Gemini.Model,
		SpeechModel: cfg.Gemini.SpeechModel,
		Voice:       cfg.Gemini.Voice,
	})
	if err != nil {
		return nil, nil, err
	}

	coachLogger := logger.WithCommonFields(logg, "gemini", generator.TextModel())

	return gemini.NewCoach(generator, coachLogger, cfg.Gemini.MaxLogLength), generator, nil
}

// loadResume reads the resume from disk. PDF files travel to the model as a
// binary attachment; everything else is treated as plain text.
func loadResume(path string) (ai.ResumeInput, error) {
	path = strings.TrimSpace(path)
	if path == "" {
		return ai.ResumeInput{}, errors.New("resume file is not configured")
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return ai.ResumeInput{}, fmt.Errorf("reading resume file %q: %w", path, err)
	}

	if strings.EqualFold(filepath.Ext(path), ".pdf") {
		return ai.ResumeInput{Data: data, MIMEType: "application/pdf"}, nil
	}

	resume := ai.ResumeInput{Text: strings.TrimSpace(string(data))}
	if resume.IsEmpty() {
		return ai.ResumeInput{}, fmt.Errorf("resume file %q is empty", path)
	}

	return resume, nil
}

func loadJobDescription(path string) (string, error) {
	path = strings.TrimSpace(path)
	if path == "" {
		return "", errors.New("job description file is not configured")
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("reading job description file %q: %w", path, err)
	}

	text := strings.TrimSpace(string(data))
	if text == "" {
		return "", fmt.Errorf("job description file %q is empty", path)
	}

	return text, nil
}

func parseStage(raw string, logg *zap.Logger) ai.Stage {
	stage := ai.Stage(strings.TrimSpace(strings.ToLower(raw)))
	switch stage {
	case "":
		return ai.StageBehavioral
	case ai.StageBehavioral, ai.StageTechnical, ai.StageSystemDesign, ai.StageCultureFit, ai.StageCaseStudy:
		return stage
	default:
		logg.Warn("unknown interview stage, falling back to behavioral", zap.String("stage", raw))
		return ai.StageBehavioral
	}
}
