package interview

import "fmt"

// Status is the discriminated session state.
type Status string

// Event names a session state transition trigger.
type Event string

const (
	// StatusIdle is the pre-start state.
	StatusIdle Status = "idle"
	// StatusAwaitingAnswer means a question has been asked and the session
	// waits for candidate input.
	StatusAwaitingAnswer Status = "awaiting-answer"
	// StatusRecording means live speech capture feeds the answer buffer.
	StatusRecording Status = "recording"
	// StatusThinking covers the synthesis window for the next question.
	StatusThinking Status = "thinking"
	// StatusScoring covers the final analysis call. Never concurrent with
	// Thinking.
	StatusScoring Status = "scoring"
	// StatusComplete is terminal; the report has been produced.
	StatusComplete Status = "complete"
)

const (
	EventBegin         Event = "begin"
	EventQuestionReady Event = "question-ready"
	EventRecord        Event = "record"
	EventPause         Event = "pause"
	EventAdvance       Event = "advance"
	EventFinish        Event = "finish"
	EventScored        Event = "scored"
	EventScoreFailed   Event = "score-failed"
)

// Transition returns the state reached by applying event to current, or an
// error when the move is not allowed.
func Transition(current Status, event Event) (Status, error) {
	switch current {
	case StatusIdle:
		if event == EventBegin {
			return StatusThinking, nil
		}
	case StatusThinking:
		if event == EventQuestionReady {
			return StatusAwaitingAnswer, nil
		}
	case StatusAwaitingAnswer:
		switch event {
		case EventRecord:
			return StatusRecording, nil
		case EventAdvance:
			return StatusThinking, nil
		case EventFinish:
			return StatusScoring, nil
		}
	case StatusRecording:
		switch event {
		case EventPause:
			return StatusAwaitingAnswer, nil
		case EventAdvance:
			return StatusThinking, nil
		case EventFinish:
			return StatusScoring, nil
		}
	case StatusScoring:
		switch event {
		case EventScored:
			return StatusComplete, nil
		case EventScoreFailed:
			return StatusAwaitingAnswer, nil
		}
	case StatusComplete:
		// Terminal.
	default:
		return current, fmt.Errorf("unknown status %q", current)
	}

	return current, fmt.Errorf("invalid transition: %s --(%s)--> ?", current, event)
}
