// Package transcript holds the append-only record of interview turns.
package transcript

import "strings"

// Speaker identifies who produced a transcript entry.
type Speaker string

const (
	SpeakerAI   Speaker = "AI"
	SpeakerUser Speaker = "USER"
)

// Entry is a single spoken or typed turn.
type Entry struct {
	Speaker Speaker `json:"speaker"`
	Text    string  `json:"text"`
}

// Log is an ordered, append-only sequence of entries. It is owned and
// mutated exclusively by the interview session; the zero value is usable.
type Log struct {
	entries []Entry
}

// AppendAI records a question spoken by the interviewer.
func (l *Log) AppendAI(text string) {
	l.entries = append(l.entries, Entry{Speaker: SpeakerAI, Text: text})
}

// AppendUser records a finalized candidate answer.
func (l *Log) AppendUser(text string) {
	l.entries = append(l.entries, Entry{Speaker: SpeakerUser, Text: text})
}

// Entries returns a copy of the recorded entries.
func (l *Log) Entries() []Entry {
	out := make([]Entry, len(l.entries))
	copy(out, l.entries)
	return out
}

// Len returns the number of recorded entries.
func (l *Log) Len() int {
	return len(l.entries)
}

// CountBySpeaker returns how many entries the given speaker produced.
func (l *Log) CountBySpeaker(s Speaker) int {
	n := 0
	for _, e := range l.entries {
		if e.Speaker == s {
			n++
		}
	}
	return n
}

// Render formats the log as "SPEAKER: text" lines, one per entry. Used for
// prompt construction and debug output.
func (l *Log) Render() string {
	return Render(l.entries)
}

// Render formats entries as "SPEAKER: text" lines, one per entry.
func Render(entries []Entry) string {
	var b strings.Builder
	for i, e := range entries {
		if i > 0 {
			b.WriteString("\n")
		}
		b.WriteString(string(e.Speaker))
		b.WriteString(": ")
		b.WriteString(e.Text)
	}
	return b.String()
}
