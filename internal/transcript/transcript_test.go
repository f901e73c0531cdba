package transcript

import "testing"

func TestLogAppendOrder(t *testing.T) {
	log := &Log{}
	log.AppendAI("Tell me about yourself")
	log.AppendUser("I led a project")
	log.AppendAI("Describe a challenge")

	entries := log.Entries()
	if len(entries) != 3 {
		t.Fatalf("expected 3 entries, got %d", len(entries))
	}

	if entries[0].Speaker != SpeakerAI || entries[1].Speaker != SpeakerUser {
		t.Fatalf("unexpected speaker order: %+v", entries)
	}

	if log.CountBySpeaker(SpeakerAI) != 2 {
		t.Fatalf("expected 2 AI entries, got %d", log.CountBySpeaker(SpeakerAI))
	}
}

func TestEntriesReturnsCopy(t *testing.T) {
	log := &Log{}
	log.AppendAI("question")

	entries := log.Entries()
	entries[0].Text = "mutated"

	if log.Entries()[0].Text != "question" {
		t.Fatalf("log entry mutated through snapshot")
	}
}

func TestRender(t *testing.T) {
	log := &Log{}
	log.AppendAI("Q1")
	log.AppendUser("A1")

	want := "AI: Q1\nUSER: A1"
	if got := log.Render(); got != want {
		t.Fatalf("unexpected render output: %q", got)
	}
}
