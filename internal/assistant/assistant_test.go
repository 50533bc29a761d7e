package assistant

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"saferide-service/internal/repository"
)

type fakeRecords struct {
	logs []repository.DetectionLog
	err  error
}

func (f *fakeRecords) RecentHelmetDetections(_ context.Context, limit int) ([]repository.DetectionLog, error) {
	if f.err != nil {
		return nil, f.err
	}
	if limit < len(f.logs) {
		return f.logs[:limit], nil
	}
	return f.logs, nil
}

type fakeCompleter struct {
	gotPrompt string
	reply     string
}

func (f *fakeCompleter) Chat(_ context.Context, prompt string) (string, error) {
	f.gotPrompt = prompt
	return f.reply, nil
}

func TestFormatContext(t *testing.T) {
	logs := []repository.DetectionLog{
		{
			Timestamp:  time.Date(2026, 8, 30, 12, 0, 0, 0, time.UTC),
			Filename:   "frame_9.jpg",
			S3URL:      "https://bucket.s3.region.amazonaws.com/live/9.jpg",
			ClassLabel: "no helmet",
			Confidence: 0.9,
		},
		{
			Timestamp:  time.Date(2026, 8, 29, 12, 0, 0, 0, time.UTC),
			Filename:   "frame_8.jpg",
			S3URL:      "https://bucket.s3.region.amazonaws.com/live/8.jpg",
			ClassLabel: "helmet",
			Confidence: 0.8,
		},
	}

	got := formatContext(logs)
	lines := strings.Split(got, "\n")
	if len(lines) != 2 {
		t.Fatalf("got %d lines, want 2", len(lines))
	}
	want := "2026-08-30 12:00:00 | no helmet (0.90) | frame_9.jpg | https://bucket.s3.region.amazonaws.com/live/9.jpg"
	if lines[0] != want {
		t.Errorf("line 0 = %q\nwant     %q", lines[0], want)
	}
	if !strings.Contains(lines[1], "helmet (0.80)") {
		t.Errorf("line 1 = %q", lines[1])
	}
}

func TestFormatContextEmpty(t *testing.T) {
	if got := formatContext(nil); got != noRecordsContext {
		t.Errorf("formatContext(nil) = %q, want %q", got, noRecordsContext)
	}
}

func TestAnswerWithNoRecordsStillPrompts(t *testing.T) {
	completer := &fakeCompleter{reply: "There are no detections yet."}
	a := New(&fakeRecords{}, completer, zerolog.Nop())

	answer, logs, err := a.Answer(context.Background(), "Any riders without helmets today?")
	if err != nil {
		t.Fatalf("Answer: %v", err)
	}
	if answer != "There are no detections yet." {
		t.Errorf("answer = %q, want backend reply verbatim", answer)
	}
	if len(logs) != 0 {
		t.Errorf("got %d grounding records, want 0", len(logs))
	}
	if !strings.Contains(completer.gotPrompt, noRecordsContext) {
		t.Errorf("prompt missing no-records sentence:\n%s", completer.gotPrompt)
	}
	if !strings.Contains(completer.gotPrompt, "Any riders without helmets today?") {
		t.Errorf("prompt missing verbatim question:\n%s", completer.gotPrompt)
	}
	if !strings.Contains(completer.gotPrompt, "ONLY based on the following helmet detection logs") {
		t.Errorf("prompt missing scope restriction:\n%s", completer.gotPrompt)
	}
}

func TestAnswerReturnsGroundingRecords(t *testing.T) {
	logs := []repository.DetectionLog{
		{ClassLabel: "no helmet", Confidence: 0.9, Filename: "a.jpg"},
	}
	completer := &fakeCompleter{reply: "One rider without a helmet."}
	a := New(&fakeRecords{logs: logs}, completer, zerolog.Nop())

	answer, got, err := a.Answer(context.Background(), "how many?")
	if err != nil {
		t.Fatalf("Answer: %v", err)
	}
	if answer == "" || len(got) != 1 {
		t.Errorf("answer=%q records=%d", answer, len(got))
	}
	if !strings.Contains(completer.gotPrompt, "a.jpg") {
		t.Errorf("prompt missing record context:\n%s", completer.gotPrompt)
	}
}
