package assistant

import (
	"context"
	"fmt"
	"strings"

	"github.com/rs/zerolog"

	"saferide-service/internal/repository"
)

const (
	groundingLimit = 50

	noRecordsContext = "No helmet detection records found."
)

// RecordSource supplies the recent detection records used as grounding
// context.
type RecordSource interface {
	RecentHelmetDetections(ctx context.Context, limit int) ([]repository.DetectionLog, error)
}

// Completer is the black-box text completion backend.
type Completer interface {
	Chat(ctx context.Context, prompt string) (string, error)
}

// Assistant answers operator questions strictly from the detection log. Each
// call is stateless: fresh records, one prompt, the backend's reply verbatim.
type Assistant struct {
	records RecordSource
	llm     Completer
	log     zerolog.Logger
}

func New(records RecordSource, llm Completer, log zerolog.Logger) *Assistant {
	return &Assistant{
		records: records,
		llm:     llm,
		log:     log,
	}
}

func (a *Assistant) Answer(ctx context.Context, question string) (string, []repository.DetectionLog, error) {
	logs, err := a.records.RecentHelmetDetections(ctx, groundingLimit)
	if err != nil {
		a.log.Error().Err(err).Msg("failed to load grounding records")
		return "", nil, fmt.Errorf("failed to load detection records: %w", err)
	}

	prompt := buildPrompt(formatContext(logs), question)

	answer, err := a.llm.Chat(ctx, prompt)
	if err != nil {
		a.log.Error().Err(err).Msg("completion backend failed")
		return "", nil, fmt.Errorf("completion failed: %w", err)
	}

	a.log.Debug().Int("grounding_records", len(logs)).Msg("assistant answered")
	return answer, logs, nil
}

// formatContext renders the records newest-first, one line each, or the
// fixed no-records sentence when the log is empty.
func formatContext(logs []repository.DetectionLog) string {
	if len(logs) == 0 {
		return noRecordsContext
	}

	lines := make([]string, 0, len(logs))
	for _, l := range logs {
		lines = append(lines, fmt.Sprintf("%s | %s (%.2f) | %s | %s",
			l.Timestamp.Format("2006-01-02 15:04:05"),
			l.ClassLabel,
			l.Confidence,
			l.Filename,
			l.S3URL,
		))
	}
	return strings.Join(lines, "\n")
}

func buildPrompt(groundingContext, question string) string {
	return fmt.Sprintf(`You are a road safety assistant.
Answer ONLY based on the following helmet detection logs.
If the question is outside this scope, reply: "I can only answer about helmet detections."

%s

User Question: %s
`, groundingContext, question)
}
