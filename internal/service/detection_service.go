package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/rs/zerolog"

	"saferide-service/internal/repository"
)

var (
	ErrInvalidInput = errors.New("invalid input")
	ErrNoRecords    = errors.New("no detection records found")
)

const reportLimit = 50

// ReportMailer sends a generated report file to an operator address.
type ReportMailer interface {
	SendReport(recipient, subject, body, attachmentPath string) error
}

// ReportBuilder renders detection records into a tabular document.
type ReportBuilder func(records []repository.DetectionLog, path string) error

// RecordSource is the read side of the detection store.
type RecordSource interface {
	RecentDetections(ctx context.Context, labelQuery string, limit int) ([]repository.DetectionLog, error)
	RecentHelmetDetections(ctx context.Context, limit int) ([]repository.DetectionLog, error)
}

type DetectionService struct {
	repo    RecordSource
	mailer  ReportMailer
	build   ReportBuilder
	tempDir string
	log     zerolog.Logger
}

func NewDetectionService(repo RecordSource, mailer ReportMailer, build ReportBuilder, tempDir string, log zerolog.Logger) *DetectionService {
	return &DetectionService{
		repo:    repo,
		mailer:  mailer,
		build:   build,
		tempDir: tempDir,
		log:     log,
	}
}

type DetectionInfo struct {
	ID         int64     `json:"id"`
	Timestamp  time.Time `json:"timestamp"`
	Filename   string    `json:"filename"`
	S3URL      string    `json:"s3_url"`
	ClassLabel string    `json:"class_label"`
	Confidence float64   `json:"confidence"`
	BBox       []float64 `json:"bbox,omitempty"`
}

// RecentDetections returns up to limit records newest first, optionally
// filtered by a label substring.
func (s *DetectionService) RecentDetections(ctx context.Context, labelQuery string, limit int) ([]DetectionInfo, error) {
	if limit <= 0 {
		limit = 50
	}
	if limit > 100 {
		limit = 100
	}

	logs, err := s.repo.RecentDetections(ctx, labelQuery, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query detections: %w", err)
	}

	result := make([]DetectionInfo, 0, len(logs))
	for _, l := range logs {
		info := DetectionInfo{
			ID:         l.ID,
			Timestamp:  l.Timestamp,
			Filename:   l.Filename,
			S3URL:      l.S3URL,
			ClassLabel: l.ClassLabel,
			Confidence: l.Confidence,
		}
		if len(l.BBox) > 0 {
			var bbox []float64
			if err := json.Unmarshal(l.BBox, &bbox); err == nil {
				info.BBox = bbox
			}
		}
		result = append(result, info)
	}
	return result, nil
}

// EmailReport renders the last 50 helmet records into a report document and
// mails it. Failures never escape as panics or raw errors to the surface;
// callers get the error to turn into a visible status.
func (s *DetectionService) EmailReport(ctx context.Context, recipient string) error {
	if recipient == "" {
		return fmt.Errorf("%w: recipient email is required", ErrInvalidInput)
	}

	logs, err := s.repo.RecentHelmetDetections(ctx, reportLimit)
	if err != nil {
		s.log.Error().Err(err).Msg("failed to query records for report")
		return fmt.Errorf("failed to query records: %w", err)
	}
	if len(logs) == 0 {
		return ErrNoRecords
	}

	if err := os.MkdirAll(s.tempDir, 0o755); err != nil {
		return fmt.Errorf("create temp dir: %w", err)
	}
	reportPath := filepath.Join(s.tempDir, fmt.Sprintf("helmet_report_%d.xlsx", time.Now().Unix()))
	defer os.Remove(reportPath)

	if err := s.build(logs, reportPath); err != nil {
		s.log.Error().Err(err).Msg("failed to build report document")
		return fmt.Errorf("failed to build report: %w", err)
	}

	if err := s.mailer.SendReport(
		recipient,
		"Helmet Detection Report",
		"Please find the attached helmet detection report.",
		reportPath,
	); err != nil {
		return fmt.Errorf("failed to send report: %w", err)
	}

	s.log.Info().Str("recipient", recipient).Int("records", len(logs)).Msg("detection report emailed")
	return nil
}
