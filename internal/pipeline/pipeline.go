package pipeline

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"saferide-service/internal/domain/detection"
	"saferide-service/internal/storage"
	"saferide-service/internal/utils"
)

const accidentAction = "Accident Detected"

type Detector interface {
	Detect(ctx context.Context, imagePath string) ([]detection.Detection, string, error)
}

type Store interface {
	InsertBatch(ctx context.Context, frameID uuid.UUID, filename, s3URL string, detections []detection.Detection) error
}

type Archiver interface {
	ObjectURL(key string) string
	Upload(ctx context.Context, localPath, key string, sidecar *storage.Sidecar, contentType string) (string, error)
}

type Alerter interface {
	SendAccidentAlert(ctx context.Context, filename, artifactURL, action string) error
}

// Pipeline runs one frame through detect → persist → archive → alert. One
// instance serves both operating modes; only the alert threshold and the
// object key differ per call.
type Pipeline struct {
	detector Detector
	store    Store
	archiver Archiver
	alerter  Alerter
	log      zerolog.Logger
}

func New(det Detector, store Store, archiver Archiver, alerter Alerter, log zerolog.Logger) *Pipeline {
	return &Pipeline{
		detector: det,
		store:    store,
		archiver: archiver,
		alerter:  alerter,
		log:      log,
	}
}

// ProcessFrame handles a single materialized frame. Detection and persistence
// failures abort the frame; archive and alert failures are logged and the
// frame still completes with whatever made it through. Archiving happens
// unconditionally, even for a frame with zero detections.
func (p *Pipeline) ProcessFrame(ctx context.Context, localPath, key string, contentType string, alertThreshold float64) (*detection.FrameResult, error) {
	frameID := uuid.New()

	detections, artifactPath, err := p.detector.Detect(ctx, localPath)
	if err != nil {
		p.log.Error().Err(err).Str("path", localPath).Msg("detection failed")
		return nil, fmt.Errorf("detection failed: %w", err)
	}
	if artifactPath != localPath {
		defer os.Remove(artifactPath)
	}

	// The archived artifact is the rendered detection output; its basename is
	// what detection rows carry as filename.
	filename := filepath.Base(artifactPath)
	artifactURL := p.archiver.ObjectURL(key)

	if len(detections) > 0 {
		if err := p.store.InsertBatch(ctx, frameID, filename, artifactURL, detections); err != nil {
			p.log.Error().Err(err).Str("filename", filename).Str("frame_id", frameID.String()).Msg("failed to persist detections")
			return nil, fmt.Errorf("persist detections: %w", err)
		}
	}

	archiveError := ""
	uploadedURL, err := p.archiver.Upload(ctx, artifactPath, key, &storage.Sidecar{Detections: detections}, contentType)
	if err != nil {
		// A partial archive still carries a usable media URL; report it
		// but keep the frame alive.
		p.log.Error().Err(err).Str("key", key).Msg("artifact archive incomplete")
		archiveError = err.Error()
	}
	if uploadedURL != "" {
		artifactURL = uploadedURL
	}

	alertsSent := 0
	for _, det := range detections {
		if !utils.IsAccident(det.Label) || det.Confidence <= alertThreshold {
			continue
		}
		if err := p.alerter.SendAccidentAlert(ctx, filename, artifactURL, accidentAction); err != nil {
			p.log.Error().Err(err).Str("filename", filename).Float64("confidence", det.Confidence).Msg("accident alert failed")
			continue
		}
		alertsSent++
	}

	p.log.Info().
		Str("frame_id", frameID.String()).
		Str("filename", filename).
		Str("url", artifactURL).
		Int("detections", len(detections)).
		Int("alerts_sent", alertsSent).
		Msg("frame processed")

	return &detection.FrameResult{
		FrameID:      frameID,
		Filename:     filename,
		URL:          artifactURL,
		Detections:   detections,
		AlertsSent:   alertsSent,
		ArchiveError: archiveError,
	}, nil
}
