package pipeline

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"saferide-service/internal/capture"
)

var ErrAlreadyRunning = errors.New("live capture already running")

// LiveStatus is the operator-visible state of the capture loop.
type LiveStatus struct {
	Running         bool   `json:"running"`
	FramesProcessed int64  `json:"frames_processed"`
	LastURL         string `json:"last_url,omitempty"`
	LastError       string `json:"last_error,omitempty"`
}

// LiveRunner drives the continuous capture mode: one goroutine polls the
// camera and feeds every frame through the pipeline sequentially. The stop
// signal is a context cancellation checked before each iteration; an
// in-flight frame always runs to completion.
type LiveRunner struct {
	pipeline  *Pipeline
	source    capture.Source
	tempDir   string
	interval  time.Duration
	threshold float64
	log       zerolog.Logger

	mu     sync.Mutex
	cancel context.CancelFunc
	status LiveStatus
}

func NewLiveRunner(p *Pipeline, source capture.Source, tempDir string, interval time.Duration, threshold float64, log zerolog.Logger) *LiveRunner {
	return &LiveRunner{
		pipeline:  p,
		source:    source,
		tempDir:   tempDir,
		interval:  interval,
		threshold: threshold,
		log:       log,
	}
}

func (r *LiveRunner) Start(ctx context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.status.Running {
		return ErrAlreadyRunning
	}

	if err := os.MkdirAll(r.tempDir, 0o755); err != nil {
		return fmt.Errorf("create temp dir: %w", err)
	}

	loopCtx, cancel := context.WithCancel(ctx)
	r.cancel = cancel
	r.status = LiveStatus{Running: true}

	go r.loop(loopCtx)

	r.log.Info().Msg("live capture started")
	return nil
}

func (r *LiveRunner) Stop() {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.cancel != nil {
		r.cancel()
		r.cancel = nil
	}
}

func (r *LiveRunner) Status() LiveStatus {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.status
}

func (r *LiveRunner) loop(ctx context.Context) {
	defer func() {
		r.mu.Lock()
		r.status.Running = false
		r.cancel = nil
		r.mu.Unlock()
		r.log.Info().Msg("live capture stopped")
	}()

	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		frame, err := r.source.Capture(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			// A dead capture device ends the loop; the operator
			// restarts it once the camera is back.
			r.log.Error().Err(err).Msg("frame capture failed")
			r.setError(err)
			return
		}

		ts := time.Now().Unix()
		localPath := filepath.Join(r.tempDir, fmt.Sprintf("frame_%d.jpg", ts))
		if err := os.WriteFile(localPath, frame, 0o644); err != nil {
			r.log.Error().Err(err).Msg("failed to write frame to disk")
			r.setError(err)
			return
		}

		key := fmt.Sprintf("live/%d.jpg", ts)
		result, err := r.pipeline.ProcessFrame(ctx, localPath, key, "image/jpeg", r.threshold)
		_ = os.Remove(localPath)
		if err != nil {
			// Per-frame failures are surfaced and the loop carries on.
			r.log.Error().Err(err).Msg("live frame failed")
			r.setError(err)
		} else {
			r.mu.Lock()
			r.status.FramesProcessed++
			r.status.LastURL = result.URL
			r.status.LastError = ""
			r.mu.Unlock()
		}

		if r.interval > 0 {
			select {
			case <-ctx.Done():
				return
			case <-time.After(r.interval):
			}
		}
	}
}

func (r *LiveRunner) setError(err error) {
	r.mu.Lock()
	r.status.LastError = err.Error()
	r.mu.Unlock()
}
