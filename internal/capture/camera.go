package capture

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"
)

// Source delivers one frame per call. The live loop blocks on it between
// iterations.
type Source interface {
	Capture(ctx context.Context) ([]byte, error)
}

// SnapshotCamera polls a camera's HTTP snapshot endpoint for JPEG frames.
type SnapshotCamera struct {
	snapshotURL string
	httpClient  *http.Client
}

func NewSnapshotCamera(snapshotURL string) *SnapshotCamera {
	return &SnapshotCamera{
		snapshotURL: snapshotURL,
		httpClient:  &http.Client{Timeout: 10 * time.Second},
	}
}

func (c *SnapshotCamera) Capture(ctx context.Context) ([]byte, error) {
	if c.snapshotURL == "" {
		return nil, fmt.Errorf("camera snapshot URL not configured")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.snapshotURL, nil)
	if err != nil {
		return nil, err
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("camera not accessible: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("camera snapshot returned status %d", resp.StatusCode)
	}

	frame, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read camera frame: %w", err)
	}
	if len(frame) == 0 {
		return nil, fmt.Errorf("camera returned empty frame")
	}
	return frame, nil
}
