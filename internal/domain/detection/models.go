package detection

import (
	"github.com/google/uuid"
)

// BBox is a pixel-space bounding box ordered [x1, y1, x2, y2].
type BBox [4]float64

// Detection is one object found in one frame by the inference backend.
type Detection struct {
	Label      string  `json:"class"`
	Confidence float64 `json:"confidence"`
	BBox       BBox    `json:"bbox"`
}

// FrameResult is the outcome of running the pipeline over a single frame.
type FrameResult struct {
	FrameID    uuid.UUID   `json:"frame_id"`
	Filename   string      `json:"filename"`
	URL        string      `json:"url"`
	Detections []Detection `json:"detections"`
	AlertsSent int         `json:"alerts_sent"`

	// ArchiveError carries a user-visible warning when archiving was
	// incomplete; the frame itself still completed.
	ArchiveError string `json:"archive_error,omitempty"`
}
