package detector

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"saferide-service/internal/domain/detection"
	"saferide-service/internal/utils"
)

// Client talks to the inference backend serving the trained helmet/accident
// model. The model itself is a black box: one frame in, labeled boxes plus
// the rendered detection output out.
type Client struct {
	baseURL    string
	httpClient *http.Client
}

type detectResponse struct {
	Detections []struct {
		Class      string     `json:"class"`
		Confidence float64    `json:"confidence"`
		BBox       [4]float64 `json:"bbox"`
	} `json:"detections"`
	// AnnotatedImage is the base64-encoded frame with boxes drawn on it.
	// Backends that do not render output omit it.
	AnnotatedImage string `json:"annotated_image"`
}

func NewClient(baseURL string, timeout time.Duration) *Client {
	if timeout == 0 {
		timeout = 60 * time.Second
	}
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: timeout},
	}
}

// Ping verifies the backend has its model loaded. Callers treat a failure
// here as fatal at startup.
func (c *Client) Ping(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/health", nil)
	if err != nil {
		return err
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("detector backend unreachable: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("detector backend unhealthy: status %d", resp.StatusCode)
	}
	return nil
}

// Detect posts one frame and returns the labeled boxes found in it plus the
// path of the rendered detection output. When the backend returns an
// annotated image it is written next to the input under predicted/ with the
// same basename; otherwise the input path is returned. Labels are normalized
// before they reach any downstream consumer. An empty detection list is a
// valid outcome, not an error.
func (c *Client) Detect(ctx context.Context, imagePath string) ([]detection.Detection, string, error) {
	file, err := os.Open(imagePath)
	if err != nil {
		return nil, "", fmt.Errorf("open frame %s: %w", imagePath, err)
	}
	defer file.Close()

	var buf bytes.Buffer
	writer := multipart.NewWriter(&buf)
	part, err := writer.CreateFormFile("file", filepath.Base(imagePath))
	if err != nil {
		return nil, "", err
	}
	if _, err := io.Copy(part, file); err != nil {
		return nil, "", fmt.Errorf("read frame: %w", err)
	}
	if err := writer.Close(); err != nil {
		return nil, "", err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/detect", &buf)
	if err != nil {
		return nil, "", err
	}
	req.Header.Set("Content-Type", writer.FormDataContentType())

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, "", fmt.Errorf("detector request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, "", fmt.Errorf("detector returned status %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}

	var decoded detectResponse
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		return nil, "", fmt.Errorf("decode detector response: %w", err)
	}

	detections := make([]detection.Detection, 0, len(decoded.Detections))
	for _, d := range decoded.Detections {
		detections = append(detections, detection.Detection{
			Label:      utils.NormalizeLabel(d.Class),
			Confidence: d.Confidence,
			BBox:       detection.BBox(d.BBox),
		})
	}

	outputPath := imagePath
	if decoded.AnnotatedImage != "" {
		rendered, err := base64.StdEncoding.DecodeString(decoded.AnnotatedImage)
		if err != nil {
			return nil, "", fmt.Errorf("decode annotated image: %w", err)
		}
		outputPath = annotatedPathFor(imagePath)
		if err := os.MkdirAll(filepath.Dir(outputPath), 0o755); err != nil {
			return nil, "", fmt.Errorf("create output dir: %w", err)
		}
		if err := os.WriteFile(outputPath, rendered, 0o644); err != nil {
			return nil, "", fmt.Errorf("write annotated image: %w", err)
		}
	}

	return detections, outputPath, nil
}

// annotatedPathFor keeps the frame's basename so the archived object key and
// the persisted filename stay aligned with the input.
func annotatedPathFor(imagePath string) string {
	return filepath.Join(filepath.Dir(imagePath), "predicted", filepath.Base(imagePath))
}
