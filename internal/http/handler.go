package http

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"saferide-service/internal/assistant"
	"saferide-service/internal/config"
	"saferide-service/internal/pipeline"
	"saferide-service/internal/service"
)

var allowedExtensions = map[string]string{
	".jpg":  "image/jpeg",
	".jpeg": "image/jpeg",
	".png":  "image/png",
	".mp4":  "video/mp4",
}

type Handler struct {
	detectionService *service.DetectionService
	pipeline         *pipeline.Pipeline
	live             *pipeline.LiveRunner
	assistant        *assistant.Assistant
	config           *config.Config
	log              zerolog.Logger
}

func NewHandler(
	detectionService *service.DetectionService,
	pl *pipeline.Pipeline,
	live *pipeline.LiveRunner,
	asst *assistant.Assistant,
	cfg *config.Config,
	log zerolog.Logger,
) *Handler {
	return &Handler{
		detectionService: detectionService,
		pipeline:         pl,
		live:             live,
		assistant:        asst,
		config:           cfg,
		log:              log,
	}
}

func (h *Handler) Register(r *gin.Engine) {
	api := r.Group("/api/v1")
	{
		api.POST("/frames", h.processFrame)
		api.GET("/detections", h.listDetections)
		api.POST("/live/start", h.startLive)
		api.POST("/live/stop", h.stopLive)
		api.GET("/live/status", h.liveStatus)
		api.POST("/assistant/ask", h.askAssistant)
		api.POST("/reports/email", h.emailReport)
	}
}

// processFrame runs one uploaded media file through the full pipeline and
// returns the archived URL plus the detection list.
func (h *Handler) processFrame(c *gin.Context) {
	fileHeader, err := c.FormFile("file")
	if err != nil {
		c.JSON(http.StatusBadRequest, errorResponse("file is required"))
		return
	}

	ext := strings.ToLower(filepath.Ext(fileHeader.Filename))
	contentType, ok := allowedExtensions[ext]
	if !ok {
		c.JSON(http.StatusBadRequest, errorResponse(fmt.Sprintf("unsupported file type %q", ext)))
		return
	}

	if err := os.MkdirAll(h.config.TempDir, 0o755); err != nil {
		h.log.Error().Err(err).Msg("failed to create temp dir")
		c.JSON(http.StatusInternalServerError, errorResponse("internal error"))
		return
	}

	localPath := filepath.Join(h.config.TempDir, filepath.Base(fileHeader.Filename))
	if err := c.SaveUploadedFile(fileHeader, localPath); err != nil {
		h.log.Error().Err(err).Str("filename", fileHeader.Filename).Msg("failed to save upload")
		c.JSON(http.StatusInternalServerError, errorResponse("failed to save upload"))
		return
	}
	defer os.Remove(localPath)

	h.log.Info().Str("filename", fileHeader.Filename).Msg("processing uploaded frame")

	key := "detections/" + filepath.Base(localPath)
	result, err := h.pipeline.ProcessFrame(c.Request.Context(), localPath, key, contentType, h.config.UploadThreshold)
	if err != nil {
		h.log.Error().Err(err).Str("filename", fileHeader.Filename).Msg("pipeline failed")
		c.JSON(http.StatusInternalServerError, errorResponse("detection pipeline failed"))
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"url":         result.URL,
		"detections":  result.Detections,
		"alerts_sent": result.AlertsSent,
		"warning":     result.ArchiveError,
	})
}

func (h *Handler) listDetections(c *gin.Context) {
	labelQuery := strings.TrimSpace(c.Query("label"))

	limit := 50
	if l := c.Query("limit"); l != "" {
		if parsed, err := strconv.Atoi(l); err == nil && parsed > 0 {
			limit = parsed
		}
	}

	detections, err := h.detectionService.RecentDetections(c.Request.Context(), labelQuery, limit)
	if err != nil {
		h.log.Error().Err(err).Msg("failed to list detections")
		c.JSON(http.StatusInternalServerError, errorResponse("internal error"))
		return
	}

	c.JSON(http.StatusOK, successResponse(detections))
}

func (h *Handler) startLive(c *gin.Context) {
	// The loop outlives this request, so it runs under its own context.
	if err := h.live.Start(context.Background()); err != nil {
		if errors.Is(err, pipeline.ErrAlreadyRunning) {
			c.JSON(http.StatusConflict, errorResponse(err.Error()))
			return
		}
		h.log.Error().Err(err).Msg("failed to start live capture")
		c.JSON(http.StatusInternalServerError, errorResponse("failed to start live capture"))
		return
	}

	c.JSON(http.StatusOK, gin.H{"status": "started"})
}

func (h *Handler) stopLive(c *gin.Context) {
	h.live.Stop()
	c.JSON(http.StatusOK, gin.H{"status": "stopping"})
}

func (h *Handler) liveStatus(c *gin.Context) {
	c.JSON(http.StatusOK, successResponse(h.live.Status()))
}

func (h *Handler) askAssistant(c *gin.Context) {
	var req struct {
		Question string `json:"question" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, errorResponse(err.Error()))
		return
	}

	answer, records, err := h.assistant.Answer(c.Request.Context(), req.Question)
	if err != nil {
		h.log.Error().Err(err).Msg("assistant failed")
		c.JSON(http.StatusInternalServerError, errorResponse("assistant unavailable"))
		return
	}

	grounding := make([]assistantRecord, 0, len(records))
	for _, rec := range records {
		grounding = append(grounding, assistantRecord{
			Timestamp:  rec.Timestamp,
			ClassLabel: rec.ClassLabel,
			Confidence: rec.Confidence,
			Filename:   rec.Filename,
			S3URL:      rec.S3URL,
		})
	}

	c.JSON(http.StatusOK, gin.H{
		"answer":  answer,
		"records": grounding,
	})
}

// assistantRecord is the detection-log slice the assistant grounded its
// answer on, echoed back so callers can verify the answer against the data.
type assistantRecord struct {
	Timestamp  time.Time `json:"timestamp"`
	ClassLabel string    `json:"class_label"`
	Confidence float64   `json:"confidence"`
	Filename   string    `json:"filename"`
	S3URL      string    `json:"s3_url"`
}

func (h *Handler) emailReport(c *gin.Context) {
	var req struct {
		Recipient string `json:"recipient" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, errorResponse(err.Error()))
		return
	}

	err := h.detectionService.EmailReport(c.Request.Context(), req.Recipient)
	switch {
	case err == nil:
		c.JSON(http.StatusOK, gin.H{
			"sent":    true,
			"message": fmt.Sprintf("report sent to %s", req.Recipient),
		})
	case errors.Is(err, service.ErrNoRecords):
		c.JSON(http.StatusOK, gin.H{
			"sent":    false,
			"message": "no helmet detection records found",
		})
	case errors.Is(err, service.ErrInvalidInput):
		c.JSON(http.StatusBadRequest, errorResponse(err.Error()))
	default:
		h.log.Error().Err(err).Str("recipient", req.Recipient).Msg("report email failed")
		c.JSON(http.StatusInternalServerError, gin.H{
			"sent":    false,
			"message": "failed to send report",
		})
	}
}

func successResponse(data interface{}) gin.H {
	return gin.H{
		"data": data,
	}
}

func errorResponse(message string) gin.H {
	return gin.H{
		"error": message,
	}
}
