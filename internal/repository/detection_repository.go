package repository

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"saferide-service/internal/domain/detection"
)

type DetectionRepository struct {
	db *gorm.DB
}

func NewDetectionRepository(db *gorm.DB) *DetectionRepository {
	return &DetectionRepository{db: db}
}

func (DetectionLog) TableName() string {
	return "detection_logs"
}

// DetectionLog is one row per detected object per processed frame. Rows are
// append-only, id and timestamp are store-assigned.
type DetectionLog struct {
	ID           int64          `gorm:"primaryKey"`
	Timestamp    time.Time      `gorm:"default:now()"`
	Filename     string         `gorm:"not null"`
	S3URL        string         `gorm:"column:s3_url;not null"`
	ClassLabel   string         `gorm:"not null"`
	Confidence   float64        `gorm:"not null"`
	BBox         datatypes.JSON `gorm:"column:bbox;type:jsonb"`
	DetectionKey string         `gorm:"not null;uniqueIndex"`
}

// DetectionKey derives the idempotency key for one detection within one frame
// run. It is deterministic, so a retried frame maps onto the same keys.
func DetectionKey(frameID uuid.UUID, index int) string {
	return fmt.Sprintf("%s:%d", frameID, index)
}

// buildRows maps one frame's detections onto insertable rows, one per
// detection, each carrying its deterministic key.
func buildRows(frameID uuid.UUID, filename, s3URL string, detections []detection.Detection) ([]DetectionLog, error) {
	rows := make([]DetectionLog, 0, len(detections))
	for i, det := range detections {
		bbox, err := json.Marshal(det.BBox)
		if err != nil {
			return nil, fmt.Errorf("marshal bbox: %w", err)
		}
		rows = append(rows, DetectionLog{
			Filename:     filename,
			S3URL:        s3URL,
			ClassLabel:   det.Label,
			Confidence:   det.Confidence,
			BBox:         datatypes.JSON(bbox),
			DetectionKey: DetectionKey(frameID, i),
		})
	}
	return rows, nil
}

// InsertBatch writes all detections of one frame in a single transaction.
// Conflicting detection keys are skipped, which makes retries idempotent;
// either the whole frame's batch lands or none of it does.
func (r *DetectionRepository) InsertBatch(ctx context.Context, frameID uuid.UUID, filename, s3URL string, detections []detection.Detection) error {
	if len(detections) == 0 {
		return nil
	}

	rows, err := buildRows(frameID, filename, s3URL, detections)
	if err != nil {
		return err
	}

	err = r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return tx.
			Clauses(clause.OnConflict{
				Columns:   []clause.Column{{Name: "detection_key"}},
				DoNothing: true,
			}).
			Create(&rows).Error
	})
	if err != nil {
		return fmt.Errorf("failed to insert detection batch: %w", err)
	}
	return nil
}

// recentQuery narrows to labels containing labelQuery (case-insensitive) and
// orders newest first with a hard limit.
func recentQuery(tx *gorm.DB, labelQuery string, limit int) *gorm.DB {
	if labelQuery != "" {
		tx = tx.Where("class_label ILIKE ?", "%"+labelQuery+"%")
	}
	tx = tx.Order("timestamp DESC")
	if limit > 0 {
		tx = tx.Limit(limit)
	}
	return tx
}

// helmetQuery is the fixed filter used by the report export and the retrieval
// assistant: helmet / no-helmet records, newest first.
func helmetQuery(tx *gorm.DB, limit int) *gorm.DB {
	tx = tx.
		Where("class_label ILIKE ? OR class_label ILIKE ?", "%helmet%", "%no helmet%").
		Order("timestamp DESC")
	if limit > 0 {
		tx = tx.Limit(limit)
	}
	return tx
}

// RecentDetections returns up to limit records newest first, optionally
// narrowed to labels containing labelQuery (case-insensitive).
func (r *DetectionRepository) RecentDetections(ctx context.Context, labelQuery string, limit int) ([]DetectionLog, error) {
	var logs []DetectionLog
	err := recentQuery(r.db.WithContext(ctx).Model(&DetectionLog{}), labelQuery, limit).Find(&logs).Error
	return logs, err
}

// RecentHelmetDetections is the fixed query used by the report export and the
// retrieval assistant.
func (r *DetectionRepository) RecentHelmetDetections(ctx context.Context, limit int) ([]DetectionLog, error) {
	var logs []DetectionLog
	err := helmetQuery(r.db.WithContext(ctx).Model(&DetectionLog{}), limit).Find(&logs).Error
	return logs, err
}
