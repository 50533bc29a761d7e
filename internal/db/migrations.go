package db

import (
	"fmt"

	"gorm.io/gorm"
)

// Every statement is idempotent, the full list runs on each process start.
var migrationStatements = []string{
	`CREATE TABLE IF NOT EXISTS detection_logs (
		id              BIGSERIAL PRIMARY KEY,
		timestamp       TIMESTAMPTZ NOT NULL DEFAULT now(),
		filename        TEXT NOT NULL,
		s3_url          TEXT NOT NULL,
		class_label     VARCHAR(50) NOT NULL,
		confidence      REAL NOT NULL,
		bbox            JSONB,
		detection_key   TEXT NOT NULL
	);`,

	// Retried frames upsert on the deterministic per-detection key, so one
	// detected object yields exactly one row.
	`CREATE UNIQUE INDEX IF NOT EXISTS ux_detection_logs_detection_key ON detection_logs(detection_key);`,

	`CREATE INDEX IF NOT EXISTS idx_detection_logs_timestamp ON detection_logs(timestamp DESC);`,
	`CREATE INDEX IF NOT EXISTS idx_detection_logs_class_label ON detection_logs(lower(class_label));`,
	`CREATE INDEX IF NOT EXISTS idx_detection_logs_filename ON detection_logs(filename);`,
}

func runMigrations(database *gorm.DB) error {
	for i, stmt := range migrationStatements {
		if err := database.Exec(stmt).Error; err != nil {
			return fmt.Errorf("migration %d failed: %w", i+1, err)
		}
	}
	return nil
}
