package repository

import (
	"encoding/json"
	"strings"
	"testing"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/utils/tests"

	"saferide-service/internal/domain/detection"
)

// dryRunDB builds statements without executing them, so query construction
// can be verified without a database.
func dryRunDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(tests.DummyDialector{}, &gorm.Config{DryRun: true})
	if err != nil {
		t.Fatalf("open dry-run db: %v", err)
	}
	return db
}

func hasVar(vars []interface{}, want interface{}) bool {
	for _, v := range vars {
		if v == want {
			return true
		}
	}
	return false
}

func TestDetectionKeyIsDeterministic(t *testing.T) {
	frameID := uuid.MustParse("3b241101-e2bb-4255-8caf-4136c566a962")

	first := DetectionKey(frameID, 0)
	second := DetectionKey(frameID, 0)
	if first != second {
		t.Errorf("same frame and index produced different keys: %q vs %q", first, second)
	}

	if DetectionKey(frameID, 0) == DetectionKey(frameID, 1) {
		t.Error("different detection indexes must produce different keys")
	}
	if DetectionKey(frameID, 1) == DetectionKey(uuid.New(), 1) {
		t.Error("different frames must produce different keys")
	}

	want := "3b241101-e2bb-4255-8caf-4136c566a962:2"
	if got := DetectionKey(frameID, 2); got != want {
		t.Errorf("DetectionKey = %q, want %q", got, want)
	}
}

func TestBuildRowsPreservesDetectionFields(t *testing.T) {
	frameID := uuid.MustParse("3b241101-e2bb-4255-8caf-4136c566a962")
	detections := []detection.Detection{
		{Label: "no helmet", Confidence: 0.93, BBox: detection.BBox{10, 20, 110, 220}},
		{Label: "accident", Confidence: 0.71, BBox: detection.BBox{5, 5, 50, 50}},
	}

	rows, err := buildRows(frameID, "frame_17.jpg", "https://bucket.s3.region.amazonaws.com/detections/frame_17.jpg", detections)
	if err != nil {
		t.Fatalf("buildRows: %v", err)
	}
	if len(rows) != 2 {
		t.Fatalf("rows = %d, want 2", len(rows))
	}

	for i, row := range rows {
		if row.Filename != "frame_17.jpg" {
			t.Errorf("row %d filename = %q", i, row.Filename)
		}
		if row.S3URL != "https://bucket.s3.region.amazonaws.com/detections/frame_17.jpg" {
			t.Errorf("row %d s3 url = %q", i, row.S3URL)
		}
		if row.ClassLabel != detections[i].Label {
			t.Errorf("row %d label = %q, want %q", i, row.ClassLabel, detections[i].Label)
		}
		if row.Confidence != detections[i].Confidence {
			t.Errorf("row %d confidence = %v, want %v", i, row.Confidence, detections[i].Confidence)
		}
		if row.DetectionKey != DetectionKey(frameID, i) {
			t.Errorf("row %d key = %q, want %q", i, row.DetectionKey, DetectionKey(frameID, i))
		}

		var bbox detection.BBox
		if err := json.Unmarshal(row.BBox, &bbox); err != nil {
			t.Fatalf("row %d bbox: %v", i, err)
		}
		if bbox != detections[i].BBox {
			t.Errorf("row %d bbox = %v, want %v", i, bbox, detections[i].BBox)
		}
	}
}

func TestRecentQueryConstruction(t *testing.T) {
	db := dryRunDB(t)

	t.Run("filtered", func(t *testing.T) {
		var logs []DetectionLog
		stmt := recentQuery(db.Model(&DetectionLog{}), "helmet", 25).Find(&logs).Statement

		sql := stmt.SQL.String()
		if !strings.Contains(sql, "detection_logs") {
			t.Errorf("query does not target detection_logs: %s", sql)
		}
		if !strings.Contains(sql, "class_label ILIKE ?") {
			t.Errorf("missing case-insensitive label filter: %s", sql)
		}
		if !strings.Contains(sql, "ORDER BY timestamp DESC") {
			t.Errorf("missing newest-first ordering: %s", sql)
		}
		if !strings.Contains(sql, "LIMIT") {
			t.Errorf("missing limit: %s", sql)
		}
		if !hasVar(stmt.Vars, "%helmet%") {
			t.Errorf("vars = %v, want substring pattern %%helmet%%", stmt.Vars)
		}
		if !hasVar(stmt.Vars, 25) {
			t.Errorf("vars = %v, want limit 25", stmt.Vars)
		}
	})

	t.Run("unfiltered", func(t *testing.T) {
		var logs []DetectionLog
		stmt := recentQuery(db.Model(&DetectionLog{}), "", 50).Find(&logs).Statement

		sql := stmt.SQL.String()
		if strings.Contains(sql, "ILIKE") {
			t.Errorf("empty filter must not add a label condition: %s", sql)
		}
		if !strings.Contains(sql, "ORDER BY timestamp DESC") {
			t.Errorf("missing newest-first ordering: %s", sql)
		}
	})
}

func TestHelmetQueryConstruction(t *testing.T) {
	db := dryRunDB(t)

	var logs []DetectionLog
	stmt := helmetQuery(db.Model(&DetectionLog{}), 50).Find(&logs).Statement

	sql := stmt.SQL.String()
	if !strings.Contains(sql, "class_label ILIKE ? OR class_label ILIKE ?") {
		t.Errorf("missing helmet label filter: %s", sql)
	}
	if !strings.Contains(sql, "ORDER BY timestamp DESC") {
		t.Errorf("missing newest-first ordering: %s", sql)
	}
	if !strings.Contains(sql, "LIMIT") {
		t.Errorf("missing limit: %s", sql)
	}
	if !hasVar(stmt.Vars, "%helmet%") || !hasVar(stmt.Vars, "%no helmet%") {
		t.Errorf("vars = %v, want both helmet patterns", stmt.Vars)
	}
}
