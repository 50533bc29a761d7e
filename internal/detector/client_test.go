package detector

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func writeTestFrame(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "frame.jpg")
	if err := os.WriteFile(path, []byte("not-really-a-jpeg"), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestDetectDecodesAndNormalizes(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/detect" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		if err := r.ParseMultipartForm(1 << 20); err != nil {
			t.Errorf("parse multipart: %v", err)
		}
		if _, _, err := r.FormFile("file"); err != nil {
			t.Errorf("missing file part: %v", err)
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"detections":[
			{"class":"No_Helmet","confidence":0.91,"bbox":[10,20,110,220]},
			{"class":"Accident","confidence":0.72,"bbox":[5,5,50,50]}
		]}`))
	}))
	defer srv.Close()

	client := NewClient(srv.URL, 5*time.Second)
	frame := writeTestFrame(t)
	detections, outputPath, err := client.Detect(context.Background(), frame)
	if err != nil {
		t.Fatalf("Detect: %v", err)
	}
	if outputPath != frame {
		t.Errorf("output path = %q, want input path when backend sends no rendered frame", outputPath)
	}

	if len(detections) != 2 {
		t.Fatalf("got %d detections, want 2", len(detections))
	}
	if detections[0].Label != "no helmet" {
		t.Errorf("label = %q, want normalized %q", detections[0].Label, "no helmet")
	}
	if detections[0].Confidence != 0.91 {
		t.Errorf("confidence = %v, want 0.91", detections[0].Confidence)
	}
	if detections[0].BBox != [4]float64{10, 20, 110, 220} {
		t.Errorf("bbox = %v", detections[0].BBox)
	}
	if detections[1].Label != "accident" {
		t.Errorf("label = %q, want %q", detections[1].Label, "accident")
	}
}

func TestDetectEmptyResultIsValid(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"detections":[]}`))
	}))
	defer srv.Close()

	client := NewClient(srv.URL, 5*time.Second)
	detections, _, err := client.Detect(context.Background(), writeTestFrame(t))
	if err != nil {
		t.Fatalf("Detect: %v", err)
	}
	if len(detections) != 0 {
		t.Errorf("got %d detections, want 0", len(detections))
	}
}

func TestDetectWritesRenderedOutput(t *testing.T) {
	rendered := []byte("jpeg-with-boxes")
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		resp := map[string]any{
			"detections": []map[string]any{
				{"class": "Helmet", "confidence": 0.88, "bbox": []float64{1, 2, 3, 4}},
			},
			"annotated_image": base64.StdEncoding.EncodeToString(rendered),
		}
		if err := json.NewEncoder(w).Encode(resp); err != nil {
			t.Errorf("encode response: %v", err)
		}
	}))
	defer srv.Close()

	client := NewClient(srv.URL, 5*time.Second)
	frame := writeTestFrame(t)
	detections, outputPath, err := client.Detect(context.Background(), frame)
	if err != nil {
		t.Fatalf("Detect: %v", err)
	}

	want := filepath.Join(filepath.Dir(frame), "predicted", filepath.Base(frame))
	if outputPath != want {
		t.Errorf("output path = %q, want %q", outputPath, want)
	}
	if filepath.Base(outputPath) != filepath.Base(frame) {
		t.Errorf("rendered basename = %q, must match input %q", filepath.Base(outputPath), filepath.Base(frame))
	}
	got, err := os.ReadFile(outputPath)
	if err != nil {
		t.Fatalf("read rendered output: %v", err)
	}
	if string(got) != string(rendered) {
		t.Errorf("rendered content = %q, want %q", got, rendered)
	}
	if len(detections) != 1 || detections[0].Label != "helmet" {
		t.Errorf("detections = %+v", detections)
	}
}

func TestDetectRejectsMalformedRenderedOutput(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"detections":[],"annotated_image":"not base64!!!"}`))
	}))
	defer srv.Close()

	client := NewClient(srv.URL, 5*time.Second)
	if _, _, err := client.Detect(context.Background(), writeTestFrame(t)); err == nil {
		t.Error("expected error for undecodable rendered frame")
	}
}

func TestDetectBackendError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "model exploded", http.StatusInternalServerError)
	}))
	defer srv.Close()

	client := NewClient(srv.URL, 5*time.Second)
	if _, _, err := client.Detect(context.Background(), writeTestFrame(t)); err == nil {
		t.Error("expected error from failing backend")
	}
}

func TestPing(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/health" {
			w.WriteHeader(http.StatusOK)
			return
		}
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	client := NewClient(srv.URL, 5*time.Second)
	if err := client.Ping(context.Background()); err != nil {
		t.Errorf("Ping: %v", err)
	}

	down := NewClient("http://127.0.0.1:1", time.Second)
	if err := down.Ping(context.Background()); err == nil {
		t.Error("expected error pinging unreachable backend")
	}
}
