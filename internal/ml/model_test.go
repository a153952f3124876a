package ml

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/rekognition"
	"github.com/aws/aws-sdk-go-v2/service/rekognition/types"
	"github.com/franckalain/smartplate/internal/models"
)

func TestNewModel_Unsupported(t *testing.T) {
	if _, err := NewModel("yolo", ""); err == nil {
		t.Fatal("expected error for unsupported model type")
	}
}

func TestNewModel_LocalFromConfigFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "local.json")
	if err := os.WriteFile(path, []byte(`{"endpoint": "http://detector:8001/infer", "timeout_seconds": 5}`), 0o644); err != nil {
		t.Fatal(err)
	}

	model, err := NewModel("local", path)
	if err != nil {
		t.Fatalf("NewModel failed: %v", err)
	}
	local, ok := model.(*LocalModel)
	if !ok {
		t.Fatalf("expected *LocalModel, got %T", model)
	}
	if local.config.Endpoint != "http://detector:8001/infer" || local.config.TimeoutSeconds != 5 {
		t.Errorf("unexpected config %+v", local.config)
	}
}

func TestNewModel_MissingConfigFile(t *testing.T) {
	if _, err := NewModel("local", filepath.Join(t.TempDir(), "missing.json")); err == nil {
		t.Fatal("expected error for unreadable config file")
	}
}

func TestLocalModel_Detect(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			t.Errorf("expected POST, got %s", r.Method)
		}
		if ct := r.Header.Get("Content-Type"); ct != "image/png" {
			t.Errorf("expected image/png, got %q", ct)
		}
		w.Write([]byte(`{"labels": [47, 1, 999], "scores": [0.91, 0.88, 0.5]}`))
	}))
	defer srv.Close()

	model := &LocalModel{config: LocalConfig{Endpoint: srv.URL, TimeoutSeconds: 2}}
	if err := model.Load(context.Background()); err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	got, err := model.Detect(context.Background(), models.Image{Data: []byte("png"), MIMEType: "image/png"})
	if err != nil {
		t.Fatalf("Detect failed: %v", err)
	}
	want := []models.Detection{{Label: "banana", Score: 0.91}, {Label: "person", Score: 0.88}}
	if len(got) != len(want) {
		t.Fatalf("expected %v, got %v", want, got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("detection %d: expected %+v, got %+v", i, want[i], got[i])
		}
	}
}

func TestLocalModel_LoadRequiresEndpoint(t *testing.T) {
	if err := (&LocalModel{}).Load(context.Background()); err == nil {
		t.Fatal("expected error without endpoint")
	}
}

func TestLocalModel_MismatchedResponse(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"labels": [47, 48], "scores": [0.9]}`))
	}))
	defer srv.Close()

	model := &LocalModel{config: LocalConfig{Endpoint: srv.URL, TimeoutSeconds: 2}}
	model.Load(context.Background())
	if _, err := model.Detect(context.Background(), models.Image{}); err == nil {
		t.Fatal("expected error for mismatched labels and scores")
	}
}

func TestParseDetections(t *testing.T) {
	got, err := parseDetections("```json\n[{\"label\": \"apple\", \"score\": 0.8}, {\"label\": \"cup\", \"score\": 0.1}]\n```")
	if err != nil {
		t.Fatalf("parseDetections failed: %v", err)
	}
	if len(got) != 2 || got[0].Label != "apple" || got[1].Score != 0.1 {
		t.Errorf("unexpected detections %+v", got)
	}

	if got, err := parseDetections("[]"); err != nil || len(got) != 0 {
		t.Errorf("expected empty list, got %v, %v", got, err)
	}
	if _, err := parseDetections("I see a banana"); err == nil {
		t.Error("expected error for prose response")
	}
	if _, err := parseDetections(`[{"label": "apple", "score": 87}]`); err == nil {
		t.Error("expected error for out of range score")
	}
}

type fakeLabelDetector struct {
	input *rekognition.DetectLabelsInput
}

func (f *fakeLabelDetector) DetectLabels(ctx context.Context, params *rekognition.DetectLabelsInput, optFns ...func(*rekognition.Options)) (*rekognition.DetectLabelsOutput, error) {
	f.input = params
	return &rekognition.DetectLabelsOutput{
		Labels: []types.Label{
			{Name: aws.String("Hot Dog"), Confidence: aws.Float32(92.5)},
			{Name: aws.String("Plate"), Confidence: aws.Float32(20)},
			{Name: nil, Confidence: aws.Float32(50)},
		},
	}, nil
}

func TestRekognitionModel_Detect(t *testing.T) {
	fake := &fakeLabelDetector{}
	model := &RekognitionModel{config: RekognitionConfig{MaxLabels: 10}, client: fake}

	got, err := model.Detect(context.Background(), models.Image{Data: []byte("jpeg")})
	if err != nil {
		t.Fatalf("Detect failed: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("expected 2 detections, got %+v", got)
	}
	if got[0].Label != "Hot Dog" || got[0].Score != 0.925 {
		t.Errorf("unexpected first detection %+v", got[0])
	}
	if aws.ToFloat32(fake.input.MinConfidence) != 0 {
		t.Errorf("expected no confidence floor, got %v", aws.ToFloat32(fake.input.MinConfidence))
	}
	if aws.ToInt32(fake.input.MaxLabels) != 10 {
		t.Errorf("expected max labels 10, got %d", aws.ToInt32(fake.input.MaxLabels))
	}
}
