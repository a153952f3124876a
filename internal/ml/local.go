package ml

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"strconv"
	"time"

	"github.com/franckalain/smartplate/internal/detection"
	"github.com/franckalain/smartplate/internal/models"
)

// LocalConfig holds configuration for the local model
type LocalConfig struct {
	BaseConfig
	Endpoint       string `json:"endpoint"`
	TimeoutSeconds int    `json:"timeout_seconds"`
}

// Load loads the local configuration
func (c *LocalConfig) Load() error {
	if err := c.LoadConfig(c.ConfigPath, "local", c); err != nil {
		return err
	}

	// Fall back to environment variables if not set
	if c.Endpoint == "" {
		c.Endpoint = os.Getenv("LOCAL_MODEL_ENDPOINT")
	}
	if c.TimeoutSeconds == 0 {
		if v, err := strconv.Atoi(os.Getenv("LOCAL_MODEL_TIMEOUT_SECONDS")); err == nil {
			c.TimeoutSeconds = v
		}
	}
	if c.TimeoutSeconds <= 0 {
		c.TimeoutSeconds = 30
	}

	return nil
}

// LocalModel implements Model against a Faster R-CNN inference sidecar that
// answers with COCO class indices and scores
type LocalModel struct {
	config LocalConfig
	client *http.Client
}

// LocalModelFactory implements ModelFactory for local models
type LocalModelFactory struct {
	config LocalConfig
}

// NewLocalModelFactory creates a new local model factory
func NewLocalModelFactory(config LocalConfig) *LocalModelFactory {
	return &LocalModelFactory{config: config}
}

// CreateModel creates a new local model instance
func (f *LocalModelFactory) CreateModel() (Model, error) {
	return &LocalModel{
		config: f.config,
	}, nil
}

// Load prepares the HTTP client for the sidecar
func (m *LocalModel) Load(ctx context.Context) error {
	if m.config.Endpoint == "" {
		return fmt.Errorf("local model endpoint is not set")
	}
	m.client = &http.Client{Timeout: time.Duration(m.config.TimeoutSeconds) * time.Second}
	return nil
}

type inferenceResponse struct {
	Labels []int     `json:"labels"`
	Scores []float64 `json:"scores"`
}

// Detect posts the image to the sidecar and maps class indices to labels
func (m *LocalModel) Detect(ctx context.Context, img models.Image) ([]models.Detection, error) {
	if m.client == nil {
		return nil, fmt.Errorf("model not loaded")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, m.config.Endpoint, bytes.NewReader(img.Data))
	if err != nil {
		return nil, fmt.Errorf("failed to create inference request: %w", err)
	}
	req.Header.Set("Content-Type", img.MIMEType)

	resp, err := m.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to call inference service: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read inference response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("inference service error %d: %s", resp.StatusCode, string(body))
	}

	var ir inferenceResponse
	if err := json.Unmarshal(body, &ir); err != nil {
		return nil, fmt.Errorf("failed to parse inference response: %w", err)
	}
	if len(ir.Labels) != len(ir.Scores) {
		return nil, fmt.Errorf("inference response has %d labels but %d scores", len(ir.Labels), len(ir.Scores))
	}

	detections := make([]models.Detection, 0, len(ir.Labels))
	for i, class := range ir.Labels {
		label := detection.LabelForClass(class)
		if label == "" {
			continue
		}
		detections = append(detections, models.Detection{Label: label, Score: ir.Scores[i]})
	}
	return detections, nil
}
