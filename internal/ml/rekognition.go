package ml

import (
	"context"
	"fmt"
	"os"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/rekognition"
	"github.com/aws/aws-sdk-go-v2/service/rekognition/types"
	"github.com/franckalain/smartplate/internal/models"
)

const defaultRekognitionMaxLabels = 50

// RekognitionConfig holds configuration for the AWS Rekognition model
type RekognitionConfig struct {
	BaseConfig
	Region    string `json:"region"`
	MaxLabels int32  `json:"max_labels"`
}

// Load loads the Rekognition configuration
func (c *RekognitionConfig) Load() error {
	if err := c.LoadConfig(c.ConfigPath, "rekognition", c); err != nil {
		return err
	}
	if c.Region == "" {
		c.Region = os.Getenv("AWS_REGION")
	}
	if c.MaxLabels <= 0 {
		c.MaxLabels = defaultRekognitionMaxLabels
	}
	return nil
}

type labelDetector interface {
	DetectLabels(ctx context.Context, params *rekognition.DetectLabelsInput, optFns ...func(*rekognition.Options)) (*rekognition.DetectLabelsOutput, error)
}

// RekognitionModel implements Model with AWS Rekognition DetectLabels
type RekognitionModel struct {
	config RekognitionConfig
	client labelDetector
}

// RekognitionModelFactory implements ModelFactory for Rekognition models
type RekognitionModelFactory struct {
	config RekognitionConfig
}

// NewRekognitionModelFactory creates a new Rekognition model factory
func NewRekognitionModelFactory(config RekognitionConfig) *RekognitionModelFactory {
	return &RekognitionModelFactory{config: config}
}

// CreateModel creates a new Rekognition model instance
func (f *RekognitionModelFactory) CreateModel() (Model, error) {
	return &RekognitionModel{config: f.config}, nil
}

// Load creates the Rekognition client from the default AWS credential chain
func (m *RekognitionModel) Load(ctx context.Context) error {
	cfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(m.config.Region))
	if err != nil {
		return fmt.Errorf("failed to load AWS config: %w", err)
	}
	m.client = rekognition.NewFromConfig(cfg)
	return nil
}

// Detect returns every label Rekognition reports, with confidence scaled to [0,1]
func (m *RekognitionModel) Detect(ctx context.Context, img models.Image) ([]models.Detection, error) {
	if m.client == nil {
		return nil, fmt.Errorf("model not loaded")
	}

	out, err := m.client.DetectLabels(ctx, &rekognition.DetectLabelsInput{
		Image:         &types.Image{Bytes: img.Data},
		MaxLabels:     aws.Int32(m.config.MaxLabels),
		MinConfidence: aws.Float32(0),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to detect labels: %w", err)
	}

	detections := make([]models.Detection, 0, len(out.Labels))
	for _, l := range out.Labels {
		if l.Name == nil || l.Confidence == nil {
			continue
		}
		detections = append(detections, models.Detection{
			Label: *l.Name,
			Score: float64(*l.Confidence) / 100,
		})
	}
	return detections, nil
}
