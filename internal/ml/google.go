package ml

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"cloud.google.com/go/vertexai/genai"
	"github.com/franckalain/smartplate/internal/detection"
	"github.com/franckalain/smartplate/internal/models"
	"google.golang.org/api/option"
)

const defaultGeminiModel = "gemini-1.5-flash"

// GoogleConfig holds configuration for the Google model
type GoogleConfig struct {
	BaseConfig
	ProjectID       string `json:"project_id"`
	Location        string `json:"location"`
	CredentialsFile string `json:"credentials_file"`
	ModelName       string `json:"model_name"`
}

// Load loads the Google configuration
func (c *GoogleConfig) Load() error {
	if err := c.LoadConfig(c.ConfigPath, "google", c); err != nil {
		return err
	}

	// Fall back to environment variables if not set
	if c.ProjectID == "" {
		c.ProjectID = os.Getenv("GOOGLE_PROJECT_ID")
	}
	if c.Location == "" {
		c.Location = os.Getenv("GOOGLE_LOCATION")
	}
	if c.CredentialsFile == "" {
		c.CredentialsFile = os.Getenv("GOOGLE_CREDENTIALS_FILE")
	}
	if c.ModelName == "" {
		c.ModelName = defaultGeminiModel
	}

	return nil
}

// GoogleModel implements the Model interface for Google's Vertex AI
type GoogleModel struct {
	config GoogleConfig
	client *genai.Client
	model  *genai.GenerativeModel
}

// GoogleModelFactory implements ModelFactory for Google models
type GoogleModelFactory struct {
	config GoogleConfig
}

// NewGoogleModelFactory creates a new Google model factory
func NewGoogleModelFactory(config GoogleConfig) *GoogleModelFactory {
	return &GoogleModelFactory{config: config}
}

// CreateModel creates a new Google model instance
func (f *GoogleModelFactory) CreateModel() (Model, error) {
	return &GoogleModel{
		config: f.config,
	}, nil
}

// Load initializes the Google model
func (m *GoogleModel) Load(ctx context.Context) error {
	opts := []option.ClientOption{}

	if m.config.CredentialsFile != "" {
		opts = append(opts, option.WithCredentialsFile(m.config.CredentialsFile))
	}

	client, err := genai.NewClient(ctx, m.config.ProjectID, m.config.Location, opts...)
	if err != nil {
		return fmt.Errorf("failed to create client: %w", err)
	}

	m.client = client
	m.model = client.GenerativeModel(m.config.ModelName)
	m.model.SetTemperature(0)
	return nil
}

func detectionPrompt() string {
	return `List every object visible in this photo that matches one of these labels:
` + strings.Join(detection.Labels(), ", ") + `

Report each object once per instance with your confidence between 0 and 1, including low-confidence guesses.
Respond with only a JSON array and no commentary:
[{"label": "string", "score": number}]
Respond with [] when nothing matches.`
}

// Detect asks Gemini for label/score pairs using the detector vocabulary
func (m *GoogleModel) Detect(ctx context.Context, img models.Image) ([]models.Detection, error) {
	if m.model == nil {
		return nil, fmt.Errorf("model not loaded")
	}

	// genai expects the MIME subtype, e.g. "jpeg"
	format := strings.TrimPrefix(img.MIMEType, "image/")
	if format == "" {
		format = "jpeg"
	}

	resp, err := m.model.GenerateContent(ctx, genai.Text(detectionPrompt()), genai.ImageData(format, img.Data))
	if err != nil {
		return nil, fmt.Errorf("failed to call ai: %w", err)
	}

	if len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
		return nil, fmt.Errorf("no response generated")
	}

	var text strings.Builder
	for _, part := range resp.Candidates[0].Content.Parts {
		if t, ok := part.(genai.Text); ok {
			text.WriteString(string(t))
		}
	}
	if text.Len() == 0 {
		return nil, fmt.Errorf("no content in response")
	}

	return parseDetections(text.String())
}

// parseDetections decodes a JSON detection list, tolerating a markdown code fence
func parseDetections(raw string) ([]models.Detection, error) {
	content := strings.TrimSpace(raw)
	content = strings.TrimPrefix(content, "```json")
	content = strings.TrimPrefix(content, "```")
	content = strings.TrimSuffix(content, "```")
	content = strings.TrimSpace(content)

	var out []models.Detection
	if err := json.Unmarshal([]byte(content), &out); err != nil {
		return nil, fmt.Errorf("failed to parse model response: %w while parsing %s", err, content)
	}
	for i := range out {
		if out[i].Score < 0 || out[i].Score > 1 {
			return nil, fmt.Errorf("score %v for %q is outside [0,1]", out[i].Score, out[i].Label)
		}
	}
	return out, nil
}
