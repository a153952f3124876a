package database

import (
	"context"
	"database/sql"
	"embed"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/franckalain/smartplate/internal/models"
	_ "modernc.org/sqlite"
)

//go:embed schema.sql
var schemaFS embed.FS

// timeLayout is fixed-width so that text timestamps sort chronologically.
const timeLayout = "2006-01-02T15:04:05.000000000Z"

// DB interface defines the methods our database should implement
type DB interface {
	AppendDetection(ctx context.Context, rec *models.DetectionRecord) error
	ListDetectionsByUser(ctx context.Context, userID string) ([]*models.DetectionRecord, error)
	ListDetections(ctx context.Context) ([]*models.DetectionRecord, error)
	Close() error
}

// Open connects to the configured driver: "sqlite" (dsn is a file path) or "postgres".
func Open(ctx context.Context, driver, dsn string) (DB, error) {
	switch driver {
	case "", "sqlite":
		return NewSQLiteDB(dsn)
	case "postgres":
		return NewPostgresDB(ctx, dsn)
	default:
		return nil, fmt.Errorf("unsupported database driver: %s", driver)
	}
}

// SQLiteDB implements the DB interface
type SQLiteDB struct {
	db *sql.DB
}

// NewSQLiteDB creates a new SQLite database connection
func NewSQLiteDB(dbPath string) (*SQLiteDB, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("error opening database: %w", err)
	}

	// Enable WAL mode for better concurrency
	if _, err := db.Exec("PRAGMA journal_mode = WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("error enabling WAL mode: %w", err)
	}
	if _, err := db.Exec("PRAGMA busy_timeout = 5000"); err != nil {
		db.Close()
		return nil, fmt.Errorf("error setting busy timeout: %w", err)
	}

	// Initialize database schema
	if err := initializeSchema(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("error initializing schema: %w", err)
	}

	return &SQLiteDB{db: db}, nil
}

func initializeSchema(db *sql.DB) error {
	// Read schema file
	schemaBytes, err := schemaFS.ReadFile("schema.sql")
	if err != nil {
		return fmt.Errorf("error reading schema file: %w", err)
	}

	// Execute schema
	if _, err := db.Exec(string(schemaBytes)); err != nil {
		return fmt.Errorf("error executing schema: %w", err)
	}

	slog.Debug("database schema initialized")
	return nil
}

// AppendDetection stores a detection record. Records are never updated.
func (s *SQLiteDB) AppendDetection(ctx context.Context, rec *models.DetectionRecord) error {
	query := `
		INSERT INTO detections (
			id, user_id, image_file, ingredients, detection_confidence,
			ingredients_count, detected_at
		) VALUES (?, ?, ?, ?, ?, ?, ?)
	`

	ingredients, err := encodeIngredients(rec.Ingredients)
	if err != nil {
		return err
	}

	_, err = s.db.ExecContext(ctx, query,
		rec.ID, rec.UserID, rec.ImageFile, ingredients,
		rec.DetectionConfidence, rec.IngredientsCount,
		rec.DetectedAt.UTC().Format(timeLayout),
	)
	if err != nil {
		return fmt.Errorf("error inserting detection: %w", err)
	}
	return nil
}

// ListDetectionsByUser returns a user's detections, most recent first
func (s *SQLiteDB) ListDetectionsByUser(ctx context.Context, userID string) ([]*models.DetectionRecord, error) {
	query := `
		SELECT id, user_id, image_file, ingredients, detection_confidence, ingredients_count, detected_at
		FROM detections
		WHERE user_id = ?
		ORDER BY detected_at DESC, rowid DESC
	`
	return s.query(ctx, query, userID)
}

// ListDetections returns every detection, most recent first
func (s *SQLiteDB) ListDetections(ctx context.Context) ([]*models.DetectionRecord, error) {
	query := `
		SELECT id, user_id, image_file, ingredients, detection_confidence, ingredients_count, detected_at
		FROM detections
		ORDER BY detected_at DESC, rowid DESC
	`
	return s.query(ctx, query)
}

func (s *SQLiteDB) query(ctx context.Context, query string, args ...any) ([]*models.DetectionRecord, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	results := []*models.DetectionRecord{}
	for rows.Next() {
		var rec models.DetectionRecord
		var ingredients, detectedAt string

		err := rows.Scan(
			&rec.ID, &rec.UserID, &rec.ImageFile, &ingredients,
			&rec.DetectionConfidence, &rec.IngredientsCount, &detectedAt,
		)
		if err != nil {
			return nil, err
		}

		if rec.Ingredients, err = decodeIngredients([]byte(ingredients)); err != nil {
			return nil, fmt.Errorf("detection %s: %w", rec.ID, err)
		}
		if rec.DetectedAt, err = time.Parse(timeLayout, detectedAt); err != nil {
			return nil, fmt.Errorf("detection %s: error parsing detected_at: %w", rec.ID, err)
		}

		results = append(results, &rec)
	}

	return results, rows.Err()
}

// Close closes the database connection
func (s *SQLiteDB) Close() error {
	return s.db.Close()
}

func encodeIngredients(ingredients []models.EnrichedIngredient) (string, error) {
	if ingredients == nil {
		ingredients = []models.EnrichedIngredient{}
	}
	b, err := json.Marshal(ingredients)
	if err != nil {
		return "", fmt.Errorf("error encoding ingredients: %w", err)
	}
	return string(b), nil
}

func decodeIngredients(data []byte) ([]models.EnrichedIngredient, error) {
	out := []models.EnrichedIngredient{}
	if err := json.Unmarshal(data, &out); err != nil {
		return nil, fmt.Errorf("error decoding ingredients: %w", err)
	}
	return out, nil
}
