package database

import (
	"context"
	"fmt"

	"github.com/franckalain/smartplate/internal/models"
	"github.com/jackc/pgx/v4"
	"github.com/jackc/pgx/v4/pgxpool"
)

const postgresSchema = `
CREATE TABLE IF NOT EXISTS detections (
    id TEXT PRIMARY KEY,
    seq BIGSERIAL,
    user_id TEXT NOT NULL,
    image_file TEXT NOT NULL DEFAULT '',
    ingredients JSONB NOT NULL,
    detection_confidence DOUBLE PRECISION NOT NULL DEFAULT 0,
    ingredients_count INTEGER NOT NULL DEFAULT 0,
    detected_at TIMESTAMPTZ NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_detections_user_detected_at ON detections (user_id, detected_at DESC);
`

// PostgresDB implements the DB interface on a remote PostgreSQL table
type PostgresDB struct {
	pool *pgxpool.Pool
}

// NewPostgresDB connects to dsn and makes sure the detections table exists
func NewPostgresDB(ctx context.Context, dsn string) (*PostgresDB, error) {
	pool, err := pgxpool.Connect(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("error connecting to postgres: %w", err)
	}
	if _, err := pool.Exec(ctx, postgresSchema); err != nil {
		pool.Close()
		return nil, fmt.Errorf("error initializing schema: %w", err)
	}
	return &PostgresDB{pool: pool}, nil
}

// AppendDetection stores a detection record
func (p *PostgresDB) AppendDetection(ctx context.Context, rec *models.DetectionRecord) error {
	ingredients, err := encodeIngredients(rec.Ingredients)
	if err != nil {
		return err
	}
	_, err = p.pool.Exec(ctx, `
		INSERT INTO detections (
			id, user_id, image_file, ingredients, detection_confidence,
			ingredients_count, detected_at
		) VALUES ($1, $2, $3, $4::jsonb, $5, $6, $7)`,
		rec.ID, rec.UserID, rec.ImageFile, ingredients,
		rec.DetectionConfidence, rec.IngredientsCount, rec.DetectedAt.UTC(),
	)
	if err != nil {
		return fmt.Errorf("error inserting detection: %w", err)
	}
	return nil
}

// ListDetectionsByUser returns a user's detections, most recent first
func (p *PostgresDB) ListDetectionsByUser(ctx context.Context, userID string) ([]*models.DetectionRecord, error) {
	rows, err := p.pool.Query(ctx, `
		SELECT id, user_id, image_file, ingredients::text, detection_confidence, ingredients_count, detected_at
		FROM detections
		WHERE user_id = $1
		ORDER BY detected_at DESC, seq DESC`, userID)
	if err != nil {
		return nil, err
	}
	return scanRows(rows)
}

// ListDetections returns every detection, most recent first
func (p *PostgresDB) ListDetections(ctx context.Context) ([]*models.DetectionRecord, error) {
	rows, err := p.pool.Query(ctx, `
		SELECT id, user_id, image_file, ingredients::text, detection_confidence, ingredients_count, detected_at
		FROM detections
		ORDER BY detected_at DESC, seq DESC`)
	if err != nil {
		return nil, err
	}
	return scanRows(rows)
}

func scanRows(rows pgx.Rows) ([]*models.DetectionRecord, error) {
	defer rows.Close()

	results := []*models.DetectionRecord{}
	for rows.Next() {
		var rec models.DetectionRecord
		var ingredients string
		if err := rows.Scan(
			&rec.ID, &rec.UserID, &rec.ImageFile, &ingredients,
			&rec.DetectionConfidence, &rec.IngredientsCount, &rec.DetectedAt,
		); err != nil {
			return nil, err
		}
		var err error
		if rec.Ingredients, err = decodeIngredients([]byte(ingredients)); err != nil {
			return nil, fmt.Errorf("detection %s: %w", rec.ID, err)
		}
		results = append(results, &rec)
	}
	return results, rows.Err()
}

// Close closes the connection pool
func (p *PostgresDB) Close() error {
	p.pool.Close()
	return nil
}
