package storage

import (
	"context"
	"fmt"
	"io/fs"
	"net/http"
	"os"
	"path"
	"path/filepath"
	"time"
)

// Local keeps uploads in <root>/<user_id>/ on disk.
type Local struct {
	root string
	now  func() time.Time
}

// NewLocal creates the root directory if needed.
func NewLocal(root string) (*Local, error) {
	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, fmt.Errorf("create image directory: %w", err)
	}
	return &Local{root: root, now: time.Now}, nil
}

// Latest returns the most recently modified file in the user's folder.
func (l *Local) Latest(ctx context.Context, userID string) (*Object, error) {
	if err := validateUser(userID); err != nil {
		return nil, err
	}
	dir := filepath.Join(l.root, userID)
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%w for user %s", ErrNotFound, userID)
		}
		return nil, fmt.Errorf("list %s: %w", dir, err)
	}

	var latest fs.FileInfo
	for _, e := range entries {
		if !e.Type().IsRegular() {
			continue
		}
		info, err := e.Info()
		if err != nil {
			continue
		}
		if latest == nil || info.ModTime().After(latest.ModTime()) ||
			(info.ModTime().Equal(latest.ModTime()) && info.Name() > latest.Name()) {
			latest = info
		}
	}
	if latest == nil {
		return nil, fmt.Errorf("%w for user %s", ErrNotFound, userID)
	}

	if err := ctx.Err(); err != nil {
		return nil, err
	}
	data, err := os.ReadFile(filepath.Join(dir, latest.Name()))
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", latest.Name(), err)
	}
	return &Object{
		Key:         path.Join(userID, latest.Name()),
		Data:        data,
		ContentType: http.DetectContentType(data),
		ModifiedAt:  latest.ModTime(),
	}, nil
}

// Put writes a new upload and returns its key.
func (l *Local) Put(ctx context.Context, userID, contentType string, data []byte) (string, error) {
	if err := validateUser(userID); err != nil {
		return "", err
	}
	key := ObjectKey(userID, contentType, l.now())
	full := filepath.Join(l.root, filepath.FromSlash(key))
	if err := os.MkdirAll(filepath.Dir(full), 0o755); err != nil {
		return "", fmt.Errorf("create user directory: %w", err)
	}
	if err := os.WriteFile(full, data, 0o644); err != nil {
		return "", fmt.Errorf("write %s: %w", key, err)
	}
	return key, nil
}
