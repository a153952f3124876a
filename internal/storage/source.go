// Package storage locates and stores the images users upload.
package storage

import (
	"context"
	"errors"
	"fmt"
	"mime"
	"strings"
	"time"
)

var (
	// ErrNotFound is returned when a user has no uploaded image.
	ErrNotFound = errors.New("no image found")
	// ErrInvalidUser is returned for user ids that cannot name a folder.
	ErrInvalidUser = errors.New("invalid user id")
)

// Object is one stored image.
type Object struct {
	Key         string
	Data        []byte
	ContentType string
	ModifiedAt  time.Time
}

// Source stores uploads under a per-user prefix and returns the most recent one.
type Source interface {
	Latest(ctx context.Context, userID string) (*Object, error)
	Put(ctx context.Context, userID, contentType string, data []byte) (string, error)
}

func validateUser(userID string) error {
	if userID == "" || userID == "." || userID == ".." || strings.ContainsAny(userID, `/\`) {
		return fmt.Errorf("%w: %q", ErrInvalidUser, userID)
	}
	return nil
}

// ObjectKey builds "<user>/<unix nanos><ext>" for a new upload.
func ObjectKey(userID, contentType string, now time.Time) string {
	return fmt.Sprintf("%s/%d%s", userID, now.UnixNano(), extensionFor(contentType))
}

func extensionFor(contentType string) string {
	contentType = strings.TrimSpace(strings.SplitN(contentType, ";", 2)[0])
	switch contentType {
	case "image/jpeg", "image/jpg":
		return ".jpg"
	case "":
		return ""
	}
	if exts, _ := mime.ExtensionsByType(contentType); len(exts) > 0 {
		return exts[0]
	}
	if parts := strings.SplitN(contentType, "/", 2); len(parts) == 2 {
		return "." + parts[1]
	}
	return ""
}
