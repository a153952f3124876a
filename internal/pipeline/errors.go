package pipeline

import (
	"errors"
	"fmt"
)

var (
	ErrNoImage      = errors.New("no image found")
	ErrInvalidImage = errors.New("image cannot be decoded")
	ErrInvalidUser  = errors.New("invalid user id")
)

// InputError is a request the caller must fix: no image, or an unreadable one.
type InputError struct {
	Kind error
	Err  error
}

func (e *InputError) Error() string {
	if e.Err == nil {
		return e.Kind.Error()
	}
	return fmt.Sprintf("%v: %v", e.Kind, e.Err)
}

func (e *InputError) Unwrap() []error {
	if e.Err == nil {
		return []error{e.Kind}
	}
	return []error{e.Kind, e.Err}
}

// DetectorError reports that the detector could not process a valid image.
type DetectorError struct {
	Err error
}

func (e *DetectorError) Error() string {
	return fmt.Sprintf("detector failed: %v", e.Err)
}

func (e *DetectorError) Unwrap() error {
	return e.Err
}
