package domain

import (
	"errors"
	"fmt"
)

// ErrFileTooLarge is returned when a download exceeds the staging size cap.
var ErrFileTooLarge = errors.New("file exceeds staging size limit")

// FetchError reports a failed metadata lookup, download or local write.
type FetchError struct {
	Op     string // lookup | download | write
	FileID string
	Err    error
}

func (e *FetchError) Error() string {
	return fmt.Sprintf("fetch %s (file %s): %v", e.Op, e.FileID, e.Err)
}

func (e *FetchError) Unwrap() error { return e.Err }

// PublishError reports a failure surfaced by the Publisher collaborator.
type PublishError struct {
	Path string
	Err  error
}

func (e *PublishError) Error() string {
	return fmt.Sprintf("publish %s: %v", e.Path, e.Err)
}

func (e *PublishError) Unwrap() error { return e.Err }
