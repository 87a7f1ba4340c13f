package store

import "errors"

var (
	// ErrPathTraversal indicates a requested path escapes its project
	// directory. Never retried.
	ErrPathTraversal = errors.New("path escapes project directory")

	// ErrInsufficientSpace indicates free disk space is below the
	// configured floor. The write is refused instead of attempted.
	ErrInsufficientSpace = errors.New("insufficient disk space")

	// ErrStateNotFound indicates no persisted snapshot exists for the
	// project.
	ErrStateNotFound = errors.New("project state not found")
)
