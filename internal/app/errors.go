package service

import (
	"errors"

	repository "github.com/okian/devhistory/internal/adapters/repository"
)

// Service errors. Callers match them with errors.Is.
var (
	ErrNotStarted        = errors.New("service not started")
	ErrInvalidSubmission = errors.New("invalid submission")
	ErrOverloaded        = errors.New("ingest queue unavailable")
	ErrNotRetryable      = errors.New("record is not retryable")

	// ErrNotFound is returned for unknown records.
	ErrNotFound = repository.ErrNotFound
)
