package entity

import "errors"

// Domain errors
var (
	// Pipeline errors
	ErrTransientIO       = errors.New("transient I/O failure")
	ErrPermanentData     = errors.New("permanent data fault")
	ErrBrokerUnavailable = errors.New("message broker unavailable")
	ErrFileAbandoned     = errors.New("file not processed after retries")
	ErrUnexpectedPath    = errors.New("unexpected local file path")
	ErrMalformedMessage  = errors.New("malformed queue message")

	// Retrieval errors
	ErrUnknownRepository      = errors.New("unknown repository")
	ErrCollectionNotFound     = errors.New("collection not found")
	ErrEmbeddingModelMismatch = errors.New("embedding model mismatch")

	// Repository errors
	ErrRepositoryNotFound      = errors.New("repository not found")
	ErrRepositoryNotAccessible = errors.New("repository not accessible")
	ErrRepositoryConflict      = errors.New("repository name already registered")
	ErrWebhookRegistration     = errors.New("webhook registration failed")

	// Auth errors
	ErrUnauthenticated = errors.New("unauthenticated")
	ErrForbidden       = errors.New("forbidden")

	// Validation errors
	ErrMissingField     = errors.New("required field is missing")
	ErrInvalidFormat    = errors.New("invalid format")
	ErrInvalidParameter = errors.New("invalid parameter")
)
