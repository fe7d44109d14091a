package errors

import "errors"

// Transport errors
var (
	// ErrSessionClosed is returned when sending on a session that is not connected
	ErrSessionClosed = errors.New("session closed")

	// ErrWriteTimeout is returned when a frame write exceeds the bounded deadline
	ErrWriteTimeout = errors.New("write timeout")

	// ErrFrameTooLarge is returned when a frame exceeds the maximum payload size
	ErrFrameTooLarge = errors.New("frame exceeds maximum payload size")
)

// Session and registry errors
var (
	// ErrAgentNotFound is returned when no live session exists for an agent identity
	ErrAgentNotFound = errors.New("agent not found")

	// ErrHandshakeFailed is returned when the hello exchange is rejected
	ErrHandshakeFailed = errors.New("handshake failed")
)

// Correlation errors
var (
	// ErrRequestTimeout is returned when a correlated request's deadline passes
	ErrRequestTimeout = errors.New("request timed out")

	// ErrRequestCancelled is returned when a pending request is cancelled by
	// handler teardown or session disconnect
	ErrRequestCancelled = errors.New("request cancelled")

	// ErrRequestSuperseded is returned when a newer request for the same
	// correlation key replaces a pending one
	ErrRequestSuperseded = errors.New("request superseded")
)

// Storage errors
var (
	// ErrStorageNotInitialized is returned when storage is not initialized
	ErrStorageNotInitialized = errors.New("storage not initialized")
)

// Configuration errors
var (
	// ErrInvalidConfig is returned when configuration is invalid
	ErrInvalidConfig = errors.New("invalid configuration")
)
