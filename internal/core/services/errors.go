package services

import "errors"

// Dispatch errors
var (
	ErrNotFound             = errors.New("enhance: input artifact not found")
	ErrInvalidParams        = errors.New("enhance: invalid params")
	ErrUnsupportedOperation = errors.New("enhance: unsupported operation")
	ErrUnsupportedScale     = errors.New("enhance: scale must be 2 or 4")
)

// Capability errors
var (
	ErrModel = errors.New("model: invocation failed")
)

// Registry errors
var (
	ErrTaskNotFound = errors.New("task: not found")
	ErrTaskExists   = errors.New("task: already exists")
)

// Stream errors
var (
	ErrStreamTimeout = errors.New("stream: tick cap exceeded before terminal state")
)

// Upload errors
var (
	ErrUnsupportedMediaType = errors.New("upload: file type not allowed")
	ErrInvalidImage         = errors.New("upload: invalid image file")
)
