package models

import "errors"

// Pipeline and session errors. Handlers map these onto HTTP statuses, so
// every service failure should wrap one of them.
var (
	ErrUnsupportedFormat     = errors.New("unsupported document format")
	ErrEmptyDocument         = errors.New("document contains no extractable content")
	ErrAnalysisFailed        = errors.New("topic analysis failed")
	ErrOutlineFailed         = errors.New("outline generation failed")
	ErrSlideGenerationFailed = errors.New("slide generation failed")
	ErrAssessmentFailed      = errors.New("assessment generation failed")
	ErrValidationFailed      = errors.New("program validation failed")
	ErrSessionNotFound       = errors.New("session not found")
	ErrPhaseNotReady         = errors.New("operation not allowed in current phase")
	ErrFileTooLarge          = errors.New("file exceeds maximum upload size")
	ErrUnknownEntity         = errors.New("unknown entity")
	ErrUnknownField          = errors.New("unknown or invalid field")
)
