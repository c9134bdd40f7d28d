package ai

import (
	"context"
	"encoding/json"
)

// PromptKind identifies which pipeline stage a generation call serves.
type PromptKind string

const (
	PromptTopicExtraction PromptKind = "topic_extraction"
	PromptOutlineGrouping PromptKind = "outline_grouping"
	PromptSlideContent    PromptKind = "slide_content"
	PromptAssessmentItem  PromptKind = "assessment_item"
)

// Provider is the AI-generation collaborator. It is treated as an opaque,
// potentially-failing, potentially-slow function; the pipeline owns all
// retry/timeout/partial-failure logic beyond the single transport-level retry
// the implementation performs.
type Provider interface {
	// GenerateJSON sends a system+user prompt pair and returns the raw JSON
	// payload of the response, with any markdown fencing already stripped.
	GenerateJSON(ctx context.Context, kind PromptKind, system, user string, opts ...Option) (json.RawMessage, error)
}

// Option adjusts a single generation call.
type Option func(*Options)

// Options are the per-call knobs providers understand.
type Options struct {
	Temperature float64
	MaxTokens   int
	Model       string
}

// WithTemperature overrides the provider's default sampling temperature.
func WithTemperature(temp float64) Option {
	return func(o *Options) { o.Temperature = temp }
}

// WithMaxTokens overrides the provider's default completion budget.
func WithMaxTokens(n int) Option {
	return func(o *Options) { o.MaxTokens = n }
}
