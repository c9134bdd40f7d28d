package models

import (
	"sync"
	"time"
)

// Phase identifies where a generation session sits in the four-phase
// workflow. Each transition is a gate that requires the previous phase's
// output to be present and structurally valid.
type Phase string

const (
	PhaseUpload   Phase = "upload"
	PhaseAnalyze  Phase = "analyze"
	PhaseEdit     Phase = "edit"
	PhaseGenerate Phase = "generate"
	PhaseComplete Phase = "complete"
)

// Session is one generation session: a single document, a single program
// model, discarded when the session expires. Mu serializes all access to the
// program model; per-module generation tasks write disjoint subtrees and
// merge under this lock.
type Session struct {
	ID        string         `json:"id"`
	Phase     Phase          `json:"phase"`
	Program   *ProgramModel  `json:"program"`
	Options   SessionOptions `json:"options"`
	Artifacts []Artifact     `json:"artifacts"`
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`

	Mu sync.Mutex `json:"-"`
}

// SessionOptions are per-session generation parameters.
type SessionOptions struct {
	Duration           string `json:"duration"` // e.g. "1 day", see DurationToSlides
	TargetModules      int    `json:"target_modules"`
	TargetSlides       int    `json:"target_slides"`
	MaxTopics          int    `json:"max_topics"`
	Template           string `json:"template"`
	QuestionsPerModule int    `json:"questions_per_module"` // per kind
	IncludeAssessments bool   `json:"include_assessments"`
}

// Artifact is one generated deliverable file.
type Artifact struct {
	Name      string    `json:"name"`
	Kind      string    `json:"kind"` // deck, trainer_guide, assessment_pack, archive
	Path      string    `json:"-"`
	SizeBytes int64     `json:"size_bytes"`
	CreatedAt time.Time `json:"created_at"`
}

// CreateSessionRequest starts a new session.
type CreateSessionRequest struct {
	Duration           string `json:"duration" example:"1 day"`
	TargetModules      int    `json:"target_modules" example:"8"`
	TargetSlides       int    `json:"target_slides" example:"50"`
	MaxTopics          int    `json:"max_topics" example:"8"`
	Template           string `json:"template" example:"Corporate - Professional"`
	QuestionsPerModule int    `json:"questions_per_module" example:"3"`
	IncludeAssessments *bool  `json:"include_assessments" example:"true"`
}

// ApplyEditRequest sets one field on one entity and records the edit in the
// ledger so regeneration will not overwrite it.
type ApplyEditRequest struct {
	EntityID string      `json:"entity_id" binding:"required"`
	Field    string      `json:"field" binding:"required"`
	Value    interface{} `json:"value" binding:"required"`
}

// ReorderRequest permutes module order.
type ReorderRequest struct {
	ModuleIDs []string `json:"module_ids" binding:"required,min=1"`
}

// RegenerateRequest re-runs one pipeline stage, skipping user-set fields.
type RegenerateRequest struct {
	Stage string `json:"stage" binding:"required" example:"outline"` // topics or outline
}

// SessionResponse is the API representation of a session.
type SessionResponse struct {
	ID        string           `json:"id"`
	Phase     string           `json:"phase"`
	Options   SessionOptions   `json:"options"`
	Document  *DocumentSummary `json:"document,omitempty"`
	Meta      *ProgramMeta     `json:"meta,omitempty"`
	Topics    []TopicResponse  `json:"topics,omitempty"`
	Modules   []ModuleResponse `json:"modules,omitempty"`
	Artifacts []Artifact       `json:"artifacts,omitempty"`
	CreatedAt string           `json:"created_at"`
	UpdatedAt string           `json:"updated_at"`
}

// DocumentSummary is the upload-phase view of the extracted document.
type DocumentSummary struct {
	ID         string `json:"id"`
	Filename   string `json:"filename"`
	Format     string `json:"format"`
	BlockCount int    `json:"block_count"`
	WordCount  int    `json:"word_count"`
	PageCount  int    `json:"page_count"`
}

// ModuleResponse is the API representation of a module, including its slides
// and questions, authoritative duration and the ledger-protected fields.
type ModuleResponse struct {
	ID                  string             `json:"id"`
	Title               string             `json:"title"`
	Objectives          []string           `json:"objectives"`
	KeyPoints           []string           `json:"key_points"`
	EstimatedSlideCount int                `json:"estimated_slide_count"`
	TopicIDs            []string           `json:"topic_ids"`
	DurationMinutes     int                `json:"duration_minutes"`
	NeedsReview         bool               `json:"needs_review"`
	UserEdited          []string           `json:"user_edited,omitempty"`
	Slides              []Slide            `json:"slides,omitempty"`
	Questions           []QuestionResponse `json:"questions,omitempty"`
}
