package models

// QuestionKind classifies an assessment question.
type QuestionKind string

const (
	QuestionMultipleChoice QuestionKind = "multiple_choice"
	QuestionShortAnswer    QuestionKind = "short_answer"
)

// Question is one assessment item. SourceBlockIDs must be non-empty and
// reference blocks of the original extracted document, never generated slide
// content: assessments test the source material, not the AI's paraphrase of it.
type Question struct {
	ID             string              `json:"id"`
	ModuleID       string              `json:"module_id,omitempty"`
	Kind           QuestionKind        `json:"kind"`
	Prompt         string              `json:"prompt"`
	Options        []string            `json:"options,omitempty"`
	CorrectAnswer  string              `json:"correct_answer"`
	Explanation    string              `json:"explanation"`
	MarkingPoints  []string            `json:"marking_points,omitempty"`
	SampleAnswer   string              `json:"sample_answer,omitempty"`
	NeedsReview    bool                `json:"needs_review"`
	SourceBlockIDs map[string]struct{} `json:"-"`
}

// SourceBlockIDList returns the grounding block ids as a slice for responses.
func (q *Question) SourceBlockIDList() []string {
	ids := make([]string, 0, len(q.SourceBlockIDs))
	for id := range q.SourceBlockIDs {
		ids = append(ids, id)
	}
	return ids
}

// QuestionResponse is the API representation of a question.
type QuestionResponse struct {
	ID             string   `json:"id"`
	ModuleID       string   `json:"module_id,omitempty"`
	Kind           string   `json:"kind"`
	Prompt         string   `json:"prompt"`
	Options        []string `json:"options,omitempty"`
	CorrectAnswer  string   `json:"correct_answer"`
	Explanation    string   `json:"explanation"`
	MarkingPoints  []string `json:"marking_points,omitempty"`
	SampleAnswer   string   `json:"sample_answer,omitempty"`
	NeedsReview    bool     `json:"needs_review"`
	SourceBlockIDs []string `json:"source_block_ids"`
}

// ToResponse converts a Question to its API representation.
func (q *Question) ToResponse() QuestionResponse {
	return QuestionResponse{
		ID:             q.ID,
		ModuleID:       q.ModuleID,
		Kind:           string(q.Kind),
		Prompt:         q.Prompt,
		Options:        q.Options,
		CorrectAnswer:  q.CorrectAnswer,
		Explanation:    q.Explanation,
		MarkingPoints:  q.MarkingPoints,
		SampleAnswer:   q.SampleAnswer,
		NeedsReview:    q.NeedsReview,
		SourceBlockIDs: q.SourceBlockIDList(),
	}
}
