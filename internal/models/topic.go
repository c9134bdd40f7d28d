package models

// Importance level of a topic within the training program.
type Importance string

const (
	ImportanceLow    Importance = "low"
	ImportanceMedium Importance = "medium"
	ImportanceHigh   Importance = "high"
)

// ValidImportance reports whether s is a recognized importance level.
func ValidImportance(s string) bool {
	switch Importance(s) {
	case ImportanceLow, ImportanceMedium, ImportanceHigh:
		return true
	}
	return false
}

// Topic is a semantically coherent unit of subject matter extracted from
// source content. SourceBlockIDs must be non-empty: every topic traces back
// to extracted content, never to thin air.
type Topic struct {
	ID              string              `json:"id"`
	Name            string              `json:"name"`
	DurationMinutes int                 `json:"duration_minutes"`
	Importance      Importance          `json:"importance"`
	KeyConcepts     []string            `json:"key_concepts"`
	Description     string              `json:"description"`
	SourceBlockIDs  map[string]struct{} `json:"-"`
}

// SourceBlockIDList returns the grounding block ids as a slice for responses.
func (t *Topic) SourceBlockIDList() []string {
	ids := make([]string, 0, len(t.SourceBlockIDs))
	for id := range t.SourceBlockIDs {
		ids = append(ids, id)
	}
	return ids
}

// TopicResponse is the API representation of a topic.
type TopicResponse struct {
	ID              string   `json:"id"`
	Name            string   `json:"name"`
	DurationMinutes int      `json:"duration_minutes"`
	Importance      string   `json:"importance"`
	KeyConcepts     []string `json:"key_concepts"`
	Description     string   `json:"description"`
	SourceBlockIDs  []string `json:"source_block_ids"`
}

// ToResponse converts a Topic to its API representation.
func (t *Topic) ToResponse() TopicResponse {
	return TopicResponse{
		ID:              t.ID,
		Name:            t.Name,
		DurationMinutes: t.DurationMinutes,
		Importance:      string(t.Importance),
		KeyConcepts:     t.KeyConcepts,
		Description:     t.Description,
		SourceBlockIDs:  t.SourceBlockIDList(),
	}
}
