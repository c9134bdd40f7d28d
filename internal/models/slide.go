package models

// SlideKind classifies a slide within its module.
type SlideKind string

const (
	SlideTitle   SlideKind = "title"
	SlideContent SlideKind = "content"
	SlideSummary SlideKind = "summary"
)

// MinTeachingNotesWords is the minimum word count for AI-authored teaching
// notes. Shorter notes get one regeneration attempt, then the slide is marked
// needs_review instead of being discarded.
const MinTeachingNotesWords = 200

// Slide is one rendered unit of a module's presentation.
// Position is unique and contiguous within a module: exactly one title slide
// at position 0 and exactly one summary slide at the last position, with
// content slides in between.
type Slide struct {
	ID            string    `json:"id"`
	ModuleID      string    `json:"module_id"`
	Position      int       `json:"position"`
	Kind          SlideKind `json:"kind"`
	Headline      string    `json:"headline"`
	Bullets       []string  `json:"bullets"`
	TeachingNotes string    `json:"teaching_notes"`
	NeedsReview   bool      `json:"needs_review"`
}
