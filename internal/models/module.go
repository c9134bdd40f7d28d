package models

// Module is a grouping of topics forming one teaching unit.
// DurationMinutes is the sum of the module's topic durations unless a user
// edit overrode it, in which case the override is authoritative.
type Module struct {
	ID                  string   `json:"id"`
	Title               string   `json:"title"`
	Objectives          []string `json:"objectives"`
	KeyPoints           []string `json:"key_points"`
	EstimatedSlideCount int      `json:"estimated_slide_count"`
	TopicIDs            []string `json:"topic_ids"`
	DurationMinutes     int      `json:"duration_minutes"`
	NeedsReview         bool     `json:"needs_review"`
}

// ProgramMeta holds the program-level fields produced by outline generation.
type ProgramMeta struct {
	Title       string   `json:"title"`
	Description string   `json:"description"`
	Objectives  []string `json:"objectives"`
	Duration    string   `json:"duration"`
	Template    string   `json:"template"`
}

// DurationToSlides maps a requested training duration label to a total slide
// count for the whole program.
var DurationToSlides = map[string]int{
	"30 minutes": 8,
	"1 hour":     12,
	"2 hours":    20,
	"half day":   30,
	"1 day":      50,
	"2 days":     80,
	"3 days":     120,
	"1 week":     200,
	"2 weeks":    360,
	"1 month":    720,
}

// RecommendedModules returns the suggested module count for a slide total.
func RecommendedModules(slideCount int) int {
	switch {
	case slideCount <= 50:
		return 5
	case slideCount <= 120:
		return 6
	case slideCount <= 200:
		return 8
	case slideCount <= 360:
		return 10
	case slideCount <= 720:
		return 12
	default:
		return 15
	}
}

// TemplateStyles are the recognized presentation template options.
var TemplateStyles = []string{
	"Corporate - Professional",
	"Technical - Detailed",
	"Compliance - Regulatory",
	"Sales - Persuasive",
	"Academic - Educational",
	"Workshop - Interactive",
}

// ValidTemplate reports whether name is one of the TemplateStyles.
func ValidTemplate(name string) bool {
	for _, s := range TemplateStyles {
		if s == name {
			return true
		}
	}
	return false
}
