package models

import (
	"fmt"
	"sort"

	"github.com/google/uuid"
)

// ProgramEntityID is the ledger entity id for program-level (meta) fields.
const ProgramEntityID = "program"

type ledgerKey struct {
	EntityID string
	Field    string
}

// ProgramModel is the single mutable owner of all pipeline entities, plus the
// per-field edit ledger. Pipeline stages receive read-only views of upstream
// entities and return newly-owned downstream entities that the model absorbs
// through the Merge/Set methods. Callers are responsible for locking; the
// session service serializes access per session.
type ProgramModel struct {
	Document       *ExtractedDocument `json:"document,omitempty"`
	Meta           ProgramMeta        `json:"meta"`
	Topics         []Topic            `json:"topics"`
	Modules        []Module           `json:"modules"`
	SlidesByModule map[string][]Slide `json:"slides_by_module"`
	Questions      []Question         `json:"questions"`

	ledger map[ledgerKey]bool
}

// NewProgramModel returns an empty program model.
func NewProgramModel() *ProgramModel {
	return &ProgramModel{
		SlidesByModule: make(map[string][]Slide),
		ledger:         make(map[ledgerKey]bool),
	}
}

// IsUserSet reports whether the given entity field was set by a user edit.
func (p *ProgramModel) IsUserSet(entityID, field string) bool {
	return p.ledger[ledgerKey{EntityID: entityID, Field: field}]
}

// UserEditedFields lists the ledger-protected fields of one entity, sorted.
func (p *ProgramModel) UserEditedFields(entityID string) []string {
	var fields []string
	for k, set := range p.ledger {
		if set && k.EntityID == entityID {
			fields = append(fields, k.Field)
		}
	}
	sort.Strings(fields)
	return fields
}

func (p *ProgramModel) markUserSet(entityID, field string) {
	p.ledger[ledgerKey{EntityID: entityID, Field: field}] = true
}

// ApplyEdit sets a field on the identified entity and marks the ledger entry
// user-set, protecting the field from later regeneration.
func (p *ProgramModel) ApplyEdit(entityID, field string, newValue interface{}) error {
	if entityID == ProgramEntityID {
		if err := p.editMeta(field, newValue); err != nil {
			return err
		}
		p.markUserSet(entityID, field)
		return nil
	}

	if t := p.topicByID(entityID); t != nil {
		if err := editTopicField(t, field, newValue); err != nil {
			return err
		}
		p.markUserSet(entityID, field)
		return nil
	}

	if m := p.moduleByID(entityID); m != nil {
		if err := editModuleField(m, field, newValue); err != nil {
			return err
		}
		p.markUserSet(entityID, field)
		return nil
	}

	if s := p.slideByID(entityID); s != nil {
		if err := editSlideField(s, field, newValue); err != nil {
			return err
		}
		p.markUserSet(entityID, field)
		return nil
	}

	if q := p.questionByID(entityID); q != nil {
		if err := editQuestionField(q, field, newValue); err != nil {
			return err
		}
		p.markUserSet(entityID, field)
		return nil
	}

	return fmt.Errorf("%w: %s", ErrUnknownEntity, entityID)
}

func (p *ProgramModel) editMeta(field string, v interface{}) error {
	switch field {
	case "title":
		return assignString(&p.Meta.Title, v)
	case "description":
		return assignString(&p.Meta.Description, v)
	case "objectives":
		return assignStrings(&p.Meta.Objectives, v)
	case "duration":
		return assignString(&p.Meta.Duration, v)
	case "template":
		var s string
		if err := assignString(&s, v); err != nil {
			return err
		}
		if !ValidTemplate(s) {
			return fmt.Errorf("%w: unknown template %q", ErrUnknownField, s)
		}
		p.Meta.Template = s
		return nil
	}
	return fmt.Errorf("%w: program.%s", ErrUnknownField, field)
}

func editTopicField(t *Topic, field string, v interface{}) error {
	switch field {
	case "name":
		return assignString(&t.Name, v)
	case "description":
		return assignString(&t.Description, v)
	case "duration_minutes":
		return assignInt(&t.DurationMinutes, v)
	case "importance":
		var s string
		if err := assignString(&s, v); err != nil {
			return err
		}
		if !ValidImportance(s) {
			return fmt.Errorf("%w: invalid importance %q", ErrUnknownField, s)
		}
		t.Importance = Importance(s)
		return nil
	case "key_concepts":
		return assignStrings(&t.KeyConcepts, v)
	}
	return fmt.Errorf("%w: topic.%s", ErrUnknownField, field)
}

func editModuleField(m *Module, field string, v interface{}) error {
	switch field {
	case "title":
		return assignString(&m.Title, v)
	case "objectives":
		return assignStrings(&m.Objectives, v)
	case "key_points":
		return assignStrings(&m.KeyPoints, v)
	case "estimated_slide_count":
		return assignInt(&m.EstimatedSlideCount, v)
	case "duration_minutes":
		return assignInt(&m.DurationMinutes, v)
	}
	return fmt.Errorf("%w: module.%s", ErrUnknownField, field)
}

func editSlideField(s *Slide, field string, v interface{}) error {
	switch field {
	case "headline":
		return assignString(&s.Headline, v)
	case "bullets":
		return assignStrings(&s.Bullets, v)
	case "teaching_notes":
		return assignString(&s.TeachingNotes, v)
	}
	return fmt.Errorf("%w: slide.%s", ErrUnknownField, field)
}

func editQuestionField(q *Question, field string, v interface{}) error {
	switch field {
	case "prompt":
		return assignString(&q.Prompt, v)
	case "options":
		return assignStrings(&q.Options, v)
	case "correct_answer":
		return assignString(&q.CorrectAnswer, v)
	case "explanation":
		return assignString(&q.Explanation, v)
	case "marking_points":
		return assignStrings(&q.MarkingPoints, v)
	case "sample_answer":
		return assignString(&q.SampleAnswer, v)
	}
	return fmt.Errorf("%w: question.%s", ErrUnknownField, field)
}

func assignString(dst *string, v interface{}) error {
	s, ok := v.(string)
	if !ok {
		return fmt.Errorf("%w: expected string value", ErrUnknownField)
	}
	*dst = s
	return nil
}

func assignInt(dst *int, v interface{}) error {
	switch n := v.(type) {
	case int:
		*dst = n
	case float64: // JSON numbers decode as float64
		*dst = int(n)
	default:
		return fmt.Errorf("%w: expected numeric value", ErrUnknownField)
	}
	return nil
}

func assignStrings(dst *[]string, v interface{}) error {
	switch vs := v.(type) {
	case []string:
		*dst = vs
	case []interface{}:
		out := make([]string, 0, len(vs))
		for _, item := range vs {
			s, ok := item.(string)
			if !ok {
				return fmt.Errorf("%w: expected string list", ErrUnknownField)
			}
			out = append(out, s)
		}
		*dst = out
	default:
		return fmt.Errorf("%w: expected string list", ErrUnknownField)
	}
	return nil
}

func (p *ProgramModel) topicByID(id string) *Topic {
	for i := range p.Topics {
		if p.Topics[i].ID == id {
			return &p.Topics[i]
		}
	}
	return nil
}

func (p *ProgramModel) moduleByID(id string) *Module {
	for i := range p.Modules {
		if p.Modules[i].ID == id {
			return &p.Modules[i]
		}
	}
	return nil
}

func (p *ProgramModel) slideByID(id string) *Slide {
	for _, slides := range p.SlidesByModule {
		for i := range slides {
			if slides[i].ID == id {
				return &slides[i]
			}
		}
	}
	return nil
}

func (p *ProgramModel) questionByID(id string) *Question {
	for i := range p.Questions {
		if p.Questions[i].ID == id {
			return &p.Questions[i]
		}
	}
	return nil
}

// MergeTopics absorbs a regenerated topic set. Existing topics are aligned by
// position, keep their identity, and only fields without a user-set ledger
// entry are refreshed. Extra regenerated topics are appended; existing topics
// beyond the regenerated set survive only if they carry user edits.
func (p *ProgramModel) MergeTopics(regenerated []Topic) {
	merged := make([]Topic, 0, len(regenerated))
	n := len(p.Topics)
	if len(regenerated) < n {
		n = len(regenerated)
	}
	for i := 0; i < n; i++ {
		existing := p.Topics[i]
		fresh := regenerated[i]
		id := existing.ID
		if !p.IsUserSet(id, "name") {
			existing.Name = fresh.Name
		}
		if !p.IsUserSet(id, "description") {
			existing.Description = fresh.Description
		}
		if !p.IsUserSet(id, "duration_minutes") {
			existing.DurationMinutes = fresh.DurationMinutes
		}
		if !p.IsUserSet(id, "importance") {
			existing.Importance = fresh.Importance
		}
		if !p.IsUserSet(id, "key_concepts") {
			existing.KeyConcepts = fresh.KeyConcepts
		}
		existing.SourceBlockIDs = fresh.SourceBlockIDs
		merged = append(merged, existing)
	}
	for i := n; i < len(regenerated); i++ {
		t := regenerated[i]
		if t.ID == "" {
			t.ID = uuid.New().String()
		}
		merged = append(merged, t)
	}
	for i := n; i < len(p.Topics); i++ {
		if len(p.UserEditedFields(p.Topics[i].ID)) > 0 {
			merged = append(merged, p.Topics[i])
		}
	}
	p.Topics = merged
}

// MergeModules absorbs a regenerated outline. Unlike topics, module order is
// user-permutable, so regenerated modules are aligned to existing ones by
// topic membership overlap rather than position: a reordered outline keeps
// its identities and its order through regeneration. Field protection follows
// the same ledger rules as MergeTopics; program meta fields are refreshed
// individually under the same ledger. Modules dropped by the merge take their
// owned slides and questions with them.
func (p *ProgramModel) MergeModules(regenerated []Module, meta ProgramMeta) {
	if !p.IsUserSet(ProgramEntityID, "title") {
		p.Meta.Title = meta.Title
	}
	if !p.IsUserSet(ProgramEntityID, "description") {
		p.Meta.Description = meta.Description
	}
	if !p.IsUserSet(ProgramEntityID, "objectives") {
		p.Meta.Objectives = meta.Objectives
	}
	if !p.IsUserSet(ProgramEntityID, "duration") {
		p.Meta.Duration = meta.Duration
	}
	if !p.IsUserSet(ProgramEntityID, "template") {
		p.Meta.Template = meta.Template
	}

	aligned, extras := alignModules(p.Modules, regenerated)
	merged := make([]Module, 0, len(regenerated))
	for i := range p.Modules {
		existing := p.Modules[i]
		fresh := aligned[i]
		if fresh == nil {
			// No regenerated counterpart: survives only with user edits.
			if len(p.UserEditedFields(existing.ID)) > 0 {
				merged = append(merged, existing)
			}
			continue
		}
		id := existing.ID
		if !p.IsUserSet(id, "title") {
			existing.Title = fresh.Title
		}
		if !p.IsUserSet(id, "objectives") {
			existing.Objectives = fresh.Objectives
		}
		if !p.IsUserSet(id, "key_points") {
			existing.KeyPoints = fresh.KeyPoints
		}
		if !p.IsUserSet(id, "estimated_slide_count") {
			existing.EstimatedSlideCount = fresh.EstimatedSlideCount
		}
		if !p.IsUserSet(id, "duration_minutes") {
			existing.DurationMinutes = fresh.DurationMinutes
		}
		existing.TopicIDs = fresh.TopicIDs
		merged = append(merged, existing)
	}
	for _, m := range extras {
		if m.ID == "" {
			m.ID = uuid.New().String()
		}
		merged = append(merged, m)
	}
	kept := make(map[string]struct{}, len(merged))
	for _, m := range merged {
		kept[m.ID] = struct{}{}
	}
	for id := range p.SlidesByModule {
		if _, ok := kept[id]; !ok {
			delete(p.SlidesByModule, id)
		}
	}
	questions := p.Questions[:0]
	for _, q := range p.Questions {
		if _, ok := kept[q.ModuleID]; ok || q.ModuleID == "" {
			questions = append(questions, q)
		}
	}
	p.Questions = questions
	p.Modules = merged
}

// alignModules pairs regenerated modules with existing ones by topic
// membership overlap, best matches first. Returns one entry per existing
// module (nil when nothing overlaps) plus the unmatched regenerated modules.
func alignModules(existing, regenerated []Module) ([]*Module, []Module) {
	type match struct {
		existing, fresh, overlap int
	}
	var matches []match
	for e := range existing {
		members := make(map[string]struct{}, len(existing[e].TopicIDs))
		for _, tid := range existing[e].TopicIDs {
			members[tid] = struct{}{}
		}
		for f := range regenerated {
			overlap := 0
			for _, tid := range regenerated[f].TopicIDs {
				if _, ok := members[tid]; ok {
					overlap++
				}
			}
			if overlap > 0 {
				matches = append(matches, match{existing: e, fresh: f, overlap: overlap})
			}
		}
	}
	sort.SliceStable(matches, func(i, j int) bool {
		return matches[i].overlap > matches[j].overlap
	})

	aligned := make([]*Module, len(existing))
	usedFresh := make([]bool, len(regenerated))
	for _, m := range matches {
		if aligned[m.existing] != nil || usedFresh[m.fresh] {
			continue
		}
		aligned[m.existing] = &regenerated[m.fresh]
		usedFresh[m.fresh] = true
	}
	var extras []Module
	for f := range regenerated {
		if !usedFresh[f] {
			extras = append(extras, regenerated[f])
		}
	}
	return aligned, extras
}

// SetModuleSlides replaces one module's slide subtree. Merge is atomic per
// module: concurrent generation tasks write disjoint subtrees. Slides with a
// user-set ledger entry keep the protected field by position alignment.
func (p *ProgramModel) SetModuleSlides(moduleID string, slides []Slide) {
	existing := p.SlidesByModule[moduleID]
	for i := range slides {
		if slides[i].ID == "" {
			slides[i].ID = uuid.New().String()
		}
		slides[i].ModuleID = moduleID
		slides[i].Position = i
		if i < len(existing) {
			id := existing[i].ID
			if len(p.UserEditedFields(id)) > 0 {
				fresh := slides[i]
				kept := existing[i]
				if !p.IsUserSet(id, "headline") {
					kept.Headline = fresh.Headline
				}
				if !p.IsUserSet(id, "bullets") {
					kept.Bullets = fresh.Bullets
				}
				if !p.IsUserSet(id, "teaching_notes") {
					kept.TeachingNotes = fresh.TeachingNotes
				}
				kept.Kind = fresh.Kind
				kept.Position = i
				kept.NeedsReview = fresh.NeedsReview
				slides[i] = kept
			}
		}
	}
	p.SlidesByModule[moduleID] = slides
}

// SetModuleQuestions replaces one module's questions. Questions with a
// user-set ledger entry keep the protected fields by position alignment,
// mirroring SetModuleSlides.
func (p *ProgramModel) SetModuleQuestions(moduleID string, questions []Question) {
	var existing []Question
	remaining := make([]Question, 0, len(p.Questions)+len(questions))
	for _, q := range p.Questions {
		if q.ModuleID == moduleID {
			existing = append(existing, q)
		} else {
			remaining = append(remaining, q)
		}
	}
	for i := range questions {
		if questions[i].ID == "" {
			questions[i].ID = uuid.New().String()
		}
		questions[i].ModuleID = moduleID
		if i < len(existing) {
			id := existing[i].ID
			if len(p.UserEditedFields(id)) > 0 {
				fresh := questions[i]
				kept := existing[i]
				if !p.IsUserSet(id, "prompt") {
					kept.Prompt = fresh.Prompt
				}
				if !p.IsUserSet(id, "options") {
					kept.Options = fresh.Options
				}
				if !p.IsUserSet(id, "correct_answer") {
					kept.CorrectAnswer = fresh.CorrectAnswer
				}
				if !p.IsUserSet(id, "explanation") {
					kept.Explanation = fresh.Explanation
				}
				if !p.IsUserSet(id, "marking_points") {
					kept.MarkingPoints = fresh.MarkingPoints
				}
				if !p.IsUserSet(id, "sample_answer") {
					kept.SampleAnswer = fresh.SampleAnswer
				}
				kept.Kind = fresh.Kind
				kept.NeedsReview = fresh.NeedsReview
				kept.SourceBlockIDs = fresh.SourceBlockIDs
				questions[i] = kept
			}
		}
	}
	p.Questions = append(remaining, questions...)
}

// Reorder permutes module order. The sequence must be a permutation of the
// current module ids; ledgers and entity identities are untouched.
func (p *ProgramModel) Reorder(moduleIDs []string) error {
	if len(moduleIDs) != len(p.Modules) {
		return fmt.Errorf("%w: reorder sequence has %d ids, want %d", ErrUnknownEntity, len(moduleIDs), len(p.Modules))
	}
	reordered := make([]Module, 0, len(moduleIDs))
	seen := make(map[string]struct{}, len(moduleIDs))
	for _, id := range moduleIDs {
		if _, dup := seen[id]; dup {
			return fmt.Errorf("%w: duplicate module id %s in reorder sequence", ErrUnknownEntity, id)
		}
		seen[id] = struct{}{}
		m := p.moduleByID(id)
		if m == nil {
			return fmt.Errorf("%w: %s", ErrUnknownEntity, id)
		}
		reordered = append(reordered, *m)
	}
	p.Modules = reordered
	return nil
}

// RemoveModule removes a module and cascade-removes its owned slides and
// questions. Other modules' ledgers are untouched.
func (p *ProgramModel) RemoveModule(id string) error {
	idx := -1
	for i := range p.Modules {
		if p.Modules[i].ID == id {
			idx = i
			break
		}
	}
	if idx < 0 {
		return fmt.Errorf("%w: %s", ErrUnknownEntity, id)
	}
	p.Modules = append(p.Modules[:idx], p.Modules[idx+1:]...)
	delete(p.SlidesByModule, id)
	questions := p.Questions[:0]
	for _, q := range p.Questions {
		if q.ModuleID != id {
			questions = append(questions, q)
		}
	}
	p.Questions = questions
	return nil
}

// ModuleDuration returns a module's authoritative duration: the sum of its
// topics' durations, unless a user edit overrode the field.
func (p *ProgramModel) ModuleDuration(moduleID string) int {
	m := p.moduleByID(moduleID)
	if m == nil {
		return 0
	}
	if p.IsUserSet(moduleID, "duration_minutes") {
		return m.DurationMinutes
	}
	total := 0
	for _, tid := range m.TopicIDs {
		if t := p.topicByID(tid); t != nil {
			total += t.DurationMinutes
		}
	}
	return total
}

// Validate checks every structural invariant the artifact assembler relies
// on. Assembly must never run against a model that fails validation.
func (p *ProgramModel) Validate() error {
	if p.Document == nil || len(p.Document.Blocks) == 0 {
		return fmt.Errorf("%w: missing extracted document", ErrValidationFailed)
	}
	for _, t := range p.Topics {
		if len(t.SourceBlockIDs) == 0 {
			return fmt.Errorf("%w: topic %q has no source block references", ErrValidationFailed, t.Name)
		}
	}
	assigned := make(map[string]string)
	for _, m := range p.Modules {
		for _, tid := range m.TopicIDs {
			if p.topicByID(tid) == nil {
				return fmt.Errorf("%w: module %q references unknown topic %s", ErrValidationFailed, m.Title, tid)
			}
			if other, dup := assigned[tid]; dup {
				return fmt.Errorf("%w: topic %s assigned to both module %s and %s", ErrValidationFailed, tid, other, m.ID)
			}
			assigned[tid] = m.ID
		}
	}
	for moduleID, slides := range p.SlidesByModule {
		if len(slides) == 0 {
			continue
		}
		if len(slides) < 2 {
			return fmt.Errorf("%w: module %s has fewer than two slides", ErrValidationFailed, moduleID)
		}
		for i, s := range slides {
			if s.Position != i {
				return fmt.Errorf("%w: module %s slide positions are not contiguous", ErrValidationFailed, moduleID)
			}
			want := SlideContent
			switch i {
			case 0:
				want = SlideTitle
			case len(slides) - 1:
				want = SlideSummary
			}
			if s.Kind != want {
				return fmt.Errorf("%w: module %s slide %d has kind %s, want %s", ErrValidationFailed, moduleID, i, s.Kind, want)
			}
		}
	}
	for _, q := range p.Questions {
		if len(q.SourceBlockIDs) == 0 {
			return fmt.Errorf("%w: question %q has no source block references", ErrValidationFailed, q.Prompt)
		}
		for id := range q.SourceBlockIDs {
			if !p.Document.HasBlock(id) {
				return fmt.Errorf("%w: question %q cites %s which is not a document block", ErrValidationFailed, q.Prompt, id)
			}
		}
		if q.Kind == QuestionMultipleChoice {
			if len(q.Options) < 2 {
				return fmt.Errorf("%w: multiple-choice question %q has fewer than two options", ErrValidationFailed, q.Prompt)
			}
			found := false
			for _, opt := range q.Options {
				if opt == q.CorrectAnswer {
					found = true
					break
				}
			}
			if !found {
				return fmt.Errorf("%w: question %q correct answer is not among its options", ErrValidationFailed, q.Prompt)
			}
		}
	}
	return nil
}
