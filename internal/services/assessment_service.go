package services

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/trainforge/training-generator-backend/internal/ai"
	"github.com/trainforge/training-generator-backend/internal/models"
	"github.com/trainforge/training-generator-backend/internal/utils"
)

const assessmentTemperature = 0.3

// AssessmentService authors assessment questions per module. Questions test
// the source document, never generated slide content, so every question must
// cite document block ids.
type AssessmentService struct {
	provider ai.Provider
}

func NewAssessmentService(provider ai.Provider) *AssessmentService {
	return &AssessmentService{provider: provider}
}

const assessmentSystemPrompt = `You are an expert assessment author. You write questions that test understanding of the provided source material only, with clear answers and marking guidance. Respond with JSON only.`

type assessmentEnvelope struct {
	Questions []questionCandidate `json:"questions"`
}

type questionCandidate struct {
	Kind           string   `json:"kind"`
	Prompt         string   `json:"prompt"`
	Options        []string `json:"options"`
	CorrectAnswer  string   `json:"correct_answer"`
	Explanation    string   `json:"explanation"`
	MarkingPoints  []string `json:"marking_points"`
	SampleAnswer   string   `json:"sample_answer"`
	SourceBlockIDs []string `json:"source_block_ids"`
}

// GenerateAssessments produces countPerKind multiple-choice and countPerKind
// short-answer questions for one module. Invalid candidates are dropped
// individually; when the AI path is unavailable, deterministic fallback
// questions derived from the module's objectives are returned flagged for
// review.
func (s *AssessmentService) GenerateAssessments(ctx context.Context, doc *models.ExtractedDocument, module models.Module, topics []models.Topic, countPerKind int) ([]models.Question, error) {
	if countPerKind <= 0 {
		countPerKind = 2
	}

	excerpt := moduleSourceExcerpt(module, topics, doc)
	blockIDs := moduleSourceBlockIDs(module, topics, doc)

	rawResp, err := s.provider.GenerateJSON(ctx, ai.PromptAssessmentItem, assessmentSystemPrompt,
		buildAssessmentPrompt(doc, module, excerpt, countPerKind), ai.WithTemperature(assessmentTemperature))
	if err != nil {
		logrus.Warnf("Assessment call failed for module %q, using fallback questions: %v", module.Title, err)
		return s.fallbackQuestions(module, blockIDs, countPerKind)
	}

	var envelope assessmentEnvelope
	if err := json.Unmarshal(rawResp, &envelope); err != nil {
		return nil, fmt.Errorf("%w: module %q: unparseable response: %v", models.ErrAssessmentFailed, module.Title, err)
	}

	var questions []models.Question
	for _, cand := range envelope.Questions {
		q, ok := buildQuestion(doc, module, cand)
		if !ok {
			logrus.Warnf("Dropping invalid question candidate %q", utils.Truncate(cand.Prompt, 60))
			continue
		}
		questions = append(questions, q)
	}
	if len(questions) == 0 {
		return nil, fmt.Errorf("%w: module %q: no valid questions in batch", models.ErrAssessmentFailed, module.Title)
	}
	return questions, nil
}

func buildQuestion(doc *models.ExtractedDocument, module models.Module, cand questionCandidate) (models.Question, bool) {
	prompt := strings.TrimSpace(cand.Prompt)
	if prompt == "" {
		return models.Question{}, false
	}

	kind := models.QuestionKind(strings.ToLower(strings.TrimSpace(cand.Kind)))
	if kind != models.QuestionMultipleChoice && kind != models.QuestionShortAnswer {
		return models.Question{}, false
	}

	grounding := make(map[string]struct{})
	for _, id := range cand.SourceBlockIDs {
		if doc.HasBlock(id) {
			grounding[id] = struct{}{}
		}
	}
	if len(grounding) == 0 {
		return models.Question{}, false
	}

	q := models.Question{
		ID:             uuid.New().String(),
		ModuleID:       module.ID,
		Kind:           kind,
		Prompt:         prompt,
		Explanation:    strings.TrimSpace(cand.Explanation),
		SourceBlockIDs: grounding,
	}

	switch kind {
	case models.QuestionMultipleChoice:
		q.Options = dedupeOptions(cand.Options)
		q.CorrectAnswer = strings.TrimSpace(cand.CorrectAnswer)
		if len(q.Options) < 2 || q.CorrectAnswer == "" {
			return models.Question{}, false
		}
		found := false
		for _, opt := range q.Options {
			if opt == q.CorrectAnswer {
				found = true
				break
			}
		}
		if !found {
			return models.Question{}, false
		}
	case models.QuestionShortAnswer:
		q.MarkingPoints = cand.MarkingPoints
		q.SampleAnswer = strings.TrimSpace(cand.SampleAnswer)
		q.CorrectAnswer = q.SampleAnswer
		if len(q.MarkingPoints) == 0 && q.SampleAnswer == "" {
			return models.Question{}, false
		}
		if q.CorrectAnswer == "" && len(q.MarkingPoints) > 0 {
			q.CorrectAnswer = q.MarkingPoints[0]
		}
	}
	return q, true
}

// dedupeOptions removes duplicate options by normalized comparison, keeping
// first occurrences in order.
func dedupeOptions(options []string) []string {
	seen := make(map[string]struct{}, len(options))
	out := make([]string, 0, len(options))
	for _, opt := range options {
		opt = strings.TrimSpace(opt)
		if opt == "" {
			continue
		}
		key := utils.NormalizeName(opt)
		if _, dup := seen[key]; dup {
			continue
		}
		seen[key] = struct{}{}
		out = append(out, opt)
	}
	return out
}

// fallbackQuestions derives short-answer questions from the module's
// objectives so an AI outage degrades the assessment pack instead of killing
// the module. Every fallback question is flagged for review.
func (s *AssessmentService) fallbackQuestions(module models.Module, blockIDs map[string]struct{}, countPerKind int) ([]models.Question, error) {
	if len(blockIDs) == 0 {
		return nil, fmt.Errorf("%w: module %q: no source blocks for fallback questions", models.ErrAssessmentFailed, module.Title)
	}
	seeds := module.Objectives
	if len(seeds) == 0 {
		seeds = module.KeyPoints
	}
	if len(seeds) == 0 {
		return nil, fmt.Errorf("%w: module %q: nothing to derive fallback questions from", models.ErrAssessmentFailed, module.Title)
	}

	var questions []models.Question
	for i, seed := range seeds {
		if i >= countPerKind {
			break
		}
		questions = append(questions, models.Question{
			ID:             uuid.New().String(),
			ModuleID:       module.ID,
			Kind:           models.QuestionShortAnswer,
			Prompt:         fmt.Sprintf("In your own words, explain: %s", seed),
			MarkingPoints:  []string{seed},
			SampleAnswer:   seed,
			CorrectAnswer:  seed,
			Explanation:    "Derived from the module objectives; review before use.",
			NeedsReview:    true,
			SourceBlockIDs: blockIDs,
		})
	}
	return questions, nil
}

func moduleSourceBlockIDs(module models.Module, topics []models.Topic, doc *models.ExtractedDocument) map[string]struct{} {
	inModule := make(map[string]struct{}, len(module.TopicIDs))
	for _, tid := range module.TopicIDs {
		inModule[tid] = struct{}{}
	}
	ids := make(map[string]struct{})
	for _, t := range topics {
		if _, ok := inModule[t.ID]; !ok {
			continue
		}
		for id := range t.SourceBlockIDs {
			if doc.HasBlock(id) {
				ids[id] = struct{}{}
			}
		}
	}
	return ids
}

func buildAssessmentPrompt(doc *models.ExtractedDocument, module models.Module, excerpt string, countPerKind int) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Write %d multiple_choice and %d short_answer assessment questions for the training module %q.\n", countPerKind, countPerKind, module.Title)
	b.WriteString(`Return JSON: {"questions": [{"kind" (multiple_choice|short_answer), "prompt", "options" (multiple_choice only, 4 distinct), "correct_answer" (must be one of the options), "explanation", "marking_points" (short_answer only), "sample_answer" (short_answer only), "source_block_ids" (required, block ids the question tests)}]}.` + "\n")
	b.WriteString("Questions must test the source blocks below, nothing else, and cite the block ids they are based on.\n\nSOURCE BLOCKS:\n")
	inExcerpt := make(map[string]struct{})
	for _, block := range doc.Blocks {
		if strings.Contains(excerpt, block.Text) {
			inExcerpt[block.ID] = struct{}{}
		}
	}
	for _, block := range doc.Blocks {
		if _, ok := inExcerpt[block.ID]; ok {
			fmt.Fprintf(&b, "[%s] %s\n", block.ID, block.Text)
		}
	}
	return b.String()
}
