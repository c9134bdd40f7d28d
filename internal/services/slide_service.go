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

// SlideBatchSize caps how many content slides one AI call produces. Larger
// modules are generated in consecutive batches, the tail of the previous
// batch passed along for continuity.
const SlideBatchSize = 15

// slideTemperature keeps slide content close to the source material.
const slideTemperature = 0.1

// SlideService renders one module's slide sequence. Invoked per module by
// the orchestrator; calls for different modules never share state.
type SlideService struct {
	provider ai.Provider
}

func NewSlideService(provider ai.Provider) *SlideService {
	return &SlideService{provider: provider}
}

const slideSystemPrompt = `You are an expert training content author. You write presentation slides with thorough spoken teaching notes, staying strictly within the provided source material. Respond with JSON only.`

type slideEnvelope struct {
	Slides []slideCandidate `json:"slides"`
}

type slideCandidate struct {
	Headline      string   `json:"headline"`
	Bullets       []string `json:"bullets"`
	TeachingNotes string   `json:"teaching_notes"`
}

// GenerateSlides produces the full slide sequence for one module: a locally
// built title slide, AI-generated content slides in key-point order, and a
// locally built summary slide. Content positions and kinds are enforced
// post-hoc, so the structural invariants never depend on AI compliance.
func (s *SlideService) GenerateSlides(ctx context.Context, module models.Module, topics []models.Topic, doc *models.ExtractedDocument) ([]models.Slide, error) {
	contentTarget := module.EstimatedSlideCount - 2
	if contentTarget < 1 {
		contentTarget = 1
	}

	excerpt := moduleSourceExcerpt(module, topics, doc)

	var content []models.Slide
	var prevTail string
	for len(content) < contentTarget {
		batch := contentTarget - len(content)
		if batch > SlideBatchSize {
			batch = SlideBatchSize
		}
		candidates, err := s.generateBatch(ctx, module, excerpt, batch, len(content), contentTarget, prevTail)
		if err != nil {
			return nil, fmt.Errorf("%w: module %q: %v", models.ErrSlideGenerationFailed, module.Title, err)
		}
		if len(candidates) == 0 {
			return nil, fmt.Errorf("%w: module %q: empty slide batch", models.ErrSlideGenerationFailed, module.Title)
		}
		before := len(content)
		for _, cand := range candidates {
			if len(content) >= contentTarget {
				break
			}
			headline := strings.TrimSpace(cand.Headline)
			if headline == "" {
				continue
			}
			content = append(content, models.Slide{
				ID:            uuid.New().String(),
				Kind:          models.SlideContent,
				Headline:      headline,
				Bullets:       cand.Bullets,
				TeachingNotes: strings.TrimSpace(cand.TeachingNotes),
			})
		}
		// A batch that adds nothing usable would loop until the task
		// timeout; fail the module instead.
		if len(content) == before {
			return nil, fmt.Errorf("%w: module %q: batch produced no usable slides", models.ErrSlideGenerationFailed, module.Title)
		}
		prevTail = batchTail(content)
	}

	s.ensureTeachingNotes(ctx, module, excerpt, content)

	slides := make([]models.Slide, 0, len(content)+2)
	slides = append(slides, titleSlide(module))
	slides = append(slides, content...)
	slides = append(slides, summarySlide(module))
	for i := range slides {
		slides[i].ModuleID = module.ID
		slides[i].Position = i
	}
	return slides, nil
}

func (s *SlideService) generateBatch(ctx context.Context, module models.Module, excerpt string, batch, done, total int, prevTail string) ([]slideCandidate, error) {
	prompt := buildSlidePrompt(module, excerpt, batch, done, total, prevTail)
	rawResp, err := s.provider.GenerateJSON(ctx, ai.PromptSlideContent, slideSystemPrompt, prompt, ai.WithTemperature(slideTemperature))
	if err != nil {
		return nil, err
	}
	var envelope slideEnvelope
	if err := json.Unmarshal(rawResp, &envelope); err != nil {
		return nil, fmt.Errorf("unparseable slide batch: %w", err)
	}
	return envelope.Slides, nil
}

// ensureTeachingNotes retries slides whose notes fall short of the minimum
// once, then flags the stragglers for review instead of discarding them.
func (s *SlideService) ensureTeachingNotes(ctx context.Context, module models.Module, excerpt string, slides []models.Slide) {
	for i := range slides {
		if utils.WordCount(slides[i].TeachingNotes) >= models.MinTeachingNotesWords {
			continue
		}
		notes, err := s.expandNotes(ctx, module, excerpt, slides[i])
		if err == nil && utils.WordCount(notes) >= models.MinTeachingNotesWords {
			slides[i].TeachingNotes = notes
			continue
		}
		if err != nil {
			logrus.Warnf("Teaching notes retry failed for slide %q: %v", slides[i].Headline, err)
		}
		slides[i].NeedsReview = true
	}
}

func (s *SlideService) expandNotes(ctx context.Context, module models.Module, excerpt string, slide models.Slide) (string, error) {
	var b strings.Builder
	fmt.Fprintf(&b, "Write the spoken teaching notes for this slide of the module %q. At least %d words, grounded strictly in the source excerpt.\n", module.Title, models.MinTeachingNotesWords)
	b.WriteString(`Return JSON: {"teaching_notes": "..."}` + "\n\n")
	fmt.Fprintf(&b, "SLIDE HEADLINE: %s\nSLIDE BULLETS: %s\n", slide.Headline, strings.Join(slide.Bullets, "; "))
	if slide.TeachingNotes != "" {
		fmt.Fprintf(&b, "CURRENT DRAFT (too short, expand it): %s\n", slide.TeachingNotes)
	}
	b.WriteString("\nSOURCE EXCERPT:\n" + excerpt)

	rawResp, err := s.provider.GenerateJSON(ctx, ai.PromptSlideContent, slideSystemPrompt, b.String(), ai.WithTemperature(slideTemperature))
	if err != nil {
		return "", err
	}
	var out struct {
		TeachingNotes string `json:"teaching_notes"`
	}
	if err := json.Unmarshal(rawResp, &out); err != nil {
		return "", fmt.Errorf("unparseable notes response: %w", err)
	}
	return strings.TrimSpace(out.TeachingNotes), nil
}

func titleSlide(module models.Module) models.Slide {
	return models.Slide{
		ID:            uuid.New().String(),
		Kind:          models.SlideTitle,
		Headline:      module.Title,
		Bullets:       module.Objectives,
		TeachingNotes: fmt.Sprintf("Welcome participants and introduce the module %q. Walk through the objectives on the slide and explain how they connect to the participants' work.", module.Title),
	}
}

func summarySlide(module models.Module) models.Slide {
	bullets := module.KeyPoints
	if len(bullets) == 0 {
		bullets = module.Objectives
	}
	return models.Slide{
		ID:            uuid.New().String(),
		Kind:          models.SlideSummary,
		Headline:      fmt.Sprintf("Summary: %s", module.Title),
		Bullets:       bullets,
		TeachingNotes: "Recap each key point on the slide, invite questions, and bridge to the next module.",
	}
}

func batchTail(content []models.Slide) string {
	if len(content) == 0 {
		return ""
	}
	last := content[len(content)-1]
	return fmt.Sprintf("%s: %s", last.Headline, strings.Join(last.Bullets, "; "))
}

// moduleSourceExcerpt collects the document blocks the module's topics are
// grounded in, in reading order.
func moduleSourceExcerpt(module models.Module, topics []models.Topic, doc *models.ExtractedDocument) string {
	inModule := make(map[string]struct{}, len(module.TopicIDs))
	for _, tid := range module.TopicIDs {
		inModule[tid] = struct{}{}
	}
	wanted := make(map[string]struct{})
	for _, t := range topics {
		if _, ok := inModule[t.ID]; !ok {
			continue
		}
		for id := range t.SourceBlockIDs {
			wanted[id] = struct{}{}
		}
	}

	var parts []string
	for _, block := range doc.Blocks {
		if _, ok := wanted[block.ID]; ok {
			parts = append(parts, block.Text)
		}
	}
	if len(parts) == 0 {
		return doc.FullText()
	}
	return strings.Join(parts, "\n\n")
}

func buildSlidePrompt(module models.Module, excerpt string, batch, done, total int, prevTail string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Write %d content slides (%d through %d of %d) for the training module %q.\n", batch, done+1, done+batch, total, module.Title)
	b.WriteString(`Return JSON: {"slides": [{"headline", "bullets" (3-5 strings), "teaching_notes"}]}.` + "\n")
	fmt.Fprintf(&b, "Teaching notes are the trainer's spoken script, at least %d words per slide, grounded strictly in the source excerpt.\n", models.MinTeachingNotesWords)
	fmt.Fprintf(&b, "Cover the key points in this order: %s.\n", strings.Join(module.KeyPoints, "; "))
	if prevTail != "" {
		fmt.Fprintf(&b, "The previous slide was %q; continue from there without repeating it.\n", prevTail)
	}
	b.WriteString("\nSOURCE EXCERPT:\n" + excerpt)
	return b.String()
}
