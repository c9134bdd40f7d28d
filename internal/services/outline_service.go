package services

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/trainforge/training-generator-backend/internal/ai"
	"github.com/trainforge/training-generator-backend/internal/models"
	"github.com/trainforge/training-generator-backend/internal/utils"
)

// OutlineService groups topics into teaching modules and produces the
// program-level meta. The AI proposes pedagogical clusters; deterministic
// bin-packing enforces the duration and size caps afterwards, so a wild AI
// response can degrade quality but never break structure.
type OutlineService struct {
	provider           ai.Provider
	maxModuleMinutes   int
	maxTopicsPerModule int
}

func NewOutlineService(provider ai.Provider, maxModuleMinutes, maxTopicsPerModule int) *OutlineService {
	if maxModuleMinutes <= 0 {
		maxModuleMinutes = 120
	}
	if maxTopicsPerModule <= 0 {
		maxTopicsPerModule = 4
	}
	return &OutlineService{
		provider:           provider,
		maxModuleMinutes:   maxModuleMinutes,
		maxTopicsPerModule: maxTopicsPerModule,
	}
}

const outlineSystemPrompt = `You are an expert instructional designer. You group training topics into a pedagogically ordered module outline and write the program overview. Respond with JSON only.`

type outlineEnvelope struct {
	Program outlineProgram  `json:"program"`
	Modules []outlineModule `json:"modules"`
}

type outlineProgram struct {
	Title       string   `json:"title"`
	Description string   `json:"description"`
	Objectives  []string `json:"objectives"`
}

type outlineModule struct {
	Title      string   `json:"title"`
	Objectives []string `json:"objectives"`
	KeyPoints  []string `json:"key_points"`
	TopicIDs   []string `json:"topic_ids"`
}

// BuildOutline groups topics into modules and derives program meta. The
// returned module order follows the AI's pedagogical ordering where usable,
// original topic order otherwise.
func (s *OutlineService) BuildOutline(ctx context.Context, topics []models.Topic, opts models.SessionOptions) ([]models.Module, models.ProgramMeta, error) {
	if len(topics) == 0 {
		return nil, models.ProgramMeta{}, fmt.Errorf("%w: no topics to group", models.ErrOutlineFailed)
	}

	clusters, program := s.proposeClusters(ctx, topics)
	modules := s.packModules(topics, clusters)
	if len(modules) == 0 {
		return nil, models.ProgramMeta{}, fmt.Errorf("%w: packing produced no modules", models.ErrOutlineFailed)
	}
	if want := targetModuleCount(opts); want > 0 {
		modules = s.coalesceModules(modules, topicIndex(topics), want)
	}

	meta := s.buildMeta(program, topics, opts)
	s.distributeSlides(modules, meta, opts)

	byID := topicIndex(topics)
	for i := range modules {
		total := 0
		for _, tid := range modules[i].TopicIDs {
			total += byID[tid].DurationMinutes
		}
		modules[i].DurationMinutes = total
	}

	logrus.Infof("Outline built: %d modules from %d topics", len(modules), len(topics))
	return modules, meta, nil
}

// proposeClusters asks the AI for a grouping. Any failure falls back to a
// single cluster in original topic order.
func (s *OutlineService) proposeClusters(ctx context.Context, topics []models.Topic) ([]outlineModule, outlineProgram) {
	rawResp, err := s.provider.GenerateJSON(ctx, ai.PromptOutlineGrouping, outlineSystemPrompt, buildOutlinePrompt(topics))
	if err != nil {
		logrus.Warnf("Outline grouping call failed, falling back to topic order: %v", err)
		return nil, outlineProgram{}
	}
	var envelope outlineEnvelope
	if err := json.Unmarshal(rawResp, &envelope); err != nil {
		logrus.Warnf("Outline grouping response unparseable, falling back to topic order: %v", err)
		return nil, outlineProgram{}
	}
	return envelope.Modules, envelope.Program
}

// packModules turns the proposed clusters into modules that respect the
// duration and topic-count caps. Oversized clusters are split by greedy
// first-fit over their topics in descending duration; topics the AI never
// placed are packed last, in original order.
func (s *OutlineService) packModules(topics []models.Topic, clusters []outlineModule) []models.Module {
	byID := topicIndex(topics)
	placed := make(map[string]struct{}, len(topics))
	var modules []models.Module

	for _, cluster := range clusters {
		var members []models.Topic
		for _, tid := range cluster.TopicIDs {
			t, ok := byID[tid]
			if !ok {
				continue
			}
			if _, dup := placed[tid]; dup {
				continue
			}
			placed[tid] = struct{}{}
			members = append(members, t)
		}
		if len(members) == 0 {
			continue
		}
		modules = append(modules, s.binPack(members, cluster)...)
	}

	var leftovers []models.Topic
	for _, t := range topics {
		if _, ok := placed[t.ID]; !ok {
			leftovers = append(leftovers, t)
		}
	}
	if len(leftovers) > 0 {
		modules = append(modules, s.binPack(leftovers, outlineModule{})...)
	}
	return modules
}

// binPack splits one topic group into cap-respecting modules: topics sorted
// by descending duration, each dropped into the first module with room, a
// new module opened when none fits.
func (s *OutlineService) binPack(members []models.Topic, cluster outlineModule) []models.Module {
	sorted := make([]models.Topic, len(members))
	copy(sorted, members)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].DurationMinutes > sorted[j].DurationMinutes
	})

	type bin struct {
		topics  []models.Topic
		minutes int
	}
	var bins []*bin
	for _, t := range sorted {
		fitted := false
		for _, b := range bins {
			if len(b.topics) < s.maxTopicsPerModule && b.minutes+t.DurationMinutes <= s.maxModuleMinutes {
				b.topics = append(b.topics, t)
				b.minutes += t.DurationMinutes
				fitted = true
				break
			}
		}
		if !fitted {
			bins = append(bins, &bin{topics: []models.Topic{t}, minutes: t.DurationMinutes})
		}
	}

	modules := make([]models.Module, 0, len(bins))
	for i, b := range bins {
		m := models.Module{ID: uuid.New().String()}
		for _, t := range b.topics {
			m.TopicIDs = append(m.TopicIDs, t.ID)
		}
		if i == 0 && cluster.Title != "" {
			m.Title = cluster.Title
			m.Objectives = cluster.Objectives
			m.KeyPoints = cluster.KeyPoints
		} else {
			m.Title = moduleTitleFromTopics(b.topics)
		}
		if len(m.KeyPoints) == 0 {
			for _, t := range b.topics {
				m.KeyPoints = append(m.KeyPoints, t.KeyConcepts...)
			}
		}
		if len(m.Objectives) == 0 {
			for _, t := range b.topics {
				m.Objectives = append(m.Objectives, fmt.Sprintf("Understand %s", t.Name))
			}
		}
		modules = append(modules, m)
	}
	return modules
}

// targetModuleCount resolves the requested module count: an explicit option
// wins, otherwise the recommendation for the program's slide total applies.
func targetModuleCount(opts models.SessionOptions) int {
	if opts.TargetModules > 0 {
		return opts.TargetModules
	}
	target := opts.TargetSlides
	if target <= 0 {
		target = models.DurationToSlides[strings.ToLower(opts.Duration)]
	}
	if target <= 0 {
		return 0
	}
	return models.RecommendedModules(target)
}

// coalesceModules merges adjacent modules until the outline fits the
// requested count. The duration and topic caps still bind, so an outline
// that cannot shrink that far stays larger than requested.
func (s *OutlineService) coalesceModules(modules []models.Module, byID map[string]models.Topic, want int) []models.Module {
	for len(modules) > want {
		merged := false
		for i := 0; i+1 < len(modules); i++ {
			a, b := modules[i], modules[i+1]
			if len(a.TopicIDs)+len(b.TopicIDs) > s.maxTopicsPerModule {
				continue
			}
			minutes := 0
			for _, tid := range a.TopicIDs {
				minutes += byID[tid].DurationMinutes
			}
			for _, tid := range b.TopicIDs {
				minutes += byID[tid].DurationMinutes
			}
			if minutes > s.maxModuleMinutes {
				continue
			}
			a.TopicIDs = append(a.TopicIDs, b.TopicIDs...)
			a.Objectives = append(a.Objectives, b.Objectives...)
			a.KeyPoints = append(a.KeyPoints, b.KeyPoints...)
			modules[i] = a
			modules = append(modules[:i+1], modules[i+2:]...)
			merged = true
			break
		}
		if !merged {
			break
		}
	}
	return modules
}

func (s *OutlineService) buildMeta(program outlineProgram, topics []models.Topic, opts models.SessionOptions) models.ProgramMeta {
	meta := models.ProgramMeta{
		Title:       strings.TrimSpace(program.Title),
		Description: strings.TrimSpace(program.Description),
		Objectives:  program.Objectives,
		Duration:    opts.Duration,
		Template:    opts.Template,
	}
	if meta.Title == "" {
		meta.Title = fmt.Sprintf("Training Program: %s", topics[0].Name)
	}
	if meta.Description == "" {
		names := make([]string, 0, len(topics))
		for _, t := range topics {
			names = append(names, t.Name)
		}
		meta.Description = fmt.Sprintf("A training program covering %s.", strings.Join(names, ", "))
	}
	if len(meta.Objectives) == 0 {
		for i, t := range topics {
			if i == 5 {
				break
			}
			meta.Objectives = append(meta.Objectives, fmt.Sprintf("Apply the concepts of %s", t.Name))
		}
	}
	if meta.Duration == "" {
		total := 0
		for _, t := range topics {
			total += t.DurationMinutes
		}
		meta.Duration = utils.FormatDurationMinutes(total)
	}
	return meta
}

// distributeSlides spreads the target slide count evenly across modules, any
// remainder going to the first module.
func (s *OutlineService) distributeSlides(modules []models.Module, meta models.ProgramMeta, opts models.SessionOptions) {
	target := opts.TargetSlides
	if target <= 0 {
		target = models.DurationToSlides[strings.ToLower(meta.Duration)]
	}
	if target <= 0 {
		// A title, a summary, and one slide per key point is a sane floor.
		for i := range modules {
			modules[i].EstimatedSlideCount = len(modules[i].KeyPoints) + 2
		}
		return
	}
	per := target / len(modules)
	if per < 3 {
		per = 3
	}
	for i := range modules {
		modules[i].EstimatedSlideCount = per
	}
	if rem := target - per*len(modules); rem > 0 {
		modules[0].EstimatedSlideCount += rem
	}
}

func topicIndex(topics []models.Topic) map[string]models.Topic {
	byID := make(map[string]models.Topic, len(topics))
	for _, t := range topics {
		byID[t.ID] = t
	}
	return byID
}

func moduleTitleFromTopics(topics []models.Topic) string {
	names := make([]string, 0, len(topics))
	for _, t := range topics {
		names = append(names, t.Name)
	}
	return utils.Truncate(strings.Join(names, " & "), 80)
}

func buildOutlinePrompt(topics []models.Topic) string {
	var b strings.Builder
	b.WriteString(`Group the topics below into a coherent module outline in teaching order, and write the program overview.
Return JSON: {"program": {"title", "description", "objectives" (3-5 strings)}, "modules": [{"title", "objectives", "key_points", "topic_ids"}]}.
Reference topics by their id. Every topic belongs to exactly one module.

TOPICS:
`)
	for _, t := range topics {
		fmt.Fprintf(&b, "[%s] %s (%d min, %s): %s; key concepts: %s\n",
			t.ID, t.Name, t.DurationMinutes, t.Importance, t.Description, strings.Join(t.KeyConcepts, ", "))
	}
	return b.String()
}
