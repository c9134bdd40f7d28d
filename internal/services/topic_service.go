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

const (
	// Topic durations are clamped to a teachable range.
	MinTopicDurationMinutes     = 20
	MaxTopicDurationMinutes     = 90
	DefaultTopicDurationMinutes = 45

	DefaultMaxTopics = 8
)

// TopicService extracts coherent subject-matter topics from a normalized
// document via the AI provider.
type TopicService struct {
	provider ai.Provider
}

func NewTopicService(provider ai.Provider) *TopicService {
	return &TopicService{provider: provider}
}

const topicSystemPrompt = `You are an expert instructional designer. You analyze source material and extract the distinct topics a training program should teach. Respond with JSON only.`

type topicEnvelope struct {
	Topics []topicCandidate `json:"topics"`
}

type topicCandidate struct {
	Name            string   `json:"name"`
	Description     string   `json:"description"`
	DurationMinutes int      `json:"duration_minutes"`
	Importance      string   `json:"importance"`
	KeyConcepts     []string `json:"key_concepts"`
	SourceBlockIDs  []string `json:"source_block_ids"`
}

// Analyze extracts at most maxTopics topics from the document. Individually
// malformed candidates are dropped; only a failed call or an unparseable
// envelope fails the whole analysis.
func (s *TopicService) Analyze(ctx context.Context, doc *models.ExtractedDocument, maxTopics int) ([]models.Topic, error) {
	if maxTopics <= 0 {
		maxTopics = DefaultMaxTopics
	}

	userPrompt := buildTopicPrompt(doc, maxTopics)
	rawResp, err := s.provider.GenerateJSON(ctx, ai.PromptTopicExtraction, topicSystemPrompt, userPrompt)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", models.ErrAnalysisFailed, err)
	}

	var envelope topicEnvelope
	if err := json.Unmarshal(rawResp, &envelope); err != nil {
		return nil, fmt.Errorf("%w: unparseable response: %v", models.ErrAnalysisFailed, err)
	}

	byName := make(map[string]int)
	var topics []models.Topic
	for _, cand := range envelope.Topics {
		topic, ok := s.buildTopic(doc, cand)
		if !ok {
			logrus.Warnf("Dropping malformed topic candidate %q", cand.Name)
			continue
		}
		key := utils.NormalizeName(topic.Name)
		if idx, dup := byName[key]; dup {
			// Duplicate names collapse into whichever candidate cites more blocks.
			if len(topic.SourceBlockIDs) > len(topics[idx].SourceBlockIDs) {
				topic.ID = topics[idx].ID
				topics[idx] = topic
			}
			continue
		}
		byName[key] = len(topics)
		topics = append(topics, topic)
		if len(topics) >= maxTopics {
			break
		}
	}

	if len(topics) == 0 {
		return nil, fmt.Errorf("%w: no usable topics in response", models.ErrAnalysisFailed)
	}
	logrus.Infof("Topic analysis produced %d topics from %d candidates", len(topics), len(envelope.Topics))
	return topics, nil
}

func (s *TopicService) buildTopic(doc *models.ExtractedDocument, cand topicCandidate) (models.Topic, bool) {
	name := strings.TrimSpace(cand.Name)
	if name == "" {
		return models.Topic{}, false
	}

	importance := models.ImportanceMedium
	if models.ValidImportance(strings.ToLower(cand.Importance)) {
		importance = models.Importance(strings.ToLower(cand.Importance))
	}

	duration := cand.DurationMinutes
	if duration == 0 {
		duration = DefaultTopicDurationMinutes
	}
	if duration < MinTopicDurationMinutes {
		duration = MinTopicDurationMinutes
	}
	if duration > MaxTopicDurationMinutes {
		duration = MaxTopicDurationMinutes
	}

	grounding := make(map[string]struct{})
	for _, id := range cand.SourceBlockIDs {
		if doc.HasBlock(id) {
			grounding[id] = struct{}{}
		}
	}
	if len(grounding) == 0 {
		grounding = deriveGrounding(doc, name, cand.KeyConcepts)
	}
	if len(grounding) == 0 {
		return models.Topic{}, false
	}

	return models.Topic{
		ID:              uuid.New().String(),
		Name:            name,
		DurationMinutes: duration,
		Importance:      importance,
		KeyConcepts:     cand.KeyConcepts,
		Description:     strings.TrimSpace(cand.Description),
		SourceBlockIDs:  grounding,
	}, true
}

// deriveGrounding recovers block references for a topic whose cited ids did
// not match any document block, by matching topic terms against block text.
func deriveGrounding(doc *models.ExtractedDocument, name string, keyConcepts []string) map[string]struct{} {
	terms := append([]string{name}, keyConcepts...)
	grounding := make(map[string]struct{})
	for _, term := range terms {
		term = strings.ToLower(strings.TrimSpace(term))
		if len(term) < 3 {
			continue
		}
		for i := range doc.Blocks {
			if strings.Contains(strings.ToLower(doc.Blocks[i].Text), term) {
				grounding[doc.Blocks[i].ID] = struct{}{}
			}
		}
	}
	return grounding
}

func buildTopicPrompt(doc *models.ExtractedDocument, maxTopics int) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Extract at most %d training topics from the source blocks below.\n", maxTopics)
	b.WriteString(`Return JSON: {"topics": [{"name", "description", "duration_minutes", "importance" (low|medium|high), "key_concepts" (strings), "source_block_ids" (ids of blocks the topic is based on, required)}]}.`)
	b.WriteString("\nEvery topic must cite the block ids it is grounded in. Durations are minutes of teaching time.\n\nSOURCE BLOCKS:\n")
	for _, block := range doc.Blocks {
		fmt.Fprintf(&b, "[%s] (p.%d, %s) %s\n", block.ID, block.SourceLocator, block.Kind, block.Text)
	}
	return b.String()
}
