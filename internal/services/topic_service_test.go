package services

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trainforge/training-generator-backend/internal/ai"
	"github.com/trainforge/training-generator-backend/internal/models"
)

func sampleDoc() *models.ExtractedDocument {
	return &models.ExtractedDocument{
		ID:       "doc",
		Filename: "safety.txt",
		Format:   "txt",
		Blocks: []models.ContentBlock{
			{ID: "b1", Kind: models.BlockParagraph, SourceLocator: 1, Text: "Fire evacuation routes must stay clear at all times."},
			{ID: "b2", Kind: models.BlockParagraph, SourceLocator: 1, Text: "Extinguisher classes cover different fire types."},
			{ID: "b3", Kind: models.BlockParagraph, SourceLocator: 2, Text: "Alarm systems are tested monthly."},
		},
	}
}

func TestAnalyzeParsesAndClampsTopics(t *testing.T) {
	provider := newFakeProvider()
	provider.respond(ai.PromptTopicExtraction, `{"topics": [
		{"name": "Evacuation", "description": "Routes", "duration_minutes": 5, "importance": "high", "key_concepts": ["routes"], "source_block_ids": ["b1"]},
		{"name": "Extinguishers", "description": "Classes", "duration_minutes": 500, "importance": "bogus", "key_concepts": ["classes"], "source_block_ids": ["b2"]},
		{"name": "Alarms", "description": "Testing", "duration_minutes": 0, "importance": "low", "key_concepts": [], "source_block_ids": ["b3"]}
	]}`)

	topics, err := NewTopicService(provider).Analyze(context.Background(), sampleDoc(), 8)
	require.NoError(t, err)
	require.Len(t, topics, 3)

	assert.Equal(t, MinTopicDurationMinutes, topics[0].DurationMinutes)
	assert.Equal(t, models.ImportanceHigh, topics[0].Importance)
	assert.Equal(t, MaxTopicDurationMinutes, topics[1].DurationMinutes)
	// Unrecognized importance falls back to medium.
	assert.Equal(t, models.ImportanceMedium, topics[1].Importance)
	assert.Equal(t, DefaultTopicDurationMinutes, topics[2].DurationMinutes)
	for _, topic := range topics {
		assert.NotEmpty(t, topic.ID)
		assert.NotEmpty(t, topic.SourceBlockIDs)
	}
}

func TestAnalyzeDropsMalformedCandidates(t *testing.T) {
	provider := newFakeProvider()
	provider.respond(ai.PromptTopicExtraction, `{"topics": [
		{"name": "", "source_block_ids": ["b1"]},
		{"name": "Good Topic", "duration_minutes": 30, "importance": "medium", "source_block_ids": ["b2"]}
	]}`)

	topics, err := NewTopicService(provider).Analyze(context.Background(), sampleDoc(), 8)
	require.NoError(t, err)
	require.Len(t, topics, 1)
	assert.Equal(t, "Good Topic", topics[0].Name)
}

func TestAnalyzeDeduplicatesByNormalizedName(t *testing.T) {
	provider := newFakeProvider()
	provider.respond(ai.PromptTopicExtraction, `{"topics": [
		{"name": "Fire  Safety", "duration_minutes": 30, "importance": "high", "source_block_ids": ["b1"]},
		{"name": "fire safety", "duration_minutes": 40, "importance": "low", "source_block_ids": ["b1", "b2"]}
	]}`)

	topics, err := NewTopicService(provider).Analyze(context.Background(), sampleDoc(), 8)
	require.NoError(t, err)
	require.Len(t, topics, 1)
	// The duplicate with the larger grounding set wins.
	assert.Len(t, topics[0].SourceBlockIDs, 2)
}

func TestAnalyzeRederivesGrounding(t *testing.T) {
	provider := newFakeProvider()
	provider.respond(ai.PromptTopicExtraction, `{"topics": [
		{"name": "Evacuation", "duration_minutes": 30, "importance": "high", "key_concepts": ["extinguisher"], "source_block_ids": ["unknown-block"]},
		{"name": "Nowhere Topic", "duration_minutes": 30, "importance": "low", "key_concepts": ["zzz-not-in-doc"], "source_block_ids": ["also-unknown"]}
	]}`)

	topics, err := NewTopicService(provider).Analyze(context.Background(), sampleDoc(), 8)
	require.NoError(t, err)
	// First topic recovers grounding by term match; second stays empty and is dropped.
	require.Len(t, topics, 1)
	assert.Equal(t, "Evacuation", topics[0].Name)
	assert.NotEmpty(t, topics[0].SourceBlockIDs)
}

func TestAnalyzeCapsAtMaxTopics(t *testing.T) {
	items := ""
	for i := 0; i < 6; i++ {
		if i > 0 {
			items += ","
		}
		items += fmt.Sprintf(`{"name": "Topic %d", "duration_minutes": 30, "importance": "medium", "source_block_ids": ["b1"]}`, i)
	}
	provider := newFakeProvider()
	provider.respond(ai.PromptTopicExtraction, `{"topics": [`+items+`]}`)

	topics, err := NewTopicService(provider).Analyze(context.Background(), sampleDoc(), 3)
	require.NoError(t, err)
	assert.Len(t, topics, 3)
}

func TestAnalyzeFailures(t *testing.T) {
	provider := newFakeProvider()
	provider.fail(ai.PromptTopicExtraction, errors.New("boom"))
	_, err := NewTopicService(provider).Analyze(context.Background(), sampleDoc(), 8)
	assert.ErrorIs(t, err, models.ErrAnalysisFailed)

	provider = newFakeProvider()
	provider.respond(ai.PromptTopicExtraction, `not json at all`)
	_, err = NewTopicService(provider).Analyze(context.Background(), sampleDoc(), 8)
	assert.ErrorIs(t, err, models.ErrAnalysisFailed)

	provider = newFakeProvider()
	provider.respond(ai.PromptTopicExtraction, `{"topics": []}`)
	_, err = NewTopicService(provider).Analyze(context.Background(), sampleDoc(), 8)
	assert.ErrorIs(t, err, models.ErrAnalysisFailed)
}
