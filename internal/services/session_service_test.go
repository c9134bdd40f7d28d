package services

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trainforge/training-generator-backend/internal/ai"
	"github.com/trainforge/training-generator-backend/internal/extract"
	"github.com/trainforge/training-generator-backend/internal/models"
)

func newTestSessionService(t *testing.T, provider ai.Provider) *SessionService {
	t.Helper()
	slides := NewSlideService(provider)
	assessments := NewAssessmentService(provider)
	generation := NewGenerationService(slides, assessments, nil, 2, time.Minute)
	assembler := NewAssemblerService(t.TempDir())
	return NewSessionService(
		time.Hour,
		extract.NewRegistry(nil),
		NewNormalizerService(),
		NewTopicService(provider),
		NewOutlineService(provider, 120, 4),
		generation,
		assembler,
	)
}

const sessionDocText = `Fire evacuation routes must stay clear at all times.

Extinguisher classes cover different fire types and staff must know them.

Alarm systems are tested monthly by the facilities team.`

// primeProvider loads responses for a full pipeline run. Block ids are not
// known up front, so topic grounding relies on term-match re-derivation.
func primeProvider(provider *fakeProvider) {
	provider.respond(ai.PromptTopicExtraction, `{"topics": [
		{"name": "Evacuation", "description": "Routes", "duration_minutes": 90, "importance": "high", "key_concepts": ["evacuation"], "source_block_ids": []},
		{"name": "Extinguishers", "description": "Classes", "duration_minutes": 45, "importance": "medium", "key_concepts": ["extinguisher"], "source_block_ids": []}
	]}`)
	provider.respond(ai.PromptOutlineGrouping, `{"program": {"title": "Fire Safety", "description": "D", "objectives": ["o1"]}, "modules": []}`)
	provider.respond(ai.PromptSlideContent, fmt.Sprintf(`{"slides": [
		{"headline": "Routes", "bullets": ["a", "b"], "teaching_notes": %q},
		{"headline": "Classes", "bullets": ["c", "d"], "teaching_notes": %q}
	]}`, longNotes(), longNotes()))
}

func createAnalyzedSession(t *testing.T, svc *SessionService, provider *fakeProvider) *models.Session {
	t.Helper()
	primeProvider(provider)
	sess, err := svc.Create(models.CreateSessionRequest{Duration: "1 hour", IncludeAssessments: boolPtr(false)})
	require.NoError(t, err)

	_, err = svc.Upload(context.Background(), sess.ID, "safety.txt", []byte(sessionDocText))
	require.NoError(t, err)

	_, err = svc.Analyze(context.Background(), sess.ID)
	require.NoError(t, err)
	return sess
}

func boolPtr(b bool) *bool { return &b }

func TestSessionLifecycle(t *testing.T) {
	provider := newFakeProvider()
	svc := newTestSessionService(t, provider)
	sess := createAnalyzedSession(t, svc, provider)

	resp := svc.ToResponse(sess)
	assert.Equal(t, string(models.PhaseEdit), resp.Phase)
	require.NotNil(t, resp.Document)
	assert.NotEmpty(t, resp.Topics)
	assert.NotEmpty(t, resp.Modules)

	_, err := svc.Generate(context.Background(), sess.ID)
	require.NoError(t, err)

	got, err := svc.Get(sess.ID)
	require.NoError(t, err)
	assert.Equal(t, models.PhaseComplete, got.Phase)
	assert.NotEmpty(t, got.Artifacts)

	for _, name := range []string{"deck.json", "trainer_guide.json", "training_package.zip"} {
		a, err := svc.Artifact(sess.ID, name)
		require.NoError(t, err, name)
		assert.Positive(t, a.SizeBytes, name)
	}
}

func TestSessionPhaseGates(t *testing.T) {
	provider := newFakeProvider()
	svc := newTestSessionService(t, provider)
	sess, err := svc.Create(models.CreateSessionRequest{})
	require.NoError(t, err)

	// Analyze before upload is rejected.
	_, err = svc.Analyze(context.Background(), sess.ID)
	assert.ErrorIs(t, err, models.ErrPhaseNotReady)

	// Edits before analyze are rejected.
	_, err = svc.ApplyEdit(sess.ID, models.ApplyEditRequest{EntityID: "x", Field: "title", Value: "y"})
	assert.ErrorIs(t, err, models.ErrPhaseNotReady)

	// Generate before edit phase is rejected.
	_, err = svc.Generate(context.Background(), sess.ID)
	assert.ErrorIs(t, err, models.ErrPhaseNotReady)

	// Unknown session.
	_, err = svc.Get("missing")
	assert.ErrorIs(t, err, models.ErrSessionNotFound)
}

func TestSessionUploadValidation(t *testing.T) {
	provider := newFakeProvider()
	svc := newTestSessionService(t, provider)
	sess, err := svc.Create(models.CreateSessionRequest{})
	require.NoError(t, err)

	_, err = svc.Upload(context.Background(), sess.ID, "image.png", []byte("x"))
	assert.ErrorIs(t, err, models.ErrUnsupportedFormat)

	// No pdf collaborator configured in tests.
	_, err = svc.Upload(context.Background(), sess.ID, "doc.pdf", []byte("%PDF"))
	assert.ErrorIs(t, err, models.ErrUnsupportedFormat)

	big := make([]byte, extract.MaxFileSizeBytes+1)
	_, err = svc.Upload(context.Background(), sess.ID, "big.txt", big)
	assert.ErrorIs(t, err, models.ErrFileTooLarge)

	// Double upload is rejected once the phase advanced.
	_, err = svc.Upload(context.Background(), sess.ID, "ok.txt", []byte("some words here"))
	require.NoError(t, err)
	_, err = svc.Upload(context.Background(), sess.ID, "again.txt", []byte("more words"))
	assert.ErrorIs(t, err, models.ErrPhaseNotReady)
}

func TestSessionEditsAndRegenerate(t *testing.T) {
	provider := newFakeProvider()
	svc := newTestSessionService(t, provider)
	sess := createAnalyzedSession(t, svc, provider)

	moduleID := sess.Program.Modules[0].ID
	_, err := svc.ApplyEdit(sess.ID, models.ApplyEditRequest{EntityID: moduleID, Field: "title", Value: "My Module"})
	require.NoError(t, err)

	// Regenerating the outline keeps the edited title.
	provider.respond(ai.PromptOutlineGrouping, `{"program": {"title": "Regenerated"}, "modules": []}`)
	_, err = svc.Regenerate(context.Background(), sess.ID, StageOutline)
	require.NoError(t, err)
	assert.Equal(t, "My Module", sess.Program.Modules[0].Title)
	assert.Equal(t, moduleID, sess.Program.Modules[0].ID)

	_, err = svc.Regenerate(context.Background(), sess.ID, "bogus")
	assert.ErrorIs(t, err, models.ErrUnknownField)
}

func TestSessionCreateValidatesTemplate(t *testing.T) {
	provider := newFakeProvider()
	svc := newTestSessionService(t, provider)

	_, err := svc.Create(models.CreateSessionRequest{Template: "Vaporwave - Nostalgic"})
	assert.ErrorIs(t, err, models.ErrUnknownField)

	sess, err := svc.Create(models.CreateSessionRequest{Template: models.TemplateStyles[0]})
	require.NoError(t, err)
	assert.Equal(t, models.TemplateStyles[0], sess.Options.Template)
}

func TestSessionResponseIncludesQuestions(t *testing.T) {
	provider := newFakeProvider()
	svc := newTestSessionService(t, provider)
	sess := createAnalyzedSession(t, svc, provider)

	moduleID := sess.Program.Modules[0].ID
	sess.Mu.Lock()
	sess.Program.SetModuleQuestions(moduleID, []models.Question{{
		Kind:           models.QuestionShortAnswer,
		Prompt:         "Name the evacuation routes",
		CorrectAnswer:  "the marked exits",
		SampleAnswer:   "the marked exits",
		SourceBlockIDs: map[string]struct{}{sess.Program.Document.Blocks[0].ID: {}},
	}})
	sess.Mu.Unlock()

	resp := svc.ToResponse(sess)
	require.NotEmpty(t, resp.Modules)
	var found *models.ModuleResponse
	for i := range resp.Modules {
		if resp.Modules[i].ID == moduleID {
			found = &resp.Modules[i]
		}
	}
	require.NotNil(t, found)
	require.Len(t, found.Questions, 1)
	assert.Equal(t, "Name the evacuation routes", found.Questions[0].Prompt)
	assert.Equal(t, string(models.QuestionShortAnswer), found.Questions[0].Kind)
}

func TestSessionReopensForSlideEdits(t *testing.T) {
	provider := newFakeProvider()
	svc := newTestSessionService(t, provider)
	sess := createAnalyzedSession(t, svc, provider)

	_, err := svc.Generate(context.Background(), sess.ID)
	require.NoError(t, err)

	moduleID := sess.Program.Modules[0].ID
	slideID := sess.Program.SlidesByModule[moduleID][1].ID
	_, err = svc.ApplyEdit(sess.ID, models.ApplyEditRequest{EntityID: slideID, Field: "headline", Value: "Edited Headline"})
	require.NoError(t, err)

	// Editing a completed session reopens it and discards stale artifacts.
	got, err := svc.Get(sess.ID)
	require.NoError(t, err)
	assert.Equal(t, models.PhaseEdit, got.Phase)
	assert.Empty(t, got.Artifacts)

	// Regenerating rebuilds the artifacts and keeps the edited headline.
	_, err = svc.Generate(context.Background(), sess.ID)
	require.NoError(t, err)
	assert.Equal(t, models.PhaseComplete, got.Phase)
	assert.NotEmpty(t, got.Artifacts)
	assert.Equal(t, "Edited Headline", got.Program.SlidesByModule[moduleID][1].Headline)
}

func TestSessionReorderAndRemove(t *testing.T) {
	provider := newFakeProvider()
	svc := newTestSessionService(t, provider)
	sess := createAnalyzedSession(t, svc, provider)
	require.GreaterOrEqual(t, len(sess.Program.Modules), 2)

	first := sess.Program.Modules[0].ID
	second := sess.Program.Modules[1].ID

	_, err := svc.Reorder(sess.ID, []string{second, first})
	require.NoError(t, err)
	assert.Equal(t, second, sess.Program.Modules[0].ID)

	_, err = svc.RemoveModule(sess.ID, second)
	require.NoError(t, err)
	for _, m := range sess.Program.Modules {
		assert.NotEqual(t, second, m.ID)
	}
}
