package services

import (
	"archive/zip"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"github.com/trainforge/training-generator-backend/internal/models"
)

func assembledProgram() *models.ProgramModel {
	program := models.NewProgramModel()
	program.Document = sampleDoc()
	program.Topics = sampleTopics()
	program.Meta = models.ProgramMeta{
		Title:       "Fire Safety",
		Description: "Workplace fire safety training",
		Objectives:  []string{"evacuate", "extinguish"},
		Duration:    "2 hours",
		Template:    "corporate",
	}
	program.Modules = []models.Module{
		{ID: "m1", Title: "Getting Out", Objectives: []string{"evacuate"}, KeyPoints: []string{"routes"}, TopicIDs: []string{"t1"}},
		{ID: "m2", Title: "Fighting Fires", Objectives: []string{"extinguish"}, KeyPoints: []string{"classes"}, TopicIDs: []string{"t2", "t3"}},
	}
	program.SetModuleSlides("m1", []models.Slide{
		{Kind: models.SlideTitle, Headline: "Getting Out", Bullets: []string{"evacuate"}, TeachingNotes: "welcome"},
		{Kind: models.SlideContent, Headline: "Routes", Bullets: []string{"keep clear"}, TeachingNotes: "explain the routes"},
		{Kind: models.SlideSummary, Headline: "Summary: Getting Out", Bullets: []string{"routes"}, TeachingNotes: "recap"},
	})
	program.SetModuleQuestions("m1", []models.Question{
		{
			Kind:           models.QuestionMultipleChoice,
			Prompt:         "Which routes must stay clear?",
			Options:        []string{"Evacuation routes", "Scenic routes"},
			CorrectAnswer:  "Evacuation routes",
			Explanation:    "Stated in the source.",
			SourceBlockIDs: map[string]struct{}{"b1": {}},
		},
	})
	program.SetModuleQuestions("m2", []models.Question{
		{
			Kind:           models.QuestionShortAnswer,
			Prompt:         "How often are alarms tested?",
			MarkingPoints:  []string{"monthly"},
			SampleAnswer:   "Monthly",
			CorrectAnswer:  "Monthly",
			SourceBlockIDs: map[string]struct{}{"b3": {}},
		},
	})
	return program
}

func TestAssembleWritesAllArtifacts(t *testing.T) {
	svc := NewAssemblerService(t.TempDir())
	program := assembledProgram()

	artifacts, err := svc.Assemble("sess-1", program)
	require.NoError(t, err)
	require.Len(t, artifacts, 4)

	byName := map[string]models.Artifact{}
	for _, a := range artifacts {
		byName[a.Name] = a
		info, err := os.Stat(a.Path)
		require.NoError(t, err, a.Name)
		assert.Equal(t, info.Size(), a.SizeBytes, a.Name)
		assert.Positive(t, a.SizeBytes, a.Name)
	}
	assert.Equal(t, ArtifactDeck, byName["deck.json"].Kind)
	assert.Equal(t, ArtifactTrainerGuide, byName["trainer_guide.json"].Kind)
	assert.Equal(t, ArtifactAssessmentPack, byName["assessment_pack.xlsx"].Kind)
	assert.Equal(t, ArtifactArchive, byName["training_package.zip"].Kind)
}

func TestAssembleDeckContents(t *testing.T) {
	dir := t.TempDir()
	svc := NewAssemblerService(dir)
	_, err := svc.Assemble("sess-1", assembledProgram())
	require.NoError(t, err)

	data, err := os.ReadFile(filepath.Join(dir, "sess-1", "deck.json"))
	require.NoError(t, err)

	var deck struct {
		Title   string `json:"title"`
		Modules []struct {
			Title  string `json:"title"`
			Slides []struct {
				Position int    `json:"position"`
				Kind     string `json:"kind"`
				Headline string `json:"headline"`
			} `json:"slides"`
		} `json:"modules"`
	}
	require.NoError(t, json.Unmarshal(data, &deck))
	assert.Equal(t, "Fire Safety", deck.Title)
	require.Len(t, deck.Modules, 2)
	require.Len(t, deck.Modules[0].Slides, 3)
	assert.Equal(t, "title", deck.Modules[0].Slides[0].Kind)
	assert.Equal(t, "Routes", deck.Modules[0].Slides[1].Headline)
	assert.Empty(t, deck.Modules[1].Slides)
}

func TestAssembleTrainerGuideDurations(t *testing.T) {
	dir := t.TempDir()
	svc := NewAssemblerService(dir)
	_, err := svc.Assemble("sess-1", assembledProgram())
	require.NoError(t, err)

	data, err := os.ReadFile(filepath.Join(dir, "sess-1", "trainer_guide.json"))
	require.NoError(t, err)

	var guide struct {
		Modules []struct {
			Title           string `json:"title"`
			DurationMinutes int    `json:"duration_minutes"`
		} `json:"modules"`
	}
	require.NoError(t, json.Unmarshal(data, &guide))
	require.Len(t, guide.Modules, 2)
	assert.Equal(t, 60, guide.Modules[0].DurationMinutes)
	assert.Equal(t, 75, guide.Modules[1].DurationMinutes)
}

func TestAssembleAssessmentPack(t *testing.T) {
	dir := t.TempDir()
	svc := NewAssemblerService(dir)
	_, err := svc.Assemble("sess-1", assembledProgram())
	require.NoError(t, err)

	f, err := excelize.OpenFile(filepath.Join(dir, "sess-1", "assessment_pack.xlsx"))
	require.NoError(t, err)
	defer f.Close()

	sheets := f.GetSheetList()
	assert.Contains(t, sheets, "1. Getting Out")
	assert.Contains(t, sheets, "2. Fighting Fires")
	assert.Contains(t, sheets, "Answer Key")

	prompt, err := f.GetCellValue("1. Getting Out", "C2")
	require.NoError(t, err)
	assert.Equal(t, "Which routes must stay clear?", prompt)

	answer, err := f.GetCellValue("Answer Key", "D3")
	require.NoError(t, err)
	assert.Equal(t, "Monthly", answer)
}

func TestAssembleSkipsPackWithoutQuestions(t *testing.T) {
	svc := NewAssemblerService(t.TempDir())
	program := assembledProgram()
	program.Questions = nil

	artifacts, err := svc.Assemble("sess-1", program)
	require.NoError(t, err)
	require.Len(t, artifacts, 3)
	for _, a := range artifacts {
		assert.NotEqual(t, ArtifactAssessmentPack, a.Kind)
	}
}

func TestAssembleArchiveBundlesArtifacts(t *testing.T) {
	dir := t.TempDir()
	svc := NewAssemblerService(dir)
	_, err := svc.Assemble("sess-1", assembledProgram())
	require.NoError(t, err)

	zr, err := zip.OpenReader(filepath.Join(dir, "sess-1", "training_package.zip"))
	require.NoError(t, err)
	defer zr.Close()

	names := make([]string, 0, len(zr.File))
	for _, zf := range zr.File {
		names = append(names, zf.Name)
	}
	assert.ElementsMatch(t, []string{"deck.json", "trainer_guide.json", "assessment_pack.xlsx"}, names)
}
