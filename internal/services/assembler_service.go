package services

import (
	"archive/zip"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/xuri/excelize/v2"

	"github.com/trainforge/training-generator-backend/internal/models"
	"github.com/trainforge/training-generator-backend/internal/utils"
)

// Artifact kinds produced by Assemble.
const (
	ArtifactDeck           = "deck"
	ArtifactTrainerGuide   = "trainer_guide"
	ArtifactAssessmentPack = "assessment_pack"
	ArtifactArchive        = "archive"
)

// AssemblerService turns a validated program model into the deliverable
// files. It reads the model only; the caller holds the session lock and has
// already run Validate.
type AssemblerService struct {
	baseDir string
}

func NewAssemblerService(baseDir string) *AssemblerService {
	if _, err := os.Stat(baseDir); os.IsNotExist(err) {
		os.MkdirAll(baseDir, 0755)
	}
	return &AssemblerService{baseDir: baseDir}
}

// Assemble writes deck.json, trainer_guide.json, assessment_pack.xlsx (when
// the program carries questions) and the bundling training_package.zip into
// the session's artifact directory.
func (s *AssemblerService) Assemble(sessionID string, program *models.ProgramModel) ([]models.Artifact, error) {
	dir := filepath.Join(s.baseDir, sessionID)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create artifact dir: %w", err)
	}

	var artifacts []models.Artifact

	deckPath := filepath.Join(dir, "deck.json")
	if err := writeJSONFile(deckPath, buildDeck(program)); err != nil {
		return nil, fmt.Errorf("failed to write deck: %w", err)
	}
	artifacts = append(artifacts, newArtifact("deck.json", ArtifactDeck, deckPath))

	guidePath := filepath.Join(dir, "trainer_guide.json")
	if err := writeJSONFile(guidePath, buildTrainerGuide(program)); err != nil {
		return nil, fmt.Errorf("failed to write trainer guide: %w", err)
	}
	artifacts = append(artifacts, newArtifact("trainer_guide.json", ArtifactTrainerGuide, guidePath))

	if len(program.Questions) > 0 {
		packPath := filepath.Join(dir, "assessment_pack.xlsx")
		if err := writeAssessmentPack(packPath, program); err != nil {
			return nil, fmt.Errorf("failed to write assessment pack: %w", err)
		}
		artifacts = append(artifacts, newArtifact("assessment_pack.xlsx", ArtifactAssessmentPack, packPath))
	}

	zipPath := filepath.Join(dir, "training_package.zip")
	if err := writeArchive(zipPath, artifacts); err != nil {
		return nil, fmt.Errorf("failed to write archive: %w", err)
	}
	artifacts = append(artifacts, newArtifact("training_package.zip", ArtifactArchive, zipPath))

	logrus.Infof("Assembled %d artifacts for session %s", len(artifacts), sessionID)
	return artifacts, nil
}

func newArtifact(name, kind, path string) models.Artifact {
	a := models.Artifact{Name: name, Kind: kind, Path: path, CreatedAt: time.Now().UTC()}
	if info, err := os.Stat(path); err == nil {
		a.SizeBytes = info.Size()
	}
	return a
}

func writeJSONFile(path string, v interface{}) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0644)
}

// deck.json is the input contract of the downstream PPTX renderer.

type deckFile struct {
	Title    string       `json:"title"`
	Template string       `json:"template"`
	Duration string       `json:"duration"`
	Modules  []deckModule `json:"modules"`
}

type deckModule struct {
	ID     string      `json:"id"`
	Title  string      `json:"title"`
	Slides []deckSlide `json:"slides"`
}

type deckSlide struct {
	Position    int      `json:"position"`
	Kind        string   `json:"kind"`
	Headline    string   `json:"headline"`
	Bullets     []string `json:"bullets"`
	NeedsReview bool     `json:"needs_review,omitempty"`
}

func buildDeck(program *models.ProgramModel) deckFile {
	deck := deckFile{
		Title:    program.Meta.Title,
		Template: program.Meta.Template,
		Duration: program.Meta.Duration,
	}
	for _, m := range program.Modules {
		dm := deckModule{ID: m.ID, Title: m.Title}
		for _, s := range program.SlidesByModule[m.ID] {
			dm.Slides = append(dm.Slides, deckSlide{
				Position:    s.Position,
				Kind:        string(s.Kind),
				Headline:    s.Headline,
				Bullets:     s.Bullets,
				NeedsReview: s.NeedsReview,
			})
		}
		deck.Modules = append(deck.Modules, dm)
	}
	return deck
}

type trainerGuide struct {
	Title       string        `json:"title"`
	Description string        `json:"description"`
	Objectives  []string      `json:"objectives"`
	Duration    string        `json:"duration"`
	Modules     []guideModule `json:"modules"`
}

type guideModule struct {
	Title           string       `json:"title"`
	Objectives      []string     `json:"objectives"`
	KeyPoints       []string     `json:"key_points"`
	DurationMinutes int          `json:"duration_minutes"`
	NeedsReview     bool         `json:"needs_review,omitempty"`
	Slides          []guideSlide `json:"slides"`
}

type guideSlide struct {
	Position      int    `json:"position"`
	Headline      string `json:"headline"`
	TeachingNotes string `json:"teaching_notes"`
}

func buildTrainerGuide(program *models.ProgramModel) trainerGuide {
	guide := trainerGuide{
		Title:       program.Meta.Title,
		Description: program.Meta.Description,
		Objectives:  program.Meta.Objectives,
		Duration:    program.Meta.Duration,
	}
	for _, m := range program.Modules {
		gm := guideModule{
			Title:           m.Title,
			Objectives:      m.Objectives,
			KeyPoints:       m.KeyPoints,
			DurationMinutes: program.ModuleDuration(m.ID),
			NeedsReview:     m.NeedsReview,
		}
		for _, s := range program.SlidesByModule[m.ID] {
			gm.Slides = append(gm.Slides, guideSlide{
				Position:      s.Position,
				Headline:      s.Headline,
				TeachingNotes: s.TeachingNotes,
			})
		}
		guide.Modules = append(guide.Modules, gm)
	}
	return guide
}

// writeAssessmentPack writes one question sheet per module plus a combined
// answer-key sheet.
func writeAssessmentPack(path string, program *models.ProgramModel) error {
	f := excelize.NewFile()
	defer f.Close()

	headerStyle, _ := f.NewStyle(&excelize.Style{
		Font: &excelize.Font{Bold: true},
		Fill: excelize.Fill{Type: "pattern", Color: []string{"D9E1F2"}, Pattern: 1},
	})

	questionColumns := []string{"#", "kind", "prompt", "options", "marking_points", "needs_review"}
	answerColumns := []string{"module", "#", "prompt", "correct_answer", "sample_answer", "explanation"}

	answerSheet := "Answer Key"
	sheetNames := map[string]string{}
	used := map[string]struct{}{answerSheet: {}}

	for i, m := range program.Modules {
		name := sheetName(fmt.Sprintf("%d. %s", i+1, m.Title), used)
		sheetNames[m.ID] = name
		if i == 0 {
			if err := f.SetSheetName(f.GetSheetName(0), name); err != nil {
				return err
			}
		} else {
			if _, err := f.NewSheet(name); err != nil {
				return err
			}
		}
		for c, col := range questionColumns {
			f.SetCellValue(name, fmt.Sprintf("%s1", columnToLetter(c+1)), col)
		}
		f.SetCellStyle(name, "A1", columnToLetter(len(questionColumns))+"1", headerStyle)
		f.SetColWidth(name, "C", "C", 60)
		f.SetColWidth(name, "D", "E", 40)
	}

	if _, err := f.NewSheet(answerSheet); err != nil {
		return err
	}
	for c, col := range answerColumns {
		f.SetCellValue(answerSheet, fmt.Sprintf("%s1", columnToLetter(c+1)), col)
	}
	f.SetCellStyle(answerSheet, "A1", columnToLetter(len(answerColumns))+"1", headerStyle)
	f.SetColWidth(answerSheet, "C", "F", 50)

	answerRow := 2
	for _, m := range program.Modules {
		name := sheetNames[m.ID]
		row := 2
		num := 0
		for _, q := range program.Questions {
			if q.ModuleID != m.ID {
				continue
			}
			num++
			f.SetCellValue(name, fmt.Sprintf("A%d", row), num)
			f.SetCellValue(name, fmt.Sprintf("B%d", row), string(q.Kind))
			f.SetCellValue(name, fmt.Sprintf("C%d", row), q.Prompt)
			f.SetCellValue(name, fmt.Sprintf("D%d", row), joinLines(q.Options))
			f.SetCellValue(name, fmt.Sprintf("E%d", row), joinLines(q.MarkingPoints))
			f.SetCellValue(name, fmt.Sprintf("F%d", row), q.NeedsReview)
			row++

			f.SetCellValue(answerSheet, fmt.Sprintf("A%d", answerRow), m.Title)
			f.SetCellValue(answerSheet, fmt.Sprintf("B%d", answerRow), num)
			f.SetCellValue(answerSheet, fmt.Sprintf("C%d", answerRow), q.Prompt)
			f.SetCellValue(answerSheet, fmt.Sprintf("D%d", answerRow), q.CorrectAnswer)
			f.SetCellValue(answerSheet, fmt.Sprintf("E%d", answerRow), q.SampleAnswer)
			f.SetCellValue(answerSheet, fmt.Sprintf("F%d", answerRow), q.Explanation)
			answerRow++
		}
	}

	return f.SaveAs(path)
}

// sheetName clamps a title to Excel's 31-character sheet name limit, strips
// characters Excel rejects in sheet names, and deduplicates collisions.
func sheetName(title string, used map[string]struct{}) string {
	clean := strings.Map(func(r rune) rune {
		switch r {
		case ':', '\\', '/', '?', '*', '[', ']':
			return ' '
		}
		return r
	}, title)
	name := utils.Truncate(strings.TrimSpace(clean), 28)
	candidate := name
	for i := 2; ; i++ {
		if _, taken := used[candidate]; !taken {
			used[candidate] = struct{}{}
			return candidate
		}
		candidate = fmt.Sprintf("%s %d", name, i)
	}
}

func joinLines(items []string) string {
	out := ""
	for i, item := range items {
		if i > 0 {
			out += "\n"
		}
		out += item
	}
	return out
}

func columnToLetter(col int) string {
	letter := ""
	for col > 0 {
		col--
		letter = string(rune('A'+col%26)) + letter
		col /= 26
	}
	return letter
}

func writeArchive(path string, artifacts []models.Artifact) error {
	out, err := os.Create(path)
	if err != nil {
		return err
	}
	defer out.Close()

	zw := zip.NewWriter(out)
	for _, a := range artifacts {
		src, err := os.Open(a.Path)
		if err != nil {
			zw.Close()
			return err
		}
		w, err := zw.Create(a.Name)
		if err != nil {
			src.Close()
			zw.Close()
			return err
		}
		if _, err := io.Copy(w, src); err != nil {
			src.Close()
			zw.Close()
			return err
		}
		src.Close()
	}
	return zw.Close()
}
