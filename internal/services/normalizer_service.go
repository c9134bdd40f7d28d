package services

import (
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/trainforge/training-generator-backend/internal/extract"
	"github.com/trainforge/training-generator-backend/internal/models"
)

// NormalizerService turns raw extraction units into the format-independent
// block representation every downstream stage consumes. Pure transform: same
// input yields the same blocks in the same order, IDs aside.
type NormalizerService struct{}

func NewNormalizerService() *NormalizerService {
	return &NormalizerService{}
}

var bulletPrefixRe = regexp.MustCompile(`^\s*(?:[-*•‣◦]|\d{1,3}[.)]|[a-zA-Z][.)])\s+`)

func (s *NormalizerService) Normalize(raw *extract.RawExtraction) (*models.ExtractedDocument, error) {
	if raw == nil || !models.IsSupportedFormat(raw.Format) {
		format := ""
		if raw != nil {
			format = raw.Format
		}
		return nil, fmt.Errorf("%w: %q", models.ErrUnsupportedFormat, format)
	}

	doc := &models.ExtractedDocument{
		ID:          uuid.New().String(),
		Filename:    raw.Filename,
		Format:      raw.Format,
		ProcessedAt: time.Now().UTC(),
	}

	for _, unit := range raw.Units {
		text := strings.TrimSpace(unit.Text)
		if text == "" {
			continue
		}
		switch unit.Kind {
		case extract.UnitTable:
			doc.Blocks = append(doc.Blocks, newBlock(models.BlockTable, unit.Locator, text))
		case extract.UnitSlideText:
			doc.Blocks = append(doc.Blocks, newBlock(models.BlockSlideText, unit.Locator, text))
		default:
			doc.Blocks = append(doc.Blocks, splitTextUnit(unit.Locator, text)...)
		}
	}

	if len(doc.Blocks) == 0 {
		return nil, fmt.Errorf("%w: %s", models.ErrEmptyDocument, raw.Filename)
	}

	for _, b := range doc.Blocks {
		doc.WordCount += len(strings.Fields(b.Text))
		if b.SourceLocator > doc.PageCount {
			doc.PageCount = b.SourceLocator
		}
	}

	logrus.Infof("Normalized %s: %d blocks, %d words, %d pages", raw.Filename, len(doc.Blocks), doc.WordCount, doc.PageCount)
	return doc, nil
}

// splitTextUnit separates bullet lines from running prose inside one text
// unit. Consecutive non-bullet lines rejoin into a single paragraph block.
// Bullet lines keep their marker so a second normalization pass classifies
// them the same way.
func splitTextUnit(locator int, text string) []models.ContentBlock {
	var blocks []models.ContentBlock
	var prose []string

	flushProse := func() {
		if len(prose) == 0 {
			return
		}
		joined := strings.TrimSpace(strings.Join(prose, " "))
		prose = prose[:0]
		if joined != "" {
			blocks = append(blocks, newBlock(models.BlockParagraph, locator, joined))
		}
	}

	for _, line := range strings.Split(text, "\n") {
		trimmed := strings.TrimSpace(line)
		if trimmed == "" {
			flushProse()
			continue
		}
		if bulletPrefixRe.MatchString(trimmed) {
			flushProse()
			blocks = append(blocks, newBlock(models.BlockBullet, locator, trimmed))
			continue
		}
		prose = append(prose, trimmed)
	}
	flushProse()
	return blocks
}

func newBlock(kind models.BlockKind, locator int, text string) models.ContentBlock {
	return models.ContentBlock{
		ID:            uuid.New().String(),
		Kind:          kind,
		SourceLocator: locator,
		Text:          text,
	}
}
