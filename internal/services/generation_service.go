package services

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"github.com/trainforge/training-generator-backend/internal/models"
)

// GenerationService fans out slide and assessment generation across modules.
// Each task owns its module's subtree and merges it back under the session
// lock only after the whole task finished, so a failed or timed-out module
// never leaves half-written slides behind.
type GenerationService struct {
	slides      *SlideService
	assessments *AssessmentService
	events      *EventService

	maxConcurrent int
	taskTimeout   time.Duration
}

func NewGenerationService(slides *SlideService, assessments *AssessmentService, events *EventService, maxConcurrent int, taskTimeout time.Duration) *GenerationService {
	if maxConcurrent <= 0 {
		maxConcurrent = 4
	}
	if taskTimeout <= 0 {
		taskTimeout = 5 * time.Minute
	}
	return &GenerationService{
		slides:        slides,
		assessments:   assessments,
		events:        events,
		maxConcurrent: maxConcurrent,
		taskTimeout:   taskTimeout,
	}
}

// Run generates slides (and assessments when enabled) for every module of
// the session's program. Module failures are recorded by flagging the module
// for review; the run only returns an error when the parent context is
// canceled or no module succeeded.
func (s *GenerationService) Run(ctx context.Context, sess *models.Session) ([]string, error) {
	sess.Mu.Lock()
	doc := sess.Program.Document
	topics := append([]models.Topic(nil), sess.Program.Topics...)
	modules := append([]models.Module(nil), sess.Program.Modules...)
	opts := sess.Options
	sess.Mu.Unlock()

	if len(modules) == 0 {
		return nil, fmt.Errorf("%w: no modules to generate", models.ErrSlideGenerationFailed)
	}

	var g errgroup.Group
	g.SetLimit(s.maxConcurrent)

	failed := make([]string, 0)
	var failedMu sync.Mutex
	recordFailure := func(moduleID string) {
		failedMu.Lock()
		failed = append(failed, moduleID)
		failedMu.Unlock()
	}

	for _, module := range modules {
		module := module
		g.Go(func() error {
			if ctx.Err() != nil {
				recordFailure(module.ID)
				return nil
			}
			s.events.Publish(sess.ID, EventModuleStarted, module.ID, module.Title)

			taskCtx, cancel := context.WithTimeout(ctx, s.taskTimeout)
			defer cancel()

			if err := s.generateModule(taskCtx, sess, doc, topics, module, opts); err != nil {
				logrus.Errorf("Module %q generation failed: %v", module.Title, err)
				s.flagModule(sess, module.ID)
				recordFailure(module.ID)
				s.events.Publish(sess.ID, EventModuleFailed, module.ID, err.Error())
				return nil
			}
			s.events.Publish(sess.ID, EventModuleCompleted, module.ID, module.Title)
			return nil
		})
	}
	g.Wait()

	if err := ctx.Err(); err != nil {
		return failed, fmt.Errorf("generation canceled: %w", err)
	}
	if len(failed) == len(modules) {
		return failed, fmt.Errorf("%w: all %d modules failed", models.ErrSlideGenerationFailed, len(modules))
	}
	s.events.Publish(sess.ID, EventRunCompleted, "", fmt.Sprintf("%d of %d modules succeeded", len(modules)-len(failed), len(modules)))
	return failed, nil
}

func (s *GenerationService) generateModule(ctx context.Context, sess *models.Session, doc *models.ExtractedDocument, topics []models.Topic, module models.Module, opts models.SessionOptions) error {
	slides, err := s.slides.GenerateSlides(ctx, module, topics, doc)
	if err != nil {
		return err
	}

	var questions []models.Question
	if opts.IncludeAssessments {
		questions, err = s.assessments.GenerateAssessments(ctx, doc, module, topics, opts.QuestionsPerModule)
		if err != nil {
			return err
		}
	}

	// Merge the finished subtree atomically.
	sess.Mu.Lock()
	defer sess.Mu.Unlock()
	sess.Program.SetModuleSlides(module.ID, slides)
	if opts.IncludeAssessments {
		sess.Program.SetModuleQuestions(module.ID, questions)
	}
	return nil
}

func (s *GenerationService) flagModule(sess *models.Session, moduleID string) {
	sess.Mu.Lock()
	defer sess.Mu.Unlock()
	for i := range sess.Program.Modules {
		if sess.Program.Modules[i].ID == moduleID {
			sess.Program.Modules[i].NeedsReview = true
			return
		}
	}
}
