package services

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/patrickmn/go-cache"
	"github.com/sirupsen/logrus"

	"github.com/trainforge/training-generator-backend/internal/extract"
	"github.com/trainforge/training-generator-backend/internal/models"
)

// Regeneration stage scopes accepted by Regenerate.
const (
	StageTopics  = "topics"
	StageOutline = "outline"
)

// SessionService owns the session lifecycle and enforces the phase gates.
// Sessions live in an in-memory TTL store: one document, one program model,
// gone when the session expires.
type SessionService struct {
	store      *cache.Cache
	ttl        time.Duration
	registry   *extract.Registry
	normalizer *NormalizerService
	topics     *TopicService
	outline    *OutlineService
	generation *GenerationService
	assembler  *AssemblerService
}

func NewSessionService(
	ttl time.Duration,
	registry *extract.Registry,
	normalizer *NormalizerService,
	topics *TopicService,
	outline *OutlineService,
	generation *GenerationService,
	assembler *AssemblerService,
) *SessionService {
	if ttl <= 0 {
		ttl = 2 * time.Hour
	}
	return &SessionService{
		store:      cache.New(ttl, 10*time.Minute),
		ttl:        ttl,
		registry:   registry,
		normalizer: normalizer,
		topics:     topics,
		outline:    outline,
		generation: generation,
		assembler:  assembler,
	}
}

// Create starts a new session in the upload phase.
func (s *SessionService) Create(req models.CreateSessionRequest) (*models.Session, error) {
	if req.Template != "" && !models.ValidTemplate(req.Template) {
		return nil, fmt.Errorf("%w: unknown template %q", models.ErrUnknownField, req.Template)
	}
	includeAssessments := true
	if req.IncludeAssessments != nil {
		includeAssessments = *req.IncludeAssessments
	}
	questionsPerModule := req.QuestionsPerModule
	if questionsPerModule <= 0 {
		questionsPerModule = 2
	}

	now := time.Now().UTC()
	sess := &models.Session{
		ID:      uuid.New().String(),
		Phase:   models.PhaseUpload,
		Program: models.NewProgramModel(),
		Options: models.SessionOptions{
			Duration:           req.Duration,
			TargetModules:      req.TargetModules,
			TargetSlides:       req.TargetSlides,
			MaxTopics:          req.MaxTopics,
			Template:           req.Template,
			QuestionsPerModule: questionsPerModule,
			IncludeAssessments: includeAssessments,
		},
		CreatedAt: now,
		UpdatedAt: now,
	}
	s.store.Set(sess.ID, sess, s.ttl)
	logrus.Infof("Session %s created", sess.ID)
	return sess, nil
}

// Get fetches a session and slides its TTL forward.
func (s *SessionService) Get(id string) (*models.Session, error) {
	v, ok := s.store.Get(id)
	if !ok {
		return nil, fmt.Errorf("%w: %s", models.ErrSessionNotFound, id)
	}
	sess := v.(*models.Session)
	s.store.Set(id, sess, s.ttl)
	return sess, nil
}

// Upload runs extraction and normalization for the session's document and
// advances the session to the analyze phase.
func (s *SessionService) Upload(ctx context.Context, sessionID, filename string, data []byte) (*models.Session, error) {
	sess, err := s.Get(sessionID)
	if err != nil {
		return nil, err
	}
	sess.Mu.Lock()
	defer sess.Mu.Unlock()

	if sess.Phase != models.PhaseUpload {
		return nil, fmt.Errorf("%w: session is in phase %s", models.ErrPhaseNotReady, sess.Phase)
	}
	if int64(len(data)) > extract.MaxFileSizeBytes {
		return nil, fmt.Errorf("%w: %d bytes", models.ErrFileTooLarge, len(data))
	}
	format := extract.FormatFromFilename(filename)
	if !models.IsSupportedFormat(format) {
		return nil, fmt.Errorf("%w: %q", models.ErrUnsupportedFormat, format)
	}
	if _, ok := s.registry.Lookup(format); !ok {
		return nil, fmt.Errorf("%w: no extractor configured for %q", models.ErrUnsupportedFormat, format)
	}

	raw, err := s.registry.Extract(ctx, data, filename)
	if err != nil {
		return nil, err
	}
	doc, err := s.normalizer.Normalize(raw)
	if err != nil {
		return nil, err
	}

	sess.Program.Document = doc
	sess.Phase = models.PhaseAnalyze
	sess.UpdatedAt = time.Now().UTC()
	return sess, nil
}

// Analyze runs topic extraction followed by outline generation and advances
// the session to the edit phase.
func (s *SessionService) Analyze(ctx context.Context, sessionID string) (*models.Session, error) {
	sess, err := s.Get(sessionID)
	if err != nil {
		return nil, err
	}
	sess.Mu.Lock()
	defer sess.Mu.Unlock()

	if sess.Phase != models.PhaseAnalyze {
		return nil, fmt.Errorf("%w: session is in phase %s", models.ErrPhaseNotReady, sess.Phase)
	}

	topics, err := s.topics.Analyze(ctx, sess.Program.Document, sess.Options.MaxTopics)
	if err != nil {
		return nil, err
	}
	modules, meta, err := s.outline.BuildOutline(ctx, topics, sess.Options)
	if err != nil {
		return nil, err
	}

	sess.Program.Topics = topics
	sess.Program.Modules = modules
	sess.Program.Meta = meta
	sess.Phase = models.PhaseEdit
	sess.UpdatedAt = time.Now().UTC()
	return sess, nil
}

// ApplyEdit sets one field on one entity with ledger protection. Editing a
// completed session reopens it: slides and questions exist only after
// generation, so their edit paths run through here.
func (s *SessionService) ApplyEdit(sessionID string, req models.ApplyEditRequest) (*models.Session, error) {
	sess, err := s.editableSession(sessionID)
	if err != nil {
		return nil, err
	}
	sess.Mu.Lock()
	defer sess.Mu.Unlock()
	if err := sess.Program.ApplyEdit(req.EntityID, req.Field, req.Value); err != nil {
		return nil, err
	}
	reopenLocked(sess)
	sess.UpdatedAt = time.Now().UTC()
	return sess, nil
}

// Reorder permutes module order.
func (s *SessionService) Reorder(sessionID string, moduleIDs []string) (*models.Session, error) {
	sess, err := s.editableSession(sessionID)
	if err != nil {
		return nil, err
	}
	sess.Mu.Lock()
	defer sess.Mu.Unlock()
	if err := sess.Program.Reorder(moduleIDs); err != nil {
		return nil, err
	}
	reopenLocked(sess)
	sess.UpdatedAt = time.Now().UTC()
	return sess, nil
}

// RemoveModule drops a module and its owned slides and questions.
func (s *SessionService) RemoveModule(sessionID, moduleID string) (*models.Session, error) {
	sess, err := s.editableSession(sessionID)
	if err != nil {
		return nil, err
	}
	sess.Mu.Lock()
	defer sess.Mu.Unlock()
	if err := sess.Program.RemoveModule(moduleID); err != nil {
		return nil, err
	}
	reopenLocked(sess)
	sess.UpdatedAt = time.Now().UTC()
	return sess, nil
}

// Regenerate re-runs one pipeline stage. User-set fields survive through the
// ledger-aware merge.
func (s *SessionService) Regenerate(ctx context.Context, sessionID, stage string) (*models.Session, error) {
	sess, err := s.editableSession(sessionID)
	if err != nil {
		return nil, err
	}
	sess.Mu.Lock()
	defer sess.Mu.Unlock()

	switch stage {
	case StageTopics:
		topics, err := s.topics.Analyze(ctx, sess.Program.Document, sess.Options.MaxTopics)
		if err != nil {
			return nil, err
		}
		sess.Program.MergeTopics(topics)
		modules, meta, err := s.outline.BuildOutline(ctx, sess.Program.Topics, sess.Options)
		if err != nil {
			return nil, err
		}
		sess.Program.MergeModules(modules, meta)
	case StageOutline:
		modules, meta, err := s.outline.BuildOutline(ctx, sess.Program.Topics, sess.Options)
		if err != nil {
			return nil, err
		}
		sess.Program.MergeModules(modules, meta)
	default:
		return nil, fmt.Errorf("%w: unknown regeneration stage %q", models.ErrUnknownField, stage)
	}

	reopenLocked(sess)
	sess.UpdatedAt = time.Now().UTC()
	return sess, nil
}

// Generate validates the program, fans out slide and assessment generation,
// assembles the artifacts and completes the session. Failed modules are
// flagged for review; they fail the run only when nothing succeeded.
func (s *SessionService) Generate(ctx context.Context, sessionID string) (*models.Session, error) {
	sess, err := s.Get(sessionID)
	if err != nil {
		return nil, err
	}

	sess.Mu.Lock()
	if sess.Phase != models.PhaseEdit {
		sess.Mu.Unlock()
		return nil, fmt.Errorf("%w: session is in phase %s", models.ErrPhaseNotReady, sess.Phase)
	}
	if err := sess.Program.Validate(); err != nil {
		sess.Mu.Unlock()
		return nil, err
	}
	sess.Phase = models.PhaseGenerate
	sess.Mu.Unlock()

	failed, err := s.generation.Run(ctx, sess)
	if err != nil {
		sess.Mu.Lock()
		sess.Phase = models.PhaseEdit
		sess.Mu.Unlock()
		return nil, err
	}
	if len(failed) > 0 {
		logrus.Warnf("Session %s: %d modules flagged for review after generation", sessionID, len(failed))
	}

	sess.Mu.Lock()
	defer sess.Mu.Unlock()
	if err := sess.Program.Validate(); err != nil {
		sess.Phase = models.PhaseEdit
		return nil, err
	}
	artifacts, err := s.assembler.Assemble(sess.ID, sess.Program)
	if err != nil {
		sess.Phase = models.PhaseEdit
		return nil, err
	}
	sess.Artifacts = artifacts
	sess.Phase = models.PhaseComplete
	sess.UpdatedAt = time.Now().UTC()
	return sess, nil
}

// Artifact returns one of the session's generated deliverables by name.
func (s *SessionService) Artifact(sessionID, name string) (*models.Artifact, error) {
	sess, err := s.Get(sessionID)
	if err != nil {
		return nil, err
	}
	sess.Mu.Lock()
	defer sess.Mu.Unlock()
	if sess.Phase != models.PhaseComplete {
		return nil, fmt.Errorf("%w: session is in phase %s", models.ErrPhaseNotReady, sess.Phase)
	}
	for i := range sess.Artifacts {
		if sess.Artifacts[i].Name == name {
			a := sess.Artifacts[i]
			return &a, nil
		}
	}
	return nil, fmt.Errorf("%w: artifact %s", models.ErrUnknownEntity, name)
}

// editableSession accepts sessions in the edit phase and completed ones,
// which reopen on the first successful mutation.
func (s *SessionService) editableSession(sessionID string) (*models.Session, error) {
	sess, err := s.Get(sessionID)
	if err != nil {
		return nil, err
	}
	if sess.Phase != models.PhaseEdit && sess.Phase != models.PhaseComplete {
		return nil, fmt.Errorf("%w: session is in phase %s", models.ErrPhaseNotReady, sess.Phase)
	}
	return sess, nil
}

// reopenLocked drops a completed session back to the edit phase after a
// mutation. The artifacts no longer reflect the program and are discarded;
// the next Generate rebuilds them, ledger-protected fields surviving the
// regeneration. Caller holds the session lock.
func reopenLocked(sess *models.Session) {
	if sess.Phase != models.PhaseComplete {
		return
	}
	sess.Phase = models.PhaseEdit
	sess.Artifacts = nil
}

// ToResponse builds the API view of a session. Caller must not hold the
// session lock.
func (s *SessionService) ToResponse(sess *models.Session) models.SessionResponse {
	sess.Mu.Lock()
	defer sess.Mu.Unlock()

	resp := models.SessionResponse{
		ID:        sess.ID,
		Phase:     string(sess.Phase),
		Options:   sess.Options,
		Artifacts: sess.Artifacts,
		CreatedAt: sess.CreatedAt.Format(time.RFC3339),
		UpdatedAt: sess.UpdatedAt.Format(time.RFC3339),
	}
	if doc := sess.Program.Document; doc != nil {
		resp.Document = &models.DocumentSummary{
			ID:         doc.ID,
			Filename:   doc.Filename,
			Format:     doc.Format,
			BlockCount: len(doc.Blocks),
			WordCount:  doc.WordCount,
			PageCount:  doc.PageCount,
		}
	}
	if sess.Phase != models.PhaseUpload && sess.Phase != models.PhaseAnalyze {
		meta := sess.Program.Meta
		resp.Meta = &meta
		for i := range sess.Program.Topics {
			resp.Topics = append(resp.Topics, sess.Program.Topics[i].ToResponse())
		}
		for _, m := range sess.Program.Modules {
			var questions []models.QuestionResponse
			for i := range sess.Program.Questions {
				if sess.Program.Questions[i].ModuleID == m.ID {
					questions = append(questions, sess.Program.Questions[i].ToResponse())
				}
			}
			resp.Modules = append(resp.Modules, models.ModuleResponse{
				ID:                  m.ID,
				Title:               m.Title,
				Objectives:          m.Objectives,
				KeyPoints:           m.KeyPoints,
				EstimatedSlideCount: m.EstimatedSlideCount,
				TopicIDs:            m.TopicIDs,
				DurationMinutes:     sess.Program.ModuleDuration(m.ID),
				NeedsReview:         m.NeedsReview,
				UserEdited:          sess.Program.UserEditedFields(m.ID),
				Slides:              sess.Program.SlidesByModule[m.ID],
				Questions:           questions,
			})
		}
	}
	return resp
}
