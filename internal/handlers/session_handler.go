package handlers

import (
	"errors"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/trainforge/training-generator-backend/internal/models"
	"github.com/trainforge/training-generator-backend/internal/services"
)

type SessionHandler struct {
	sessions *services.SessionService
}

func NewSessionHandler(sessions *services.SessionService) *SessionHandler {
	return &SessionHandler{sessions: sessions}
}

// statusForError maps pipeline errors onto HTTP statuses.
func statusForError(err error) int {
	switch {
	case errors.Is(err, models.ErrSessionNotFound), errors.Is(err, models.ErrUnknownEntity):
		return http.StatusNotFound
	case errors.Is(err, models.ErrUnsupportedFormat),
		errors.Is(err, models.ErrEmptyDocument),
		errors.Is(err, models.ErrUnknownField),
		errors.Is(err, models.ErrValidationFailed):
		return http.StatusBadRequest
	case errors.Is(err, models.ErrFileTooLarge):
		return http.StatusRequestEntityTooLarge
	case errors.Is(err, models.ErrPhaseNotReady):
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

func abortWithError(c *gin.Context, err error) {
	status := statusForError(err)
	if status >= 500 {
		logrus.Errorf("Request failed: %v", err)
	}
	c.JSON(status, gin.H{"error": err.Error()})
}

// CreateSession godoc
// @Summary Create a generation session
// @Description Start a new training program generation session in the upload phase
// @Tags sessions
// @Accept json
// @Produce json
// @Param request body models.CreateSessionRequest true "Session options"
// @Success 201 {object} models.SessionResponse
// @Failure 400 {object} map[string]interface{}
// @Router /api/v1/sessions [post]
func (h *SessionHandler) CreateSession(c *gin.Context) {
	var req models.CreateSessionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	sess, err := h.sessions.Create(req)
	if err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusCreated, h.sessions.ToResponse(sess))
}

// GetSession godoc
// @Summary Get a session
// @Tags sessions
// @Produce json
// @Param id path string true "Session ID"
// @Success 200 {object} models.SessionResponse
// @Failure 404 {object} map[string]interface{}
// @Router /api/v1/sessions/{id} [get]
func (h *SessionHandler) GetSession(c *gin.Context) {
	sess, err := h.sessions.Get(c.Param("id"))
	if err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, h.sessions.ToResponse(sess))
}

// UploadDocument godoc
// @Summary Upload the session's source document
// @Description Extracts and normalizes the document, advancing the session to the analyze phase
// @Tags sessions
// @Accept multipart/form-data
// @Produce json
// @Param id path string true "Session ID"
// @Param file formData file true "Source document (pdf, docx, pptx, txt, csv, xlsx, md)"
// @Success 200 {object} models.SessionResponse
// @Failure 400 {object} map[string]interface{}
// @Failure 409 {object} map[string]interface{}
// @Failure 413 {object} map[string]interface{}
// @Router /api/v1/sessions/{id}/document [post]
func (h *SessionHandler) UploadDocument(c *gin.Context) {
	fileHeader, err := c.FormFile("file")
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "file is required"})
		return
	}

	file, err := fileHeader.Open()
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "failed to open uploaded file"})
		return
	}
	defer file.Close()

	data, err := io.ReadAll(file)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "failed to read uploaded file"})
		return
	}

	sess, err := h.sessions.Upload(c.Request.Context(), c.Param("id"), fileHeader.Filename, data)
	if err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, h.sessions.ToResponse(sess))
}

// Analyze godoc
// @Summary Run topic analysis and outline generation
// @Description Extracts topics and builds the module outline, advancing the session to the edit phase
// @Tags sessions
// @Produce json
// @Param id path string true "Session ID"
// @Success 200 {object} models.SessionResponse
// @Failure 409 {object} map[string]interface{}
// @Failure 500 {object} map[string]interface{}
// @Router /api/v1/sessions/{id}/analyze [post]
func (h *SessionHandler) Analyze(c *gin.Context) {
	sess, err := h.sessions.Analyze(c.Request.Context(), c.Param("id"))
	if err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, h.sessions.ToResponse(sess))
}

// ApplyEdit godoc
// @Summary Edit one field of one entity
// @Description Sets the field and records it in the edit ledger; regeneration will not overwrite it
// @Tags sessions
// @Accept json
// @Produce json
// @Param id path string true "Session ID"
// @Param request body models.ApplyEditRequest true "Edit"
// @Success 200 {object} models.SessionResponse
// @Failure 400 {object} map[string]interface{}
// @Failure 404 {object} map[string]interface{}
// @Router /api/v1/sessions/{id}/edits [post]
func (h *SessionHandler) ApplyEdit(c *gin.Context) {
	var req models.ApplyEditRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	sess, err := h.sessions.ApplyEdit(c.Param("id"), req)
	if err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, h.sessions.ToResponse(sess))
}

// ReorderModules godoc
// @Summary Reorder modules
// @Tags sessions
// @Accept json
// @Produce json
// @Param id path string true "Session ID"
// @Param request body models.ReorderRequest true "New module order"
// @Success 200 {object} models.SessionResponse
// @Failure 400 {object} map[string]interface{}
// @Router /api/v1/sessions/{id}/reorder [post]
func (h *SessionHandler) ReorderModules(c *gin.Context) {
	var req models.ReorderRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	sess, err := h.sessions.Reorder(c.Param("id"), req.ModuleIDs)
	if err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, h.sessions.ToResponse(sess))
}

// RemoveModule godoc
// @Summary Remove a module
// @Description Removes the module and cascade-removes its slides and questions
// @Tags sessions
// @Produce json
// @Param id path string true "Session ID"
// @Param moduleId path string true "Module ID"
// @Success 200 {object} models.SessionResponse
// @Failure 404 {object} map[string]interface{}
// @Router /api/v1/sessions/{id}/modules/{moduleId} [delete]
func (h *SessionHandler) RemoveModule(c *gin.Context) {
	sess, err := h.sessions.RemoveModule(c.Param("id"), c.Param("moduleId"))
	if err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, h.sessions.ToResponse(sess))
}

// Regenerate godoc
// @Summary Re-run one pipeline stage
// @Description Regenerates topics or the outline; user-edited fields are preserved
// @Tags sessions
// @Accept json
// @Produce json
// @Param id path string true "Session ID"
// @Param request body models.RegenerateRequest true "Stage to regenerate"
// @Success 200 {object} models.SessionResponse
// @Failure 400 {object} map[string]interface{}
// @Failure 409 {object} map[string]interface{}
// @Router /api/v1/sessions/{id}/regenerate [post]
func (h *SessionHandler) Regenerate(c *gin.Context) {
	var req models.RegenerateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	sess, err := h.sessions.Regenerate(c.Request.Context(), c.Param("id"), req.Stage)
	if err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, h.sessions.ToResponse(sess))
}

// Generate godoc
// @Summary Generate slides, assessments and artifacts
// @Description Validates the program, fans out per-module generation and assembles the deliverables
// @Tags sessions
// @Produce json
// @Param id path string true "Session ID"
// @Success 200 {object} models.SessionResponse
// @Failure 400 {object} map[string]interface{}
// @Failure 409 {object} map[string]interface{}
// @Failure 500 {object} map[string]interface{}
// @Router /api/v1/sessions/{id}/generate [post]
func (h *SessionHandler) Generate(c *gin.Context) {
	sess, err := h.sessions.Generate(c.Request.Context(), c.Param("id"))
	if err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, h.sessions.ToResponse(sess))
}
