package handlers

import (
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/trainforge/training-generator-backend/internal/services"
)

type ArtifactHandler struct {
	sessions *services.SessionService
	tokens   *services.TokenService
}

func NewArtifactHandler(sessions *services.SessionService, tokens *services.TokenService) *ArtifactHandler {
	return &ArtifactHandler{sessions: sessions, tokens: tokens}
}

// ListArtifacts godoc
// @Summary List the session's artifacts with signed download URLs
// @Tags artifacts
// @Produce json
// @Param id path string true "Session ID"
// @Success 200 {object} map[string]interface{}
// @Failure 404 {object} map[string]interface{}
// @Failure 409 {object} map[string]interface{}
// @Router /api/v1/sessions/{id}/artifacts [get]
func (h *ArtifactHandler) ListArtifacts(c *gin.Context) {
	sessionID := c.Param("id")
	sess, err := h.sessions.Get(sessionID)
	if err != nil {
		abortWithError(c, err)
		return
	}

	resp := h.sessions.ToResponse(sess)
	out := make([]gin.H, 0, len(resp.Artifacts))
	for _, a := range resp.Artifacts {
		token, err := h.tokens.IssueDownloadToken(sessionID, a.Name)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to sign download URL"})
			return
		}
		out = append(out, gin.H{
			"name":         a.Name,
			"kind":         a.Kind,
			"size_bytes":   a.SizeBytes,
			"created_at":   a.CreatedAt,
			"download_url": fmt.Sprintf("/api/v1/sessions/%s/artifacts/%s?token=%s", sessionID, a.Name, token),
		})
	}
	c.JSON(http.StatusOK, gin.H{"artifacts": out})
}

// DownloadArtifact godoc
// @Summary Download one artifact
// @Description Serves the artifact file; requires a signed token issued by the list endpoint
// @Tags artifacts
// @Produce octet-stream
// @Param id path string true "Session ID"
// @Param name path string true "Artifact name"
// @Param token query string true "Signed download token"
// @Success 200 {file} binary
// @Failure 401 {object} map[string]interface{}
// @Failure 404 {object} map[string]interface{}
// @Router /api/v1/sessions/{id}/artifacts/{name} [get]
func (h *ArtifactHandler) DownloadArtifact(c *gin.Context) {
	sessionID := c.Param("id")
	name := c.Param("name")

	tokenSessionID, tokenArtifact, err := h.tokens.ValidateDownloadToken(c.Query("token"))
	if err != nil || tokenSessionID != sessionID || tokenArtifact != name {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid or expired download token"})
		return
	}

	artifact, err := h.sessions.Artifact(sessionID, name)
	if err != nil {
		abortWithError(c, err)
		return
	}
	c.FileAttachment(artifact.Path, artifact.Name)
}
