package handler

import (
	"errors"

	"github.com/gin-gonic/gin"

	"github.com/d60-Lab/trust-engine/internal/repository"
	"github.com/d60-Lab/trust-engine/pkg/response"
)

// GetTrustScore returns the current score for a user.
func (h *Handler) GetTrustScore(c *gin.Context) {
	userID := c.Param("user_id")
	score, err := h.scoreService.GetTrustScore(c.Request.Context(), userID)
	if errors.Is(err, repository.ErrScoreNotFound) {
		// not computed yet is not the same thing as a zero score
		response.NotFound(c, "trust score not computed yet")
		return
	}
	if err != nil {
		response.InternalError(c, err)
		return
	}
	response.Success(c, score)
}

// GetAuditHistory returns the full score history for a user, oldest first.
func (h *Handler) GetAuditHistory(c *gin.Context) {
	userID := c.Param("user_id")
	history, err := h.scoreService.GetAuditHistory(c.Request.Context(), userID)
	if err != nil {
		response.InternalError(c, err)
		return
	}
	response.Success(c, gin.H{"user_id": userID, "entries": history})
}

// QueueStats reports recompute queue depth by job status.
func (h *Handler) QueueStats(c *gin.Context) {
	stats, err := h.scoreService.QueueStats(c.Request.Context())
	if err != nil {
		response.InternalError(c, err)
		return
	}
	response.Success(c, stats)
}
