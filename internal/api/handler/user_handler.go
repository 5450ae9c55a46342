package handler

import (
	"errors"

	"github.com/gin-gonic/gin"

	"github.com/d60-Lab/trust-engine/internal/service"
	"github.com/d60-Lab/trust-engine/pkg/response"
)

// UpsertUser writes a user profile and enqueues a score recompute.
func (h *Handler) UpsertUser(c *gin.Context) {
	var in service.UserInput
	if err := c.ShouldBindJSON(&in); err != nil {
		response.BadRequest(c, err.Error())
		return
	}
	enqueued, err := h.userService.Upsert(c.Request.Context(), in)
	if err != nil {
		response.InternalError(c, err)
		return
	}
	response.Success(c, gin.H{"user_id": in.UserID, "job_enqueued": enqueued})
}

// UpsertUserAndWait writes a user profile and blocks until the recomputed
// score is visible or the wait times out.
func (h *Handler) UpsertUserAndWait(c *gin.Context) {
	var in service.UserInput
	if err := c.ShouldBindJSON(&in); err != nil {
		response.BadRequest(c, err.Error())
		return
	}
	score, err := h.userService.UpsertAndWait(c.Request.Context(), in, h.waitTimeout)
	if errors.Is(err, service.ErrWaitTimeout) {
		response.Timeout(c, "score recompute did not finish in time")
		return
	}
	if err != nil {
		response.InternalError(c, err)
		return
	}
	response.Success(c, score)
}
