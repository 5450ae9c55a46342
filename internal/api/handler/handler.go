package handler

import (
	"time"

	"github.com/d60-Lab/trust-engine/internal/service"
)

// Handler bundles the request handlers and their service dependencies.
type Handler struct {
	userService  service.UserService
	scoreService service.ScoreService
	waitTimeout  time.Duration
}

func NewHandler(users service.UserService, scores service.ScoreService, waitTimeout time.Duration) *Handler {
	if waitTimeout <= 0 {
		waitTimeout = 15 * time.Second
	}
	return &Handler{userService: users, scoreService: scores, waitTimeout: waitTimeout}
}
