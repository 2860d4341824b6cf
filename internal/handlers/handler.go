package handlers

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/monocle-dev/taskboard/internal/auth"
	"github.com/monocle-dev/taskboard/internal/services"
	"github.com/monocle-dev/taskboard/internal/utils"
	"gorm.io/gorm"
)

// Handler bundles the collaborators shared by the HTTP endpoints.
type Handler struct {
	DB            *gorm.DB
	Tasks         *services.TaskService
	Authenticator *auth.Authenticator
	Tokens        *auth.Tokens
	Hub           *Hub
	Logger        *slog.Logger
	CookieDomain  string
}

// respondError maps service errors to HTTP responses. Storage failures are
// logged and reported without detail.
func (h *Handler) respondError(ctx *gin.Context, op string, err error) {
	switch {
	case errors.Is(err, services.ErrUnauthorized):
		ctx.JSON(http.StatusForbidden, gin.H{"error": "Permission denied"})
	case errors.Is(err, services.ErrNotFound):
		ctx.JSON(http.StatusNotFound, gin.H{"error": "Task not found"})
	case errors.Is(err, services.ErrValidation):
		ctx.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	default:
		h.Logger.Error("request failed", "op", op, "request_id", utils.GetRequestID(ctx), "error", err)
		ctx.JSON(http.StatusInternalServerError, gin.H{"error": "Internal server error"})
	}
}
