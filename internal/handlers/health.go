package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
)

func (h *Handler) HealthCheck(c *gin.Context) {
	status, code, database := "ok", http.StatusOK, "ok"

	if err := h.pingDatabase(c.Request.Context()); err != nil {
		h.Logger.Warn("database ping failed", "error", err)
		status, code, database = "degraded", http.StatusServiceUnavailable, err.Error()
	}

	c.JSON(code, gin.H{
		"status":    status,
		"message":   "Taskboard is running",
		"database":  database,
		"timestamp": time.Now().Format(time.RFC3339),
	})
}

func (h *Handler) pingDatabase(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	sqlDB, err := h.DB.DB()
	if err != nil {
		return err
	}

	return sqlDB.PingContext(ctx)
}
