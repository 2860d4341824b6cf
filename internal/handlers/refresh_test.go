package handlers

import (
	"bytes"
	"context"
	"log/slog"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/monocle-dev/taskboard/internal/models"
	"github.com/monocle-dev/taskboard/internal/services"
	"github.com/monocle-dev/taskboard/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRefreshTaskLogsReloadFailure(t *testing.T) {
	gin.SetMode(gin.TestMode)

	conn := testutil.NewDB(t)
	users := testutil.SeedUsers(t, conn)

	var logs bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&logs, nil))

	svc := services.NewTaskService(conn, services.WithLogger(logger))
	task, err := svc.Create(context.Background(), users.Manager, services.TaskInput{Title: "noisy", AssignedUserID: users.Alice.ID})
	require.NoError(t, err)

	h := &Handler{DB: conn, Tasks: svc, Hub: NewHub(nil, logger), Logger: logger}
	c, _ := gin.CreateTestContext(httptest.NewRecorder())
	c.Request = httptest.NewRequest("POST", "/", nil)

	h.refreshTask(c, services.ActionCommentAdded, task.ID)
	assert.NotContains(t, logs.String(), "reload task for refresh failed")

	require.NoError(t, conn.Migrator().DropTable(&models.TaskComment{}))

	h.refreshTask(c, services.ActionCommentAdded, task.ID)
	assert.Contains(t, logs.String(), "reload task for refresh failed")
	assert.Contains(t, logs.String(), "action=CommentAdded")
}
