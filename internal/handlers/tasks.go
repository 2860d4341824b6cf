package handlers

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/monocle-dev/taskboard/internal/models"
	"github.com/monocle-dev/taskboard/internal/permissions"
	"github.com/monocle-dev/taskboard/internal/services"
	"github.com/monocle-dev/taskboard/internal/types"
	"github.com/monocle-dev/taskboard/internal/utils"
)

type TaskRequest struct {
	Title          string          `json:"title" binding:"required"`
	Description    *string         `json:"description"`
	Priority       models.Priority `json:"priority"`
	Status         models.Status   `json:"status"`
	DueAt          *time.Time      `json:"due_at"`
	AssignedUserID uint            `json:"assigned_user_id" binding:"required"`
}

func (r TaskRequest) input(id uint) services.TaskInput {
	return services.TaskInput{
		ID:             id,
		Title:          r.Title,
		Description:    r.Description,
		Priority:       r.Priority,
		Status:         r.Status,
		DueAt:          r.DueAt,
		AssignedUserID: r.AssignedUserID,
	}
}

type CommentRequest struct {
	Text string `json:"text" binding:"required"`
}

func (h *Handler) ListTasks(ctx *gin.Context) {
	currentUser, err := utils.GetCurrentUser(ctx)

	if err != nil {
		ctx.JSON(http.StatusUnauthorized, gin.H{"error": "User not authenticated"})
		return
	}

	filter, err := parseTaskFilter(ctx)

	if err != nil {
		ctx.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	tasks, err := h.Tasks.Query(ctx.Request.Context(), currentUser, filter)

	if err != nil {
		h.respondError(ctx, "list tasks", err)
		return
	}

	response := make([]types.TaskResponse, 0, len(tasks))
	for _, task := range tasks {
		response = append(response, types.NewTaskResponse(task))
	}

	ctx.JSON(http.StatusOK, response)
}

func (h *Handler) CreateTask(ctx *gin.Context) {
	currentUser, err := utils.GetCurrentUser(ctx)

	if err != nil {
		ctx.JSON(http.StatusUnauthorized, gin.H{"error": "User not authenticated"})
		return
	}

	var req TaskRequest

	if err := ctx.ShouldBindJSON(&req); err != nil {
		ctx.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body"})
		return
	}

	task, err := h.Tasks.Create(ctx.Request.Context(), currentUser, req.input(0))

	if err != nil {
		h.respondError(ctx, "create task", err)
		return
	}

	h.Hub.BroadcastRefresh(services.ActionCreated, *task)

	ctx.JSON(http.StatusCreated, types.NewTaskResponse(*task))
}

func (h *Handler) GetTask(ctx *gin.Context) {
	_, task, ok := h.visibleTask(ctx)

	if !ok {
		return
	}

	ctx.JSON(http.StatusOK, types.NewTaskResponse(*task))
}

func (h *Handler) UpdateTask(ctx *gin.Context) {
	currentUser, before, ok := h.visibleTask(ctx)

	if !ok {
		return
	}

	var req TaskRequest

	if err := ctx.ShouldBindJSON(&req); err != nil {
		ctx.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body"})
		return
	}

	task, err := h.Tasks.Update(ctx.Request.Context(), currentUser, req.input(before.ID))

	if err != nil {
		h.respondError(ctx, "update task", err)
		return
	}

	if task == nil {
		ctx.JSON(http.StatusNotFound, gin.H{"error": "Task not found"})
		return
	}

	action := ""
	if before.Status != task.Status {
		action = services.StatusAction(before.Status, task.Status)
	}

	h.Hub.BroadcastRefresh(action, *before, *task)

	ctx.JSON(http.StatusOK, types.NewTaskResponse(*task))
}

func (h *Handler) DeleteTask(ctx *gin.Context) {
	currentUser, task, ok := h.visibleTask(ctx)

	if !ok {
		return
	}

	if err := h.Tasks.Delete(ctx.Request.Context(), currentUser, task.ID); err != nil {
		h.respondError(ctx, "delete task", err)
		return
	}

	h.Hub.BroadcastRefresh(services.ActionDeleted, *task)

	ctx.JSON(http.StatusOK, gin.H{"message": "Task deleted successfully"})
}

func (h *Handler) AddComment(ctx *gin.Context) {
	currentUser, err := utils.GetCurrentUser(ctx)

	if err != nil {
		ctx.JSON(http.StatusUnauthorized, gin.H{"error": "User not authenticated"})
		return
	}

	taskID, err := utils.GetTaskID(ctx)

	if err != nil {
		ctx.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	var req CommentRequest

	if err := ctx.ShouldBindJSON(&req); err != nil {
		ctx.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body"})
		return
	}

	comment, err := h.Tasks.AddComment(ctx.Request.Context(), currentUser, taskID, req.Text)

	if err != nil {
		h.respondError(ctx, "add comment", err)
		return
	}

	h.refreshTask(ctx, services.ActionCommentAdded, taskID)

	ctx.JSON(http.StatusCreated, types.NewCommentResponse(*comment))
}

// GetHistory returns the audit trail of a task. The trail of a deleted task
// stays readable, but only by a SuperUser since its assignee is gone.
func (h *Handler) GetHistory(ctx *gin.Context) {
	currentUser, err := utils.GetCurrentUser(ctx)

	if err != nil {
		ctx.JSON(http.StatusUnauthorized, gin.H{"error": "User not authenticated"})
		return
	}

	taskID, err := utils.GetTaskID(ctx)

	if err != nil {
		ctx.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	task, err := h.Tasks.GetByID(ctx.Request.Context(), taskID)

	if err != nil {
		h.respondError(ctx, "get task", err)
		return
	}

	if task != nil && !permissions.CanSee(currentUser, *task) {
		h.respondError(ctx, "get history", services.ErrUnauthorized)
		return
	}

	if task == nil && currentUser.Role != models.RoleSuperUser {
		h.respondError(ctx, "get history", services.ErrNotFound)
		return
	}

	entries, err := h.Tasks.GetHistory(ctx.Request.Context(), taskID)

	if err != nil {
		h.respondError(ctx, "get history", err)
		return
	}

	if task == nil && len(entries) == 0 {
		h.respondError(ctx, "get history", services.ErrNotFound)
		return
	}

	response := make([]types.HistoryResponse, 0, len(entries))
	for _, entry := range entries {
		response = append(response, types.NewHistoryResponse(entry))
	}

	ctx.JSON(http.StatusOK, response)
}

func (h *Handler) AssignableUsers(ctx *gin.Context) {
	currentUser, err := utils.GetCurrentUser(ctx)

	if err != nil {
		ctx.JSON(http.StatusUnauthorized, gin.H{"error": "User not authenticated"})
		return
	}

	users, err := h.Tasks.AssignableUsers(ctx.Request.Context(), currentUser)

	if err != nil {
		h.respondError(ctx, "assignable users", err)
		return
	}

	response := make([]types.UserResponse, 0, len(users))
	for _, user := range users {
		response = append(response, types.NewUserResponse(user))
	}

	ctx.JSON(http.StatusOK, response)
}

// refreshTask reloads a task after a committed change and broadcasts it. The
// change is already saved, so a failed reload is only logged.
func (h *Handler) refreshTask(ctx *gin.Context, action string, taskID uint) {
	task, err := h.Tasks.GetByID(ctx.Request.Context(), taskID)

	if err != nil {
		h.Logger.Error("reload task for refresh failed", "request_id", utils.GetRequestID(ctx), "task_id", taskID, "action", action, "error", err)
		return
	}

	if task != nil {
		h.Hub.BroadcastRefresh(action, *task)
	}
}

// visibleTask loads the task named in the path and checks that the current
// user can see it. It writes the error response and returns false otherwise.
func (h *Handler) visibleTask(ctx *gin.Context) (models.User, *models.Task, bool) {
	currentUser, err := utils.GetCurrentUser(ctx)

	if err != nil {
		ctx.JSON(http.StatusUnauthorized, gin.H{"error": "User not authenticated"})
		return models.User{}, nil, false
	}

	taskID, err := utils.GetTaskID(ctx)

	if err != nil {
		ctx.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return models.User{}, nil, false
	}

	task, err := h.Tasks.GetByID(ctx.Request.Context(), taskID)

	if err != nil {
		h.respondError(ctx, "get task", err)
		return models.User{}, nil, false
	}

	if task == nil {
		h.respondError(ctx, "get task", services.ErrNotFound)
		return models.User{}, nil, false
	}

	if !permissions.CanSee(currentUser, *task) {
		h.respondError(ctx, "get task", services.ErrUnauthorized)
		return models.User{}, nil, false
	}

	return currentUser, task, true
}

func parseTaskFilter(ctx *gin.Context) (services.TaskFilter, error) {
	filter := services.TaskFilter{
		SortBy: services.ParseSortKey(ctx.Query("sort")),
	}

	if raw := ctx.Query("assignee_id"); raw != "" {
		id, err := strconv.ParseUint(raw, 10, 32)
		if err != nil {
			return filter, errors.New("Invalid assignee_id")
		}
		assignee := uint(id)
		filter.AssignedUserID = &assignee
	}

	if raw := ctx.Query("priority"); raw != "" {
		priority := models.Priority(raw)
		if !priority.Valid() {
			return filter, errors.New("Invalid priority")
		}
		filter.Priority = &priority
	}

	if raw := ctx.Query("status"); raw != "" {
		status := models.Status(raw)
		if !status.Valid() {
			return filter, errors.New("Invalid status")
		}
		filter.Status = &status
	}

	if raw := ctx.Query("due_before"); raw != "" {
		due, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			return filter, errors.New("Invalid due_before, expected RFC3339")
		}
		filter.DueBefore = &due
	}

	if raw := ctx.Query("desc"); raw != "" {
		desc, err := strconv.ParseBool(raw)
		if err != nil {
			return filter, errors.New("Invalid desc")
		}
		filter.Desc = desc
	}

	return filter, nil
}
