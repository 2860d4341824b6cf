package types

import (
	"encoding/json"
	"time"

	"github.com/monocle-dev/taskboard/internal/models"
)

type UserResponse struct {
	ID        uint        `json:"id"`
	Username  string      `json:"username"`
	Role      models.Role `json:"role"`
	ManagerID *uint       `json:"manager_id"`
}

type CommentResponse struct {
	ID        uint      `json:"id"`
	TaskID    uint      `json:"task_id"`
	AuthorID  uint      `json:"author_id"`
	Author    string    `json:"author"`
	Text      string    `json:"text"`
	CreatedAt time.Time `json:"created_at"`
}

type TaskResponse struct {
	ID           uint              `json:"id"`
	Title        string            `json:"title"`
	Description  *string           `json:"description"`
	Priority     models.Priority   `json:"priority"`
	Status       models.Status     `json:"status"`
	CreatedAt    time.Time         `json:"created_at"`
	DueAt        *time.Time        `json:"due_at"`
	AssignedUser UserResponse      `json:"assigned_user"`
	Comments     []CommentResponse `json:"comments,omitempty"`
}

type HistoryResponse struct {
	ID       uint            `json:"id"`
	TaskID   uint            `json:"task_id"`
	Action   string          `json:"action"`
	ActorID  uint            `json:"actor_id"`
	At       time.Time       `json:"at"`
	Metadata json.RawMessage `json:"metadata,omitempty"`
}

type TaskSummary struct {
	ID     uint          `json:"id"`
	Title  string        `json:"title"`
	Status models.Status `json:"status"`
	DueAt  *time.Time    `json:"due_at,omitempty"`
}

type SocketMessage struct {
	Type    string        `json:"type"`
	Message string        `json:"message"`
	TaskID  uint          `json:"task_id,omitempty"`
	Action  string        `json:"action,omitempty"`
	Tasks   []TaskSummary `json:"tasks,omitempty"`
}

func NewUserResponse(u models.User) UserResponse {
	return UserResponse{ID: u.ID, Username: u.Username, Role: u.Role, ManagerID: u.ManagerID}
}

func NewCommentResponse(c models.TaskComment) CommentResponse {
	return CommentResponse{
		ID:        c.ID,
		TaskID:    c.TaskID,
		AuthorID:  c.AuthorID,
		Author:    c.Author.Username,
		Text:      c.Text,
		CreatedAt: c.CreatedAt,
	}
}

func NewTaskResponse(t models.Task) TaskResponse {
	resp := TaskResponse{
		ID:           t.ID,
		Title:        t.Title,
		Description:  t.Description,
		Priority:     t.Priority,
		Status:       t.Status,
		CreatedAt:    t.CreatedAt,
		DueAt:        t.DueAt,
		AssignedUser: NewUserResponse(t.AssignedUser),
	}

	for _, c := range t.Comments {
		resp.Comments = append(resp.Comments, NewCommentResponse(c))
	}

	return resp
}

func NewHistoryResponse(h models.TaskHistory) HistoryResponse {
	resp := HistoryResponse{
		ID:      h.ID,
		TaskID:  h.TaskID,
		Action:  h.Action,
		ActorID: h.ActorID,
		At:      h.At,
	}

	if len(h.Metadata) > 0 {
		resp.Metadata = json.RawMessage(h.Metadata)
	}

	return resp
}

func NewTaskSummary(t models.Task) TaskSummary {
	return TaskSummary{ID: t.ID, Title: t.Title, Status: t.Status, DueAt: t.DueAt}
}
