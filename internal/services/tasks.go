package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/monocle-dev/taskboard/internal/models"
	"github.com/monocle-dev/taskboard/internal/permissions"
	"gorm.io/datatypes"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// History action labels.
const (
	ActionCreated      = "Created"
	ActionDeleted      = "Deleted"
	ActionCommentAdded = "CommentAdded"
)

// StatusAction is the history label recorded for a status transition.
func StatusAction(from, to models.Status) string {
	return fmt.Sprintf("Status %s -> %s", from, to)
}

// TaskInput carries the client-controlled fields of a task. ID is ignored by
// Create.
type TaskInput struct {
	ID             uint
	Title          string
	Description    *string
	Priority       models.Priority
	Status         models.Status
	DueAt          *time.Time
	AssignedUserID uint
}

type TaskService struct {
	db      *gorm.DB
	reports permissions.ReportLookup
	now     func() time.Time
	logger  *slog.Logger
}

type Option func(*TaskService)

// WithClock overrides the source of creation and history timestamps.
func WithClock(now func() time.Time) Option {
	return func(s *TaskService) {
		s.now = now
	}
}

func WithLogger(logger *slog.Logger) Option {
	return func(s *TaskService) {
		s.logger = logger
	}
}

func WithReportLookup(reports permissions.ReportLookup) Option {
	return func(s *TaskService) {
		s.reports = reports
	}
}

func NewTaskService(db *gorm.DB, opts ...Option) *TaskService {
	s := &TaskService{
		db:     db,
		now:    time.Now,
		logger: slog.Default(),
	}

	for _, opt := range opts {
		opt(s)
	}

	if s.reports == nil {
		s.reports = permissions.NewReportLookup(db)
	}

	return s
}

func (s *TaskService) clock() time.Time {
	return s.now().UTC()
}

func (s *TaskService) Create(ctx context.Context, actor models.User, draft TaskInput) (*models.Task, error) {
	allowed, err := permissions.CanCreate(ctx, s.reports, actor, draft.AssignedUserID)

	if err != nil {
		return nil, storageError("check create permission", err)
	}

	if !allowed {
		return nil, ErrUnauthorized
	}

	task := models.Task{}
	applyInput(&task, draft)
	task.CreatedAt = s.clock()

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := validateTask(tx, &task); err != nil {
			return err
		}

		if err := tx.Omit(clause.Associations).Create(&task).Error; err != nil {
			return err
		}

		return s.appendHistory(tx, task.ID, actor.ID, ActionCreated, nil)
	})

	if err != nil {
		return nil, s.fail("create task", err)
	}

	s.logger.Info("task created", "task_id", task.ID, "title", task.Title, "actor", actor.Username)

	return s.reload(ctx, task.ID)
}

// Update overwrites every client-controlled field of the task identified by
// changes.ID. It returns nil, nil when the task does not exist. Only status
// transitions are recorded in the history.
func (s *TaskService) Update(ctx context.Context, actor models.User, changes TaskInput) (*models.Task, error) {
	found := false

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		existing, err := loadTask(tx, changes.ID)
		if err != nil || existing == nil {
			return err
		}

		found = true

		if !permissions.CanModify(actor, *existing) {
			return ErrUnauthorized
		}

		oldStatus := existing.Status
		applyInput(existing, changes)

		if err := validateTask(tx, existing); err != nil {
			return err
		}

		if err := tx.Omit(clause.Associations).Save(existing).Error; err != nil {
			return err
		}

		if oldStatus != existing.Status {
			return s.appendHistory(tx, existing.ID, actor.ID, StatusAction(oldStatus, existing.Status), nil)
		}

		return nil
	})

	if err != nil {
		return nil, s.fail("update task", err)
	}

	if !found {
		return nil, nil
	}

	s.logger.Info("task updated", "task_id", changes.ID, "actor", actor.Username)

	return s.reload(ctx, changes.ID)
}

// Delete removes a task and its comments. Deleting a missing task is a no-op.
// The task's history, including the "Deleted" entry, is kept.
func (s *TaskService) Delete(ctx context.Context, actor models.User, taskID uint) error {
	deleted := false

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		task, err := loadTask(tx, taskID)
		if err != nil || task == nil {
			return err
		}

		if !permissions.CanModify(actor, *task) {
			return ErrUnauthorized
		}

		if err := s.appendHistory(tx, taskID, actor.ID, ActionDeleted, nil); err != nil {
			return err
		}

		if err := tx.Where("task_id = ?", taskID).Delete(&models.TaskComment{}).Error; err != nil {
			return err
		}

		if err := tx.Delete(&models.Task{}, taskID).Error; err != nil {
			return err
		}

		deleted = true
		return nil
	})

	if err != nil {
		return s.fail("delete task", err)
	}

	if deleted {
		s.logger.Info("task deleted", "task_id", taskID, "actor", actor.Username)
	}

	return nil
}

func (s *TaskService) AddComment(ctx context.Context, actor models.User, taskID uint, text string) (*models.TaskComment, error) {
	comment := models.TaskComment{TaskID: taskID, AuthorID: actor.ID, Text: text}

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		task, err := loadTask(tx, taskID)
		if err != nil {
			return err
		}

		if task == nil {
			return ErrNotFound
		}

		if !permissions.CanModify(actor, *task) {
			return ErrUnauthorized
		}

		if strings.TrimSpace(text) == "" {
			return validationError("comment text is required")
		}

		comment.CreatedAt = s.clock()

		if err := tx.Omit(clause.Associations).Create(&comment).Error; err != nil {
			return err
		}

		return s.appendHistory(tx, taskID, actor.ID, ActionCommentAdded, map[string]any{"text": text})
	})

	if err != nil {
		return nil, s.fail("add comment", err)
	}

	comment.Author = actor
	s.logger.Info("comment added", "task_id", taskID, "comment_id", comment.ID, "actor", actor.Username)

	return &comment, nil
}

// GetByID loads a task with its assignee and comments. It performs no
// permission check; callers gate the result with permissions.CanSee. It
// returns nil, nil when the task does not exist.
func (s *TaskService) GetByID(ctx context.Context, taskID uint) (*models.Task, error) {
	var task models.Task

	err := s.db.WithContext(ctx).
		Preload("AssignedUser").
		Preload("Comments", func(db *gorm.DB) *gorm.DB {
			return db.Order("task_comments.created_at ASC, task_comments.id ASC")
		}).
		Preload("Comments.Author").
		First(&task, taskID).Error

	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, storageError("get task", err)
	}

	return &task, nil
}

// GetHistory returns the audit trail of a task, newest first. It keeps
// working after the task has been deleted.
func (s *TaskService) GetHistory(ctx context.Context, taskID uint) ([]models.TaskHistory, error) {
	var entries []models.TaskHistory

	err := s.db.WithContext(ctx).
		Where("task_id = ?", taskID).
		Order("at DESC, id DESC").
		Find(&entries).Error

	if err != nil {
		return nil, storageError("get history", err)
	}

	return entries, nil
}

// HistorySince returns every history entry recorded at or after since, oldest
// first.
func (s *TaskService) HistorySince(ctx context.Context, since time.Time) ([]models.TaskHistory, error) {
	var entries []models.TaskHistory

	err := s.db.WithContext(ctx).
		Where("at >= ?", since.UTC()).
		Order("at ASC, id ASC").
		Find(&entries).Error

	if err != nil {
		return nil, storageError("list history", err)
	}

	return entries, nil
}

// AssignableUsers lists the users current may pick as an assignee.
func (s *TaskService) AssignableUsers(ctx context.Context, current models.User) ([]models.User, error) {
	var users []models.User

	q := permissions.ScopeUsers(s.db.WithContext(ctx).Model(&models.User{}), current)

	if err := q.Order("users.username ASC").Find(&users).Error; err != nil {
		return nil, storageError("list assignable users", err)
	}

	return users, nil
}

func (s *TaskService) appendHistory(tx *gorm.DB, taskID, actorID uint, action string, metadata map[string]any) error {
	entry := models.TaskHistory{
		TaskID:  taskID,
		ActorID: actorID,
		Action:  action,
		At:      s.clock(),
	}

	if metadata != nil {
		raw, err := json.Marshal(metadata)
		if err != nil {
			return err
		}
		entry.Metadata = datatypes.JSON(raw)
	}

	return tx.Create(&entry).Error
}

func (s *TaskService) reload(ctx context.Context, taskID uint) (*models.Task, error) {
	task, err := s.GetByID(ctx, taskID)
	if err != nil {
		return nil, err
	}

	if task == nil {
		return nil, storageError("reload task", gorm.ErrRecordNotFound)
	}

	return task, nil
}

func (s *TaskService) fail(op string, err error) error {
	if isDomainError(err) {
		return err
	}

	s.logger.Error("task operation failed", "op", op, "error", err)
	return storageError(op, err)
}

// loadTask fetches a task with its assignee, returning nil when absent.
func loadTask(tx *gorm.DB, taskID uint) (*models.Task, error) {
	var task models.Task

	err := tx.Preload("AssignedUser").First(&task, taskID).Error

	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}

	return &task, nil
}

func applyInput(task *models.Task, in TaskInput) {
	task.Title = strings.TrimSpace(in.Title)
	task.Description = in.Description
	task.Priority = in.Priority
	task.Status = in.Status
	task.AssignedUserID = in.AssignedUserID
	task.DueAt = nil

	if task.Priority == "" {
		task.Priority = models.PriorityMedium
	}

	if task.Status == "" {
		task.Status = models.StatusNew
	}

	if in.DueAt != nil {
		due := in.DueAt.UTC()
		task.DueAt = &due
	}
}

func validateTask(tx *gorm.DB, task *models.Task) error {
	if task.Title == "" {
		return validationError("title is required")
	}

	if !task.Priority.Valid() {
		return validationError("unknown priority %q", task.Priority)
	}

	if !task.Status.Valid() {
		return validationError("unknown status %q", task.Status)
	}

	var count int64

	if err := tx.Model(&models.User{}).Where("id = ?", task.AssignedUserID).Count(&count).Error; err != nil {
		return err
	}

	if count == 0 {
		return validationError("assignee %d does not exist", task.AssignedUserID)
	}

	return nil
}
