package services

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/monocle-dev/taskboard/internal/models"
	"github.com/monocle-dev/taskboard/internal/permissions"
	"gorm.io/gorm"
)

type SortKey string

const (
	SortCreated  SortKey = "Created"
	SortDue      SortKey = "Due"
	SortPriority SortKey = "Priority"
)

// TaskFilter narrows a task listing. Nil fields do not filter.
type TaskFilter struct {
	AssignedUserID *uint
	Priority       *models.Priority
	Status         *models.Status
	// DueBefore is an inclusive upper bound; tasks without a due date never
	// match it.
	DueBefore *time.Time
	SortBy    SortKey
	Desc      bool
}

// ParseSortKey maps a client-supplied sort name to a SortKey. Unknown or empty
// names fall back to SortCreated.
func ParseSortKey(name string) SortKey {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "due":
		return SortDue
	case "priority":
		return SortPriority
	default:
		return SortCreated
	}
}

// Query lists the tasks current may see, narrowed by filter. The role-scope is
// applied before any filter and cannot be widened by one.
func (s *TaskService) Query(ctx context.Context, current models.User, filter TaskFilter) ([]models.Task, error) {
	q := permissions.ScopeTasks(s.db.WithContext(ctx).Model(&models.Task{}), current)

	if filter.AssignedUserID != nil {
		q = q.Where("tasks.assigned_user_id = ?", *filter.AssignedUserID)
	}

	if filter.Priority != nil {
		q = q.Where("tasks.priority = ?", *filter.Priority)
	}

	if filter.Status != nil {
		q = q.Where("tasks.status = ?", *filter.Status)
	}

	if filter.DueBefore != nil {
		q = q.Where("tasks.due_at IS NOT NULL AND tasks.due_at <= ?", filter.DueBefore.UTC())
	}

	q = orderTasks(q, filter.SortBy, filter.Desc)

	var tasks []models.Task

	if err := q.Preload("AssignedUser").Find(&tasks).Error; err != nil {
		return nil, storageError("query tasks", err)
	}

	return tasks, nil
}

func orderTasks(q *gorm.DB, key SortKey, desc bool) *gorm.DB {
	direction := "ASC"
	if desc {
		direction = "DESC"
	}

	switch key {
	case SortDue:
		// Tasks without a due date go last in either direction.
		q = q.Order("CASE WHEN tasks.due_at IS NULL THEN 1 ELSE 0 END ASC").
			Order("tasks.due_at " + direction)
	case SortPriority:
		q = q.Order(priorityRankSQL() + " " + direction)
	default:
		q = q.Order("tasks.created_at " + direction)
	}

	return q.Order("tasks.id ASC")
}

// priorityRankSQL orders the stored priority tokens by rank rather than by
// their text.
func priorityRankSQL() string {
	var b strings.Builder

	b.WriteString("CASE tasks.priority")
	for i, p := range models.Priorities {
		fmt.Fprintf(&b, " WHEN '%s' THEN %d", p, i)
	}
	fmt.Fprintf(&b, " ELSE %d END", len(models.Priorities))

	return b.String()
}
