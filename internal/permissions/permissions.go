// Package permissions holds the single source of truth for what each role may
// do with a task. Every rule is keyed by role in one table; callers never
// switch on a role themselves.
package permissions

import (
	"context"
	"slices"

	"github.com/monocle-dev/taskboard/internal/models"
	"gorm.io/gorm"
)

// ReportLookup resolves the direct reports of a manager.
type ReportLookup interface {
	DirectReportIDs(ctx context.Context, managerID uint) ([]uint, error)
}

type rule struct {
	// sees decides visibility (and therefore modification) of a loaded task.
	sees func(current models.User, task models.Task) bool
	// creates decides whether current may create a task for assigneeID.
	creates func(ctx context.Context, reports ReportLookup, current models.User, assigneeID uint) (bool, error)
	// tasks narrows a query on the tasks table to current's role-scope.
	tasks func(db *gorm.DB, current models.User) *gorm.DB
	// users narrows a query on the users table to the users current may assign.
	users func(db *gorm.DB, current models.User) *gorm.DB
}

var rules = map[models.Role]rule{
	models.RoleSuperUser: {
		sees: func(models.User, models.Task) bool { return true },
		creates: func(context.Context, ReportLookup, models.User, uint) (bool, error) {
			return true, nil
		},
		tasks: func(db *gorm.DB, _ models.User) *gorm.DB { return db },
		users: func(db *gorm.DB, _ models.User) *gorm.DB { return db },
	},
	models.RoleManager: {
		sees: func(current models.User, task models.Task) bool {
			return task.AssignedUser.ReportsTo(current.ID) || task.AssignedUserID == current.ID
		},
		creates: func(ctx context.Context, reports ReportLookup, current models.User, assigneeID uint) (bool, error) {
			ids, err := reports.DirectReportIDs(ctx, current.ID)
			if err != nil {
				return false, err
			}
			return len(ids) > 0 && slices.Contains(ids, assigneeID), nil
		},
		tasks: func(db *gorm.DB, current models.User) *gorm.DB {
			return db.Where("(tasks.assigned_user_id = ? OR tasks.assigned_user_id IN (SELECT id FROM users WHERE manager_id = ?))", current.ID, current.ID)
		},
		users: func(db *gorm.DB, current models.User) *gorm.DB {
			return db.Where("(users.id = ? OR users.manager_id = ?)", current.ID, current.ID)
		},
	},
	models.RoleEmployee: {
		sees: func(current models.User, task models.Task) bool {
			return task.AssignedUserID == current.ID
		},
		// Employees cannot create tasks, not even for themselves.
		creates: func(context.Context, ReportLookup, models.User, uint) (bool, error) {
			return false, nil
		},
		tasks: func(db *gorm.DB, current models.User) *gorm.DB {
			return db.Where("tasks.assigned_user_id = ?", current.ID)
		},
		users: func(db *gorm.DB, current models.User) *gorm.DB {
			return db.Where("users.id = ?", current.ID)
		},
	},
}

func ruleFor(role models.Role) (rule, bool) {
	r, ok := rules[role]
	return r, ok
}

// CanSee reports whether current may see task. The task's AssignedUser must be
// loaded for the manager rule to apply.
func CanSee(current models.User, task models.Task) bool {
	r, ok := ruleFor(current.Role)
	if !ok {
		return false
	}
	return r.sees(current, task)
}

// CanModify mirrors CanSee; there is no view-only tier.
func CanModify(current models.User, task models.Task) bool {
	return CanSee(current, task)
}

// CanCreate reports whether current may create a task assigned to assigneeID.
func CanCreate(ctx context.Context, reports ReportLookup, current models.User, assigneeID uint) (bool, error) {
	r, ok := ruleFor(current.Role)
	if !ok {
		return false, nil
	}
	return r.creates(ctx, reports, current, assigneeID)
}

// ScopeTasks restricts a query over the tasks table to current's role-scope.
// Unknown roles match nothing.
func ScopeTasks(db *gorm.DB, current models.User) *gorm.DB {
	r, ok := ruleFor(current.Role)
	if !ok {
		return db.Where("1 = 0")
	}
	return r.tasks(db, current)
}

// ScopeUsers restricts a query over the users table to the users current may
// pick as an assignee.
func ScopeUsers(db *gorm.DB, current models.User) *gorm.DB {
	r, ok := ruleFor(current.Role)
	if !ok {
		return db.Where("1 = 0")
	}
	return r.users(db, current)
}

type gormReports struct {
	db *gorm.DB
}

// NewReportLookup returns a ReportLookup backed by the users table.
func NewReportLookup(db *gorm.DB) ReportLookup {
	return gormReports{db: db}
}

func (r gormReports) DirectReportIDs(ctx context.Context, managerID uint) ([]uint, error) {
	var ids []uint

	err := r.db.WithContext(ctx).
		Model(&models.User{}).
		Where("manager_id = ?", managerID).
		Order("id").
		Pluck("id", &ids).Error

	return ids, err
}
