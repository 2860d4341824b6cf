package db

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/monocle-dev/taskboard/internal/auth"
	"github.com/monocle-dev/taskboard/internal/models"
	"github.com/monocle-dev/taskboard/internal/services"
	"gopkg.in/yaml.v3"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type SeedUser struct {
	Username string `yaml:"username"`
	Password string `yaml:"password"`
	Role     string `yaml:"role"`
	Manager  string `yaml:"manager,omitempty"`
}

type SeedTask struct {
	Title       string `yaml:"title"`
	Description string `yaml:"description,omitempty"`
	Priority    string `yaml:"priority"`
	Status      string `yaml:"status"`
	Assignee    string `yaml:"assignee"`
	// Due is relative to the seeding time, e.g. "72h" or "-24h".
	Due string `yaml:"due,omitempty"`
	// Age backdates the creation time, e.g. "48h".
	Age string `yaml:"age,omitempty"`
}

type SeedData struct {
	Users []SeedUser `yaml:"users"`
	Tasks []SeedTask `yaml:"tasks"`
}

func DefaultSeed() SeedData {
	return SeedData{
		Users: []SeedUser{
			{Username: "super", Password: "super123", Role: string(models.RoleSuperUser)},
			{Username: "manager", Password: "manager123", Role: string(models.RoleManager)},
			{Username: "alice", Password: "alice123", Role: string(models.RoleEmployee), Manager: "manager"},
			{Username: "bob", Password: "bob123", Role: string(models.RoleEmployee), Manager: "manager"},
		},
		Tasks: []SeedTask{
			{
				Title:       "Review quarterly reports",
				Description: "Analyze Q3 performance metrics and prepare summary",
				Priority:    string(models.PriorityHigh),
				Status:      string(models.StatusInProgress),
				Assignee:    "alice",
				Due:         "72h",
			},
			{
				Title:       "Update website content",
				Description: "Refresh homepage with new product information",
				Priority:    string(models.PriorityMedium),
				Status:      string(models.StatusNew),
				Assignee:    "bob",
				Due:         "168h",
			},
			{
				Title:       "System maintenance",
				Description: "Perform routine server maintenance and updates",
				Priority:    string(models.PriorityHigh),
				Status:      string(models.StatusCompleted),
				Assignee:    "super",
				Due:         "-24h",
				Age:         "48h",
			},
		},
	}
}

func LoadSeedFile(path string) (SeedData, error) {
	var data SeedData

	raw, err := os.ReadFile(path)
	if err != nil {
		return data, err
	}

	if err := yaml.Unmarshal(raw, &data); err != nil {
		return data, fmt.Errorf("parse seed file %s: %w", path, err)
	}

	return data, nil
}

// Seed inserts data when the users table is empty and reports whether it did.
// Each seeded task gets a "Created" history entry attributed to the first
// super user in data, or to its assignee when there is none.
func Seed(ctx context.Context, conn *gorm.DB, data SeedData, now time.Time) (bool, error) {
	var count int64

	if err := conn.WithContext(ctx).Model(&models.User{}).Count(&count).Error; err != nil {
		return false, err
	}

	if count > 0 {
		return false, nil
	}

	now = now.UTC()

	err := conn.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		users := make(map[string]*models.User, len(data.Users))
		var actor *models.User

		// Managers are referenced by name, so insert in two passes.
		for _, su := range data.Users {
			role := models.Role(su.Role)
			if !role.Valid() {
				return fmt.Errorf("user %s: unknown role %q", su.Username, su.Role)
			}

			hash, err := auth.HashPassword(su.Password)
			if err != nil {
				return err
			}

			user := &models.User{Username: su.Username, PasswordHash: hash, Role: role}
			if err := tx.Create(user).Error; err != nil {
				return fmt.Errorf("create user %s: %w", su.Username, err)
			}

			users[su.Username] = user
			if actor == nil && role == models.RoleSuperUser {
				actor = user
			}
		}

		for _, su := range data.Users {
			if su.Manager == "" {
				continue
			}

			manager, ok := users[su.Manager]
			if !ok {
				return fmt.Errorf("user %s: unknown manager %q", su.Username, su.Manager)
			}

			if err := tx.Model(users[su.Username]).Update("manager_id", manager.ID).Error; err != nil {
				return err
			}
		}

		for _, st := range data.Tasks {
			task, err := st.build(users, now)
			if err != nil {
				return err
			}

			if err := tx.Omit(clause.Associations).Create(task).Error; err != nil {
				return fmt.Errorf("create task %q: %w", st.Title, err)
			}

			actorID := task.AssignedUserID
			if actor != nil {
				actorID = actor.ID
			}

			entry := models.TaskHistory{TaskID: task.ID, ActorID: actorID, Action: services.ActionCreated, At: task.CreatedAt}
			if err := tx.Create(&entry).Error; err != nil {
				return err
			}
		}

		return nil
	})

	if err != nil {
		return false, err
	}

	return true, nil
}

func (st SeedTask) build(users map[string]*models.User, now time.Time) (*models.Task, error) {
	assignee, ok := users[st.Assignee]
	if !ok {
		return nil, fmt.Errorf("task %q: unknown assignee %q", st.Title, st.Assignee)
	}

	priority := models.Priority(st.Priority)
	if priority == "" {
		priority = models.PriorityMedium
	}
	if !priority.Valid() {
		return nil, fmt.Errorf("task %q: unknown priority %q", st.Title, st.Priority)
	}

	status := models.Status(st.Status)
	if status == "" {
		status = models.StatusNew
	}
	if !status.Valid() {
		return nil, fmt.Errorf("task %q: unknown status %q", st.Title, st.Status)
	}

	task := &models.Task{
		Title:          st.Title,
		Priority:       priority,
		Status:         status,
		AssignedUserID: assignee.ID,
	}
	task.CreatedAt = now

	if st.Description != "" {
		description := st.Description
		task.Description = &description
	}

	if st.Age != "" {
		age, err := time.ParseDuration(st.Age)
		if err != nil {
			return nil, fmt.Errorf("task %q: invalid age: %w", st.Title, err)
		}
		task.CreatedAt = now.Add(-age)
	}

	if st.Due != "" {
		offset, err := time.ParseDuration(st.Due)
		if err != nil {
			return nil, fmt.Errorf("task %q: invalid due: %w", st.Title, err)
		}
		due := now.Add(offset)
		task.DueAt = &due
	}

	return task, nil
}
