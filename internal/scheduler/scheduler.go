package scheduler

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/monocle-dev/taskboard/internal/models"
	"github.com/monocle-dev/taskboard/internal/permissions"
	"github.com/monocle-dev/taskboard/internal/services"
	"github.com/monocle-dev/taskboard/internal/types"
	rcron "github.com/robfig/cron/v3"
)

// Notifier delivers messages to connected users.
type Notifier interface {
	Sessions() []models.User
	SendTo(userID uint, msg types.SocketMessage)
}

// Scheduler periodically scans for tasks that are due soon or were just
// completed and notifies the connected users allowed to see them.
type Scheduler struct {
	tasks    *services.TaskService
	notifier Notifier
	window   time.Duration
	now      func() time.Time
	logger   *slog.Logger

	mu       sync.Mutex
	cron     *rcron.Cron
	since    time.Time
	seen     map[uint]time.Time   // inspected history ids and their timestamps
	notified map[reminderKey]bool // due-soon reminders already sent
}

// historySlack re-reads a little history on every scan so entries committed
// late by a concurrent transaction are not skipped. seen filters repeats.
const historySlack = time.Minute

type reminderKey struct {
	userID uint
	taskID uint
	dueAt  int64
}

type Option func(*Scheduler)

func WithClock(now func() time.Time) Option {
	return func(s *Scheduler) {
		s.now = now
	}
}

func WithLogger(logger *slog.Logger) Option {
	return func(s *Scheduler) {
		s.logger = logger
	}
}

func NewScheduler(tasks *services.TaskService, notifier Notifier, window time.Duration, opts ...Option) *Scheduler {
	s := &Scheduler{
		tasks:    tasks,
		notifier: notifier,
		window:   window,
		now:      time.Now,
		logger:   slog.Default(),
		seen:     make(map[uint]time.Time),
		notified: make(map[reminderKey]bool),
	}

	for _, opt := range opts {
		opt(s)
	}

	s.since = s.now().UTC()

	return s
}

// Start runs Scan on the given cron schedule, e.g. "@every 1m".
func (s *Scheduler) Start(schedule string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.cron != nil {
		return fmt.Errorf("scheduler already started")
	}

	c := rcron.New()

	_, err := c.AddFunc(schedule, func() {
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		if err := s.Scan(ctx); err != nil {
			s.logger.Error("reminder scan failed", "error", err)
		}
	})

	if err != nil {
		return fmt.Errorf("invalid reminder schedule %q: %w", schedule, err)
	}

	s.cron = c
	c.Start()

	s.logger.Info("reminder scheduler started", "schedule", schedule, "window", s.window)
	return nil
}

// Stop waits for a running scan to finish.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	c := s.cron
	s.cron = nil
	s.mu.Unlock()

	if c == nil {
		return
	}

	<-c.Stop().Done()
	s.logger.Info("reminder scheduler stopped")
}

// Scan sends one round of due-soon and completion notifications.
func (s *Scheduler) Scan(ctx context.Context) error {
	now := s.now().UTC()
	sessions := s.notifier.Sessions()

	if err := s.scanDueSoon(ctx, now, sessions); err != nil {
		return err
	}

	return s.scanCompleted(ctx, now, sessions)
}

func (s *Scheduler) scanDueSoon(ctx context.Context, now time.Time, sessions []models.User) error {
	horizon := now.Add(s.window)

	s.mu.Lock()
	for key := range s.notified {
		if key.dueAt < now.Unix() {
			delete(s.notified, key)
		}
	}
	s.mu.Unlock()

	for _, user := range sessions {
		tasks, err := s.tasks.Query(ctx, user, services.TaskFilter{DueBefore: &horizon, SortBy: services.SortDue})
		if err != nil {
			return err
		}

		var due []types.TaskSummary

		s.mu.Lock()
		for _, task := range tasks {
			if task.Status == models.StatusCompleted || task.DueAt.Before(now) {
				continue
			}

			key := reminderKey{userID: user.ID, taskID: task.ID, dueAt: task.DueAt.Unix()}
			if s.notified[key] {
				continue
			}

			s.notified[key] = true
			due = append(due, types.NewTaskSummary(task))
		}
		s.mu.Unlock()

		if len(due) == 0 {
			continue
		}

		s.notifier.SendTo(user.ID, types.SocketMessage{
			Type:    types.MessageDueSoon,
			Message: fmt.Sprintf("%d task(s) due within %s", len(due), s.window),
			Tasks:   due,
		})

		s.logger.Debug("due soon reminder sent", "user_id", user.ID, "tasks", len(due))
	}

	return nil
}

// scanCompleted announces history entries that moved a task to Completed.
// An entry whose task cannot be loaded is retried on the next scan.
func (s *Scheduler) scanCompleted(ctx context.Context, now time.Time, sessions []models.User) error {
	s.mu.Lock()
	since := s.since
	s.mu.Unlock()

	entries, err := s.tasks.HistorySince(ctx, since)
	if err != nil {
		return err
	}

	var errs []error

	for _, entry := range entries {
		s.mu.Lock()
		_, inspected := s.seen[entry.ID]
		s.mu.Unlock()

		if inspected {
			continue
		}

		if !strings.HasSuffix(entry.Action, "-> "+string(models.StatusCompleted)) {
			s.markSeen(entry.ID, entry.At)
			continue
		}

		task, err := s.tasks.GetByID(ctx, entry.TaskID)
		if err != nil {
			s.logger.Warn("load completed task failed", "task_id", entry.TaskID, "history_id", entry.ID, "error", err)
			errs = append(errs, err)
			continue
		}

		s.markSeen(entry.ID, entry.At)

		if task == nil || task.Status != models.StatusCompleted {
			continue
		}

		msg := types.SocketMessage{
			Type:    types.MessageCompleted,
			Message: fmt.Sprintf("Task %q was completed", task.Title),
			TaskID:  task.ID,
			Tasks:   []types.TaskSummary{types.NewTaskSummary(*task)},
		}

		for _, user := range sessions {
			if user.ID != entry.ActorID && permissions.CanSee(user, *task) {
				s.notifier.SendTo(user.ID, msg)
			}
		}
	}

	next := now.Add(-historySlack)
	if len(errs) > 0 {
		next = since
	}

	s.mu.Lock()
	s.since = next
	for id, at := range s.seen {
		if at.Before(next) {
			delete(s.seen, id)
		}
	}
	s.mu.Unlock()

	return errors.Join(errs...)
}

func (s *Scheduler) markSeen(id uint, at time.Time) {
	s.mu.Lock()
	s.seen[id] = at
	s.mu.Unlock()
}
