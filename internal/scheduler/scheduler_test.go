package scheduler_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/monocle-dev/taskboard/db"
	"github.com/monocle-dev/taskboard/internal/models"
	"github.com/monocle-dev/taskboard/internal/scheduler"
	"github.com/monocle-dev/taskboard/internal/services"
	"github.com/monocle-dev/taskboard/internal/testutil"
	"github.com/monocle-dev/taskboard/internal/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

var epoch = time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)

type fakeNotifier struct {
	mu    sync.Mutex
	users []models.User
	sent  map[uint][]types.SocketMessage
}

func newFakeNotifier(users ...models.User) *fakeNotifier {
	return &fakeNotifier{users: users, sent: make(map[uint][]types.SocketMessage)}
}

func (f *fakeNotifier) Sessions() []models.User {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]models.User(nil), f.users...)
}

func (f *fakeNotifier) SendTo(userID uint, msg types.SocketMessage) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sent[userID] = append(f.sent[userID], msg)
}

func (f *fakeNotifier) messages(userID uint) []types.SocketMessage {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.sent[userID]
}

func (f *fakeNotifier) reset() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sent = make(map[uint][]types.SocketMessage)
}

type fixture struct {
	ctx      context.Context
	db       *gorm.DB
	users    testutil.Users
	clock    *testutil.Clock
	svc      *services.TaskService
	notifier *fakeNotifier
	sched    *scheduler.Scheduler
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	conn := testutil.NewDB(t)
	users := testutil.SeedUsers(t, conn)
	clock := testutil.NewClock(epoch)
	svc := services.NewTaskService(conn, services.WithClock(clock.Now))
	notifier := newFakeNotifier(users.Super, users.Manager, users.Alice, users.Bob, users.Carol)

	return &fixture{
		ctx:      context.Background(),
		db:       conn,
		users:    users,
		clock:    clock,
		svc:      svc,
		notifier: notifier,
		sched:    scheduler.NewScheduler(svc, notifier, 30*time.Minute, scheduler.WithClock(clock.Now)),
	}
}

func (f *fixture) create(t *testing.T, actor, assignee models.User, title string, due *time.Time) *models.Task {
	t.Helper()

	task, err := f.svc.Create(f.ctx, actor, services.TaskInput{
		Title:          title,
		Priority:       models.PriorityHigh,
		Status:         models.StatusNew,
		DueAt:          due,
		AssignedUserID: assignee.ID,
	})
	require.NoError(t, err)
	return task
}

func at(d time.Duration) *time.Time {
	due := epoch.Add(d)
	return &due
}

func taskIDs(msg types.SocketMessage) []uint {
	ids := make([]uint, 0, len(msg.Tasks))
	for _, task := range msg.Tasks {
		ids = append(ids, task.ID)
	}
	return ids
}

func TestScanSendsDueSoonToVisibleSessions(t *testing.T) {
	f := newFixture(t)

	soon := f.create(t, f.users.Manager, f.users.Alice, "soon", at(10*time.Minute))
	carols := f.create(t, f.users.Super, f.users.Carol, "carol soon", at(20*time.Minute))
	f.create(t, f.users.Manager, f.users.Bob, "later", at(2*time.Hour))
	f.create(t, f.users.Manager, f.users.Bob, "overdue", at(-time.Hour))
	f.create(t, f.users.Manager, f.users.Bob, "undated", nil)

	require.NoError(t, f.sched.Scan(f.ctx))

	tests := []struct {
		name string
		user models.User
		want []uint
	}{
		{"assignee", f.users.Alice, []uint{soon.ID}},
		{"manager of assignee", f.users.Manager, []uint{soon.ID}},
		{"super sees everything", f.users.Super, []uint{soon.ID, carols.ID}},
		{"foreign employee", f.users.Carol, []uint{carols.ID}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			msgs := f.notifier.messages(tt.user.ID)
			require.Len(t, msgs, 1)
			assert.Equal(t, types.MessageDueSoon, msgs[0].Type)
			assert.Equal(t, tt.want, taskIDs(msgs[0]))
		})
	}

	assert.Empty(t, f.notifier.messages(f.users.Bob.ID))
}

func TestScanDoesNotRepeatDueSoon(t *testing.T) {
	f := newFixture(t)

	f.create(t, f.users.Manager, f.users.Alice, "soon", at(10*time.Minute))

	require.NoError(t, f.sched.Scan(f.ctx))
	require.Len(t, f.notifier.messages(f.users.Alice.ID), 1)

	f.notifier.reset()
	f.clock.Advance(time.Minute)

	require.NoError(t, f.sched.Scan(f.ctx))
	assert.Empty(t, f.notifier.messages(f.users.Alice.ID))
}

func TestScanRemindsAgainWhenDueDateMoves(t *testing.T) {
	f := newFixture(t)

	task := f.create(t, f.users.Manager, f.users.Alice, "soon", at(10*time.Minute))
	require.NoError(t, f.sched.Scan(f.ctx))

	f.notifier.reset()

	_, err := f.svc.Update(f.ctx, f.users.Manager, services.TaskInput{
		ID:             task.ID,
		Title:          task.Title,
		Priority:       task.Priority,
		Status:         task.Status,
		DueAt:          at(25 * time.Minute),
		AssignedUserID: task.AssignedUserID,
	})
	require.NoError(t, err)

	require.NoError(t, f.sched.Scan(f.ctx))
	assert.Len(t, f.notifier.messages(f.users.Alice.ID), 1)
}

func TestScanSkipsCompletedTasksForDueSoon(t *testing.T) {
	f := newFixture(t)

	task := f.create(t, f.users.Manager, f.users.Alice, "soon", at(10*time.Minute))

	_, err := f.svc.Update(f.ctx, f.users.Alice, services.TaskInput{
		ID:             task.ID,
		Title:          task.Title,
		Priority:       task.Priority,
		Status:         models.StatusCompleted,
		DueAt:          task.DueAt,
		AssignedUserID: task.AssignedUserID,
	})
	require.NoError(t, err)

	require.NoError(t, f.sched.Scan(f.ctx))

	for _, msg := range f.notifier.messages(f.users.Manager.ID) {
		assert.NotEqual(t, types.MessageDueSoon, msg.Type)
	}
}

func TestScanAnnouncesCompletionToOtherViewers(t *testing.T) {
	f := newFixture(t)

	task := f.create(t, f.users.Manager, f.users.Alice, "report", nil)
	f.clock.Advance(time.Minute)

	_, err := f.svc.Update(f.ctx, f.users.Alice, services.TaskInput{
		ID:             task.ID,
		Title:          task.Title,
		Priority:       task.Priority,
		Status:         models.StatusCompleted,
		AssignedUserID: task.AssignedUserID,
	})
	require.NoError(t, err)

	require.NoError(t, f.sched.Scan(f.ctx))

	for _, viewer := range []models.User{f.users.Manager, f.users.Super} {
		msgs := f.notifier.messages(viewer.ID)
		require.Len(t, msgs, 1, viewer.Username)
		assert.Equal(t, types.MessageCompleted, msgs[0].Type)
		assert.Equal(t, task.ID, msgs[0].TaskID)
	}

	assert.Empty(t, f.notifier.messages(f.users.Alice.ID), "actor is not notified")
	assert.Empty(t, f.notifier.messages(f.users.Carol.ID))
	assert.Empty(t, f.notifier.messages(f.users.Bob.ID))

	f.notifier.reset()
	f.clock.Advance(time.Minute)

	require.NoError(t, f.sched.Scan(f.ctx))
	assert.Empty(t, f.notifier.messages(f.users.Manager.ID))
}

func TestScanIgnoresCompletionOfDeletedTask(t *testing.T) {
	f := newFixture(t)

	task := f.create(t, f.users.Manager, f.users.Alice, "report", nil)

	_, err := f.svc.Update(f.ctx, f.users.Alice, services.TaskInput{
		ID:             task.ID,
		Title:          task.Title,
		Priority:       task.Priority,
		Status:         models.StatusCompleted,
		AssignedUserID: task.AssignedUserID,
	})
	require.NoError(t, err)
	require.NoError(t, f.svc.Delete(f.ctx, f.users.Manager, task.ID))

	require.NoError(t, f.sched.Scan(f.ctx))
	assert.Empty(t, f.notifier.messages(f.users.Manager.ID))
	assert.Empty(t, f.notifier.messages(f.users.Super.ID))
}

func TestStartRejectsBadSchedule(t *testing.T) {
	f := newFixture(t)

	assert.Error(t, f.sched.Start("every now and then"))

	require.NoError(t, f.sched.Start("@every 1h"))
	assert.Error(t, f.sched.Start("@every 1h"))
	f.sched.Stop()
	f.sched.Stop()
}

func TestScanAnnouncesCompletionCommittedLate(t *testing.T) {
	f := newFixture(t)

	task, err := f.svc.Create(f.ctx, f.users.Manager, services.TaskInput{
		Title:          "late",
		Status:         models.StatusCompleted,
		AssignedUserID: f.users.Alice.ID,
	})
	require.NoError(t, err)

	f.clock.Advance(10 * time.Second)
	require.NoError(t, f.db.Create(&models.TaskHistory{
		ID: 100, TaskID: task.ID, ActorID: f.users.Alice.ID, Action: services.ActionCommentAdded, At: f.clock.Now(),
	}).Error)

	require.NoError(t, f.sched.Scan(f.ctx))
	assert.Empty(t, f.notifier.messages(f.users.Manager.ID))

	// A transaction that took a lower id commits after the scan above.
	require.NoError(t, f.db.Create(&models.TaskHistory{
		ID: 50, TaskID: task.ID, ActorID: f.users.Alice.ID, Action: "Status InProgress -> Completed", At: f.clock.Now(),
	}).Error)

	f.clock.Advance(30 * time.Second)
	require.NoError(t, f.sched.Scan(f.ctx))

	msgs := f.notifier.messages(f.users.Manager.ID)
	require.Len(t, msgs, 1)
	assert.Equal(t, types.MessageCompleted, msgs[0].Type)
	assert.Equal(t, task.ID, msgs[0].TaskID)

	f.notifier.reset()
	f.clock.Advance(10 * time.Second)

	require.NoError(t, f.sched.Scan(f.ctx))
	assert.Empty(t, f.notifier.messages(f.users.Manager.ID))
}

func TestScanRetriesCompletionAfterLoadFailure(t *testing.T) {
	f := newFixture(t)

	first := f.create(t, f.users.Manager, f.users.Alice, "first", nil)
	second := f.create(t, f.users.Manager, f.users.Bob, "second", nil)
	f.clock.Advance(time.Minute)

	for _, task := range []*models.Task{first, second} {
		_, err := f.svc.Update(f.ctx, f.users.Super, services.TaskInput{
			ID:             task.ID,
			Title:          task.Title,
			Priority:       task.Priority,
			Status:         models.StatusCompleted,
			AssignedUserID: task.AssignedUserID,
		})
		require.NoError(t, err)
	}

	require.NoError(t, f.db.Migrator().DropTable(&models.TaskComment{}))

	assert.Error(t, f.sched.Scan(f.ctx))
	assert.Empty(t, f.notifier.messages(f.users.Manager.ID))

	require.NoError(t, db.MigrateDatabase(f.db))
	f.clock.Advance(5 * time.Minute)

	require.NoError(t, f.sched.Scan(f.ctx))

	msgs := f.notifier.messages(f.users.Manager.ID)
	require.Len(t, msgs, 2)
	assert.ElementsMatch(t, []uint{first.ID, second.ID}, []uint{msgs[0].TaskID, msgs[1].TaskID})

	f.notifier.reset()
	f.clock.Advance(time.Minute)

	require.NoError(t, f.sched.Scan(f.ctx))
	assert.Empty(t, f.notifier.messages(f.users.Manager.ID))
}
