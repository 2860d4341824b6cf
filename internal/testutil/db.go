package testutil

import (
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/monocle-dev/taskboard/db"
	"github.com/monocle-dev/taskboard/internal/models"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

// NewDB returns a migrated, private in-memory sqlite database that is closed
// when the test ends.
func NewDB(t *testing.T) *gorm.DB {
	t.Helper()

	conn, err := db.Open("sqlite", "file:"+uuid.NewString()+"?mode=memory&cache=shared")
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}

	t.Cleanup(func() {
		if sqlDB, err := conn.DB(); err == nil {
			sqlDB.Close()
		}
	})

	if err := db.MigrateDatabase(conn); err != nil {
		t.Fatalf("migrate: %v", err)
	}

	return conn
}

// Users is the fixture org chart:
//
//	Super (SuperUser)
//	Manager (Manager) -> Alice, Bob
//	OtherManager (Manager) -> Carol
//	Loner (Manager, no reports)
type Users struct {
	Super        models.User
	Manager      models.User
	Alice        models.User
	Bob          models.User
	OtherManager models.User
	Carol        models.User
	Loner        models.User
}

// Password is the password of every fixture user.
const Password = "secret123"

var (
	hashOnce sync.Once
	hash     string
)

func passwordHash(t *testing.T) string {
	t.Helper()

	hashOnce.Do(func() {
		raw, err := bcrypt.GenerateFromPassword([]byte(Password), bcrypt.MinCost)
		if err != nil {
			t.Fatalf("hash password: %v", err)
		}
		hash = string(raw)
	})

	return hash
}

func SeedUsers(t *testing.T, conn *gorm.DB) Users {
	t.Helper()

	var u Users

	create := func(name string, role models.Role, manager *models.User) models.User {
		user := models.User{Username: name, PasswordHash: passwordHash(t), Role: role}
		if manager != nil {
			id := manager.ID
			user.ManagerID = &id
		}
		if err := conn.Create(&user).Error; err != nil {
			t.Fatalf("create user %s: %v", name, err)
		}
		return user
	}

	u.Super = create("super", models.RoleSuperUser, nil)
	u.Manager = create("manager", models.RoleManager, nil)
	u.Alice = create("alice", models.RoleEmployee, &u.Manager)
	u.Bob = create("bob", models.RoleEmployee, &u.Manager)
	u.OtherManager = create("other-manager", models.RoleManager, nil)
	u.Carol = create("carol", models.RoleEmployee, &u.OtherManager)
	u.Loner = create("loner", models.RoleManager, nil)

	return u
}

// All returns every fixture user.
func (u Users) All() []models.User {
	return []models.User{u.Super, u.Manager, u.Alice, u.Bob, u.OtherManager, u.Carol, u.Loner}
}

// Clock is a manually advanced time source.
type Clock struct {
	mu  sync.Mutex
	now time.Time
}

func NewClock(start time.Time) *Clock {
	return &Clock{now: start.UTC()}
}

func (c *Clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *Clock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}
