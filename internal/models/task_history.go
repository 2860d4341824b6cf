package models

import (
	"time"

	"gorm.io/datatypes"
)

// TaskHistory is one append-only audit record. TaskID is not a foreign key:
// the trail of a deleted task, including its "Deleted" entry, outlives the
// task row.
type TaskHistory struct {
	ID       uint      `gorm:"primaryKey"`
	TaskID   uint      `gorm:"not null;index"`
	Action   string    `gorm:"not null"`
	ActorID  uint      `gorm:"not null;index"`
	At       time.Time `gorm:"not null;index"`
	Metadata datatypes.JSON
}

func (TaskHistory) TableName() string {
	return "task_history"
}
