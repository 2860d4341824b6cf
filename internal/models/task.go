package models

import "time"

type Task struct {
	BaseModel

	Title          string     `gorm:"not null"`
	Description    *string    `gorm:"type:text"`
	Priority       Priority   `gorm:"type:varchar(16);not null;index"`
	Status         Status     `gorm:"type:varchar(16);not null;index"`
	DueAt          *time.Time `gorm:"index"`
	AssignedUserID uint       `gorm:"not null;index"`

	// Relationships
	AssignedUser User          `gorm:"foreignKey:AssignedUserID;constraint:OnUpdate:CASCADE,OnDelete:RESTRICT"`
	Comments     []TaskComment `gorm:"foreignKey:TaskID;constraint:OnUpdate:CASCADE,OnDelete:CASCADE"`
}
