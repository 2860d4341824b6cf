package models

type TaskComment struct {
	BaseModel

	TaskID   uint   `gorm:"not null;index"`
	AuthorID uint   `gorm:"not null;index"`
	Text     string `gorm:"type:text;not null"`

	// Relationships
	Author User `gorm:"foreignKey:AuthorID;constraint:OnUpdate:CASCADE,OnDelete:RESTRICT"`
}
