package models

type User struct {
	BaseModel

	Username     string `gorm:"uniqueIndex;not null"`
	PasswordHash string `gorm:"not null" json:"-"`
	Role         Role   `gorm:"type:varchar(16);not null"`
	ManagerID    *uint  `gorm:"index"`

	// Relationships
	Manager *User `gorm:"foreignKey:ManagerID;constraint:OnUpdate:CASCADE,OnDelete:SET NULL" json:"-"`
}

// ReportsTo reports whether u is a direct report of managerID.
func (u User) ReportsTo(managerID uint) bool {
	return u.ManagerID != nil && *u.ManagerID == managerID
}
