package models

// Enum values are persisted as their symbolic names so stored rows survive
// reordering of the constants below.

type Role string

const (
	RoleSuperUser Role = "SuperUser"
	RoleManager   Role = "Manager"
	RoleEmployee  Role = "Employee"
)

func (r Role) Valid() bool {
	switch r {
	case RoleSuperUser, RoleManager, RoleEmployee:
		return true
	}
	return false
}

type Priority string

const (
	PriorityLow      Priority = "Low"
	PriorityMedium   Priority = "Medium"
	PriorityHigh     Priority = "High"
	PriorityCritical Priority = "Critical"
)

// Priorities lists every priority from lowest to highest.
var Priorities = []Priority{PriorityLow, PriorityMedium, PriorityHigh, PriorityCritical}

// Rank returns the ordinal of p, or -1 when p is not a known priority.
func (p Priority) Rank() int {
	for i, candidate := range Priorities {
		if candidate == p {
			return i
		}
	}
	return -1
}

func (p Priority) Valid() bool {
	return p.Rank() >= 0
}

type Status string

const (
	StatusNew        Status = "New"
	StatusInProgress Status = "InProgress"
	StatusBlocked    Status = "Blocked"
	StatusCompleted  Status = "Completed"
)

var Statuses = []Status{StatusNew, StatusInProgress, StatusBlocked, StatusCompleted}

func (s Status) Valid() bool {
	for _, candidate := range Statuses {
		if candidate == s {
			return true
		}
	}
	return false
}
