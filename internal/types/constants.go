package types

const (
	ContextUserKey      = "user"
	ContextRequestIDKey = "request_id"

	RequestIDHeader = "X-Request-ID"
	TokenCookieName = "token"
)

// Socket message types pushed to connected dashboards.
const (
	MessageConnected = "connected"
	MessageRefresh   = "refresh"
	MessageDueSoon   = "due_soon"
	MessageCompleted = "completed"
)
