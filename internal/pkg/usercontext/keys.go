package usercontext

// Shared Locals keys and headers used across controllers and middlewares
const (
	KeyUserContext   = "USER_CONTEXT"
	KeyUserID        = "user_id"
	KeyIsAdmin       = "isAdmin"
	KeyFromProtected = "from_protected"

	// Headers set by the upstream auth layer
	HeaderUserID  = "X-User-ID"
	HeaderIsAdmin = "X-User-Admin"
)
