package common

// RequestIDHeaderName is the HTTP header carrying the per-request correlation id.
const RequestIDHeaderName = "X-Request-ID"

// Connection lookup kinds accepted by the user directory.
const (
	LookupUserID   = "userId"
	LookupUsername = "username"
	LookupEmail    = "email"
)
