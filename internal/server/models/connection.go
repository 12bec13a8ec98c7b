package models

import (
	"database/sql"
	"time"
)

// Connection links one user to one external Drive account. Email is unique
// across all connections regardless of owner.
type Connection struct {
	ID           string
	UserID       string
	Email        string
	RefreshToken string
	ConnectedAt  time.Time
	// LastUsed is advisory and unset until a stored refresh token is used.
	LastUsed sql.NullTime
}
