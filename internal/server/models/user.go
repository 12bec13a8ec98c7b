// Package models defines server-side data models persisted in the database.
package models

import "time"

// User is a registered account of the gateway.
type User struct {
	ID           string
	UserName     string
	Email        string
	Name         string
	PasswordHash []byte
	CreatedAt    time.Time
}
