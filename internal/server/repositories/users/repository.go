// Package users declares the user directory: existence checks by identity
// kind plus the lookups the account workflow needs.
package users

import (
	"context"

	"github.com/dmitrijs2005/drivelink/internal/common"
	"github.com/dmitrijs2005/drivelink/internal/server/models"
)

// Kind selects which column an existence check matches against.
type Kind string

const (
	KindID       Kind = common.LookupUserID
	KindUsername Kind = common.LookupUsername
	KindEmail    Kind = common.LookupEmail
)

type Repository interface {
	Exists(ctx context.Context, value string, kind Kind) (bool, error)
	Create(ctx context.Context, user *models.User) (*models.User, error)
	GetByLogin(ctx context.Context, usernameOrEmail string) (*models.User, error)
	GetByEmail(ctx context.Context, email string) (*models.User, error)
	UpdatePasswordHash(ctx context.Context, email string, hash []byte) error
}
