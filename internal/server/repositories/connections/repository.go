// Package connections declares the credential store: the persistent mapping
// from (user, linked account email) to a refresh token.
package connections

import (
	"context"

	"github.com/dmitrijs2005/drivelink/internal/server/models"
)

type Repository interface {
	ExistsByEmail(ctx context.Context, email string) (bool, error)
	Insert(ctx context.Context, userID, email, refreshToken string) error
	FindByUser(ctx context.Context, userID string) ([]models.Connection, error)
	Delete(ctx context.Context, userID, email string) (int64, error)
	TouchLastUsed(ctx context.Context, userID, email string) error
}
