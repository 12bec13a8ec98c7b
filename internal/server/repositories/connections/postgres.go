// Package connections provides a PostgreSQL-backed credential store. Every
// operation is a single statement; the UNIQUE constraint on email guards
// against two concurrent callbacks linking the same account.
package connections

import (
	"context"
	"fmt"

	"github.com/dmitrijs2005/drivelink/internal/common"
	"github.com/dmitrijs2005/drivelink/internal/dbx"
	"github.com/dmitrijs2005/drivelink/internal/server/models"
)

// PostgresRepository implements Repository over dbx.DBTX
// (satisfied by *sql.DB or *sql.Tx).
type PostgresRepository struct {
	db dbx.DBTX
}

// NewPostgresRepository constructs a repository bound to the given DBTX.
func NewPostgresRepository(db dbx.DBTX) *PostgresRepository {
	return &PostgresRepository{db: db}
}

// ExistsByEmail reports whether any user has already linked email.
func (r *PostgresRepository) ExistsByEmail(ctx context.Context, email string) (bool, error) {
	query := `SELECT EXISTS (SELECT 1 FROM connections WHERE email = $1)`

	var exists bool
	if err := r.db.QueryRowContext(ctx, query, email).Scan(&exists); err != nil {
		return false, fmt.Errorf("db error: %w", err)
	}
	return exists, nil
}

// Insert stores a new connection. A unique violation on email is reported
// as common.ErrorDuplicate.
func (r *PostgresRepository) Insert(ctx context.Context, userID, email, refreshToken string) error {
	query := `
		INSERT INTO connections (user_id, email, refresh_token, connected_at)
		VALUES ($1, $2, $3, now())
	`
	if _, err := r.db.ExecContext(ctx, query, userID, email, refreshToken); err != nil {
		if dbx.IsUniqueViolation(err) {
			return common.ErrorDuplicate
		}
		return fmt.Errorf("error performing sql request: %w", err)
	}
	return nil
}

// FindByUser returns every connection of userID, most recently connected first.
func (r *PostgresRepository) FindByUser(ctx context.Context, userID string) ([]models.Connection, error) {
	query := `
		SELECT id, user_id, email, refresh_token, connected_at, last_used
		FROM connections
		WHERE user_id = $1
		ORDER BY connected_at DESC
	`
	rows, err := r.db.QueryContext(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	defer rows.Close()

	var result []models.Connection
	for rows.Next() {
		var c models.Connection
		if err := rows.Scan(&c.ID, &c.UserID, &c.Email, &c.RefreshToken, &c.ConnectedAt, &c.LastUsed); err != nil {
			return nil, fmt.Errorf("db error: %w", err)
		}
		result = append(result, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}

	return result, nil
}

// Delete removes the connection keyed by {userID, email} and returns the
// number of rows removed.
func (r *PostgresRepository) Delete(ctx context.Context, userID, email string) (int64, error) {
	query := `
		DELETE FROM connections
		WHERE user_id = $1 AND email = $2
	`
	res, err := r.db.ExecContext(ctx, query, userID, email)
	if err != nil {
		return 0, fmt.Errorf("db error: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("db error: %w", err)
	}
	return n, nil
}

// TouchLastUsed stamps the advisory last_used column.
func (r *PostgresRepository) TouchLastUsed(ctx context.Context, userID, email string) error {
	query := `
		UPDATE connections SET last_used = now()
		WHERE user_id = $1 AND email = $2
	`
	if _, err := r.db.ExecContext(ctx, query, userID, email); err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	return nil
}
