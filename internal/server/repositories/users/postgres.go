package users

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/dmitrijs2005/drivelink/internal/common"
	"github.com/dmitrijs2005/drivelink/internal/dbx"
	"github.com/dmitrijs2005/drivelink/internal/server/models"
)

type PostgresRepository struct {
	db dbx.DBTX
}

func NewPostgresRepository(db dbx.DBTX) *PostgresRepository {
	return &PostgresRepository{db: db}
}

// ErrUnknownKind is returned by Exists for a kind outside the three known columns.
var ErrUnknownKind = errors.New("unknown identity kind")

func column(kind Kind) (string, error) {
	switch kind {
	case KindID:
		return "id", nil
	case KindUsername:
		return "username", nil
	case KindEmail:
		return "email", nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnknownKind, kind)
	}
}

// Exists reports whether a user matches value in the column named by kind.
// Ids are compared as text so a malformed uuid is simply "not found".
func (r *PostgresRepository) Exists(ctx context.Context, value string, kind Kind) (bool, error) {
	col, err := column(kind)
	if err != nil {
		return false, err
	}

	query := fmt.Sprintf(`SELECT EXISTS (SELECT 1 FROM users WHERE %s::text = $1)`, col)

	var exists bool
	if err := r.db.QueryRowContext(ctx, query, value).Scan(&exists); err != nil {
		return false, fmt.Errorf("db error: %w", err)
	}

	return exists, nil
}

func (r *PostgresRepository) Create(ctx context.Context, user *models.User) (*models.User, error) {

	query :=
		`INSERT INTO users (username, email, name, password_hash)
         VALUES ($1, $2, $3, $4)
		 RETURNING id, created_at
		 `

	err := r.db.QueryRowContext(ctx, query,
		user.UserName, user.Email, user.Name, user.PasswordHash).Scan(&user.ID, &user.CreatedAt)

	if err != nil {
		if dbx.IsUniqueViolation(err) {
			return nil, common.ErrorDuplicate
		}
		return nil, fmt.Errorf("db error: %w", err)
	}

	return user, nil
}

func (r *PostgresRepository) getOne(ctx context.Context, query string, arg string) (*models.User, error) {
	user := &models.User{}
	err := r.db.QueryRowContext(ctx, query, arg).
		Scan(&user.ID, &user.UserName, &user.Email, &user.Name, &user.PasswordHash, &user.CreatedAt)

	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.ErrorNotFound
		}
		return nil, fmt.Errorf("db error: %w", err)
	}

	return user, nil
}

// GetByLogin finds a user whose username or email equals login.
func (r *PostgresRepository) GetByLogin(ctx context.Context, login string) (*models.User, error) {
	query :=
		`SELECT id, username, email, name, password_hash, created_at FROM users
		 WHERE username = $1 OR email = $1
		 LIMIT 1
		 `
	return r.getOne(ctx, query, login)
}

func (r *PostgresRepository) GetByEmail(ctx context.Context, email string) (*models.User, error) {
	query :=
		`SELECT id, username, email, name, password_hash, created_at FROM users
		 WHERE email = $1
		 `
	return r.getOne(ctx, query, email)
}

func (r *PostgresRepository) UpdatePasswordHash(ctx context.Context, email string, hash []byte) error {
	query :=
		`UPDATE users SET password_hash = $1
		 WHERE email = $2
		 `

	res, err := r.db.ExecContext(ctx, query, hash, email)
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	if n == 0 {
		return common.ErrorNotFound
	}

	return nil
}
