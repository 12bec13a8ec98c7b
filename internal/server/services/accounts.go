package services

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/url"
	"time"

	"github.com/dmitrijs2005/drivelink/internal/common"
	"github.com/dmitrijs2005/drivelink/internal/dbx"
	"github.com/dmitrijs2005/drivelink/internal/logging"
	"github.com/dmitrijs2005/drivelink/internal/server/auth"
	"github.com/dmitrijs2005/drivelink/internal/server/config"
	"github.com/dmitrijs2005/drivelink/internal/server/mail"
	"github.com/dmitrijs2005/drivelink/internal/server/models"
	"github.com/dmitrijs2005/drivelink/internal/server/repositories/repomanager"
	"github.com/dmitrijs2005/drivelink/internal/server/repositories/users"
	"golang.org/x/crypto/bcrypt"
)

// RegisterRequest is the input of Register. All fields but Name are required.
type RegisterRequest struct {
	Username string
	Email    string
	Password string
	Name     string
}

// AccountService implements registration, login and the password reset flow.
type AccountService struct {
	db                          *sql.DB
	repomanager                 repomanager.RepositoryManager
	mailer                      mail.Sender
	logger                      logging.Logger
	jwtSecret                   []byte
	resetSecret                 []byte
	accessTokenValidityDuration time.Duration
	resetTokenValidityDuration  time.Duration
	resetPasswordURL            string
	bcryptCost                  int
}

func NewAccountService(db *sql.DB, m repomanager.RepositoryManager, mailer mail.Sender, cfg *config.Config, logger logging.Logger) *AccountService {
	return &AccountService{
		db:                          db,
		repomanager:                 m,
		mailer:                      mailer,
		logger:                      logger.With("module", "accounts"),
		jwtSecret:                   []byte(cfg.SecretKey),
		resetSecret:                 []byte(cfg.ResetPasswordSecret),
		accessTokenValidityDuration: cfg.AccessTokenValidityDuration,
		resetTokenValidityDuration:  cfg.ResetTokenValidityDuration,
		resetPasswordURL:            cfg.ResetPasswordURL,
		bcryptCost:                  bcrypt.DefaultCost,
	}
}

// Register creates a user. The uniqueness checks and the insert share one
// transaction; the UNIQUE constraints catch whatever races past the checks.
func (s *AccountService) Register(ctx context.Context, req RegisterRequest) (*models.User, error) {
	if req.Username == "" || req.Email == "" || req.Password == "" {
		return nil, common.ErrMissingParameter
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), s.bcryptCost)
	if err != nil {
		return nil, fmt.Errorf("%w: hash password: %w", common.ErrorInternal, err)
	}

	var user *models.User
	err = dbx.WithTx(ctx, s.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		repo := s.repomanager.Users(tx)

		for _, check := range []struct {
			value string
			kind  users.Kind
		}{{req.Username, users.KindUsername}, {req.Email, users.KindEmail}} {
			exists, err := repo.Exists(ctx, check.value, check.kind)
			if err != nil {
				return fmt.Errorf("%w: %w", common.ErrorInternal, err)
			}
			if exists {
				return common.ErrUserAlreadyExists
			}
		}

		u, err := repo.Create(ctx, &models.User{
			UserName:     req.Username,
			Email:        req.Email,
			Name:         req.Name,
			PasswordHash: hash,
		})
		if err != nil {
			if errors.Is(err, common.ErrorDuplicate) {
				return common.ErrUserAlreadyExists
			}
			return fmt.Errorf("%w: %w", common.ErrorInternal, err)
		}
		user = u
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info(ctx, "user registered", "user_id", user.ID)
	return user, nil
}

// Login checks the password of the user matching usernameOrEmail and
// returns a signed login token.
func (s *AccountService) Login(ctx context.Context, usernameOrEmail, password string) (string, *models.User, error) {
	if usernameOrEmail == "" || password == "" {
		return "", nil, common.ErrMissingParameter
	}

	user, err := s.repomanager.Users(s.db).GetByLogin(ctx, usernameOrEmail)
	if err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			return "", nil, common.ErrUserNotFound
		}
		return "", nil, fmt.Errorf("%w: %w", common.ErrorInternal, err)
	}

	if err := bcrypt.CompareHashAndPassword(user.PasswordHash, []byte(password)); err != nil {
		return "", nil, common.ErrInvalidPassword
	}

	token, err := auth.GenerateToken(user.ID, s.jwtSecret, s.accessTokenValidityDuration)
	if err != nil {
		return "", nil, fmt.Errorf("%w: %w", common.ErrorInternal, err)
	}
	return token, user, nil
}

// ForgotPassword mails a reset link carrying a short-lived token.
func (s *AccountService) ForgotPassword(ctx context.Context, email string) error {
	if email == "" {
		return common.ErrMissingParameter
	}

	user, err := s.repomanager.Users(s.db).GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			return common.ErrUserNotFound
		}
		return fmt.Errorf("%w: %w", common.ErrorInternal, err)
	}

	token, err := auth.GenerateResetToken(user.Email, s.resetSecret, s.resetTokenValidityDuration)
	if err != nil {
		return fmt.Errorf("%w: %w", common.ErrorInternal, err)
	}

	link := s.resetPasswordURL + "?" + url.Values{"token": {token}}.Encode()
	if err := s.mailer.SendPasswordReset(ctx, user.Email, user.UserName, link); err != nil {
		return fmt.Errorf("%w: %w", common.ErrorInternal, err)
	}
	return nil
}

// ResetPassword sets a new password for the email bound to token.
func (s *AccountService) ResetPassword(ctx context.Context, token, newPassword string) error {
	if token == "" || newPassword == "" {
		return common.ErrMissingParameter
	}

	email, err := auth.GetEmailFromResetToken(token, s.resetSecret)
	if err != nil {
		return err
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(newPassword), s.bcryptCost)
	if err != nil {
		return fmt.Errorf("%w: hash password: %w", common.ErrorInternal, err)
	}

	if err := s.repomanager.Users(s.db).UpdatePasswordHash(ctx, email, hash); err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			return common.ErrUserNotFound
		}
		return fmt.Errorf("%w: %w", common.ErrorInternal, err)
	}

	s.logger.Info(ctx, "password reset", "email", email)
	return nil
}
