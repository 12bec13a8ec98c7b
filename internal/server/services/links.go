// Package services contains server-side business logic. LinkService owns the
// OAuth token lifecycle: consent URL, callback exchange, validation with
// transparent refresh, and revocation of linked Drive accounts.
package services

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/dmitrijs2005/drivelink/internal/common"
	"github.com/dmitrijs2005/drivelink/internal/logging"
	"github.com/dmitrijs2005/drivelink/internal/server/metrics"
	"github.com/dmitrijs2005/drivelink/internal/server/provider"
	"github.com/dmitrijs2005/drivelink/internal/server/repositories/repomanager"
	"github.com/dmitrijs2005/drivelink/internal/server/repositories/users"
	"golang.org/x/oauth2"
)

// OAuthProvider is the subset of the identity provider the link flow needs.
type OAuthProvider interface {
	AuthURL(state string) string
	Exchange(ctx context.Context, code string) (*oauth2.Token, error)
	Refresh(ctx context.Context, refreshToken string) (*oauth2.Token, error)
	TokenInfo(ctx context.Context, accessToken string) (*provider.TokenInfo, error)
	AccountEmail(ctx context.Context, accessToken string) (string, error)
	Revoke(ctx context.Context, token string) error
}

// AccessToken is a usable access token and its remaining lifetime in seconds.
// It is handed back to the caller and never stored.
type AccessToken struct {
	AccessToken string `json:"accessToken"`
	ExpiresIn   int64  `json:"expiresIn"`
	Refreshed   bool   `json:"refreshed"`
}

// ValidateRequest carries the inputs of ValidateToken. RefreshToken and
// Email are optional.
type ValidateRequest struct {
	UserID       string
	AccessToken  string
	RefreshToken string
	Email        string
}

// RevokeRequest carries the inputs of RevokeToken. Email is optional and only
// used when the provider probe cannot resolve it.
type RevokeRequest struct {
	UserID      string
	AccessToken string
	Email       string
}

// RevokeResult reports which connection was removed.
type RevokeResult struct {
	Email   string `json:"email"`
	Deleted int64  `json:"deleted"`
}

// LinkedAccount is one linked Drive account with its refresh token.
type LinkedAccount struct {
	Email        string `json:"email"`
	RefreshToken string `json:"refreshToken"`
}

// RefreshTokenList holds parallel lists of a user's refresh tokens and emails,
// most recently connected first.
type RefreshTokenList struct {
	RefreshTokens []string `json:"refreshTokens"`
	Emails        []string `json:"emails"`
}

type LinkService struct {
	db          *sql.DB
	repomanager repomanager.RepositoryManager
	provider    OAuthProvider
	logger      logging.Logger
}

func NewLinkService(db *sql.DB, m repomanager.RepositoryManager, p OAuthProvider, logger logging.Logger) *LinkService {
	return &LinkService{
		db:          db,
		repomanager: m,
		provider:    p,
		logger:      logger.With("module", "links"),
	}
}

// requireUser maps a missing or unknown id to the given sentinels.
func (s *LinkService) requireUser(ctx context.Context, userID string, missing, unknown error) error {
	if userID == "" {
		return missing
	}
	ok, err := s.repomanager.Users(s.db).Exists(ctx, userID, users.KindID)
	if err != nil {
		return fmt.Errorf("%w: user lookup: %w", common.ErrorInternal, err)
	}
	if !ok {
		return unknown
	}
	return nil
}

// AuthURL returns the consent URL for userID with state set to the id itself.
func (s *LinkService) AuthURL(ctx context.Context, userID string) (string, error) {
	if err := s.requireUser(ctx, userID, common.ErrMissingIdentity, common.ErrUserNotFound); err != nil {
		return "", err
	}
	return s.provider.AuthURL(userID), nil
}

// HandleCallback completes the authorization-code flow for the user named by
// state and links the resolved account. It writes exactly one connection row
// or none.
func (s *LinkService) HandleCallback(ctx context.Context, code, state string) (*LinkedAccount, error) {
	if code == "" || state == "" {
		return nil, common.ErrMissingParameter
	}
	if err := s.requireUser(ctx, state, common.ErrMissingParameter, common.ErrInvalidState); err != nil {
		return nil, err
	}

	tok, err := s.provider.Exchange(ctx, code)
	if err != nil {
		metrics.LinkAttemptsTotal.WithLabelValues("exchange_failed").Inc()
		return nil, err
	}

	email, err := s.provider.AccountEmail(ctx, tok.AccessToken)
	if err != nil {
		metrics.LinkAttemptsTotal.WithLabelValues("email_unavailable").Inc()
		return nil, err
	}

	repo := s.repomanager.Connections(s.db)

	linked, err := repo.ExistsByEmail(ctx, email)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", common.ErrorInternal, err)
	}
	if linked {
		metrics.LinkAttemptsTotal.WithLabelValues("already_linked").Inc()
		return nil, common.ErrAlreadyLinked
	}

	if err := repo.Insert(ctx, state, email, tok.RefreshToken); err != nil {
		if errors.Is(err, common.ErrorDuplicate) {
			metrics.LinkAttemptsTotal.WithLabelValues("already_linked").Inc()
			return nil, common.ErrAlreadyLinked
		}
		return nil, fmt.Errorf("%w: %w", common.ErrorInternal, err)
	}

	metrics.LinkAttemptsTotal.WithLabelValues("ok").Inc()
	s.logger.Info(ctx, "account linked", "user_id", state, "email", email)

	return &LinkedAccount{Email: email}, nil
}

// ValidateToken returns req.AccessToken unchanged while the provider still
// accepts it. Otherwise it refreshes, using the caller's refresh token or the
// stored one for req.Email (the most recent connection when Email is empty).
func (s *LinkService) ValidateToken(ctx context.Context, req ValidateRequest) (*AccessToken, error) {
	if err := s.requireUser(ctx, req.UserID, common.ErrMissingIdentity, common.ErrUserNotFound); err != nil {
		return nil, err
	}

	if req.AccessToken != "" {
		info, err := s.provider.TokenInfo(ctx, req.AccessToken)
		if err == nil {
			metrics.TokenValidationsTotal.WithLabelValues("live").Inc()
			return &AccessToken{AccessToken: req.AccessToken, ExpiresIn: int64(info.ExpiresIn / time.Second)}, nil
		}
		s.logger.Debug(ctx, "access token probe failed, refreshing", "user_id", req.UserID, "error", err)
	}

	refreshToken, storedEmail, err := s.pickRefreshToken(ctx, req)
	if err != nil {
		metrics.TokenValidationsTotal.WithLabelValues("failed").Inc()
		return nil, err
	}

	tok, err := s.provider.Refresh(ctx, refreshToken)
	if err != nil {
		metrics.TokenValidationsTotal.WithLabelValues("failed").Inc()
		return nil, err
	}

	if storedEmail != "" {
		if err := s.repomanager.Connections(s.db).TouchLastUsed(ctx, req.UserID, storedEmail); err != nil {
			s.logger.Warn(ctx, "failed to update last_used", "user_id", req.UserID, "error", err)
		}
	}

	metrics.TokenValidationsTotal.WithLabelValues("refreshed").Inc()
	return &AccessToken{AccessToken: tok.AccessToken, ExpiresIn: lifetime(tok), Refreshed: true}, nil
}

// pickRefreshToken returns the refresh token to use and, when it came from
// the store, the email of its connection.
func (s *LinkService) pickRefreshToken(ctx context.Context, req ValidateRequest) (string, string, error) {
	if req.RefreshToken != "" {
		return req.RefreshToken, "", nil
	}

	conns, err := s.repomanager.Connections(s.db).FindByUser(ctx, req.UserID)
	if err != nil {
		return "", "", fmt.Errorf("%w: %w", common.ErrorInternal, err)
	}

	for _, c := range conns {
		if req.Email == "" || c.Email == req.Email {
			return c.RefreshToken, c.Email, nil
		}
	}
	return "", "", common.ErrNoRefreshToken
}

func lifetime(tok *oauth2.Token) int64 {
	if tok.Expiry.IsZero() {
		return tok.ExpiresIn
	}
	return int64(time.Until(tok.Expiry).Round(time.Second) / time.Second)
}

// RefreshTokens lists the user's refresh tokens and emails.
func (s *LinkService) RefreshTokens(ctx context.Context, userID string) (*RefreshTokenList, error) {
	accounts, err := s.linkedAccounts(ctx, userID)
	if err != nil {
		return nil, err
	}
	if len(accounts) == 0 {
		return nil, common.ErrNoRefreshToken
	}

	out := &RefreshTokenList{
		RefreshTokens: make([]string, 0, len(accounts)),
		Emails:        make([]string, 0, len(accounts)),
	}
	for _, a := range accounts {
		out.RefreshTokens = append(out.RefreshTokens, a.RefreshToken)
		out.Emails = append(out.Emails, a.Email)
	}
	return out, nil
}

// HandyInfo lists the user's linked accounts. An empty result is not an error.
func (s *LinkService) HandyInfo(ctx context.Context, userID string) ([]LinkedAccount, error) {
	return s.linkedAccounts(ctx, userID)
}

func (s *LinkService) linkedAccounts(ctx context.Context, userID string) ([]LinkedAccount, error) {
	if err := s.requireUser(ctx, userID, common.ErrMissingIdentity, common.ErrUserNotFound); err != nil {
		return nil, err
	}

	conns, err := s.repomanager.Connections(s.db).FindByUser(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", common.ErrorInternal, err)
	}

	out := make([]LinkedAccount, 0, len(conns))
	for _, c := range conns {
		out = append(out, LinkedAccount{Email: c.Email, RefreshToken: c.RefreshToken})
	}
	return out, nil
}

// RevokeToken revokes req.AccessToken with the provider and deletes the
// connection keyed by {userID, email}. A token the provider already considers
// invalid yields common.ErrAlreadyRevoked and nothing is deleted.
func (s *LinkService) RevokeToken(ctx context.Context, req RevokeRequest) (*RevokeResult, error) {
	if err := s.requireUser(ctx, req.UserID, common.ErrMissingIdentity, common.ErrUserNotFound); err != nil {
		return nil, err
	}
	if req.AccessToken == "" {
		return nil, common.ErrMissingParameter
	}

	email := s.resolveEmail(ctx, req)

	if err := s.provider.Revoke(ctx, req.AccessToken); err != nil {
		if errors.Is(err, common.ErrAlreadyRevoked) {
			metrics.RevocationsTotal.WithLabelValues("already_revoked").Inc()
		} else {
			metrics.RevocationsTotal.WithLabelValues("failed").Inc()
		}
		return nil, err
	}

	result := &RevokeResult{Email: email}
	if email == "" {
		s.logger.Warn(ctx, "token revoked but no connection email resolved", "user_id", req.UserID)
		metrics.RevocationsTotal.WithLabelValues("revoked").Inc()
		return result, nil
	}

	n, err := s.repomanager.Connections(s.db).Delete(ctx, req.UserID, email)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", common.ErrorInternal, err)
	}
	result.Deleted = n

	metrics.RevocationsTotal.WithLabelValues("revoked").Inc()
	s.logger.Info(ctx, "account unlinked", "user_id", req.UserID, "email", email, "deleted", n)
	return result, nil
}

// resolveEmail finds the connection email for a revoke: the provider probe
// first, then the caller's hint, then the user's only connection.
func (s *LinkService) resolveEmail(ctx context.Context, req RevokeRequest) string {
	info, err := s.provider.TokenInfo(ctx, req.AccessToken)
	if err == nil && info.Email != "" {
		return info.Email
	}
	s.logger.Warn(ctx, "could not resolve email from access token", "user_id", req.UserID, "error", err)

	if req.Email != "" {
		return req.Email
	}

	conns, err := s.repomanager.Connections(s.db).FindByUser(ctx, req.UserID)
	if err != nil {
		s.logger.Warn(ctx, "connection lookup failed", "user_id", req.UserID, "error", err)
		return ""
	}
	if len(conns) == 1 {
		return conns[0].Email
	}
	return ""
}
