package services

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/dmitrijs2005/drivelink/internal/common"
	"github.com/dmitrijs2005/drivelink/internal/logging"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/oauth2"
)

func newLinkService(t *testing.T, p *fakeProvider, userIDs ...string) (*LinkService, *fakeRepoManager) {
	t.Helper()
	rm := &fakeRepoManager{u: newFakeUsers(userIDs...), c: &fakeConnRepo{}}
	return NewLinkService(nil, rm, p, logging.Nop{}), rm
}

func TestAuthURL(t *testing.T) {
	s, _ := newLinkService(t, &fakeProvider{}, "u1")
	ctx := context.Background()

	u, err := s.AuthURL(ctx, "u1")
	require.NoError(t, err)
	assert.Contains(t, u, "state=u1")
	assert.Contains(t, u, "access_type=offline")

	_, err = s.AuthURL(ctx, "")
	assert.ErrorIs(t, err, common.ErrMissingIdentity)

	_, err = s.AuthURL(ctx, "ghost")
	assert.ErrorIs(t, err, common.ErrUserNotFound)
}

func TestAuthURL_DirectoryFailure(t *testing.T) {
	s, rm := newLinkService(t, &fakeProvider{}, "u1")
	rm.u.existsErr = errors.New("db down")

	_, err := s.AuthURL(context.Background(), "u1")
	assert.ErrorIs(t, err, common.ErrorInternal)
}

func callbackProvider(email string) *fakeProvider {
	return &fakeProvider{
		exchangeTok: &oauth2.Token{AccessToken: "a1", RefreshToken: "r1"},
		email:       email,
	}
}

func TestHandleCallback_Links(t *testing.T) {
	s, rm := newLinkService(t, callbackProvider("a@x.com"), "u1")

	acc, err := s.HandleCallback(context.Background(), "abc", "u1")
	require.NoError(t, err)
	assert.Equal(t, "a@x.com", acc.Email)

	rows, _ := rm.c.FindByUser(context.Background(), "u1")
	require.Len(t, rows, 1)
	assert.Equal(t, "u1", rows[0].UserID)
	assert.Equal(t, "a@x.com", rows[0].Email)
	assert.Equal(t, "r1", rows[0].RefreshToken)
}

func TestHandleCallback_DuplicateEmailAcrossUsers(t *testing.T) {
	s, rm := newLinkService(t, callbackProvider("a@x.com"), "u1", "u2")
	ctx := context.Background()

	_, err := s.HandleCallback(ctx, "abc", "u1")
	require.NoError(t, err)
	before := rm.c.count()

	_, err = s.HandleCallback(ctx, "def", "u2")
	assert.ErrorIs(t, err, common.ErrAlreadyLinked)
	assert.Equal(t, before, rm.c.count(), "no row may be added on conflict")
}

func TestHandleCallback_ConstraintIsAuthoritative(t *testing.T) {
	s, rm := newLinkService(t, callbackProvider("a@x.com"), "u1", "u2")
	ctx := context.Background()

	_, err := s.HandleCallback(ctx, "abc", "u1")
	require.NoError(t, err)

	rm.c.skipExists = true
	_, err = s.HandleCallback(ctx, "def", "u2")
	assert.ErrorIs(t, err, common.ErrAlreadyLinked)
	assert.Equal(t, 1, rm.c.count())
}

func TestHandleCallback_ConcurrentSameEmail(t *testing.T) {
	s, rm := newLinkService(t, callbackProvider("a@x.com"), "u1", "u2")
	rm.c.skipExists = true

	var wg sync.WaitGroup
	errs := make([]error, 2)
	for i, uid := range []string{"u1", "u2"} {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, errs[i] = s.HandleCallback(context.Background(), "code", uid)
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, rm.c.count())
	failures := 0
	for _, err := range errs {
		if err != nil {
			assert.ErrorIs(t, err, common.ErrAlreadyLinked)
			failures++
		}
	}
	assert.Equal(t, 1, failures)
}

func TestHandleCallback_Errors(t *testing.T) {
	ctx := context.Background()

	t.Run("missing code", func(t *testing.T) {
		s, _ := newLinkService(t, callbackProvider("a@x.com"), "u1")
		_, err := s.HandleCallback(ctx, "", "u1")
		assert.ErrorIs(t, err, common.ErrMissingParameter)
	})

	t.Run("missing state", func(t *testing.T) {
		s, _ := newLinkService(t, callbackProvider("a@x.com"), "u1")
		_, err := s.HandleCallback(ctx, "abc", "")
		assert.ErrorIs(t, err, common.ErrMissingParameter)
	})

	t.Run("unknown state", func(t *testing.T) {
		s, _ := newLinkService(t, callbackProvider("a@x.com"), "u1")
		_, err := s.HandleCallback(ctx, "abc", `{"userId":"u1"}`)
		assert.ErrorIs(t, err, common.ErrInvalidState)
	})

	t.Run("exchange failed", func(t *testing.T) {
		p := callbackProvider("a@x.com")
		p.exchangeErr = common.ErrExchangeFailed
		s, rm := newLinkService(t, p, "u1")
		_, err := s.HandleCallback(ctx, "used", "u1")
		assert.ErrorIs(t, err, common.ErrExchangeFailed)
		assert.Zero(t, rm.c.count())
	})

	t.Run("email unavailable", func(t *testing.T) {
		p := callbackProvider("")
		p.emailErr = common.ErrEmailUnavailable
		s, rm := newLinkService(t, p, "u1")
		_, err := s.HandleCallback(ctx, "abc", "u1")
		assert.ErrorIs(t, err, common.ErrEmailUnavailable)
		assert.Zero(t, rm.c.count())
	})

	t.Run("store failure", func(t *testing.T) {
		s, rm := newLinkService(t, callbackProvider("a@x.com"), "u1")
		rm.c.insertErr = errors.New("conn reset")
		_, err := s.HandleCallback(ctx, "abc", "u1")
		assert.ErrorIs(t, err, common.ErrorInternal)
		assert.Zero(t, rm.c.count())
	})
}

func TestValidateToken_LiveTokenUnchanged(t *testing.T) {
	p := &fakeProvider{live: map[string]time.Duration{"live": 20 * time.Minute}, validRT: map[string]string{"r1": "fresh"}}
	s, rm := newLinkService(t, p, "u1")
	require.NoError(t, rm.c.Insert(context.Background(), "u1", "a@x.com", "r1"))

	got, err := s.ValidateToken(context.Background(), ValidateRequest{UserID: "u1", AccessToken: "live"})
	require.NoError(t, err)
	assert.Equal(t, "live", got.AccessToken)
	assert.Equal(t, int64(1200), got.ExpiresIn)
	assert.False(t, got.Refreshed)
	assert.Empty(t, p.refreshCalls, "refresh must not be called for a live token")
}

func TestValidateToken_RefreshesWithStoredToken(t *testing.T) {
	p := &fakeProvider{validRT: map[string]string{"r1": "fresh"}}
	s, rm := newLinkService(t, p, "u1")
	require.NoError(t, rm.c.Insert(context.Background(), "u1", "a@x.com", "r1"))

	got, err := s.ValidateToken(context.Background(), ValidateRequest{UserID: "u1", AccessToken: "expired"})
	require.NoError(t, err)
	assert.Equal(t, "fresh", got.AccessToken)
	assert.NotEqual(t, "expired", got.AccessToken)
	assert.Positive(t, got.ExpiresIn)
	assert.True(t, got.Refreshed)
	assert.Equal(t, []string{"r1"}, p.refreshCalls)
	assert.Equal(t, []string{"u1/a@x.com"}, rm.c.touched)
}

func TestValidateToken_PicksConnectionByEmail(t *testing.T) {
	p := &fakeProvider{validRT: map[string]string{"r1": "fresh1", "r2": "fresh2"}}
	s, rm := newLinkService(t, p, "u1")
	ctx := context.Background()
	require.NoError(t, rm.c.Insert(ctx, "u1", "a@x.com", "r1"))
	require.NoError(t, rm.c.Insert(ctx, "u1", "b@x.com", "r2"))

	got, err := s.ValidateToken(ctx, ValidateRequest{UserID: "u1", AccessToken: "expired"})
	require.NoError(t, err)
	assert.Equal(t, "fresh2", got.AccessToken, "most recent connection by default")

	got, err = s.ValidateToken(ctx, ValidateRequest{UserID: "u1", AccessToken: "expired", Email: "a@x.com"})
	require.NoError(t, err)
	assert.Equal(t, "fresh1", got.AccessToken)

	_, err = s.ValidateToken(ctx, ValidateRequest{UserID: "u1", AccessToken: "expired", Email: "c@x.com"})
	assert.ErrorIs(t, err, common.ErrNoRefreshToken)
}

func TestValidateToken_CallerRefreshToken(t *testing.T) {
	p := &fakeProvider{validRT: map[string]string{"rX": "fresh"}}
	s, rm := newLinkService(t, p, "u1")

	got, err := s.ValidateToken(context.Background(), ValidateRequest{UserID: "u1", AccessToken: "expired", RefreshToken: "rX"})
	require.NoError(t, err)
	assert.Equal(t, "fresh", got.AccessToken)
	assert.Empty(t, rm.c.touched)
}

func TestValidateToken_NoRefreshToken(t *testing.T) {
	s, _ := newLinkService(t, &fakeProvider{}, "u1")

	_, err := s.ValidateToken(context.Background(), ValidateRequest{UserID: "u1", AccessToken: "expired"})
	assert.ErrorIs(t, err, common.ErrNoRefreshToken)
}

func TestValidateToken_Errors(t *testing.T) {
	ctx := context.Background()

	s, rm := newLinkService(t, &fakeProvider{validRT: map[string]string{}}, "u1")

	_, err := s.ValidateToken(ctx, ValidateRequest{AccessToken: "x"})
	assert.ErrorIs(t, err, common.ErrMissingIdentity)

	_, err = s.ValidateToken(ctx, ValidateRequest{UserID: "ghost", AccessToken: "x"})
	assert.ErrorIs(t, err, common.ErrUserNotFound)

	_, err = s.ValidateToken(ctx, ValidateRequest{UserID: "u1", AccessToken: "x", RefreshToken: "revoked"})
	assert.ErrorIs(t, err, common.ErrRefreshFailed)

	rm.c.findErr = errors.New("db down")
	_, err = s.ValidateToken(ctx, ValidateRequest{UserID: "u1", AccessToken: "x"})
	assert.ErrorIs(t, err, common.ErrorInternal)
}

func TestValidateToken_TouchFailureIsNotFatal(t *testing.T) {
	p := &fakeProvider{validRT: map[string]string{"r1": "fresh"}}
	s, rm := newLinkService(t, p, "u1")
	require.NoError(t, rm.c.Insert(context.Background(), "u1", "a@x.com", "r1"))
	rm.c.touchErr = errors.New("db down")

	got, err := s.ValidateToken(context.Background(), ValidateRequest{UserID: "u1", AccessToken: "expired"})
	require.NoError(t, err)
	assert.Equal(t, "fresh", got.AccessToken)
}

func TestRefreshTokensAndHandyInfo(t *testing.T) {
	s, rm := newLinkService(t, &fakeProvider{}, "u1", "u2")
	ctx := context.Background()

	_, err := s.RefreshTokens(ctx, "u1")
	assert.ErrorIs(t, err, common.ErrNoRefreshToken)

	info, err := s.HandyInfo(ctx, "u1")
	require.NoError(t, err)
	assert.Empty(t, info)

	require.NoError(t, rm.c.Insert(ctx, "u1", "a@x.com", "r1"))
	require.NoError(t, rm.c.Insert(ctx, "u1", "b@x.com", "r2"))
	require.NoError(t, rm.c.Insert(ctx, "u2", "c@x.com", "r3"))

	list, err := s.RefreshTokens(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, []string{"r2", "r1"}, list.RefreshTokens)
	assert.Equal(t, []string{"b@x.com", "a@x.com"}, list.Emails)

	info, err = s.HandyInfo(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, []LinkedAccount{{Email: "b@x.com", RefreshToken: "r2"}, {Email: "a@x.com", RefreshToken: "r1"}}, info)

	_, err = s.HandyInfo(ctx, "ghost")
	assert.ErrorIs(t, err, common.ErrUserNotFound)
}

func TestRevokeToken_DeletesResolvedConnection(t *testing.T) {
	p := &fakeProvider{live: map[string]time.Duration{"a1": time.Minute}, infoEmail: "a@x.com"}
	s, rm := newLinkService(t, p, "u1")
	ctx := context.Background()
	require.NoError(t, rm.c.Insert(ctx, "u1", "a@x.com", "r1"))
	require.NoError(t, rm.c.Insert(ctx, "u1", "b@x.com", "r2"))

	res, err := s.RevokeToken(ctx, RevokeRequest{UserID: "u1", AccessToken: "a1"})
	require.NoError(t, err)
	assert.Equal(t, "a@x.com", res.Email)
	assert.Equal(t, int64(1), res.Deleted)

	rows, _ := rm.c.FindByUser(ctx, "u1")
	require.Len(t, rows, 1)
	assert.Equal(t, "b@x.com", rows[0].Email)
}

func TestRevokeToken_AlreadyRevokedKeepsRow(t *testing.T) {
	p := &fakeProvider{live: map[string]time.Duration{"a1": time.Minute}, infoEmail: "a@x.com", revokeErr: common.ErrAlreadyRevoked}
	s, rm := newLinkService(t, p, "u1")
	ctx := context.Background()
	require.NoError(t, rm.c.Insert(ctx, "u1", "a@x.com", "r1"))

	_, err := s.RevokeToken(ctx, RevokeRequest{UserID: "u1", AccessToken: "a1"})
	assert.ErrorIs(t, err, common.ErrAlreadyRevoked)
	assert.Equal(t, 1, rm.c.count())
}

func TestRevokeToken_UpstreamFailureKeepsRow(t *testing.T) {
	p := &fakeProvider{revokeErr: common.ErrUpstream}
	s, rm := newLinkService(t, p, "u1")
	ctx := context.Background()
	require.NoError(t, rm.c.Insert(ctx, "u1", "a@x.com", "r1"))

	_, err := s.RevokeToken(ctx, RevokeRequest{UserID: "u1", AccessToken: "a1"})
	assert.ErrorIs(t, err, common.ErrUpstream)
	assert.Equal(t, 1, rm.c.count())
}

func TestRevokeToken_EmailFallbacks(t *testing.T) {
	ctx := context.Background()

	t.Run("caller email", func(t *testing.T) {
		s, rm := newLinkService(t, &fakeProvider{}, "u1")
		require.NoError(t, rm.c.Insert(ctx, "u1", "a@x.com", "r1"))
		require.NoError(t, rm.c.Insert(ctx, "u1", "b@x.com", "r2"))

		res, err := s.RevokeToken(ctx, RevokeRequest{UserID: "u1", AccessToken: "stale", Email: "a@x.com"})
		require.NoError(t, err)
		assert.Equal(t, int64(1), res.Deleted)
		assert.Equal(t, 1, rm.c.count())
	})

	t.Run("single connection", func(t *testing.T) {
		s, rm := newLinkService(t, &fakeProvider{}, "u1")
		require.NoError(t, rm.c.Insert(ctx, "u1", "a@x.com", "r1"))

		res, err := s.RevokeToken(ctx, RevokeRequest{UserID: "u1", AccessToken: "stale"})
		require.NoError(t, err)
		assert.Equal(t, "a@x.com", res.Email)
		assert.Zero(t, rm.c.count())
	})

	t.Run("ambiguous deletes nothing", func(t *testing.T) {
		s, rm := newLinkService(t, &fakeProvider{}, "u1")
		require.NoError(t, rm.c.Insert(ctx, "u1", "a@x.com", "r1"))
		require.NoError(t, rm.c.Insert(ctx, "u1", "b@x.com", "r2"))

		res, err := s.RevokeToken(ctx, RevokeRequest{UserID: "u1", AccessToken: "stale"})
		require.NoError(t, err)
		assert.Empty(t, res.Email)
		assert.Zero(t, res.Deleted)
		assert.Equal(t, 2, rm.c.count())
	})
}

func TestRevokeToken_OnlyOwnRow(t *testing.T) {
	p := &fakeProvider{live: map[string]time.Duration{"a1": time.Minute}, infoEmail: "a@x.com"}
	s, rm := newLinkService(t, p, "u1", "u2")
	ctx := context.Background()
	require.NoError(t, rm.c.Insert(ctx, "u2", "a@x.com", "r1"))

	res, err := s.RevokeToken(ctx, RevokeRequest{UserID: "u1", AccessToken: "a1"})
	require.NoError(t, err)
	assert.Zero(t, res.Deleted)
	assert.Equal(t, 1, rm.c.count())
}

func TestRevokeToken_Validation(t *testing.T) {
	p := &fakeProvider{}
	s, _ := newLinkService(t, p, "u1")
	ctx := context.Background()

	_, err := s.RevokeToken(ctx, RevokeRequest{AccessToken: "a1"})
	assert.ErrorIs(t, err, common.ErrMissingIdentity)

	_, err = s.RevokeToken(ctx, RevokeRequest{UserID: "ghost", AccessToken: "a1"})
	assert.ErrorIs(t, err, common.ErrUserNotFound)

	_, err = s.RevokeToken(ctx, RevokeRequest{UserID: "u1"})
	assert.ErrorIs(t, err, common.ErrMissingParameter)
	assert.Empty(t, p.revokeCalls)
}

func TestLifetime(t *testing.T) {
	assert.Equal(t, int64(3599), lifetime(&oauth2.Token{ExpiresIn: 3599}))
	got := lifetime(&oauth2.Token{Expiry: time.Now().Add(time.Hour)})
	assert.True(t, got > 3590 && got <= 3600, "got %d", got)
}
