package services

import (
	"bytes"
	"context"
	"database/sql"
	"errors"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/dmitrijs2005/drivelink/internal/common"
	"github.com/dmitrijs2005/drivelink/internal/dbx"
	"github.com/dmitrijs2005/drivelink/internal/server/drive"
	"github.com/dmitrijs2005/drivelink/internal/server/models"
	"github.com/dmitrijs2005/drivelink/internal/server/provider"
	connectionsrepo "github.com/dmitrijs2005/drivelink/internal/server/repositories/connections"
	usersrepo "github.com/dmitrijs2005/drivelink/internal/server/repositories/users"
	"golang.org/x/oauth2"
)

func newSQLMockDB(t *testing.T) (*sql.DB, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New error: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db, mock
}

// --- users ---

type fakeUsersRepo struct {
	mu        sync.Mutex
	byID      map[string]*models.User
	existsErr error
	createErr error
	getErr    error
	updateErr error
}

func newFakeUsers(ids ...string) *fakeUsersRepo {
	f := &fakeUsersRepo{byID: map[string]*models.User{}}
	for _, id := range ids {
		f.byID[id] = &models.User{ID: id, UserName: id, Email: id + "@example.com"}
	}
	return f
}

func (f *fakeUsersRepo) Exists(ctx context.Context, value string, kind usersrepo.Kind) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.existsErr != nil {
		return false, f.existsErr
	}
	for _, u := range f.byID {
		switch kind {
		case usersrepo.KindID:
			if u.ID == value {
				return true, nil
			}
		case usersrepo.KindUsername:
			if u.UserName == value {
				return true, nil
			}
		case usersrepo.KindEmail:
			if u.Email == value {
				return true, nil
			}
		}
	}
	return false, nil
}

func (f *fakeUsersRepo) Create(ctx context.Context, u *models.User) (*models.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.createErr != nil {
		return nil, f.createErr
	}
	u.ID = "id-" + u.UserName
	u.CreatedAt = time.Now()
	f.byID[u.ID] = u
	return u, nil
}

func (f *fakeUsersRepo) find(match func(*models.User) bool) (*models.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.getErr != nil {
		return nil, f.getErr
	}
	for _, u := range f.byID {
		if match(u) {
			return u, nil
		}
	}
	return nil, common.ErrorNotFound
}

func (f *fakeUsersRepo) GetByLogin(ctx context.Context, login string) (*models.User, error) {
	return f.find(func(u *models.User) bool { return u.UserName == login || u.Email == login })
}

func (f *fakeUsersRepo) GetByEmail(ctx context.Context, email string) (*models.User, error) {
	return f.find(func(u *models.User) bool { return u.Email == email })
}

func (f *fakeUsersRepo) UpdatePasswordHash(ctx context.Context, email string, hash []byte) error {
	if f.updateErr != nil {
		return f.updateErr
	}
	u, err := f.GetByEmail(ctx, email)
	if err != nil {
		return err
	}
	f.mu.Lock()
	u.PasswordHash = hash
	f.mu.Unlock()
	return nil
}

// --- connections ---

// fakeConnRepo enforces the unique email constraint like the real table.
type fakeConnRepo struct {
	mu        sync.Mutex
	rows      []models.Connection
	touched   []string
	existsErr error
	insertErr error
	findErr   error
	deleteErr error
	touchErr  error
	// skipExists makes ExistsByEmail lie, to exercise the constraint path.
	skipExists bool
}

func (f *fakeConnRepo) ExistsByEmail(ctx context.Context, email string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.existsErr != nil {
		return false, f.existsErr
	}
	if f.skipExists {
		return false, nil
	}
	for _, r := range f.rows {
		if r.Email == email {
			return true, nil
		}
	}
	return false, nil
}

func (f *fakeConnRepo) Insert(ctx context.Context, userID, email, refreshToken string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.insertErr != nil {
		return f.insertErr
	}
	for _, r := range f.rows {
		if r.Email == email {
			return common.ErrorDuplicate
		}
	}
	// newest first, like ORDER BY connected_at DESC
	f.rows = append([]models.Connection{{UserID: userID, Email: email, RefreshToken: refreshToken, ConnectedAt: time.Now()}}, f.rows...)
	return nil
}

func (f *fakeConnRepo) FindByUser(ctx context.Context, userID string) ([]models.Connection, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.findErr != nil {
		return nil, f.findErr
	}
	var out []models.Connection
	for _, r := range f.rows {
		if r.UserID == userID {
			out = append(out, r)
		}
	}
	return out, nil
}

func (f *fakeConnRepo) Delete(ctx context.Context, userID, email string) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.deleteErr != nil {
		return 0, f.deleteErr
	}
	var n int64
	kept := f.rows[:0]
	for _, r := range f.rows {
		if r.UserID == userID && r.Email == email {
			n++
			continue
		}
		kept = append(kept, r)
	}
	f.rows = kept
	return n, nil
}

func (f *fakeConnRepo) TouchLastUsed(ctx context.Context, userID, email string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.touched = append(f.touched, userID+"/"+email)
	return f.touchErr
}

func (f *fakeConnRepo) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.rows)
}

type fakeRepoManager struct {
	u *fakeUsersRepo
	c *fakeConnRepo
}

func (m *fakeRepoManager) RunMigrations(context.Context, *sql.DB) error       { return nil }
func (m *fakeRepoManager) Users(db dbx.DBTX) usersrepo.Repository             { return m.u }
func (m *fakeRepoManager) Connections(db dbx.DBTX) connectionsrepo.Repository { return m.c }

// --- provider ---

type fakeProvider struct {
	mu sync.Mutex

	exchangeTok *oauth2.Token
	exchangeErr error
	email       string
	emailErr    error

	live      map[string]time.Duration // access token -> remaining lifetime
	infoEmail string
	validRT   map[string]string // refresh token -> new access token
	revokeErr error

	refreshCalls []string
	revokeCalls  []string
}

func (p *fakeProvider) AuthURL(state string) string {
	return "https://accounts.example.com/auth?access_type=offline&state=" + state
}

func (p *fakeProvider) Exchange(ctx context.Context, code string) (*oauth2.Token, error) {
	if p.exchangeErr != nil {
		return nil, p.exchangeErr
	}
	return p.exchangeTok, nil
}

func (p *fakeProvider) Refresh(ctx context.Context, rt string) (*oauth2.Token, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.refreshCalls = append(p.refreshCalls, rt)
	at, ok := p.validRT[rt]
	if !ok {
		return nil, errors.Join(common.ErrRefreshFailed, errors.New("invalid_grant"))
	}
	return &oauth2.Token{AccessToken: at, Expiry: time.Now().Add(time.Hour)}, nil
}

func (p *fakeProvider) TokenInfo(ctx context.Context, at string) (*provider.TokenInfo, error) {
	left, ok := p.live[at]
	if !ok {
		return nil, errors.New("token info status: 400 Bad Request")
	}
	return &provider.TokenInfo{Email: p.infoEmail, ExpiresIn: left}, nil
}

func (p *fakeProvider) AccountEmail(ctx context.Context, at string) (string, error) {
	if p.emailErr != nil {
		return "", p.emailErr
	}
	return p.email, nil
}

func (p *fakeProvider) Revoke(ctx context.Context, token string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.revokeCalls = append(p.revokeCalls, token)
	return p.revokeErr
}

// --- drive ---

type fakeDrive struct {
	files    []drive.File
	about    *drive.About
	content  string
	err      error
	gotMime  string
	gotN     int64
	trashed  []string
	uploaded string
}

func (d *fakeDrive) ListFiles(ctx context.Context, at string) ([]drive.File, error) {
	return d.files, d.err
}

func (d *fakeDrive) ListByMimeType(ctx context.Context, at, mimeType string) ([]drive.File, error) {
	d.gotMime = mimeType
	return d.files, d.err
}

func (d *fakeDrive) Recent(ctx context.Context, at string, n int64) ([]drive.File, error) {
	d.gotN = n
	return d.files, d.err
}

func (d *fakeDrive) About(ctx context.Context, at string) (*drive.About, error) {
	return d.about, d.err
}

func (d *fakeDrive) Download(ctx context.Context, at, fileID string) (*drive.Download, error) {
	if d.err != nil {
		return nil, d.err
	}
	return &drive.Download{Name: "hello.txt", MimeType: "text/plain", Size: int64(len(d.content)), Body: io.NopCloser(stringsReader(d.content))}, nil
}

func (d *fakeDrive) Upload(ctx context.Context, at, name, mimeType, parentID string, content io.Reader) (*drive.File, error) {
	if d.err != nil {
		return nil, d.err
	}
	b, _ := io.ReadAll(content)
	d.uploaded = string(b)
	return &drive.File{ID: "new", Name: name, MimeType: mimeType}, nil
}

func (d *fakeDrive) Trash(ctx context.Context, at, fileID string) error {
	d.trashed = append(d.trashed, fileID)
	return d.err
}

// --- mail ---

type fakeMailer struct {
	to, username, link string
	err                error
}

func (m *fakeMailer) SendPasswordReset(ctx context.Context, to, username, link string) error {
	m.to, m.username, m.link = to, username, link
	return m.err
}

func stringsReader(s string) io.Reader { return bytes.NewReader([]byte(s)) }
