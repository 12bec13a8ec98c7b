package httpapi

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/dmitrijs2005/drivelink/internal/logging"
	"github.com/dmitrijs2005/drivelink/internal/server/drive"
	"github.com/dmitrijs2005/drivelink/internal/server/models"
	"github.com/dmitrijs2005/drivelink/internal/server/services"
	"github.com/gin-gonic/gin"
)

var testSecret = []byte("test-secret")

func init() {
	gin.SetMode(gin.TestMode)
}

type fakeLinks struct {
	url       string
	linked    *services.LinkedAccount
	token     *services.AccessToken
	list      *services.RefreshTokenList
	accounts  []services.LinkedAccount
	revoked   *services.RevokeResult
	err       error
	gotVal    services.ValidateRequest
	gotRevoke services.RevokeRequest
	gotUser   string
}

func (f *fakeLinks) AuthURL(ctx context.Context, userID string) (string, error) {
	f.gotUser = userID
	return f.url, f.err
}

func (f *fakeLinks) HandleCallback(ctx context.Context, code, state string) (*services.LinkedAccount, error) {
	return f.linked, f.err
}

func (f *fakeLinks) ValidateToken(ctx context.Context, req services.ValidateRequest) (*services.AccessToken, error) {
	f.gotVal = req
	return f.token, f.err
}

func (f *fakeLinks) RefreshTokens(ctx context.Context, userID string) (*services.RefreshTokenList, error) {
	return f.list, f.err
}

func (f *fakeLinks) HandyInfo(ctx context.Context, userID string) ([]services.LinkedAccount, error) {
	f.gotUser = userID
	return f.accounts, f.err
}

func (f *fakeLinks) RevokeToken(ctx context.Context, req services.RevokeRequest) (*services.RevokeResult, error) {
	f.gotRevoke = req
	return f.revoked, f.err
}

type fakeAccounts struct {
	user     *models.User
	token    string
	err      error
	gotReg   services.RegisterRequest
	gotEmail string
}

func (f *fakeAccounts) Register(ctx context.Context, req services.RegisterRequest) (*models.User, error) {
	f.gotReg = req
	return f.user, f.err
}

func (f *fakeAccounts) Login(ctx context.Context, usernameOrEmail, password string) (string, *models.User, error) {
	return f.token, f.user, f.err
}

func (f *fakeAccounts) ForgotPassword(ctx context.Context, email string) error {
	f.gotEmail = email
	return f.err
}

func (f *fakeAccounts) ResetPassword(ctx context.Context, token, newPassword string) error {
	return f.err
}

type fakeFiles struct {
	files     []drive.File
	about     *drive.About
	content   string
	staging   bool
	stagedURL string
	err       error
	gotMime   string
	uploaded  string
	upName    string
	upParent  string
	trashed   string
}

func (f *fakeFiles) List(ctx context.Context, accessToken string) ([]drive.File, error) {
	return f.files, f.err
}

func (f *fakeFiles) ListByType(ctx context.Context, accessToken, mimeType string) ([]drive.File, error) {
	f.gotMime = mimeType
	return f.files, f.err
}

func (f *fakeFiles) Recent(ctx context.Context, accessToken string) ([]drive.File, error) {
	return f.files, f.err
}

func (f *fakeFiles) DriveInfo(ctx context.Context, accessToken string) (*drive.About, error) {
	return f.about, f.err
}

func (f *fakeFiles) Download(ctx context.Context, accessToken, fileID string) (*drive.Download, error) {
	if f.err != nil {
		return nil, f.err
	}
	return &drive.Download{
		Name:     "report.pdf",
		MimeType: "application/pdf",
		Size:     int64(len(f.content)),
		Body:     io.NopCloser(bytes.NewReader([]byte(f.content))),
	}, nil
}

func (f *fakeFiles) Upload(ctx context.Context, accessToken, name, mimeType, parentID string, content io.Reader) (*drive.File, error) {
	if f.err != nil {
		return nil, f.err
	}
	b, _ := io.ReadAll(content)
	f.uploaded, f.upName, f.upParent = string(b), name, parentID
	return &drive.File{ID: "new", Name: name}, nil
}

func (f *fakeFiles) Trash(ctx context.Context, accessToken, fileID string) error {
	f.trashed = fileID
	return f.err
}

func (f *fakeFiles) StagingEnabled() bool { return f.staging }

func (f *fakeFiles) StageDownload(ctx context.Context, accessToken, fileID string) (string, error) {
	return f.stagedURL, f.err
}

type fakeHealth struct{ ok bool }

func (h fakeHealth) Serving(context.Context) bool { return h.ok }

func newTestRouter(l *fakeLinks, a *fakeAccounts, f *fakeFiles) *gin.Engine {
	if l == nil {
		l = &fakeLinks{}
	}
	if a == nil {
		a = &fakeAccounts{}
	}
	if f == nil {
		f = &fakeFiles{}
	}
	return NewHandler(l, a, f, fakeHealth{ok: true}, testSecret, logging.Nop{}).Router()
}

func do(t *testing.T, r http.Handler, method, target string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var rd io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("marshal: %v", err)
		}
		rd = bytes.NewReader(b)
	}
	req := httptest.NewRequest(method, target, rd)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

// doRaw sends body verbatim as JSON, for malformed payloads.
func doRaw(t *testing.T, r http.Handler, method, target, body string, header map[string]string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, target, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	for k, v := range header {
		req.Header.Set(k, v)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func decodeError(t *testing.T, w *httptest.ResponseRecorder) ErrorResponse {
	t.Helper()
	var e ErrorResponse
	if err := json.Unmarshal(w.Body.Bytes(), &e); err != nil {
		t.Fatalf("decode error body %q: %v", w.Body.String(), err)
	}
	return e
}
