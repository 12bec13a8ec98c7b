// Package drive wraps the Drive v3 API calls the gateway passes through.
// A drive.Service is built per call from the caller's access token.
package drive

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/dmitrijs2005/drivelink/internal/common"
	"google.golang.org/api/drive/v3"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"
)

const fileFields = "files(id, name, mimeType, size, modifiedTime, parents, webViewLink)"

// ClientFunc returns an HTTP client authorized with accessToken.
type ClientFunc func(ctx context.Context, accessToken string) *http.Client

// File is the file metadata returned to callers.
type File struct {
	ID           string   `json:"id"`
	Name         string   `json:"name"`
	MimeType     string   `json:"mimeType"`
	Size         int64    `json:"size,omitempty"`
	ModifiedTime string   `json:"modifiedTime,omitempty"`
	Parents      []string `json:"parents,omitempty"`
	WebViewLink  string   `json:"webViewLink,omitempty"`
}

// About holds the storage quota and owner of a Drive.
type About struct {
	Email        string `json:"email"`
	DisplayName  string `json:"displayName"`
	Limit        int64  `json:"limit"`
	Usage        int64  `json:"usage"`
	UsageInDrive int64  `json:"usageInDrive"`
	UsageInTrash int64  `json:"usageInTrash"`
}

// Download is an open media stream. The caller closes Body.
type Download struct {
	Name     string
	MimeType string
	Size     int64
	Body     io.ReadCloser
}

type Client struct {
	client   ClientFunc
	endpoint string
}

// New returns a Drive client. An empty endpoint means Google's production API.
func New(client ClientFunc, endpoint string) *Client {
	return &Client{client: client, endpoint: endpoint}
}

func (c *Client) service(ctx context.Context, accessToken string) (*drive.Service, error) {
	opts := []option.ClientOption{option.WithHTTPClient(c.client(ctx, accessToken))}
	if c.endpoint != "" {
		opts = append(opts, option.WithEndpoint(c.endpoint))
	}
	srv, err := drive.NewService(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("drive service: %w", err)
	}
	return srv, nil
}

// upstream tags err as a provider failure. A 404 from Drive maps to
// common.ErrorNotFound and a 401 to common.ErrorUnauthorized.
func upstream(op string, err error) error {
	var gerr *googleapi.Error
	if errors.As(err, &gerr) {
		switch gerr.Code {
		case http.StatusNotFound:
			return fmt.Errorf("%s: %w", op, common.ErrorNotFound)
		case http.StatusUnauthorized:
			return fmt.Errorf("%s: %w", op, common.ErrorUnauthorized)
		}
	}
	return fmt.Errorf("%s: %w: %w", op, common.ErrUpstream, err)
}

func toFiles(list []*drive.File) []File {
	out := make([]File, 0, len(list))
	for _, f := range list {
		out = append(out, File{
			ID:           f.Id,
			Name:         f.Name,
			MimeType:     f.MimeType,
			Size:         f.Size,
			ModifiedTime: f.ModifiedTime,
			Parents:      f.Parents,
			WebViewLink:  f.WebViewLink,
		})
	}
	return out
}

func (c *Client) list(ctx context.Context, accessToken string, q string, orderBy string, pageSize int64) ([]File, error) {
	srv, err := c.service(ctx, accessToken)
	if err != nil {
		return nil, err
	}
	call := srv.Files.List().Fields(googleapi.Field(fileFields)).Context(ctx)
	if q != "" {
		call = call.Q(q)
	}
	if orderBy != "" {
		call = call.OrderBy(orderBy)
	}
	if pageSize > 0 {
		call = call.PageSize(pageSize)
	}
	res, err := call.Do()
	if err != nil {
		return nil, upstream("list files", err)
	}
	return toFiles(res.Files), nil
}

// ListFiles returns the files that are not in the trash.
func (c *Client) ListFiles(ctx context.Context, accessToken string) ([]File, error) {
	return c.list(ctx, accessToken, "trashed=false", "", 0)
}

// ListByMimeType returns non-trashed files of the given MIME type.
func (c *Client) ListByMimeType(ctx context.Context, accessToken, mimeType string) ([]File, error) {
	q := fmt.Sprintf("mimeType='%s' and trashed=false", escapeQuery(mimeType))
	return c.list(ctx, accessToken, q, "", 0)
}

// Recent returns the n most recently modified files.
func (c *Client) Recent(ctx context.Context, accessToken string, n int64) ([]File, error) {
	return c.list(ctx, accessToken, "trashed=false", "modifiedTime desc", n)
}

// About returns quota and owner information.
func (c *Client) About(ctx context.Context, accessToken string) (*About, error) {
	srv, err := c.service(ctx, accessToken)
	if err != nil {
		return nil, err
	}
	res, err := srv.About.Get().Fields("storageQuota", "user").Context(ctx).Do()
	if err != nil {
		return nil, upstream("about", err)
	}
	a := &About{}
	if res.User != nil {
		a.Email = res.User.EmailAddress
		a.DisplayName = res.User.DisplayName
	}
	if q := res.StorageQuota; q != nil {
		a.Limit = q.Limit
		a.Usage = q.Usage
		a.UsageInDrive = q.UsageInDrive
		a.UsageInTrash = q.UsageInDriveTrash
	}
	return a, nil
}

// Download opens the content of fileID.
func (c *Client) Download(ctx context.Context, accessToken, fileID string) (*Download, error) {
	srv, err := c.service(ctx, accessToken)
	if err != nil {
		return nil, err
	}
	meta, err := srv.Files.Get(fileID).Fields("name", "mimeType", "size").Context(ctx).Do()
	if err != nil {
		return nil, upstream("get file", err)
	}
	resp, err := srv.Files.Get(fileID).Context(ctx).Download()
	if err != nil {
		return nil, upstream("download file", err)
	}
	return &Download{Name: meta.Name, MimeType: meta.MimeType, Size: meta.Size, Body: resp.Body}, nil
}

// Upload creates a new file named name under parentID (root when empty).
func (c *Client) Upload(ctx context.Context, accessToken, name, mimeType, parentID string, content io.Reader) (*File, error) {
	srv, err := c.service(ctx, accessToken)
	if err != nil {
		return nil, err
	}
	meta := &drive.File{Name: name, MimeType: mimeType}
	if parentID != "" {
		meta.Parents = []string{parentID}
	}
	res, err := srv.Files.Create(meta).Media(content).Fields("id", "name", "mimeType", "size", "parents").Context(ctx).Do()
	if err != nil {
		return nil, upstream("upload file", err)
	}
	f := toFiles([]*drive.File{res})[0]
	return &f, nil
}

// Trash moves fileID to the trash.
func (c *Client) Trash(ctx context.Context, accessToken, fileID string) error {
	srv, err := c.service(ctx, accessToken)
	if err != nil {
		return err
	}
	if _, err := srv.Files.Update(fileID, &drive.File{Trashed: true}).Context(ctx).Do(); err != nil {
		return upstream("trash file", err)
	}
	return nil
}

func escapeQuery(s string) string {
	out := make([]rune, 0, len(s))
	for _, r := range s {
		if r == '\'' || r == '\\' {
			out = append(out, '\\')
		}
		out = append(out, r)
	}
	return string(out)
}
