// Package httpapi is the gin transport of the gateway: routing, request
// binding, error mapping and the request middleware chain.
package httpapi

import (
	"context"
	"io"
	"net/http"

	"github.com/dmitrijs2005/drivelink/internal/logging"
	"github.com/dmitrijs2005/drivelink/internal/server/drive"
	"github.com/dmitrijs2005/drivelink/internal/server/models"
	"github.com/dmitrijs2005/drivelink/internal/server/services"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type LinkAPI interface {
	AuthURL(ctx context.Context, userID string) (string, error)
	HandleCallback(ctx context.Context, code, state string) (*services.LinkedAccount, error)
	ValidateToken(ctx context.Context, req services.ValidateRequest) (*services.AccessToken, error)
	RefreshTokens(ctx context.Context, userID string) (*services.RefreshTokenList, error)
	HandyInfo(ctx context.Context, userID string) ([]services.LinkedAccount, error)
	RevokeToken(ctx context.Context, req services.RevokeRequest) (*services.RevokeResult, error)
}

type AccountAPI interface {
	Register(ctx context.Context, req services.RegisterRequest) (*models.User, error)
	Login(ctx context.Context, usernameOrEmail, password string) (string, *models.User, error)
	ForgotPassword(ctx context.Context, email string) error
	ResetPassword(ctx context.Context, token, newPassword string) error
}

type FileAPI interface {
	List(ctx context.Context, accessToken string) ([]drive.File, error)
	ListByType(ctx context.Context, accessToken, mimeType string) ([]drive.File, error)
	Recent(ctx context.Context, accessToken string) ([]drive.File, error)
	DriveInfo(ctx context.Context, accessToken string) (*drive.About, error)
	Download(ctx context.Context, accessToken, fileID string) (*drive.Download, error)
	Upload(ctx context.Context, accessToken, name, mimeType, parentID string, content io.Reader) (*drive.File, error)
	Trash(ctx context.Context, accessToken, fileID string) error
	StagingEnabled() bool
	StageDownload(ctx context.Context, accessToken, fileID string) (string, error)
}

// HealthChecker reports whether the service can serve requests.
type HealthChecker interface {
	Serving(ctx context.Context) bool
}

type Handler struct {
	links    LinkAPI
	accounts AccountAPI
	files    FileAPI
	health   HealthChecker
	secret   []byte
	logger   logging.Logger
}

// NewHandler builds the handler set. jwtSecret verifies the optional bearer
// login token on /auth routes.
func NewHandler(l LinkAPI, a AccountAPI, f FileAPI, h HealthChecker, jwtSecret []byte, logger logging.Logger) *Handler {
	return &Handler{
		links:    l,
		accounts: a,
		files:    f,
		health:   h,
		secret:   jwtSecret,
		logger:   logger.With("module", "http"),
	}
}

// Router builds the gin engine with every route of the gateway.
func (h *Handler) Router() *gin.Engine {
	r := gin.New()
	r.Use(requestID(), requestLogging(h.logger), recovery(h.logger), collectMetrics())

	r.GET("/healthz", h.healthz)
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	a := r.Group("/auth", bearerUser(h.secret))
	a.GET("", h.authURL)
	a.GET("/callback", h.callback)
	a.GET("/validate-token", h.validateToken)
	a.GET("/get-refresh-tokens", h.refreshTokens)
	a.POST("/revoke-token", h.revokeToken)
	a.GET("/handyInfo", h.handyInfo)

	u := r.Group("/users")
	u.POST("/register", h.register)
	u.POST("/login", h.login)
	u.POST("/forgot-password", h.forgotPassword)
	u.POST("/reset-password", h.resetPassword)

	f := r.Group("/files")
	f.GET("/files", h.listFiles)
	f.GET("/filesbytypes", h.listFilesByType)
	f.GET("/download", h.download)
	f.POST("/upload", h.upload)
	f.POST("/trash", h.trash)

	d := r.Group("/dashboard")
	d.GET("/driveInfo", h.driveInfo)
	d.GET("/recentFiles", h.recentFiles)

	r.NoRoute(func(c *gin.Context) {
		respondCode(c, http.StatusNotFound, "NOT_FOUND", "route not found")
	})

	return r
}

func (h *Handler) healthz(c *gin.Context) {
	if h.health != nil && !h.health.Serving(c.Request.Context()) {
		c.JSON(http.StatusServiceUnavailable, gin.H{"status": "unavailable"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}
