package httpapi

import (
	"net/http"
	"runtime/debug"
	"strconv"
	"strings"
	"time"

	"github.com/dmitrijs2005/drivelink/internal/common"
	"github.com/dmitrijs2005/drivelink/internal/logging"
	"github.com/dmitrijs2005/drivelink/internal/server/auth"
	"github.com/dmitrijs2005/drivelink/internal/server/metrics"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

const (
	// RequestIDHeader is echoed on every response.
	RequestIDHeader = common.RequestIDHeaderName

	requestIDKey = "request_id"
	loggerKey    = "logger"
	userIDKey    = "user_id"
)

// requestLogger returns the per-request logger set by logging, or a no-op
// logger outside the middleware chain.
func requestLogger(c *gin.Context) logging.Logger {
	if v, ok := c.Get(loggerKey); ok {
		if l, ok := v.(logging.Logger); ok {
			return l
		}
	}
	return logging.Nop{}
}

// requestID reuses an incoming X-Request-ID or mints a new one.
func requestID() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.GetHeader(RequestIDHeader)
		if id == "" {
			id = uuid.NewString()
		}
		c.Set(requestIDKey, id)
		c.Header(RequestIDHeader, id)
		c.Next()
	}
}

func requestLogging(log logging.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		l := log.With("request_id", c.GetString(requestIDKey))
		c.Set(loggerKey, l)

		start := time.Now()
		c.Next()

		l.Info(c.Request.Context(), "request completed",
			"method", c.Request.Method,
			"path", c.Request.URL.Path,
			"status", c.Writer.Status(),
			"duration", time.Since(start),
			"client_ip", c.ClientIP(),
		)
	}
}

func recovery(log logging.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		defer func() {
			if p := recover(); p != nil {
				log.Error(c.Request.Context(), "panic recovered",
					"panic", p,
					"stack", string(debug.Stack()),
					"method", c.Request.Method,
					"path", c.Request.URL.Path,
				)
				respondCode(c, http.StatusInternalServerError, "INTERNAL", "internal server error")
			}
		}()
		c.Next()
	}
}

func collectMetrics() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}
		metrics.HTTPRequestsTotal.WithLabelValues(route, c.Request.Method, strconv.Itoa(c.Writer.Status())).Inc()
		metrics.HTTPRequestDuration.WithLabelValues(route).Observe(time.Since(start).Seconds())
	}
}

// bearerUser verifies an optional "Authorization: Bearer <login token>" and
// records its user id. Requests without the header pass through untouched.
func bearerUser(secret []byte) gin.HandlerFunc {
	return func(c *gin.Context) {
		header := c.GetHeader("Authorization")
		if header == "" {
			c.Next()
			return
		}

		token, ok := strings.CutPrefix(header, "Bearer ")
		if !ok || token == "" {
			respondCode(c, http.StatusUnauthorized, "UNAUTHORIZED", "malformed authorization header")
			return
		}

		userID, err := auth.GetUserIDFromToken(token, secret)
		if err != nil {
			requestLogger(c).Debug(c.Request.Context(), "bearer token rejected", "error", err)
			respondCode(c, http.StatusUnauthorized, "UNAUTHORIZED", "invalid or expired login token")
			return
		}

		c.Set(userIDKey, userID)
		c.Next()
	}
}

// actingUser returns the user a request acts for. With a verified bearer
// token the token's user wins and an explicit userId must match it.
func actingUser(c *gin.Context, given string) (string, bool) {
	tokenUser := c.GetString(userIDKey)
	if tokenUser == "" {
		return given, true
	}
	if given != "" && given != tokenUser {
		respondCode(c, http.StatusForbidden, "FORBIDDEN", "userId does not match the login token")
		return "", false
	}
	return tokenUser, true
}
