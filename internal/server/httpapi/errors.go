package httpapi

import (
	"errors"
	"net/http"

	"github.com/dmitrijs2005/drivelink/internal/common"
	"github.com/gin-gonic/gin"
)

// ErrorResponse is the body of every non-2xx reply.
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}

type errorMapping struct {
	err    error
	status int
	code   string
}

// errorMappings is checked in order; the first errors.Is match wins.
var errorMappings = []errorMapping{
	{common.ErrMissingIdentity, http.StatusBadRequest, "MISSING_IDENTITY"},
	{common.ErrMissingParameter, http.StatusBadRequest, "MISSING_PARAMETER"},
	{common.ErrInvalidState, http.StatusBadRequest, "INVALID_STATE"},
	{common.ErrTokenExpired, http.StatusBadRequest, "TOKEN_EXPIRED"},
	{common.ErrInvalidToken, http.StatusBadRequest, "INVALID_TOKEN"},
	{common.ErrAlreadyRevoked, http.StatusBadRequest, "ALREADY_REVOKED"},

	{common.ErrInvalidPassword, http.StatusUnauthorized, "INVALID_PASSWORD"},
	{common.ErrorUnauthorized, http.StatusUnauthorized, "UNAUTHORIZED"},

	{common.ErrUserNotFound, http.StatusNotFound, "USER_NOT_FOUND"},
	{common.ErrNoRefreshToken, http.StatusNotFound, "NO_REFRESH_TOKEN"},
	{common.ErrorNotFound, http.StatusNotFound, "NOT_FOUND"},

	{common.ErrAlreadyLinked, http.StatusConflict, "ALREADY_LINKED"},
	{common.ErrUserAlreadyExists, http.StatusConflict, "USER_ALREADY_EXISTS"},

	{common.ErrExchangeFailed, http.StatusInternalServerError, "EXCHANGE_FAILED"},
	{common.ErrEmailUnavailable, http.StatusInternalServerError, "EMAIL_UNAVAILABLE"},
	{common.ErrRefreshFailed, http.StatusInternalServerError, "REFRESH_FAILED"},
	{common.ErrUpstream, http.StatusInternalServerError, "UPSTREAM"},
}

// classify returns the status, code and caller-facing message for err.
// Anything unmatched is an internal error with a generic message.
func classify(err error) (int, string, string) {
	for _, m := range errorMappings {
		if errors.Is(err, m.err) {
			return m.status, m.code, m.err.Error()
		}
	}
	return http.StatusInternalServerError, "INTERNAL", "internal server error"
}

func respondError(c *gin.Context, err error) {
	status, code, msg := classify(err)
	if status >= http.StatusInternalServerError {
		requestLogger(c).Error(c.Request.Context(), "request failed", "code", code, "error", err)
	}
	c.AbortWithStatusJSON(status, ErrorResponse{Error: code, Message: msg})
}

// respondCode replies with a route-specific code that has no sentinel.
func respondCode(c *gin.Context, status int, code, msg string) {
	c.AbortWithStatusJSON(status, ErrorResponse{Error: code, Message: msg})
}

func respondMessage(c *gin.Context, status int, msg string) {
	c.JSON(status, gin.H{"message": msg})
}
