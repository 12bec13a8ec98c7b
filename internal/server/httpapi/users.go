package httpapi

import (
	"errors"
	"io"
	"net/http"

	"github.com/dmitrijs2005/drivelink/internal/server/services"
	"github.com/gin-gonic/gin"
)

type registerBody struct {
	Username string `json:"username"`
	Email    string `json:"email"`
	Password string `json:"password"`
	Name     string `json:"name"`
}

type loginBody struct {
	UsernameOrEmail string `json:"usernameOrEmail"`
	Password        string `json:"password"`
}

type forgotBody struct {
	Email string `json:"email"`
}

type resetBody struct {
	Token       string `json:"token"`
	NewPassword string `json:"newPassword"`
}

// bind decodes the JSON body into v. An empty body binds nothing and is left
// to the required-field checks; a malformed one is answered with
// INVALID_REQUEST and bind reports false.
func bind(c *gin.Context, v any) bool {
	if err := c.ShouldBindJSON(v); err != nil && !errors.Is(err, io.EOF) {
		respondCode(c, http.StatusBadRequest, "INVALID_REQUEST", "request body must be JSON")
		return false
	}
	return true
}

func (h *Handler) register(c *gin.Context) {
	var b registerBody
	if !bind(c, &b) {
		return
	}
	if b.Username == "" || b.Email == "" || b.Password == "" {
		respondCode(c, http.StatusBadRequest, "MISSING_DATA", "username, email and password are required")
		return
	}

	u, err := h.accounts.Register(c.Request.Context(), services.RegisterRequest(b))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"message": "user registered", "userId": u.ID})
}

func (h *Handler) login(c *gin.Context) {
	var b loginBody
	if !bind(c, &b) {
		return
	}
	if b.UsernameOrEmail == "" || b.Password == "" {
		respondCode(c, http.StatusBadRequest, "MISSING_DATA", "usernameOrEmail and password are required")
		return
	}

	token, _, err := h.accounts.Login(c.Request.Context(), b.UsernameOrEmail, b.Password)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "login successful", "token": token})
}

func (h *Handler) forgotPassword(c *gin.Context) {
	var b forgotBody
	if !bind(c, &b) {
		return
	}
	if b.Email == "" {
		respondCode(c, http.StatusBadRequest, "MISSING_EMAIL", "email is required")
		return
	}

	if err := h.accounts.ForgotPassword(c.Request.Context(), b.Email); err != nil {
		respondError(c, err)
		return
	}
	respondMessage(c, http.StatusOK, "password reset link sent")
}

func (h *Handler) resetPassword(c *gin.Context) {
	var b resetBody
	if !bind(c, &b) {
		return
	}
	if b.Token == "" || b.NewPassword == "" {
		respondCode(c, http.StatusBadRequest, "MISSING_DATA", "token and newPassword are required")
		return
	}

	if err := h.accounts.ResetPassword(c.Request.Context(), b.Token, b.NewPassword); err != nil {
		respondError(c, err)
		return
	}
	respondMessage(c, http.StatusOK, "password updated")
}
