package httpapi

import (
	"fmt"
	"net/http"

	"github.com/dmitrijs2005/drivelink/internal/server/services"
	"github.com/gin-gonic/gin"
)

type revokeBody struct {
	UserID      string `json:"userId"`
	AccessToken string `json:"accessToken"`
	Email       string `json:"email"`
}

// authURL replies with the bare consent URL as text.
func (h *Handler) authURL(c *gin.Context) {
	userID, ok := actingUser(c, c.Query("userId"))
	if !ok {
		return
	}
	u, err := h.links.AuthURL(c.Request.Context(), userID)
	if err != nil {
		respondError(c, err)
		return
	}
	c.String(http.StatusOK, u)
}

func (h *Handler) callback(c *gin.Context) {
	acc, err := h.links.HandleCallback(c.Request.Context(), c.Query("code"), c.Query("state"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.String(http.StatusOK, fmt.Sprintf("Drive account %s linked successfully", acc.Email))
}

func (h *Handler) validateToken(c *gin.Context) {
	userID, ok := actingUser(c, c.Query("userId"))
	if !ok {
		return
	}
	tok, err := h.links.ValidateToken(c.Request.Context(), services.ValidateRequest{
		UserID:       userID,
		AccessToken:  c.Query("actualAccessToken"),
		RefreshToken: c.Query("refreshToken"),
		Email:        c.Query("email"),
	})
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, tok)
}

func (h *Handler) refreshTokens(c *gin.Context) {
	userID, ok := actingUser(c, c.Query("userId"))
	if !ok {
		return
	}
	list, err := h.links.RefreshTokens(c.Request.Context(), userID)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, list)
}

func (h *Handler) revokeToken(c *gin.Context) {
	var body revokeBody
	if !bind(c, &body) {
		return
	}
	userID, ok := actingUser(c, body.UserID)
	if !ok {
		return
	}

	res, err := h.links.RevokeToken(c.Request.Context(), services.RevokeRequest{
		UserID:      userID,
		AccessToken: body.AccessToken,
		Email:       body.Email,
	})
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"message": "token revoked",
		"email":   res.Email,
		"deleted": res.Deleted,
	})
}

func (h *Handler) handyInfo(c *gin.Context) {
	userID, ok := actingUser(c, c.Query("userId"))
	if !ok {
		return
	}
	accounts, err := h.links.HandyInfo(c.Request.Context(), userID)
	if err != nil {
		respondError(c, err)
		return
	}
	if len(accounts) == 0 {
		respondMessage(c, http.StatusOK, "no connections")
		return
	}
	c.JSON(http.StatusOK, accounts)
}
