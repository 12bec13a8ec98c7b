// Package auth issues and verifies the HS256 JWTs used by the account
// endpoints: login tokens carry the user id, reset tokens carry the email.
package auth

import (
	"errors"
	"time"

	"github.com/dmitrijs2005/drivelink/internal/common"
	"github.com/golang-jwt/jwt/v5"
)

// Claims holds the registered claims plus the subject-specific fields.
// Only one of UserID and Email is set, depending on the token kind.
type Claims struct {
	jwt.RegisteredClaims
	UserID string `json:"userId,omitempty"`
	Email  string `json:"email,omitempty"`
}

func sign(claims Claims, secretKey []byte, validityDuration time.Duration) (string, error) {
	now := time.Now()
	claims.IssuedAt = jwt.NewNumericDate(now)
	claims.ExpiresAt = jwt.NewNumericDate(now.Add(validityDuration))

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)

	tokenString, err := token.SignedString(secretKey)
	if err != nil {
		return "", err
	}

	return tokenString, nil
}

func parse(tokenString string, secretKey []byte) (*Claims, error) {
	claims := &Claims{}

	token, err := jwt.ParseWithClaims(tokenString, claims, func(t *jwt.Token) (interface{}, error) {
		return secretKey, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, common.ErrTokenExpired
		}
		return nil, common.ErrInvalidToken
	}

	if !token.Valid {
		return nil, common.ErrInvalidToken
	}

	return claims, nil
}

// GenerateToken issues a login token for userID.
func GenerateToken(userID string, secretKey []byte, validityDuration time.Duration) (string, error) {
	return sign(Claims{UserID: userID}, secretKey, validityDuration)
}

// GetUserIDFromToken verifies a login token and returns its user id.
func GetUserIDFromToken(tokenString string, secretKey []byte) (string, error) {
	claims, err := parse(tokenString, secretKey)
	if err != nil {
		return "", err
	}
	if claims.UserID == "" {
		return "", common.ErrInvalidToken
	}
	return claims.UserID, nil
}

// GenerateResetToken issues a password reset token bound to email.
func GenerateResetToken(email string, secretKey []byte, validityDuration time.Duration) (string, error) {
	return sign(Claims{Email: email}, secretKey, validityDuration)
}

// GetEmailFromResetToken verifies a reset token and returns its email.
func GetEmailFromResetToken(tokenString string, secretKey []byte) (string, error) {
	claims, err := parse(tokenString, secretKey)
	if err != nil {
		return "", err
	}
	if claims.Email == "" {
		return "", common.ErrInvalidToken
	}
	return claims.Email, nil
}
