// Package sessiontoken issues and verifies the HS256 session tokens the
// backend hands out on guest login and OAuth callback.
package sessiontoken

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/dgrijalva/jwt-go"
)

const emailClaim = "email"

var (
	ErrInvalidToken  = errors.New("invalid or expired token")
	ErrEmailMismatch = errors.New("token email does not match")
)

// Issue signs a token for email valid for ttl.
func Issue(secret []byte, email string, ttl time.Duration) (string, error) {
	if len(secret) == 0 {
		return "", errors.New("token secret is required")
	}
	now := time.Now()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		emailClaim: email,
		"iat":      now.Unix(),
		"exp":      now.Add(ttl).Unix(),
	})
	signed, err := token.SignedString(secret)
	if err != nil {
		return "", fmt.Errorf("sign token: %w", err)
	}
	return signed, nil
}

// Parse validates tokenString and returns its email claim.
func Parse(secret []byte, tokenString string) (string, error) {
	token, err := jwt.Parse(tokenString, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, jwt.NewValidationError("unexpected signing method", jwt.ValidationErrorSignatureInvalid)
		}
		return secret, nil
	})
	if err != nil || !token.Valid {
		return "", ErrInvalidToken
	}
	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return "", ErrInvalidToken
	}
	email, ok := claims[emailClaim].(string)
	if !ok || email == "" {
		return "", ErrInvalidToken
	}
	return email, nil
}

// Verify checks that tokenString is valid and was issued for email.
func Verify(secret []byte, tokenString, email string) error {
	got, err := Parse(secret, tokenString)
	if err != nil {
		return err
	}
	if !strings.EqualFold(got, email) {
		return ErrEmailMismatch
	}
	return nil
}
