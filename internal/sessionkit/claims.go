package sessionkit

import (
	"crypto/sha256"
	"encoding/base64"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// TokenKind distinguishes the two credential flavors carried in claims.
type TokenKind string

const (
	// TokenKindAccess marks short-lived stateless credentials.
	TokenKindAccess TokenKind = "access"
	// TokenKindRefresh marks long-lived credentials checked against storage.
	TokenKindRefresh TokenKind = "refresh"
)

// Sentinel errors surfaced by token parsing.
var (
	ErrTokenInvalid   = errors.New("session.token.invalid")
	ErrTokenExpired   = errors.New("session.token.expired")
	ErrTokenWrongKind = errors.New("session.token.wrong_kind")
)

// SessionClaims are embedded in both access and refresh tokens.
type SessionClaims struct {
	UserID          string    `json:"user_id"`
	Username        string    `json:"username"`
	UserDisplayName string    `json:"user_display_name"`
	UserAvatarURL   string    `json:"user_avatar_url"`
	TokenKind       TokenKind `json:"token_kind"`
	jwt.RegisteredClaims
}

// MintToken creates a signed HS256 token of the requested kind.
func MintToken(view UserView, kind TokenKind, configuration ServerConfig, clock Clock) (string, time.Time, error) {
	issuedAt := clock.Now()
	ttl := configuration.AccessTTL
	if kind == TokenKindRefresh {
		ttl = configuration.RefreshTTL
	}
	expiresAt := issuedAt.Add(ttl)
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, SessionClaims{
		UserID:          view.ID,
		Username:        view.Username,
		UserDisplayName: view.DisplayName,
		UserAvatarURL:   view.AvatarURL,
		TokenKind:       kind,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.NewString(),
			Issuer:    configuration.JWTIssuer,
			Subject:   view.ID,
			IssuedAt:  jwt.NewNumericDate(issuedAt),
			NotBefore: jwt.NewNumericDate(issuedAt.Add(-30 * time.Second)),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
		},
	})
	signed, signErr := token.SignedString(configuration.JWTSigningKey)
	if signErr != nil {
		return "", time.Time{}, fmt.Errorf("session.token.sign: %w", signErr)
	}
	return signed, expiresAt, nil
}

// ParseToken validates signature, expiry, issuer, and kind before returning
// the claims. The wanted kind is enforced so an access token can never pass
// refresh verification or the other way around.
func ParseToken(raw string, wantKind TokenKind, configuration ServerConfig, clock Clock) (*SessionClaims, error) {
	if strings.TrimSpace(raw) == "" {
		return nil, fmt.Errorf("session.token.parse: %w", ErrTokenInvalid)
	}
	parsedToken, parseErr := jwt.ParseWithClaims(raw, &SessionClaims{}, func(parsed *jwt.Token) (interface{}, error) {
		return configuration.JWTSigningKey, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}), jwt.WithTimeFunc(func() time.Time {
		return clock.Now()
	}))
	if parseErr != nil {
		if errors.Is(parseErr, jwt.ErrTokenExpired) {
			return nil, fmt.Errorf("session.token.parse: %w", ErrTokenExpired)
		}
		return nil, fmt.Errorf("session.token.parse: %w", ErrTokenInvalid)
	}
	if parsedToken == nil || !parsedToken.Valid {
		return nil, fmt.Errorf("session.token.parse: %w", ErrTokenInvalid)
	}
	claims, ok := parsedToken.Claims.(*SessionClaims)
	if !ok {
		return nil, fmt.Errorf("session.token.parse: %w", ErrTokenInvalid)
	}
	if claims.Issuer != configuration.JWTIssuer {
		return nil, fmt.Errorf("session.token.parse: %w", ErrTokenInvalid)
	}
	if claims.TokenKind != wantKind {
		return nil, fmt.Errorf("session.token.parse: %w", ErrTokenWrongKind)
	}
	return claims, nil
}

// HashToken derives the storable fingerprint of a refresh token. Only the
// hash ever reaches the credential store; equality of hashes stands in for
// the byte-for-byte comparison of the rotation contract.
func HashToken(raw string) string {
	sum := sha256.Sum256([]byte(raw))
	return base64.RawURLEncoding.EncodeToString(sum[:])
}
