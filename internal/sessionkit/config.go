package sessionkit

import (
	"net/http"
	"time"
)

// ServerConfig configures token signing, cookies, and TTLs.
type ServerConfig struct {
	JWTSigningKey     []byte
	JWTIssuer         string
	CookieDomain      string
	AccessCookieName  string
	RefreshCookieName string
	AccessTTL         time.Duration
	RefreshTTL        time.Duration
	SameSiteMode      http.SameSite
	AllowInsecureHTTP bool
}
