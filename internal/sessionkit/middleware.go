package sessionkit

import (
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/tyemirov/clipstream/internal/apperr"
)

// ContextUserKey is where RequireSession stores the sanitized identity.
const ContextUserKey = "auth_user"

const bearerPrefix = "Bearer "

// RequireSession verifies the access token and resolves it to an identity
// before any protected handler runs. The session cookie takes precedence
// over the Authorization header. Access tokens are stateless: the stored
// refresh hash is never consulted here.
func RequireSession(configuration ServerConfig, users UserStore, clock Clock) gin.HandlerFunc {
	if users == nil {
		panic("user store is required")
	}
	if clock == nil {
		clock = SystemClock{}
	}
	return func(contextGin *gin.Context) {
		rawToken := extractAccessToken(contextGin, configuration)
		if rawToken == "" {
			apperr.Respond(contextGin, apperr.Auth("auth.missing_credential", "authentication required"))
			return
		}
		claims, parseErr := ParseToken(rawToken, TokenKindAccess, configuration, clock)
		if parseErr != nil {
			apperr.Respond(contextGin, apperr.Auth("auth.invalid_token", "invalid or expired token"))
			return
		}
		user, findErr := users.FindByID(contextGin.Request.Context(), claims.UserID)
		if findErr != nil {
			if apperr.KindOf(findErr) == apperr.KindNotFound {
				apperr.Respond(contextGin, apperr.Auth("auth.unknown_identity", "unknown identity"))
				return
			}
			apperr.Respond(contextGin, apperr.Upstream("auth.identity_lookup", "could not load identity", findErr))
			return
		}
		contextGin.Set(ContextUserKey, user.View())
		contextGin.Next()
	}
}

// CurrentUser returns the identity attached by RequireSession.
func CurrentUser(contextGin *gin.Context) (UserView, bool) {
	value, found := contextGin.Get(ContextUserKey)
	if !found {
		return UserView{}, false
	}
	view, ok := value.(UserView)
	return view, ok
}

func extractAccessToken(contextGin *gin.Context, configuration ServerConfig) string {
	cookie, cookieErr := contextGin.Request.Cookie(configuration.AccessCookieName)
	if cookieErr == nil && cookie != nil && strings.TrimSpace(cookie.Value) != "" {
		return cookie.Value
	}
	authorization := contextGin.GetHeader("Authorization")
	if strings.HasPrefix(authorization, bearerPrefix) {
		return strings.TrimSpace(strings.TrimPrefix(authorization, bearerPrefix))
	}
	return ""
}
