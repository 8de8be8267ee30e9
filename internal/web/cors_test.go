package web

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

func TestConfigureCORSRejectsWildcard(t *testing.T) {
	t.Parallel()

	_, err := ConfigureCORS(zaptest.NewLogger(t), []string{"*"})
	require.ErrorIs(t, err, errWildcardOrigin)
}

func TestConfigureCORSRejectsEmptyList(t *testing.T) {
	t.Parallel()

	_, err := ConfigureCORS(zaptest.NewLogger(t), nil)
	require.ErrorIs(t, err, errEmptyAllowedOrigins)

	_, err = ConfigureCORS(zaptest.NewLogger(t), []string{"  ", ""})
	require.ErrorIs(t, err, errEmptyAllowedOrigins)
}

func TestSanitizeOriginsNormalizesAndDeduplicates(t *testing.T) {
	t.Parallel()

	sanitized, err := sanitizeOrigins(zaptest.NewLogger(t), []string{
		"https://app.example.com/",
		"HTTPS://app.example.com",
		"http://localhost:5173",
	})
	require.NoError(t, err)
	require.ElementsMatch(t, []string{"http://localhost:5173", "https://app.example.com"}, sanitized)
}

func TestSanitizeOriginsRejectsMalformed(t *testing.T) {
	t.Parallel()

	for _, origin := range []string{
		"app.example.com",
		"ftp://app.example.com",
		"https://app.example.com/path",
		"https://app.example.com?query=1",
	} {
		_, err := sanitizeOrigins(zaptest.NewLogger(t), []string{origin})
		require.ErrorIs(t, err, errInvalidOrigin, "origin %q", origin)
	}
}

func TestIsDevelopmentHost(t *testing.T) {
	t.Parallel()

	require.True(t, isDevelopmentHost("localhost"))
	require.True(t, isDevelopmentHost("127.0.0.1"))
	require.False(t, isDevelopmentHost("app.example.com"))
}

func TestConfigureCORSAllowsConfiguredOrigin(t *testing.T) {
	gin.SetMode(gin.TestMode)

	middleware, err := ConfigureCORS(zaptest.NewLogger(t), []string{"https://app.example.com"})
	require.NoError(t, err)

	router := gin.New()
	router.Use(middleware)
	router.GET("/resource", func(contextGin *gin.Context) {
		contextGin.Status(http.StatusNoContent)
	})

	request := httptest.NewRequest(http.MethodGet, "/resource", nil)
	request.Header.Set("Origin", "https://app.example.com")
	recorder := httptest.NewRecorder()
	router.ServeHTTP(recorder, request)

	require.Equal(t, http.StatusNoContent, recorder.Code)
	require.Equal(t, "https://app.example.com", recorder.Header().Get("Access-Control-Allow-Origin"))
	require.Equal(t, "true", recorder.Header().Get("Access-Control-Allow-Credentials"))
}
