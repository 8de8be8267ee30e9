package sessionkit

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

type fixedClock struct {
	timestamp time.Time
}

func (clock fixedClock) Now() time.Time {
	return clock.timestamp
}

func testConfig() ServerConfig {
	return ServerConfig{
		JWTSigningKey: []byte("test-signing-key"),
		JWTIssuer:     "clipstream-test",
		AccessTTL:     15 * time.Minute,
		RefreshTTL:    time.Hour,
	}
}

func testView() UserView {
	return UserView{
		ID:          "user-123",
		Username:    "casey",
		Email:       "casey@example.com",
		DisplayName: "Casey",
		AvatarURL:   "https://cdn.example.com/avatar.png",
	}
}

func TestMintAndParseRoundTrip(t *testing.T) {
	t.Parallel()

	configuration := testConfig()
	clock := fixedClock{timestamp: time.Unix(1700000000, 0).UTC()}

	token, expiresAt, mintErr := MintToken(testView(), TokenKindAccess, configuration, clock)
	require.NoError(t, mintErr)
	require.NotEmpty(t, token)
	require.Equal(t, clock.timestamp.Add(configuration.AccessTTL), expiresAt)

	claims, parseErr := ParseToken(token, TokenKindAccess, configuration, clock)
	require.NoError(t, parseErr)
	require.Equal(t, "user-123", claims.UserID)
	require.Equal(t, "casey", claims.Username)
	require.Equal(t, "Casey", claims.UserDisplayName)
	require.Equal(t, TokenKindAccess, claims.TokenKind)
	require.Equal(t, "clipstream-test", claims.Issuer)
}

func TestRefreshTokenUsesRefreshTTL(t *testing.T) {
	t.Parallel()

	configuration := testConfig()
	clock := fixedClock{timestamp: time.Unix(1700000000, 0).UTC()}

	_, expiresAt, mintErr := MintToken(testView(), TokenKindRefresh, configuration, clock)
	require.NoError(t, mintErr)
	require.Equal(t, clock.timestamp.Add(configuration.RefreshTTL), expiresAt)
}

func TestParseTokenRejectsWrongKind(t *testing.T) {
	t.Parallel()

	configuration := testConfig()
	clock := fixedClock{timestamp: time.Unix(1700000000, 0).UTC()}

	refreshToken, _, mintErr := MintToken(testView(), TokenKindRefresh, configuration, clock)
	require.NoError(t, mintErr)

	_, parseErr := ParseToken(refreshToken, TokenKindAccess, configuration, clock)
	require.ErrorIs(t, parseErr, ErrTokenWrongKind)

	accessToken, _, mintErr := MintToken(testView(), TokenKindAccess, configuration, clock)
	require.NoError(t, mintErr)

	_, parseErr = ParseToken(accessToken, TokenKindRefresh, configuration, clock)
	require.ErrorIs(t, parseErr, ErrTokenWrongKind)
}

func TestParseTokenRejectsExpired(t *testing.T) {
	t.Parallel()

	configuration := testConfig()
	issuedClock := fixedClock{timestamp: time.Unix(1700000000, 0).UTC()}

	token, _, mintErr := MintToken(testView(), TokenKindAccess, configuration, issuedClock)
	require.NoError(t, mintErr)

	laterClock := fixedClock{timestamp: issuedClock.timestamp.Add(configuration.AccessTTL + time.Minute)}
	_, parseErr := ParseToken(token, TokenKindAccess, configuration, laterClock)
	require.ErrorIs(t, parseErr, ErrTokenExpired)
}

func TestParseTokenRejectsForeignSignature(t *testing.T) {
	t.Parallel()

	configuration := testConfig()
	clock := fixedClock{timestamp: time.Unix(1700000000, 0).UTC()}

	foreign := configuration
	foreign.JWTSigningKey = []byte("some-other-key")
	token, _, mintErr := MintToken(testView(), TokenKindAccess, foreign, clock)
	require.NoError(t, mintErr)

	_, parseErr := ParseToken(token, TokenKindAccess, configuration, clock)
	require.ErrorIs(t, parseErr, ErrTokenInvalid)
}

func TestParseTokenRejectsForeignIssuer(t *testing.T) {
	t.Parallel()

	configuration := testConfig()
	clock := fixedClock{timestamp: time.Unix(1700000000, 0).UTC()}

	foreign := configuration
	foreign.JWTIssuer = "someone-else"
	token, _, mintErr := MintToken(testView(), TokenKindAccess, foreign, clock)
	require.NoError(t, mintErr)

	_, parseErr := ParseToken(token, TokenKindAccess, configuration, clock)
	require.ErrorIs(t, parseErr, ErrTokenInvalid)
}

func TestParseTokenRejectsEmpty(t *testing.T) {
	t.Parallel()

	_, parseErr := ParseToken("  ", TokenKindAccess, testConfig(), fixedClock{timestamp: time.Unix(1700000000, 0).UTC()})
	require.ErrorIs(t, parseErr, ErrTokenInvalid)
}

func TestMintedTokensAreDistinctWithinOneInstant(t *testing.T) {
	t.Parallel()

	configuration := testConfig()
	clock := fixedClock{timestamp: time.Unix(1700000000, 0).UTC()}

	first, _, firstErr := MintToken(testView(), TokenKindRefresh, configuration, clock)
	require.NoError(t, firstErr)
	second, _, secondErr := MintToken(testView(), TokenKindRefresh, configuration, clock)
	require.NoError(t, secondErr)
	require.NotEqual(t, first, second)
	require.NotEqual(t, HashToken(first), HashToken(second))
}

func TestHashTokenIsDeterministic(t *testing.T) {
	t.Parallel()

	require.Equal(t, HashToken("same-token"), HashToken("same-token"))
	require.NotEqual(t, HashToken("same-token"), HashToken("other-token"))
	require.NotContains(t, HashToken("same-token"), "=")
}
