package sessionkit_test

import (
	"context"
	"errors"
	"io"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/tyemirov/clipstream/internal/apperr"
	"github.com/tyemirov/clipstream/internal/sessionkit"
	"github.com/tyemirov/clipstream/internal/storage"
	"github.com/tyemirov/clipstream/internal/uploader"
)

func managerConfig() sessionkit.ServerConfig {
	return sessionkit.ServerConfig{
		JWTSigningKey: []byte("manager-test-key"),
		JWTIssuer:     "clipstream-test",
		AccessTTL:     15 * time.Minute,
		RefreshTTL:    time.Hour,
	}
}

type recordingUploader struct {
	uploads int
	failErr error
}

func (fake *recordingUploader) Upload(ctx context.Context, filename string, contentType string, reader io.Reader) (uploader.Asset, error) {
	if fake.failErr != nil {
		return uploader.Asset{}, fake.failErr
	}
	if _, drainErr := io.Copy(io.Discard, reader); drainErr != nil {
		return uploader.Asset{}, drainErr
	}
	fake.uploads++
	return uploader.Asset{URL: "https://cdn.example.com/" + filename}, nil
}

func newTestManager(t *testing.T) (*sessionkit.SessionManager, *storage.MemoryUserStore) {
	t.Helper()
	users := storage.NewMemoryUserStore()
	manager := sessionkit.NewSessionManager(users, &recordingUploader{}, managerConfig(), sessionkit.SystemClock{}, zaptest.NewLogger(t), nil)
	return manager, users
}

func registerTestUser(t *testing.T, manager *sessionkit.SessionManager) sessionkit.UserView {
	t.Helper()
	view, registerErr := manager.Register(context.Background(), sessionkit.RegisterInput{
		Username:    "casey",
		Email:       "casey@example.com",
		Password:    "initial-password",
		DisplayName: "Casey",
	})
	require.NoError(t, registerErr)
	return view
}

func TestRegisterNormalizesUsernameAndEmail(t *testing.T) {
	t.Parallel()

	manager, users := newTestManager(t)
	view, registerErr := manager.Register(context.Background(), sessionkit.RegisterInput{
		Username:    "  CaSeY  ",
		Email:       " Casey@Example.COM ",
		Password:    "initial-password",
		DisplayName: " Casey ",
	})
	require.NoError(t, registerErr)
	require.Equal(t, "casey", view.Username)
	require.Equal(t, "casey@example.com", view.Email)
	require.Equal(t, "Casey", view.DisplayName)
	require.NotEmpty(t, view.ID)

	stored, findErr := users.FindByID(context.Background(), view.ID)
	require.NoError(t, findErr)
	require.NotEqual(t, "initial-password", stored.PasswordDigest)
	require.Empty(t, stored.CurrentRefreshHash)
}

func TestRegisterRejectsMissingFields(t *testing.T) {
	t.Parallel()

	manager, _ := newTestManager(t)
	_, registerErr := manager.Register(context.Background(), sessionkit.RegisterInput{
		Username: "casey",
		Email:    "casey@example.com",
	})
	require.Equal(t, apperr.KindValidation, apperr.KindOf(registerErr))
}

func TestRegisterReportsCaseInsensitiveDuplicate(t *testing.T) {
	t.Parallel()

	manager, _ := newTestManager(t)
	registerTestUser(t, manager)

	_, registerErr := manager.Register(context.Background(), sessionkit.RegisterInput{
		Username:    "CASEY",
		Email:       "other@example.com",
		Password:    "another-password",
		DisplayName: "Casey Two",
	})
	require.Equal(t, apperr.KindConflict, apperr.KindOf(registerErr))
}

func TestRegisterUploadFailureIsUpstream(t *testing.T) {
	t.Parallel()

	users := storage.NewMemoryUserStore()
	manager := sessionkit.NewSessionManager(users, &recordingUploader{failErr: errors.New("bucket offline")}, managerConfig(), sessionkit.SystemClock{}, zaptest.NewLogger(t), nil)

	_, registerErr := manager.Register(context.Background(), sessionkit.RegisterInput{
		Username:    "casey",
		Email:       "casey@example.com",
		Password:    "initial-password",
		DisplayName: "Casey",
		Avatar:      &uploader.File{Name: "avatar.png", ContentType: "image/png", Reader: strings.NewReader("png-bytes")},
	})
	require.Equal(t, apperr.KindUpstream, apperr.KindOf(registerErr))

	_, findErr := users.FindByLogin(context.Background(), "casey")
	require.Equal(t, apperr.KindNotFound, apperr.KindOf(findErr), "failed registration must not leave a record")
}

func TestLoginStoresRefreshHash(t *testing.T) {
	t.Parallel()

	manager, users := newTestManager(t)
	view := registerTestUser(t, manager)

	pair, loginView, loginErr := manager.Login(context.Background(), "Casey", "initial-password")
	require.NoError(t, loginErr)
	require.Equal(t, view.ID, loginView.ID)
	require.NotEmpty(t, pair.AccessToken)
	require.NotEmpty(t, pair.RefreshToken)

	stored, findErr := users.FindByID(context.Background(), view.ID)
	require.NoError(t, findErr)
	require.Equal(t, sessionkit.HashToken(pair.RefreshToken), stored.CurrentRefreshHash)
}

func TestLoginAcceptsEmail(t *testing.T) {
	t.Parallel()

	manager, _ := newTestManager(t)
	registerTestUser(t, manager)

	_, _, loginErr := manager.Login(context.Background(), "casey@example.com", "initial-password")
	require.NoError(t, loginErr)
}

func TestLoginUnknownUser(t *testing.T) {
	t.Parallel()

	manager, _ := newTestManager(t)
	_, _, loginErr := manager.Login(context.Background(), "nobody", "whatever")
	require.Equal(t, apperr.KindNotFound, apperr.KindOf(loginErr))
	require.Equal(t, "session.login.unknown_user", apperr.CodeOf(loginErr))
}

func TestLoginWrongPasswordLeavesSessionUntouched(t *testing.T) {
	t.Parallel()

	manager, users := newTestManager(t)
	view := registerTestUser(t, manager)

	pair, _, loginErr := manager.Login(context.Background(), "casey", "initial-password")
	require.NoError(t, loginErr)

	_, _, badErr := manager.Login(context.Background(), "casey", "wrong-password")
	require.Equal(t, apperr.KindAuth, apperr.KindOf(badErr))
	require.Equal(t, "session.login.bad_password", apperr.CodeOf(badErr))

	stored, findErr := users.FindByID(context.Background(), view.ID)
	require.NoError(t, findErr)
	require.Equal(t, sessionkit.HashToken(pair.RefreshToken), stored.CurrentRefreshHash, "failed login must not rotate the session")
}

func TestLoginDisplacesPreviousSession(t *testing.T) {
	t.Parallel()

	manager, _ := newTestManager(t)
	registerTestUser(t, manager)

	firstPair, _, firstErr := manager.Login(context.Background(), "casey", "initial-password")
	require.NoError(t, firstErr)
	_, _, secondErr := manager.Login(context.Background(), "casey", "initial-password")
	require.NoError(t, secondErr)

	_, refreshErr := manager.Refresh(context.Background(), firstPair.RefreshToken)
	require.Equal(t, "session.refresh.stale_token", apperr.CodeOf(refreshErr))
}

func TestRefreshRotatesAndStalesOldToken(t *testing.T) {
	t.Parallel()

	manager, _ := newTestManager(t)
	registerTestUser(t, manager)

	pair, _, loginErr := manager.Login(context.Background(), "casey", "initial-password")
	require.NoError(t, loginErr)

	rotated, refreshErr := manager.Refresh(context.Background(), pair.RefreshToken)
	require.NoError(t, refreshErr)
	require.NotEqual(t, pair.RefreshToken, rotated.RefreshToken)

	// The displaced token is now stale.
	_, staleErr := manager.Refresh(context.Background(), pair.RefreshToken)
	require.Equal(t, apperr.KindAuth, apperr.KindOf(staleErr))
	require.Equal(t, "session.refresh.stale_token", apperr.CodeOf(staleErr))

	// The freshly rotated token still works.
	_, secondErr := manager.Refresh(context.Background(), rotated.RefreshToken)
	require.NoError(t, secondErr)
}

func TestRefreshRejectsAccessToken(t *testing.T) {
	t.Parallel()

	manager, _ := newTestManager(t)
	registerTestUser(t, manager)

	pair, _, loginErr := manager.Login(context.Background(), "casey", "initial-password")
	require.NoError(t, loginErr)

	_, refreshErr := manager.Refresh(context.Background(), pair.AccessToken)
	require.Equal(t, "session.refresh.invalid_token", apperr.CodeOf(refreshErr))
}

func TestRefreshRejectsGarbage(t *testing.T) {
	t.Parallel()

	manager, _ := newTestManager(t)
	_, refreshErr := manager.Refresh(context.Background(), "not-a-jwt")
	require.Equal(t, "session.refresh.invalid_token", apperr.CodeOf(refreshErr))
}

func TestLogoutInvalidatesRefreshAndIsIdempotent(t *testing.T) {
	t.Parallel()

	manager, _ := newTestManager(t)
	view := registerTestUser(t, manager)

	pair, _, loginErr := manager.Login(context.Background(), "casey", "initial-password")
	require.NoError(t, loginErr)

	require.NoError(t, manager.Logout(context.Background(), view.ID))
	require.NoError(t, manager.Logout(context.Background(), view.ID), "second logout is a no-op success")

	_, refreshErr := manager.Refresh(context.Background(), pair.RefreshToken)
	require.Equal(t, "session.refresh.stale_token", apperr.CodeOf(refreshErr))
}

func TestChangePasswordRotatesCredentialAndClearsSession(t *testing.T) {
	t.Parallel()

	manager, _ := newTestManager(t)
	view := registerTestUser(t, manager)

	pair, _, loginErr := manager.Login(context.Background(), "casey", "initial-password")
	require.NoError(t, loginErr)

	require.NoError(t, manager.ChangePassword(context.Background(), view.ID, "initial-password", "rotated-password"))

	_, refreshErr := manager.Refresh(context.Background(), pair.RefreshToken)
	require.Equal(t, "session.refresh.stale_token", apperr.CodeOf(refreshErr))

	_, _, oldErr := manager.Login(context.Background(), "casey", "initial-password")
	require.Equal(t, "session.login.bad_password", apperr.CodeOf(oldErr))

	_, _, newErr := manager.Login(context.Background(), "casey", "rotated-password")
	require.NoError(t, newErr)
}

func TestChangePasswordRejectsWrongCurrent(t *testing.T) {
	t.Parallel()

	manager, _ := newTestManager(t)
	view := registerTestUser(t, manager)

	changeErr := manager.ChangePassword(context.Background(), view.ID, "wrong-password", "rotated-password")
	require.Equal(t, "session.password.bad_current", apperr.CodeOf(changeErr))
}

func TestUpdateAccountAppliesPartialFields(t *testing.T) {
	t.Parallel()

	manager, _ := newTestManager(t)
	view := registerTestUser(t, manager)

	updated, updateErr := manager.UpdateAccount(context.Background(), view.ID, "Casey Renamed", "")
	require.NoError(t, updateErr)
	require.Equal(t, "Casey Renamed", updated.DisplayName)
	require.Equal(t, "casey@example.com", updated.Email)

	_, updateErr = manager.UpdateAccount(context.Background(), view.ID, "", "")
	require.Equal(t, apperr.KindValidation, apperr.KindOf(updateErr))
}

func TestUpdateAvatarStoresUploadedURL(t *testing.T) {
	t.Parallel()

	manager, _ := newTestManager(t)
	view := registerTestUser(t, manager)

	updated, updateErr := manager.UpdateAvatar(context.Background(), view.ID, &uploader.File{
		Name:        "avatar.png",
		ContentType: "image/png",
		Reader:      strings.NewReader("png-bytes"),
	})
	require.NoError(t, updateErr)
	require.Equal(t, "https://cdn.example.com/avatar.png", updated.AvatarURL)

	_, updateErr = manager.UpdateAvatar(context.Background(), view.ID, nil)
	require.Equal(t, apperr.KindValidation, apperr.KindOf(updateErr))
}
