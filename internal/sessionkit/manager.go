package sessionkit

import (
	"context"
	"errors"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/tyemirov/clipstream/internal/apperr"
	"github.com/tyemirov/clipstream/internal/uploader"
)

// TokenPair bundles a freshly minted access and refresh token.
type TokenPair struct {
	AccessToken      string
	AccessExpiresAt  time.Time
	RefreshToken     string
	RefreshExpiresAt time.Time
}

// RegisterInput carries the registration payload. Avatar and cover are
// optional uploads processed before the record is created.
type RegisterInput struct {
	Username    string
	Email       string
	Password    string
	DisplayName string
	Avatar      *uploader.File
	Cover       *uploader.File
}

// SessionManager orchestrates the credential lifecycle. It holds no state of
// its own; every invariant lives in the user store.
type SessionManager struct {
	users         UserStore
	uploads       uploader.Uploader
	configuration ServerConfig
	clock         Clock
	logger        *zap.Logger
	metrics       MetricsRecorder
}

// NewSessionManager wires the manager with its collaborators. Logger and
// metrics may be nil.
func NewSessionManager(users UserStore, uploads uploader.Uploader, configuration ServerConfig, clock Clock, logger *zap.Logger, metrics MetricsRecorder) *SessionManager {
	if users == nil {
		panic("user store is required")
	}
	if clock == nil {
		clock = SystemClock{}
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if metrics == nil {
		metrics = NopMetrics{}
	}
	return &SessionManager{
		users:         users,
		uploads:       uploads,
		configuration: configuration,
		clock:         clock,
		logger:        logger,
		metrics:       metrics,
	}
}

// Register creates a new identity and returns its sanitized view. Usernames
// and emails are lower-cased before the duplicate check so collisions behave
// case-insensitively.
func (manager *SessionManager) Register(ctx context.Context, input RegisterInput) (UserView, error) {
	username := strings.ToLower(strings.TrimSpace(input.Username))
	email := strings.ToLower(strings.TrimSpace(input.Email))
	password := strings.TrimSpace(input.Password)
	displayName := strings.TrimSpace(input.DisplayName)

	if username == "" || email == "" || password == "" || displayName == "" {
		return UserView{}, apperr.Validation("session.register.missing_fields", "username, email, password, and display name are required")
	}

	digest, hashErr := HashPassword(password)
	if hashErr != nil {
		return UserView{}, apperr.Upstream("session.register.hash", "could not process password", hashErr)
	}

	avatarURL, avatarErr := manager.uploadIfPresent(ctx, input.Avatar)
	if avatarErr != nil {
		return UserView{}, apperr.Upstream("session.register.avatar_upload", "avatar upload failed", avatarErr)
	}
	coverURL, coverErr := manager.uploadIfPresent(ctx, input.Cover)
	if coverErr != nil {
		return UserView{}, apperr.Upstream("session.register.cover_upload", "cover upload failed", coverErr)
	}

	created, insertErr := manager.users.Insert(ctx, User{
		Username:       username,
		Email:          email,
		PasswordDigest: digest,
		DisplayName:    displayName,
		AvatarURL:      avatarURL,
		CoverURL:       coverURL,
	})
	if insertErr != nil {
		manager.metrics.Increment("register.failure")
		return UserView{}, insertErr
	}

	manager.metrics.Increment("register.success")
	manager.logger.Info("user registered",
		zap.String("code", "session.register.created"),
		zap.String("user_id", created.ID),
	)
	return created.View(), nil
}

// Login verifies the credential and rotates in a fresh token pair. The
// refresh hash write is unconditional: any prior refresh token for the
// identity stops working the moment login succeeds.
func (manager *SessionManager) Login(ctx context.Context, usernameOrEmail string, password string) (TokenPair, UserView, error) {
	login := strings.ToLower(strings.TrimSpace(usernameOrEmail))
	if login == "" || password == "" {
		return TokenPair{}, UserView{}, apperr.Validation("session.login.missing_fields", "login and password are required")
	}

	user, findErr := manager.users.FindByLogin(ctx, login)
	if findErr != nil {
		if apperr.KindOf(findErr) == apperr.KindNotFound {
			manager.metrics.Increment("login.unknown_user")
			return TokenPair{}, UserView{}, apperr.NotFound("session.login.unknown_user", "user not found")
		}
		return TokenPair{}, UserView{}, findErr
	}

	if compareErr := ComparePasswordAndHash(password, user.PasswordDigest); compareErr != nil {
		if errors.Is(compareErr, ErrPasswordMismatch) {
			manager.metrics.Increment("login.bad_password")
			return TokenPair{}, UserView{}, apperr.Auth("session.login.bad_password", "incorrect password")
		}
		return TokenPair{}, UserView{}, apperr.Upstream("session.login.compare", "could not verify password", compareErr)
	}

	pair, mintErr := manager.mintPair(user.View())
	if mintErr != nil {
		return TokenPair{}, UserView{}, apperr.Upstream("session.login.mint", "could not issue tokens", mintErr)
	}
	if persistErr := manager.users.SetRefreshHash(ctx, user.ID, HashToken(pair.RefreshToken)); persistErr != nil {
		return TokenPair{}, UserView{}, apperr.Upstream("session.login.persist", "could not persist session", persistErr)
	}

	manager.metrics.Increment("login.success")
	manager.logger.Info("user logged in",
		zap.String("code", "session.login.success"),
		zap.String("user_id", user.ID),
	)
	return pair, user.View(), nil
}

// Refresh rotates the token pair. The presented refresh token must verify
// and must still equal the identity's stored value; the swap is a single
// conditional write, so two racing refreshes with the same token can never
// both succeed.
func (manager *SessionManager) Refresh(ctx context.Context, presentedRefresh string) (TokenPair, error) {
	claims, parseErr := ParseToken(presentedRefresh, TokenKindRefresh, manager.configuration, manager.clock)
	if parseErr != nil {
		manager.metrics.Increment("refresh.invalid")
		return TokenPair{}, apperr.Auth("session.refresh.invalid_token", "invalid refresh token")
	}

	user, findErr := manager.users.FindByID(ctx, claims.UserID)
	if findErr != nil {
		if apperr.KindOf(findErr) == apperr.KindNotFound {
			manager.metrics.Increment("refresh.unknown_identity")
			return TokenPair{}, apperr.Auth("session.refresh.unauthorized", "unauthorized")
		}
		return TokenPair{}, findErr
	}

	pair, mintErr := manager.mintPair(user.View())
	if mintErr != nil {
		return TokenPair{}, apperr.Upstream("session.refresh.mint", "could not issue tokens", mintErr)
	}

	swapped, swapErr := manager.users.SwapRefreshHash(ctx, user.ID, HashToken(presentedRefresh), HashToken(pair.RefreshToken))
	if swapErr != nil {
		return TokenPair{}, apperr.Upstream("session.refresh.persist", "could not persist session", swapErr)
	}
	if !swapped {
		manager.metrics.Increment("refresh.stale")
		manager.logger.Warn("stale refresh token presented",
			zap.String("code", "session.refresh.stale_token"),
			zap.String("user_id", user.ID),
		)
		return TokenPair{}, apperr.Auth("session.refresh.stale_token", "stale refresh token")
	}

	manager.metrics.Increment("refresh.success")
	return pair, nil
}

// Logout clears the stored refresh hash. Logging out an already logged-out
// identity is a no-op success.
func (manager *SessionManager) Logout(ctx context.Context, userID string) error {
	if clearErr := manager.users.ClearRefreshHash(ctx, userID); clearErr != nil {
		return apperr.Upstream("session.logout.persist", "could not clear session", clearErr)
	}
	manager.metrics.Increment("logout.success")
	return nil
}

// ChangePassword verifies the current password, stores the new digest, and
// clears the refresh hash so every other holder must re-authenticate.
// Outstanding access tokens stay valid until their expiry.
func (manager *SessionManager) ChangePassword(ctx context.Context, userID string, currentPassword string, newPassword string) error {
	currentPassword = strings.TrimSpace(currentPassword)
	newPassword = strings.TrimSpace(newPassword)
	if currentPassword == "" || newPassword == "" {
		return apperr.Validation("session.password.missing_fields", "current and new password are required")
	}

	user, findErr := manager.users.FindByID(ctx, userID)
	if findErr != nil {
		return findErr
	}
	if compareErr := ComparePasswordAndHash(currentPassword, user.PasswordDigest); compareErr != nil {
		if errors.Is(compareErr, ErrPasswordMismatch) {
			manager.metrics.Increment("password.bad_current")
			return apperr.Auth("session.password.bad_current", "incorrect password")
		}
		return apperr.Upstream("session.password.compare", "could not verify password", compareErr)
	}

	digest, hashErr := HashPassword(newPassword)
	if hashErr != nil {
		return apperr.Upstream("session.password.hash", "could not process password", hashErr)
	}
	if updateErr := manager.users.UpdatePassword(ctx, userID, digest); updateErr != nil {
		return apperr.Upstream("session.password.persist", "could not persist password", updateErr)
	}

	manager.metrics.Increment("password.changed")
	manager.logger.Info("password changed",
		zap.String("code", "session.password.changed"),
		zap.String("user_id", userID),
	)
	return nil
}

// UpdateAccount changes display name and email; empty fields are left alone.
func (manager *SessionManager) UpdateAccount(ctx context.Context, userID string, displayName string, email string) (UserView, error) {
	displayName = strings.TrimSpace(displayName)
	email = strings.ToLower(strings.TrimSpace(email))
	if displayName == "" && email == "" {
		return UserView{}, apperr.Validation("session.account.missing_fields", "display name or email is required")
	}
	update := ProfileUpdate{}
	if displayName != "" {
		update.DisplayName = &displayName
	}
	if email != "" {
		update.Email = &email
	}
	updated, updateErr := manager.users.UpdateProfile(ctx, userID, update)
	if updateErr != nil {
		return UserView{}, updateErr
	}
	return updated.View(), nil
}

// UpdateAvatar uploads a new avatar image and stores its URL.
func (manager *SessionManager) UpdateAvatar(ctx context.Context, userID string, file *uploader.File) (UserView, error) {
	return manager.updateImage(ctx, userID, file, "session.avatar.upload", func(url string) ProfileUpdate {
		return ProfileUpdate{AvatarURL: &url}
	})
}

// UpdateCover uploads a new cover image and stores its URL.
func (manager *SessionManager) UpdateCover(ctx context.Context, userID string, file *uploader.File) (UserView, error) {
	return manager.updateImage(ctx, userID, file, "session.cover.upload", func(url string) ProfileUpdate {
		return ProfileUpdate{CoverURL: &url}
	})
}

func (manager *SessionManager) updateImage(ctx context.Context, userID string, file *uploader.File, code string, buildUpdate func(url string) ProfileUpdate) (UserView, error) {
	if file == nil {
		return UserView{}, apperr.Validation(code+".missing_file", "image file is required")
	}
	url, uploadErr := manager.uploadIfPresent(ctx, file)
	if uploadErr != nil {
		return UserView{}, apperr.Upstream(code, "image upload failed", uploadErr)
	}
	updated, updateErr := manager.users.UpdateProfile(ctx, userID, buildUpdate(url))
	if updateErr != nil {
		return UserView{}, updateErr
	}
	return updated.View(), nil
}

func (manager *SessionManager) mintPair(view UserView) (TokenPair, error) {
	accessToken, accessExpiresAt, accessErr := MintToken(view, TokenKindAccess, manager.configuration, manager.clock)
	if accessErr != nil {
		return TokenPair{}, accessErr
	}
	refreshToken, refreshExpiresAt, refreshErr := MintToken(view, TokenKindRefresh, manager.configuration, manager.clock)
	if refreshErr != nil {
		return TokenPair{}, refreshErr
	}
	return TokenPair{
		AccessToken:      accessToken,
		AccessExpiresAt:  accessExpiresAt,
		RefreshToken:     refreshToken,
		RefreshExpiresAt: refreshExpiresAt,
	}, nil
}

func (manager *SessionManager) uploadIfPresent(ctx context.Context, file *uploader.File) (string, error) {
	if file == nil {
		return "", nil
	}
	if manager.uploads == nil {
		return "", errors.New("session.register.no_uploader")
	}
	asset, uploadErr := manager.uploads.Upload(ctx, file.Name, file.ContentType, file.Reader)
	if uploadErr != nil {
		return "", uploadErr
	}
	return asset.URL, nil
}
