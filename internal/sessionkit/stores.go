package sessionkit

import (
	"context"
	"time"
)

// User is the full identity record. Digest and refresh hash never leave the
// session layer; outward responses use UserView.
type User struct {
	ID                 string
	Username           string
	Email              string
	PasswordDigest     string
	CurrentRefreshHash string
	DisplayName        string
	AvatarURL          string
	CoverURL           string
	CreatedAt          time.Time
	UpdatedAt          time.Time
}

// UserView is the sanitized projection of an identity.
type UserView struct {
	ID          string `json:"id"`
	Username    string `json:"username"`
	Email       string `json:"email"`
	DisplayName string `json:"display_name"`
	AvatarURL   string `json:"avatar_url"`
	CoverURL    string `json:"cover_url"`
}

// View strips the password digest and refresh hash.
func (user User) View() UserView {
	return UserView{
		ID:          user.ID,
		Username:    user.Username,
		Email:       user.Email,
		DisplayName: user.DisplayName,
		AvatarURL:   user.AvatarURL,
		CoverURL:    user.CoverURL,
	}
}

// ProfileUpdate carries mutable profile fields; nil means unchanged.
type ProfileUpdate struct {
	DisplayName *string
	Email       *string
	AvatarURL   *string
	CoverURL    *string
}

// UserStore persists identity records. Implementations report failures as
// apperr-classified errors so callers can branch on kind.
type UserStore interface {
	// Insert stores a new identity; duplicate username or email yields a
	// conflict error.
	Insert(ctx context.Context, user User) (User, error)
	// FindByID loads an identity by id.
	FindByID(ctx context.Context, userID string) (User, error)
	// FindByLogin loads an identity by username or email.
	FindByLogin(ctx context.Context, usernameOrEmail string) (User, error)
	// SetRefreshHash overwrites the stored refresh hash unconditionally.
	// Login rotation uses this path.
	SetRefreshHash(ctx context.Context, userID string, refreshHash string) error
	// SwapRefreshHash replaces the stored refresh hash only when it still
	// equals oldHash. The boolean reports whether the swap matched; a false
	// return with nil error is the stale-token signal.
	SwapRefreshHash(ctx context.Context, userID string, oldHash string, newHash string) (bool, error)
	// ClearRefreshHash removes the stored refresh hash; clearing an already
	// clear record succeeds.
	ClearRefreshHash(ctx context.Context, userID string) error
	// UpdatePassword replaces the digest and clears the refresh hash in the
	// same write.
	UpdatePassword(ctx context.Context, userID string, passwordDigest string) error
	// UpdateProfile applies the non-nil profile fields and returns the new
	// state.
	UpdateProfile(ctx context.Context, userID string, update ProfileUpdate) (User, error)
}
