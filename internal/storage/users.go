package storage

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/tyemirov/clipstream/internal/apperr"
	"github.com/tyemirov/clipstream/internal/sessionkit"
)

type userRecord struct {
	ID                 string `gorm:"column:id;primaryKey"`
	Username           string `gorm:"column:username;uniqueIndex;not null"`
	Email              string `gorm:"column:email;uniqueIndex;not null"`
	PasswordDigest     string `gorm:"column:password_digest;not null"`
	CurrentRefreshHash string `gorm:"column:current_refresh_hash;not null;default:''"`
	DisplayName        string `gorm:"column:display_name;not null"`
	AvatarURL          string `gorm:"column:avatar_url;not null;default:''"`
	CoverURL           string `gorm:"column:cover_url;not null;default:''"`
	CreatedAt          time.Time
	UpdatedAt          time.Time
}

func (userRecord) TableName() string {
	return "users"
}

func (record userRecord) toUser() sessionkit.User {
	return sessionkit.User{
		ID:                 record.ID,
		Username:           record.Username,
		Email:              record.Email,
		PasswordDigest:     record.PasswordDigest,
		CurrentRefreshHash: record.CurrentRefreshHash,
		DisplayName:        record.DisplayName,
		AvatarURL:          record.AvatarURL,
		CoverURL:           record.CoverURL,
		CreatedAt:          record.CreatedAt,
		UpdatedAt:          record.UpdatedAt,
	}
}

// GormUserStore persists identity records using GORM.
type GormUserStore struct {
	db *gorm.DB
}

// Insert stores a new identity record.
func (store *GormUserStore) Insert(ctx context.Context, user sessionkit.User) (sessionkit.User, error) {
	record := userRecord{
		ID:                 uuid.NewString(),
		Username:           user.Username,
		Email:              user.Email,
		PasswordDigest:     user.PasswordDigest,
		CurrentRefreshHash: user.CurrentRefreshHash,
		DisplayName:        user.DisplayName,
		AvatarURL:          user.AvatarURL,
		CoverURL:           user.CoverURL,
	}
	if createErr := store.db.WithContext(ctx).Create(&record).Error; createErr != nil {
		if errors.Is(createErr, gorm.ErrDuplicatedKey) {
			return sessionkit.User{}, apperr.Conflict("user.duplicate", "username or email already exists")
		}
		return sessionkit.User{}, apperr.Upstream("user.insert", "could not create user", createErr)
	}
	return record.toUser(), nil
}

// FindByID loads an identity by id.
func (store *GormUserStore) FindByID(ctx context.Context, userID string) (sessionkit.User, error) {
	var record userRecord
	findErr := store.db.WithContext(ctx).Where("id = ?", userID).Take(&record).Error
	if findErr != nil {
		if errors.Is(findErr, gorm.ErrRecordNotFound) {
			return sessionkit.User{}, apperr.NotFound("user.not_found", "user not found")
		}
		return sessionkit.User{}, apperr.Upstream("user.find", "could not load user", findErr)
	}
	return record.toUser(), nil
}

// FindByLogin loads an identity by username or email.
func (store *GormUserStore) FindByLogin(ctx context.Context, usernameOrEmail string) (sessionkit.User, error) {
	var record userRecord
	findErr := store.db.WithContext(ctx).
		Where("username = ? OR email = ?", usernameOrEmail, usernameOrEmail).
		Take(&record).Error
	if findErr != nil {
		if errors.Is(findErr, gorm.ErrRecordNotFound) {
			return sessionkit.User{}, apperr.NotFound("user.not_found", "user not found")
		}
		return sessionkit.User{}, apperr.Upstream("user.find", "could not load user", findErr)
	}
	return record.toUser(), nil
}

// SetRefreshHash overwrites the stored refresh hash unconditionally.
func (store *GormUserStore) SetRefreshHash(ctx context.Context, userID string, refreshHash string) error {
	result := store.db.WithContext(ctx).Model(&userRecord{}).
		Where("id = ?", userID).
		Update("current_refresh_hash", refreshHash)
	if result.Error != nil {
		return apperr.Upstream("user.set_refresh", "could not persist session", result.Error)
	}
	if result.RowsAffected == 0 {
		return apperr.NotFound("user.not_found", "user not found")
	}
	return nil
}

// SwapRefreshHash replaces the hash only when it still equals oldHash. The
// single conditional UPDATE is what makes rotation safe under concurrent
// refresh attempts.
func (store *GormUserStore) SwapRefreshHash(ctx context.Context, userID string, oldHash string, newHash string) (bool, error) {
	result := store.db.WithContext(ctx).Model(&userRecord{}).
		Where("id = ? AND current_refresh_hash = ?", userID, oldHash).
		Update("current_refresh_hash", newHash)
	if result.Error != nil {
		return false, apperr.Upstream("user.swap_refresh", "could not persist session", result.Error)
	}
	return result.RowsAffected > 0, nil
}

// ClearRefreshHash removes the stored refresh hash; already-clear records
// succeed.
func (store *GormUserStore) ClearRefreshHash(ctx context.Context, userID string) error {
	result := store.db.WithContext(ctx).Model(&userRecord{}).
		Where("id = ?", userID).
		Update("current_refresh_hash", "")
	if result.Error != nil {
		return apperr.Upstream("user.clear_refresh", "could not clear session", result.Error)
	}
	return nil
}

// UpdatePassword replaces the digest and clears the refresh hash in one
// write.
func (store *GormUserStore) UpdatePassword(ctx context.Context, userID string, passwordDigest string) error {
	result := store.db.WithContext(ctx).Model(&userRecord{}).
		Where("id = ?", userID).
		Updates(map[string]interface{}{
			"password_digest":      passwordDigest,
			"current_refresh_hash": "",
		})
	if result.Error != nil {
		return apperr.Upstream("user.update_password", "could not persist password", result.Error)
	}
	if result.RowsAffected == 0 {
		return apperr.NotFound("user.not_found", "user not found")
	}
	return nil
}

// UpdateProfile applies the non-nil fields and returns the new state.
func (store *GormUserStore) UpdateProfile(ctx context.Context, userID string, update sessionkit.ProfileUpdate) (sessionkit.User, error) {
	changes := map[string]interface{}{}
	if update.DisplayName != nil {
		changes["display_name"] = *update.DisplayName
	}
	if update.Email != nil {
		changes["email"] = *update.Email
	}
	if update.AvatarURL != nil {
		changes["avatar_url"] = *update.AvatarURL
	}
	if update.CoverURL != nil {
		changes["cover_url"] = *update.CoverURL
	}
	if len(changes) > 0 {
		result := store.db.WithContext(ctx).Model(&userRecord{}).
			Where("id = ?", userID).
			Updates(changes)
		if result.Error != nil {
			if errors.Is(result.Error, gorm.ErrDuplicatedKey) {
				return sessionkit.User{}, apperr.Conflict("user.duplicate", "email already exists")
			}
			return sessionkit.User{}, apperr.Upstream("user.update_profile", "could not update profile", result.Error)
		}
		if result.RowsAffected == 0 {
			return sessionkit.User{}, apperr.NotFound("user.not_found", "user not found")
		}
	}
	return store.FindByID(ctx, userID)
}

// UserExists reports whether the identity exists; it feeds the subscription
// toggle's target check.
func (store *GormUserStore) UserExists(ctx context.Context, userID string) (bool, error) {
	var count int64
	countErr := store.db.WithContext(ctx).Model(&userRecord{}).
		Where("id = ?", userID).
		Count(&count).Error
	if countErr != nil {
		return false, fmt.Errorf("user.exists: %w", countErr)
	}
	return count > 0, nil
}
