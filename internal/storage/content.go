package storage

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/tyemirov/clipstream/internal/apperr"
	"github.com/tyemirov/clipstream/internal/contentkit"
)

type videoRecord struct {
	ID              string `gorm:"column:id;primaryKey"`
	OwnerID         string `gorm:"column:owner_id;index;not null"`
	Title           string `gorm:"column:title;not null"`
	Description     string `gorm:"column:description;not null;default:''"`
	URL             string `gorm:"column:url;not null"`
	DurationSeconds float64 `gorm:"column:duration_seconds;not null;default:0"`
	Views           int64  `gorm:"column:views;not null;default:0"`
	CreatedAt       time.Time
}

func (videoRecord) TableName() string {
	return "videos"
}

type commentRecord struct {
	ID        string `gorm:"column:id;primaryKey"`
	OwnerID   string `gorm:"column:owner_id;index;not null"`
	VideoID   string `gorm:"column:video_id;index;not null"`
	Body      string `gorm:"column:body;not null"`
	CreatedAt time.Time
}

func (commentRecord) TableName() string {
	return "comments"
}

type tweetRecord struct {
	ID        string `gorm:"column:id;primaryKey"`
	OwnerID   string `gorm:"column:owner_id;index;not null"`
	Body      string `gorm:"column:body;not null"`
	CreatedAt time.Time
}

func (tweetRecord) TableName() string {
	return "tweets"
}

// GormContentStore persists videos, comments, and tweets using GORM.
type GormContentStore struct {
	db *gorm.DB
}

// CreateVideo stores a new video record.
func (store *GormContentStore) CreateVideo(ctx context.Context, video contentkit.Video) (contentkit.Video, error) {
	record := videoRecord{
		ID:              uuid.NewString(),
		OwnerID:         video.OwnerID,
		Title:           video.Title,
		Description:     video.Description,
		URL:             video.URL,
		DurationSeconds: video.DurationSeconds,
	}
	if createErr := store.db.WithContext(ctx).Create(&record).Error; createErr != nil {
		return contentkit.Video{}, apperr.Upstream("video.insert", "could not create video", createErr)
	}
	return record.toVideo(), nil
}

// GetVideo loads a video by id.
func (store *GormContentStore) GetVideo(ctx context.Context, videoID string) (contentkit.Video, error) {
	var record videoRecord
	findErr := store.db.WithContext(ctx).Where("id = ?", videoID).Take(&record).Error
	if findErr != nil {
		if errors.Is(findErr, gorm.ErrRecordNotFound) {
			return contentkit.Video{}, apperr.NotFound("video.not_found", "video not found")
		}
		return contentkit.Video{}, apperr.Upstream("video.find", "could not load video", findErr)
	}
	return record.toVideo(), nil
}

// ListVideos returns all videos, newest first.
func (store *GormContentStore) ListVideos(ctx context.Context) ([]contentkit.Video, error) {
	var records []videoRecord
	listErr := store.db.WithContext(ctx).Order("created_at DESC").Find(&records).Error
	if listErr != nil {
		return nil, apperr.Upstream("video.list", "could not list videos", listErr)
	}
	videos := make([]contentkit.Video, 0, len(records))
	for _, record := range records {
		videos = append(videos, record.toVideo())
	}
	return videos, nil
}

// IncrementVideoViews bumps the view counter in a single write.
func (store *GormContentStore) IncrementVideoViews(ctx context.Context, videoID string) error {
	result := store.db.WithContext(ctx).Model(&videoRecord{}).
		Where("id = ?", videoID).
		Update("views", gorm.Expr("views + 1"))
	if result.Error != nil {
		return apperr.Upstream("video.views", "could not count view", result.Error)
	}
	if result.RowsAffected == 0 {
		return apperr.NotFound("video.not_found", "video not found")
	}
	return nil
}

// CreateComment stores a new comment record.
func (store *GormContentStore) CreateComment(ctx context.Context, comment contentkit.Comment) (contentkit.Comment, error) {
	record := commentRecord{
		ID:      uuid.NewString(),
		OwnerID: comment.OwnerID,
		VideoID: comment.VideoID,
		Body:    comment.Body,
	}
	if createErr := store.db.WithContext(ctx).Create(&record).Error; createErr != nil {
		return contentkit.Comment{}, apperr.Upstream("comment.insert", "could not create comment", createErr)
	}
	return record.toComment(), nil
}

// GetComment loads a comment by id.
func (store *GormContentStore) GetComment(ctx context.Context, commentID string) (contentkit.Comment, error) {
	var record commentRecord
	findErr := store.db.WithContext(ctx).Where("id = ?", commentID).Take(&record).Error
	if findErr != nil {
		if errors.Is(findErr, gorm.ErrRecordNotFound) {
			return contentkit.Comment{}, apperr.NotFound("comment.not_found", "comment not found")
		}
		return contentkit.Comment{}, apperr.Upstream("comment.find", "could not load comment", findErr)
	}
	return record.toComment(), nil
}

// ListCommentsByVideo returns a video's comments, oldest first.
func (store *GormContentStore) ListCommentsByVideo(ctx context.Context, videoID string) ([]contentkit.Comment, error) {
	var records []commentRecord
	listErr := store.db.WithContext(ctx).
		Where("video_id = ?", videoID).
		Order("created_at").
		Find(&records).Error
	if listErr != nil {
		return nil, apperr.Upstream("comment.list", "could not list comments", listErr)
	}
	comments := make([]contentkit.Comment, 0, len(records))
	for _, record := range records {
		comments = append(comments, record.toComment())
	}
	return comments, nil
}

// DeleteComment removes an owned comment. A missing row and a foreign owner
// both report not-found so callers cannot probe other users' records.
func (store *GormContentStore) DeleteComment(ctx context.Context, commentID string, ownerID string) error {
	result := store.db.WithContext(ctx).
		Where("id = ? AND owner_id = ?", commentID, ownerID).
		Delete(&commentRecord{})
	if result.Error != nil {
		return apperr.Upstream("comment.delete", "could not delete comment", result.Error)
	}
	if result.RowsAffected == 0 {
		return apperr.NotFound("comment.not_found", "comment not found")
	}
	return nil
}

// CreateTweet stores a new tweet record.
func (store *GormContentStore) CreateTweet(ctx context.Context, tweet contentkit.Tweet) (contentkit.Tweet, error) {
	record := tweetRecord{
		ID:      uuid.NewString(),
		OwnerID: tweet.OwnerID,
		Body:    tweet.Body,
	}
	if createErr := store.db.WithContext(ctx).Create(&record).Error; createErr != nil {
		return contentkit.Tweet{}, apperr.Upstream("tweet.insert", "could not create tweet", createErr)
	}
	return record.toTweet(), nil
}

// GetTweet loads a tweet by id.
func (store *GormContentStore) GetTweet(ctx context.Context, tweetID string) (contentkit.Tweet, error) {
	var record tweetRecord
	findErr := store.db.WithContext(ctx).Where("id = ?", tweetID).Take(&record).Error
	if findErr != nil {
		if errors.Is(findErr, gorm.ErrRecordNotFound) {
			return contentkit.Tweet{}, apperr.NotFound("tweet.not_found", "tweet not found")
		}
		return contentkit.Tweet{}, apperr.Upstream("tweet.find", "could not load tweet", findErr)
	}
	return record.toTweet(), nil
}

// ListTweetsByOwner returns a user's tweets, newest first.
func (store *GormContentStore) ListTweetsByOwner(ctx context.Context, ownerID string) ([]contentkit.Tweet, error) {
	var records []tweetRecord
	listErr := store.db.WithContext(ctx).
		Where("owner_id = ?", ownerID).
		Order("created_at DESC").
		Find(&records).Error
	if listErr != nil {
		return nil, apperr.Upstream("tweet.list", "could not list tweets", listErr)
	}
	tweets := make([]contentkit.Tweet, 0, len(records))
	for _, record := range records {
		tweets = append(tweets, record.toTweet())
	}
	return tweets, nil
}

// DeleteTweet removes an owned tweet.
func (store *GormContentStore) DeleteTweet(ctx context.Context, tweetID string, ownerID string) error {
	result := store.db.WithContext(ctx).
		Where("id = ? AND owner_id = ?", tweetID, ownerID).
		Delete(&tweetRecord{})
	if result.Error != nil {
		return apperr.Upstream("tweet.delete", "could not delete tweet", result.Error)
	}
	if result.RowsAffected == 0 {
		return apperr.NotFound("tweet.not_found", "tweet not found")
	}
	return nil
}

func (record videoRecord) toVideo() contentkit.Video {
	return contentkit.Video{
		ID:              record.ID,
		OwnerID:         record.OwnerID,
		Title:           record.Title,
		Description:     record.Description,
		URL:             record.URL,
		DurationSeconds: record.DurationSeconds,
		Views:           record.Views,
		CreatedAt:       record.CreatedAt,
	}
}

func (record commentRecord) toComment() contentkit.Comment {
	return contentkit.Comment{
		ID:        record.ID,
		OwnerID:   record.OwnerID,
		VideoID:   record.VideoID,
		Body:      record.Body,
		CreatedAt: record.CreatedAt,
	}
}

func (record tweetRecord) toTweet() contentkit.Tweet {
	return contentkit.Tweet{
		ID:        record.ID,
		OwnerID:   record.OwnerID,
		Body:      record.Body,
		CreatedAt: record.CreatedAt,
	}
}
