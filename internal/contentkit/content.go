// Package contentkit carries the thin content records the platform toggles
// against: videos, comments, and tweets. These are plain records with no
// invariant beyond existence and ownership.
package contentkit

import (
	"context"
	"time"
)

// Video is an uploaded media record.
type Video struct {
	ID              string    `json:"id"`
	OwnerID         string    `json:"owner_id"`
	Title           string    `json:"title"`
	Description     string    `json:"description"`
	URL             string    `json:"url"`
	DurationSeconds float64   `json:"duration_seconds"`
	Views           int64     `json:"views"`
	CreatedAt       time.Time `json:"created_at"`
}

// Comment is a remark attached to a video.
type Comment struct {
	ID        string    `json:"id"`
	OwnerID   string    `json:"owner_id"`
	VideoID   string    `json:"video_id"`
	Body      string    `json:"body"`
	CreatedAt time.Time `json:"created_at"`
}

// Tweet is a short free-standing post.
type Tweet struct {
	ID        string    `json:"id"`
	OwnerID   string    `json:"owner_id"`
	Body      string    `json:"body"`
	CreatedAt time.Time `json:"created_at"`
}

// ContentStore persists content records. Missing records surface as
// not-found-classified errors; deletes are owner-checked.
type ContentStore interface {
	CreateVideo(ctx context.Context, video Video) (Video, error)
	GetVideo(ctx context.Context, videoID string) (Video, error)
	ListVideos(ctx context.Context) ([]Video, error)
	IncrementVideoViews(ctx context.Context, videoID string) error

	CreateComment(ctx context.Context, comment Comment) (Comment, error)
	GetComment(ctx context.Context, commentID string) (Comment, error)
	ListCommentsByVideo(ctx context.Context, videoID string) ([]Comment, error)
	DeleteComment(ctx context.Context, commentID string, ownerID string) error

	CreateTweet(ctx context.Context, tweet Tweet) (Tweet, error)
	GetTweet(ctx context.Context, tweetID string) (Tweet, error)
	ListTweetsByOwner(ctx context.Context, ownerID string) ([]Tweet, error)
	DeleteTweet(ctx context.Context, tweetID string, ownerID string) error
}
