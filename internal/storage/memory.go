package storage

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/tyemirov/clipstream/internal/apperr"
	"github.com/tyemirov/clipstream/internal/contentkit"
	"github.com/tyemirov/clipstream/internal/relationkit"
	"github.com/tyemirov/clipstream/internal/sessionkit"
)

// MemoryUserStore is an in-memory identity store for dev runs and tests. It
// honors the same classification and compare-and-swap semantics as the GORM
// store.
type MemoryUserStore struct {
	mutex sync.Mutex
	byID  map[string]sessionkit.User
}

// NewMemoryUserStore creates an empty store.
func NewMemoryUserStore() *MemoryUserStore {
	return &MemoryUserStore{byID: make(map[string]sessionkit.User)}
}

// Insert stores a new identity record.
func (store *MemoryUserStore) Insert(ctx context.Context, user sessionkit.User) (sessionkit.User, error) {
	store.mutex.Lock()
	defer store.mutex.Unlock()
	for _, existing := range store.byID {
		if existing.Username == user.Username || existing.Email == user.Email {
			return sessionkit.User{}, apperr.Conflict("user.duplicate", "username or email already exists")
		}
	}
	user.ID = uuid.NewString()
	user.CreatedAt = time.Now().UTC()
	user.UpdatedAt = user.CreatedAt
	store.byID[user.ID] = user
	return user, nil
}

// FindByID loads an identity by id.
func (store *MemoryUserStore) FindByID(ctx context.Context, userID string) (sessionkit.User, error) {
	store.mutex.Lock()
	defer store.mutex.Unlock()
	user, ok := store.byID[userID]
	if !ok {
		return sessionkit.User{}, apperr.NotFound("user.not_found", "user not found")
	}
	return user, nil
}

// FindByLogin loads an identity by username or email.
func (store *MemoryUserStore) FindByLogin(ctx context.Context, usernameOrEmail string) (sessionkit.User, error) {
	store.mutex.Lock()
	defer store.mutex.Unlock()
	for _, user := range store.byID {
		if user.Username == usernameOrEmail || user.Email == usernameOrEmail {
			return user, nil
		}
	}
	return sessionkit.User{}, apperr.NotFound("user.not_found", "user not found")
}

// SetRefreshHash overwrites the stored refresh hash unconditionally.
func (store *MemoryUserStore) SetRefreshHash(ctx context.Context, userID string, refreshHash string) error {
	store.mutex.Lock()
	defer store.mutex.Unlock()
	user, ok := store.byID[userID]
	if !ok {
		return apperr.NotFound("user.not_found", "user not found")
	}
	user.CurrentRefreshHash = refreshHash
	user.UpdatedAt = time.Now().UTC()
	store.byID[userID] = user
	return nil
}

// SwapRefreshHash replaces the hash only when it still equals oldHash.
func (store *MemoryUserStore) SwapRefreshHash(ctx context.Context, userID string, oldHash string, newHash string) (bool, error) {
	store.mutex.Lock()
	defer store.mutex.Unlock()
	user, ok := store.byID[userID]
	if !ok || user.CurrentRefreshHash != oldHash {
		return false, nil
	}
	user.CurrentRefreshHash = newHash
	user.UpdatedAt = time.Now().UTC()
	store.byID[userID] = user
	return true, nil
}

// ClearRefreshHash removes the stored refresh hash.
func (store *MemoryUserStore) ClearRefreshHash(ctx context.Context, userID string) error {
	store.mutex.Lock()
	defer store.mutex.Unlock()
	user, ok := store.byID[userID]
	if !ok {
		return nil
	}
	user.CurrentRefreshHash = ""
	user.UpdatedAt = time.Now().UTC()
	store.byID[userID] = user
	return nil
}

// UpdatePassword replaces the digest and clears the refresh hash together.
func (store *MemoryUserStore) UpdatePassword(ctx context.Context, userID string, passwordDigest string) error {
	store.mutex.Lock()
	defer store.mutex.Unlock()
	user, ok := store.byID[userID]
	if !ok {
		return apperr.NotFound("user.not_found", "user not found")
	}
	user.PasswordDigest = passwordDigest
	user.CurrentRefreshHash = ""
	user.UpdatedAt = time.Now().UTC()
	store.byID[userID] = user
	return nil
}

// UpdateProfile applies the non-nil fields and returns the new state.
func (store *MemoryUserStore) UpdateProfile(ctx context.Context, userID string, update sessionkit.ProfileUpdate) (sessionkit.User, error) {
	store.mutex.Lock()
	defer store.mutex.Unlock()
	user, ok := store.byID[userID]
	if !ok {
		return sessionkit.User{}, apperr.NotFound("user.not_found", "user not found")
	}
	if update.Email != nil {
		for otherID, other := range store.byID {
			if otherID != userID && other.Email == *update.Email {
				return sessionkit.User{}, apperr.Conflict("user.duplicate", "email already exists")
			}
		}
		user.Email = *update.Email
	}
	if update.DisplayName != nil {
		user.DisplayName = *update.DisplayName
	}
	if update.AvatarURL != nil {
		user.AvatarURL = *update.AvatarURL
	}
	if update.CoverURL != nil {
		user.CoverURL = *update.CoverURL
	}
	user.UpdatedAt = time.Now().UTC()
	store.byID[userID] = user
	return user, nil
}

// UserExists reports whether the identity exists.
func (store *MemoryUserStore) UserExists(ctx context.Context, userID string) (bool, error) {
	store.mutex.Lock()
	defer store.mutex.Unlock()
	_, ok := store.byID[userID]
	return ok, nil
}

type relationKey struct {
	actorID  string
	targetID string
	kind     relationkit.RelationKind
}

// MemoryRelationStore is an in-memory relationship store. Its map key is the
// uniqueness constraint: inserting an occupied key reports a conflict, the
// same contract the unique index gives the GORM store.
type MemoryRelationStore struct {
	mutex sync.Mutex
	byKey map[relationKey]relationkit.Relation
}

// NewMemoryRelationStore creates an empty store.
func NewMemoryRelationStore() *MemoryRelationStore {
	return &MemoryRelationStore{byKey: make(map[relationKey]relationkit.Relation)}
}

// InsertUnique stores a new relationship or reports a conflict.
func (store *MemoryRelationStore) InsertUnique(ctx context.Context, relation relationkit.Relation) (relationkit.Relation, error) {
	store.mutex.Lock()
	defer store.mutex.Unlock()
	key := relationKey{actorID: relation.ActorID, targetID: relation.TargetID, kind: relation.Kind}
	if _, occupied := store.byKey[key]; occupied {
		return relationkit.Relation{}, apperr.Conflict("relation.duplicate", "relationship already exists")
	}
	relation.ID = uuid.NewString()
	relation.CreatedAt = time.Now().UTC()
	store.byKey[key] = relation
	return relation, nil
}

// DeleteByKey removes the matching relationship and reports whether one
// existed.
func (store *MemoryRelationStore) DeleteByKey(ctx context.Context, actorID string, targetID string, kind relationkit.RelationKind) (relationkit.Relation, bool, error) {
	store.mutex.Lock()
	defer store.mutex.Unlock()
	key := relationKey{actorID: actorID, targetID: targetID, kind: kind}
	relation, ok := store.byKey[key]
	if !ok {
		return relationkit.Relation{}, false, nil
	}
	delete(store.byKey, key)
	return relation, true, nil
}

// FindByKey loads the matching relationship.
func (store *MemoryRelationStore) FindByKey(ctx context.Context, actorID string, targetID string, kind relationkit.RelationKind) (relationkit.Relation, error) {
	store.mutex.Lock()
	defer store.mutex.Unlock()
	relation, ok := store.byKey[relationKey{actorID: actorID, targetID: targetID, kind: kind}]
	if !ok {
		return relationkit.Relation{}, apperr.NotFound("relation.not_found", "relationship not found")
	}
	return relation, nil
}

// ListActorsByTarget returns every relationship pointing at the target.
func (store *MemoryRelationStore) ListActorsByTarget(ctx context.Context, targetID string, kind relationkit.RelationKind) ([]relationkit.Relation, error) {
	store.mutex.Lock()
	defer store.mutex.Unlock()
	relations := []relationkit.Relation{}
	for key, relation := range store.byKey {
		if key.targetID == targetID && key.kind == kind {
			relations = append(relations, relation)
		}
	}
	return relations, nil
}

// ListTargetsByActor returns every relationship originating at the actor.
func (store *MemoryRelationStore) ListTargetsByActor(ctx context.Context, actorID string, kind relationkit.RelationKind) ([]relationkit.Relation, error) {
	store.mutex.Lock()
	defer store.mutex.Unlock()
	relations := []relationkit.Relation{}
	for key, relation := range store.byKey {
		if key.actorID == actorID && key.kind == kind {
			relations = append(relations, relation)
		}
	}
	return relations, nil
}

// CountByTarget counts relationships pointing at the target.
func (store *MemoryRelationStore) CountByTarget(ctx context.Context, targetID string, kind relationkit.RelationKind) (int64, error) {
	store.mutex.Lock()
	defer store.mutex.Unlock()
	var count int64
	for key := range store.byKey {
		if key.targetID == targetID && key.kind == kind {
			count++
		}
	}
	return count, nil
}

// MemoryContentStore is an in-memory content store for dev runs and tests.
type MemoryContentStore struct {
	mutex    sync.Mutex
	videos   map[string]contentkit.Video
	comments map[string]contentkit.Comment
	tweets   map[string]contentkit.Tweet
}

// NewMemoryContentStore creates an empty store.
func NewMemoryContentStore() *MemoryContentStore {
	return &MemoryContentStore{
		videos:   make(map[string]contentkit.Video),
		comments: make(map[string]contentkit.Comment),
		tweets:   make(map[string]contentkit.Tweet),
	}
}

// CreateVideo stores a new video record.
func (store *MemoryContentStore) CreateVideo(ctx context.Context, video contentkit.Video) (contentkit.Video, error) {
	store.mutex.Lock()
	defer store.mutex.Unlock()
	video.ID = uuid.NewString()
	video.CreatedAt = time.Now().UTC()
	store.videos[video.ID] = video
	return video, nil
}

// GetVideo loads a video by id.
func (store *MemoryContentStore) GetVideo(ctx context.Context, videoID string) (contentkit.Video, error) {
	store.mutex.Lock()
	defer store.mutex.Unlock()
	video, ok := store.videos[videoID]
	if !ok {
		return contentkit.Video{}, apperr.NotFound("video.not_found", "video not found")
	}
	return video, nil
}

// ListVideos returns all videos.
func (store *MemoryContentStore) ListVideos(ctx context.Context) ([]contentkit.Video, error) {
	store.mutex.Lock()
	defer store.mutex.Unlock()
	videos := []contentkit.Video{}
	for _, video := range store.videos {
		videos = append(videos, video)
	}
	return videos, nil
}

// IncrementVideoViews bumps the view counter.
func (store *MemoryContentStore) IncrementVideoViews(ctx context.Context, videoID string) error {
	store.mutex.Lock()
	defer store.mutex.Unlock()
	video, ok := store.videos[videoID]
	if !ok {
		return apperr.NotFound("video.not_found", "video not found")
	}
	video.Views++
	store.videos[videoID] = video
	return nil
}

// CreateComment stores a new comment record.
func (store *MemoryContentStore) CreateComment(ctx context.Context, comment contentkit.Comment) (contentkit.Comment, error) {
	store.mutex.Lock()
	defer store.mutex.Unlock()
	comment.ID = uuid.NewString()
	comment.CreatedAt = time.Now().UTC()
	store.comments[comment.ID] = comment
	return comment, nil
}

// GetComment loads a comment by id.
func (store *MemoryContentStore) GetComment(ctx context.Context, commentID string) (contentkit.Comment, error) {
	store.mutex.Lock()
	defer store.mutex.Unlock()
	comment, ok := store.comments[commentID]
	if !ok {
		return contentkit.Comment{}, apperr.NotFound("comment.not_found", "comment not found")
	}
	return comment, nil
}

// ListCommentsByVideo returns a video's comments.
func (store *MemoryContentStore) ListCommentsByVideo(ctx context.Context, videoID string) ([]contentkit.Comment, error) {
	store.mutex.Lock()
	defer store.mutex.Unlock()
	comments := []contentkit.Comment{}
	for _, comment := range store.comments {
		if comment.VideoID == videoID {
			comments = append(comments, comment)
		}
	}
	return comments, nil
}

// DeleteComment removes an owned comment.
func (store *MemoryContentStore) DeleteComment(ctx context.Context, commentID string, ownerID string) error {
	store.mutex.Lock()
	defer store.mutex.Unlock()
	comment, ok := store.comments[commentID]
	if !ok || comment.OwnerID != ownerID {
		return apperr.NotFound("comment.not_found", "comment not found")
	}
	delete(store.comments, commentID)
	return nil
}

// CreateTweet stores a new tweet record.
func (store *MemoryContentStore) CreateTweet(ctx context.Context, tweet contentkit.Tweet) (contentkit.Tweet, error) {
	store.mutex.Lock()
	defer store.mutex.Unlock()
	tweet.ID = uuid.NewString()
	tweet.CreatedAt = time.Now().UTC()
	store.tweets[tweet.ID] = tweet
	return tweet, nil
}

// GetTweet loads a tweet by id.
func (store *MemoryContentStore) GetTweet(ctx context.Context, tweetID string) (contentkit.Tweet, error) {
	store.mutex.Lock()
	defer store.mutex.Unlock()
	tweet, ok := store.tweets[tweetID]
	if !ok {
		return contentkit.Tweet{}, apperr.NotFound("tweet.not_found", "tweet not found")
	}
	return tweet, nil
}

// ListTweetsByOwner returns a user's tweets.
func (store *MemoryContentStore) ListTweetsByOwner(ctx context.Context, ownerID string) ([]contentkit.Tweet, error) {
	store.mutex.Lock()
	defer store.mutex.Unlock()
	tweets := []contentkit.Tweet{}
	for _, tweet := range store.tweets {
		if tweet.OwnerID == ownerID {
			tweets = append(tweets, tweet)
		}
	}
	return tweets, nil
}

// DeleteTweet removes an owned tweet.
func (store *MemoryContentStore) DeleteTweet(ctx context.Context, tweetID string, ownerID string) error {
	store.mutex.Lock()
	defer store.mutex.Unlock()
	tweet, ok := store.tweets[tweetID]
	if !ok || tweet.OwnerID != ownerID {
		return apperr.NotFound("tweet.not_found", "tweet not found")
	}
	delete(store.tweets, tweetID)
	return nil
}
