// Package relationkit implements the toggle-relationship engine behind
// subscriptions and likes: at most one directed relationship record exists
// per (actor, target, kind), no matter how many requests race.
package relationkit

import (
	"context"
	"time"
)

// RelationKind types a directed relationship record.
type RelationKind string

const (
	// KindSubscription links a subscriber to a channel.
	KindSubscription RelationKind = "subscription"
	// KindLikeVideo links a user to a liked video.
	KindLikeVideo RelationKind = "like-video"
	// KindLikeComment links a user to a liked comment.
	KindLikeComment RelationKind = "like-comment"
	// KindLikeTweet links a user to a liked tweet.
	KindLikeTweet RelationKind = "like-tweet"
)

// Valid reports whether the kind is one of the known relation kinds.
func (kind RelationKind) Valid() bool {
	switch kind {
	case KindSubscription, KindLikeVideo, KindLikeComment, KindLikeTweet:
		return true
	}
	return false
}

// Relation is a directed relationship record. The entity is binary: it
// exists or it does not, there is no update verb.
type Relation struct {
	ID        string       `json:"id"`
	ActorID   string       `json:"actor_id"`
	TargetID  string       `json:"target_id"`
	Kind      RelationKind `json:"kind"`
	CreatedAt time.Time    `json:"created_at"`
}

// ToggleState reports which side of the toggle a request landed on.
type ToggleState string

const (
	// StateCreated means the relationship now exists.
	StateCreated ToggleState = "created"
	// StateRemoved means the relationship was deleted.
	StateRemoved ToggleState = "removed"
)

// ToggleResult is the outcome of a toggle operation.
type ToggleResult struct {
	State  ToggleState `json:"state"`
	Record Relation    `json:"record"`
}

// ExistsCheck is the caller-supplied capability answering whether the toggle
// target exists. The engine never creates a relationship to a missing target.
type ExistsCheck func(ctx context.Context, targetID string) (bool, error)

// RelationStore persists relationship records. InsertUnique must be backed
// by a uniqueness constraint on (actor, target, kind) and report duplicates
// as a conflict-classified error.
type RelationStore interface {
	InsertUnique(ctx context.Context, relation Relation) (Relation, error)
	DeleteByKey(ctx context.Context, actorID string, targetID string, kind RelationKind) (Relation, bool, error)
	FindByKey(ctx context.Context, actorID string, targetID string, kind RelationKind) (Relation, error)
	ListActorsByTarget(ctx context.Context, targetID string, kind RelationKind) ([]Relation, error)
	ListTargetsByActor(ctx context.Context, actorID string, kind RelationKind) ([]Relation, error)
	CountByTarget(ctx context.Context, targetID string, kind RelationKind) (int64, error)
}
