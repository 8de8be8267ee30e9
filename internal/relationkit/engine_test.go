package relationkit_test

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/tyemirov/clipstream/internal/apperr"
	"github.com/tyemirov/clipstream/internal/relationkit"
	"github.com/tyemirov/clipstream/internal/storage"
)

func targetAlwaysExists(ctx context.Context, targetID string) (bool, error) {
	return true, nil
}

func TestToggleCreatesThenRemoves(t *testing.T) {
	t.Parallel()

	relations := storage.NewMemoryRelationStore()
	engine := relationkit.NewToggleEngine(relations, zaptest.NewLogger(t), nil)

	created, createErr := engine.Toggle(context.Background(), "actor-1", "target-1", relationkit.KindSubscription, targetAlwaysExists)
	require.NoError(t, createErr)
	require.Equal(t, relationkit.StateCreated, created.State)
	require.Equal(t, "actor-1", created.Record.ActorID)
	require.Equal(t, "target-1", created.Record.TargetID)
	require.NotEmpty(t, created.Record.ID)

	removed, removeErr := engine.Toggle(context.Background(), "actor-1", "target-1", relationkit.KindSubscription, targetAlwaysExists)
	require.NoError(t, removeErr)
	require.Equal(t, relationkit.StateRemoved, removed.State)

	count, countErr := relations.CountByTarget(context.Background(), "target-1", relationkit.KindSubscription)
	require.NoError(t, countErr)
	require.Zero(t, count)
}

func TestToggleKindsAreIndependent(t *testing.T) {
	t.Parallel()

	relations := storage.NewMemoryRelationStore()
	engine := relationkit.NewToggleEngine(relations, zaptest.NewLogger(t), nil)

	_, subscribeErr := engine.Toggle(context.Background(), "actor-1", "target-1", relationkit.KindSubscription, targetAlwaysExists)
	require.NoError(t, subscribeErr)
	liked, likeErr := engine.Toggle(context.Background(), "actor-1", "target-1", relationkit.KindLikeVideo, targetAlwaysExists)
	require.NoError(t, likeErr)
	require.Equal(t, relationkit.StateCreated, liked.State)

	count, countErr := relations.CountByTarget(context.Background(), "target-1", relationkit.KindSubscription)
	require.NoError(t, countErr)
	require.EqualValues(t, 1, count, "like toggle must not disturb the subscription")
}

func TestToggleRejectsMissingTarget(t *testing.T) {
	t.Parallel()

	engine := relationkit.NewToggleEngine(storage.NewMemoryRelationStore(), zaptest.NewLogger(t), nil)

	_, toggleErr := engine.Toggle(context.Background(), "actor-1", "ghost", relationkit.KindSubscription, func(ctx context.Context, targetID string) (bool, error) {
		return false, nil
	})
	require.Equal(t, apperr.KindNotFound, apperr.KindOf(toggleErr))
	require.Equal(t, "toggle.target_missing", apperr.CodeOf(toggleErr))
}

func TestToggleRejectsBlankTargetAndUnknownKind(t *testing.T) {
	t.Parallel()

	engine := relationkit.NewToggleEngine(storage.NewMemoryRelationStore(), zaptest.NewLogger(t), nil)

	_, blankErr := engine.Toggle(context.Background(), "actor-1", "  ", relationkit.KindSubscription, targetAlwaysExists)
	require.Equal(t, apperr.KindValidation, apperr.KindOf(blankErr))

	_, kindErr := engine.Toggle(context.Background(), "actor-1", "target-1", relationkit.RelationKind("bookmark"), targetAlwaysExists)
	require.Equal(t, apperr.KindValidation, apperr.KindOf(kindErr))
}

func TestToggleExistsCheckFailureIsUpstream(t *testing.T) {
	t.Parallel()

	engine := relationkit.NewToggleEngine(storage.NewMemoryRelationStore(), zaptest.NewLogger(t), nil)

	_, toggleErr := engine.Toggle(context.Background(), "actor-1", "target-1", relationkit.KindSubscription, func(ctx context.Context, targetID string) (bool, error) {
		return false, errors.New("store offline")
	})
	require.Equal(t, apperr.KindUpstream, apperr.KindOf(toggleErr))
}

// conflictOnFirstInsert simulates a concurrent toggle winning the create
// between the engine's delete miss and its insert.
type conflictOnFirstInsert struct {
	relationkit.RelationStore
	fired bool
}

func (store *conflictOnFirstInsert) InsertUnique(ctx context.Context, relation relationkit.Relation) (relationkit.Relation, error) {
	if !store.fired {
		store.fired = true
		if _, seedErr := store.RelationStore.InsertUnique(ctx, relation); seedErr != nil {
			return relationkit.Relation{}, seedErr
		}
		return relationkit.Relation{}, apperr.Conflict("relation.duplicate", "relationship already exists")
	}
	return store.RelationStore.InsertUnique(ctx, relation)
}

func TestToggleAbsorbsDuplicateCreate(t *testing.T) {
	t.Parallel()

	racing := &conflictOnFirstInsert{RelationStore: storage.NewMemoryRelationStore()}
	engine := relationkit.NewToggleEngine(racing, zaptest.NewLogger(t), nil)

	result, toggleErr := engine.Toggle(context.Background(), "actor-1", "target-1", relationkit.KindLikeVideo, targetAlwaysExists)
	require.NoError(t, toggleErr, "losing the insert race must not surface as an error")
	require.Equal(t, relationkit.StateCreated, result.State)
	require.Equal(t, "actor-1", result.Record.ActorID)
	require.NotEmpty(t, result.Record.ID, "absorbed create reports the winner's row")
}

func TestConcurrentTogglesLeaveAtMostOneRow(t *testing.T) {
	t.Parallel()

	relations := storage.NewMemoryRelationStore()
	engine := relationkit.NewToggleEngine(relations, zaptest.NewLogger(t), nil)

	const workers = 16
	var group sync.WaitGroup
	group.Add(workers)
	for worker := 0; worker < workers; worker++ {
		go func() {
			defer group.Done()
			_, toggleErr := engine.Toggle(context.Background(), "actor-1", "target-1", relationkit.KindSubscription, targetAlwaysExists)
			if toggleErr != nil {
				t.Errorf("unexpected toggle error: %v", toggleErr)
			}
		}()
	}
	group.Wait()

	count, countErr := relations.CountByTarget(context.Background(), "target-1", relationkit.KindSubscription)
	require.NoError(t, countErr)
	require.LessOrEqual(t, count, int64(1), "uniqueness constraint must cap the row count")
}
