package storage

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/tyemirov/clipstream/internal/apperr"
	"github.com/tyemirov/clipstream/internal/relationkit"
)

func openTestDatabase(t *testing.T) *Database {
	t.Helper()
	database, openErr := Open(context.Background(), "sqlite://"+filepath.Join(t.TempDir(), "storage_test.db"))
	require.NoError(t, openErr)
	return database
}

func TestGormRelationStoreDeleteReturnsFullRecord(t *testing.T) {
	t.Parallel()

	database := openTestDatabase(t)
	store := database.Relations

	created, insertErr := store.InsertUnique(context.Background(), relationkit.Relation{
		ActorID: "actor-1", TargetID: "channel-1", Kind: relationkit.KindSubscription,
	})
	require.NoError(t, insertErr)
	require.NotEmpty(t, created.ID)

	// The removed record must carry the stored row's full state, matching
	// what the memory store reports.
	removed, wasRemoved, deleteErr := store.DeleteByKey(context.Background(), "actor-1", "channel-1", relationkit.KindSubscription)
	require.NoError(t, deleteErr)
	require.True(t, wasRemoved)
	require.Equal(t, created.ID, removed.ID)
	require.Equal(t, "actor-1", removed.ActorID)
	require.Equal(t, "channel-1", removed.TargetID)
	require.Equal(t, relationkit.KindSubscription, removed.Kind)
	require.False(t, removed.CreatedAt.IsZero())

	_, wasRemoved, deleteErr = store.DeleteByKey(context.Background(), "actor-1", "channel-1", relationkit.KindSubscription)
	require.NoError(t, deleteErr)
	require.False(t, wasRemoved)
}

func TestGormRelationStoreEnforcesUniqueKey(t *testing.T) {
	t.Parallel()

	database := openTestDatabase(t)
	store := database.Relations

	relation := relationkit.Relation{ActorID: "actor-1", TargetID: "video-1", Kind: relationkit.KindLikeVideo}
	_, insertErr := store.InsertUnique(context.Background(), relation)
	require.NoError(t, insertErr)

	_, duplicateErr := store.InsertUnique(context.Background(), relation)
	require.Equal(t, apperr.KindConflict, apperr.KindOf(duplicateErr))

	count, countErr := store.CountByTarget(context.Background(), "video-1", relationkit.KindLikeVideo)
	require.NoError(t, countErr)
	require.EqualValues(t, 1, count)
}
