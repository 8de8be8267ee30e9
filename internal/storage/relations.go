package storage

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/tyemirov/clipstream/internal/apperr"
	"github.com/tyemirov/clipstream/internal/relationkit"
)

type relationRecord struct {
	ID        string `gorm:"column:id;primaryKey"`
	ActorID   string `gorm:"column:actor_id;uniqueIndex:idx_relation_key;not null"`
	TargetID  string `gorm:"column:target_id;uniqueIndex:idx_relation_key;not null"`
	Kind      string `gorm:"column:kind;uniqueIndex:idx_relation_key;not null"`
	CreatedAt time.Time
}

func (relationRecord) TableName() string {
	return "relations"
}

func (record relationRecord) toRelation() relationkit.Relation {
	return relationkit.Relation{
		ID:        record.ID,
		ActorID:   record.ActorID,
		TargetID:  record.TargetID,
		Kind:      relationkit.RelationKind(record.Kind),
		CreatedAt: record.CreatedAt,
	}
}

// GormRelationStore persists relationship records using GORM. The composite
// unique index on (actor_id, target_id, kind) is the at-most-one-row
// guarantee the toggle engine relies on.
type GormRelationStore struct {
	db *gorm.DB
}

// InsertUnique stores a new relationship; a unique-index hit surfaces as a
// conflict-classified error for the engine to absorb.
func (store *GormRelationStore) InsertUnique(ctx context.Context, relation relationkit.Relation) (relationkit.Relation, error) {
	record := relationRecord{
		ID:       uuid.NewString(),
		ActorID:  relation.ActorID,
		TargetID: relation.TargetID,
		Kind:     string(relation.Kind),
	}
	if createErr := store.db.WithContext(ctx).Create(&record).Error; createErr != nil {
		if errors.Is(createErr, gorm.ErrDuplicatedKey) {
			return relationkit.Relation{}, apperr.Conflict("relation.duplicate", "relationship already exists")
		}
		return relationkit.Relation{}, apperr.Upstream("relation.insert", "could not create relationship", createErr)
	}
	return record.toRelation(), nil
}

// DeleteByKey removes the relationship matching the key and reports whether a
// row was removed. The row is loaded first and deleted by its primary key, so
// the returned record carries the removed row's full state and a row
// reinserted by a concurrent toggle is never the one deleted.
func (store *GormRelationStore) DeleteByKey(ctx context.Context, actorID string, targetID string, kind relationkit.RelationKind) (relationkit.Relation, bool, error) {
	var record relationRecord
	findErr := store.db.WithContext(ctx).
		Where("actor_id = ? AND target_id = ? AND kind = ?", actorID, targetID, string(kind)).
		Take(&record).Error
	if findErr != nil {
		if errors.Is(findErr, gorm.ErrRecordNotFound) {
			return relationkit.Relation{}, false, nil
		}
		return relationkit.Relation{}, false, apperr.Upstream("relation.delete", "could not remove relationship", findErr)
	}

	result := store.db.WithContext(ctx).
		Where("id = ?", record.ID).
		Delete(&relationRecord{})
	if result.Error != nil {
		return relationkit.Relation{}, false, apperr.Upstream("relation.delete", "could not remove relationship", result.Error)
	}
	if result.RowsAffected == 0 {
		// Lost a race: the observed row is already gone.
		return relationkit.Relation{}, false, nil
	}
	return record.toRelation(), true, nil
}

// FindByKey loads the relationship matching the key.
func (store *GormRelationStore) FindByKey(ctx context.Context, actorID string, targetID string, kind relationkit.RelationKind) (relationkit.Relation, error) {
	var record relationRecord
	findErr := store.db.WithContext(ctx).
		Where("actor_id = ? AND target_id = ? AND kind = ?", actorID, targetID, string(kind)).
		Take(&record).Error
	if findErr != nil {
		if errors.Is(findErr, gorm.ErrRecordNotFound) {
			return relationkit.Relation{}, apperr.NotFound("relation.not_found", "relationship not found")
		}
		return relationkit.Relation{}, apperr.Upstream("relation.find", "could not load relationship", findErr)
	}
	return record.toRelation(), nil
}

// ListActorsByTarget returns every relationship pointing at the target.
func (store *GormRelationStore) ListActorsByTarget(ctx context.Context, targetID string, kind relationkit.RelationKind) ([]relationkit.Relation, error) {
	var records []relationRecord
	listErr := store.db.WithContext(ctx).
		Where("target_id = ? AND kind = ?", targetID, string(kind)).
		Order("created_at").
		Find(&records).Error
	if listErr != nil {
		return nil, apperr.Upstream("relation.list", "could not list relationships", listErr)
	}
	return toRelations(records), nil
}

// ListTargetsByActor returns every relationship originating at the actor.
func (store *GormRelationStore) ListTargetsByActor(ctx context.Context, actorID string, kind relationkit.RelationKind) ([]relationkit.Relation, error) {
	var records []relationRecord
	listErr := store.db.WithContext(ctx).
		Where("actor_id = ? AND kind = ?", actorID, string(kind)).
		Order("created_at").
		Find(&records).Error
	if listErr != nil {
		return nil, apperr.Upstream("relation.list", "could not list relationships", listErr)
	}
	return toRelations(records), nil
}

// CountByTarget counts relationships pointing at the target.
func (store *GormRelationStore) CountByTarget(ctx context.Context, targetID string, kind relationkit.RelationKind) (int64, error) {
	var count int64
	countErr := store.db.WithContext(ctx).Model(&relationRecord{}).
		Where("target_id = ? AND kind = ?", targetID, string(kind)).
		Count(&count).Error
	if countErr != nil {
		return 0, apperr.Upstream("relation.count", "could not count relationships", countErr)
	}
	return count, nil
}

func toRelations(records []relationRecord) []relationkit.Relation {
	relations := make([]relationkit.Relation, 0, len(records))
	for _, record := range records {
		relations = append(relations, record.toRelation())
	}
	return relations
}
