package relationkit

import (
	"context"
	"strings"

	"go.uber.org/zap"

	"github.com/tyemirov/clipstream/internal/apperr"
)

// ToggleEngine flips a directed relationship between existing and absent.
type ToggleEngine struct {
	relations RelationStore
	logger    *zap.Logger
	metrics   MetricsRecorder
}

// MetricsRecorder mirrors the session layer's counter seam.
type MetricsRecorder interface {
	Increment(event string)
}

type nopMetrics struct{}

func (nopMetrics) Increment(event string) {}

// NewToggleEngine wires the engine. Logger and metrics may be nil.
func NewToggleEngine(relations RelationStore, logger *zap.Logger, metrics MetricsRecorder) *ToggleEngine {
	if relations == nil {
		panic("relation store is required")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if metrics == nil {
		metrics = nopMetrics{}
	}
	return &ToggleEngine{relations: relations, logger: logger, metrics: metrics}
}

// Toggle removes the relationship if present, otherwise creates it.
//
// The order is delete-first: a hit means this was an un-relate request and
// the store already settled it in one atomic operation. Only on a miss does
// the engine insert, and a duplicate-key failure there means a concurrent
// toggle created the row between our delete and insert; that race is
// absorbed by re-reading the winner's row and reporting created. The store's
// uniqueness constraint, not any in-process check, guarantees the at-most-
// one-row invariant.
func (engine *ToggleEngine) Toggle(ctx context.Context, actorID string, targetID string, kind RelationKind, targetExists ExistsCheck) (ToggleResult, error) {
	if strings.TrimSpace(targetID) == "" {
		return ToggleResult{}, apperr.Validation("toggle.invalid_target", "target id is required")
	}
	if !kind.Valid() {
		return ToggleResult{}, apperr.Validation("toggle.invalid_kind", "unknown relation kind")
	}
	if targetExists != nil {
		exists, existsErr := targetExists(ctx, targetID)
		if existsErr != nil {
			return ToggleResult{}, apperr.Upstream("toggle.exists_check", "could not verify target", existsErr)
		}
		if !exists {
			return ToggleResult{}, apperr.NotFound("toggle.target_missing", "target does not exist")
		}
	}

	removed, wasRemoved, deleteErr := engine.relations.DeleteByKey(ctx, actorID, targetID, kind)
	if deleteErr != nil {
		return ToggleResult{}, apperr.Upstream("toggle.delete", "could not toggle relationship", deleteErr)
	}
	if wasRemoved {
		engine.metrics.Increment("toggle.removed")
		return ToggleResult{State: StateRemoved, Record: removed}, nil
	}

	created, insertErr := engine.relations.InsertUnique(ctx, Relation{
		ActorID:  actorID,
		TargetID: targetID,
		Kind:     kind,
	})
	if insertErr != nil {
		if apperr.KindOf(insertErr) == apperr.KindConflict {
			// A concurrent toggle won the create; report its row as ours.
			existing, findErr := engine.relations.FindByKey(ctx, actorID, targetID, kind)
			if findErr != nil {
				return ToggleResult{}, apperr.Upstream("toggle.reread", "could not toggle relationship", findErr)
			}
			engine.logger.Debug("absorbed duplicate toggle create",
				zap.String("code", "toggle.duplicate_absorbed"),
				zap.String("actor_id", actorID),
				zap.String("target_id", targetID),
				zap.String("kind", string(kind)),
			)
			engine.metrics.Increment("toggle.duplicate_absorbed")
			return ToggleResult{State: StateCreated, Record: existing}, nil
		}
		return ToggleResult{}, apperr.Upstream("toggle.insert", "could not toggle relationship", insertErr)
	}

	engine.metrics.Increment("toggle.created")
	return ToggleResult{State: StateCreated, Record: created}, nil
}
