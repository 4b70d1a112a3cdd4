// Package toggle flips relationship edges (likes, subscriptions) between present and
// absent. Every flip is one insert attempt under the edge's uniqueness constraint,
// followed by a delete only when the insert found the edge already present.
package toggle

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/vidtube/backend/internal/apperr"
	"github.com/vidtube/backend/internal/logging"
	"github.com/vidtube/backend/internal/metrics"
	"github.com/vidtube/backend/internal/models"
	"github.com/vidtube/backend/internal/repositories"
	"github.com/vidtube/backend/internal/validation"
)

// State is the outcome of a toggle.
type State string

const (
	Added   State = "added"
	Removed State = "removed"
)

// Result reports what a toggle did.
type Result struct {
	State State `json:"state"`
}

// Store applies single-statement edge mutations.
type Store interface {
	// Insert writes the edge unless it exists and reports whether it wrote.
	Insert(ctx context.Context, edge models.Edge) (bool, error)
	// Delete removes the edge and reports whether a row was removed.
	Delete(ctx context.Context, subjectID, objectID string, kind models.EdgeKind) (bool, error)
}

// TargetChecker reports whether the object of an edge exists.
type TargetChecker interface {
	Exists(ctx context.Context, kind models.EdgeKind, objectID string) (bool, error)
}

// TargetCheckerFunc adapts a function to TargetChecker.
type TargetCheckerFunc func(ctx context.Context, kind models.EdgeKind, objectID string) (bool, error)

// Exists calls f.
func (f TargetCheckerFunc) Exists(ctx context.Context, kind models.EdgeKind, objectID string) (bool, error) {
	return f(ctx, kind, objectID)
}

// Engine toggles edges.
type Engine struct {
	store   Store
	targets TargetChecker
	now     func() time.Time
}

// NewEngine returns an engine writing through store. targets may be nil, in which case
// objects are not checked for existence.
func NewEngine(store Store, targets TargetChecker) *Engine {
	return &Engine{store: store, targets: targets, now: time.Now}
}

var targetNames = map[models.EdgeKind]string{
	models.EdgeVideoLike:    "video",
	models.EdgeCommentLike:  "comment",
	models.EdgePostLike:     "post",
	models.EdgeSubscription: "channel",
}

// Toggle flips the (subjectID, objectID, kind) edge. Concurrent identical toggles never
// produce duplicate edges; each call leaves the edge in the state it reports.
func (e *Engine) Toggle(ctx context.Context, subjectID, objectID string, kind models.EdgeKind) (Result, error) {
	if !kind.Valid() {
		return Result{}, apperr.Validation("unknown relationship kind")
	}
	if err := validation.Var("subjectId", subjectID, "required,uuid"); err != nil {
		return Result{}, err
	}
	if err := validation.Var(targetNames[kind]+"Id", objectID, "required,uuid"); err != nil {
		return Result{}, err
	}
	if kind == models.EdgeSubscription && subjectID == objectID {
		return Result{}, apperr.Validation("cannot subscribe to your own channel")
	}

	ctx, span := logging.StartSpan(ctx, "toggle."+string(kind))
	defer span.End()
	logger := logging.FromContext(ctx)

	if e.targets != nil && kind != models.EdgePostLike {
		exists, err := e.targets.Exists(ctx, kind, objectID)
		if err != nil {
			return Result{}, apperr.Internal("failed to toggle", err)
		}
		if !exists {
			return Result{}, apperr.NotFound(targetNames[kind] + " not found")
		}
	}

	inserted, err := e.store.Insert(ctx, models.Edge{
		SubjectID: subjectID,
		ObjectID:  objectID,
		Kind:      kind,
		CreatedAt: e.now().UTC(),
	})
	if err != nil {
		return Result{}, translate(kind, err)
	}
	if inserted {
		metrics.RecordToggle(string(kind), string(Added))
		logger.Debug("edge added", slog.String("subject_id", subjectID), slog.String("object_id", objectID))
		return Result{State: Added}, nil
	}

	// The edge existed at insert time. A concurrent toggle may already have removed it;
	// either way it is absent once this delete returns.
	deleted, err := e.store.Delete(ctx, subjectID, objectID, kind)
	if err != nil {
		return Result{}, translate(kind, err)
	}
	if !deleted {
		logger.Debug("edge already removed concurrently", slog.String("subject_id", subjectID), slog.String("object_id", objectID))
	}
	metrics.RecordToggle(string(kind), string(Removed))
	return Result{State: Removed}, nil
}

func translate(kind models.EdgeKind, err error) error {
	switch {
	case errors.Is(err, repositories.ErrNotFound):
		return apperr.NotFound(targetNames[kind] + " not found")
	case errors.Is(err, repositories.ErrInvalidReference):
		return apperr.Validation("cannot subscribe to your own channel")
	default:
		return apperr.Internal("failed to toggle", err)
	}
}
