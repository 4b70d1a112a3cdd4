package repositories

import (
	"context"
	"fmt"

	"github.com/vidtube/backend/internal/db"
	"github.com/vidtube/backend/internal/models"
)

// PostgresEdgeRepository stores relationship edges. Every mutation is a single
// statement guarded by the (subject_id, object_id, kind) primary key.
type PostgresEdgeRepository struct {
	pool db.Pool
}

// NewPostgresEdgeRepository constructs an edge repository backed by PostgreSQL.
func NewPostgresEdgeRepository(pool db.Pool) *PostgresEdgeRepository {
	return &PostgresEdgeRepository{pool: pool}
}

// Insert creates the edge unless it already exists. It reports whether a row was written.
func (r *PostgresEdgeRepository) Insert(ctx context.Context, edge models.Edge) (bool, error) {
	conn, err := r.pool.Acquire(ctx)
	if err != nil {
		return false, fmt.Errorf("acquire connection: %w", err)
	}
	defer conn.Release()

	tag, err := conn.Exec(ctx, `
        INSERT INTO relationship_edges (subject_id, object_id, kind, created_at)
        VALUES ($1, $2, $3, $4)
        ON CONFLICT (subject_id, object_id, kind) DO NOTHING
    `, edge.SubjectID, edge.ObjectID, string(edge.Kind), edge.CreatedAt)
	if err != nil {
		return false, translateWriteError("insert edge", err)
	}

	return tag.RowsAffected() == 1, nil
}

// Delete removes the edge. It reports whether a row was removed.
func (r *PostgresEdgeRepository) Delete(ctx context.Context, subjectID, objectID string, kind models.EdgeKind) (bool, error) {
	conn, err := r.pool.Acquire(ctx)
	if err != nil {
		return false, fmt.Errorf("acquire connection: %w", err)
	}
	defer conn.Release()

	tag, err := conn.Exec(ctx, `
        DELETE FROM relationship_edges
        WHERE subject_id = $1 AND object_id = $2 AND kind = $3
    `, subjectID, objectID, string(kind))
	if err != nil {
		return false, fmt.Errorf("delete edge: %w", err)
	}

	return tag.RowsAffected() == 1, nil
}

// Count returns how many edges of kind exist between subject and object. Used by tests
// and diagnostics; the primary key keeps it at zero or one.
func (r *PostgresEdgeRepository) Count(ctx context.Context, subjectID, objectID string, kind models.EdgeKind) (int, error) {
	conn, err := r.pool.Acquire(ctx)
	if err != nil {
		return 0, fmt.Errorf("acquire connection: %w", err)
	}
	defer conn.Release()

	var count int64
	if err := conn.QueryRow(ctx, `
        SELECT COUNT(*)
        FROM relationship_edges
        WHERE subject_id = $1 AND object_id = $2 AND kind = $3
    `, subjectID, objectID, string(kind)).Scan(&count); err != nil {
		return 0, fmt.Errorf("count edges: %w", err)
	}

	return int(count), nil
}

var targetTables = map[models.EdgeKind]string{
	models.EdgeVideoLike:    "videos",
	models.EdgeCommentLike:  "comments",
	models.EdgeSubscription: "users",
}

// Exists reports whether the object an edge of kind would point at is present.
// Kinds without a backing table are reported as present.
func (r *PostgresEdgeRepository) Exists(ctx context.Context, kind models.EdgeKind, objectID string) (bool, error) {
	table, ok := targetTables[kind]
	if !ok {
		return true, nil
	}

	conn, err := r.pool.Acquire(ctx)
	if err != nil {
		return false, fmt.Errorf("acquire connection: %w", err)
	}
	defer conn.Release()

	var exists bool
	if err := conn.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM `+table+` WHERE id = $1)`, objectID).Scan(&exists); err != nil {
		return false, fmt.Errorf("check %s target: %w", kind, err)
	}

	return exists, nil
}
