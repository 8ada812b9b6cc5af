package sqlite

import (
	"context"
	"database/sql"
	"time"

	"github.com/taskmcp/taskmcp/internal/types"
)

type taskStore struct {
	db dbtx
}

func (s *taskStore) Create(ctx context.Context, t *types.Task) types.Result[*types.Task] {
	if err := t.Validate(); err != nil {
		return types.Failure[*types.Task](types.NewStoreError(types.ErrValidation, err.Error(), nil))
	}
	if t.ID.IsZero() {
		t.ID = types.NewID()
	}
	now := time.Now()
	t.CreatedAt, t.ModifiedAt = now, now
	t.Version = 1

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO tasks (id, title, summary, description, status, priority, complexity, tags, feature_id, project_id, created_at, modified_at, version)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		t.ID.String(), t.Title, t.Summary, t.Description, string(t.Status), string(t.Priority), t.Complexity,
		tagsToJSON(t.Tags), nullableID(t.FeatureID), nullableID(t.ProjectID), formatTime(t.CreatedAt), formatTime(t.ModifiedAt), t.Version)
	return result(t, err, "")
}

func (s *taskStore) Update(ctx context.Context, t *types.Task) types.Result[*types.Task] {
	if err := t.Validate(); err != nil {
		return types.Failure[*types.Task](types.NewStoreError(types.ErrValidation, err.Error(), nil))
	}
	t.ModifiedAt = time.Now()
	t.Version++
	res, err := s.db.ExecContext(ctx, `
		UPDATE tasks SET title=?, summary=?, description=?, status=?, priority=?, complexity=?, tags=?, feature_id=?, project_id=?, modified_at=?, version=?
		WHERE id=?`,
		t.Title, t.Summary, t.Description, string(t.Status), string(t.Priority), t.Complexity, tagsToJSON(t.Tags),
		nullableID(t.FeatureID), nullableID(t.ProjectID), formatTime(t.ModifiedAt), t.Version, t.ID.String())
	if err != nil {
		return types.Failure[*types.Task](mapDBError(err, ""))
	}
	n, _ := res.RowsAffected()
	if n == 0 {
		return types.Failure[*types.Task](types.NewStoreError(types.ErrNotFound, "task not found: "+t.ID.String(), nil))
	}
	return types.Success(t)
}

func (s *taskStore) Delete(ctx context.Context, id types.ID) types.Result[bool] {
	return withCascadeTx(ctx, s.db, func(db dbtx) types.Result[bool] {
		return deleteTaskCascade(ctx, db, id)
	})
}

// deleteTaskCascade removes a task's owned Sections and Dependency edges
// before the row itself, wiring SectionStore.DeleteByOwner and
// DependencyStore.DeleteByTask — a task is a leaf in the container
// hierarchy, so this is the full cascade for it.
func deleteTaskCascade(ctx context.Context, db dbtx, id types.ID) types.Result[bool] {
	if res := (&sectionStore{db}).DeleteByOwner(ctx, types.EntityTask, id); !res.Ok() {
		return types.Failure[bool](res.Err())
	}
	if res := (&dependencyStore{db}).DeleteByTask(ctx, id); !res.Ok() {
		return types.Failure[bool](res.Err())
	}
	res, err := db.ExecContext(ctx, `DELETE FROM tasks WHERE id=?`, id.String())
	if err != nil {
		return types.Failure[bool](mapDBError(err, ""))
	}
	n, _ := res.RowsAffected()
	return types.Success(n > 0)
}

func (s *taskStore) GetByID(ctx context.Context, id types.ID) types.Result[*types.Task] {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, title, summary, description, status, priority, complexity, tags, feature_id, project_id, created_at, modified_at, version
		FROM tasks WHERE id=?`, id.String())
	t, err := scanTask(row)
	if err != nil {
		return types.Failure[*types.Task](mapDBError(err, "task not found: "+id.String()))
	}
	return types.Success(t)
}

func (s *taskStore) FindAll(ctx context.Context, limit int) types.Result[[]*types.Task] {
	return s.Find(ctx, types.EntityFilter{Limit: limit})
}

func (s *taskStore) Find(ctx context.Context, filter types.EntityFilter) types.Result[[]*types.Task] {
	query := `SELECT id, title, summary, description, status, priority, complexity, tags, feature_id, project_id, created_at, modified_at, version FROM tasks WHERE 1=1`
	var args []any
	query, args = applyStatusFilter(query, args, filter.Status, "status")
	query, args = applyPriorityFilter(query, args, filter.Priority, "priority")
	query, args = applyTextQuery(query, args, filter.TextQuery, "title", "summary", "description")
	if filter.ProjectID != nil {
		query += " AND project_id=?"
		args = append(args, filter.ProjectID.String())
	}
	if filter.FeatureID != nil {
		query += " AND feature_id=?"
		args = append(args, filter.FeatureID.String())
	}
	query += " ORDER BY created_at ASC"
	query, args = applyLimit(query, args, filter.Limit)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return types.Failure[[]*types.Task](mapDBError(err, ""))
	}
	defer rows.Close()

	var out []*types.Task
	for rows.Next() {
		t, err := scanTask(rows)
		if err != nil {
			return types.Failure[[]*types.Task](mapDBError(err, ""))
		}
		if matchesTags(t.Tags, filter.RequiredTags) {
			out = append(out, t)
		}
	}
	return types.Success(out)
}

func (s *taskStore) ByFeature(ctx context.Context, featureID types.ID) types.Result[[]*types.Task] {
	return s.Find(ctx, types.EntityFilter{FeatureID: &featureID})
}

func (s *taskStore) ByProject(ctx context.Context, projectID types.ID) types.Result[[]*types.Task] {
	return s.Find(ctx, types.EntityFilter{ProjectID: &projectID})
}

func scanTask(row scanner) (*types.Task, error) {
	var t types.Task
	var idStr, status, priority, tags, createdAt, modifiedAt string
	var featureID, projectID sql.NullString
	if err := row.Scan(&idStr, &t.Title, &t.Summary, &t.Description, &status, &priority, &t.Complexity, &tags,
		&featureID, &projectID, &createdAt, &modifiedAt, &t.Version); err != nil {
		return nil, err
	}
	id, err := types.ParseID(idStr)
	if err != nil {
		return nil, err
	}
	t.ID = id
	t.Status = types.Status(status)
	t.Priority = types.Priority(priority)
	t.Tags = tagsFromJSON(tags)
	fid, err := idFromNullable(featureID)
	if err != nil {
		return nil, err
	}
	t.FeatureID = fid
	pid, err := idFromNullable(projectID)
	if err != nil {
		return nil, err
	}
	t.ProjectID = pid
	t.CreatedAt = parseTime(createdAt)
	t.ModifiedAt = parseTime(modifiedAt)
	return &t, nil
}
