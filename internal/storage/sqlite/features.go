package sqlite

import (
	"context"
	"database/sql"
	"time"

	"github.com/taskmcp/taskmcp/internal/types"
)

type featureStore struct {
	db dbtx
}

func (s *featureStore) Create(ctx context.Context, f *types.Feature) types.Result[*types.Feature] {
	if err := f.Validate(); err != nil {
		return types.Failure[*types.Feature](types.NewStoreError(types.ErrValidation, err.Error(), nil))
	}
	if f.ID.IsZero() {
		f.ID = types.NewID()
	}
	now := time.Now()
	f.CreatedAt, f.ModifiedAt = now, now
	f.Version = 1

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO features (id, name, summary, description, status, priority, tags, project_id, created_at, modified_at, version)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		f.ID.String(), f.Name, f.Summary, f.Description, string(f.Status), string(f.Priority),
		tagsToJSON(f.Tags), nullableID(f.ProjectID), formatTime(f.CreatedAt), formatTime(f.ModifiedAt), f.Version)
	return result(f, err, "")
}

func (s *featureStore) Update(ctx context.Context, f *types.Feature) types.Result[*types.Feature] {
	if err := f.Validate(); err != nil {
		return types.Failure[*types.Feature](types.NewStoreError(types.ErrValidation, err.Error(), nil))
	}
	f.ModifiedAt = time.Now()
	f.Version++
	res, err := s.db.ExecContext(ctx, `
		UPDATE features SET name=?, summary=?, description=?, status=?, priority=?, tags=?, project_id=?, modified_at=?, version=?
		WHERE id=?`,
		f.Name, f.Summary, f.Description, string(f.Status), string(f.Priority), tagsToJSON(f.Tags),
		nullableID(f.ProjectID), formatTime(f.ModifiedAt), f.Version, f.ID.String())
	if err != nil {
		return types.Failure[*types.Feature](mapDBError(err, ""))
	}
	n, _ := res.RowsAffected()
	if n == 0 {
		return types.Failure[*types.Feature](types.NewStoreError(types.ErrNotFound, "feature not found: "+f.ID.String(), nil))
	}
	return types.Success(f)
}

func (s *featureStore) Delete(ctx context.Context, id types.ID) types.Result[bool] {
	return withCascadeTx(ctx, s.db, func(db dbtx) types.Result[bool] {
		return deleteFeatureCascade(ctx, db, id)
	})
}

// deleteFeatureCascade removes every child Task (transitively, each task's
// own Sections/Dependencies via deleteTaskCascade), the feature's own
// Sections, then the feature row.
func deleteFeatureCascade(ctx context.Context, db dbtx, id types.ID) types.Result[bool] {
	childTasks := (&taskStore{db}).ByFeature(ctx, id)
	if !childTasks.Ok() {
		return types.Failure[bool](childTasks.Err())
	}
	for _, task := range childTasks.Value() {
		if res := deleteTaskCascade(ctx, db, task.ID); !res.Ok() {
			return res
		}
	}
	if res := (&sectionStore{db}).DeleteByOwner(ctx, types.EntityFeature, id); !res.Ok() {
		return types.Failure[bool](res.Err())
	}
	res, err := db.ExecContext(ctx, `DELETE FROM features WHERE id=?`, id.String())
	if err != nil {
		return types.Failure[bool](mapDBError(err, ""))
	}
	n, _ := res.RowsAffected()
	return types.Success(n > 0)
}

func (s *featureStore) GetByID(ctx context.Context, id types.ID) types.Result[*types.Feature] {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, name, summary, description, status, priority, tags, project_id, created_at, modified_at, version
		FROM features WHERE id=?`, id.String())
	f, err := scanFeature(row)
	if err != nil {
		return types.Failure[*types.Feature](mapDBError(err, "feature not found: "+id.String()))
	}
	return types.Success(f)
}

func (s *featureStore) FindAll(ctx context.Context, limit int) types.Result[[]*types.Feature] {
	return s.Find(ctx, types.EntityFilter{Limit: limit})
}

func (s *featureStore) Find(ctx context.Context, filter types.EntityFilter) types.Result[[]*types.Feature] {
	query := `SELECT id, name, summary, description, status, priority, tags, project_id, created_at, modified_at, version FROM features WHERE 1=1`
	var args []any
	query, args = applyStatusFilter(query, args, filter.Status, "status")
	query, args = applyPriorityFilter(query, args, filter.Priority, "priority")
	query, args = applyTextQuery(query, args, filter.TextQuery, "name", "summary", "description")
	if filter.ProjectID != nil {
		query += " AND project_id=?"
		args = append(args, filter.ProjectID.String())
	}
	query += " ORDER BY created_at ASC"
	query, args = applyLimit(query, args, filter.Limit)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return types.Failure[[]*types.Feature](mapDBError(err, ""))
	}
	defer rows.Close()

	var out []*types.Feature
	for rows.Next() {
		f, err := scanFeature(rows)
		if err != nil {
			return types.Failure[[]*types.Feature](mapDBError(err, ""))
		}
		if matchesTags(f.Tags, filter.RequiredTags) {
			out = append(out, f)
		}
	}
	return types.Success(out)
}

func (s *featureStore) ByProject(ctx context.Context, projectID types.ID) types.Result[[]*types.Feature] {
	return s.Find(ctx, types.EntityFilter{ProjectID: &projectID})
}

func scanFeature(row scanner) (*types.Feature, error) {
	var f types.Feature
	var idStr, status, priority, tags, createdAt, modifiedAt string
	var projectID sql.NullString
	if err := row.Scan(&idStr, &f.Name, &f.Summary, &f.Description, &status, &priority, &tags, &projectID, &createdAt, &modifiedAt, &f.Version); err != nil {
		return nil, err
	}
	id, err := types.ParseID(idStr)
	if err != nil {
		return nil, err
	}
	f.ID = id
	f.Status = types.Status(status)
	f.Priority = types.Priority(priority)
	f.Tags = tagsFromJSON(tags)
	pid, err := idFromNullable(projectID)
	if err != nil {
		return nil, err
	}
	f.ProjectID = pid
	f.CreatedAt = parseTime(createdAt)
	f.ModifiedAt = parseTime(modifiedAt)
	return &f, nil
}
