package sqlite

import (
	"context"
	"strings"
	"time"

	"github.com/taskmcp/taskmcp/internal/types"
)

type projectStore struct {
	db dbtx
}

func (s *projectStore) Create(ctx context.Context, p *types.Project) types.Result[*types.Project] {
	if err := p.Validate(); err != nil {
		return types.Failure[*types.Project](types.NewStoreError(types.ErrValidation, err.Error(), nil))
	}
	if p.ID.IsZero() {
		p.ID = types.NewID()
	}
	now := time.Now()
	p.CreatedAt, p.ModifiedAt = now, now
	p.Version = 1

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO projects (id, name, summary, description, status, tags, created_at, modified_at, version)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		p.ID.String(), p.Name, p.Summary, p.Description, string(p.Status), tagsToJSON(p.Tags),
		formatTime(p.CreatedAt), formatTime(p.ModifiedAt), p.Version)
	return result(p, err, "")
}

func (s *projectStore) Update(ctx context.Context, p *types.Project) types.Result[*types.Project] {
	if err := p.Validate(); err != nil {
		return types.Failure[*types.Project](types.NewStoreError(types.ErrValidation, err.Error(), nil))
	}
	p.ModifiedAt = time.Now()
	p.Version++
	res, err := s.db.ExecContext(ctx, `
		UPDATE projects SET name=?, summary=?, description=?, status=?, tags=?, modified_at=?, version=?
		WHERE id=?`,
		p.Name, p.Summary, p.Description, string(p.Status), tagsToJSON(p.Tags),
		formatTime(p.ModifiedAt), p.Version, p.ID.String())
	if err != nil {
		return types.Failure[*types.Project](mapDBError(err, ""))
	}
	n, _ := res.RowsAffected()
	if n == 0 {
		return types.Failure[*types.Project](types.NewStoreError(types.ErrNotFound, "project not found: "+p.ID.String(), nil))
	}
	return types.Success(p)
}

func (s *projectStore) Delete(ctx context.Context, id types.ID) types.Result[bool] {
	return withCascadeTx(ctx, s.db, func(db dbtx) types.Result[bool] {
		return deleteProjectCascade(ctx, db, id)
	})
}

// deleteProjectCascade removes every child Feature (transitively, their own
// child Tasks) plus every Task attached directly to the project with no
// owning Feature, then the project's own Sections, then the project row.
func deleteProjectCascade(ctx context.Context, db dbtx, id types.ID) types.Result[bool] {
	childFeatures := (&featureStore{db}).ByProject(ctx, id)
	if !childFeatures.Ok() {
		return types.Failure[bool](childFeatures.Err())
	}
	for _, feat := range childFeatures.Value() {
		if res := deleteFeatureCascade(ctx, db, feat.ID); !res.Ok() {
			return res
		}
	}
	directTasks := (&taskStore{db}).ByProject(ctx, id)
	if !directTasks.Ok() {
		return types.Failure[bool](directTasks.Err())
	}
	for _, task := range directTasks.Value() {
		if res := deleteTaskCascade(ctx, db, task.ID); !res.Ok() {
			return res
		}
	}
	if res := (&sectionStore{db}).DeleteByOwner(ctx, types.EntityProject, id); !res.Ok() {
		return types.Failure[bool](res.Err())
	}
	res, err := db.ExecContext(ctx, `DELETE FROM projects WHERE id=?`, id.String())
	if err != nil {
		return types.Failure[bool](mapDBError(err, ""))
	}
	n, _ := res.RowsAffected()
	return types.Success(n > 0)
}

func (s *projectStore) GetByID(ctx context.Context, id types.ID) types.Result[*types.Project] {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, name, summary, description, status, tags, created_at, modified_at, version
		FROM projects WHERE id=?`, id.String())
	p, err := scanProject(row)
	if err != nil {
		return types.Failure[*types.Project](mapDBError(err, "project not found: "+id.String()))
	}
	return types.Success(p)
}

func (s *projectStore) FindAll(ctx context.Context, limit int) types.Result[[]*types.Project] {
	return s.Find(ctx, types.EntityFilter{Limit: limit})
}

func (s *projectStore) Find(ctx context.Context, filter types.EntityFilter) types.Result[[]*types.Project] {
	query := `SELECT id, name, summary, description, status, tags, created_at, modified_at, version FROM projects WHERE 1=1`
	var args []any
	query, args = applyStatusFilter(query, args, filter.Status, "status")
	query, args = applyTextQuery(query, args, filter.TextQuery, "name", "summary", "description")
	query += " ORDER BY created_at ASC"
	query, args = applyLimit(query, args, filter.Limit)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return types.Failure[[]*types.Project](mapDBError(err, ""))
	}
	defer rows.Close()

	var out []*types.Project
	for rows.Next() {
		p, err := scanProject(rows)
		if err != nil {
			return types.Failure[[]*types.Project](mapDBError(err, ""))
		}
		if matchesTags(p.Tags, filter.RequiredTags) {
			out = append(out, p)
		}
	}
	return types.Success(out)
}

type scanner interface {
	Scan(dest ...any) error
}

func scanProject(row scanner) (*types.Project, error) {
	var p types.Project
	var idStr, status, tags, createdAt, modifiedAt string
	if err := row.Scan(&idStr, &p.Name, &p.Summary, &p.Description, &status, &tags, &createdAt, &modifiedAt, &p.Version); err != nil {
		return nil, err
	}
	id, err := types.ParseID(idStr)
	if err != nil {
		return nil, err
	}
	p.ID = id
	p.Status = types.Status(status)
	p.Tags = tagsFromJSON(tags)
	p.CreatedAt = parseTime(createdAt)
	p.ModifiedAt = parseTime(modifiedAt)
	return &p, nil
}

func applyStatusFilter(query string, args []any, f types.StatusFilter, col string) (string, []any) {
	if len(f.Include) > 0 {
		placeholders := make([]string, len(f.Include))
		for i, s := range f.Include {
			placeholders[i] = "?"
			args = append(args, string(s))
		}
		query += " AND " + col + " IN (" + strings.Join(placeholders, ",") + ")"
	}
	for _, s := range f.Exclude {
		query += " AND " + col + " != ?"
		args = append(args, string(s))
	}
	return query, args
}

func applyPriorityFilter(query string, args []any, f types.PriorityFilter, col string) (string, []any) {
	if len(f.Include) > 0 {
		placeholders := make([]string, len(f.Include))
		for i, p := range f.Include {
			placeholders[i] = "?"
			args = append(args, string(p))
		}
		query += " AND " + col + " IN (" + strings.Join(placeholders, ",") + ")"
	}
	for _, p := range f.Exclude {
		query += " AND " + col + " != ?"
		args = append(args, string(p))
	}
	return query, args
}

func applyTextQuery(query string, args []any, q string, cols ...string) (string, []any) {
	q = strings.TrimSpace(q)
	if q == "" {
		return query, args
	}
	like := "%" + strings.ToLower(q) + "%"
	parts := make([]string, len(cols))
	for i, c := range cols {
		parts[i] = "LOWER(" + c + ") LIKE ?"
		args = append(args, like)
	}
	query += " AND (" + strings.Join(parts, " OR ") + ")"
	return query, args
}

func applyLimit(query string, args []any, limit int) (string, []any) {
	if limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
	}
	return query, args
}

// matchesTags applies the AND-across-tags requirement in memory since tags
// are stored as a JSON array column rather than a normalized join table.
func matchesTags(tags types.TagSet, required []string) bool {
	if len(required) == 0 {
		return true
	}
	return tags.HasAll(required)
}
