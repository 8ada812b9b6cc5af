package sqlite

import (
	"context"
	"time"

	"github.com/taskmcp/taskmcp/internal/types"
)

type sectionStore struct {
	db dbtx
}

func (s *sectionStore) Add(ctx context.Context, sec *types.Section) types.Result[*types.Section] {
	if err := sec.Validate(); err != nil {
		return types.Failure[*types.Section](types.NewStoreError(types.ErrValidation, err.Error(), nil))
	}
	if sec.ID.IsZero() {
		sec.ID = types.NewID()
	}
	now := time.Now()
	sec.CreatedAt, sec.ModifiedAt = now, now

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO sections (id, entity_type, entity_id, title, usage_description, content, content_format, ordinal, tags, created_at, modified_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		sec.ID.String(), string(sec.EntityType), sec.EntityID.String(), sec.Title, sec.UsageDescription,
		sec.Content, string(sec.ContentFormat), sec.Ordinal, tagsToJSON(sec.Tags), formatTime(sec.CreatedAt), formatTime(sec.ModifiedAt))
	return result(sec, err, "")
}

func (s *sectionStore) Update(ctx context.Context, sec *types.Section) types.Result[*types.Section] {
	if err := sec.Validate(); err != nil {
		return types.Failure[*types.Section](types.NewStoreError(types.ErrValidation, err.Error(), nil))
	}
	sec.ModifiedAt = time.Now()
	res, err := s.db.ExecContext(ctx, `
		UPDATE sections SET title=?, usage_description=?, content=?, content_format=?, ordinal=?, tags=?, modified_at=?
		WHERE id=?`,
		sec.Title, sec.UsageDescription, sec.Content, string(sec.ContentFormat), sec.Ordinal, tagsToJSON(sec.Tags),
		formatTime(sec.ModifiedAt), sec.ID.String())
	if err != nil {
		return types.Failure[*types.Section](mapDBError(err, ""))
	}
	n, _ := res.RowsAffected()
	if n == 0 {
		return types.Failure[*types.Section](types.NewStoreError(types.ErrNotFound, "section not found: "+sec.ID.String(), nil))
	}
	return types.Success(sec)
}

func (s *sectionStore) UpdateText(ctx context.Context, id types.ID, content string) types.Result[*types.Section] {
	existing := s.GetByID(ctx, id)
	if !existing.Ok() {
		return existing
	}
	sec := existing.Value()
	sec.Content = content
	return s.Update(ctx, sec)
}

func (s *sectionStore) UpdateMetadata(ctx context.Context, id types.ID, title, usageDescription string, tags types.TagSet) types.Result[*types.Section] {
	existing := s.GetByID(ctx, id)
	if !existing.Ok() {
		return existing
	}
	sec := existing.Value()
	if title != "" {
		sec.Title = title
	}
	sec.UsageDescription = usageDescription
	sec.Tags = tags
	return s.Update(ctx, sec)
}

func (s *sectionStore) Delete(ctx context.Context, id types.ID) types.Result[bool] {
	res, err := s.db.ExecContext(ctx, `DELETE FROM sections WHERE id=?`, id.String())
	if err != nil {
		return types.Failure[bool](mapDBError(err, ""))
	}
	n, _ := res.RowsAffected()
	return types.Success(n > 0)
}

func (s *sectionStore) GetByID(ctx context.Context, id types.ID) types.Result[*types.Section] {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, entity_type, entity_id, title, usage_description, content, content_format, ordinal, tags, created_at, modified_at
		FROM sections WHERE id=?`, id.String())
	sec, err := scanSection(row)
	if err != nil {
		return types.Failure[*types.Section](mapDBError(err, "section not found: "+id.String()))
	}
	return types.Success(sec)
}

func (s *sectionStore) List(ctx context.Context, entityType types.EntityType, entityID types.ID) types.Result[[]*types.Section] {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, entity_type, entity_id, title, usage_description, content, content_format, ordinal, tags, created_at, modified_at
		FROM sections WHERE entity_type=? AND entity_id=? ORDER BY ordinal ASC`, string(entityType), entityID.String())
	if err != nil {
		return types.Failure[[]*types.Section](mapDBError(err, ""))
	}
	defer rows.Close()
	var out []*types.Section
	for rows.Next() {
		sec, err := scanSection(rows)
		if err != nil {
			return types.Failure[[]*types.Section](mapDBError(err, ""))
		}
		out = append(out, sec)
	}
	return types.Success(out)
}

// Reorder assigns contiguous ordinals 0..n-1 following orderedIDs, per
// spec.md §3's "reorder operations produce contiguous values" invariant.
func (s *sectionStore) Reorder(ctx context.Context, entityType types.EntityType, entityID types.ID, orderedIDs []types.ID) types.Result[[]*types.Section] {
	for i, id := range orderedIDs {
		if _, err := s.db.ExecContext(ctx, `UPDATE sections SET ordinal=? WHERE id=? AND entity_type=? AND entity_id=?`,
			i, id.String(), string(entityType), entityID.String()); err != nil {
			return types.Failure[[]*types.Section](mapDBError(err, ""))
		}
	}
	return s.List(ctx, entityType, entityID)
}

func (s *sectionStore) DeleteByOwner(ctx context.Context, entityType types.EntityType, entityID types.ID) types.Result[int] {
	res, err := s.db.ExecContext(ctx, `DELETE FROM sections WHERE entity_type=? AND entity_id=?`, string(entityType), entityID.String())
	if err != nil {
		return types.Failure[int](mapDBError(err, ""))
	}
	n, _ := res.RowsAffected()
	return types.Success(int(n))
}

func scanSection(row scanner) (*types.Section, error) {
	var sec types.Section
	var idStr, entityType, entityID, contentFormat, tags, createdAt, modifiedAt string
	if err := row.Scan(&idStr, &entityType, &entityID, &sec.Title, &sec.UsageDescription, &sec.Content,
		&contentFormat, &sec.Ordinal, &tags, &createdAt, &modifiedAt); err != nil {
		return nil, err
	}
	id, err := types.ParseID(idStr)
	if err != nil {
		return nil, err
	}
	sec.ID = id
	sec.EntityType = types.EntityType(entityType)
	eid, err := types.ParseID(entityID)
	if err != nil {
		return nil, err
	}
	sec.EntityID = eid
	sec.ContentFormat = types.ContentFormat(contentFormat)
	sec.Tags = tagsFromJSON(tags)
	sec.CreatedAt = parseTime(createdAt)
	sec.ModifiedAt = parseTime(modifiedAt)
	return &sec, nil
}
