package sqlite

import (
	"context"
	"time"

	"github.com/taskmcp/taskmcp/internal/types"
)

type templateStore struct {
	db dbtx
}

func (s *templateStore) Create(ctx context.Context, t *types.Template) types.Result[*types.Template] {
	if err := t.Validate(); err != nil {
		return types.Failure[*types.Template](types.NewStoreError(types.ErrValidation, err.Error(), nil))
	}
	if t.ID.IsZero() {
		t.ID = types.NewID()
	}
	now := time.Now()
	t.CreatedAt, t.ModifiedAt = now, now

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO templates (id, name, description, target_entity_type, is_builtin, is_enabled, created_at, modified_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		t.ID.String(), t.Name, t.Description, string(t.TargetEntityType), t.IsBuiltin, t.IsEnabled,
		formatTime(t.CreatedAt), formatTime(t.ModifiedAt))
	if err != nil {
		return types.Failure[*types.Template](mapDBError(err, ""))
	}
	if err := s.replaceSections(ctx, t.ID, t.Sections); err != nil {
		return types.Failure[*types.Template](mapDBError(err, ""))
	}
	return types.Success(t)
}

func (s *templateStore) Update(ctx context.Context, t *types.Template) types.Result[*types.Template] {
	if err := t.Validate(); err != nil {
		return types.Failure[*types.Template](types.NewStoreError(types.ErrValidation, err.Error(), nil))
	}
	t.ModifiedAt = time.Now()
	res, err := s.db.ExecContext(ctx, `
		UPDATE templates SET name=?, description=?, target_entity_type=?, is_enabled=?, modified_at=?
		WHERE id=?`,
		t.Name, t.Description, string(t.TargetEntityType), t.IsEnabled, formatTime(t.ModifiedAt), t.ID.String())
	if err != nil {
		return types.Failure[*types.Template](mapDBError(err, ""))
	}
	n, _ := res.RowsAffected()
	if n == 0 {
		return types.Failure[*types.Template](types.NewStoreError(types.ErrNotFound, "template not found: "+t.ID.String(), nil))
	}
	if err := s.replaceSections(ctx, t.ID, t.Sections); err != nil {
		return types.Failure[*types.Template](mapDBError(err, ""))
	}
	return types.Success(t)
}

func (s *templateStore) Delete(ctx context.Context, id types.ID) types.Result[bool] {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM template_sections WHERE template_id=?`, id.String()); err != nil {
		return types.Failure[bool](mapDBError(err, ""))
	}
	res, err := s.db.ExecContext(ctx, `DELETE FROM templates WHERE id=?`, id.String())
	if err != nil {
		return types.Failure[bool](mapDBError(err, ""))
	}
	n, _ := res.RowsAffected()
	return types.Success(n > 0)
}

func (s *templateStore) GetByID(ctx context.Context, id types.ID) types.Result[*types.Template] {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, name, description, target_entity_type, is_builtin, is_enabled, created_at, modified_at
		FROM templates WHERE id=?`, id.String())
	t, err := scanTemplate(row)
	if err != nil {
		return types.Failure[*types.Template](mapDBError(err, "template not found: "+id.String()))
	}
	sections, err := s.loadSections(ctx, t.ID)
	if err != nil {
		return types.Failure[*types.Template](mapDBError(err, ""))
	}
	t.Sections = sections
	return types.Success(t)
}

func (s *templateStore) FindAll(ctx context.Context, limit int) types.Result[[]*types.Template] {
	query := `SELECT id, name, description, target_entity_type, is_builtin, is_enabled, created_at, modified_at FROM templates ORDER BY name ASC`
	var args []any
	query, args = applyLimit(query, args, limit)
	return s.find(ctx, query, args...)
}

func (s *templateStore) FindEnabled(ctx context.Context, targetType types.EntityType) types.Result[[]*types.Template] {
	return s.find(ctx, `
		SELECT id, name, description, target_entity_type, is_builtin, is_enabled, created_at, modified_at
		FROM templates WHERE target_entity_type=? AND is_enabled=1 ORDER BY name ASC`, string(targetType))
}

func (s *templateStore) find(ctx context.Context, query string, args ...any) types.Result[[]*types.Template] {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return types.Failure[[]*types.Template](mapDBError(err, ""))
	}
	defer rows.Close()

	var out []*types.Template
	for rows.Next() {
		t, err := scanTemplate(rows)
		if err != nil {
			return types.Failure[[]*types.Template](mapDBError(err, ""))
		}
		out = append(out, t)
	}
	for _, t := range out {
		sections, err := s.loadSections(ctx, t.ID)
		if err != nil {
			return types.Failure[[]*types.Template](mapDBError(err, ""))
		}
		t.Sections = sections
	}
	return types.Success(out)
}

func (s *templateStore) replaceSections(ctx context.Context, templateID types.ID, sections []types.SectionPrototype) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM template_sections WHERE template_id=?`, templateID.String()); err != nil {
		return err
	}
	for i, sec := range sections {
		if _, err := s.db.ExecContext(ctx, `
			INSERT INTO template_sections (id, template_id, title, usage_description, content, content_format, ordinal, tags)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
			types.NewID().String(), templateID.String(), sec.Title, sec.UsageDescription, sec.Content,
			string(sec.ContentFormat), i, tagsToJSON(sec.Tags)); err != nil {
			return err
		}
	}
	return nil
}

func (s *templateStore) loadSections(ctx context.Context, templateID types.ID) ([]types.SectionPrototype, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT title, usage_description, content, content_format, ordinal, tags
		FROM template_sections WHERE template_id=? ORDER BY ordinal ASC`, templateID.String())
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []types.SectionPrototype
	for rows.Next() {
		var proto types.SectionPrototype
		var contentFormat, tags string
		if err := rows.Scan(&proto.Title, &proto.UsageDescription, &proto.Content, &contentFormat, &proto.Ordinal, &tags); err != nil {
			return nil, err
		}
		proto.ContentFormat = types.ContentFormat(contentFormat)
		proto.Tags = tagsFromJSON(tags)
		out = append(out, proto)
	}
	return out, nil
}

func scanTemplate(row scanner) (*types.Template, error) {
	var t types.Template
	var idStr, targetType, createdAt, modifiedAt string
	if err := row.Scan(&idStr, &t.Name, &t.Description, &targetType, &t.IsBuiltin, &t.IsEnabled, &createdAt, &modifiedAt); err != nil {
		return nil, err
	}
	id, err := types.ParseID(idStr)
	if err != nil {
		return nil, err
	}
	t.ID = id
	t.TargetEntityType = types.EntityType(targetType)
	t.CreatedAt = parseTime(createdAt)
	t.ModifiedAt = parseTime(modifiedAt)
	return &t, nil
}
