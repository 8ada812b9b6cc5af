package templates

import (
	"context"
	"fmt"
	"strings"

	"github.com/taskmcp/taskmcp/internal/storage"
	"github.com/taskmcp/taskmcp/internal/types"
)

// ApplyResult summarizes a completed apply, returned to callers that want
// to report exactly what was written (e.g. the apply_template tool).
type ApplyResult struct {
	Added   []*types.Section
	Skipped []string // titles skipped under ApplySkipDuplicate
}

// Apply runs spec.md §4.3's template-apply operation: fetch templateIDs in
// the given order, validate each template's TargetEntityType against
// targetType, then materialize every prototype Section onto the target,
// honoring mode's duplicate-title policy. The whole operation runs inside
// tx so a caller can nest it in the same transaction that creates the
// target entity (implicit apply-on-create).
func Apply(ctx context.Context, tx storage.Transaction, templateIDs []types.ID, targetType types.EntityType, targetID types.ID, mode types.TemplateApplyMode) (*ApplyResult, error) {
	tmpls := make([]*types.Template, 0, len(templateIDs))
	for _, id := range templateIDs {
		res := tx.Templates().GetByID(ctx, id)
		if !res.Ok() {
			return nil, res.Err()
		}
		tmpl := res.Value()
		if tmpl.TargetEntityType != targetType {
			return nil, types.NewStoreError(types.ErrValidation,
				fmt.Sprintf("template %q targets %s, not %s", tmpl.Name, tmpl.TargetEntityType, targetType), nil)
		}
		tmpls = append(tmpls, tmpl)
	}

	existingRes := tx.Sections().List(ctx, targetType, targetID)
	if !existingRes.Ok() {
		return nil, existingRes.Err()
	}
	existing := existingRes.Value()

	titles := make(map[string]*types.Section, len(existing))
	for _, s := range existing {
		titles[strings.ToLower(s.Title)] = s
	}

	nextOrdinal := 0
	for _, s := range existing {
		if s.Ordinal+1 > nextOrdinal {
			nextOrdinal = s.Ordinal + 1
		}
	}

	result := &ApplyResult{}
	for _, tmpl := range tmpls {
		for _, proto := range tmpl.Sections {
			key := strings.ToLower(proto.Title)
			if dup, ok := titles[key]; ok {
				switch mode {
				case types.ApplyOverwrite:
					updated := tx.Sections().UpdateText(ctx, dup.ID, proto.Content)
					if !updated.Ok() {
						return nil, updated.Err()
					}
					result.Added = append(result.Added, updated.Value())
					continue
				case types.ApplyError:
					return nil, types.NewStoreError(types.ErrConflict,
						fmt.Sprintf("duplicate section title %q", proto.Title), nil)
				default: // ApplySkipDuplicate
					result.Skipped = append(result.Skipped, proto.Title)
					continue
				}
			}

			section := &types.Section{
				EntityType:       targetType,
				EntityID:         targetID,
				Title:            proto.Title,
				UsageDescription: proto.UsageDescription,
				Content:          proto.Content,
				ContentFormat:    proto.ContentFormat,
				Ordinal:          nextOrdinal,
				Tags:             proto.Tags,
			}
			added := tx.Sections().Add(ctx, section)
			if !added.Ok() {
				return nil, added.Err()
			}
			result.Added = append(result.Added, added.Value())
			titles[key] = added.Value()
			nextOrdinal++
		}
	}
	return result, nil
}
