package mcp

import (
	"encoding/json"

	"github.com/taskmcp/taskmcp/internal/types"
)

// decodeParams unmarshals raw into dst, returning a VALIDATION_ERROR envelope
// on failure. Every tool handler starts with this, per spec.md §4.6's
// "validation happens before any store call".
func decodeParams(raw json.RawMessage, dst any) *Envelope {
	if len(raw) == 0 {
		return nil
	}
	if err := json.Unmarshal(raw, dst); err != nil {
		return Fail(ValidationError, "invalid arguments", err.Error())
	}
	return nil
}

func parseContainerType(s string) (types.EntityType, *Envelope) {
	switch s {
	case "project":
		return types.EntityProject, nil
	case "feature":
		return types.EntityFeature, nil
	case "task":
		return types.EntityTask, nil
	default:
		return "", Fail(ValidationError, "containerType must be one of project/feature/task", nil)
	}
}

// parseIDFieldList parses an optional list of id strings, e.g.
// containerParams.TemplateIds; an empty input yields a nil slice.
func parseIDFieldList(raw []string) ([]types.ID, *Envelope) {
	if len(raw) == 0 {
		return nil, nil
	}
	out := make([]types.ID, len(raw))
	for i, s := range raw {
		id, env := parseIDField(s)
		if env != nil {
			return nil, env
		}
		out[i] = id
	}
	return out, nil
}

// txErrorEnvelope converts an error returned from RunInTransaction into the
// matching failure envelope: a *types.StoreError from this package's own
// store/apply calls maps to its store error code; any other error (e.g. a
// begin/commit failure) becomes INTERNAL_ERROR.
func txErrorEnvelope(err error) *Envelope {
	if se, ok := err.(*types.StoreError); ok {
		return storeErrorEnvelope(se)
	}
	return Fail(InternalError, err.Error(), nil)
}

func parsePriorityField(raw string) (types.Priority, *Envelope) {
	if raw == "" {
		return types.PriorityMedium, nil
	}
	p, ok := types.ParsePriority(raw)
	if !ok {
		return "", Fail(ValidationError, "invalid priority", raw)
	}
	return p, nil
}

func applyFilterParams(f filterParams) types.EntityFilter {
	ef := types.EntityFilter{
		Status:       types.ParseStatusFilter(f.Status),
		Priority:     types.ParsePriorityFilter(f.Priority),
		RequiredTags: f.Tags,
		TextQuery:    f.Query,
		Limit:        f.Limit,
	}
	if f.ProjectID != "" {
		if id, err := types.ParseID(f.ProjectID); err == nil {
			ef.ProjectID = &id
		}
	}
	if f.FeatureID != "" {
		if id, err := types.ParseID(f.FeatureID); err == nil {
			ef.FeatureID = &id
		}
	}
	return ef
}

// filterParams is the JSON shape of a query's "filter" object, carrying the
// "a,b,!c" filter syntax spec.md §6 defines for status/priority.
type filterParams struct {
	Status    string   `json:"status"`
	Priority  string   `json:"priority"`
	Tags      []string `json:"tags"`
	Query     string   `json:"query"`
	ProjectID string   `json:"projectId"`
	FeatureID string   `json:"featureId"`
	Limit     int      `json:"limit"`
}

// bulkFailure is one entry of a partial-success bulk envelope's "failures"
// list, per spec.md §7.
type bulkFailure struct {
	ID      string    `json:"id,omitempty"`
	Code    ErrorCode `json:"code"`
	Message string    `json:"message"`
}

// bulkResult is the {count, failed, items?, failures?} shape spec.md §7
// mandates for bulk operations.
type bulkResult struct {
	Count    int           `json:"count"`
	Failed   int           `json:"failed"`
	Items    []any         `json:"items,omitempty"`
	Failures []bulkFailure `json:"failures,omitempty"`
}
