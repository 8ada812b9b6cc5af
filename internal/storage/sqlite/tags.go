package sqlite

import (
	"context"
	"database/sql"
	"sort"
	"strings"

	"github.com/taskmcp/taskmcp/internal/storage"
	"github.com/taskmcp/taskmcp/internal/types"
)

type tagStore struct {
	db dbtx
}

// tagTables lists each taggable table: its name, display-name column and
// entity kind, used by every method below since tags live as a JSON column on
// each of the three entity tables rather than in a normalized join table.
var tagTables = []struct {
	table      string
	nameCol    string
	entityType types.EntityType
}{
	{"projects", "name", types.EntityProject},
	{"features", "name", types.EntityFeature},
	{"tasks", "title", types.EntityTask},
}

func (s *tagStore) ListAll(ctx context.Context, sortByCount bool) types.Result[[]storage.TagCount] {
	counts := map[string]int{}
	for _, tbl := range tagTables {
		rows, err := s.db.QueryContext(ctx, "SELECT tags FROM "+tbl.table)
		if err != nil {
			return types.Failure[[]storage.TagCount](mapDBError(err, ""))
		}
		for rows.Next() {
			var raw string
			if err := rows.Scan(&raw); err != nil {
				rows.Close()
				return types.Failure[[]storage.TagCount](mapDBError(err, ""))
			}
			for _, tag := range tagsFromJSON(raw) {
				counts[tag]++
			}
		}
		rows.Close()
	}

	out := make([]storage.TagCount, 0, len(counts))
	for tag, n := range counts {
		out = append(out, storage.TagCount{Tag: tag, Count: n})
	}
	if sortByCount {
		sort.Slice(out, func(i, j int) bool {
			if out[i].Count != out[j].Count {
				return out[i].Count > out[j].Count
			}
			return strings.ToLower(out[i].Tag) < strings.ToLower(out[j].Tag)
		})
	} else {
		sort.Slice(out, func(i, j int) bool {
			return strings.ToLower(out[i].Tag) < strings.ToLower(out[j].Tag)
		})
	}
	return types.Success(out)
}

func (s *tagStore) Usage(ctx context.Context, tag string) types.Result[[]storage.TagUsageEntry] {
	var out []storage.TagUsageEntry
	for _, tbl := range tagTables {
		rows, err := s.db.QueryContext(ctx, "SELECT id, "+tbl.nameCol+", tags FROM "+tbl.table)
		if err != nil {
			return types.Failure[[]storage.TagUsageEntry](mapDBError(err, ""))
		}
		for rows.Next() {
			var idStr, name, raw string
			if err := rows.Scan(&idStr, &name, &raw); err != nil {
				rows.Close()
				return types.Failure[[]storage.TagUsageEntry](mapDBError(err, ""))
			}
			if !tagsFromJSON(raw).Has(tag) {
				continue
			}
			id, err := types.ParseID(idStr)
			if err != nil {
				rows.Close()
				return types.Failure[[]storage.TagUsageEntry](types.NewStoreError(types.ErrDatabase, err.Error(), err))
			}
			out = append(out, storage.TagUsageEntry{EntityType: tbl.entityType, EntityID: id, Name: name})
		}
		rows.Close()
	}
	return types.Success(out)
}

// Rename relabels tag `from` to `to` across every entity row that holds it,
// preserving each row's remaining tags and ordering.
func (s *tagStore) Rename(ctx context.Context, from, to string) types.Result[int] {
	// On the root handle, run the whole relabel in one transaction.
	if _, ok := s.db.(*sql.DB); ok {
		total := 0
		res := withCascadeTx(ctx, s.db, func(db dbtx) types.Result[bool] {
			r := (&tagStore{db}).Rename(ctx, from, to)
			if !r.Ok() {
				return types.Failure[bool](r.Err())
			}
			total = r.Value()
			return types.Success(true)
		})
		if !res.Ok() {
			return types.Failure[int](res.Err())
		}
		return types.Success(total)
	}
	total := 0
	for _, tbl := range tagTables {
		rows, err := s.db.QueryContext(ctx, "SELECT id, tags FROM "+tbl.table)
		if err != nil {
			return types.Failure[int](mapDBError(err, ""))
		}
		type update struct {
			id   string
			tags string
		}
		var updates []update
		for rows.Next() {
			var idStr, raw string
			if err := rows.Scan(&idStr, &raw); err != nil {
				rows.Close()
				return types.Failure[int](mapDBError(err, ""))
			}
			tags := tagsFromJSON(raw)
			if !tags.Has(from) {
				continue
			}
			updates = append(updates, update{id: idStr, tags: tagsToJSON(tags.Rename(from, to))})
		}
		rows.Close()

		for _, u := range updates {
			if _, err := s.db.ExecContext(ctx, "UPDATE "+tbl.table+" SET tags=? WHERE id=?", u.tags, u.id); err != nil {
				return types.Failure[int](mapDBError(err, ""))
			}
			total++
		}
	}
	return types.Success(total)
}
