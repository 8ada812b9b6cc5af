package sqlite

import (
	"context"
	"time"

	"github.com/taskmcp/taskmcp/internal/types"
)

type dependencyStore struct {
	db dbtx
}

func (s *dependencyStore) Add(ctx context.Context, d *types.Dependency) types.Result[*types.Dependency] {
	if err := d.Validate(); err != nil {
		return types.Failure[*types.Dependency](types.NewStoreError(types.ErrValidation, err.Error(), nil))
	}
	if d.Type == types.DepBlocks {
		// A new A-BLOCKS->B edge closes a cycle iff B can already reach A
		// by following existing BLOCKS edges forward.
		reach := s.reachableViaBlocks(ctx, d.ToID, d.FromID)
		if !reach.Ok() {
			return types.Failure[*types.Dependency](reach.Err())
		}
		if len(reach.Value()) > 0 {
			return types.Failure[*types.Dependency](types.NewStoreError(types.ErrConflict,
				"adding this BLOCKS edge would create a cycle", nil))
		}
	}
	if d.ID.IsZero() {
		d.ID = types.NewID()
	}
	d.CreatedAt = time.Now()

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO dependencies (id, from_id, to_id, type, created_at)
		VALUES (?, ?, ?, ?, ?)`,
		d.ID.String(), d.FromID.String(), d.ToID.String(), string(d.Type), formatTime(d.CreatedAt))
	if err != nil {
		return types.Failure[*types.Dependency](mapDBError(err, ""))
	}
	return types.Success(d)
}

func (s *dependencyStore) Remove(ctx context.Context, id types.ID) types.Result[bool] {
	res, err := s.db.ExecContext(ctx, `DELETE FROM dependencies WHERE id=?`, id.String())
	if err != nil {
		return types.Failure[bool](mapDBError(err, ""))
	}
	n, _ := res.RowsAffected()
	return types.Success(n > 0)
}

func (s *dependencyStore) RemoveByEdge(ctx context.Context, from, to types.ID, depType types.DependencyType) types.Result[bool] {
	res, err := s.db.ExecContext(ctx, `DELETE FROM dependencies WHERE from_id=? AND to_id=? AND type=?`,
		from.String(), to.String(), string(depType))
	if err != nil {
		return types.Failure[bool](mapDBError(err, ""))
	}
	n, _ := res.RowsAffected()
	return types.Success(n > 0)
}

func (s *dependencyStore) Incoming(ctx context.Context, taskID types.ID) types.Result[[]*types.Dependency] {
	return s.query(ctx, `SELECT id, from_id, to_id, type, created_at FROM dependencies WHERE to_id=?`, taskID.String())
}

func (s *dependencyStore) Outgoing(ctx context.Context, taskID types.ID) types.Result[[]*types.Dependency] {
	return s.query(ctx, `SELECT id, from_id, to_id, type, created_at FROM dependencies WHERE from_id=?`, taskID.String())
}

func (s *dependencyStore) Related(ctx context.Context, taskID types.ID) types.Result[[]*types.Dependency] {
	return s.query(ctx, `SELECT id, from_id, to_id, type, created_at FROM dependencies WHERE from_id=? OR to_id=?`,
		taskID.String(), taskID.String())
}

func (s *dependencyStore) BlocksEdgesIn(ctx context.Context, scope []types.ID) types.Result[[]*types.Dependency] {
	all := s.query(ctx, `SELECT id, from_id, to_id, type, created_at FROM dependencies WHERE type=?`, string(types.DepBlocks))
	if !all.Ok() {
		return all
	}
	inScope := make(map[types.ID]bool, len(scope))
	for _, id := range scope {
		inScope[id] = true
	}
	var out []*types.Dependency
	for _, d := range all.Value() {
		if inScope[d.FromID] && inScope[d.ToID] {
			out = append(out, d)
		}
	}
	return types.Success(out)
}

// ReachableViaBlocks returns the BLOCKS-forward path from start that visits
// target, or an empty slice if target is unreachable from start.
func (s *dependencyStore) ReachableViaBlocks(ctx context.Context, start, target types.ID) types.Result[[]types.ID] {
	return s.reachableViaBlocks(ctx, start, target)
}

func (s *dependencyStore) reachableViaBlocks(ctx context.Context, start, target types.ID) types.Result[[]types.ID] {
	rows, err := s.db.QueryContext(ctx, `SELECT from_id, to_id FROM dependencies WHERE type=?`, string(types.DepBlocks))
	if err != nil {
		return types.Failure[[]types.ID](mapDBError(err, ""))
	}
	defer rows.Close()

	adjacency := make(map[types.ID][]types.ID)
	for rows.Next() {
		var fromStr, toStr string
		if err := rows.Scan(&fromStr, &toStr); err != nil {
			return types.Failure[[]types.ID](mapDBError(err, ""))
		}
		from, err := types.ParseID(fromStr)
		if err != nil {
			return types.Failure[[]types.ID](types.NewStoreError(types.ErrDatabase, err.Error(), err))
		}
		to, err := types.ParseID(toStr)
		if err != nil {
			return types.Failure[[]types.ID](types.NewStoreError(types.ErrDatabase, err.Error(), err))
		}
		adjacency[from] = append(adjacency[from], to)
	}

	// Breadth-first search from start, tracking the discovering parent of
	// each visited node so a found path back to target can be reconstructed.
	visited := map[types.ID]types.ID{start: start}
	queue := []types.ID{start}
	for len(queue) > 0 {
		cur := queue[0]
		queue = queue[1:]
		if cur == target && cur != start {
			return types.Success(reconstructPath(visited, start, target))
		}
		for _, next := range adjacency[cur] {
			if _, seen := visited[next]; seen {
				continue
			}
			visited[next] = cur
			if next == target {
				return types.Success(reconstructPath(visited, start, target))
			}
			queue = append(queue, next)
		}
	}
	return types.Success(nil)
}

func reconstructPath(parent map[types.ID]types.ID, start, target types.ID) []types.ID {
	path := []types.ID{target}
	for path[len(path)-1] != start {
		prev := parent[path[len(path)-1]]
		path = append(path, prev)
	}
	// reverse
	for i, j := 0, len(path)-1; i < j; i, j = i+1, j-1 {
		path[i], path[j] = path[j], path[i]
	}
	return path
}

func (s *dependencyStore) DeleteByTask(ctx context.Context, taskID types.ID) types.Result[int] {
	res, err := s.db.ExecContext(ctx, `DELETE FROM dependencies WHERE from_id=? OR to_id=?`, taskID.String(), taskID.String())
	if err != nil {
		return types.Failure[int](mapDBError(err, ""))
	}
	n, _ := res.RowsAffected()
	return types.Success(int(n))
}

func (s *dependencyStore) query(ctx context.Context, query string, args ...any) types.Result[[]*types.Dependency] {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return types.Failure[[]*types.Dependency](mapDBError(err, ""))
	}
	defer rows.Close()

	var out []*types.Dependency
	for rows.Next() {
		d, err := scanDependency(rows)
		if err != nil {
			return types.Failure[[]*types.Dependency](mapDBError(err, ""))
		}
		out = append(out, d)
	}
	return types.Success(out)
}

func scanDependency(row scanner) (*types.Dependency, error) {
	var d types.Dependency
	var idStr, fromStr, toStr, depType, createdAt string
	if err := row.Scan(&idStr, &fromStr, &toStr, &depType, &createdAt); err != nil {
		return nil, err
	}
	id, err := types.ParseID(idStr)
	if err != nil {
		return nil, err
	}
	d.ID = id
	from, err := types.ParseID(fromStr)
	if err != nil {
		return nil, err
	}
	d.FromID = from
	to, err := types.ParseID(toStr)
	if err != nil {
		return nil, err
	}
	d.ToID = to
	d.Type = types.DependencyType(depType)
	d.CreatedAt = parseTime(createdAt)
	return &d, nil
}
