package types

import "sort"

// SortTasksDeterministic orders tasks by (priority desc, complexity asc,
// createdAt asc), the tie-break rule used by dependency batches (spec.md
// §4.4) so that ties are total and unit-testable (spec.md §9).
func SortTasksDeterministic(tasks []*Task) {
	sort.SliceStable(tasks, func(i, j int) bool {
		a, b := tasks[i], tasks[j]
		if ra, rb := a.Priority.Rank(), b.Priority.Rank(); ra != rb {
			return ra < rb
		}
		if a.Complexity != b.Complexity {
			return a.Complexity < b.Complexity
		}
		if !a.CreatedAt.Equal(b.CreatedAt) {
			return a.CreatedAt.Before(b.CreatedAt)
		}
		return a.ID.String() < b.ID.String()
	})
}
