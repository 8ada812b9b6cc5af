package types

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestTaskValidate(t *testing.T) {
	tests := []struct {
		name    string
		task    Task
		wantErr bool
	}{
		{
			name: "valid task",
			task: Task{Title: "Fix bug", Status: "open", Priority: PriorityMedium, Complexity: 3},
		},
		{
			name:    "missing title",
			task:    Task{Status: "open", Priority: PriorityMedium, Complexity: 3},
			wantErr: true,
		},
		{
			name:    "invalid priority",
			task:    Task{Title: "x", Priority: "URGENT", Complexity: 3},
			wantErr: true,
		},
		{
			name:    "complexity too low",
			task:    Task{Title: "x", Priority: PriorityLow, Complexity: 0},
			wantErr: true,
		},
		{
			name:    "complexity too high",
			task:    Task{Title: "x", Priority: PriorityLow, Complexity: 11},
			wantErr: true,
		},
		{
			name: "summary in bounds",
			task: Task{Title: "x", Priority: PriorityLow, Complexity: 5, Summary: repeatRune('a', 400)},
		},
		{
			name:    "summary too short",
			task:    Task{Title: "x", Priority: PriorityLow, Complexity: 5, Summary: repeatRune('a', 10)},
			wantErr: true,
		},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			err := tc.task.Validate()
			if tc.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestTaskValidateCompletionSummary(t *testing.T) {
	task := Task{Summary: repeatRune('a', 299)}
	assert.Error(t, task.ValidateCompletionSummary())

	task.Summary = repeatRune('a', 300)
	assert.NoError(t, task.ValidateCompletionSummary())

	task.Summary = repeatRune('a', 500)
	assert.NoError(t, task.ValidateCompletionSummary())

	task.Summary = repeatRune('a', 501)
	assert.Error(t, task.ValidateCompletionSummary())
}

func TestTagSetOperations(t *testing.T) {
	var tags TagSet
	tags = tags.Add("Bug")
	tags = tags.Add("bug") // case-insensitive no-op
	assert.Equal(t, TagSet{"Bug"}, tags)
	assert.True(t, tags.Has("BUG"))

	tags = tags.Add("backend")
	assert.True(t, tags.HasAll([]string{"bug", "Backend"}))
	assert.False(t, tags.HasAll([]string{"bug", "frontend"}))

	tags = tags.Rename("bug", "defect")
	assert.Equal(t, TagSet{"defect", "backend"}, tags)

	tags = tags.Remove("DEFECT")
	assert.Equal(t, TagSet{"backend"}, tags)
}

func TestTagSetIsSubsetOf(t *testing.T) {
	small := TagSet{"bug"}
	big := TagSet{"bug", "backend"}
	assert.True(t, small.IsSubsetOf(big))
	assert.False(t, big.IsSubsetOf(small))
}

func TestParseStatusFilterRoundTrip(t *testing.T) {
	f := ParseStatusFilter("a,!b,c")
	assert.Equal(t, []Status{"a", "c"}, f.Include)
	assert.Equal(t, []Status{"b"}, f.Exclude)

	emitted := EmitStatusFilter(f)
	reparsed := ParseStatusFilter(emitted)
	assert.Equal(t, f, reparsed)
}

func TestStatusFilterMatches(t *testing.T) {
	f := StatusFilter{Include: []Status{"open", "in-progress"}, Exclude: []Status{"blocked"}}
	assert.True(t, f.Matches("open"))
	assert.False(t, f.Matches("closed"))

	f2 := StatusFilter{Exclude: []Status{"blocked"}}
	assert.True(t, f2.Matches("anything"))
	assert.False(t, f2.Matches("blocked"))
}

func TestSortTasksDeterministic(t *testing.T) {
	now := time.Now()
	a := &Task{ID: NewID(), Priority: PriorityLow, Complexity: 5, CreatedAt: now}
	b := &Task{ID: NewID(), Priority: PriorityHigh, Complexity: 2, CreatedAt: now}
	c := &Task{ID: NewID(), Priority: PriorityHigh, Complexity: 1, CreatedAt: now}

	tasks := []*Task{a, b, c}
	SortTasksDeterministic(tasks)

	assert.Equal(t, c, tasks[0]) // HIGH, complexity 1
	assert.Equal(t, b, tasks[1]) // HIGH, complexity 2
	assert.Equal(t, a, tasks[2]) // LOW
}

func repeatRune(r rune, n int) string {
	out := make([]rune, n)
	for i := range out {
		out[i] = r
	}
	return string(out)
}
