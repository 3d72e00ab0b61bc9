package sequence

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nhle/ambassador-portal/internal/model"
)

func task(id, title string, due time.Time) model.Task {
	return model.Task{ID: id, Title: title, DueDate: due, Status: model.TaskStatusPending}
}

func ids(ts []model.Task) []string {
	out := make([]string, 0, len(ts))
	for _, t := range ts {
		out = append(out, t.ID)
	}
	return out
}

func TestResolve_GroupsBySameDay(t *testing.T) {
	d := time.Date(2026, 10, 20, 9, 0, 0, 0, time.UTC)
	d2 := time.Date(2026, 10, 21, 9, 0, 0, 0, time.UTC)
	tasks := []model.Task{
		task("A", "Alpha", d),
		task("B", "Beta", d.Add(5*time.Hour)),
		task("C", "Gamma", d2),
	}

	seq := Resolve(tasks, "A")
	assert.Equal(t, []string{"A", "B"}, ids(seq.Tasks))
	assert.Equal(t, 0, seq.Index)
	assert.True(t, seq.HasNext())
	next, ok := seq.Next()
	require.True(t, ok)
	assert.Equal(t, "B", next.ID)
	assert.Equal(t, 1, seq.Position())

	seq = Resolve(tasks, "C")
	assert.Equal(t, []string{"C"}, ids(seq.Tasks))
	assert.Equal(t, 0, seq.Index)
	assert.True(t, seq.IsLast())
	_, ok = seq.Next()
	assert.False(t, ok)
}

func TestResolve_MissingAnchor(t *testing.T) {
	seq := Resolve([]model.Task{task("A", "Alpha", time.Now())}, "missing-id")
	assert.Empty(t, seq.Tasks)
	assert.Equal(t, -1, seq.Index)
	assert.False(t, seq.Found())
	assert.False(t, seq.HasNext())
	assert.Zero(t, seq.Position())
}

func TestResolve_UsesUTCCalendarDay(t *testing.T) {
	east := time.FixedZone("UTC+9", 9*3600)
	// 2026-10-21 08:00 in UTC+9 is 2026-10-20 23:00 UTC.
	tasks := []model.Task{
		task("A", "Alpha", time.Date(2026, 10, 20, 1, 0, 0, 0, time.UTC)),
		task("B", "Beta", time.Date(2026, 10, 21, 8, 0, 0, 0, east)),
		task("C", "Gamma", time.Date(2026, 10, 21, 0, 0, 0, 0, time.UTC)),
	}

	seq := Resolve(tasks, "A")
	assert.Equal(t, []string{"A", "B"}, ids(seq.Tasks))
}

func TestResolve_LocaleAwareStableOrder(t *testing.T) {
	d := time.Date(2026, 10, 20, 12, 0, 0, 0, time.UTC)
	tasks := []model.Task{
		task("z", "zebra", d),
		task("e", "Éclair", d),
		task("a", "apple", d),
		task("dup1", "Same", d),
		task("dup2", "Same", d),
	}

	seq := Resolve(tasks, "dup2")
	assert.Equal(t, []string{"a", "e", "dup1", "dup2", "z"}, ids(seq.Tasks))
	assert.Equal(t, 3, seq.Index)
	assert.Equal(t, 4, seq.Position())
	assert.Equal(t, 5, seq.Len())
}

func TestResolve_DoesNotMutateInput(t *testing.T) {
	d := time.Date(2026, 10, 20, 12, 0, 0, 0, time.UTC)
	tasks := []model.Task{task("b", "Beta", d), task("a", "Alpha", d)}

	Resolve(tasks, "a")
	assert.Equal(t, []string{"b", "a"}, ids(tasks))
}
