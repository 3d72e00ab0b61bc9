// Package sequence derives the chain of tasks that share a due date with
// the task being viewed.
package sequence

import (
	"sort"
	"time"

	"golang.org/x/text/collate"
	"golang.org/x/text/language"

	"github.com/nhle/ambassador-portal/internal/model"
)

// Sequence is the ordered set of tasks due on the anchor's calendar day
// plus the anchor's zero-based position in it. Index is -1 when the
// anchor was not found.
type Sequence struct {
	Tasks []model.Task
	Index int
}

// Resolve locates anchorID in all, selects every task due on the same UTC
// calendar day and orders them by title. It never caches: call it again
// whenever the anchor changes.
func Resolve(all []model.Task, anchorID string) Sequence {
	var anchor *model.Task
	for i := range all {
		if all[i].ID == anchorID {
			anchor = &all[i]
			break
		}
	}
	if anchor == nil {
		return Sequence{Tasks: []model.Task{}, Index: -1}
	}

	day := utcDay(anchor.DueDate)
	var same []model.Task
	for _, t := range all {
		if utcDay(t.DueDate) == day {
			same = append(same, t)
		}
	}

	// Collators carry internal buffers and are not safe to share.
	col := collate.New(language.English)
	sort.SliceStable(same, func(i, j int) bool {
		return col.CompareString(same[i].Title, same[j].Title) < 0
	})

	for i, t := range same {
		if t.ID == anchorID {
			return Sequence{Tasks: same, Index: i}
		}
	}
	return Sequence{Tasks: []model.Task{*anchor}, Index: 0}
}

func utcDay(t time.Time) string {
	return t.UTC().Format(time.DateOnly)
}

// Len returns the number of tasks in the sequence.
func (s Sequence) Len() int { return len(s.Tasks) }

// Position returns the anchor's 1-based position for "Step X of N"
// display, or 0 when the anchor is unknown.
func (s Sequence) Position() int {
	if s.Index < 0 {
		return 0
	}
	return s.Index + 1
}

// Found reports whether the anchor was located.
func (s Sequence) Found() bool { return s.Index >= 0 }

// HasNext reports whether a task follows the anchor.
func (s Sequence) HasNext() bool {
	return s.Index >= 0 && s.Index < len(s.Tasks)-1
}

// IsLast reports whether the anchor is the final task of the chain.
func (s Sequence) IsLast() bool {
	return s.Index >= 0 && s.Index == len(s.Tasks)-1
}

// Next returns the task following the anchor.
func (s Sequence) Next() (model.Task, bool) {
	if !s.HasNext() {
		return model.Task{}, false
	}
	return s.Tasks[s.Index+1], true
}
