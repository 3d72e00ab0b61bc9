// Package reports summarizes the ambassador's task progress over a time
// range, next to the totals the server keeps.
package reports

import (
	"context"
	"fmt"
	"math"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/nhle/ambassador-portal/internal/model"
)

// Range selects which tasks a summary covers, by assignment date.
type Range string

const (
	RangeWeek  Range = "week"
	RangeMonth Range = "month"
	RangeAll   Range = "all"
)

// Ranges lists every range in display order.
var Ranges = []Range{RangeWeek, RangeMonth, RangeAll}

// RecentLimit caps Summary.Recent.
const RecentLimit = 10

// ParseRange parses a range name.
func ParseRange(s string) (Range, error) {
	for _, r := range Ranges {
		if string(r) == s {
			return r, nil
		}
	}
	return "", fmt.Errorf("unknown range %q (want week, month or all)", s)
}

// Label is the human-readable name of r.
func (r Range) Label() string {
	switch r {
	case RangeWeek:
		return "Last 7 Days"
	case RangeMonth:
		return "Last 30 Days"
	default:
		return "All Time"
	}
}

// Next returns the range after r, wrapping around.
func (r Range) Next() Range {
	for i, x := range Ranges {
		if x == r {
			return Ranges[(i+1)%len(Ranges)]
		}
	}
	return RangeAll
}

// since returns the earliest assignment time r includes.
func (r Range) since(now time.Time) (time.Time, bool) {
	switch r {
	case RangeWeek:
		return now.Add(-7 * 24 * time.Hour), true
	case RangeMonth:
		return now.Add(-30 * 24 * time.Hour), true
	default:
		return time.Time{}, false
	}
}

// Summary is the progress over one range.
type Summary struct {
	Range     Range
	Total     int
	Completed int
	Pending   int

	// Points sums the rewards of completed tasks.
	Points int

	// CompletionRate is Completed/Total as a rounded percentage, 0 when
	// there are no tasks.
	CompletionRate int

	// Recent holds the first RecentLimit tasks of the range in server order.
	Recent []model.Task
}

// Summarize computes the summary of tasks for r. Tasks without an
// assignment date only count toward RangeAll.
func Summarize(tasks []model.Task, r Range, now time.Time) Summary {
	s := Summary{Range: r}
	since, bounded := r.since(now)

	for _, t := range tasks {
		if bounded && (t.CreatedAt.IsZero() || t.CreatedAt.Before(since)) {
			continue
		}
		s.Total++
		if t.IsCompleted() {
			s.Completed++
			s.Points += t.RewardPoints
		} else {
			s.Pending++
		}
		if len(s.Recent) < RecentLimit {
			s.Recent = append(s.Recent, t)
		}
	}

	if s.Total > 0 {
		s.CompletionRate = int(math.Round(float64(s.Completed) / float64(s.Total) * 100))
	}
	return s
}

// Source is the slice of the portal client a report is built from.
type Source interface {
	Stats(ctx context.Context) (*model.Stats, error)
	MyTasks(ctx context.Context) ([]model.Task, error)
}

// Report holds the data every range is summarized from.
type Report struct {
	Stats model.Stats
	Tasks []model.Task
}

// Summary summarizes the report's tasks for r.
func (rp *Report) Summary(r Range, now time.Time) Summary {
	return Summarize(rp.Tasks, r, now)
}

// Load fetches the server stats and the task list concurrently. Either
// failure fails the whole report.
func Load(ctx context.Context, src Source) (*Report, error) {
	var (
		stats *model.Stats
		tasks []model.Task
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		stats, err = src.Stats(gctx)
		return err
	})
	g.Go(func() error {
		var err error
		tasks, err = src.MyTasks(gctx)
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("loading report: %w", err)
	}

	return &Report{Stats: *stats, Tasks: tasks}, nil
}
