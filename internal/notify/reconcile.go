package notify

import (
	"time"

	"github.com/google/uuid"

	"github.com/nhle/ambassador-portal/internal/model"
)

const noticeBuffer = 16

// Mutation is one optimistic read change awaiting confirmation.
type Mutation struct {
	ID   string
	Kind model.ConfirmationKind

	// NotificationIDs are the entries this mutation flipped to read.
	NotificationIDs []string
	CreatedAt       time.Time

	seq uint64
}

// Notice reports an optimistic mutation that the server rejected.
type Notice struct {
	Mutation Mutation

	// Reverted lists the entries flipped back to unread. It differs from
	// Mutation.NotificationIDs when a later mark-all still covers some of
	// them, or hands back entries an earlier failed mutation left to it.
	Reverted []string
	Err      error
}

// Message is the user-facing text for the notice.
func (n Notice) Message() string {
	if n.Mutation.Kind == model.ConfirmationMarkAllRead {
		return "Couldn't mark all notifications as read. Please try again."
	}
	return "Couldn't mark notification as read. Please try again."
}

type pending struct {
	m      Mutation
	revert map[string]struct{}
}

// queue is the reconciliation queue. It is guarded by Store.mu.
type queue struct {
	seq     uint64
	entries []*pending
}

func newQueue() *queue {
	return &queue{}
}

func (q *queue) len() int {
	return len(q.entries)
}

func (q *queue) push(kind model.ConfirmationKind, ids []string, now time.Time) Mutation {
	q.seq++
	m := Mutation{
		ID:              uuid.NewString(),
		Kind:            kind,
		NotificationIDs: ids,
		CreatedAt:       now,
		seq:             q.seq,
	}
	p := &pending{m: m, revert: make(map[string]struct{}, len(ids))}
	for _, id := range ids {
		p.revert[id] = struct{}{}
	}
	q.entries = append(q.entries, p)
	return m
}

func (q *queue) take(id string) *pending {
	for i, p := range q.entries {
		if p.m.ID == id {
			q.entries = append(q.entries[:i], q.entries[i+1:]...)
			return p
		}
	}
	return nil
}

// revert removes mutation id and returns the entries that must go back
// to unread. Entries still covered by a later pending mark-all are handed
// to it instead; nothing is reverted when a later mark-all was already
// confirmed (lastMark).
func (q *queue) revert(id string, lastMark uint64) map[string]struct{} {
	out := map[string]struct{}{}
	p := q.take(id)
	if p == nil || p.m.seq < lastMark {
		return out
	}

	var cover *pending
	for _, e := range q.entries {
		if e.m.seq > p.m.seq && e.m.Kind == model.ConfirmationMarkAllRead {
			cover = e
			break
		}
	}

	for nid := range p.revert {
		if cover != nil {
			cover.revert[nid] = struct{}{}
			continue
		}
		out[nid] = struct{}{}
	}
	return out
}

// overlay applies pending reads to a freshly fetched set. Entries the
// server already reports read, or no longer returns, leave the revert
// set since there is nothing left to undo.
func (q *queue) overlay(items []model.Notification) {
	if len(q.entries) == 0 {
		return
	}
	index := make(map[string]int, len(items))
	for i, n := range items {
		index[n.ID] = i
	}
	for _, p := range q.entries {
		for nid := range p.revert {
			i, ok := index[nid]
			if !ok || items[i].Read {
				delete(p.revert, nid)
				continue
			}
			items[i].Read = true
		}
	}
}
