package submission

import (
	"path/filepath"
	"strings"

	"github.com/nhle/ambassador-portal/internal/model"
)

// Links is an ordered list of link inputs. There is always a trailing
// empty slot to type into: filling the last slot appends a new one.
type Links struct {
	slots []string
}

// NewLinks seeds the editor with values followed by one empty slot.
func NewLinks(values ...string) *Links {
	l := &Links{slots: append([]string(nil), values...)}
	l.grow()
	return l
}

// Len returns the number of slots, including empty ones.
func (l *Links) Len() int { return len(l.slots) }

// At returns slot i, or "" when out of range.
func (l *Links) At(i int) string {
	if i < 0 || i >= len(l.slots) {
		return ""
	}
	return l.slots[i]
}

// Set replaces slot i. Setting one past the end appends.
func (l *Links) Set(i int, v string) {
	switch {
	case i >= 0 && i < len(l.slots):
		l.slots[i] = v
	case i == len(l.slots):
		l.slots = append(l.slots, v)
	default:
		return
	}
	l.grow()
}

// Add appends an empty slot.
func (l *Links) Add() {
	l.slots = append(l.slots, "")
}

// Remove deletes slot i. The editor never drops below one slot.
func (l *Links) Remove(i int) {
	if i < 0 || i >= len(l.slots) {
		return
	}
	l.slots = append(l.slots[:i], l.slots[i+1:]...)
	if len(l.slots) == 0 {
		l.slots = []string{""}
	}
}

// Values returns every slot, empty ones included.
func (l *Links) Values() []string {
	return append([]string(nil), l.slots...)
}

// Filtered returns the trimmed non-empty links in order.
func (l *Links) Filtered() []string {
	var out []string
	for _, s := range l.slots {
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, s)
		}
	}
	return out
}

func (l *Links) grow() {
	if len(l.slots) == 0 || strings.TrimSpace(l.slots[len(l.slots)-1]) != "" {
		l.slots = append(l.slots, "")
	}
}

func (l *Links) clone() *Links {
	return &Links{slots: l.Values()}
}

// Draft is the working copy of a submission.
type Draft struct {
	GeneralRemarks string
	Links          *Links
	Attachment     *model.Attachment

	responses map[string]string
}

// NewDraft seeds a draft from the task's stored submission. Responses
// are keyed by step id; steps without a stored response stay unanswered.
func NewDraft(task model.Task) *Draft {
	d := &Draft{Links: NewLinks(), responses: map[string]string{}}
	sub := task.Submission
	if sub == nil {
		return d
	}

	d.GeneralRemarks = sub.GeneralRemarks
	d.Links = NewLinks(sub.Links...)
	for _, r := range sub.Responses {
		d.responses[r.StepID] = r.Text
	}
	if sub.Attachment != nil {
		a := *sub.Attachment
		d.Attachment = &a
	}
	return d
}

// Response returns the answer for stepID.
func (d *Draft) Response(stepID string) (string, bool) {
	v, ok := d.responses[stepID]
	return v, ok
}

// SetResponse records the answer for stepID. An empty answer removes it.
func (d *Draft) SetResponse(stepID, text string) {
	if text == "" {
		delete(d.responses, stepID)
		return
	}
	d.responses[stepID] = text
}

// Responses returns a copy of the response map.
func (d *Draft) Responses() map[string]string {
	out := make(map[string]string, len(d.responses))
	for k, v := range d.responses {
		out[k] = v
	}
	return out
}

// Attach selects the proof file, replacing any earlier selection.
func (d *Draft) Attach(path string) {
	d.Attachment = &model.Attachment{Path: path, Name: filepath.Base(path)}
}

// Detach clears the proof file.
func (d *Draft) Detach() {
	d.Attachment = nil
}

// hasLocalFile reports whether the attachment is a newly selected file
// rather than one the server already holds.
func (d *Draft) hasLocalFile() bool {
	return d.Attachment != nil && d.Attachment.Path != ""
}

// Clone returns a deep copy.
func (d *Draft) Clone() *Draft {
	c := &Draft{
		GeneralRemarks: d.GeneralRemarks,
		Links:          d.Links.clone(),
		responses:      d.Responses(),
	}
	if d.Attachment != nil {
		a := *d.Attachment
		c.Attachment = &a
	}
	return c
}

// Payload builds the submission sent to the server. Responses follow
// step order; links are filtered. An attachment the server already
// holds (no local path) is not re-sent.
func (d *Draft) Payload(steps []model.Step) model.Submission {
	sub := model.Submission{
		GeneralRemarks: d.GeneralRemarks,
		Links:          d.Links.Filtered(),
	}
	for _, s := range steps {
		if text, ok := d.responses[s.ID]; ok && strings.TrimSpace(text) != "" {
			sub.Responses = append(sub.Responses, model.StepResponse{StepID: s.ID, Text: text})
		}
	}
	if d.hasLocalFile() {
		a := *d.Attachment
		sub.Attachment = &a
	}
	return sub
}
