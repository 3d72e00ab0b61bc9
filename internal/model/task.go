package model

import "time"

// TaskStatus is the closed set of task states reported by the server.
type TaskStatus string

const (
	TaskStatusPending   TaskStatus = "pending"
	TaskStatusCompleted TaskStatus = "completed"
)

// Valid reports whether s is a known task status.
func (s TaskStatus) Valid() bool {
	return s == TaskStatusPending || s == TaskStatusCompleted
}

// RequirementKind names a kind of evidence a task asks for.
type RequirementKind string

const (
	RequirementText RequirementKind = "text"
	RequirementLink RequirementKind = "link"
	RequirementFile RequirementKind = "file"
)

// Valid reports whether k is a known requirement kind.
func (k RequirementKind) Valid() bool {
	switch k {
	case RequirementText, RequirementLink, RequirementFile:
		return true
	}
	return false
}

// VerificationMode describes how a submission gets approved.
type VerificationMode string

const (
	VerificationAuto   VerificationMode = "auto"
	VerificationManual VerificationMode = "manual"
)

// Valid reports whether m is a known verification mode.
func (m VerificationMode) Valid() bool {
	return m == VerificationAuto || m == VerificationManual
}

// MaterialKind classifies a learning resource attached to a task.
type MaterialKind string

const (
	MaterialVideo MaterialKind = "video"
	MaterialPDF   MaterialKind = "pdf"
	MaterialLink  MaterialKind = "link"
)

// Step is one server-defined item of work inside a task. Steps are
// immutable on the client.
type Step struct {
	ID          string `json:"id"`
	Title       string `json:"title"`
	Description string `json:"description"`
}

// Material is a learning resource linked from a task.
type Material struct {
	Title string       `json:"title"`
	URL   string       `json:"url"`
	Kind  MaterialKind `json:"kind"`
}

// StepResponse is the ambassador's answer for a single step.
type StepResponse struct {
	StepID string `json:"step_id"`
	Text   string `json:"text"`
}

// Attachment is an opaque reference to a proof file. A freshly chosen
// file has a local Path; one returned by the server only has a URL.
type Attachment struct {
	Path string `json:"path,omitempty"`
	Name string `json:"name"`
	URL  string `json:"url,omitempty"`
}

// Submission is the content an ambassador sent (or is about to send)
// for a task.
type Submission struct {
	GeneralRemarks string         `json:"general_remarks"`
	Links          []string       `json:"links,omitempty"`
	Responses      []StepResponse `json:"responses,omitempty"`
	Attachment     *Attachment    `json:"attachment,omitempty"`

	// AdminFeedback is written by a reviewer; read-only on the client.
	AdminFeedback string `json:"admin_feedback,omitempty"`
}

// Task is an assignment handed to the ambassador.
type Task struct {
	// ID is the server-assigned identifier.
	ID string `json:"id"`

	// Title is the human-readable task name. Tasks sharing a due date
	// are ordered by title.
	Title string `json:"title"`

	// Explanation is the markdown-ish body describing the task.
	Explanation string `json:"explanation"`

	// DueDate is the submission deadline.
	DueDate time.Time `json:"due_date"`

	// CreatedAt is when the task was assigned. Reports window on it.
	CreatedAt time.Time `json:"created_at"`

	// Status is Pending until a submission has been accepted.
	Status TaskStatus `json:"status"`

	// RequirementKinds lists the evidence kinds the task asks for.
	RequirementKinds []RequirementKind `json:"requirement_kinds,omitempty"`

	// Steps is the ordered list of items the ambassador must answer.
	Steps []Step `json:"steps,omitempty"`

	// Submission is the stored submission, if any.
	Submission *Submission `json:"submission,omitempty"`

	RewardPoints     int              `json:"reward_points"`
	IsBonus          bool             `json:"is_bonus"`
	VerificationMode VerificationMode `json:"verification_mode"`
	Materials        []Material       `json:"materials,omitempty"`
}

// Requires reports whether the task lists kind among its requirements.
func (t Task) Requires(kind RequirementKind) bool {
	for _, k := range t.RequirementKinds {
		if k == kind {
			return true
		}
	}
	return false
}

// IsCompleted reports whether the server marked the task completed.
func (t Task) IsCompleted() bool {
	return t.Status == TaskStatusCompleted
}

// IsPast reports whether the task's deadline is at or before now.
func (t Task) IsPast(now time.Time) bool {
	return !now.Before(t.DueDate)
}
