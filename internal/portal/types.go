package portal

import (
	"fmt"
	"strings"
	"time"

	"github.com/nhle/ambassador-portal/internal/model"
)

// wireNotification is a notification as returned by GET /notifications.
type wireNotification struct {
	ID        string    `json:"_id"`
	Type      string    `json:"type"`
	Title     string    `json:"title"`
	Body      string    `json:"body"`
	Read      bool      `json:"read"`
	CreatedAt time.Time `json:"createdAt"`
}

// wireStep is one "what to do" item of a task.
type wireStep struct {
	ID          string `json:"_id"`
	Title       string `json:"title"`
	Description string `json:"description"`
}

// wireResponse is a stored step response. whatToDoId is the server's
// name for the step id.
type wireResponse struct {
	StepID string `json:"whatToDoId"`
	Text   string `json:"text"`
}

type wireSubmission struct {
	Content       string         `json:"content"`
	Links         []string       `json:"links"`
	Responses     []wireResponse `json:"responses"`
	FileURL       string         `json:"fileUrl"`
	AdminFeedback string         `json:"adminFeedback"`
}

type wireMaterial struct {
	Title string `json:"title"`
	URL   string `json:"url"`
	Type  string `json:"type"`
}

// wireTask is a task as returned by GET /tasks/my/all and GET /tasks/{id}.
// Older servers send steps under "steps" instead of "whatToDo".
type wireTask struct {
	ID               string          `json:"_id"`
	Title            string          `json:"title"`
	Description      string          `json:"description"`
	Explanation      string          `json:"explanation"`
	DueDate          time.Time       `json:"dueDate"`
	CreatedAt        time.Time       `json:"createdAt"`
	Status           string          `json:"status"`
	Requirements     []string        `json:"requirements"`
	WhatToDo         []wireStep      `json:"whatToDo"`
	Steps            []wireStep      `json:"steps"`
	Submission       *wireSubmission `json:"submission"`
	RewardPoints     int             `json:"rewardPoints"`
	IsBonus          bool            `json:"isBonus"`
	VerificationType string          `json:"verificationType"`
	Materials        []wireMaterial  `json:"materials"`
}

// loginResponse is returned by the auth endpoints.
type loginResponse struct {
	Token string   `json:"token"`
	User  wireUser `json:"user"`
}

// wirePasswordReset is the body of PATCH /auth/ambassador/password-reset.
type wirePasswordReset struct {
	Password  string `json:"password"`
	FirstName string `json:"firstName,omitempty"`
	Title     string `json:"title,omitempty"`
}

// wireStats is returned by GET /ambassador/stats.
type wireStats struct {
	TotalPoints    int `json:"totalPoints"`
	WeeklyProgress int `json:"weeklyProgress"`
}

type wireUser struct {
	ID           string `json:"_id"`
	Email        string `json:"email"`
	FirstName    string `json:"firstName"`
	LastName     string `json:"lastName"`
	IsFirstLogin bool   `json:"isFirstLogin"`
}

func (w wireNotification) toModel() (model.Notification, error) {
	kind := model.NotificationKind(strings.ToLower(w.Type))
	if !kind.Valid() {
		return model.Notification{}, fmt.Errorf("notification %s: unknown type %q", w.ID, w.Type)
	}
	return model.Notification{
		ID:        w.ID,
		Kind:      kind,
		Title:     w.Title,
		Body:      w.Body,
		Read:      w.Read,
		CreatedAt: w.CreatedAt,
	}, nil
}

func (w wireTask) toModel() (model.Task, error) {
	status := model.TaskStatusPending
	if w.Status != "" {
		status = model.TaskStatus(strings.ToLower(w.Status))
		if !status.Valid() {
			return model.Task{}, fmt.Errorf("task %s: unknown status %q", w.ID, w.Status)
		}
	}

	var kinds []model.RequirementKind
	for _, r := range w.Requirements {
		k := model.RequirementKind(strings.ToLower(r))
		if !k.Valid() {
			return model.Task{}, fmt.Errorf("task %s: unknown requirement %q", w.ID, r)
		}
		kinds = append(kinds, k)
	}

	mode := model.VerificationManual
	if w.VerificationType != "" {
		mode = model.VerificationMode(strings.ToLower(w.VerificationType))
		if !mode.Valid() {
			return model.Task{}, fmt.Errorf("task %s: unknown verification type %q", w.ID, w.VerificationType)
		}
	}

	wireSteps := w.WhatToDo
	if len(wireSteps) == 0 {
		wireSteps = w.Steps
	}
	steps := make([]model.Step, 0, len(wireSteps))
	for _, s := range wireSteps {
		steps = append(steps, model.Step{ID: s.ID, Title: s.Title, Description: s.Description})
	}

	explanation := w.Explanation
	if explanation == "" {
		explanation = w.Description
	}

	task := model.Task{
		ID:               w.ID,
		Title:            w.Title,
		Explanation:      explanation,
		DueDate:          w.DueDate,
		CreatedAt:        w.CreatedAt,
		Status:           status,
		RequirementKinds: kinds,
		Steps:            steps,
		RewardPoints:     w.RewardPoints,
		IsBonus:          w.IsBonus,
		VerificationMode: mode,
	}

	for _, m := range w.Materials {
		task.Materials = append(task.Materials, model.Material{
			Title: m.Title,
			URL:   m.URL,
			Kind:  materialKind(m.Type),
		})
	}

	if w.Submission != nil {
		sub := &model.Submission{
			GeneralRemarks: w.Submission.Content,
			Links:          w.Submission.Links,
			AdminFeedback:  w.Submission.AdminFeedback,
		}
		for _, r := range w.Submission.Responses {
			sub.Responses = append(sub.Responses, model.StepResponse{StepID: r.StepID, Text: r.Text})
		}
		if w.Submission.FileURL != "" {
			sub.Attachment = &model.Attachment{
				Name: fileNameFromURL(w.Submission.FileURL),
				URL:  w.Submission.FileURL,
			}
		}
		task.Submission = sub
	}

	return task, nil
}

func materialKind(t string) model.MaterialKind {
	switch strings.ToUpper(t) {
	case "VIDEO":
		return model.MaterialVideo
	case "PDF":
		return model.MaterialPDF
	default:
		return model.MaterialLink
	}
}

func fileNameFromURL(u string) string {
	if i := strings.LastIndex(u, "/"); i >= 0 && i < len(u)-1 {
		return u[i+1:]
	}
	return u
}
