package portal

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"
	"os"
	"path/filepath"

	"github.com/nhle/ambassador-portal/internal/model"
)

// Session is the result of a successful login.
type Session struct {
	Token        string
	UserID       string
	Email        string
	DisplayName  string
	FirstName    string
	IsFirstLogin bool
}

// PasswordReset sets the password chosen after a first login. FirstName
// and Title are optional profile details sent along with it.
type PasswordReset struct {
	Password  string
	FirstName string
	Title     string
}

// Notifications returns the full current notification set in server order.
func (c *Client) Notifications(ctx context.Context) ([]model.Notification, error) {
	var wire []wireNotification
	if err := c.do(ctx, request{method: http.MethodGet, path: "/notifications", result: &wire}); err != nil {
		return nil, fmt.Errorf("fetching notifications: %w", err)
	}

	out := make([]model.Notification, 0, len(wire))
	for _, w := range wire {
		n, err := w.toModel()
		if err != nil {
			return nil, fmt.Errorf("decoding notifications: %w", err)
		}
		out = append(out, n)
	}
	return out, nil
}

// MarkNotificationRead confirms that a single notification was read.
func (c *Client) MarkNotificationRead(ctx context.Context, id string) error {
	path := fmt.Sprintf("/notifications/%s/read", url.PathEscape(id))
	if err := c.do(ctx, request{method: http.MethodPatch, path: path}); err != nil {
		return fmt.Errorf("marking notification %s read: %w", id, err)
	}
	return nil
}

// MarkAllNotificationsRead confirms that every notification was read.
func (c *Client) MarkAllNotificationsRead(ctx context.Context) error {
	if err := c.do(ctx, request{method: http.MethodPatch, path: "/notifications/mark-all-read"}); err != nil {
		return fmt.Errorf("marking all notifications read: %w", err)
	}
	return nil
}

// MyTasks returns every task assigned to the current ambassador.
func (c *Client) MyTasks(ctx context.Context) ([]model.Task, error) {
	var wire []wireTask
	if err := c.do(ctx, request{method: http.MethodGet, path: "/tasks/my/all", result: &wire}); err != nil {
		return nil, fmt.Errorf("fetching tasks: %w", err)
	}

	out := make([]model.Task, 0, len(wire))
	for _, w := range wire {
		t, err := w.toModel()
		if err != nil {
			return nil, fmt.Errorf("decoding tasks: %w", err)
		}
		out = append(out, t)
	}
	return out, nil
}

// Task returns a single task, including its stored submission if any.
func (c *Client) Task(ctx context.Context, id string) (*model.Task, error) {
	var wire wireTask
	path := "/tasks/" + url.PathEscape(id)
	if err := c.do(ctx, request{method: http.MethodGet, path: path, result: &wire}); err != nil {
		return nil, fmt.Errorf("fetching task %s: %w", id, err)
	}

	t, err := wire.toModel()
	if err != nil {
		return nil, fmt.Errorf("decoding task %s: %w", id, err)
	}
	return &t, nil
}

// SubmitTask sends a submission as multipart form data: content,
// links[], responses (a JSON-encoded string) and an optional file.
func (c *Client) SubmitTask(ctx context.Context, id string, sub model.Submission) error {
	body, err := multipartSubmission(sub)
	if err != nil {
		return fmt.Errorf("encoding submission for task %s: %w", id, err)
	}

	path := fmt.Sprintf("/tasks/%s/submit", url.PathEscape(id))
	if err := c.do(ctx, request{method: http.MethodPost, path: path, body: body}); err != nil {
		return fmt.Errorf("submitting task %s: %w", id, err)
	}
	return nil
}

// Login authenticates with email and password.
func (c *Client) Login(ctx context.Context, email, password string) (*Session, error) {
	payload := map[string]string{"email": email, "password": password}
	return c.authenticate(ctx, "/auth/ambassador/login", payload)
}

// FirstLogin authenticates a new ambassador with email and last name.
// The returned session usually has IsFirstLogin set; the caller should
// follow up with ResetPassword.
func (c *Client) FirstLogin(ctx context.Context, email, lastName string) (*Session, error) {
	payload := map[string]string{"email": email, "lastName": lastName}
	return c.authenticate(ctx, "/auth/ambassador/first-login", payload)
}

// ResetPassword sets the account password and clears the first-login
// flag on the server.
func (c *Client) ResetPassword(ctx context.Context, r PasswordReset) error {
	body, err := jsonBody(wirePasswordReset(r))
	if err != nil {
		return err
	}
	err = c.do(ctx, request{
		method: http.MethodPatch,
		path:   "/auth/ambassador/password-reset",
		body:   body,
	})
	if err != nil {
		return fmt.Errorf("resetting password: %w", err)
	}
	return nil
}

// Stats returns the server's progress summary for the current ambassador.
func (c *Client) Stats(ctx context.Context) (*model.Stats, error) {
	var wire wireStats
	if err := c.do(ctx, request{method: http.MethodGet, path: "/ambassador/stats", result: &wire}); err != nil {
		return nil, fmt.Errorf("fetching stats: %w", err)
	}
	return &model.Stats{TotalPoints: wire.TotalPoints, WeeklyProgress: wire.WeeklyProgress}, nil
}

func (c *Client) authenticate(ctx context.Context, path string, payload interface{}) (*Session, error) {
	body, err := jsonBody(payload)
	if err != nil {
		return nil, err
	}

	var resp loginResponse
	err = c.do(ctx, request{
		method: http.MethodPost,
		path:   path,
		body:   body,
		result: &resp,
		public: true,
	})
	if err != nil {
		return nil, fmt.Errorf("logging in: %w", err)
	}
	if resp.Token == "" {
		return nil, fmt.Errorf("logging in: server returned no token")
	}

	name := resp.User.FirstName
	if resp.User.LastName != "" {
		name += " " + resp.User.LastName
	}

	return &Session{
		Token:        resp.Token,
		UserID:       resp.User.ID,
		Email:        resp.User.Email,
		DisplayName:  name,
		FirstName:    resp.User.FirstName,
		IsFirstLogin: resp.User.IsFirstLogin,
	}, nil
}

// multipartSubmission encodes sub into a body that is rebuilt on every
// attempt so retries re-read the attachment from disk.
func multipartSubmission(sub model.Submission) (*requestBody, error) {
	responses := make([]wireResponse, 0, len(sub.Responses))
	for _, r := range sub.Responses {
		responses = append(responses, wireResponse{StepID: r.StepID, Text: r.Text})
	}
	responsesJSON, err := json.Marshal(responses)
	if err != nil {
		return nil, fmt.Errorf("marshaling responses: %w", err)
	}

	if sub.Attachment != nil && sub.Attachment.Path != "" {
		if _, err := os.Stat(sub.Attachment.Path); err != nil {
			return nil, fmt.Errorf("reading attachment: %w", err)
		}
	}

	// The boundary must be stable across attempts to keep the header valid.
	boundary := multipart.NewWriter(io.Discard).Boundary()

	build := func() (io.Reader, error) {
		var buf bytes.Buffer
		w := multipart.NewWriter(&buf)
		if err := w.SetBoundary(boundary); err != nil {
			return nil, err
		}

		if err := w.WriteField("content", sub.GeneralRemarks); err != nil {
			return nil, err
		}
		for _, link := range sub.Links {
			if err := w.WriteField("links[]", link); err != nil {
				return nil, err
			}
		}
		if err := w.WriteField("responses", string(responsesJSON)); err != nil {
			return nil, err
		}

		if sub.Attachment != nil && sub.Attachment.Path != "" {
			name := sub.Attachment.Name
			if name == "" {
				name = filepath.Base(sub.Attachment.Path)
			}
			part, err := w.CreateFormFile("file", name)
			if err != nil {
				return nil, err
			}
			f, err := os.Open(sub.Attachment.Path)
			if err != nil {
				return nil, fmt.Errorf("opening attachment: %w", err)
			}
			_, err = io.Copy(part, f)
			f.Close()
			if err != nil {
				return nil, fmt.Errorf("copying attachment: %w", err)
			}
		}

		if err := w.Close(); err != nil {
			return nil, err
		}
		return &buf, nil
	}

	return &requestBody{
		contentType: "multipart/form-data; boundary=" + boundary,
		build:       build,
	}, nil
}
