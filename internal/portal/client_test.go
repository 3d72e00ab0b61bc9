package portal

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nhle/ambassador-portal/internal/model"
)

func newTestClient(t *testing.T, h http.HandlerFunc, opts ...Option) *Client {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)
	return NewClient(srv.URL, StaticToken("secret"), opts...)
}

func TestClient_Notifications_DecodesAndAuthenticates(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/notifications", r.URL.Path)
		assert.Equal(t, "Bearer secret", r.Header.Get("Authorization"))
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`[
			{"_id":"n1","type":"MESSAGE","title":"Hi","body":"b","read":false,"createdAt":"2026-10-01T10:00:00Z"},
			{"_id":"n2","type":"ANNOUNCEMENT","title":"News","body":"c","read":true,"createdAt":"2026-10-02T10:00:00Z"}
		]`))
	})

	ns, err := c.Notifications(context.Background())
	require.NoError(t, err)
	require.Len(t, ns, 2)
	assert.Equal(t, "n1", ns[0].ID)
	assert.Equal(t, model.NotificationKindMessage, ns[0].Kind)
	assert.Equal(t, model.NotificationKindAnnouncement, ns[1].Kind)
	assert.True(t, ns[1].Read)
	assert.Equal(t, 1, model.CountUnread(ns))
}

func TestClient_Notifications_RejectsUnknownKind(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`[{"_id":"n1","type":"ALERT","title":"x"}]`))
	})

	_, err := c.Notifications(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown type")
}

func TestClient_Task_DecodesWireShape(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/tasks/t1", r.URL.Path)
		w.Write([]byte(`{
			"_id":"t1","title":"Alpha","description":"desc","dueDate":"2026-10-20T12:00:00Z",
			"status":"COMPLETED","requirements":["TEXT","LINK"],
			"whatToDo":[{"_id":"s1","title":"One"},{"_id":"s2","title":"Two"}],
			"submission":{"content":"done","links":["https://a"],"responses":[{"whatToDoId":"s1","text":"x"}],
				"fileUrl":"https://cdn.example/proof.png","adminFeedback":"nice"},
			"rewardPoints":50,"isBonus":true,"verificationType":"AUTO",
			"materials":[{"title":"Intro","url":"https://v","type":"VIDEO"}]
		}`))
	})

	task, err := c.Task(context.Background(), "t1")
	require.NoError(t, err)
	assert.Equal(t, model.TaskStatusCompleted, task.Status)
	assert.Equal(t, "desc", task.Explanation)
	assert.True(t, task.Requires(model.RequirementLink))
	assert.False(t, task.Requires(model.RequirementFile))
	require.Len(t, task.Steps, 2)
	assert.Equal(t, "s2", task.Steps[1].ID)
	require.NotNil(t, task.Submission)
	assert.Equal(t, "done", task.Submission.GeneralRemarks)
	assert.Equal(t, []model.StepResponse{{StepID: "s1", Text: "x"}}, task.Submission.Responses)
	require.NotNil(t, task.Submission.Attachment)
	assert.Equal(t, "proof.png", task.Submission.Attachment.Name)
	assert.Equal(t, model.VerificationAuto, task.VerificationMode)
	assert.Equal(t, model.MaterialVideo, task.Materials[0].Kind)
}

func TestClient_MyTasks_DefaultsMissingStatus(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`[{"_id":"t1","title":"A","dueDate":"2026-10-20T12:00:00Z","steps":[{"_id":"s1"}]}]`))
	})

	tasks, err := c.MyTasks(context.Background())
	require.NoError(t, err)
	require.Len(t, tasks, 1)
	assert.Equal(t, model.TaskStatusPending, tasks[0].Status)
	assert.Equal(t, model.VerificationManual, tasks[0].VerificationMode)
	assert.Len(t, tasks[0].Steps, 1)
}

func TestClient_Unauthorized_RunsHook(t *testing.T) {
	var hookCalls int32
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	}, WithUnauthorizedHook(func() { atomic.AddInt32(&hookCalls, 1) }))

	err := c.MarkAllNotificationsRead(context.Background())
	require.Error(t, err)
	assert.True(t, IsAuthError(err))
	assert.Equal(t, int32(1), atomic.LoadInt32(&hookCalls))
}

func TestClient_Login_DoesNotRunHook(t *testing.T) {
	var hookCalls int32
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		w.Write([]byte(`{"message":"Invalid credentials"}`))
	}, WithUnauthorizedHook(func() { atomic.AddInt32(&hookCalls, 1) }))

	_, err := c.Login(context.Background(), "a@b.c", "wrong")
	require.Error(t, err)
	assert.True(t, IsAuthError(err))
	assert.Equal(t, "Invalid credentials", UserMessage(err, "fallback"))
	assert.Zero(t, atomic.LoadInt32(&hookCalls))
}

func TestClient_Login_ReturnsSession(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/auth/ambassador/login", r.URL.Path)
		var body map[string]string
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "a@b.c", body["email"])
		w.Write([]byte(`{"token":"tok","user":{"_id":"u1","email":"a@b.c","firstName":"Ada","lastName":"L"}}`))
	})

	sess, err := c.Login(context.Background(), "a@b.c", "pw")
	require.NoError(t, err)
	assert.Equal(t, "tok", sess.Token)
	assert.Equal(t, "Ada L", sess.DisplayName)
}

func TestClient_ResetPassword_SendsProfile(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPatch, r.Method)
		assert.Equal(t, "/auth/ambassador/password-reset", r.URL.Path)
		assert.Equal(t, "Bearer secret", r.Header.Get("Authorization"))
		var body map[string]string
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "s3cret!", body["password"])
		assert.Equal(t, "Ada", body["firstName"])
		_, hasTitle := body["title"]
		assert.False(t, hasTitle)
		w.WriteHeader(http.StatusOK)
	})

	require.NoError(t, c.ResetPassword(context.Background(), PasswordReset{Password: "s3cret!", FirstName: "Ada"}))
}

func TestClient_ResetPassword_ServerMessage(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		w.Write([]byte(`{"message":"Password too short"}`))
	})

	err := c.ResetPassword(context.Background(), PasswordReset{Password: "x"})
	require.Error(t, err)
	assert.Equal(t, "Password too short", UserMessage(err, "fallback"))
}

func TestClient_Stats(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/ambassador/stats", r.URL.Path)
		w.Write([]byte(`{"totalPoints":120,"weeklyProgress":40,"rank":"ignored"}`))
	})

	st, err := c.Stats(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 120, st.TotalPoints)
	assert.Equal(t, 40, st.WeeklyProgress)
}

func TestClient_ErrorClassification(t *testing.T) {
	tests := []struct {
		name     string
		status   int
		network  bool
		conflict bool
	}{
		{"server error", http.StatusInternalServerError, true, false},
		{"bad request", http.StatusBadRequest, true, false},
		{"conflict", http.StatusConflict, false, true},
		{"gone", http.StatusGone, false, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				w.Write([]byte(`{"message":"server says no"}`))
			})

			err := c.SubmitTask(context.Background(), "t1", model.Submission{})
			require.Error(t, err)
			assert.Equal(t, tt.network, IsNetworkFailure(err))
			assert.Equal(t, tt.conflict, IsStaleState(err))
			assert.Equal(t, "server says no", UserMessage(err, "fallback"))
		})
	}
}

func TestClient_TransportFailureIsNetworkFailure(t *testing.T) {
	c := NewClient("http://127.0.0.1:1", StaticToken(""), WithTimeout(200*time.Millisecond))

	_, err := c.MyTasks(context.Background())
	require.Error(t, err)
	assert.True(t, IsNetworkFailure(err))
	assert.Equal(t, "fallback", UserMessage(err, "fallback"))
}

func TestClient_RetriesRateLimited(t *testing.T) {
	var calls int32
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&calls, 1) == 1 {
			w.Header().Set("Retry-After", "0")
			w.WriteHeader(http.StatusTooManyRequests)
			return
		}
		w.WriteHeader(http.StatusOK)
	})

	require.NoError(t, c.MarkNotificationRead(context.Background(), "n1"))
	assert.Equal(t, int32(2), atomic.LoadInt32(&calls))
}

func TestClient_RateLimitGivesUpWithoutFinalWait(t *testing.T) {
	var calls int32
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.Header().Set("Retry-After", "30")
		w.WriteHeader(http.StatusTooManyRequests)
	}, WithMaxRetries(0))

	started := time.Now()
	err := c.MarkNotificationRead(context.Background(), "n1")
	require.Error(t, err)
	assert.True(t, IsNetworkFailure(err))
	assert.Less(t, time.Since(started), 5*time.Second)
	assert.Equal(t, int32(1), atomic.LoadInt32(&calls))
}

func TestClient_SubmitTask_Multipart(t *testing.T) {
	dir := t.TempDir()
	proof := filepath.Join(dir, "proof.txt")
	require.NoError(t, os.WriteFile(proof, []byte("evidence"), 0o644))

	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/tasks/t1/submit", r.URL.Path)
		require.NoError(t, r.ParseMultipartForm(1<<20))

		assert.Equal(t, "remarks", r.FormValue("content"))
		assert.Equal(t, []string{"https://a", "https://b"}, r.MultipartForm.Value["links[]"])

		var responses []map[string]string
		require.NoError(t, json.Unmarshal([]byte(r.FormValue("responses")), &responses))
		require.Len(t, responses, 1)
		assert.Equal(t, "s1", responses[0]["whatToDoId"])
		assert.Equal(t, "x", responses[0]["text"])

		f, hdr, err := r.FormFile("file")
		require.NoError(t, err)
		defer f.Close()
		assert.Equal(t, "proof.txt", hdr.Filename)
		w.WriteHeader(http.StatusCreated)
	})

	err := c.SubmitTask(context.Background(), "t1", model.Submission{
		GeneralRemarks: "remarks",
		Links:          []string{"https://a", "https://b"},
		Responses:      []model.StepResponse{{StepID: "s1", Text: "x"}},
		Attachment:     &model.Attachment{Path: proof},
	})
	require.NoError(t, err)
}
