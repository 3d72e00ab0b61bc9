package cli

import (
	"bytes"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nhle/ambassador-portal/internal/model"
	"github.com/nhle/ambassador-portal/internal/notify"
	"github.com/nhle/ambassador-portal/internal/portal"
	"github.com/nhle/ambassador-portal/internal/submission"
	"github.com/nhle/ambassador-portal/tests/testutil"
)

// testApp wires an App against a fake portal and an in-memory cache.
func testApp(t *testing.T, fp *testutil.FakePortal) (*App, *testutil.FakeCredentials) {
	t.Helper()
	s := testutil.NewTestStore(t)
	creds := &testutil.FakeCredentials{}
	cfg, err := model.LoadConfig(t.TempDir() + "/config.yaml")
	require.NoError(t, err)

	return &App{
		Config:     cfg,
		ConfigPath: "/tmp/ambassador/config.yaml",
		Store:      s,
		Portal:     fp,
		Notify:     notify.New(fp, notify.WithLedger(s)),
		Controller: submission.NewController(fp, submission.WithCache(s), submission.WithAdvanceDelay(time.Millisecond)),
		Creds:      creds,
	}, creds
}

// executeCmd runs a cobra command and captures stdout/stderr.
func executeCmd(t *testing.T, a *App, args ...string) (string, error) {
	t.Helper()
	root := NewRootCmd(a)
	buf := new(bytes.Buffer)
	root.SetOut(buf)
	root.SetErr(buf)
	root.SetArgs(args)
	err := root.Execute()
	return buf.String(), err
}

// sameDay returns two tasks due on the same day, a few hours apart.
func sameDay() []model.Task {
	due := time.Now().UTC().Add(72 * time.Hour).Truncate(24 * time.Hour).Add(10 * time.Hour)
	return []model.Task{
		testutil.NewTask("A", "Alpha", due, "s1"),
		testutil.NewTask("B", "Beta", due.Add(2*time.Hour), "s1"),
	}
}

// --- Root ---

func TestRootCmd_NonInteractivePrintsHelp(t *testing.T) {
	a, _ := testApp(t, &testutil.FakePortal{})
	ran := false
	a.IsInteractive = func() bool { return false }
	a.RunTUI = func() error { ran = true; return nil }

	out, err := executeCmd(t, a)
	require.NoError(t, err)
	assert.False(t, ran)
	assert.Contains(t, out, "tasks")
}

func TestRootCmd_InteractiveRunsTUI(t *testing.T) {
	a, _ := testApp(t, &testutil.FakePortal{})
	ran := false
	a.IsInteractive = func() bool { return true }
	a.RunTUI = func() error { ran = true; return nil }

	_, err := executeCmd(t, a)
	require.NoError(t, err)
	assert.True(t, ran)
}

// --- Session ---

func TestLoginCmd_SavesSession(t *testing.T) {
	a, creds := testApp(t, &testutil.FakePortal{})

	out, err := executeCmd(t, a, "login", "--email", "ada@example.com", "--password", "pw")
	require.NoError(t, err)
	assert.Contains(t, out, "Signed in as Ada Lovelace")
	assert.Equal(t, "tok", creds.Token)
}

func TestLoginCmd_FirstLoginRequiresLastName(t *testing.T) {
	a, creds := testApp(t, &testutil.FakePortal{})

	_, err := executeCmd(t, a, "login", "--email", "ada@example.com", "--first-login")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "--last-name")
	assert.Empty(t, creds.Token)
}

func TestLoginCmd_ShowsServerMessage(t *testing.T) {
	fp := &testutil.FakePortal{LoginErr: &portal.AuthError{Message: "Invalid credentials", SignIn: true}}
	a, _ := testApp(t, fp)

	_, err := executeCmd(t, a, "login", "--email", "ada@example.com", "--password", "bad")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "Invalid credentials")
}

func TestLogoutCmd_ClearsSession(t *testing.T) {
	a, creds := testApp(t, &testutil.FakePortal{})
	creds.Token = "tok"

	out, err := executeCmd(t, a, "logout")
	require.NoError(t, err)
	assert.Contains(t, out, "Signed out.")
	assert.Empty(t, creds.Token)
}

func TestLoginCmd_FirstLoginPointsAtPassword(t *testing.T) {
	a, _ := testApp(t, &testutil.FakePortal{})

	out, err := executeCmd(t, a, "login", "--email", "ada@example.com", "--first-login", "--last-name", "Lovelace")
	require.NoError(t, err)
	assert.Contains(t, out, "ambassador password")
}

func TestPasswordCmd_Resets(t *testing.T) {
	fp := &testutil.FakePortal{}
	a, _ := testApp(t, fp)

	out, err := executeCmd(t, a, "password", "--password", "s3cret", "--confirm", "s3cret", "--first-name", "Ada")
	require.NoError(t, err)
	assert.Contains(t, out, "Password updated.")
	require.Len(t, fp.Resets, 1)
	assert.Equal(t, portal.PasswordReset{Password: "s3cret", FirstName: "Ada"}, fp.Resets[0])
}

func TestPasswordCmd_MismatchSendsNothing(t *testing.T) {
	fp := &testutil.FakePortal{}
	a, _ := testApp(t, fp)

	_, err := executeCmd(t, a, "password", "--password", "one", "--confirm", "two")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "do not match")
	assert.Empty(t, fp.Resets)
}

func TestPasswordCmd_ShowsServerMessage(t *testing.T) {
	fp := &testutil.FakePortal{ResetErr: &portal.APIError{Status: 400, Method: "PATCH", Path: "/auth/ambassador/password-reset", Message: "Password too short"}}
	a, _ := testApp(t, fp)

	_, err := executeCmd(t, a, "password", "--password", "pw", "--confirm", "pw")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "Password too short")
}

// --- Reports ---

func TestReportsCmd_Summary(t *testing.T) {
	now := time.Now()
	recent := testutil.NewTask("A", "Alpha", now.Add(24*time.Hour))
	recent.CreatedAt = now.Add(-48 * time.Hour)
	recent.Status = model.TaskStatusCompleted
	recent.RewardPoints = 30
	old := testutil.NewTask("B", "Beta", now.Add(24*time.Hour))
	old.CreatedAt = now.Add(-60 * 24 * time.Hour)
	fp := &testutil.FakePortal{
		Tasks:       []model.Task{recent, old},
		ServerStats: &model.Stats{TotalPoints: 120, WeeklyProgress: 40},
	}
	a, _ := testApp(t, fp)

	out, err := executeCmd(t, a, "reports")
	require.NoError(t, err)
	assert.Contains(t, out, "All Time")
	assert.Contains(t, out, "50%")
	assert.Contains(t, out, "120")
	assert.Contains(t, out, "Beta")

	out, err = executeCmd(t, a, "reports", "--range", "week")
	require.NoError(t, err)
	assert.Contains(t, out, "Last 7 Days")
	assert.Contains(t, out, "100%")
	assert.Contains(t, out, "Alpha")
	assert.NotContains(t, out, "Beta")
}

func TestReportsCmd_EmptyRange(t *testing.T) {
	a, _ := testApp(t, &testutil.FakePortal{})

	out, err := executeCmd(t, a, "reports", "--range", "month")
	require.NoError(t, err)
	assert.Contains(t, out, "No activity in this period")
}

func TestReportsCmd_RejectsUnknownRange(t *testing.T) {
	a, _ := testApp(t, &testutil.FakePortal{})

	_, err := executeCmd(t, a, "reports", "--range", "year")
	require.Error(t, err)
}

// --- Tasks ---

func TestTasksListCmd_ActiveAndHistory(t *testing.T) {
	fp := &testutil.FakePortal{Tasks: append(sameDay(),
		testutil.NewTask("old", "Old report", time.Now().Add(-72*time.Hour)))}
	a, _ := testApp(t, fp)

	out, err := executeCmd(t, a, "tasks", "list")
	require.NoError(t, err)
	assert.Contains(t, out, "Alpha")
	assert.Contains(t, out, "Beta")
	assert.NotContains(t, out, "Old report")

	out, err = executeCmd(t, a, "tasks", "list", "--history")
	require.NoError(t, err)
	assert.Contains(t, out, "Old report")
	assert.NotContains(t, out, "Alpha")
}

func TestTasksShowCmd_PrintsPosition(t *testing.T) {
	a, _ := testApp(t, &testutil.FakePortal{Tasks: sameDay()})

	out, err := executeCmd(t, a, "tasks", "show", "B")
	require.NoError(t, err)
	assert.Contains(t, out, "Step 2 of 2")
	assert.Contains(t, out, "Beta")
}

func TestTasksShowCmd_UnknownTask(t *testing.T) {
	a, _ := testApp(t, &testutil.FakePortal{Tasks: sameDay()})

	_, err := executeCmd(t, a, "tasks", "show", "nope")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "Task not found")
}

func TestTasksSubmitCmd_ValidationFailureSendsNothing(t *testing.T) {
	fp := &testutil.FakePortal{Tasks: sameDay()}
	a, _ := testApp(t, fp)

	out, err := executeCmd(t, a, "tasks", "submit", "A")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "incomplete")
	assert.Contains(t, out, "1. Step s1")
	assert.Empty(t, fp.Submitted)
}

func TestTasksSubmitCmd_SubmitsAndFollows(t *testing.T) {
	fp := &testutil.FakePortal{Tasks: sameDay()}
	a, _ := testApp(t, fp)

	out, err := executeCmd(t, a, "tasks", "submit", "A",
		"--response", "1=my answer",
		"--remarks", "thanks",
		"--link", "https://example.com/post",
		"--follow")
	require.NoError(t, err)

	sub, ok := fp.Submitted["A"]
	require.True(t, ok)
	assert.Equal(t, []model.StepResponse{{StepID: "s1", Text: "my answer"}}, sub.Responses)
	assert.Equal(t, "thanks", sub.GeneralRemarks)
	assert.Equal(t, []string{"https://example.com/post"}, sub.Links)

	assert.Contains(t, out, "Ready for Next Task!")
	assert.Contains(t, out, "Beta")
	assert.Contains(t, out, "Step 2 of 2")
}

func TestTasksSubmitCmd_LastTaskCompletes(t *testing.T) {
	fp := &testutil.FakePortal{Tasks: sameDay()}
	a, _ := testApp(t, fp)

	out, err := executeCmd(t, a, "tasks", "submit", "B", "--response", "s1=done")
	require.NoError(t, err)
	assert.Contains(t, out, "All Done!")
}

func TestTasksSubmitCmd_ServerFailureUsesMessage(t *testing.T) {
	fp := &testutil.FakePortal{Tasks: sameDay(), SubmitErr: &portal.APIError{Status: 500, Message: "Upload failed"}}
	a, _ := testApp(t, fp)

	_, err := executeCmd(t, a, "tasks", "submit", "A", "--response", "s1=x")
	require.Error(t, err)
	assert.Equal(t, "Upload failed", err.Error())
}

func TestTasksSubmitCmd_RejectsUnknownStep(t *testing.T) {
	a, _ := testApp(t, &testutil.FakePortal{Tasks: sameDay()})

	_, err := executeCmd(t, a, "tasks", "submit", "A", "--response", "9=x")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown step")
}

func TestParseResponses(t *testing.T) {
	steps := []model.Step{{ID: "s1"}, {ID: "s2"}}

	got, err := parseResponses(steps, []string{"s1=a=b", "2=c"})
	require.NoError(t, err)
	assert.Equal(t, map[string]string{"s1": "a=b", "s2": "c"}, got)

	_, err = parseResponses(steps, []string{"no-equals"})
	assert.Error(t, err)
}

// --- Notifications ---

func TestNotificationsCmd_ListAndReadAll(t *testing.T) {
	fp := &testutil.FakePortal{Items: []model.Notification{
		testutil.NewNotification("n1", false),
		testutil.NewNotification("n2", true),
	}}
	a, _ := testApp(t, fp)

	out, err := executeCmd(t, a, "notifications", "list", "--unread")
	require.NoError(t, err)
	assert.Contains(t, out, "n1")
	assert.NotContains(t, out, "n2")
	assert.Contains(t, out, "1 unread")

	out, err = executeCmd(t, a, "notifications", "read-all")
	require.NoError(t, err)
	assert.Contains(t, out, "marked as read")
	assert.Equal(t, 1, fp.MarkCalls)

	out, err = executeCmd(t, a, "notifications", "read-all")
	require.NoError(t, err)
	assert.Contains(t, out, "Nothing to mark.")
	assert.Equal(t, 1, fp.MarkCalls)
}

func TestNotificationsReadCmd_RevertsOnFailure(t *testing.T) {
	fp := &testutil.FakePortal{
		Items:   []model.Notification{testutil.NewNotification("n1", false)},
		MarkErr: errors.New("boom"),
	}
	a, _ := testApp(t, fp)

	_, err := executeCmd(t, a, "notifications", "read", "n1")
	require.Error(t, err)
	assert.Equal(t, 1, a.Notify.UnreadCount())
}

func TestNotificationsReadCmd_UnknownID(t *testing.T) {
	a, _ := testApp(t, &testutil.FakePortal{})

	_, err := executeCmd(t, a, "notifications", "read", "missing")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not found")
}

// --- Config ---

func TestConfigCmd_ShowAndPath(t *testing.T) {
	a, _ := testApp(t, &testutil.FakePortal{})

	out, err := executeCmd(t, a, "config", "show")
	require.NoError(t, err)
	assert.Contains(t, out, "base_url")
	assert.Contains(t, out, "advance_delay_ms: 1500")

	out, err = executeCmd(t, a, "config", "path")
	require.NoError(t, err)
	assert.Contains(t, out, "/tmp/ambassador/config.yaml")
}
