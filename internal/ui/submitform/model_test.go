package submitform

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nhle/ambassador-portal/internal/model"
	"github.com/nhle/ambassador-portal/internal/sequence"
	"github.com/nhle/ambassador-portal/internal/submission"
	"github.com/nhle/ambassador-portal/tests/testutil"
)

func newWorkflow(t *testing.T, task model.Task) *submission.Workflow {
	t.Helper()
	return submission.New(task, sequence.Resolve([]model.Task{task}, task.ID), nil)
}

func TestStart_SeedsFromDraft(t *testing.T) {
	task := testutil.NewTask("t1", "Alpha", time.Now().Add(48*time.Hour), "s1", "s2")
	task.RequirementKinds = []model.RequirementKind{model.RequirementLink}
	task.Submission = &model.Submission{
		GeneralRemarks: "earlier",
		Links:          []string{"https://a", "https://b"},
		Responses:      []model.StepResponse{{StepID: "s2", Text: "two"}},
	}

	m := New(80, 24)
	m.Start(newWorkflow(t, task))

	assert.Equal(t, []string{"", "two"}, m.fb.responses)
	assert.Equal(t, "earlier", m.fb.remarks)
	assert.Equal(t, "https://a\nhttps://b", m.fb.links)
	assert.Equal(t, "Submit & Complete", m.label)
}

func TestHandleSubmit_AppliesValues(t *testing.T) {
	task := testutil.NewTask("t1", "Alpha", time.Now().Add(48*time.Hour), "s1")
	m := New(80, 24)
	m.Start(newWorkflow(t, task))

	m.fb.responses[0] = "answer"
	m.fb.remarks = "note"
	m.fb.links = "https://a\n\nhttps://b"

	msg, ok := m.handleSubmit()().(SubmittedMsg)
	require.True(t, ok)
	assert.Equal(t, "t1", msg.TaskID)

	d := submission.NewDraft(task)
	msg.Apply(d)
	text, _ := d.Response("s1")
	assert.Equal(t, "answer", text)
	assert.Equal(t, "note", d.GeneralRemarks)
	assert.Equal(t, []string{"https://a", "https://b"}, d.Links.Filtered())
	assert.Nil(t, d.Attachment)
}

func TestHandleSubmit_ClearedAttachmentDetaches(t *testing.T) {
	task := testutil.NewTask("t1", "Alpha", time.Now().Add(48*time.Hour))
	task.RequirementKinds = []model.RequirementKind{model.RequirementFile}
	task.Submission = &model.Submission{Attachment: &model.Attachment{Name: "proof.png", URL: "https://cdn/proof.png"}}

	m := New(80, 24)
	m.Start(newWorkflow(t, task))
	assert.Equal(t, "proof.png", m.fb.attachment)

	m.fb.attachment = ""
	msg := m.handleSubmit()().(SubmittedMsg)
	d := submission.NewDraft(task)
	require.NotNil(t, d.Attachment)
	msg.Apply(d)
	assert.Nil(t, d.Attachment)
}

func TestValidateAttachment(t *testing.T) {
	dir := t.TempDir()
	file := filepath.Join(dir, "proof.txt")
	require.NoError(t, os.WriteFile(file, []byte("x"), 0o644))

	m := Model{seeded: "proof.png"}
	assert.NoError(t, m.validateAttachment(""))
	assert.NoError(t, m.validateAttachment("proof.png"))
	assert.NoError(t, m.validateAttachment(file))
	assert.Error(t, m.validateAttachment(dir))
	assert.Error(t, m.validateAttachment(filepath.Join(dir, "missing")))
}
