package submission

import (
	"errors"
	"fmt"
	"strings"

	"github.com/nhle/ambassador-portal/internal/model"
)

// ErrValidation matches any *ValidationError.
var ErrValidation = errors.New("submission is incomplete")

// FieldError describes one invalid draft field.
type FieldError struct {
	// Field is "response", "remarks" or "submission".
	Field   string
	StepID  string
	Message string
}

// ValidationError is returned when a draft fails local validation. It
// never reaches the network.
type ValidationError struct {
	Fields []FieldError
}

func (e *ValidationError) Error() string {
	msgs := make([]string, 0, len(e.Fields))
	for _, f := range e.Fields {
		msgs = append(msgs, f.Message)
	}
	return fmt.Sprintf("%s: %s", ErrValidation, strings.Join(msgs, "; "))
}

func (e *ValidationError) Is(target error) bool {
	return target == ErrValidation
}

// ForStep returns the message for stepID, if any.
func (e *ValidationError) ForStep(stepID string) (string, bool) {
	for _, f := range e.Fields {
		if f.StepID == stepID {
			return f.Message, true
		}
	}
	return "", false
}

// Validate checks d against task's requirements. Every step needs a
// non-blank response. Remarks are optional once a step is answered; a
// task without steps needs remarks when it requires text, and some
// content in any case.
func Validate(task model.Task, d *Draft) error {
	var fields []FieldError
	for i, s := range task.Steps {
		if strings.TrimSpace(d.responses[s.ID]) != "" {
			continue
		}
		title := s.Title
		if title == "" {
			title = fmt.Sprintf("step %d", i+1)
		}
		fields = append(fields, FieldError{
			Field:   "response",
			StepID:  s.ID,
			Message: fmt.Sprintf("a response is required for %q", title),
		})
	}

	remarks := strings.TrimSpace(d.GeneralRemarks)
	if len(task.Steps) == 0 {
		switch {
		case task.Requires(model.RequirementText) && remarks == "":
			fields = append(fields, FieldError{Field: "remarks", Message: "remarks are required"})
		case remarks == "" && !d.hasLocalFile() && len(d.Links.Filtered()) == 0:
			fields = append(fields, FieldError{Field: "submission", Message: "nothing to submit"})
		}
	}

	if len(fields) > 0 {
		return &ValidationError{Fields: fields}
	}
	return nil
}
