package submission

// SubmitLabel is the caption of the submit action: it tells the user
// whether submitting moves on to another task.
func (w *Workflow) SubmitLabel() string {
	if w.seq.HasNext() {
		return "Submit & Next Task"
	}
	return "Submit & Complete"
}

// Banner returns the headline and body shown for the current state.
func (w *Workflow) Banner() (title, body string) {
	switch w.State() {
	case Submitting:
		return "Submitting...", ""
	case SuccessAwaitingAdvance:
		return "Ready for Next Task!", "Your submission was saved. Moving to the next task..."
	case SuccessTerminal:
		return "All Done!", "You have completed all tasks for this week!"
	case AlreadySubmittedEditable:
		return "Submitted", "You can still edit your submission until the deadline."
	case AlreadySubmittedLocked:
		return "Submitted", "The deadline has passed; this submission is locked."
	}
	return "Submit Your Work", ""
}
