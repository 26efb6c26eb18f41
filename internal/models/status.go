package models

import "fmt"

// Status is the lifecycle state of a Job.
type Status string

const (
	StatusNotApplied   Status = "NOT_APPLIED"
	StatusPreviewReady Status = "PREVIEW_READY"
	StatusApproved     Status = "APPROVED"
	StatusSent         Status = "SENT"

	// Side branches, only ever set by the user.
	StatusPending   Status = "PENDING"
	StatusRejected  Status = "REJECTED"
	StatusInterview Status = "INTERVIEW"
)

// pipeline holds the only forward moves the orchestrator may make.
// SENT is reachable from APPROVED and nothing else.
var pipeline = map[Status]Status{
	StatusNotApplied:   StatusPreviewReady,
	StatusPreviewReady: StatusApproved,
	StatusApproved:     StatusSent,
}

func (s Status) Valid() bool {
	switch s {
	case StatusNotApplied, StatusPreviewReady, StatusApproved, StatusSent,
		StatusPending, StatusRejected, StatusInterview:
		return true
	}
	return false
}

// Manual reports whether s is one of the side-branch statuses a user can set by hand.
func (s Status) Manual() bool {
	return s == StatusPending || s == StatusRejected || s == StatusInterview
}

// Previewable reports whether a bundle may be (re)generated for a job in s.
func (s Status) Previewable() bool {
	return s == StatusNotApplied || s == StatusPreviewReady || s == StatusApproved
}

// CanTransition reports whether the pipeline may move a job from one status to another.
func CanTransition(from, to Status) bool {
	next, ok := pipeline[from]
	return ok && next == to
}

// CanMarkManually reports whether the user may move a job from one status to a side branch.
// A SENT job can only record an external outcome.
func CanMarkManually(from, to Status) bool {
	if !to.Manual() || from == to {
		return false
	}
	if from == StatusSent {
		return to == StatusRejected || to == StatusInterview
	}
	return from.Valid()
}

// ParseStatus accepts the upper-case wire form of a status.
func ParseStatus(s string) (Status, error) {
	st := Status(s)
	if !st.Valid() {
		return "", fmt.Errorf("unknown status %q", s)
	}
	return st, nil
}
