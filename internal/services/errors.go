package services

import (
	"errors"
	"fmt"
	"strings"
)

var (
	ErrNotFound          = errors.New("job not found")
	ErrInvalidTransition = errors.New("invalid status transition")
	ErrStatusConflict    = errors.New("job status changed underneath the update")
	ErrApplyURLLocked    = errors.New("apply_url is locked once a preview exists")
	ErrEmptyBatch        = errors.New("no job ids given")
)

// ValidationError reports a structurally invalid batch request.
type ValidationError struct {
	Fields  []string
	Message string
}

func (e *ValidationError) Error() string {
	if len(e.Fields) == 0 {
		return e.Message
	}
	return fmt.Sprintf("%s: %s", e.Message, strings.Join(e.Fields, ", "))
}
