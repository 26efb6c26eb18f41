package dtos

import "github.com/justsurfingit/job-o-matic/internal/apply"

type BulkIDsRequest struct {
	IDs []uint `json:"ids" binding:"required,min=1"`
}

// BulkSubmitRequest is left unvalidated by gin; the bulk service owns batch validation.
type BulkSubmitRequest struct {
	IDs         []uint            `json:"ids"`
	Candidate   apply.Candidate   `json:"candidate"`
	Credentials apply.Credentials `json:"credentials"`
}

type PreviewResponse struct {
	JobID     uint   `json:"job_id"`
	Status    string `json:"status"`
	OutputDir string `json:"output_dir,omitempty"`
	Error     string `json:"error,omitempty"`
}

type SubmissionResponse struct {
	JobID    uint   `json:"job_id"`
	Company  string `json:"company"`
	Title    string `json:"title"`
	Platform string `json:"platform"`
	Success  bool   `json:"success"`
	Kind     string `json:"kind,omitempty"`
	Message  string `json:"message"`
}

type SubmitReportResponse struct {
	BatchID        string               `json:"batch_id"`
	Results        []SubmissionResponse `json:"results"`
	Succeeded      int                  `json:"succeeded"`
	ManualRequired int                  `json:"manual_required"`
	Failed         int                  `json:"failed"`
	Skipped        int                  `json:"skipped"`
	ByPlatform     map[string]int       `json:"by_platform"`
	Cancelled      bool                 `json:"cancelled,omitempty"`
}
