package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/justsurfingit/job-o-matic/internal/dtos"
	"github.com/justsurfingit/job-o-matic/internal/services"
)

type BulkHandler struct {
	Bulk *services.BulkService
}

func NewBulkHandler(bulk *services.BulkService) *BulkHandler {
	return &BulkHandler{Bulk: bulk}
}

// Preview is POST /bulk/preview
func (h *BulkHandler) Preview(c *gin.Context) {
	var req dtos.BulkIDsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid JSON format: " + err.Error()})
		return
	}
	results, err := h.Bulk.Preview(c.Request.Context(), req.IDs)
	if err != nil && results == nil {
		writeError(c, err)
		return
	}
	out := make([]dtos.PreviewResponse, 0, len(results))
	for _, r := range results {
		out = append(out, dtos.PreviewResponse{
			JobID:     r.JobID,
			Status:    string(r.Status),
			OutputDir: r.OutputDir,
			Error:     r.Error,
		})
	}
	c.JSON(http.StatusOK, gin.H{"results": out})
}

// Approve is POST /bulk/approve
func (h *BulkHandler) Approve(c *gin.Context) {
	var req dtos.BulkIDsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid JSON format: " + err.Error()})
		return
	}
	n, err := h.Bulk.Approve(c.Request.Context(), req.IDs)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"approved": n})
}

// Submit is POST /bulk/submit. Credentials in the body are used for this batch only.
func (h *BulkHandler) Submit(c *gin.Context) {
	var req dtos.BulkSubmitRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid JSON format: " + err.Error()})
		return
	}
	report, err := h.Bulk.Submit(c.Request.Context(), req.IDs, req.Candidate, req.Credentials)
	if report == nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, toReportResponse(report))
}

func toReportResponse(r *services.Report) dtos.SubmitReportResponse {
	out := dtos.SubmitReportResponse{
		BatchID:        r.BatchID,
		Results:        make([]dtos.SubmissionResponse, 0, len(r.Results)),
		Succeeded:      r.Succeeded,
		ManualRequired: r.ManualRequired,
		Failed:         r.Failed,
		Skipped:        r.Skipped,
		ByPlatform:     make(map[string]int, len(r.ByPlatform)),
		Cancelled:      r.Cancelled,
	}
	for p, n := range r.ByPlatform {
		out.ByPlatform[string(p)] = n
	}
	for _, res := range r.Results {
		out.Results = append(out.Results, dtos.SubmissionResponse{
			JobID:    res.JobID,
			Company:  res.Company,
			Title:    res.Title,
			Platform: string(res.Platform),
			Success:  res.Success,
			Kind:     string(res.Kind),
			Message:  res.Message,
		})
	}
	return out
}
