package dtos

type JobExtractionRequest struct {
	RawHTML string `json:"raw_html" binding:"required"`
	URL     string `json:"url"`
}

type JobCreationRequest struct {
	CompanyName string `json:"company_name" binding:"required"`
	Title       string `json:"role_title" binding:"required"`

	// Optional Fields
	ApplyURL    string `json:"apply_url" binding:"omitempty,url"`
	Description string `json:"description"`
	Location    string `json:"location"`
}

// StatusUpdateRequest only accepts the side-branch statuses (PENDING, REJECTED, INTERVIEW).
type StatusUpdateRequest struct {
	Status string `json:"status" binding:"required"`
	Note   string `json:"note"`
}

type ApplyURLUpdateRequest struct {
	ApplyURL string `json:"apply_url" binding:"required,url"`
	Force    bool   `json:"force"`
}
