package models

import (
	"time"

	"gorm.io/gorm"
)

type User struct {
	ID        uint           `gorm:"primaryKey" json:"id"`
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"-"`

	Email         string `gorm:"uniqueIndex;not null" json:"email"`
	LastHistoryID uint64 `json:"last_history_id"`
}

type Company struct {
	ID        uint           `gorm:"primaryKey" json:"id"`
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"-"`

	Name string `gorm:"uniqueIndex;not null" json:"company_name"`

	// 'omitempty' prevents infinite loops when fetching a Job -> Company -> Jobs -> ...
	Jobs []Job `json:"jobs,omitempty"`
}

type Job struct {
	ID        uint           `gorm:"primaryKey" json:"id"`
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"-"`

	CompanyID uint `json:"company_id"`
	// Association: GORM needs Preload() to fill this
	Company Company `json:"company"`

	Title       string `gorm:"not null" json:"title"`
	Location    string `json:"location"`
	ApplyURL    string `json:"apply_url"`
	Description string `gorm:"type:text" json:"job_desc_snippet"`
	Status      Status `gorm:"type:varchar(32);index;default:'NOT_APPLIED'" json:"status"`
}

// CompanyName is the name used for bundle slugs and log lines.
func (j Job) CompanyName() string {
	return j.Company.Name
}

// DescriptionOrFallback is the text handed to the tailoring step.
// Jobs imported without a description still get "<company> <title>".
func (j Job) DescriptionOrFallback() string {
	if j.Description != "" {
		return j.Description
	}
	return j.Company.Name + " " + j.Title
}

const (
	EventStatusChange = "STATUS_CHANGE"
	EventSubmission   = "SUBMISSION"
	EventEmailOutcome = "EMAIL_OUTCOME"
)

type JobEvent struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	CreatedAt time.Time `json:"created_at"`
	JobID     uint      `gorm:"index" json:"job_id"`
	EventType string    `json:"event_type"`
	Details   string    `gorm:"type:text" json:"details"`
}

type ProcessedEmail struct {
	ID        string `gorm:"primaryKey"`
	CreatedAt time.Time
}

// All lists every model handled by AutoMigrate.
func All() []any {
	return []any{&Company{}, &Job{}, &JobEvent{}, &User{}, &ProcessedEmail{}}
}
