package services

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/justsurfingit/job-o-matic/internal/dtos"
	"github.com/justsurfingit/job-o-matic/internal/models"
	"gorm.io/gorm"
)

// JobStore is what the bulk orchestrator needs from persistence.
type JobStore interface {
	FindByIDs(ctx context.Context, ids []uint) (map[uint]*models.Job, error)
	Transition(ctx context.Context, id uint, from, to models.Status, details string) error
}

type JobService struct {
	DB *gorm.DB
}

func NewJobService(db *gorm.DB) *JobService {
	return &JobService{
		DB: db,
	}
}

func (s *JobService) CreateJob(ctx context.Context, req *dtos.JobCreationRequest) (*models.Job, error) {
	var company models.Company
	// it creates an entry if it doesn't exist yet
	err := s.DB.WithContext(ctx).Where(models.Company{Name: strings.TrimSpace(req.CompanyName)}).
		FirstOrCreate(&company).Error
	if err != nil {
		return nil, fmt.Errorf("find or create company: %w", err)
	}

	job := &models.Job{
		CompanyID:   company.ID,
		Company:     company,
		Title:       strings.TrimSpace(req.Title),
		Location:    req.Location,
		ApplyURL:    strings.TrimSpace(req.ApplyURL),
		Description: req.Description,
		Status:      models.StatusNotApplied,
	}
	if err := s.DB.WithContext(ctx).Omit("Company").Create(job).Error; err != nil {
		return nil, fmt.Errorf("create job: %w", err)
	}
	return job, nil
}

func (s *JobService) Get(ctx context.Context, id uint) (*models.Job, error) {
	var job models.Job
	err := s.DB.WithContext(ctx).Preload("Company").First(&job, id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &job, nil
}

// FindByIDs loads the given jobs. Unknown ids are simply absent from the map.
func (s *JobService) FindByIDs(ctx context.Context, ids []uint) (map[uint]*models.Job, error) {
	out := make(map[uint]*models.Job, len(ids))
	if len(ids) == 0 {
		return out, nil
	}
	var jobs []models.Job
	if err := s.DB.WithContext(ctx).Preload("Company").Where("id IN ?", ids).Find(&jobs).Error; err != nil {
		return nil, fmt.Errorf("load jobs: %w", err)
	}
	for i := range jobs {
		out[jobs[i].ID] = &jobs[i]
	}
	return out, nil
}

// List returns jobs newest first, optionally filtered by status.
func (s *JobService) List(ctx context.Context, status models.Status) ([]models.Job, error) {
	q := s.DB.WithContext(ctx).Preload("Company").Order("created_at desc").Order("id desc")
	if status != "" {
		q = q.Where("status = ?", status)
	}
	var jobs []models.Job
	if err := q.Find(&jobs).Error; err != nil {
		return nil, fmt.Errorf("list jobs: %w", err)
	}
	return jobs, nil
}

// Transition moves a job one step along the pipeline. The update only lands if the job
// is still in from; the audit event is written in the same transaction.
func (s *JobService) Transition(ctx context.Context, id uint, from, to models.Status, details string) error {
	if !models.CanTransition(from, to) {
		return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, from, to)
	}
	eventType := models.EventStatusChange
	if to == models.StatusSent {
		eventType = models.EventSubmission
	}
	if details == "" {
		details = fmt.Sprintf("%s -> %s", from, to)
	}
	return s.guardedUpdate(ctx, id, from, to, eventType, details)
}

// MarkStatus records a user-decided side-branch status (PENDING, REJECTED, INTERVIEW).
func (s *JobService) MarkStatus(ctx context.Context, id uint, to models.Status, note string) (*models.Job, error) {
	job, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if !models.CanMarkManually(job.Status, to) {
		return nil, fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, job.Status, to)
	}
	details := fmt.Sprintf("%s -> %s (manual)", job.Status, to)
	if note = strings.TrimSpace(note); note != "" {
		details += ": " + note
	}
	if err := s.guardedUpdate(ctx, id, job.Status, to, models.EventStatusChange, details); err != nil {
		return nil, err
	}
	job.Status = to
	return job, nil
}

// UpdateApplyURL edits the posting URL. Once a preview exists the URL is locked unless
// force is set; a forced edit leaves the status alone and makes the existing bundle stale.
func (s *JobService) UpdateApplyURL(ctx context.Context, id uint, applyURL string, force bool) (*models.Job, error) {
	job, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if job.Status != models.StatusNotApplied && !force {
		return nil, fmt.Errorf("%w (status %s)", ErrApplyURLLocked, job.Status)
	}
	applyURL = strings.TrimSpace(applyURL)
	if err := s.DB.WithContext(ctx).Model(&models.Job{}).Where("id = ?", id).Update("apply_url", applyURL).Error; err != nil {
		return nil, fmt.Errorf("update apply_url: %w", err)
	}
	job.ApplyURL = applyURL
	return job, nil
}

func (s *JobService) RecordEvent(ctx context.Context, id uint, eventType, details string) error {
	ev := models.JobEvent{JobID: id, EventType: eventType, Details: details}
	if err := s.DB.WithContext(ctx).Create(&ev).Error; err != nil {
		return fmt.Errorf("record %s event: %w", eventType, err)
	}
	return nil
}

// Events returns a job's audit trail, oldest first.
func (s *JobService) Events(ctx context.Context, id uint) ([]models.JobEvent, error) {
	if _, err := s.Get(ctx, id); err != nil {
		return nil, err
	}
	var events []models.JobEvent
	err := s.DB.WithContext(ctx).Where("job_id = ?", id).Order("created_at asc").Order("id asc").Find(&events).Error
	if err != nil {
		return nil, fmt.Errorf("load events: %w", err)
	}
	return events, nil
}

func (s *JobService) guardedUpdate(ctx context.Context, id uint, from, to models.Status, eventType, details string) error {
	return s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Model(&models.Job{}).Where("id = ? AND status = ?", id, from).Update("status", to)
		if res.Error != nil {
			return fmt.Errorf("update status: %w", res.Error)
		}
		if res.RowsAffected == 0 {
			var n int64
			if err := tx.Model(&models.Job{}).Where("id = ?", id).Count(&n).Error; err != nil {
				return err
			}
			if n == 0 {
				return ErrNotFound
			}
			return fmt.Errorf("%w: job %d is no longer %s", ErrStatusConflict, id, from)
		}
		return tx.Create(&models.JobEvent{JobID: id, EventType: eventType, Details: details}).Error
	})
}
