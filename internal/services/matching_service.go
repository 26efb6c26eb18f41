package services

import (
	"context"
	"fmt"
	"net/mail"
	"strings"

	"github.com/justsurfingit/job-o-matic/internal/models"
	"gorm.io/gorm"
)

// outstanding are the statuses in which an application is out and replies are expected.
var outstanding = []models.Status{models.StatusSent, models.StatusPending, models.StatusInterview}

type MatcherService struct {
	DB *gorm.DB
}

func NewMatcherService(db *gorm.DB) *MatcherService {
	return &MatcherService{DB: db}
}

// FindCompanyFromEmail matches a recruiter email to a tracked company by subject,
// sender display name or sender domain. It returns nil when nothing matches.
func (s *MatcherService) FindCompanyFromEmail(ctx context.Context, subject, rawSender string) (*models.Company, error) {
	senderName, senderAddr := "", strings.ToLower(rawSender)
	if parsed, err := mail.ParseAddress(rawSender); err == nil {
		senderName = strings.ToLower(parsed.Name)
		senderAddr = strings.ToLower(parsed.Address)
	}
	domain := ""
	if at := strings.LastIndex(senderAddr, "@"); at >= 0 {
		domain = senderAddr[at+1:]
	}
	subjectLower := strings.ToLower(subject)

	var companies []models.Company
	if err := s.DB.WithContext(ctx).Find(&companies).Error; err != nil {
		return nil, fmt.Errorf("load companies: %w", err)
	}
	for i := range companies {
		name := strings.ToLower(companies[i].Name)
		// names like "X" or "Go" would match everything
		if len(name) < 3 {
			continue
		}
		squashed := strings.ReplaceAll(name, " ", "")
		switch {
		case strings.Contains(subjectLower, name),
			senderName != "" && strings.Contains(senderName, name),
			domain != "" && strings.Contains(domain, squashed):
			return &companies[i], nil
		}
	}
	return nil, nil
}

// OutstandingJobs lists a company's jobs whose application is out, newest first.
func (s *MatcherService) OutstandingJobs(ctx context.Context, companyID uint) ([]models.Job, error) {
	var jobs []models.Job
	err := s.DB.WithContext(ctx).
		Where("company_id = ? AND status IN ?", companyID, outstanding).
		Order("created_at desc").
		Find(&jobs).Error
	if err != nil {
		return nil, fmt.Errorf("load outstanding jobs: %w", err)
	}
	return jobs, nil
}
