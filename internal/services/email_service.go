package services

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/justsurfingit/job-o-matic/internal/models"
	"google.golang.org/api/gmail/v1"
	"google.golang.org/api/googleapi"
	"gorm.io/gorm"
)

// OutcomeAnalyzer reads recruiter emails. LLMService implements it.
type OutcomeAnalyzer interface {
	IdentifyJobRole(ctx context.Context, titles []string, subject, body string) int
	AnalyzeEmailStatus(ctx context.Context, company, subject, body string) (string, error)
}

var errSkipped = errors.New("email skipped")

// EmailService watches Gmail for replies to sent applications. It only records
// EMAIL_OUTCOME events with a suggested status; the user decides whether to apply it.
type EmailService struct {
	DB             *gorm.DB
	Analyzer       OutcomeAnalyzer
	MatcherService *MatcherService
	JobService     *JobService
	GmailClient    *gmail.Service
	Interval       time.Duration
}

func NewEmailService(db *gorm.DB, analyzer OutcomeAnalyzer, gmail *gmail.Service, matcher *MatcherService, jobs *JobService) *EmailService {
	return &EmailService{
		DB:             db,
		Analyzer:       analyzer,
		GmailClient:    gmail,
		MatcherService: matcher,
		JobService:     jobs,
		Interval:       time.Minute,
	}
}

// StartWatcher polls until ctx is done.
func (s *EmailService) StartWatcher(ctx context.Context) {
	if s.GmailClient == nil || s.Analyzer == nil {
		log.Println("⚠️ Gmail Watcher disabled (no client or no LLM). Check credentials.")
		return
	}

	go func() {
		ticker := time.NewTicker(s.Interval)
		defer ticker.Stop()
		// run immediately on startup
		s.SyncEmails(ctx)
		for {
			select {
			case <-ctx.Done():
				log.Println("📧 Email Watcher stopped.")
				return
			case <-ticker.C:
				s.SyncEmails(ctx)
			}
		}
	}()
}

// SyncEmails runs one sync cycle: bootstrap or incremental, then per-message processing.
func (s *EmailService) SyncEmails(parent context.Context) {
	ctx, cancel := context.WithTimeout(parent, 2*time.Minute)
	defer cancel()

	log.Println("📧 Email Watcher: Starting Sync Cycle...")

	var user models.User
	if err := s.DB.WithContext(ctx).First(&user).Error; err != nil {
		user = models.User{Email: "default", LastHistoryID: 0}
		if err := s.DB.WithContext(ctx).Create(&user).Error; err != nil {
			log.Printf("❌ Could not create watcher state: %v", err)
			return
		}
	}

	var (
		messages     []*gmail.Message
		newHistoryID uint64
		err          error
	)
	if user.LastHistoryID == 0 {
		log.Println("🆕 First run detected. Running Full Bootstrap Sync...")
		messages, newHistoryID, err = s.performFullSync(ctx)
	} else {
		messages, newHistoryID, err = s.performIncrementalSync(ctx, user.LastHistoryID)
		if err != nil && isHistoryExpiredError(err) {
			log.Println("⚠️ History ID expired (too old). Falling back to Full Sync.")
			messages, newHistoryID, err = s.performFullSync(ctx)
		}
	}
	if err != nil {
		log.Printf("❌ Sync failed: %v", err)
		return
	}

	if len(messages) > 0 {
		log.Printf("📥 Processing %d candidate emails...", len(messages))
	}
	for _, msg := range messages {
		var count int64
		s.DB.WithContext(ctx).Model(&models.ProcessedEmail{}).Where("id = ?", msg.Id).Count(&count)
		if count > 0 {
			continue
		}
		s.processSingleEmail(ctx, msg)
		s.DB.WithContext(ctx).Create(&models.ProcessedEmail{ID: msg.Id})
	}

	if newHistoryID > user.LastHistoryID {
		s.DB.WithContext(ctx).Model(&models.User{}).Where("id = ?", user.ID).Update("last_history_id", newHistoryID)
		log.Printf("🔖 History updated to %d", newHistoryID)
	}
}

// performFullSync scans the last 7 days and anchors on the profile's current history id.
func (s *EmailService) performFullSync(ctx context.Context) ([]*gmail.Message, uint64, error) {
	var resp *gmail.ListMessagesResponse
	q := "subject:(application OR interview OR update OR offer OR rejected OR status) newer_than:7d"

	err := retry(3, time.Second, func() error {
		var e error
		resp, e = s.GmailClient.Users.Messages.List("me").Q(q).MaxResults(50).Context(ctx).Do()
		return e
	})
	if err != nil {
		return nil, 0, err
	}

	profile, err := s.GmailClient.Users.GetProfile("me").Context(ctx).Do()
	if err != nil {
		return nil, 0, err
	}
	return s.expandMessages(ctx, resp.Messages), profile.HistoryId, nil
}

// performIncrementalSync asks only for messages added since startID.
func (s *EmailService) performIncrementalSync(ctx context.Context, startID uint64) ([]*gmail.Message, uint64, error) {
	var resp *gmail.ListHistoryResponse
	err := retry(3, time.Second, func() error {
		var e error
		resp, e = s.GmailClient.Users.History.List("me").StartHistoryId(startID).
			HistoryTypes("messageAdded").Context(ctx).Do()
		return e
	})
	if err != nil {
		return nil, 0, err
	}

	var headers []*gmail.Message
	for _, h := range resp.History {
		for _, added := range h.MessagesAdded {
			if added.Message != nil {
				headers = append(headers, added.Message)
			}
		}
	}
	return s.expandMessages(ctx, headers), resp.HistoryId, nil
}

func (s *EmailService) expandMessages(ctx context.Context, headers []*gmail.Message) []*gmail.Message {
	var full []*gmail.Message
	for _, h := range headers {
		_ = retry(2, 500*time.Millisecond, func() error {
			msg, err := s.GmailClient.Users.Messages.Get("me", h.Id).Context(ctx).Do()
			if err == nil {
				full = append(full, msg)
			}
			return err
		})
	}
	return full
}

func (s *EmailService) processSingleEmail(ctx context.Context, msg *gmail.Message) {
	headers := parseHeaders(msg)
	if _, err := s.HandleEmail(ctx, headers["Subject"], headers["From"], getEmailBody(msg)); err != nil && !errors.Is(err, errSkipped) {
		log.Printf("❌ Email %s: %v", msg.Id, err)
	}
}

// HandleEmail matches one email to an outstanding application and records the suggested outcome.
func (s *EmailService) HandleEmail(ctx context.Context, subject, sender, body string) (*models.JobEvent, error) {
	shortSub := truncate(subject, 20)
	if shortSub != subject {
		shortSub += "..."
	}
	logPrefix := fmt.Sprintf("[Email: %s]", shortSub)
	log.Printf("%s 📥 START processing from: %s", logPrefix, sender)

	company, err := s.MatcherService.FindCompanyFromEmail(ctx, subject, sender)
	if err != nil {
		return nil, err
	}
	if company == nil {
		log.Printf("%s ❌ SKIPPED: Company match failed. Sender/Subject not in DB.", logPrefix)
		return nil, errSkipped
	}
	log.Printf("%s ✅ MATCHED Company: %s", logPrefix, company.Name)

	jobs, err := s.MatcherService.OutstandingJobs(ctx, company.ID)
	if err != nil {
		return nil, err
	}
	if len(jobs) == 0 {
		log.Printf("%s ❌ SKIPPED: No sent applications for %s.", logPrefix, company.Name)
		return nil, errSkipped
	}

	target := &jobs[0]
	if len(jobs) > 1 {
		titles := make([]string, len(jobs))
		for i, j := range jobs {
			titles[i] = j.Title
		}
		log.Printf("%s ⚠️ Ambiguous: Found %d jobs (%v). Asking LLM to pick...", logPrefix, len(jobs), titles)
		idx := s.Analyzer.IdentifyJobRole(ctx, titles, subject, body)
		if idx < 0 || idx >= len(jobs) {
			log.Printf("%s ❌ SKIPPED: LLM could not determine which job this email is about.", logPrefix)
			return nil, errSkipped
		}
		target = &jobs[idx]
	}
	log.Printf("%s 🎯 Linked to job: %s", logPrefix, target.Title)

	raw, err := s.Analyzer.AnalyzeEmailStatus(ctx, company.Name, subject, body)
	if err != nil {
		return nil, fmt.Errorf("analyze email: %w", err)
	}
	var result struct {
		Status  string `json:"status"`
		Summary string `json:"summary"`
	}
	if err := json.Unmarshal([]byte(raw), &result); err != nil {
		return nil, fmt.Errorf("parse analysis %q: %w", raw, err)
	}
	log.Printf("%s 🧠 LLM Decision: Status=%s | Summary=%s", logPrefix, result.Status, result.Summary)

	suggested, err := models.ParseStatus(result.Status)
	if err != nil || !suggested.Manual() || suggested == target.Status {
		log.Printf("%s ⏹️  Nothing to record (suggested %q, current %s).", logPrefix, result.Status, target.Status)
		return nil, errSkipped
	}

	ev := &models.JobEvent{
		JobID:     target.ID,
		EventType: models.EventEmailOutcome,
		Details:   fmt.Sprintf("Suggested status %s (currently %s). Summary: %s", suggested, target.Status, result.Summary),
	}
	if err := s.JobService.RecordEvent(ctx, ev.JobID, ev.EventType, ev.Details); err != nil {
		return nil, err
	}
	log.Printf("%s ✅ Outcome recorded for review.", logPrefix)
	return ev, nil
}

// retry runs f with exponential backoff. Expired-history errors return at once.
func retry(attempts int, sleep time.Duration, f func() error) error {
	var err error
	for i := 0; i < attempts; i++ {
		if err = f(); err == nil {
			return nil
		}
		if isHistoryExpiredError(err) {
			return err
		}
		if i < attempts-1 {
			log.Printf("⚠️ API Error: %v. Retrying in %v...", err, sleep)
			time.Sleep(sleep)
			sleep *= 2
		}
	}
	return fmt.Errorf("failed after %d attempts: %w", attempts, err)
}

func isHistoryExpiredError(err error) bool {
	var gErr *googleapi.Error
	return errors.As(err, &gErr) && gErr.Code == 404
}

func parseHeaders(msg *gmail.Message) map[string]string {
	res := make(map[string]string)
	if msg.Payload == nil {
		return res
	}
	for _, h := range msg.Payload.Headers {
		res[h.Name] = h.Value
	}
	return res
}

func getEmailBody(msg *gmail.Message) string {
	if msg.Payload == nil {
		return ""
	}
	if msg.Payload.Body != nil && msg.Payload.Body.Data != "" {
		return decodePart(msg.Payload.Body.Data)
	}
	for _, mime := range []string{"text/plain", "text/html"} {
		for _, part := range msg.Payload.Parts {
			if part.MimeType == mime && part.Body != nil && part.Body.Data != "" {
				return decodePart(part.Body.Data)
			}
		}
	}
	return ""
}

// Gmail bodies are base64url, usually unpadded.
func decodePart(data string) string {
	if d, err := base64.RawURLEncoding.DecodeString(data); err == nil {
		return string(d)
	}
	d, _ := base64.URLEncoding.DecodeString(data)
	return string(d)
}
