package services

import (
	"context"
	"errors"
	"fmt"
	"log"
	"reflect"
	"strings"
	"sync"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	"github.com/justsurfingit/job-o-matic/internal/apply"
	"github.com/justsurfingit/job-o-matic/internal/bundle"
	"github.com/justsurfingit/job-o-matic/internal/models"
	"github.com/justsurfingit/job-o-matic/internal/platform"
)

// SubmitterRegistry hands out the adapter for a detected platform. apply.Adapters satisfies it.
type SubmitterRegistry interface {
	For(p platform.Platform) apply.Submitter
}

// BulkService runs preview, approve and submit over explicit batches of job ids.
type BulkService struct {
	Jobs           JobStore
	Bundles        *bundle.Store
	Tailorer       Tailorer
	Adapters       SubmitterRegistry
	Pacer          *Pacer
	PreviewTimeout time.Duration
	CandidateName  string

	validate *validator.Validate
	// one submit batch at a time
	submitMu sync.Mutex
}

func NewBulkService(jobs JobStore, bundles *bundle.Store, tailorer Tailorer, adapters SubmitterRegistry, pacer *Pacer) *BulkService {
	v := validator.New()
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
		if name == "" || name == "-" {
			return f.Name
		}
		return name
	})
	return &BulkService{
		Jobs:           jobs,
		Bundles:        bundles,
		Tailorer:       tailorer,
		Adapters:       adapters,
		Pacer:          pacer,
		PreviewTimeout: 2 * time.Minute,
		validate:       v,
	}
}

type PreviewResult struct {
	JobID     uint
	Status    models.Status
	OutputDir string
	Error     string
}

// Preview writes a fresh bundle for each job and moves NOT_APPLIED jobs to PREVIEW_READY.
// Jobs already previewed or approved keep their status.
func (s *BulkService) Preview(ctx context.Context, ids []uint) ([]PreviewResult, error) {
	ids = dedupe(ids)
	if len(ids) == 0 {
		return nil, ErrEmptyBatch
	}
	jobs, err := s.Jobs.FindByIDs(ctx, ids)
	if err != nil {
		return nil, fmt.Errorf("preview: %w", err)
	}

	log.Printf("📝 Preview: generating bundles for %d jobs...", len(ids))
	results := make([]PreviewResult, 0, len(ids))
	for i, id := range ids {
		if err := ctx.Err(); err != nil {
			for _, rest := range ids[i:] {
				r := PreviewResult{JobID: rest, Error: "cancelled"}
				if j := jobs[rest]; j != nil {
					r.Status = j.Status
				}
				results = append(results, r)
			}
			return results, err
		}
		results = append(results, s.previewOne(ctx, id, jobs[id]))
	}
	return results, nil
}

func (s *BulkService) previewOne(ctx context.Context, id uint, job *models.Job) PreviewResult {
	logPrefix := fmt.Sprintf("[Preview #%d]", id)
	res := PreviewResult{JobID: id}
	if job == nil {
		res.Error = "job not found"
		log.Printf("%s ❌ SKIPPED: job not found", logPrefix)
		return res
	}
	res.Status = job.Status
	if !job.Status.Previewable() {
		res.Error = fmt.Sprintf("cannot preview a job in status %s", job.Status)
		log.Printf("%s ⏹️  %s", logPrefix, res.Error)
		return res
	}

	desc := job.DescriptionOrFallback()
	variant := s.Tailorer.PickVariant(desc)

	tctx, cancel := context.WithTimeout(ctx, s.PreviewTimeout)
	tailored, err := s.Tailorer.Tailor(tctx, desc, variant)
	cancel()
	if err != nil {
		res.Error = fmt.Sprintf("tailoring failed: %v", err)
		log.Printf("%s ❌ %s", logPrefix, res.Error)
		return res
	}

	subject, body := BuildEmail(job.CompanyName(), job.Title, ExtractSection(tailored, SectionCover), s.CandidateName)
	dir, err := s.Bundles.Write(bundle.Meta{
		JobID:    job.ID,
		Company:  job.CompanyName(),
		Title:    job.Title,
		ApplyURL: job.ApplyURL,
		Variant:  variant.Name,
	}, bundle.Content{
		Tailored:    tailored,
		Subject:     subject,
		Body:        body,
		Variant:     variant.Name,
		VariantFile: variant.File,
	})
	if err != nil {
		res.Error = fmt.Sprintf("writing bundle failed: %v", err)
		log.Printf("%s ❌ %s", logPrefix, res.Error)
		return res
	}
	res.OutputDir = dir

	if job.Status == models.StatusNotApplied {
		err := s.Jobs.Transition(ctx, id, models.StatusNotApplied, models.StatusPreviewReady, "preview generated: "+dir)
		if err != nil {
			res.Error = fmt.Sprintf("bundle written but status not updated: %v", err)
			log.Printf("%s ⚠️ %s", logPrefix, res.Error)
			return res
		}
		res.Status = models.StatusPreviewReady
	}
	log.Printf("%s ✅ Bundle ready (%s): %s", logPrefix, variant.Name, dir)
	return res
}

// Approve moves the PREVIEW_READY jobs among ids to APPROVED and reports how many moved.
func (s *BulkService) Approve(ctx context.Context, ids []uint) (int, error) {
	ids = dedupe(ids)
	if len(ids) == 0 {
		return 0, ErrEmptyBatch
	}
	jobs, err := s.Jobs.FindByIDs(ctx, ids)
	if err != nil {
		return 0, fmt.Errorf("approve: %w", err)
	}

	approved := 0
	for _, id := range ids {
		job := jobs[id]
		if job == nil || job.Status != models.StatusPreviewReady {
			continue
		}
		err := s.Jobs.Transition(ctx, id, models.StatusPreviewReady, models.StatusApproved, "approved after review")
		if errors.Is(err, ErrStatusConflict) || errors.Is(err, ErrNotFound) {
			continue
		}
		if err != nil {
			log.Printf("[Approve #%d] ⚠️ status not updated: %v", id, err)
			continue
		}
		approved++
	}
	log.Printf("👍 Approved %d of %d jobs", approved, len(ids))
	return approved, nil
}

// SubmissionResult is the outcome of one job in a submit batch. It is never persisted.
type SubmissionResult struct {
	JobID    uint
	Company  string
	Title    string
	Platform platform.Platform
	Success  bool
	Kind     apply.Kind
	Message  string
}

func (r SubmissionResult) ManualRequired() bool { return !r.Success && r.Kind.ManualRequired() }

func (r SubmissionResult) Skipped() bool {
	return r.Kind == apply.KindAlreadySent || r.Kind == apply.KindCancelled
}

type Report struct {
	BatchID        string
	Results        []SubmissionResult
	Succeeded      int
	ManualRequired int
	Failed         int
	Skipped        int
	ByPlatform     map[platform.Platform]int
	Cancelled      bool
}

func newReport() *Report {
	return &Report{BatchID: uuid.NewString(), ByPlatform: map[platform.Platform]int{}}
}

func (r *Report) add(res SubmissionResult) {
	r.Results = append(r.Results, res)
	if res.Platform != "" {
		r.ByPlatform[res.Platform]++
	}
	switch {
	case res.Success:
		r.Succeeded++
	case res.ManualRequired():
		r.ManualRequired++
	case res.Skipped():
		r.Skipped++
	default:
		r.Failed++
	}
}

// Lines renders one line per job for terminals and logs.
func (r *Report) Lines() []string {
	lines := make([]string, 0, len(r.Results))
	for _, res := range r.Results {
		icon := "❌"
		switch {
		case res.Success:
			icon = "✅"
		case res.ManualRequired():
			icon = "📝"
		case res.Skipped():
			icon = "⏭️"
		}
		label := fmt.Sprintf("#%d", res.JobID)
		if res.Company != "" || res.Title != "" {
			label += fmt.Sprintf(" %s - %s", res.Company, res.Title)
		}
		if res.Platform != "" {
			label += fmt.Sprintf(" [%s]", res.Platform)
		}
		lines = append(lines, fmt.Sprintf("%s %s: %s", icon, label, res.Message))
	}
	return lines
}

// Submit sends every APPROVED job in ids through its platform adapter, one at a time.
// Per-job problems end up in the report; only an invalid batch or cancellation returns an error.
func (s *BulkService) Submit(ctx context.Context, ids []uint, cand apply.Candidate, creds apply.Credentials) (*Report, error) {
	ids = dedupe(ids)
	if len(ids) == 0 {
		return nil, ErrEmptyBatch
	}
	if err := s.validateCandidate(cand); err != nil {
		return nil, err
	}

	s.submitMu.Lock()
	defer s.submitMu.Unlock()

	jobs, err := s.Jobs.FindByIDs(ctx, ids)
	if err != nil {
		return nil, fmt.Errorf("submit: %w", err)
	}

	report := newReport()
	log.Printf("🚀 [Batch %s] Submitting %d jobs...", report.BatchID[:8], len(ids))
	for i, id := range ids {
		if err := ctx.Err(); err != nil {
			for _, rest := range ids[i:] {
				res := SubmissionResult{JobID: rest, Kind: apply.KindCancelled, Message: "Batch cancelled before this job was attempted"}
				if j := jobs[rest]; j != nil {
					res.Company, res.Title, res.Platform = j.CompanyName(), j.Title, platform.Detect(j.ApplyURL)
				}
				report.add(res)
			}
			report.Cancelled = true
			log.Printf("🛑 [Batch %s] Cancelled after %d of %d jobs", report.BatchID[:8], i, len(ids))
			return report, err
		}
		report.add(s.submitOne(ctx, id, jobs[id], cand, creds))
	}

	log.Printf("🏁 [Batch %s] Done: %d sent, %d manual, %d failed, %d skipped",
		report.BatchID[:8], report.Succeeded, report.ManualRequired, report.Failed, report.Skipped)
	return report, nil
}

func (s *BulkService) submitOne(ctx context.Context, id uint, job *models.Job, cand apply.Candidate, creds apply.Credentials) SubmissionResult {
	logPrefix := fmt.Sprintf("[Submit #%d]", id)
	res := SubmissionResult{JobID: id}
	finish := func(kind apply.Kind, msg string) SubmissionResult {
		res.Kind, res.Message = kind, msg
		log.Printf("%s %s: %s", logPrefix, kind, msg)
		return res
	}

	if job == nil {
		return finish(apply.KindJobNotFound, "Job not found")
	}
	res.Company, res.Title = job.CompanyName(), job.Title
	res.Platform = platform.Detect(job.ApplyURL)

	switch job.Status {
	case models.StatusSent:
		return finish(apply.KindAlreadySent, "Already submitted")
	case models.StatusApproved:
	default:
		return finish(apply.KindNotApproved, fmt.Sprintf("Job must be approved before submission (status %s)", job.Status))
	}

	if !res.Platform.Automated() {
		msg := "Manual submission required"
		if job.ApplyURL != "" {
			msg += ": " + job.ApplyURL
		}
		return finish(apply.KindUnsupportedPlatform, msg)
	}
	credential := creds.For(res.Platform)
	if credential == "" {
		return finish(apply.KindMissingCredential, fmt.Sprintf("No %s API key provided - apply manually", res.Platform.Label()))
	}

	b, err := s.Bundles.Latest(job.ID, job.CompanyName(), job.Title)
	if err != nil {
		if errors.Is(err, bundle.ErrNotFound) {
			return finish(apply.KindBundleNotFound, "No preview bundle found - run preview first")
		}
		return finish(apply.KindBundleNotFound, fmt.Sprintf("Could not read preview bundles: %v", err))
	}
	if b.HasMeta && b.Meta.ApplyURL != "" && b.Meta.ApplyURL != job.ApplyURL {
		return finish(apply.KindBundleStale, "Preview was generated for a different apply URL - regenerate the preview")
	}

	if err := s.Pacer.Wait(ctx); err != nil {
		return finish(apply.KindCancelled, "Batch cancelled while waiting to submit")
	}
	log.Printf("%s 📤 Submitting to %s...", logPrefix, res.Platform.Label())
	out := s.Adapters.For(res.Platform).Submit(ctx, apply.JobSummary{
		ID:       job.ID,
		Company:  job.CompanyName(),
		Title:    job.Title,
		ApplyURL: job.ApplyURL,
	}, cand, b.Dir, credential)
	s.Pacer.Done()

	res.Success, res.Kind, res.Message = out.Success, out.Kind, out.Message
	if !out.Success {
		log.Printf("%s ❌ %s: %s", logPrefix, out.Kind, out.Message)
		return res
	}

	// the application is out; record it even if the caller has gone away
	err = s.Jobs.Transition(context.WithoutCancel(ctx), id, models.StatusApproved, models.StatusSent,
		fmt.Sprintf("submitted via %s", res.Platform))
	if err != nil {
		log.Printf("%s ⚠️ Submitted but status update failed: %v", logPrefix, err)
		res.Kind = apply.KindStore
		res.Message += fmt.Sprintf(" (warning: status not updated: %v)", err)
		return res
	}
	log.Printf("%s ✅ %s", logPrefix, out.Message)
	return res
}

func (s *BulkService) validateCandidate(c apply.Candidate) error {
	err := s.validate.Struct(c)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) {
		ve := &ValidationError{Message: "invalid candidate"}
		for _, fe := range verrs {
			ve.Fields = append(ve.Fields, fe.Field())
		}
		return ve
	}
	return &ValidationError{Message: err.Error()}
}

// dedupe drops repeated ids, keeping first-seen order.
func dedupe(ids []uint) []uint {
	seen := make(map[uint]bool, len(ids))
	out := make([]uint, 0, len(ids))
	for _, id := range ids {
		if !seen[id] {
			seen[id] = true
			out = append(out, id)
		}
	}
	return out
}
