package services

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/justsurfingit/job-o-matic/internal/apply"
	"github.com/justsurfingit/job-o-matic/internal/bundle"
	"github.com/justsurfingit/job-o-matic/internal/models"
	"github.com/justsurfingit/job-o-matic/internal/platform"
)

// memStore is an in-memory JobStore that enforces the same guarded transitions as JobService.
type memStore struct {
	mu     sync.Mutex
	jobs   map[uint]*models.Job
	events []models.JobEvent
	nextID uint
}

func newMemStore() *memStore {
	return &memStore{jobs: map[uint]*models.Job{}}
}

func (m *memStore) add(company, title, url string, status models.Status) *models.Job {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.nextID++
	job := &models.Job{
		ID:       m.nextID,
		Company:  models.Company{Name: company},
		Title:    title,
		ApplyURL: url,
		Status:   status,
	}
	m.jobs[job.ID] = job
	return job
}

func (m *memStore) status(id uint) models.Status {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.jobs[id].Status
}

func (m *memStore) FindByIDs(_ context.Context, ids []uint) (map[uint]*models.Job, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := map[uint]*models.Job{}
	for _, id := range ids {
		if j, ok := m.jobs[id]; ok {
			cp := *j
			out[id] = &cp
		}
	}
	return out, nil
}

func (m *memStore) Transition(_ context.Context, id uint, from, to models.Status, details string) error {
	if !models.CanTransition(from, to) {
		return ErrInvalidTransition
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	j, ok := m.jobs[id]
	if !ok {
		return ErrNotFound
	}
	if j.Status != from {
		return ErrStatusConflict
	}
	j.Status = to
	m.events = append(m.events, models.JobEvent{JobID: id, EventType: models.EventStatusChange, Details: details})
	return nil
}

// failingStore fails Transition for one job and delegates everything else.
type failingStore struct {
	*memStore
	failID uint
	toward models.Status
}

func (f *failingStore) Transition(ctx context.Context, id uint, from, to models.Status, details string) error {
	if id == f.failID && (f.toward == "" || to == f.toward) {
		return errors.New("database is locked")
	}
	return f.memStore.Transition(ctx, id, from, to, details)
}

type stubTailor struct {
	err error
}

func (stubTailor) PickVariant(string) CVVariant { return CVVariant{Name: "software", File: "CV_Software.pdf"} }

func (t stubTailor) Tailor(context.Context, string, CVVariant) (string, error) {
	if t.err != nil {
		return "", t.err
	}
	return "=== SUMMARY ===\nBackend engineer.\n=== COVER_PARAGRAPH ===\nI ship reliable services.", nil
}

// countingSubmitter records call windows so tests can check pacing.
type countingSubmitter struct {
	mu     sync.Mutex
	calls  int
	starts []time.Time
	ends   []time.Time
	dirs   []string
	out    apply.Outcome
	onCall func()
}

func (c *countingSubmitter) Submit(_ context.Context, _ apply.JobSummary, _ apply.Candidate, dir, _ string) apply.Outcome {
	c.mu.Lock()
	c.calls++
	c.starts = append(c.starts, time.Now())
	c.dirs = append(c.dirs, dir)
	c.mu.Unlock()
	if c.onCall != nil {
		c.onCall()
	}
	c.mu.Lock()
	c.ends = append(c.ends, time.Now())
	c.mu.Unlock()
	return c.out
}

func (c *countingSubmitter) count() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.calls
}

type registry struct{ sub apply.Submitter }

func (r registry) For(p platform.Platform) apply.Submitter {
	if !p.Automated() {
		return apply.ManualAdapter{}
	}
	return r.sub
}

var candidate = apply.Candidate{FirstName: "Sam", LastName: "Rivera", Email: "sam@example.com", Phone: "555-0100"}

var creds = apply.Credentials{Greenhouse: "gh-key", Lever: "lv-key"}

type harness struct {
	store *memStore
	sub   *countingSubmitter
	svc   *BulkService
}

func newHarness(t *testing.T, spacing time.Duration) *harness {
	t.Helper()
	store := newMemStore()
	sub := &countingSubmitter{out: apply.Outcome{Success: true, Message: "Application submitted successfully to Greenhouse"}}
	svc := NewBulkService(store, bundle.NewStore(t.TempDir()), stubTailor{}, registry{sub: sub}, NewPacer(spacing))
	return &harness{store: store, sub: sub, svc: svc}
}

// approved creates a job and walks it through preview and approval.
func (h *harness) approved(t *testing.T, company, title, url string) *models.Job {
	t.Helper()
	job := h.store.add(company, title, url, models.StatusNotApplied)
	res, err := h.svc.Preview(context.Background(), []uint{job.ID})
	require.NoError(t, err)
	require.Empty(t, res[0].Error)
	n, err := h.svc.Approve(context.Background(), []uint{job.ID})
	require.NoError(t, err)
	require.Equal(t, 1, n)
	return job
}

func TestSubmitSuccessMarksSent(t *testing.T) {
	h := newHarness(t, 0)
	job := h.approved(t, "Acme", "SRE", "https://boards.greenhouse.io/acme/jobs/1")

	report, err := h.svc.Submit(context.Background(), []uint{job.ID}, candidate, creds)
	require.NoError(t, err)

	require.Len(t, report.Results, 1)
	res := report.Results[0]
	assert.True(t, res.Success)
	assert.Equal(t, platform.Greenhouse, res.Platform)
	assert.Equal(t, "Acme", res.Company)
	assert.Equal(t, 1, report.Succeeded)
	assert.Equal(t, 1, report.ByPlatform[platform.Greenhouse])
	assert.Equal(t, models.StatusSent, h.store.status(job.ID))
	assert.Equal(t, 1, h.sub.count())
	assert.NotEmpty(t, report.BatchID)
}

func TestSubmitAuthFailureKeepsApproved(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer srv.Close()

	store := newMemStore()
	adapters := apply.NewAdapters(apply.Options{GreenhouseAPIRoot: srv.URL, Timeout: 2 * time.Second})
	svc := NewBulkService(store, bundle.NewStore(t.TempDir()), stubTailor{}, adapters, NewPacer(0))
	h := &harness{store: store, svc: svc}
	job := h.approved(t, "Acme", "SRE", "https://boards.greenhouse.io/acme/jobs/1")

	report, err := svc.Submit(context.Background(), []uint{job.ID}, candidate, creds)
	require.NoError(t, err)

	res := report.Results[0]
	assert.False(t, res.Success)
	assert.Equal(t, apply.KindAuthentication, res.Kind)
	assert.Contains(t, res.Message, "Authentication failed")
	assert.Equal(t, 1, report.Failed)
	assert.Equal(t, models.StatusApproved, store.status(job.ID))
}

func TestSubmitUnknownDomainIsManual(t *testing.T) {
	h := newHarness(t, 0)
	job := h.approved(t, "Initech", "Analyst", "https://careers.initech.example/jobs/42")

	report, err := h.svc.Submit(context.Background(), []uint{job.ID}, candidate, creds)
	require.NoError(t, err)

	res := report.Results[0]
	assert.False(t, res.Success)
	assert.Equal(t, apply.KindUnsupportedPlatform, res.Kind)
	assert.True(t, res.ManualRequired())
	assert.Equal(t, 1, report.ManualRequired)
	assert.Equal(t, 0, report.Failed)
	assert.Equal(t, 0, h.sub.count())
	assert.Equal(t, models.StatusApproved, h.store.status(job.ID))
}

func TestSubmitMissingCredentialIsManual(t *testing.T) {
	h := newHarness(t, 0)
	job := h.approved(t, "Globex", "Backend", "https://jobs.lever.co/globex/abc")

	report, err := h.svc.Submit(context.Background(), []uint{job.ID}, candidate, apply.Credentials{Greenhouse: "gh"})
	require.NoError(t, err)

	assert.Equal(t, apply.KindMissingCredential, report.Results[0].Kind)
	assert.Contains(t, report.Results[0].Message, "Lever")
	assert.Equal(t, 1, report.ManualRequired)
	assert.Equal(t, 0, h.sub.count())
}

func TestSubmitWithoutBundle(t *testing.T) {
	h := newHarness(t, 0)
	job := h.store.add("Acme", "SRE", "https://boards.greenhouse.io/acme/jobs/1", models.StatusApproved)

	report, err := h.svc.Submit(context.Background(), []uint{job.ID}, candidate, creds)
	require.NoError(t, err)

	assert.Equal(t, apply.KindBundleNotFound, report.Results[0].Kind)
	assert.Equal(t, 1, report.Failed)
	assert.Equal(t, 0, h.sub.count())
	assert.Equal(t, models.StatusApproved, h.store.status(job.ID))
}

func TestSubmitStaleBundle(t *testing.T) {
	h := newHarness(t, 0)
	job := h.approved(t, "Acme", "SRE", "https://boards.greenhouse.io/acme/jobs/1")
	h.store.mu.Lock()
	h.store.jobs[job.ID].ApplyURL = "https://boards.greenhouse.io/acme/jobs/2"
	h.store.mu.Unlock()

	report, err := h.svc.Submit(context.Background(), []uint{job.ID}, candidate, creds)
	require.NoError(t, err)

	assert.Equal(t, apply.KindBundleStale, report.Results[0].Kind)
	assert.Equal(t, 0, h.sub.count())

	// regenerating the preview clears it
	_, err = h.svc.Preview(context.Background(), []uint{job.ID})
	require.NoError(t, err)
	report, err = h.svc.Submit(context.Background(), []uint{job.ID}, candidate, creds)
	require.NoError(t, err)
	assert.True(t, report.Results[0].Success)
}

func TestSubmitRequiresApproval(t *testing.T) {
	h := newHarness(t, 0)
	fresh := h.store.add("Acme", "SRE", "https://boards.greenhouse.io/acme/jobs/1", models.StatusNotApplied)
	previewed := h.store.add("Acme", "Backend", "https://boards.greenhouse.io/acme/jobs/2", models.StatusNotApplied)
	_, err := h.svc.Preview(context.Background(), []uint{previewed.ID})
	require.NoError(t, err)

	report, err := h.svc.Submit(context.Background(), []uint{fresh.ID, previewed.ID, 999}, candidate, creds)
	require.NoError(t, err)

	require.Len(t, report.Results, 3)
	assert.Equal(t, apply.KindNotApproved, report.Results[0].Kind)
	assert.Equal(t, apply.KindNotApproved, report.Results[1].Kind)
	assert.Equal(t, apply.KindJobNotFound, report.Results[2].Kind)
	assert.Equal(t, 3, report.Failed)
	assert.Equal(t, 0, h.sub.count())
}

func TestSecondSubmitIsNoOp(t *testing.T) {
	h := newHarness(t, 0)
	job := h.approved(t, "Acme", "SRE", "https://boards.greenhouse.io/acme/jobs/1")

	_, err := h.svc.Submit(context.Background(), []uint{job.ID}, candidate, creds)
	require.NoError(t, err)
	report, err := h.svc.Submit(context.Background(), []uint{job.ID}, candidate, creds)
	require.NoError(t, err)

	assert.Equal(t, apply.KindAlreadySent, report.Results[0].Kind)
	assert.Equal(t, 1, report.Skipped)
	assert.Equal(t, 1, h.sub.count())
	assert.Equal(t, models.StatusSent, h.store.status(job.ID))
}

func TestSubmitSpacesCalls(t *testing.T) {
	const spacing = 80 * time.Millisecond
	h := newHarness(t, spacing)
	var ids []uint
	for i := 0; i < 3; i++ {
		job := h.approved(t, "Acme", fmt.Sprintf("Role %d", i), fmt.Sprintf("https://boards.greenhouse.io/acme/jobs/%d", i))
		ids = append(ids, job.ID)
	}

	report, err := h.svc.Submit(context.Background(), ids, candidate, creds)
	require.NoError(t, err)
	assert.Equal(t, 3, report.Succeeded)

	require.Len(t, h.sub.starts, 3)
	for i := 1; i < 3; i++ {
		gap := h.sub.starts[i].Sub(h.sub.ends[i-1])
		assert.GreaterOrEqual(t, gap, spacing, "gap before call %d", i)
	}
}

func TestPreviewTwiceKeepsStatus(t *testing.T) {
	h := newHarness(t, 0)
	job := h.store.add("Acme", "SRE", "https://boards.greenhouse.io/acme/jobs/1", models.StatusNotApplied)

	first, err := h.svc.Preview(context.Background(), []uint{job.ID})
	require.NoError(t, err)
	second, err := h.svc.Preview(context.Background(), []uint{job.ID})
	require.NoError(t, err)

	assert.Equal(t, models.StatusPreviewReady, first[0].Status)
	assert.Equal(t, models.StatusPreviewReady, second[0].Status)
	assert.Empty(t, second[0].Error)
	assert.NotEqual(t, first[0].OutputDir, second[0].OutputDir)
	assert.Len(t, h.store.jobs, 1)
	assert.Equal(t, models.StatusPreviewReady, h.store.status(job.ID))

	body, err := bundle.ReadEmailBody(second[0].OutputDir)
	require.NoError(t, err)
	assert.Contains(t, body, "I ship reliable services.")
	assert.Contains(t, body, "[Email] | [Phone]")
}

func TestPreviewRefusesSentJob(t *testing.T) {
	h := newHarness(t, 0)
	job := h.store.add("Acme", "SRE", "", models.StatusSent)

	res, err := h.svc.Preview(context.Background(), []uint{job.ID})
	require.NoError(t, err)
	assert.Contains(t, res[0].Error, "SENT")
	assert.Empty(t, res[0].OutputDir)
}

func TestPreviewTailorFailureKeepsStatus(t *testing.T) {
	h := newHarness(t, 0)
	h.svc.Tailorer = stubTailor{err: errors.New("model unavailable")}
	job := h.store.add("Acme", "SRE", "", models.StatusNotApplied)

	res, err := h.svc.Preview(context.Background(), []uint{job.ID})
	require.NoError(t, err)
	assert.Contains(t, res[0].Error, "model unavailable")
	assert.Equal(t, models.StatusNotApplied, h.store.status(job.ID))
}

func TestApproveOnlyMovesPreviewReady(t *testing.T) {
	h := newHarness(t, 0)
	ready := h.store.add("Acme", "SRE", "", models.StatusPreviewReady)
	fresh := h.store.add("Acme", "Backend", "", models.StatusNotApplied)
	sent := h.store.add("Acme", "Data", "", models.StatusSent)

	n, err := h.svc.Approve(context.Background(), []uint{ready.ID, fresh.ID, sent.ID, 999, ready.ID})
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	assert.Equal(t, models.StatusApproved, h.store.status(ready.ID))
	assert.Equal(t, models.StatusNotApplied, h.store.status(fresh.ID))
	assert.Equal(t, models.StatusSent, h.store.status(sent.ID))
}

func TestEmptyBatches(t *testing.T) {
	h := newHarness(t, 0)
	_, err := h.svc.Preview(context.Background(), nil)
	assert.ErrorIs(t, err, ErrEmptyBatch)
	_, err = h.svc.Approve(context.Background(), []uint{})
	assert.ErrorIs(t, err, ErrEmptyBatch)
	_, err = h.svc.Submit(context.Background(), nil, candidate, creds)
	assert.ErrorIs(t, err, ErrEmptyBatch)
}

func TestSubmitRejectsInvalidCandidate(t *testing.T) {
	h := newHarness(t, 0)
	job := h.approved(t, "Acme", "SRE", "https://boards.greenhouse.io/acme/jobs/1")

	_, err := h.svc.Submit(context.Background(), []uint{job.ID}, apply.Candidate{FirstName: "Sam", Email: "not-an-email"}, creds)
	var ve *ValidationError
	require.ErrorAs(t, err, &ve)
	assert.ElementsMatch(t, []string{"last_name", "email", "phone"}, ve.Fields)
	assert.Equal(t, 0, h.sub.count())
	assert.Equal(t, models.StatusApproved, h.store.status(job.ID))
}

func TestSubmitCancellation(t *testing.T) {
	h := newHarness(t, 0)
	first := h.approved(t, "Acme", "SRE", "https://boards.greenhouse.io/acme/jobs/1")
	second := h.approved(t, "Acme", "Backend", "https://boards.greenhouse.io/acme/jobs/2")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	h.sub.onCall = cancel

	report, err := h.svc.Submit(ctx, []uint{first.ID, second.ID}, candidate, creds)
	assert.ErrorIs(t, err, context.Canceled)
	require.NotNil(t, report)
	require.Len(t, report.Results, 2)

	assert.True(t, report.Results[0].Success)
	assert.Equal(t, models.StatusSent, h.store.status(first.ID))
	assert.Equal(t, apply.KindCancelled, report.Results[1].Kind)
	assert.True(t, report.Cancelled)
	assert.Equal(t, 1, report.Skipped)
	assert.Equal(t, models.StatusApproved, h.store.status(second.ID))
	assert.Equal(t, 1, h.sub.count())
}

func TestReportLines(t *testing.T) {
	r := newReport()
	r.add(SubmissionResult{JobID: 1, Company: "Acme", Title: "SRE", Platform: platform.Greenhouse, Success: true, Message: "sent"})
	r.add(SubmissionResult{JobID: 2, Company: "Initech", Title: "Analyst", Platform: platform.Manual, Kind: apply.KindUnsupportedPlatform, Message: "Manual submission required"})
	r.add(SubmissionResult{JobID: 3, Kind: apply.KindJobNotFound, Message: "Job not found"})

	lines := r.Lines()
	require.Len(t, lines, 3)
	assert.Equal(t, "✅ #1 Acme - SRE [greenhouse]: sent", lines[0])
	assert.Contains(t, lines[1], "📝")
	assert.Equal(t, "❌ #3: Job not found", lines[2])
	assert.Equal(t, 1, r.Succeeded)
	assert.Equal(t, 1, r.ManualRequired)
	assert.Equal(t, 1, r.Failed)
}

func TestPacerWaitsFromLastEnd(t *testing.T) {
	p := NewPacer(50 * time.Millisecond)
	require.NoError(t, p.Wait(context.Background()))
	p.Done()

	start := time.Now()
	require.NoError(t, p.Wait(context.Background()))
	assert.GreaterOrEqual(t, time.Since(start), 40*time.Millisecond)

	p.Done()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.ErrorIs(t, p.Wait(ctx), context.Canceled)
}

func TestPacerWithoutSpacingNeverBlocks(t *testing.T) {
	p := NewPacer(0)
	start := time.Now()
	for i := 0; i < 5; i++ {
		require.NoError(t, p.Wait(context.Background()))
		p.Done()
	}
	assert.Less(t, time.Since(start), 20*time.Millisecond)
}

func TestPacerSpacingStartsAtDone(t *testing.T) {
	p := NewPacer(40 * time.Millisecond)
	require.NoError(t, p.Wait(context.Background()))
	time.Sleep(60 * time.Millisecond) // a call longer than the spacing
	p.Done()

	start := time.Now()
	require.NoError(t, p.Wait(context.Background()))
	assert.GreaterOrEqual(t, time.Since(start), 30*time.Millisecond)
}

func TestApproveContinuesAfterStoreError(t *testing.T) {
	h := newHarness(t, 0)
	a := h.store.add("Acme", "SRE", "", models.StatusPreviewReady)
	b := h.store.add("Acme", "Backend", "", models.StatusPreviewReady)
	c := h.store.add("Acme", "Data", "", models.StatusPreviewReady)
	h.svc.Jobs = &failingStore{memStore: h.store, failID: b.ID}

	n, err := h.svc.Approve(context.Background(), []uint{a.ID, b.ID, c.ID})
	require.NoError(t, err)
	assert.Equal(t, 2, n)
	assert.Equal(t, models.StatusApproved, h.store.status(a.ID))
	assert.Equal(t, models.StatusPreviewReady, h.store.status(b.ID))
	assert.Equal(t, models.StatusApproved, h.store.status(c.ID))
}

func TestSubmitSentNotRecordedIsStoreFailure(t *testing.T) {
	h := newHarness(t, 0)
	job := h.approved(t, "Acme", "SRE", "https://boards.greenhouse.io/acme/jobs/1")
	h.svc.Jobs = &failingStore{memStore: h.store, failID: job.ID, toward: models.StatusSent}

	report, err := h.svc.Submit(context.Background(), []uint{job.ID}, candidate, creds)
	require.NoError(t, err)
	res := report.Results[0]
	assert.True(t, res.Success)
	assert.Equal(t, apply.KindStore, res.Kind)
	assert.Contains(t, res.Message, "status not updated")
	assert.Equal(t, 1, report.Succeeded)
	assert.Equal(t, 1, h.sub.count())
	assert.Equal(t, models.StatusApproved, h.store.status(job.ID))
}

func TestSubmitLookalikeDomainIsManual(t *testing.T) {
	h := newHarness(t, 0)
	job := h.approved(t, "Clever", "SRE", "https://clever.com/jobs/1")

	report, err := h.svc.Submit(context.Background(), []uint{job.ID}, candidate, creds)
	require.NoError(t, err)
	assert.Equal(t, apply.KindUnsupportedPlatform, report.Results[0].Kind)
	assert.Equal(t, 1, report.ManualRequired)
	assert.Equal(t, 0, h.sub.count())
}
