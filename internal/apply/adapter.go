package apply

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/justsurfingit/job-o-matic/internal/platform"
)

// Kind classifies the outcome of one job's submission step.
type Kind string

const (
	KindNone                Kind = "" // successful outcomes
	KindValidation          Kind = "validation-error"
	KindUnsupportedPlatform Kind = "unsupported-platform"
	KindMissingCredential   Kind = "missing-credential"
	KindBundleNotFound      Kind = "bundle-not-found"
	KindBundleStale         Kind = "bundle-stale"
	KindAuthentication      Kind = "authentication-failure"
	KindRateLimited         Kind = "rate-limited"
	KindNotFound            Kind = "not-found"
	KindNetwork             Kind = "network-failure"
	KindPlatformRejected    Kind = "platform-rejected"

	// Decided by the orchestrator.
	KindJobNotFound Kind = "job-not-found"
	KindNotApproved Kind = "not-approved"
	KindAlreadySent Kind = "already-sent"
	KindCancelled   Kind = "cancelled"
	KindStore       Kind = "store-failure" // accepted by the platform but SENT not recorded
)

// ManualRequired reports whether automation was never attempted and the user must apply by hand.
func (k Kind) ManualRequired() bool {
	return k == KindUnsupportedPlatform || k == KindMissingCredential
}

// Outcome is what an adapter hands back. Adapters never return errors or panic.
type Outcome struct {
	Success bool
	Kind    Kind
	Message string
}

func succeeded(msg string) Outcome { return Outcome{Success: true, Kind: KindNone, Message: msg} }

func failed(kind Kind, msg string) Outcome { return Outcome{Kind: kind, Message: msg} }

// Candidate is the applicant record supplied for a submit batch.
type Candidate struct {
	FirstName string `json:"first_name" validate:"required"`
	LastName  string `json:"last_name" validate:"required"`
	Email     string `json:"email" validate:"required,email"`
	Phone     string `json:"phone" validate:"required"`
}

func (c Candidate) FullName() string {
	return strings.TrimSpace(strings.TrimSpace(c.FirstName) + " " + strings.TrimSpace(c.LastName))
}

// Missing lists the wire names of empty fields.
func (c Candidate) Missing() []string {
	var out []string
	for _, f := range []struct{ name, value string }{
		{"first_name", c.FirstName},
		{"last_name", c.LastName},
		{"email", c.Email},
		{"phone", c.Phone},
	} {
		if strings.TrimSpace(f.value) == "" {
			out = append(out, f.name)
		}
	}
	return out
}

// Credentials are the per-batch API keys. They are never stored.
type Credentials struct {
	Greenhouse string `json:"greenhouse"`
	Lever      string `json:"lever"`
}

func (c Credentials) For(p platform.Platform) string {
	switch p {
	case platform.Greenhouse:
		return strings.TrimSpace(c.Greenhouse)
	case platform.Lever:
		return strings.TrimSpace(c.Lever)
	}
	return ""
}

// JobSummary is the part of a job an adapter needs.
type JobSummary struct {
	ID       uint
	Company  string
	Title    string
	ApplyURL string
}

// Submitter sends one application to one platform.
type Submitter interface {
	Submit(ctx context.Context, job JobSummary, cand Candidate, bundleDir, credential string) Outcome
}

type Options struct {
	GreenhouseAPIRoot string
	LeverAPIRoot      string
	UserAgent         string
	// CVDir is where cv_variant.txt file names are resolved.
	CVDir   string
	Timeout time.Duration
	// HTTPClient overrides the client built from Timeout.
	HTTPClient *http.Client
}

// Adapters is the closed set of submitters, one per platform.
type Adapters struct {
	Greenhouse *GreenhouseAdapter
	Lever      *LeverAdapter
	Manual     ManualAdapter
}

func NewAdapters(opts Options) Adapters {
	client := opts.HTTPClient
	if client == nil {
		timeout := opts.Timeout
		if timeout <= 0 {
			timeout = 30 * time.Second
		}
		client = &http.Client{Timeout: timeout}
	}
	base := requester{client: client, userAgent: opts.UserAgent, cvDir: opts.CVDir}
	return Adapters{
		Greenhouse: &GreenhouseAdapter{APIRoot: opts.GreenhouseAPIRoot, requester: base},
		Lever:      &LeverAdapter{APIRoot: opts.LeverAPIRoot, requester: base},
	}
}

// For picks the submitter for a detected platform.
func (a Adapters) For(p platform.Platform) Submitter {
	switch p {
	case platform.Greenhouse:
		if a.Greenhouse != nil {
			return a.Greenhouse
		}
	case platform.Lever:
		if a.Lever != nil {
			return a.Lever
		}
	}
	return a.Manual
}

// ManualAdapter is used for every URL without an API integration.
type ManualAdapter struct{}

func (ManualAdapter) Submit(context.Context, JobSummary, Candidate, string, string) Outcome {
	return failed(KindUnsupportedPlatform, "Manual submission required")
}
