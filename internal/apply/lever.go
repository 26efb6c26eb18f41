package apply

import (
	"context"
	"fmt"
	"net/url"
	"strings"
)

// LeverAdapter posts applications to the Lever Postings API. The key travels as a query parameter.
type LeverAdapter struct {
	APIRoot string
	requester
}

func (a *LeverAdapter) Submit(ctx context.Context, job JobSummary, cand Candidate, bundleDir, credential string) Outcome {
	if missing := cand.Missing(); len(missing) > 0 {
		return failed(KindValidation, "Missing candidate fields: "+strings.Join(missing, ", "))
	}
	if strings.TrimSpace(credential) == "" {
		return failed(KindMissingCredential, "No Lever API key provided")
	}
	endpoint, err := LeverEndpoint(a.APIRoot, job.ApplyURL)
	if err != nil {
		return failed(KindPlatformRejected, err.Error())
	}
	endpoint += "?key=" + url.QueryEscape(credential)

	fields := []field{
		{"name", cand.FullName()},
		{"email", strings.TrimSpace(cand.Email)},
		{"phone", strings.TrimSpace(cand.Phone)},
	}
	if cover := coverLetter(bundleDir); cover != "" {
		fields = append(fields, field{"comments", cover})
	}

	return a.post(ctx, "Lever", endpoint, fields, a.resumePath(bundleDir), nil)
}

// LeverEndpoint maps jobs.lever.co/{site}/{id}[/apply] or api.lever.co/v0/postings/{site}/{id}
// to the postings endpoint under apiRoot, without the key.
func LeverEndpoint(apiRoot, applyURL string) (string, error) {
	u, err := url.Parse(strings.TrimSpace(applyURL))
	if err != nil || u.Host == "" {
		return "", fmt.Errorf("unable to determine Lever API endpoint from %q", applyURL)
	}
	host := strings.ToLower(u.Hostname())
	if !strings.HasSuffix(host, "lever.co") {
		return "", fmt.Errorf("not a Lever URL: %q", applyURL)
	}

	segs := pathSegments(u.Path)
	var site, id string
	if strings.HasPrefix(host, "api.") {
		for i := 0; i+2 < len(segs); i++ {
			if segs[i] == "postings" {
				site, id = segs[i+1], segs[i+2]
				break
			}
		}
	} else if len(segs) >= 2 {
		site, id = segs[0], segs[1]
	}
	if site == "" || id == "" {
		return "", fmt.Errorf("unable to determine Lever API endpoint from %q", applyURL)
	}

	root := strings.TrimRight(apiRoot, "/")
	return root + "/postings/" + url.PathEscape(site) + "/" + url.PathEscape(id), nil
}
