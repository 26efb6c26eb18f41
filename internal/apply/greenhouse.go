package apply

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"
)

// GreenhouseAdapter posts applications to the Greenhouse Job Board API.
type GreenhouseAdapter struct {
	APIRoot string
	requester
}

func (a *GreenhouseAdapter) Submit(ctx context.Context, job JobSummary, cand Candidate, bundleDir, credential string) Outcome {
	if missing := cand.Missing(); len(missing) > 0 {
		return failed(KindValidation, "Missing candidate fields: "+strings.Join(missing, ", "))
	}
	if strings.TrimSpace(credential) == "" {
		return failed(KindMissingCredential, "No Greenhouse API key provided")
	}
	endpoint, err := GreenhouseEndpoint(a.APIRoot, job.ApplyURL)
	if err != nil {
		return failed(KindPlatformRejected, err.Error())
	}

	fields := []field{
		{"first_name", strings.TrimSpace(cand.FirstName)},
		{"last_name", strings.TrimSpace(cand.LastName)},
		{"email", strings.TrimSpace(cand.Email)},
		{"phone", strings.TrimSpace(cand.Phone)},
	}
	if cover := coverLetter(bundleDir); cover != "" {
		fields = append(fields, field{"cover_letter_text", cover})
	}

	return a.post(ctx, "Greenhouse", endpoint, fields, a.resumePath(bundleDir), func(req *http.Request) {
		req.SetBasicAuth(credential, "")
	})
}

// GreenhouseEndpoint maps a public posting URL to its application endpoint under apiRoot.
// Accepted forms: boards/job-boards "/{board}/jobs/{id}", "?gh_jid={id}", the embed
// "?for={board}&token={id}" and the API's own "/v1/boards/{board}/jobs/{id}".
func GreenhouseEndpoint(apiRoot, applyURL string) (string, error) {
	u, err := url.Parse(strings.TrimSpace(applyURL))
	if err != nil || u.Host == "" {
		return "", fmt.Errorf("unable to determine Greenhouse API endpoint from %q", applyURL)
	}
	if !strings.HasSuffix(strings.ToLower(u.Hostname()), "greenhouse.io") {
		return "", fmt.Errorf("not a Greenhouse URL: %q", applyURL)
	}

	q := u.Query()
	segs := pathSegments(u.Path)
	board, id := q.Get("for"), q.Get("token")

	if board == "" || id == "" {
		board, id = "", ""
		for i := 1; i+1 < len(segs); i++ {
			if segs[i] == "jobs" {
				board, id = segs[i-1], segs[i+1]
				break
			}
		}
	}
	if (board == "" || id == "") && q.Get("gh_jid") != "" && len(segs) > 0 {
		board, id = segs[0], q.Get("gh_jid")
	}
	if board == "" || id == "" {
		return "", fmt.Errorf("unable to determine Greenhouse API endpoint from %q", applyURL)
	}

	root := strings.TrimRight(apiRoot, "/")
	return root + "/boards/" + url.PathEscape(board) + "/jobs/" + url.PathEscape(id), nil
}

func pathSegments(p string) []string {
	var out []string
	for _, s := range strings.Split(p, "/") {
		if s != "" {
			out = append(out, s)
		}
	}
	return out
}
