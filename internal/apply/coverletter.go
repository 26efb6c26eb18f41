package apply

import (
	"regexp"
	"strings"

	"github.com/justsurfingit/job-o-matic/internal/bundle"
)

var (
	greetings = []string{"dear ", "hi ", "hi,", "hello", "to whom it may concern"}
	signOffs  = []string{"kind regards", "best regards", "warm regards", "regards", "sincerely", "best,", "thanks,", "thank you,"}

	placeholder = regexp.MustCompile(`\[[A-Za-z][A-Za-z _-]*\]`)
	blankRuns   = regexp.MustCompile(`\n{3,}`)
	spaceRuns   = regexp.MustCompile(`[ \t]{2,}`)
	spacedPunct = regexp.MustCompile(`[ \t]+([.,;:!?])`)
)

// CleanCoverLetter turns an email draft into cover-letter text. Greeting lines, lines holding
// nothing but placeholders, and everything from the sign-off down are dropped. Placeholder
// tokens inside other lines are removed.
func CleanCoverLetter(body string) string {
	var kept []string
	for _, line := range strings.Split(strings.ReplaceAll(body, "\r\n", "\n"), "\n") {
		trimmed := strings.TrimSpace(line)
		lower := strings.ToLower(trimmed)
		if hasAnyPrefix(lower, signOffs) {
			break
		}
		if hasAnyPrefix(lower, greetings) {
			continue
		}
		if placeholder.MatchString(line) {
			line = placeholder.ReplaceAllString(line, "")
			if strings.Trim(line, " \t|,;:/-·") == "" {
				continue
			}
			line = spacedPunct.ReplaceAllString(spaceRuns.ReplaceAllString(line, " "), "$1")
		}
		kept = append(kept, strings.TrimRight(line, " \t"))
	}
	out := strings.Join(kept, "\n")
	out = blankRuns.ReplaceAllString(out, "\n\n")
	return strings.TrimSpace(out)
}

func hasAnyPrefix(s string, prefixes []string) bool {
	for _, p := range prefixes {
		if strings.HasPrefix(s, p) {
			return true
		}
	}
	return false
}

// coverLetter reads and cleans the bundle's email body. Missing files give "".
func coverLetter(bundleDir string) string {
	body, err := bundle.ReadEmailBody(bundleDir)
	if err != nil {
		return ""
	}
	return CleanCoverLetter(body)
}
