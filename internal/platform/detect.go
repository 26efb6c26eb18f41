package platform

import (
	"net/url"
	"strings"
)

// Platform is the submission channel for a job's apply URL.
type Platform string

const (
	Greenhouse Platform = "greenhouse"
	Lever      Platform = "lever"
	Manual     Platform = "manual"
)

// Order is fixed so that detection never depends on map iteration.
var domains = []struct {
	platform Platform
	hosts    []string
}{
	{Greenhouse, []string{"greenhouse.io"}},
	{Lever, []string{"lever.co"}},
}

// Detect classifies an apply URL by its host: the platform domain itself or any subdomain.
// Anything unrecognised, including an empty URL, is Manual.
func Detect(applyURL string) Platform {
	host := hostname(applyURL)
	if host == "" {
		return Manual
	}
	for _, d := range domains {
		for _, h := range d.hosts {
			if host == h || strings.HasSuffix(host, "."+h) {
				return d.platform
			}
		}
	}
	return Manual
}

func hostname(applyURL string) string {
	raw := strings.ToLower(strings.TrimSpace(applyURL))
	if raw == "" {
		return ""
	}
	if !strings.Contains(raw, "://") {
		raw = "https://" + raw
	}
	u, err := url.Parse(raw)
	if err != nil {
		return ""
	}
	return strings.TrimSuffix(u.Hostname(), ".")
}

// Automated reports whether an adapter exists for p.
func (p Platform) Automated() bool {
	return p == Greenhouse || p == Lever
}

func (p Platform) String() string { return string(p) }

// Label is the display name used in messages.
func (p Platform) Label() string {
	switch p {
	case Greenhouse:
		return "Greenhouse"
	case Lever:
		return "Lever"
	}
	return "Manual"
}
