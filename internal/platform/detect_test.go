package platform

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDetect(t *testing.T) {
	cases := []struct {
		url  string
		want Platform
	}{
		{"https://boards.greenhouse.io/acme/jobs/4043584006", Greenhouse},
		{"https://job-boards.greenhouse.io/acme/jobs/1", Greenhouse},
		{"https://boards-api.greenhouse.io/v1/boards/acme/jobs/1", Greenhouse},
		{"HTTPS://BOARDS.GREENHOUSE.IO/ACME/JOBS/1", Greenhouse},
		{"https://jobs.lever.co/acme/5ac21346-8e0c-4494-8e7a-3eb92ff77902", Lever},
		{"https://api.lever.co/v0/postings/acme/abc", Lever},
		{"https://careers.example.com/jobs/42", Manual},
		{"https://www.linkedin.com/jobs/view/123", Manual},
		{"", Manual},
		{"not a url at all", Manual},
		{"boards.greenhouse.io/acme/jobs/1", Greenhouse},
		{"https://clever.com/jobs/1", Manual},
		{"https://careers.example.com/?ref=jobs.lever.co", Manual},
		{"https://greenhouse.io.evil.example/jobs/1", Manual},
		{"https://lever.co/acme/1", Lever},
	}
	for _, tc := range cases {
		t.Run(tc.url, func(t *testing.T) {
			assert.Equal(t, tc.want, Detect(tc.url))
		})
	}
}

func TestDetectDeterministic(t *testing.T) {
	url := "https://jobs.lever.co/acme/123"
	first := Detect(url)
	for i := 0; i < 50; i++ {
		assert.Equal(t, first, Detect(url))
	}
}

func TestAutomated(t *testing.T) {
	assert.True(t, Greenhouse.Automated())
	assert.True(t, Lever.Automated())
	assert.False(t, Manual.Automated())
}

func TestLabel(t *testing.T) {
	assert.Equal(t, "Greenhouse", Greenhouse.Label())
	assert.Equal(t, "Lever", Lever.Label())
	assert.Equal(t, "Manual", Manual.Label())
}
