package services

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/llms/googleai"
)

var ErrNoAPIKey = errors.New("GEMINI_API_KEY is empty")

type LLMService struct {
	Client llms.Model
}

// NewLLMService initializes the Gemini client.
func NewLLMService(ctx context.Context, apiKey, model string) (*LLMService, error) {
	if apiKey == "" {
		return nil, ErrNoAPIKey
	}
	llm, err := googleai.New(ctx,
		googleai.WithAPIKey(apiKey),
		googleai.WithDefaultModel(model),
	)
	if err != nil {
		return nil, fmt.Errorf("create Gemini client: %w", err)
	}
	return &LLMService{
		Client: llm,
	}, nil
}

// ExtractJobDetails takes raw HTML and returns a structured object
func (s *LLMService) ExtractJobDetails(ctx context.Context, rawHTML string) (string, error) {
	rawHTML = truncate(rawHTML, 20000)
	const JobExtractionPrompt = `
You are an expert Job Data Extraction Agent. Your task is to analyze the provided raw HTML/Text from a job posting and extract structured data.

### INSTRUCTIONS:
1. **Analyze** the text to identify the core job details.
2. **Ignore** navigation menus, footers, "similar jobs" lists, and site advertisements.
3. **Extract** the following fields strictly.
4. **Format** the output as valid JSON only. Do not wrap the output in markdown code blocks.

### OUTPUT SCHEMA:
{
    "company_name": "Name of the company (e.g., Google, StartupInc)",
    "role_title": "Job title (e.g., Senior Backend Engineer)",
    "location": "Job location or 'Remote'",
    "apply_url": "The application link if present, otherwise null",
    "description": "A clean summary of the job. Focus on Responsibilities and Requirements. Remove HTML tags."
}

### CONSTRAINT:
If a piece of information is missing, set the value to null. Do not hallucinate or guess.

### RAW CONTENT:
%s
`
	resp, err := llms.GenerateFromSinglePrompt(ctx, s.Client, fmt.Sprintf(JobExtractionPrompt, rawHTML))
	if err != nil {
		return "", err
	}
	return cleanJSON(resp), nil
}

func (s *LLMService) PickVariant(description string) CVVariant { return PickVariant(description) }

// Tailor asks the model for the three bundle sections.
func (s *LLMService) Tailor(ctx context.Context, description string, variant CVVariant) (string, error) {
	const TailorPrompt = `
You are helping a candidate apply for a job. Their CV variant is "%s".
Write three sections, each introduced by its header line exactly as shown, and nothing else:

=== SUMMARY ===
Two sentences positioning the candidate for this role.
=== HIGHLIGHTS ===
Three to five bullet lines starting with "- ", each tied to a requirement of the posting.
=== COVER_PARAGRAPH ===
One paragraph for the body of a cover email. No greeting, no sign-off, no placeholders.

### JOB DESCRIPTION:
%s
`
	resp, err := llms.GenerateFromSinglePrompt(ctx, s.Client, fmt.Sprintf(TailorPrompt, variant.Name, description))
	if err != nil {
		return "", fmt.Errorf("tailor: %w", err)
	}
	resp = strings.TrimSpace(resp)
	if resp == "" {
		return "", errors.New("tailor: model returned nothing")
	}
	if ExtractSection(resp, SectionCover) == "" {
		// keep whatever came back as the cover paragraph
		resp = fmt.Sprintf("=== %s ===\n%s", SectionCover, resp)
	}
	return resp, nil
}

// IdentifyJobRole picks which of titles an email is about. It returns -1 when unsure.
func (s *LLMService) IdentifyJobRole(ctx context.Context, titles []string, subject, body string) int {
	var list strings.Builder
	for i, t := range titles {
		fmt.Fprintf(&list, "%d: %s\n", i, t)
	}
	prompt := fmt.Sprintf(`A recruiter email arrived. Which of these job titles is it about?
%s
Answer with the number only, or -1 if you cannot tell.

Subject: %s
Body:
%s`, list.String(), subject, truncate(body, 4000))

	resp, err := llms.GenerateFromSinglePrompt(ctx, s.Client, prompt)
	if err != nil {
		return -1
	}
	return parseRoleIndex(resp, len(titles))
}

// AnalyzeEmailStatus classifies a recruiter email as JSON {"status": ..., "summary": ...}.
func (s *LLMService) AnalyzeEmailStatus(ctx context.Context, company, subject, body string) (string, error) {
	prompt := fmt.Sprintf(`You read recruiter emails for a job seeker. Classify this email from %s.
Reply with JSON only: {"status": "...", "summary": "..."}.
status is one of REJECTED, INTERVIEW, PENDING, NO_CHANGE.
summary is one short sentence.

Subject: %s
Body:
%s`, company, subject, truncate(body, 6000))

	resp, err := llms.GenerateFromSinglePrompt(ctx, s.Client, prompt)
	if err != nil {
		return "", err
	}
	return cleanJSON(resp), nil
}

// cleanJSON strips the markdown fences models like to add around JSON.
func cleanJSON(s string) string {
	s = strings.TrimSpace(s)
	s = strings.TrimPrefix(s, "```json")
	s = strings.TrimPrefix(s, "```")
	s = strings.TrimSuffix(s, "```")
	return strings.TrimSpace(s)
}

func parseRoleIndex(resp string, n int) int {
	fields := strings.Fields(resp)
	if len(fields) == 0 {
		return -1
	}
	i, err := strconv.Atoi(strings.Trim(fields[0], ".:"))
	if err != nil || i < 0 || i >= n {
		return -1
	}
	return i
}

// truncate keeps at most n runes of s.
func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}
