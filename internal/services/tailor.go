package services

import (
	"context"
	"fmt"
	"regexp"
	"strings"
)

// CVVariant names one of the CVs kept under CV_DIR.
type CVVariant struct {
	Name string
	File string
}

// Tailorer produces the tailored text for one job. LLMService and TemplateTailor implement it.
type Tailorer interface {
	PickVariant(description string) CVVariant
	Tailor(ctx context.Context, description string, variant CVVariant) (string, error)
}

const (
	SectionSummary    = "SUMMARY"
	SectionHighlights = "HIGHLIGHTS"
	SectionCover      = "COVER_PARAGRAPH"
)

var defaultVariant = CVVariant{Name: "general", File: "CV_General.pdf"}

// Earlier entries win ties.
var cvVariants = []struct {
	variant  CVVariant
	keywords []string
}{
	{
		CVVariant{Name: "data_science", File: "CV_Data_Science.pdf"},
		[]string{"data scien", "machine learning", "analytics", "statistic", "pandas", "pytorch", "tensorflow", "sql", "etl"},
	},
	{
		CVVariant{Name: "software", File: "CV_Software.pdf"},
		[]string{"software", "backend", "frontend", "full stack", "golang", "python", "java", "react", "kubernetes", "devops", "sre", "microservice"},
	},
}

// PickVariant scores the description against each variant's keywords.
func PickVariant(description string) CVVariant {
	desc := strings.ToLower(description)
	best, bestScore := defaultVariant, 0
	for _, c := range cvVariants {
		score := 0
		for _, kw := range c.keywords {
			if strings.Contains(desc, kw) {
				score++
			}
		}
		if score > bestScore {
			best, bestScore = c.variant, score
		}
	}
	return best
}

var techVocabulary = []string{
	"Go", "Python", "Java", "TypeScript", "React", "PostgreSQL", "Kubernetes", "Docker",
	"AWS", "GCP", "Terraform", "Kafka", "gRPC", "SQL", "Spark", "Airflow", "Machine Learning",
}

var vocabularyPatterns = func() []*regexp.Regexp {
	out := make([]*regexp.Regexp, len(techVocabulary))
	for i, term := range techVocabulary {
		out[i] = regexp.MustCompile(`(?i)\b` + regexp.QuoteMeta(term) + `\b`)
	}
	return out
}()

// TemplateTailor builds tailored text without a model. It is used when no API key is configured.
type TemplateTailor struct{}

func (TemplateTailor) PickVariant(description string) CVVariant { return PickVariant(description) }

func (TemplateTailor) Tailor(ctx context.Context, description string, variant CVVariant) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	skills := matchVocabulary(description)
	if len(skills) == 0 {
		skills = []string{"shipping reliable software"}
	}

	var b strings.Builder
	writeSection(&b, SectionSummary, fmt.Sprintf("Engineer with a %s background, focused on %s.",
		strings.ReplaceAll(variant.Name, "_", " "), strings.Join(skills, ", ")))
	var highlights []string
	for _, s := range skills {
		highlights = append(highlights, "- Hands-on production experience with "+s)
	}
	writeSection(&b, SectionHighlights, strings.Join(highlights, "\n"))
	writeSection(&b, SectionCover, fmt.Sprintf(
		"The role asks for %s, which is the work I have been doing day to day. I would bring that experience to your team from the first week.",
		strings.Join(skills, ", ")))
	return strings.TrimSpace(b.String()), nil
}

func matchVocabulary(description string) []string {
	var out []string
	for i, re := range vocabularyPatterns {
		if re.MatchString(description) {
			out = append(out, techVocabulary[i])
		}
	}
	return out
}

func writeSection(b *strings.Builder, header, body string) {
	fmt.Fprintf(b, "=== %s ===\n%s\n\n", header, body)
}

// ExtractSection returns the text under "=== header ===" up to the next header.
func ExtractSection(text, header string) string {
	re := regexp.MustCompile(`(?is)===\s*` + regexp.QuoteMeta(header) + `\s*===\s*(.*?)(?:===|$)`)
	m := re.FindStringSubmatch(text)
	if m == nil {
		return ""
	}
	return strings.TrimSpace(m[1])
}

// BuildEmail drafts the application email. Contact details stay as placeholders for the user.
func BuildEmail(company, title, cover, name string) (subject, body string) {
	subject = fmt.Sprintf("Application: %s at %s", title, company)
	if strings.TrimSpace(cover) == "" {
		cover = fmt.Sprintf("I am writing to express my interest in the %s role at %s.", title, company)
	}
	if strings.TrimSpace(name) == "" {
		name = "[Name]"
	}
	body = fmt.Sprintf("Dear Hiring Team at %s,\n\n%s\n\nKind regards,\n%s\n[Email] | [Phone]\n", company, cover, name)
	return subject, body
}
