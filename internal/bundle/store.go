package bundle

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"
)

const (
	FileTailored     = "tailored.txt"
	FileEmailSubject = "email_subject.txt"
	FileEmailBody    = "email_body.txt"
	FileCVVariant    = "cv_variant.txt"
	FileJobInfo      = "job_info.txt"
	FileMeta         = "job.json"

	timestampLayout = "20060102-150405"
)

var ErrNotFound = errors.New("bundle not found")

// Meta is the job snapshot written next to the generated files.
type Meta struct {
	JobID     uint      `json:"job_id"`
	Company   string    `json:"company"`
	Title     string    `json:"title"`
	ApplyURL  string    `json:"apply_url"`
	Variant   string    `json:"variant"`
	CreatedAt time.Time `json:"created_at"`
}

// Content is what the tailoring step produced for one job.
type Content struct {
	Tailored    string
	Subject     string
	Body        string
	Variant     string
	VariantFile string
}

// Bundle is one generated directory found on disk.
type Bundle struct {
	Dir     string
	Meta    Meta
	HasMeta bool
	ModTime time.Time
}

// Store is an append-only tree of bundles: <root>/<timestamp>/<slug>/.
type Store struct {
	Root string
	Now  func() time.Time
}

func NewStore(root string) *Store {
	return &Store{Root: root, Now: time.Now}
}

// Slug is the directory name for a company/title pair.
// Distinct jobs can share a slug; job.json tells them apart.
func Slug(company, title string) string {
	s := strings.TrimSpace(company) + "_" + strings.TrimSpace(title)
	s = strings.ReplaceAll(s, " ", "_")
	s = strings.ReplaceAll(s, "/", "-")
	s = strings.ReplaceAll(s, `\`, "-")
	return s
}

// Write creates a new bundle directory and returns its path. It never reuses a directory.
func (s *Store) Write(meta Meta, c Content) (string, error) {
	if meta.Company == "" && meta.Title == "" {
		return "", fmt.Errorf("bundle needs a company or title")
	}
	now := s.Now()
	if meta.CreatedAt.IsZero() {
		meta.CreatedAt = now.UTC()
	}
	if meta.Variant == "" {
		meta.Variant = c.Variant
	}

	dir, err := s.mkdirUnique(now.Format(timestampLayout), Slug(meta.Company, meta.Title))
	if err != nil {
		return "", err
	}

	metaJSON, err := json.MarshalIndent(meta, "", "  ")
	if err != nil {
		_ = os.RemoveAll(dir)
		return "", fmt.Errorf("encode bundle meta: %w", err)
	}

	files := []struct {
		name string
		data string
	}{
		{FileTailored, c.Tailored},
		{FileEmailSubject, c.Subject},
		{FileEmailBody, c.Body},
		{FileCVVariant, c.Variant + "\n" + c.VariantFile},
		{FileJobInfo, fmt.Sprintf("Company: %s\nTitle: %s\nURL: %s", meta.Company, meta.Title, meta.ApplyURL)},
		{FileMeta, string(metaJSON)},
	}
	for _, f := range files {
		if err := os.WriteFile(filepath.Join(dir, f.name), []byte(f.data), 0o644); err != nil {
			// no half-written bundles
			_ = os.RemoveAll(dir)
			return "", fmt.Errorf("write %s: %w", f.name, err)
		}
	}
	return dir, nil
}

func (s *Store) mkdirUnique(stamp, slug string) (string, error) {
	for i := 1; i < 100; i++ {
		parent := stamp
		if i > 1 {
			parent = fmt.Sprintf("%s_%d", stamp, i)
		}
		if err := os.MkdirAll(filepath.Join(s.Root, parent), 0o755); err != nil {
			return "", fmt.Errorf("create bundle root: %w", err)
		}
		dir := filepath.Join(s.Root, parent, slug)
		err := os.Mkdir(dir, 0o755)
		if err == nil {
			return dir, nil
		}
		if !os.IsExist(err) {
			return "", fmt.Errorf("create bundle dir: %w", err)
		}
	}
	return "", fmt.Errorf("too many bundles for %s in %s", slug, stamp)
}

// Latest finds the newest bundle for a job. Directories whose name contains the slug are
// candidates; those whose job.json belongs to a different job are dropped.
func (s *Store) Latest(jobID uint, company, title string) (Bundle, error) {
	if strings.TrimSpace(company) == "" && strings.TrimSpace(title) == "" {
		return Bundle{}, ErrNotFound
	}
	slug := Slug(company, title)

	paths, err := filepath.Glob(filepath.Join(s.Root, "*", "*"))
	if err != nil {
		return Bundle{}, fmt.Errorf("scan bundles: %w", err)
	}

	var found []Bundle
	for _, p := range paths {
		if !strings.Contains(filepath.Base(p), slug) {
			continue
		}
		info, err := os.Stat(p)
		if err != nil || !info.IsDir() {
			continue
		}
		b := Bundle{Dir: p, ModTime: info.ModTime()}
		if meta, ok := readMeta(p); ok {
			if jobID != 0 && meta.JobID != 0 && meta.JobID != jobID {
				continue
			}
			b.Meta, b.HasMeta = meta, true
		}
		found = append(found, b)
	}
	if len(found) == 0 {
		return Bundle{}, ErrNotFound
	}

	sort.Slice(found, func(i, j int) bool {
		if !found[i].ModTime.Equal(found[j].ModTime) {
			return found[i].ModTime.After(found[j].ModTime)
		}
		return found[i].Dir > found[j].Dir
	})
	return found[0], nil
}

func readMeta(dir string) (Meta, bool) {
	data, err := os.ReadFile(filepath.Join(dir, FileMeta))
	if err != nil {
		return Meta{}, false
	}
	var m Meta
	if err := json.Unmarshal(data, &m); err != nil {
		return Meta{}, false
	}
	return m, true
}

// ReadEmailBody returns the email draft of a bundle, or "" when the bundle has none.
func ReadEmailBody(dir string) (string, error) {
	data, err := os.ReadFile(filepath.Join(dir, FileEmailBody))
	if err != nil {
		if os.IsNotExist(err) {
			return "", nil
		}
		return "", err
	}
	return string(data), nil
}

// ReadCVVariant returns the variant name and CV file recorded in cv_variant.txt.
func ReadCVVariant(dir string) (variant, file string, err error) {
	data, err := os.ReadFile(filepath.Join(dir, FileCVVariant))
	if err != nil {
		if os.IsNotExist(err) {
			return "", "", nil
		}
		return "", "", err
	}
	lines := strings.Split(strings.TrimSpace(string(data)), "\n")
	variant = strings.TrimSpace(lines[0])
	if len(lines) > 1 {
		file = strings.TrimSpace(lines[1])
	}
	return variant, file, nil
}
