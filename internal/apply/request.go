package apply

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net"
	"net/http"
	"net/url"
	"os"
	"path/filepath"

	"github.com/justsurfingit/job-o-matic/internal/bundle"
)

type field struct {
	name  string
	value string
}

// requester holds what both API adapters share: the http client and file resolution.
type requester struct {
	client    *http.Client
	userAgent string
	cvDir     string
}

// resumePath resolves the CV named in the bundle's cv_variant.txt, or "" when there is none on disk.
func (r requester) resumePath(bundleDir string) string {
	_, file, err := bundle.ReadCVVariant(bundleDir)
	if err != nil || file == "" {
		return ""
	}
	var candidates []string
	if filepath.IsAbs(file) {
		candidates = []string{file}
	} else {
		if r.cvDir != "" {
			candidates = append(candidates, filepath.Join(r.cvDir, file))
		}
		candidates = append(candidates, filepath.Join(bundleDir, file))
	}
	for _, p := range candidates {
		if info, err := os.Stat(p); err == nil && info.Mode().IsRegular() {
			return p
		}
	}
	return ""
}

// multipartBody encodes the form fields and, if resume is set, the resume file.
func multipartBody(fields []field, resume string) (*bytes.Buffer, string, error) {
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	for _, f := range fields {
		if err := w.WriteField(f.name, f.value); err != nil {
			return nil, "", err
		}
	}
	if resume != "" {
		if err := attachFile(w, "resume", resume); err != nil {
			return nil, "", fmt.Errorf("attach resume: %w", err)
		}
	}
	if err := w.Close(); err != nil {
		return nil, "", err
	}
	return &buf, w.FormDataContentType(), nil
}

// attachFile copies the file into the form. The handle is closed before returning on every path.
func attachFile(w *multipart.Writer, name, path string) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()

	part, err := w.CreateFormFile(name, filepath.Base(path))
	if err != nil {
		return err
	}
	_, err = io.Copy(part, f)
	return err
}

// post sends a prepared multipart request and maps the response.
func (r requester) post(ctx context.Context, platformName, endpoint string, fields []field, resume string, auth func(*http.Request)) Outcome {
	body, contentType, err := multipartBody(fields, resume)
	if err != nil {
		return failed(KindValidation, fmt.Sprintf("Could not prepare %s application: %v", platformName, err))
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, body)
	if err != nil {
		return failed(KindPlatformRejected, fmt.Sprintf("Unable to build %s request", platformName))
	}
	req.Header.Set("Content-Type", contentType)
	if r.userAgent != "" {
		req.Header.Set("User-Agent", r.userAgent)
	}
	if auth != nil {
		auth(req)
	}

	resp, err := r.client.Do(req)
	if err != nil {
		return classifyError(platformName, err)
	}
	defer resp.Body.Close()

	data, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
	return classifyResponse(platformName, resp.StatusCode, data)
}

func classifyResponse(platformName string, status int, body []byte) Outcome {
	switch {
	case status >= 200 && status < 300:
		return succeeded("Application submitted successfully to " + platformName)
	case status == http.StatusUnauthorized || status == http.StatusForbidden:
		return failed(KindAuthentication, fmt.Sprintf("Authentication failed - check your %s API key", platformName))
	case status == http.StatusNotFound || status == http.StatusGone:
		return failed(KindNotFound, "Job posting not found or no longer accepting applications")
	case status == http.StatusTooManyRequests:
		return failed(KindRateLimited, fmt.Sprintf("Rate limited by %s - try again later", platformName))
	case status == http.StatusBadRequest || status == http.StatusUnprocessableEntity:
		return failed(KindPlatformRejected, fmt.Sprintf("Invalid application data: %s", excerpt(body)))
	default:
		msg := fmt.Sprintf("%s API error: %d", platformName, status)
		if e := excerpt(body); e != "" {
			msg += " - " + e
		}
		return failed(KindPlatformRejected, msg)
	}
}

// classifyError never echoes the request URL: Lever carries the API key in the query.
func classifyError(platformName string, err error) Outcome {
	var netErr net.Error
	if errors.Is(err, context.DeadlineExceeded) || (errors.As(err, &netErr) && netErr.Timeout()) {
		return failed(KindNetwork, fmt.Sprintf("Request timed out - %s may be slow", platformName))
	}
	var urlErr *url.Error
	if errors.As(err, &urlErr) {
		err = urlErr.Err
	}
	if errors.Is(err, context.Canceled) {
		return failed(KindNetwork, fmt.Sprintf("Request to %s was cancelled", platformName))
	}
	return failed(KindNetwork, fmt.Sprintf("Connection error talking to %s: %v", platformName, err))
}

func excerpt(body []byte) string {
	s := string(bytes.TrimSpace(body))
	r := []rune(s)
	if len(r) > 100 {
		return string(r[:100])
	}
	return s
}
