package docs

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/hubenschmidt/go-docsrag/core"
	"github.com/hubenschmidt/go-docsrag/retry"
)

// DefaultURLTemplate points at the raw Expo documentation pages.
const DefaultURLTemplate = "https://raw.githubusercontent.com/expo/expo/main/docs/pages/%s.mdx"

const maxDocumentBytes = 4 << 20

// HTTPSource fetches documents from a URL template with one %s for the id.
type HTTPSource struct {
	template   string
	maxRetries int
	client     *http.Client
}

func NewHTTPSource(template string, timeout time.Duration, maxRetries int) *HTTPSource {
	if template == "" {
		template = DefaultURLTemplate
	}
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &HTTPSource{
		template:   template,
		maxRetries: maxRetries,
		client:     &http.Client{Timeout: timeout},
	}
}

// URL returns the address id is fetched from. Path segments are escaped
// individually so nested slugs keep their slashes.
func (s *HTTPSource) URL(id string) string {
	segments := strings.Split(id, "/")
	for i, seg := range segments {
		segments[i] = url.PathEscape(seg)
	}
	return fmt.Sprintf(s.template, strings.Join(segments, "/"))
}

// StatusError is a non-2xx response from the document host.
type StatusError struct {
	URL        string
	StatusCode int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("fetch %s: status %d", e.URL, e.StatusCode)
}

func (s *HTTPSource) Fetch(ctx context.Context, id string) (string, error) {
	target := s.URL(id)
	var body string

	op := func() error {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
		if err != nil {
			return retry.Permanent(fmt.Errorf("failed to create request: %w", err))
		}

		resp, err := s.client.Do(req)
		if err != nil {
			if ctx.Err() != nil {
				return retry.Permanent(fmt.Errorf("failed to fetch URL: %w", err))
			}
			return fmt.Errorf("failed to fetch URL: %w", err)
		}
		defer resp.Body.Close()

		switch {
		case resp.StatusCode == http.StatusNotFound:
			return retry.Permanent(fmt.Errorf("%w: %s", core.ErrNotFound, target))
		case retry.TemporaryStatus(resp.StatusCode):
			return &StatusError{URL: target, StatusCode: resp.StatusCode}
		case resp.StatusCode < 200 || resp.StatusCode >= 300:
			return retry.Permanent(&StatusError{URL: target, StatusCode: resp.StatusCode})
		}

		data, err := io.ReadAll(io.LimitReader(resp.Body, maxDocumentBytes+1))
		if err != nil {
			return fmt.Errorf("failed to read response: %w", err)
		}
		if len(data) > maxDocumentBytes {
			return retry.Permanent(fmt.Errorf("document %s exceeds %d bytes", id, maxDocumentBytes))
		}
		body = string(data)
		return nil
	}

	if err := retry.Do(ctx, s.maxRetries, op); err != nil {
		return "", err
	}
	return body, nil
}
