package workday

import (
	"errors"
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/PuerkitoBio/goquery"
)

var (
	// ErrMalformedResponse: the body was not a {"jobPostings": [...]} object.
	ErrMalformedResponse = errors.New("workday: malformed response")
	// ErrRetriesExhausted wraps the last transient error once the retry
	// policy gives up.
	ErrRetriesExhausted = errors.New("workday: retries exhausted")
)

// StatusError is a non-2xx response from the search endpoint.
type StatusError struct {
	Status int
	Server string
	CFRay  string
	Body   string // truncated
	Title  string // <title> of an HTML error page, if any
}

func (e *StatusError) Error() string {
	var b strings.Builder
	fmt.Fprintf(&b, "workday status %d", e.Status)
	if e.Server != "" || e.CFRay != "" {
		fmt.Fprintf(&b, " server=%q cfRay=%q", e.Server, e.CFRay)
	}
	if e.Title != "" {
		fmt.Fprintf(&b, " title=%q", e.Title)
	}
	fmt.Fprintf(&b, " body=%s", e.Body)
	return b.String()
}

func malformed(cause string, body []byte) error {
	if title := htmlTitle(body); title != "" {
		return fmt.Errorf("%w: %s title=%q body=%s", ErrMalformedResponse, cause, title, truncate(string(body), 240))
	}
	return fmt.Errorf("%w: %s body=%s", ErrMalformedResponse, cause, truncate(string(body), 240))
}

// htmlTitle extracts the <title> of an HTML body (Cloudflare challenges,
// maintenance pages). Non-HTML bodies yield "".
func htmlTitle(body []byte) string {
	head := strings.ToLower(strings.TrimSpace(string(body[:min(len(body), 512)])))
	if !strings.HasPrefix(head, "<!doctype html") && !strings.HasPrefix(head, "<html") && !strings.Contains(head, "<title") {
		return ""
	}
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(string(body)))
	if err != nil {
		return ""
	}
	return strings.Join(strings.Fields(doc.Find("title").First().Text()), " ")
}

func truncate(s string, max int) string {
	s = strings.ReplaceAll(s, "\n", " ")
	s = strings.ReplaceAll(s, "\r", " ")
	s = strings.TrimSpace(s)
	if len(s) <= max {
		return s
	}
	for max > 0 && !utf8.RuneStart(s[max]) {
		max--
	}
	return s[:max] + "..."
}
