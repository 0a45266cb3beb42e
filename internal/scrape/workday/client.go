package workday

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"time"

	"jobwatch-engine/internal/domain"
	"jobwatch-engine/internal/scrape/util"
)

const (
	DefaultPageSize = 20
	DefaultMaxPages = 50
	DefaultTimeout  = 10 * time.Second

	maxBodyBytes = 8 << 20
)

type WDRequest struct {
	AppliedFacets map[string]any `json:"appliedFacets"`
	Limit         int            `json:"limit"`
	Offset        int            `json:"offset"`
	SearchText    string         `json:"searchText"`
}

type WDResponse struct {
	Total       int               `json:"total"`
	JobPostings *[]domain.Posting `json:"jobPostings"`
}

// SearchQuery is the unit of one page fetch.
type SearchQuery struct {
	Employer   string
	SearchText string
	Limit      int
	Offset     int
}

type Options struct {
	PageSize  int
	MaxPages  int
	Timeout   time.Duration // per request attempt
	UserAgent string
	Retry     RetryPolicy
	Limiter   *util.HostLimiter
	// Transport is swapped out in tests.
	Transport http.RoundTripper
}

type Client struct {
	hc       *http.Client
	limiter  *util.HostLimiter
	retry    RetryPolicy
	pageSize int
	maxPages int
	timeout  time.Duration
	ua       string
}

func New(opts Options) *Client {
	if opts.PageSize <= 0 {
		opts.PageSize = DefaultPageSize
	}
	if opts.MaxPages <= 0 {
		opts.MaxPages = DefaultMaxPages
	}
	if opts.Timeout <= 0 {
		opts.Timeout = DefaultTimeout
	}
	if opts.UserAgent == "" {
		opts.UserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64)"
	}
	if opts.Retry.MaxAttempts <= 0 {
		opts.Retry = DefaultRetryPolicy()
	}
	return &Client{
		hc:       &http.Client{Timeout: opts.Timeout, Transport: opts.Transport},
		limiter:  opts.Limiter,
		retry:    opts.Retry,
		pageSize: opts.PageSize,
		maxPages: opts.MaxPages,
		timeout:  opts.Timeout,
		ua:       opts.UserAgent,
	}
}

func (c *Client) PageSize() int { return c.pageSize }
func (c *Client) MaxPages() int { return c.maxPages }

// PageStats summarizes one Paginate call.
type PageStats struct {
	Pages    int // page fetches issued, including a failed last one
	Postings int
}

// Paginate walks the search results for term from offset 0 and hands every
// posting to fn in response order. It stops at the first empty page or after
// MaxPages pages. A failed page ends the walk with an error; postings from
// earlier pages have already been delivered.
func (c *Client) Paginate(ctx context.Context, endpoint, employer, term string, fn func(domain.Posting)) (PageStats, error) {
	var st PageStats
	for page := 0; page < c.maxPages; page++ {
		if err := ctx.Err(); err != nil {
			return st, err
		}

		q := SearchQuery{
			Employer:   employer,
			SearchText: term,
			Limit:      c.pageSize,
			Offset:     page * c.pageSize,
		}
		st.Pages++
		postings, err := c.FetchPage(ctx, endpoint, q)
		if err != nil {
			return st, fmt.Errorf("page %d offset %d: %w", page+1, q.Offset, err)
		}
		if len(postings) == 0 {
			return st, nil
		}
		for _, p := range postings {
			fn(p)
		}
		st.Postings += len(postings)
	}
	log.Printf("[workday] employer=%q term=%q stopped at max_pages=%d", employer, term, c.maxPages)
	return st, nil
}

// FetchPage issues one search request, retrying transient failures per the
// retry policy. Malformed bodies are not retried.
func (c *Client) FetchPage(ctx context.Context, endpoint string, q SearchQuery) ([]domain.Posting, error) {
	payload, err := json.Marshal(WDRequest{
		AppliedFacets: map[string]any{},
		Limit:         q.Limit,
		Offset:        q.Offset,
		SearchText:    q.SearchText,
	})
	if err != nil {
		return nil, err
	}

	var data []byte
	for attempt := 1; ; attempt++ {
		data, err = c.post(ctx, endpoint, payload)
		if err == nil {
			break
		}
		if !c.retry.Retryable(ctx, err) {
			return nil, err
		}
		if attempt >= c.retry.MaxAttempts {
			return nil, fmt.Errorf("%w after %d attempts: %w", ErrRetriesExhausted, attempt, err)
		}
		wait := c.retry.Backoff(attempt)
		log.Printf("[workday] employer=%q offset=%d attempt=%d retry_in=%s err=%v", q.Employer, q.Offset, attempt, wait, err)
		if err := sleepCtx(ctx, wait); err != nil {
			return nil, err
		}
	}

	var jr WDResponse
	if err := json.Unmarshal(data, &jr); err != nil {
		return nil, malformed(err.Error(), data)
	}
	if jr.JobPostings == nil {
		return nil, malformed("missing jobPostings", data)
	}
	return *jr.JobPostings, nil
}

func (c *Client) post(ctx context.Context, endpoint string, payload []byte) ([]byte, error) {
	if err := c.limiter.WaitURL(ctx, endpoint); err != nil {
		return nil, err
	}

	actx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(actx, http.MethodPost, endpoint, bytes.NewReader(payload))
	if err != nil {
		return nil, err
	}
	req.Header.Set("User-Agent", c.ua)
	req.Header.Set("Accept", "application/json")
	req.Header.Set("Content-Type", "application/json")
	// postedOn is localized; freshness detection expects English.
	req.Header.Set("Accept-Language", "en-US")

	res, err := c.hc.Do(req)
	if err != nil {
		return nil, fmt.Errorf("workday post jobs: %w", err)
	}
	defer res.Body.Close()

	data, err := io.ReadAll(io.LimitReader(res.Body, maxBodyBytes))
	if err != nil {
		return nil, fmt.Errorf("workday read body: %w", err)
	}

	if res.StatusCode < 200 || res.StatusCode > 299 {
		return nil, &StatusError{
			Status: res.StatusCode,
			Server: res.Header.Get("Server"),
			CFRay:  res.Header.Get("CF-RAY"),
			Body:   truncate(string(data), 240),
			Title:  htmlTitle(data),
		}
	}
	return data, nil
}
