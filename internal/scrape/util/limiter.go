package util

import (
	"context"
	"net/url"
	"strings"
	"sync"

	"golang.org/x/time/rate"
)

// HostLimiter paces requests per hostname, so employers hosted on different
// Workday shards (wd1, wd5, ...) do not queue behind each other. A nil
// *HostLimiter never waits.
type HostLimiter struct {
	mu     sync.Mutex
	byHost map[string]*rate.Limiter
	every  rate.Limit
	burst  int
}

// NewHostLimiter allows reqPerSec requests per second per host.
// reqPerSec <= 0 disables pacing.
func NewHostLimiter(reqPerSec float64, burst int) *HostLimiter {
	if burst < 1 {
		burst = 1
	}
	every := rate.Limit(reqPerSec)
	if reqPerSec <= 0 {
		every = rate.Inf
	}
	return &HostLimiter{
		byHost: make(map[string]*rate.Limiter),
		every:  every,
		burst:  burst,
	}
}

// WaitURL blocks until a request to raw's host may go out. Unparseable URLs
// share one bucket.
func (hl *HostLimiter) WaitURL(ctx context.Context, raw string) error {
	if hl == nil {
		return ctx.Err()
	}
	host := "_"
	if u, err := url.Parse(raw); err == nil && u.Hostname() != "" {
		host = strings.ToLower(u.Hostname())
	}
	return hl.forHost(host).Wait(ctx)
}

func (hl *HostLimiter) forHost(host string) *rate.Limiter {
	hl.mu.Lock()
	defer hl.mu.Unlock()
	lim, ok := hl.byHost[host]
	if !ok {
		lim = rate.NewLimiter(hl.every, hl.burst)
		hl.byHost[host] = lim
	}
	return lim
}

// Hosts returns how many hosts have been paced so far.
func (hl *HostLimiter) Hosts() int {
	hl.mu.Lock()
	defer hl.mu.Unlock()
	return len(hl.byHost)
}
