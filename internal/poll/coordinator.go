// Package poll runs scan cycles: load the seen set, scan every employer
// concurrently, notify new matches, persist.
package poll

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"jobwatch-engine/internal/classify"
	"jobwatch-engine/internal/domain"
	"jobwatch-engine/internal/notify"
	"jobwatch-engine/internal/scrape/util"
	"jobwatch-engine/internal/scrape/workday"
	"jobwatch-engine/internal/seen"
)

// ErrCycleRunning is returned when a cycle is requested while one is active.
var ErrCycleRunning = errors.New("poll: cycle already running")

const (
	EventPostingMatched = "posting_matched"
	EventCycleCompleted = "cycle_completed"
)

const (
	persistTimeout = 30 * time.Second
	notifyTimeout  = 60 * time.Second
)

// Fetcher pages through one employer's search results.
type Fetcher interface {
	Paginate(ctx context.Context, endpoint, employer, term string, fn func(domain.Posting)) (workday.PageStats, error)
}

type Options struct {
	Employers []domain.Employer
	Fetcher   Fetcher
	Rules     *classify.Rules
	Store     seen.Store
	Notifier  notify.Notifier
	// NamespaceIDs prefixes identifiers with the employer name.
	NamespaceIDs bool
	// NotifyTimeout bounds one alert send. Zero means 60s.
	NotifyTimeout time.Duration
	Now           func() time.Time
	// OnEvent receives posting_matched and cycle_completed events.
	OnEvent func(typ string, data any)
}

type Coordinator struct {
	opts   Options
	mu     sync.Mutex
	carry  *seen.Set // unsaved set from a cycle whose persist failed
	status statusBox
}

func New(opts Options) (*Coordinator, error) {
	if opts.Fetcher == nil || opts.Store == nil {
		return nil, errors.New("poll: fetcher and store are required")
	}
	if opts.Rules == nil {
		opts.Rules = classify.Default()
	}
	if opts.Notifier == nil {
		opts.Notifier = notify.Log{}
	}
	if opts.NotifyTimeout <= 0 {
		opts.NotifyTimeout = notifyTimeout
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.OnEvent == nil {
		opts.OnEvent = func(string, any) {}
	}
	c := &Coordinator{opts: opts}
	c.status.v.Store(Status{State: StateIdle})
	return c, nil
}

func (c *Coordinator) Status() Status { return c.status.load() }

// EmployerResult is one employer's share of a cycle.
type EmployerResult struct {
	Employer       string   `json:"employer"`
	Pages          int      `json:"pages"`
	Scanned        int      `json:"scanned"`
	Matched        int      `json:"matched"`
	// Notified counts delivered alerts; failed sends are NotifyFailures.
	Notified       int      `json:"notified"`
	Recorded       int      `json:"recorded"`
	NotifyFailures int      `json:"notifyFailures"`
	Errors         []string `json:"errors,omitempty"`
}

type CycleResult struct {
	ID          string           `json:"id"`
	StartedAt   time.Time        `json:"startedAt"`
	FinishedAt  time.Time        `json:"finishedAt"`
	Employers   []EmployerResult `json:"employers"`
	Scanned     int              `json:"scanned"`
	Notified    int              `json:"notified"`
	Recorded    int              `json:"recorded"`
	SeenEntries int              `json:"seenEntries"`
	Persisted   bool             `json:"persisted"`
}

// MatchEvent is the payload of posting_matched.
type MatchEvent struct {
	CycleID string       `json:"cycleId"`
	Alert   notify.Alert `json:"alert"`
	ID      string       `json:"id"`
	Sent    bool         `json:"sent"`
}

// RunCycle performs one scan cycle. Employer failures are reported in the
// result and do not fail the cycle; a seen-store load or save failure does.
func (c *Coordinator) RunCycle(ctx context.Context) (CycleResult, error) {
	if !c.mu.TryLock() {
		return CycleResult{}, ErrCycleRunning
	}
	defer c.mu.Unlock()

	start := c.opts.Now()
	res := CycleResult{ID: uuid.NewString(), StartedAt: start}
	today := seen.Today(start)

	c.setState(StateLoading, func(st *Status) {
		st.Running = true
		st.CycleID = res.ID
		st.LastRunAt = stamp(start)
	})
	log.Printf("[poll] cycle=%s start employers=%d", res.ID, len(c.opts.Employers))

	set, err := c.opts.Store.Load(ctx)
	if err != nil {
		err = fmt.Errorf("load seen: %w", err)
		c.finish(&res, err)
		return res, err
	}
	if c.carry != nil {
		set.Merge(c.carry)
		log.Printf("[poll] cycle=%s merged unsaved entries=%d", res.ID, c.carry.Len())
	}

	c.setState(StateScanning, nil)
	res.Employers = make([]EmployerResult, len(c.opts.Employers))

	g, gctx := errgroup.WithContext(ctx)
	for i, emp := range c.opts.Employers {
		i, emp := i, emp
		g.Go(func() error {
			res.Employers[i] = c.scanEmployer(gctx, res.ID, emp, set, today)
			return nil
		})
	}
	_ = g.Wait()

	for _, er := range res.Employers {
		res.Scanned += er.Scanned
		res.Notified += er.Notified
		res.Recorded += er.Recorded
	}

	c.setState(StatePersisting, nil)
	// Persist even when ctx was cancelled mid-scan: alerts already went out.
	pctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), persistTimeout)
	defer cancel()
	res.SeenEntries = set.Len()
	if err := c.opts.Store.Save(pctx, set); err != nil {
		c.carry = set
		err = fmt.Errorf("persist seen: %w", err)
		c.finish(&res, err)
		return res, err
	}
	c.carry = nil
	res.Persisted = true

	c.finish(&res, nil)
	return res, nil
}

func (c *Coordinator) scanEmployer(ctx context.Context, cycleID string, emp domain.Employer, set *seen.Set, today time.Time) EmployerResult {
	er := EmployerResult{Employer: emp.Name}
	terms := emp.SearchTerms
	if len(terms) == 0 {
		terms = []string{""}
	}

	for _, term := range terms {
		st, err := c.opts.Fetcher.Paginate(ctx, emp.Endpoint, emp.Name, term, func(p domain.Posting) {
			c.handle(ctx, cycleID, emp, p, set, today, &er)
		})
		er.Pages += st.Pages
		er.Scanned += st.Postings
		if err != nil {
			log.Printf("[poll] cycle=%s employer=%q term=%q scan aborted err=%v", cycleID, emp.Name, term, err)
			er.Errors = append(er.Errors, fmt.Sprintf("term %q: %v", term, err))
			if ctx.Err() != nil {
				break
			}
		}
	}

	log.Printf("[poll] cycle=%s employer=%q pages=%d scanned=%d matched=%d notified=%d recorded=%d",
		cycleID, emp.Name, er.Pages, er.Scanned, er.Matched, er.Notified, er.Recorded)
	return er
}

func (c *Coordinator) handle(ctx context.Context, cycleID string, emp domain.Employer, p domain.Posting, set *seen.Set, today time.Time, er *EmployerResult) {
	decision, _ := c.opts.Rules.Evaluate(p)
	if decision == classify.Skip {
		return
	}
	er.Matched++

	id := emp.Identifier(p, c.opts.NamespaceIDs)
	if id == "" {
		log.Printf("[poll] employer=%q title=%q skipped: empty externalPath", emp.Name, p.Title)
		return
	}
	if !set.MarkIfNew(id, today) {
		return
	}

	if decision == classify.Record {
		er.Recorded++
		return
	}

	alert := notify.Alert{
		Employer: emp.Name,
		Title:    util.CleanText(p.Title),
		Location: util.NormalizeLocation(p.LocationsText),
		ApplyURL: emp.ApplyURL(p),
	}
	nctx, cancel := context.WithTimeout(ctx, c.opts.NotifyTimeout)
	err := c.opts.Notifier.Notify(nctx, alert)
	cancel()
	sent := err == nil
	if err != nil {
		// The posting stays seen; no retry.
		er.NotifyFailures++
		log.Printf("[notify] employer=%q id=%q failed err=%v", emp.Name, id, err)
	} else {
		er.Notified++
		log.Printf("[notify] employer=%q id=%q title=%q sent", emp.Name, id, p.Title)
	}
	c.opts.OnEvent(EventPostingMatched, MatchEvent{CycleID: cycleID, Alert: alert, ID: id, Sent: sent})
}

func (c *Coordinator) setState(s State, fn func(*Status)) {
	c.status.update(func(st *Status) {
		st.State = s
		if fn != nil {
			fn(st)
		}
	})
}

func (c *Coordinator) finish(res *CycleResult, err error) {
	res.FinishedAt = c.opts.Now()
	pending := c.carry != nil

	c.setState(StateIdle, func(st *Status) {
		st.Running = false
		st.Cycles++
		st.LastScanned = res.Scanned
		st.LastNotified = res.Notified
		st.LastRecorded = res.Recorded
		st.SeenEntries = res.SeenEntries
		st.PendingPersist = pending
		if err != nil {
			st.LastError = err.Error()
		} else {
			st.LastError = ""
			st.LastOkAt = stamp(res.FinishedAt)
		}
	})

	if err != nil {
		log.Printf("[poll] cycle=%s error: %v", res.ID, err)
	} else {
		log.Printf("[poll] cycle=%s ok scanned=%d notified=%d recorded=%d seen=%d took=%s",
			res.ID, res.Scanned, res.Notified, res.Recorded, res.SeenEntries, res.FinishedAt.Sub(res.StartedAt).Round(time.Millisecond))
	}
	c.opts.OnEvent(EventCycleCompleted, *res)
}
