// Package notify delivers alerts for matched postings.
package notify

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"
)

// Alert is one matched posting as seen by a transport.
type Alert struct {
	Employer string `json:"employer"`
	Title    string `json:"title"`
	Location string `json:"location"`
	ApplyURL string `json:"applyUrl"`
	// Test marks the startup self-test alert.
	Test bool `json:"test,omitempty"`
}

//go:generate mockgen -destination=mocks/mock_notifier.go -package=mocks jobwatch-engine/internal/notify Notifier

// Notifier is a transport for alerts. Notify must not be retried by callers:
// a failed alert is logged and the posting stays seen.
type Notifier interface {
	Name() string
	Notify(ctx context.Context, a Alert) error
}

// selfTestTimeout bounds the startup self-test so an unresponsive
// transport cannot hold back the first scan.
const selfTestTimeout = 45 * time.Second

// SelfTest sends the placeholder alert used at startup to check the
// transports are reachable.
func SelfTest(ctx context.Context, n Notifier) error {
	ctx, cancel := context.WithTimeout(ctx, selfTestTimeout)
	defer cancel()
	if err := n.Notify(ctx, Alert{Test: true}); err != nil {
		return fmt.Errorf("notify self-test %s: %w", n.Name(), err)
	}
	log.Printf("[notify] self-test ok transport=%q", n.Name())
	return nil
}

// Multi fans an alert out to every transport. All transports are tried; the
// failures are joined.
type Multi []Notifier

func (m Multi) Name() string {
	if len(m) == 0 {
		return "none"
	}
	name := m[0].Name()
	for _, n := range m[1:] {
		name += "+" + n.Name()
	}
	return name
}

func (m Multi) Notify(ctx context.Context, a Alert) error {
	var errs []error
	for _, n := range m {
		if err := n.Notify(ctx, a); err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", n.Name(), err))
		}
	}
	return errors.Join(errs...)
}

// Log writes alerts to the process log. It is the transport of last resort
// when nothing else is configured.
type Log struct{}

func (Log) Name() string { return "log" }

func (Log) Notify(_ context.Context, a Alert) error {
	if a.Test {
		log.Printf("[notify] transport=log self-test")
		return nil
	}
	log.Printf("[notify] transport=log employer=%q title=%q location=%q url=%q", a.Employer, a.Title, a.Location, a.ApplyURL)
	return nil
}

// Subject is the alert headline shared by the text transports.
func Subject(a Alert) string {
	if a.Test {
		return "Scraper Test: Connection Successful"
	}
	return fmt.Sprintf("New %s Role: %s", a.Employer, a.Title)
}

// Body is the plain-text alert body shared by the text transports.
func Body(a Alert) string {
	if a.Test {
		return "The job watcher can deliver alerts."
	}
	return fmt.Sprintf("Role: %s\nLocation: %s\nApply: %s", a.Title, a.Location, a.ApplyURL)
}
