// Package scheduler runs a task once at start and then on a fixed interval.
package scheduler

import (
	"context"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
)

type Task func(ctx context.Context) error

// Scheduler wraps robfig/cron. A run that is still in progress when the next
// tick fires causes that tick to be skipped, so runs never overlap.
type Scheduler struct {
	cron     *cron.Cron
	name     string
	interval time.Duration
	task     Task
	wg       sync.WaitGroup
}

func New(name string, interval time.Duration, task Task) *Scheduler {
	logger := cron.PrintfLogger(log.Default())
	return &Scheduler{
		cron:     cron.New(cron.WithLogger(logger), cron.WithChain(cron.Recover(logger))),
		name:     name,
		interval: interval,
		task:     task,
	}
}

// Start schedules the task and runs it once immediately without waiting for
// the first tick.
func (s *Scheduler) Start(ctx context.Context) error {
	if s.interval < time.Second {
		return fmt.Errorf("scheduler %s: interval %s is below one second", s.name, s.interval)
	}

	logger := cron.PrintfLogger(log.Default())
	job := cron.NewChain(cron.SkipIfStillRunning(logger)).Then(cron.FuncJob(func() {
		if ctx.Err() != nil {
			return
		}
		if err := s.task(ctx); err != nil {
			log.Printf("[%s] error: %v", s.name, err)
		}
	}))

	s.cron.Schedule(cron.Every(s.interval), job)
	s.cron.Start()
	log.Printf("[scheduler] started name=%q every=%s", s.name, s.interval)

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		job.Run()
	}()
	return nil
}

// Stop halts the ticks and waits for a run in progress to return.
func (s *Scheduler) Stop() {
	<-s.cron.Stop().Done()
	s.wg.Wait()
	log.Printf("[scheduler] stopped name=%q", s.name)
}
