package sweeper

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/sirupsen/logrus"
)

// Job deletes expired rows and returns how many were removed.
type Job func(ctx context.Context) (int64, error)

// Scheduler runs retention jobs on cron patterns ("@every 1h", "0 3 * * *").
type Scheduler struct {
	cron    *cron.Cron
	timeout time.Duration
	mu      sync.Mutex
	jobs    map[string]cron.EntryID
}

func New(timeout time.Duration) *Scheduler {
	parser := cron.NewParser(cron.SecondOptional | cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor)
	if timeout <= 0 {
		timeout = time.Minute
	}
	return &Scheduler{
		cron:    cron.New(cron.WithParser(parser)),
		timeout: timeout,
		jobs:    map[string]cron.EntryID{},
	}
}

func (s *Scheduler) Add(name, pattern string, job Job) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.jobs[name]; ok {
		return fmt.Errorf("sweep job %q already registered", name)
	}
	entryID, err := s.cron.AddFunc(pattern, func() { s.Run(name, job) })
	if err != nil {
		return fmt.Errorf("invalid schedule %q for %s: %w", pattern, name, err)
	}
	s.jobs[name] = entryID
	return nil
}

// Run executes one job synchronously. Panics are logged.
func (s *Scheduler) Run(name string, job Job) {
	defer func() {
		if r := recover(); r != nil {
			logrus.Errorf("[SWEEPER] job %s panicked: %v", name, r)
		}
	}()

	ctx, cancel := context.WithTimeout(context.Background(), s.timeout)
	defer cancel()

	start := time.Now()
	deleted, err := job(ctx)
	log := logrus.WithFields(logrus.Fields{"job": name, "duration_ms": time.Since(start).Milliseconds()})
	if err != nil {
		log.WithError(err).Warn("[SWEEPER] job failed")
		return
	}
	log.WithField("deleted", deleted).Debug("[SWEEPER] job finished")
}

func (s *Scheduler) Start() {
	s.cron.Start()
}

// Stop waits for running jobs to finish.
func (s *Scheduler) Stop() {
	<-s.cron.Stop().Done()
}

func (s *Scheduler) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.jobs)
}
