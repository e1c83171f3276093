// Package jobmgr runs named background jobs under a shared parent context
// and tracks which of them are still alive.
//
// Typical usage:
//
//	jm := jobmgr.NewManager(logger)
//	_ = jm.StartAsync(ctx, "node", client.Run)
//	...
//	jm.Wait() // after ctx is cancelled
package jobmgr

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/rs/zerolog"
)

// Job represents a running unit of work.
// Jobs are added and removed by Manager automatically.
type Job struct {
	Name   string
	Cancel context.CancelFunc
}

// Manager orchestrates starting, stopping and tracking jobs.
// It is safe for concurrent use.
type Manager struct {
	mu   sync.Mutex
	jobs map[string]*Job
	wg   sync.WaitGroup
	log  zerolog.Logger
}

// NewManager creates a new Manager that reports job lifecycles to logger.
func NewManager(logger zerolog.Logger) *Manager {
	return &Manager{
		jobs: make(map[string]*Job),
		log:  logger.With().Str("component", "jobs").Logger(),
	}
}

// StartAsync runs a job in a separate goroutine and returns immediately.
// The job's context is derived from ctx. If a job with the same name is
// already running, an error is returned. Jobs are removed automatically
// after completion.
func (m *Manager) StartAsync(ctx context.Context, name string, runner func(ctx context.Context) error) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, exists := m.jobs[name]; exists {
		return fmt.Errorf("job '%s' is already running", name)
	}

	jobCtx, cancel := context.WithCancel(ctx)
	job := &Job{Name: name, Cancel: cancel}
	m.jobs[name] = job

	m.wg.Add(1)
	go func() {
		defer m.wg.Done()
		defer cancel()
		m.log.Debug().Str("job", name).Msg("running")

		err := runner(jobCtx)
		switch {
		case err != nil && !errors.Is(err, context.Canceled):
			m.log.Error().Err(err).Str("job", name).Msg("job failed")
		default:
			m.log.Debug().Str("job", name).Msg("done")
		}

		m.mu.Lock()
		if m.jobs[name] == job {
			delete(m.jobs, name)
		}
		m.mu.Unlock()
	}()
	return nil
}

// Stop cancels a running job by name.
// If the job is not running, an error is returned.
func (m *Manager) Stop(name string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	job, ok := m.jobs[name]
	if !ok {
		return fmt.Errorf("job '%s' not running", name)
	}
	job.Cancel()
	delete(m.jobs, name)
	return nil
}

// List returns the sorted names of active jobs.
func (m *Manager) List() []string {
	m.mu.Lock()
	defer m.mu.Unlock()

	out := make([]string, 0, len(m.jobs))
	for k := range m.jobs {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

// Status returns a human-readable summary of active jobs.
func (m *Manager) Status() string {
	active := m.List()
	if len(active) == 0 {
		return "No jobs are running."
	}
	return fmt.Sprintf("Running jobs: %s", strings.Join(active, ", "))
}

// Wait blocks until every started job has returned.
func (m *Manager) Wait() {
	m.wg.Wait()
}
