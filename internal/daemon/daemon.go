// Package daemon supervises long-running background tasks and restarts them
// when they fail.
package daemon

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

const restartDelay = 2 * time.Second

// TaskFunc is the work a daemon does. It runs until the context is done or
// it returns; a non-nil error triggers a supervised restart.
type TaskFunc func(ctx context.Context, name string) error

// Manager supervises multiple daemons.
type Manager struct {
	logger *slog.Logger
	tasks  map[string]TaskFunc
	wg     sync.WaitGroup
}

func NewManager(logger *slog.Logger) *Manager {
	return &Manager{
		logger: logger.With("component", "daemon"),
		tasks:  make(map[string]TaskFunc),
	}
}

// Add registers a daemon by name.
func (m *Manager) Add(name string, fn TaskFunc) {
	m.tasks[name] = fn
}

// Start runs all daemons and restarts them if they crash.
func (m *Manager) Start(ctx context.Context) {
	for name, fn := range m.tasks {
		m.wg.Add(1)
		go m.run(ctx, name, fn)
	}
}

// Wait blocks until all daemons have stopped.
func (m *Manager) Wait() {
	m.wg.Wait()
}

func (m *Manager) run(ctx context.Context, name string, fn TaskFunc) {
	defer m.wg.Done()

	for {
		select {
		case <-ctx.Done():
			m.logger.Info("Daemon received shutdown signal", "daemon", name)
			return
		default:
			err := fn(ctx, name)
			if err != nil {
				m.logger.Error("Daemon crashed, restarting", "daemon", name, "error", err, "delay", restartDelay)
				select {
				case <-ctx.Done():
					return
				case <-time.After(restartDelay):
				}
				continue
			}
			m.logger.Info("Daemon exited cleanly", "daemon", name)
			return
		}
	}
}
