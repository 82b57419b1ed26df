package session

import (
	"context"
	"io"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
)

// HealthChecker is the slice of the gateway the monitor needs.
type HealthChecker interface {
	Health(ctx context.Context) (string, error)
}

// BackendHealth is the last observed status of the pricing backend.
type BackendHealth struct {
	Status    string    `json:"status"`
	LastCheck time.Time `json:"lastCheck"`
	LastError string    `json:"lastError,omitempty"`
}

// HealthMonitor polls the backend health endpoint in the background and
// keeps the last observation for the API layer to report.
type HealthMonitor struct {
	checker  HealthChecker
	logger   *logrus.Logger
	interval time.Duration

	mu     sync.RWMutex
	health BackendHealth

	stopOnce sync.Once
	stopChan chan struct{}
}

// NewHealthMonitor creates a monitor and runs an immediate first probe, then
// keeps probing at the given interval until Stop is called.
func NewHealthMonitor(checker HealthChecker, interval time.Duration, logger *logrus.Logger) *HealthMonitor {
	if interval <= 0 {
		interval = 30 * time.Second
	}
	if logger == nil {
		logger = logrus.New()
		logger.SetOutput(io.Discard)
	}

	m := &HealthMonitor{
		checker:  checker,
		logger:   logger,
		interval: interval,
		health:   BackendHealth{Status: "unknown"},
		stopChan: make(chan struct{}),
	}

	go m.run()
	return m
}

// Current returns the last observed backend health.
func (m *HealthMonitor) Current() BackendHealth {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.health
}

// Stop ends background polling. Safe to call more than once.
func (m *HealthMonitor) Stop() {
	m.stopOnce.Do(func() { close(m.stopChan) })
}

func (m *HealthMonitor) run() {
	m.probe()

	ticker := time.NewTicker(m.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			m.probe()
		case <-m.stopChan:
			return
		}
	}
}

func (m *HealthMonitor) probe() {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	status, err := m.checker.Health(ctx)

	m.mu.Lock()
	defer m.mu.Unlock()
	m.health.LastCheck = time.Now()
	if err != nil {
		m.health.Status = "down"
		m.health.LastError = err.Error()
		m.logger.WithError(err).Warn("backend health probe failed")
		return
	}
	m.health.Status = status
	m.health.LastError = ""
}
