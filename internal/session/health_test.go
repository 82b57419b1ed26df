package session

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

type fakeChecker struct {
	status string
	err    error
	calls  atomic.Int32
}

func (f *fakeChecker) Health(context.Context) (string, error) {
	f.calls.Add(1)
	if f.err != nil {
		return "", f.err
	}
	return f.status, nil
}

func TestHealthMonitorRecordsStatus(t *testing.T) {
	checker := &fakeChecker{status: "up"}
	m := NewHealthMonitor(checker, time.Hour, nil)
	defer m.Stop()

	// The first probe runs immediately; give it a moment to land.
	assert.Eventually(t, func() bool {
		return m.Current().Status == "up"
	}, time.Second, 10*time.Millisecond)

	health := m.Current()
	assert.Empty(t, health.LastError)
	assert.False(t, health.LastCheck.IsZero())
}

func TestHealthMonitorRecordsFailure(t *testing.T) {
	checker := &fakeChecker{err: errors.New("connection refused")}
	m := NewHealthMonitor(checker, time.Hour, nil)
	defer m.Stop()

	assert.Eventually(t, func() bool {
		return m.Current().Status == "down"
	}, time.Second, 10*time.Millisecond)

	assert.Contains(t, m.Current().LastError, "connection refused")
}

func TestHealthMonitorStopIsIdempotent(t *testing.T) {
	m := NewHealthMonitor(&fakeChecker{status: "up"}, time.Hour, nil)
	m.Stop()
	m.Stop()
}
