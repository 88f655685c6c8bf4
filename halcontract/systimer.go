package halcontract

import (
	"sync"
	"time"
)

// SystemTimer is the production MicrosecondTimer backed by time.AfterFunc.
// Go has no single-word interrupt-disable primitive, so Start/Stop guard
// the underlying *time.Timer with a mutex instead of the original
// firmware's critical section around timer reattachment.
type SystemTimer struct {
	mu    sync.Mutex
	timer *time.Timer
}

func (t *SystemTimer) Start(d time.Duration, fire func()) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.timer != nil {
		t.timer.Stop()
	}
	t.timer = time.AfterFunc(d, fire)
}

func (t *SystemTimer) Stop() {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.timer != nil {
		t.timer.Stop()
		t.timer = nil
	}
}
