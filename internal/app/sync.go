package app

import (
	"sync"
	"time"
)

// SyncState is the storage indicator shown to the operator. It never
// gates any operation.
type SyncState string

const (
	Synced  SyncState = "synced"
	Syncing SyncState = "syncing"
	Offline SyncState = "offline"
)

// SyncTracker follows store writes: a successful write shows Syncing for
// delay and then Synced, a failed write shows Offline until the next
// successful write or ping.
type SyncTracker struct {
	mu    sync.Mutex
	state SyncState
	delay time.Duration
	timer *time.Timer
	gen   int
}

// NewSyncTracker starts in the Synced state.
func NewSyncTracker(delay time.Duration) *SyncTracker {
	return &SyncTracker{state: Synced, delay: delay}
}

// State returns the current indicator.
func (t *SyncTracker) State() SyncState {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.state
}

// ObserveWrite implements store.WriteObserver.
func (t *SyncTracker) ObserveWrite(_, _ string, err error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.stopTimer()
	if err != nil {
		t.state = Offline
		return
	}
	if t.delay <= 0 {
		t.state = Synced
		return
	}
	t.state = Syncing
	gen := t.gen
	t.timer = time.AfterFunc(t.delay, func() {
		t.mu.Lock()
		defer t.mu.Unlock()
		if t.gen == gen && t.state == Syncing {
			t.state = Synced
		}
	})
}

// ObservePing records the result of a connectivity check.
func (t *SyncTracker) ObservePing(err error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	switch {
	case err != nil:
		t.stopTimer()
		t.state = Offline
	case t.state == Offline:
		t.state = Synced
	}
}

// Stop cancels a pending transition.
func (t *SyncTracker) Stop() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.stopTimer()
}

func (t *SyncTracker) stopTimer() {
	t.gen++
	if t.timer != nil {
		t.timer.Stop()
		t.timer = nil
	}
}
