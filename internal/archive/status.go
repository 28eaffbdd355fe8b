package archive

import (
	"errors"
	"sync"
	"time"
)

// ErrBusy is returned by Begin while a batch is already running.
var ErrBusy = errors.New("a download is already in progress")

// Status is the observable state of the bulk download control.
type Status int

const (
	StatusIdle Status = iota
	StatusDownloading
	StatusZipping
	StatusSuccess
	StatusError
)

func (s Status) String() string {
	switch s {
	case StatusIdle:
		return "idle"
	case StatusDownloading:
		return "downloading"
	case StatusZipping:
		return "zipping"
	case StatusSuccess:
		return "success"
	case StatusError:
		return "error"
	}
	return "unknown"
}

// DefaultResetDelay is how long success or error stays visible.
const DefaultResetDelay = 2 * time.Second

// StatusTracker guards against duplicate submission and always falls back
// to idle after a finished batch.
type StatusTracker struct {
	ResetDelay time.Duration
	// OnChange, if set, is called outside the lock on every change.
	OnChange func(Status)

	mu     sync.Mutex
	status Status
	epoch  uint64
	timer  *time.Timer
}

// NewStatusTracker returns an idle tracker.
func NewStatusTracker(resetDelay time.Duration) *StatusTracker {
	return &StatusTracker{ResetDelay: resetDelay}
}

// Status returns the current status.
func (t *StatusTracker) Status() Status {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.status
}

// Begin moves idle to downloading. Any other state yields ErrBusy.
// A pending reset from the previous batch is skipped over: success and
// error count as finished, so a new batch may start right away.
func (t *StatusTracker) Begin() error {
	t.mu.Lock()
	if t.status == StatusDownloading || t.status == StatusZipping {
		t.mu.Unlock()
		return ErrBusy
	}
	if t.timer != nil {
		t.timer.Stop()
		t.timer = nil
	}
	t.epoch++
	t.status = StatusDownloading
	t.mu.Unlock()
	t.notify(StatusDownloading)
	return nil
}

// Zipping marks the archive assembly step.
func (t *StatusTracker) Zipping() {
	t.set(StatusZipping)
}

// Finish records the outcome and schedules the return to idle.
func (t *StatusTracker) Finish(err error) {
	final := StatusSuccess
	if err != nil {
		final = StatusError
	}

	t.mu.Lock()
	t.status = final
	epoch := t.epoch
	if t.ResetDelay <= 0 {
		t.status = StatusIdle
		t.mu.Unlock()
		t.notify(final)
		t.notify(StatusIdle)
		return
	}
	t.timer = time.AfterFunc(t.ResetDelay, func() { t.reset(epoch) })
	t.mu.Unlock()
	t.notify(final)
}

func (t *StatusTracker) reset(epoch uint64) {
	t.mu.Lock()
	if t.epoch != epoch || (t.status != StatusSuccess && t.status != StatusError) {
		t.mu.Unlock()
		return
	}
	t.status = StatusIdle
	t.timer = nil
	t.mu.Unlock()
	t.notify(StatusIdle)
}

func (t *StatusTracker) set(s Status) {
	t.mu.Lock()
	t.status = s
	t.mu.Unlock()
	t.notify(s)
}

func (t *StatusTracker) notify(s Status) {
	if t.OnChange != nil {
		t.OnChange(s)
	}
}
