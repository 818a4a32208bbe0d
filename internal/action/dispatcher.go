// Package action dispatches debounced system actions through exec-based
// plugins, decoupled from the inference path.
package action

import (
	"errors"
	"log"
	"sync"
	"time"

	"github.com/ayusman/mudra/internal/metrics"
)

// DefaultCooldown is the delay between a dispatch and its execution.
const DefaultCooldown = 3 * time.Second

// ErrUnknownAction is returned when an action ID has no route. Unknown
// actions are logged and skipped, never fatal.
var ErrUnknownAction = errors.New("unknown action")

// Runner resolves an action ID and performs it.
type Runner interface {
	Execute(actionID string) error
}

// Dispatcher schedules action execution on independent timers so that a
// dispatch call returns immediately and never blocks the caller. While a
// timer is pending for an action, repeat dispatches of the same action
// coalesce into it.
type Dispatcher struct {
	runner   Runner
	cooldown time.Duration
	coalesce bool

	mu      sync.Mutex
	pending map[string]*time.Timer
	timers  map[*time.Timer]struct{}
	stopped bool
}

// NewDispatcher creates a Dispatcher. A cooldown <= 0 falls back to
// DefaultCooldown.
func NewDispatcher(runner Runner, cooldown time.Duration, coalesce bool) *Dispatcher {
	if cooldown <= 0 {
		cooldown = DefaultCooldown
	}
	return &Dispatcher{
		runner:   runner,
		cooldown: cooldown,
		coalesce: coalesce,
		pending:  make(map[string]*time.Timer),
		timers:   make(map[*time.Timer]struct{}),
	}
}

// Dispatch schedules actionID for execution after the cooldown and
// returns immediately.
func (d *Dispatcher) Dispatch(actionID string) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.stopped {
		return
	}
	if d.coalesce {
		if _, dup := d.pending[actionID]; dup {
			return
		}
	}

	var timer *time.Timer
	timer = time.AfterFunc(d.cooldown, func() {
		d.fire(actionID, timer)
	})
	d.pending[actionID] = timer
	d.timers[timer] = struct{}{}
	metrics.ActionsDispatched.Inc()
}

func (d *Dispatcher) fire(actionID string, timer *time.Timer) {
	d.mu.Lock()
	if d.stopped {
		d.mu.Unlock()
		return
	}
	delete(d.timers, timer)
	if d.pending[actionID] == timer {
		delete(d.pending, actionID)
	}
	d.mu.Unlock()

	if err := d.runner.Execute(actionID); err != nil {
		if errors.Is(err, ErrUnknownAction) {
			log.Printf("action: skipping unknown action %q", actionID)
			return
		}
		log.Printf("action %q failed: %v", actionID, err)
	}
}

// PendingCount returns the number of timers that have not fired yet.
func (d *Dispatcher) PendingCount() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.timers)
}

// Stop cancels all pending timers. Further dispatches are ignored.
func (d *Dispatcher) Stop() {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.stopped = true
	for timer := range d.timers {
		timer.Stop()
	}
	d.timers = make(map[*time.Timer]struct{})
	d.pending = make(map[string]*time.Timer)
}
