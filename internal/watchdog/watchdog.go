// Package watchdog runs the periodic idle-timeout and size-recycle checks
// of §4.6 against whatever owns runtime state, without knowing anything
// about HTTP, the catalog, or the filter-graph compiler.
package watchdog

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

// Controller is the minimal surface the watchdog needs from whatever owns
// runtime state (§3) — satisfied by orchestrator.Service. Keeping it this
// narrow avoids an import cycle between watchdog and orchestrator.
type Controller interface {
	// IdleCheck reports whether the current child should be stopped for
	// idleness: live, zero viewers, and now-lastActivity >= idleTimeout.
	IdleCheck(now time.Time, idleTimeout time.Duration) bool
	// SizeExceeded reports whether the current child's cumulative output
	// has exceeded maxStreamSize.
	SizeExceeded(maxStreamSize uint64) bool
	// StopForIdle transitions to idle (§4.6's "invoke supervisor stop()").
	StopForIdle(ctx context.Context)
	// RecycleForSize restarts the current child (§4.6's "invoke recycle()").
	RecycleForSize(ctx context.Context)
}

// Watchdog is a single ticker goroutine, mirroring the prototype's
// idle_watchdog thread and the teacher's cleanupLoop ticker shape.
type Watchdog struct {
	controller     Controller
	interval       time.Duration
	idleTimeout    time.Duration
	maxStreamSize  uint64
	logger         *slog.Logger

	mu      sync.Mutex
	running bool
	stopCh  chan struct{}
	doneCh  chan struct{}
}

// New constructs a Watchdog. interval is the tick period (default 5s per
// §4.6); idleTimeout and maxStreamSize are the thresholds it checks.
func New(controller Controller, interval, idleTimeout time.Duration, maxStreamSize uint64, logger *slog.Logger) *Watchdog {
	if logger == nil {
		logger = slog.Default()
	}
	if interval <= 0 {
		interval = 5 * time.Second
	}
	return &Watchdog{
		controller:    controller,
		interval:      interval,
		idleTimeout:   idleTimeout,
		maxStreamSize: maxStreamSize,
		logger:        logger,
	}
}

// Start launches the ticker goroutine. It is a no-op if already running.
func (w *Watchdog) Start(ctx context.Context) {
	w.mu.Lock()
	if w.running {
		w.mu.Unlock()
		return
	}
	w.running = true
	w.stopCh = make(chan struct{})
	w.doneCh = make(chan struct{})
	stop := w.stopCh
	done := w.doneCh
	w.mu.Unlock()

	go w.run(ctx, stop, done)
}

// Stop halts the ticker goroutine and waits for it to exit.
func (w *Watchdog) Stop() {
	w.mu.Lock()
	if !w.running {
		w.mu.Unlock()
		return
	}
	w.running = false
	stop := w.stopCh
	done := w.doneCh
	w.mu.Unlock()

	close(stop)
	<-done
}

func (w *Watchdog) run(ctx context.Context, stop, done chan struct{}) {
	defer close(done)

	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-stop:
			return
		case <-ticker.C:
			w.tick(ctx)
		}
	}
}

// tick performs the two checks of §4.6 in order. Size-exceeded is checked
// independent of idle state ("any" row in §4.7's transition table), and
// is checked before the idle check so a child that is both oversized and
// about to idle out gets recycled rather than stopped.
func (w *Watchdog) tick(ctx context.Context) {
	if w.controller.SizeExceeded(w.maxStreamSize) {
		w.logger.Info("watchdog recycling encoder child: size bound exceeded")
		w.controller.RecycleForSize(ctx)
		return
	}
	if w.controller.IdleCheck(time.Now(), w.idleTimeout) {
		w.logger.Info("watchdog stopping encoder child: idle timeout reached")
		w.controller.StopForIdle(ctx)
	}
}
