// Package broadcast reads one producer byte stream (the encoder child's
// stdout) and fans it out to an unbounded, mutable set of viewers, each
// isolated by its own bounded queue (§4.5). A misbehaving viewer is evicted
// rather than allowed to stall the broadcast — the defining property of
// this component.
package broadcast

import (
	"io"
	"log/slog"
	"sync"

	"github.com/google/uuid"
)

// ViewerQueueDepth is the bound on a viewer's pending-chunk backlog (§3).
const ViewerQueueDepth = 100

// ChunkSize is the fixed read size from the child's stdout (§4.5).
const ChunkSize = 64 * 1024

// Viewer is an opaque handle a connected client reads chunks from. Viewers
// never reference the Broadcaster — they are registered and looked up only
// through it, mirroring the teacher's client-registry pattern (§9's
// "registration pattern" design note).
type Viewer struct {
	ID          uuid.UUID
	ConnectedAt int64 // unix nanos, stamped by the caller at registration

	ch     chan []byte
	closed chan struct{}
	once   sync.Once
}

// Chan returns the channel a viewer's HTTP handler should range over to
// receive chunks in order.
func (v *Viewer) Chan() <-chan []byte { return v.ch }

// Closed reports whether the broadcaster has evicted this viewer or the
// broadcaster itself has shut down.
func (v *Viewer) Closed() <-chan struct{} { return v.closed }

func (v *Viewer) evict() {
	v.once.Do(func() { close(v.closed) })
}

// Broadcaster owns the viewer registry and the single read loop over the
// current child's stdout.
type Broadcaster struct {
	logger *slog.Logger

	mu      sync.RWMutex
	viewers map[uuid.UUID]*Viewer

	stopReader chan struct{}
	readerDone chan struct{}

	totalBytes uint64
	bytesMu    sync.Mutex
}

// New constructs an empty Broadcaster with no active reader.
func New(logger *slog.Logger) *Broadcaster {
	if logger == nil {
		logger = slog.Default()
	}
	return &Broadcaster{
		logger:  logger,
		viewers: make(map[uuid.UUID]*Viewer),
	}
}

// Attach registers a new viewer and returns its handle. The viewer receives
// every chunk read from the moment of attachment onward — no historical
// replay (§5's ordering guarantee).
func (b *Broadcaster) Attach(connectedAtUnixNano int64) *Viewer {
	v := &Viewer{
		ID:          uuid.New(),
		ConnectedAt: connectedAtUnixNano,
		ch:          make(chan []byte, ViewerQueueDepth),
		closed:      make(chan struct{}),
	}
	b.mu.Lock()
	b.viewers[v.ID] = v
	b.mu.Unlock()
	return v
}

// Detach removes a viewer, e.g. on client disconnect. Idempotent.
func (b *Broadcaster) Detach(id uuid.UUID) {
	b.mu.Lock()
	v, ok := b.viewers[id]
	if ok {
		delete(b.viewers, id)
	}
	b.mu.Unlock()
	if ok {
		v.evict()
	}
}

// ViewerCount returns the number of currently attached viewers.
func (b *Broadcaster) ViewerCount() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.viewers)
}

// ClearViewers evicts every currently attached viewer, used when the
// supervisor gives up on a crash-looping child (§4.8) or on explicit stop.
func (b *Broadcaster) ClearViewers() {
	b.mu.Lock()
	viewers := make([]*Viewer, 0, len(b.viewers))
	for _, v := range b.viewers {
		viewers = append(viewers, v)
	}
	b.viewers = make(map[uuid.UUID]*Viewer)
	b.mu.Unlock()

	for _, v := range viewers {
		v.evict()
	}
}

// TotalBytes returns the cumulative byte count read from the current
// child's stdout since the last ResetByteCount, used by the watchdog's
// size-exceeded check (§4.6).
func (b *Broadcaster) TotalBytes() uint64 {
	b.bytesMu.Lock()
	defer b.bytesMu.Unlock()
	return b.totalBytes
}

// ResetByteCount zeroes the cumulative byte counter, called after a recycle
// or fresh start so the size bound applies per child instance.
func (b *Broadcaster) ResetByteCount() {
	b.bytesMu.Lock()
	b.totalBytes = 0
	b.bytesMu.Unlock()
}

// ReadFrom starts (or restarts) the single read loop over r, stopping any
// previously running loop first. It returns immediately; the loop runs in
// its own goroutine until r returns an error/EOF or StopReading is called.
// onEOF is invoked at most once, from the reader goroutine, when r returns
// an error before StopReading was called; an error that arrives after
// StopReading (e.g. a replaced child's pipe closing) is not reported. The
// callback is informational: the supervisor's restart/give-up policy
// (§4.8) watches the child process itself, not this callback.
func (b *Broadcaster) ReadFrom(r io.ReadCloser, onEOF func(err error)) {
	b.StopReading()

	stop := make(chan struct{})
	done := make(chan struct{})
	b.mu.Lock()
	b.stopReader = stop
	b.readerDone = done
	b.mu.Unlock()

	go b.readLoop(r, stop, done, onEOF)
}

// StopReading halts the current read loop, if any, and waits for it to
// finish. Safe to call when no loop is running.
func (b *Broadcaster) StopReading() {
	b.mu.Lock()
	stop := b.stopReader
	done := b.readerDone
	b.stopReader = nil
	b.readerDone = nil
	b.mu.Unlock()

	if stop == nil {
		return
	}
	close(stop)
	<-done
}

func (b *Broadcaster) readLoop(r io.ReadCloser, stop, done chan struct{}, onEOF func(err error)) {
	defer close(done)
	defer r.Close()

	buf := make([]byte, ChunkSize)
	var planned bool
	for {
		select {
		case <-stop:
			planned = true
			return
		default:
		}

		n, err := r.Read(buf)
		if n > 0 {
			chunk := make([]byte, n)
			copy(chunk, buf[:n])
			b.distribute(chunk)

			b.bytesMu.Lock()
			b.totalBytes += uint64(n)
			b.bytesMu.Unlock()
		}
		if err != nil {
			select {
			case <-stop:
				planned = true
			default:
			}
			if !planned && onEOF != nil {
				onEOF(err)
			}
			return
		}
	}
}

// distribute snapshots the viewer set under a read lock and performs a
// non-blocking send to each; a viewer whose queue is full is evicted
// instead of blocking the whole broadcast (§4.5's backpressure policy).
func (b *Broadcaster) distribute(chunk []byte) {
	b.mu.RLock()
	snapshot := make([]*Viewer, 0, len(b.viewers))
	for _, v := range b.viewers {
		snapshot = append(snapshot, v)
	}
	b.mu.RUnlock()

	var overrun []uuid.UUID
	for _, v := range snapshot {
		select {
		case v.ch <- chunk:
		default:
			overrun = append(overrun, v.ID)
		}
	}
	for _, id := range overrun {
		b.logger.Debug("evicting viewer with full queue", slog.String("viewer_id", id.String()))
		b.Detach(id)
	}
}
