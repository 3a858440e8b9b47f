package persistence

import (
	"errors"
	"log"
	"sync"
	"time"

	"github.com/zeebo/xxh3"

	"wsjtxassist/callsign"
	"wsjtxassist/internal/ratelimit"
	"wsjtxassist/logparse"
)

// ErrQueueFull is returned by Submit when the callsign's shard has no room.
var ErrQueueFull = errors.New("persistence: writer queue is full")

// Recorder is what the Writer persists through; *Filter satisfies it.
type Recorder interface {
	Record(c logparse.Contact, s State) error
}

const (
	defaultWriterWorkers = 2
	defaultWriterDepth   = 256
	failureLogInterval   = 10 * time.Second
)

type writeJob struct {
	contact logparse.Contact
	state   State
}

// Writer moves Record calls off the caller's goroutine. Jobs are sharded by a
// hash of the callsign so writes for one station keep their submission order.
type Writer struct {
	target   Recorder
	shards   []chan writeJob
	wg       sync.WaitGroup
	failures *ratelimit.Counter

	mu     sync.RWMutex
	closed bool

	// OnDone, when set before the first Submit, sees every finished job.
	OnDone func(c logparse.Contact, s State, err error)
}

// NewWriter starts workers goroutines, each with a queue of depth jobs.
// Non-positive arguments take defaults.
func NewWriter(target Recorder, workers, depth int) *Writer {
	if workers <= 0 {
		workers = defaultWriterWorkers
	}
	if depth <= 0 {
		depth = defaultWriterDepth
	}
	w := &Writer{
		target:   target,
		shards:   make([]chan writeJob, workers),
		failures: ratelimit.NewCounter(failureLogInterval),
	}
	for i := range w.shards {
		w.shards[i] = make(chan writeJob, depth)
		w.wg.Add(1)
		go w.work(w.shards[i])
	}
	return w
}

// Submit queues a record without blocking. It returns ErrQueueFull when the
// shard is saturated and errStoreClosed after Close.
func (w *Writer) Submit(c logparse.Contact, s State) error {
	call := callsign.Normalize(c.Callsign)
	if call == "" {
		return errEmptyCall
	}
	w.mu.RLock()
	defer w.mu.RUnlock()
	if w.closed {
		return errStoreClosed
	}
	shard := w.shards[xxh3.HashString(call)%uint64(len(w.shards))]
	select {
	case shard <- writeJob{contact: c, state: s}:
		return nil
	default:
		return ErrQueueFull
	}
}

// Close stops accepting jobs and waits for queued ones to finish.
func (w *Writer) Close() {
	w.mu.Lock()
	if w.closed {
		w.mu.Unlock()
		return
	}
	w.closed = true
	for _, shard := range w.shards {
		close(shard)
	}
	w.mu.Unlock()
	w.wg.Wait()
}

func (w *Writer) work(jobs <-chan writeJob) {
	defer w.wg.Done()
	for job := range jobs {
		err := w.target.Record(job.contact, job.state)
		if err != nil {
			if skipped, ok := w.failures.Inc(time.Now()); ok {
				log.Printf("Writer: failed to record %s as %s: %v (%d more failures not shown)", job.contact.Callsign, job.state, err, skipped)
			}
		}
		if w.OnDone != nil {
			w.OnDone(job.contact, job.state, err)
		}
	}
}
