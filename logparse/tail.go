package logparse

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"log"
	"os"
	"sync"
	"time"

	"github.com/dustin/go-humanize"

	"wsjtxassist/band"
)

const (
	// DefaultPollInterval matches the human pace of a 15/60 second decode cycle.
	DefaultPollInterval = 250 * time.Millisecond
	tailReadChunk       = 64 * 1024
	maxPendingBytes     = 1024 * 1024
)

// TailOptions tunes a Tailer. Zero values take defaults.
type TailOptions struct {
	PollInterval time.Duration
}

// Tailer follows one file from its length at construction time, feeding each
// newly appended line to its own Reader on a dedicated goroutine. Contacts are
// delivered in file order, one at a time, on that goroutine.
type Tailer struct {
	path     string
	reader   *Reader
	interval time.Duration

	stop     chan struct{}
	stopOnce sync.Once
	done     chan struct{}

	errMu sync.Mutex
	err   error

	// Owned by the run goroutine.
	file    *os.File
	info    os.FileInfo
	pos     int64
	pending []byte
	buf     []byte
}

// Purpose: Validate the path, remember its current length, and start following it.
// Key aspects: Returns as soon as the goroutine is started; no existing content is replayed.
// Upstream: LogFile.Tail, LogFile.TailBand, LogFile.TailSelector.
// Downstream: Tailer.run.
func newTailer(path string, sel band.Selector, h Handler, opts TailOptions) (*Tailer, error) {
	if err := checkRegularFile(path); err != nil {
		return nil, err
	}
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("logparse: open %s: %w", path, err)
	}
	info, err := file.Stat()
	if err != nil {
		file.Close()
		return nil, fmt.Errorf("logparse: stat %s: %w", path, err)
	}
	interval := opts.PollInterval
	if interval <= 0 {
		interval = DefaultPollInterval
	}
	t := &Tailer{
		path:     path,
		reader:   NewReader(sel, h),
		interval: interval,
		stop:     make(chan struct{}),
		done:     make(chan struct{}),
		file:     file,
		info:     info,
		pos:      info.Size(),
		buf:      make([]byte, tailReadChunk),
	}
	log.Printf("Tailer: following %s for %s bands from %s", path, sel, humanize.Bytes(uint64(t.pos)))
	go t.run()
	return t, nil
}

// Stop asks the loop to finish without waiting for it. It is safe to call more
// than once and from the delivery callback.
func (t *Tailer) Stop() {
	t.stopOnce.Do(func() {
		close(t.stop)
	})
}

// Close stops the loop and waits for it to exit; no callback runs after Close
// returns. Close must not be called from the delivery callback.
func (t *Tailer) Close() error {
	t.Stop()
	<-t.done
	return nil
}

// Done is closed once the loop has exited, whether stopped or failed.
func (t *Tailer) Done() <-chan struct{} {
	return t.done
}

// Err returns the error that ended the loop, or nil if it is running or was stopped.
func (t *Tailer) Err() error {
	t.errMu.Lock()
	defer t.errMu.Unlock()
	return t.err
}

func (t *Tailer) stopped() bool {
	select {
	case <-t.stop:
		return true
	default:
		return false
	}
}

func (t *Tailer) run() {
	defer close(t.done)
	defer func() {
		if t.file != nil {
			t.file.Close()
		}
	}()

	ticker := time.NewTicker(t.interval)
	defer ticker.Stop()
	for {
		select {
		case <-t.stop:
			log.Printf("Tailer: stopped following %s", t.path)
			return
		case <-ticker.C:
		}
		if err := t.poll(); err != nil {
			t.errMu.Lock()
			t.err = err
			t.errMu.Unlock()
			log.Printf("Tailer: problem tailing %s: %v (no further contacts from this file)", t.path, err)
			return
		}
	}
}

// poll reads whatever has been appended since the last call. A file that has
// shrunk or been replaced is followed again from its start.
func (t *Tailer) poll() error {
	info, err := os.Stat(t.path)
	if err != nil {
		return fmt.Errorf("stat: %w", err)
	}
	if !os.SameFile(info, t.info) {
		log.Printf("Tailer: %s was replaced; following the new file from the start", t.path)
		if err := t.reopen(); err != nil {
			return err
		}
	} else if info.Size() < t.pos {
		log.Printf("Tailer: %s was truncated; following from the start", t.path)
		t.pos = 0
		t.pending = t.pending[:0]
	}

	for !t.stopped() {
		n, err := t.file.ReadAt(t.buf, t.pos)
		if n > 0 {
			t.pos += int64(n)
			if err := t.consume(t.buf[:n]); err != nil {
				return err
			}
		}
		if errors.Is(err, io.EOF) || n == 0 {
			return nil
		}
		if err != nil {
			return fmt.Errorf("read: %w", err)
		}
	}
	return nil
}

func (t *Tailer) reopen() error {
	file, err := os.Open(t.path)
	if err != nil {
		return fmt.Errorf("reopen: %w", err)
	}
	info, err := file.Stat()
	if err != nil {
		file.Close()
		return fmt.Errorf("reopen stat: %w", err)
	}
	t.file.Close()
	t.file = file
	t.info = info
	t.pos = 0
	t.pending = t.pending[:0]
	return nil
}

// consume splits data into complete lines and hands them to the reader. A
// trailing fragment waits for the rest of its line.
func (t *Tailer) consume(data []byte) error {
	t.pending = append(t.pending, data...)
	for {
		if t.stopped() {
			return nil
		}
		idx := bytes.IndexByte(t.pending, '\n')
		if idx < 0 {
			break
		}
		line := string(bytes.TrimRight(t.pending[:idx], "\r"))
		t.pending = t.pending[idx+1:]
		if err := t.reader.Process(line); err != nil {
			return err
		}
	}
	if len(t.pending) > maxPendingBytes {
		log.Printf("Tailer: discarding %s of unterminated text in %s", humanize.Bytes(uint64(len(t.pending))), t.path)
		t.pending = t.pending[:0]
	}
	// Compact so the backing array does not creep forward forever.
	if cap(t.pending) > 2*tailReadChunk && len(t.pending) < tailReadChunk {
		t.pending = append([]byte(nil), t.pending...)
	}
	return nil
}
