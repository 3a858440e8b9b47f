package persistence

import (
	"errors"
	"fmt"
	"log"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/cockroachdb/pebble"
	"github.com/cockroachdb/pebble/bloom"
	jsoniter "github.com/json-iterator/go"

	"wsjtxassist/callsign"
)

const (
	callPrefix = "c|"

	defaultCacheSizeBytes  = int64(8 << 20)
	defaultBloomFilterBits = 10
	defaultWriteQueueDepth = 64
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// PebbleOptions controls Pebble tuning and writer buffering. Zero fields take
// defaults.
type PebbleOptions struct {
	CacheSizeBytes        int64
	BloomFilterBitsPerKey int
	WriteQueueDepth       int
}

func (o PebbleOptions) sanitize() PebbleOptions {
	if o.CacheSizeBytes <= 0 {
		o.CacheSizeBytes = defaultCacheSizeBytes
	}
	if o.BloomFilterBitsPerKey <= 0 {
		o.BloomFilterBitsPerKey = defaultBloomFilterBits
	}
	if o.WriteQueueDepth <= 0 {
		o.WriteQueueDepth = defaultWriteQueueDepth
	}
	return o
}

// PebbleStore keeps one JSON value per callsign under a "c|" key. Writes go
// through a single goroutine; reads hit Pebble directly.
type PebbleStore struct {
	db     *pebble.DB
	cache  *pebble.Cache
	writes chan pebbleWrite
	done   chan struct{}

	mu     sync.Mutex
	closed bool
}

type pebbleWrite struct {
	call  string
	value []byte
	resp  chan error
}

// Purpose: Open or create the Pebble contact store.
// Key aspects: Shares one block cache, applies bloom filters to every level and
// spins the single writer goroutine.
// Upstream: OpenBackend, command startup.
// Downstream: pebble.Open, writeLoop.
func OpenPebble(path string, opts PebbleOptions) (*PebbleStore, error) {
	if strings.TrimSpace(path) == "" {
		return nil, errors.New("persistence: pebble path is empty")
	}
	opts = opts.sanitize()

	if info, err := os.Stat(path); err == nil {
		if !info.IsDir() {
			return nil, fmt.Errorf("persistence: %s exists and is not a directory", path)
		}
	} else if !os.IsNotExist(err) {
		return nil, fmt.Errorf("persistence: stat path: %w", err)
	}
	if err := os.MkdirAll(path, 0o755); err != nil {
		return nil, fmt.Errorf("persistence: ensure directory: %w", err)
	}

	cache := pebble.NewCache(opts.CacheSizeBytes)
	level := pebble.LevelOptions{
		FilterPolicy: bloom.FilterPolicy(opts.BloomFilterBitsPerKey),
		FilterType:   pebble.TableFilter,
	}
	pebbleOpts := &pebble.Options{
		Cache:  cache,
		Levels: make([]pebble.LevelOptions, 7),
	}
	for i := range pebbleOpts.Levels {
		pebbleOpts.Levels[i] = level
	}

	db, err := pebble.Open(path, pebbleOpts)
	if err != nil {
		cache.Unref()
		return nil, fmt.Errorf("persistence: open pebble: %w", err)
	}
	s := &PebbleStore{
		db:     db,
		cache:  cache,
		writes: make(chan pebbleWrite, opts.WriteQueueDepth),
		done:   make(chan struct{}),
	}
	go s.writeLoop()
	log.Printf("Store: opened pebble database %s", path)
	return s, nil
}

// Get fetches the record for call. It returns (nil, nil) when none exists.
func (s *PebbleStore) Get(call string) (*Record, error) {
	if s.isClosed() {
		return nil, errStoreClosed
	}
	call = callsign.Normalize(call)
	value, closer, err := s.db.Get(callKey(call))
	if err != nil {
		if errors.Is(err, pebble.ErrNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("pebble get %s: %w", call, err)
	}
	defer closer.Close()
	var row storedRow
	if err := json.Unmarshal(value, &row); err != nil {
		return nil, fmt.Errorf("pebble decode %s: %w", call, err)
	}
	return decodeRow(call, row)
}

// Upsert replaces the value for rec's callsign and waits for the synced write.
func (s *PebbleStore) Upsert(rec Record) error {
	call := callsign.Normalize(rec.Contact.Callsign)
	value, err := json.Marshal(encodeRow(rec, time.Now().UTC()))
	if err != nil {
		return fmt.Errorf("pebble encode %s: %w", call, err)
	}
	resp := make(chan error, 1)
	if err := s.enqueue(pebbleWrite{call: call, value: value, resp: resp}); err != nil {
		return err
	}
	return <-resp
}

// Callsigns lists every stored callsign in key order.
func (s *PebbleStore) Callsigns() ([]string, error) {
	if s.isClosed() {
		return nil, errStoreClosed
	}
	iter, err := s.db.NewIter(iterOptionsForPrefix(callPrefix))
	if err != nil {
		return nil, fmt.Errorf("pebble iterator: %w", err)
	}
	defer iter.Close()
	var calls []string
	for iter.First(); iter.Valid(); iter.Next() {
		calls = append(calls, strings.TrimPrefix(string(iter.Key()), callPrefix))
	}
	if err := iter.Error(); err != nil {
		return nil, fmt.Errorf("pebble iterate: %w", err)
	}
	return calls, nil
}

// Purpose: Close the underlying database handle.
// Key aspects: Drains the writer goroutine before closing Pebble.
// Upstream: Filter.Close.
// Downstream: writeLoop, db.Close.
func (s *PebbleStore) Close() error {
	if !s.closeWriter() {
		return nil
	}
	<-s.done
	err := s.db.Close()
	s.cache.Unref()
	return err
}

func (s *PebbleStore) isClosed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}

func (s *PebbleStore) enqueue(req pebbleWrite) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return errStoreClosed
	}
	s.writes <- req
	return nil
}

func (s *PebbleStore) closeWriter() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return false
	}
	s.closed = true
	close(s.writes)
	return true
}

func (s *PebbleStore) writeLoop() {
	defer close(s.done)
	for req := range s.writes {
		err := s.db.Set(callKey(req.call), req.value, pebble.Sync)
		if err != nil {
			err = fmt.Errorf("pebble set %s: %w", req.call, err)
		}
		req.resp <- err
	}
}

func callKey(call string) []byte {
	return []byte(callPrefix + call)
}

func iterOptionsForPrefix(prefix string) *pebble.IterOptions {
	lower := []byte(prefix)
	return &pebble.IterOptions{LowerBound: lower, UpperBound: prefixUpperBound(lower)}
}

func prefixUpperBound(prefix []byte) []byte {
	upper := append([]byte(nil), prefix...)
	for i := len(upper) - 1; i >= 0; i-- {
		if upper[i] != 0xFF {
			upper[i]++
			return upper[:i+1]
		}
	}
	return nil
}
