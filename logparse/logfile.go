// Package logparse reads the WSJT-X ALL.TXT decode log, either once from the
// start or by following it as it grows, and turns it into typed contacts.
package logparse

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"os"

	"wsjtxassist/band"
)

// ErrNotRegularFile is returned when a log path is missing or is not a regular file.
var ErrNotRegularFile = errors.New("logparse: not a regular file, or does not exist")

const (
	scanBufferInitial = 64 * 1024
	scanBufferMax     = 1024 * 1024
	ctxCheckEvery     = 1024
)

// LogFile is a validated path to a decode log.
type LogFile struct {
	path string
}

// ParseStats summarises a one-shot parse.
type ParseStats struct {
	Lines    int
	Bytes    int64
	Contacts int
}

// Open validates that path exists and is a regular file.
func Open(path string) (*LogFile, error) {
	if err := checkRegularFile(path); err != nil {
		return nil, err
	}
	return &LogFile{path: path}, nil
}

func checkRegularFile(path string) error {
	info, err := os.Stat(path)
	if err != nil {
		return fmt.Errorf("%w: %s: %v", ErrNotRegularFile, path, err)
	}
	if !info.Mode().IsRegular() {
		return fmt.Errorf("%w: %s", ErrNotRegularFile, path)
	}
	return nil
}

// Path returns the log file path.
func (f *LogFile) Path() string {
	return f.path
}

// Parse reads the whole file from the start through a fresh Reader, calling h
// for every contact that passes sel before it returns. It stops early when ctx
// is cancelled or a change line carries an unparseable date.
func (f *LogFile) Parse(ctx context.Context, sel band.Selector, h Handler) (ParseStats, error) {
	var stats ParseStats
	file, err := os.Open(f.path)
	if err != nil {
		return stats, fmt.Errorf("logparse: open %s: %w", f.path, err)
	}
	defer file.Close()

	reader := NewReader(sel, func(c Contact) {
		stats.Contacts++
		if h != nil {
			h(c)
		}
	})
	scanner := bufio.NewScanner(file)
	scanner.Buffer(make([]byte, 0, scanBufferInitial), scanBufferMax)
	for scanner.Scan() {
		stats.Lines++
		stats.Bytes += int64(len(scanner.Bytes())) + 1
		if stats.Lines%ctxCheckEvery == 0 {
			if err := ctx.Err(); err != nil {
				return stats, err
			}
		}
		if err := reader.Process(scanner.Text()); err != nil {
			return stats, fmt.Errorf("%s line %d: %w", f.path, stats.Lines, err)
		}
	}
	if err := scanner.Err(); err != nil {
		return stats, fmt.Errorf("logparse: read %s: %w", f.path, err)
	}
	return stats, nil
}

// Tail follows the file for contacts on every band.
func (f *LogFile) Tail(h Handler, opts TailOptions) (*Tailer, error) {
	return newTailer(f.path, band.AnyBand(), h, opts)
}

// TailBand follows the file for contacts on b only.
func (f *LogFile) TailBand(b band.Band, h Handler, opts TailOptions) (*Tailer, error) {
	return newTailer(f.path, band.Only(b), h, opts)
}

// TailSelector follows the file with an arbitrary selector.
func (f *LogFile) TailSelector(sel band.Selector, h Handler, opts TailOptions) (*Tailer, error) {
	return newTailer(f.path, sel, h, opts)
}
