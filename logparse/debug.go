package logparse

import (
	"log"
	"sync/atomic"
)

var debugEnabled atomic.Bool

// SetDebug turns per-line parser tracing on or off.
func SetDebug(enabled bool) {
	debugEnabled.Store(enabled)
}

func debugf(format string, args ...any) {
	if !debugEnabled.Load() {
		return
	}
	log.Printf("logparse: "+format, args...)
}
