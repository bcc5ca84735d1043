package utils

import (
	"time"

	"github.com/rs/zerolog"
)

// slowThreshold is where a measured operation is reported at info level.
const slowThreshold = 2 * time.Second

// Timer measures one operation and logs its duration when stopped.
type Timer struct {
	start time.Time
	name  string
	log   zerolog.Logger
}

// NewTimer starts a timer with the given operation name.
func NewTimer(name string, log zerolog.Logger) *Timer {
	return &Timer{start: time.Now(), name: name, log: log}
}

// Stop logs the elapsed time and returns it.
func (t *Timer) Stop() time.Duration {
	duration := time.Since(t.start)

	event := t.log.Debug()
	if duration > slowThreshold {
		event = t.log.Info()
	}
	event.
		Str("operation", t.name).
		Dur("duration_ms", duration).
		Msg("Performance measurement")

	return duration
}
