package utils

import (
	"time"

	"github.com/rs/zerolog"
)

// slowStepThreshold marks a pipeline step worth a warning
const slowStepThreshold = 2 * time.Minute

// Timer measures the duration of one pipeline step
type Timer struct {
	start time.Time
	name  string
	log   zerolog.Logger
}

// NewTimer creates a new timer with the given name
func NewTimer(name string, log zerolog.Logger) *Timer {
	return &Timer{
		start: time.Now(),
		name:  name,
		log:   log,
	}
}

// Stop stops the timer and logs the duration
func (t *Timer) Stop() time.Duration {
	duration := time.Since(t.start)

	t.log.Debug().
		Str("step", t.name).
		Dur("duration_ms", duration).
		Msg("Step finished")

	if duration > slowStepThreshold {
		t.log.Warn().
			Str("step", t.name).
			Dur("duration", duration).
			Msg("Slow step detected")
	}

	return duration
}
