package runlog

import "time"

const (
	isoSeconds = "2006-01-02T15:04:05"
	isoMicros  = "2006-01-02T15:04:05.000000"
)

// ISO formats t as a local ISO-8601 timestamp without zone offset. Fractional
// seconds are printed with microsecond precision only when non-zero.
func ISO(t time.Time) string {
	if t.Nanosecond()/int(time.Microsecond) == 0 {
		return t.Format(isoSeconds)
	}
	return t.Format(isoMicros)
}

// ISOSeconds formats t truncated to whole seconds.
func ISOSeconds(t time.Time) string {
	return t.Format(isoSeconds)
}
