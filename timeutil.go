package artron

import (
	"fmt"
	"time"
)

// strdate formats t as the ISO-8601 millisecond timestamp used throughout
// task and summary records: YYYY-MM-DDTHH:MM:SS.mmmZ. Mirrors the
// reference implementation's artron.utils.strdate.
func strdate(t time.Time) string {
	return t.UTC().Format("2006-01-02T15:04:05.000") + "Z"
}

// strgmtime renders a duration as HH:MM:SS, as artron.utils.strgmtime does
// for time.gmtime(seconds). Durations of a day or more simply keep
// accumulating hours rather than wrapping, since no run is expected to
// span that long.
func strgmtime(d time.Duration) string {
	if d < 0 {
		d = 0
	}
	total := int64(d.Seconds())
	h := total / 3600
	m := (total % 3600) / 60
	s := total % 60
	return fmt.Sprintf("%02d:%02d:%02d", h, m, s)
}
