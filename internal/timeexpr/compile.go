// Package timeexpr compiles naive local wall-clock schedule tuples into
// the absolute-time fire expressions the external scheduler consumes.
package timeexpr

import (
	"fmt"
	"strings"
	"time"

	"github.com/EducloudHQ/ai-writer-scheduler/internal/domain"
)

// PastScheduleError reports a schedule whose computed target is not
// strictly in the future. The boundary is exclusive: a diff of zero
// minutes is past.
type PastScheduleError struct {
	CandidateAt time.Time
	DiffMinutes int
}

func (e *PastScheduleError) Error() string {
	return fmt.Sprintf("schedule %s is not in the future (diff=%dm)",
		e.CandidateAt.Format("2006-01-02T15:04:05"), e.DiffMinutes)
}

// FireExpression is the absolute-time string the external scheduler
// understands: an ISO-8601-like local timestamp with zero seconds inside
// an at(...) marker.
type FireExpression string

// Time decodes the instant a fire expression encodes. The location is
// used as the epoch basis, mirroring Compile.
func (e FireExpression) Time(loc *time.Location) (time.Time, error) {
	s := string(e)
	if !strings.HasPrefix(s, "at(") || !strings.HasSuffix(s, ")") {
		return time.Time{}, fmt.Errorf("malformed fire expression %q", e)
	}
	return time.ParseInLocation("2006-01-02T15:04:05", s[3:len(s)-1], loc)
}

// Compile interprets the six schedule fields as a local calendar
// date/time on the same epoch basis as now and returns the fire
// expression for the external scheduler.
//
// The target is deliberately floored to whole minutes relative to now:
// the effective fire instant is now + floor((candidate-now)/60s) minutes,
// and the emitted expression always carries zero seconds. Sub-minute
// precision in the schedule is discarded.
//
// now must be read once by the caller; Compile is pure and never re-reads
// the clock.
func Compile(schedule domain.LocalSchedule, now time.Time) (FireExpression, error) {
	if err := schedule.Validate(); err != nil {
		return "", err
	}

	candidate := time.Date(
		schedule.Year,
		time.Month(schedule.Month),
		schedule.Day,
		schedule.Hour,
		schedule.Minute,
		schedule.Second,
		0,
		now.Location(),
	)

	diffMinutes := int(candidate.Sub(now) / time.Minute)
	if diffMinutes <= 0 {
		return "", &PastScheduleError{CandidateAt: candidate, DiffMinutes: diffMinutes}
	}

	effective := now.Add(time.Duration(diffMinutes) * time.Minute)
	return FireExpression(fmt.Sprintf("at(%s:00)", effective.Format("2006-01-02T15:04"))), nil
}
