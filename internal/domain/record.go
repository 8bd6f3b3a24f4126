package domain

import (
	"errors"
	"fmt"
)

// EntityScheduledContent is the entity discriminator a change-feed row
// must carry to enter the scheduling pipeline.
const EntityScheduledContent = "SCHEDULED_CONTENT"

var (
	ErrMissingID        = errors.New("record id is required")
	ErrMissingUserID    = errors.New("record user id is required")
	ErrAmbiguousSource  = errors.New("record must reference a draft or an article, not both")
	ErrMissingSource    = errors.New("record must reference a draft or an article")
	ErrWrongEntity      = errors.New("record entity is not " + EntityScheduledContent)
)

// LocalSchedule is a naive local wall-clock tuple. It carries no timezone;
// the time compiler interprets it on the same epoch basis as its own clock.
type LocalSchedule struct {
	Year   int `json:"year"`
	Month  int `json:"month"`
	Day    int `json:"day"`
	Hour   int `json:"hour"`
	Minute int `json:"minute"`
	Second int `json:"second"`
}

// Validate rejects tuples that do not denote a real calendar date/time.
// Out-of-range days are rejected explicitly rather than rolled over.
func (s LocalSchedule) Validate() error {
	if s.Year < 1 {
		return fmt.Errorf("year %d out of range", s.Year)
	}
	if s.Month < 1 || s.Month > 12 {
		return fmt.Errorf("month %d out of range [1,12]", s.Month)
	}
	if s.Day < 1 || s.Day > daysInMonth(s.Year, s.Month) {
		return fmt.Errorf("day %d out of range [1,%d] for %04d-%02d", s.Day, daysInMonth(s.Year, s.Month), s.Year, s.Month)
	}
	if s.Hour < 0 || s.Hour > 23 {
		return fmt.Errorf("hour %d out of range [0,23]", s.Hour)
	}
	if s.Minute < 0 || s.Minute > 59 {
		return fmt.Errorf("minute %d out of range [0,59]", s.Minute)
	}
	if s.Second < 0 || s.Second > 59 {
		return fmt.Errorf("second %d out of range [0,59]", s.Second)
	}
	return nil
}

func daysInMonth(year, month int) int {
	switch month {
	case 1, 3, 5, 7, 8, 10, 12:
		return 31
	case 4, 6, 9, 11:
		return 30
	default:
		if isLeapYear(year) {
			return 29
		}
		return 28
	}
}

func isLeapYear(year int) bool {
	return year%4 == 0 && (year%100 != 0 || year%400 == 0)
}

// ScheduledContentRecord is a content record marked for deferred
// publication. Records are created once by the upstream store and are
// immutable for the purposes of this pipeline.
type ScheduledContentRecord struct {
	ID        string        `json:"id"`
	UserID    string        `json:"userId"`
	DraftID   string        `json:"draftId,omitempty"`
	ArticleID string        `json:"articleId,omitempty"`
	Entity    string        `json:"entity"`
	Schedule  LocalSchedule `json:"schedule"`
}

// Validate checks the record at the pipeline boundary. Exactly one of
// DraftID/ArticleID must reference the source content.
func (r ScheduledContentRecord) Validate() error {
	if r.ID == "" {
		return ErrMissingID
	}
	if r.UserID == "" {
		return ErrMissingUserID
	}
	if r.Entity != EntityScheduledContent {
		return ErrWrongEntity
	}
	if r.DraftID == "" && r.ArticleID == "" {
		return ErrMissingSource
	}
	if r.DraftID != "" && r.ArticleID != "" {
		return ErrAmbiguousSource
	}
	if err := r.Schedule.Validate(); err != nil {
		return fmt.Errorf("schedule: %w", err)
	}
	return nil
}
