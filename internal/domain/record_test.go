package domain

import (
	"errors"
	"testing"
)

func validRecord() ScheduledContentRecord {
	return ScheduledContentRecord{
		ID:      "abc123",
		UserID:  "u1",
		DraftID: "d1",
		Entity:  EntityScheduledContent,
		Schedule: LocalSchedule{
			Year: 2025, Month: 6, Day: 1, Hour: 10, Minute: 0, Second: 0,
		},
	}
}

func TestScheduledContentRecord_Validate(t *testing.T) {
	if err := validRecord().Validate(); err != nil {
		t.Fatalf("valid record should not return error, got: %v", err)
	}

	tests := []struct {
		name    string
		modify  func(r *ScheduledContentRecord)
		wantErr error
	}{
		{
			name:    "missing id",
			modify:  func(r *ScheduledContentRecord) { r.ID = "" },
			wantErr: ErrMissingID,
		},
		{
			name:    "missing user id",
			modify:  func(r *ScheduledContentRecord) { r.UserID = "" },
			wantErr: ErrMissingUserID,
		},
		{
			name:    "wrong entity",
			modify:  func(r *ScheduledContentRecord) { r.Entity = "DOCUMENT" },
			wantErr: ErrWrongEntity,
		},
		{
			name:    "no source content",
			modify:  func(r *ScheduledContentRecord) { r.DraftID = "" },
			wantErr: ErrMissingSource,
		},
		{
			name:    "both draft and article",
			modify:  func(r *ScheduledContentRecord) { r.ArticleID = "a1" },
			wantErr: ErrAmbiguousSource,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := validRecord()
			tt.modify(&rec)
			if err := rec.Validate(); !errors.Is(err, tt.wantErr) {
				t.Errorf("Validate() = %v, want %v", err, tt.wantErr)
			}
		})
	}
}

func TestLocalSchedule_Validate(t *testing.T) {
	tests := []struct {
		name    string
		sched   LocalSchedule
		wantErr bool
	}{
		{"valid", LocalSchedule{2025, 6, 1, 10, 0, 0}, false},
		{"leap day", LocalSchedule{2024, 2, 29, 0, 0, 0}, false},
		{"feb 29 non-leap", LocalSchedule{2025, 2, 29, 0, 0, 0}, true},
		{"day 31 in 30-day month", LocalSchedule{2025, 4, 31, 0, 0, 0}, true},
		{"month 13", LocalSchedule{2025, 13, 1, 0, 0, 0}, true},
		{"month 0", LocalSchedule{2025, 0, 1, 0, 0, 0}, true},
		{"day 0", LocalSchedule{2025, 6, 0, 0, 0, 0}, true},
		{"hour 24", LocalSchedule{2025, 6, 1, 24, 0, 0}, true},
		{"minute 60", LocalSchedule{2025, 6, 1, 10, 60, 0}, true},
		{"second 60", LocalSchedule{2025, 6, 1, 10, 0, 60}, true},
		{"end of year", LocalSchedule{2025, 12, 31, 23, 59, 59}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.sched.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestLocalSchedule_Validate_CenturyLeapRule(t *testing.T) {
	// 1900 is not a leap year, 2000 is.
	if err := (LocalSchedule{1900, 2, 29, 0, 0, 0}).Validate(); err == nil {
		t.Error("1900-02-29 should be invalid")
	}
	if err := (LocalSchedule{2000, 2, 29, 0, 0, 0}).Validate(); err != nil {
		t.Errorf("2000-02-29 should be valid, got: %v", err)
	}
}
