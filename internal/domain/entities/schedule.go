package entities

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"time"

	apperrors "github.com/zatekoja/carebook/backend/pkg/errors"
)

// Weekday is the lower-case English day name used in schedule windows.
type Weekday string

const (
	Monday    Weekday = "monday"
	Tuesday   Weekday = "tuesday"
	Wednesday Weekday = "wednesday"
	Thursday  Weekday = "thursday"
	Friday    Weekday = "friday"
	Saturday  Weekday = "saturday"
	Sunday    Weekday = "sunday"
)

// WeekdayOf returns the schedule weekday for t.
func WeekdayOf(t time.Time) Weekday {
	return Weekday(strings.ToLower(t.Weekday().String()))
}

// Valid reports whether d is one of the seven weekday values.
func (d Weekday) Valid() bool {
	switch d {
	case Monday, Tuesday, Wednesday, Thursday, Friday, Saturday, Sunday:
		return true
	}
	return false
}

// ClockTime is a minute-precision time of day, stored as minutes after midnight.
type ClockTime int

// ParseClock parses a 24h "HH:MM" string.
func ParseClock(s string) (ClockTime, error) {
	t, err := time.Parse("15:04", strings.TrimSpace(s))
	if err != nil {
		return 0, apperrors.NewValidationError(fmt.Sprintf("invalid time %q, expected HH:MM", s))
	}
	return ClockTime(t.Hour()*60 + t.Minute()), nil
}

// MustClock parses s and panics on malformed input. Intended for constants and tests.
func MustClock(s string) ClockTime {
	c, err := ParseClock(s)
	if err != nil {
		panic(err)
	}
	return c
}

func (c ClockTime) String() string {
	return fmt.Sprintf("%02d:%02d", int(c)/60, int(c)%60)
}

// Add returns c shifted by d minutes.
func (c ClockTime) Add(minutes int) ClockTime {
	return c + ClockTime(minutes)
}

func (c ClockTime) MarshalJSON() ([]byte, error) {
	return json.Marshal(c.String())
}

func (c *ClockTime) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	parsed, err := ParseClock(s)
	if err != nil {
		return err
	}
	*c = parsed
	return nil
}

// TimeRange is a half-open [Start, End) interval within one day.
type TimeRange struct {
	Start ClockTime `json:"start"`
	End   ClockTime `json:"end"`
}

// Covers reports whether the range fully contains [start, end].
func (r TimeRange) Covers(start, end ClockTime) bool {
	return r.Start <= start && r.End >= end
}

// Overlaps reports whether two ranges share any minute.
func (r TimeRange) Overlaps(o TimeRange) bool {
	return r.Start < o.End && o.Start < r.End
}

// ScheduleDay lists the bookable ranges for one weekday.
type ScheduleDay struct {
	Day    Weekday     `json:"day"`
	Ranges []TimeRange `json:"ranges"`
}

// ScheduleStatus is the approval state of a schedule window.
type ScheduleStatus string

const (
	SchedulePending  ScheduleStatus = "Pending"
	ScheduleApproved ScheduleStatus = "Approved"
	ScheduleRejected ScheduleStatus = "Rejected"
)

// Modality is how an appointment is delivered.
type Modality string

const (
	ModalityInPerson Modality = "in_person"
	ModalityRemote   Modality = "remote"
)

// Valid reports whether m is a known modality.
func (m Modality) Valid() bool {
	return m == ModalityInPerson || m == ModalityRemote
}

// ScheduleWindow is a provider's recurring weekly availability for one modality.
type ScheduleWindow struct {
	ID          string         `json:"id" db:"id"`
	ProviderID  string         `json:"provider_id" db:"provider_id"`
	Modality    Modality       `json:"modality" db:"modality"`
	Days        []ScheduleDay  `json:"days" db:"days"`
	Status      ScheduleStatus `json:"status" db:"status"`
	Note        string         `json:"note,omitempty" db:"note"`
	RequestedBy string         `json:"requested_by" db:"requested_by"`
	ReviewedBy  *string        `json:"reviewed_by,omitempty" db:"reviewed_by"`
	CreatedAt   time.Time      `json:"created_at" db:"created_at"`
	UpdatedAt   time.Time      `json:"updated_at" db:"updated_at"`
}

// Validate enforces day names, start < end, and no overlapping or duplicate
// ranges within a day.
func (w *ScheduleWindow) Validate() error {
	if w.ProviderID == "" {
		return apperrors.NewValidationError("provider id is required")
	}
	if !w.Modality.Valid() {
		return apperrors.NewValidationError(fmt.Sprintf("invalid modality %q", w.Modality))
	}
	if len(w.Days) == 0 {
		return apperrors.NewValidationError("schedule must contain at least one day")
	}

	seen := make(map[Weekday]bool, len(w.Days))
	for _, day := range w.Days {
		if !day.Day.Valid() {
			return apperrors.NewValidationError(fmt.Sprintf("invalid day %q", day.Day))
		}
		if seen[day.Day] {
			return apperrors.NewValidationError(fmt.Sprintf("day %s listed more than once", day.Day))
		}
		seen[day.Day] = true

		ranges := make([]TimeRange, len(day.Ranges))
		copy(ranges, day.Ranges)
		sort.Slice(ranges, func(i, j int) bool { return ranges[i].Start < ranges[j].Start })

		for i, r := range ranges {
			if r.Start >= r.End {
				return apperrors.NewValidationError(fmt.Sprintf("%s: start %s must be before end %s", day.Day, r.Start, r.End))
			}
			if i > 0 && ranges[i-1].Overlaps(r) {
				return apperrors.NewValidationError(fmt.Sprintf("%s: range %s-%s overlaps %s-%s",
					day.Day, r.Start, r.End, ranges[i-1].Start, ranges[i-1].End))
			}
		}
	}
	return nil
}

// RangesFor returns the ranges configured for day.
func (w *ScheduleWindow) RangesFor(day Weekday) []TimeRange {
	for _, d := range w.Days {
		if d.Day == day {
			return d.Ranges
		}
	}
	return nil
}
