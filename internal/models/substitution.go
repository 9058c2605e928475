package models

import "time"

// SubstitutionType scopes how long a teacher override applies.
type SubstitutionType string

const (
	SubstitutionSinglePeriod SubstitutionType = "single_period"
	SubstitutionDateRange    SubstitutionType = "date_range"
	SubstitutionFullTerm     SubstitutionType = "full_term"
)

// SubstitutionStatus is derived from the validity window relative to a
// reference date; it is never stored.
type SubstitutionStatus string

const (
	SubstitutionCancelled SubstitutionStatus = "cancelled"
	SubstitutionCompleted SubstitutionStatus = "completed"
	SubstitutionActive    SubstitutionStatus = "active"
	SubstitutionPending   SubstitutionStatus = "pending"
)

// Substitution is a temporary teacher override on one timetable entry. It
// never mutates the underlying cell and is excluded from version snapshots.
type Substitution struct {
	ID                  string           `db:"id" json:"id"`
	TimetableID         string           `db:"timetable_id" json:"timetable_id"`
	EntryID             string           `db:"entry_id" json:"entry_id"`
	SubstituteTeacherID string           `db:"substitute_teacher_id" json:"substitute_teacher_id"`
	Type                SubstitutionType `db:"substitution_type" json:"substitution_type"`
	Date                *time.Time       `db:"date" json:"date,omitempty"`
	StartDate           *time.Time       `db:"start_date" json:"start_date,omitempty"`
	EndDate             *time.Time       `db:"end_date" json:"end_date,omitempty"`
	Reason              string           `db:"reason" json:"reason"`
	Notes               string           `db:"notes" json:"notes"`
	Active              bool             `db:"is_active" json:"is_active"`
	CreatedBy           *string          `db:"created_by" json:"created_by,omitempty"`
	CreatedAt           time.Time        `db:"created_at" json:"created_at"`
	UpdatedAt           time.Time        `db:"updated_at" json:"updated_at"`
}

// StatusOn derives the substitution lifecycle status relative to the given
// reference date (normally today).
func (s Substitution) StatusOn(today time.Time) SubstitutionStatus {
	if !s.Active {
		return SubstitutionCancelled
	}

	today = truncateToDate(today)

	if s.Type == SubstitutionSinglePeriod {
		if s.Date != nil {
			d := truncateToDate(*s.Date)
			switch {
			case d.Before(today):
				return SubstitutionCompleted
			case d.Equal(today):
				return SubstitutionActive
			default:
				return SubstitutionPending
			}
		}
		return SubstitutionActive
	}

	// date_range or full_term
	if s.EndDate != nil && truncateToDate(*s.EndDate).Before(today) {
		return SubstitutionCompleted
	}
	if s.StartDate != nil {
		start := truncateToDate(*s.StartDate)
		if !start.After(today) {
			if s.EndDate == nil || !truncateToDate(*s.EndDate).Before(today) {
				return SubstitutionActive
			}
		}
		if start.After(today) {
			return SubstitutionPending
		}
	}

	return SubstitutionActive
}

func truncateToDate(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}
