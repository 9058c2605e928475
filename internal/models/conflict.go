package models

import (
	"fmt"
	"time"

	"github.com/jmoiron/sqlx/types"
)

// ConflictType classifies a detected scheduling violation.
type ConflictType string

const (
	ConflictTeacherOverlap    ConflictType = "teacher_overlap"
	ConflictSectionOverlap    ConflictType = "section_overlap"
	ConflictRoomOverlap       ConflictType = "room_overlap"
	ConflictGenerationFailure ConflictType = "generation_failure"
)

// CellConflict is the in-memory conflict descriptor emitted by the conflict
// detector. It names the occupant already holding the cell so operators can
// render the collision without further lookups.
type CellConflict struct {
	Type              ConflictType `json:"type"`
	Day               int          `json:"day"`
	Period            int          `json:"period"`
	TeacherID         string       `json:"teacher_id,omitempty"`
	SectionID         string       `json:"section_id,omitempty"`
	RoomID            string       `json:"room_id,omitempty"`
	ExistingSectionID string       `json:"existing_section_id,omitempty"`
	ExistingSubjectID string       `json:"existing_subject_id,omitempty"`
	NewSectionID      string       `json:"new_section_id,omitempty"`
	EntryID           string       `json:"entry_id,omitempty"`
}

// Describe renders a human-readable summary of the conflict.
func (c CellConflict) Describe() string {
	switch c.Type {
	case ConflictTeacherOverlap:
		return fmt.Sprintf("teacher %s is double-booked on %s period %d", c.TeacherID, DayName(c.Day), c.Period)
	case ConflictSectionOverlap:
		return fmt.Sprintf("section %s has two classes on %s period %d", c.SectionID, DayName(c.Day), c.Period)
	case ConflictRoomOverlap:
		return fmt.Sprintf("room %s is double-booked on %s period %d", c.RoomID, DayName(c.Day), c.Period)
	default:
		return string(c.Type)
	}
}

// ConflictViolationError carries the full conflict list for operations that
// are refused because of detected violations (publish gate, manual edits).
type ConflictViolationError struct {
	Message   string         `json:"message"`
	Conflicts []CellConflict `json:"conflicts"`
}

// Error implements the error interface.
func (e *ConflictViolationError) Error() string {
	if e == nil {
		return "<nil>"
	}
	return e.Message
}

// Conflict is a persisted advisory conflict record attached to a timetable.
type Conflict struct {
	ID              string         `db:"id" json:"id"`
	TimetableID     string         `db:"timetable_id" json:"timetable_id"`
	ConflictType    ConflictType   `db:"conflict_type" json:"conflict_type"`
	DayOfWeek       int            `db:"day_of_week" json:"day_of_week"`
	PeriodNumber    int            `db:"period_number" json:"period_number"`
	Description     string         `db:"description" json:"description"`
	InvolvedEntries types.JSONText `db:"involved_entries" json:"involved_entries"`
	Resolved        bool           `db:"is_resolved" json:"is_resolved"`
	CreatedAt       time.Time      `db:"created_at" json:"created_at"`
}
