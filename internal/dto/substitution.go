package dto

import (
	"time"

	"github.com/campushq/timetable-api/internal/models"
)

// CreateSubstitutionRequest binds one entry to a replacement teacher for a
// bounded window.
type CreateSubstitutionRequest struct {
	TimetableID         string                  `json:"timetableId" validate:"required,uuid4"`
	EntryID             string                  `json:"entryId" validate:"required,uuid4"`
	SubstituteTeacherID string                  `json:"substituteTeacherId" validate:"required,uuid4"`
	Type                models.SubstitutionType `json:"substitutionType" validate:"required,oneof=single_period date_range full_term"`
	Date                *time.Time              `json:"date"`
	StartDate           *time.Time              `json:"startDate"`
	EndDate             *time.Time              `json:"endDate"`
	Reason              string                  `json:"reason"`
	Notes               string                  `json:"notes"`
}

// BulkSubstitutionRequest creates date-range substitutions for every entry of
// a (teacher, section) pair, optionally narrowed to one period number.
type BulkSubstitutionRequest struct {
	TimetableID         string     `json:"timetableId" validate:"required,uuid4"`
	OriginalTeacherID   string     `json:"originalTeacherId" validate:"required,uuid4"`
	SubstituteTeacherID string     `json:"substituteTeacherId" validate:"required,uuid4"`
	SectionID           string     `json:"sectionId" validate:"required,uuid4"`
	StartDate           time.Time  `json:"startDate" validate:"required"`
	EndDate             time.Time  `json:"endDate" validate:"required"`
	Reason              string     `json:"reason"`
	PeriodNumber        *int       `json:"periodNumber" validate:"omitempty,min=1"`
}

// BulkSubstitutionResponse reports how many entries the bulk window covered.
type BulkSubstitutionResponse struct {
	Covered int                `json:"covered"`
	Created []SubstitutionItem `json:"created"`
}

// SubstitutionItem decorates a substitution with its derived status.
type SubstitutionItem struct {
	models.Substitution
	Status models.SubstitutionStatus `json:"status"`
}

// MarkTeacherAbsentRequest creates single-period substitutions for every cell
// the absent teacher holds on the given date. Periods without an entry in
// Substitutes are reported back as skipped, never silently covered.
type MarkTeacherAbsentRequest struct {
	TeacherID   string         `json:"teacherId" validate:"required,uuid4"`
	Date        time.Time      `json:"date" validate:"required"`
	Substitutes map[int]string `json:"substitutes" validate:"required"`
	Reason      string         `json:"reason"`
}

// SkippedPeriod names a cell left uncovered by a mark-absent operation.
type SkippedPeriod struct {
	PeriodNumber int    `json:"periodNumber"`
	SectionID    string `json:"sectionId"`
	SubjectID    string `json:"subjectId"`
}

// MarkTeacherAbsentResponse reports coverage of the absence.
type MarkTeacherAbsentResponse struct {
	Created []SubstitutionItem `json:"created"`
	Skipped []SkippedPeriod    `json:"skipped"`
}

// AvailableTeacher is a roster teacher free across all requested periods.
type AvailableTeacher struct {
	TeacherID string `json:"teacherId"`
	FullName  string `json:"fullName"`
}
