package dto

import (
	"time"

	"github.com/campushq/timetable-api/internal/models"
)

// GenerateTimetableRequest instructs the engine to build and persist a draft
// timetable for the given scheduling context.
type GenerateTimetableRequest struct {
	BranchID      string  `json:"branchId" validate:"required,uuid4"`
	SessionID     string  `json:"sessionId" validate:"required,uuid4"`
	ShiftID       string  `json:"shiftId" validate:"required,uuid4"`
	SeasonID      *string `json:"seasonId" validate:"omitempty,uuid4"`
	Name          string  `json:"name" validate:"required,max=200"`
	Description   string  `json:"description"`
	WorkingDays   []int   `json:"workingDays" validate:"omitempty,dive,min=0,max=6"`
	MaxIterations int     `json:"maxIterations" validate:"omitempty,min=1"`
	RandomSeed    *int64  `json:"randomSeed"`
}

// FailedRequirement describes one weekly period the generator could not place.
type FailedRequirement struct {
	SectionID string `json:"sectionId"`
	Section   string `json:"section"`
	SubjectID string `json:"subjectId"`
	Subject   string `json:"subject"`
	TeacherID string `json:"teacherId"`
	Teacher   string `json:"teacher"`
	Reason    string `json:"reason"`
}

// GenerationStatistics reports the outcome of a generation run.
type GenerationStatistics struct {
	TotalRequirements int `json:"totalRequirements"`
	Filled            int `json:"filled"`
	Failed            int `json:"failed"`
	Sections          int `json:"sections"`
	WorkingDays       int `json:"workingDays"`
	PeriodsPerDay     int `json:"periodsPerDay"`
}

// GenerateTimetableResponse returns the persisted draft plus the failure list.
type GenerateTimetableResponse struct {
	Success            bool                 `json:"success"`
	TimetableID        string               `json:"timetableId"`
	Statistics         GenerationStatistics `json:"statistics"`
	FailedRequirements []FailedRequirement  `json:"failedRequirements"`
}

// ValidationResult is the outcome of replaying a timetable's cells through a
// fresh conflict detector.
type ValidationResult struct {
	Valid     bool                  `json:"valid"`
	Conflicts []models.CellConflict `json:"conflicts"`
}

// PublishTimetableRequest gates and snapshots a draft.
type PublishTimetableRequest struct {
	ChangeNote    string     `json:"changeNote" validate:"required"`
	EffectiveFrom *time.Time `json:"effectiveFrom"`
	EffectiveTo   *time.Time `json:"effectiveTo"`
}

// PublishTimetableResponse reports the snapshot version that was created.
type PublishTimetableResponse struct {
	Version int `json:"version"`
}

// RestoreVersionRequest rolls the timetable forward to a copy of an older
// snapshot.
type RestoreVersionRequest struct {
	ChangeNote string `json:"changeNote"`
}

// RestoreVersionResponse carries the newly minted version number.
type RestoreVersionResponse struct {
	RestoredFrom int `json:"restoredFrom"`
	NewVersion   int `json:"newVersion"`
}

// CreateEntryRequest adds or moves a single cell with inline conflict checks.
type CreateEntryRequest struct {
	TimetableID  string  `json:"timetableId" validate:"required,uuid4"`
	SectionID    string  `json:"sectionId" validate:"required,uuid4"`
	DayOfWeek    *int    `json:"dayOfWeek" validate:"required,min=0,max=6"`
	PeriodSlotID string  `json:"periodSlotId" validate:"required,uuid4"`
	SubjectID    string  `json:"subjectId" validate:"required,uuid4"`
	TeacherID    string  `json:"teacherId" validate:"required,uuid4"`
	RoomID       *string `json:"roomId" validate:"omitempty,uuid4"`
}

// UpdateEntryRequest mutates an existing cell; identity fields are optional.
type UpdateEntryRequest struct {
	SectionID    *string `json:"sectionId" validate:"omitempty,uuid4"`
	DayOfWeek    *int    `json:"dayOfWeek" validate:"omitempty,min=0,max=6"`
	PeriodSlotID *string `json:"periodSlotId" validate:"omitempty,uuid4"`
	SubjectID    *string `json:"subjectId" validate:"omitempty,uuid4"`
	TeacherID    *string `json:"teacherId" validate:"omitempty,uuid4"`
	RoomID       *string `json:"roomId" validate:"omitempty,uuid4"`
}
