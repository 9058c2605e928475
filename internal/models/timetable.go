package models

import (
	"time"

	"github.com/jmoiron/sqlx/types"
)

// TimetableStatus represents lifecycle phases for a timetable.
type TimetableStatus string

const (
	TimetableStatusDraft     TimetableStatus = "draft"
	TimetableStatusPublished TimetableStatus = "published"
	TimetableStatusArchived  TimetableStatus = "archived"
)

// Timetable is a named scheduling context for a branch/session/shift tuple,
// optionally narrowed by season. ScheduleData caches the full cell snapshot
// for quick retrieval and version diffing.
type Timetable struct {
	ID             string          `db:"id" json:"id"`
	BranchID       string          `db:"branch_id" json:"branch_id"`
	SessionID      string          `db:"session_id" json:"session_id"`
	SeasonID       *string         `db:"season_id" json:"season_id,omitempty"`
	ShiftID        string          `db:"shift_id" json:"shift_id"`
	Name           string          `db:"name" json:"name"`
	Description    string          `db:"description" json:"description"`
	Status         TimetableStatus `db:"status" json:"status"`
	EffectiveFrom  *time.Time      `db:"effective_from" json:"effective_from,omitempty"`
	EffectiveTo    *time.Time      `db:"effective_to" json:"effective_to,omitempty"`
	ScheduleData   types.JSONText  `db:"schedule_data" json:"schedule_data"`
	CreatedBy      *string         `db:"created_by" json:"created_by,omitempty"`
	PublishedBy    *string         `db:"published_by" json:"published_by,omitempty"`
	PublishedAt    *time.Time      `db:"published_at" json:"published_at,omitempty"`
	CurrentVersion int             `db:"current_version" json:"current_version"`
	CreatedAt      time.Time       `db:"created_at" json:"created_at"`
	UpdatedAt      time.Time       `db:"updated_at" json:"updated_at"`
}

// TimetableFilter describes query params for listing timetables.
type TimetableFilter struct {
	BranchID  string
	SessionID string
	ShiftID   string
	Status    string
	Page      int
	PageSize  int
}

// TimetableVersion is an immutable snapshot of a timetable's schedule,
// created on publish or restore. Numbered sequentially per timetable.
type TimetableVersion struct {
	ID            string         `db:"id" json:"id"`
	TimetableID   string         `db:"timetable_id" json:"timetable_id"`
	VersionNumber int            `db:"version_number" json:"version_number"`
	ScheduleData  types.JSONText `db:"schedule_data" json:"schedule_data"`
	ChangeNote    string         `db:"change_note" json:"change_note"`
	DiffSummary   types.JSONText `db:"diff_summary" json:"diff_summary"`
	CreatedBy     *string        `db:"created_by" json:"created_by,omitempty"`
	CreatedAt     time.Time      `db:"created_at" json:"created_at"`
}

// TimetableEntry is one cell in the grid: a period assignment for a section.
// At most one entry may exist per (timetable, section, day, period slot).
type TimetableEntry struct {
	ID           string    `db:"id" json:"id"`
	TimetableID  string    `db:"timetable_id" json:"timetable_id"`
	SectionID    string    `db:"section_id" json:"section_id"`
	DayOfWeek    int       `db:"day_of_week" json:"day_of_week"`
	PeriodSlotID string    `db:"period_slot_id" json:"period_slot_id"`
	PeriodNumber int       `db:"period_number" json:"period_number"`
	SubjectID    string    `db:"subject_id" json:"subject_id"`
	TeacherID    string    `db:"teacher_id" json:"teacher_id"`
	RoomID       *string   `db:"room_id" json:"room_id,omitempty"`
	CreatedAt    time.Time `db:"created_at" json:"created_at"`
	UpdatedAt    time.Time `db:"updated_at" json:"updated_at"`
}

// EntryFilter narrows entry listings.
type EntryFilter struct {
	TimetableID string
	SectionID   string
	TeacherID   string
	DayOfWeek   *int
}

// ScheduleCellData is the JSON shape of one cell inside
// Timetable.ScheduleData and TimetableVersion.ScheduleData snapshots.
type ScheduleCellData struct {
	SectionID    string  `json:"section_id"`
	SubjectID    string  `json:"subject_id"`
	TeacherID    string  `json:"teacher_id"`
	RoomID       *string `json:"room_id,omitempty"`
	DayOfWeek    int     `json:"day_of_week"`
	PeriodSlotID string  `json:"period_slot_id"`
	PeriodNumber int     `json:"period_number"`
}

// VersionDiff summarises cell-level changes between two schedule snapshots.
type VersionDiff struct {
	Added      int `json:"added"`
	Removed    int `json:"removed"`
	Changed    int `json:"changed"`
	TotalCells int `json:"total_cells"`
}
