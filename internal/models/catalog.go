package models

// Catalog entities are owned by the external entity store. The engine reads
// pre-scoped snapshots of them and never writes these tables.

// PeriodTemplate defines the daily period grid for a branch/shift pairing,
// optionally narrowed by season.
type PeriodTemplate struct {
	ID       string  `db:"id" json:"id"`
	BranchID string  `db:"branch_id" json:"branch_id"`
	ShiftID  string  `db:"shift_id" json:"shift_id"`
	SeasonID *string `db:"season_id" json:"season_id,omitempty"`
	Name     string  `db:"name" json:"name"`
	Active   bool    `db:"is_active" json:"is_active"`
}

// PeriodSlot is one ordinal period within a template. Immutable once a
// timetable entry references it.
type PeriodSlot struct {
	ID           string `db:"id" json:"id"`
	TemplateID   string `db:"template_id" json:"template_id"`
	PeriodNumber int    `db:"period_number" json:"period_number"`
	Name         string `db:"name" json:"name"`
	StartTime    string `db:"start_time" json:"start_time"`
	EndTime      string `db:"end_time" json:"end_time"`
	IsBreak      bool   `db:"is_break" json:"is_break"`
}

// Section is a teaching group (grade + section letter) attached to a shift.
type Section struct {
	ID        string `db:"id" json:"id"`
	GradeID   string `db:"grade_id" json:"grade_id"`
	GradeName string `db:"grade_name" json:"grade_name"`
	Name      string `db:"name" json:"name"`
	ShiftID   string `db:"shift_id" json:"shift_id"`
	Active    bool   `db:"is_active" json:"is_active"`
}

// DisplayName renders the section the way operators see it.
func (s Section) DisplayName() string {
	return s.GradeName + " - " + s.Name
}

// Teacher is a roster snapshot. Placeholder teachers are synthesized by the
// entity store for assignments that have no teacher yet.
type Teacher struct {
	ID          string `db:"id" json:"id"`
	FullName    string `db:"full_name" json:"full_name"`
	Active      bool   `db:"is_active" json:"is_active"`
	Placeholder bool   `db:"is_placeholder" json:"is_placeholder"`
}

// Assignment is the weekly demand unit: this teacher teaches this subject to
// this section weekly_periods times per week. Unique per
// (section, subject, session).
type Assignment struct {
	ID            string `db:"id" json:"id"`
	SectionID     string `db:"section_id" json:"section_id"`
	SubjectID     string `db:"subject_id" json:"subject_id"`
	SubjectName   string `db:"subject_name" json:"subject_name"`
	TeacherID     string `db:"teacher_id" json:"teacher_id"`
	TeacherName   string `db:"teacher_name" json:"teacher_name"`
	SessionID     string `db:"session_id" json:"session_id"`
	WeeklyPeriods int    `db:"weekly_periods" json:"weekly_periods"`
	Active        bool   `db:"is_active" json:"is_active"`
}
