package service

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/campushq/timetable-api/internal/models"
)

func TestConflictDetectorEmptyGridIsFree(t *testing.T) {
	d := NewConflictDetector()

	ok, conflicts := d.CanAssign("teacher-1", "section-1", 0, 1, "room-1")
	assert.True(t, ok)
	assert.Empty(t, conflicts)
	assert.True(t, d.TeacherFree("teacher-1", 0, 1))
	assert.True(t, d.SectionFree("section-1", 0, 1))
	assert.True(t, d.RoomFree("room-1", 0, 1))
}

func TestConflictDetectorTeacherOverlap(t *testing.T) {
	d := NewConflictDetector()
	d.Assign("teacher-1", "section-1", "subject-1", 2, 3, "")

	ok, conflicts := d.CanAssign("teacher-1", "section-2", 2, 3, "")
	require.False(t, ok)
	require.Len(t, conflicts, 1)
	assert.Equal(t, models.ConflictTeacherOverlap, conflicts[0].Type)
	assert.Equal(t, "section-1", conflicts[0].ExistingSectionID)
	assert.Equal(t, "section-2", conflicts[0].NewSectionID)

	// Same teacher is free one period over.
	ok, _ = d.CanAssign("teacher-1", "section-2", 2, 4, "")
	assert.True(t, ok)
}

func TestConflictDetectorSectionOverlap(t *testing.T) {
	d := NewConflictDetector()
	d.Assign("teacher-1", "section-1", "subject-1", 0, 1, "")

	ok, conflicts := d.CanAssign("teacher-2", "section-1", 0, 1, "")
	require.False(t, ok)
	require.Len(t, conflicts, 1)
	assert.Equal(t, models.ConflictSectionOverlap, conflicts[0].Type)
	assert.Equal(t, "subject-1", conflicts[0].ExistingSubjectID)
}

func TestConflictDetectorRoomOverlap(t *testing.T) {
	d := NewConflictDetector()
	d.Assign("teacher-1", "section-1", "subject-1", 1, 2, "room-1")

	ok, conflicts := d.CanAssign("teacher-2", "section-2", 1, 2, "room-1")
	require.False(t, ok)
	require.Len(t, conflicts, 1)
	assert.Equal(t, models.ConflictRoomOverlap, conflicts[0].Type)

	// Unassigned rooms never conflict.
	ok, _ = d.CanAssign("teacher-2", "section-2", 1, 2, "")
	assert.True(t, ok)
}

func TestConflictDetectorReportsAllDimensions(t *testing.T) {
	d := NewConflictDetector()
	d.Assign("teacher-1", "section-1", "subject-1", 0, 1, "room-1")

	ok, conflicts := d.CanAssign("teacher-1", "section-1", 0, 1, "room-1")
	require.False(t, ok)
	assert.Len(t, conflicts, 3)
}

func TestConflictDetectorUnassignFreesTheCell(t *testing.T) {
	d := NewConflictDetector()
	d.Assign("teacher-1", "section-1", "subject-1", 0, 1, "room-1")
	d.Unassign("teacher-1", "section-1", 0, 1, "room-1")

	ok, conflicts := d.CanAssign("teacher-1", "section-1", 0, 1, "room-1")
	assert.True(t, ok)
	assert.Empty(t, conflicts)
}

func TestConflictDetectorReset(t *testing.T) {
	d := NewConflictDetector()
	d.Assign("teacher-1", "section-1", "subject-1", 0, 1, "")
	d.Reset()

	assert.True(t, d.TeacherFree("teacher-1", 0, 1))
	assert.True(t, d.SectionFree("section-1", 0, 1))
}
