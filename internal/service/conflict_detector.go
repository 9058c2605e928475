package service

import (
	"github.com/campushq/timetable-api/internal/models"
)

type slotKey struct {
	Day    int
	Period int
}

// ConflictDetector is the single source of truth for "is this time cell
// already occupied" during generation and validation. It keeps one occupancy
// map per dimension (teacher, section, room), each keyed by (day, period).
//
// Assign does not re-check occupancy; callers must consult CanAssign first
// and own the check-then-act discipline. A detector instance is exclusively
// owned by the single run that created it and is never shared.
type ConflictDetector struct {
	teacherSchedule map[string]map[slotKey]string // occupant section
	sectionSchedule map[string]map[slotKey]string // occupant subject
	roomSchedule    map[string]map[slotKey]string // occupant section
}

// NewConflictDetector returns an empty detector.
func NewConflictDetector() *ConflictDetector {
	d := &ConflictDetector{}
	d.Reset()
	return d
}

// Reset clears all three occupancy maps.
func (d *ConflictDetector) Reset() {
	d.teacherSchedule = make(map[string]map[slotKey]string)
	d.sectionSchedule = make(map[string]map[slotKey]string)
	d.roomSchedule = make(map[string]map[slotKey]string)
}

// TeacherFree reports whether the teacher has no cell at (day, period).
func (d *ConflictDetector) TeacherFree(teacherID string, day, period int) bool {
	_, taken := d.teacherSchedule[teacherID][slotKey{day, period}]
	return !taken
}

// SectionFree reports whether the section has no cell at (day, period).
func (d *ConflictDetector) SectionFree(sectionID string, day, period int) bool {
	_, taken := d.sectionSchedule[sectionID][slotKey{day, period}]
	return !taken
}

// RoomFree reports whether the room has no cell at (day, period). An empty
// room ID is always free; room allocation is optional.
func (d *ConflictDetector) RoomFree(roomID string, day, period int) bool {
	if roomID == "" {
		return true
	}
	_, taken := d.roomSchedule[roomID][slotKey{day, period}]
	return !taken
}

// CanAssign checks all three dimensions for the proposed cell and returns
// every conflict found, naming the occupant already holding the slot. It
// never mutates state.
func (d *ConflictDetector) CanAssign(teacherID, sectionID string, day, period int, roomID string) (bool, []models.CellConflict) {
	var conflicts []models.CellConflict
	key := slotKey{day, period}

	if existing, taken := d.teacherSchedule[teacherID][key]; taken {
		conflicts = append(conflicts, models.CellConflict{
			Type:              models.ConflictTeacherOverlap,
			Day:               day,
			Period:            period,
			TeacherID:         teacherID,
			ExistingSectionID: existing,
			NewSectionID:      sectionID,
		})
	}

	if existing, taken := d.sectionSchedule[sectionID][key]; taken {
		conflicts = append(conflicts, models.CellConflict{
			Type:              models.ConflictSectionOverlap,
			Day:               day,
			Period:            period,
			SectionID:         sectionID,
			ExistingSubjectID: existing,
		})
	}

	if roomID != "" {
		if existing, taken := d.roomSchedule[roomID][key]; taken {
			conflicts = append(conflicts, models.CellConflict{
				Type:              models.ConflictRoomOverlap,
				Day:               day,
				Period:            period,
				RoomID:            roomID,
				ExistingSectionID: existing,
			})
		}
	}

	return len(conflicts) == 0, conflicts
}

// Assign records the cell into every applicable map. It silently overwrites
// existing occupancy, so callers must have passed CanAssign immediately
// before.
func (d *ConflictDetector) Assign(teacherID, sectionID, subjectID string, day, period int, roomID string) {
	key := slotKey{day, period}
	setOccupant(d.teacherSchedule, teacherID, key, sectionID)
	setOccupant(d.sectionSchedule, sectionID, key, subjectID)
	if roomID != "" {
		setOccupant(d.roomSchedule, roomID, key, sectionID)
	}
}

// Unassign removes the cell from every applicable map. Only exploratory
// callers use this; the generator's main path never backtracks.
func (d *ConflictDetector) Unassign(teacherID, sectionID string, day, period int, roomID string) {
	key := slotKey{day, period}
	delete(d.teacherSchedule[teacherID], key)
	delete(d.sectionSchedule[sectionID], key)
	if roomID != "" {
		delete(d.roomSchedule[roomID], key)
	}
}

func setOccupant(schedule map[string]map[slotKey]string, id string, key slotKey, occupant string) {
	if schedule[id] == nil {
		schedule[id] = make(map[slotKey]string)
	}
	schedule[id][key] = occupant
}
