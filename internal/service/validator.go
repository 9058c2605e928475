package service

import (
	"sort"

	"github.com/campushq/timetable-api/internal/models"
)

// replayEntries feeds a timetable's cells through a fresh conflict detector
// in deterministic order (day, then period, then section id). A cell that
// fails the check is reported, tagged with its entry id, and NOT committed,
// so the earlier cell in replay order keeps the slot.
func replayEntries(entries []models.TimetableEntry) []models.CellConflict {
	ordered := make([]models.TimetableEntry, len(entries))
	copy(ordered, entries)
	sort.SliceStable(ordered, func(i, j int) bool {
		if ordered[i].DayOfWeek != ordered[j].DayOfWeek {
			return ordered[i].DayOfWeek < ordered[j].DayOfWeek
		}
		if ordered[i].PeriodNumber != ordered[j].PeriodNumber {
			return ordered[i].PeriodNumber < ordered[j].PeriodNumber
		}
		return ordered[i].SectionID < ordered[j].SectionID
	})

	detector := NewConflictDetector()
	var result []models.CellConflict
	for _, entry := range ordered {
		roomID := ""
		if entry.RoomID != nil {
			roomID = *entry.RoomID
		}
		ok, conflicts := detector.CanAssign(entry.TeacherID, entry.SectionID, entry.DayOfWeek, entry.PeriodNumber, roomID)
		if !ok {
			for i := range conflicts {
				conflicts[i].EntryID = entry.ID
			}
			result = append(result, conflicts...)
			continue
		}
		detector.Assign(entry.TeacherID, entry.SectionID, entry.SubjectID, entry.DayOfWeek, entry.PeriodNumber, roomID)
	}
	return result
}

// replayDetector rebuilds detector state from an entry set, skipping at most
// one entry by id. Used for manual edit checks where the edited cell must not
// collide with itself.
func replayDetector(entries []models.TimetableEntry, skipEntryID string) *ConflictDetector {
	detector := NewConflictDetector()
	for _, entry := range entries {
		if skipEntryID != "" && entry.ID == skipEntryID {
			continue
		}
		roomID := ""
		if entry.RoomID != nil {
			roomID = *entry.RoomID
		}
		detector.Assign(entry.TeacherID, entry.SectionID, entry.SubjectID, entry.DayOfWeek, entry.PeriodNumber, roomID)
	}
	return detector
}
