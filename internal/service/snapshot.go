package service

import (
	"encoding/json"
	"strconv"

	"github.com/jmoiron/sqlx/types"

	"github.com/campushq/timetable-api/internal/models"
	appErrors "github.com/campushq/timetable-api/pkg/errors"
)

// scheduleSnapshot is the persisted JSON shape of a full schedule:
// section id -> day-of-week -> period number -> cell.
type scheduleSnapshot map[string]map[string]map[string]models.ScheduleCellData

func buildScheduleSnapshot(entries []models.TimetableEntry) scheduleSnapshot {
	snapshot := make(scheduleSnapshot)
	for _, entry := range entries {
		dayKey := strconv.Itoa(entry.DayOfWeek)
		periodKey := strconv.Itoa(entry.PeriodNumber)
		if snapshot[entry.SectionID] == nil {
			snapshot[entry.SectionID] = make(map[string]map[string]models.ScheduleCellData)
		}
		if snapshot[entry.SectionID][dayKey] == nil {
			snapshot[entry.SectionID][dayKey] = make(map[string]models.ScheduleCellData)
		}
		snapshot[entry.SectionID][dayKey][periodKey] = models.ScheduleCellData{
			SectionID:    entry.SectionID,
			SubjectID:    entry.SubjectID,
			TeacherID:    entry.TeacherID,
			RoomID:       entry.RoomID,
			DayOfWeek:    entry.DayOfWeek,
			PeriodSlotID: entry.PeriodSlotID,
			PeriodNumber: entry.PeriodNumber,
		}
	}
	return snapshot
}

func encodeScheduleSnapshot(snapshot scheduleSnapshot) (types.JSONText, error) {
	payload, err := json.Marshal(snapshot)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to encode schedule snapshot")
	}
	return types.JSONText(payload), nil
}

func decodeScheduleSnapshot(raw types.JSONText) (scheduleSnapshot, error) {
	snapshot := make(scheduleSnapshot)
	if len(raw) == 0 {
		return snapshot, nil
	}
	if err := json.Unmarshal(raw, &snapshot); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to decode schedule snapshot")
	}
	return snapshot, nil
}

// snapshotCells flattens a snapshot back into entry records, without IDs or
// timetable references; callers fill those in before persisting.
func snapshotCells(snapshot scheduleSnapshot) []models.TimetableEntry {
	var cells []models.TimetableEntry
	for _, days := range snapshot {
		for _, periods := range days {
			for _, cell := range periods {
				cells = append(cells, models.TimetableEntry{
					SectionID:    cell.SectionID,
					DayOfWeek:    cell.DayOfWeek,
					PeriodSlotID: cell.PeriodSlotID,
					PeriodNumber: cell.PeriodNumber,
					SubjectID:    cell.SubjectID,
					TeacherID:    cell.TeacherID,
					RoomID:       cell.RoomID,
				})
			}
		}
	}
	return cells
}

// diffSnapshots summarises cell-level changes from an older snapshot to a
// newer one. A cell counts as changed when the same (section, day, period)
// coordinate holds a different subject, teacher, or room.
func diffSnapshots(previous, next scheduleSnapshot) models.VersionDiff {
	diff := models.VersionDiff{}

	for sectionID, days := range next {
		for dayKey, periods := range days {
			for periodKey, cell := range periods {
				diff.TotalCells++
				old, ok := snapshotCell(previous, sectionID, dayKey, periodKey)
				switch {
				case !ok:
					diff.Added++
				case old.SubjectID != cell.SubjectID || old.TeacherID != cell.TeacherID || !equalRoom(old.RoomID, cell.RoomID):
					diff.Changed++
				}
			}
		}
	}

	for sectionID, days := range previous {
		for dayKey, periods := range days {
			for periodKey := range periods {
				if _, ok := snapshotCell(next, sectionID, dayKey, periodKey); !ok {
					diff.Removed++
				}
			}
		}
	}

	return diff
}

func snapshotCell(snapshot scheduleSnapshot, sectionID, dayKey, periodKey string) (models.ScheduleCellData, bool) {
	days, ok := snapshot[sectionID]
	if !ok {
		return models.ScheduleCellData{}, false
	}
	periods, ok := days[dayKey]
	if !ok {
		return models.ScheduleCellData{}, false
	}
	cell, ok := periods[periodKey]
	return cell, ok
}

func equalRoom(a, b *string) bool {
	if a == nil || b == nil {
		return a == b
	}
	return *a == *b
}
