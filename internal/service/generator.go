package service

import (
	"math/rand"
	"sort"

	"github.com/campushq/timetable-api/internal/dto"
	"github.com/campushq/timetable-api/internal/models"
)

const (
	reasonNoAvailableSlots = "no available slots"
	reasonNoValidSlot      = "could not find valid slot"
	reasonIterationCapHit  = "iteration cap exceeded"
	defaultMaxIterations   = 100000
	daySpreadScoreWeight   = 10
)

// placementRequirement is one atomic unit of weekly demand: a single period
// of one assignment. Priority equals the assignment's weekly period count so
// the most constrained demand is placed first.
type placementRequirement struct {
	Section    models.Section
	Assignment models.Assignment
	Priority   int
}

// expandRequirements flattens assignments into atomic requirements; an
// assignment with weekly_periods=6 yields six identical records.
func expandRequirements(sections []models.Section, assignments map[string][]models.Assignment) []placementRequirement {
	var requirements []placementRequirement
	for _, section := range sections {
		for _, assignment := range assignments[section.ID] {
			for i := 0; i < assignment.WeeklyPeriods; i++ {
				requirements = append(requirements, placementRequirement{
					Section:    section,
					Assignment: assignment,
					Priority:   assignment.WeeklyPeriods,
				})
			}
		}
	}
	return requirements
}

// orderRequirements sorts by priority descending with a randomized tie-break
// inside equal-priority groups: shuffle everything, then stable-sort by
// priority so only the relative order of equal priorities stays random.
func orderRequirements(requirements []placementRequirement, rng *rand.Rand) {
	rng.Shuffle(len(requirements), func(i, j int) {
		requirements[i], requirements[j] = requirements[j], requirements[i]
	})
	sort.SliceStable(requirements, func(i, j int) bool {
		return requirements[i].Priority > requirements[j].Priority
	})
}

// generationInput is the fully resolved, pre-scoped input of one run.
type generationInput struct {
	WorkingDays   []int
	Slots         []models.PeriodSlot // non-break, ordered by period number
	Sections      []models.Section
	Assignments   map[string][]models.Assignment // keyed by section ID
	MaxIterations int
	Rand          *rand.Rand
}

// generationOutcome buffers everything a run produced; nothing is persisted
// until the caller writes it in one transaction.
type generationOutcome struct {
	Success    bool
	Cells      []models.TimetableEntry // TimetableID left empty until persisted
	Failed     []dto.FailedRequirement
	Statistics dto.GenerationStatistics
}

type cellKey struct {
	SectionID string
	Day       int
	Period    int
}

// timetableGenerator runs the single-pass greedy placement. It deliberately
// never undoes an earlier commitment: a different ordering might avoid some
// reported failures, but bounded running time wins over completeness here.
type timetableGenerator struct {
	input    generationInput
	detector *ConflictDetector
	schedule map[cellKey]models.TimetableEntry

	teacherDayLoad  map[string]map[int]int // teacher -> day -> cells
	subjectCount    map[string]int         // sectionID+subjectID -> cells
	subjectDayCount map[string]map[int]int // sectionID+subjectID -> day -> cells
	attempts        int
}

func newTimetableGenerator(input generationInput) *timetableGenerator {
	if input.MaxIterations <= 0 {
		input.MaxIterations = defaultMaxIterations
	}
	return &timetableGenerator{
		input:           input,
		detector:        NewConflictDetector(),
		schedule:        make(map[cellKey]models.TimetableEntry),
		teacherDayLoad:  make(map[string]map[int]int),
		subjectCount:    make(map[string]int),
		subjectDayCount: make(map[string]map[int]int),
	}
}

func sectionSubjectKey(sectionID, subjectID string) string {
	return sectionID + ":" + subjectID
}

func (g *timetableGenerator) run() generationOutcome {
	g.detector.Reset()

	requirements := expandRequirements(g.input.Sections, g.input.Assignments)
	orderRequirements(requirements, g.input.Rand)

	filled := 0
	var failed []dto.FailedRequirement
	capExceeded := false

	for _, req := range requirements {
		if capExceeded {
			failed = append(failed, failedRequirement(req, reasonIterationCapHit))
			continue
		}

		// Idempotent re-entry guard: skip once the pair has enough cells.
		ssKey := sectionSubjectKey(req.Section.ID, req.Assignment.SubjectID)
		if g.subjectCount[ssKey] >= req.Assignment.WeeklyPeriods {
			filled++
			continue
		}

		candidates := g.availableSlots(req.Section.ID, req.Assignment.TeacherID)
		if len(candidates) == 0 {
			failed = append(failed, failedRequirement(req, reasonNoAvailableSlots))
			continue
		}

		g.scoreCandidates(candidates, req)
		sort.SliceStable(candidates, func(i, j int) bool {
			return candidates[i].score < candidates[j].score
		})

		assigned := false
		for _, candidate := range candidates {
			if g.attempts >= g.input.MaxIterations {
				capExceeded = true
				break
			}
			g.attempts++
			if g.tryAssign(req, candidate.day, candidate.slot) {
				assigned = true
				filled++
				break
			}
		}

		if !assigned {
			reason := reasonNoValidSlot
			if capExceeded {
				reason = reasonIterationCapHit
			}
			failed = append(failed, failedRequirement(req, reason))
		}
	}

	cells := make([]models.TimetableEntry, 0, len(g.schedule))
	for _, entry := range g.schedule {
		cells = append(cells, entry)
	}
	sort.Slice(cells, func(i, j int) bool {
		if cells[i].DayOfWeek != cells[j].DayOfWeek {
			return cells[i].DayOfWeek < cells[j].DayOfWeek
		}
		if cells[i].PeriodNumber != cells[j].PeriodNumber {
			return cells[i].PeriodNumber < cells[j].PeriodNumber
		}
		return cells[i].SectionID < cells[j].SectionID
	})

	return generationOutcome{
		Success: len(failed) == 0,
		Cells:   cells,
		Failed:  failed,
		Statistics: dto.GenerationStatistics{
			TotalRequirements: len(requirements),
			Filled:            filled,
			Failed:            len(failed),
			Sections:          len(g.input.Sections),
			WorkingDays:       len(g.input.WorkingDays),
			PeriodsPerDay:     len(g.input.Slots),
		},
	}
}

type scoredSlot struct {
	day   int
	slot  models.PeriodSlot
	score int
}

// availableSlots enumerates every (day, slot) cell the detector currently
// approves for the teacher/section pair.
func (g *timetableGenerator) availableSlots(sectionID, teacherID string) []scoredSlot {
	var available []scoredSlot
	for _, day := range g.input.WorkingDays {
		for _, slot := range g.input.Slots {
			if ok, _ := g.detector.CanAssign(teacherID, sectionID, day, slot.PeriodNumber, ""); ok {
				available = append(available, scoredSlot{day: day, slot: slot})
			}
		}
	}
	return available
}

// scoreCandidates prefers spreading a subject across days over balancing the
// teacher's daily load, in that priority order. Lower score wins.
func (g *timetableGenerator) scoreCandidates(candidates []scoredSlot, req placementRequirement) {
	ssKey := sectionSubjectKey(req.Section.ID, req.Assignment.SubjectID)
	for i := range candidates {
		day := candidates[i].day
		daySubject := g.subjectDayCount[ssKey][day]
		teacherLoad := g.teacherDayLoad[req.Assignment.TeacherID][day]
		candidates[i].score = daySubject*daySpreadScoreWeight + teacherLoad
	}
}

// tryAssign re-checks the detector before committing; state may have moved
// since enumeration because of earlier commits in the same run.
func (g *timetableGenerator) tryAssign(req placementRequirement, day int, slot models.PeriodSlot) bool {
	ok, _ := g.detector.CanAssign(req.Assignment.TeacherID, req.Section.ID, day, slot.PeriodNumber, "")
	if !ok {
		return false
	}

	g.detector.Assign(req.Assignment.TeacherID, req.Section.ID, req.Assignment.SubjectID, day, slot.PeriodNumber, "")

	g.schedule[cellKey{req.Section.ID, day, slot.PeriodNumber}] = models.TimetableEntry{
		SectionID:    req.Section.ID,
		DayOfWeek:    day,
		PeriodSlotID: slot.ID,
		PeriodNumber: slot.PeriodNumber,
		SubjectID:    req.Assignment.SubjectID,
		TeacherID:    req.Assignment.TeacherID,
	}

	ssKey := sectionSubjectKey(req.Section.ID, req.Assignment.SubjectID)
	g.subjectCount[ssKey]++
	bumpDayCount(g.subjectDayCount, ssKey, day)
	bumpDayCount(g.teacherDayLoad, req.Assignment.TeacherID, day)
	return true
}

func bumpDayCount(m map[string]map[int]int, id string, day int) {
	if m[id] == nil {
		m[id] = make(map[int]int)
	}
	m[id][day]++
}

func failedRequirement(req placementRequirement, reason string) dto.FailedRequirement {
	return dto.FailedRequirement{
		SectionID: req.Section.ID,
		Section:   req.Section.DisplayName(),
		SubjectID: req.Assignment.SubjectID,
		Subject:   req.Assignment.SubjectName,
		TeacherID: req.Assignment.TeacherID,
		Teacher:   req.Assignment.TeacherName,
		Reason:    reason,
	}
}
