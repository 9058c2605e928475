package models

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func datePtr(t time.Time) *time.Time { return &t }

func TestSubstitutionStatusOn(t *testing.T) {
	today := time.Date(2026, 3, 10, 14, 30, 0, 0, time.UTC)

	tests := []struct {
		name         string
		substitution Substitution
		want         SubstitutionStatus
	}{
		{
			name:         "deactivated is cancelled regardless of window",
			substitution: Substitution{Active: false, Type: SubstitutionSinglePeriod, Date: datePtr(today)},
			want:         SubstitutionCancelled,
		},
		{
			name:         "single period today is active",
			substitution: Substitution{Active: true, Type: SubstitutionSinglePeriod, Date: datePtr(today)},
			want:         SubstitutionActive,
		},
		{
			name:         "single period yesterday is completed",
			substitution: Substitution{Active: true, Type: SubstitutionSinglePeriod, Date: datePtr(today.AddDate(0, 0, -1))},
			want:         SubstitutionCompleted,
		},
		{
			name:         "single period tomorrow is pending",
			substitution: Substitution{Active: true, Type: SubstitutionSinglePeriod, Date: datePtr(today.AddDate(0, 0, 1))},
			want:         SubstitutionPending,
		},
		{
			name: "date range spanning today is active",
			substitution: Substitution{
				Active: true, Type: SubstitutionDateRange,
				StartDate: datePtr(today.AddDate(0, 0, -2)),
				EndDate:   datePtr(today.AddDate(0, 0, 2)),
			},
			want: SubstitutionActive,
		},
		{
			name: "date range ending on today is still active",
			substitution: Substitution{
				Active: true, Type: SubstitutionDateRange,
				StartDate: datePtr(today.AddDate(0, 0, -2)),
				EndDate:   datePtr(today),
			},
			want: SubstitutionActive,
		},
		{
			name: "expired date range is completed",
			substitution: Substitution{
				Active: true, Type: SubstitutionDateRange,
				StartDate: datePtr(today.AddDate(0, 0, -9)),
				EndDate:   datePtr(today.AddDate(0, 0, -1)),
			},
			want: SubstitutionCompleted,
		},
		{
			name: "future date range is pending",
			substitution: Substitution{
				Active: true, Type: SubstitutionDateRange,
				StartDate: datePtr(today.AddDate(0, 0, 3)),
				EndDate:   datePtr(today.AddDate(0, 0, 5)),
			},
			want: SubstitutionPending,
		},
		{
			name: "open ended full term is active once started",
			substitution: Substitution{
				Active: true, Type: SubstitutionFullTerm,
				StartDate: datePtr(today.AddDate(0, 0, -30)),
			},
			want: SubstitutionActive,
		},
		{
			name: "full term not yet started is pending",
			substitution: Substitution{
				Active: true, Type: SubstitutionFullTerm,
				StartDate: datePtr(today.AddDate(0, 0, 10)),
			},
			want: SubstitutionPending,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.substitution.StatusOn(today))
		})
	}
}
