package scheduler

import (
	"testing"
	"time"

	"github.com/mesplatform/schedopt/pkg/models"
)

func TestGetPriorityWeight(t *testing.T) {
	tests := []struct {
		priority models.Priority
		expected int64
	}{
		{models.PriorityHigh, 3},
		{models.PriorityMid, 2},
		{"medium", 2},
		{models.PriorityLow, 1},
		{"urgent", 1}, // unknown ranks as LOW
	}

	for _, tt := range tests {
		t.Run(string(tt.priority), func(t *testing.T) {
			if got := GetPriorityWeight(tt.priority); got != tt.expected {
				t.Errorf("GetPriorityWeight(%q) = %d, expected %d", tt.priority, got, tt.expected)
			}
		})
	}
}

func TestSortJobs(t *testing.T) {
	day := func(d int) time.Time { return time.Date(2026, 3, d, 0, 0, 0, 0, time.UTC) }
	jobs := []models.Job{
		{ID: "late-high", DueDate: day(9), Priority: models.PriorityHigh},
		{ID: "early-low", DueDate: day(2), Priority: models.PriorityLow},
		{ID: "early-high", DueDate: day(2), Priority: models.PriorityHigh},
		{ID: "early-low-2", DueDate: day(2), Priority: models.PriorityLow},
		{ID: "mid-mid", DueDate: day(5), Priority: models.PriorityMid},
	}

	sorted := SortJobs(jobs)

	expected := []string{"early-high", "early-low", "early-low-2", "mid-mid", "late-high"}
	for i, id := range expected {
		if sorted[i].ID != id {
			t.Errorf("Position %d: expected %s, got %s", i, id, sorted[i].ID)
		}
	}
	if jobs[0].ID != "late-high" {
		t.Error("SortJobs must not reorder its input")
	}
}
