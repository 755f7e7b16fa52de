package pipeline

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSelectRotation_CyclesThroughAllItems(t *testing.T) {
	items := []string{"a", "b", "c", "d", "e", "f", "g", "h", "i", "j"}
	quota := 2

	// 10 items at 2/day is a 5-day cycle; each item appears exactly once.
	seen := map[string]int{}
	for day := 1; day <= 5; day++ {
		for _, it := range SelectRotation(day, items, quota) {
			seen[it]++
		}
	}
	assert.Len(t, seen, len(items))
	for _, count := range seen {
		assert.Equal(t, 1, count)
	}

	// Day 6 starts the cycle over.
	assert.Equal(t, SelectRotation(1, items, quota), SelectRotation(6, items, quota))
}

func TestSelectRotation_Deterministic(t *testing.T) {
	items := []string{"a", "b", "c", "d", "e"}
	assert.Equal(t, SelectRotation(3, items, 2), SelectRotation(3, items, 2))
	assert.Equal(t, []string{"e"}, SelectRotation(3, items, 2))
}

func TestSelectRotation_ShortTail(t *testing.T) {
	items := []string{"a", "b", "c", "d", "e", "f", "g"}
	// 7 items at 3/day: days 1-2 carry 3, day 3 carries the single leftover.
	assert.Len(t, SelectRotation(1, items, 3), 3)
	assert.Len(t, SelectRotation(2, items, 3), 3)
	assert.Equal(t, []string{"g"}, SelectRotation(3, items, 3))
}

func TestSelectRotation_QuotaCoversEverything(t *testing.T) {
	items := []string{"a", "b", "c"}
	assert.Equal(t, items, SelectRotation(1, items, 3))
	assert.Equal(t, items, SelectRotation(17, items, 10))
}

func TestSelectRotation_DegenerateInputs(t *testing.T) {
	assert.Nil(t, SelectRotation(1, []string(nil), 2))
	assert.Nil(t, SelectRotation(1, []string{"a"}, 0))
	assert.Nil(t, SelectRotation(0, []string{"a"}, 1))
}
