package services

import "sort"

// LevelTable resolves a cumulative XP total to a level. Thresholds are a
// fixed ascending sequence where thresholds[n] is the total required for
// level n+1; ties resolve to the higher level.
type LevelTable struct {
	thresholds []int64
}

// DefaultLevelThresholds is the built-in progression curve:
// 0, 100, 300, 600, 1000, ... (level n requires 100 more XP than the
// previous step).
func DefaultLevelThresholds() []int64 {
	thresholds := make([]int64, 0, 50)
	var total int64
	for n := 0; n < 50; n++ {
		thresholds = append(thresholds, total)
		total += int64(n+1) * 100
	}
	return thresholds
}

func NewLevelTable(thresholds []int64) LevelTable {
	owned := append([]int64(nil), thresholds...)
	sort.Slice(owned, func(i, j int) bool { return owned[i] < owned[j] })
	if len(owned) == 0 {
		owned = []int64{0}
	}
	return LevelTable{thresholds: owned}
}

// LevelFor returns the highest level whose threshold is <= total, never
// less than 1.
func (t LevelTable) LevelFor(total int64) int {
	// First index with threshold > total; the level is that index.
	idx := sort.Search(len(t.thresholds), func(i int) bool {
		return t.thresholds[i] > total
	})
	if idx < 1 {
		return 1
	}
	return idx
}

// MaxLevel reports the number of configured levels.
func (t LevelTable) MaxLevel() int {
	return len(t.thresholds)
}
