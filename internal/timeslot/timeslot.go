// Package timeslot parses the free-text weekly schedule notation used by
// course offerings ("周一1-2节，周三3-4节") into a typed set of
// (weekday, period) pairs. Comparison logic elsewhere operates on the set
// only; raw schedule strings never leak past this package.
package timeslot

import (
	"regexp"
	"strconv"
	"strings"
)

const (
	// MinPeriod and MaxPeriod bound the daily teaching grid.
	MinPeriod = 1
	MaxPeriod = 14
)

// Slot is one (weekday, period) cell of the weekly grid.
// Weekday runs 1 (Monday) to 5 (Friday).
type Slot struct {
	Weekday int
	Period  int
}

// Set is a collection of occupied slots.
type Set map[Slot]struct{}

// fragmentPattern matches one schedule fragment: a weekday token in either
// spelled-out (周一..周五) or numeric (周1..周5) form, followed by a period
// range with a 节 or 堂 suffix. Range separators -, ~ and 至 are accepted.
var fragmentPattern = regexp.MustCompile(`(周[一二三四五]|周[1-5])\s*(\d+)\s*[-~至]\s*(\d+)\s*[节堂]`)

var weekdays = map[string]int{
	"周一": 1, "周二": 2, "周三": 3, "周四": 4, "周五": 5,
	"周1": 1, "周2": 2, "周3": 3, "周4": 4, "周5": 5,
}

// Parse converts schedule text into the set of slots it covers. Fragments are
// separated by full-width or ASCII commas or 、. Unparsable fragments are
// skipped, periods are clamped to [MinPeriod, MaxPeriod], and a fragment whose
// start exceeds its end is discarded. Parse is pure and never fails.
func Parse(text string) Set {
	set := make(Set)
	if strings.TrimSpace(text) == "" {
		return set
	}

	for _, fragment := range splitFragments(text) {
		m := fragmentPattern.FindStringSubmatch(fragment)
		if m == nil {
			continue
		}

		weekday, ok := weekdays[m[1]]
		if !ok {
			continue
		}

		start, err := strconv.Atoi(m[2])
		if err != nil {
			continue
		}
		end, err := strconv.Atoi(m[3])
		if err != nil {
			continue
		}

		if start < MinPeriod {
			start = MinPeriod
		}
		if end > MaxPeriod {
			end = MaxPeriod
		}
		if start > end {
			continue
		}

		for period := start; period <= end; period++ {
			set[Slot{Weekday: weekday, Period: period}] = struct{}{}
		}
	}

	return set
}

func splitFragments(text string) []string {
	return strings.FieldsFunc(text, func(r rune) bool {
		return r == '，' || r == ',' || r == '、'
	})
}

// Contains reports whether the set occupies the given slot.
func (s Set) Contains(slot Slot) bool {
	_, ok := s[slot]
	return ok
}

// Overlaps reports whether any slot is occupied by both sets.
func (s Set) Overlaps(other Set) bool {
	small, large := s, other
	if len(large) < len(small) {
		small, large = large, small
	}
	for slot := range small {
		if _, ok := large[slot]; ok {
			return true
		}
	}
	return false
}

// Empty reports whether the set covers no slots.
func (s Set) Empty() bool {
	return len(s) == 0
}
