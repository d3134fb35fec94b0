package scheduler

// Conflict describes an accepted schedule that collides with a candidate.
type Conflict struct {
	Existing   Schedule
	SharedDays []Day
}

// SharedDays returns the closed intersection of the two day ranges.
func SharedDays(a, b Schedule) []Day {
	if a.dayEnd < b.dayStart || b.dayEnd < a.dayStart {
		return nil
	}
	lo, hi := max(a.dayStart, b.dayStart), min(a.dayEnd, b.dayEnd)
	days := make([]Day, 0, int(hi-lo)+1)
	for d := lo; d <= hi; d++ {
		days = append(days, d)
	}
	return days
}

// timesOverlap uses half-open ranges: touching endpoints do not overlap.
func timesOverlap(a, b Schedule) bool {
	return a.start < b.end && b.start < a.end
}

// Overlaps reports whether a and b share a weekday on which their hours intersect.
func Overlaps(a, b Schedule) bool {
	if len(SharedDays(a, b)) == 0 {
		return false
	}
	return timesOverlap(a, b)
}

// DetectConflicts returns every schedule in existing that overlaps candidate.
func DetectConflicts(existing []Schedule, candidate Schedule) []Conflict {
	var conflicts []Conflict
	for _, s := range existing {
		if !Overlaps(s, candidate) {
			continue
		}
		conflicts = append(conflicts, Conflict{Existing: s, SharedDays: SharedDays(s, candidate)})
	}
	return conflicts
}

// precedes reports whether a finishes before b starts wherever both apply.
func precedes(a, b Schedule) bool {
	if Overlaps(a, b) {
		return false
	}
	if len(SharedDays(a, b)) == 0 {
		return a.dayEnd < b.dayStart
	}
	return a.end <= b.start
}
