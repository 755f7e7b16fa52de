package pipeline

// SelectRotation returns the items scheduled for the given day of the
// month under a fixed per-day quota. Items are visited in cycles of
// ceil(len(items)/quota) days so that every item is covered exactly once
// per cycle; the last day of a cycle may carry fewer than quota items.
// The function is pure: same inputs, same selection.
func SelectRotation[T any](dayOfMonth int, items []T, quota int) []T {
	n := len(items)
	if n == 0 || quota <= 0 || dayOfMonth < 1 {
		return nil
	}
	if quota >= n {
		return items
	}

	cycleLength := (n + quota - 1) / quota
	cycleDay := (dayOfMonth - 1) % cycleLength
	start := (cycleDay * quota) % n

	end := start + quota
	if end > n {
		end = n
	}
	return items[start:end]
}
