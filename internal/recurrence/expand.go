package recurrence

import "time"

const secondsPerDay = 24 * 60 * 60

// Day truncates t to its calendar date, returned as midnight UTC. The
// date is read in t's own location, so a local "today" keeps its day.
func Day(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// DueDates returns every due date of rule anchored at start that falls in
// the half-open window [from, to), in ascending order. Dates before start
// are never returned. The result depends only on the arguments.
func DueDates(rule Rule, start, from, to time.Time) []time.Time {
	var dates []time.Time
	walk(rule, start, from, to, func(d time.Time) {
		dates = append(dates, d)
	})
	return dates
}

// CountBefore returns how many due dates of rule fall in [start, date).
// For a due date this is its 0-based position in the rule's sequence.
func CountBefore(rule Rule, start, date time.Time) int {
	start, date = Day(start), Day(date)
	if !start.Before(date) {
		return 0
	}

	switch rule.Freq {
	case Daily:
		n := daysBetween(start, date)
		return (n + rule.Interval - 1) / rule.Interval
	case Weekly:
		return countWeekly(rule, start, date)
	}

	count := 0
	walk(rule, start, start, date, func(time.Time) { count++ })
	return count
}

func walk(rule Rule, start, from, to time.Time, emit func(time.Time)) {
	if rule.Interval < 1 {
		return
	}
	start, from, to = Day(start), Day(from), Day(to)
	if from.Before(start) {
		from = start
	}
	if !from.Before(to) {
		return
	}

	switch rule.Freq {
	case Daily:
		walkDaily(rule, start, from, to, emit)
	case Weekly:
		walkWeekly(rule, start, from, to, emit)
	case Monthly:
		walkMonthly(rule, start, from, to, emit)
	case Yearly:
		walkYearly(rule, start, from, to, emit)
	}
}

func walkDaily(rule Rule, start, from, to time.Time, emit func(time.Time)) {
	k := ceilMultiple(daysBetween(start, from), rule.Interval)
	for d := start.AddDate(0, 0, k); d.Before(to); d = d.AddDate(0, 0, rule.Interval) {
		emit(d)
	}
}

func walkWeekly(rule Rule, start, from, to time.Time, emit func(time.Time)) {
	anchor := weekStart(start)
	offsets := weekdayOffsets(rule.ByDay)

	w := ceilMultiple(daysBetween(anchor, weekStart(from))/7, rule.Interval)
	for {
		monday := anchor.AddDate(0, 0, 7*w)
		if !monday.Before(to) {
			return
		}
		for _, off := range offsets {
			d := monday.AddDate(0, 0, off)
			if d.Before(from) || d.Before(start) {
				continue
			}
			if !d.Before(to) {
				return
			}
			emit(d)
		}
		w += rule.Interval
	}
}

func countWeekly(rule Rule, start, date time.Time) int {
	anchor := weekStart(start)
	offsets := weekdayOffsets(rule.ByDay)
	w := daysBetween(anchor, weekStart(date)) / 7

	// Weeks 0, interval, 2*interval, ... strictly before date's week.
	count := 0
	if full := ceilMultiple(w, rule.Interval) / rule.Interval; full > 0 {
		count = full * len(offsets)
		for _, off := range offsets {
			if anchor.AddDate(0, 0, off).Before(start) {
				count--
			}
		}
	}

	if w%rule.Interval == 0 {
		monday := anchor.AddDate(0, 0, 7*w)
		for _, off := range offsets {
			d := monday.AddDate(0, 0, off)
			if !d.Before(start) && d.Before(date) {
				count++
			}
		}
	}
	return count
}

func walkMonthly(rule Rule, start, from, to time.Time, emit func(time.Time)) {
	m := ceilMultiple(monthsBetween(start, from), rule.Interval)
	for {
		first := time.Date(start.Year(), start.Month()+time.Month(m), 1, 0, 0, 0, 0, time.UTC)
		if !first.Before(to) {
			return
		}
		if d, ok := selectInMonth(rule, start, first.Year(), first.Month()); ok {
			if !d.Before(from) && d.Before(to) {
				emit(d)
			}
		}
		m += rule.Interval
	}
}

func walkYearly(rule Rule, start, from, to time.Time, emit func(time.Time)) {
	y := ceilMultiple(from.Year()-start.Year(), rule.Interval)
	for {
		year := start.Year() + y
		if !time.Date(year, time.January, 1, 0, 0, 0, 0, time.UTC).Before(to) {
			return
		}
		if d, ok := selectInMonth(rule, start, year, start.Month()); ok {
			if !d.Before(from) && d.Before(to) {
				emit(d)
			}
		}
		y += rule.Interval
	}
}

// selectInMonth picks the due date of an active month. ok is false when the
// month has no date for the rule's selector. The result may precede start
// in start's own month; walk filters those out through from.
func selectInMonth(rule Rule, start time.Time, year int, month time.Month) (time.Time, bool) {
	if n := rule.ByNthDay; n != nil {
		return nthWeekday(year, month, n.Week, n.Day)
	}

	target := rule.ByMonthDay
	if target == 0 {
		target = start.Day()
	}
	last := daysInMonth(year, month)
	if target > last {
		if rule.ShortMonths == SkipShortMonths {
			return time.Time{}, false
		}
		target = last
	}
	return time.Date(year, month, target, 0, 0, 0, 0, time.UTC), true
}

func nthWeekday(year int, month time.Month, week int, wd time.Weekday) (time.Time, bool) {
	first := time.Date(year, month, 1, 0, 0, 0, 0, time.UTC)
	offset := (int(wd) - int(first.Weekday()) + 7) % 7
	dom := 1 + offset + 7*(week-1)
	if dom > daysInMonth(year, month) {
		return time.Time{}, false
	}
	return time.Date(year, month, dom, 0, 0, 0, 0, time.UTC), true
}

func weekStart(t time.Time) time.Time {
	return t.AddDate(0, 0, -mondayOffset(t.Weekday()))
}

// mondayOffset is the weekday's distance from Monday (Monday=0, Sunday=6).
func mondayOffset(wd time.Weekday) int {
	return (int(wd) + 6) % 7
}

func weekdayOffsets(days []time.Weekday) []int {
	var seen [7]bool
	for _, d := range days {
		seen[mondayOffset(d)] = true
	}
	var offsets []int
	for off, ok := range seen {
		if ok {
			offsets = append(offsets, off)
		}
	}
	return offsets
}

// daysBetween counts whole days between two UTC midnights. It works on
// Unix seconds because time.Duration saturates after about 292 years.
func daysBetween(a, b time.Time) int {
	return int((b.Unix() - a.Unix()) / secondsPerDay)
}

func monthsBetween(a, b time.Time) int {
	return (b.Year()-a.Year())*12 + int(b.Month()) - int(a.Month())
}

// ceilMultiple rounds n up to the next multiple of step; negative n gives 0.
func ceilMultiple(n, step int) int {
	if n <= 0 {
		return 0
	}
	return (n + step - 1) / step * step
}

func daysInMonth(year int, month time.Month) int {
	return time.Date(year, month+1, 0, 0, 0, 0, 0, time.UTC).Day()
}
