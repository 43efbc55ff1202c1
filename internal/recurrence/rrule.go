package recurrence

import (
	"errors"
	"fmt"
	"slices"
	"strconv"
	"strings"
	"time"
)

// ErrInvalidRule is wrapped by every error returned from Parse and Validate.
var ErrInvalidRule = errors.New("invalid recurrence rule")

type Freq int

const (
	Daily Freq = iota
	Weekly
	Monthly
	Yearly
)

var freqNames = map[Freq]string{
	Daily:   "DAILY",
	Weekly:  "WEEKLY",
	Monthly: "MONTHLY",
	Yearly:  "YEARLY",
}

var freqFromName = map[string]Freq{
	"DAILY":   Daily,
	"WEEKLY":  Weekly,
	"MONTHLY": Monthly,
	"YEARLY":  Yearly,
}

var dayNames = map[string]time.Weekday{
	"SU": time.Sunday,
	"MO": time.Monday,
	"TU": time.Tuesday,
	"WE": time.Wednesday,
	"TH": time.Thursday,
	"FR": time.Friday,
	"SA": time.Saturday,
}

var dayAbbrev = map[time.Weekday]string{
	time.Sunday:    "SU",
	time.Monday:    "MO",
	time.Tuesday:   "TU",
	time.Wednesday: "WE",
	time.Thursday:  "TH",
	time.Friday:    "FR",
	time.Saturday:  "SA",
}

func (f Freq) String() string {
	if n, ok := freqNames[f]; ok {
		return n
	}
	return fmt.Sprintf("Freq(%d)", int(f))
}

// ShortMonthPolicy decides what a day-of-month rule does in a month that is
// too short for the requested day.
type ShortMonthPolicy int

const (
	// ClampToMonthEnd moves the due date to the month's last day.
	ClampToMonthEnd ShortMonthPolicy = iota
	// SkipShortMonths emits nothing for that month.
	SkipShortMonths
)

// NthWeekday selects the Week-th instance of Day within a month.
type NthWeekday struct {
	Week int          `json:"week"`
	Day  time.Weekday `json:"day"`
}

// Rule is a recurrence rule. Which selector fields may be set depends on
// Freq; Validate rejects combinations that do not belong to the frequency.
type Rule struct {
	Freq        Freq
	Interval    int              // every N units, >= 1
	ByDay       []time.Weekday   // WEEKLY only, non-empty
	ByMonthDay  int              // MONTHLY/YEARLY: 1-31, 0 = the start date's day
	ByNthDay    *NthWeekday      // MONTHLY/YEARLY, exclusive with ByMonthDay
	ShortMonths ShortMonthPolicy // applies to day-of-month selection only
}

// EveryDays returns a DAILY rule.
func EveryDays(interval int) Rule {
	return Rule{Freq: Daily, Interval: interval}
}

// EveryWeeks returns a WEEKLY rule on the given weekdays.
func EveryWeeks(interval int, days ...time.Weekday) Rule {
	return Rule{Freq: Weekly, Interval: interval, ByDay: days}
}

// EveryMonthsOnDay returns a MONTHLY rule on a fixed day of the month.
func EveryMonthsOnDay(interval, day int) Rule {
	return Rule{Freq: Monthly, Interval: interval, ByMonthDay: day}
}

// EveryMonthsOnNth returns a MONTHLY rule on the week-th weekday of the month.
func EveryMonthsOnNth(interval, week int, day time.Weekday) Rule {
	return Rule{Freq: Monthly, Interval: interval, ByNthDay: &NthWeekday{Week: week, Day: day}}
}

// EveryYears returns a YEARLY rule anchored on the start date.
func EveryYears(interval int) Rule {
	return Rule{Freq: Yearly, Interval: interval}
}

func invalid(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrInvalidRule, fmt.Sprintf(format, args...))
}

// Validate reports whether the rule is well formed for its frequency.
func (r Rule) Validate() error {
	if _, ok := freqNames[r.Freq]; !ok {
		return invalid("unknown frequency %d", int(r.Freq))
	}
	if r.Interval < 1 {
		return invalid("interval must be >= 1, got %d", r.Interval)
	}

	switch r.Freq {
	case Daily:
		if len(r.ByDay) > 0 || r.ByMonthDay != 0 || r.ByNthDay != nil {
			return invalid("daily rule takes no day selectors")
		}
	case Weekly:
		if len(r.ByDay) == 0 {
			return invalid("weekly rule requires at least one weekday")
		}
		if r.ByMonthDay != 0 || r.ByNthDay != nil {
			return invalid("weekly rule takes only weekdays")
		}
		seen := make(map[time.Weekday]bool, len(r.ByDay))
		for _, d := range r.ByDay {
			if d < time.Sunday || d > time.Saturday {
				return invalid("weekday %d out of range", int(d))
			}
			if seen[d] {
				return invalid("weekday %s listed twice", d)
			}
			seen[d] = true
		}
	case Monthly, Yearly:
		if len(r.ByDay) > 0 {
			return invalid("%s rule cannot use a weekday set", strings.ToLower(r.Freq.String()))
		}
		if r.ByMonthDay != 0 && r.ByNthDay != nil {
			return invalid("day of month and nth weekday are mutually exclusive")
		}
		if r.ByMonthDay < 0 || r.ByMonthDay > 31 {
			return invalid("day of month must be 1-31, got %d", r.ByMonthDay)
		}
		if n := r.ByNthDay; n != nil {
			if n.Week < 1 || n.Week > 5 {
				return invalid("nth weekday week must be 1-5, got %d", n.Week)
			}
			if n.Day < time.Sunday || n.Day > time.Saturday {
				return invalid("nth weekday day %d out of range", int(n.Day))
			}
		}
	}
	return nil
}

// Parse parses a rule string like "FREQ=WEEKLY;BYDAY=MO,WE;INTERVAL=2".
// The nth-weekday selector is written "BYDAY=2TU" on MONTHLY and YEARLY
// rules, and "SHORTMONTH=SKIP" selects SkipShortMonths.
func Parse(rule string) (Rule, error) {
	if rule == "" {
		return Rule{}, invalid("empty rule")
	}

	r := Rule{Interval: 1}
	var hasFreq bool
	var byDay string

	parts := strings.Split(rule, ";")
	for _, part := range parts {
		kv := strings.SplitN(part, "=", 2)
		if len(kv) != 2 {
			return Rule{}, invalid("invalid rule part: %q", part)
		}
		key, val := kv[0], kv[1]

		switch key {
		case "FREQ":
			f, ok := freqFromName[val]
			if !ok {
				return Rule{}, invalid("unknown frequency: %q", val)
			}
			r.Freq = f
			hasFreq = true

		case "INTERVAL":
			n, err := strconv.Atoi(val)
			if err != nil || n < 1 {
				return Rule{}, invalid("invalid interval: %q", val)
			}
			r.Interval = n

		case "BYDAY":
			// Decoded after FREQ is known, since "2TU" is only legal on monthly/yearly rules.
			byDay = val

		case "BYMONTHDAY":
			n, err := strconv.Atoi(val)
			if err != nil || n < 1 || n > 31 {
				return Rule{}, invalid("invalid BYMONTHDAY: %q", val)
			}
			r.ByMonthDay = n

		case "SHORTMONTH":
			switch val {
			case "CLAMP":
				r.ShortMonths = ClampToMonthEnd
			case "SKIP":
				r.ShortMonths = SkipShortMonths
			default:
				return Rule{}, invalid("invalid SHORTMONTH: %q", val)
			}

		default:
			return Rule{}, invalid("unsupported rule key: %q", key)
		}
	}

	if !hasFreq {
		return Rule{}, invalid("FREQ is required")
	}

	if byDay != "" {
		if err := r.parseByDay(byDay); err != nil {
			return Rule{}, err
		}
	}

	if err := r.Validate(); err != nil {
		return Rule{}, err
	}
	return r, nil
}

func (r *Rule) parseByDay(val string) error {
	for _, d := range strings.Split(val, ",") {
		d = strings.TrimSpace(d)
		if len(d) < 2 {
			return invalid("unknown day: %q", d)
		}
		prefix, abbrev := d[:len(d)-2], d[len(d)-2:]
		wd, ok := dayNames[abbrev]
		if !ok {
			return invalid("unknown day: %q", d)
		}
		if prefix == "" {
			r.ByDay = append(r.ByDay, wd)
			continue
		}
		week, err := strconv.Atoi(prefix)
		if err != nil {
			return invalid("unknown day: %q", d)
		}
		if r.ByNthDay != nil {
			return invalid("only one nth weekday is supported")
		}
		r.ByNthDay = &NthWeekday{Week: week, Day: wd}
	}
	return nil
}

// String serializes the rule back to its text form. Parse(r.String())
// yields r for every valid rule.
func (r Rule) String() string {
	var parts []string
	parts = append(parts, "FREQ="+r.Freq.String())

	if r.Interval > 1 {
		parts = append(parts, fmt.Sprintf("INTERVAL=%d", r.Interval))
	}

	if len(r.ByDay) > 0 {
		var days []string
		for _, d := range r.ByDay {
			days = append(days, dayAbbrev[d])
		}
		parts = append(parts, "BYDAY="+strings.Join(days, ","))
	}

	if r.ByNthDay != nil {
		parts = append(parts, fmt.Sprintf("BYDAY=%d%s", r.ByNthDay.Week, dayAbbrev[r.ByNthDay.Day]))
	}

	if r.ByMonthDay > 0 {
		parts = append(parts, fmt.Sprintf("BYMONTHDAY=%d", r.ByMonthDay))
	}

	if r.ShortMonths == SkipShortMonths {
		parts = append(parts, "SHORTMONTH=SKIP")
	}

	return strings.Join(parts, ";")
}

// MarshalText encodes the rule as its String form, so rules travel through
// JSON and YAML as plain strings.
func (r Rule) MarshalText() ([]byte, error) {
	return []byte(r.String()), nil
}

// UnmarshalText parses and validates a rule string.
func (r *Rule) UnmarshalText(text []byte) error {
	parsed, err := Parse(string(text))
	if err != nil {
		return err
	}
	*r = parsed
	return nil
}

// Equal reports whether two rules describe the same schedule.
func (r Rule) Equal(o Rule) bool {
	return r.String() == o.String()
}

func ordinal(n int) string {
	switch n {
	case 1:
		return "1st"
	case 2:
		return "2nd"
	case 3:
		return "3rd"
	}
	return fmt.Sprintf("%dth", n)
}

// Describe returns a human-readable description of the rule.
func (r Rule) Describe() string {
	switch r.Freq {
	case Daily:
		if r.Interval > 1 {
			return fmt.Sprintf("Repeats every %d days", r.Interval)
		}
		return "Repeats daily"
	case Weekly:
		prefix := "Repeats weekly"
		if r.Interval > 1 {
			prefix = fmt.Sprintf("Repeats every %d weeks", r.Interval)
		}
		if len(r.ByDay) > 0 {
			days := slices.Clone(r.ByDay)
			slices.SortFunc(days, func(a, b time.Weekday) int { return mondayOffset(a) - mondayOffset(b) })
			var names []string
			for _, d := range days {
				names = append(names, d.String()[:3])
			}
			return prefix + " on " + strings.Join(names, ", ")
		}
		return prefix
	case Monthly:
		prefix := "Repeats monthly"
		if r.Interval > 1 {
			prefix = fmt.Sprintf("Repeats every %d months", r.Interval)
		}
		switch {
		case r.ByNthDay != nil:
			return fmt.Sprintf("%s on the %s %s", prefix, ordinal(r.ByNthDay.Week), r.ByNthDay.Day)
		case r.ByMonthDay > 0:
			return fmt.Sprintf("%s on day %d", prefix, r.ByMonthDay)
		}
		return prefix
	case Yearly:
		if r.Interval > 1 {
			return fmt.Sprintf("Repeats every %d years", r.Interval)
		}
		return "Repeats yearly"
	}
	return ""
}
