// Package schedule provides business-day arithmetic for deriving project start dates.
package schedule

import (
	"errors"
	"fmt"
	"os"
	"sort"
	"time"

	"gopkg.in/yaml.v3"
)

const dateLayout = "2006-01-02"

// maxHolidayFileSize guards against reading an unreasonably large holiday file.
const maxHolidayFileSize = 1 << 20

// Calendar decides which days count as business days.
type Calendar interface {
	IsBusinessDay(t time.Time) bool
	// AddBusinessDays moves n business days from t; negative n moves backwards.
	// t itself is never counted.
	AddBusinessDays(t time.Time, n int) time.Time
}

// Compile-time interface satisfaction check.
var _ Calendar = (*WeekdayCalendar)(nil)

// WeekdayCalendar treats Monday through Friday as business days, minus holidays.
type WeekdayCalendar struct {
	holidays map[string]struct{}
}

// NewWeekdayCalendar creates a calendar with the given holidays (time of day is ignored).
func NewWeekdayCalendar(holidays ...time.Time) *WeekdayCalendar {
	c := &WeekdayCalendar{holidays: make(map[string]struct{}, len(holidays))}
	for _, h := range holidays {
		c.holidays[h.Format(dateLayout)] = struct{}{}
	}
	return c
}

// IsHoliday reports whether t's calendar date is a configured holiday.
func (c *WeekdayCalendar) IsHoliday(t time.Time) bool {
	_, ok := c.holidays[t.Format(dateLayout)]
	return ok
}

// Holidays returns the configured holidays in ascending order.
func (c *WeekdayCalendar) Holidays() []string {
	out := make([]string, 0, len(c.holidays))
	for d := range c.holidays {
		out = append(out, d)
	}
	sort.Strings(out)
	return out
}

// IsBusinessDay implements Calendar.
func (c *WeekdayCalendar) IsBusinessDay(t time.Time) bool {
	switch t.Weekday() {
	case time.Saturday, time.Sunday:
		return false
	}
	return !c.IsHoliday(t)
}

// AddBusinessDays implements Calendar.
func (c *WeekdayCalendar) AddBusinessDays(t time.Time, n int) time.Time {
	step := 1
	if n < 0 {
		step, n = -1, -n
	}
	for n > 0 {
		t = t.AddDate(0, 0, step)
		if c.IsBusinessDay(t) {
			n--
		}
	}
	return t
}

// ProjectStartDate is leadBusinessDays business days before the customer schedule.
func ProjectStartDate(cal Calendar, customerSchedule time.Time, leadBusinessDays int) time.Time {
	return cal.AddBusinessDays(customerSchedule, -leadBusinessDays)
}

// ParseHolidays parses YYYY-MM-DD strings.
func ParseHolidays(dates []string) ([]time.Time, error) {
	out := make([]time.Time, 0, len(dates))
	for _, d := range dates {
		t, err := time.Parse(dateLayout, d)
		if err != nil {
			return nil, fmt.Errorf("invalid holiday %q: %w", d, err)
		}
		out = append(out, t)
	}
	return out, nil
}

// LoadHolidays reads a holiday file. Two layouts are accepted:
//
//	["2025-01-01", "2025-02-28"]
//
// or dates grouped by year:
//
//	"2025": ["2025-01-01", "2025-02-28"]
//
// JSON files are valid YAML and load the same way.
func LoadHolidays(path string) ([]time.Time, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("stat holiday file: %w", err)
	}
	if info.Size() > maxHolidayFileSize {
		return nil, fmt.Errorf("holiday file %s exceeds %d bytes", path, maxHolidayFileSize)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read holiday file: %w", err)
	}

	var node yaml.Node
	if err := yaml.Unmarshal(data, &node); err != nil {
		return nil, fmt.Errorf("parse holiday file %s: %w", path, err)
	}
	if len(node.Content) == 0 {
		return []time.Time{}, nil
	}

	var dates []string
	root := node.Content[0]
	switch root.Kind {
	case yaml.SequenceNode:
		if err := root.Decode(&dates); err != nil {
			return nil, fmt.Errorf("parse holiday file %s: %w", path, err)
		}
	case yaml.MappingNode:
		var byYear map[string][]string
		if err := root.Decode(&byYear); err != nil {
			return nil, fmt.Errorf("parse holiday file %s: %w", path, err)
		}
		years := make([]string, 0, len(byYear))
		for y := range byYear {
			years = append(years, y)
		}
		sort.Strings(years)
		for _, y := range years {
			dates = append(dates, byYear[y]...)
		}
	default:
		return nil, errors.New("holiday file must be a list of dates or a map of year to dates")
	}

	return ParseHolidays(dates)
}
