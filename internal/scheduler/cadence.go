package scheduler

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"snowpilot/pkg/errors"
)

// Mode determines how often a stage fires.
type Mode int

const (
	ModeOnce Mode = iota
	ModeInterval
	ModeCron
)

// minInterval guards against cadences tight enough to starve the loop.
const minInterval = 10 * time.Second

// Cadence is a parsed stage schedule.
type Cadence struct {
	Mode     Mode
	Interval time.Duration
	Cron     *CronSpec
}

// CronSpec holds expanded cron fields (minute, hour, day-of-month, month,
// day-of-week).
type CronSpec struct {
	Minutes   []int
	Hours     []int
	MonthDays []int
	Months    []int
	Weekdays  []int
}

// ParseCadence interprets a cadence string from config.
// Supported forms:
//   - "once" or "" fires a single run
//   - "every 5m", "every 1h" fires on a fixed interval (minimum 10s)
//   - "0 2 * * *" fires on a 5-field cron expression
func ParseCadence(s string) (*Cadence, error) {
	s = strings.TrimSpace(s)

	if s == "" || strings.EqualFold(s, "once") {
		return &Cadence{Mode: ModeOnce}, nil
	}

	if strings.HasPrefix(s, "every ") {
		dur, err := time.ParseDuration(strings.TrimSpace(strings.TrimPrefix(s, "every ")))
		if err != nil {
			return nil, errors.New(errors.ErrCodeConfigInvalid,
				fmt.Sprintf("Invalid cadence interval %q", s)).
				WithSuggestions("Use a Go duration, e.g. \"every 5m\"")
		}
		if dur < minInterval {
			return nil, errors.New(errors.ErrCodeConfigInvalid,
				fmt.Sprintf("Cadence %q is below the %s minimum", s, minInterval))
		}
		return &Cadence{Mode: ModeInterval, Interval: dur}, nil
	}

	spec, err := parseCron(s)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeConfigInvalid,
			fmt.Sprintf("Invalid cadence %q", s)).
			WithSuggestions("Use \"once\", \"every <duration>\" or a 5-field cron expression")
	}
	return &Cadence{Mode: ModeCron, Cron: spec}, nil
}

func parseCron(s string) (*CronSpec, error) {
	fields := strings.Fields(s)
	if len(fields) != 5 {
		return nil, fmt.Errorf("expected 5 fields, got %d", len(fields))
	}

	minutes, err := parseCronField(fields[0], 0, 59)
	if err != nil {
		return nil, fmt.Errorf("minute field: %w", err)
	}
	hours, err := parseCronField(fields[1], 0, 23)
	if err != nil {
		return nil, fmt.Errorf("hour field: %w", err)
	}
	monthDays, err := parseCronField(fields[2], 1, 31)
	if err != nil {
		return nil, fmt.Errorf("day-of-month field: %w", err)
	}
	months, err := parseCronField(fields[3], 1, 12)
	if err != nil {
		return nil, fmt.Errorf("month field: %w", err)
	}
	weekdays, err := parseCronField(fields[4], 0, 6)
	if err != nil {
		return nil, fmt.Errorf("day-of-week field: %w", err)
	}

	return &CronSpec{
		Minutes:   minutes,
		Hours:     hours,
		MonthDays: monthDays,
		Months:    months,
		Weekdays:  weekdays,
	}, nil
}

func parseCronField(field string, min, max int) ([]int, error) {
	if field == "*" {
		vals := make([]int, max-min+1)
		for i := range vals {
			vals[i] = min + i
		}
		return vals, nil
	}

	if strings.HasPrefix(field, "*/") {
		step, err := strconv.Atoi(strings.TrimPrefix(field, "*/"))
		if err != nil || step < 1 {
			return nil, fmt.Errorf("invalid step %q", field)
		}
		var vals []int
		for i := min; i <= max; i += step {
			vals = append(vals, i)
		}
		return vals, nil
	}

	var vals []int
	for _, part := range strings.Split(field, ",") {
		if strings.Contains(part, "-") {
			bounds := strings.SplitN(part, "-", 2)
			start, err := strconv.Atoi(bounds[0])
			if err != nil {
				return nil, fmt.Errorf("invalid range start %q", part)
			}
			end, err := strconv.Atoi(bounds[1])
			if err != nil {
				return nil, fmt.Errorf("invalid range end %q", part)
			}
			if start < min || end > max || start > end {
				return nil, fmt.Errorf("range %q out of bounds [%d-%d]", part, min, max)
			}
			for i := start; i <= end; i++ {
				vals = append(vals, i)
			}
			continue
		}
		v, err := strconv.Atoi(part)
		if err != nil {
			return nil, fmt.Errorf("invalid value %q", part)
		}
		if v < min || v > max {
			return nil, fmt.Errorf("value %d out of bounds [%d-%d]", v, min, max)
		}
		vals = append(vals, v)
	}
	return vals, nil
}

// Next returns the first time after from at which the expression matches.
func (c *CronSpec) Next(from time.Time) time.Time {
	t := from.Add(time.Minute).Truncate(time.Minute)

	// Scan minute by minute up to one year out.
	for i := 0; i < 527040; i++ {
		if contains(c.Months, int(t.Month())) &&
			contains(c.MonthDays, t.Day()) &&
			contains(c.Weekdays, int(t.Weekday())) &&
			contains(c.Hours, t.Hour()) &&
			contains(c.Minutes, t.Minute()) {
			return t
		}
		t = t.Add(time.Minute)
	}
	return t
}

func contains(vals []int, v int) bool {
	for _, val := range vals {
		if val == v {
			return true
		}
	}
	return false
}
