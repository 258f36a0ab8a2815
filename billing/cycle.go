// Package billing maps transaction dates to credit-card statement cycles.
//
// A cycle closes on CloseDay and is due on DueDay of the following month. Days
// past the end of a short month are clamped to its last day, and a cycle always
// starts the day after the previous one closed, so consecutive cycles never
// overlap and never leave a gap.
package billing

import (
	"errors"
	"fmt"
	"time"
)

// ErrInvalidConfig is returned when a close or due day is outside 1..31.
var ErrInvalidConfig = errors.New("invalid cycle configuration")

// CycleConfig is the per-card billing configuration.
type CycleConfig struct {
	CloseDay int `json:"close_day" yaml:"close_day"`
	DueDay   int `json:"due_day" yaml:"due_day"`
}

// Validate checks that both days are in 1..31.
func (c CycleConfig) Validate() error {
	if c.CloseDay < 1 || c.CloseDay > 31 {
		return fmt.Errorf("%w: close day %d", ErrInvalidConfig, c.CloseDay)
	}
	if c.DueDay < 1 || c.DueDay > 31 {
		return fmt.Errorf("%w: due day %d", ErrInvalidConfig, c.DueDay)
	}
	return nil
}

// Cycle is one statement period. It is derived from a CycleConfig and a date
// and has no identity of its own beyond Key.
type Cycle struct {
	StatementYear  int        `json:"statement_year" yaml:"statement_year"`
	StatementMonth time.Month `json:"statement_month" yaml:"statement_month"`
	Start          time.Time  `json:"start" yaml:"start"`
	End            time.Time  `json:"end" yaml:"end"`
	Due            time.Time  `json:"due" yaml:"due"`
}

// Compute returns the cycle containing ref.
func Compute(cfg CycleConfig, ref time.Time) (Cycle, error) {
	if err := cfg.Validate(); err != nil {
		return Cycle{}, err
	}

	year, month, day := ref.Date()
	if day > clampDay(year, month, cfg.CloseDay) {
		year, month = addMonths(year, month, 1)
	}
	return build(cfg, year, month, ref.Location()), nil
}

// ForStatement returns the cycle that closes in the given year and month.
func ForStatement(cfg CycleConfig, year int, month time.Month) (Cycle, error) {
	if err := cfg.Validate(); err != nil {
		return Cycle{}, err
	}
	if month < time.January || month > time.December {
		return Cycle{}, fmt.Errorf("%w: month %d", ErrInvalidConfig, month)
	}
	return build(cfg, year, month, time.UTC), nil
}

func build(cfg CycleConfig, year int, month time.Month, loc *time.Location) Cycle {
	end := dayOf(year, month, cfg.CloseDay, loc)

	py, pm := addMonths(year, month, -1)
	start := dayOf(py, pm, cfg.CloseDay, loc).AddDate(0, 0, 1)

	dy, dm := addMonths(year, month, 1)
	due := dayOf(dy, dm, cfg.DueDay, loc)

	return Cycle{
		StatementYear:  year,
		StatementMonth: month,
		Start:          start,
		End:            end,
		Due:            due,
	}
}

// Contains reports whether the calendar date of t falls inside the cycle.
func (c Cycle) Contains(t time.Time) bool {
	d := time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, c.End.Location())
	return !d.Before(c.Start) && !d.After(c.End)
}

// Next returns the following cycle for the same configuration.
func (c Cycle) Next(cfg CycleConfig) Cycle {
	y, m := addMonths(c.StatementYear, c.StatementMonth, 1)
	return build(cfg, y, m, c.End.Location())
}

// Previous returns the preceding cycle for the same configuration.
func (c Cycle) Previous(cfg CycleConfig) Cycle {
	y, m := addMonths(c.StatementYear, c.StatementMonth, -1)
	return build(cfg, y, m, c.End.Location())
}

// Key identifies the statement as "YYYY-MM".
func (c Cycle) Key() string {
	return fmt.Sprintf("%04d-%02d", c.StatementYear, int(c.StatementMonth))
}

func (c Cycle) String() string {
	return fmt.Sprintf("%s [%s .. %s] due %s", c.Key(),
		c.Start.Format(time.DateOnly), c.End.Format(time.DateOnly), c.Due.Format(time.DateOnly))
}

func addMonths(year int, month time.Month, n int) (int, time.Month) {
	idx := int(month) - 1 + n
	year += idx / 12
	idx %= 12
	if idx < 0 {
		idx += 12
		year--
	}
	return year, time.Month(idx + 1)
}

func daysIn(year int, month time.Month) int {
	return time.Date(year, month+1, 0, 0, 0, 0, 0, time.UTC).Day()
}

func clampDay(year int, month time.Month, day int) int {
	if last := daysIn(year, month); day > last {
		return last
	}
	return day
}

func dayOf(year int, month time.Month, day int, loc *time.Location) time.Time {
	return time.Date(year, month, clampDay(year, month, day), 0, 0, 0, 0, loc)
}
