package internal

import (
	"database/sql/driver"
	"time"
)

const DateFormat = "2006-01-02"

type Date struct {
	time.Time
}

func Today() Date {
	return NewDateFromTime(time.Now())
}

func NewDateFromTime(t time.Time) Date {
	return NewDate(t.Year(), t.Month(), t.Day(), t.Location())
}

func NewDate(year int, month time.Month, day int, loc *time.Location) Date {
	return Date{time.Date(year, month, day, 0, 0, 0, 0, loc)}
}

func (d Date) AddDate(years, months, days int) Date {
	t := d.Time.AddDate(years, months, days)
	return NewDate(t.Year(), t.Month(), t.Day(), t.Location())
}

func Parse(layout, value string) (Date, error) {
	t, err := time.Parse(layout, value)
	if err != nil {
		return Date{}, err
	}
	return NewDateFromTime(t), nil
}

func (d *Date) Set(v string) error {
	parsed, err := Parse(DateFormat, v)
	if err == nil {
		*d = parsed
	}
	return err
}

func (d Date) String() string {
	return d.Format(DateFormat)
}

func (d Date) Value() (driver.Value, error) {
	return d.String(), nil
}

// DaysBetween lists every local calendar day touched by [min, max].
func DaysBetween(min, max time.Time, loc *time.Location) []Date {
	if loc == nil {
		loc = time.UTC
	}
	if max.Before(min) {
		return nil
	}
	first := NewDateFromTime(min.In(loc))
	last := NewDateFromTime(max.In(loc))

	var days []Date
	for d := first; !d.After(last.Time); d = d.AddDate(0, 0, 1) {
		days = append(days, d)
	}
	return days
}
