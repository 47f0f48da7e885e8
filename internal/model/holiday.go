package model

import (
	"errors"
	"strings"
	"time"
)

// RollingWindowDays is how far ahead a holiday list is regenerated.
const RollingWindowDays = 365

type HolidayList struct {
	ID        string
	Name      string
	FromDate  time.Time
	ToDate    time.Time
	WeeklyOff []time.Weekday
}

func (l HolidayList) Validate() error {
	if strings.TrimSpace(l.ID) == "" {
		return errors.New("model: holiday list id is required")
	}
	if strings.TrimSpace(l.Name) == "" {
		return errors.New("model: holiday list name is required")
	}
	if !l.FromDate.IsZero() && !l.ToDate.IsZero() && l.ToDate.Before(l.FromDate) {
		return errors.New("model: holiday list to_date is before from_date")
	}
	return nil
}

type Holiday struct {
	ListID      string
	Date        time.Time
	Description string
	WeeklyOff   bool
}
