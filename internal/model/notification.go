package model

import (
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"
)

var (
	ErrInvalidChannel = errors.New("model: invalid notification channel")
	ErrInvalidPhone   = errors.New("model: invalid phone number")
	ErrInvalidSendAt  = errors.New("model: invalid send_at clock")
)

type Channel string

const (
	ChannelWhatsApp Channel = "WhatsApp"
	ChannelLog      Channel = "Log"
)

func (c Channel) IsValid() bool {
	switch c {
	case ChannelWhatsApp, ChannelLog:
		return true
	default:
		return false
	}
}

var phonePattern = regexp.MustCompile(`^\+?[0-9]{8,15}$`)

// NotificationRule schedules a message for every instance of a definition,
// DaysBefore days ahead of the due date at the SendAt wall clock ("HH:MM").
type NotificationRule struct {
	ID           string
	DefinitionID string
	Channel      Channel
	Phone        string
	Template     string
	DaysBefore   int
	SendAt       string
	Enabled      bool
}

func (r NotificationRule) Validate() error {
	if strings.TrimSpace(r.ID) == "" {
		return errors.New("model: notification rule id is required")
	}
	if strings.TrimSpace(r.DefinitionID) == "" {
		return errors.New("model: notification rule definition_id is required")
	}
	if !r.Channel.IsValid() {
		return fmt.Errorf("%w: %q", ErrInvalidChannel, r.Channel)
	}
	if r.Channel == ChannelWhatsApp && !phonePattern.MatchString(r.Phone) {
		return fmt.Errorf("%w: %q", ErrInvalidPhone, r.Phone)
	}
	if r.DaysBefore < 0 {
		return errors.New("model: notification days_before must not be negative")
	}
	if _, _, err := ParseClock(r.SendAt); err != nil {
		return err
	}
	return nil
}

// TriggerFor returns when the rule fires for an instance due at due.
func (r NotificationRule) TriggerFor(due time.Time) (time.Time, error) {
	hour, minute, err := ParseClock(r.SendAt)
	if err != nil {
		return time.Time{}, err
	}
	day := due.AddDate(0, 0, -r.DaysBefore)
	y, m, d := day.Date()
	return time.Date(y, m, d, hour, minute, 0, 0, due.Location()), nil
}

// ParseClock parses "HH:MM". An empty clock means 09:00.
func ParseClock(raw string) (int, int, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return 9, 0, nil
	}
	t, err := time.Parse("15:04", raw)
	if err != nil {
		return 0, 0, fmt.Errorf("%w: %q", ErrInvalidSendAt, raw)
	}
	return t.Hour(), t.Minute(), nil
}
