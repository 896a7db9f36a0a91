package models

import (
	"strings"

	dErrors "prereg/pkg/domain-errors"
)

// Status is the lifecycle state of an application.
type Status string

const (
	StatusPendingAppointment Status = "PENDING_APPOINTMENT"
	StatusBooked             Status = "BOOKED"
	StatusExpired            Status = "EXPIRED"
	StatusConsumed           Status = "CONSUMED"
	StatusIncomplete         Status = "INCOMPLETE"
)

// AllStatuses lists every status in a stable order.
var AllStatuses = []Status{
	StatusPendingAppointment,
	StatusBooked,
	StatusExpired,
	StatusConsumed,
	StatusIncomplete,
}

// ParseStatus parses a status code from external input. Matching ignores
// case and surrounding whitespace.
func ParseStatus(s string) (Status, error) {
	st := Status(strings.ToUpper(strings.TrimSpace(s)))
	if !st.IsValid() {
		return "", dErrors.New(dErrors.CodeValidation, "unknown status code: "+s)
	}
	return st, nil
}

func (s Status) IsValid() bool {
	switch s {
	case StatusPendingAppointment, StatusBooked, StatusExpired, StatusConsumed, StatusIncomplete:
		return true
	}
	return false
}

// IsTerminal reports whether the application content is frozen.
func (s Status) IsTerminal() bool {
	return s == StatusConsumed
}

// IsDeletable reports whether an application in this status may be deleted.
// BOOKED must be canceled first; CONSUMED is kept for audit.
func (s Status) IsDeletable() bool {
	switch s {
	case StatusPendingAppointment, StatusIncomplete, StatusExpired:
		return true
	}
	return false
}

func (s Status) String() string {
	return string(s)
}
