package handler

import (
	"fmt"
	"net/mail"
	"strconv"
	"strings"
	"time"
)

// timestampLayouts are the accepted naive timestamp inputs, most
// specific first.
var timestampLayouts = []string{
	"2006-01-02 15:04:05",
	"2006-01-02 15:04",
	"2006-01-02",
}

// validEmail checks that s parses as a bare RFC 5322 address.
func validEmail(s string) error {
	addr, err := mail.ParseAddress(s)
	if err != nil || addr.Address != s {
		return fmt.Errorf("%w: %q", ErrInvalidEmail, s)
	}
	return nil
}

// validEmails checks every address in the slice.
func validEmails(emails []string) error {
	for _, e := range emails {
		if err := validEmail(e); err != nil {
			return err
		}
	}
	return nil
}

// parseTimestamp parses a naive wall-clock timestamp string.
func parseTimestamp(s string) (time.Time, error) {
	for _, layout := range timestampLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("%w: %q", ErrInvalidTimestamp, s)
}

// parseTimeOfDay parses an "H:MM" (or "HH:MM") time-of-day string into
// minutes after midnight.
func parseTimeOfDay(s string) (int, error) {
	parts := strings.SplitN(s, ":", 2)
	if len(parts) != 2 {
		return 0, fmt.Errorf("%w: %q", ErrInvalidTimestamp, s)
	}
	h, err := strconv.Atoi(parts[0])
	if err != nil || h < 0 || h > 23 {
		return 0, fmt.Errorf("%w: %q", ErrInvalidTimestamp, s)
	}
	m, err := strconv.Atoi(parts[1])
	if err != nil || m < 0 || m > 59 {
		return 0, fmt.Errorf("%w: %q", ErrInvalidTimestamp, s)
	}
	return h*60 + m, nil
}
