package sqlutil

import (
	"time"

	"github.com/jackc/pgx/v5/pgtype"
)

// Helper functions for converting between Go types and pgtype values

// FromTimestamptz converts pgtype.Timestamptz to a UTC time, zero when NULL
func FromTimestamptz(val pgtype.Timestamptz) time.Time {
	if !val.Valid {
		return time.Time{}
	}
	return val.Time.UTC()
}

// FromTimestamptzPtr converts pgtype.Timestamptz to a UTC time pointer
func FromTimestamptzPtr(val pgtype.Timestamptz) *time.Time {
	if !val.Valid {
		return nil
	}
	t := val.Time.UTC()
	return &t
}

// FromText converts pgtype.Text to Go string with default
func FromText(val pgtype.Text, defaultVal string) string {
	if !val.Valid {
		return defaultVal
	}
	return val.String
}

// ToTimestamptz converts a Go time pointer to pgtype.Timestamptz
func ToTimestamptz(val *time.Time) pgtype.Timestamptz {
	if val == nil {
		return pgtype.Timestamptz{Valid: false}
	}
	return pgtype.Timestamptz{Time: *val, Valid: true}
}

// ToText converts a Go string pointer to pgtype.Text
func ToText(val *string) pgtype.Text {
	if val == nil {
		return pgtype.Text{Valid: false}
	}
	return pgtype.Text{String: *val, Valid: true}
}
