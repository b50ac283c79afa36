package fat

import (
	"time"
)

// ParseDate decodes a 16-bit directory entry date: bits 0-4 day of month,
// bits 5-8 month, bits 9-15 years since 1980.
//
// Day or month of zero is invalid per the on-disk format; in that case the
// zero time.Time is returned so callers can use time.Time.IsZero().
func ParseDate(input uint16) time.Time {
	day := int(input & 0x1F)
	month := int(input & 0x1E0 >> 5)
	year := int(input & 0xFE00 >> 9)

	if day == 0 || month == 0 {
		return time.Time{}
	}

	return time.Date(1980+year, time.Month(month), day, 0, 0, 0, 0, time.UTC)
}

// ParseTime decodes a 16-bit directory entry time: bits 0-4 two-second
// count, bits 5-10 minutes, bits 11-15 hours.
//
// The date part of the result is always January 1, year 1, so a midnight
// value satisfies time.Time.IsZero(). Out-of-range fields are clamped to
// 23:59:59 rather than rolling over into the next day.
func ParseTime(input uint16) time.Time {
	seconds := int(input&0x1F) * 2
	minutes := int(input & 0x7E0 >> 5)
	hours := int(input & 0xF800 >> 11)

	result := time.Date(1, 1, 1, hours, minutes, seconds, 0, time.UTC)

	if result.Day() > 1 {
		return time.Date(1, 1, 1, 23, 59, 59, 0, time.UTC)
	}

	return result
}
