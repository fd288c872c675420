package goexfat

import (
	"time"
)

// ParseDate reads the date half of a timestamp. The layout is the one of the FAT directory entry date stamp:
//
//	Bits 0–4: Day of month, valid value range 1-31 inclusive.
//	Bits 5–8: Month of year, 1 = January, valid value range 1–12 inclusive.
//	Bits 9–15: Count of years from 1980, valid value range 0–127 inclusive (1980–2107).
//
// It returns a time.Time which has always a time of 00:00:00 UTC.
// As value 0 for day and month is invalid, time.Time{} is returned in that case so time.Time.IsZero() can be used.
//
// Note that monthOfYear may be bigger than 12 which is unspecified. In this case the year gets incremented by one.
func ParseDate(input uint16) time.Time {
	dayOfMonth := input & 0x1F
	monthOfYear := input & 0x1E0 >> 5
	yearSince1980 := input & 0xFE00 >> 9

	if dayOfMonth == 0 || monthOfYear == 0 {
		return time.Time{}
	}

	return time.Date(1980+int(yearSince1980), time.Month(monthOfYear), int(dayOfMonth), 0, 0, 0, 0, time.UTC)
}

// ParseTime reads the time half of a timestamp, which has a granularity of 2 seconds:
//
//	Bits 0–4: 2-second count, valid value range 0–29 inclusive (0 – 58 seconds).
//	Bits 5–10: Minutes, valid value range 0–59 inclusive.
//	Bits 11–15: Hours, valid value range 0–23 inclusive.
//
// It returns a time.Time on January 1, year 1.
// Bigger values than the specified ones are added to the time, but the result is limited to 23:59:59.
func ParseTime(input uint16) time.Time {
	seconds := int(input&0x1F) * 2
	minutes := input & 0x7E0 >> 5
	hours := input & 0xF800 >> 11

	result := time.Date(1, 1, 1, int(hours), int(minutes), seconds, 0, time.UTC)

	if result.Day() > 1 {
		return time.Date(1, 1, 1, 23, 59, 59, 0, time.UTC)
	}

	return result
}

// ParseTimestamp combines an exFAT timestamp field with its 10ms increment and UTC offset fields.
//
// The timestamp holds the time in the low and the date in the high 16 bits.
// The increment (0-199) adds up to 1990ms to the 2 second granularity.
// The UTC offset is valid if bit 7 is set, its low 7 bits are a signed count of 15 minute steps.
// Without a valid offset the timestamp is returned as UTC.
//
// An invalid date results in time.Time{}.
func ParseTimestamp(timestamp uint32, increment10ms uint8, utcOffset uint8) time.Time {
	date := ParseDate(uint16(timestamp >> 16))
	if date.IsZero() {
		return time.Time{}
	}
	clock := ParseTime(uint16(timestamp))

	if increment10ms > 199 {
		increment10ms = 199
	}
	extra := time.Duration(increment10ms) * 10 * time.Millisecond

	loc := time.UTC
	if utcOffset&0x80 != 0 {
		// Sign extend the 7 bit value.
		quarters := int(int8(utcOffset<<1) >> 1)
		if quarters != 0 {
			loc = time.FixedZone("", quarters*15*60)
		}
	}

	return time.Date(date.Year(), date.Month(), date.Day(), clock.Hour(), clock.Minute(), clock.Second(), 0, loc).Add(extra)
}
