package models

import (
	"regexp"
	"strconv"
	"time"
)

var (
	monthDayPattern = regexp.MustCompile(`^([A-Za-z]{3,9})\s*(\d{1,2})$`)
	dayMonthPattern = regexp.MustCompile(`^(\d{1,2})\s*([A-Za-z]{3,9})$`)
)

// ParseStatementDate parses the short date forms that appear in statement
// transaction columns ("Nov 3", "27Oct", "3 Nov"). Statements omit the year,
// so the caller supplies it from the statement period. Returns the zero time
// and false when the string is not a recognizable date.
func ParseStatementDate(s string, year int) (time.Time, bool) {
	if year == 0 {
		year = time.Now().Year()
	}
	y := strconv.Itoa(year)

	if m := monthDayPattern.FindStringSubmatch(s); m != nil {
		if t, err := time.Parse("Jan 2 2006", m[1][:3]+" "+m[2]+" "+y); err == nil {
			return t, true
		}
	}
	if m := dayMonthPattern.FindStringSubmatch(s); m != nil {
		if t, err := time.Parse("2 Jan 2006", m[1]+" "+m[2][:3]+" "+y); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}
