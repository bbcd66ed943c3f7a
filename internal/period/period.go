// Package period converts store billing periods into the units understood by
// the payment API.
package period

import (
	"fmt"
	"strings"
)

// Units accepted by the payment API for recurring plans.
const (
	Day   = "D"
	Week  = "W"
	Month = "M"
	Year  = "Y"
)

var storeUnits = map[string]string{
	"day":   Day,
	"week":  Week,
	"month": Month,
	"year":  Year,
}

// Unit maps a store billing period ("day", "week", "month", "year") to an API
// unit. Periods already given as an API unit pass through. Anything else is
// billed monthly.
func Unit(storePeriod string) string {
	p := strings.TrimSpace(storePeriod)
	if ValidateUnit(p) == nil {
		return p
	}
	if u, ok := storeUnits[strings.ToLower(p)]; ok {
		return u
	}
	return Month
}

// ValidateUnit checks an API unit.
func ValidateUnit(u string) error {
	switch u {
	case Day, Week, Month, Year:
		return nil
	default:
		return fmt.Errorf("unit must be one of D, W, M, Y (got %q)", u)
	}
}

// Interval validates the number of units between two charges.
func Interval(n int) (int, error) {
	if n < 1 {
		return 0, fmt.Errorf("interval must be at least 1 (got %d)", n)
	}
	return n, nil
}
