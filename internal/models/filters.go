package models

import (
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

// MaxFilterEntries is the number of dates (and, separately, date ranges) the
// Photos Library API accepts in a single search request.
const MaxFilterEntries = 5

var (
	ErrInvalidDateFilter = errors.New("invalid date filter")
	ErrTooManyFilters    = errors.New("too many filter entries")

	datePattern      = regexp.MustCompile(`^(\d{4}|\*)/(\d{1,2}|\*)/(\d{1,2}|\*)$`)
	dateRangePattern = regexp.MustCompile(`^(\d{4})/(\d{1,2})/(\d{1,2})-(\d{4})/(\d{1,2})/(\d{1,2})$`)
)

type (
	// Date is a calendar date where a zero component matches any value.
	Date struct {
		Year  int `json:"year"`
		Month int `json:"month"`
		Day   int `json:"day"`
	}

	DateRange struct {
		StartDate Date `json:"startDate"`
		EndDate   Date `json:"endDate"`
	}

	DateFilter struct {
		Dates  []Date      `json:"dates,omitempty"`
		Ranges []DateRange `json:"ranges,omitempty"`
	}
)

// NewDateFilter builds a filter, rejecting more than MaxFilterEntries of
// either kind. It returns nil when both lists are empty.
func NewDateFilter(dates []Date, ranges []DateRange) (*DateFilter, error) {
	if len(dates) > MaxFilterEntries {
		return nil, fmt.Errorf("%w: a maximum of %d dates can be included per request, got %d", ErrTooManyFilters, MaxFilterEntries, len(dates))
	}
	if len(ranges) > MaxFilterEntries {
		return nil, fmt.Errorf("%w: a maximum of %d date ranges can be included per request, got %d", ErrTooManyFilters, MaxFilterEntries, len(ranges))
	}
	if len(dates) == 0 && len(ranges) == 0 {
		return nil, nil
	}
	return &DateFilter{Dates: dates, Ranges: ranges}, nil
}

// ParseDateFilter parses a comma separated list of YYYY/MM/DD dates. Any
// component may be "*", which becomes 0 (match all).
func ParseDateFilter(value string) ([]Date, error) {
	if strings.TrimSpace(value) == "" {
		return nil, nil
	}
	entries := splitEntries(value)
	if len(entries) > MaxFilterEntries {
		return nil, fmt.Errorf("%w: must provide %d or less dates, got %d", ErrTooManyFilters, MaxFilterEntries, len(entries))
	}

	dates := make([]Date, 0, len(entries))
	for _, entry := range entries {
		m := datePattern.FindStringSubmatch(entry)
		if m == nil {
			return nil, fmt.Errorf("%w: %q must adhere to the pattern YYYY/MM/DD (any part may be *)", ErrInvalidDateFilter, entry)
		}
		dates = append(dates, Date{Year: wildcardInt(m[1]), Month: wildcardInt(m[2]), Day: wildcardInt(m[3])})
	}
	return dates, nil
}

// ParseDateRangeFilter parses a comma separated list of
// YYYY/MM/DD-YYYY/MM/DD ranges. Wildcards are not allowed here.
func ParseDateRangeFilter(value string) ([]DateRange, error) {
	if strings.TrimSpace(value) == "" {
		return nil, nil
	}
	entries := splitEntries(value)
	if len(entries) > MaxFilterEntries {
		return nil, fmt.Errorf("%w: must provide %d or less date ranges, got %d", ErrTooManyFilters, MaxFilterEntries, len(entries))
	}

	ranges := make([]DateRange, 0, len(entries))
	for _, entry := range entries {
		m := dateRangePattern.FindStringSubmatch(entry)
		if m == nil {
			return nil, fmt.Errorf("%w: %q must adhere to the pattern YYYY/MM/DD-YYYY/MM/DD", ErrInvalidDateFilter, entry)
		}
		ranges = append(ranges, DateRange{
			StartDate: Date{Year: wildcardInt(m[1]), Month: wildcardInt(m[2]), Day: wildcardInt(m[3])},
			EndDate:   Date{Year: wildcardInt(m[4]), Month: wildcardInt(m[5]), Day: wildcardInt(m[6])},
		})
	}
	return ranges, nil
}

func splitEntries(value string) []string {
	parts := strings.Split(value, ",")
	entries := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			entries = append(entries, p)
		}
	}
	return entries
}

// wildcardInt converts a regex-validated component; "*" maps to 0.
func wildcardInt(s string) int {
	if s == "*" {
		return 0
	}
	n, _ := strconv.Atoi(s)
	return n
}
