package services

import (
	"delivery-batch-service/internal/domain"
	"fmt"
	"strings"
)

// ZipSchedule maps destination postal codes to delivery days.
// Lookups try the full 5-digit ZIP first, then its 3-digit prefix.
type ZipSchedule struct {
	zones    map[string]domain.Weekday
	fallback domain.Weekday
}

func NewZipSchedule(defaultDay string, zones map[string]string) (*ZipSchedule, error) {
	fallback, ok := domain.ParseWeekday(defaultDay)
	if !ok {
		return nil, fmt.Errorf("zip schedule: default day %q is not a weekday", defaultDay)
	}

	s := &ZipSchedule{
		zones:    make(map[string]domain.Weekday, len(zones)),
		fallback: fallback,
	}
	for code, dayName := range zones {
		key := strings.TrimSpace(code)
		if !isDigits(key) || (len(key) != 5 && len(key) != 3) {
			return nil, fmt.Errorf("zip schedule: zone key %q must be a 5-digit ZIP or 3-digit prefix", code)
		}
		day, ok := domain.ParseWeekday(dayName)
		if !ok {
			return nil, fmt.Errorf("zip schedule: zone %q has invalid day %q", code, dayName)
		}
		s.zones[key] = day
	}

	return s, nil
}

func (s *ZipSchedule) DefaultDay() domain.Weekday { return s.fallback }

// ResolveDay never fails: empty, malformed and unknown codes get the default day.
func (s *ZipSchedule) ResolveDay(postalCode string) domain.Weekday {
	zip, ok := NormalizeZip(postalCode)
	if !ok {
		return s.fallback
	}
	if day, ok := s.zones[zip]; ok {
		return day
	}
	if day, ok := s.zones[zip[:3]]; ok {
		return day
	}
	return s.fallback
}

// NormalizeZip reduces "85009", "85009-1234" and " 850091234 " to "85009".
func NormalizeZip(postalCode string) (string, bool) {
	s := strings.TrimSpace(postalCode)
	if i := strings.IndexByte(s, '-'); i >= 0 {
		if !isDigits(s[i+1:]) {
			return "", false
		}
		s = s[:i]
	}
	if !isDigits(s) || (len(s) != 5 && len(s) != 9) {
		return "", false
	}
	return s[:5], true
}

func isDigits(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}
