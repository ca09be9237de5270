package config

import (
	"fmt"
	"strings"

	"github.com/spf13/viper"
)

// ZipScheduleConfig is the external postal code -> delivery day table.
// Keys are full 5-digit ZIPs or 3-digit prefixes.
type ZipScheduleConfig struct {
	DefaultDay string
	Zones      map[string]string
}

// DefaultZipSchedule covers the Phoenix metro area served from the default hub.
func DefaultZipSchedule() ZipScheduleConfig {
	return ZipScheduleConfig{
		DefaultDay: "Friday",
		Zones: map[string]string{
			"85003": "Monday",
			"85004": "Monday",
			"85006": "Monday",
			"85007": "Monday",
			"85008": "Tuesday",
			"85009": "Tuesday",
			"85012": "Tuesday",
			"85013": "Wednesday",
			"85014": "Wednesday",
			"85015": "Wednesday",
			"85016": "Thursday",
			"85018": "Thursday",
			"852":   "Thursday",
			"853":   "Saturday",
		},
	}
}

// LoadZipSchedule reads a YAML or JSON file of the form
//
//	default_day: Friday
//	zones:
//	  "85003": Monday
//	  "852": Thursday
//
// An empty path yields DefaultZipSchedule.
func LoadZipSchedule(path string) (ZipScheduleConfig, error) {
	if strings.TrimSpace(path) == "" {
		return DefaultZipSchedule(), nil
	}

	v := viper.New()
	v.SetConfigFile(path)
	v.SetDefault("default_day", "Friday")
	if err := v.ReadInConfig(); err != nil {
		return ZipScheduleConfig{}, fmt.Errorf("load zip schedule: read %q: %w", path, err)
	}

	zones := v.GetStringMapString("zones")
	if len(zones) == 0 {
		return ZipScheduleConfig{}, fmt.Errorf("load zip schedule: %q has no zones", path)
	}

	return ZipScheduleConfig{
		DefaultDay: v.GetString("default_day"),
		Zones:      zones,
	}, nil
}
