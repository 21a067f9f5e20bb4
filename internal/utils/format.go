package utils

import "fmt"

// FormatBytes renders a byte count in the given unit (B, KB, MB, GB).
// A nil value renders as "N/A".
func FormatBytes(v *float64, unit string) string {
	if v == nil {
		return "N/A"
	}

	divisors := map[string]float64{
		"B":  1,
		"KB": 1024,
		"MB": 1024 * 1024,
		"GB": 1024 * 1024 * 1024,
	}
	divisor, ok := divisors[unit]
	if !ok {
		divisor = 1024 * 1024
		unit = "MB"
	}

	return fmt.Sprintf("%.1f %s", *v/divisor, unit)
}

// FormatPercent renders a percentage value with one decimal place.
func FormatPercent(v *float64) string {
	if v == nil {
		return "N/A"
	}
	return fmt.Sprintf("%.1f%%", *v)
}

// FormatRate renders a per-second rate with one decimal place.
func FormatRate(v *float64) string {
	if v == nil {
		return "N/A"
	}
	return fmt.Sprintf("%.1f/s", *v)
}
