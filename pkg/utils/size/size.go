package size

import (
	"fmt"
	"strconv"
	"strings"
)

// FormatBytes renders a byte count with binary units (KiB, MiB, ...).
func FormatBytes(size int64) string {
	const unit = 1024
	if size < unit {
		return fmt.Sprintf("%dB", size)
	}
	div, exp := int64(unit), 0
	for n := size / unit; n >= unit; n /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f%ciB", float64(size)/float64(div), "KMGTPE"[exp])
}

// FormatNumber renders a plain count with decimal suffixes (1.2k, 3.4M).
func FormatNumber(size int64) string {
	const unit = 1000
	if size < unit {
		return fmt.Sprintf("%d", size)
	}
	div, exp := int64(unit), 0
	for n := size / unit; n >= unit; n /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f%c", float64(size)/float64(div), "kMGTPE"[exp])
}

func MustParse(count string) int64 {
	parsed, err := Parse(count)
	if err != nil {
		panic(err)
	}
	return parsed
}

// Parse reads a human-readable count like "100", "2.5k" or "1M" into an
// int64. Suffixes are decimal (k=1000, M=1e6, G=1e9), matching how rates
// are usually written. An empty string parses to 0, which callers treat as
// unlimited.
func Parse(count string) (int64, error) {
	count = strings.TrimSpace(count)
	if count == "" {
		return 0, nil
	}

	multipliers := map[string]int64{
		"k": 1_000,
		"m": 1_000_000,
		"g": 1_000_000_000,
	}

	lower := strings.ToLower(count)
	for _, suffix := range []string{"k", "m", "g"} {
		if strings.HasSuffix(lower, suffix) {
			numStr := strings.TrimSpace(count[:len(count)-len(suffix)])
			num, err := strconv.ParseFloat(numStr, 64)
			if err != nil {
				return 0, fmt.Errorf("invalid number: %s", numStr)
			}
			return int64(num * float64(multipliers[suffix])), nil
		}
	}

	num, err := strconv.ParseInt(count, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid count: %s", count)
	}

	return num, nil
}
