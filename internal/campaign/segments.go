package campaign

import (
	"sort"
	"strings"
)

// #region segment-sizes
// segmentSizes holds the average number of daily users in each atomic market
// segment.
var segmentSizes = map[string]int{
	"Male_Young_LowIncome":    1836,
	"Male_Young_HighIncome":   517,
	"Male_Old_LowIncome":      1795,
	"Male_Old_HighIncome":     808,
	"Female_Young_LowIncome":  1980,
	"Female_Young_HighIncome": 256,
	"Female_Old_LowIncome":    2401,
	"Female_Old_HighIncome":   407,
}

// Segments returns the atomic segment names in sorted order.
func Segments() []string {
	names := make([]string, 0, len(segmentSizes))
	for n := range segmentSizes {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// SegmentSize returns the expected daily users of a segment. Partial names
// such as "Female_Old" or "HighIncome" sum every atomic segment carrying all
// of the given attributes. Unknown names report zero.
func SegmentSize(name string) int {
	if name == "" {
		return 0
	}
	if n, ok := segmentSizes[name]; ok {
		return n
	}
	attrs := strings.Split(name, "_")
	total := 0
	for seg, n := range segmentSizes {
		if hasAll(seg, attrs) {
			total += n
		}
	}
	return total
}

func hasAll(segment string, attrs []string) bool {
	parts := strings.Split(segment, "_")
	for _, a := range attrs {
		found := false
		for _, p := range parts {
			if p == a {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	return true
}

// #endregion segment-sizes
