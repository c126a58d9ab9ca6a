package warehouse

import "strings"

// sizeLadder orders warehouse sizes from smallest to largest. Resize
// candidates move one step at a time.
var sizeLadder = []string{
	"X-SMALL",
	"SMALL",
	"MEDIUM",
	"LARGE",
	"X-LARGE",
	"2X-LARGE",
	"3X-LARGE",
	"4X-LARGE",
}

// Capacity returns the nominal concurrency capacity for a warehouse size.
func Capacity(size string) int {
	capacityMap := map[string]int{
		"X-SMALL":  8,
		"SMALL":    16,
		"MEDIUM":   32,
		"LARGE":    64,
		"X-LARGE":  128,
		"2X-LARGE": 256,
		"3X-LARGE": 512,
		"4X-LARGE": 1024,
	}

	if capacity, ok := capacityMap[NormalizeSize(size)]; ok {
		return capacity
	}
	return 8
}

// NormalizeSize canonicalises the size names Snowflake reports, which vary
// between "X-Small", "XSMALL" and "xsmall" across views.
func NormalizeSize(size string) string {
	s := strings.ToUpper(strings.TrimSpace(size))
	switch s {
	case "XSMALL", "XS":
		return "X-SMALL"
	case "S":
		return "SMALL"
	case "M":
		return "MEDIUM"
	case "L":
		return "LARGE"
	case "XLARGE", "XL":
		return "X-LARGE"
	case "XXLARGE", "X2LARGE":
		return "2X-LARGE"
	case "XXXLARGE", "X3LARGE":
		return "3X-LARGE"
	case "X4LARGE":
		return "4X-LARGE"
	}
	return s
}

// StepDown returns the next smaller size, or false when already at the
// bottom or the size is unknown.
func StepDown(size string) (string, bool) {
	idx := sizeIndex(size)
	if idx <= 0 {
		return "", false
	}
	return sizeLadder[idx-1], true
}

// StepUp returns the next larger size, or false when already at the top or
// the size is unknown.
func StepUp(size string) (string, bool) {
	idx := sizeIndex(size)
	if idx < 0 || idx >= len(sizeLadder)-1 {
		return "", false
	}
	return sizeLadder[idx+1], true
}

func sizeIndex(size string) int {
	normalized := NormalizeSize(size)
	for i, s := range sizeLadder {
		if s == normalized {
			return i
		}
	}
	return -1
}
