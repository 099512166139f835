package enums

import "fmt"

// UsageWindow names the rolling window a usage counter is scoped to.
type UsageWindow string

const (
	UsageWindowDaily  UsageWindow = "daily"
	UsageWindowWeekly UsageWindow = "weekly"
)

var validUsageWindows = []UsageWindow{
	UsageWindowDaily,
	UsageWindowWeekly,
}

// IsValid reports whether the value matches the canonical usage window enum.
func (w UsageWindow) IsValid() bool {
	for _, candidate := range validUsageWindows {
		if candidate == w {
			return true
		}
	}
	return false
}

// ParseUsageWindow converts raw input into UsageWindow.
func ParseUsageWindow(value string) (UsageWindow, error) {
	for _, candidate := range validUsageWindows {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid usage window %q", value)
}
