package enums

import "fmt"

// UsageType maps to the usage_type_enum enum in Postgres.
type UsageType string

const (
	UsageTypeMessages UsageType = "messages"
	UsageTypeImages   UsageType = "images"
)

var validUsageTypes = []UsageType{
	UsageTypeMessages,
	UsageTypeImages,
}

// IsValid reports whether the value matches the canonical usage type enum.
func (t UsageType) IsValid() bool {
	for _, candidate := range validUsageTypes {
		if candidate == t {
			return true
		}
	}
	return false
}

// ParseUsageType converts raw input into UsageType.
func ParseUsageType(value string) (UsageType, error) {
	for _, candidate := range validUsageTypes {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid usage type %q", value)
}
