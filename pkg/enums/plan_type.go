package enums

import "fmt"

// PlanType maps to the plan_type_enum enum in Postgres.
type PlanType string

const (
	PlanTypeFree    PlanType = "free"
	PlanTypePremium PlanType = "premium"
)

var validPlanTypes = []PlanType{
	PlanTypeFree,
	PlanTypePremium,
}

// IsValid reports whether the value matches the canonical plan type enum.
func (t PlanType) IsValid() bool {
	for _, candidate := range validPlanTypes {
		if candidate == t {
			return true
		}
	}
	return false
}

// ParsePlanType converts raw input into PlanType.
func ParsePlanType(value string) (PlanType, error) {
	for _, candidate := range validPlanTypes {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid plan type %q", value)
}
