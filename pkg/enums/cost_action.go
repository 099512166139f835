package enums

import "fmt"

// CostAction maps to the cost_action_enum enum in Postgres.
type CostAction string

const (
	CostActionMessage CostAction = "message"
	CostActionImage   CostAction = "image"
)

var validCostActions = []CostAction{
	CostActionMessage,
	CostActionImage,
}

// IsValid reports whether the value matches the canonical cost action enum.
func (a CostAction) IsValid() bool {
	for _, candidate := range validCostActions {
		if candidate == a {
			return true
		}
	}
	return false
}

// ParseCostAction converts raw input into CostAction.
func ParseCostAction(value string) (CostAction, error) {
	for _, candidate := range validCostActions {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid cost action %q", value)
}
