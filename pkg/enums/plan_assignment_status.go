package enums

import "fmt"

// PlanAssignmentStatus maps to the plan_assignment_status enum in Postgres.
type PlanAssignmentStatus string

const (
	PlanAssignmentStatusActive   PlanAssignmentStatus = "active"
	PlanAssignmentStatusCanceled PlanAssignmentStatus = "canceled"
	PlanAssignmentStatusExpired  PlanAssignmentStatus = "expired"
)

var validPlanAssignmentStatuses = []PlanAssignmentStatus{
	PlanAssignmentStatusActive,
	PlanAssignmentStatusCanceled,
	PlanAssignmentStatusExpired,
}

// IsValid reports whether the value matches the canonical assignment status enum.
func (s PlanAssignmentStatus) IsValid() bool {
	for _, candidate := range validPlanAssignmentStatuses {
		if candidate == s {
			return true
		}
	}
	return false
}

// ParsePlanAssignmentStatus converts raw input into PlanAssignmentStatus.
func ParsePlanAssignmentStatus(value string) (PlanAssignmentStatus, error) {
	for _, candidate := range validPlanAssignmentStatuses {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid plan assignment status %q", value)
}
