package enums

import "strings"

// Plan is the entitlement tier of a requester identity.
type Plan string

const (
	PlanFree Plan = "free"
	PlanPro  Plan = "pro"
	// PlanErrorFallback marks decisions made while the quota store was
	// unreachable. It is never persisted.
	PlanErrorFallback Plan = "error_fallback"
)

func ParsePlan(value string) (Plan, bool) {
	switch Plan(strings.ToLower(strings.TrimSpace(value))) {
	case PlanFree:
		return PlanFree, true
	case PlanPro:
		return PlanPro, true
	default:
		return "", false
	}
}

func (p Plan) String() string {
	return string(p)
}
