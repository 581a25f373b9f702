package payment

import (
	"fmt"
	"strings"
)

// Plan is an offered subscription tier.
type Plan string

const (
	PlanStarter      Plan = "STARTER"
	PlanProfessional Plan = "PROFESSIONAL"
	PlanEnterprise   Plan = "ENTERPRISE"
)

// Plans lists the offered tiers in display order.
var Plans = []Plan{PlanStarter, PlanProfessional, PlanEnterprise}

var monthlyPrice = map[Plan]int64{
	PlanStarter:      4900,
	PlanProfessional: 9900,
	PlanEnterprise:   19900,
}

var planNames = map[Plan]string{
	PlanStarter:      "Starter",
	PlanProfessional: "Professional",
	PlanEnterprise:   "Enterprise",
}

// ParsePlan accepts only the offered plan identifiers.
func ParsePlan(s string) (Plan, error) {
	p := Plan(s)
	if _, ok := monthlyPrice[p]; !ok {
		return "", fmt.Errorf("%w: %q", ErrInvalidPlan, s)
	}
	return p, nil
}

// MonthlyPrice is the plan price in minor units.
func (p Plan) MonthlyPrice() int64 { return monthlyPrice[p] }

// DisplayName is the human readable plan name.
func (p Plan) DisplayName() string { return planNames[p] }

// priceKey is how a plan appears in configuration maps, which are lowercased.
func (p Plan) priceKey() string { return strings.ToLower(string(p)) }
