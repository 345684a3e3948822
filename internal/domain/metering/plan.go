package metering

import (
	"fmt"
	"strings"
)

// PlanTier is the closed enumeration of subscription plans known to the
// metering engine. Free-form plan strings from older billing records must be
// normalized via NormalizePlan before any catalog lookup.
type PlanTier string

const (
	PlanStarter         PlanTier = "starter"
	PlanGrowth          PlanTier = "growth"
	PlanPro             PlanTier = "pro"
	PlanBusinessStarter PlanTier = "business_starter"
	PlanBusinessGrowth  PlanTier = "business_growth"
	PlanBusinessPro     PlanTier = "business_pro"
	PlanEnterprise      PlanTier = "enterprise"
	PlanTrial           PlanTier = "trial"
)

// BaselinePlan is the documented fallback tier for unmapped legacy plan names.
// Silently defaulting here mirrors the observed billing behavior; it is
// recorded as an open question in DESIGN.md.
const BaselinePlan = PlanStarter

// String returns the string representation of PlanTier
func (p PlanTier) String() string {
	return string(p)
}

// IsValid returns true if the plan tier is a member of the closed enumeration
func (p PlanTier) IsValid() bool {
	switch p {
	case PlanStarter, PlanGrowth, PlanPro,
		PlanBusinessStarter, PlanBusinessGrowth, PlanBusinessPro,
		PlanEnterprise, PlanTrial:
		return true
	}
	return false
}

// DisplayName returns a human-readable name for the plan tier
func (p PlanTier) DisplayName() string {
	switch p {
	case PlanStarter:
		return "Starter"
	case PlanGrowth:
		return "Growth"
	case PlanPro:
		return "Pro"
	case PlanBusinessStarter:
		return "Business Starter"
	case PlanBusinessGrowth:
		return "Business Growth"
	case PlanBusinessPro:
		return "Business Pro"
	case PlanEnterprise:
		return "Enterprise"
	case PlanTrial:
		return "Trial"
	default:
		return string(p)
	}
}

// ParsePlanTier parses a string into a PlanTier without normalization
func ParsePlanTier(s string) (PlanTier, error) {
	p := PlanTier(s)
	if !p.IsValid() {
		return "", fmt.Errorf("invalid plan tier: %s", s)
	}
	return p, nil
}

// legacyPlanNames maps retired and free-form plan identifiers onto the
// current enumeration. The table is injective: no two legacy names map to
// different meanings of the same current tier by accident.
var legacyPlanNames = map[string]PlanTier{
	"free":       PlanStarter,
	"basic":      PlanGrowth,
	"premium":    PlanPro,
	"team":       PlanBusinessStarter,
	"business":   PlanBusinessGrowth,
	"agency":     PlanBusinessPro,
	"unlimited":  PlanEnterprise,
	"trialing":   PlanTrial,
	"free_trial": PlanTrial,
}

// NormalizePlan maps an arbitrary plan string onto the closed enumeration.
// Current tier names pass through; known legacy names are translated; anything
// else falls back to BaselinePlan. The second return value reports whether the
// input was recognized.
func NormalizePlan(raw string) (PlanTier, bool) {
	name := strings.ToLower(strings.TrimSpace(raw))

	if p := PlanTier(name); p.IsValid() {
		return p, true
	}
	if p, ok := legacyPlanNames[name]; ok {
		return p, true
	}
	return BaselinePlan, false
}

// AllPlanTiers returns all valid plan tiers
func AllPlanTiers() []PlanTier {
	return []PlanTier{
		PlanStarter,
		PlanGrowth,
		PlanPro,
		PlanBusinessStarter,
		PlanBusinessGrowth,
		PlanBusinessPro,
		PlanEnterprise,
		PlanTrial,
	}
}
