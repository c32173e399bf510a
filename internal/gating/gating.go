// Package gating holds the two pure predicates that decide who takes part in
// discovery.
//
// TWO GATES:
//   - Eligibility ("can appear to others"): GitHub linked AND ≥ 2 portfolio items.
//     Stored on the profile as is_eligible and recomputed by the store whenever
//     an identity or portfolio item changes.
//   - Builder-profile completeness ("can browse others"): the five structured
//     onboarding fields are filled in.
//
// A user can be eligible without being builder-complete and vice versa; the
// two are deliberately independent.
package gating

import "fmt"

// MinPortfolioItems is how many portfolio items eligibility requires.
const MinPortfolioItems = 2

// ComputeEligibility is exactly hasGitHub ∧ portfolioCount ≥ 2.
// It does not look at builder-profile completeness.
func ComputeEligibility(hasGitHub bool, portfolioCount int) bool {
	return hasGitHub && portfolioCount >= MinPortfolioItems
}

// BuilderFields are the five onboarding fields that completeness depends on.
type BuilderFields struct {
	Timezone                 string
	AvailabilityHoursPerWeek int
	WorkModes                []string
	IterationStyle           string
	StackFocus               []string
}

// BuilderProfileComplete is true iff every one of the five fields is populated.
func BuilderProfileComplete(f BuilderFields) bool {
	return f.Timezone != "" &&
		f.AvailabilityHoursPerWeek > 0 &&
		len(f.WorkModes) > 0 &&
		f.IterationStyle != "" &&
		len(f.StackFocus) > 0
}

// Status is the gating summary shown on the profile page.
type Status struct {
	IsEligible          bool     `json:"isEligible"`
	BuilderComplete     bool     `json:"builderComplete"`
	MissingRequirements []string `json:"missingRequirements"`
}

// Evaluate lists every unmet requirement, eligibility ones first, in the order
// the profile page renders them.
func Evaluate(hasGitHub bool, portfolioCount int, f BuilderFields) Status {
	missing := []string{}

	if !hasGitHub {
		missing = append(missing, "Connect GitHub")
	}
	if portfolioCount < MinPortfolioItems {
		missing = append(missing, fmt.Sprintf("Import at least 2 repos (%d/2)", portfolioCount))
	}
	if f.Timezone == "" {
		missing = append(missing, "Set your timezone")
	}
	if f.AvailabilityHoursPerWeek <= 0 {
		missing = append(missing, "Set availability hours per week")
	}
	if len(f.WorkModes) == 0 {
		missing = append(missing, "Select work preferences")
	}
	if f.IterationStyle == "" {
		missing = append(missing, "Select iteration style (vibe coder or regular coder)")
	}
	if len(f.StackFocus) == 0 {
		missing = append(missing, "Select stack focus")
	}

	return Status{
		IsEligible:          ComputeEligibility(hasGitHub, portfolioCount),
		BuilderComplete:     BuilderProfileComplete(f),
		MissingRequirements: missing,
	}
}
