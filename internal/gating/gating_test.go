package gating

import (
	"math/rand"
	"testing"
)

func completeFields() BuilderFields {
	return BuilderFields{
		Timezone:                 "Europe/Berlin",
		AvailabilityHoursPerWeek: 20,
		WorkModes:                []string{"async_communication"},
		IterationStyle:           "vibe_coder",
		StackFocus:               []string{"web"},
	}
}

// PROPERTY TEST:
// Eligibility must be exactly the conjunction, in both directions. Random
// (bool, int) pairs cover negative counts and large counts alike.
func TestComputeEligibility_IsExactlyTheConjunction(t *testing.T) {
	rng := rand.New(rand.NewSource(42))

	for i := 0; i < 10000; i++ {
		hasGitHub := rng.Intn(2) == 1
		count := rng.Intn(20) - 5

		got := ComputeEligibility(hasGitHub, count)
		want := hasGitHub && count >= 2
		if got != want {
			t.Fatalf("ComputeEligibility(%v, %d) = %v, want %v", hasGitHub, count, got, want)
		}
	}
}

func TestComputeEligibility_Boundaries(t *testing.T) {
	tests := []struct {
		hasGitHub bool
		count     int
		want      bool
	}{
		{true, 2, true},
		{true, 1, false},
		{false, 2, false},
		{false, 100, false},
		{true, 0, false},
	}
	for _, tt := range tests {
		if got := ComputeEligibility(tt.hasGitHub, tt.count); got != tt.want {
			t.Errorf("ComputeEligibility(%v, %d) = %v, want %v", tt.hasGitHub, tt.count, got, tt.want)
		}
	}
}

// EXHAUSTIVE BOUNDARY TEST:
// Blank out each of the five fields on its own; every single one must flip
// completeness to false.
func TestBuilderProfileComplete_EachFieldIndependently(t *testing.T) {
	if !BuilderProfileComplete(completeFields()) {
		t.Fatal("complete fields reported incomplete")
	}

	tests := []struct {
		name  string
		blank func(*BuilderFields)
	}{
		{"empty timezone", func(f *BuilderFields) { f.Timezone = "" }},
		{"zero availability", func(f *BuilderFields) { f.AvailabilityHoursPerWeek = 0 }},
		{"negative availability", func(f *BuilderFields) { f.AvailabilityHoursPerWeek = -3 }},
		{"nil work modes", func(f *BuilderFields) { f.WorkModes = nil }},
		{"empty work modes", func(f *BuilderFields) { f.WorkModes = []string{} }},
		{"empty iteration style", func(f *BuilderFields) { f.IterationStyle = "" }},
		{"nil stack focus", func(f *BuilderFields) { f.StackFocus = nil }},
		{"empty stack focus", func(f *BuilderFields) { f.StackFocus = []string{} }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := completeFields()
			tt.blank(&f)
			if BuilderProfileComplete(f) {
				t.Errorf("BuilderProfileComplete() = true with %s", tt.name)
			}
		})
	}
}

func TestEvaluate_ListsMissingRequirements(t *testing.T) {
	status := Evaluate(false, 1, BuilderFields{})

	want := []string{
		"Connect GitHub",
		"Import at least 2 repos (1/2)",
		"Set your timezone",
		"Set availability hours per week",
		"Select work preferences",
		"Select iteration style (vibe coder or regular coder)",
		"Select stack focus",
	}
	if len(status.MissingRequirements) != len(want) {
		t.Fatalf("MissingRequirements = %v, want %v", status.MissingRequirements, want)
	}
	for i := range want {
		if status.MissingRequirements[i] != want[i] {
			t.Errorf("MissingRequirements[%d] = %q, want %q", i, status.MissingRequirements[i], want[i])
		}
	}
	if status.IsEligible || status.BuilderComplete {
		t.Errorf("status = %+v, want neither gate passed", status)
	}
}

func TestEvaluate_GatesAreIndependent(t *testing.T) {
	eligibleOnly := Evaluate(true, 2, BuilderFields{})
	if !eligibleOnly.IsEligible || eligibleOnly.BuilderComplete {
		t.Errorf("eligible-only status = %+v", eligibleOnly)
	}

	completeOnly := Evaluate(false, 0, completeFields())
	if completeOnly.IsEligible || !completeOnly.BuilderComplete {
		t.Errorf("complete-only status = %+v", completeOnly)
	}

	both := Evaluate(true, 3, completeFields())
	if len(both.MissingRequirements) != 0 {
		t.Errorf("MissingRequirements = %v, want none", both.MissingRequirements)
	}
}
