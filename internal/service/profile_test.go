package service

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/sakif/buildermatch/internal/apperror"
	"github.com/sakif/buildermatch/internal/auth"
)

func validOnboarding() OnboardingInput {
	return OnboardingInput{
		Timezone:                 "America/New_York",
		AvailabilityHoursPerWeek: 15,
		WorkModes:                []string{"pair_programming", "async_communication"},
		IterationStyle:           "vibe_coder",
		WantToBuildNext:          "A marketplace for local farmers",
		StackFocus:               []string{"web", "ai"},
		PrimaryTools:             []string{"cursor"},
	}
}

func fieldErrors(t *testing.T, err error) map[string]string {
	t.Helper()
	var appErr *apperror.AppError
	if !errors.As(err, &appErr) || !errors.Is(err, apperror.ErrValidation) {
		t.Fatalf("err = %v, want a validation AppError", err)
	}
	return appErr.Fields
}

func TestSaveOnboarding_Validation(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*OnboardingInput)
		field   string
		message string
	}{
		{"missing timezone", func(in *OnboardingInput) { in.Timezone = "  " }, "timezone", "Timezone is required"},
		{"unknown timezone", func(in *OnboardingInput) { in.Timezone = "Mars/Olympus" }, "timezone", "Select a valid timezone"},
		{"zero hours", func(in *OnboardingInput) { in.AvailabilityHoursPerWeek = 0 }, "availabilityHoursPerWeek", "Must be at least 1 hour per week"},
		{"too many hours", func(in *OnboardingInput) { in.AvailabilityHoursPerWeek = 169 }, "availabilityHoursPerWeek", "Cannot exceed 168 hours per week"},
		{"no work modes", func(in *OnboardingInput) { in.WorkModes = nil }, "workModes", "Select at least one work preference"},
		{"unknown work mode", func(in *OnboardingInput) { in.WorkModes = []string{"solo_deep_work", "napping"} }, "workModes", "Unknown work preference"},
		{"no iteration style", func(in *OnboardingInput) { in.IterationStyle = "" }, "iterationStyle", "Select your iteration style"},
		{"bad iteration style", func(in *OnboardingInput) { in.IterationStyle = "cowboy" }, "iterationStyle", "Select your iteration style"},
		{"short pitch", func(in *OnboardingInput) { in.WantToBuildNext = "  an app  " }, "wantToBuildNext", "Tell us more about what you want to build (at least 10 characters)"},
		{"long pitch", func(in *OnboardingInput) { in.WantToBuildNext = strings.Repeat("x", 501) }, "wantToBuildNext", "Maximum 500 characters"},
		{"no stack", func(in *OnboardingInput) { in.StackFocus = []string{} }, "stackFocus", "Select at least one stack"},
		{"unknown tool", func(in *OnboardingInput) { in.PrimaryTools = []string{"emacs"} }, "primaryTools", "Unknown tool"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env := newTestEnv(t)
			session := env.user(t, "a@example.com")
			in := validOnboarding()
			tt.mutate(&in)

			_, err := env.profileService().SaveOnboarding(context.Background(), session, in)

			fields := fieldErrors(t, err)
			if got := fields[tt.field]; got != tt.message {
				t.Errorf("fields[%q] = %q, want %q (all: %v)", tt.field, got, tt.message, fields)
			}

			// Nothing was written.
			profile, _ := env.store.GetProfile(context.Background(), session.UserID)
			if profile.Timezone != "" {
				t.Errorf("invalid onboarding wrote timezone %q", profile.Timezone)
			}
		})
	}
}

func TestSaveOnboarding_Success(t *testing.T) {
	env := newTestEnv(t)
	session := env.user(t, "a@example.com")
	svc := env.profileService()
	ctx := context.Background()

	in := validOnboarding()
	in.PrimaryTools = nil
	result, err := svc.SaveOnboarding(ctx, session, in)
	if err != nil {
		t.Fatalf("SaveOnboarding() error = %v", err)
	}
	if result.Redirect != MatchesPath {
		t.Errorf("Redirect = %q, want %q", result.Redirect, MatchesPath)
	}
	if !result.Profile.AllowMessages {
		t.Error("AllowMessages should default to true")
	}
	if result.Profile.AvailabilityHoursPerWeek != 15 || result.Profile.IterationStyle != "vibe_coder" {
		t.Errorf("profile = %+v", result.Profile)
	}

	status, err := svc.OnboardingStatus(ctx, session)
	if err != nil {
		t.Fatalf("OnboardingStatus() error = %v", err)
	}
	if !status.Complete || status.Redirect != MatchesPath {
		t.Errorf("status = %+v, want complete with redirect to matches", status)
	}

	// An explicit false survives.
	off := false
	in.AllowMessages = &off
	result, err = svc.SaveOnboarding(ctx, session, in)
	if err != nil {
		t.Fatalf("SaveOnboarding() error = %v", err)
	}
	if result.Profile.AllowMessages {
		t.Error("AllowMessages = true after saving false")
	}
}

func TestSaveOnboarding_RequiresSession(t *testing.T) {
	env := newTestEnv(t)
	_, err := env.profileService().SaveOnboarding(context.Background(), auth.Session{}, validOnboarding())
	assertCode(t, err, apperror.CodeNotAuthenticated)
}

func TestOnboardingStatus_Incomplete(t *testing.T) {
	env := newTestEnv(t)
	session := env.user(t, "a@example.com")

	status, err := env.profileService().OnboardingStatus(context.Background(), session)
	if err != nil {
		t.Fatalf("OnboardingStatus() error = %v", err)
	}
	if status.Complete || status.Redirect != "" {
		t.Errorf("status = %+v, want incomplete with no redirect", status)
	}
}

func TestMe_GatingSummary(t *testing.T) {
	env := newTestEnv(t)
	session := env.user(t, "a@example.com")
	svc := env.profileService()
	ctx := context.Background()

	me, err := svc.Me(ctx, session)
	if err != nil {
		t.Fatalf("Me() error = %v", err)
	}
	if me.GitHub != nil || me.Gating.IsEligible || me.Gating.BuilderComplete {
		t.Errorf("fresh user view = %+v", me)
	}
	if len(me.Gating.MissingRequirements) != 7 {
		t.Errorf("missing = %v, want all 7 requirements", me.Gating.MissingRequirements)
	}

	env.eligible(t, session, 3)
	env.onboarded(t, session, true)

	me, err = svc.Me(ctx, session)
	if err != nil {
		t.Fatalf("Me() error = %v", err)
	}
	if me.GitHub == nil || len(me.Portfolio) != 2 {
		t.Errorf("GitHub = %v, portfolio = %d items", me.GitHub, len(me.Portfolio))
	}
	if !me.Gating.IsEligible || !me.Gating.BuilderComplete || len(me.Gating.MissingRequirements) != 0 {
		t.Errorf("gating = %+v, want everything satisfied", me.Gating)
	}
}

func TestUpdateBasics(t *testing.T) {
	env := newTestEnv(t)
	session := env.user(t, "a@example.com")
	svc := env.profileService()
	ctx := context.Background()

	profile, err := svc.UpdateBasics(ctx, session, BasicsInput{
		FullName:   "  Ada Lovelace ",
		Headline:   "Analytical engines",
		WebsiteURL: "https://ada.dev",
	})
	if err != nil {
		t.Fatalf("UpdateBasics() error = %v", err)
	}
	if profile.FullName != "Ada Lovelace" || profile.WebsiteURL != "https://ada.dev" {
		t.Errorf("profile = %+v", profile)
	}

	_, err = svc.UpdateBasics(ctx, session, BasicsInput{AvatarURL: "javascript:alert(1)"})
	if fields := fieldErrors(t, err); fields["avatarUrl"] == "" {
		t.Errorf("fields = %v, want an avatarUrl error", fields)
	}

	_, err = svc.UpdateBasics(ctx, session, BasicsInput{FullName: strings.Repeat("a", 101)})
	if fields := fieldErrors(t, err); fields["fullName"] != "Name must be 100 characters or fewer" {
		t.Errorf("fields = %v", fields)
	}
}

func TestUpdateBasics_RateLimited(t *testing.T) {
	env := newTestEnv(t)
	session := env.user(t, "a@example.com")
	svc := env.profileService()
	ctx := context.Background()

	for i := 0; i < 10; i++ {
		if _, err := svc.UpdateBasics(ctx, session, BasicsInput{Headline: "hi"}); err != nil {
			t.Fatalf("update %d error = %v", i+1, err)
		}
	}
	_, err := svc.UpdateBasics(ctx, session, BasicsInput{Headline: "hi"})
	assertCode(t, err, apperror.CodeRateLimited)
}

func TestPublicProfile_CanMessage(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	viewer := env.user(t, "viewer@example.com")
	open := env.user(t, "open@example.com")
	closed := env.user(t, "closed@example.com")
	env.onboarded(t, open, true)
	env.onboarded(t, closed, false)
	svc := env.profileService()

	tests := []struct {
		name       string
		target     auth.Session
		canMessage bool
		isSelf     bool
	}{
		{"accepts messages", open, true, false},
		{"messages disabled", closed, false, false},
		{"own profile", viewer, false, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			view, err := svc.PublicProfile(ctx, viewer, tt.target.UserID)
			if err != nil {
				t.Fatalf("PublicProfile() error = %v", err)
			}
			if view.CanMessage != tt.canMessage || view.IsSelf != tt.isSelf {
				t.Errorf("CanMessage, IsSelf = %v, %v; want %v, %v", view.CanMessage, view.IsSelf, tt.canMessage, tt.isSelf)
			}
		})
	}

	_, err := svc.PublicProfile(ctx, viewer, "missing")
	if !errors.Is(err, apperror.ErrNotFound) {
		t.Errorf("unknown user error = %v, want ErrNotFound", err)
	}
}

// =========================================================================
// SKILLS
// =========================================================================

func fiveSkills() []SkillInput {
	three, ten := 3, 10
	return []SkillInput{
		{SkillID: "sk_go", ProficiencyLevel: "expert", YearsOfExperience: &ten},
		{SkillID: "sk_typescript", ProficiencyLevel: "advanced", YearsOfExperience: &three},
		{SkillID: "sk_react"},
		{SkillID: "sk_postgres", ProficiencyLevel: "intermediate"},
		{SkillID: "sk_docker", ProficiencyLevel: "beginner"},
	}
}

func TestListSkills_OrderedByCategoryThenName(t *testing.T) {
	env := newTestEnv(t)
	skills, err := env.profileService().ListSkills(context.Background())
	if err != nil {
		t.Fatalf("ListSkills() error = %v", err)
	}
	if len(skills) == 0 {
		t.Fatal("catalog is empty")
	}
	for i := 1; i < len(skills); i++ {
		prev, cur := skills[i-1], skills[i]
		if prev.Category > cur.Category || (prev.Category == cur.Category && prev.Name > cur.Name) {
			t.Errorf("skills[%d] = %s/%s sorts before %s/%s", i, cur.Category, cur.Name, prev.Category, prev.Name)
		}
	}
}

func TestReplaceSkills_Validation(t *testing.T) {
	env := newTestEnv(t)
	session := env.user(t, "a@example.com")
	svc := env.profileService()
	ctx := context.Background()

	tests := []struct {
		name   string
		mutate func([]SkillInput) []SkillInput
		field  string
		want   string
	}{
		{
			name:   "fewer than five",
			mutate: func(in []SkillInput) []SkillInput { return in[:4] },
			field:  "skills",
			want:   "At least 5 skills are required",
		},
		{
			name: "same skill twice",
			mutate: func(in []SkillInput) []SkillInput {
				in[4].SkillID = "sk_go"
				return in
			},
			field: "skills",
			want:  "Each skill can only be listed once",
		},
		{
			name: "unknown proficiency",
			mutate: func(in []SkillInput) []SkillInput {
				in[0].ProficiencyLevel = "wizard"
				return in
			},
			field: "proficiencyLevel",
			want:  "Proficiency must be beginner, intermediate, advanced or expert",
		},
		{
			name: "too many years",
			mutate: func(in []SkillInput) []SkillInput {
				fiftyOne := 51
				in[2].YearsOfExperience = &fiftyOne
				return in
			},
			field: "yearsOfExperience",
			want:  "Years of experience cannot exceed 50",
		},
		{
			name: "blank skill id",
			mutate: func(in []SkillInput) []SkillInput {
				in[1].SkillID = "  "
				return in
			},
			field: "skillId",
			want:  "Select a skill",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := svc.ReplaceSkills(ctx, session, tt.mutate(fiveSkills()))
			if fields := fieldErrors(t, err); fields[tt.field] != tt.want {
				t.Errorf("fields = %v, want %s: %q", fields, tt.field, tt.want)
			}
		})
	}

	stored, _ := env.store.ListUserSkills(ctx, session.UserID)
	if len(stored) != 0 {
		t.Errorf("invalid input stored %d skills", len(stored))
	}
}

func TestReplaceSkills_ReplacesWholeSet(t *testing.T) {
	env := newTestEnv(t)
	session := env.user(t, "a@example.com")
	svc := env.profileService()
	ctx := context.Background()

	saved, err := svc.ReplaceSkills(ctx, session, fiveSkills())
	if err != nil {
		t.Fatalf("ReplaceSkills() error = %v", err)
	}
	if len(saved) != 5 {
		t.Fatalf("saved = %+v", saved)
	}
	foundGo := false
	for _, s := range saved {
		if s.SkillID == "sk_go" {
			if s.Name != "Go" || s.ProficiencyLevel != "expert" || s.YearsOfExperience == nil || *s.YearsOfExperience != 10 {
				t.Errorf("go skill = %+v", s)
			}
			foundGo = true
		}
		if s.SkillID == "sk_react" && (s.ProficiencyLevel != "" || s.YearsOfExperience != nil) {
			t.Errorf("react skill = %+v, want no level or years", s)
		}
	}
	if !foundGo {
		t.Error("sk_go missing from saved skills")
	}

	next := []SkillInput{
		{SkillID: "sk_rust"}, {SkillID: "sk_python"}, {SkillID: "sk_figma"},
		{SkillID: "sk_aws"}, {SkillID: "sk_llm"}, {SkillID: "sk_flutter"},
	}
	if _, err := svc.ReplaceSkills(ctx, session, next); err != nil {
		t.Fatalf("second ReplaceSkills() error = %v", err)
	}

	me, err := svc.Me(ctx, session)
	if err != nil {
		t.Fatalf("Me() error = %v", err)
	}
	if len(me.Skills) != 6 {
		t.Fatalf("me.Skills = %+v, want the 6 from the second save", me.Skills)
	}
	for _, s := range me.Skills {
		if s.SkillID == "sk_go" {
			t.Error("sk_go survived a full replace")
		}
	}
}

func TestReplaceSkills_UnknownSkillWritesNothing(t *testing.T) {
	env := newTestEnv(t)
	session := env.user(t, "a@example.com")
	svc := env.profileService()
	ctx := context.Background()

	if _, err := svc.ReplaceSkills(ctx, session, fiveSkills()); err != nil {
		t.Fatalf("ReplaceSkills() error = %v", err)
	}

	in := fiveSkills()
	in[4].SkillID = "sk_cobol"
	_, err := svc.ReplaceSkills(ctx, session, in)
	if !errors.Is(err, apperror.ErrValidation) {
		t.Fatalf("err = %v, want a validation error", err)
	}

	stored, _ := env.store.ListUserSkills(ctx, session.UserID)
	if len(stored) != 5 {
		t.Errorf("stored = %d skills, want the original 5 kept", len(stored))
	}
}

func TestReplaceSkills_RequiresSession(t *testing.T) {
	env := newTestEnv(t)
	_, err := env.profileService().ReplaceSkills(context.Background(), auth.Session{}, fiveSkills())
	assertCode(t, err, apperror.CodeNotAuthenticated)
}

func TestCreateSkill(t *testing.T) {
	env := newTestEnv(t)
	session := env.user(t, "a@example.com")
	svc := env.profileService()
	ctx := context.Background()

	skill, err := svc.CreateSkill(ctx, session, NewSkillInput{Name: " Elixir ", Category: " Languages"})
	if err != nil {
		t.Fatalf("CreateSkill() error = %v", err)
	}
	if skill.ID == "" || skill.Name != "Elixir" || skill.Category != "languages" {
		t.Errorf("skill = %+v", skill)
	}

	// Names are unique ignoring case; "Go" ships in the catalog.
	_, err = svc.CreateSkill(ctx, session, NewSkillInput{Name: "go"})
	assertCode(t, err, apperror.CodeSkillExists)

	_, err = svc.CreateSkill(ctx, session, NewSkillInput{Name: "  "})
	if fields := fieldErrors(t, err); fields["name"] != "Skill name is required" {
		t.Errorf("fields = %v", fields)
	}

	_, err = svc.CreateSkill(ctx, auth.Session{}, NewSkillInput{Name: "Zig"})
	assertCode(t, err, apperror.CodeNotAuthenticated)
}
