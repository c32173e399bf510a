package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/sakif/buildermatch/internal/apperror"
	"github.com/sakif/buildermatch/internal/auth"
	"github.com/sakif/buildermatch/internal/gating"
	"github.com/sakif/buildermatch/internal/metrics"
	"github.com/sakif/buildermatch/internal/model"
	"github.com/sakif/buildermatch/internal/ratelimit"
	"github.com/sakif/buildermatch/internal/repository"
)

// Where onboarding sends people.
const (
	OnboardingPath = "/find"
	MatchesPath    = "/matches"
)

// ProfileService owns the profile page, builder onboarding, skills and the
// eligibility summary derived from them.
type ProfileService struct {
	users      repository.UserRepository
	profiles   repository.ProfileRepository
	portfolio  repository.PortfolioRepository
	identities repository.IdentityRepository
	skills     repository.SkillRepository
	limiter    ratelimit.Limiter
	logger     *slog.Logger
}

func NewProfileService(
	users repository.UserRepository,
	profiles repository.ProfileRepository,
	portfolio repository.PortfolioRepository,
	identities repository.IdentityRepository,
	skills repository.SkillRepository,
	limiter ratelimit.Limiter,
	logger *slog.Logger,
) *ProfileService {
	return &ProfileService{
		users:      users,
		profiles:   profiles,
		portfolio:  portfolio,
		identities: identities,
		skills:     skills,
		limiter:    limiter,
		logger:     logger,
	}
}

// MeView is the signed-in user's own profile page.
type MeView struct {
	User      *model.User             `json:"user"`
	Profile   *model.Profile          `json:"profile"`
	Portfolio []model.PortfolioItem   `json:"portfolio"`
	Skills    []model.UserSkill       `json:"skills"`
	GitHub    *model.ExternalIdentity `json:"github,omitempty"`
	Gating    gating.Status           `json:"gating"`
}

func (s *ProfileService) Me(ctx context.Context, session auth.Session) (*MeView, error) {
	if err := requireSession(session); err != nil {
		return nil, err
	}

	user, err := s.users.GetUserByID(ctx, session.UserID)
	if err != nil {
		return nil, fmt.Errorf("service/profile: %w", err)
	}
	profile, err := s.profiles.GetProfile(ctx, session.UserID)
	if err != nil {
		return nil, fmt.Errorf("service/profile: %w", err)
	}
	items, err := s.portfolio.ListPortfolio(ctx, session.UserID)
	if err != nil {
		return nil, fmt.Errorf("service/profile: %w", err)
	}
	skills, err := s.skills.ListUserSkills(ctx, session.UserID)
	if err != nil {
		return nil, fmt.Errorf("service/profile: %w", err)
	}
	identity, err := s.identities.GetIdentity(ctx, session.UserID, model.ProviderGitHub)
	if err != nil && !errors.Is(err, apperror.ErrNotFound) {
		return nil, fmt.Errorf("service/profile: %w", err)
	}

	return &MeView{
		User:      user,
		Profile:   profile,
		Portfolio: items,
		Skills:    skills,
		GitHub:    identity,
		Gating:    gating.Evaluate(identity != nil, len(items), builderFields(profile)),
	}, nil
}

// BasicsInput is the free-text part of the profile. Empty URLs clear the link.
type BasicsInput struct {
	FullName    string `json:"fullName" validate:"max=100"`
	Headline    string `json:"headline" validate:"max=160"`
	Bio         string `json:"bio" validate:"max=1000"`
	Location    string `json:"location" validate:"max=100"`
	AvatarURL   string `json:"avatarUrl" validate:"omitempty,http_url"`
	GitHubURL   string `json:"githubUrl" validate:"omitempty,http_url"`
	LinkedInURL string `json:"linkedinUrl" validate:"omitempty,http_url"`
	TwitterURL  string `json:"twitterUrl" validate:"omitempty,http_url"`
	WebsiteURL  string `json:"websiteUrl" validate:"omitempty,http_url"`
}

func (in *BasicsInput) trim() {
	for _, f := range []*string{
		&in.FullName, &in.Headline, &in.Bio, &in.Location,
		&in.AvatarURL, &in.GitHubURL, &in.LinkedInURL, &in.TwitterURL, &in.WebsiteURL,
	} {
		*f = strings.TrimSpace(*f)
	}
}

var basicsMessages = map[string]string{
	"fullName.max": "Name must be 100 characters or fewer",
	"headline.max": "Headline must be 160 characters or fewer",
	"bio.max":      "Bio must be 1000 characters or fewer",
	"location.max": "Location must be 100 characters or fewer",
}

func (s *ProfileService) UpdateBasics(ctx context.Context, session auth.Session, in BasicsInput) (*model.Profile, error) {
	if err := requireSession(session); err != nil {
		return nil, err
	}
	in.trim()
	if err := validateInput(in, basicsMessages); err != nil {
		return nil, err
	}
	if err := s.enforceProfileLimit(ctx, session.UserID); err != nil {
		return nil, err
	}

	basics := model.ProfileBasics{
		FullName:    in.FullName,
		Headline:    in.Headline,
		Bio:         in.Bio,
		Location:    in.Location,
		AvatarURL:   in.AvatarURL,
		GitHubURL:   in.GitHubURL,
		LinkedInURL: in.LinkedInURL,
		TwitterURL:  in.TwitterURL,
		WebsiteURL:  in.WebsiteURL,
	}
	if err := s.profiles.UpdateBasics(ctx, session.UserID, basics); err != nil {
		return nil, fmt.Errorf("service/profile: %w", err)
	}
	return s.profiles.GetProfile(ctx, session.UserID)
}

// OnboardingInput is the builder profile form.
//
// AllowMessages is a pointer so that "not sent" can default to true while an
// explicit false is kept.
type OnboardingInput struct {
	Timezone                 string   `json:"timezone" validate:"required,timezone"`
	AvailabilityHoursPerWeek int      `json:"availabilityHoursPerWeek" validate:"min=1,max=168"`
	WorkModes                []string `json:"workModes" validate:"min=1,unique,dive,oneof=solo_deep_work pair_programming async_communication real_time_collaboration"`
	IterationStyle           string   `json:"iterationStyle" validate:"required,oneof=vibe_coder regular_coder"`
	WantToBuildNext          string   `json:"wantToBuildNext" validate:"min=10,max=500"`
	StackFocus               []string `json:"stackFocus" validate:"min=1,unique,dive,oneof=web mobile ai game backend tooling"`
	PrimaryTools             []string `json:"primaryTools" validate:"omitempty,unique,dive,oneof=cursor vscode replit claude chatgpt windsurf vim other"`
	AllowMessages            *bool    `json:"allowMessages"`
}

var onboardingMessages = map[string]string{
	"timezone.required":            "Timezone is required",
	"timezone.timezone":            "Select a valid timezone",
	"availabilityHoursPerWeek.min": "Must be at least 1 hour per week",
	"availabilityHoursPerWeek.max": "Cannot exceed 168 hours per week",
	"workModes.min":                "Select at least one work preference",
	"workModes.oneof":              "Unknown work preference",
	"iterationStyle":               "Select your iteration style",
	"wantToBuildNext.min":          "Tell us more about what you want to build (at least 10 characters)",
	"wantToBuildNext.max":          "Maximum 500 characters",
	"stackFocus.min":               "Select at least one stack",
	"stackFocus.oneof":             "Unknown stack",
	"primaryTools.oneof":           "Unknown tool",
}

// OnboardingResult tells the client where to go next.
type OnboardingResult struct {
	Profile  *model.Profile `json:"profile"`
	Redirect string         `json:"redirect"`
}

// SaveOnboarding validates and stores the builder profile in one UPDATE.
// Invalid input writes nothing.
func (s *ProfileService) SaveOnboarding(ctx context.Context, session auth.Session, in OnboardingInput) (*OnboardingResult, error) {
	if err := requireSession(session); err != nil {
		return nil, err
	}
	in.Timezone = strings.TrimSpace(in.Timezone)
	in.WantToBuildNext = strings.TrimSpace(in.WantToBuildNext)
	if err := validateInput(in, onboardingMessages); err != nil {
		return nil, err
	}
	if err := s.enforceProfileLimit(ctx, session.UserID); err != nil {
		return nil, err
	}

	allow := true
	if in.AllowMessages != nil {
		allow = *in.AllowMessages
	}
	builder := model.BuilderProfile{
		Timezone:                 in.Timezone,
		AvailabilityHoursPerWeek: in.AvailabilityHoursPerWeek,
		WorkModes:                in.WorkModes,
		IterationStyle:           in.IterationStyle,
		StackFocus:               in.StackFocus,
		PrimaryTools:             in.PrimaryTools,
		WantToBuildNext:          in.WantToBuildNext,
		AllowMessages:            allow,
	}
	if err := s.profiles.SaveBuilderProfile(ctx, session.UserID, builder); err != nil {
		return nil, fmt.Errorf("service/profile: %w", err)
	}
	recomputeEligibility(ctx, s.profiles, session.UserID, s.logger)

	profile, err := s.profiles.GetProfile(ctx, session.UserID)
	if err != nil {
		return nil, fmt.Errorf("service/profile: %w", err)
	}
	s.logger.Info("onboarding saved", slog.String("userID", session.UserID))
	return &OnboardingResult{Profile: profile, Redirect: MatchesPath}, nil
}

// OnboardingStatus drives the /find page: complete builders are sent on to
// their matches, everyone else sees the form prefilled with Current.
type OnboardingStatus struct {
	Complete bool           `json:"complete"`
	Redirect string         `json:"redirect,omitempty"`
	Current  *model.Profile `json:"current"`
}

func (s *ProfileService) OnboardingStatus(ctx context.Context, session auth.Session) (*OnboardingStatus, error) {
	if err := requireSession(session); err != nil {
		return nil, err
	}
	profile, err := s.profiles.GetProfile(ctx, session.UserID)
	if err != nil {
		return nil, fmt.Errorf("service/profile: %w", err)
	}

	status := &OnboardingStatus{
		Complete: gating.BuilderProfileComplete(builderFields(profile)),
		Current:  profile,
	}
	if status.Complete {
		status.Redirect = MatchesPath
	}
	return status, nil
}

// PublicProfileView is someone else's profile as the viewer sees it.
type PublicProfileView struct {
	Profile    *model.Profile        `json:"profile"`
	Portfolio  []model.PortfolioItem `json:"portfolio"`
	Skills     []model.UserSkill     `json:"skills"`
	CanMessage bool                  `json:"canMessage"`
	IsSelf     bool                  `json:"isSelf"`
}

func (s *ProfileService) PublicProfile(ctx context.Context, session auth.Session, userID string) (*PublicProfileView, error) {
	if err := requireSession(session); err != nil {
		return nil, err
	}
	profile, err := s.profiles.GetProfile(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("service/profile: %w", err)
	}
	items, err := s.portfolio.ListPortfolio(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("service/profile: %w", err)
	}
	skills, err := s.skills.ListUserSkills(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("service/profile: %w", err)
	}

	self := userID == session.UserID
	return &PublicProfileView{
		Profile:    profile,
		Portfolio:  items,
		Skills:     skills,
		CanMessage: profile.AllowMessages && !self,
		IsSelf:     self,
	}, nil
}

// SKILLS:
// The catalog is shared and anyone may browse it. A builder's skill list is
// replaced wholesale on every save; a save needs at least five entries.

func (s *ProfileService) ListSkills(ctx context.Context) ([]model.Skill, error) {
	skills, err := s.skills.ListSkills(ctx)
	if err != nil {
		return nil, fmt.Errorf("service/profile: %w", err)
	}
	return skills, nil
}

// NewSkillInput adds a skill the catalog is missing.
type NewSkillInput struct {
	Name     string `json:"name" validate:"required,max=50"`
	Category string `json:"category" validate:"max=50"`
}

var newSkillMessages = map[string]string{
	"name.required": "Skill name is required",
	"name.max":      "Skill name must be 50 characters or fewer",
	"category.max":  "Category must be 50 characters or fewer",
}

func (s *ProfileService) CreateSkill(ctx context.Context, session auth.Session, in NewSkillInput) (*model.Skill, error) {
	if err := requireSession(session); err != nil {
		return nil, err
	}
	in.Name = strings.TrimSpace(in.Name)
	in.Category = strings.ToLower(strings.TrimSpace(in.Category))
	if err := validateInput(in, newSkillMessages); err != nil {
		return nil, err
	}
	if err := s.enforceProfileLimit(ctx, session.UserID); err != nil {
		return nil, err
	}

	skill := &model.Skill{Name: in.Name, Category: in.Category}
	if err := s.skills.CreateSkill(ctx, skill); err != nil {
		return nil, fmt.Errorf("service/profile: %w", err)
	}
	s.logger.Info("skill created", slog.String("skillID", skill.ID), slog.String("name", skill.Name))
	return skill, nil
}

// SkillInput is one entry of a builder's skill list.
type SkillInput struct {
	SkillID           string `json:"skillId" validate:"required"`
	ProficiencyLevel  string `json:"proficiencyLevel" validate:"omitempty,oneof=beginner intermediate advanced expert"`
	YearsOfExperience *int   `json:"yearsOfExperience" validate:"omitempty,min=0,max=50"`
}

type skillsInput struct {
	Skills []SkillInput `json:"skills" validate:"min=5,unique=SkillID,dive"`
}

var skillsMessages = map[string]string{
	"skills.min":             "At least 5 skills are required",
	"skills.unique":          "Each skill can only be listed once",
	"skillId.required":       "Select a skill",
	"proficiencyLevel.oneof": "Proficiency must be beginner, intermediate, advanced or expert",
	"yearsOfExperience.min":  "Years of experience cannot be negative",
	"yearsOfExperience.max":  "Years of experience cannot exceed 50",
}

// ReplaceSkills swaps the caller's skill list for in and returns the stored
// list. Invalid input or an unknown skill id writes nothing.
func (s *ProfileService) ReplaceSkills(ctx context.Context, session auth.Session, in []SkillInput) ([]model.UserSkill, error) {
	if err := requireSession(session); err != nil {
		return nil, err
	}
	for i := range in {
		in[i].SkillID = strings.TrimSpace(in[i].SkillID)
		in[i].ProficiencyLevel = strings.TrimSpace(in[i].ProficiencyLevel)
	}
	if err := validateInput(skillsInput{Skills: in}, skillsMessages); err != nil {
		return nil, err
	}
	if err := s.enforceProfileLimit(ctx, session.UserID); err != nil {
		return nil, err
	}

	rows := make([]model.UserSkill, 0, len(in))
	for _, sk := range in {
		rows = append(rows, model.UserSkill{
			SkillID:           sk.SkillID,
			ProficiencyLevel:  sk.ProficiencyLevel,
			YearsOfExperience: sk.YearsOfExperience,
		})
	}
	if err := s.skills.ReplaceUserSkills(ctx, session.UserID, rows); err != nil {
		return nil, fmt.Errorf("service/profile: %w", err)
	}
	s.logger.Info("skills saved", slog.String("userID", session.UserID), slog.Int("count", len(rows)))

	return s.skills.ListUserSkills(ctx, session.UserID)
}

func (s *ProfileService) enforceProfileLimit(ctx context.Context, userID string) error {
	return enforce(ctx, s.limiter, ratelimit.Profile, userID, s.logger)
}

// enforce applies a rate-limit rule and counts refusals.
func enforce(ctx context.Context, l ratelimit.Limiter, rule ratelimit.Rule, key string, logger *slog.Logger) error {
	err := ratelimit.Enforce(ctx, l, rule, key, logger)
	if err != nil {
		metrics.RateLimited(rule.Name)
	}
	return err
}

func builderFields(p *model.Profile) gating.BuilderFields {
	return gating.BuilderFields{
		Timezone:                 p.Timezone,
		AvailabilityHoursPerWeek: p.AvailabilityHoursPerWeek,
		WorkModes:                p.WorkModes,
		IterationStyle:           p.IterationStyle,
		StackFocus:               p.StackFocus,
	}
}
