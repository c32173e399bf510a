// Package model defines the data structures used throughout the application.
package model

import "time"

// User is the stable identity anchor. Every User owns exactly one Profile,
// created in the same transaction as the user row.
//
// WHY Email AS THE NATURAL KEY?
// Magic-link login identifies people by email, and GitHub sign-in falls back
// to the verified email when no identity is linked yet. Emails are stored
// trimmed and lower-cased so the UNIQUE constraint actually means "one person".
type User struct {
	ID        string    `json:"id"`
	Email     string    `json:"email"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// Work modes and iteration styles accepted by builder onboarding. The stack
// and tool tags are listed in the onboarding validation rules.
const (
	WorkModeSoloDeepWork          = "solo_deep_work"
	WorkModePairProgramming       = "pair_programming"
	WorkModeAsyncCommunication    = "async_communication"
	WorkModeRealTimeCollaboration = "real_time_collaboration"

	IterationVibeCoder    = "vibe_coder"
	IterationRegularCoder = "regular_coder"
)

// Profile is one-to-one with User.
//
// Two separate gates live on this struct:
//   - IsEligible: stored flag, true iff a GitHub identity is linked AND the
//     user has at least two portfolio items. Controls whether OTHERS can see
//     and like this person.
//   - builder-profile completeness (see package gating): controls whether THIS
//     person may browse the feed.
type Profile struct {
	UserID    string `json:"userId"`
	FullName  string `json:"fullName"`
	Headline  string `json:"headline"`
	Bio       string `json:"bio"`
	Location  string `json:"location"`
	AvatarURL string `json:"avatarUrl"`

	GitHubURL   string `json:"githubUrl"`
	LinkedInURL string `json:"linkedinUrl"`
	TwitterURL  string `json:"twitterUrl"`
	WebsiteURL  string `json:"websiteUrl"`

	Timezone                 string   `json:"timezone"`
	AvailabilityHoursPerWeek int      `json:"availabilityHoursPerWeek"`
	WorkModes                []string `json:"workModes"`
	IterationStyle           string   `json:"iterationStyle"`
	StackFocus               []string `json:"stackFocus"`
	PrimaryTools             []string `json:"primaryTools"`
	WantToBuildNext          string   `json:"wantToBuildNext"`

	AllowMessages bool `json:"allowMessages"`
	IsEligible    bool `json:"isEligible"`

	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// ProfileBasics is the free-form part of a profile edited from the profile page.
type ProfileBasics struct {
	FullName    string `json:"fullName"`
	Headline    string `json:"headline"`
	Bio         string `json:"bio"`
	Location    string `json:"location"`
	AvatarURL   string `json:"avatarUrl"`
	GitHubURL   string `json:"githubUrl"`
	LinkedInURL string `json:"linkedinUrl"`
	TwitterURL  string `json:"twitterUrl"`
	WebsiteURL  string `json:"websiteUrl"`
}

// BuilderProfile is the structured onboarding data persisted in one UPDATE.
type BuilderProfile struct {
	Timezone                 string
	AvailabilityHoursPerWeek int
	WorkModes                []string
	IterationStyle           string
	StackFocus               []string
	PrimaryTools             []string
	WantToBuildNext          string
	AllowMessages            bool
}

// IdentitySync carries the provider fields merged into a profile after a
// successful GitHub link. Empty optional fields never blank existing data.
type IdentitySync struct {
	AvatarURL string
	GitHubURL string
	FullName  string
	Bio       string
	Location  string
}

// MagicLink is a pending email login. Only a bcrypt hash of the secret is stored.
type MagicLink struct {
	ID         string
	Email      string
	SecretHash string
	RedirectTo string
	ExpiresAt  time.Time
	ConsumedAt *time.Time
	CreatedAt  time.Time
}
