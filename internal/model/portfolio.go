package model

import "time"

// ProviderGitHub is the only identity provider this product links.
const ProviderGitHub = "github"

// ExternalIdentity links a User to an account at an identity provider.
// Unique per (user, provider); re-linking overwrites the descriptive fields.
type ExternalIdentity struct {
	ID             string    `json:"id"`
	UserID         string    `json:"userId"`
	Provider       string    `json:"provider"`
	ProviderUserID string    `json:"providerUserId"`
	Handle         string    `json:"handle"`
	ProfileURL     string    `json:"profileUrl"`
	AvatarURL      string    `json:"avatarUrl"`
	LinkedAt       time.Time `json:"linkedAt"`
}

// Portfolio item types.
const (
	ItemTypeGitHubRepo = "github_repo"
	ItemTypeManual     = "manual"
)

// Project types a manual item can declare.
const (
	ProjectTypeWebApp     = "web_app"
	ProjectTypeMobileApp  = "mobile_app"
	ProjectTypeOpenSource = "open_source"
	ProjectTypeDesign     = "design"
	ProjectTypeOther      = "other"
)

// PortfolioItem is a piece of "proof of work" shown on a profile.
//
// ExternalID is the provider's stable id for imported items (the GitHub repo
// id). It is nil for manual items, which is what lets the
// UNIQUE(user_id, external_id) constraint reject duplicate imports while
// allowing any number of hand-entered entries.
type PortfolioItem struct {
	ID           string        `json:"id"`
	UserID       string        `json:"userId"`
	Title        string        `json:"title"`
	Description  string        `json:"description"`
	URL          string        `json:"url"`
	ItemType     string        `json:"itemType"`
	ExternalID   *string       `json:"externalId,omitempty"`
	Metadata     *RepoMetadata `json:"metadata,omitempty"`
	ProjectType  string        `json:"projectType,omitempty"`
	Tags         []string      `json:"tags"`
	DisplayOrder int           `json:"displayOrder"`
	IsFeatured   bool          `json:"isFeatured"`
	CreatedAt    time.Time     `json:"createdAt"`
}

// RepoMetadata is the JSON blob stored alongside an imported repository.
type RepoMetadata struct {
	GitHubID int64    `json:"github_id"`
	Stars    int      `json:"stars"`
	Language string   `json:"language,omitempty"`
	PushedAt string   `json:"pushed_at,omitempty"`
	Topics   []string `json:"topics,omitempty"`
}

// Repository is the reduced public shape of a provider repository offered
// in the import picker.
type Repository struct {
	ID          int64    `json:"id"`
	Name        string   `json:"name"`
	FullName    string   `json:"fullName"`
	Description string   `json:"description"`
	URL         string   `json:"url"`
	Stars       int      `json:"stars"`
	Language    string   `json:"language"`
	PushedAt    string   `json:"pushedAt"`
	Topics      []string `json:"topics"`
}
