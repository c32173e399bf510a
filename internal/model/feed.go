package model

import "time"

// FeedCard is one person in the discovery feed.
//
// MatchScore / MatchStrength are filled by feed ranking; ViewerAction by the
// feed service from the viewer's own interactions.
type FeedCard struct {
	UserID         string   `json:"userId"`
	FullName       string   `json:"fullName"`
	Headline       string   `json:"headline"`
	Bio            string   `json:"bio"`
	Location       string   `json:"location"`
	AvatarURL      string   `json:"avatarUrl"`
	GitHubURL      string   `json:"githubUrl"`
	LinkedInURL    string   `json:"linkedinUrl"`
	Timezone       string   `json:"timezone"`
	WorkModes      []string `json:"workModes"`
	IterationStyle string   `json:"iterationStyle"`
	StackFocus     []string `json:"stackFocus"`
	PortfolioCount int      `json:"portfolioCount"`
	AllowMessages  bool     `json:"allowMessages"`

	MatchScore    int    `json:"matchScore"`
	MatchStrength string `json:"matchStrength,omitempty"`
	ViewerAction  Action `json:"viewerAction,omitempty"`
	IsSelf        bool   `json:"isSelf,omitempty"`

	// JoinedAt breaks ranking ties (newest first); not serialised.
	JoinedAt time.Time `json:"-"`
}

// Feed is what the discovery page renders.
type Feed struct {
	Cards                []FeedCard `json:"cards"`
	Bucket               int64      `json:"bucket"`
	RefreshAvailableInMs int64      `json:"refreshAvailableInMs"`
	ViewerEligible       bool       `json:"viewerEligible"`
}
