package model

import (
	"fmt"
	"time"
)

// Action is what a viewer did to a target.
type Action string

const (
	ActionLike Action = "like"
	ActionPass Action = "pass"
	ActionSave Action = "save"
)

// TargetKind tags the variant held by a Target.
type TargetKind string

const (
	TargetKindUser    TargetKind = "user"
	TargetKindProject TargetKind = "project"
)

// Target is a tagged variant over the things an interaction can point at.
// Construct it with UserTarget or ProjectTarget; the zero value is invalid.
type Target struct {
	Kind TargetKind `json:"type"`
	ID   string     `json:"id"`
}

func UserTarget(userID string) Target    { return Target{Kind: TargetKindUser, ID: userID} }
func ProjectTarget(itemID string) Target { return Target{Kind: TargetKindProject, ID: itemID} }

func (t Target) IsUser() bool   { return t.Kind == TargetKindUser }
func (t Target) String() string { return fmt.Sprintf("%s:%s", t.Kind, t.ID) }

// Validate rejects unknown kinds and empty ids.
func (t Target) Validate() error {
	switch t.Kind {
	case TargetKindUser, TargetKindProject:
	default:
		return fmt.Errorf("model: unknown target kind %q", t.Kind)
	}
	if t.ID == "" {
		return fmt.Errorf("model: target id is empty")
	}
	return nil
}

// Interaction is an append-style record of one viewer action.
type Interaction struct {
	ID        string    `json:"id"`
	ActorID   string    `json:"actorId"`
	Target    Target    `json:"target"`
	Action    Action    `json:"action"`
	CreatedAt time.Time `json:"createdAt"`
}

// LikeResult is what the like transaction reports back.
type LikeResult struct {
	Matched         bool   `json:"matched"`
	MatchID         string `json:"matchId,omitempty"`
	ThreadID        string `json:"threadId,omitempty"`
	CreatedNewMatch bool   `json:"createdNewMatch"`
}

// Match exists at most once per unordered user pair. UserLow < UserHigh.
type Match struct {
	ID        string    `json:"id"`
	UserLow   string    `json:"userLow"`
	UserHigh  string    `json:"userHigh"`
	CreatedAt time.Time `json:"createdAt"`
}

// MatchSummary is a match as seen by one of its two members.
type MatchSummary struct {
	MatchID   string    `json:"matchId"`
	ThreadID  string    `json:"threadId,omitempty"`
	Other     UserCard  `json:"other"`
	CreatedAt time.Time `json:"createdAt"`
}

// OrderedPair returns the two ids with the lexically smaller first.
// Both the matches table and thread pair keys are keyed on this order.
func OrderedPair(a, b string) (low, high string) {
	if a < b {
		return a, b
	}
	return b, a
}
