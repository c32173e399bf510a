// Package repository defines the storage contracts the service layer depends on.
//
// REPOSITORY PATTERN:
// Services talk to these interfaces, never to *sql.DB. The sqlite package
// provides the only production implementation; tests can swap in anything
// that satisfies the interface.
//
// The interfaces are split by aggregate so a service only asks for what it
// uses: the messaging service has no business calling LikeUser.
//
// TRANSACTIONAL OPERATIONS:
// LikeUser, StartThread, InsertPortfolioItems, ReplaceUserSkills,
// RecomputeEligibility and AppendMessage each run as a single transaction
// inside the store. Callers never see a half-applied like or a thread without
// its participants.
package repository

import (
	"context"
	"time"

	"github.com/sakif/buildermatch/internal/model"
)

// UserRepository stores accounts. A user always owns exactly one profile row,
// created in the same transaction as the user.
type UserRepository interface {
	GetUserByID(ctx context.Context, id string) (*model.User, error)
	GetUserByEmail(ctx context.Context, email string) (*model.User, error)
	// FindOrCreateUserByEmail returns the user with email, creating the user
	// and an empty profile when none exists. created reports which happened.
	FindOrCreateUserByEmail(ctx context.Context, email string) (user *model.User, created bool, err error)
}

// MagicLinkRepository stores one-time sign-in links.
type MagicLinkRepository interface {
	CreateMagicLink(ctx context.Context, link *model.MagicLink) error
	GetMagicLink(ctx context.Context, id string) (*model.MagicLink, error)
	// ConsumeMagicLink marks the link used. It fails with a LINK_EXPIRED
	// AppError when the link was already consumed, so a link can never be
	// redeemed twice even under concurrent verification.
	ConsumeMagicLink(ctx context.Context, id string, at time.Time) error
}

// ProfileRepository reads and writes profiles and the eligibility flag.
type ProfileRepository interface {
	GetProfile(ctx context.Context, userID string) (*model.Profile, error)
	UpdateBasics(ctx context.Context, userID string, basics model.ProfileBasics) error
	SaveBuilderProfile(ctx context.Context, userID string, p model.BuilderProfile) error
	SyncIdentityProfile(ctx context.Context, userID string, sync model.IdentitySync) error
	// RecomputeEligibility derives is_eligible from identity presence and
	// portfolio size and persists it. Returns the new value.
	RecomputeEligibility(ctx context.Context, userID string) (bool, error)
	// ListFeedCandidates returns eligible profiles the viewer has not passed
	// on, unranked. The viewer's own card is included when the viewer is
	// eligible.
	ListFeedCandidates(ctx context.Context, viewerID string) ([]model.FeedCard, error)
}

// IdentityRepository stores linked external accounts.
type IdentityRepository interface {
	// UpsertIdentity inserts or refreshes the (user, provider) identity. It
	// returns a Conflict AppError when the provider account is already linked
	// to a different user.
	UpsertIdentity(ctx context.Context, identity *model.ExternalIdentity) error
	GetIdentity(ctx context.Context, userID, provider string) (*model.ExternalIdentity, error)
	GetIdentityByProviderID(ctx context.Context, provider, providerUserID string) (*model.ExternalIdentity, error)
	DeleteIdentity(ctx context.Context, userID, provider string) error
}

// PortfolioRepository stores proof-of-work items.
type PortfolioRepository interface {
	ListPortfolio(ctx context.Context, userID string) ([]model.PortfolioItem, error)
	// InsertPortfolioItems inserts all items or none. A duplicate external id
	// yields ALREADY_IMPORTED.
	InsertPortfolioItems(ctx context.Context, userID string, items []model.PortfolioItem) error
	ReplaceManualItems(ctx context.Context, userID string, items []model.PortfolioItem) error
	DeletePortfolioItem(ctx context.Context, userID, itemID string) error
}

// SkillRepository stores the skill catalog and each user's picks from it.
type SkillRepository interface {
	ListSkills(ctx context.Context) ([]model.Skill, error)
	// CreateSkill yields SKILL_EXISTS when the name is taken, ignoring case.
	CreateSkill(ctx context.Context, skill *model.Skill) error
	ListUserSkills(ctx context.Context, userID string) ([]model.UserSkill, error)
	// ReplaceUserSkills replaces the full set or nothing. Unknown skill ids
	// are a validation error.
	ReplaceUserSkills(ctx context.Context, userID string, skills []model.UserSkill) error
}

// InteractionRepository records likes, passes and saves and detects matches.
type InteractionRepository interface {
	LikeUser(ctx context.Context, actorID, targetID string) (*model.LikeResult, error)
	PassUser(ctx context.Context, actorID, targetID string) error
	// SaveTarget is idempotent: saving the same target twice leaves one row.
	SaveTarget(ctx context.Context, actorID string, target model.Target) error
	ListInteractions(ctx context.Context, actorID string) ([]model.Interaction, error)
	ListMatches(ctx context.Context, userID string) ([]model.MatchSummary, error)
}

// ThreadRepository stores direct-message threads.
type ThreadRepository interface {
	StartThread(ctx context.Context, actorID, targetID, content string) (*model.StartThreadResult, error)
	ListThreads(ctx context.Context, userID string) ([]model.ThreadSummary, error)
	IsParticipant(ctx context.Context, threadID, userID string) (bool, error)
	ListMessages(ctx context.Context, threadID string) ([]model.Message, error)
	OtherParticipant(ctx context.Context, threadID, userID string) (*model.UserCard, error)
	AppendMessage(ctx context.Context, threadID, senderID, content string) (*model.Message, error)
	MarkRead(ctx context.Context, threadID, userID string, at time.Time) error
}

// Store is everything the sqlite package implements, for wiring.
type Store interface {
	UserRepository
	MagicLinkRepository
	ProfileRepository
	IdentityRepository
	PortfolioRepository
	SkillRepository
	InteractionRepository
	ThreadRepository
}
