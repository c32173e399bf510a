package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/sakif/buildermatch/internal/apperror"
	"github.com/sakif/buildermatch/internal/auth"
	"github.com/sakif/buildermatch/internal/gating"
	"github.com/sakif/buildermatch/internal/metrics"
	"github.com/sakif/buildermatch/internal/model"
	"github.com/sakif/buildermatch/internal/ratelimit"
	"github.com/sakif/buildermatch/internal/repository"
)

// MaxImportBatch caps how many repositories one import may select.
const MaxImportBatch = 3

// PortfolioService imports GitHub repositories and manages hand-entered
// portfolio items. Every change ends with an eligibility recompute, since
// eligibility depends on the item count.
type PortfolioService struct {
	provider  IdentityProvider
	portfolio repository.PortfolioRepository
	profiles  repository.ProfileRepository
	limiter   ratelimit.Limiter
	logger    *slog.Logger
}

func NewPortfolioService(
	provider IdentityProvider,
	portfolio repository.PortfolioRepository,
	profiles repository.ProfileRepository,
	limiter ratelimit.Limiter,
	logger *slog.Logger,
) *PortfolioService {
	return &PortfolioService{
		provider:  provider,
		portfolio: portfolio,
		profiles:  profiles,
		limiter:   limiter,
		logger:    logger,
	}
}

func tokenExpired() *apperror.AppError {
	return apperror.New(apperror.ErrUnauthenticated, apperror.CodeTokenExpired,
		"GitHub access has expired. Please reconnect GitHub.")
}

// ListCandidateRepositories lists the user's public GitHub repositories using
// the access token parked by the last link or sign-in.
func (s *PortfolioService) ListCandidateRepositories(ctx context.Context, session auth.Session, store TransientStore) ([]model.Repository, error) {
	if err := requireSession(session); err != nil {
		return nil, err
	}
	token, ok := store.Get(TransientTokenKey)
	if !ok || token == "" {
		return nil, tokenExpired()
	}

	repos, err := s.provider.ListRepositories(ctx, token)
	if err != nil {
		var statusErr *auth.StatusError
		if errors.As(err, &statusErr) && statusErr.StatusCode == http.StatusUnauthorized {
			return nil, tokenExpired()
		}
		return nil, apperror.Unavailable(apperror.CodeDependencyUnavailable, "Could not load repositories from GitHub", err)
	}
	return repos, nil
}

// ImportResult reports a finished import.
type ImportResult struct {
	Imported int    `json:"imported"`
	Message  string `json:"message"`
	Redirect string `json:"redirect"`
}

// ImportSelected turns the picked repositories into portfolio items, all or
// none. Importing a repository twice fails with ALREADY_IMPORTED and leaves
// the portfolio unchanged.
func (s *PortfolioService) ImportSelected(ctx context.Context, session auth.Session, store TransientStore, repos []model.Repository) (*ImportResult, error) {
	if len(repos) == 0 {
		return nil, apperror.New(apperror.ErrValidation, apperror.CodeEmptySelection,
			"Please select at least one repository")
	}
	if len(repos) > MaxImportBatch {
		return nil, apperror.New(apperror.ErrValidation, apperror.CodeTooManySelected,
			fmt.Sprintf("You can only import up to %d repositories at a time", MaxImportBatch))
	}
	if err := requireSession(session); err != nil {
		return nil, err
	}
	if err := enforce(ctx, s.limiter, ratelimit.Profile, session.UserID, s.logger); err != nil {
		return nil, err
	}

	items := make([]model.PortfolioItem, 0, len(repos))
	for _, r := range repos {
		items = append(items, repoToItem(r))
	}
	if err := s.portfolio.InsertPortfolioItems(ctx, session.UserID, items); err != nil {
		return nil, fmt.Errorf("service/portfolio: %w", err)
	}
	metrics.ReposImported(len(items))

	// The token has done its job.
	if err := store.Delete(TransientTokenKey); err != nil {
		s.logger.Warn("portfolio: clearing provider token failed", slog.String("error", err.Error()))
	}
	recomputeEligibility(ctx, s.profiles, session.UserID, s.logger)

	redirect := MatchesPath
	profile, err := s.profiles.GetProfile(ctx, session.UserID)
	if err != nil {
		return nil, fmt.Errorf("service/portfolio: %w", err)
	}
	if !gating.BuilderProfileComplete(builderFields(profile)) {
		redirect = OnboardingPath
	}

	noun := "repositories"
	if len(items) == 1 {
		noun = "repository"
	}
	s.logger.Info("repositories imported",
		slog.String("userID", session.UserID),
		slog.Int("count", len(items)),
	)
	return &ImportResult{
		Imported: len(items),
		Message:  fmt.Sprintf("Successfully imported %d %s", len(items), noun),
		Redirect: redirect,
	}, nil
}

func repoToItem(r model.Repository) model.PortfolioItem {
	description := strings.TrimSpace(r.Description)
	if description == "" {
		description = "GitHub repository: " + r.Name
	}
	externalID := strconv.FormatInt(r.ID, 10)
	topics := r.Topics
	if topics == nil {
		topics = []string{}
	}
	return model.PortfolioItem{
		Title:       r.Name,
		Description: description,
		URL:         r.URL,
		ItemType:    model.ItemTypeGitHubRepo,
		ExternalID:  &externalID,
		Metadata: &model.RepoMetadata{
			GitHubID: r.ID,
			Stars:    r.Stars,
			Language: r.Language,
			PushedAt: r.PushedAt,
			Topics:   topics,
		},
	}
}

// ManualItemInput is one hand-entered portfolio entry. DisplayOrder defaults
// to the item's position in the request.
type ManualItemInput struct {
	Title        string   `json:"title" validate:"required,max=200"`
	Description  string   `json:"description" validate:"max=1000"`
	URL          string   `json:"url" validate:"required,http_url"`
	ProjectType  string   `json:"projectType" validate:"omitempty,oneof=web_app mobile_app open_source design other"`
	Tags         []string `json:"tags" validate:"max=10,unique,dive,required,max=30"`
	IsFeatured   bool     `json:"isFeatured"`
	DisplayOrder *int     `json:"displayOrder" validate:"omitempty,min=0"`
}

type manualItemsInput struct {
	Items []ManualItemInput `json:"items" validate:"min=2,dive"`
}

var manualItemMessages = map[string]string{
	"items.min":         "Add at least 2 portfolio items",
	"title.required":    "Title is required",
	"title.max":         "Title must be 200 characters or fewer",
	"url":               "Please enter a valid URL",
	"projectType.oneof": "Unknown project type",
	"tags.max":          "Use at most 10 tags of up to 30 characters",
	"tags.unique":       "Tags must not repeat",
	"tags.required":     "Tags cannot be empty",
	"displayOrder.min":  "Display order cannot be negative",
}

// ReplaceManualItems swaps the user's hand-entered items for items.
// Imported repositories are kept.
func (s *PortfolioService) ReplaceManualItems(ctx context.Context, session auth.Session, items []ManualItemInput) ([]model.PortfolioItem, error) {
	if err := requireSession(session); err != nil {
		return nil, err
	}
	for i := range items {
		items[i].Title = strings.TrimSpace(items[i].Title)
		items[i].Description = strings.TrimSpace(items[i].Description)
		items[i].URL = strings.TrimSpace(items[i].URL)
		items[i].ProjectType = strings.TrimSpace(items[i].ProjectType)
		for j := range items[i].Tags {
			items[i].Tags[j] = strings.ToLower(strings.TrimSpace(items[i].Tags[j]))
		}
	}
	if err := validateInput(manualItemsInput{Items: items}, manualItemMessages); err != nil {
		return nil, err
	}

	rows := make([]model.PortfolioItem, 0, len(items))
	for i, in := range items {
		order := i
		if in.DisplayOrder != nil {
			order = *in.DisplayOrder
		}
		rows = append(rows, model.PortfolioItem{
			Title:        in.Title,
			Description:  in.Description,
			URL:          in.URL,
			ItemType:     model.ItemTypeManual,
			ProjectType:  in.ProjectType,
			Tags:         in.Tags,
			IsFeatured:   in.IsFeatured,
			DisplayOrder: order,
		})
	}
	if err := s.portfolio.ReplaceManualItems(ctx, session.UserID, rows); err != nil {
		return nil, fmt.Errorf("service/portfolio: %w", err)
	}
	recomputeEligibility(ctx, s.profiles, session.UserID, s.logger)

	return s.portfolio.ListPortfolio(ctx, session.UserID)
}

// DeleteItem removes one of the caller's items. Someone else's item is
// reported as not found.
func (s *PortfolioService) DeleteItem(ctx context.Context, session auth.Session, itemID string) error {
	if err := requireSession(session); err != nil {
		return err
	}
	if err := s.portfolio.DeletePortfolioItem(ctx, session.UserID, itemID); err != nil {
		return fmt.Errorf("service/portfolio: %w", err)
	}
	recomputeEligibility(ctx, s.profiles, session.UserID, s.logger)
	return nil
}
