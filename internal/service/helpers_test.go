package service

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/sakif/buildermatch/internal/apperror"
	"github.com/sakif/buildermatch/internal/auth"
	"github.com/sakif/buildermatch/internal/model"
	"github.com/sakif/buildermatch/internal/ratelimit"
	"github.com/sakif/buildermatch/internal/realtime"
	"github.com/sakif/buildermatch/internal/repository/sqlite"
)

// =========================================================================
// TEST DOUBLES
// =========================================================================
//
// Service tests run against the real SQLite store on ":memory:" so the
// transactional rules are exercised end to end. Only the things that leave
// the process are faked: GitHub and the browser's transient cookies.

type fakeProvider struct {
	user  *auth.GitHubUser
	repos []model.Repository

	exchangeErr error
	fetchErr    error
	reposErr    error

	exchangeCalls int
	lastState     string
}

func (p *fakeProvider) AuthURL(state string) string {
	p.lastState = state
	return "https://github.test/authorize?state=" + state
}

func (p *fakeProvider) Exchange(_ context.Context, code string) (string, error) {
	p.exchangeCalls++
	if p.exchangeErr != nil {
		return "", p.exchangeErr
	}
	return "token-for-" + code, nil
}

func (p *fakeProvider) FetchUser(_ context.Context, _ string) (*auth.GitHubUser, error) {
	if p.fetchErr != nil {
		return nil, p.fetchErr
	}
	u := *p.user
	return &u, nil
}

func (p *fakeProvider) ListRepositories(_ context.Context, _ string) ([]model.Repository, error) {
	if p.reposErr != nil {
		return nil, p.reposErr
	}
	return p.repos, nil
}

// memTransient is one browser's cookie jar.
type memTransient map[string]string

func (m memTransient) Get(key string) (string, bool) {
	v, ok := m[key]
	return v, ok
}

func (m memTransient) Set(key, value string, _ time.Duration) error {
	m[key] = value
	return nil
}

func (m memTransient) Delete(key string) error {
	delete(m, key)
	return nil
}

type captureMailer struct {
	sent []MagicLinkEmail
}

func (m *captureMailer) SendMagicLink(_ context.Context, email MagicLinkEmail) error {
	m.sent = append(m.sent, email)
	return nil
}

// =========================================================================
// ENVIRONMENT
// =========================================================================

type testEnv struct {
	store    *sqlite.DB
	provider *fakeProvider
	limiter  *ratelimit.MemoryLimiter
	hub      *realtime.Hub
	tokens   *auth.TokenService
	mailer   *captureMailer
	logger   *slog.Logger
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	store, err := sqlite.New(":memory:")
	if err != nil {
		t.Fatalf("sqlite.New() error = %v", err)
	}
	t.Cleanup(func() { store.Close() })

	tokens, err := auth.NewTokenService("test-secret-at-least-32-characters!", time.Hour)
	if err != nil {
		t.Fatalf("NewTokenService() error = %v", err)
	}

	return &testEnv{
		store: store,
		provider: &fakeProvider{user: &auth.GitHubUser{
			ID:        42,
			Login:     "octocat",
			Name:      "Mona Lisa",
			Email:     "mona@example.com",
			AvatarURL: "https://avatars.test/42",
			HTMLURL:   "https://github.com/octocat",
			Location:  "Lisbon",
		}},
		limiter: ratelimit.NewMemoryLimiter(),
		hub:     realtime.NewHub(),
		tokens:  tokens,
		mailer:  &captureMailer{},
		logger:  slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
}

func (e *testEnv) authService() *AuthService {
	return NewAuthService(AuthServiceConfig{
		Users:      e.store,
		MagicLinks: e.store,
		Identities: e.store,
		Profiles:   e.store,
		Tokens:     e.tokens,
		Hasher:     auth.NewSecretHasherForTest(),
		Provider:   e.provider,
		Limiter:    e.limiter,
		Mailer:     e.mailer,
		BaseURL:    "http://localhost:8080/",
		Logger:     e.logger,
	})
}

func (e *testEnv) linkService() *LinkService {
	return NewLinkService(e.provider, e.store, e.store, e.limiter, e.logger)
}

func (e *testEnv) profileService() *ProfileService {
	return NewProfileService(e.store, e.store, e.store, e.store, e.store, e.limiter, e.logger)
}

func (e *testEnv) portfolioService() *PortfolioService {
	return NewPortfolioService(e.provider, e.store, e.store, e.limiter, e.logger)
}

func (e *testEnv) feedService() *FeedService {
	return NewFeedService(e.store, e.store, e.logger)
}

func (e *testEnv) interactionService() *InteractionService {
	return NewInteractionService(e.store, e.store, e.hub, e.limiter, e.logger)
}

func (e *testEnv) messagingService() *MessagingService {
	return NewMessagingService(e.store, e.hub, e.logger)
}

// user creates an account and returns its session.
func (e *testEnv) user(t *testing.T, email string) auth.Session {
	t.Helper()
	u, _, err := e.store.FindOrCreateUserByEmail(context.Background(), email)
	if err != nil {
		t.Fatalf("FindOrCreateUserByEmail(%s) error = %v", email, err)
	}
	return auth.Session{UserID: u.ID}
}

// eligible links GitHub and imports two repositories for s.
func (e *testEnv) eligible(t *testing.T, s auth.Session, githubID int64) {
	t.Helper()
	ctx := context.Background()
	err := e.store.UpsertIdentity(ctx, &model.ExternalIdentity{
		UserID:         s.UserID,
		Provider:       model.ProviderGitHub,
		ProviderUserID: fmt.Sprint(githubID),
		Handle:         fmt.Sprintf("builder%d", githubID),
	})
	if err != nil {
		t.Fatalf("UpsertIdentity() error = %v", err)
	}
	items := []model.PortfolioItem{repoToItem(testRepo(githubID*10 + 1)), repoToItem(testRepo(githubID*10 + 2))}
	if err := e.store.InsertPortfolioItems(ctx, s.UserID, items); err != nil {
		t.Fatalf("InsertPortfolioItems() error = %v", err)
	}
	if ok, err := e.store.RecomputeEligibility(ctx, s.UserID); err != nil || !ok {
		t.Fatalf("RecomputeEligibility() = %v, %v", ok, err)
	}
}

// onboarded stores a complete builder profile for s.
func (e *testEnv) onboarded(t *testing.T, s auth.Session, allowMessages bool) {
	t.Helper()
	err := e.store.SaveBuilderProfile(context.Background(), s.UserID, model.BuilderProfile{
		Timezone:                 "Europe/Lisbon",
		AvailabilityHoursPerWeek: 20,
		WorkModes:                []string{model.WorkModePairProgramming},
		IterationStyle:           model.IterationRegularCoder,
		StackFocus:               []string{"web", "backend"},
		WantToBuildNext:          "A tool for indie hackers",
		AllowMessages:            allowMessages,
	})
	if err != nil {
		t.Fatalf("SaveBuilderProfile() error = %v", err)
	}
}

func testRepo(id int64) model.Repository {
	return model.Repository{
		ID:       id,
		Name:     fmt.Sprintf("repo-%d", id),
		FullName: fmt.Sprintf("octocat/repo-%d", id),
		URL:      fmt.Sprintf("https://github.com/octocat/repo-%d", id),
		Stars:    5,
		Language: "Go",
	}
}

func assertCode(t *testing.T, err error, code string) {
	t.Helper()
	if !apperror.IsCode(err, code) {
		t.Fatalf("err = %v (code %q), want code %s", err, apperror.CodeOf(err), code)
	}
}
