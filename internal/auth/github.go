package auth

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/github"

	"github.com/sakif/buildermatch/internal/model"
)

const defaultGitHubAPI = "https://api.github.com"

// GitHubScopes is the fixed, read-only scope set requested on every
// authorization: public profile plus email addresses.
var GitHubScopes = []string{"read:user", "user:email"}

// ErrNoAccessToken is returned by Exchange when the provider answered without
// an access token.
var ErrNoAccessToken = errors.New("auth: provider returned no access token")

// GitHubUser is the portion of the GitHub /user response we care about.
type GitHubUser struct {
	ID        int64  `json:"id"`
	Login     string `json:"login"`
	Name      string `json:"name"`
	Email     string `json:"email"`
	AvatarURL string `json:"avatar_url"`
	HTMLURL   string `json:"html_url"`
	Bio       string `json:"bio"`
	Location  string `json:"location"`
}

type githubRepo struct {
	ID              int64    `json:"id"`
	Name            string   `json:"name"`
	FullName        string   `json:"full_name"`
	Description     *string  `json:"description"`
	HTMLURL         string   `json:"html_url"`
	Private         bool     `json:"private"`
	StargazersCount int      `json:"stargazers_count"`
	Language        *string  `json:"language"`
	PushedAt        string   `json:"pushed_at"`
	Topics          []string `json:"topics"`
}

// StatusError reports a non-2xx answer from the GitHub REST API.
type StatusError struct {
	Endpoint   string
	StatusCode int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("auth: GitHub %s returned status %d", e.Endpoint, e.StatusCode)
}

// GitHubConfig configures a GitHubProvider. AuthURL, TokenURL and APIBaseURL
// default to github.com and exist so tests can point at an httptest server.
type GitHubConfig struct {
	ClientID     string
	ClientSecret string
	RedirectURL  string
	AuthURL      string
	TokenURL     string
	APIBaseURL   string
}

// GitHubProvider wraps golang.org/x/oauth2 for the GitHub Authorization Code
// flow and the handful of REST calls this product needs.
//
// OAUTH 2.0 AUTHORIZATION CODE FLOW:
//  1. Redirect the browser to GitHub with our client id, scopes and a state.
//  2. GitHub redirects back to RedirectURL with a short-lived code.
//  3. Exchange the code for an access token, server to server.
//  4. Call the REST API with the token.
//
// The token never reaches the browser in the clear; the handler layer keeps
// it in an encrypted short-lived cookie for the import step.
type GitHubProvider struct {
	config  *oauth2.Config
	apiBase string
}

func NewGitHubProvider(cfg GitHubConfig) *GitHubProvider {
	endpoint := github.Endpoint
	if cfg.AuthURL != "" {
		endpoint.AuthURL = cfg.AuthURL
	}
	if cfg.TokenURL != "" {
		endpoint.TokenURL = cfg.TokenURL
	}
	endpoint.AuthStyle = oauth2.AuthStyleInParams

	apiBase := cfg.APIBaseURL
	if apiBase == "" {
		apiBase = defaultGitHubAPI
	}

	return &GitHubProvider{
		config: &oauth2.Config{
			ClientID:     cfg.ClientID,
			ClientSecret: cfg.ClientSecret,
			RedirectURL:  cfg.RedirectURL,
			Scopes:       GitHubScopes,
			Endpoint:     endpoint,
		},
		apiBase: strings.TrimRight(apiBase, "/"),
	}
}

// AuthURL returns the authorization URL carrying state and the fixed scopes.
func (p *GitHubProvider) AuthURL(state string) string {
	return p.config.AuthCodeURL(state, oauth2.AccessTypeOnline)
}

// Exchange trades an authorization code for an access token.
func (p *GitHubProvider) Exchange(ctx context.Context, code string) (string, error) {
	token, err := p.config.Exchange(ctx, code)
	if err != nil {
		return "", fmt.Errorf("auth: exchanging OAuth code: %w", err)
	}
	if token.AccessToken == "" {
		return "", ErrNoAccessToken
	}
	return token.AccessToken, nil
}

// FetchUser calls GET /user with accessToken.
func (p *GitHubProvider) FetchUser(ctx context.Context, accessToken string) (*GitHubUser, error) {
	var user GitHubUser
	if err := p.get(ctx, accessToken, "/user", &user); err != nil {
		return nil, err
	}
	if user.ID == 0 {
		return nil, fmt.Errorf("auth: GitHub returned an invalid user (ID = 0)")
	}
	return &user, nil
}

// ListRepositories returns up to 100 of the account's own repositories,
// most recently updated first, with private repositories removed.
func (p *GitHubProvider) ListRepositories(ctx context.Context, accessToken string) ([]model.Repository, error) {
	var repos []githubRepo
	if err := p.get(ctx, accessToken, "/user/repos?type=owner&sort=updated&per_page=100", &repos); err != nil {
		return nil, err
	}

	out := make([]model.Repository, 0, len(repos))
	for _, r := range repos {
		if r.Private {
			continue
		}
		repo := model.Repository{
			ID:       r.ID,
			Name:     r.Name,
			FullName: r.FullName,
			URL:      r.HTMLURL,
			Stars:    r.StargazersCount,
			PushedAt: r.PushedAt,
			Topics:   r.Topics,
		}
		if r.Description != nil {
			repo.Description = *r.Description
		}
		if r.Language != nil {
			repo.Language = *r.Language
		}
		if repo.Topics == nil {
			repo.Topics = []string{}
		}
		out = append(out, repo)
	}
	return out, nil
}

func (p *GitHubProvider) get(ctx context.Context, accessToken, path string, dst any) error {
	client := p.config.Client(ctx, &oauth2.Token{AccessToken: accessToken, TokenType: "Bearer"})

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.apiBase+path, nil)
	if err != nil {
		return fmt.Errorf("auth: building GitHub request: %w", err)
	}
	req.Header.Set("Accept", "application/vnd.github+json")

	resp, err := client.Do(req)
	if err != nil {
		return fmt.Errorf("auth: calling GitHub %s: %w", path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return &StatusError{Endpoint: path, StatusCode: resp.StatusCode}
	}

	if err := json.NewDecoder(resp.Body).Decode(dst); err != nil {
		return fmt.Errorf("auth: decoding GitHub %s response: %w", path, err)
	}
	return nil
}
