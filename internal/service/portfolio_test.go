package service

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"testing"

	"github.com/sakif/buildermatch/internal/apperror"
	"github.com/sakif/buildermatch/internal/auth"
	"github.com/sakif/buildermatch/internal/model"
)

func TestImportSelected_SelectionSize(t *testing.T) {
	tests := []struct {
		name  string
		count int
		want  string // "" means success
	}{
		{"nothing selected", 0, apperror.CodeEmptySelection},
		{"one", 1, ""},
		{"three", 3, ""},
		{"four", 4, apperror.CodeTooManySelected},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env := newTestEnv(t)
			session := env.user(t, "a@example.com")

			repos := make([]model.Repository, tt.count)
			for i := range repos {
				repos[i] = testRepo(int64(100 + i))
			}

			result, err := env.portfolioService().ImportSelected(context.Background(), session, memTransient{}, repos)

			if tt.want != "" {
				assertCode(t, err, tt.want)
				return
			}
			if err != nil {
				t.Fatalf("ImportSelected() error = %v", err)
			}
			if result.Imported != tt.count {
				t.Errorf("Imported = %d, want %d", result.Imported, tt.count)
			}
		})
	}
}

func TestImportSelected_SelectionCheckedBeforeSession(t *testing.T) {
	env := newTestEnv(t)
	_, err := env.portfolioService().ImportSelected(context.Background(), auth.Session{}, memTransient{}, nil)
	assertCode(t, err, apperror.CodeEmptySelection)
}

func TestImportSelected_SuccessFlow(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	session := env.user(t, "a@example.com")
	svc := env.portfolioService()
	if _, err := env.linkService().CompleteLink(ctx, session, memTransient{TransientStateKey: "s"}, "c", "s"); err != nil {
		t.Fatalf("CompleteLink() error = %v", err)
	}

	store := memTransient{TransientTokenKey: "gho"}
	repo := testRepo(123)
	repo.Description = ""
	result, err := svc.ImportSelected(ctx, session, store, []model.Repository{repo, testRepo(124)})
	if err != nil {
		t.Fatalf("ImportSelected() error = %v", err)
	}

	if result.Message != "Successfully imported 2 repositories" {
		t.Errorf("Message = %q", result.Message)
	}
	// Not onboarded yet, so the builder profile form comes next.
	if result.Redirect != OnboardingPath {
		t.Errorf("Redirect = %q, want %q", result.Redirect, OnboardingPath)
	}
	if _, ok := store.Get(TransientTokenKey); ok {
		t.Error("provider token should be cleared after import")
	}

	items, _ := env.store.ListPortfolio(ctx, session.UserID)
	if len(items) != 2 || items[0].Description != "GitHub repository: repo-123" {
		t.Fatalf("portfolio = %+v", items)
	}
	if items[0].Metadata == nil || items[0].Metadata.GitHubID != 123 {
		t.Errorf("metadata = %+v", items[0].Metadata)
	}

	profile, _ := env.store.GetProfile(ctx, session.UserID)
	if !profile.IsEligible {
		t.Error("GitHub + 2 repos should make the user eligible")
	}
}

func TestImportSelected_RedirectsOnboardedBuildersToMatches(t *testing.T) {
	env := newTestEnv(t)
	session := env.user(t, "a@example.com")
	env.onboarded(t, session, true)

	result, err := env.portfolioService().ImportSelected(context.Background(), session, memTransient{}, []model.Repository{testRepo(1)})
	if err != nil {
		t.Fatalf("ImportSelected() error = %v", err)
	}
	if result.Redirect != MatchesPath || result.Message != "Successfully imported 1 repository" {
		t.Errorf("result = %+v", result)
	}
}

func TestImportSelected_DuplicateRepository(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	session := env.user(t, "f@example.com")
	svc := env.portfolioService()

	if _, err := svc.ImportSelected(ctx, session, memTransient{}, []model.Repository{testRepo(123)}); err != nil {
		t.Fatalf("first import error = %v", err)
	}
	_, err := svc.ImportSelected(ctx, session, memTransient{}, []model.Repository{testRepo(124), testRepo(123)})

	assertCode(t, err, apperror.CodeAlreadyImported)
	var appErr *apperror.AppError
	if errors.As(err, &appErr) && appErr.Message != "One or more repositories have already been imported" {
		t.Errorf("Message = %q", appErr.Message)
	}
	// The batch rolled back: repo 124 was not kept.
	if items, _ := env.store.ListPortfolio(ctx, session.UserID); len(items) != 1 {
		t.Errorf("portfolio has %d items, want 1", len(items))
	}
}

func TestListCandidateRepositories(t *testing.T) {
	env := newTestEnv(t)
	session := env.user(t, "a@example.com")
	svc := env.portfolioService()
	ctx := context.Background()
	env.provider.repos = []model.Repository{testRepo(1), testRepo(2)}

	_, err := svc.ListCandidateRepositories(ctx, session, memTransient{})
	assertCode(t, err, apperror.CodeTokenExpired)

	repos, err := svc.ListCandidateRepositories(ctx, session, memTransient{TransientTokenKey: "gho"})
	if err != nil || len(repos) != 2 {
		t.Fatalf("ListCandidateRepositories() = %d repos, %v", len(repos), err)
	}

	env.provider.reposErr = &auth.StatusError{Endpoint: "/user/repos", StatusCode: http.StatusUnauthorized}
	_, err = svc.ListCandidateRepositories(ctx, session, memTransient{TransientTokenKey: "revoked"})
	assertCode(t, err, apperror.CodeTokenExpired)

	env.provider.reposErr = &auth.StatusError{Endpoint: "/user/repos", StatusCode: http.StatusBadGateway}
	_, err = svc.ListCandidateRepositories(ctx, session, memTransient{TransientTokenKey: "gho"})
	if !errors.Is(err, apperror.ErrUnavailable) {
		t.Errorf("err = %v, want ErrUnavailable", err)
	}
}

func TestReplaceManualItems(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	session := env.user(t, "a@example.com")
	svc := env.portfolioService()

	_, err := svc.ReplaceManualItems(ctx, session, []ManualItemInput{{Title: "Only one", URL: "https://one.dev"}})
	if fields := fieldErrors(t, err); fields["items"] != "Add at least 2 portfolio items" {
		t.Errorf("fields = %v", fields)
	}

	_, err = svc.ReplaceManualItems(ctx, session, []ManualItemInput{
		{Title: "One", URL: "https://one.dev"},
		{Title: " ", URL: "not a url"},
	})
	fields := fieldErrors(t, err)
	if fields["title"] != "Title is required" || fields["url"] != "Please enter a valid URL" {
		t.Errorf("fields = %v", fields)
	}

	items, err := svc.ReplaceManualItems(ctx, session, []ManualItemInput{
		{Title: "One", URL: "https://one.dev"},
		{Title: "Two", URL: "https://two.dev", Description: "second"},
	})
	if err != nil {
		t.Fatalf("ReplaceManualItems() error = %v", err)
	}
	if len(items) != 2 || items[0].ItemType != model.ItemTypeManual {
		t.Errorf("items = %+v", items)
	}
}

func TestReplaceManualItems_KeepsOrderFeaturedAndTags(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	session := env.user(t, "a@example.com")
	svc := env.portfolioService()

	first, second := 1, 0
	items, err := svc.ReplaceManualItems(ctx, session, []ManualItemInput{
		{Title: "Side project", URL: "https://side.dev", DisplayOrder: &first},
		{
			Title:        "Flagship",
			URL:          "https://flagship.dev",
			ProjectType:  model.ProjectTypeWebApp,
			Tags:         []string{" SaaS ", "payments"},
			IsFeatured:   true,
			DisplayOrder: &second,
		},
	})
	if err != nil {
		t.Fatalf("ReplaceManualItems() error = %v", err)
	}
	if len(items) != 2 {
		t.Fatalf("items = %+v", items)
	}
	flagship := items[0]
	if flagship.Title != "Flagship" || !flagship.IsFeatured || flagship.DisplayOrder != 0 {
		t.Errorf("first item = %+v, want the featured flagship at order 0", flagship)
	}
	if flagship.ProjectType != model.ProjectTypeWebApp || strings.Join(flagship.Tags, ",") != "saas,payments" {
		t.Errorf("project type = %q, tags = %v", flagship.ProjectType, flagship.Tags)
	}
	if items[1].IsFeatured || items[1].DisplayOrder != 1 || len(items[1].Tags) != 0 {
		t.Errorf("second item = %+v", items[1])
	}

	// Without an explicit order, request position wins.
	items, err = svc.ReplaceManualItems(ctx, session, []ManualItemInput{
		{Title: "A", URL: "https://a.dev"},
		{Title: "B", URL: "https://b.dev"},
	})
	if err != nil {
		t.Fatalf("ReplaceManualItems() error = %v", err)
	}
	if items[0].Title != "A" || items[0].DisplayOrder != 0 || items[1].DisplayOrder != 1 {
		t.Errorf("items = %+v", items)
	}
}

func TestReplaceManualItems_ValidatesTypeTagsAndOrder(t *testing.T) {
	env := newTestEnv(t)
	session := env.user(t, "a@example.com")
	svc := env.portfolioService()

	negative := -1
	_, err := svc.ReplaceManualItems(context.Background(), session, []ManualItemInput{
		{Title: "One", URL: "https://one.dev", ProjectType: "hardware", DisplayOrder: &negative},
		{Title: "Two", URL: "https://two.dev", Tags: []string{"go", "Go"}},
	})
	fields := fieldErrors(t, err)
	if fields["projectType"] != "Unknown project type" ||
		fields["displayOrder"] != "Display order cannot be negative" ||
		fields["tags"] != "Tags must not repeat" {
		t.Errorf("fields = %v", fields)
	}

	items, _ := env.store.ListPortfolio(context.Background(), session.UserID)
	if len(items) != 0 {
		t.Errorf("invalid input stored %d items", len(items))
	}
}

func TestDeleteItem_RecomputesEligibility(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	owner := env.user(t, "owner@example.com")
	other := env.user(t, "other@example.com")
	env.eligible(t, owner, 5)
	svc := env.portfolioService()

	items, _ := env.store.ListPortfolio(ctx, owner.UserID)

	err := svc.DeleteItem(ctx, other, items[0].ID)
	if !errors.Is(err, apperror.ErrNotFound) {
		t.Fatalf("foreign delete error = %v, want ErrNotFound", err)
	}

	if err := svc.DeleteItem(ctx, owner, items[0].ID); err != nil {
		t.Fatalf("DeleteItem() error = %v", err)
	}
	profile, _ := env.store.GetProfile(ctx, owner.UserID)
	if profile.IsEligible {
		t.Error("one item left, profile should no longer be eligible")
	}
}
