package tools

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/google/go-github/v66/github"
	"golang.org/x/oauth2"
)

const (
	// maxOpenIssues caps list_open_issues.
	maxOpenIssues = 5
	// recentCommits is how many commits get_repo_stats lists.
	recentCommits = 2
	// timeLayout formats GitHub timestamps in tool results.
	timeLayout = "2006-01-02 15:04:05"
)

// GitHubConfig configures the GitHub tools.
type GitHubConfig struct {
	// Token is a personal access token. Empty uses unauthenticated access,
	// which cannot resolve short repo names.
	Token string
	// DefaultUser is the default for list_user_repos. Empty lists the
	// authenticated user's repositories.
	DefaultUser string
	// BaseURL overrides the API endpoint (GitHub Enterprise, tests).
	BaseURL string
}

// GitHub implements the repository-metadata tools.
type GitHub struct {
	client      *github.Client
	defaultUser string
}

// NewGitHub constructs the GitHub tool set.
func NewGitHub(ctx context.Context, cfg GitHubConfig) (*GitHub, error) {
	httpClient := &http.Client{Timeout: 30 * time.Second}
	if cfg.Token != "" {
		ts := oauth2.StaticTokenSource(&oauth2.Token{AccessToken: cfg.Token})
		httpClient = oauth2.NewClient(context.WithValue(ctx, oauth2.HTTPClient, httpClient), ts)
	}
	client := github.NewClient(httpClient)

	if cfg.BaseURL != "" {
		u, err := url.Parse(strings.TrimRight(cfg.BaseURL, "/") + "/")
		if err != nil {
			return nil, fmt.Errorf("tools: invalid GitHub base URL: %w", err)
		}
		client.BaseURL = u
	}
	return &GitHub{client: client, defaultUser: cfg.DefaultUser}, nil
}

// Descriptors returns the four GitHub tools in catalog order.
func (g *GitHub) Descriptors() []Descriptor {
	repoParam := Param{Name: "repo_name", Type: String, Required: true, Desc: `"owner/name", or just "name" for the authenticated user's repository.`}
	return []Descriptor{
		{
			Name:        "list_user_repos",
			Description: "Lists a user's repositories with basic statistics (language, stars, forks, last update).",
			Params:      []Param{{Name: "username", Type: String, Default: g.defaultUser, Desc: "GitHub login; empty for the authenticated user."}},
			Call:        g.ListUserRepos,
		},
		{
			Name:        "get_repo_stats",
			Description: "Returns stars, forks, open issues, language and recent commits of a repository.",
			Params:      []Param{repoParam},
			Call:        g.RepoStats,
		},
		{
			Name:        "get_last_commit",
			Description: "Returns the message, author and date of the latest commit.",
			Params:      []Param{repoParam},
			Call:        g.LastCommit,
		},
		{
			Name:        "list_open_issues",
			Description: "Lists open issues of a repository (max. 5).",
			Params:      []Param{repoParam},
			Call:        g.OpenIssues,
		},
	}
}

// ListUserRepos lists repositories sorted by last update, newest first.
func (g *GitHub) ListUserRepos(ctx context.Context, args Args) (*Result, error) {
	user := args.String("username")

	var all []*github.Repository
	if user == "" {
		opts := &github.RepositoryListByAuthenticatedUserOptions{
			Sort:        "updated",
			Direction:   "desc",
			ListOptions: github.ListOptions{PerPage: 100},
		}
		for {
			repos, resp, err := g.client.Repositories.ListByAuthenticatedUser(ctx, opts)
			if err != nil {
				return nil, fmt.Errorf("listing repositories: %w", err)
			}
			all = append(all, repos...)
			if resp.NextPage == 0 {
				break
			}
			opts.Page = resp.NextPage
		}
	} else {
		opts := &github.RepositoryListByUserOptions{
			Sort:        "updated",
			Direction:   "desc",
			ListOptions: github.ListOptions{PerPage: 100},
		}
		for {
			repos, resp, err := g.client.Repositories.ListByUser(ctx, user, opts)
			if err != nil {
				return nil, fmt.Errorf("listing repositories of %s: %w", user, err)
			}
			all = append(all, repos...)
			if resp.NextPage == 0 {
				break
			}
			opts.Page = resp.NextPage
		}
	}

	items := make([]Record, 0, len(all))
	for _, r := range all {
		lang := r.GetLanguage()
		if lang == "" {
			lang = "unknown"
		}
		visibility := "public"
		if r.GetPrivate() {
			visibility = "private"
		}
		items = append(items, Record{
			{"name", r.GetName()},
			{"language", lang},
			{"stars", strconv.Itoa(r.GetStargazersCount())},
			{"forks", strconv.Itoa(r.GetForksCount())},
			{"visibility", visibility},
			{"last_update", formatTime(r.GetUpdatedAt())},
		})
	}
	return &Result{Shape: ShapeRepos, Items: items}, nil
}

// RepoStats returns general repository information including the total
// commit count and the most recent commits.
func (g *GitHub) RepoStats(ctx context.Context, args Args) (*Result, error) {
	owner, name, err := g.qualify(ctx, args.String("repo_name"))
	if err != nil {
		return nil, err
	}
	repo, _, err := g.client.Repositories.Get(ctx, owner, name)
	if err != nil {
		return nil, fmt.Errorf("fetching %s/%s: %w", owner, name, err)
	}

	commits, _, err := g.client.Repositories.ListCommits(ctx, owner, name,
		&github.CommitsListOptions{ListOptions: github.ListOptions{PerPage: recentCommits}})
	if err != nil {
		return nil, fmt.Errorf("listing commits of %s/%s: %w", owner, name, err)
	}
	total, err := g.commitCount(ctx, owner, name)
	if err != nil {
		return nil, err
	}

	recent := make([]string, 0, len(commits))
	for _, c := range commits {
		recent = append(recent, fmt.Sprintf("%s (%s, %s)", firstLine(c.GetCommit().GetMessage()),
			authorName(c), formatTime(c.GetCommit().GetAuthor().GetDate())))
	}

	return &Result{Shape: ShapeRecord, Record: Record{
		{"name", repo.GetFullName()},
		{"description", repo.GetDescription()},
		{"stars", strconv.Itoa(repo.GetStargazersCount())},
		{"forks", strconv.Itoa(repo.GetForksCount())},
		{"open_issues", strconv.Itoa(repo.GetOpenIssuesCount())},
		{"language", repo.GetLanguage()},
		{"total_commits", strconv.Itoa(total)},
		{"last_update", formatTime(repo.GetUpdatedAt())},
		{"recent_commits", strings.Join(recent, "; ")},
	}}, nil
}

// LastCommit returns the latest commit on the default branch.
func (g *GitHub) LastCommit(ctx context.Context, args Args) (*Result, error) {
	owner, name, err := g.qualify(ctx, args.String("repo_name"))
	if err != nil {
		return nil, err
	}
	commits, _, err := g.client.Repositories.ListCommits(ctx, owner, name,
		&github.CommitsListOptions{ListOptions: github.ListOptions{PerPage: 1}})
	if err != nil {
		return nil, fmt.Errorf("listing commits of %s/%s: %w", owner, name, err)
	}
	if len(commits) == 0 {
		return &Result{Shape: ShapeRecord}, nil
	}
	c := commits[0]
	return &Result{Shape: ShapeRecord, Record: Record{
		{"message", c.GetCommit().GetMessage()},
		{"author", authorName(c)},
		{"date", formatTime(c.GetCommit().GetAuthor().GetDate())},
	}}, nil
}

// OpenIssues lists up to five open issues.
func (g *GitHub) OpenIssues(ctx context.Context, args Args) (*Result, error) {
	owner, name, err := g.qualify(ctx, args.String("repo_name"))
	if err != nil {
		return nil, err
	}
	issues, _, err := g.client.Issues.ListByRepo(ctx, owner, name, &github.IssueListByRepoOptions{
		State:       "open",
		ListOptions: github.ListOptions{PerPage: maxOpenIssues},
	})
	if err != nil {
		return nil, fmt.Errorf("listing issues of %s/%s: %w", owner, name, err)
	}

	items := make([]Record, 0, maxOpenIssues)
	for _, is := range issues {
		if len(items) == maxOpenIssues {
			break
		}
		items = append(items, Record{
			{"title", is.GetTitle()},
			{"author", is.GetUser().GetLogin()},
		})
	}
	return &Result{Shape: ShapeIssues, Items: items}, nil
}

// qualify splits "owner/name". A bare name is resolved against the
// authenticated user's login.
func (g *GitHub) qualify(ctx context.Context, repo string) (string, string, error) {
	repo = strings.TrimSpace(repo)
	if owner, name, ok := strings.Cut(repo, "/"); ok {
		if owner == "" || name == "" {
			return "", "", fmt.Errorf("invalid repository name %q", repo)
		}
		return owner, name, nil
	}
	me, _, err := g.client.Users.Get(ctx, "")
	if err != nil {
		return "", "", fmt.Errorf("resolving authenticated user for %q: %w", repo, err)
	}
	return me.GetLogin(), repo, nil
}

// commitCount returns the number of commits on the default branch. With one
// commit per page, the last page number is the total.
func (g *GitHub) commitCount(ctx context.Context, owner, name string) (int, error) {
	commits, resp, err := g.client.Repositories.ListCommits(ctx, owner, name,
		&github.CommitsListOptions{ListOptions: github.ListOptions{PerPage: 1}})
	if err != nil {
		return 0, fmt.Errorf("counting commits of %s/%s: %w", owner, name, err)
	}
	if resp.LastPage > 0 {
		return resp.LastPage, nil
	}
	return len(commits), nil
}

func authorName(c *github.RepositoryCommit) string {
	if n := c.GetCommit().GetAuthor().GetName(); n != "" {
		return n
	}
	return "unknown"
}

func firstLine(s string) string {
	line, _, _ := strings.Cut(s, "\n")
	return line
}

func formatTime(ts github.Timestamp) string {
	if ts.IsZero() {
		return "?"
	}
	return ts.UTC().Format(timeLayout)
}
