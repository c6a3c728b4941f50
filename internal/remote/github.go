package remote

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/google/go-github/v62/github"
	"golang.org/x/oauth2"

	"pmat/internal/logging"
)

// Metadata summarizes a GitHub repository.
type Metadata struct {
	FullName      string    `json:"full_name"`
	Description   string    `json:"description,omitempty"`
	DefaultBranch string    `json:"default_branch"`
	Language      string    `json:"language,omitempty"`
	Stars         int       `json:"stars"`
	Forks         int       `json:"forks"`
	OpenIssues    int       `json:"open_issues"`
	SizeKB        int       `json:"size_kb"`
	Archived      bool      `json:"archived"`
	Private       bool      `json:"private"`
	PushedAt      time.Time `json:"pushed_at,omitempty"`
}

// Client reads repository metadata from the GitHub API.
type Client struct {
	gh *github.Client
}

// NewClient authenticates with token when it is non-empty.
func NewClient(ctx context.Context, token string) *Client {
	var hc *http.Client
	if token != "" {
		ts := oauth2.StaticTokenSource(&oauth2.Token{AccessToken: token})
		hc = oauth2.NewClient(ctx, ts)
	}
	return &Client{gh: github.NewClient(hc)}
}

// WithBaseURL points the client at another API root, such as GitHub
// Enterprise.
func (c *Client) WithBaseURL(base string) (*Client, error) {
	if !strings.HasSuffix(base, "/") {
		base += "/"
	}
	u, err := url.Parse(base)
	if err != nil {
		return nil, fmt.Errorf("invalid API base URL: %w", err)
	}
	c.gh.BaseURL = u
	return c, nil
}

// Metadata fetches repo details.
func (c *Client) Metadata(ctx context.Context, r Repo) (*Metadata, error) {
	repo, _, err := c.gh.Repositories.Get(ctx, r.Owner, r.Name)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch %s: %w", r.FullName(), err)
	}
	logging.GitDebug("fetched metadata for %s", r.FullName())
	m := &Metadata{
		FullName:      repo.GetFullName(),
		Description:   repo.GetDescription(),
		DefaultBranch: repo.GetDefaultBranch(),
		Language:      repo.GetLanguage(),
		Stars:         repo.GetStargazersCount(),
		Forks:         repo.GetForksCount(),
		OpenIssues:    repo.GetOpenIssuesCount(),
		SizeKB:        repo.GetSize(),
		Archived:      repo.GetArchived(),
		Private:       repo.GetPrivate(),
	}
	if repo.PushedAt != nil {
		m.PushedAt = repo.PushedAt.Time
	}
	return m, nil
}
