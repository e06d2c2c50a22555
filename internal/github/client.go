// Package github provides the GitHub API client used when linking repositories.
package github

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/google/go-github/v57/github"
	"golang.org/x/oauth2"
)

var (
	// ErrInvalidURL is returned for URLs that do not name a GitHub repository.
	ErrInvalidURL = errors.New("not a github repository url")
	// ErrRepositoryNotFound is returned when GitHub reports no such repository.
	ErrRepositoryNotFound = errors.New("repository not found")
)

// Client wraps the GitHub API client.
type Client struct {
	client *github.Client
}

// NewClient creates a new GitHub API client.
// If token is empty, an unauthenticated client is created (with lower rate limits).
func NewClient(token string) *Client {
	var client *github.Client

	if token != "" {
		ts := oauth2.StaticTokenSource(
			&oauth2.Token{AccessToken: token},
		)
		tc := oauth2.NewClient(context.Background(), ts)
		client = github.NewClient(tc)
	} else {
		client = github.NewClient(nil)
	}

	return &Client{client: client}
}

// RepoInfo contains basic repository information.
type RepoInfo struct {
	Owner       string
	Name        string
	FullName    string
	Description string
	Private     bool
	URL         string
}

// ParseRepositoryURL extracts owner and name from a repository URL such as
// https://github.com/owner/name(.git). The "owner/name" shorthand is accepted too.
func ParseRepositoryURL(raw string) (owner, name string, err error) {
	raw = strings.TrimSpace(raw)
	path := raw
	if strings.Contains(raw, "://") {
		u, err := url.Parse(raw)
		if err != nil || u.Host == "" {
			return "", "", fmt.Errorf("%w: %s", ErrInvalidURL, raw)
		}
		path = u.Path
	}

	path = strings.TrimSuffix(strings.Trim(path, "/"), ".git")
	parts := strings.Split(path, "/")
	if len(parts) != 2 || parts[0] == "" || parts[1] == "" {
		return "", "", fmt.Errorf("%w: %s", ErrInvalidURL, raw)
	}
	return parts[0], parts[1], nil
}

// GetRepository retrieves information about a repository. Owner, Name and
// URL carry GitHub's casing, which may differ from the request.
// A missing or inaccessible repository yields ErrRepositoryNotFound.
func (c *Client) GetRepository(ctx context.Context, owner, repo string) (*RepoInfo, error) {
	r, _, err := c.client.Repositories.Get(ctx, owner, repo)
	if err != nil {
		var rateErr *github.RateLimitError
		if errors.As(err, &rateErr) {
			return nil, fmt.Errorf("rate limit exceeded")
		}
		var respErr *github.ErrorResponse
		if errors.As(err, &respErr) && respErr.Response != nil && respErr.Response.StatusCode == http.StatusNotFound {
			// Repository not found or private
			return nil, fmt.Errorf("%w: %s/%s", ErrRepositoryNotFound, owner, repo)
		}
		return nil, fmt.Errorf("failed to get repository: %w", err)
	}

	info := &RepoInfo{
		Owner:       r.GetOwner().GetLogin(),
		Name:        r.GetName(),
		FullName:    r.GetFullName(),
		Description: r.GetDescription(),
		Private:     r.GetPrivate(),
		URL:         r.GetHTMLURL(),
	}
	if info.Owner == "" {
		info.Owner = owner
	}
	if info.Name == "" {
		info.Name = repo
	}
	return info, nil
}
