package connectors

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/go-github/v58/github"
	"go.uber.org/zap"

	"github.com/ai-audit/backend/internal/models"
	"github.com/ai-audit/backend/pkg/logger"
	"github.com/ai-audit/backend/pkg/utils"
)

// GitHubConnector collects public profile and repository data through
// the GitHub REST API.
type GitHubConnector struct {
	client    *github.Client
	token     string
	maxRepos  int
	anonymize bool
}

func NewGitHubConnector(token string, maxRepos int, anonymize bool) *GitHubConnector {
	client := github.NewClient(nil)
	if token != "" {
		client = client.WithAuthToken(token)
	}
	if maxRepos <= 0 {
		maxRepos = 10
	}
	return &GitHubConnector{
		client:    client,
		token:     token,
		maxRepos:  maxRepos,
		anonymize: anonymize,
	}
}

// NewGitHubConnectorWithClient injects a prebuilt API client, used in
// tests against a local server.
func NewGitHubConnectorWithClient(client *github.Client, maxRepos int, anonymize bool) *GitHubConnector {
	if maxRepos <= 0 {
		maxRepos = 10
	}
	return &GitHubConnector{
		client:    client,
		token:     "test",
		maxRepos:  maxRepos,
		anonymize: anonymize,
	}
}

func (c *GitHubConnector) Platform() models.Platform {
	return models.PlatformGitHub
}

func (c *GitHubConnector) Configured() bool {
	return c.token != ""
}

func (c *GitHubConnector) FetchProfile(ctx context.Context, username string) (*models.ProfileSnapshot, error) {
	if !c.Configured() {
		return nil, fmt.Errorf("github token not configured")
	}

	user, _, err := c.client.Users.Get(ctx, username)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch github profile for %s: %w", username, err)
	}

	repos := c.fetchRepositories(ctx, username)

	metadata := models.Metadata{
		"followers":    user.GetFollowers(),
		"following":    user.GetFollowing(),
		"public_repos": user.GetPublicRepos(),
		"repositories": repos,
	}
	if user.GetLocation() != "" {
		metadata["location"] = user.GetLocation()
	}
	if user.GetCompany() != "" {
		metadata["company"] = user.GetCompany()
	}
	if user.GetBlog() != "" {
		metadata["blog"] = user.GetBlog()
	}
	if user.GetEmail() != "" && !c.anonymize {
		metadata["email"] = user.GetEmail()
	}
	if !user.GetCreatedAt().IsZero() {
		metadata["account_created"] = user.GetCreatedAt().Format(time.RFC3339)
	}

	snapshot := &models.ProfileSnapshot{
		Platform:    models.PlatformGitHub,
		Username:    username,
		UserID:      fmt.Sprintf("%d", user.GetID()),
		ProfileText: buildGitHubProfileText(user),
		Metadata:    metadata,
		CollectedAt: time.Now().UTC(),
	}
	if c.anonymize {
		snapshot.Username = utils.AnonymizeUsername(username)
	}

	logger.Info("GitHub profile collected",
		zap.String("username", snapshot.Username),
		zap.Int("repositories", len(repos)),
	)

	return snapshot, nil
}

func (c *GitHubConnector) fetchRepositories(ctx context.Context, username string) []interface{} {
	opts := &github.RepositoryListByUserOptions{
		Sort:        "updated",
		Direction:   "desc",
		ListOptions: github.ListOptions{PerPage: c.maxRepos},
	}

	repos, _, err := c.client.Repositories.ListByUser(ctx, username, opts)
	if err != nil {
		logger.Warn("Could not fetch repository data",
			zap.String("username", username),
			zap.Error(err),
		)
		return nil
	}

	out := make([]interface{}, 0, len(repos))
	for _, repo := range repos {
		if repo.GetFork() {
			continue
		}
		if len(out) >= c.maxRepos {
			break
		}
		entry := map[string]interface{}{
			"name":        repo.GetName(),
			"description": repo.GetDescription(),
			"language":    repo.GetLanguage(),
			"stars":       repo.GetStargazersCount(),
			"forks":       repo.GetForksCount(),
		}
		if patterns := c.commitPatterns(ctx, username, repo.GetName()); patterns != nil {
			entry["commit_patterns"] = patterns
		}
		out = append(out, entry)
	}
	return out
}

const (
	commitLookback    = 90 * 24 * time.Hour
	maxCommitsPerRepo = 100
)

// commitPatterns builds a timing histogram from recent commits. Commit
// times leak work schedules, so the histogram is both an exposure point
// and an input for schedule inference. Nil when the history is empty or
// unavailable.
func (c *GitHubConnector) commitPatterns(ctx context.Context, username, repo string) map[string]interface{} {
	opts := &github.CommitsListOptions{
		Since:       time.Now().Add(-commitLookback),
		ListOptions: github.ListOptions{PerPage: maxCommitsPerRepo},
	}

	commits, _, err := c.client.Repositories.ListCommits(ctx, username, repo, opts)
	if err != nil {
		logger.Debug("Could not analyze commit patterns",
			zap.String("repository", repo),
			zap.Error(err),
		)
		return nil
	}

	hourCounts := make([]int, 24)
	dayCounts := make([]int, 7)
	total := 0
	for _, commit := range commits {
		if total >= maxCommitsPerRepo {
			break
		}
		date := commit.GetCommit().GetAuthor().GetDate()
		if date.IsZero() {
			continue
		}
		hourCounts[date.Hour()]++
		dayCounts[int(date.Weekday())]++
		total++
	}
	if total == 0 {
		return nil
	}

	return map[string]interface{}{
		"total_commits":     total,
		"peak_hour":         peakIndex(hourCounts),
		"peak_day":          peakIndex(dayCounts),
		"hour_distribution": hourCounts,
		"day_distribution":  dayCounts,
	}
}

func peakIndex(counts []int) int {
	peak := 0
	for i, n := range counts {
		if n > counts[peak] {
			peak = i
		}
	}
	return peak
}

func buildGitHubProfileText(user *github.User) string {
	var parts []string

	if user.GetName() != "" {
		parts = append(parts, fmt.Sprintf("Name: %s", user.GetName()))
	}
	if user.GetBio() != "" {
		parts = append(parts, fmt.Sprintf("Bio: %s", user.GetBio()))
	}
	if user.GetLocation() != "" {
		parts = append(parts, fmt.Sprintf("Location: %s", user.GetLocation()))
	}
	if user.GetCompany() != "" {
		parts = append(parts, fmt.Sprintf("Company: %s", user.GetCompany()))
	}
	if user.GetBlog() != "" {
		parts = append(parts, fmt.Sprintf("Website: %s", user.GetBlog()))
	}

	parts = append(parts,
		fmt.Sprintf("Public repositories: %d", user.GetPublicRepos()),
		fmt.Sprintf("Followers: %d", user.GetFollowers()),
		fmt.Sprintf("Following: %d", user.GetFollowing()),
	)

	if !user.GetCreatedAt().IsZero() {
		parts = append(parts, fmt.Sprintf("Member since: %s", user.GetCreatedAt().Format("January 2006")))
	}

	return strings.Join(parts, "\n")
}
