package connectors

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"
	"unicode/utf8"

	"github.com/google/go-github/v58/github"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ai-audit/backend/internal/models"
)

func newTestGitHubClient(t *testing.T, server *httptest.Server) *github.Client {
	t.Helper()
	client := github.NewClient(server.Client())
	baseURL, err := url.Parse(server.URL + "/")
	require.NoError(t, err)
	client.BaseURL = baseURL
	client.UploadURL = baseURL
	return client
}

func TestGitHubConnector_FetchProfile(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/users/octocat", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{
			"login": "octocat", "id": 583231, "name": "The Octocat",
			"bio": "Building things", "location": "San Francisco",
			"company": "GitHub", "blog": "https://octo.example",
			"email": "octo@example.com",
			"public_repos": 8, "followers": 9000, "following": 9
		}`)
	})
	mux.HandleFunc("/users/octocat/repos", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `[
			{"name": "hello-world", "description": "My first repo", "language": "Go", "stargazers_count": 42, "fork": false},
			{"name": "forked-thing", "language": "C", "fork": true}
		]`)
	})
	mux.HandleFunc("/repos/octocat/hello-world/commits", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `[
			{"sha": "a1", "commit": {"author": {"date": "2026-08-20T09:15:00Z"}}},
			{"sha": "a2", "commit": {"author": {"date": "2026-08-21T09:40:00Z"}}},
			{"sha": "a3", "commit": {"author": {"date": "2026-08-22T22:05:00Z"}}}
		]`)
	})
	server := httptest.NewServer(mux)
	defer server.Close()

	conn := NewGitHubConnectorWithClient(newTestGitHubClient(t, server), 10, false)

	snap, err := conn.FetchProfile(context.Background(), "octocat")
	require.NoError(t, err)

	assert.Equal(t, models.PlatformGitHub, snap.Platform)
	assert.Equal(t, "octocat", snap.Username)
	assert.Equal(t, "583231", snap.UserID)
	assert.Contains(t, snap.ProfileText, "Name: The Octocat")
	assert.Contains(t, snap.ProfileText, "Location: San Francisco")
	assert.Equal(t, "San Francisco", snap.Metadata.String("location"))
	assert.Equal(t, "octo@example.com", snap.Metadata.String("email"))

	repos := snap.Metadata.Repositories()
	require.Len(t, repos, 1)
	assert.Equal(t, "hello-world", repos[0].Name)
	assert.Equal(t, "Go", repos[0].Language)
	assert.True(t, repos[0].CommitPatterns)
	assert.True(t, snap.Metadata.HasCommitPatterns())
}

func TestGitHubConnector_CommitPatternHistogram(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/repos/octocat/hello-world/commits", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `[
			{"sha": "a1", "commit": {"author": {"date": "2026-08-20T09:15:00Z"}}},
			{"sha": "a2", "commit": {"author": {"date": "2026-08-21T09:40:00Z"}}},
			{"sha": "a3", "commit": {"author": {"date": "2026-08-22T22:05:00Z"}}},
			{"sha": "a4", "commit": {"author": {}}}
		]`)
	})
	server := httptest.NewServer(mux)
	defer server.Close()

	conn := NewGitHubConnectorWithClient(newTestGitHubClient(t, server), 10, false)

	patterns := conn.commitPatterns(context.Background(), "octocat", "hello-world")
	require.NotNil(t, patterns)

	assert.Equal(t, 3, patterns["total_commits"])
	assert.Equal(t, 9, patterns["peak_hour"])

	hours, ok := patterns["hour_distribution"].([]int)
	require.True(t, ok)
	assert.Equal(t, 2, hours[9])
	assert.Equal(t, 1, hours[22])
}

func TestGitHubConnector_CommitPatternsEmptyHistory(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/repos/octocat/quiet-repo/commits", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `[]`)
	})
	server := httptest.NewServer(mux)
	defer server.Close()

	conn := NewGitHubConnectorWithClient(newTestGitHubClient(t, server), 10, false)

	assert.Nil(t, conn.commitPatterns(context.Background(), "octocat", "quiet-repo"))
}

func TestGitHubConnector_AnonymizeRedactsEmail(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/users/octocat", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"login": "octocat", "id": 1, "email": "octo@example.com"}`)
	})
	mux.HandleFunc("/users/octocat/repos", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `[]`)
	})
	server := httptest.NewServer(mux)
	defer server.Close()

	conn := NewGitHubConnectorWithClient(newTestGitHubClient(t, server), 10, true)

	snap, err := conn.FetchProfile(context.Background(), "octocat")
	require.NoError(t, err)

	assert.False(t, snap.Metadata.Has("email"))
	assert.NotEqual(t, "octocat", snap.Username)
	assert.Contains(t, snap.Username, "anon-")
}

func TestGitHubConnector_NotConfigured(t *testing.T) {
	conn := NewGitHubConnector("", 10, false)
	assert.False(t, conn.Configured())

	_, err := conn.FetchProfile(context.Background(), "whoever")
	assert.Error(t, err)
}

func TestWebConnector_FetchProfile(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `<html><head>
			<meta property="og:title" content="hiker42 on ExampleNet"/>
			<meta property="og:description" content="Trail runner in Boulder"/>
			<script>ignore();</script>
		</head><body><nav>menu</nav><p>Trail runner. Boulder, CO.</p></body></html>`)
	}))
	defer server.Close()

	conn := NewWebConnector(models.PlatformTwitter, server.URL+"/%s", "test-agent", 5*time.Second, false)

	snap, err := conn.FetchProfile(context.Background(), "hiker42")
	require.NoError(t, err)

	assert.Equal(t, models.PlatformTwitter, snap.Platform)
	assert.Equal(t, "hiker42 on ExampleNet", snap.Metadata.String("title"))
	assert.Equal(t, "Trail runner in Boulder", snap.Metadata.String("description"))
	assert.Contains(t, snap.ProfileText, "Trail runner. Boulder, CO.")
	assert.NotContains(t, snap.ProfileText, "ignore()")
	assert.NotContains(t, snap.ProfileText, "menu")
}

func TestWebConnector_TruncatesOnRuneBoundary(t *testing.T) {
	// A multibyte rune straddles the profile text cap.
	long := strings.Repeat("a", 4999) + "日本語"
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprintf(w, `<html><body><p>%s</p></body></html>`, long)
	}))
	defer server.Close()

	conn := NewWebConnector(models.PlatformTwitter, server.URL+"/%s", "test-agent", 5*time.Second, false)

	snap, err := conn.FetchProfile(context.Background(), "verbose")
	require.NoError(t, err)

	assert.LessOrEqual(t, len(snap.ProfileText), 5000)
	assert.True(t, utf8.ValidString(snap.ProfileText))
	assert.Equal(t, strings.Repeat("a", 4999), snap.ProfileText)
}

func TestWebConnector_NotFound(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer server.Close()

	conn := NewWebConnector(models.PlatformReddit, server.URL+"/%s", "test-agent", 5*time.Second, false)

	_, err := conn.FetchProfile(context.Background(), "ghost")
	assert.ErrorContains(t, err, "not found")
}

func TestRegistry(t *testing.T) {
	registry := NewRegistry()
	registry.Register(NewGitHubConnector("token", 10, false))
	registry.Register(NewTwitterConnector("agent", time.Second, false))

	conn, err := registry.Lookup(models.PlatformGitHub)
	require.NoError(t, err)
	assert.Equal(t, models.PlatformGitHub, conn.Platform())

	_, err = registry.Lookup(models.PlatformLinkedIn)
	assert.Error(t, err)

	assert.Equal(t, []models.Platform{models.PlatformGitHub, models.PlatformTwitter}, registry.ConfiguredPlatforms())
}
