package connectors

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/PuerkitoBio/goquery"
	"go.uber.org/zap"

	"github.com/ai-audit/backend/internal/models"
	"github.com/ai-audit/backend/pkg/logger"
	"github.com/ai-audit/backend/pkg/utils"
)

const maxProfileTextLen = 5000

// WebConnector scrapes a public profile page for platforms without a
// usable API. The URL template receives the username once.
type WebConnector struct {
	platform    models.Platform
	urlTemplate string
	userAgent   string
	anonymize   bool
	httpClient  *http.Client
}

func NewWebConnector(platform models.Platform, urlTemplate, userAgent string, timeout time.Duration, anonymize bool) *WebConnector {
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	return &WebConnector{
		platform:    platform,
		urlTemplate: urlTemplate,
		userAgent:   userAgent,
		anonymize:   anonymize,
		httpClient:  &http.Client{Timeout: timeout},
	}
}

// NewTwitterConnector and NewRedditConnector cover the platforms the
// audit supports out of the box without API credentials.
func NewTwitterConnector(userAgent string, timeout time.Duration, anonymize bool) *WebConnector {
	return NewWebConnector(models.PlatformTwitter, "https://twitter.com/%s", userAgent, timeout, anonymize)
}

func NewRedditConnector(userAgent string, timeout time.Duration, anonymize bool) *WebConnector {
	return NewWebConnector(models.PlatformReddit, "https://www.reddit.com/user/%s", userAgent, timeout, anonymize)
}

func (c *WebConnector) Platform() models.Platform {
	return c.platform
}

func (c *WebConnector) Configured() bool {
	return c.urlTemplate != ""
}

func (c *WebConnector) FetchProfile(ctx context.Context, username string) (*models.ProfileSnapshot, error) {
	if !c.Configured() {
		return nil, fmt.Errorf("%s connector not configured", c.platform)
	}

	profileURL := fmt.Sprintf(c.urlTemplate, username)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, profileURL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("User-Agent", c.userAgent)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch %s profile: %w", c.platform, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return nil, fmt.Errorf("%s profile %q not found", c.platform, username)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%s profile fetch returned status %d", c.platform, resp.StatusCode)
	}

	doc, err := goquery.NewDocumentFromReader(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to parse HTML: %w", err)
	}

	metadata := models.Metadata{"url": profileURL}
	if title, ok := metaContent(doc, "og:title"); ok {
		metadata["title"] = title
	}
	if desc, ok := metaContent(doc, "og:description"); ok {
		metadata["description"] = desc
	}

	snapshot := &models.ProfileSnapshot{
		Platform:    c.platform,
		Username:    username,
		ProfileText: extractProfileText(doc),
		Metadata:    metadata,
		CollectedAt: time.Now().UTC(),
	}
	if c.anonymize {
		snapshot.Username = utils.AnonymizeUsername(username)
	}

	logger.Info("Web profile collected",
		zap.String("platform", string(c.platform)),
		zap.String("username", snapshot.Username),
	)

	return snapshot, nil
}

func metaContent(doc *goquery.Document, property string) (string, bool) {
	content, exists := doc.Find(fmt.Sprintf(`meta[property=%q]`, property)).Attr("content")
	content = strings.TrimSpace(content)
	return content, exists && content != ""
}

func extractProfileText(doc *goquery.Document) string {
	doc.Find("script, style, nav, footer, header").Remove()
	text := strings.TrimSpace(doc.Find("body").Text())
	text = strings.Join(strings.Fields(text), " ")

	if len(text) > maxProfileTextLen {
		cut := maxProfileTextLen
		// Back up to a rune boundary so the cap never splits UTF-8.
		for cut > 0 && !utf8.RuneStart(text[cut]) {
			cut--
		}
		text = text[:cut]
	}
	return text
}
