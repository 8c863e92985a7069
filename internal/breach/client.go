package breach

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"regexp"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/ai-audit/backend/internal/models"
	"github.com/ai-audit/backend/pkg/logger"
	"github.com/ai-audit/backend/pkg/retry"
)

const defaultBaseURL = "https://haveibeenpwned.com/api/v3"

var emailPattern = regexp.MustCompile(`\b[A-Za-z0-9._%+-]+@[A-Za-z0-9.-]+\.[A-Za-z]{2,}\b`)

// Severity classification by compromised data class, most damaging
// class wins.
var (
	criticalDataClasses = stringSet("Passwords", "Credit cards", "Social security numbers", "Bank account numbers")
	highDataClasses     = stringSet("Email addresses", "Phone numbers", "Physical addresses", "Dates of birth")
	mediumDataClasses   = stringSet("Names", "Usernames", "IP addresses", "Job titles")
)

// Client checks subject emails against the Have I Been Pwned v3 API.
type Client struct {
	baseURL     string
	apiKey      string
	userAgent   string
	httpClient  *http.Client
	retryConfig retry.Config
}

func NewClient(apiKey, baseURL string, timeout time.Duration) *Client {
	if baseURL == "" {
		baseURL = defaultBaseURL
	}
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Client{
		baseURL:   strings.TrimRight(baseURL, "/"),
		apiKey:    apiKey,
		userAgent: "ai-audit/1.0",
		httpClient: &http.Client{
			Timeout: timeout,
		},
		retryConfig: retry.Config{
			MaxAttempts:    3,
			InitialDelay:   2 * time.Second,
			MaxDelay:       10 * time.Second,
			Multiplier:     2.0,
			JitterFraction: 0.1,
			Logger:         logger.GetLogger(),
		},
	}
}

func (c *Client) Configured() bool {
	return c.apiKey != ""
}

type breachRecord struct {
	Name        string   `json:"Name"`
	BreachDate  string   `json:"BreachDate"`
	DataClasses []string `json:"DataClasses"`
}

// CheckEmail returns the known breaches containing the given email.
// A 404 from the API means the email is clean.
func (c *Client) CheckEmail(ctx context.Context, email string) ([]models.BreachAlert, error) {
	if !c.Configured() {
		return nil, fmt.Errorf("breach API key not configured")
	}

	endpoint := fmt.Sprintf("%s/breachedaccount/%s?truncateResponse=false",
		c.baseURL, url.PathEscape(email))

	var records []breachRecord
	err := retry.Do(ctx, c.retryConfig, func() error {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
		if err != nil {
			return retry.Permanent(err)
		}
		req.Header.Set("hibp-api-key", c.apiKey)
		req.Header.Set("User-Agent", c.userAgent)

		resp, err := c.httpClient.Do(req)
		if err != nil {
			return fmt.Errorf("breach lookup failed: %w", err)
		}
		defer resp.Body.Close()

		switch resp.StatusCode {
		case http.StatusOK:
			body, err := io.ReadAll(resp.Body)
			if err != nil {
				return fmt.Errorf("failed to read breach response: %w", err)
			}
			records = nil
			if err := json.Unmarshal(body, &records); err != nil {
				return retry.Permanent(fmt.Errorf("failed to parse breach response: %w", err))
			}
			return nil
		case http.StatusNotFound:
			records = nil
			return nil
		case http.StatusTooManyRequests:
			return fmt.Errorf("breach API rate limited")
		case http.StatusUnauthorized:
			return retry.Permanent(fmt.Errorf("breach API key rejected"))
		default:
			return fmt.Errorf("breach API returned status %d", resp.StatusCode)
		}
	})
	if err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	alerts := make([]models.BreachAlert, 0, len(records))
	for _, rec := range records {
		breachDate, err := time.Parse("2006-01-02", rec.BreachDate)
		if err != nil {
			breachDate = time.Time{}
		}
		alerts = append(alerts, models.BreachAlert{
			Email:           email,
			BreachName:      rec.Name,
			BreachDate:      breachDate,
			CompromisedData: rec.DataClasses,
			Severity:        classifySeverity(rec.DataClasses),
			DetectedAt:      now,
		})
	}

	return alerts, nil
}

// ScanSnapshots checks every email found in the snapshots. Lookup
// failures are logged per email and do not abort the scan.
func (c *Client) ScanSnapshots(ctx context.Context, snapshots []models.ProfileSnapshot) []models.BreachAlert {
	emails := collectEmails(snapshots)

	var alerts []models.BreachAlert
	for _, email := range emails {
		found, err := c.CheckEmail(ctx, email)
		if err != nil {
			logger.Warn("Breach check failed",
				zap.String("email", email),
				zap.Error(err),
			)
			continue
		}
		alerts = append(alerts, found...)
	}
	return alerts
}

func classifySeverity(dataClasses []string) models.BreachSeverity {
	severity := models.BreachSeverityLow
	for _, class := range dataClasses {
		switch {
		case criticalDataClasses[class]:
			return models.BreachSeverityCritical
		case highDataClasses[class]:
			severity = models.BreachSeverityHigh
		case mediumDataClasses[class] && severity != models.BreachSeverityHigh:
			severity = models.BreachSeverityMedium
		}
	}
	return severity
}

func collectEmails(snapshots []models.ProfileSnapshot) []string {
	seen := make(map[string]struct{})
	var out []string

	add := func(email string) {
		email = strings.ToLower(strings.TrimSpace(email))
		if email == "" {
			return
		}
		if _, dup := seen[email]; dup {
			return
		}
		seen[email] = struct{}{}
		out = append(out, email)
	}

	for _, snap := range snapshots {
		if email := snap.Metadata.String("email"); email != "" {
			add(email)
		}
		for _, match := range emailPattern.FindAllString(snap.ProfileText, -1) {
			add(match)
		}
	}
	return out
}

func stringSet(values ...string) map[string]bool {
	set := make(map[string]bool, len(values))
	for _, v := range values {
		set[v] = true
	}
	return set
}
