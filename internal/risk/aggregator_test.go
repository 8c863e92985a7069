package risk

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ai-audit/backend/internal/models"
	"github.com/ai-audit/backend/pkg/logger"
)

func init() {
	if err := logger.Init("error", "console", "stdout"); err != nil {
		panic(err)
	}
}

func snapshot(platform models.Platform, metadata models.Metadata) models.ProfileSnapshot {
	return models.ProfileSnapshot{
		Platform:    platform,
		Username:    "subject",
		ProfileText: "profile text",
		Metadata:    metadata,
	}
}

func inference(typ models.InferenceType, confidence float64, platform models.Platform) models.Inference {
	return models.NewInference(typ, "value", confidence, "", []models.Platform{platform}, "test")
}

func TestCalculatePrivacyRisk_EmptyInferences(t *testing.T) {
	agg := NewAggregator()

	risk := agg.CalculatePrivacyRisk(nil, []models.ProfileSnapshot{
		snapshot(models.PlatformGitHub, models.Metadata{"location": "Berlin"}),
	})

	assert.Equal(t, 0.0, risk.OverallScore)
	assert.Empty(t, risk.RiskFactors)
	assert.Empty(t, risk.HighConfidenceInferences)
	assert.Empty(t, risk.DataExposurePoints)
}

func TestCalculatePrivacyRisk_SingleLocationInference(t *testing.T) {
	agg := NewAggregator()

	inferences := []models.Inference{
		inference(models.InferenceLocation, 0.9, models.PlatformGitHub),
	}
	snapshots := []models.ProfileSnapshot{
		snapshot(models.PlatformGitHub, models.Metadata{}),
	}

	risk := agg.CalculatePrivacyRisk(inferences, snapshots)

	// base 0.8, location multiplier 1.2, single platform multiplier 1.0.
	assert.InDelta(t, 0.96, risk.OverallScore, 1e-9)
	assert.Contains(t, risk.RiskFactors, "Location information easily inferrable")
	require.Len(t, risk.HighConfidenceInferences, 1)
}

func TestCalculatePrivacyRisk_ThreeInferencesTwoPlatforms(t *testing.T) {
	agg := NewAggregator()

	inferences := []models.Inference{
		inference(models.InferenceLocation, 0.9, models.PlatformGitHub),
		inference(models.InferenceWorkSchedule, 0.8, models.PlatformGitHub),
		inference(models.InferenceProgrammingSkills, 0.95, models.PlatformGitHub),
	}
	snapshots := []models.ProfileSnapshot{
		snapshot(models.PlatformGitHub, models.Metadata{}),
		snapshot(models.PlatformTwitter, models.Metadata{}),
	}

	risk := agg.CalculatePrivacyRisk(inferences, snapshots)

	// base min(3*0.8, 8.0)=2.4, x1.2 location = 2.88, x1.1 platforms = 3.168.
	assert.InDelta(t, 3.168, risk.OverallScore, 1e-9)
	assert.Contains(t, risk.RiskFactors, "Data exposed across 2 platforms")
	assert.Contains(t, risk.RiskFactors, "Professional information highly visible")
	assert.Contains(t, risk.RiskFactors, "Personal schedule patterns detectable")
}

func TestCalculatePrivacyRisk_ScoreBounded(t *testing.T) {
	agg := NewAggregator()

	// Saturate with many sensitive high-confidence inferences.
	inferences := []models.Inference{}
	for i := 0; i < 20; i++ {
		inferences = append(inferences, inference(models.InferenceHealthSignals, 0.95, models.PlatformTwitter))
	}
	snapshots := []models.ProfileSnapshot{
		snapshot(models.PlatformGitHub, models.Metadata{}),
		snapshot(models.PlatformTwitter, models.Metadata{}),
		snapshot(models.PlatformReddit, models.Metadata{}),
	}

	risk := agg.CalculatePrivacyRisk(inferences, snapshots)
	assert.Equal(t, 10.0, risk.OverallScore)
}

func TestCalculatePrivacyRisk_MonotoneInSensitiveInferences(t *testing.T) {
	agg := NewAggregator()

	base := []models.Inference{
		inference(models.InferenceLocation, 0.9, models.PlatformGitHub),
		inference(models.InferenceWorkSchedule, 0.8, models.PlatformGitHub),
	}
	snapshots := []models.ProfileSnapshot{snapshot(models.PlatformGitHub, models.Metadata{})}

	before := agg.CalculatePrivacyRisk(base, snapshots).OverallScore
	after := agg.CalculatePrivacyRisk(
		append(append([]models.Inference{}, base...), inference(models.InferenceHealthSignals, 0.9, models.PlatformGitHub)),
		snapshots,
	).OverallScore

	assert.GreaterOrEqual(t, after, before)
}

func TestCalculatePrivacyRisk_Idempotent(t *testing.T) {
	agg := NewAggregator()

	inferences := []models.Inference{
		inference(models.InferenceLocation, 0.9, models.PlatformGitHub),
		inference(models.InferenceAgeRange, 0.75, models.PlatformTwitter),
	}
	snapshots := []models.ProfileSnapshot{
		snapshot(models.PlatformGitHub, models.Metadata{"location": "Berlin", "company": "Acme"}),
		snapshot(models.PlatformTwitter, models.Metadata{"followers_count": 5000}),
	}

	first := agg.CalculatePrivacyRisk(inferences, snapshots)
	second := agg.CalculatePrivacyRisk(inferences, snapshots)

	assert.Equal(t, first.OverallScore, second.OverallScore)
	assert.Equal(t, first.RiskFactors, second.RiskFactors)
	assert.Equal(t, first.DataExposurePoints, second.DataExposurePoints)
}

func TestIdentifyRiskFactors_MetadataExposure(t *testing.T) {
	agg := NewAggregator()

	inferences := []models.Inference{inference(models.InferenceSentiment, 0.8, models.PlatformGitHub)}
	snapshots := []models.ProfileSnapshot{
		snapshot(models.PlatformGitHub, models.Metadata{"location": "Berlin", "email": "a@b.c", "company": "Acme"}),
		snapshot(models.PlatformTwitter, models.Metadata{"location": "Berlin"}),
	}

	risk := agg.CalculatePrivacyRisk(inferences, snapshots)

	assert.Contains(t, risk.RiskFactors, "Location explicitly listed in profile")
	assert.Contains(t, risk.RiskFactors, "Email address publicly visible")
	assert.Contains(t, risk.RiskFactors, "Company information publicly visible")

	// Factors are deduplicated even when several snapshots expose the
	// same field.
	count := 0
	for _, factor := range risk.RiskFactors {
		if factor == "Location explicitly listed in profile" {
			count++
		}
	}
	assert.Equal(t, 1, count)
}

func TestIdentifyExposurePoints_PlatformSpecific(t *testing.T) {
	agg := NewAggregator()

	github := snapshot(models.PlatformGitHub, models.Metadata{
		"location": "Berlin",
		"blog":     "https://example.dev",
		"repositories": []interface{}{
			map[string]interface{}{"name": "a", "language": "Go", "commit_patterns": true},
			map[string]interface{}{"name": "b", "language": "Python"},
			map[string]interface{}{"name": "c", "language": "Rust"},
			map[string]interface{}{"name": "d", "language": "C"},
		},
	})
	twitter := snapshot(models.PlatformTwitter, models.Metadata{
		"recent_tweets_count": 25,
		"followers_count":     2000,
	})

	inferences := []models.Inference{inference(models.InferenceSentiment, 0.8, models.PlatformGitHub)}
	risk := agg.CalculatePrivacyRisk(inferences, []models.ProfileSnapshot{github, twitter})

	assert.Contains(t, risk.DataExposurePoints, "Github: Location in bio")
	assert.Contains(t, risk.DataExposurePoints, "Github: Personal website linked")
	assert.Contains(t, risk.DataExposurePoints, "GitHub: Commit time patterns visible")
	assert.Contains(t, risk.DataExposurePoints, "GitHub: Multiple programming languages revealed")
	assert.Contains(t, risk.DataExposurePoints, "Twitter: Recent tweet content analyzed")
	assert.Contains(t, risk.DataExposurePoints, "Twitter: High follower count increases visibility")
}

func TestIdentifyExposurePoints_MalformedMetadataIgnored(t *testing.T) {
	agg := NewAggregator()

	broken := snapshot(models.PlatformGitHub, models.Metadata{
		"location":     12345,
		"repositories": "not-a-list",
	})
	inferences := []models.Inference{inference(models.InferenceSentiment, 0.8, models.PlatformGitHub)}

	risk := agg.CalculatePrivacyRisk(inferences, []models.ProfileSnapshot{broken})
	assert.Empty(t, risk.DataExposurePoints)
}
