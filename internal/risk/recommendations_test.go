package risk

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ai-audit/backend/internal/models"
)

func TestGenerateRecommendations_Empty(t *testing.T) {
	gen := NewGenerator()
	recs := gen.GenerateRecommendations(nil, nil)
	assert.Empty(t, recs)
}

func TestGenerateRecommendations_LocationRule(t *testing.T) {
	gen := NewGenerator()

	inferences := []models.Inference{
		inference(models.InferenceLocation, 0.9, models.PlatformGitHub),
	}
	snapshots := []models.ProfileSnapshot{
		snapshot(models.PlatformGitHub, models.Metadata{"location": "Berlin"}),
		snapshot(models.PlatformTwitter, models.Metadata{}),
	}

	recs := gen.GenerateRecommendations(inferences, snapshots)

	var found *models.Recommendation
	for i := range recs {
		if recs[i].Title == "Remove Location Information" {
			found = &recs[i]
		}
	}
	require.NotNil(t, found)
	assert.Equal(t, models.PriorityHigh, found.Priority)
	// Only platforms whose metadata exposes a location are affected.
	assert.Equal(t, []models.Platform{models.PlatformGitHub}, found.PlatformsAffected)
}

func TestGenerateRecommendations_ScheduleRuleNeedsCodeHosting(t *testing.T) {
	gen := NewGenerator()

	inferences := []models.Inference{
		inference(models.InferenceWorkSchedule, 0.6, models.PlatformTwitter),
	}

	// No code-hosting snapshot: rule does not fire.
	recs := gen.GenerateRecommendations(inferences, []models.ProfileSnapshot{
		snapshot(models.PlatformTwitter, models.Metadata{}),
	})
	for _, rec := range recs {
		assert.NotEqual(t, "Randomize Activity Patterns", rec.Title)
	}

	// With one, it fires with code-hosting platforms only.
	recs = gen.GenerateRecommendations(inferences, []models.ProfileSnapshot{
		snapshot(models.PlatformTwitter, models.Metadata{}),
		snapshot(models.PlatformGitHub, models.Metadata{}),
	})
	var found *models.Recommendation
	for i := range recs {
		if recs[i].Title == "Randomize Activity Patterns" {
			found = &recs[i]
		}
	}
	require.NotNil(t, found)
	assert.Equal(t, models.PriorityMedium, found.Priority)
	assert.Equal(t, []models.Platform{models.PlatformGitHub}, found.PlatformsAffected)
}

func TestGenerateRecommendations_MetadataRuleAffectsAllPlatforms(t *testing.T) {
	gen := NewGenerator()

	snapshots := []models.ProfileSnapshot{
		snapshot(models.PlatformGitHub, models.Metadata{"email": "a@b.c"}),
		snapshot(models.PlatformTwitter, models.Metadata{}),
	}

	recs := gen.GenerateRecommendations(nil, snapshots)

	var found *models.Recommendation
	for i := range recs {
		if recs[i].Title == "Clean Up Profile Metadata" {
			found = &recs[i]
		}
	}
	require.NotNil(t, found)
	assert.Equal(t, models.PriorityHigh, found.Priority)
	assert.Equal(t, []models.Platform{models.PlatformGitHub, models.PlatformTwitter}, found.PlatformsAffected)
}

func TestGenerateRecommendations_OrderingByPriority(t *testing.T) {
	gen := NewGenerator()

	inferences := []models.Inference{
		inference(models.InferenceLocation, 0.9, models.PlatformGitHub),
		inference(models.InferenceWorkSchedule, 0.8, models.PlatformGitHub),
		inference(models.InferenceProgrammingSkills, 0.95, models.PlatformGitHub),
	}
	snapshots := []models.ProfileSnapshot{
		snapshot(models.PlatformGitHub, models.Metadata{"location": "Berlin"}),
		snapshot(models.PlatformTwitter, models.Metadata{}),
	}

	recs := gen.GenerateRecommendations(inferences, snapshots)
	require.NotEmpty(t, recs)

	lastRank := -1
	for _, rec := range recs {
		rank := rec.Priority.Rank()
		assert.GreaterOrEqual(t, rank, lastRank, "priorities must be non-decreasing")
		lastRank = rank
	}

	// Ties within a priority keep rule-evaluation order: the schedule
	// rule is evaluated before the cross-platform rule.
	mediumTitles := []string{}
	for _, rec := range recs {
		if rec.Priority == models.PriorityMedium {
			mediumTitles = append(mediumTitles, rec.Title)
		}
	}
	assert.Equal(t, []string{"Randomize Activity Patterns", "Minimize Cross-Platform Correlation"}, mediumTitles)
}

func TestGenerateRecommendations_ActionItemsDeduplicated(t *testing.T) {
	gen := NewGenerator()

	recs := gen.GenerateRecommendations(
		[]models.Inference{inference(models.InferenceLocation, 0.9, models.PlatformGitHub)},
		[]models.ProfileSnapshot{snapshot(models.PlatformGitHub, models.Metadata{"location": "x"})},
	)
	require.NotEmpty(t, recs)

	for _, rec := range recs {
		seen := make(map[string]struct{})
		for _, item := range rec.ActionItems {
			_, dup := seen[item]
			assert.False(t, dup, "duplicate action item %q in %q", item, rec.Title)
			seen[item] = struct{}{}
		}
	}
}

func TestGenerateRecommendations_Idempotent(t *testing.T) {
	gen := NewGenerator()

	inferences := []models.Inference{
		inference(models.InferenceLocation, 0.9, models.PlatformGitHub),
	}
	snapshots := []models.ProfileSnapshot{
		snapshot(models.PlatformGitHub, models.Metadata{"location": "Berlin", "email": "a@b.c"}),
	}

	first := gen.GenerateRecommendations(inferences, snapshots)
	second := gen.GenerateRecommendations(inferences, snapshots)
	assert.Equal(t, first, second)
}
