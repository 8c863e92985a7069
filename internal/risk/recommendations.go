package risk

import (
	"sort"

	"go.uber.org/zap"

	"github.com/ai-audit/backend/internal/models"
	"github.com/ai-audit/backend/pkg/logger"
)

// Generator maps detected risk patterns to prioritized, actionable
// guidance. Each trigger rule re-derives its own condition from the raw
// inputs; the generator is deliberately not chained to the aggregator.
type Generator struct{}

func NewGenerator() *Generator {
	return &Generator{}
}

// GenerateRecommendations evaluates every trigger rule independently and
// returns the matches sorted by priority. The sort is stable: ties keep
// rule-evaluation order.
func (g *Generator) GenerateRecommendations(inferences []models.Inference, snapshots []models.ProfileSnapshot) []models.Recommendation {
	recommendations := []models.Recommendation{}

	if rec, ok := g.locationRule(inferences, snapshots); ok {
		recommendations = append(recommendations, rec)
	}
	if rec, ok := g.scheduleRule(inferences, snapshots); ok {
		recommendations = append(recommendations, rec)
	}
	if rec, ok := g.skillsRule(inferences); ok {
		recommendations = append(recommendations, rec)
	}
	if rec, ok := g.crossPlatformRule(snapshots); ok {
		recommendations = append(recommendations, rec)
	}
	if rec, ok := g.metadataRule(snapshots); ok {
		recommendations = append(recommendations, rec)
	}

	sort.SliceStable(recommendations, func(i, j int) bool {
		return recommendations[i].Priority.Rank() < recommendations[j].Priority.Rank()
	})

	logger.Debug("Recommendations generated", zap.Int("count", len(recommendations)))

	return recommendations
}

func (g *Generator) locationRule(inferences []models.Inference, snapshots []models.ProfileSnapshot) (models.Recommendation, bool) {
	if !hasInference(inferences, models.InferenceLocation, 0.6) {
		return models.Recommendation{}, false
	}

	affected := []models.Platform{}
	for _, snap := range snapshots {
		if snap.Metadata.Has("location") {
			affected = append(affected, snap.Platform)
		}
	}

	return models.Recommendation{
		Priority:    models.PriorityHigh,
		Title:       "Remove Location Information",
		Description: "Your location can be inferred with high confidence from your public profiles.",
		ActionItems: dedupeStrings([]string{
			"Remove location from profile bios",
			"Review commit timestamps for location leaks",
			"Consider using VPN for consistent timezone",
			"Avoid location-specific references in posts",
		}),
		PlatformsAffected: affected,
		PotentialImpact:   "Reduces location-based tracking and targeting",
	}, true
}

func (g *Generator) scheduleRule(inferences []models.Inference, snapshots []models.ProfileSnapshot) (models.Recommendation, bool) {
	if !hasInference(inferences, models.InferenceWorkSchedule, 0.5) {
		return models.Recommendation{}, false
	}

	codeHosting := []models.Platform{}
	for _, snap := range snapshots {
		if snap.Platform == models.PlatformGitHub {
			codeHosting = append(codeHosting, snap.Platform)
		}
	}
	if len(codeHosting) == 0 {
		return models.Recommendation{}, false
	}

	return models.Recommendation{
		Priority:    models.PriorityMedium,
		Title:       "Randomize Activity Patterns",
		Description: "Your work schedule and timezone can be inferred from activity patterns.",
		ActionItems: dedupeStrings([]string{
			"Use scheduled commits/posts instead of real-time",
			"Batch your coding sessions",
			"Consider using commit timestamp randomization tools",
			"Vary your online activity times",
		}),
		PlatformsAffected: codeHosting,
		PotentialImpact:   "Makes schedule and timezone inference more difficult",
	}, true
}

func (g *Generator) skillsRule(inferences []models.Inference) (models.Recommendation, bool) {
	if !hasInference(inferences, models.InferenceProgrammingSkills, 0.8) {
		return models.Recommendation{}, false
	}

	return models.Recommendation{
		Priority:    models.PriorityLow,
		Title:       "Review Professional Information Exposure",
		Description: "Your technical skills are highly visible and detailed.",
		ActionItems: dedupeStrings([]string{
			"Consider which skills you want to highlight publicly",
			"Remove or archive old experimental repositories",
			"Use private repositories for sensitive projects",
			"Be mindful of code comments that reveal too much context",
		}),
		PlatformsAffected: []models.Platform{models.PlatformGitHub},
		PotentialImpact:   "Balances professional visibility with privacy",
	}, true
}

func (g *Generator) crossPlatformRule(snapshots []models.ProfileSnapshot) (models.Recommendation, bool) {
	seen := make(map[models.Platform]struct{})
	distinct := []models.Platform{}
	for _, snap := range snapshots {
		if _, ok := seen[snap.Platform]; !ok {
			seen[snap.Platform] = struct{}{}
			distinct = append(distinct, snap.Platform)
		}
	}
	if len(distinct) <= 1 {
		return models.Recommendation{}, false
	}

	return models.Recommendation{
		Priority:    models.PriorityMedium,
		Title:       "Minimize Cross-Platform Correlation",
		Description: "Having profiles on multiple platforms increases the ability to correlate and build a comprehensive profile.",
		ActionItems: dedupeStrings([]string{
			"Use different usernames across platforms",
			"Avoid linking profiles to each other",
			"Vary the personal information shared on each platform",
			"Consider using separate email addresses",
			"Review bio consistency across platforms",
		}),
		PlatformsAffected: distinct,
		PotentialImpact:   "Reduces ability to correlate data across platforms",
	}, true
}

func (g *Generator) metadataRule(snapshots []models.ProfileSnapshot) (models.Recommendation, bool) {
	exposed := false
	for _, snap := range snapshots {
		if snap.Metadata.Has("email") || snap.Metadata.Has("blog") || snap.Metadata.Has("website") {
			exposed = true
			break
		}
	}
	if !exposed {
		return models.Recommendation{}, false
	}

	// All snapshot platforms are affected, not just the exposing ones.
	affected := make([]models.Platform, 0, len(snapshots))
	for _, snap := range snapshots {
		affected = append(affected, snap.Platform)
	}

	return models.Recommendation{
		Priority:    models.PriorityHigh,
		Title:       "Clean Up Profile Metadata",
		Description: "Personal contact information is publicly visible.",
		ActionItems: dedupeStrings([]string{
			"Remove email addresses from public profiles",
			"Consider unlinking personal websites",
			"Review all profile fields for sensitive information",
			"Use professional contact methods only",
		}),
		PlatformsAffected: affected,
		PotentialImpact:   "Reduces direct contact and correlation opportunities",
	}, true
}

func hasInference(inferences []models.Inference, typ models.InferenceType, minConfidence float64) bool {
	for _, inf := range inferences {
		if inf.Type == typ && inf.Confidence > minConfidence {
			return true
		}
	}
	return false
}

func dedupeStrings(items []string) []string {
	seen := make(map[string]struct{}, len(items))
	out := items[:0]
	for _, item := range items {
		if _, ok := seen[item]; ok {
			continue
		}
		seen[item] = struct{}{}
		out = append(out, item)
	}
	return out
}
