package risk

import (
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/ai-audit/backend/internal/models"
	"github.com/ai-audit/backend/pkg/logger"
)

// Scoring constants. Tunable, but downstream consumers depend on the
// current values for score compatibility.
const (
	highConfidenceThreshold = 0.7
	perInferenceWeight      = 0.8
	baseRiskCap             = 8.0
	maxScore                = 10.0
	platformExposureStep    = 0.1
)

// Aggregator turns inference records and profile snapshots into one
// bounded composite score plus explanatory risk factors and exposure
// points. It is pure and side-effect free over its inputs.
type Aggregator struct{}

func NewAggregator() *Aggregator {
	return &Aggregator{}
}

// CalculatePrivacyRisk computes the composite privacy risk. An empty
// inference set is the sole terminal shortcut and yields a zero score.
func (a *Aggregator) CalculatePrivacyRisk(inferences []models.Inference, snapshots []models.ProfileSnapshot) models.PrivacyRisk {
	if len(inferences) == 0 {
		return models.PrivacyRisk{
			OverallScore:             0.0,
			RiskFactors:              []string{},
			HighConfidenceInferences: []models.Inference{},
			DataExposurePoints:       []string{},
			CalculatedAt:             time.Now(),
		}
	}

	highConfidence := make([]models.Inference, 0, len(inferences))
	for _, inf := range inferences {
		if inf.Confidence > highConfidenceThreshold {
			highConfidence = append(highConfidence, inf)
		}
	}

	baseRisk := float64(len(highConfidence)) * perInferenceWeight
	if baseRisk > baseRiskCap {
		baseRisk = baseRiskCap
	}

	// Sensitive-type multipliers compound once per qualifying record,
	// with no intermediate clamp before the final cap.
	for _, inf := range highConfidence {
		if multiplier, ok := models.SensitiveTypeMultipliers[inf.Type]; ok {
			baseRisk *= multiplier
		}
	}

	platformCount := distinctPlatforms(snapshots)
	platformMultiplier := 1.0
	if platformCount > 1 {
		platformMultiplier = 1.0 + float64(platformCount-1)*platformExposureStep
	}

	finalScore := baseRisk * platformMultiplier
	if finalScore > maxScore {
		finalScore = maxScore
	}

	risk := models.PrivacyRisk{
		OverallScore:             finalScore,
		RiskFactors:              a.identifyRiskFactors(inferences, snapshots),
		HighConfidenceInferences: highConfidence,
		DataExposurePoints:       a.identifyExposurePoints(snapshots),
		CalculatedAt:             time.Now(),
	}

	logger.Debug("Privacy risk calculated",
		zap.Float64("score", finalScore),
		zap.Int("high_confidence", len(highConfidence)),
		zap.Int("platforms", platformCount),
	)

	return risk
}

// identifyRiskFactors runs the independent rule checks over the
// inference and snapshot sets. The result is deduplicated, keeping
// first-seen order.
func (a *Aggregator) identifyRiskFactors(inferences []models.Inference, snapshots []models.ProfileSnapshot) []string {
	factors := newOrderedSet()

	for _, inf := range inferences {
		if inf.Type == models.InferenceLocation && inf.Confidence > 0.6 {
			factors.add("Location information easily inferrable")
		}
	}

	if n := distinctPlatforms(snapshots); n > 1 {
		factors.add(fmt.Sprintf("Data exposed across %d platforms", n))
	}

	for _, inf := range inferences {
		if (inf.Type == models.InferenceProgrammingSkills || inf.Type == models.InferenceWorkSchedule) && inf.Confidence > 0.7 {
			factors.add("Professional information highly visible")
		}
	}

	for _, inf := range inferences {
		if inf.Type == models.InferenceWorkSchedule && inf.Confidence > 0.6 {
			factors.add("Personal schedule patterns detectable")
		}
	}

	for _, snap := range snapshots {
		if snap.Metadata.Has("location") {
			factors.add("Location explicitly listed in profile")
		}
		if snap.Metadata.Has("email") {
			factors.add("Email address publicly visible")
		}
		if snap.Metadata.Has("company") {
			factors.add("Company information publicly visible")
		}
	}

	return factors.values()
}

// identifyExposurePoints enumerates per-snapshot data items that
// increase observability. Not deduplicated across platforms.
func (a *Aggregator) identifyExposurePoints(snapshots []models.ProfileSnapshot) []string {
	points := []string{}

	for _, snap := range snapshots {
		name := titleCase(string(snap.Platform))

		if snap.Metadata.Has("location") {
			points = append(points, fmt.Sprintf("%s: Location in bio", name))
		}
		if snap.Metadata.Has("company") {
			points = append(points, fmt.Sprintf("%s: Company in bio", name))
		}
		if snap.Metadata.Has("blog") || snap.Metadata.Has("website") {
			points = append(points, fmt.Sprintf("%s: Personal website linked", name))
		}

		switch snap.Platform {
		case models.PlatformGitHub:
			if snap.Metadata.HasCommitPatterns() {
				points = append(points, "GitHub: Commit time patterns visible")
			}
			if snap.Metadata.DistinctLanguages() > 3 {
				points = append(points, "GitHub: Multiple programming languages revealed")
			}
		case models.PlatformTwitter:
			if snap.Metadata.Int("recent_tweets_count") > 10 {
				points = append(points, "Twitter: Recent tweet content analyzed")
			}
			if snap.Metadata.Int("followers_count") > 1000 {
				points = append(points, "Twitter: High follower count increases visibility")
			}
		}
	}

	return points
}

func distinctPlatforms(snapshots []models.ProfileSnapshot) int {
	seen := make(map[models.Platform]struct{}, len(snapshots))
	for _, snap := range snapshots {
		seen[snap.Platform] = struct{}{}
	}
	return len(seen)
}

func titleCase(s string) string {
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + s[1:]
}

type orderedSet struct {
	seen  map[string]struct{}
	order []string
}

func newOrderedSet() *orderedSet {
	return &orderedSet{seen: make(map[string]struct{})}
}

func (s *orderedSet) add(value string) {
	if _, ok := s.seen[value]; ok {
		return
	}
	s.seen[value] = struct{}{}
	s.order = append(s.order, value)
}

func (s *orderedSet) values() []string {
	if s.order == nil {
		return []string{}
	}
	return s.order
}
