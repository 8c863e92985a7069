package inference

import (
	"context"
	"fmt"
	"sort"
	"strings"

	prose "github.com/jdkato/prose/v2"

	"github.com/ai-audit/backend/internal/models"
)

// HeuristicProducer makes a small set of inferences without any model
// call: named-entity recognition over the profile text plus keyword
// tables. It backs offline runs and serves as the fallback when no API
// key is configured.
type HeuristicProducer struct{}

var interestKeywords = map[string][]string{
	"fitness":     {"workout", "exercise", "gym", "running", "cycling", "fitness"},
	"music":       {"guitar", "piano", "concert", "playlist", "band"},
	"photography": {"photography", "camera", "lens", "photo"},
	"gaming":      {"gaming", "esports", "speedrun", "twitch"},
	"travel":      {"travel", "backpacking", "nomad", "flight"},
}

var healthKeywords = []string{
	"workout", "exercise", "gym", "running", "cycling", "fitness",
	"sleep", "insomnia", "heart rate", "cardio", "stress", "anxiety",
	"meditation", "diet", "nutrition", "calories",
}

func NewHeuristicProducer() *HeuristicProducer {
	return &HeuristicProducer{}
}

func (p *HeuristicProducer) ID() string {
	return "heuristic"
}

func (p *HeuristicProducer) MakeInference(ctx context.Context, snapshot models.ProfileSnapshot, typ models.InferenceType) (*models.Inference, error) {
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	default:
	}

	switch typ {
	case models.InferenceLocation:
		return p.inferLocation(snapshot)
	case models.InferenceInterests:
		return p.inferInterests(snapshot)
	case models.InferenceHealthSignals:
		return p.inferHealthSignals(snapshot)
	case models.InferenceProgrammingSkills:
		return p.inferProgrammingSkills(snapshot)
	default:
		// Unsupported types are "no inference", not an error.
		return nil, nil
	}
}

func (p *HeuristicProducer) inferLocation(snapshot models.ProfileSnapshot) (*models.Inference, error) {
	// Explicit metadata beats anything extracted from free text.
	if location := snapshot.Metadata.String("location"); location != "" {
		inf := models.NewInference(models.InferenceLocation, location, 0.9,
			"Location explicitly listed in profile metadata",
			[]models.Platform{snapshot.Platform}, p.ID())
		return &inf, nil
	}

	doc, err := prose.NewDocument(snapshot.ProfileText)
	if err != nil {
		return nil, fmt.Errorf("failed to tokenize profile text: %w", err)
	}

	for _, ent := range doc.Entities() {
		if ent.Label == "GPE" {
			inf := models.NewInference(models.InferenceLocation, ent.Text, 0.6,
				"Place name mentioned in profile text",
				[]models.Platform{snapshot.Platform}, p.ID())
			return &inf, nil
		}
	}
	return nil, nil
}

func (p *HeuristicProducer) inferInterests(snapshot models.ProfileSnapshot) (*models.Inference, error) {
	text := strings.ToLower(snapshot.ProfileText)

	matched := []string{}
	for interest, keywords := range interestKeywords {
		for _, kw := range keywords {
			if strings.Contains(text, kw) {
				matched = append(matched, interest)
				break
			}
		}
	}
	if len(matched) == 0 {
		return nil, nil
	}
	sort.Strings(matched)

	confidence := 0.4 + 0.1*float64(len(matched))
	inf := models.NewInference(models.InferenceInterests, strings.Join(matched, ", "), confidence,
		"Interest keywords present in profile text",
		[]models.Platform{snapshot.Platform}, p.ID())
	return &inf, nil
}

func (p *HeuristicProducer) inferHealthSignals(snapshot models.ProfileSnapshot) (*models.Inference, error) {
	text := strings.ToLower(snapshot.ProfileText)

	matched := []string{}
	for _, kw := range healthKeywords {
		if strings.Contains(text, kw) {
			matched = append(matched, kw)
		}
	}
	if len(matched) < 2 {
		// A single mention is too weak to clear the acceptance threshold.
		return nil, nil
	}

	confidence := 0.3 + 0.1*float64(len(matched))
	if confidence > 0.8 {
		confidence = 0.8
	}
	inf := models.NewInference(models.InferenceHealthSignals, strings.Join(matched, ", "), confidence,
		"Multiple health-related terms in profile text",
		[]models.Platform{snapshot.Platform}, p.ID())
	return &inf, nil
}

func (p *HeuristicProducer) inferProgrammingSkills(snapshot models.ProfileSnapshot) (*models.Inference, error) {
	repos := snapshot.Metadata.Repositories()
	if len(repos) == 0 {
		return nil, nil
	}

	seen := map[string]struct{}{}
	languages := []string{}
	for _, repo := range repos {
		if repo.Language == "" {
			continue
		}
		if _, ok := seen[repo.Language]; ok {
			continue
		}
		seen[repo.Language] = struct{}{}
		languages = append(languages, repo.Language)
	}
	if len(languages) == 0 {
		return nil, nil
	}

	confidence := 0.5 + 0.1*float64(len(languages))
	if confidence > 0.95 {
		confidence = 0.95
	}
	inf := models.NewInference(models.InferenceProgrammingSkills, strings.Join(languages, ", "), confidence,
		"Languages observed across public repositories",
		[]models.Platform{snapshot.Platform}, p.ID())
	return &inf, nil
}
