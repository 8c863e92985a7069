package remediation

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/ai-audit/backend/internal/models"
	"github.com/ai-audit/backend/pkg/logger"
)

// Scheduling offsets by urgency. Direct contact data goes soonest,
// repository archival latest.
const (
	emailRemovalDelay    = 30 * time.Minute
	locationRemovalDelay = 1 * time.Hour
	scheduleObfuscation  = 2 * time.Hour
	websiteReviewDelay   = 4 * time.Hour
	repoArchivalDelay    = 24 * time.Hour
)

// Planner converts high-confidence inferences and direct metadata
// exposures into schedulable, platform-specific actions. Granularity is
// per matching (inference, snapshot) or (metadata-field, snapshot) pair.
type Planner struct {
	now func() time.Time
}

func NewPlanner() *Planner {
	return &Planner{now: time.Now}
}

// Only high-confidence inferences are actionable; skills actions need
// an even stronger signal before archiving anything.
const (
	minActionableConfidence = 0.8
	minSkillsConfidence     = 0.9
)

// PlanActions derives the remediation action set for one audit.
func (p *Planner) PlanActions(snapshots []models.ProfileSnapshot, inferences []models.Inference) []models.RemediationAction {
	actions := []models.RemediationAction{}

	for _, inf := range inferences {
		if inf.Confidence < minActionableConfidence {
			continue
		}
		switch inf.Type {
		case models.InferenceLocation:
			actions = append(actions, p.locationActions(inf, snapshots)...)
		case models.InferenceWorkSchedule:
			actions = append(actions, p.scheduleActions(inf, snapshots)...)
		case models.InferenceProgrammingSkills:
			if inf.Confidence >= minSkillsConfidence {
				actions = append(actions, p.skillsActions(inf, snapshots)...)
			}
		}
	}

	for _, snap := range snapshots {
		actions = append(actions, p.metadataActions(snap)...)
	}

	logger.Info("Remediation actions planned", zap.Int("count", len(actions)))

	return actions
}

func (p *Planner) locationActions(inf models.Inference, snapshots []models.ProfileSnapshot) []models.RemediationAction {
	actions := []models.RemediationAction{}
	for _, snap := range snapshots {
		if !sourcedFrom(inf, snap.Platform) || !snap.Metadata.Has("location") {
			continue
		}
		actions = append(actions, p.newAction(
			models.ActionUpdatePrivacy,
			snap.Platform,
			fmt.Sprintf("Remove location information from %s profile", snap.Platform),
			locationRemovalDelay,
		))
	}
	return actions
}

func (p *Planner) scheduleActions(inf models.Inference, snapshots []models.ProfileSnapshot) []models.RemediationAction {
	actions := []models.RemediationAction{}
	for _, snap := range snapshots {
		if snap.Platform != models.PlatformGitHub || !sourcedFrom(inf, snap.Platform) {
			continue
		}
		actions = append(actions, p.newAction(
			models.ActionUpdatePrivacy,
			snap.Platform,
			"Enable commit timestamp randomization to obscure work schedule patterns",
			scheduleObfuscation,
		))
	}
	return actions
}

func (p *Planner) skillsActions(inf models.Inference, snapshots []models.ProfileSnapshot) []models.RemediationAction {
	actions := []models.RemediationAction{}
	for _, snap := range snapshots {
		if snap.Platform != models.PlatformGitHub || !sourcedFrom(inf, snap.Platform) {
			continue
		}

		experimental := 0
		for _, repo := range snap.Metadata.Repositories() {
			if strings.Contains(strings.ToLower(repo.Description), "experiment") {
				experimental++
			}
		}
		if experimental == 0 {
			continue
		}

		actions = append(actions, p.newAction(
			models.ActionUpdatePrivacy,
			snap.Platform,
			fmt.Sprintf("Archive %d experimental repositories to reduce skills noise", experimental),
			repoArchivalDelay,
		))
	}
	return actions
}

func (p *Planner) metadataActions(snap models.ProfileSnapshot) []models.RemediationAction {
	actions := []models.RemediationAction{}

	if snap.Metadata.Has("email") {
		actions = append(actions, p.newAction(
			models.ActionRemoveData,
			snap.Platform,
			fmt.Sprintf("Remove public email address from %s profile", snap.Platform),
			emailRemovalDelay,
		))
	}
	if snap.Metadata.Has("blog") || snap.Metadata.Has("website") {
		actions = append(actions, p.newAction(
			models.ActionUpdatePrivacy,
			snap.Platform,
			fmt.Sprintf("Review and potentially remove personal website links from %s", snap.Platform),
			websiteReviewDelay,
		))
	}
	return actions
}

func (p *Planner) newAction(actionType models.ActionType, platform models.Platform, description string, delay time.Duration) models.RemediationAction {
	scheduled := p.now().Add(delay)
	return models.RemediationAction{
		ActionID:     uuid.New().String(),
		ActionType:   actionType,
		Platform:     platform,
		Description:  description,
		Status:       models.ActionPending,
		ScheduledFor: &scheduled,
	}
}

func sourcedFrom(inf models.Inference, platform models.Platform) bool {
	for _, p := range inf.SourcePlatforms {
		if p == platform {
			return true
		}
	}
	return false
}
