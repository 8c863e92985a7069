package models

import "time"

// Platform identifies a supported public data source.
type Platform string

const (
	PlatformGitHub    Platform = "github"
	PlatformTwitter   Platform = "twitter"
	PlatformReddit    Platform = "reddit"
	PlatformLinkedIn  Platform = "linkedin"
	PlatformFacebook  Platform = "facebook"
	PlatformInstagram Platform = "instagram"
	PlatformTikTok    Platform = "tiktok"
)

// AllPlatforms lists every platform the pipeline understands.
var AllPlatforms = []Platform{
	PlatformGitHub,
	PlatformTwitter,
	PlatformReddit,
	PlatformLinkedIn,
	PlatformFacebook,
	PlatformInstagram,
	PlatformTikTok,
}

func (p Platform) Valid() bool {
	for _, known := range AllPlatforms {
		if p == known {
			return true
		}
	}
	return false
}

// InferenceType categorizes an attribute the pipeline can reason about.
type InferenceType string

const (
	InferenceProgrammingSkills  InferenceType = "programming_skills"
	InferenceLocation           InferenceType = "location"
	InferenceAgeRange           InferenceType = "age_range"
	InferenceInterests          InferenceType = "interests"
	InferenceSentiment          InferenceType = "sentiment"
	InferencePoliticalLeaning   InferenceType = "political_leaning"
	InferenceWorkSchedule       InferenceType = "work_schedule"
	InferenceEducationLevel     InferenceType = "education_level"
	InferenceHealthSignals      InferenceType = "health_signals"
	InferencePurchasingPower    InferenceType = "purchasing_power"
	InferenceRelationshipStatus InferenceType = "relationship_status"
	InferencePersonalityTraits  InferenceType = "personality_traits"
	InferenceCareerStage        InferenceType = "career_stage"
	InferenceCommunicationStyle InferenceType = "communication_style"
	InferenceRiskTolerance      InferenceType = "risk_tolerance"
	InferenceSocialInfluence    InferenceType = "social_influence"
	InferenceLifestyleChoices   InferenceType = "lifestyle_choices"
	InferenceFinancialStatus    InferenceType = "financial_status"
	InferenceTravelPatterns     InferenceType = "travel_patterns"
	InferenceFamilyStructure    InferenceType = "family_structure"
)

// AllInferenceTypes is the full set of types the orchestrator attempts.
var AllInferenceTypes = []InferenceType{
	InferenceProgrammingSkills,
	InferenceLocation,
	InferenceAgeRange,
	InferenceInterests,
	InferenceSentiment,
	InferencePoliticalLeaning,
	InferenceWorkSchedule,
	InferenceEducationLevel,
	InferenceHealthSignals,
	InferencePurchasingPower,
	InferenceRelationshipStatus,
	InferencePersonalityTraits,
	InferenceCareerStage,
	InferenceCommunicationStyle,
	InferenceRiskTolerance,
	InferenceSocialInfluence,
	InferenceLifestyleChoices,
	InferenceFinancialStatus,
	InferenceTravelPatterns,
	InferenceFamilyStructure,
}

// SensitiveTypeMultipliers maps inference types whose presence at high
// confidence multiplies the risk score. Multipliers compound per record.
var SensitiveTypeMultipliers = map[InferenceType]float64{
	InferenceLocation:         1.2,
	InferenceHealthSignals:    1.5,
	InferencePoliticalLeaning: 1.3,
	InferencePurchasingPower:  1.1,
	InferenceAgeRange:         1.1,
}

// ConfidenceLevel buckets a confidence value. Computed once at creation.
type ConfidenceLevel string

const (
	ConfidenceLow    ConfidenceLevel = "low"    // < 0.4
	ConfidenceMedium ConfidenceLevel = "medium" // 0.4 - 0.7
	ConfidenceHigh   ConfidenceLevel = "high"   // >= 0.7
)

func LevelForConfidence(confidence float64) ConfidenceLevel {
	switch {
	case confidence < 0.4:
		return ConfidenceLow
	case confidence < 0.7:
		return ConfidenceMedium
	default:
		return ConfidenceHigh
	}
}

// ProfileSnapshot is one platform's public data for one subject at a
// point in time. Read-only after collection; superseded, never mutated.
type ProfileSnapshot struct {
	Platform    Platform  `json:"platform"`
	Username    string    `json:"username"`
	UserID      string    `json:"user_id,omitempty"`
	ProfileText string    `json:"profile_text"`
	Metadata    Metadata  `json:"metadata"`
	CollectedAt time.Time `json:"collected_at"`
}

// Inference is a single model-derived claim about the subject.
type Inference struct {
	Type            InferenceType   `json:"type"`
	Value           string          `json:"value"`
	Confidence      float64         `json:"confidence"`
	ConfidenceLevel ConfidenceLevel `json:"confidence_level"`
	Reasoning       string          `json:"reasoning,omitempty"`
	SourcePlatforms []Platform      `json:"source_platforms"`
	ProducerID      string          `json:"producer_id"`
	CreatedAt       time.Time       `json:"created_at"`
}

// NewInference builds an immutable inference record. Confidence is
// clamped to [0,1] and the level is derived exactly once.
func NewInference(typ InferenceType, value string, confidence float64, reasoning string, sources []Platform, producerID string) Inference {
	if confidence < 0 {
		confidence = 0
	}
	if confidence > 1 {
		confidence = 1
	}
	return Inference{
		Type:            typ,
		Value:           value,
		Confidence:      confidence,
		ConfidenceLevel: LevelForConfidence(confidence),
		Reasoning:       reasoning,
		SourcePlatforms: sources,
		ProducerID:      producerID,
		CreatedAt:       time.Now(),
	}
}

// PrivacyRisk is the bounded composite risk assessment for one audit.
type PrivacyRisk struct {
	OverallScore             float64     `json:"overall_score"`
	RiskFactors              []string    `json:"risk_factors"`
	HighConfidenceInferences []Inference `json:"high_confidence_inferences"`
	DataExposurePoints       []string    `json:"data_exposure_points"`
	CalculatedAt             time.Time   `json:"calculated_at"`
}

// Priority orders recommendations. High sorts before medium before low.
type Priority string

const (
	PriorityHigh   Priority = "high"
	PriorityMedium Priority = "medium"
	PriorityLow    Priority = "low"
)

// Rank returns the sort rank for a priority; unknown priorities sort last.
func (p Priority) Rank() int {
	switch p {
	case PriorityHigh:
		return 0
	case PriorityMedium:
		return 1
	case PriorityLow:
		return 2
	default:
		return 3
	}
}

// Recommendation is one actionable remediation suggestion.
type Recommendation struct {
	Priority          Priority   `json:"priority"`
	Title             string     `json:"title"`
	Description       string     `json:"description"`
	ActionItems       []string   `json:"action_items"`
	PlatformsAffected []Platform `json:"platforms_affected"`
	PotentialImpact   string     `json:"potential_impact"`
}

// BreachSeverity classifies how damaging a known breach is.
type BreachSeverity string

const (
	BreachSeverityLow      BreachSeverity = "low"
	BreachSeverityMedium   BreachSeverity = "medium"
	BreachSeverityHigh     BreachSeverity = "high"
	BreachSeverityCritical BreachSeverity = "critical"
)

// BreachAlert reports one known breach that includes a subject email.
type BreachAlert struct {
	Email           string         `json:"email"`
	BreachName      string         `json:"breach_name"`
	BreachDate      time.Time      `json:"breach_date"`
	CompromisedData []string       `json:"compromised_data"`
	Severity        BreachSeverity `json:"severity"`
	DetectedAt      time.Time      `json:"detected_at"`
	Resolved        bool           `json:"resolved"`
}

// AuditReport aggregates everything known about one subject at a point
// in time. Immutable once generated; the unit of persistence.
type AuditReport struct {
	ID                string            `json:"id"`
	UserID            string            `json:"user_id"`
	PlatformsAnalyzed []Platform        `json:"platforms_analyzed"`
	Snapshots         []ProfileSnapshot `json:"snapshots"`
	Inferences        []Inference       `json:"inferences"`
	PrivacyRisk       PrivacyRisk       `json:"privacy_risk"`
	Recommendations   []Recommendation  `json:"recommendations"`
	BreachAlerts      []BreachAlert     `json:"breach_alerts,omitempty"`
	// Extras holds analysis extension findings keyed by extension name.
	// Informational only, never part of the risk score.
	Extras        map[string]map[string]interface{} `json:"extras,omitempty"`
	GeneratedAt   time.Time                         `json:"generated_at"`
	ReportVersion string                            `json:"report_version"`
}

// ScanSession tracks one audit run end to end.
type ScanSession struct {
	SessionID    string     `json:"session_id"`
	Platforms    []Platform `json:"platforms"`
	StartedAt    time.Time  `json:"started_at"`
	CompletedAt  *time.Time `json:"completed_at,omitempty"`
	Status       string     `json:"status"` // running, completed, failed
	ErrorMessage string     `json:"error_message,omitempty"`
}

// ActionStatus is the remediation action state machine.
type ActionStatus string

const (
	ActionPending    ActionStatus = "pending"
	ActionInProgress ActionStatus = "in_progress"
	ActionCompleted  ActionStatus = "completed"
	ActionFailed     ActionStatus = "failed"
	ActionRolledBack ActionStatus = "rolled_back"
)

// ActionType names the kind of remediation an action performs.
type ActionType string

const (
	ActionRemoveData      ActionType = "remove_data"
	ActionUpdatePrivacy   ActionType = "update_privacy"
	ActionContactPlatform ActionType = "contact_platform"
)

// RemediationAction is one schedulable, platform-targeted operation.
// Mutated only through status transitions reported by its executor.
type RemediationAction struct {
	ActionID     string            `json:"action_id"`
	ActionType   ActionType        `json:"action_type"`
	Platform     Platform          `json:"platform"`
	Description  string            `json:"description"`
	Status       ActionStatus      `json:"status"`
	ScheduledFor *time.Time        `json:"scheduled_for,omitempty"`
	CompletedAt  *time.Time        `json:"completed_at,omitempty"`
	ErrorMessage string            `json:"error_message,omitempty"`
	RollbackInfo map[string]string `json:"rollback_info,omitempty"`
}
