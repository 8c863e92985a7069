package analysis

import (
	"sort"
	"strings"

	"github.com/ai-audit/backend/internal/models"
)

// HealthSignalExtension surfaces health-related keyword mentions across
// all collected profiles.
type HealthSignalExtension struct {
	keywords map[string][]string
}

func NewHealthSignalExtension() *HealthSignalExtension {
	return &HealthSignalExtension{
		keywords: map[string][]string{
			"fitness": {"workout", "exercise", "gym", "running", "cycling", "fitness"},
			"sleep":   {"sleep", "insomnia", "tired", "rest", "bedtime"},
			"heart":   {"heart rate", "cardio", "pulse", "bpm"},
			"stress":  {"stress", "anxiety", "meditation", "mindfulness"},
			"diet":    {"diet", "nutrition", "calories", "healthy eating", "weight"},
		},
	}
}

func (e *HealthSignalExtension) Name() string { return "health-signals" }

func (e *HealthSignalExtension) Analyze(snapshots []models.ProfileSnapshot, _ []models.Inference) (Findings, error) {
	signals := make(map[string][]string)

	for _, snap := range snapshots {
		text := strings.ToLower(snap.ProfileText)
		for category, words := range e.keywords {
			for _, kw := range words {
				if strings.Contains(text, kw) {
					signals[category] = append(signals[category], kw)
				}
			}
		}
	}

	if len(signals) == 0 {
		return nil, nil
	}

	risk := float64(len(signals)) * 1.5
	if risk > 10.0 {
		risk = 10.0
	}

	recs := []string{
		"Consider limiting health-related posts on public platforms",
		"Review privacy settings on fitness apps and wearables",
		"Be cautious about sharing workout locations and schedules",
	}
	if _, ok := signals["stress"]; ok {
		recs = append(recs, "Avoid posting about mental health struggles on professional platforms")
	}
	if _, ok := signals["diet"]; ok {
		recs = append(recs, "Be mindful of food photos that might reveal health conditions")
	}

	return Findings{
		"health_signals":      signals,
		"health_privacy_risk": risk,
		"recommendations":     recs,
	}, nil
}

// FinancialSignalExtension flags cryptocurrency and financial mentions.
type FinancialSignalExtension struct {
	cryptoKeywords    []string
	financialKeywords []string
}

func NewFinancialSignalExtension() *FinancialSignalExtension {
	return &FinancialSignalExtension{
		cryptoKeywords: []string{
			"bitcoin", "btc", "ethereum", "eth", "cryptocurrency", "crypto",
			"blockchain", "defi", "nft", "web3", "wallet", "hodl", "trading",
		},
		financialKeywords: []string{
			"investment", "portfolio", "stock", "trading", "finance",
			"money", "salary", "income", "expensive", "luxury",
		},
	}
}

func (e *FinancialSignalExtension) Name() string { return "financial-signals" }

func (e *FinancialSignalExtension) Analyze(snapshots []models.ProfileSnapshot, _ []models.Inference) (Findings, error) {
	cryptoSet := make(map[string]struct{})
	financialSet := make(map[string]struct{})

	for _, snap := range snapshots {
		text := strings.ToLower(snap.ProfileText)
		for _, kw := range e.cryptoKeywords {
			if strings.Contains(text, kw) {
				cryptoSet[kw] = struct{}{}
			}
		}
		for _, kw := range e.financialKeywords {
			if strings.Contains(text, kw) {
				financialSet[kw] = struct{}{}
			}
		}
	}

	if len(cryptoSet) == 0 && len(financialSet) == 0 {
		return nil, nil
	}

	// Distinct signals across both keyword sets drive the score.
	combined := make(map[string]struct{}, len(cryptoSet)+len(financialSet))
	for kw := range cryptoSet {
		combined[kw] = struct{}{}
	}
	for kw := range financialSet {
		combined[kw] = struct{}{}
	}
	risk := float64(len(combined)) * 1.2
	if risk > 10.0 {
		risk = 10.0
	}

	var recs []string
	if len(cryptoSet) > 0 {
		recs = append(recs,
			"Avoid posting cryptocurrency wallet addresses publicly",
			"Be cautious about sharing trading strategies or holdings",
			"Consider using pseudonyms for crypto-related discussions",
		)
	}
	if len(financialSet) > 0 {
		recs = append(recs,
			"Limit sharing of financial information on social media",
			"Avoid posting about expensive purchases or income",
			"Be wary of investment scams targeting your profile",
		)
	}

	return Findings{
		"crypto_signals":         sortedKeys(cryptoSet),
		"financial_signals":      sortedKeys(financialSet),
		"financial_privacy_risk": risk,
		"recommendations":        recs,
	}, nil
}

// UsernameReuseExtension detects the same handle reused across
// platforms, which makes cross-platform correlation trivial.
type UsernameReuseExtension struct{}

func NewUsernameReuseExtension() *UsernameReuseExtension {
	return &UsernameReuseExtension{}
}

func (e *UsernameReuseExtension) Name() string { return "username-reuse" }

func (e *UsernameReuseExtension) Analyze(snapshots []models.ProfileSnapshot, _ []models.Inference) (Findings, error) {
	byHandle := make(map[string][]models.Platform)
	for _, snap := range snapshots {
		handle := strings.ToLower(strings.TrimSpace(snap.Username))
		if handle == "" {
			continue
		}
		byHandle[handle] = append(byHandle[handle], snap.Platform)
	}

	reused := make(map[string][]string)
	for handle, platforms := range byHandle {
		if len(platforms) < 2 {
			continue
		}
		names := make([]string, len(platforms))
		for i, p := range platforms {
			names[i] = string(p)
		}
		sort.Strings(names)
		reused[handle] = names
	}

	if len(reused) == 0 {
		return nil, nil
	}

	return Findings{
		"reused_usernames": reused,
		"recommendations": []string{
			"Use distinct usernames per platform to resist cross-platform correlation",
		},
	}, nil
}

func sortedKeys(set map[string]struct{}) []string {
	keys := make([]string, 0, len(set))
	for k := range set {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
