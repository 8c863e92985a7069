package inference

import (
	"context"
	"encoding/json"
	"regexp"
	"strconv"
	"strings"

	"github.com/ai-audit/backend/internal/models"
)

// MinAcceptedConfidence is the producer-boundary acceptance threshold.
// Responses below it are treated as "no inference", not as errors.
const MinAcceptedConfidence = 0.3

// Producer turns one (snapshot, inference type) pair into at most one
// inference record. Implementations fail by returning (nil, nil) or a
// recoverable error; they never corrupt shared state.
type Producer interface {
	ID() string
	MakeInference(ctx context.Context, snapshot models.ProfileSnapshot, typ models.InferenceType) (*models.Inference, error)
}

// parsedResponse is the shape extracted from a producer's raw output.
type parsedResponse struct {
	Value      string
	Confidence float64
	Reasoning  string
}

var (
	jsonFencePattern = regexp.MustCompile("(?s)```json\\s*(.*?)\\s*```")

	fallbackConfidence = regexp.MustCompile(`(?i)confidence[:\s]+([0-9.]+)`)
	fallbackValue      = regexp.MustCompile(`(?i)(?:value|conclusion|inference)[:\s]+([^\n]+)`)
	fallbackReasoning  = regexp.MustCompile(`(?i)(?:reasoning|explanation|because)[:\s]+([^\n]+)`)
)

// parseProducerResponse extracts value/confidence/reasoning from a raw
// model response. Structured JSON is preferred (fenced or embedded in
// prose); a regex fallback is attempted before giving up. A nil return
// means no usable inference was found.
func parseProducerResponse(raw string) *parsedResponse {
	if parsed := parseStructured(raw); parsed != nil {
		return parsed
	}
	return extractFallback(raw)
}

func parseStructured(raw string) *parsedResponse {
	text := raw
	if match := jsonFencePattern.FindStringSubmatch(text); match != nil {
		text = match[1]
	}

	text = strings.TrimSpace(text)
	if !strings.HasPrefix(text, "{") {
		start := strings.Index(text, "{")
		if start == -1 {
			return nil
		}
		text = text[start:]
	}

	var fields map[string]interface{}
	if err := json.Unmarshal([]byte(text), &fields); err != nil {
		return nil
	}

	value, ok := stringify(fields["value"])
	if !ok || value == "" {
		return nil
	}

	parsed := &parsedResponse{Value: value}
	if confidence, ok := fields["confidence"].(float64); ok {
		parsed.Confidence = confidence
	}
	if reasoning, ok := fields["reasoning"].(string); ok {
		parsed.Reasoning = reasoning
	}
	return parsed
}

func extractFallback(raw string) *parsedResponse {
	valueMatch := fallbackValue.FindStringSubmatch(raw)
	if valueMatch == nil {
		return nil
	}

	parsed := &parsedResponse{Value: strings.TrimSpace(valueMatch[1])}

	if match := fallbackConfidence.FindStringSubmatch(raw); match != nil {
		if confidence, err := strconv.ParseFloat(strings.TrimRight(match[1], "."), 64); err == nil {
			parsed.Confidence = confidence
		}
	}
	if match := fallbackReasoning.FindStringSubmatch(raw); match != nil {
		parsed.Reasoning = strings.TrimSpace(match[1])
	}
	return parsed
}

func stringify(value interface{}) (string, bool) {
	switch v := value.(type) {
	case nil:
		return "", false
	case string:
		return v, true
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64), true
	case bool:
		return strconv.FormatBool(v), true
	case []interface{}:
		parts := make([]string, 0, len(v))
		for _, item := range v {
			if s, ok := stringify(item); ok {
				parts = append(parts, s)
			}
		}
		return strings.Join(parts, ", "), len(parts) > 0
	default:
		return "", false
	}
}
