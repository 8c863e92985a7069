package inference

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	openai "github.com/sashabaranov/go-openai"
	"go.uber.org/zap"

	"github.com/ai-audit/backend/internal/models"
	"github.com/ai-audit/backend/pkg/circuitbreaker"
	"github.com/ai-audit/backend/pkg/logger"
	"github.com/ai-audit/backend/pkg/retry"
)

const inferenceSystemPrompt = `You are an AI system that analyzes public profile data to make privacy-focused inferences.

Your goal is to help users understand what personal information can be inferred from their public digital footprint.

For each analysis, provide a structured JSON response with:
- "value": The inferred value (be specific but not invasive)
- "confidence": A number between 0.0 and 1.0 indicating confidence
- "reasoning": Brief explanation of the inference basis

Be ethical and responsible:
- Only make inferences that could reasonably be made by others
- Avoid overly sensitive or invasive conclusions
- Focus on helping users improve their privacy
- If you cannot make a confident inference, return confidence < 0.3`

var inferencePrompts = map[models.InferenceType]string{
	models.InferenceProgrammingSkills: "Based on this profile, what programming languages, frameworks, or technical skills can you infer? Focus on concrete evidence from repositories, descriptions, or stated experience.",
	models.InferenceLocation:          "What location information can be inferred from this profile? Consider stated location, time zone patterns, language use, or cultural references. Be specific about city/region if possible.",
	models.InferenceAgeRange:          "What age range can you infer for this person? Consider account creation date, cultural references, communication style, career stage indicators, or technology choices.",
	models.InferenceInterests:         "What interests, hobbies, or professional focus areas can you infer? Look for patterns in projects, descriptions, topics, or stated interests.",
	models.InferenceSentiment:         "What is the overall sentiment or personality style? Consider communication tone, emoji use, topic choices, and interaction patterns.",
	models.InferenceWorkSchedule:      "What work schedule or time zone patterns can be inferred? Look at commit times, posting patterns, or activity schedules.",
	models.InferencePoliticalLeaning:  "Are there any political leanings that can be inferred? Be very careful and only note clear indicators from stated positions or causes supported.",
	models.InferenceEducationLevel:    "What education level or background can be inferred? Consider communication style, technical depth, stated credentials, or project complexity.",
	models.InferenceHealthSignals:     "Are there any health-related signals? Only note obvious mentions of health topics, fitness activities, or medical interests. Be extremely cautious.",
	models.InferencePurchasingPower:   "What economic indicators can be inferred? Consider technology choices, travel mentions, lifestyle indicators, or professional level.",
}

// OpenAIProducer makes inferences through the OpenAI chat completion
// API, guarded by a circuit breaker and retry policy.
type OpenAIProducer struct {
	client      *openai.Client
	model       string
	temperature float32
	maxTokens   int
	timeout     time.Duration
	cb          *circuitbreaker.CircuitBreaker
	retryConfig retry.Config
}

func NewOpenAIProducer(apiKey, model string, temperature float32, maxTokens int) *OpenAIProducer {
	cb := circuitbreaker.NewCircuitBreaker("openai-producer", circuitbreaker.Config{
		MaxRequests:      5,
		Interval:         time.Minute,
		Timeout:          30 * time.Second,
		FailureThreshold: 5,
		SuccessThreshold: 2,
		Logger:           logger.GetLogger(),
	})

	retryConfig := retry.Config{
		MaxAttempts:    3,
		InitialDelay:   500 * time.Millisecond,
		MaxDelay:       5 * time.Second,
		Multiplier:     2.0,
		JitterFraction: 0.1,
		Logger:         logger.GetLogger(),
	}

	logger.Info("OpenAI producer initialized", zap.String("model", model))

	return &OpenAIProducer{
		client:      openai.NewClient(apiKey),
		model:       model,
		temperature: temperature,
		maxTokens:   maxTokens,
		timeout:     30 * time.Second,
		cb:          cb,
		retryConfig: retryConfig,
	}
}

// NewOpenAIProducerWithClient injects a prebuilt API client, used in
// tests against a local server.
func NewOpenAIProducerWithClient(client *openai.Client, model string) *OpenAIProducer {
	p := NewOpenAIProducer("test", model, 0, 256)
	p.client = client
	return p
}

func (p *OpenAIProducer) ID() string {
	return fmt.Sprintf("openai-%s", p.model)
}

func (p *OpenAIProducer) MakeInference(ctx context.Context, snapshot models.ProfileSnapshot, typ models.InferenceType) (*models.Inference, error) {
	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	var content string
	err := p.cb.Execute(ctx, func() error {
		return retry.Do(ctx, p.retryConfig, func() error {
			resp, err := p.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
				Model: p.model,
				Messages: []openai.ChatCompletionMessage{
					{Role: openai.ChatMessageRoleSystem, Content: inferenceSystemPrompt},
					{Role: openai.ChatMessageRoleUser, Content: buildPrompt(snapshot, typ)},
				},
				Temperature: p.temperature,
				MaxTokens:   p.maxTokens,
			})
			if err != nil {
				return fmt.Errorf("failed to create completion: %w", err)
			}
			if len(resp.Choices) == 0 {
				return fmt.Errorf("completion returned no choices")
			}
			content = resp.Choices[0].Message.Content
			return nil
		})
	})
	if err != nil {
		return nil, err
	}

	parsed := parseProducerResponse(content)
	if parsed == nil {
		logger.Debug("Producer response unusable",
			zap.String("platform", string(snapshot.Platform)),
			zap.String("type", string(typ)),
		)
		return nil, nil
	}
	if parsed.Confidence < MinAcceptedConfidence {
		return nil, nil
	}

	inf := models.NewInference(typ, parsed.Value, parsed.Confidence, parsed.Reasoning,
		[]models.Platform{snapshot.Platform}, p.ID())
	return &inf, nil
}

func buildPrompt(snapshot models.ProfileSnapshot, typ models.InferenceType) string {
	metadata, err := json.MarshalIndent(snapshot.Metadata, "", "  ")
	if err != nil {
		metadata = []byte("{}")
	}

	request, ok := inferencePrompts[typ]
	if !ok {
		request = fmt.Sprintf("Analyze this profile data for signals about: %s.", typ)
	}

	return fmt.Sprintf(`Profile Platform: %s
Username: %s
Profile Text:
%s

Metadata: %s

Analysis Request: %s

Provide your response as JSON with the required fields.`,
		snapshot.Platform, snapshot.Username, snapshot.ProfileText, metadata, request)
}
