package ai

import (
	"context"
	"fmt"
	"strings"
	"time"

	"eebc-advisor/internal/config"
	"eebc-advisor/internal/logger"

	"github.com/sony/gobreaker"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"golang.org/x/time/rate"
	"google.golang.org/api/option"

	genai "github.com/google/generative-ai-go/genai"
)

// GenerationMode names one of the preconfigured generation profiles.
type GenerationMode string

const (
	// ModeExtract is used for field extraction and query expansion:
	// low temperature, short output.
	ModeExtract GenerationMode = "extract"
	// ModeReason is used for the final answer: slightly higher
	// temperature, longer output.
	ModeReason GenerationMode = "reason"
)

type generationParams struct {
	model       string
	temperature float32
	maxTokens   int32
}

// GeminiClient wraps the Gemini API with a circuit breaker and a
// client-side rate limiter.
type GeminiClient struct {
	client      *genai.Client
	breaker     *gobreaker.CircuitBreaker
	rateLimiter *rate.Limiter
	params      map[GenerationMode]generationParams
}

// RateLimits holds the per-tier request budget for the Gemini API.
type RateLimits struct {
	RPM int // Requests per minute
	RPD int // Requests per day
}

// NewGeminiClient creates a Gemini client with both generation profiles
// configured from cfg.
func NewGeminiClient(ctx context.Context, cfg *config.Config) (*GeminiClient, error) {
	if cfg.GeminiAPIKey == "" {
		return nil, fmt.Errorf("missing GEMINI_API_KEY")
	}

	client, err := genai.NewClient(ctx, option.WithAPIKey(cfg.GeminiAPIKey))
	if err != nil {
		return nil, err
	}

	limits := getRateLimits(cfg.GeminiTier)

	breaker := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        "GeminiAPI",
		MaxRequests: 5,
		Interval:    10 * time.Second,
		Timeout:     60 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			failureRatio := float64(counts.TotalFailures) / float64(counts.Requests)
			return counts.Requests >= 3 && failureRatio >= 0.6
		},
		OnStateChange: func(name string, from gobreaker.State, to gobreaker.State) {
			logger.Warn("Circuit breaker state change", "breaker", name, "from", from.String(), "to", to.String())
		},
	})

	// RPM limit with some buffer
	rateLimiter := rate.NewLimiter(rate.Limit(float64(limits.RPM)*0.9/60.0), limits.RPM/10+1)

	return &GeminiClient{
		client:      client,
		breaker:     breaker,
		rateLimiter: rateLimiter,
		params: map[GenerationMode]generationParams{
			ModeExtract: {model: cfg.ExtractionModel, temperature: 0.0, maxTokens: 500},
			ModeReason:  {model: cfg.GenerationModel, temperature: 0.1, maxTokens: 1000},
		},
	}, nil
}

func getRateLimits(tier string) RateLimits {
	switch tier {
	case "free":
		return RateLimits{RPM: 10, RPD: 250}
	case "tier1":
		return RateLimits{RPM: 1000, RPD: 10000}
	case "tier2":
		return RateLimits{RPM: 2000, RPD: 50000}
	default:
		return RateLimits{RPM: 10, RPD: 250}
	}
}

// Complete sends a system + user prompt pair and returns the generated text.
func (gc *GeminiClient) Complete(ctx context.Context, mode GenerationMode, system, user string) (string, error) {
	p, ok := gc.params[mode]
	if !ok {
		return "", fmt.Errorf("unknown generation mode: %s", mode)
	}

	tracer := otel.Tracer("gemini-client")
	ctx, span := tracer.Start(ctx, "gemini.complete")
	defer span.End()

	span.SetAttributes(
		attribute.String("gemini.model", p.model),
		attribute.String("gemini.mode", string(mode)),
		attribute.Int("gemini.prompt_chars", len(system)+len(user)),
	)

	if err := gc.rateLimiter.Wait(ctx); err != nil {
		span.SetAttributes(attribute.Bool("gemini.rate_limited", true))
		return "", err
	}

	result, err := gc.breaker.Execute(func() (interface{}, error) {
		model := gc.client.GenerativeModel(p.model)
		model.SetTemperature(p.temperature)
		model.SetMaxOutputTokens(p.maxTokens)
		if system != "" {
			model.SystemInstruction = &genai.Content{
				Parts: []genai.Part{genai.Text(system)},
			}
		}

		resp, err := model.GenerateContent(ctx, genai.Text(user))
		if err != nil {
			return nil, err
		}
		return resp, nil
	})
	if err != nil {
		span.SetAttributes(attribute.Bool("gemini.error", true))
		if err == gobreaker.ErrOpenState {
			span.SetAttributes(attribute.Bool("gemini.circuit_breaker_open", true))
			return "", fmt.Errorf("gemini temporarily unavailable: %w", err)
		}
		return "", err
	}

	resp := result.(*genai.GenerateContentResponse)
	text := responseText(resp)
	if text == "" {
		span.SetAttributes(attribute.Bool("gemini.empty_response", true))
		return "", fmt.Errorf("empty response from model %s", p.model)
	}

	span.SetAttributes(attribute.Int("gemini.response_chars", len(text)))
	return text, nil
}

// responseText concatenates the text parts of the first candidate.
func responseText(resp *genai.GenerateContentResponse) string {
	var sb strings.Builder
	for _, candidate := range resp.Candidates {
		if candidate.Content == nil {
			continue
		}
		for _, part := range candidate.Content.Parts {
			if text, ok := part.(genai.Text); ok {
				sb.WriteString(string(text))
			}
		}
		break
	}
	return strings.TrimSpace(sb.String())
}

// Close releases the underlying API client.
func (gc *GeminiClient) Close() error {
	if gc.client != nil {
		return gc.client.Close()
	}
	return nil
}
