// Package analysis asks a hosted language model to review a learning note and
// returns its structured feedback.
package analysis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"strings"

	"github.com/go-playground/validator/v10"
	"resty.dev/v3"

	"github.com/conorfennell/memomind/internal/domain"
)

const (
	DefaultBaseURL   = "https://openrouter.ai/api/v1"
	DefaultModel     = "openrouter/auto"
	DefaultMaxTokens = 2000
)

const promptTemplate = `Analyze the user's learning note.

Topic Title:
%s

What the User Learned:
%s

Your task:
1. Clean and rewrite their explanation clearly.
2. List the key points the user understood correctly.
3. Point out missing information or misunderstandings.
4. Give a simple 2–3 sentence summary of the topic.
5. Rate the difficulty (Easy, Medium, Hard).
6. Estimate their understanding accuracy (0–100%%).
7. Suggest what they should learn next.
8. Create 2 short quiz questions.

Return ONLY this JSON (no markdown, no code blocks, just the raw JSON):

{
  "cleaned_explanation": "",
  "key_points_understood": [],
  "missing_or_unclear_points": [],
  "simple_summary": "",
  "difficulty": "",
  "accuracy_score": 0,
  "next_concepts_to_learn": [],
  "quick_quiz": [
    { "q": "", "answer": "" }
  ]
}`

// Config configures the gateway. An empty APIKey is reported as a
// ConfigurationError on every call.
type Config struct {
	APIKey    string
	BaseURL   string
	Model     string
	MaxTokens int
	Referer   string
}

// Gateway calls an OpenAI-compatible chat completion endpoint. It keeps no
// state between calls and never retries.
type Gateway struct {
	httpClient *resty.Client
	configured bool
	model      string
	maxTokens  int
	validate   *validator.Validate
}

func NewGateway(cfg Config) *Gateway {
	baseURL := strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/")
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	model := strings.TrimSpace(cfg.Model)
	if model == "" {
		model = DefaultModel
	}
	maxTokens := cfg.MaxTokens
	if maxTokens <= 0 {
		maxTokens = DefaultMaxTokens
	}

	client := resty.New()
	client.SetBaseURL(baseURL)
	client.SetHeader("Authorization", "Bearer "+cfg.APIKey)
	client.SetHeader("Content-Type", "application/json")
	if cfg.Referer != "" {
		client.SetHeader("HTTP-Referer", cfg.Referer)
	}

	return &Gateway{
		httpClient: client,
		configured: strings.TrimSpace(cfg.APIKey) != "",
		model:      model,
		maxTokens:  maxTokens,
		validate:   validator.New(validator.WithRequiredStructEnabled()),
	}
}

func (g *Gateway) Close() error {
	return g.httpClient.Close()
}

type chatCompletionRequest struct {
	Model     string    `json:"model"`
	Messages  []message `json:"messages"`
	MaxTokens int       `json:"max_tokens"`
}

type message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatCompletionResponse struct {
	Choices []struct {
		Message message `json:"message"`
	} `json:"choices"`
}

// Analyze sends the note to the model and parses the returned analysis.
func (g *Gateway) Analyze(ctx context.Context, title, understanding string) (*domain.Analysis, error) {
	title = strings.TrimSpace(title)
	understanding = strings.TrimSpace(understanding)
	if title == "" || understanding == "" {
		return nil, &domain.ValidationError{
			Fields: []string{"title", "understanding"},
			Reason: "Both title and understanding are required",
		}
	}
	if !g.configured {
		return nil, &ConfigurationError{Reason: "API key not configured"}
	}

	requestBody := chatCompletionRequest{
		Model:     g.model,
		Messages:  []message{{Role: "user", Content: fmt.Sprintf(promptTemplate, title, understanding)}},
		MaxTokens: g.maxTokens,
	}

	response, err := g.httpClient.R().
		SetContext(ctx).
		SetBody(requestBody).
		Post("/chat/completions")
	if err != nil {
		return nil, &UpstreamError{Err: err}
	}
	if response.IsError() {
		slog.Default().Error("Analysis upstream returned an error",
			"status", response.StatusCode(),
			"body", response.String())
		return nil, &UpstreamError{Status: response.StatusCode(), Body: response.String()}
	}

	var envelope chatCompletionResponse
	if err := json.Unmarshal([]byte(response.String()), &envelope); err != nil {
		return nil, &MalformedResponseError{Content: response.String(), Err: err}
	}
	if len(envelope.Choices) == 0 || strings.TrimSpace(envelope.Choices[0].Message.Content) == "" {
		return nil, &MalformedResponseError{Content: response.String(), Err: errors.New("no response from AI")}
	}

	content := envelope.Choices[0].Message.Content
	result, err := g.parse(content)
	if err != nil {
		slog.Default().Error("Failed to parse analysis response",
			"content", content,
			"error", err)
		return nil, &MalformedResponseError{Content: content, Err: err}
	}
	return result, nil
}

// rawAnalysis accepts fractional scores, which some models emit.
type rawAnalysis struct {
	domain.Analysis
	AccuracyScore float64 `json:"accuracy_score"`
}

func (g *Gateway) parse(content string) (*domain.Analysis, error) {
	var raw rawAnalysis
	if err := json.Unmarshal([]byte(StripCodeFences(content)), &raw); err != nil {
		return nil, fmt.Errorf("failed to decode analysis JSON: %w", err)
	}

	result := raw.Analysis
	result.AccuracyScore = int(math.Round(raw.AccuracyScore))
	result.Difficulty = domain.NormalizeDifficulty(result.Difficulty)
	if err := g.validate.Struct(result); err != nil {
		return nil, fmt.Errorf("analysis failed validation: %w", err)
	}
	return &result, nil
}

// StripCodeFences removes markdown code fences the model may wrap its JSON in.
func StripCodeFences(s string) string {
	s = strings.ReplaceAll(s, "```json", "")
	s = strings.ReplaceAll(s, "```", "")
	return strings.TrimSpace(s)
}
