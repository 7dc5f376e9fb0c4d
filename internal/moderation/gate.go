// Package moderation classifies post content before it becomes visible.
package moderation

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"time"

	anthropic "github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"

	"corkboard/internal/observability"
)

// FallbackReason is the audit reason recorded whenever the classifier could
// not produce a verdict and the configured fail policy decided instead.
const FallbackReason = "moderation unavailable"

// Result is a moderation verdict. Fallback is true when the verdict came
// from the fail policy rather than the live classifier.
type Result struct {
	Allowed  bool   `json:"allowed"`
	Reason   string `json:"reason"`
	Fallback bool   `json:"-"`
}

// FailPolicy defines the behavior when the classifier is unavailable.
type FailPolicy int

const (
	// FailOpen publishes the post when the classifier is unavailable.
	FailOpen FailPolicy = iota
	// FailClosed hides the post when the classifier is unavailable.
	FailClosed
)

// ParseFailPolicy maps a config string to a FailPolicy. Unknown values
// default to FailOpen, matching the service's lenient moderation posture.
func ParseFailPolicy(s string) FailPolicy {
	if strings.EqualFold(strings.TrimSpace(s), "closed") {
		return FailClosed
	}
	return FailOpen
}

func (p FailPolicy) String() string {
	if p == FailClosed {
		return "closed"
	}
	return "open"
}

const policyPrompt = `You are a content moderator for a local community app where people post short anonymous notes about their city.

Your job is to check if the following post should be BLOCKED. Only block content that contains:
- Hate speech (racism, sexism, homophobia, religious hatred, etc.)
- NSFW/explicit sexual content
- Violent threats or calls for violence
- Slurs or derogatory language targeting groups
- Spam or meaningless gibberish

DO NOT block:
- General complaints or negative opinions (even harsh criticism is fine)
- Profanity that isn't hateful (casual swearing is ok)
- Political opinions
- Sarcasm or jokes (unless they contain hate speech)

Be lenient - when in doubt, allow the post. We want free expression, just not hate.

Always respond with JSON: {"allowed": true/false, "reason": "brief explanation of your decision"}

Post to moderate:`

// messenger is the slice of the Anthropic client the gate needs; tests stub
// it to avoid network calls.
type messenger interface {
	New(ctx context.Context, params anthropic.MessageNewParams, opts ...option.RequestOption) (*anthropic.Message, error)
}

// Gate classifies content with an external LLM classifier and applies the
// configured fail policy when the classifier errors or times out. Classify
// never returns an error: every call yields exactly one verdict.
type Gate struct {
	messages messenger
	model    anthropic.Model
	policy   FailPolicy
	timeout  time.Duration
	logger   *slog.Logger
}

// NewGate builds a Gate talking to the Anthropic messages API.
func NewGate(apiKey, model string, policy FailPolicy, timeout time.Duration, logger *slog.Logger) *Gate {
	client := anthropic.NewClient(option.WithAPIKey(apiKey))
	return newGate(&client.Messages, model, policy, timeout, logger)
}

func newGate(m messenger, model string, policy FailPolicy, timeout time.Duration, logger *slog.Logger) *Gate {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Gate{
		messages: m,
		model:    anthropic.Model(model),
		policy:   policy,
		timeout:  timeout,
		logger:   logger,
	}
}

// Classify returns the moderation verdict for content. On any classifier
// failure it falls back per the configured policy and records that in the
// Result so the caller can audit the decision.
func (g *Gate) Classify(ctx context.Context, content string) Result {
	ctx, cancel := context.WithTimeout(ctx, g.timeout)
	defer cancel()

	msg, err := g.messages.New(ctx, anthropic.MessageNewParams{
		Model:     g.model,
		MaxTokens: 256,
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(anthropic.NewTextBlock(fmt.Sprintf("%s\n\n%q", policyPrompt, content))),
		},
	})
	if err != nil {
		return g.fallback(ctx, err)
	}
	if len(msg.Content) == 0 {
		return g.fallback(ctx, fmt.Errorf("empty classifier response"))
	}

	verdict, err := parseVerdict(msg.Content[0].Text)
	if err != nil {
		return g.fallback(ctx, err)
	}

	observability.ModerationVerdicts.WithLabelValues(verdictLabel(verdict.Allowed), "classifier").Inc()
	return verdict
}

func (g *Gate) fallback(ctx context.Context, cause error) Result {
	allowed := g.policy == FailOpen
	g.logger.ErrorContext(ctx, "moderation classifier unavailable, applying fail policy",
		slog.String("policy", g.policy.String()),
		slog.String("error", cause.Error()),
	)
	observability.ModerationVerdicts.WithLabelValues(verdictLabel(allowed), "fallback").Inc()
	return Result{Allowed: allowed, Reason: FallbackReason, Fallback: true}
}

func verdictLabel(allowed bool) string {
	if allowed {
		return "allowed"
	}
	return "blocked"
}

// parseVerdict extracts the verdict JSON from the model's reply, tolerating
// prose around the object.
func parseVerdict(text string) (Result, error) {
	start := strings.Index(text, "{")
	end := strings.LastIndex(text, "}")
	if start == -1 || end <= start {
		return Result{}, fmt.Errorf("no JSON object in classifier response")
	}

	var verdict Result
	if err := json.Unmarshal([]byte(text[start:end+1]), &verdict); err != nil {
		return Result{}, fmt.Errorf("decode classifier verdict: %w", err)
	}
	if verdict.Reason == "" {
		verdict.Reason = "no reason given"
	}
	return verdict, nil
}
