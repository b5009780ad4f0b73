package checker

import (
	"context"
	"encoding/json"
	"strings"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/sells-group/aegis/internal/model"
	"github.com/sells-group/aegis/internal/resilience"
	"github.com/sells-group/aegis/pkg/anthropic"
)

const statementSystemPrompt = `You review single paragraphs from engineering documents for statement quality.
Report only concrete defects: ambiguous requirements, unverifiable claims, missing rationale for a stated decision.
Respond with a JSON array (and nothing else). Each element:
{"category": "<ambiguous|unverifiable|missing_rationale>", "message": "<one sentence>", "confidence": <0..1>}
Respond with [] when the paragraph is fine.`

// StatementQuality asks Claude to flag ambiguous or unverifiable
// statements. Calls are rate limited, retried on transient failures, and
// guarded by a circuit breaker so a degraded API cannot stall a scan.
type StatementQuality struct {
	client  anthropic.Client
	model   string
	limiter *rate.Limiter
	breaker *resilience.CircuitBreaker
	retry   resilience.RetryConfig
}

// StatementQualityConfig configures the Claude-backed checker.
type StatementQualityConfig struct {
	Model             string
	RequestsPerSecond float64
	Burst             int
}

// NewStatementQuality creates the checker.
func NewStatementQuality(client anthropic.Client, cfg StatementQualityConfig) *StatementQuality {
	if cfg.Model == "" {
		cfg.Model = "claude-haiku-4-5-20251001"
	}
	if cfg.RequestsPerSecond <= 0 {
		cfg.RequestsPerSecond = 2
	}
	if cfg.Burst <= 0 {
		cfg.Burst = 4
	}
	return &StatementQuality{
		client:  client,
		model:   cfg.Model,
		limiter: rate.NewLimiter(rate.Limit(cfg.RequestsPerSecond), cfg.Burst),
		breaker: resilience.NewCircuitBreaker(resilience.CircuitBreakerConfig{
			ShouldTrip: resilience.IsTransient,
			OnStateChange: func(from, to resilience.CircuitState) {
				zap.L().Warn("statement checker circuit state change",
					zap.String("from", from.String()),
					zap.String("to", to.String()),
				)
			},
		}),
		retry: resilience.DefaultRetryConfig(),
	}
}

func (*StatementQuality) ID() string { return "statement_quality" }

// statementIssue is the JSON shape the model is asked to produce.
type statementIssue struct {
	Category   string  `json:"category"`
	Message    string  `json:"message"`
	Confidence float64 `json:"confidence"`
}

func (c *StatementQuality) Check(ctx context.Context, unit model.Unit) ([]RawFinding, error) {
	if strings.TrimSpace(unit.Text) == "" {
		return nil, nil
	}
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, eris.Wrap(err, "statement: rate limiter")
	}

	var resp *anthropic.MessageResponse
	err := c.breaker.Execute(ctx, func(ctx context.Context) error {
		var callErr error
		resp, callErr = resilience.DoVal(ctx, c.retry, func(ctx context.Context) (*anthropic.MessageResponse, error) {
			return c.client.CreateMessage(ctx, anthropic.MessageRequest{
				Model:     c.model,
				MaxTokens: 1024,
				System:    statementSystemPrompt,
				Messages:  []anthropic.Message{{Role: "user", Content: unit.Text}},
			})
		})
		return callErr
	})
	if err != nil {
		return nil, eris.Wrap(err, "statement: model call")
	}

	issues, err := parseStatementIssues(resp.Text)
	if err != nil {
		return nil, eris.Wrapf(err, "statement: parse response for unit %s", unit.ID)
	}

	out := make([]RawFinding, 0, len(issues))
	for _, issue := range issues {
		sig := issue.Category
		if sig == "" {
			sig = "unspecified"
		}
		out = append(out, RawFinding{
			Severity:         model.SeverityMedium,
			Message:          issue.Message,
			Confidence:       clamp01(issue.Confidence),
			ContextSignature: sig,
		})
	}
	return out, nil
}

// parseStatementIssues tolerates models that wrap the JSON array in code
// fences or prose.
func parseStatementIssues(text string) ([]statementIssue, error) {
	start := strings.Index(text, "[")
	end := strings.LastIndex(text, "]")
	if start < 0 || end <= start {
		return nil, eris.New("no JSON array in response")
	}
	var issues []statementIssue
	if err := json.Unmarshal([]byte(text[start:end+1]), &issues); err != nil {
		return nil, eris.Wrap(err, "unmarshal issues")
	}
	return issues, nil
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
