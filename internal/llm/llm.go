package llm

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"reflect"
	"regexp"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.uber.org/zap"
)

const (
	DefaultAnthropicModel = "claude-sonnet-4-5"
	DefaultGeminiModel    = "gemini-2.5-flash"
	maxAttempts           = 3
)

var statusCodeRe = regexp.MustCompile(`(?:status(?:\s+code)?[:=\s]+)(\d{3})`)

var tracer = otel.Tracer("github.com/joelkehle/roi-copilot/internal/llm")

type failureClass int

const (
	failureNone failureClass = iota
	failureTimeout
	failureRateLimit
	failureServer
	failureClient
)

func (c failureClass) String() string {
	switch c {
	case failureTimeout:
		return "timeout"
	case failureRateLimit:
		return "rate_limit"
	case failureServer:
		return "server"
	case failureClient:
		return "client"
	default:
		return "none"
	}
}

// Caller sends one prompt and returns the raw text answer, expected to be JSON.
type Caller interface {
	GenerateJSON(ctx context.Context, prompt string) (string, error)
	ModelName() string
}

// AttemptMetrics counts calls made for one stage.
type AttemptMetrics struct {
	Attempts       int
	ContentRetries int
}

// Executor runs a prompt until the answer decodes and validates, retrying
// transient transport failures with backoff and bad content with feedback.
type Executor struct {
	caller Caller
	log    *zap.Logger
	sleep  func(context.Context, time.Duration) error
}

func NewExecutor(caller Caller, log *zap.Logger) *Executor {
	if log == nil {
		log = zap.NewNop()
	}
	return &Executor{caller: caller, log: log, sleep: sleepCtx}
}

func (e *Executor) ModelName() string {
	if e == nil || e.caller == nil {
		return ""
	}
	return e.caller.ModelName()
}

func (e *Executor) Run(ctx context.Context, stage, prompt string, out any, validate func() error) (AttemptMetrics, error) {
	ctx, span := tracer.Start(ctx, "llm."+stage)
	defer span.End()
	span.SetAttributes(attribute.String("llm.model", e.ModelName()))

	metrics, err := e.run(ctx, stage, prompt, out, validate)
	span.SetAttributes(
		attribute.Int("llm.attempts", metrics.Attempts),
		attribute.Int("llm.content_retries", metrics.ContentRetries),
	)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	return metrics, err
}

func (e *Executor) run(ctx context.Context, stage, prompt string, out any, validate func() error) (AttemptMetrics, error) {
	metrics := AttemptMetrics{}
	feedback := ""
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		metrics.Attempts = attempt
		fullPrompt := prompt
		if feedback != "" {
			fullPrompt += "\n\n" + feedback
		}

		start := time.Now()
		log := e.log.With(zap.String("stage", stage), zap.Int("attempt", attempt))
		log.Debug("llm_attempt_start")
		raw, err := e.caller.GenerateJSON(ctx, fullPrompt)
		if err != nil {
			class := classifyTransportError(err)
			log.Warn("llm_attempt_transport_error",
				zap.Stringer("class", class),
				zap.Int64("elapsed_ms", time.Since(start).Milliseconds()),
				zap.Error(err))
			if class == failureTimeout || class == failureRateLimit || class == failureServer {
				if attempt < maxAttempts {
					if serr := e.sleep(ctx, backoffDelay(attempt)); serr != nil {
						return metrics, serr
					}
					continue
				}
			}
			return metrics, fmt.Errorf("%s transport failure: %w", stage, err)
		}
		raw = strings.TrimSpace(raw)
		if raw == "" {
			log.Warn("llm_attempt_empty", zap.Int64("elapsed_ms", time.Since(start).Milliseconds()))
			if attempt < maxAttempts {
				metrics.ContentRetries++
				feedback = "Your previous response was empty. Return valid JSON only."
				continue
			}
			return metrics, fmt.Errorf("%s failed: empty response", stage)
		}

		clean := StripCodeFences(raw)
		resetTarget(out)
		if err := json.Unmarshal([]byte(clean), out); err != nil {
			log.Warn("llm_attempt_json_error", zap.Int64("elapsed_ms", time.Since(start).Milliseconds()), zap.Error(err))
			if attempt < maxAttempts {
				metrics.ContentRetries++
				feedback = "Your previous response was not valid JSON. Return valid JSON only."
				continue
			}
			return metrics, fmt.Errorf("%s failed json parse: %w", stage, err)
		}
		if err := validate(); err != nil {
			log.Warn("llm_attempt_validation_error", zap.Int64("elapsed_ms", time.Since(start).Milliseconds()), zap.Error(err))
			if attempt < maxAttempts {
				metrics.ContentRetries++
				feedback = fmt.Sprintf("Your response failed validation: %s. Fix and return valid JSON only.", err)
				continue
			}
			return metrics, fmt.Errorf("%s failed validation: %w", stage, err)
		}
		log.Info("llm_attempt_success",
			zap.Int64("elapsed_ms", time.Since(start).Milliseconds()),
			zap.Int("response_chars", len(clean)))
		return metrics, nil
	}
	return metrics, fmt.Errorf("%s failed after retries", stage)
}

// resetTarget zeroes *out so fields decoded from a rejected attempt do not
// survive into the next one.
func resetTarget(out any) {
	v := reflect.ValueOf(out)
	if v.Kind() == reflect.Pointer && !v.IsNil() {
		v.Elem().SetZero()
	}
}

// StripCodeFences removes a surrounding markdown code fence, if any.
func StripCodeFences(s string) string {
	s = strings.TrimSpace(s)
	if strings.HasPrefix(s, "```") {
		parts := strings.SplitN(s, "\n", 2)
		if len(parts) == 2 {
			s = parts[1]
		}
		s = strings.TrimPrefix(s, "json")
		s = strings.TrimSpace(strings.TrimSuffix(s, "```"))
	}
	return s
}

func classifyTransportError(err error) failureClass {
	msg := strings.ToLower(err.Error())
	if errors.Is(err, context.DeadlineExceeded) {
		return failureTimeout
	}
	var ne net.Error
	if errors.As(err, &ne) && ne.Timeout() {
		return failureTimeout
	}
	if m := statusCodeRe.FindStringSubmatch(msg); len(m) == 2 {
		switch {
		case m[1] == "429":
			return failureRateLimit
		case strings.HasPrefix(m[1], "5"):
			return failureServer
		case strings.HasPrefix(m[1], "4"):
			return failureClient
		}
	}
	switch {
	case strings.Contains(msg, "rate limit"), strings.Contains(msg, "resource_exhausted"):
		return failureRateLimit
	case strings.Contains(msg, "server error"), strings.Contains(msg, "unavailable"):
		return failureServer
	case strings.Contains(msg, "invalid_argument"), strings.Contains(msg, "permission_denied"):
		return failureClient
	default:
		return failureServer
	}
}

func backoffDelay(attempt int) time.Duration {
	switch attempt {
	case 1:
		return 1 * time.Second
	case 2:
		return 2 * time.Second
	default:
		return 4 * time.Second
	}
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
