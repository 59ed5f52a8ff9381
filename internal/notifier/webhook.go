// Package notifier delivers announcements to a chat webhook.
//
// Announcements are packed into as few messages as fit under the webhook's
// size limit and delivered strictly in order. When the webhook answers with
// a retry_after hint the same message is redelivered after waiting.
package notifier

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/JakeFAU/loc-announcer/internal/httpjson"
	"github.com/JakeFAU/loc-announcer/internal/metrics"
)

// Separator joins announcements within one message.
const Separator = "\n\n"

// DefaultMaxChars keeps messages safely under the 2000 character limit.
const DefaultMaxChars = 1800

// DefaultMaxRetryWait caps a single retry_after sleep.
const DefaultMaxRetryWait = 10 * time.Minute

// Poster sends one JSON request and returns the raw response body.
type Poster interface {
	Do(ctx context.Context, req httpjson.Request) (string, error)
}

// Sleeper waits out rate-limit hints.
type Sleeper interface {
	Sleep(ctx context.Context, d time.Duration) error
}

// Config describes the webhook target.
type Config struct {
	URL       string
	Username  string
	AvatarURL string
	// MaxChars is the flush threshold for one message.
	MaxChars int
	// MaxRateLimitRetries bounds redeliveries of one message.
	MaxRateLimitRetries int
	// MinInterval spaces out consecutive deliveries; zero disables pacing.
	MinInterval time.Duration
	// MaxRetryWait caps one retry_after sleep; zero means DefaultMaxRetryWait.
	MaxRetryWait time.Duration
}

// Message is the webhook request body.
type Message struct {
	Content   string `json:"content"`
	Username  string `json:"username,omitempty"`
	AvatarURL string `json:"avatar_url,omitempty"`
}

// Webhook posts batched announcements.
type Webhook struct {
	poster  Poster
	sleeper Sleeper
	limiter *rate.Limiter
	cfg     Config
	logger  *zap.Logger
}

// New constructs a Webhook notifier.
func New(poster Poster, sleeper Sleeper, cfg Config, logger *zap.Logger) (*Webhook, error) {
	if poster == nil {
		return nil, fmt.Errorf("poster is required")
	}
	if sleeper == nil {
		return nil, fmt.Errorf("sleeper is required")
	}
	if cfg.URL == "" {
		return nil, fmt.Errorf("webhook url is required")
	}
	if cfg.MaxChars <= 0 {
		cfg.MaxChars = DefaultMaxChars
	}
	if cfg.MaxRateLimitRetries < 0 {
		cfg.MaxRateLimitRetries = 0
	}
	if cfg.MaxRetryWait <= 0 {
		cfg.MaxRetryWait = DefaultMaxRetryWait
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	limit := rate.Inf
	if cfg.MinInterval > 0 {
		limit = rate.Every(cfg.MinInterval)
	}
	return &Webhook{
		poster:  poster,
		sleeper: sleeper,
		limiter: rate.NewLimiter(limit, 1),
		cfg:     cfg,
		logger:  logger,
	}, nil
}

// Send delivers announcements in order. It does nothing for an empty slice.
func (w *Webhook) Send(ctx context.Context, announcements []string) error {
	if len(announcements) == 0 {
		return nil
	}
	for _, content := range Batch(announcements, w.cfg.MaxChars) {
		if err := w.deliver(ctx, content); err != nil {
			return err
		}
	}
	return nil
}

// Batch packs announcements into messages joined by Separator. A message
// is closed before it would grow past maxChars; an announcement longer than
// maxChars on its own becomes a message by itself.
func Batch(announcements []string, maxChars int) []string {
	var (
		batches []string
		buf     strings.Builder
		bufLen  int
	)
	flush := func() {
		if bufLen > 0 {
			batches = append(batches, buf.String())
			buf.Reset()
			bufLen = 0
		}
	}
	for _, a := range announcements {
		n := utf8.RuneCountInString(a)
		if bufLen > 0 && bufLen+utf8.RuneCountInString(Separator)+n > maxChars {
			flush()
		}
		if bufLen > 0 {
			buf.WriteString(Separator)
			bufLen += utf8.RuneCountInString(Separator)
		}
		buf.WriteString(a)
		bufLen += n
	}
	flush()
	return batches
}

// deliver posts one message, redelivering it while the webhook asks us to
// back off.
func (w *Webhook) deliver(ctx context.Context, content string) error {
	msg := Message{Content: content, Username: w.cfg.Username, AvatarURL: w.cfg.AvatarURL}
	for attempt := 0; ; attempt++ {
		if err := w.limiter.Wait(ctx); err != nil {
			return fmt.Errorf("webhook pacing: %w", err)
		}
		w.logger.Info("Pushing message to webhook", zap.Int("chars", utf8.RuneCountInString(content)), zap.Int("attempt", attempt))
		res, err := w.poster.Do(ctx, httpjson.Request{URL: w.cfg.URL, Payload: msg})
		if err != nil {
			metrics.ObserveWebhookDelivery("error")
			return fmt.Errorf("deliver webhook message: %w", err)
		}
		w.logger.Debug("Webhook response", zap.String("body", res))

		wait, limited := retryAfter(res, w.cfg.MaxRetryWait)
		if !limited {
			metrics.ObserveWebhookDelivery("ok")
			return nil
		}
		metrics.ObserveWebhookDelivery("rate_limited")
		if attempt >= w.cfg.MaxRateLimitRetries {
			return fmt.Errorf("webhook still rate limited after %d retries", attempt)
		}
		w.logger.Warn("Exceeded webhook rate limit, sleeping", zap.Duration("retry_after", wait))
		metrics.ObserveRateLimitWait(wait)
		if err := w.sleeper.Sleep(ctx, wait); err != nil {
			return fmt.Errorf("wait for rate limit: %w", err)
		}
	}
}

// retryAfter extracts a positive numeric retry_after (seconds) from a
// webhook response, capped at maxWait. Anything else, including unparseable
// bodies, means the delivery went through.
func retryAfter(body string, maxWait time.Duration) (time.Duration, bool) {
	body = strings.TrimSpace(body)
	if body == "" {
		return 0, false
	}
	var parsed struct {
		RetryAfter *float64 `json:"retry_after"`
	}
	if err := json.Unmarshal([]byte(body), &parsed); err != nil {
		return 0, false
	}
	if parsed.RetryAfter == nil || *parsed.RetryAfter <= 0 {
		return 0, false
	}
	// Clamp in seconds first; huge values overflow time.Duration.
	secs := *parsed.RetryAfter
	if secs > maxWait.Seconds() {
		return maxWait, true
	}
	return time.Duration(secs * float64(time.Second)), true
}
