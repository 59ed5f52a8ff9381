package notifier

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/JakeFAU/loc-announcer/internal/clock/system"
	"github.com/JakeFAU/loc-announcer/internal/httpjson"
)

type fakePoster struct {
	mu        sync.Mutex
	requests  []httpjson.Request
	responses []string
	err       error
}

func (p *fakePoster) Do(_ context.Context, req httpjson.Request) (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.requests = append(p.requests, req)
	if p.err != nil {
		return "", p.err
	}
	if len(p.responses) == 0 {
		return "", nil
	}
	res := p.responses[0]
	p.responses = p.responses[1:]
	return res, nil
}

func (p *fakePoster) contents() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]string, 0, len(p.requests))
	for _, r := range p.requests {
		out = append(out, r.Payload.(Message).Content)
	}
	return out
}

type fakeSleeper struct {
	slept []time.Duration
}

func (s *fakeSleeper) Sleep(_ context.Context, d time.Duration) error {
	s.slept = append(s.slept, d)
	return nil
}

func newTestWebhook(t *testing.T, poster Poster, sleeper Sleeper, mutate func(*Config)) *Webhook {
	t.Helper()
	cfg := Config{
		URL:                 "https://hooks.example/secret",
		Username:            "Test Bot",
		AvatarURL:           "https://img.example/a.jpg",
		MaxChars:            DefaultMaxChars,
		MaxRateLimitRetries: 3,
	}
	if mutate != nil {
		mutate(&cfg)
	}
	w, err := New(poster, sleeper, cfg, zap.NewNop())
	require.NoError(t, err)
	return w
}

func TestSendEmptyDoesNothing(t *testing.T) {
	t.Parallel()

	poster := &fakePoster{}
	w := newTestWebhook(t, poster, &fakeSleeper{}, nil)
	require.NoError(t, w.Send(context.Background(), nil))
	assert.Empty(t, poster.requests)
}

func TestSendSmallBatchIsOneMessage(t *testing.T) {
	t.Parallel()

	poster := &fakePoster{}
	w := newTestWebhook(t, poster, &fakeSleeper{}, nil)
	require.NoError(t, w.Send(context.Background(), []string{"one", "two", "three"}))

	require.Len(t, poster.requests, 1)
	req := poster.requests[0]
	assert.Equal(t, "https://hooks.example/secret", req.URL)
	msg := req.Payload.(Message)
	assert.Equal(t, "one\n\ntwo\n\nthree", msg.Content)
	assert.Equal(t, "Test Bot", msg.Username)
	assert.Equal(t, "https://img.example/a.jpg", msg.AvatarURL)
}

func TestBatchRespectsThreshold(t *testing.T) {
	t.Parallel()

	announcements := make([]string, 0, 10)
	for i := 0; i < 10; i++ {
		announcements = append(announcements, strings.Repeat(string(rune('a'+i)), 400))
	}

	batches := Batch(announcements, DefaultMaxChars)
	require.Greater(t, len(batches), 1)
	for _, b := range batches {
		assert.LessOrEqual(t, utf8.RuneCountInString(b), DefaultMaxChars)
	}
	assert.Equal(t, strings.Join(announcements, Separator), strings.Join(batches, Separator),
		"batching must keep every announcement in order")
}

func TestBatchOversizeAnnouncementIsDeliveredAlone(t *testing.T) {
	t.Parallel()

	huge := strings.Repeat("x", 2500)
	batches := Batch([]string{"small", huge, "tail"}, DefaultMaxChars)
	require.Equal(t, []string{"small", huge, "tail"}, batches)
}

func TestBatchCountsSeparator(t *testing.T) {
	t.Parallel()

	// 899 + 2 + 899 = 1800 fits exactly; one more rune does not.
	a := strings.Repeat("a", 899)
	assert.Len(t, Batch([]string{a, a}, DefaultMaxChars), 1)
	b := strings.Repeat("b", 900)
	assert.Len(t, Batch([]string{a, b}, DefaultMaxChars), 2)
}

func TestSendRetriesSameContentAfterRetryAfter(t *testing.T) {
	t.Parallel()

	poster := &fakePoster{responses: []string{`{"retry_after": 2}`, ""}}
	sleeper := &fakeSleeper{}
	w := newTestWebhook(t, poster, sleeper, nil)

	require.NoError(t, w.Send(context.Background(), []string{"first", "second"}))

	assert.Equal(t, []time.Duration{2 * time.Second}, sleeper.slept)
	assert.Equal(t, []string{"first\n\nsecond", "first\n\nsecond"}, poster.contents())
}

func TestSendFractionalRetryAfter(t *testing.T) {
	t.Parallel()

	poster := &fakePoster{responses: []string{`{"message":"You are being rate limited.","retry_after":0.25,"global":false}`}}
	sleeper := &fakeSleeper{}
	w := newTestWebhook(t, poster, sleeper, nil)

	require.NoError(t, w.Send(context.Background(), []string{"x"}))
	assert.Equal(t, []time.Duration{250 * time.Millisecond}, sleeper.slept)
	assert.Len(t, poster.requests, 2)
}

func TestSendClampsHugeRetryAfter(t *testing.T) {
	t.Parallel()

	poster := &fakePoster{responses: []string{`{"retry_after": 1e12}`, ""}}
	sleeper := &fakeSleeper{}
	w := newTestWebhook(t, poster, sleeper, func(c *Config) { c.MaxRetryWait = 30 * time.Second })

	require.NoError(t, w.Send(context.Background(), []string{"x"}))
	assert.Equal(t, []time.Duration{30 * time.Second}, sleeper.slept)
	assert.Len(t, poster.requests, 2)
}

func TestSendHugeRetryAfterUsesDefaultCap(t *testing.T) {
	t.Parallel()

	poster := &fakePoster{responses: []string{`{"retry_after": 1e300}`, ""}}
	sleeper := &fakeSleeper{}
	w := newTestWebhook(t, poster, sleeper, nil)

	require.NoError(t, w.Send(context.Background(), []string{"x"}))
	require.Len(t, sleeper.slept, 1)
	assert.Equal(t, DefaultMaxRetryWait, sleeper.slept[0])
	assert.Positive(t, sleeper.slept[0])
}

func TestSendIgnoresUnparseableResponses(t *testing.T) {
	t.Parallel()

	for _, body := range []string{"", "not json", `{"id":"123"}`, `{"retry_after":"soon"}`, `{"retry_after":0}`, "[]"} {
		poster := &fakePoster{responses: []string{body}}
		sleeper := &fakeSleeper{}
		w := newTestWebhook(t, poster, sleeper, nil)

		require.NoError(t, w.Send(context.Background(), []string{"x"}), body)
		assert.Len(t, poster.requests, 1, body)
		assert.Empty(t, sleeper.slept, body)
	}
}

func TestSendGivesUpAfterMaxRetries(t *testing.T) {
	t.Parallel()

	limited := `{"retry_after": 1}`
	poster := &fakePoster{responses: []string{limited, limited, limited, limited, limited}}
	sleeper := &fakeSleeper{}
	w := newTestWebhook(t, poster, sleeper, func(c *Config) { c.MaxRateLimitRetries = 2 })

	err := w.Send(context.Background(), []string{"x"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "rate limited")
	assert.Len(t, poster.requests, 3)
	assert.Len(t, sleeper.slept, 2)
}

func TestSendPropagatesTransportErrors(t *testing.T) {
	t.Parallel()

	poster := &fakePoster{err: errors.New("dial tcp: refused")}
	w := newTestWebhook(t, poster, &fakeSleeper{}, nil)

	err := w.Send(context.Background(), []string{"a", strings.Repeat("b", 2000)})
	require.Error(t, err)
	assert.Len(t, poster.requests, 1, "later batches are not attempted after a failure")
}

func TestSendAgainstHTTPServerWithRealClock(t *testing.T) {
	t.Parallel()

	var (
		mu     sync.Mutex
		bodies []Message
		times  []time.Time
	)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		raw, err := io.ReadAll(r.Body)
		assert.NoError(t, err)
		var msg Message
		assert.NoError(t, json.Unmarshal(raw, &msg))

		mu.Lock()
		defer mu.Unlock()
		bodies = append(bodies, msg)
		times = append(times, time.Now())
		if len(bodies) == 1 {
			w.WriteHeader(http.StatusTooManyRequests)
			_, _ = w.Write([]byte(`{"retry_after": 0.2}`))
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}))
	defer srv.Close()

	w, err := New(httpjson.New(httpjson.Config{}, nil), system.New(), Config{URL: srv.URL, MaxRateLimitRetries: 1}, nil)
	require.NoError(t, err)
	require.NoError(t, w.Send(context.Background(), []string{"hello"}))

	mu.Lock()
	defer mu.Unlock()
	require.Len(t, bodies, 2)
	assert.Equal(t, bodies[0], bodies[1])
	assert.GreaterOrEqual(t, times[1].Sub(times[0]), 200*time.Millisecond)
}

func TestMinIntervalPacesDeliveries(t *testing.T) {
	t.Parallel()

	poster := &fakePoster{}
	w := newTestWebhook(t, poster, &fakeSleeper{}, func(c *Config) {
		c.MaxChars = 5
		c.MinInterval = 50 * time.Millisecond
	})

	start := time.Now()
	require.NoError(t, w.Send(context.Background(), []string{"aaaa", "bbbb", "cccc"}))
	assert.Len(t, poster.requests, 3)
	assert.GreaterOrEqual(t, time.Since(start), 90*time.Millisecond)
}

func TestNewValidates(t *testing.T) {
	t.Parallel()

	_, err := New(nil, &fakeSleeper{}, Config{URL: "u"}, nil)
	require.Error(t, err)
	_, err = New(&fakePoster{}, nil, Config{URL: "u"}, nil)
	require.Error(t, err)
	_, err = New(&fakePoster{}, &fakeSleeper{}, Config{}, nil)
	require.Error(t, err)
}
