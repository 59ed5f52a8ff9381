// Package runner sequences one announcer invocation: fetch and read state,
// detect changes, persist state and notify, then report liveness.
package runner

import (
	"context"
	"fmt"
	"net/http"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/JakeFAU/loc-announcer/internal/detector"
	"github.com/JakeFAU/loc-announcer/internal/locations"
	"github.com/JakeFAU/loc-announcer/internal/metrics"
	"github.com/JakeFAU/loc-announcer/internal/state"
)

// OKBody is the JSON string body returned by every successful run.
const OKBody = `"OK"`

// Result is what an invocation reports back to its trigger.
type Result struct {
	StatusCode int    `json:"statusCode"`
	Body       string `json:"body"`
}

// Deps bundles the collaborators of a Runner.
type Deps struct {
	Source    EntrySource
	State     StateStore
	Detector  ChangeDetector
	Formatter Formatter
	Notifier  Notifier
	Pinger    Pinger
	Clock     Clock
	IDs       IDGenerator
	// Tracer is optional; the global provider's tracer is used when nil.
	Tracer    trace.Tracer
}

// Runner executes announcer runs.
type Runner struct {
	deps   Deps
	logger *zap.Logger
}

// New constructs a Runner.
func New(deps Deps, logger *zap.Logger) (*Runner, error) {
	switch {
	case deps.Source == nil:
		return nil, fmt.Errorf("entry source is required")
	case deps.State == nil:
		return nil, fmt.Errorf("state store is required")
	case deps.Detector == nil:
		return nil, fmt.Errorf("detector is required")
	case deps.Formatter == nil:
		return nil, fmt.Errorf("formatter is required")
	case deps.Notifier == nil:
		return nil, fmt.Errorf("notifier is required")
	case deps.Pinger == nil:
		return nil, fmt.Errorf("pinger is required")
	case deps.Clock == nil:
		return nil, fmt.Errorf("clock is required")
	case deps.IDs == nil:
		return nil, fmt.Errorf("id generator is required")
	}
	if deps.Tracer == nil {
		deps.Tracer = otel.Tracer("github.com/JakeFAU/loc-announcer/internal/runner")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Runner{deps: deps, logger: logger}, nil
}

// Run performs one invocation. Any error aborts the run; a state write that
// already happened is not rolled back.
func (r *Runner) Run(ctx context.Context) (Result, error) {
	start := r.deps.Clock.Now()
	runID, err := r.deps.IDs.NewID()
	if err != nil {
		r.logger.Warn("Failed to generate run id", zap.Error(err))
		runID = "unknown"
	}
	logger := r.logger.With(zap.String("run_id", runID))

	ctx, span := r.deps.Tracer.Start(ctx, "locbot.run", trace.WithAttributes(attribute.String("run_id", runID)))
	defer span.End()

	res, err := r.run(ctx, logger)
	elapsed := r.deps.Clock.Now().Sub(start)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		metrics.ObserveRun("failure", elapsed)
		logger.Error("Run failed", zap.Duration("elapsed", elapsed), zap.Error(err))
		return Result{}, err
	}
	metrics.ObserveRun("success", elapsed)
	return res, nil
}

func (r *Runner) run(ctx context.Context, logger *zap.Logger) (Result, error) {
	var (
		entries []locations.Entry
		prior   state.Seen
	)
	loadCtx, loadSpan := r.deps.Tracer.Start(ctx, "load_inputs")
	fetchGroup, fetchCtx := errgroup.WithContext(loadCtx)
	fetchGroup.Go(func() error {
		var err error
		entries, err = r.deps.Source.Fetch(fetchCtx)
		return err
	})
	fetchGroup.Go(func() error {
		prior = r.deps.State.Read(fetchCtx)
		return nil
	})
	err := fetchGroup.Wait()
	endSpan(loadSpan, err)
	if err != nil {
		return Result{}, fmt.Errorf("load inputs: %w", err)
	}

	detected := r.deps.Detector.Detect(entries, prior)
	observeStats(detected.Stats)
	texts := r.deps.Formatter.FormatAll(detected.Announcements)

	logger.Info("Announcing locations",
		zap.Int("count", len(texts)),
		zap.Int("new", detected.Stats.New),
		zap.Int("updated", detected.Stats.Updated),
	)
	for _, text := range texts {
		logger.Info("Announcement", zap.String("text", text))
	}

	publishCtx, publishSpan := r.deps.Tracer.Start(ctx, "publish",
		trace.WithAttributes(attribute.Int("announcements", len(texts))))
	// No shared cancellation here: a failed delivery must not abort the
	// state write that is already in flight.
	var outputGroup errgroup.Group
	outputGroup.Go(func() error {
		return r.deps.State.Write(publishCtx, detected.Seen)
	})
	outputGroup.Go(func() error {
		return r.deps.Notifier.Send(publishCtx, texts)
	})
	err = outputGroup.Wait()
	endSpan(publishSpan, err)
	if err != nil {
		return Result{}, fmt.Errorf("publish results: %w", err)
	}

	logger.Info("Finished successfully", zap.Int("total_locations", len(entries)))

	pingCtx, pingSpan := r.deps.Tracer.Start(ctx, "heartbeat")
	pong, err := r.deps.Pinger.Ping(pingCtx)
	endSpan(pingSpan, err)
	if err != nil {
		return Result{}, err
	}
	logger.Info("Uptime ping", zap.String("response", pong))

	return Result{StatusCode: http.StatusOK, Body: OKBody}, nil
}

func observeStats(s detector.Stats) {
	metrics.ObserveEntries("new", s.New)
	metrics.ObserveEntries("updated", s.Updated)
	metrics.ObserveEntries("unchanged", s.Unchanged)
	metrics.ObserveEntries("out_of_area", s.OutOfArea)
}

func endSpan(span trace.Span, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	span.End()
}
