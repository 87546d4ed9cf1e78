//
// Tencent is pleased to support the open source community by making trpc-agent-go available.
//
// Copyright (C) 2025 Tencent.  All rights reserved.
//
// trpc-agent-go is licensed under the Apache License Version 2.0.
//
//

package compaction

import (
	"context"
	"math"

	"github.com/streetrace-ai/streetrace-go/agent"
	"github.com/streetrace-ai/streetrace-go/event"
	"github.com/streetrace-ai/streetrace-go/log"
	"github.com/streetrace-ai/streetrace-go/model"
	"github.com/streetrace-ai/streetrace-go/session"
)

// TokenCounter estimates the token footprint of text. Implementations
// fall back to a length heuristic when encoding fails.
type TokenCounter interface {
	CountText(text string) int
}

// Runner wraps an agent run with token-aware compaction: it forwards
// every event downstream while accumulating a running token estimate,
// and when the estimate crosses the threshold at a safe point, aborts
// the inner run, compacts the session and restarts the agent with a
// continuation message.
type Runner struct {
	strategy  Strategy
	maxTokens int
	counter   TokenCounter
	service   session.Service
}

// Option configures a Runner.
type Option func(*options)

type options struct {
	strategy  Strategy
	maxTokens int
	modelName string
	counter   TokenCounter
	service   session.Service
}

var defaultOptions = options{}

// WithStrategy sets the compaction strategy. A Runner without a
// strategy forwards events untouched.
func WithStrategy(s Strategy) Option {
	return func(o *options) { o.strategy = s }
}

// WithMaxTokens overrides the context window size.
func WithMaxTokens(maxTokens int) Option {
	return func(o *options) { o.maxTokens = maxTokens }
}

// WithModelName selects the context window by model identifier when no
// explicit max is set.
func WithModelName(name string) Option {
	return func(o *options) { o.modelName = name }
}

// WithTokenCounter sets the estimator for events without usage data.
func WithTokenCounter(c TokenCounter) Option {
	return func(o *options) { o.counter = c }
}

// WithService sets the session service used to refetch and persist the
// session around a compaction.
func WithService(svc session.Service) Option {
	return func(o *options) { o.service = svc }
}

// NewRunner creates a compaction runner.
func NewRunner(opts ...Option) *Runner {
	cfg := defaultOptions
	for _, opt := range opts {
		if opt != nil {
			opt(&cfg)
		}
	}
	maxTokens := cfg.maxTokens
	if maxTokens <= 0 {
		maxTokens = model.ContextWindow(cfg.modelName)
	}
	return &Runner{
		strategy:  cfg.strategy,
		maxTokens: maxTokens,
		counter:   cfg.counter,
		service:   cfg.service,
	}
}

// Threshold is the running-token level that triggers compaction.
func (r *Runner) Threshold() int {
	ratio := DefaultThresholdRatio
	if r.strategy != nil {
		ratio = r.strategy.ThresholdRatio()
	}
	return int(math.Floor(float64(r.maxTokens) * ratio))
}

// Run executes the agent, restarting it after each compaction. The
// returned channel carries every event of every inner run in order and
// closes when the final run completes.
func (r *Runner) Run(ctx context.Context, ag agent.Agent, inv *agent.Invocation) (<-chan *event.Event, error) {
	if r.strategy == nil {
		return ag.Run(ctx, inv)
	}
	out := make(chan *event.Event, 64)
	go func() {
		defer close(out)
		r.run(ctx, ag, inv, out)
	}()
	return out, nil
}

func (r *Runner) run(ctx context.Context, ag agent.Agent, inv *agent.Invocation, out chan<- *event.Event) {
	threshold := r.Threshold()
	running := r.EstimateSession(inv.Session)
	message := inv.Message

	for {
		crossed, ok := r.runOnce(ctx, ag, inv.Clone(agent.WithMessage(message)), out, threshold, &running)
		if !ok || !crossed {
			return
		}
		sess, err := r.refetch(ctx, inv.Session)
		if err != nil {
			log.Errorf("compaction: refetch session failed: %v", err)
			return
		}
		compacted, err := r.strategy.Compact(ctx, sess)
		if err != nil {
			log.Errorf("compaction: strategy %s failed: %v", r.strategy.Name(), err)
			return
		}
		if r.service != nil {
			persisted, err := r.service.ReplaceEvents(ctx, compacted, compacted.Events)
			if err != nil {
				log.Errorf("compaction: persist compacted session failed: %v", err)
				return
			}
			compacted = persisted
		}
		inv.Session = compacted
		running = r.EstimateSession(compacted)
		continuation := model.NewUserMessage(ContinuationMessage)
		message = &continuation
		log.Infof("compaction: session %s rewritten with strategy %s, estimate now %d tokens",
			compacted.ID, r.strategy.Name(), running)
	}
}

// runOnce streams one inner run. It returns crossed=true when the run
// was aborted for compaction, and ok=false when the downstream consumer
// went away.
func (r *Runner) runOnce(ctx context.Context, ag agent.Agent, inv *agent.Invocation, out chan<- *event.Event, threshold int, running *int) (crossed, ok bool) {
	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	ch, err := ag.Run(runCtx, inv)
	if err != nil {
		log.Errorf("compaction: agent run failed to start: %v", err)
		return false, false
	}
	lastWasToolCall := false
	for e := range ch {
		*running += r.EstimateEvent(e)
		if !agent.EmitEvent(ctx, out, e) {
			cancel()
			drain(ch)
			return false, false
		}
		lastWasToolCall = e.HasFunctionCall()
		if *running >= threshold && !lastWasToolCall {
			cancel()
			drain(ch)
			return true, true
		}
	}
	return false, true
}

// EstimateEvent returns the event's authoritative token count when
// usage metadata is present, otherwise a tokenizer estimate of its
// text.
func (r *Runner) EstimateEvent(e *event.Event) int {
	if e.Usage != nil {
		return e.Usage.Total()
	}
	return r.estimateText(e.Text())
}

// EstimateSession sums per-event estimates over the session.
func (r *Runner) EstimateSession(sess *session.Session) int {
	if sess == nil {
		return 0
	}
	total := 0
	for i := range sess.Events {
		total += r.EstimateEvent(&sess.Events[i])
	}
	return total
}

func (r *Runner) estimateText(text string) int {
	if r.counter != nil {
		return r.counter.CountText(text)
	}
	return len(text) / 4
}

func (r *Runner) refetch(ctx context.Context, sess *session.Session) (*session.Session, error) {
	if r.service == nil {
		return sess, nil
	}
	fresh, err := r.service.GetSession(ctx, session.Key{
		AppName:   sess.AppName,
		UserID:    sess.UserID,
		SessionID: sess.ID,
	})
	if err != nil {
		return nil, err
	}
	if fresh == nil {
		return sess, nil
	}
	return fresh, nil
}

func drain(ch <-chan *event.Event) {
	for range ch {
	}
}
