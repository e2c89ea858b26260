package dispatch

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/Mutter0815/CampaignDispatch/pkg/logx"
	"github.com/Mutter0815/CampaignDispatch/pkg/metrics"
)

const (
	DefaultSendTimeout  = 10 * time.Second
	defaultStatsTimeout = 5 * time.Second

	StatusSent = "sent"
)

// Dispatcher runs one campaign send: every recipient is instrumented, rate
// gated and handed to the transport, and failures stay with their recipient.
type Dispatcher struct {
	cfg          TransportConfig
	transport    Transport
	store        TrackingStore
	limiter      Limiter
	workers      int
	sendTimeout  time.Duration
	statsTimeout time.Duration
	log          *zap.SugaredLogger
	now          func() time.Time
	newID        func() string

	instr *Instrumenter
}

type Option func(*Dispatcher)

// WithStore enables open tracking records and campaign stats.
func WithStore(s TrackingStore) Option { return func(d *Dispatcher) { d.store = s } }

func WithLimiter(l Limiter) Option { return func(d *Dispatcher) { d.limiter = l } }

// WithWorkers sets how many recipients are processed at once. The limiter
// stays shared, so throughput never exceeds its rate.
func WithWorkers(n int) Option { return func(d *Dispatcher) { d.workers = n } }

func WithSendTimeout(t time.Duration) Option { return func(d *Dispatcher) { d.sendTimeout = t } }

func WithLogger(l *zap.SugaredLogger) Option { return func(d *Dispatcher) { d.log = l } }

func WithClock(now func() time.Time) Option { return func(d *Dispatcher) { d.now = now } }

func WithIDGenerator(fn func() string) Option { return func(d *Dispatcher) { d.newID = fn } }

func New(cfg TransportConfig, tr Transport, opts ...Option) *Dispatcher {
	d := &Dispatcher{
		cfg:          cfg,
		transport:    tr,
		workers:      1,
		sendTimeout:  DefaultSendTimeout,
		statsTimeout: defaultStatsTimeout,
		now:          time.Now,
	}
	for _, opt := range opts {
		opt(d)
	}
	if d.log == nil {
		d.log = logx.L()
	}
	if d.limiter == nil {
		d.limiter = NewIntervalLimiter(DefaultSendInterval)
	}
	if d.workers < 1 {
		d.workers = 1
	}
	if d.sendTimeout <= 0 {
		d.sendTimeout = DefaultSendTimeout
	}

	d.instr = NewInstrumenter(cfg.BaseURL, d.store, d.log)
	d.instr.now = d.now
	if d.newID != nil {
		d.instr.newID = d.newID
	}
	return d
}

// Ready reports ErrConfiguration when no message can be sent at all.
func (d *Dispatcher) Ready() error {
	if d.transport == nil || strings.TrimSpace(d.cfg.APIKey) == "" {
		return ErrConfiguration
	}
	return nil
}

// Instrumenter exposes the tracking URL builder used by this dispatcher.
func (d *Dispatcher) Instrumenter() *Instrumenter { return d.instr }

type outcome struct {
	messageID string
	err       error
}

// Dispatch sends req to every recipient and returns the per-recipient
// outcome. Only ErrConfiguration and ErrValidation are returned as errors;
// in both cases nothing was sent. Cancelling ctx stops new sends, the
// remaining recipients are reported as failed.
func (d *Dispatcher) Dispatch(ctx context.Context, req Request) (Result, error) {
	if err := d.Ready(); err != nil {
		metrics.DispatchRunsTotal.WithLabelValues("unconfigured").Inc()
		return Result{}, err
	}
	if err := req.Validate(); err != nil {
		metrics.DispatchRunsTotal.WithLabelValues("invalid").Inc()
		return Result{}, err
	}

	start := time.Now()
	content := Content{
		CampaignID:  req.CampaignID,
		HTML:        req.HTMLContent,
		Text:        req.TextContent,
		TrackOpens:  req.TrackOpens,
		TrackClicks: req.TrackClicks,
	}
	if textOnly(req) {
		// the HTML body never ships, so it is neither instrumented nor tracked
		content.HTML = ""
	}
	from := FormatFrom(d.cfg, req)

	d.log.Infow("dispatch_start",
		"campaign_id", req.CampaignID,
		"recipients", len(req.Recipients),
		"workers", d.workers,
	)

	outcomes := make([]outcome, len(req.Recipients))
	if d.workers == 1 {
		for i, rcpt := range req.Recipients {
			outcomes[i] = d.deliver(ctx, req, content, from, rcpt)
		}
	} else {
		var g errgroup.Group
		g.SetLimit(d.workers)
		for i, rcpt := range req.Recipients {
			g.Go(func() error {
				outcomes[i] = d.deliver(ctx, req, content, from, rcpt)
				return nil
			})
		}
		_ = g.Wait()
	}

	res := aggregate(req.Recipients, outcomes)
	d.finalize(ctx, req.CampaignID, res)

	metrics.DispatchRunsTotal.WithLabelValues("completed").Inc()
	metrics.DispatchDuration.Observe(time.Since(start).Seconds())
	d.log.Infow("dispatch_done",
		"campaign_id", req.CampaignID,
		"sent", res.Sent,
		"failed", res.Failed,
		"duration", time.Since(start).String(),
	)
	return res, nil
}

func (d *Dispatcher) deliver(ctx context.Context, req Request, content Content, from string, rcpt Recipient) outcome {
	fields := []any{"campaign_id", req.CampaignID, "email", rcpt.Email}

	out := d.attempt(ctx, req, content, from, rcpt)
	if out.err != nil {
		metrics.SendsTotal.WithLabelValues("failed").Inc()
		d.log.Infow("send_failed", append(fields, "error", out.err)...)
		return out
	}
	metrics.SendsTotal.WithLabelValues("sent").Inc()
	d.log.Debugw("send_success", append(fields, "message_id", out.messageID)...)
	return out
}

func (d *Dispatcher) attempt(ctx context.Context, req Request, content Content, from string, rcpt Recipient) outcome {
	if err := ctx.Err(); err != nil {
		return outcome{err: fmt.Errorf("dispatch aborted: %w", err)}
	}

	body, err := d.instr.Instrument(ctx, content, rcpt)
	if err != nil {
		return outcome{err: err}
	}

	if err := d.limiter.Wait(ctx); err != nil {
		return outcome{err: fmt.Errorf("dispatch aborted: %w", err)}
	}

	sendCtx, cancel := context.WithTimeout(ctx, d.sendTimeout)
	defer cancel()

	start := time.Now()
	id, err := d.transport.Send(sendCtx, BuildEnvelope(req, from, rcpt.Email, body))
	metrics.SendDuration.Observe(time.Since(start).Seconds())
	if err != nil {
		if errors.Is(sendCtx.Err(), context.DeadlineExceeded) && ctx.Err() == nil {
			return outcome{err: fmt.Errorf("send timed out after %s: %w", d.sendTimeout, err)}
		}
		return outcome{err: err}
	}
	return outcome{messageID: id}
}

func aggregate(recipients []Recipient, outcomes []outcome) Result {
	res := Result{
		Errors:     []RecipientError{},
		MessageIDs: []MessageID{},
	}
	for i, out := range outcomes {
		email := recipients[i].Email
		if out.err != nil {
			res.Failed++
			res.Errors = append(res.Errors, RecipientError{Email: email, Error: out.err.Error()})
			continue
		}
		res.Sent++
		res.MessageIDs = append(res.MessageIDs, MessageID{Email: email, MessageID: out.messageID})
	}
	return res
}

// finalize writes the campaign counters once. It runs on a context detached
// from the caller's cancellation so an aborted run still records its counts.
func (d *Dispatcher) finalize(ctx context.Context, campaignID string, res Result) {
	if campaignID == "" || d.store == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), d.statsTimeout)
	defer cancel()

	stats := CampaignStats{
		SentCount:   res.Sent,
		FailedCount: res.Failed,
		Status:      StatusSent,
		SentAt:      d.now(),
	}
	if err := d.store.UpdateCampaignStats(ctx, campaignID, stats); err != nil {
		metrics.TrackingWriteErrors.WithLabelValues("update_stats").Inc()
		d.log.Warnw("campaign_stats_write_error", "campaign_id", campaignID, "error", err)
	}
}
