package worker

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/Mutter0815/CampaignDispatch/internal/campaign"
	"github.com/Mutter0815/CampaignDispatch/internal/dispatch"
	"github.com/Mutter0815/CampaignDispatch/pkg/logx"
	"github.com/Mutter0815/CampaignDispatch/pkg/metrics"
	"github.com/Mutter0815/CampaignDispatch/pkg/rmq"
)

var errBadJob = errors.New("unusable dispatch job")

type dispatcherAPI interface {
	Dispatch(ctx context.Context, req dispatch.Request) (dispatch.Result, error)
}

// Worker runs queued dispatch jobs one at a time. Every job is acked once it
// has been processed: a dispatch is never retried as a whole, the caller
// re-submits the failed recipients if it wants to.
type Worker struct {
	Dispatcher dispatcherAPI
	Cons       *rmq.Consumer
	// Timeout bounds one job. Zero means no deadline.
	Timeout time.Duration
}

func New(d dispatcherAPI, cons *rmq.Consumer, timeout time.Duration) *Worker {
	return &Worker{Dispatcher: d, Cons: cons, Timeout: timeout}
}

func (w *Worker) Run(ctx context.Context) error {
	msgs, err := w.Cons.Consume()
	if err != nil {
		return err
	}
	logx.L().Infow("worker_started", "queue", w.Cons.Queue)

	for {
		select {
		case <-ctx.Done():
			logx.L().Infow("worker_stopping")
			return ctx.Err()

		case d, ok := <-msgs:
			if !ok {
				logx.L().Warnw("consumer_channel_closed")
				return nil
			}

			start := time.Now()
			metrics.WorkerJobsConsumed.Inc()

			if _, err := w.Process(ctx, d.Body); err != nil {
				metrics.WorkerJobsDropped.Inc()
				logx.L().Warnw("job_dropped", "message_id", d.MessageId, "error", err)
			}
			if err := d.Ack(false); err != nil {
				logx.L().Errorw("job_ack_error", "message_id", d.MessageId, "error", err)
			}
			metrics.WorkerProcessDuration.Observe(time.Since(start).Seconds())
		}
	}
}

// Process decodes one job and dispatches it. An error means the job could
// not be dispatched at all; recipient failures are part of the result.
func (w *Worker) Process(ctx context.Context, body []byte) (dispatch.Result, error) {
	var job campaign.JobMessage
	if err := json.Unmarshal(body, &job); err != nil {
		return dispatch.Result{}, fmt.Errorf("%w: %v", errBadJob, err)
	}
	fields := []any{
		"job_id", job.JobID,
		"campaign_id", job.Request.CampaignID,
		"recipients", len(job.Request.Recipients),
		"queued_for", time.Since(job.EnqueuedAt).String(),
	}
	logx.L().Infow("job_received", fields...)

	if w.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, w.Timeout)
		defer cancel()
	}

	res, err := w.Dispatcher.Dispatch(ctx, job.Request)
	if err != nil {
		return dispatch.Result{}, fmt.Errorf("dispatch job %s: %w", job.JobID, err)
	}

	logx.L().Infow("job_done", append(fields, "sent", res.Sent, "failed", res.Failed)...)
	for _, e := range res.Errors {
		logx.L().Infow("job_recipient_failed", "job_id", job.JobID, "email", e.Email, "error", e.Error)
	}
	return res, nil
}
