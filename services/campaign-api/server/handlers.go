package server

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/Mutter0815/CampaignDispatch/docs"
	"github.com/Mutter0815/CampaignDispatch/internal/campaign"
	"github.com/Mutter0815/CampaignDispatch/internal/dispatch"
	"github.com/Mutter0815/CampaignDispatch/pkg/logx"
	"github.com/Mutter0815/CampaignDispatch/pkg/metrics"
	"github.com/Mutter0815/CampaignDispatch/pkg/rmq"
)

const maxBodyBytes = 10 << 20

var errQueueDisabled = errors.New("dispatch queue is not configured")

type dispatcherAPI interface {
	Ready() error
	Dispatch(ctx context.Context, req dispatch.Request) (dispatch.Result, error)
}

type publisherAPI interface {
	PublishJSON(ctx context.Context, messageID string, body []byte) error
}

type Handlers struct {
	Dispatcher dispatcherAPI
	// Pub is nil when no queue is configured; async dispatch then answers 503.
	Pub publisherAPI
	// Timeout bounds one synchronous dispatch. Zero means no deadline.
	Timeout time.Duration
}

func NewHandlers(d *dispatch.Dispatcher, pub *rmq.Publisher, timeout time.Duration) *Handlers {
	h := &Handlers{Dispatcher: d, Timeout: timeout}
	if pub != nil {
		h.Pub = pub
	}
	return h
}

func (h *Handlers) Healthz(c *gin.Context) {
	c.String(http.StatusOK, "ok")
}

// Dispatch runs the whole campaign send inside the request and answers with
// the per-recipient outcome.
func (h *Handlers) Dispatch(c *gin.Context) {
	if err := h.Dispatcher.Ready(); err != nil {
		h.fail(c, err)
		return
	}
	req, ok := h.readRequest(c)
	if !ok {
		return
	}

	ctx := c.Request.Context()
	if h.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, h.Timeout)
		defer cancel()
	}

	res, err := h.Dispatcher.Dispatch(ctx, req)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, campaign.NewDispatchResp(res))
}

// DispatchAsync validates the request and hands it to the sender worker.
func (h *Handlers) DispatchAsync(c *gin.Context) {
	if h.Pub == nil {
		h.fail(c, errQueueDisabled)
		return
	}
	if err := h.Dispatcher.Ready(); err != nil {
		h.fail(c, err)
		return
	}
	req, ok := h.readRequest(c)
	if !ok {
		return
	}

	job := campaign.JobMessage{
		JobID:      uuid.NewString(),
		EnqueuedAt: time.Now().UTC(),
		Request:    req,
	}
	payload, err := json.Marshal(job)
	if err != nil {
		logx.L().Errorw("job_marshal_error", "campaign_id", req.CampaignID, "error", err)
		c.JSON(http.StatusInternalServerError, campaign.ErrorResp{Error: "publish error"})
		return
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), 5*time.Second)
	defer cancel()
	if err := h.Pub.PublishJSON(ctx, job.JobID, payload); err != nil {
		logx.L().Errorw("publish_job_error", "job_id", job.JobID, "campaign_id", req.CampaignID, "error", err)
		c.JSON(http.StatusBadGateway, campaign.ErrorResp{Error: "queue unavailable"})
		return
	}
	metrics.PublishedJobsTotal.Inc()

	logx.L().Infow("dispatch_job_queued",
		"rid", c.GetString("request_id"),
		"job_id", job.JobID,
		"campaign_id", req.CampaignID,
		"recipients", len(req.Recipients),
	)
	c.JSON(http.StatusAccepted, campaign.QueuedResp{
		Success:    true,
		Queued:     true,
		JobID:      job.JobID,
		Recipients: len(req.Recipients),
	})
}

func (h *Handlers) readRequest(c *gin.Context) (dispatch.Request, bool) {
	body, err := io.ReadAll(io.LimitReader(c.Request.Body, maxBodyBytes))
	if err != nil {
		c.JSON(http.StatusBadRequest, campaign.ErrorResp{Error: "could not read request body"})
		return dispatch.Request{}, false
	}
	req, err := dispatch.Normalize(body)
	if err != nil {
		h.fail(c, err)
		return dispatch.Request{}, false
	}
	return req, true
}

func (h *Handlers) fail(c *gin.Context, err error) {
	status := statusFor(err)
	if status >= http.StatusInternalServerError {
		logx.L().Errorw("dispatch_request_error", "rid", c.GetString("request_id"), "status", status, "error", err)
	}
	c.JSON(status, campaign.ErrorResp{Error: err.Error()})
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, dispatch.ErrValidation):
		return http.StatusBadRequest
	case errors.Is(err, dispatch.ErrConfiguration), errors.Is(err, errQueueDisabled):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

func (h *Handlers) Docs(c *gin.Context) {
	c.Data(http.StatusOK, "text/html; charset=utf-8", docs.CampaignSwaggerHTML)
}

func (h *Handlers) OpenAPI(c *gin.Context) {
	c.Data(http.StatusOK, "application/yaml", docs.CampaignOpenAPI)
}
