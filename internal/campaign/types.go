package campaign

import (
	"time"

	"github.com/Mutter0815/CampaignDispatch/internal/dispatch"
)

type DispatchResp struct {
	Success    bool                      `json:"success"`
	Sent       int                       `json:"sent"`
	Failed     int                       `json:"failed"`
	MessageIDs []dispatch.MessageID      `json:"messageIds"`
	Errors     []dispatch.RecipientError `json:"errors"`
}

func NewDispatchResp(res dispatch.Result) DispatchResp {
	return DispatchResp{
		Success:    true,
		Sent:       res.Sent,
		Failed:     res.Failed,
		MessageIDs: res.MessageIDs,
		Errors:     res.Errors,
	}
}

type ErrorResp struct {
	Success bool   `json:"success"`
	Error   string `json:"error"`
}

type QueuedResp struct {
	Success    bool   `json:"success"`
	Queued     bool   `json:"queued"`
	JobID      string `json:"jobId"`
	Recipients int    `json:"recipients"`
}

// JobMessage is what the API publishes for the sender worker.
type JobMessage struct {
	JobID      string           `json:"job_id"`
	EnqueuedAt time.Time        `json:"enqueued_at"`
	Request    dispatch.Request `json:"request"`
}
