package dispatch

import (
	"context"
	"fmt"
	"net/url"
	"regexp"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/Mutter0815/CampaignDispatch/pkg/metrics"
)

// TrackingStore persists tracking state. Implementations live outside this
// package; every call made through it is best-effort.
type TrackingStore interface {
	CreateTrackingRecord(ctx context.Context, rec TrackingRecord) error
	UpdateCampaignStats(ctx context.Context, campaignID string, stats CampaignStats) error
}

var (
	hrefPattern = regexp.MustCompile(`href="(https?://[^"]*)"`)
	bodyClose   = regexp.MustCompile(`(?i)</body\s*>`)
)

// Content is the campaign wide part of a message.
type Content struct {
	CampaignID  string
	HTML        string
	Text        string
	TrackOpens  bool
	TrackClicks bool
}

// Body is what actually goes to one recipient.
type Body struct {
	HTML       string
	Text       string
	TrackingID string
}

type Instrumenter struct {
	baseURL string
	store   TrackingStore
	log     *zap.SugaredLogger
	now     func() time.Time
	newID   func() string
}

func NewInstrumenter(baseURL string, store TrackingStore, log *zap.SugaredLogger) *Instrumenter {
	return &Instrumenter{
		baseURL: strings.TrimRight(baseURL, "/"),
		store:   store,
		log:     log,
		now:     time.Now,
		newID:   uuid.NewString,
	}
}

// Instrument prepares the body sent to rcpt. Only a malformed recipient makes
// it fail; a failed tracking write is logged and the send goes ahead. Without
// an HTML body there is nothing to track and no record is written.
func (in *Instrumenter) Instrument(ctx context.Context, c Content, rcpt Recipient) (Body, error) {
	if err := validate.Var(rcpt.Email, "required,email"); err != nil {
		return Body{}, fmt.Errorf("%w: %q is not a valid email address", ErrInvalidRecipient, rcpt.Email)
	}

	out := Body{HTML: c.HTML, Text: c.Text}
	if out.HTML == "" {
		return out, nil
	}

	if c.TrackOpens && in.store != nil && c.CampaignID != "" {
		out.TrackingID = in.newID()
		in.recordSend(ctx, TrackingRecord{
			TrackingID:   out.TrackingID,
			CampaignID:   c.CampaignID,
			SubscriberID: rcpt.SubscriberID,
			Email:        rcpt.Email,
			Type:         "sent",
			SentAt:       in.now(),
		})
		out.HTML = injectBeacon(out.HTML, in.beacon(c.CampaignID, out.TrackingID))
	}
	if c.TrackClicks && c.CampaignID != "" {
		out.HTML = in.rewriteLinks(out.HTML, c.CampaignID, rcpt.subscriberOrUnknown())
	}
	return out, nil
}

func (in *Instrumenter) recordSend(ctx context.Context, rec TrackingRecord) {
	if err := in.store.CreateTrackingRecord(ctx, rec); err != nil {
		metrics.TrackingWriteErrors.WithLabelValues("create_record").Inc()
		in.log.Warnw("tracking_record_write_error",
			"campaign_id", rec.CampaignID,
			"tracking_id", rec.TrackingID,
			"email", rec.Email,
			"error", err,
		)
	}
}

// OpenURL is the beacon image location for one send.
func (in *Instrumenter) OpenURL(campaignID, trackingID string) string {
	return fmt.Sprintf("%s/track/open/%s/%s", in.baseURL, url.PathEscape(campaignID), url.PathEscape(trackingID))
}

// ClickURL is the redirect location that replaces target.
func (in *Instrumenter) ClickURL(campaignID, subscriberID, target string) string {
	return fmt.Sprintf("%s/track/click/%s/%s?url=%s",
		in.baseURL, url.PathEscape(campaignID), url.PathEscape(subscriberID), url.QueryEscape(target))
}

func (in *Instrumenter) beacon(campaignID, trackingID string) string {
	return fmt.Sprintf(`<img src="%s" width="1" height="1" alt="" style="display:none;width:1px;height:1px;border:0" />`,
		in.OpenURL(campaignID, trackingID))
}

func injectBeacon(html, beacon string) string {
	locs := bodyClose.FindAllStringIndex(html, -1)
	if len(locs) == 0 {
		return html + beacon
	}
	at := locs[len(locs)-1][0]
	return html[:at] + beacon + html[at:]
}

func (in *Instrumenter) rewriteLinks(html, campaignID, subscriberID string) string {
	clickPrefix := in.baseURL + "/track/click/"
	return hrefPattern.ReplaceAllStringFunc(html, func(match string) string {
		target := hrefPattern.FindStringSubmatch(match)[1]
		if strings.HasPrefix(target, clickPrefix) {
			return match
		}
		return `href="` + in.ClickURL(campaignID, subscriberID, target) + `"`
	})
}
