package dispatch

import "time"

type ContentType string

const (
	ContentText   ContentType = "text"
	ContentHTML   ContentType = "html"
	ContentCustom ContentType = "custom"
)

// UnknownSubscriber stands in for a missing subscriber id in click URLs.
const UnknownSubscriber = "unknown"

// Request is one normalized dispatch command.
type Request struct {
	CampaignID  string      `json:"campaignId,omitempty"`
	FromName    string      `json:"fromName,omitempty"`
	FromEmail   string      `json:"fromEmail,omitempty"`
	Subject     string      `json:"subject"     validate:"required"`
	ContentType ContentType `json:"contentType,omitempty" validate:"omitempty,oneof=text html custom"`
	TextContent string      `json:"textContent,omitempty"`
	HTMLContent string      `json:"htmlContent,omitempty"`
	Recipients  []Recipient `json:"recipients"  validate:"required,min=1"`
	TrackOpens  bool        `json:"trackOpens"`
	TrackClicks bool        `json:"trackClicks"`
}

type Recipient struct {
	Email        string `json:"email"`
	SubscriberID string `json:"subscriberId,omitempty"`
}

func (r Recipient) subscriberOrUnknown() string {
	if r.SubscriberID == "" {
		return UnknownSubscriber
	}
	return r.SubscriberID
}

// TrackingRecord is written once per instrumented send and later mutated by
// the open/click endpoints.
type TrackingRecord struct {
	TrackingID   string
	CampaignID   string
	SubscriberID string
	Email        string
	Type         string
	SentAt       time.Time
	Opened       bool
	Clicked      bool
}

type CampaignStats struct {
	SentCount   int
	FailedCount int
	Status      string
	SentAt      time.Time
}

type RecipientError struct {
	Email string `json:"email"`
	Error string `json:"error"`
}

type MessageID struct {
	Email     string `json:"email"`
	MessageID string `json:"messageId"`
}

// Result is the outcome of one Dispatch call. Errors and MessageIDs follow the
// order of Request.Recipients.
type Result struct {
	Sent       int              `json:"sent"`
	Failed     int              `json:"failed"`
	Errors     []RecipientError `json:"errors"`
	MessageIDs []MessageID      `json:"messageIds"`
}

// TransportConfig is the provider configuration, loaded once at startup.
type TransportConfig struct {
	APIKey    string
	FromEmail string
	FromName  string
	BaseURL   string
}
