package dispatch

import (
	"bytes"
	"encoding/json"
	"errors"
	"strings"

	"github.com/go-playground/validator/v10"
)

var validate = validator.New(validator.WithRequiredStructEnabled())

// Normalize turns a loosely typed request body into a validated Request.
//
// The body may be a plain object, an object whose "data" field holds the real
// payload as an object, or one whose "data" field holds it as a JSON string.
// Unparsable input degrades to an empty object and fields of the wrong type are
// ignored, so the only failure mode is validation.
func Normalize(body []byte) (Request, error) {
	fields := unwrap(body)

	var req Request
	decodeField(fields, "campaignId", &req.CampaignID)
	decodeField(fields, "fromName", &req.FromName)
	decodeField(fields, "fromEmail", &req.FromEmail)
	decodeField(fields, "subject", &req.Subject)
	decodeField(fields, "textContent", &req.TextContent)
	decodeField(fields, "htmlContent", &req.HTMLContent)
	decodeField(fields, "trackOpens", &req.TrackOpens)
	decodeField(fields, "trackClicks", &req.TrackClicks)

	var ct string
	decodeField(fields, "contentType", &ct)
	req.ContentType = parseContentType(ct)

	var raw []json.RawMessage
	decodeField(fields, "recipients", &raw)
	// one entry per element: an undecodable one stays as a zero Recipient and
	// fails at send time with ErrInvalidRecipient
	for _, r := range raw {
		req.Recipients = append(req.Recipients, decodeRecipient(r))
	}

	if err := req.Validate(); err != nil {
		return Request{}, err
	}
	return req, nil
}

// Validate checks the invocation level invariants of a request.
func (r Request) Validate() error {
	if strings.TrimSpace(r.Subject) == "" {
		return invalid("subject is required")
	}
	if err := validate.Struct(r); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) && len(verrs) > 0 {
			switch verrs[0].Field() {
			case "Recipients":
				return invalid("recipients must be a non-empty list")
			case "Subject":
				return invalid("subject is required")
			}
		}
		return invalid(err.Error())
	}
	if r.TextContent == "" && r.HTMLContent == "" {
		return invalid("textContent or htmlContent is required")
	}
	return nil
}

func unwrap(body []byte) map[string]json.RawMessage {
	top := parseObject(body)
	data, ok := top["data"]
	if !ok {
		return top
	}

	data = bytes.TrimSpace(data)
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return map[string]json.RawMessage{}
		}
		return parseObject([]byte(s))
	}
	return parseObject(data)
}

func parseObject(b []byte) map[string]json.RawMessage {
	out := map[string]json.RawMessage{}
	if err := json.Unmarshal(b, &out); err != nil || out == nil {
		return map[string]json.RawMessage{}
	}
	return out
}

func decodeField(fields map[string]json.RawMessage, key string, dst any) {
	raw, ok := fields[key]
	if !ok {
		return
	}
	_ = json.Unmarshal(raw, dst)
}

func decodeRecipient(raw json.RawMessage) Recipient {
	var email string
	if err := json.Unmarshal(raw, &email); err == nil {
		return Recipient{Email: strings.TrimSpace(email)}
	}

	fields := parseObject(raw)
	var r Recipient
	decodeField(fields, "email", &r.Email)
	decodeField(fields, "subscriberId", &r.SubscriberID)
	r.Email = strings.TrimSpace(r.Email)
	return r
}

func parseContentType(s string) ContentType {
	switch ct := ContentType(strings.ToLower(strings.TrimSpace(s))); ct {
	case ContentText, ContentHTML, ContentCustom:
		return ct
	default:
		return ""
	}
}
