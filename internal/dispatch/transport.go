package dispatch

import (
	"context"
	"fmt"
)

// Envelope is one fully instrumented message. An empty HTML field means a
// text-only message.
type Envelope struct {
	From    string
	To      string
	Subject string
	HTML    string
	Text    string
}

// Transport delivers one envelope and returns the provider message id.
// Provider failures come back as errors so they can be recorded per recipient.
type Transport interface {
	Send(ctx context.Context, env Envelope) (string, error)
}

// BuildEnvelope applies the content selection rule: explicit text content
// type, or text without HTML, yields a text-only message; otherwise the HTML
// body goes out with the text body attached as a fallback when there is one.
func BuildEnvelope(req Request, from, to string, body Body) Envelope {
	env := Envelope{From: from, To: to, Subject: req.Subject}
	if textOnly(req) {
		env.Text = body.Text
		return env
	}
	env.HTML = body.HTML
	env.Text = body.Text
	return env
}

func textOnly(req Request) bool {
	return req.ContentType == ContentText || (req.HTMLContent == "" && req.TextContent != "")
}

// FormatFrom renders the sender, request values taking precedence over the
// configured defaults.
func FormatFrom(cfg TransportConfig, req Request) string {
	name, email := cfg.FromName, cfg.FromEmail
	if req.FromName != "" {
		name = req.FromName
	}
	if req.FromEmail != "" {
		email = req.FromEmail
	}
	if name == "" {
		return email
	}
	return fmt.Sprintf("%s <%s>", name, email)
}
