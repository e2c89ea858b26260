package email

import (
	"context"
	"errors"
	"fmt"

	"github.com/resend/resend-go/v2"

	"github.com/Mutter0815/CampaignDispatch/internal/dispatch"
)

// emailAPI is the part of the Resend client the sender uses.
type emailAPI interface {
	SendWithContext(ctx context.Context, params *resend.SendEmailRequest) (*resend.SendEmailResponse, error)
}

// ResendSender delivers dispatch envelopes through the Resend API.
type ResendSender struct {
	emails emailAPI
}

var _ dispatch.Transport = (*ResendSender)(nil)

func NewResendSender(apiKey string) *ResendSender {
	return &ResendSender{emails: resend.NewClient(apiKey).Emails}
}

func (s *ResendSender) Send(ctx context.Context, env dispatch.Envelope) (string, error) {
	if env.HTML == "" && env.Text == "" {
		return "", errors.New("message has no body")
	}

	params := &resend.SendEmailRequest{
		From:    env.From,
		To:      []string{env.To},
		Subject: env.Subject,
		Html:    env.HTML,
		Text:    env.Text,
	}

	sent, err := s.emails.SendWithContext(ctx, params)
	if err != nil {
		return "", fmt.Errorf("resend send failed: %w", err)
	}
	if sent == nil {
		return "", errors.New("resend send failed: empty response")
	}
	return sent.Id, nil
}
