// Package mailer delivers digest emails through the Resend HTTP API.
package mailer

import (
	"context"
	"errors"

	"github.com/resend/resend-go/v2"
)

// Mailer sends a single HTML email and returns the provider's delivery id.
type Mailer interface {
	Send(ctx context.Context, from, to, subject, html string) (string, error)
}

// Resend is a Mailer backed by the Resend API.
type Resend struct {
	client *resend.Client
}

// NewResend creates a Resend mailer with the given API key.
func NewResend(apiKey string) *Resend {
	return &Resend{client: resend.NewClient(apiKey)}
}

// Send delivers one email. The provider is treated as opaque: any rejection
// surfaces as the returned error, without internal retries.
func (m *Resend) Send(ctx context.Context, from, to, subject, html string) (string, error) {
	params := &resend.SendEmailRequest{
		From:    from,
		To:      []string{to},
		Subject: subject,
		Html:    html,
	}
	sent, err := m.client.Emails.SendWithContext(ctx, params)
	if err != nil {
		return "", err
	}
	if sent == nil || sent.Id == "" {
		return "", errors.New("mailer: provider returned no delivery id")
	}
	return sent.Id, nil
}
