package messaging

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/twilio/twilio-go"
	twilioapi "github.com/twilio/twilio-go/rest/api/v2010"
)

// TwilioService sends messages through the Twilio Messaging API.
type TwilioService struct {
	client *twilio.RestClient
	from   string
}

// TwilioOpts holds Twilio configuration.
type TwilioOpts struct {
	AccountSID string
	AuthToken  string
	FromNumber string
}

// NewTwilioService creates a Twilio-backed messaging service.
func NewTwilioService(opts TwilioOpts) (*TwilioService, error) {
	if opts.AccountSID == "" || opts.AuthToken == "" {
		return nil, fmt.Errorf("twilio credentials not set")
	}
	if opts.FromNumber == "" {
		return nil, fmt.Errorf("twilio from number not set")
	}
	client := twilio.NewRestClientWithParams(twilio.ClientParams{
		Username: opts.AccountSID,
		Password: opts.AuthToken,
	})
	slog.Debug("TwilioService configured", "from", opts.FromNumber)
	return &TwilioService{client: client, from: opts.FromNumber}, nil
}

// SendMessage delivers one message to the recipient's number.
func (s *TwilioService) SendMessage(ctx context.Context, to, body string) error {
	params := &twilioapi.CreateMessageParams{}
	params.SetTo(to)
	params.SetFrom(s.from)
	params.SetBody(body)

	resp, err := s.client.Api.CreateMessage(params)
	if err != nil {
		slog.Error("TwilioService.SendMessage failed", "error", err, "to", to)
		return fmt.Errorf("failed to send message to %s: %w", to, err)
	}
	sid := ""
	if resp.Sid != nil {
		sid = *resp.Sid
	}
	slog.Info("TwilioService.SendMessage succeeded", "to", to, "sid", sid)
	return nil
}
