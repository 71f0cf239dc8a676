package notify

import (
	"context"
	"errors"
	"fmt"
	"html"
	"log/slog"
	"net/mail"

	"github.com/sendgrid/rest"
	"github.com/sendgrid/sendgrid-go"
	sgmail "github.com/sendgrid/sendgrid-go/helpers/mail"

	"thittam.org/internal/obs"
)

// ErrNoRecipient is returned for e-mail events without a usable address.
var ErrNoRecipient = errors.New("notify: event has no e-mail recipient")

// SendGridMailer delivers e-mail channel events through the SendGrid v3 API.
type SendGridMailer struct {
	key      string
	from     *sgmail.Email
	host     string
	endpoint string
}

// NewSendGridMailer builds a mailer. host may be empty for the public API.
func NewSendGridMailer(apiKey, fromName, fromAddress, host string) *SendGridMailer {
	return &SendGridMailer{
		key:      apiKey,
		from:     sgmail.NewEmail(fromName, fromAddress),
		host:     host,
		endpoint: "/v3/mail/send",
	}
}

// Recipient picks the address for evt: To when set, else the session
// identifier when it is an e-mail address.
func Recipient(evt Event) (string, bool) {
	for _, candidate := range []string{evt.To, evt.Session} {
		if candidate == "" {
			continue
		}
		if addr, err := mail.ParseAddress(candidate); err == nil {
			return addr.Address, true
		}
	}
	return "", false
}

func (m *SendGridMailer) Send(ctx context.Context, evt Event) error {
	to, ok := Recipient(evt)
	if !ok {
		return ErrNoRecipient
	}
	msg := sgmail.NewSingleEmail(m.from, evt.Headline, sgmail.NewEmail("", to), evt.Detail, "<p>"+html.EscapeString(evt.Detail)+"</p>")

	req := sendgrid.GetRequest(m.key, m.endpoint, m.host)
	req.Method = rest.Post
	req.Body = sgmail.GetRequestBody(msg)
	resp, err := sendgrid.MakeRequestWithContext(ctx, req)
	if err != nil {
		return fmt.Errorf("sendgrid: %w", err)
	}
	if resp.StatusCode >= 300 {
		return fmt.Errorf("sendgrid: status %d: %s", resp.StatusCode, resp.Body)
	}
	return nil
}

// Dispatcher routes consumed events to a channel-specific sender. Phone events
// are logged when no SMS sender is configured.
type Dispatcher struct {
	Email func(ctx context.Context, evt Event) error
	Phone func(ctx context.Context, evt Event) error
}

func (d Dispatcher) Handle(ctx context.Context, evt Event) error {
	var send func(context.Context, Event) error
	switch evt.Channel {
	case ChannelEmail:
		send = d.Email
	case ChannelPhone:
		send = d.Phone
	default:
		return fmt.Errorf("notify: unknown channel %q", evt.Channel)
	}
	if send == nil {
		obs.Logger().Info("notification not delivered, channel has no sender",
			slog.String("event_id", evt.ID), slog.String("channel", string(evt.Channel)),
			slog.String("session", evt.Session), slog.String("headline", evt.Headline))
		return nil
	}
	if err := send(ctx, evt); err != nil {
		return err
	}
	obs.CountNotification(string(evt.Channel), "delivery")
	return nil
}
