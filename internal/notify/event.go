// Package notify carries side-channel notification events (document renewal
// reminders, rejected document checks) to the in-process hub, the message
// broker and the delivery workers.
package notify

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"thittam.org/internal/ids"
	"thittam.org/internal/obs"
)

// Channel is the delivery channel a citizen is notified on.
type Channel string

const (
	ChannelEmail Channel = "email"
	ChannelPhone Channel = "phone"
)

// Event is one notification.
type Event struct {
	ID       string    `json:"id"`
	Channel  Channel   `json:"channel"`
	Headline string    `json:"headline"`
	Detail   string    `json:"detail"`
	Session  string    `json:"session"`
	To       string    `json:"to,omitempty"`
	At       time.Time `json:"at"`
}

// Publisher accepts events for delivery.
type Publisher interface {
	Publish(ctx context.Context, evt Event) error
}

// PublisherFunc adapts a function to Publisher.
type PublisherFunc func(ctx context.Context, evt Event) error

func (f PublisherFunc) Publish(ctx context.Context, evt Event) error { return f(ctx, evt) }

// Discard drops every event.
var Discard Publisher = PublisherFunc(func(context.Context, Event) error { return nil })

func stamp(evt Event) Event {
	if evt.ID == "" {
		evt.ID = ids.New()
	}
	if evt.At.IsZero() {
		evt.At = time.Now().UTC()
	}
	return evt
}

// DocumentRejected is raised when a document fails its quality check.
func DocumentRejected(session, document, feedback string) Event {
	return stamp(Event{
		Channel:  ChannelEmail,
		Headline: "Document needs attention",
		Detail:   fmt.Sprintf("Your %s could not be verified: %s", document, feedback),
		Session:  session,
	})
}

// RenewalDue is raised when a stored document is due for renewal.
func RenewalDue(session, document string) Event {
	return stamp(Event{
		Channel:  ChannelPhone,
		Headline: "Document renewal due",
		Detail:   fmt.Sprintf("Your %s is due for renewal. Renew it at the nearest e-Sevai centre to keep your applications active.", document),
		Session:  session,
	})
}

// Sink is a named Publisher inside a Multi.
type Sink struct {
	Name string
	Publisher
}

// Multi publishes to every sink. A failing sink does not stop the others; the
// errors are joined.
type Multi []Sink

func (m Multi) Publish(ctx context.Context, evt Event) error {
	evt = stamp(evt)
	var errs []error
	for _, s := range m {
		if s.Publisher == nil {
			continue
		}
		if err := s.Publisher.Publish(ctx, evt); err != nil {
			obs.Logger().Warn("notification sink failed",
				slog.String("sink", s.Name), slog.String("event_id", evt.ID), obs.Err(err))
			errs = append(errs, fmt.Errorf("%s: %w", s.Name, err))
			continue
		}
		obs.CountNotification(string(evt.Channel), s.Name)
	}
	return errors.Join(errs...)
}
