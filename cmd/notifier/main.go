// Command notifier consumes citizen notifications from the broker and delivers
// the e-mail channel through SendGrid.
package main

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/redis/go-redis/v9"

	"thittam.org/internal/config"
	"thittam.org/internal/notify"
	"thittam.org/internal/obs"
	"thittam.org/internal/profile"
)

// withRecipient fills To from the citizen's stored e-mail address when the
// event does not carry one.
func withRecipient(store profile.Store, send func(context.Context, notify.Event) error) func(context.Context, notify.Event) error {
	return func(ctx context.Context, evt notify.Event) error {
		if _, ok := notify.Recipient(evt); !ok && store != nil {
			if p, err := store.Load(ctx, evt.Session); err == nil && p.Email != "" {
				evt.To = p.Email
			}
		}
		err := send(ctx, evt)
		if errors.Is(err, notify.ErrNoRecipient) {
			obs.Logger().Info("notification dropped, no e-mail on file",
				slog.String("event_id", evt.ID), slog.String("session", evt.Session))
			return nil
		}
		return err
	}
}

func openStore(cfg *config.Config) (profile.Store, func(), error) {
	switch cfg.Store.Driver {
	case config.DriverRedis:
		rdb := redis.NewClient(&redis.Options{Addr: cfg.Redis.Addr, Password: cfg.Redis.Password, DB: cfg.Redis.DB})
		return profile.NewRedisStore(rdb, cfg.Redis.Prefix), func() { _ = rdb.Close() }, nil
	case config.DriverPostgres:
		pg, err := profile.OpenPG(cfg.Postgres.DSN)
		if err != nil {
			return nil, func() {}, err
		}
		return pg, func() { _ = pg.Close() }, nil
	}
	// An in-memory store lives in the API process only.
	return nil, func() {}, nil
}

func main() {
	cfg := config.MustLoad()
	log := obs.SetupLogger(cfg.Env, os.Stdout)

	if cfg.AMQP.URL == "" {
		log.Error("AMQP_URL is required")
		os.Exit(1)
	}

	store, closeStore, err := openStore(cfg)
	if err != nil {
		log.Error("open profile store", obs.Err(err))
		os.Exit(1)
	}
	defer closeStore()

	var dispatch notify.Dispatcher
	if cfg.Mail.SendGridKey != "" {
		mailer := notify.NewSendGridMailer(cfg.Mail.SendGridKey, cfg.Mail.FromName, cfg.Mail.FromAddress, cfg.Mail.SendGridURL)
		dispatch.Email = withRecipient(store, mailer.Send)
	} else {
		log.Warn("SENDGRID_API_KEY is not set, e-mail notifications are only logged")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	consumer := &notify.Consumer{
		URL:      cfg.AMQP.URL,
		Queue:    cfg.AMQP.Queue,
		Prefetch: 10,
		Handle:   dispatch.Handle,
	}
	log.Info("notifier started", slog.String("queue", cfg.AMQP.Queue))
	if err := consumer.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		log.Error("consumer stopped", obs.Err(err))
		os.Exit(1)
	}
	log.Info("notifier stopped")
}
