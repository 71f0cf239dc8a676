package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/errgroup"

	"thittam.org/internal/advisory"
	"thittam.org/internal/auth"
	"thittam.org/internal/config"
	"thittam.org/internal/dashboard"
	"thittam.org/internal/grievance"
	"thittam.org/internal/httpapi"
	"thittam.org/internal/migrate"
	"thittam.org/internal/notify"
	"thittam.org/internal/obs"
	"thittam.org/internal/profile"
	"thittam.org/internal/scheduler"
	"thittam.org/internal/workflow"
)

var (
	version = "0.1.0"
	commit  = "dev"
)

// backends holds what the selected store driver opened.
type backends struct {
	store      profile.Store
	grievances grievance.Store
	rdb        *redis.Client
	probes     []httpapi.Pinger
	closers    []func() error
}

func (b *backends) close() {
	for i := len(b.closers) - 1; i >= 0; i-- {
		if err := b.closers[i](); err != nil {
			obs.Logger().Warn("close backend", obs.Err(err))
		}
	}
}

type redisPinger struct{ rdb *redis.Client }

func (p redisPinger) Ping(ctx context.Context) error { return p.rdb.Ping(ctx).Err() }

func openBackends(ctx context.Context, cfg *config.Config) (*backends, error) {
	b := &backends{}
	if cfg.Redis.Addr != "" {
		b.rdb = redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		b.closers = append(b.closers, b.rdb.Close)
		b.probes = append(b.probes, redisPinger{b.rdb})
	}

	switch cfg.Store.Driver {
	case config.DriverRedis:
		b.store = profile.NewRedisStore(b.rdb, cfg.Redis.Prefix)
		b.grievances = grievance.NewInMemory()
	case config.DriverPostgres:
		if cfg.Postgres.MigrateOnStart {
			if err := migrate.NewManager(cfg.Postgres.DSN).Up(ctx); err != nil {
				return b, fmt.Errorf("migrate: %w", err)
			}
		}
		pg, err := profile.OpenPG(cfg.Postgres.DSN)
		if err != nil {
			return b, fmt.Errorf("open postgres: %w", err)
		}
		b.closers = append(b.closers, pg.Close)
		b.probes = append(b.probes, pg)
		b.store = pg
		b.grievances = grievance.NewPGStore(pg.DB())
	default:
		b.store = profile.NewInMemory()
		b.grievances = grievance.NewInMemory()
	}
	return b, nil
}

func advisoryService(cfg *config.Config, rdb *redis.Client) advisory.Service {
	client, err := advisory.NewGeminiClient(advisory.GeminiConfig{
		BaseURL:  cfg.Advisory.BaseURL,
		APIKey:   cfg.Advisory.APIKey,
		Model:    cfg.Advisory.Model,
		ProModel: cfg.Advisory.ProModel,
		Timeout:  cfg.Advisory.Timeout,
		Rate:     cfg.Advisory.Rate,
		Burst:    cfg.Advisory.Burst,
	})
	if err != nil {
		// Every advisory call answers ErrUnavailable; the rest of the service
		// still works.
		obs.Logger().Warn("advisory service disabled", obs.Err(err))
		return advisory.Func{}
	}
	if rdb == nil || cfg.Advisory.CacheTTL <= 0 {
		return client
	}
	return advisory.NewCached(client, rdb, cfg.Advisory.CacheTTL)
}

func main() {
	cfg := config.MustLoad()
	log := obs.SetupLogger(cfg.Env, os.Stdout)
	obs.Init()
	obs.InitBuildInfo(version, commit)

	if cfg.Auth.Secret != "" {
		auth.Configure(cfg.Auth.Secret)
	} else {
		log.Warn("THITTAM_SESSION_SECRET is not set, sessions cannot be opened")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	be, err := openBackends(ctx, cfg)
	if err != nil {
		be.close()
		log.Error("open backends", obs.Err(err))
		os.Exit(1)
	}
	defer be.close()

	hub := notify.NewHub()
	sinks := notify.Multi{{Name: "hub", Publisher: hub}}
	if cfg.AMQP.URL != "" {
		amqpPub := notify.NewAMQPPublisher(cfg.AMQP.URL, cfg.AMQP.Queue)
		be.closers = append(be.closers, amqpPub.Close)
		sinks = append(sinks, notify.Sink{Name: "amqp", Publisher: amqpPub})
	}

	svc := advisoryService(cfg, be.rdb)
	reg := profile.NewRegistry(be.store, profile.WithReminderDedupe(cfg.Workflow.ReminderDedupe))
	workflows := workflow.NewManager(svc, reg, sinks, workflow.Config{
		ApplyingPad: cfg.Workflow.ApplyingPad,
		Timeout:     cfg.Advisory.Timeout,
		IdleTTL:     cfg.Auth.TokenTTL,
	})
	defer workflows.Close()

	api := httpapi.New(httpapi.Deps{
		Registry:  reg,
		Advisory:  svc,
		Workflows: workflows,
		Grievances: grievance.NewService(svc, be.grievances, grievance.Config{
			Pad:      cfg.Workflow.GrievancePad,
			Timeout:  cfg.Advisory.Timeout,
			DraftTTL: cfg.Auth.TokenTTL,
		}),
		Dashboard:       dashboard.NewService(be.store, sinks),
		Hub:             hub,
		Ready:           httpapi.ReadyProbe{Backends: be.probes},
		Version:         version,
		TokenTTL:        cfg.Auth.TokenTTL,
		AdvisoryTimeout: cfg.Advisory.Timeout,
		RateBurst:       cfg.HTTP.RateBurst,
		RatePerSec:      cfg.HTTP.RatePerSecond,
		CORSOrigin:      cfg.HTTP.CORSOrigin,
	})

	if cfg.Scheduler.Enabled {
		sched, err := scheduler.New(cfg.Scheduler.RenewalSpec, be.store, sinks)
		if err != nil {
			log.Error("renewal scheduler", obs.Err(err))
			os.Exit(1)
		}
		sched.Start()
		log.Info("renewal sweep scheduled", slog.Time("next", sched.Next()))
		defer func() {
			sctx, cancel := context.WithTimeout(context.Background(), cfg.HTTP.ShutdownTimeout)
			defer cancel()
			sched.Stop(sctx)
		}()
	}

	srv := &http.Server{
		Addr:              cfg.HTTP.Addr,
		Handler:           api.Handler(),
		ReadTimeout:       cfg.HTTP.ReadTimeout,
		ReadHeaderTimeout: 15 * time.Second,
		WriteTimeout:      cfg.HTTP.WriteTimeout,
		IdleTimeout:       cfg.HTTP.IdleTimeout,
	}
	grpcSrv := httpapi.NewGRPCServer(httpapi.ReadyProbe{Backends: be.probes}, version)

	grp, grpCtx := errgroup.WithContext(ctx)
	grp.Go(func() error {
		log.Info("starting HTTP server", slog.String("addr", srv.Addr), slog.String("version", version))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http: %w", err)
		}
		return nil
	})
	grp.Go(func() error {
		lis, err := net.Listen("tcp", cfg.GRPC.Addr)
		if err != nil {
			return fmt.Errorf("grpc listen: %w", err)
		}
		log.Info("starting gRPC health server", slog.String("addr", cfg.GRPC.Addr))
		return grpcSrv.Serve(lis)
	})
	grp.Go(func() error {
		<-grpCtx.Done()
		log.Info("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.HTTP.ShutdownTimeout)
		defer cancel()
		grpcSrv.GracefulStop()
		return srv.Shutdown(shutdownCtx)
	})

	if err := grp.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		log.Error("server exited with error", obs.Err(err))
	}
	log.Info("stopped")
}
