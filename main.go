package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/disgoorg/disgo"
	"github.com/disgoorg/disgo/bot"
	"github.com/disgoorg/disgo/gateway"
	"github.com/disgoorg/disgo/handler"
	"github.com/lmittmann/tint"

	"selective-purge/audit"
	"selective-purge/command"
	"selective-purge/config"
	"selective-purge/handlers"
	"selective-purge/metrics"
	"selective-purge/purge"
	"selective-purge/transport"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", tint.Err(err))
		os.Exit(1)
	}
	level, _ := cfg.Level()
	slog.SetDefault(slog.New(tint.NewHandler(os.Stderr, &tint.Options{
		Level:      level,
		TimeFormat: time.DateTime,
	})))
	logger := slog.Default()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	serviceOpts := []purge.Option{
		purge.WithLogger(logger),
		purge.WithBatchSize(cfg.BatchSize),
		purge.WithMaxAge(cfg.MaxMessageAge),
	}

	var history handlers.History
	if cfg.AuditDB != "" {
		store, err := audit.Open(cfg.AuditDB, logger)
		if err != nil {
			slog.Error("error while opening the audit database", tint.Err(err))
			os.Exit(1)
		}
		defer store.Close()
		if cfg.AuditRetention > 0 {
			pruned, err := store.Prune(ctx, time.Now().Add(-cfg.AuditRetention))
			if err != nil {
				slog.Warn("error while pruning the audit log", tint.Err(err))
			} else if pruned > 0 {
				slog.Info("pruned audit log", slog.Int64("entries", pruned))
			}
		}
		serviceOpts = append(serviceOpts, purge.WithAudit(store))
		history = store
	}

	if cfg.MetricsAddr != "" {
		m := metrics.New()
		serviceOpts = append(serviceOpts, purge.WithRecorder(m))
		mux := http.NewServeMux()
		mux.Handle("/metrics", m.Handler())
		server := &http.Server{
			Addr:         cfg.MetricsAddr,
			Handler:      mux,
			ReadTimeout:  10 * time.Second,
			WriteTimeout: 10 * time.Second,
		}
		go func() {
			if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				slog.Error("error while serving metrics", tint.Err(err))
			}
		}()
		defer server.Close()
	}

	// The handler needs the service and the service needs the client's ID, so
	// the router is attached after the client exists.
	var h *handlers.Handler
	client, err := disgo.New(cfg.Token,
		bot.WithGatewayConfigOpts(gateway.WithIntents(gateway.IntentGuilds, gateway.IntentGuildMessages)),
		bot.WithEventListenerFunc(func(e bot.Event) {
			if h != nil {
				h.OnEvent(e)
			}
		}),
	)
	if err != nil {
		slog.Error("error while building disgo client", tint.Err(err))
		os.Exit(1)
	}
	defer client.Close(context.Background())

	discord := transport.NewDiscord(client.Rest())
	service := purge.NewService(discord, discord, append(serviceOpts, purge.WithSelfID(client.ID()))...)
	dispatcher := command.NewDispatcher(service, discord,
		command.WithConfirmation(cfg.RequireConfirmation),
		command.WithStrictHandles(cfg.StrictHandles),
		command.WithRangeOnly(cfg.RangeOnly),
		command.WithClearLimit(cfg.ClearLimit),
		command.WithLogger(logger),
	)
	h = handlers.NewHandler(dispatcher, service, history, logger)

	guildIDs, _ := cfg.GuildIDs()
	if err := handler.SyncCommands(client, handlers.Commands, guildIDs); err != nil {
		slog.Error("error while syncing commands", tint.Err(err))
	}

	if err := client.OpenGateway(ctx); err != nil {
		slog.Error("error while connecting to the gateway", tint.Err(err))
		return
	}

	slog.Info("selective purge bot is now running", slog.Bool("confirmation", cfg.RequireConfirmation), slog.Bool("range_only", cfg.RangeOnly))
	<-ctx.Done()
	slog.Info("shutting down")
}
