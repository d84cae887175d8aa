package cli

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"deckgenius/internal/broadcast"
	"deckgenius/internal/config"
	"deckgenius/internal/db"
	"deckgenius/internal/handlers"
	"deckgenius/internal/models"
	"deckgenius/internal/notify"
	"deckgenius/internal/poller"
	"deckgenius/internal/queue"
	"deckgenius/internal/services"
	"deckgenius/internal/synth"
	"deckgenius/internal/window"
)

const (
	presenterURL    = "/?role=presenter"
	shutdownTimeout = 10 * time.Second
	eventBuffer     = 256
)

func newServeCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the presentation server",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			manager, logger, err := opts.loadConfig()
			if err != nil {
				return err
			}
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return serve(ctx, manager, logger)
		},
	}
}

func selectorFor(p config.PlaybackConfig) synth.Selector {
	return synth.Selector{
		WelcomeIndex:   p.WelcomeIndex,
		TemplateIndex:  p.TemplateIndex,
		AlternateIndex: p.AlternateTemplateIndex,
		Column:         p.SelectorColumn,
		Value:          p.SelectorValue,
	}
}

func settingsFor(p config.PlaybackConfig) services.PlaybackSettings {
	return services.PlaybackSettings{
		AutoplayDuration:   p.AutoplayDuration,
		TransitionDuration: p.TransitionDuration,
		Selector:           selectorFor(p),
	}
}

func resolverFor(f config.FeedConfig) (queue.Resolver, error) {
	policy, err := queue.ParsePolicy(f.Policy)
	if err != nil {
		return queue.Resolver{}, err
	}
	return queue.Resolver{IdentityField: f.IdentityField, Policy: policy, FlagField: f.FlagField}, nil
}

// newPublisher connects the broker when one is configured. A broker that is
// down at startup disables publishing instead of failing the server.
func newPublisher(b config.BrokerConfig, logger zerolog.Logger) notify.Publisher {
	if b.URL == "" {
		return notify.Nop{}
	}
	rmq, err := notify.NewRabbitMQPublisher(b.URL, b.Exchange, b.RoutingKey, logger)
	if err != nil {
		logger.Warn().Err(err).Msg("broker unavailable, presented rows will not be published")
		return notify.Nop{}
	}
	return notify.NewAsync(rmq, eventBuffer, logger)
}

func serve(ctx context.Context, manager *config.Manager, logger zerolog.Logger) error {
	cfg := manager.Get()

	database, err := db.Open(cfg.Database.Path, logger)
	if err != nil {
		return fmt.Errorf("failed to initialize database: %w", err)
	}
	defer database.Close()

	resolver, err := resolverFor(cfg.Feed)
	if err != nil {
		return err
	}
	store := queue.NewStore(resolver, logger)

	deck, err := services.NewDeckStore(cfg.Deck.Path, cfg.Deck.Title, logger)
	if err != nil {
		return err
	}

	hub := broadcast.NewHub(0)
	defer hub.Close()

	wsService := services.NewWebSocketService(hub, models.ChannelName, logger)
	windows := window.NewManager(window.Config{
		PollInterval: cfg.Playback.WindowPollInterval,
		OpenTimeout:  cfg.Playback.WindowOpenTimeout,
		PresenterURL: presenterURL,
	}, wsService, nil, logger)

	publisher := newPublisher(cfg.Broker, logger)
	defer publisher.Close()

	history := services.NewHistoryService(database, logger)
	defer history.Close()
	session := services.NewSession(services.SessionDeps{
		Deck:      deck,
		Store:     store,
		Hub:       hub,
		Windows:   windows,
		History:   history,
		Publisher: publisher,
		Logger:    logger,
	}, settingsFor(cfg.Playback))

	if cfg.Database.RestoreHistory {
		if _, err := session.RestoreHistory(); err != nil {
			logger.Warn().Err(err).Msg("starting without presented history")
		}
	}

	feed := poller.New(poller.Config{
		URL:      cfg.Feed.URL,
		Interval: cfg.Feed.Interval,
		Timeout:  cfg.Feed.Timeout,
	}, store, logger, poller.WithNotifier(session))

	manager.OnConfigChange(func(c *config.Config) {
		session.SetPlayback(settingsFor(c.Playback))
		logger.Info().Dur("autoplay", c.Playback.AutoplayDuration).Msg("playback settings reloaded")
	})
	manager.Watch()

	deck.OnChange(func(doc models.Document) {
		session.Notify("info", fmt.Sprintf("Presentation %q updated", doc.Title))
	})

	router := handlers.SetupRoutes(handlers.Handlers{
		Presentation: handlers.NewPresentationHandler(deck),
		Queue:        handlers.NewQueueHandler(session, feed, history),
		Playback:     handlers.NewPlaybackHandler(session),
		Remote:       handlers.NewRemoteHandler(session, services.NewRemoteService(database, logger)),
		WebSocket:    wsService.ServeWS,
	}, logger)

	server := &http.Server{
		Addr:              cfg.Server.Addr(),
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}
	if cfg.TLS.Enabled {
		server.TLSConfig = &tls.Config{
			MinVersion: getTLSVersion(cfg.TLS.MinVersion),
		}
	}

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		var err error
		if cfg.TLS.Enabled {
			logger.Info().
				Str("addr", server.Addr).
				Str("cert", cfg.TLS.CertFile).
				Str("min_version", cfg.TLS.MinVersion).
				Msg("starting HTTPS server")
			err = server.ListenAndServeTLS(cfg.TLS.CertFile, cfg.TLS.KeyFile)
		} else {
			logger.Info().Str("addr", server.Addr).Msg("starting HTTP server")
			logger.Warn().Msg("HTTP mode is not recommended for production")
			err = server.ListenAndServe()
		}
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	})

	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		wsService.CloseAll()
		return server.Shutdown(shutdownCtx)
	})

	g.Go(func() error { return ignoreCanceled(feed.Run(gctx)) })
	g.Go(func() error { return deck.Watch(gctx) })
	g.Go(func() error { return session.Run(gctx) })

	err = g.Wait()
	logger.Info().Msg("server stopped")
	return err
}

func ignoreCanceled(err error) error {
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

// getTLSVersion converts string version to tls.Version constant
func getTLSVersion(version string) uint16 {
	switch version {
	case "1.0":
		return tls.VersionTLS10
	case "1.1":
		return tls.VersionTLS11
	case "1.2":
		return tls.VersionTLS12
	case "1.3":
		return tls.VersionTLS13
	default:
		return tls.VersionTLS12
	}
}
