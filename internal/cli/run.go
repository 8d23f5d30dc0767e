package cli

import (
	"context"
	"errors"
	"fmt"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/soyeahso/cordbridge/internal/bridge"
	"github.com/soyeahso/cordbridge/internal/config"
	"github.com/soyeahso/cordbridge/internal/eventloop"
	"github.com/soyeahso/cordbridge/internal/gateway"
	"github.com/soyeahso/cordbridge/internal/hooks"
	"github.com/soyeahso/cordbridge/internal/lifecycle"
	"github.com/soyeahso/cordbridge/internal/logging"
	"github.com/soyeahso/cordbridge/internal/normalize"
	"github.com/soyeahso/cordbridge/internal/remote"
	"github.com/soyeahso/cordbridge/internal/remote/discord"
	"github.com/soyeahso/cordbridge/internal/remote/irc"
	"github.com/soyeahso/cordbridge/internal/store"
	"github.com/soyeahso/cordbridge/internal/version"
)

const shutdownTimeout = 10 * time.Second

func newRunCmd() *cobra.Command {
	var (
		port int
		bind string
	)

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Connect to the chat service and serve the UI gateway",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(paths.Config)
			if err != nil {
				return err
			}
			if port != 0 {
				cfg.Gateway.Port = port
			}
			if bind != "" {
				cfg.Gateway.Bind = bind
			}
			if logLevel != "" {
				cfg.Logging.Level = logLevel
			}

			issues := config.Validate(&cfg)
			if len(issues) > 0 {
				for _, issue := range issues {
					log.Error().Str("path", issue.Path).Msg(issue.Message)
				}
				return fmt.Errorf("config validation failed with %d issue(s)", len(issues))
			}

			if err := paths.EnsureDirs(); err != nil {
				return err
			}

			runLog, closer, err := logging.Open(logging.Options{
				Level: cfg.Logging.Level,
				Style: cfg.Logging.ConsoleStyle,
				File:  cfg.Logging.File,
			})
			if err != nil {
				return err
			}
			defer closer.Close()

			ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			return runBridge(ctx, cfg, runLog)
		},
	}

	cmd.Flags().IntVar(&port, "port", 0, "override gateway port")
	cmd.Flags().StringVar(&bind, "bind", "", "override bind mode (loopback, lan, custom)")

	return cmd
}

// runBridge serves until ctx is cancelled, then drops the session.
func runBridge(ctx context.Context, cfg config.Config, log *logging.Logger) error {
	creds, closer, err := store.OpenCredentials(cfg.Store, paths, log)
	if err != nil {
		return fmt.Errorf("opening credential store: %w", err)
	}
	defer closer.Close()

	dialer, err := newDialer(cfg.Connection, log)
	if err != nil {
		return err
	}

	hookMgr := hooks.NewManager(log)
	if n := hooks.RegisterCommands(hookMgr, cfg.Hooks); n > 0 {
		log.Info().Int("hooks", n).Msg("hook commands registered")
	}

	auth, err := gateway.ResolveAuth(cfg.Gateway.Auth).WithTokenFile(paths.GatewayToken(), true)
	if err != nil {
		return err
	}

	loop := eventloop.New(log)
	srv := gateway.New(cfg.Gateway, log, gateway.WithAuth(auth))
	b := bridge.New(ctx, bridge.Config{
		Exec:         loop,
		Store:        creds,
		Dialer:       dialer,
		Pusher:       srv,
		Windows:      srv.Windows(),
		Hooks:        hookMgr,
		Logger:       log,
		Lifecycle:    lifecycleOptions(cfg.Connection.Retry),
		Format:       formatOptions(cfg.UI),
		HistoryLimit: cfg.Connection.HistoryLimit,
	})
	srv.SetHandler(b)

	// The loop outlives ctx so Stop can still run on it.
	loopCtx, cancelLoop := context.WithCancel(context.Background())
	loopDone := make(chan error, 1)
	go func() { loopDone <- loop.Run(loopCtx) }()

	log.Info().
		Str("version", version.Version).
		Str("provider", cfg.Connection.Provider).
		Str("store", cfg.Store.Driver).
		Msg("starting bridge")
	b.Start()

	serveErr := srv.Start(ctx)

	stopCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := b.Stop(stopCtx); err != nil {
		log.Warn().Err(err).Msg("bridge did not stop cleanly")
	}
	cancelLoop()
	if err := <-loopDone; err != nil && !errors.Is(err, context.Canceled) {
		log.Warn().Err(err).Msg("event loop exited with error")
	}
	return serveErr
}

// newDialer picks the remote adapter for the configured provider.
func newDialer(cfg config.ConnectionConfig, log *logging.Logger) (remote.Dialer, error) {
	switch cfg.Provider {
	case "discord":
		return discord.NewDialer(discord.Options{
			Bot:       cfg.Discord.IsBot(),
			UserAgent: version.UserAgent(),
			Logger:    log,
		}), nil
	case "irc":
		if cfg.IRC == nil {
			return nil, errors.New("connection.irc is required when provider is irc")
		}
		return irc.NewDialer(irc.Options{
			Server:   cfg.IRC.Server,
			Port:     cfg.IRC.Port,
			Nick:     cfg.IRC.Nick,
			Channels: cfg.IRC.Channels,
			TLS:      cfg.IRC.UseTLS,
			SASL:     cfg.IRC.SASL,
			Backlog:  cfg.IRC.Backlog,
			Version:  version.UserAgent(),
			Logger:   log,
		}), nil
	default:
		return nil, fmt.Errorf("unknown provider %q", cfg.Provider)
	}
}

func lifecycleOptions(r config.RetryConfig) lifecycle.Options {
	return lifecycle.Options{
		Ceiling:  r.Ceiling,
		Delay:    r.RetryDelay(),
		MaxDelay: r.MaxDelay(),
		Policy:   r.Policy,
	}
}

func formatOptions(u config.UIConfig) normalize.Options {
	return normalize.Options{
		Layout:   u.TimestampFormat,
		Location: u.Location(),
	}
}
