package cli

import (
	"context"
	"fmt"
	"os/signal"
	"sync"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/techaura/aurabot/internal/classify"
	"github.com/techaura/aurabot/internal/config"
	"github.com/techaura/aurabot/internal/engine"
	"github.com/techaura/aurabot/internal/gateway"
	"github.com/techaura/aurabot/internal/logging"
	"github.com/techaura/aurabot/internal/render"
	"github.com/techaura/aurabot/internal/store"
	"github.com/techaura/aurabot/internal/techaura"
)

// logSender stands in for a message transport. Channel bridges run as
// separate processes and pick outbound messages off the log/event feed;
// wiring one in-process is deliberately out of scope here.
type logSender struct {
	log *logging.Logger
}

func newLogSender(log *logging.Logger) *logSender {
	return &logSender{log: log.Sub("sender")}
}

func (s *logSender) Send(ctx context.Context, contact, content, channel string) error {
	s.log.Info().
		Str("contact", contact).
		Str("channel", channel).
		Int("bytes", len(content)).
		Msg("outbound follow-up")
	return nil
}

func newServeCmd() *cobra.Command {
	var (
		port int
		bind string
	)

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the follow-up engine and the operational gateway",
		Args:  cobra.NoArgs,
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

			issues := config.Validate(&cfg)
			if len(issues) > 0 {
				for _, issue := range issues {
					log.Error().Str("path", issue.Path).Msg(issue.Message)
				}
				return fmt.Errorf("config validation failed with %d issue(s)", len(issues))
			}

			// The flag wins over the file for log level.
			if logLevel == "" {
				log = logging.New(nil, cfg.Logging.Level, cfg.Logging.Style)
			}

			if err := paths.EnsureDirs(); err != nil {
				return err
			}

			var mirror engine.Mirror
			if cfg.Store.Backend != "none" {
				dbPath := paths.DBPath(cfg.Store.Path)
				db, err := store.Open(dbPath, log)
				if err != nil {
					return fmt.Errorf("opening database: %w", err)
				}
				defer db.Close()
				mirror = store.NewSQLiteMirror(db)
			} else {
				log.Info().Msg("session mirror disabled; state is memory-only")
			}

			eng := engine.New(
				engine.FromConfig(cfg.Engine),
				classify.NewKeyword(),
				render.NewCatalog("TechAura"),
				newLogSender(log),
				mirror,
				log,
			)

			// Block until SIGINT/SIGTERM
			ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			if cfg.TechAura.BaseURL != "" {
				client, err := techaura.New(cfg.TechAura.BaseURL, cfg.TechAura.APIKey, log)
				if err != nil {
					return err
				}
				if ok, err := client.Health(ctx); err != nil {
					log.Warn().Err(err).Msg("techaura backend unreachable")
				} else if ok {
					log.Info().Msg("techaura backend reachable")
				}
			}

			var wg sync.WaitGroup
			wg.Add(1)
			go func() {
				defer wg.Done()
				eng.Run(ctx)
			}()

			if cfg.Gateway.Enabled {
				gw := gateway.New(cfg.Gateway, eng, log)
				wg.Add(1)
				go func() {
					defer wg.Done()
					if err := gw.Start(ctx); err != nil {
						log.Error().Err(err).Msg("gateway server failed")
						stop()
					}
				}()
			}

			log.Info().Msg("aurabot running")
			wg.Wait()
			return nil
		},
	}

	cmd.Flags().IntVar(&port, "port", 0, "gateway port (overrides config)")
	cmd.Flags().StringVar(&bind, "bind", "", "gateway bind mode: loopback or lan (overrides config)")
	return cmd
}
