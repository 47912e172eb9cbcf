package cli

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/m-mizutani/goerr/v2"
	"github.com/urfave/cli/v3"
	"golang.org/x/sync/errgroup"

	"github.com/chapterkit/doorman/pkg/cli/config"
	httpctrl "github.com/chapterkit/doorman/pkg/controller/http"
	"github.com/chapterkit/doorman/pkg/service/audit"
	"github.com/chapterkit/doorman/pkg/service/dispatch"
	"github.com/chapterkit/doorman/pkg/service/rolesync"
	"github.com/chapterkit/doorman/pkg/service/worker"
	"github.com/chapterkit/doorman/pkg/usecase"
	"github.com/chapterkit/doorman/pkg/utils/logging"
)

func cmdServe(version string) *cli.Command {
	var addr string
	var cleanupInterval time.Duration
	var sessionMaxAge time.Duration
	var throttleBurst int
	var throttleInterval time.Duration
	var repoCfg config.Repository
	var slackCfg config.Slack
	var verifierCfg config.Verifier
	var guildCfg config.Guild
	var sentryCfg config.Sentry

	flags := []cli.Flag{
		&cli.StringFlag{
			Name:        "addr",
			Usage:       "HTTP server address",
			Value:       ":8080",
			Sources:     cli.EnvVars("DOORMAN_ADDR"),
			Destination: &addr,
		},
		&cli.DurationFlag{
			Name:        "cleanup-interval",
			Usage:       "Interval between stale session and cache sweeps",
			Value:       5 * time.Minute,
			Sources:     cli.EnvVars("DOORMAN_CLEANUP_INTERVAL"),
			Destination: &cleanupInterval,
		},
		&cli.DurationFlag{
			Name:        "session-max-age",
			Usage:       "Age after which an untouched onboarding session is reaped",
			Value:       worker.DefaultSessionMaxAge,
			Sources:     cli.EnvVars("DOORMAN_SESSION_MAX_AGE"),
			Destination: &sessionMaxAge,
		},
		&cli.IntFlag{
			Name:        "throttle-burst",
			Usage:       "Per-user interaction burst allowance",
			Value:       5,
			Sources:     cli.EnvVars("DOORMAN_THROTTLE_BURST"),
			Destination: &throttleBurst,
		},
		&cli.DurationFlag{
			Name:        "throttle-interval",
			Usage:       "Per-user interaction token refill interval",
			Value:       10 * time.Second,
			Sources:     cli.EnvVars("DOORMAN_THROTTLE_INTERVAL"),
			Destination: &throttleInterval,
		},
	}

	flags = append(flags, repoCfg.Flags()...)
	flags = append(flags, slackCfg.Flags()...)
	flags = append(flags, verifierCfg.Flags()...)
	flags = append(flags, guildCfg.Flags()...)
	flags = append(flags, sentryCfg.Flags()...)

	return &cli.Command{
		Name:    "serve",
		Aliases: []string{"s"},
		Usage:   "Start the webhook server",
		Flags:   flags,
		Action: func(ctx context.Context, c *cli.Command) error {
			if err := sentryCfg.Configure(version); err != nil {
				return err
			}

			guild, err := guildCfg.Configure()
			if err != nil {
				return goerr.Wrap(err, "failed to load guild configuration")
			}

			repo, err := repoCfg.Configure(ctx)
			if err != nil {
				return goerr.Wrap(err, "failed to initialize repository")
			}
			defer func() {
				if err := repo.Close(); err != nil {
					logging.Default().Error("failed to close repository", "error", err.Error())
				}
			}()

			gateway, err := slackCfg.Configure(guild)
			if err != nil {
				return goerr.Wrap(err, "failed to initialize Slack gateway")
			}

			verifier, err := verifierCfg.Configure()
			if err != nil {
				return goerr.Wrap(err, "failed to initialize membership verifier")
			}

			recorder := audit.New(repo.Audit(), gateway, guild.ModeratorChannel, guild.GuildID)
			engine := rolesync.New(gateway, recorder)

			dispatcher := dispatch.New(gateway,
				dispatch.WithThrottle(throttleBurst, 1, throttleInterval),
				dispatch.WithAuditor(recorder),
			)

			uc := usecase.New(repo, gateway, verifier, engine, recorder, guild)
			if err := uc.Register(dispatcher); err != nil {
				return goerr.Wrap(err, "failed to register interaction routes")
			}

			cleanupWorker := worker.NewCleanupWorker(repo, cleanupInterval,
				verifier.Cache(),
				worker.SweepFunc(dispatcher.PruneThrottle),
			).WithSessionMaxAge(sessionMaxAge)
			if err := cleanupWorker.Start(ctx); err != nil {
				return goerr.Wrap(err, "failed to start cleanup worker")
			}

			httpHandler := httpctrl.New(dispatcher, slackCfg.SigningSecret(),
				httpctrl.WithAcceptEmoji(guild.AcceptEmoji))
			server := &http.Server{
				Addr:              addr,
				Handler:           httpHandler,
				ReadHeaderTimeout: 30 * time.Second,
			}

			sigCh := make(chan os.Signal, 1)
			signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)

			group, groupCtx := errgroup.WithContext(ctx)

			group.Go(func() error {
				logging.Default().Info("Starting HTTP server", "addr", addr, "guild", guild.GuildID)
				if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
					return goerr.Wrap(err, "failed to start server")
				}
				return nil
			})

			group.Go(func() error {
				select {
				case sig := <-sigCh:
					logging.Default().Info("Received shutdown signal", "signal", sig)
				case <-groupCtx.Done():
					return nil
				}

				cleanupWorker.Stop()

				shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
				defer cancel()

				if err := server.Shutdown(shutdownCtx); err != nil {
					return goerr.Wrap(err, "failed to shutdown server gracefully")
				}

				logging.Default().Info("Server shutdown completed")
				return nil
			})

			return group.Wait()
		},
	}
}
