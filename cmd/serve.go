package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"canter/config"
	"canter/db"
	"canter/feeds"
	"canter/ratelimit"
	"canter/server"

	log "github.com/sirupsen/logrus"
	"github.com/urfave/cli/v2"
)

func serveCmd() *cli.Command {
	return &cli.Command{
		Name:  "serve",
		Usage: "Serve the canter feeds",
		Description: `Starts the feed HTTP server.

		Serves the home and explore feeds from the configured SQLite database
		and records served pages in the per-viewer seen ledger. The seen
		ledger is swept periodically according to the retention policy.`,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "database",
				Aliases: []string{"d"},
				Value:   "feed.db",
				Usage:   "SQLite database file location",
				EnvVars: []string{"FEED_DATABASE"},
			},
			&cli.StringFlag{
				Name:    "config",
				Aliases: []string{"c"},
				Usage:   "TOML config file location",
				EnvVars: []string{"FEED_CONFIG"},
			},
			&cli.IntFlag{
				Name:    "port",
				Aliases: []string{"p"},
				Usage:   "Port to listen on, overrides the config file",
				EnvVars: []string{"FEED_PORT"},
			},
			&cli.StringFlag{
				Name:    "redis",
				Usage:   "Redis address for a shared rate-limit counter; empty uses the in-memory counter",
				EnvVars: []string{"FEED_REDIS"},
			},
			&cli.StringFlag{
				Name:    "redis-password",
				Usage:   "Redis password",
				EnvVars: []string{"FEED_REDIS_PASSWORD"},
			},
		},
		Action: func(ctx *cli.Context) error {
			cfg, err := config.LoadConfig(ctx.String("config"))
			if err != nil {
				return err
			}
			if port := ctx.Int("port"); port != 0 {
				cfg.Server.Port = port
			}

			store, err := db.NewStore(ctx.String("database"))
			if err != nil {
				return err
			}
			defer store.Close()

			sweepCtx, cancelSweeps := context.WithCancel(context.Background())
			defer cancelSweeps()

			limiter, err := buildLimiter(sweepCtx, ctx.String("redis"), ctx.String("redis-password"), cfg)
			if err != nil {
				return err
			}

			app := server.Server(&server.ServerConfig{
				Feeds:   feeds.NewService(store, cfg),
				Limiter: limiter,
				Config:  cfg,
				Health:  store.Ping,
			})

			// Periodic seen-ledger retention sweep
			go func() {
				interval := time.Duration(cfg.Seen.SweepIntervalMinutes) * time.Minute
				ticker := time.NewTicker(interval)
				defer ticker.Stop()
				for {
					select {
					case <-sweepCtx.Done():
						return
					case <-ticker.C:
						if err := store.Tidy(sweepCtx, cfg.Seen.RetentionDays); err != nil {
							log.WithFields(log.Fields{"error": err}).Error("Seen ledger sweep failed")
						}
					}
				}
			}()

			// Graceful shutdown
			quit := make(chan os.Signal, 1)
			signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
			done := make(chan struct{})

			go func() {
				<-quit
				log.Info("Gracefully shutting down...")
				if err := app.ShutdownWithTimeout(30 * time.Second); err != nil {
					log.WithFields(log.Fields{"error": err}).Error("Shutdown error")
				}
				cancelSweeps()
				close(done)
			}()

			log.WithFields(log.Fields{
				"port": cfg.Server.Port,
			}).Info("Starting feed server")
			if err := app.Listen(fmt.Sprintf(":%d", cfg.Server.Port)); err != nil {
				return err
			}

			<-done
			log.Info("Done!")
			return nil
		},
	}
}

// buildLimiter picks the rate-limit counter implementation: redis when
// an address is configured, in-memory with a background sweep
// otherwise.
func buildLimiter(ctx context.Context, redisAddr string, redisPassword string, cfg *config.Config) (ratelimit.Counter, error) {
	windowSize := time.Duration(cfg.RateLimit.WindowSeconds) * time.Second

	if redisAddr != "" {
		log.WithFields(log.Fields{"addr": redisAddr}).Info("Using redis rate-limit counter")
		return ratelimit.NewRedis(redisAddr, redisPassword, 0)
	}

	memory := ratelimit.NewMemory()
	memory.StartSweep(ctx, windowSize)
	return memory, nil
}
