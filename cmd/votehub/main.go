// Command votehub runs the voting API and its maintenance tasks.
//
//	votehub serve            start the HTTP server (default)
//	votehub migrate          create/upgrade the schema and seed vote types
//	votehub recalc <topic>   recompute the cached results of one topic
//	votehub version          print the build version
package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"gorm.io/gorm"

	"github.com/tbourn/votehub-backend/internal/config"
	httpapi "github.com/tbourn/votehub-backend/internal/http"
	"github.com/tbourn/votehub-backend/internal/observability"
	"github.com/tbourn/votehub-backend/internal/repo"
	"github.com/tbourn/votehub-backend/internal/seed"
	"github.com/tbourn/votehub-backend/internal/sysutil"
)

var version = "dev"

var (
	dsnOverride string
	configFile  string
	cfg         config.Config
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		log.Error().Err(err).Msg("votehub")
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:           "votehub",
	Short:         "Topic voting API",
	Long:          "votehub serves topics, votes, cached results and duplicate-topic suggestions over HTTP.",
	Version:       version,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if cmd.Name() == "version" {
			return nil
		}
		// A missing .env is fine; real deployments use the environment.
		_ = godotenv.Load()

		var err error
		cfg, err = config.LoadFile(sysutil.FirstNonEmpty(configFile, os.Getenv("CONFIG_FILE")))
		if err != nil {
			return fmt.Errorf("loading config: %w", err)
		}
		setupLogging(cfg)
		return nil
	},
	RunE: func(cmd *cobra.Command, args []string) error {
		return serveCmd.RunE(cmd, args)
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configFile, "config", "", "YAML config file (defaults to $CONFIG_FILE)")
	rootCmd.PersistentFlags().StringVar(&dsnOverride, "dsn", "", "Database path or URL (overrides DB_PATH / DATABASE_URL)")

	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(migrateCmd)
	rootCmd.AddCommand(recalcCmd)
	rootCmd.AddCommand(versionCmd)
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Println("votehub", version)
	},
}

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Create or upgrade the schema and seed the built-in vote types",
	RunE: func(cmd *cobra.Command, args []string) error {
		db, err := openDB()
		if err != nil {
			return err
		}
		defer closeDB(db)
		return migrate(cmd.Context(), db)
	},
}

var recalcCmd = &cobra.Command{
	Use:   "recalc <topic-id>",
	Short: "Recompute the cached results of a topic",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		db, err := openDB()
		if err != nil {
			return err
		}
		defer closeDB(db)

		row, err := httpapi.NewServices(db).Results.Recalculate(cmd.Context(), args[0])
		if err != nil {
			return fmt.Errorf("recalculating %s: %w", args[0], err)
		}
		enc := json.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent("", "  ")
		return enc.Encode(row)
	},
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP server",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		shutdownOTel, err := observability.SetupOTel(ctx, cfg.OTEL, version)
		if err != nil {
			return fmt.Errorf("setting up tracing: %w", err)
		}
		defer func() {
			sctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := shutdownOTel(sctx); err != nil {
				log.Warn().Err(err).Msg("otel shutdown")
			}
		}()

		db, err := openDB()
		if err != nil {
			return err
		}
		defer closeDB(db)

		if cfg.OTEL.Enabled {
			if err := repo.EnableTracing(db); err != nil {
				return fmt.Errorf("enabling query tracing: %w", err)
			}
		}
		if err := migrate(ctx, db); err != nil {
			return err
		}
		// Deferred after closeDB, so the purge loop is gone before the pool closes.
		stopPurge := startPurge(ctx, db, time.Hour)
		defer stopPurge()

		gin.SetMode(cfg.GinMode)
		r := gin.New()
		httpapi.RegisterRoutes(r, db, cfg)

		srv := &http.Server{
			Addr:              ":" + cfg.Port,
			Handler:           r,
			ReadTimeout:       cfg.ReadTimeout,
			ReadHeaderTimeout: cfg.ReadHeaderTimeout,
			WriteTimeout:      cfg.WriteTimeout,
			IdleTimeout:       cfg.IdleTimeout,
			MaxHeaderBytes:    cfg.MaxHeaderBytes,
		}

		errCh := make(chan error, 1)
		go func() {
			log.Info().Str("addr", srv.Addr).Str("db_driver", cfg.DBDriver).Str("version", version).Msg("http server listening")
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				errCh <- err
			}
			close(errCh)
		}()

		select {
		case err := <-errCh:
			if err != nil {
				return fmt.Errorf("http server: %w", err)
			}
			return nil
		case <-ctx.Done():
		}

		log.Info().Msg("shutting down")
		sctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := srv.Shutdown(sctx); err != nil {
			return fmt.Errorf("graceful shutdown: %w", err)
		}
		return nil
	},
}

func setupLogging(c config.Config) {
	sysutil.SetLogLevel(c.LogLevel)
	zerolog.TimeFieldFormat = time.RFC3339Nano
	if c.LogPretty {
		log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339})
	}
	log.Logger = log.With().Str("service", c.OTEL.ServiceName).Logger()
	// log.Ctx on a context without a request logger falls back to the global one.
	zerolog.DefaultContextLogger = &log.Logger
}

func openDB() (*gorm.DB, error) {
	dsn := sysutil.FirstNonEmpty(dsnOverride, cfg.DSN())
	db, err := repo.Open(cfg.DBDriver, dsn)
	if err != nil {
		return nil, fmt.Errorf("opening %s database: %w", cfg.DBDriver, err)
	}
	return db, nil
}

func closeDB(db *gorm.DB) {
	if sqlDB, err := db.DB(); err == nil {
		_ = sqlDB.Close()
	}
}

func migrate(ctx context.Context, db *gorm.DB) error {
	if err := repo.AutoMigrate(db); err != nil {
		return fmt.Errorf("migrating schema: %w", err)
	}
	n, err := seed.Defaults(ctx, db)
	if err != nil {
		return err
	}
	log.Info().Int("vote_types", n).Msg("schema ready")
	return nil
}

// startPurge runs purgeIdempotency in the background. The returned func
// cancels the loop and waits for it to return; it is safe to call twice.
func startPurge(ctx context.Context, db *gorm.DB, every time.Duration) (stop func()) {
	ctx, cancel := context.WithCancel(ctx)
	done := make(chan struct{})
	go func() {
		defer close(done)
		purgeIdempotency(ctx, db, every)
	}()
	return func() {
		cancel()
		<-done
	}
}

// purgeIdempotency deletes expired idempotency records every interval until
// ctx is done.
func purgeIdempotency(ctx context.Context, db *gorm.DB, every time.Duration) {
	t := time.NewTicker(every)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case now := <-t.C:
			n, err := repo.PurgeExpiredIdempotency(ctx, db, now.UTC())
			if err != nil {
				log.Warn().Err(err).Msg("purge idempotency")
				continue
			}
			if n > 0 {
				log.Debug().Int64("deleted", n).Msg("purged expired idempotency keys")
			}
		}
	}
}
