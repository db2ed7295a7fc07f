package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/curation/curator/internal/config"
	"github.com/curation/curator/internal/domain/dictionary"
	"github.com/curation/curator/internal/platform/auth"
	"github.com/curation/curator/internal/platform/db"
	"github.com/curation/curator/internal/platform/export"
	"github.com/curation/curator/internal/platform/middleware"
	"github.com/curation/curator/internal/platform/notify"
	"github.com/curation/curator/internal/platform/suggest"
)

// hubNotifier adapts the notify hub to the dictionary.Notifier interface,
// keeping the core free of a platform dependency.
type hubNotifier struct {
	hub *notify.Hub
}

func (n *hubNotifier) Publish(ev dictionary.ChangeEvent) {
	n.hub.Publish(notify.Event{
		Kind:           ev.Kind,
		SessionID:      ev.SessionID,
		DictionaryType: string(ev.Dict),
		Rows:           ev.Rows,
		Matched:        ev.Matched,
	})
}

func main() {
	rootCmd := &cobra.Command{
		Use:   "curator-server",
		Short: "Clinical dictionary curation server",
	}

	rootCmd.AddCommand(serveCmd())
	rootCmd.AddCommand(migrateCmd())
	rootCmd.AddCommand(exportCmd())

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Start the curation API server",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServer()
		},
	}
}

func migrateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Run database migrations",
	}

	upCmd := &cobra.Command{
		Use:   "up",
		Short: "Apply pending migrations",
		RunE: func(cmd *cobra.Command, args []string) error {
			dir, _ := cmd.Flags().GetString("dir")

			cfg, err := config.Load()
			if err != nil {
				return err
			}

			ctx := context.Background()
			pool, err := db.NewPool(ctx, cfg.DatabaseURL, cfg.DBMaxConns, cfg.DBMinConns)
			if err != nil {
				return err
			}
			defer pool.Close()

			migrator := db.NewMigrator(pool, dir)
			count, err := migrator.Up(ctx)
			if err != nil {
				return fmt.Errorf("migration failed: %w", err)
			}

			fmt.Printf("Applied %d migration(s) successfully.\n", count)
			return nil
		},
	}
	upCmd.Flags().String("dir", "./migrations", "Path to migrations directory")
	cmd.AddCommand(upCmd)

	statusCmd := &cobra.Command{
		Use:   "status",
		Short: "Show migration status",
		RunE: func(cmd *cobra.Command, args []string) error {
			dir, _ := cmd.Flags().GetString("dir")

			cfg, err := config.Load()
			if err != nil {
				return err
			}

			ctx := context.Background()
			pool, err := db.NewPool(ctx, cfg.DatabaseURL, cfg.DBMaxConns, cfg.DBMinConns)
			if err != nil {
				return err
			}
			defer pool.Close()

			migrator := db.NewMigrator(pool, dir)
			statuses, err := migrator.Status(ctx)
			if err != nil {
				return fmt.Errorf("failed to get migration status: %w", err)
			}

			fmt.Printf("%-10s %-40s %-10s %s\n", "VERSION", "NAME", "STATUS", "APPLIED AT")
			fmt.Println("---------- ---------------------------------------- ---------- --------------------")
			for _, s := range statuses {
				status := "pending"
				appliedAt := ""
				if s.Applied {
					status = "applied"
					if s.AppliedAt != nil {
						appliedAt = s.AppliedAt.Format("2006-01-02 15:04:05")
					}
				}
				fmt.Printf("%-10d %-40s %-10s %s\n", s.Version, s.Name, status, appliedAt)
			}
			return nil
		},
	}
	statusCmd.Flags().String("dir", "./migrations", "Path to migrations directory")
	cmd.AddCommand(statusCmd)

	return cmd
}

func exportCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "export",
		Short: "Dump the unified row collection for a dictionary type as CSV",
		RunE: func(cmd *cobra.Command, args []string) error {
			typeFlag, _ := cmd.Flags().GetString("type")
			startFlag, _ := cmd.Flags().GetString("start")
			endFlag, _ := cmd.Flags().GetString("end")
			outpatient, _ := cmd.Flags().GetBool("outpatient")
			inpatient, _ := cmd.Flags().GetBool("inpatient")
			outPath, _ := cmd.Flags().GetString("out")

			t := dictionary.Type(typeFlag)
			if !t.Valid() {
				return fmt.Errorf("unknown dictionary type: %q", typeFlag)
			}
			start, err := time.Parse("2006-01-02", startFlag)
			if err != nil {
				return fmt.Errorf("invalid start date: %q", startFlag)
			}
			end, err := time.Parse("2006-01-02", endFlag)
			if err != nil {
				return fmt.Errorf("invalid end date: %q", endFlag)
			}
			if end.Before(start) {
				return fmt.Errorf("end date precedes start date")
			}

			logger := zerolog.New(os.Stderr).With().Timestamp().Logger()

			cfg, err := config.Load()
			if err != nil {
				return err
			}
			cutovers, err := cfg.Cutovers()
			if err != nil {
				return err
			}

			ctx := context.Background()
			pool, err := db.NewPool(ctx, cfg.DatabaseURL, cfg.DBMaxConns, cfg.DBMinConns)
			if err != nil {
				return err
			}
			defer pool.Close()

			resolver := dictionary.NewResolver(cutovers)
			active := resolver.Resolve(t, start, end, dictionary.VisitContext{
				Outpatient: outpatient,
				Inpatient:  inpatient,
			})
			files, err := dictionary.NewPGRowSource(pool, logger).Load(ctx, t, active)
			if err != nil {
				return fmt.Errorf("load %s rows: %w", t, err)
			}
			rows := dictionary.Unify(t, active, files, dictionary.NewStateStore())

			out := os.Stdout
			if outPath != "" {
				f, err := os.Create(outPath)
				if err != nil {
					return fmt.Errorf("create output file: %w", err)
				}
				defer f.Close()
				out = f
			}
			if err := export.NewCSVExporter().Write(out, rows); err != nil {
				return err
			}
			logger.Info().
				Str("type", string(t)).
				Int("rows", len(rows)).
				Msg("export complete")
			return nil
		},
	}
	cmd.Flags().String("type", "", "Dictionary type (dx, medication, lab, location, procedure)")
	cmd.Flags().String("start", "", "Range start date (YYYY-MM-DD)")
	cmd.Flags().String("end", "", "Range end date (YYYY-MM-DD)")
	cmd.Flags().Bool("outpatient", false, "Include outpatient legacy systems")
	cmd.Flags().Bool("inpatient", false, "Include inpatient legacy systems")
	cmd.Flags().String("out", "", "Output file (default stdout)")
	_ = cmd.MarkFlagRequired("type")
	_ = cmd.MarkFlagRequired("start")
	_ = cmd.MarkFlagRequired("end")
	return cmd
}

func runServer() error {
	// Logger
	logger := zerolog.New(os.Stdout).With().Timestamp().Logger()
	if os.Getenv("ENV") == "development" {
		logger = zerolog.New(zerolog.ConsoleWriter{Out: os.Stdout}).With().Timestamp().Logger()
	}

	// Config
	cfg, err := config.Load()
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to load config")
	}
	if err := cfg.Validate(); err != nil {
		logger.Fatal().Err(err).Msg("invalid configuration")
	}
	cutovers, err := cfg.Cutovers()
	if err != nil {
		logger.Fatal().Err(err).Msg("invalid cutover configuration")
	}

	// Database
	ctx := context.Background()
	pool, err := db.NewPool(ctx, cfg.DatabaseURL, cfg.DBMaxConns, cfg.DBMinConns)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to connect to database")
	}
	defer pool.Close()
	logger.Info().Msg("connected to database")

	// Echo server
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	// Global middleware
	e.Use(middleware.Recovery(logger))
	e.Use(middleware.RequestID())
	e.Use(middleware.Logger(logger))
	e.Use(echomw.CORSWithConfig(echomw.CORSConfig{
		AllowOrigins: cfg.CORSOrigins,
		AllowMethods: []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete},
		AllowHeaders: []string{"Authorization", "Content-Type", "X-Request-ID"},
	}))

	// Auth middleware
	if cfg.IsDev() {
		e.Use(auth.DevAuthMiddleware())
	} else {
		e.Use(auth.JWTMiddleware(auth.JWTConfig{
			Issuer:     cfg.AuthIssuer,
			Audience:   cfg.AuthAudience,
			SigningKey: []byte(cfg.JWTSigningKey),
		}))
	}

	// API group with rate limiting
	apiV1 := e.Group("/api/v1")
	rateLimitCfg := middleware.RateLimitConfig{
		RequestsPerSecond: cfg.RateLimitRPS,
		BurstSize:         cfg.RateLimitBurst,
	}
	if rateLimitCfg.RequestsPerSecond <= 0 {
		rateLimitCfg = middleware.DefaultRateLimitConfig()
	}
	apiV1.Use(middleware.RateLimit(rateLimitCfg))

	// State-change hub; rendering/export collaborators subscribe here rather
	// than being invoked by the core.
	hub := notify.NewHub(logger)
	hub.Subscribe(func(ev notify.Event) {
		logger.Info().
			Str("kind", ev.Kind).
			Str("session_id", ev.SessionID).
			Str("type", ev.DictionaryType).
			Int("rows", ev.Rows).
			Int("matched", ev.Matched).
			Msg("curation state changed")
	})

	// Curation sessions
	resolver := dictionary.NewResolver(cutovers)
	source := dictionary.NewPGRowSource(pool, logger)
	manager := dictionary.NewManager(resolver, source, &hubNotifier{hub: hub}, logger)

	var suggester dictionary.Suggester
	if cfg.SuggestURL != "" {
		suggester = suggest.NewClient(cfg.SuggestURL)
	}

	handler := dictionary.NewHandler(manager, suggester, export.NewCSVExporter())
	handler.RegisterRoutes(apiV1)

	// DB health check endpoint
	e.GET("/health/db", db.HealthHandler(pool))

	// Graceful shutdown
	go func() {
		addr := ":" + cfg.Port
		logger.Info().Str("addr", addr).Msg("starting server")
		if err := e.Start(addr); err != nil && err != http.ErrServerClosed {
			logger.Fatal().Err(err).Msg("server error")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info().Msg("shutting down server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := e.Shutdown(shutdownCtx); err != nil {
		logger.Fatal().Err(err).Msg("server shutdown failed")
	}
	logger.Info().Msg("server stopped")
	return nil
}
