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

	"github.com/safilab/labsync/internal/config"
	"github.com/safilab/labsync/internal/domain/patient"
	"github.com/safilab/labsync/internal/platform/artifact"
	"github.com/safilab/labsync/internal/platform/middleware"
	"github.com/safilab/labsync/internal/platform/notify"
	"github.com/safilab/labsync/internal/platform/publish"
	"github.com/safilab/labsync/internal/platform/renderer"
	"github.com/safilab/labsync/internal/platform/report"
)

const version = "0.1.0"

func main() {
	rootCmd := &cobra.Command{
		Use:   "labsync-server",
		Short: "Patient record, report artifact and publish synchronization service",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServer()
		},
	}
	rootCmd.AddCommand(serveCmd())
	rootCmd.AddCommand(journalCmd())
	rootCmd.AddCommand(checkCmd())

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP server",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServer()
		},
	}
}

func journalCmd() *cobra.Command {
	var limit int
	cmd := &cobra.Command{
		Use:   "journal",
		Short: "Print recent publish attempts and the current failure streak",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load()
			if err != nil {
				return err
			}
			j, err := publish.OpenJournal(cfg.JournalPath)
			if err != nil {
				return err
			}
			defer j.Close()

			ctx := context.Background()
			entries, err := j.Recent(ctx, limit)
			if err != nil {
				return err
			}
			streak, err := j.FailureStreak(ctx)
			if err != nil {
				return err
			}
			for _, e := range entries {
				status := "ok"
				if !e.OK {
					status = "FAILED"
				}
				fmt.Printf("%s  %-6s  %-40s  %s\n",
					e.CreatedAt.Format(time.RFC3339), status, e.Message, e.Detail)
			}
			fmt.Printf("failure streak: %d\n", streak)
			return nil
		},
	}
	cmd.Flags().IntVar(&limit, "limit", 20, "Number of entries to print")
	return cmd
}

func checkCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "check",
		Short: "Validate the workbook header layout and exit",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load()
			if err != nil {
				return err
			}
			logger := zerolog.New(os.Stdout).With().Timestamp().Logger()
			if _, err := patient.NewWorkbookStore(cfg.WorkbookPath, cfg.SheetName, logger); err != nil {
				return err
			}
			fmt.Printf("workbook %s sheet %q: header layout OK\n", cfg.WorkbookPath, cfg.SheetName)
			return nil
		},
	}
}

func runServer() error {
	// Logger
	logger := zerolog.New(os.Stdout).With().Timestamp().Logger()
	if os.Getenv("ENV") == "development" || os.Getenv("ENV") == "" {
		logger = zerolog.New(zerolog.ConsoleWriter{Out: os.Stdout}).With().Timestamp().Logger()
	}

	// Config
	cfg, err := config.Load()
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to load config")
	}
	if err := cfg.Validate(); err != nil {
		logger.Fatal().Err(err).Msg("invalid config")
	}

	// Record store: validates the workbook header, fails fast on a shifted
	// column.
	store, err := patient.NewWorkbookStore(cfg.WorkbookPath, cfg.SheetName, logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to open record store")
	}
	logger.Info().Str("workbook", cfg.WorkbookPath).Str("sheet", cfg.SheetName).Msg("record store ready")

	// Publish journal
	journal, err := publish.OpenJournal(cfg.JournalPath)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to open publish journal")
	}
	defer journal.Close()

	// Publisher: synchronous path journaled, plus the async queue for
	// fire-and-forget publishes.
	git := publish.NewGit(cfg.GitDir, cfg.GitRemote, cfg.GitBranch)
	pub := publish.Journaled{Pub: git, Journal: journal}
	queue := publish.NewQueue(git, journal, logger)
	defer queue.Close()

	// Renderer + orchestrator
	rend, err := renderer.NewCommand(cfg.RendererArgv(), cfg.GitDir)
	if err != nil {
		logger.Fatal().Err(err).Msg("invalid renderer command")
	}
	locator := artifact.New(cfg.ArtifactRoot, cfg.PublicHost)
	orch := report.NewOrchestrator(rend, locator, pub, logger)

	svc := patient.NewService(store, locator, orch, queue, notify.SystemOpener{}, cfg.DashboardURL, logger)
	handler := patient.NewHandler(svc, journal)

	// Echo server
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	e.Use(middleware.Recovery(logger))
	e.Use(middleware.RequestID())
	e.Use(middleware.Logger(logger))
	e.Use(echomw.CORSWithConfig(echomw.CORSConfig{
		AllowOrigins: cfg.CORSOrigins,
		AllowMethods: []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete},
		AllowHeaders: []string{"Content-Type", "X-Request-ID"},
	}))

	e.GET("/health", func(c echo.Context) error {
		return c.JSON(http.StatusOK, map[string]string{
			"status":  "ok",
			"version": version,
		})
	})

	handler.RegisterRoutes(e.Group("/api/v1"))

	addr := ":" + cfg.Port
	go func() {
		logger.Info().Str("addr", addr).Msg("server started")
		if err := e.Start(addr); err != nil && err != http.ErrServerClosed {
			logger.Fatal().Err(err).Msg("server failed")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info().Msg("shutting down server")
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := e.Shutdown(ctx); err != nil {
		logger.Fatal().Err(err).Msg("server shutdown failed")
	}
	logger.Info().Msg("server stopped")
	return nil
}
