package cmd

import (
	"context"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/robalobadob/rings/assets"
	"github.com/robalobadob/rings/internal/db"
	"github.com/robalobadob/rings/internal/httpserver"
	"github.com/robalobadob/rings/internal/presets"
	"github.com/robalobadob/rings/internal/solver"
	"github.com/robalobadob/rings/internal/store"
)

func init() {
	rootCmd.AddCommand(&cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API",
		Run:   runServe,
	})
}

func runServe(cmd *cobra.Command, args []string) {
	cfg := loadConfig()

	if err := presets.Init(); err != nil {
		log.Fatal().Err(err).Msg("failed to load presets")
	}
	conn, err := db.OpenMigrated(cfg.DBPath, assets.Migrations())
	if err != nil {
		log.Fatal().Err(err).Str("path", cfg.DBPath).Msg("failed to open database")
	}
	defer conn.Close()

	var backend solver.Backend = solver.Local{Timeout: cfg.Solver.Timeout}
	if cfg.Solver.URL != "" {
		backend = solver.NewHTTP(cfg.Solver.URL, cfg.Solver.Timeout)
		log.Info().Str("url", cfg.Solver.URL).Msg("using remote solver")
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	mem := store.NewMemoryStore()
	defer mem.CloseAll()
	go mem.RunSweeper(ctx, time.Minute, cfg.SessionTTL)

	srv := httpserver.New(cfg, mem, conn, solver.NewGateway(backend))
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			log.Warn().Err(err).Msg("shutdown")
		}
	}()

	log.Info().Str("port", cfg.Port).Msg("starting rings server")
	if err := srv.Start(":" + cfg.Port); err != nil {
		log.Fatal().Err(err).Msg("server exited")
	}
}
