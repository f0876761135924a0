package main

import (
	"encoding/json"
	"fmt"
	"net/http"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/formforge/formforge/internal/api"
	"github.com/formforge/formforge/internal/config"
	"github.com/formforge/formforge/internal/db"
	"github.com/formforge/formforge/internal/middleware"
)

var (
	configPath string
	debug      bool
)

func main() {
	root := &cobra.Command{
		Use:   "formforge",
		Short: "FormForge form builder server",
	}
	root.PersistentFlags().StringVar(&configPath, "config", "", "path to YAML config file")
	root.PersistentFlags().BoolVar(&debug, "debug", false, "enable debug logging")
	root.AddCommand(serveCmd(), migrateCmd(), seedCmd())
	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newLogger() (*zap.Logger, error) {
	zcfg := zap.NewProductionConfig()
	if debug {
		zcfg.Level = zap.NewAtomicLevelAt(zapcore.DebugLevel)
	}
	return zcfg.Build()
}

// openStore builds the persistence layer from config. An empty db_path
// selects the in-memory store; everything is lost on shutdown then.
func openStore(cfg config.Config, logger *zap.Logger) (api.Store, error) {
	if cfg.DBPath == "" {
		logger.Warn("no db_path configured, using in-memory store")
		return api.NewMemoryStore(), nil
	}
	sqlDB, err := db.Open(cfg.DBPath)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	if err := db.RunMigrations(sqlDB, cfg.MigrationsDir); err != nil {
		return nil, fmt.Errorf("run migrations: %w", err)
	}
	return db.NewStore(sqlDB, logger)
}

func serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP server",
		RunE: func(cmd *cobra.Command, args []string) error {
			logger, err := newLogger()
			if err != nil {
				return err
			}
			defer func() { _ = logger.Sync() }()

			cfg, err := config.Load(configPath)
			if err != nil {
				return err
			}
			store, err := openStore(cfg, logger)
			if err != nil {
				return err
			}

			mux := http.NewServeMux()
			api.NewRouter(store, logger).Register(mux)
			mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
				w.Header().Set("Content-Type", "application/json")
				_ = json.NewEncoder(w).Encode(map[string]any{"ok": true, "name": "FormForge API"})
			})
			if cfg.StaticDir != "" {
				mux.Handle("/", http.FileServer(http.Dir(cfg.StaticDir)))
			}

			handler := middleware.NoStore(middleware.SecureHeaders(middleware.CORS(middleware.WithAuth(mux))))
			logger.Info("listening", zap.String("addr", cfg.Addr), zap.String("db", cfg.DBPath))
			return http.ListenAndServe(cfg.Addr, handler)
		},
	}
}

func migrateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Apply database migrations and exit",
		RunE: func(cmd *cobra.Command, args []string) error {
			logger, err := newLogger()
			if err != nil {
				return err
			}
			defer func() { _ = logger.Sync() }()

			cfg, err := config.Load(configPath)
			if err != nil {
				return err
			}
			if cfg.DBPath == "" {
				return fmt.Errorf("migrate requires a db_path")
			}
			sqlDB, err := db.Open(cfg.DBPath)
			if err != nil {
				return err
			}
			defer func() { _ = sqlDB.Close() }()
			if err := db.RunMigrations(sqlDB, cfg.MigrationsDir); err != nil {
				return err
			}
			logger.Info("migrations applied", zap.String("db", cfg.DBPath))
			return nil
		},
	}
}
