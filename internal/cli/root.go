// Package cli is the tasksync command surface: task CRUD against the local
// store plus sync controls.
package cli

import (
	"net/http"
	"time"

	"github.com/spf13/cobra"

	"tasksync/internal/api"
	"tasksync/internal/config"
	"tasksync/internal/connectivity"
	"tasksync/internal/engine"
	"tasksync/internal/logging"
	"tasksync/internal/store"
)

var rootCmd = &cobra.Command{
	Use:           "tasksync",
	Short:         "Offline-first task client",
	Long:          `Tasksync keeps a durable local copy of your tasks, applies every change locally first, and syncs pending mutations to the server whenever it is reachable.`,
	Version:       "0.1.0",
	SilenceUsage:  true,
	SilenceErrors: false,
}

func init() {
	rootCmd.AddCommand(createCmd)
	rootCmd.AddCommand(updateCmd)
	rootCmd.AddCommand(deleteCmd)
	rootCmd.AddCommand(listCmd)
	rootCmd.AddCommand(getCmd)
	rootCmd.AddCommand(syncCmd)
	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(statusCmd)
	rootCmd.AddCommand(queueCmd)
	rootCmd.AddCommand(loginCmd)
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}

// app wires the session-owned services: one store, one client, one
// observer, one engine. Nothing here is a package-level singleton so tests
// and daemons can hold independent instances.
type app struct {
	cfg      config.Config
	logger   *logging.Logger
	store    *store.Store
	client   *api.Client
	observer *connectivity.Observer
	engine   *engine.Engine
}

func newApp() *app {
	cfg := config.Load()
	logger := logging.New(cfg.LogLevel)

	st := store.Open(cfg.Sync.DatabasePath)
	if !st.Init() {
		logger.Warnf("local storage unavailable, running degraded: %v", st.InitErr())
	}

	httpClient := &http.Client{Timeout: 30 * time.Second}
	client := api.NewClient(httpClient, cfg.Sync.BaseURL, func() string {
		token, _ := st.AuthToken()
		return token
	})
	obs := connectivity.NewObserver(true, client.Healthz, cfg.Sync.ProbeInterval(), logger)
	eng := engine.New(st, client, obs, engine.RetryPolicy{
		MaxAttempts: cfg.Sync.MaxAttempts,
		Backoff:     cfg.Sync.Backoff(),
	}, cfg.Sync.Interval(), logger)

	return &app{cfg: cfg, logger: logger, store: st, client: client, observer: obs, engine: eng}
}

func (a *app) close() {
	_ = a.store.Close()
}
