package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
)

var syncCmd = &cobra.Command{
	Use:   "sync",
	Short: "Run one drain of the sync queue",
	RunE: func(cmd *cobra.Command, args []string) error {
		a := newApp()
		defer a.close()

		if err := a.engine.SyncOfflineChanges(cmd.Context()); err != nil {
			return err
		}
		st := a.engine.Status()
		fmt.Printf("queued=%d dead=%d last_sync=%s\n", st.QueuedCount, st.DeadLetterCount, st.LastSyncTime)
		return nil
	},
}

var refreshFlag bool

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run the sync daemon (periodic drains plus reconnect drains)",
	RunE: func(cmd *cobra.Command, args []string) error {
		a := newApp()
		defer a.close()

		ctx, cancel := context.WithCancel(cmd.Context())
		defer cancel()

		if refreshFlag {
			if err := a.engine.Refresh(ctx); err != nil {
				a.logger.Warnf("initial refresh failed: %v", err)
			}
		}

		go a.observer.Run(ctx)
		go a.engine.Run(ctx)
		a.logger.Infof("sync daemon started, interval %s", a.cfg.Sync.Interval())

		quit := make(chan os.Signal, 1)
		signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
		select {
		case <-quit:
		case <-ctx.Done():
		}
		return nil
	},
}

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show aggregate sync status",
	RunE: func(cmd *cobra.Command, args []string) error {
		a := newApp()
		defer a.close()

		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(a.engine.Status())
	},
}

var queueCmd = &cobra.Command{
	Use:   "queue",
	Short: "List pending sync-queue items",
	RunE: func(cmd *cobra.Command, args []string) error {
		a := newApp()
		defer a.close()

		items, err := a.store.GetSyncQueue()
		if err != nil {
			return err
		}
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(items)
	},
}

var loginCmd = &cobra.Command{
	Use:   "login <token>",
	Short: "Persist the bearer token used for sync",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a := newApp()
		defer a.close()

		if !a.store.Ready() {
			return fmt.Errorf("cannot persist token: %w", a.store.InitErr())
		}
		if err := a.store.SetAuthToken(args[0]); err != nil {
			return err
		}
		fmt.Println("token saved")
		return nil
	},
}

func init() {
	runCmd.Flags().BoolVar(&refreshFlag, "refresh", false, "hydrate local store from the server before starting")
}
