package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/spf13/cobra"

	"github.com/terra-clan/apply-wizard/internal/drafts"
)

var (
	purgePrefix  string
	purgeConfirm bool
)

// ErrPurgeUnsupported is returned for backends without bulk deletion
var ErrPurgeUnsupported = errors.New("draft backend does not support purging")

var purgeCmd = &cobra.Command{
	Use:   "purge",
	Short: "Delete all stored drafts",
	Long:  `Delete every stored draft whose key starts with the draft key prefix. Requires --yes.`,
	RunE:  runPurge,
}

func init() {
	purgeCmd.Flags().StringVar(&purgePrefix, "prefix", "", "Key prefix to purge (defaults to DRAFT_KEY_PREFIX)")
	purgeCmd.Flags().BoolVar(&purgeConfirm, "yes", false, "Confirm the deletion")
	rootCmd.AddCommand(purgeCmd)
}

func runPurge(cmd *cobra.Command, _ []string) error {
	if !purgeConfirm {
		return fmt.Errorf("refusing to purge drafts without --yes")
	}

	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	prefix := purgePrefix
	if prefix == "" {
		prefix = cfg.Drafts.KeyPrefix
	}

	ctx, cancel := context.WithTimeout(cmd.Context(), time.Minute)
	defer cancel()

	store, err := openStore(ctx, cfg)
	if err != nil {
		return err
	}
	defer store.Close()

	n, err := purgeDrafts(ctx, store, prefix)
	if err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "purged %d draft(s)\n", n)
	return nil
}

func purgeDrafts(ctx context.Context, store drafts.Store, prefix string) (int, error) {
	if prefix == "" {
		return 0, fmt.Errorf("draft key prefix must not be empty")
	}
	purger, ok := store.(drafts.Purger)
	if !ok {
		return 0, ErrPurgeUnsupported
	}

	n, err := purger.DeletePrefix(ctx, prefix)
	if err != nil {
		return n, fmt.Errorf("failed to purge drafts: %w", err)
	}
	slog.Info("drafts purged", "prefix", prefix, "count", n)
	return n, nil
}
