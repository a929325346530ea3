package commands

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"
)

var clearCmd = &cobra.Command{
	Use:   "clear",
	Short: "Remove every playground network, proxy and service",
	Long: `Remove every container and network labelled as playground-owned.
Unlabelled Docker resources are never touched.`,
	RunE: runClear,
}

var dumpCmd = &cobra.Command{
	Use:   "dump",
	Short: "Print the current playground resources as JSON",
	RunE:  runDump,
}

var (
	clearTimeout time.Duration
	dumpTimeout  time.Duration
)

func init() {
	clearCmd.Flags().DurationVar(&clearTimeout, "timeout", 2*time.Minute, "give up after this long")
	dumpCmd.Flags().DurationVar(&dumpTimeout, "timeout", 30*time.Second, "give up after this long")
}

func runClear(cmd *cobra.Command, args []string) error {
	logger, err := newLogger()
	if err != nil {
		return err
	}
	defer func() { _ = logger.Sync() }()

	a, err := newApp(logger, false)
	if err != nil {
		return err
	}
	defer a.Close()

	ctx, cancel := context.WithTimeout(cmd.Context(), clearTimeout)
	defer cancel()

	if _, err := a.playground.Clear(ctx); err != nil {
		return fmt.Errorf("failed to clear playground: %w", err)
	}
	fmt.Println("✓ Playground cleared")
	return nil
}

func runDump(cmd *cobra.Command, args []string) error {
	logger, err := newLogger()
	if err != nil {
		return err
	}
	defer func() { _ = logger.Sync() }()

	a, err := newApp(logger, false)
	if err != nil {
		return err
	}
	defer a.Close()

	ctx, cancel := context.WithTimeout(cmd.Context(), dumpTimeout)
	defer cancel()

	snap, err := a.playground.DumpResources(ctx)
	if err != nil {
		return fmt.Errorf("failed to list resources: %w", err)
	}

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(snap)
}
