package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/skeinflow/skein/pkg/config"
	"github.com/skeinflow/skein/pkg/log"
	"github.com/skeinflow/skein/pkg/plugin"
	"github.com/skeinflow/skein/pkg/plugin/shell"
	"github.com/skeinflow/skein/pkg/resource"
	"github.com/skeinflow/skein/pkg/worker"
)

var (
	// Version information (set via ldflags during build)
	Version   = "dev"
	Commit    = "unknown"
	BuildTime = "unknown"
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "skein-worker",
	Short: "Skein worker - task execution runtime for the Skein scheduler",
	Long: `The Skein worker executes workflow tasks dispatched by Skein masters.

It consumes task dispatches from the cluster's Kafka topics, stages remote
resources, runs task plugins, and reports results back to the masters.`,
	Version: Version,
}

func init() {
	rootCmd.SetVersionTemplate(fmt.Sprintf(
		"Skein worker version %s\nCommit: %s\nBuilt: %s\n",
		Version, Commit, BuildTime,
	))

	rootCmd.AddCommand(runCmd)
}

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run the worker node",
	Long: `Start the worker: connect to the cluster's Kafka brokers, consume task
dispatches, and execute them until interrupted.`,
	RunE: runWorker,
}

func init() {
	runCmd.Flags().StringP("config", "c", "", "Path to worker configuration file")
	runCmd.Flags().String("node-id", "", "Worker node ID (default: generated)")
	runCmd.Flags().Bool("develop-mode", false, "Keep task work directories for inspection")
}

func runWorker(cmd *cobra.Command, args []string) error {
	configPath, _ := cmd.Flags().GetString("config")
	nodeID, _ := cmd.Flags().GetString("node-id")
	developMode, _ := cmd.Flags().GetBool("develop-mode")

	cfg := config.Default()
	if configPath != "" {
		loaded, err := config.Load(configPath)
		if err != nil {
			return err
		}
		cfg = loaded
	}
	if nodeID != "" {
		cfg.NodeID = nodeID
	}
	if developMode {
		cfg.DevelopMode = true
	}

	log.Init(log.Config{
		Level:      log.Level(cfg.Log.Level),
		JSONOutput: cfg.Log.JSON,
	})

	registry := plugin.NewRegistry()
	registry.Register(shell.TaskType, shell.NewChannel())

	var storage resource.StorageOperate
	if cfg.ResourceUploadEnabled {
		storage = resource.NewLocalStorage(cfg.ResourceStorePath)
	}

	w, err := worker.New(cfg, registry, storage)
	if err != nil {
		return fmt.Errorf("failed to create worker: %w", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	signals := make(chan os.Signal, 1)
	signal.Notify(signals, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-signals
		log.Logger.Info().Str("signal", sig.String()).Msg("shutdown signal received")
		cancel()
	}()

	return w.Start(ctx)
}
