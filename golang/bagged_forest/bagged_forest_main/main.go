package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"runtime"
	"runtime/pprof"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var (
	configFile string
	memprofile string
	verbose    bool
	logger     = zap.NewNop()

	rootCmd = &cobra.Command{
		Use:           "bagged_forest",
		Short:         "Predictions, uncertainty and Shapley attributions of bagged tree ensembles",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			var err error
			if verbose {
				logger, err = zap.NewDevelopment()
			} else {
				logger, err = zap.NewProduction()
			}
			return err
		},
		PersistentPostRunE: func(cmd *cobra.Command, args []string) error {
			_ = logger.Sync()
			return writeMemProfile(memprofile)
		},
	}
	predictCmd = &cobra.Command{
		Use:   "predict",
		Short: "Aggregates a stored forest over a feature matrix",
		RunE:  func(cmd *cobra.Command, args []string) error { return predict(cmd.Context(), configFile) },
	}
	uncertaintyCmd = &cobra.Command{
		Use:   "uncertainty",
		Short: "Computes uncertainty and training-row importance from member predictions",
		RunE:  func(cmd *cobra.Command, args []string) error { return uncertainty(cmd.Context(), configFile) },
	}
	shapleyCmd = &cobra.Command{
		Use:   "shapley",
		Short: "Computes Shapley attributions of a stored forest",
		RunE:  func(cmd *cobra.Command, args []string) error { return shapley(cmd.Context(), configFile) },
	}
	graphCmd = &cobra.Command{
		Use:   "graph",
		Short: "Renders every tree of a stored forest",
		RunE:  func(cmd *cobra.Command, args []string) error { return graph(configFile) },
	}
)

func init() {
	rootCmd.PersistentFlags().StringVar(&configFile, "config", "bagged_config.json", "a config file for the run of the program")
	rootCmd.PersistentFlags().StringVar(&memprofile, "memprofile", "", "write memory profile to `file`")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "development logging")
	rootCmd.AddCommand(predictCmd, uncertaintyCmd, shapleyCmd, graphCmd)
}

func writeMemProfile(fileName string) error {
	if fileName == "" {
		return nil
	}
	f, err := os.Create(fileName)
	if err != nil {
		return err
	}
	defer func() { _ = f.Close() }()
	runtime.GC()
	if err := pprof.WriteHeapProfile(f); err != nil {
		return fmt.Errorf("could not write memory profile: %w", err)
	}
	return nil
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	err := rootCmd.ExecuteContext(ctx)
	stop()
	if err != nil {
		logger.Error("run failed", zap.Error(err))
		_ = logger.Sync()
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
