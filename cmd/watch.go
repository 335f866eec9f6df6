package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/gnolang/hoare/internal/watch"
	"github.com/gnolang/hoare/verify"
)

var watchCmd = &cobra.Command{
	Use:   "watch [paths...]",
	Short: "Verify files again whenever they change",
	Run: func(cmd *cobra.Command, args []string) {
		if len(args) == 0 {
			fmt.Println("error: Please provide file or directory paths")
			os.Exit(1)
		}

		engine, err := newEngine(cmd)
		if err != nil {
			logger.Fatal("Failed to initialize verification engine", zap.Error(err))
		}

		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
		defer stop()

		if err := runWatch(ctx, logger, engine, args); err != nil {
			logger.Error("Watch failed", zap.Error(err))
			os.Exit(1)
		}
	},
}

func init() {
	addEngineFlags(watchCmd)
}

// runWatch verifies paths once, then again file by file as they change,
// until ctx is done. Each round is bounded by the run timeout.
func runWatch(ctx context.Context, logger *zap.Logger, engine verify.Runner, paths []string) error {
	w, err := watch.New(logger, nil)
	if err != nil {
		return err
	}
	defer w.Close()

	for _, p := range paths {
		if err := w.Add(p); err != nil {
			return fmt.Errorf("watching %s: %w", p, err)
		}
	}

	first, cancel := context.WithTimeout(ctx, timeout)
	reports, err := verify.ProcessFiles(first, logger, engine, paths, verify.ProcessFile)
	cancel()
	if err != nil {
		logger.Error("Error processing files", zap.Error(err))
	}
	if err := printReports(os.Stdout, reports, false, ""); err != nil {
		return err
	}

	fmt.Println("watching for changes...")
	return w.Run(ctx, func(changed []string) {
		round, cancel := context.WithTimeout(ctx, timeout)
		defer cancel()

		var reports []verify.FileReport
		for _, p := range changed {
			report, err := engine.Run(round, p)
			if err != nil {
				logger.Error("Error verifying file", zap.String("file", p), zap.Error(err))
				continue
			}
			reports = append(reports, report)
		}
		if err := printReports(os.Stdout, reports, false, ""); err != nil {
			logger.Error("Error printing reports", zap.Error(err))
		}
	})
}
