package cmd

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/gnolang/hoare/formatter"
	"github.com/gnolang/hoare/verify"
)

var (
	verifyJsonOutput bool
	outPath          string
	jobs             int
	backend          string
	solverPath       string
	solverTimeout    time.Duration
	noCache          bool
)

var verifyCmd = &cobra.Command{
	Use:   "verify [paths...]",
	Short: "Verify every annotated function in the given files or directories",
	RunE: runVerify,
}

// errNotVerified makes the command exit non-zero after the reports are
// printed.
var errNotVerified = errors.New("not every function verified")

func runVerify(cmd *cobra.Command, args []string) error {
	if len(args) == 0 {
		return errors.New("please provide file or directory paths")
	}

	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	engine, err := newEngine(cmd)
	if err != nil {
		return fmt.Errorf("initializing verification engine: %w", err)
	}

	if runVerifyProcess(ctx, logger, engine, args, verifyJsonOutput, outPath) != 0 {
		return errNotVerified
	}
	return nil
}

func init() {
	verifyCmd.Flags().BoolVar(&verifyJsonOutput, "json", false, "Output reports in JSON format")
	verifyCmd.Flags().StringVarP(&outPath, "output", "o", "", "Output path (when using JSON)")
	addEngineFlags(verifyCmd)
}

// addEngineFlags registers the flags that override the configuration file.
func addEngineFlags(cmd *cobra.Command) {
	cmd.Flags().IntVarP(&jobs, "jobs", "j", 0, "Functions verified at once per file")
	cmd.Flags().StringVar(&backend, "backend", "", "Solver backend (smtlib or z3)")
	cmd.Flags().StringVar(&solverPath, "solver", "", "Solver executable for the smtlib backend")
	cmd.Flags().DurationVar(&solverTimeout, "solver-timeout", 0, "Solver timeout per function")
	cmd.Flags().BoolVar(&noCache, "no-cache", false, "Do not read or write cached results")
}

// newEngine builds an engine from the configuration file and the flags
// set on cmd.
func newEngine(cmd *cobra.Command) (*verify.Engine, error) {
	path := configPath(cmd)
	config, err := verify.LoadConfig(path)
	if err != nil {
		return nil, err
	}
	applyFlags(cmd, &config)
	return verify.NewWithConfig(config, path, logger)
}

func applyFlags(cmd *cobra.Command, config *verify.Config) {
	flags := cmd.Flags()
	if flags.Changed("jobs") {
		config.Jobs = jobs
	}
	if flags.Changed("backend") {
		config.Solver.Backend = backend
	}
	if flags.Changed("solver") {
		config.Solver.Path = solverPath
	}
	if flags.Changed("solver-timeout") {
		config.Solver.Timeout = solverTimeout
	}
	if noCache {
		config.Cache.Disabled = true
	}
}

// runVerifyProcess verifies paths, prints the reports and returns the
// exit code: 0 when everything verified, 1 otherwise.
func runVerifyProcess(ctx context.Context, logger *zap.Logger, engine verify.Runner, paths []string, isJson bool, jsonOutput string) int {
	reports, err := verify.ProcessFiles(ctx, logger, engine, paths, verify.ProcessFile)
	if err != nil {
		logger.Error("Error processing files", zap.Error(err))
	}

	if err := printReports(os.Stdout, reports, isJson, jsonOutput); err != nil {
		logger.Error("Error printing reports", zap.Error(err))
		return 1
	}

	if err != nil {
		return 1
	}
	for _, r := range reports {
		if !r.Verified() {
			return 1
		}
	}
	return 0
}

func printReports(w io.Writer, reports []verify.FileReport, isJson bool, jsonOutput string) error {
	if isJson {
		d, err := json.MarshalIndent(reports, "", "  ")
		if err != nil {
			return fmt.Errorf("marshalling reports to JSON: %w", err)
		}
		if jsonOutput == "" {
			_, err = fmt.Fprintln(w, string(d))
			return err
		}
		return os.WriteFile(jsonOutput, d, 0o644)
	}

	// text output
	for _, r := range reports {
		snippet, err := formatter.ReadSourceCode(r.File)
		if err != nil {
			snippet = nil
		}
		fmt.Fprint(w, formatter.GenerateFormattedReport(r, snippet, verbose))
	}
	_, err := fmt.Fprint(w, formatter.Summary(reports))
	return err
}
