package cmd

import (
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/gnolang/hoare/verify"
)

var (
	funcName     string
	vcJsonOutput bool
	showScript   bool
)

var vcCmd = &cobra.Command{
	Use:   "vc <file>",
	Short: "Print verification conditions without running a solver",
	Long: `Prints the verification condition of each function and, with --smt,
the SMT-LIB2 script a solver would check.
Example) hoare vc --func add --smt add.go`,
	Args: cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		engine, err := newEngine(cmd)
		if err != nil {
			logger.Fatal("Failed to initialize verification engine", zap.Error(err))
		}
		explanations, err := engine.Explain(args[0], funcName)
		if err != nil {
			logger.Error("Failed to explain", zap.String("path", args[0]), zap.Error(err))
			os.Exit(1)
		}
		if err := printExplanations(os.Stdout, explanations, vcJsonOutput, showScript); err != nil {
			logger.Error("Error printing conditions", zap.Error(err))
			os.Exit(1)
		}
	},
}

func init() {
	vcCmd.Flags().StringVar(&funcName, "func", "", "Only this function")
	vcCmd.Flags().BoolVar(&vcJsonOutput, "json", false, "Output in JSON format")
	vcCmd.Flags().BoolVar(&showScript, "smt", false, "Print the SMT-LIB2 script")
}

func printExplanations(w io.Writer, explanations []verify.Explanation, isJson, script bool) error {
	if isJson {
		if !script {
			for i := range explanations {
				explanations[i].Script = ""
			}
		}
		d, err := json.MarshalIndent(explanations, "", "  ")
		if err != nil {
			return err
		}
		_, err = fmt.Fprintln(w, string(d))
		return err
	}

	for _, e := range explanations {
		fmt.Fprintf(w, "%s:\n", e.Function)
		if e.Error != "" {
			fmt.Fprintf(w, "  error: %s\n\n", e.Error)
			continue
		}
		fmt.Fprintf(w, "  %s\n", e.VC)
		if script {
			fmt.Fprintf(w, "\n%s\n", e.Script)
		}
		fmt.Fprintln(w)
	}
	return nil
}
