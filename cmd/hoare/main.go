package main

import (
	"os"

	"github.com/gnolang/hoare/cmd"
	_ "github.com/gnolang/hoare/internal/smt/smtlib"
	_ "github.com/gnolang/hoare/internal/smt/z3"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
