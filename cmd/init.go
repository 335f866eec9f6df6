package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/gnolang/hoare/verify"
)

// initCmd: hoare init
var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Initialize a new verifier configuration file",
	Run: func(cmd *cobra.Command, args []string) {
		path, err := initConfigurationFile(cfgFile)
		if err != nil {
			logger.Error("Error initializing config file", zap.Error(err))
			return
		}
		fmt.Printf("Configuration file created/updated: %s\n", path)
	},
}

func initConfigurationFile(configurationPath string) (string, error) {
	if configurationPath == "" {
		configurationPath = verify.DefaultConfigFile
	}
	return configurationPath, verify.WriteConfig(configurationPath, verify.DefaultConfig())
}
