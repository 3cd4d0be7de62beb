package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/scan-io-git/secret-hook/cmd/check"
	"github.com/scan-io-git/secret-hook/cmd/serve"
	"github.com/scan-io-git/secret-hook/cmd/version"
	"github.com/scan-io-git/secret-hook/internal/config"
	"github.com/scan-io-git/secret-hook/pkg/shared/errors"
)

const defaultConfigFile = "config.yml"

var (
	cfgFile   string
	AppConfig *config.Config
	rootCmd   = &cobra.Command{
		Use:                   "secrethook [command]",
		SilenceUsage:          true,
		SilenceErrors:         true,
		DisableFlagsInUseLine: true,
		Short:                 "Secrethook scans GitLab merge request changes for secrets.",
		Long: `Secrethook receives GitLab merge request webhooks, scans the modified code
	for secrets with a configurable ruleset and reports the verdict as a commit status.
	`,
	}
)

func init() {
	cobra.OnInitialize(initConfig)
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is $SECRETHOOK_CONFIG or config.yml)")
	rootCmd.AddCommand(version.NewVersionCmd())
	rootCmd.AddCommand(serve.ServeCmd)
	rootCmd.AddCommand(check.CheckCmd)
}

// Execute runs the root command and returns the process exit code.
func Execute() int {
	rootCmd.CompletionOptions.DisableDefaultCmd = true
	err := rootCmd.Execute()
	code := errors.ExitCode(err)
	if err != nil && code != errors.ExitCodeSecretsFound {
		fmt.Fprintf(os.Stderr, "Error executing command: %v\n", err)
	}
	return code
}

func initConfig() {
	var err error

	if cfgFile == "" {
		cfgFile = config.SetThen(os.Getenv("SECRETHOOK_CONFIG"), defaultConfigFile)
	}
	AppConfig, err = config.LoadConfig(cfgFile)
	if err != nil {
		fmt.Fprintf(os.Stderr, "initializing config file function is crashed - %v \n", err)
		os.Exit(errors.ExitCodeError)
	}
	if err := config.ValidateConfig(AppConfig); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(errors.ExitCodeError)
	}

	serve.Init(AppConfig)
	check.Init(AppConfig)
}
