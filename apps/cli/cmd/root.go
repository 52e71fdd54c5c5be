package cmd

import (
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var (
	version   = "dev"
	buildTime = "unknown"
)

var (
	configFlag   string
	envFileFlag  string
	noColorFlag  bool
	logLevelFlag string
	logDirFlag   string
)

var rootCmd = &cobra.Command{
	Use:   "apiharness",
	Short: "End-to-end tests for HTTP JSON APIs, driven by test data.",
	Long: `apiharness runs declarative test cases against an HTTP JSON API.

Each test-data file describes requests, the expected status and a list of
assertions on the JSON response. Values captured from one response can be
used by later requests, so create, read, update and delete flows can be
tested in order.`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

func Execute(v, bt string) {
	version = v
	buildTime = bt
	os.Exit(run(os.Args[1:]))
}

// run executes the CLI with args and returns the process exit code.
func run(args []string) int {
	rootCmd.SetArgs(args)
	err := rootCmd.Execute()
	if err == nil {
		return ExitSuccess
	}

	var exitErr *ExitError
	if errors.As(err, &exitErr) {
		if exitErr.Err != nil {
			fmt.Fprintf(rootCmd.ErrOrStderr(), "Error: %v\n", exitErr.Err)
		}
		return exitErr.Code
	}
	fmt.Fprintf(rootCmd.ErrOrStderr(), "Error: %v\n", err)
	return ExitUsageError
}

func init() {
	flags := rootCmd.PersistentFlags()
	flags.StringVar(&configFlag, "config", getEnvString("APIHARNESS_CONFIG", ""), "Path to config file (env: APIHARNESS_CONFIG)")
	flags.StringVar(&envFileFlag, "env-file", getEnvString("APIHARNESS_ENV_FILE", ""), "Path to .env file (default: ./.env when present) (env: APIHARNESS_ENV_FILE)")
	flags.BoolVar(&noColorFlag, "no-color", getEnvBool("NO_COLOR", false), "Disable colored output (env: NO_COLOR)")
	flags.StringVar(&logLevelFlag, "log-level", "", "Log level: debug, info, warn, error (default from config or LOG_LEVEL)")
	flags.StringVar(&logDirFlag, "log-dir", "", "Directory for run log files (default from config or LOG_DIR)")

	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(validateCmd)
	rootCmd.AddCommand(listCmd)
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(versionCmd)
	rootCmd.AddCommand(initCmd)
}
