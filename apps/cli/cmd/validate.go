package cmd

import (
	"errors"
	"fmt"

	"github.com/abdul-hamid-achik/apiharness/packages/testdata"
	"github.com/spf13/cobra"
)

var validateCmd = &cobra.Command{
	Use:   "validate [file|directory]...",
	Short: "Validate test-data files without sending requests",
	Long: `Validate test-data files: every case needs a name, a supported method,
an endpoint, an expected status and assertions with known operators.

Examples:
  apiharness validate
  apiharness validate test-data/users.yaml
  apiharness validate ./suites/`,
	RunE: validateCommand,
}

func validateCommand(cmd *cobra.Command, args []string) error {
	files, err := discoverArgs(args)
	if err != nil {
		return err
	}

	invalid := 0
	for _, file := range files {
		suite, err := testdata.LoadFile(file)
		if err == nil {
			err = suite.Validate()
		}
		if err != nil {
			invalid++
			fmt.Fprintf(cmd.ErrOrStderr(), "Error in %s:\n", file)
			for _, e := range unjoin(err) {
				fmt.Fprintf(cmd.ErrOrStderr(), "  - %v\n", e)
			}
			continue
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Valid: %s (%d cases)\n", file, len(suite.TestCases))
	}

	if invalid > 0 {
		return exitError(ExitParseError, fmt.Errorf("validation failed for %d of %d files", invalid, len(files)))
	}
	return nil
}

// discoverArgs expands args, defaulting to the configured test data
// directory.
func discoverArgs(args []string) ([]string, error) {
	if len(args) == 0 {
		dir := testdata.DefaultDir
		if v := getEnvString("TEST_DATA_DIR", ""); v != "" {
			dir = v
		}
		args = []string{dir}
	}

	files, err := testdata.Discover(args)
	if err != nil {
		return nil, exitError(ExitUsageError, err)
	}
	if len(files) == 0 {
		return nil, exitError(ExitUsageError, fmt.Errorf("no test-data files found"))
	}
	return files, nil
}

// unjoin splits an errors.Join result into its parts.
func unjoin(err error) []error {
	var joined interface{ Unwrap() []error }
	if errors.As(err, &joined) {
		return joined.Unwrap()
	}
	return []error{err}
}
