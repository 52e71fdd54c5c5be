package cmd

import (
	"fmt"
	"strings"

	"github.com/abdul-hamid-achik/apiharness/packages/testdata"
	"github.com/spf13/cobra"
)

var listCmd = &cobra.Command{
	Use:   "list [file|directory]...",
	Short: "List the test cases in test-data files",
	Long: `List the test cases defined in test-data files.

Examples:
  apiharness list
  apiharness list test-data/users.yaml`,
	RunE: listCommand,
}

func listCommand(cmd *cobra.Command, args []string) error {
	files, err := discoverArgs(args)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	for _, file := range files {
		suite, err := testdata.LoadFile(file)
		if err != nil {
			fmt.Fprintf(cmd.ErrOrStderr(), "Error loading %s: %v\n", file, err)
			continue
		}

		title := file
		if suite.TestSuite != "" {
			title = fmt.Sprintf("%s (%s)", suite.TestSuite, file)
		}
		fmt.Fprintf(out, "\n%s:\n", title)
		for _, tc := range suite.TestCases {
			fmt.Fprintf(out, "  - %s: %s %s -> %d\n", tc.Name, strings.ToUpper(tc.Method), tc.Endpoint, tc.ExpectedStatus)
			if len(tc.Tags) > 0 {
				fmt.Fprintf(out, "    tags: %s\n", strings.Join(tc.Tags, ", "))
			}
			if tc.Skip != "" {
				fmt.Fprintf(out, "    skip: %s\n", tc.Skip)
			}
		}
	}

	return nil
}
