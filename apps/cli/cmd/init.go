package cmd

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/abdul-hamid-achik/apiharness/packages/assertions"
	"github.com/abdul-hamid-achik/apiharness/packages/core/config"
	"github.com/abdul-hamid-achik/apiharness/packages/testdata"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

var forceInit bool

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Initialize a new apiharness project",
	Long: `Initialize a new apiharness project in the current directory.

This creates:
  - .apiharness.json        - Configuration file
  - .env                    - Environment variables (BASE_URL, API_KEY)
  - test-data/records.yaml  - Example suite for the records API

Examples:
  apiharness init
  apiharness init --force`,
	Args: cobra.NoArgs,
	RunE: initCommand,
}

func init() {
	initCmd.Flags().BoolVarP(&forceInit, "force", "f", false, "Overwrite existing files")
}

func exampleSuite() *testdata.Suite {
	return &testdata.Suite{
		TestSuite:    "Records API",
		BaseEndpoint: "records",
		Variables:    map[string]any{"recordName": "John Doe"},
		TestCases: []testdata.TestCase{
			{
				Name:           "create_record",
				Method:         "POST",
				Endpoint:       "records",
				Body:           map[string]any{"name": "{{recordName}}", "email": "{{randomEmail()}}"},
				ExpectedStatus: 201,
				Assertions: []assertions.Assertion{
					{Field: "id", Operator: assertions.OpExists},
					{Field: "name", Operator: assertions.OpEquals, Value: "John Doe"},
					{Field: "createdAt", Operator: assertions.OpType, Value: "string"},
				},
				Capture: map[string]string{"recordId": "id"},
				Tags:    []string{"smoke", "crud"},
			},
			{
				Name:           "get_record",
				Method:         "GET",
				Endpoint:       "records/{{recordId}}",
				ExpectedStatus: 200,
				Assertions: []assertions.Assertion{
					{Field: "id", Operator: assertions.OpEquals, Value: "{{recordId}}"},
				},
				MaxResponseTimeMs: 2000,
				Tags:              []string{"crud"},
			},
			{
				Name:           "delete_record",
				Method:         "DELETE",
				Endpoint:       "records/{{recordId}}",
				ExpectedStatus: 204,
				Tags:           []string{"crud"},
			},
			{
				Name:           "get_deleted_record",
				Method:         "GET",
				Endpoint:       "records/{{recordId}}",
				ExpectedStatus: 404,
				Tags:           []string{"crud"},
			},
		},
	}
}

const exampleEnv = `# Base URL of the API under test; endpoints are resolved against it.
BASE_URL=http://localhost:3000/
# Sent in the x-api-key header when set.
API_KEY=
LOG_LEVEL=info
`

func initCommand(cmd *cobra.Command, args []string) error {
	cwd, err := os.Getwd()
	if err != nil {
		return err
	}

	configFile := filepath.Join(cwd, config.ConfigFilenames[0])
	envFile := filepath.Join(cwd, config.DefaultEnvFile)
	suiteFile := filepath.Join(cwd, testdata.DefaultDir, "records.yaml")

	if !forceInit {
		for _, f := range []string{configFile, envFile, suiteFile} {
			if _, err := os.Stat(f); err == nil {
				return exitError(ExitUsageError, fmt.Errorf("file already exists: %s (use --force to overwrite)", f))
			}
		}
	}

	cfg := config.DefaultConfig()
	cfg.BaseURL = "http://localhost:3000/"
	if err := cfg.SaveConfig(configFile); err != nil {
		return fmt.Errorf("failed to create config file: %w", err)
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Created: %s\n", configFile)

	if err := os.WriteFile(envFile, []byte(exampleEnv), 0o600); err != nil {
		return fmt.Errorf("failed to create env file: %w", err)
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Created: %s\n", envFile)

	suiteYAML, err := yaml.Marshal(exampleSuite())
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(suiteFile), 0o755); err != nil {
		return fmt.Errorf("failed to create test data directory: %w", err)
	}
	if err := os.WriteFile(suiteFile, suiteYAML, 0o644); err != nil {
		return fmt.Errorf("failed to create example suite: %w", err)
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Created: %s\n", suiteFile)

	fmt.Fprintf(cmd.OutOrStdout(), "\napiharness project initialized!\n")
	fmt.Fprintf(cmd.OutOrStdout(), "Start the mock service with 'apiharness serve', then run 'apiharness run'.\n")

	return nil
}
