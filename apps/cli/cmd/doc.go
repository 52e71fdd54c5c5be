// Package cmd implements the apiharness CLI commands using Cobra.
//
// Available commands:
//   - run: Execute test-data suites against an API
//   - validate: Check test-data files without sending requests
//   - list: Display the cases defined in test-data files
//   - serve: Start the records mock service
//   - init: Scaffold a test-data directory and .env file
//   - version: Show version information
//
// Configuration is read from a JSON config file, a .env file and the
// environment; flags override all of them.
package cmd
