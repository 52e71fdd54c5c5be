package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/abdul-hamid-achik/apiharness/packages/db"
	"github.com/abdul-hamid-achik/apiharness/packages/logging"
	"github.com/abdul-hamid-achik/apiharness/packages/mock"
	"github.com/spf13/cobra"
)

var (
	servePortFlag       int
	serveDelayFlag      string
	serveDBFlag         string
	serveAPIKeyFlag     string
	serveBasePathFlag   string
	serveCollectionFlag string
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the records mock service",
	Long: `Start an HTTP service implementing the records collection API, for
running test data locally:

  POST   /records        create a record (201)
  GET    /records        list records
  GET    /records/{id}   fetch a record (200 or 404)
  PUT    /records/{id}   merge fields into a record (200 or 404)
  DELETE /records/{id}   delete a record (204 or 404)

Records live in memory unless --db names a SQLite database.

Examples:
  apiharness serve
  apiharness serve --port 8080 --delay 100ms
  apiharness serve --db sqlite://records.db --api-key secret`,
	Args: cobra.NoArgs,
	RunE: serveCommand,
}

func init() {
	serveCmd.Flags().IntVarP(&servePortFlag, "port", "p", mock.DefaultPort, "Port to listen on")
	serveCmd.Flags().StringVarP(&serveDelayFlag, "delay", "d", "0", "Delay added to every response (e.g., 100ms, 1s)")
	serveCmd.Flags().StringVar(&serveDBFlag, "db", "", "SQLite database for records, e.g. sqlite://records.db (default: in memory)")
	serveCmd.Flags().StringVar(&serveAPIKeyFlag, "api-key", getEnvString("API_KEY", ""), "Require this API key on every request (env: API_KEY)")
	serveCmd.Flags().StringVar(&serveBasePathFlag, "base-path", "", "Path prefix for the routes, e.g. /api")
	serveCmd.Flags().StringVar(&serveCollectionFlag, "collection", mock.DefaultCollection, "Name of the collection segment")
}

func serveCommand(cmd *cobra.Command, args []string) error {
	var delay time.Duration
	if serveDelayFlag != "0" {
		var err error
		delay, err = time.ParseDuration(serveDelayFlag)
		if err != nil {
			return exitError(ExitUsageError, fmt.Errorf("invalid delay value %q: %w", serveDelayFlag, err))
		}
	}

	level, err := logging.ParseLevel(getEnvString("LOG_LEVEL", "info"))
	if cmd.Flags().Changed("log-level") {
		level, err = logging.ParseLevel(logLevelFlag)
	}
	if err != nil {
		return exitError(ExitConfigError, err)
	}
	logger, err := logging.Open(logging.Options{
		Level:   level,
		Dir:     logDirFlag,
		Secrets: []string{serveAPIKeyFlag},
		NoColor: noColorFlag,
	})
	if err != nil {
		return exitError(ExitConfigError, err)
	}
	defer logger.Close()

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	opts := []mock.Option{
		mock.WithPort(servePortFlag),
		mock.WithDelay(delay),
		mock.WithAPIKey(serveAPIKeyFlag),
		mock.WithBasePath(serveBasePathFlag),
		mock.WithCollection(serveCollectionFlag),
		mock.WithLogger(logger),
	}

	if serveDBFlag != "" {
		client, err := db.NewClient(serveDBFlag)
		if err != nil {
			return exitError(ExitConfigError, err)
		}
		defer client.Close()

		store, err := db.NewRecordStore(ctx, client)
		if err != nil {
			return exitError(ExitConfigError, fmt.Errorf("preparing record store: %w", err))
		}
		opts = append(opts, mock.WithStore(store))
		logger.Info(fmt.Sprintf("Storing records in %s", serveDBFlag))
	}

	server := mock.NewServer(opts...)
	printRoutes(cmd, server)
	if err := server.Start(ctx); err != nil {
		return exitError(ExitNetworkError, err)
	}
	fmt.Fprintln(cmd.ErrOrStderr(), "Mock server stopped")
	return nil
}

func printRoutes(cmd *cobra.Command, server *mock.Server) {
	out := cmd.ErrOrStderr()
	fmt.Fprintln(out, "Routes:")
	for _, route := range server.Routes() {
		fmt.Fprintf(out, "  %-6s %s\n", route.Method, route.PathPattern)
	}
}
