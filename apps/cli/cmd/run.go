package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/abdul-hamid-achik/apiharness/packages/core/config"
	"github.com/abdul-hamid-achik/apiharness/packages/core/runner"
	"github.com/abdul-hamid-achik/apiharness/packages/http"
	"github.com/abdul-hamid-achik/apiharness/packages/logging"
	"github.com/abdul-hamid-achik/apiharness/packages/output"
	"github.com/abdul-hamid-achik/apiharness/packages/testdata"
	"github.com/spf13/cobra"
)

var runCmd = &cobra.Command{
	Use:   "run [file|directory]...",
	Short: "Run test-data suites against the API",
	Long: `Run the test cases defined in YAML or JSON test-data files.

With no arguments the configured test data directory (default: test-data)
is run.

Examples:
  apiharness run
  apiharness run test-data/users.yaml
  apiharness run ./test-data --tags smoke
  apiharness run --name "create_*" --bail
  apiharness run --output junit --output-file report.xml
  apiharness run --base-url http://localhost:3000/records/ --watch`,
	RunE: runCommand,
}

var (
	baseURLFlag     string
	apiKeyFlag      string
	timeoutFlag     string
	outputFlag      string
	outputFileFlag  string
	nameFlag        string
	tagsFlag        string
	bailFlag        bool
	parallelFlag    bool
	concurrencyFlag int
	rateFlag        float64
	watchFlag       bool
	verboseFlag     bool
)

func init() {
	flags := runCmd.Flags()
	flags.StringVar(&baseURLFlag, "base-url", "", "Base URL of the API under test (env: BASE_URL)")
	flags.StringVar(&apiKeyFlag, "api-key", "", "API key sent with every request (env: API_KEY)")
	flags.StringVar(&timeoutFlag, "timeout", "", "Request timeout, e.g. 30s or 1500 for milliseconds (env: TIMEOUT)")
	flags.StringVarP(&outputFlag, "output", "o", "", "Output formats, comma-separated: console, json, junit, tap")
	flags.StringVar(&outputFileFlag, "output-file", "", "Write json, junit or tap output to a file (default: stdout)")
	flags.StringVarP(&nameFlag, "name", "n", "", "Run only cases whose name matches a glob pattern")
	flags.StringVarP(&tagsFlag, "tags", "t", "", "Run only cases with any of the tags (comma-separated)")
	flags.BoolVar(&bailFlag, "bail", false, "Stop a suite at its first failing case")
	flags.BoolVarP(&parallelFlag, "parallel", "p", false, "Run cases concurrently when no case captures values")
	flags.IntVar(&concurrencyFlag, "concurrency", 0, "Maximum concurrent requests in parallel mode")
	flags.Float64Var(&rateFlag, "rate", 0, "Maximum requests per second, 0 for no limit")
	flags.BoolVarP(&watchFlag, "watch", "w", false, "Watch test-data files and re-run on change")
	flags.BoolVarP(&verboseFlag, "verbose", "v", false, "Show response status and captured values")
}

// Environment variable helpers
func getEnvString(key, defaultVal string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return defaultVal
}

func getEnvBool(key string, defaultVal bool) bool {
	if val := os.Getenv(key); val != "" {
		return val == "true" || val == "1" || val == "yes"
	}
	return defaultVal
}

// Formatter is implemented by every output format.
type Formatter interface {
	FormatResult(result *runner.RunResult)
	FormatError(err error)
	FormatHeader(version string)
}

// Flushable is implemented by formatters that write once all files ran.
type Flushable interface {
	Flush(totalDuration time.Duration) error
}

// formatters fans every call out to several formatters.
type formatters []Formatter

func (fs formatters) FormatResult(result *runner.RunResult) {
	for _, f := range fs {
		f.FormatResult(result)
	}
}

func (fs formatters) FormatError(err error) {
	for _, f := range fs {
		f.FormatError(err)
	}
}

func (fs formatters) FormatHeader(version string) {
	for _, f := range fs {
		f.FormatHeader(version)
	}
}

func (fs formatters) Flush(totalDuration time.Duration) error {
	var errs []error
	for _, f := range fs {
		if flushable, ok := f.(Flushable); ok {
			errs = append(errs, flushable.Flush(totalDuration))
		}
	}
	return errors.Join(errs...)
}

// loadConfig reads the config file, .env file and environment, then applies
// the flags that were set on cmd.
func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	cfg, err := config.Load(config.LoadOptions{
		ConfigPath: configFlag,
		EnvFile:    envFileFlag,
	})
	if err != nil {
		return nil, err
	}

	overrides := &config.Config{}
	changed := func(name string) bool {
		f := cmd.Flags().Lookup(name)
		return f != nil && f.Changed
	}
	if changed("log-level") {
		overrides.LogLevel = logLevelFlag
	}
	if changed("log-dir") {
		overrides.LogDir = logDirFlag
	}
	if changed("no-color") {
		overrides.NoColor = config.BoolPtr(noColorFlag)
	}
	if changed("base-url") {
		overrides.BaseURL = baseURLFlag
	}
	if changed("api-key") {
		overrides.APIKey = apiKeyFlag
	}
	if changed("timeout") {
		ms, err := parseTimeout(timeoutFlag)
		if err != nil {
			return nil, err
		}
		overrides.Timeout = ms
	}
	if changed("output") {
		overrides.Reporters = splitList(outputFlag)
	}
	if changed("bail") {
		overrides.Bail = config.BoolPtr(bailFlag)
	}
	if changed("parallel") {
		overrides.Parallel = config.BoolPtr(parallelFlag)
	}
	if changed("concurrency") {
		overrides.Concurrency = concurrencyFlag
	}
	if changed("rate") {
		overrides.RateLimit = rateFlag
	}

	cfg = cfg.Merge(overrides)
	cfg.Normalize()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// parseTimeout accepts a Go duration or a plain number of milliseconds.
func parseTimeout(s string) (int, error) {
	if ms, err := strconv.Atoi(s); err == nil {
		if ms <= 0 {
			return 0, fmt.Errorf("invalid timeout value %q: must be positive", s)
		}
		return ms, nil
	}
	d, err := time.ParseDuration(s)
	if err != nil {
		return 0, fmt.Errorf("invalid timeout value %q: use a duration like 30s or milliseconds", s)
	}
	if d <= 0 {
		return 0, fmt.Errorf("invalid timeout value %q: must be positive", s)
	}
	return int(d.Milliseconds()), nil
}

func splitList(s string) []string {
	var items []string
	for _, item := range strings.Split(s, ",") {
		if item = strings.TrimSpace(item); item != "" {
			items = append(items, item)
		}
	}
	return items
}

// openLog starts the run log. Console log lines go to stderr when stdout
// carries machine-readable output.
func openLog(cfg *config.Config, stdout io.Writer) (*logging.RunLog, error) {
	level, err := logging.ParseLevel(cfg.LogLevel)
	if err != nil {
		return nil, err
	}
	return logging.Open(logging.Options{
		Level:   level,
		Dir:     cfg.LogDir,
		Stdout:  stdout,
		Secrets: cfg.Secrets(),
		NoColor: cfg.GetNoColor(),
	})
}

func newClient(cfg *config.Config, logger logging.Logger) *http.Client {
	return http.NewClient(
		http.WithBaseURL(cfg.BaseURL),
		http.WithTimeout(cfg.TimeoutDuration()),
		http.WithAPIKey(cfg.APIKey),
		http.WithAPIKeyHeader(cfg.APIKeyHeader),
		http.WithDefaultHeaders(cfg.Headers),
		http.WithValidateSSL(cfg.GetValidateSSL()),
		http.WithProxy(cfg.Proxy),
		http.WithLogger(logger),
	)
}

// newFormatters builds one formatter per reporter. Console output always goes
// to stdout; the other formats go to out.
func newFormatters(reporters []string, out, stdout io.Writer, noColor bool) (formatters, error) {
	if len(reporters) == 0 {
		reporters = []string{"console"}
	}

	var fs formatters
	for _, name := range reporters {
		switch strings.ToLower(name) {
		case "console":
			fs = append(fs, output.NewConsoleFormatter(
				output.WithWriter(stdout),
				output.WithVerbose(verboseFlag),
				output.WithNoColor(noColor),
			))
		case "json":
			fs = append(fs, output.NewJSONFormatter(output.JSONWithWriter(out)))
		case "junit":
			fs = append(fs, output.NewJUnitFormatter(output.JUnitWithWriter(out)))
		case "tap":
			fs = append(fs, output.NewTAPFormatter(output.TAPWithWriter(out)))
		default:
			return nil, fmt.Errorf("unknown output format %q (use console, json, junit or tap)", name)
		}
	}
	return fs, nil
}

func hasMachineOutput(reporters []string) bool {
	for _, name := range reporters {
		if !strings.EqualFold(name, "console") {
			return true
		}
	}
	return false
}

// runTotals aggregates the results of every file in one pass.
type runTotals struct {
	passed, failed, errored, skipped int
	loadErrors                       int
	duration                         time.Duration
}

func (t runTotals) exitCode() int {
	switch {
	case t.loadErrors > 0:
		return ExitParseError
	case t.failed > 0:
		return ExitTestFailure
	case t.errored > 0:
		return ExitNetworkError
	default:
		return ExitSuccess
	}
}

func runFiles(ctx context.Context, r *runner.Runner, files []string, formatter Formatter, bail bool) runTotals {
	var totals runTotals
	start := time.Now()

	for _, file := range files {
		if ctx.Err() != nil {
			break
		}

		result, err := r.RunFile(ctx, file)
		if err != nil {
			if !errors.Is(err, context.Canceled) {
				formatter.FormatError(err)
				totals.loadErrors++
			}
			if result == nil {
				if bail {
					break
				}
				continue
			}
		}

		formatter.FormatResult(result)
		totals.passed += result.Passed
		totals.failed += result.Failed
		totals.errored += result.Errored
		totals.skipped += result.Skipped

		if bail && !result.OK() {
			break
		}
	}

	totals.duration = time.Since(start)
	return totals
}

func runCommand(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return exitError(ExitConfigError, err)
	}

	stdout := cmd.OutOrStdout()
	var out io.Writer = stdout
	if outputFileFlag != "" {
		f, err := os.Create(outputFileFlag)
		if err != nil {
			return exitError(ExitConfigError, fmt.Errorf("cannot create output file: %w", err))
		}
		defer f.Close()
		out = f
	}

	formatter, err := newFormatters(cfg.Reporters, out, stdout, cfg.GetNoColor())
	if err != nil {
		return exitError(ExitUsageError, err)
	}

	logStdout := stdout
	if outputFileFlag == "" && hasMachineOutput(cfg.Reporters) {
		logStdout = cmd.ErrOrStderr()
	}
	runLog, err := openLog(cfg, logStdout)
	if err != nil {
		return exitError(ExitConfigError, err)
	}
	defer runLog.Close()

	if len(args) == 0 {
		args = []string{cfg.TestDataDir}
	}
	files, err := testdata.Discover(args)
	if err != nil {
		return exitError(ExitUsageError, err)
	}
	if len(files) == 0 {
		return exitError(ExitUsageError, fmt.Errorf("no test-data files found in %s", strings.Join(args, ", ")))
	}

	r := runner.New(&runner.Config{
		Bail:        cfg.GetBail(),
		NameFilter:  nameFlag,
		TagsFilter:  splitList(tagsFlag),
		Parallel:    cfg.GetParallel(),
		Concurrency: cfg.Concurrency,
		RateLimit:   cfg.RateLimit,
		Variables:   cfg.Variables,
	}, newClient(cfg, runLog), runLog)

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	runLog.Info(fmt.Sprintf("Starting test run against %s", cfg.BaseURL))
	if runLog.Path != "" {
		runLog.Debug(fmt.Sprintf("Writing run log to %s", runLog.Path))
	}

	formatter.FormatHeader(version)
	totals := runFiles(ctx, r, files, formatter, cfg.GetBail())
	if err := formatter.Flush(totals.duration); err != nil {
		return exitError(ExitUsageError, fmt.Errorf("error writing output: %w", err))
	}
	runLog.Info(fmt.Sprintf("Test run finished: %d passed, %d failed, %d errored, %d skipped",
		totals.passed, totals.failed, totals.errored, totals.skipped))

	if watchFlag {
		return watch(ctx, cmd, args, func() {
			fresh, err := newFormatters(cfg.Reporters, out, stdout, cfg.GetNoColor())
			if err != nil {
				return
			}
			t := runFiles(ctx, r, rediscover(args, files), fresh, cfg.GetBail())
			if err := fresh.Flush(t.duration); err != nil {
				fresh.FormatError(err)
			}
		})
	}

	if code := totals.exitCode(); code != ExitSuccess {
		return exitError(code, nil)
	}
	return nil
}

// rediscover lists the files again so that suites added while watching run
// too, falling back to the previous list on error.
func rediscover(args, previous []string) []string {
	files, err := testdata.Discover(args)
	if err != nil || len(files) == 0 {
		return previous
	}
	return files
}
