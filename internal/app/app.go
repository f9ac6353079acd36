package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/pflag"

	"github.com/Adda-Baaj/news-digest/internal/config"
	"github.com/Adda-Baaj/news-digest/internal/crawler"
	"github.com/Adda-Baaj/news-digest/internal/digest"
	"github.com/Adda-Baaj/news-digest/internal/langguard"
	"github.com/Adda-Baaj/news-digest/internal/logger"
	"github.com/Adda-Baaj/news-digest/internal/render"
	"github.com/Adda-Baaj/news-digest/pkg/httpclient"
	"github.com/Adda-Baaj/news-digest/pkg/mailer"
	"github.com/Adda-Baaj/news-digest/pkg/providers"
	"github.com/Adda-Baaj/news-digest/pkg/publishers"
)

// Process exit codes.
const (
	ExitOK      = 0
	ExitFailure = 1
	ExitConfig  = 2
	ExitFetch   = 3
	ExitSend    = 4
)

const backfillDelay = 250 * time.Millisecond

// Execute runs the command line with args (without the program name) and
// returns the process exit code.
func Execute(ctx context.Context, args []string) int {
	return execute(ctx, args, os.Stderr)
}

func execute(ctx context.Context, args []string, stderr io.Writer) int {
	flags := pflag.NewFlagSet("news-digest", pflag.ContinueOnError)
	flags.SetOutput(stderr)
	configFile := flags.String("config", "", "optional YAML, TOML or JSON config file; environment variables take precedence")
	envFile := flags.String("env-file", ".env", "dotenv file loaded before reading the environment")
	dryRun := flags.Bool("dry-run", false, "fetch and render, log the message, do not send")

	if err := flags.Parse(args); err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			return ExitOK
		}
		fmt.Fprintf(stderr, "%v\n", err)
		flags.PrintDefaults()
		return ExitConfig
	}
	if flags.NArg() > 0 {
		fmt.Fprintf(stderr, "unexpected arguments: %s\n", strings.Join(flags.Args(), " "))
		flags.PrintDefaults()
		return ExitConfig
	}

	if err := godotenv.Load(*envFile); err != nil && !errors.Is(err, fs.ErrNotExist) {
		fmt.Fprintf(stderr, "load %s: %v\n", *envFile, err)
		return ExitConfig
	}

	cfg, err := config.Load(config.LoadOptions{ConfigFile: *configFile, DryRun: *dryRun})
	if err != nil {
		reportConfigError(err, stderr)
		return ExitConfig
	}

	log, err := logger.New(cfg.Log)
	if err != nil {
		fmt.Fprintf(stderr, "build logger: %v\n", err)
		return ExitConfig
	}
	defer func() { _ = log.Sync() }()

	log.InfoObj("configuration loaded", "config_loaded", cfg.Redacted())

	res, err := Run(ctx, cfg, log)
	code := ExitCode(err)
	if err != nil {
		log.ErrorObj("digest run failed", "run_failed", map[string]any{
			"run_id":    res.RunID,
			"exit_code": code,
			"error":     err.Error(),
		})
		return code
	}

	log.InfoObj("digest run finished", "run_finished", map[string]any{
		"run_id":   res.RunID,
		"status":   string(res.Status),
		"articles": res.Articles,
	})
	return code
}

// Run wires the components for cfg and performs one digest run.
func Run(ctx context.Context, cfg config.Config, log logger.Logger) (digest.Result, error) {
	runner, metrics, err := build(cfg, log)
	if err != nil {
		return digest.Result{}, err
	}

	res, err := runner.Run(ctx)
	if metrics != nil {
		if snap, serr := metrics.Snapshot(); serr == nil {
			log.DebugObj("run metrics", "run_metrics", toAny(snap))
		}
	}
	return res, err
}

func build(cfg config.Config, log logger.Logger) (*digest.Runner, *digest.Metrics, error) {
	log = logger.Ensure(log)
	client := httpclient.NewRestyClient(cfg.HTTPTimeout)

	deps := digest.Deps{
		Providers: cfg.Providers(),
		Fetchers:  providers.DefaultFetcherRegistry(client),
		Envelope: render.Envelope{
			From:          cfg.Mail.From,
			To:            cfg.Mail.To,
			SubjectPrefix: cfg.Mail.Subject,
			Format:        cfg.Mail.Format,
		},
		DryRun: cfg.DryRun,
		Log:    log,
	}

	if !cfg.DryRun {
		deps.Sender = mailer.NewSender(cfg.Mail.SMTP, log)
	}

	if cfg.BackfillDescriptions {
		deps.Backfill = crawler.NewBackfiller(client, log,
			crawler.WithDelay(backfillDelay),
			crawler.WithSummarySentences(cfg.News.SummarySentences),
		)
	}

	if cfg.LanguageGuard {
		guard, err := langguard.New(cfg.News.Language, log)
		if err != nil {
			return nil, nil, fmt.Errorf("%w: DIGEST_LANGUAGE_GUARD: %v", config.ErrInvalid, err)
		}
		deps.Guard = guard
	}

	if cfg.PublishersFile != "" {
		sinks, err := publishers.LoadSinks(cfg.PublishersFile)
		if err != nil {
			return nil, nil, fmt.Errorf("%w: PUBLISHERS_FILE: %v", config.ErrInvalid, err)
		}
		deps.Publishers = func(ctx context.Context) ([]publishers.Publisher, error) {
			return publishers.BuildAll(ctx, publishers.DefaultRegistry(), sinks, log)
		}
	}

	if cfg.PushgatewayURL != "" {
		deps.Metrics = digest.NewMetrics()
		deps.PushgatewayURL = cfg.PushgatewayURL
	}

	runner, err := digest.NewRunner(deps)
	if err != nil {
		return nil, nil, err
	}
	return runner, deps.Metrics, nil
}

// ExitCode maps a run error to the process exit code.
func ExitCode(err error) int {
	var (
		missing *config.MissingError
		fetch   *digest.FetchError
		send    *digest.SendError
	)
	switch {
	case err == nil:
		return ExitOK
	case errors.As(err, &missing), errors.Is(err, config.ErrInvalid):
		return ExitConfig
	case errors.As(err, &fetch):
		return ExitFetch
	case errors.As(err, &send):
		return ExitSend
	default:
		return ExitFailure
	}
}

// reportConfigError logs with a default logger since the configured one
// could not be built.
func reportConfigError(err error, stderr io.Writer) {
	log, lerr := logger.New(logger.Config{})
	if lerr != nil {
		fmt.Fprintf(stderr, "configuration error: %v\n", err)
		return
	}
	defer func() { _ = log.Sync() }()

	fields := map[string]any{"error": err.Error()}
	var missing *config.MissingError
	if errors.As(err, &missing) {
		fields["missing"] = missing.Vars
	}
	log.ErrorObj("configuration error", "config_error", fields)
}

func toAny(m map[string]float64) map[string]any {
	out := make(map[string]any, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}
