package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/hyperifyio/rxglue/internal/app"
)

func usage(fs *flag.FlagSet) func() {
	return func() {
		out := fs.Output()
		fmt.Fprintf(out, "Usage: %s [flags] parse|stream|serve\n\n", fs.Name())
		fmt.Fprintln(out, "  parse   send prescription text to <backend>/extract and print the result")
		fmt.Fprintln(out, "  stream  open the stream view in a new browser tab")
		fmt.Fprintln(out, "  serve   run the extraction backend")
		fmt.Fprintln(out)
		fs.PrintDefaults()
	}
}

// bindFlags registers every flag against cfg, using cfg's current values as
// defaults so only flags given on the command line change it.
func bindFlags(fs *flag.FlagSet, cfg *app.Config, configPath, envFile *string, showVersion *bool) {
	fs.StringVar(configPath, "config", os.Getenv("RXGLUE_CONFIG"), "Path to YAML/JSON config file")
	fs.StringVar(envFile, "env", ".env", "Path to dotenv file loaded before reading the environment")
	fs.BoolVar(showVersion, "version", false, "Print version and exit")

	fs.StringVar(&cfg.BackendURL, "backend.url", cfg.BackendURL, "Backend base URL override (ignored when -page.host is localhost)")
	fs.StringVar(&cfg.PageHost, "page.host", cfg.PageHost, "Host name the hosting page is served from")
	fs.StringVar(&cfg.UserAgent, "ua", cfg.UserAgent, "User-Agent for extraction requests")
	fs.BoolVar(&cfg.LatestOnly, "latest-only", cfg.LatestOnly, "Render only the newest of overlapping parse requests")
	fs.StringVar(&cfg.StreamURL, "stream.url", cfg.StreamURL, "URL opened by the stream command")

	fs.StringVar(&cfg.Text, "text", cfg.Text, "Prescription text to parse")
	fs.StringVar(&cfg.InputPath, "input", cfg.InputPath, "Read prescription text from file ('-' for stdin)")
	fs.StringVar(&cfg.HTMLPath, "html", cfg.HTMLPath, "HTML page holding #presc and #out elements")
	fs.StringVar(&cfg.HTMLOutPath, "html.out", cfg.HTMLOutPath, "Write the page with #out filled in")
	fs.StringVar(&cfg.PDFPath, "pdf", cfg.PDFPath, "Also write the rendered output as PDF")

	fs.StringVar(&cfg.ListenAddr, "listen", cfg.ListenAddr, "Backend listen address")
	fs.StringVar(&cfg.LLMBaseURL, "llm.base", cfg.LLMBaseURL, "OpenAI-compatible base URL for the extraction fallback")
	fs.StringVar(&cfg.LLMModel, "llm.model", cfg.LLMModel, "Model name; empty disables the fallback")
	fs.StringVar(&cfg.LLMAPIKey, "llm.key", cfg.LLMAPIKey, "API key for the model server")
	fs.StringVar(&cfg.SystemPrompt, "llm.systemPrompt", cfg.SystemPrompt, "Override the extraction fallback system prompt")
	fs.StringVar(&cfg.CacheDir, "cache.dir", cfg.CacheDir, "Fallback reply cache directory")
	fs.DurationVar(&cfg.CacheMaxAge, "cache.maxAge", cfg.CacheMaxAge, "Purge cached replies older than this (0 disables)")
	fs.BoolVar(&cfg.CacheClear, "cache.clear", cfg.CacheClear, "Clear the cache directory on start")
	fs.BoolVar(&cfg.CacheStrictPerms, "cache.strictPerms", cfg.CacheStrictPerms, "Restrict cache permissions (0700 dirs, 0600 files)")
	fs.BoolVar(&cfg.Verbose, "v", cfg.Verbose, "Verbose logging")
}

func main() {
	zerolog.TimeFieldFormat = time.RFC3339
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339})

	os.Exit(run(os.Args[1:]))
}

func run(args []string) int {
	var (
		configPath  string
		envFile     string
		showVersion bool
	)

	// First pass only locates the config and dotenv files.
	scratch := app.DefaultConfig()
	pre := flag.NewFlagSet("rxglue", flag.ContinueOnError)
	pre.SetOutput(io.Discard)
	bindFlags(pre, &scratch, &configPath, &envFile, &showVersion)
	if err := pre.Parse(args); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			pre.SetOutput(os.Stderr)
			usage(pre)()
			return 0
		}
		fmt.Fprintln(os.Stderr, err)
		return 2
	}
	if showVersion {
		fmt.Printf("rxglue %s (%s, %s)\n", app.BuildVersion, app.BuildCommit, app.BuildDate)
		return 0
	}

	if err := app.LoadEnvFiles(envFile); err != nil {
		log.Error().Err(err).Str("path", envFile).Msg("load dotenv")
		return 2
	}

	// Precedence: defaults < config file < env < flags.
	cfg := app.DefaultConfig()
	if configPath != "" {
		fc, err := app.LoadConfigFile(configPath)
		if err != nil {
			log.Error().Err(err).Str("path", configPath).Msg("load config")
			return 2
		}
		app.ApplyFileConfig(&cfg, fc)
	}
	app.ApplyEnvOverrides(&cfg)

	fs := flag.NewFlagSet("rxglue", flag.ContinueOnError)
	bindFlags(fs, &cfg, &configPath, &envFile, &showVersion)
	fs.Usage = usage(fs)
	if err := fs.Parse(args); err != nil {
		return 2
	}

	if cfg.Verbose {
		zerolog.SetGlobalLevel(zerolog.DebugLevel)
	} else {
		zerolog.SetGlobalLevel(zerolog.InfoLevel)
	}

	if fs.NArg() != 1 {
		fs.Usage()
		return 2
	}
	command := fs.Arg(0)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := app.New(cfg)
	if err != nil {
		log.Error().Err(err).Msg("init app")
		return 1
	}
	err = a.Run(ctx, command)
	switch {
	case err == nil:
		return 0
	case errors.Is(err, app.ErrEmptyInput):
		return 2
	case errors.Is(err, app.ErrExtractionFailed):
		// The error text has already been printed as the output.
		return 1
	default:
		log.Error().Err(err).Str("command", command).Msg("run failed")
		return 1
	}
}
