package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/hyperifyio/rxglue/internal/backend"
	"github.com/hyperifyio/rxglue/internal/cache"
	"github.com/hyperifyio/rxglue/internal/extract"
	"github.com/hyperifyio/rxglue/internal/llm"
	"github.com/hyperifyio/rxglue/internal/page"
	"github.com/hyperifyio/rxglue/internal/rx"
	"github.com/hyperifyio/rxglue/internal/server"
	"github.com/hyperifyio/rxglue/internal/stream"
	"github.com/hyperifyio/rxglue/internal/ui"
)

// Commands understood by Run.
const (
	CommandParse  = "parse"
	CommandStream = "stream"
	CommandServe  = "serve"
)

var (
	// ErrEmptyInput is returned when parse was asked to send blank text.
	ErrEmptyInput = errors.New("empty prescription text")
	// ErrExtractionFailed is returned after an error string was rendered.
	ErrExtractionFailed = errors.New("extraction failed")
)

type App struct {
	cfg Config

	// Stdin and Stdout default to the process streams.
	Stdin  io.Reader
	Stdout io.Writer
	// Notifier shows the blank-input notice; defaults to stderr.
	Notifier ui.Notifier
	// Opener launches the stream view; defaults to the system browser.
	Opener stream.Opener
	// HTTPClient sends extraction requests.
	HTTPClient extract.Doer
}

func New(cfg Config) (*App, error) {
	if strings.TrimSpace(cfg.UserAgent) == "" {
		cfg.UserAgent = UserAgent()
	}
	return &App{
		cfg:        cfg,
		Stdin:      os.Stdin,
		Stdout:     os.Stdout,
		Notifier:   stderrNotifier{w: os.Stderr},
		Opener:     stream.SystemOpener{},
		HTTPClient: newBackendHTTPClient(),
	}, nil
}

// Run dispatches one command.
func (a *App) Run(ctx context.Context, command string) error {
	if err := ValidateConfig(a.cfg, command); err != nil {
		return err
	}
	switch command {
	case CommandParse:
		return a.Parse(ctx)
	case CommandStream:
		a.Stream()
		return nil
	case CommandServe:
		return a.Serve(ctx)
	}
	return fmt.Errorf("unknown command %q", command)
}

// Stream opens the stream view.
func (a *App) Stream() {
	stream.Action{Opener: a.Opener, URL: a.cfg.StreamURL}.Click()
}

// Resolver returns the backend resolver for this configuration.
func (a *App) Resolver() backend.Resolver {
	return backend.Resolver{PageHost: a.cfg.PageHost, Override: a.cfg.BackendURL}
}

// Parse runs one extraction and writes the rendered output to stdout, and to
// the HTML page and PDF when configured.
func (a *App) Parse(ctx context.Context) error {
	var (
		input ui.Input
		pg    *page.Page
	)
	switch {
	case a.cfg.HTMLPath != "":
		p, err := loadPage(a.cfg.HTMLPath)
		if err != nil {
			return err
		}
		pg, input = p, p
	case a.cfg.InputPath != "":
		text, err := a.readInput(a.cfg.InputPath)
		if err != nil {
			return err
		}
		input = ui.StaticInput(text)
	default:
		input = ui.StaticInput(a.cfg.Text)
	}

	base := a.Resolver().BaseURL()
	log.Debug().Str("backend", base).Str("pageHost", a.cfg.PageHost).Msg("resolved backend")

	mem := &ui.MemoryOutput{}
	var out ui.Output = mem
	if pg != nil {
		out = teeOutput{mem, pg}
	}
	action := &ui.ParseAction{
		Input:      input,
		Output:     out,
		Notifier:   a.Notifier,
		Extractor:  &extract.Client{BaseURL: base, HTTPClient: a.HTTPClient, UserAgent: a.cfg.UserAgent},
		LatestOnly: a.cfg.LatestOnly,
	}
	outcome := action.Click(ctx)
	log.Debug().Stringer("outcome", outcome).Msg("parse finished")
	if outcome == ui.Rejected {
		return ErrEmptyInput
	}

	text := mem.Text()
	if _, err := io.WriteString(a.Stdout, text+"\n"); err != nil {
		return fmt.Errorf("write output: %w", err)
	}
	if pg != nil && a.cfg.HTMLOutPath != "" {
		if err := savePage(pg, a.cfg.HTMLOutPath); err != nil {
			return err
		}
		log.Info().Str("out", a.cfg.HTMLOutPath).Msg("wrote page")
	}
	if a.cfg.PDFPath != "" {
		if err := writeOutputPDF(text, a.cfg.PDFPath); err != nil {
			return fmt.Errorf("write pdf: %w", err)
		}
		log.Info().Str("out", a.cfg.PDFPath).Msg("wrote pdf")
	}
	if outcome == ui.Errored {
		return ErrExtractionFailed
	}
	return nil
}

func (a *App) readInput(path string) (string, error) {
	if path == "-" {
		b, err := io.ReadAll(a.Stdin)
		if err != nil {
			return "", fmt.Errorf("read stdin: %w", err)
		}
		return string(b), nil
	}
	b, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("read input: %w", err)
	}
	return string(b), nil
}

func loadPage(path string) (*page.Page, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open page: %w", err)
	}
	defer f.Close()
	p, err := page.Load(f)
	if err != nil {
		return nil, err
	}
	if err := p.Check(); err != nil {
		return nil, err
	}
	return p, nil
}

func savePage(p *page.Page, path string) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create page: %w", err)
	}
	if err := p.Render(f); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

// Extractor builds the backend's drug extractor, with the model fallback
// when a model is configured.
func (a *App) Extractor() *rx.Extractor {
	e := &rx.Extractor{}
	if strings.TrimSpace(a.cfg.LLMModel) == "" {
		return e
	}
	fb := &rx.LLMFallback{
		Client:       llm.NewOpenAI(a.cfg.LLMBaseURL, a.cfg.LLMAPIKey, newLLMHTTPClient()),
		Model:        a.cfg.LLMModel,
		SystemPrompt: a.cfg.SystemPrompt,
	}
	if dir := strings.TrimSpace(a.cfg.CacheDir); dir != "" {
		if a.cfg.CacheClear {
			if err := cache.ClearDir(dir); err != nil {
				log.Warn().Err(err).Str("dir", dir).Msg("cache clear failed")
			}
		}
		if n, err := cache.PurgeByAge(dir, a.cfg.CacheMaxAge); err != nil {
			log.Warn().Err(err).Str("dir", dir).Msg("cache purge failed")
		} else if n > 0 {
			log.Info().Int("removed", n).Msg("purged expired fallback replies")
		}
		fb.Cache = &cache.ReplyCache{Dir: dir, StrictPerms: a.cfg.CacheStrictPerms}
	}
	e.Fallback = fb
	return e
}

// Serve runs the extraction backend until ctx is cancelled.
func (a *App) Serve(ctx context.Context) error {
	ln, err := net.Listen("tcp", a.cfg.ListenAddr)
	if err != nil {
		return fmt.Errorf("listen: %w", err)
	}
	return a.ServeListener(ctx, ln)
}

// ServeListener runs the backend on ln until ctx is cancelled. ln is closed
// on return.
func (a *App) ServeListener(ctx context.Context, ln net.Listener) error {
	srv := &http.Server{
		Handler:           (&server.Server{Extractor: a.Extractor()}).Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	errCh := make(chan error, 1)
	go func() {
		log.Info().Str("addr", ln.Addr().String()).Str("model", a.cfg.LLMModel).Msg("backend listening")
		errCh <- srv.Serve(ln)
	}()
	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("serve: %w", err)
	case <-ctx.Done():
	}
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	return nil
}

type teeOutput []ui.Output

func (t teeOutput) SetText(s string) {
	for _, o := range t {
		o.SetText(s)
	}
}

type stderrNotifier struct{ w io.Writer }

func (n stderrNotifier) Alert(msg string) {
	fmt.Fprintln(n.w, msg)
}
