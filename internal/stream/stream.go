package stream

import (
	"os/exec"
	"runtime"

	"github.com/rs/zerolog/log"
)

// DefaultURL is the stream view opened by the "open stream" control.
const DefaultURL = "http://localhost:8501"

// Opener opens a URL in a new browsing context.
type Opener interface {
	Open(url string) error
}

// SystemOpener hands the URL to the platform's default browser launcher.
// It starts the launcher and does not wait for it.
type SystemOpener struct {
	// GOOS overrides runtime.GOOS; used by tests.
	GOOS string
	// Start runs the command; nil means (*exec.Cmd).Start.
	Start func(cmd *exec.Cmd) error
	// Wait reaps a started command; nil means (*exec.Cmd).Wait.
	Wait func(cmd *exec.Cmd) error
}

// Open starts the launcher and reaps it in the background.
func (o SystemOpener) Open(url string) error {
	cmd := o.command(url)
	start, wait := o.Start, o.Wait
	if start == nil {
		start = (*exec.Cmd).Start
	}
	if wait == nil {
		wait = (*exec.Cmd).Wait
	}
	if err := start(cmd); err != nil {
		return err
	}
	go func() {
		if err := wait(cmd); err != nil {
			log.Debug().Err(err).Str("cmd", cmd.Path).Msg("browser launcher exited")
		}
	}()
	return nil
}

func (o SystemOpener) command(url string) *exec.Cmd {
	goos := o.GOOS
	if goos == "" {
		goos = runtime.GOOS
	}
	switch goos {
	case "windows":
		return exec.Command("rundll32", "url.dll,FileProtocolHandler", url)
	case "darwin":
		return exec.Command("open", url)
	default:
		return exec.Command("xdg-open", url)
	}
}

// Action is the click handler for the stream control.
type Action struct {
	Opener Opener
	// URL defaults to DefaultURL.
	URL string
}

// Click opens the stream URL. Launch failures such as a missing browser are
// logged and otherwise ignored.
func (a Action) Click() {
	url := a.URL
	if url == "" {
		url = DefaultURL
	}
	opener := a.Opener
	if opener == nil {
		opener = SystemOpener{}
	}
	if err := opener.Open(url); err != nil {
		log.Warn().Err(err).Str("url", url).Msg("open stream failed")
		return
	}
	log.Debug().Str("url", url).Msg("opened stream")
}
