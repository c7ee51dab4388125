package ui

import (
	"context"
	"sync"
	"sync/atomic"

	"github.com/rs/zerolog/log"

	"github.com/hyperifyio/rxglue/internal/extract"
)

// EmptyInputNotice is shown when parse is triggered without text.
const EmptyInputNotice = "Enter prescription text"

// Input supplies the current prescription text.
type Input interface {
	Value() string
}

// Output receives the rendered result. Each call replaces the previous text.
type Output interface {
	SetText(s string)
}

// Notifier surfaces a blocking notice to the user.
type Notifier interface {
	Alert(msg string)
}

// Extractor performs one extraction round trip.
type Extractor interface {
	Extract(ctx context.Context, text string) (extract.Response, error)
}

// Outcome describes how a single click finished.
type Outcome int

const (
	// Rejected means the input was blank and no request was sent.
	Rejected Outcome = iota
	// Rendered means a response was written to the output.
	Rendered
	// Errored means an error string was written to the output.
	Errored
	// Superseded means a newer request was sent while this one was in
	// flight, so its result was dropped.
	Superseded
)

func (o Outcome) String() string {
	switch o {
	case Rejected:
		return "rejected"
	case Rendered:
		return "rendered"
	case Errored:
		return "errored"
	case Superseded:
		return "superseded"
	}
	return "unknown"
}

// ParseAction is the click handler for the parse control.
type ParseAction struct {
	Input     Input
	Output    Output
	Notifier  Notifier
	Extractor Extractor
	// LatestOnly drops results of requests that were overtaken by a newer
	// click. When false, whichever response finishes last wins the output.
	LatestOnly bool

	seq atomic.Uint64
	// mu serializes the check-and-render step so a stale response cannot
	// overwrite a newer one between the sequence check and SetText.
	mu sync.Mutex
}

// Click runs one parse cycle: validate, request, render.
func (a *ParseAction) Click(ctx context.Context) Outcome {
	text := a.Input.Value()
	if extract.IsBlank(text) {
		if a.Notifier != nil {
			a.Notifier.Alert(EmptyInputNotice)
		}
		return Rejected
	}
	token := a.seq.Add(1)
	log.Debug().Uint64("request", token).Int("chars", len(text)).Msg("parse requested")

	resp, err := a.Extractor.Extract(ctx, text)

	a.mu.Lock()
	defer a.mu.Unlock()
	if a.LatestOnly && a.seq.Load() != token {
		log.Debug().Uint64("request", token).Msg("dropping superseded response")
		return Superseded
	}
	if err != nil {
		log.Debug().Err(err).Uint64("request", token).Msg("parse failed")
		a.Output.SetText(extract.ErrorText(err))
		return Errored
	}
	a.Output.SetText(extract.Render(resp))
	return Rendered
}

// Go starts Click on its own goroutine, the way a UI event loop would fire
// the handler. The returned func blocks until that click finishes.
func (a *ParseAction) Go(ctx context.Context) func() Outcome {
	done := make(chan Outcome, 1)
	go func() { done <- a.Click(ctx) }()
	return func() Outcome { return <-done }
}

// MemoryOutput is an Output that keeps the last text written to it.
type MemoryOutput struct {
	mu     sync.Mutex
	text   string
	writes int
}

func (m *MemoryOutput) SetText(s string) {
	m.mu.Lock()
	m.text = s
	m.writes++
	m.mu.Unlock()
}

// Text returns the current output.
func (m *MemoryOutput) Text() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.text
}

// Writes returns how many times the output was replaced.
func (m *MemoryOutput) Writes() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.writes
}

// StaticInput is an Input with fixed text.
type StaticInput string

func (s StaticInput) Value() string { return string(s) }
