package app

import (
	"time"

	"github.com/hyperifyio/rxglue/internal/stream"
)

// Config holds runtime configuration for the application.
type Config struct {
	// Backend resolution. BackendURL is the injected override; it is ignored
	// when PageHost is localhost.
	BackendURL string
	PageHost   string
	UserAgent  string
	// LatestOnly renders only the newest of overlapping parse requests.
	LatestOnly bool

	StreamURL string

	// Parse input/output
	Text        string
	InputPath   string
	HTMLPath    string
	HTMLOutPath string
	PDFPath     string

	// Backend server
	ListenAddr   string
	LLMBaseURL   string
	LLMModel     string
	LLMAPIKey    string
	SystemPrompt string

	CacheDir         string
	CacheMaxAge      time.Duration
	CacheClear       bool
	CacheStrictPerms bool

	Verbose bool
}

// DefaultConfig returns the configuration used when nothing else is set.
func DefaultConfig() Config {
	return Config{
		UserAgent:  UserAgent(),
		LatestOnly: true,
		StreamURL:  stream.DefaultURL,
		ListenAddr: ":8000",
		CacheDir:   ".rxglue-cache",
	}
}
