package app

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	yaml "gopkg.in/yaml.v3"
)

// FileConfig is the single-file configuration schema.
type FileConfig struct {
	Backend struct {
		URL        string `yaml:"url" json:"url"`
		PageHost   string `yaml:"pageHost" json:"pageHost"`
		UserAgent  string `yaml:"userAgent" json:"userAgent"`
		LatestOnly *bool  `yaml:"latestOnly" json:"latestOnly"`
	} `yaml:"backend" json:"backend"`

	Stream struct {
		URL string `yaml:"url" json:"url"`
	} `yaml:"stream" json:"stream"`

	Parse struct {
		Input   string `yaml:"input" json:"input"`
		HTML    string `yaml:"html" json:"html"`
		HTMLOut string `yaml:"htmlOut" json:"htmlOut"`
		PDF     string `yaml:"pdf" json:"pdf"`
	} `yaml:"parse" json:"parse"`

	Server struct {
		Listen string `yaml:"listen" json:"listen"`
	} `yaml:"server" json:"server"`

	LLM struct {
		BaseURL      string `yaml:"base" json:"base"`
		Model        string `yaml:"model" json:"model"`
		APIKey       string `yaml:"key" json:"key"`
		SystemPrompt string `yaml:"systemPrompt" json:"systemPrompt"`
	} `yaml:"llm" json:"llm"`

	Cache struct {
		Dir         string   `yaml:"dir" json:"dir"`
		MaxAge      Duration `yaml:"maxAge" json:"maxAge"`
		Clear       bool     `yaml:"clear" json:"clear"`
		StrictPerms bool     `yaml:"strictPerms" json:"strictPerms"`
	} `yaml:"cache" json:"cache"`

	Verbose bool `yaml:"verbose" json:"verbose"`
}

// Duration accepts "24h"-style strings in YAML and JSON.
type Duration time.Duration

func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	var s string
	if err := value.Decode(&s); err != nil {
		return err
	}
	return d.parse(s)
}

func (d *Duration) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		return err
	}
	return d.parse(s)
}

func (d *Duration) parse(s string) error {
	if strings.TrimSpace(s) == "" {
		*d = 0
		return nil
	}
	v, err := time.ParseDuration(s)
	if err != nil {
		return fmt.Errorf("parse duration %q: %w", s, err)
	}
	*d = Duration(v)
	return nil
}

// LoadConfigFile reads YAML or JSON into FileConfig.
func LoadConfigFile(path string) (FileConfig, error) {
	var fc FileConfig
	b, err := os.ReadFile(path)
	if err != nil {
		return fc, err
	}
	switch filepath.Ext(path) {
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(b, &fc); err != nil {
			return fc, fmt.Errorf("parse yaml: %w", err)
		}
	case ".json":
		if err := json.Unmarshal(b, &fc); err != nil {
			return fc, fmt.Errorf("parse json: %w", err)
		}
	default:
		if err := yaml.Unmarshal(b, &fc); err != nil {
			if jerr := json.Unmarshal(b, &fc); jerr != nil {
				return fc, fmt.Errorf("parse config: %v (yaml) / %v (json)", err, jerr)
			}
		}
	}
	return fc, nil
}

// ApplyFileConfig overlays every value the file sets onto cfg.
func ApplyFileConfig(cfg *Config, fc FileConfig) {
	if cfg == nil {
		return
	}
	set := func(dst *string, v string) {
		if strings.TrimSpace(v) != "" {
			*dst = v
		}
	}
	set(&cfg.BackendURL, fc.Backend.URL)
	set(&cfg.PageHost, fc.Backend.PageHost)
	set(&cfg.UserAgent, fc.Backend.UserAgent)
	if fc.Backend.LatestOnly != nil {
		cfg.LatestOnly = *fc.Backend.LatestOnly
	}
	set(&cfg.StreamURL, fc.Stream.URL)
	set(&cfg.InputPath, fc.Parse.Input)
	set(&cfg.HTMLPath, fc.Parse.HTML)
	set(&cfg.HTMLOutPath, fc.Parse.HTMLOut)
	set(&cfg.PDFPath, fc.Parse.PDF)
	set(&cfg.ListenAddr, fc.Server.Listen)
	set(&cfg.LLMBaseURL, fc.LLM.BaseURL)
	set(&cfg.LLMModel, fc.LLM.Model)
	set(&cfg.LLMAPIKey, fc.LLM.APIKey)
	set(&cfg.SystemPrompt, fc.LLM.SystemPrompt)
	set(&cfg.CacheDir, fc.Cache.Dir)
	if fc.Cache.MaxAge > 0 {
		cfg.CacheMaxAge = time.Duration(fc.Cache.MaxAge)
	}
	cfg.CacheClear = cfg.CacheClear || fc.Cache.Clear
	cfg.CacheStrictPerms = cfg.CacheStrictPerms || fc.Cache.StrictPerms
	cfg.Verbose = cfg.Verbose || fc.Verbose
}

// ValidateConfig checks the settings a command needs.
func ValidateConfig(cfg Config, command string) error {
	switch command {
	case CommandParse:
		n := 0
		for _, s := range []string{cfg.Text, cfg.InputPath, cfg.HTMLPath} {
			if strings.TrimSpace(s) != "" {
				n++
			}
		}
		if n > 1 {
			return errors.New("config: use only one of -text, -input and -html")
		}
		if cfg.HTMLOutPath != "" && cfg.HTMLPath == "" {
			return errors.New("config: -html.out requires -html")
		}
	case CommandStream:
		if strings.TrimSpace(cfg.StreamURL) == "" {
			return errors.New("config: stream url is required")
		}
	case CommandServe:
		if strings.TrimSpace(cfg.ListenAddr) == "" {
			return errors.New("config: listen address is required")
		}
	default:
		return fmt.Errorf("config: unknown command %q", command)
	}
	if cfg.CacheMaxAge < 0 {
		return errors.New("config: negative cache max age is not allowed")
	}
	return nil
}
