package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"NetDistill/internal/model"
)

// Pipeline holds every knob of the compaction engine for one run. It is
// constructed once, validated, and read-only afterwards, so it can be shared
// across any number of concurrent runs.
type Pipeline struct {
	WindowSeconds           int     `yaml:"window_seconds"`
	IdleSplitSeconds        int     `yaml:"idle_split_seconds"`
	ScanUniqueDstsThreshold int     `yaml:"scan_unique_dsts_threshold"`
	IForestContamination    float64 `yaml:"iforest_contamination"`
	IForestEstimators       int     `yaml:"iforest_estimators"`

	// Seed drives the isolation forest and the token sampler. Fixed default
	// so repeated runs over the same segments produce identical output.
	Seed int64 `yaml:"seed"`

	CountLogBase    float64 `yaml:"count_log_base"`
	DurationLogBase float64 `yaml:"duration_log_base"`
	MaxBin          int     `yaml:"max_bin"`

	HTTPURITokenBudget    int      `yaml:"http_uri_token_budget"`
	HTTPAlwaysKeepLexicon []string `yaml:"http_always_keep_lexicon"`

	ServicePortMap   map[uint16]string `yaml:"service_port_map"`
	SampleTargetsCap int               `yaml:"sample_targets_cap"`
}

// DefaultPipeline returns the documented defaults.
func DefaultPipeline() Pipeline {
	return Pipeline{
		WindowSeconds:           3600,
		IdleSplitSeconds:        120,
		ScanUniqueDstsThreshold: 50,
		IForestContamination:    0.14,
		IForestEstimators:       256,
		Seed:                    42,
		CountLogBase:            2.0,
		DurationLogBase:         2.0,
		MaxBin:                  32,
		HTTPURITokenBudget:      40,
		HTTPAlwaysKeepLexicon: []string{
			"or", "and", "union", "select", "sleep", "benchmark",
			"'", `"`, "--", ";", "/*", "*/", "%27", "%20or%20", "..",
		},
		ServicePortMap: map[uint16]string{
			80:   "http",
			8080: "http",
			21:   "ftp",
			445:  "smb",
			22:   "ssh",
			53:   "dns",
		},
		SampleTargetsCap: 20,
	}
}

// ServiceFor maps a destination port to its coarse service label.
func (p *Pipeline) ServiceFor(port uint16) string {
	if svc, ok := p.ServicePortMap[port]; ok {
		return svc
	}
	return "unknown"
}

// Validate fails fast on nonsensical settings, before any packet is read.
func (p *Pipeline) Validate() error {
	if p.WindowSeconds <= 0 {
		return &model.ConfigError{Field: "window_seconds", Reason: "must be positive"}
	}
	if p.IdleSplitSeconds <= 0 {
		return &model.ConfigError{Field: "idle_split_seconds", Reason: "must be positive"}
	}
	if p.ScanUniqueDstsThreshold < 0 {
		return &model.ConfigError{Field: "scan_unique_dsts_threshold", Reason: "must not be negative"}
	}
	if p.IForestContamination < 0 || p.IForestContamination > 0.5 {
		return &model.ConfigError{Field: "iforest_contamination", Reason: "must be in [0, 0.5]"}
	}
	if p.IForestEstimators < 1 {
		return &model.ConfigError{Field: "iforest_estimators", Reason: "must be at least 1"}
	}
	if p.CountLogBase <= 1.0 {
		return &model.ConfigError{Field: "count_log_base", Reason: "must be greater than 1"}
	}
	if p.DurationLogBase <= 1.0 {
		return &model.ConfigError{Field: "duration_log_base", Reason: "must be greater than 1"}
	}
	if p.MaxBin <= 0 {
		return &model.ConfigError{Field: "max_bin", Reason: "must be positive"}
	}
	if p.HTTPURITokenBudget <= 0 {
		return &model.ConfigError{Field: "http_uri_token_budget", Reason: "must be positive"}
	}
	if p.SampleTargetsCap <= 0 {
		return &model.ConfigError{Field: "sample_targets_cap", Reason: "must be positive"}
	}
	return nil
}

// ClickHouseConfig holds connection settings for the ClickHouse sink.
type ClickHouseConfig struct {
	Enabled  bool   `yaml:"enabled"`
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	Database string `yaml:"database"`
	Username string `yaml:"username"`
	Password string `yaml:"password"`
}

// NATSConfig holds connection settings for the NATS sink.
type NATSConfig struct {
	Enabled bool   `yaml:"enabled"`
	URL     string `yaml:"url"`
	Subject string `yaml:"subject"`
}

// TextConfig points the JSON-lines sink at a file; empty path means stdout.
type TextConfig struct {
	Enabled bool   `yaml:"enabled"`
	Path    string `yaml:"path"`
}

// SinksConfig enables the output adapters the binaries wire up.
type SinksConfig struct {
	ClickHouse ClickHouseConfig `yaml:"clickhouse"`
	NATS       NATSConfig       `yaml:"nats"`
	Text       TextConfig       `yaml:"text"`
}

// Config is the top-level configuration for the NetDistill binaries.
type Config struct {
	Pipeline Pipeline `yaml:"pipeline"`
	Source   struct {
		Root string `yaml:"root"`
	} `yaml:"source"`
	Sinks SinksConfig `yaml:"sinks"`
	API   struct {
		ListenAddr string `yaml:"listen_addr"`
	} `yaml:"api"`
}

// LoadConfig reads a YAML file over the defaults and validates the result.
func LoadConfig(filePath string) (*Config, error) {
	data, err := os.ReadFile(filePath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	cfg := &Config{Pipeline: DefaultPipeline()}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config YAML: %w", err)
	}
	if len(cfg.Pipeline.ServicePortMap) == 0 {
		cfg.Pipeline.ServicePortMap = DefaultPipeline().ServicePortMap
	}
	if len(cfg.Pipeline.HTTPAlwaysKeepLexicon) == 0 {
		cfg.Pipeline.HTTPAlwaysKeepLexicon = DefaultPipeline().HTTPAlwaysKeepLexicon
	}
	if err := cfg.Pipeline.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}
