package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

type Config struct {
	Source   SourceConfig   `yaml:"source"`
	Decoder  DecoderConfig  `yaml:"decoder"`
	Worker   WorkerConfig   `yaml:"worker"`
	HTTP     HTTPConfig     `yaml:"http"`
	Pushover PushoverConfig `yaml:"pushover"`
	Log      LogConfig      `yaml:"log"`
}

type SourceConfig struct {
	// Kind is one of file, dir, url, upload or microphone.
	Kind          string   `yaml:"kind"`
	Files         []string `yaml:"files"`
	Dir           string   `yaml:"dir"`
	URL           string   `yaml:"url"`
	RecordSeconds int      `yaml:"record_seconds"`
	FetchTimeout  string   `yaml:"fetch_timeout"`
}

type DecoderConfig struct {
	FFmpegPath string `yaml:"ffmpeg_path"`
}

type WorkerConfig struct {
	// Kind is local (in-process engine) or websocket (remote worker).
	Kind        string `yaml:"kind"`
	Endpoint    string `yaml:"endpoint"`
	APIKey      string `yaml:"api_key"`
	BaseURL     string `yaml:"base_url"`
	EngineModel string `yaml:"engine_model"`
	Timeout     string `yaml:"timeout"`
}

type HTTPConfig struct {
	Enabled   bool   `yaml:"enabled"`
	Addr      string `yaml:"addr"`
	AuthToken string `yaml:"auth_token"`
}

type PushoverConfig struct {
	Token   string `yaml:"token"`
	UserKey string `yaml:"user_key"`
	Enabled bool   `yaml:"enabled"`
}

type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	return Parse(data)
}

// Parse decodes YAML config after expanding ${VAR} references from the
// environment, then applies defaults and validates the result.
func Parse(data []byte) (*Config, error) {
	expanded := os.ExpandEnv(string(data))

	var cfg Config
	if err := yaml.Unmarshal([]byte(expanded), &cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}

	cfg.setDefaults()

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return &cfg, nil
}

func (c *Config) setDefaults() {
	if c.Source.Kind == "" {
		c.Source.Kind = "upload"
	}
	if c.Source.Dir == "" {
		c.Source.Dir = "./audio"
	}
	if c.Source.RecordSeconds == 0 {
		c.Source.RecordSeconds = 5
	}
	if c.Source.FetchTimeout == "" {
		c.Source.FetchTimeout = "30s"
	}
	if c.Worker.Kind == "" {
		c.Worker.Kind = "local"
	}
	if c.Worker.Timeout == "" {
		c.Worker.Timeout = "2m"
	}
	if c.HTTP.Addr == "" {
		c.HTTP.Addr = ":8080"
	}
	if c.Log.Level == "" {
		c.Log.Level = "info"
	}
	if c.Log.Format == "" {
		c.Log.Format = "text"
	}
}

func (c *Config) Validate() error {
	var errs []error

	switch c.Source.Kind {
	case "file":
		if len(c.Source.Files) == 0 {
			errs = append(errs, errors.New("source.files is required for the file source"))
		}
	case "url":
		if c.Source.URL == "" {
			errs = append(errs, errors.New("source.url is required for the url source"))
		}
	case "upload":
		if !c.HTTP.Enabled {
			errs = append(errs, errors.New("the upload source needs http.enabled"))
		}
	case "dir", "microphone":
	default:
		errs = append(errs, fmt.Errorf("unknown source.kind %q", c.Source.Kind))
	}

	if c.Source.RecordSeconds < 0 {
		errs = append(errs, fmt.Errorf("source.record_seconds must be positive, got %d", c.Source.RecordSeconds))
	}
	if _, err := time.ParseDuration(c.Source.FetchTimeout); err != nil {
		errs = append(errs, fmt.Errorf("source.fetch_timeout: %w", err))
	}

	switch c.Worker.Kind {
	case "local":
		if c.Worker.BaseURL == "" && c.Worker.APIKey == "" {
			errs = append(errs, errors.New("worker.api_key or worker.base_url is required for the local worker"))
		}
	case "websocket":
		if c.Worker.Endpoint == "" {
			errs = append(errs, errors.New("worker.endpoint is required for the websocket worker"))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown worker.kind %q", c.Worker.Kind))
	}
	if _, err := time.ParseDuration(c.Worker.Timeout); err != nil {
		errs = append(errs, fmt.Errorf("worker.timeout: %w", err))
	}

	return errors.Join(errs...)
}

func (c *Config) FetchTimeout() time.Duration {
	d, _ := time.ParseDuration(c.Source.FetchTimeout)
	return d
}

func (c *Config) WorkerTimeout() time.Duration {
	d, _ := time.ParseDuration(c.Worker.Timeout)
	return d
}

func (c *Config) RecordDuration() time.Duration {
	return time.Duration(c.Source.RecordSeconds) * time.Second
}
