package runner

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"github.com/pelletier/go-toml/v2"
)

// Profile is the optional TOML file holding per-machine settings.
// Durations are strings in time.ParseDuration syntax.
type Profile struct {
	Runner struct {
		URL             string `toml:"url"`
		APIToken        string `toml:"api_token"`
		EventSource     string `toml:"event_source"`
		CommandTimeout  string `toml:"command_timeout"`
		DownloadTimeout string `toml:"download_timeout"`
	} `toml:"runner"`

	Redis struct {
		URL      string `toml:"url"`
		Addr     string `toml:"addr"`
		Password string `toml:"password"`
		DB       int    `toml:"db"`
		Channel  string `toml:"channel"`
	} `toml:"redis"`

	RabbitMQ struct {
		URL      string `toml:"url"`
		Exchange string `toml:"exchange"`
	} `toml:"rabbitmq"`

	Output struct {
		Dir  string `toml:"dir"`
		XLSX bool   `toml:"xlsx"`
	} `toml:"output"`

	Log struct {
		Level string `toml:"level"`
	} `toml:"log"`

	AWS struct {
		Region    string `toml:"region"`
		AccessKey string `toml:"access_key"`
		SecretKey string `toml:"secret_key"`
		Endpoint  string `toml:"endpoint"`
	} `toml:"aws"`
}

// ProfilePath returns the default profile location
func ProfilePath() (string, error) {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to get home directory: %w", err)
	}

	return filepath.Join(homeDir, ".config", "mapminer", "config.toml"), nil
}

// LoadProfile reads the profile at path. A missing file is not an error
// and yields nil, so a fresh machine runs on defaults.
func LoadProfile(path string) (*Profile, error) {
	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read profile: %w", err)
	}

	var p Profile
	if err := toml.Unmarshal(data, &p); err != nil {
		return nil, fmt.Errorf("failed to parse profile %s: %w", path, err)
	}

	return &p, nil
}

// apply overlays the non-empty profile values onto cfg
func (p *Profile) apply(cfg *Config) error {
	setIfNotEmpty(&cfg.RunnerURL, p.Runner.URL)
	setIfNotEmpty(&cfg.APIToken, p.Runner.APIToken)
	setIfNotEmpty(&cfg.EventSource, p.Runner.EventSource)

	if err := setDuration(&cfg.CommandTimeout, p.Runner.CommandTimeout); err != nil {
		return fmt.Errorf("runner.command_timeout: %w", err)
	}
	if err := setDuration(&cfg.DownloadTimeout, p.Runner.DownloadTimeout); err != nil {
		return fmt.Errorf("runner.download_timeout: %w", err)
	}

	setIfNotEmpty(&cfg.RedisURL, p.Redis.URL)
	setIfNotEmpty(&cfg.RedisAddr, p.Redis.Addr)
	setIfNotEmpty(&cfg.RedisPass, p.Redis.Password)
	setIfNotEmpty(&cfg.RedisChannel, p.Redis.Channel)
	if p.Redis.DB != 0 {
		cfg.RedisDB = p.Redis.DB
	}

	setIfNotEmpty(&cfg.RabbitMQURL, p.RabbitMQ.URL)
	setIfNotEmpty(&cfg.RabbitMQExchange, p.RabbitMQ.Exchange)

	setIfNotEmpty(&cfg.OutputDir, p.Output.Dir)
	cfg.XLSX = cfg.XLSX || p.Output.XLSX

	setIfNotEmpty(&cfg.LogLevel, p.Log.Level)

	setIfNotEmpty(&cfg.AwsRegion, p.AWS.Region)
	setIfNotEmpty(&cfg.AwsAccessKey, p.AWS.AccessKey)
	setIfNotEmpty(&cfg.AwsSecretKey, p.AWS.SecretKey)
	setIfNotEmpty(&cfg.S3Endpoint, p.AWS.Endpoint)

	return nil
}

func setIfNotEmpty(dst *string, v string) {
	if v != "" {
		*dst = v
	}
}

func setDuration(dst *time.Duration, v string) error {
	if v == "" {
		return nil
	}

	d, err := time.ParseDuration(v)
	if err != nil {
		return err
	}

	*dst = d

	return nil
}
