// Package config assembles the keepbackup configuration once at startup.
//
// Sources, lowest priority first: built-in defaults, an optional YAML file,
// an optional .env file, the process environment. The .env file is read into
// the configuration only; the process environment is never modified.
package config

import (
	"bufio"
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/hazyhaar/keepbackup/failure"
	"github.com/hazyhaar/keepbackup/notes"
)

const (
	// DefaultFile is read when present and no file was named explicitly.
	DefaultFile = "keepbackup.yaml"
	// DefaultEnvFile is read when present and no env file was named explicitly.
	DefaultEnvFile = ".env"

	DefaultKeepURL     = "https://keep.google.com/"
	DefaultFixturePath = "fixtures/keep_mock.html"
)

// Environment variables consulted by Load.
const (
	EnvProfileDir   = "KEEP_BROWSER_PROFILE_DIR"
	EnvBrowserBin   = "KEEP_BROWSER_BIN"
	EnvAutoDownload = "KEEP_BROWSER_AUTO_DOWNLOAD"
	EnvLogLevel     = "KEEP_LOG_LEVEL"
	EnvOutputDir    = "KEEP_OUTPUT_DIR"
	EnvKeepURL      = "KEEP_URL"
)

// Config is the complete runtime configuration. It is passed by value.
type Config struct {
	// OutputDir roots the backups/ and logs/ trees. Empty means the
	// working directory.
	OutputDir string        `yaml:"output_dir"`
	LogLevel  string        `yaml:"log_level"`
	Browser   BrowserConfig `yaml:"browser"`
	Live      LiveConfig    `yaml:"live"`
	Fixture   FixtureConfig `yaml:"fixture"`

	// browserErr holds an unusable browser setting from the environment.
	// It only fails the modes that start a browser.
	browserErr error
}

// BrowserConfig controls how the headless browser is found and driven.
type BrowserConfig struct {
	// Bin is the Chrome/Chromium executable. Empty means look it up.
	Bin string `yaml:"bin"`
	// AutoDownload lets the driver fetch a browser when none is installed.
	AutoDownload bool `yaml:"auto_download"`
	// ProfileDir is a persisted user-data directory for the live check.
	ProfileDir        string        `yaml:"profile_dir"`
	NavigationTimeout time.Duration `yaml:"navigation_timeout" validate:"gt=0"`
	SettleDelay       time.Duration `yaml:"settle_delay" validate:"gte=0"`
}

// LiveConfig configures the live smoke check.
type LiveConfig struct {
	URL string `yaml:"url" validate:"required,url"`
}

// FixtureConfig configures the fixture smoke check.
type FixtureConfig struct {
	Path     string `yaml:"path" validate:"required"`
	Selector string `yaml:"selector" validate:"required"`
	MinNotes int    `yaml:"min_notes" validate:"gte=0"`
}

// Default returns the built-in configuration.
func Default() Config {
	return Config{
		LogLevel: "warn",
		Browser: BrowserConfig{
			NavigationTimeout: 30 * time.Second,
			SettleDelay:       time.Second,
		},
		Live: LiveConfig{URL: DefaultKeepURL},
		Fixture: FixtureConfig{
			Path:     DefaultFixturePath,
			Selector: notes.NoteSelector,
			MinNotes: 1,
		},
	}
}

// Options selects the configuration sources.
type Options struct {
	// File is a YAML file. Empty means DefaultFile if it exists.
	File string
	// EnvFile is a KEY=VALUE file. Empty means DefaultEnvFile if it exists.
	EnvFile string
	// Environ is the process environment as KEY=VALUE pairs. Nil means
	// os.Environ().
	Environ []string
}

// Load builds the configuration and validates the settings every mode
// needs. On error the returned Config still carries every source that could
// be read, so the caller can root the run output and report the error there.
// Browser, live and fixture settings are checked by ValidateLive and
// ValidateFixture.
func Load(opts Options) (Config, error) {
	cfg := Default()
	var errs []error

	if err := cfg.mergeFile(opts.File); err != nil {
		errs = append(errs, err)
	}

	env, err := loadEnv(opts.EnvFile, opts.Environ)
	if err != nil {
		errs = append(errs, err)
	}
	cfg.mergeEnv(env)

	cfg.Browser.ProfileDir = expandHome(cfg.Browser.ProfileDir)
	cfg.LogLevel = strings.ToLower(cfg.LogLevel)

	if err := cfg.Validate(); err != nil {
		errs = append(errs, err)
	}
	return cfg, errors.Join(errs...)
}

var validate = validator.New()

const logLevelRule = "oneof=debug info warn error"

// Validate checks the settings shared by every mode.
func (c Config) Validate() error {
	if err := validate.Var(c.LogLevel, logLevelRule); err != nil {
		return failure.Validation("config: log_level %q: want debug, info, warn or error", c.LogLevel)
	}
	return nil
}

// ValidateLive checks the settings used by the live smoke check.
func (c Config) ValidateLive() error {
	return c.validateSections(c.Browser, c.Live)
}

// ValidateFixture checks the settings used by the fixture smoke check.
func (c Config) ValidateFixture() error {
	return c.validateSections(c.Browser, c.Fixture)
}

func (c Config) validateSections(sections ...any) error {
	if c.browserErr != nil {
		return c.browserErr
	}
	for _, s := range sections {
		if err := validate.Struct(s); err != nil {
			return failure.Validation("config: invalid: %v", err)
		}
	}
	return nil
}

func (c *Config) mergeFile(path string) error {
	explicit := path != ""
	if !explicit {
		path = DefaultFile
	}

	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		if !explicit {
			return nil
		}
		return failure.NotFound("config file not found: %s", path)
	}
	if err != nil {
		return failure.IO(err, "config: read %s", path)
	}
	if err := yaml.Unmarshal(data, c); err != nil {
		return failure.Validation("config: parse %s: %v", path, err)
	}
	return nil
}

// loadEnv merges the env file under the process environment. The process
// environment is returned even when the file cannot be read.
func loadEnv(envFile string, environ []string) (map[string]string, error) {
	env := make(map[string]string)

	explicit := envFile != ""
	if !explicit {
		envFile = DefaultEnvFile
	}
	fileVals, err := readEnvFile(envFile)
	switch {
	case err == nil:
		for k, v := range fileVals {
			env[k] = v
		}
	case errors.Is(err, fs.ErrNotExist) && !explicit:
		err = nil
	case errors.Is(err, fs.ErrNotExist):
		err = failure.NotFound("env file not found: %s", envFile)
	default:
		err = failure.IO(err, "config: read env file %s", envFile)
	}

	if environ == nil {
		environ = os.Environ()
	}
	for _, kv := range environ {
		if k, v, ok := strings.Cut(kv, "="); ok {
			env[k] = v
		}
	}
	return env, err
}

// readEnvFile reads KEY=VALUE lines. Blank lines, # comments and lines
// without '=' are skipped. Values are literal after trimming and removing
// surrounding quotes; $VAR references are not expanded.
func readEnvFile(path string) (map[string]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	vals := make(map[string]string)
	sc := bufio.NewScanner(f)
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" || strings.HasPrefix(line, "#") || !strings.Contains(line, "=") {
			continue
		}
		key, value, _ := strings.Cut(line, "=")
		key = strings.TrimSpace(key)
		value = strings.Trim(strings.Trim(strings.TrimSpace(value), `"`), "'")
		for k, v := range envPair(key, value) {
			vals[k] = v
		}
	}
	if err := sc.Err(); err != nil {
		return nil, err
	}
	return vals, nil
}

// envPair normalises one assignment through godotenv, which handles the
// "export KEY" form. Single quoting keeps the value literal. Pairs godotenv
// rejects, such as keys with spaces, are kept as written.
func envPair(key, value string) map[string]string {
	if !strings.ContainsRune(value, '\'') && !strings.HasSuffix(value, `\`) {
		if m, err := godotenv.Unmarshal(key + "='" + value + "'"); err == nil && len(m) == 1 {
			return m
		}
	}
	return map[string]string{key: value}
}

func (c *Config) mergeEnv(env map[string]string) {
	get := func(key string) (string, bool) {
		v, ok := env[key]
		v = strings.TrimSpace(v)
		return v, ok && v != ""
	}

	if v, ok := get(EnvProfileDir); ok {
		c.Browser.ProfileDir = v
	}
	if v, ok := get(EnvBrowserBin); ok {
		c.Browser.Bin = v
	}
	if v, ok := get(EnvAutoDownload); ok {
		b, err := strconv.ParseBool(v)
		if err != nil {
			c.browserErr = failure.Validation("config: %s=%q: want true or false", EnvAutoDownload, v)
		} else {
			c.Browser.AutoDownload = b
		}
	}
	if v, ok := get(EnvLogLevel); ok {
		c.LogLevel = v
	}
	if v, ok := get(EnvOutputDir); ok {
		c.OutputDir = v
	}
	if v, ok := get(EnvKeepURL); ok {
		c.Live.URL = v
	}
}

func expandHome(path string) string {
	if path != "~" && !strings.HasPrefix(path, "~/") {
		return path
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return path
	}
	return filepath.Join(home, strings.TrimPrefix(path, "~"))
}
