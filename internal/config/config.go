// Package config loads the sitebuilder application configuration (sitebuilder.yaml).
//
// This is the tool's own configuration: where content, themes and client
// assets live, how front matter and Markdown are treated, and how the asset
// pipeline and development server behave. Theme configuration that ends up
// in template globals is handled by the theme package.
package config

import (
	_ "embed"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"

	foundationerrors "git.home.luguber.info/inful/sitebuilder/internal/foundation/errors"
)

// DefaultPath is the configuration file looked up when none is given.
const DefaultPath = "sitebuilder.yaml"

// Config represents the application configuration.
type Config struct {
	Paths       PathsConfig       `yaml:"paths"`
	FrontMatter FrontMatterConfig `yaml:"frontmatter"`
	Markdown    MarkdownConfig    `yaml:"markdown"`
	Assets      AssetsConfig      `yaml:"assets"`
	Server      ServerConfig      `yaml:"server"`
	Build       BuildConfig       `yaml:"build"`
}

// PathsConfig locates the build inputs and outputs.
type PathsConfig struct {
	Content     string `yaml:"content"`
	Theme       string `yaml:"theme,omitempty"` // base theme directory; empty uses the embedded theme
	CustomTheme string `yaml:"custom_theme"`
	Client      string `yaml:"client"`
	Staging     string `yaml:"staging"`
	Dist        string `yaml:"dist"`
}

// FrontMatterConfig controls front-matter parse failures.
type FrontMatterConfig struct {
	// Strict turns malformed front matter into a build error. When false the
	// document is built with empty metadata and a warning is logged.
	Strict bool `yaml:"strict"`
}

// MarkdownConfig toggles renderer features.
type MarkdownConfig struct {
	Typographer bool `yaml:"typographer"`
	Linkify     bool `yaml:"linkify"`
	HardWraps   bool `yaml:"hard_wraps"`
	Emoji       bool `yaml:"emoji"`
	Unsafe      bool `yaml:"unsafe"` // pass raw HTML through
}

// AssetsConfig drives the scripts, styles and html tasks.
type AssetsConfig struct {
	Scripts      []string `yaml:"scripts"`       // bundle entry points, relative to the client dir
	OtherScripts []string `yaml:"other_scripts"` // copied verbatim to dist
	Styles       []string `yaml:"styles"`        // stylesheet entry points, relative to the client dir
	Targets      []string `yaml:"targets"`       // browser targets, e.g. chrome34, firefox30, safari7
	Minify       bool     `yaml:"minify"`
	InlineLimit  int      `yaml:"inline_limit"` // max bytes of a local asset inlined into html
}

// ServerConfig configures the development server.
type ServerConfig struct {
	Host            string        `yaml:"host"`
	Port            int           `yaml:"port"`
	LiveReload      bool          `yaml:"live_reload"`
	Debounce        time.Duration `yaml:"debounce"`
	RebuildInterval time.Duration `yaml:"rebuild_interval,omitempty"`
	Metrics         bool          `yaml:"metrics"`
}

// BuildConfig holds production build options.
type BuildConfig struct {
	About   bool   `yaml:"about"`              // write dist/about.txt
	RepoURL string `yaml:"repo_url,omitempty"` // overrides the origin remote URL in about.txt
}

// Default returns the configuration used for unset fields.
func Default() Config {
	return Config{
		Paths: PathsConfig{
			Content:     "content",
			CustomTheme: "theme",
			Client:      "client",
			Staging:     ".tmp",
			Dist:        "dist",
		},
		Markdown: MarkdownConfig{
			Typographer: true,
			Linkify:     true,
			HardWraps:   true,
			Emoji:       true,
			Unsafe:      true,
		},
		Assets: AssetsConfig{
			Scripts:      []string{"scripts/main.js"},
			OtherScripts: []string{"scripts/top.js"},
			Styles:       []string{"styles/main.css"},
			Targets:      []string{"ie11", "firefox30", "chrome34", "ios7", "safari7"},
			Minify:       true,
			InlineLimit:  8192,
		},
		Server: ServerConfig{
			Host:       "localhost",
			Port:       3000,
			LiveReload: true,
			Debounce:   300 * time.Millisecond,
		},
		Build: BuildConfig{About: true},
	}
}

// Load loads configuration from the specified file. A missing file at the
// default path yields the defaults; a missing explicit path is an error.
func Load(configPath string) (*Config, error) {
	LoadEnvFiles()

	cfg := Default()
	data, err := os.ReadFile(configPath)
	switch {
	case os.IsNotExist(err) && filepath.Clean(configPath) == DefaultPath:
		applyDefaults(&cfg)
		return &cfg, nil
	case os.IsNotExist(err):
		return nil, foundationerrors.NewError(foundationerrors.CategoryNotFound, "configuration file not found").
			WithContext("path", configPath).
			Fatal().
			Build()
	case err != nil:
		return nil, foundationerrors.WrapError(err, foundationerrors.CategoryFileSystem, "failed to read config file").
			WithContext("path", configPath).
			Build()
	}

	expanded := os.ExpandEnv(string(data))
	if err := yaml.Unmarshal([]byte(expanded), &cfg); err != nil {
		return nil, foundationerrors.ConfigError("failed to unmarshal config").
			WithContext("path", configPath).
			WithCause(err).
			Build()
	}
	applyDefaults(&cfg)
	if err := Validate(&cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// applyDefaults fills fields that were explicitly emptied.
func applyDefaults(cfg *Config) {
	d := Default()
	setIfEmpty(&cfg.Paths.Content, d.Paths.Content)
	setIfEmpty(&cfg.Paths.CustomTheme, d.Paths.CustomTheme)
	setIfEmpty(&cfg.Paths.Client, d.Paths.Client)
	setIfEmpty(&cfg.Paths.Staging, d.Paths.Staging)
	setIfEmpty(&cfg.Paths.Dist, d.Paths.Dist)
	setIfEmpty(&cfg.Server.Host, d.Server.Host)
	if cfg.Server.Port == 0 {
		cfg.Server.Port = d.Server.Port
	}
	if cfg.Server.Debounce <= 0 {
		cfg.Server.Debounce = d.Server.Debounce
	}
}

func setIfEmpty(dst *string, value string) {
	if *dst == "" {
		*dst = value
	}
}

// Addr returns the listen address of the development server.
func (s ServerConfig) Addr() string {
	return fmt.Sprintf("%s:%d", s.Host, s.Port)
}

//go:embed example.yaml
var exampleConfig []byte

// Init creates a new configuration file with example content.
func Init(configPath string, force bool) error {
	if _, err := os.Stat(configPath); err == nil && !force {
		return foundationerrors.ValidationError("configuration file already exists (use --force to overwrite)").
			WithContext("path", configPath).
			Build()
	}
	if err := os.WriteFile(configPath, exampleConfig, 0o644); err != nil {
		return foundationerrors.WrapError(err, foundationerrors.CategoryFileSystem, "failed to write config file").
			WithContext("path", configPath).
			Build()
	}
	return nil
}
