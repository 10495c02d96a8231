package config

import (
	"path/filepath"
	"regexp"

	foundationerrors "git.home.luguber.info/inful/sitebuilder/internal/foundation/errors"
)

var targetPattern = regexp.MustCompile(`^(chrome|edge|firefox|ie|ios|opera|safari)[0-9]+(\.[0-9]+)*$`)

// Validate checks the configuration for values the build cannot work with.
func Validate(cfg *Config) error {
	invalid := func(msg, field string, value any) error {
		return foundationerrors.ValidationError(msg).
			WithContext("field", field).
			WithContext("value", value).
			Build()
	}

	if cfg.Server.Port < 1 || cfg.Server.Port > 65535 {
		return invalid("server port out of range", "server.port", cfg.Server.Port)
	}
	if cfg.Server.RebuildInterval < 0 {
		return invalid("rebuild interval must not be negative", "server.rebuild_interval", cfg.Server.RebuildInterval)
	}
	if cfg.Assets.InlineLimit < 0 {
		return invalid("inline limit must not be negative", "assets.inline_limit", cfg.Assets.InlineLimit)
	}
	for _, target := range cfg.Assets.Targets {
		if !targetPattern.MatchString(target) {
			return invalid("unsupported browser target", "assets.targets", target)
		}
	}

	outputs := map[string]string{
		"paths.staging": cfg.Paths.Staging,
		"paths.dist":    cfg.Paths.Dist,
	}
	inputs := map[string]string{
		"paths.content":      cfg.Paths.Content,
		"paths.custom_theme": cfg.Paths.CustomTheme,
		"paths.client":       cfg.Paths.Client,
	}
	if cfg.Paths.Theme != "" {
		inputs["paths.theme"] = cfg.Paths.Theme
	}
	for outField, out := range outputs {
		for _, in := range inputs {
			if filepath.Clean(out) == filepath.Clean(in) {
				return invalid("output directory must differ from input directories", outField, out)
			}
		}
	}
	if filepath.Clean(cfg.Paths.Staging) == filepath.Clean(cfg.Paths.Dist) {
		return invalid("staging and dist directories must differ", "paths.staging", cfg.Paths.Staging)
	}
	return nil
}
