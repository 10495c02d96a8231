package assets

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/evanw/esbuild/pkg/api"

	foundationerrors "git.home.luguber.info/inful/sitebuilder/internal/foundation/errors"
	"git.home.luguber.info/inful/sitebuilder/internal/logfields"
)

var targetPattern = regexp.MustCompile(`^([a-z]+)([0-9]+(?:\.[0-9]+)*)$`)

var engineNames = map[string]api.EngineName{
	"chrome":  api.EngineChrome,
	"edge":    api.EngineEdge,
	"firefox": api.EngineFirefox,
	"ie":      api.EngineIE,
	"ios":     api.EngineIOS,
	"opera":   api.EngineOpera,
	"safari":  api.EngineSafari,
}

// Engines converts browser targets such as "chrome34" into esbuild engines.
func Engines(targets []string) ([]api.Engine, error) {
	engines := make([]api.Engine, 0, len(targets))
	for _, t := range targets {
		m := targetPattern.FindStringSubmatch(strings.ToLower(t))
		if m == nil {
			return nil, fmt.Errorf("invalid browser target %q", t)
		}
		name, ok := engineNames[m[1]]
		if !ok {
			return nil, fmt.Errorf("unsupported browser %q in target %q", m[1], t)
		}
		engines = append(engines, api.Engine{Name: name, Version: m[2]})
	}
	return engines, nil
}

// externalAssets stay as url() references; the images and copy steps ship them.
var externalAssets = []string{
	"*.png", "*.jpg", "*.jpeg", "*.gif", "*.svg", "*.webp",
	"*.woff", "*.woff2", "*.ttf", "*.eot",
}

// Scripts bundles each script entry into <staging>/<dir>/<name>.bundle.js.
// Development builds get linked source maps, production builds are minified.
func (p *Pipeline) Scripts(ctx context.Context) error {
	entries := p.entries(p.assets.Scripts)
	if len(entries) == 0 {
		return nil
	}
	opts := api.BuildOptions{
		EntryPoints: entries,
		EntryNames:  "[dir]/[name].bundle",
		Bundle:      true,
		Write:       true,
		Outdir:      p.paths.Staging,
		Outbase:     p.paths.Client,
		Target:      api.ES2015,
		Format:      api.FormatIIFE,
		LogLevel:    api.LogLevelSilent,
	}
	p.applyMode(&opts)
	return p.run(ctx, "scripts", opts)
}

// Styles bundles each stylesheet entry into staging, lowering and prefixing
// for the configured browser targets.
func (p *Pipeline) Styles(ctx context.Context) error {
	entries := p.entries(p.assets.Styles)
	if len(entries) == 0 {
		return nil
	}
	engines, err := Engines(p.assets.Targets)
	if err != nil {
		return foundationerrors.WrapError(err, foundationerrors.CategoryConfig, "invalid browser targets").Build()
	}
	opts := api.BuildOptions{
		EntryPoints: entries,
		Bundle:      true,
		Write:       true,
		Outdir:      p.paths.Staging,
		Outbase:     p.paths.Client,
		Engines:     engines,
		External:    externalAssets,
		LogLevel:    api.LogLevelSilent,
	}
	p.applyMode(&opts)
	return p.run(ctx, "styles", opts)
}

func (p *Pipeline) applyMode(opts *api.BuildOptions) {
	if p.mode == Development {
		opts.Sourcemap = api.SourceMapLinked
		return
	}
	if p.assets.Minify {
		opts.MinifyWhitespace = true
		opts.MinifyIdentifiers = true
		opts.MinifySyntax = true
	}
}

// entries resolves configured entry points against the client directory,
// dropping ones that do not exist.
func (p *Pipeline) entries(configured []string) []string {
	var out []string
	for _, e := range configured {
		full := filepath.Join(p.paths.Client, filepath.FromSlash(e))
		if _, err := os.Stat(full); err != nil {
			slog.Debug("Skipping missing entry point", logfields.Path(full))
			continue
		}
		out = append(out, full)
	}
	return out
}

func (p *Pipeline) run(ctx context.Context, step string, opts api.BuildOptions) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	result := api.Build(opts)
	for _, msg := range api.FormatMessages(result.Warnings, api.FormatMessagesOptions{Kind: api.WarningMessage}) {
		slog.Warn(strings.TrimSpace(msg), logfields.Task(step))
	}
	if len(result.Errors) > 0 {
		formatted := api.FormatMessages(result.Errors, api.FormatMessagesOptions{Kind: api.ErrorMessage})
		return foundationerrors.AssetError(fmt.Sprintf("%s failed with %d error(s)", step, len(result.Errors))).
			WithContext("task", step).
			WithContext("messages", strings.TrimSpace(strings.Join(formatted, "\n"))).
			Build()
	}
	slog.Debug("Bundled", logfields.Task(step), logfields.Count(len(result.OutputFiles)), logfields.Mode(string(p.mode)))
	return nil
}
