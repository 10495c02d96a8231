package theme

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io/fs"
	"path"
	"regexp"
	"slices"
	"strings"

	"github.com/pelletier/go-toml/v2"
	"gopkg.in/yaml.v3"

	foundationerrors "git.home.luguber.info/inful/sitebuilder/internal/foundation/errors"
	"git.home.luguber.info/inful/sitebuilder/internal/frontmatter"
)

// ConfigDir is the directory of a layer holding configuration files.
const ConfigDir = "config"

type decodeFunc func([]byte) (any, error)

var configDecoders = map[string]decodeFunc{
	".yaml": decodeYAML,
	".yml":  decodeYAML,
	".json": decodeJSON,
	".toml": decodeTOML,
}

// ConfigFile is one discovered configuration file.
type ConfigFile struct {
	Path       string   // slash path relative to the layer root
	ObjectPath []string // where the file's content is merged; empty for the root object
	Depth      int
	Index      bool
}

var (
	hyphenRuns      = regexp.MustCompile(`-+`)
	hyphenSpaceRuns = regexp.MustCompile(`[-\s]+`)
)

// ObjectPath computes the merge location of a config file from its path
// relative to the config directory. An index file contributes to its
// directory's object.
func ObjectPath(rel string) []string {
	dir, file := path.Split(rel)
	name := strings.TrimSuffix(file, path.Ext(file))

	var out []string
	for seg := range strings.SplitSeq(strings.Trim(dir, "/"), "/") {
		if seg != "" {
			out = append(out, hyphenRuns.ReplaceAllString(seg, "_"))
		}
	}
	if name != "index" {
		out = append(out, hyphenSpaceRuns.ReplaceAllString(name, "_"))
	}
	return out
}

// DiscoverConfig lists the configuration files of a layer in merge order:
// depth ascending, index files first at equal depth, then by path.
// Files with an unsupported extension are a configuration error.
func DiscoverConfig(fsys fs.FS) ([]ConfigFile, error) {
	var files []ConfigFile
	err := WalkLayer(fsys, ConfigDir, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if p != ConfigDir && IsHidden(d.Name()) {
			if d.IsDir() {
				return fs.SkipDir
			}
			return nil
		}
		if d.IsDir() {
			return nil
		}
		ext := strings.ToLower(path.Ext(p))
		if _, ok := configDecoders[ext]; !ok {
			return foundationerrors.ConfigError("unsupported configuration file type").
				WithContext("path", p).
				WithContext("extension", ext).
				Build()
		}
		rel := strings.TrimPrefix(p, ConfigDir+"/")
		name := strings.TrimSuffix(path.Base(rel), path.Ext(rel))
		files = append(files, ConfigFile{
			Path:       p,
			ObjectPath: ObjectPath(rel),
			Depth:      strings.Count(rel, "/"),
			Index:      name == "index",
		})
		return nil
	})
	if err != nil {
		return nil, err
	}
	slices.SortFunc(files, compareConfigFiles)
	return files, nil
}

func compareConfigFiles(a, b ConfigFile) int {
	if a.Depth != b.Depth {
		return a.Depth - b.Depth
	}
	if a.Index != b.Index {
		if a.Index {
			return -1
		}
		return 1
	}
	return strings.Compare(a.Path, b.Path)
}

// LoadConfig merges every configuration file of a layer over into and
// returns the result. Sentinel arrays splice against values already present
// in into, so lower layers are passed here rather than merged afterwards.
// into is not modified and may be nil.
func LoadConfig(layer Layer, into map[string]any) (map[string]any, error) {
	files, err := DiscoverConfig(layer.FS)
	if err != nil {
		return nil, err
	}
	result := into
	if result == nil {
		result = map[string]any{}
	}
	for _, f := range files {
		raw, err := fs.ReadFile(layer.FS, f.Path)
		if err != nil {
			return nil, foundationerrors.WrapError(err, foundationerrors.CategoryFileSystem, "failed to read configuration file").
				WithContext("layer", layer.Name).
				WithContext("path", f.Path).
				Build()
		}
		value, err := configDecoders[strings.ToLower(path.Ext(f.Path))](raw)
		if err != nil {
			return nil, foundationerrors.ConfigError("malformed configuration file").
				WithContext("layer", layer.Name).
				WithContext("path", f.Path).
				WithCause(err).
				Build()
		}
		if value == nil {
			continue
		}
		if len(f.ObjectPath) == 0 {
			if _, ok := value.(map[string]any); !ok {
				return nil, foundationerrors.ConfigError("index configuration must be a mapping").
					WithContext("layer", layer.Name).
					WithContext("path", f.Path).
					Build()
			}
		}
		merged, err := MergeAt(result, f.ObjectPath, value)
		if err != nil {
			return nil, foundationerrors.ConfigError("cannot merge configuration file").
				WithContext("layer", layer.Name).
				WithContext("path", f.Path).
				WithCause(err).
				Build()
		}
		result = merged
	}
	return result, nil
}

func decodeYAML(raw []byte) (any, error) {
	var v any
	if err := yaml.Unmarshal(raw, &v); err != nil {
		return nil, err
	}
	return frontmatter.Normalize(v), nil
}

func decodeJSON(raw []byte) (any, error) {
	if len(bytes.TrimSpace(raw)) == 0 {
		return nil, nil
	}
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	var v any
	if err := dec.Decode(&v); err != nil {
		return nil, err
	}
	if dec.More() {
		return nil, fmt.Errorf("unexpected data after top-level JSON value")
	}
	return frontmatter.Normalize(v), nil
}

func decodeTOML(raw []byte) (any, error) {
	var v map[string]any
	if err := toml.Unmarshal(raw, &v); err != nil {
		return nil, err
	}
	return frontmatter.Normalize(v), nil
}
