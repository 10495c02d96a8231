// Package frontmatter splits metadata blocks from the top of content files and
// parses them into plain maps.
//
// Recognized openers are `---` (YAML), `---yaml`, `---yml`, `---json`,
// `---toml`, `---properties` and `+++` (TOML). All formats decode into the
// same shape: map[string]any with nested map[string]any, []any, string, bool,
// int and float64 leaves.
package frontmatter

import (
	"bytes"
	"errors"
	"fmt"
	"strings"
)

// Format identifies the syntax of a front-matter block.
type Format string

const (
	FormatYAML       Format = "yaml"
	FormatJSON       Format = "json"
	FormatTOML       Format = "toml"
	FormatProperties Format = "properties"
)

var (
	// ErrMissingClosingDelimiter indicates the document opened a front-matter
	// block but never closed it.
	ErrMissingClosingDelimiter = errors.New("frontmatter start delimiter found but closing delimiter is missing")
	// ErrUnknownFormat indicates a `---<lang>` opener naming an unsupported language.
	ErrUnknownFormat = errors.New("unknown frontmatter format")
)

// Style captures formatting details needed for stable rewriting.
type Style struct {
	Newline            string
	HasTrailingNewline bool
}

// Block is a raw front-matter block without its delimiters.
type Block struct {
	Format Format
	Raw    []byte
}

var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

// Split separates a front-matter block from the document body.
//
// If the document does not start with a front-matter opener, had is false and
// body is the full input.
func Split(content []byte) (block Block, body []byte, had bool, style Style, err error) {
	style = detectStyle(content)
	content = bytes.TrimPrefix(content, utf8BOM)

	opener, rest, ok := cutLine(content)
	format, closer, isOpener, err := parseOpener(opener)
	if err != nil {
		return Block{}, content, false, style, err
	}
	if !isOpener {
		return Block{}, content, false, style, nil
	}
	if !ok {
		return Block{}, nil, false, style, ErrMissingClosingDelimiter
	}

	fmStart := len(content) - len(rest)
	offset := fmStart
	for len(rest) > 0 {
		line, next, _ := cutLine(rest)
		if strings.TrimRight(string(line), " \t") == closer {
			return Block{Format: format, Raw: content[fmStart:offset]}, content[len(content)-len(next):], true, style, nil
		}
		offset += len(rest) - len(next)
		rest = next
	}
	return Block{}, nil, false, style, ErrMissingClosingDelimiter
}

// Join reassembles a document from a YAML front-matter block and body.
//
// If had is false, Join returns body as-is.
func Join(frontmatter []byte, body []byte, had bool, style Style) []byte {
	if !had {
		return body
	}
	nl := style.Newline
	if nl == "" {
		nl = "\n"
	}
	out := make([]byte, 0, len(frontmatter)+len(body)+8)
	out = append(out, "---"+nl...)
	out = append(out, frontmatter...)
	out = append(out, "---"+nl...)
	out = append(out, body...)
	return out
}

// Parse decodes a block into a map according to its format.
func Parse(b Block) (map[string]any, error) {
	var (
		fields map[string]any
		err    error
	)
	switch b.Format {
	case FormatYAML, "":
		fields, err = ParseYAML(b.Raw)
	case FormatJSON:
		fields, err = ParseJSON(b.Raw)
	case FormatTOML:
		fields, err = ParseTOML(b.Raw)
	case FormatProperties:
		fields, err = ParseProperties(b.Raw)
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnknownFormat, b.Format)
	}
	if err != nil {
		return nil, fmt.Errorf("parse %s frontmatter: %w", b.Format, err)
	}
	return fields, nil
}

// Document is a content file split into parsed metadata and body.
type Document struct {
	Data   map[string]any
	Body   []byte
	Format Format
	Had    bool
}

// ParseDocument splits and parses content in one step. Documents without a
// front-matter block get an empty, non-nil Data map.
func ParseDocument(content []byte) (Document, error) {
	block, body, had, _, err := Split(content)
	if err != nil {
		return Document{Data: map[string]any{}, Body: content}, err
	}
	if !had {
		return Document{Data: map[string]any{}, Body: body}, nil
	}
	data, err := Parse(block)
	if err != nil {
		return Document{Data: map[string]any{}, Body: body, Format: block.Format, Had: true}, err
	}
	return Document{Data: data, Body: body, Format: block.Format, Had: true}, nil
}

func parseOpener(line []byte) (format Format, closer string, ok bool, err error) {
	s := strings.TrimRight(string(line), " \t")
	switch {
	case s == "+++":
		return FormatTOML, "+++", true, nil
	case s == "---":
		return FormatYAML, "---", true, nil
	case strings.HasPrefix(s, "---"):
		lang := strings.ToLower(strings.TrimSpace(s[3:]))
		if lang == "" || strings.Trim(lang, "-") == "" {
			// A thematic break like "-----" is not an opener.
			return "", "", false, nil
		}
		switch lang {
		case "yaml", "yml":
			return FormatYAML, "---", true, nil
		case "json":
			return FormatJSON, "---", true, nil
		case "toml":
			return FormatTOML, "---", true, nil
		case "properties":
			return FormatProperties, "---", true, nil
		}
		return "", "", false, fmt.Errorf("%w: %q", ErrUnknownFormat, lang)
	}
	return "", "", false, nil
}

// cutLine returns the first line without its terminator and the remainder.
// ok is false when content has no newline.
func cutLine(content []byte) (line, rest []byte, ok bool) {
	i := bytes.IndexByte(content, '\n')
	if i < 0 {
		return bytes.TrimSuffix(content, []byte("\r")), nil, false
	}
	return bytes.TrimSuffix(content[:i], []byte("\r")), content[i+1:], true
}

func detectStyle(content []byte) Style {
	newline := "\n"
	if i := bytes.IndexByte(content, '\n'); i > 0 && content[i-1] == '\r' {
		newline = "\r\n"
	}
	return Style{
		Newline:            newline,
		HasTrailingNewline: len(content) > 0 && content[len(content)-1] == '\n',
	}
}
