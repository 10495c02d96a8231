package frontmatter

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestSerializeYAML_SortsKeysRecursively(t *testing.T) {
	fields := map[string]any{
		"b": 1,
		"a": map[string]any{"z": true, "m": []any{"x", int64(2)}},
	}
	out, err := SerializeYAML(fields)
	require.NoError(t, err)

	s := string(out)
	require.True(t, strings.HasPrefix(s, "a:\n"))
	require.True(t, strings.HasSuffix(s, "\nb: 1\n"))
	require.Less(t, strings.Index(s, "m:"), strings.Index(s, "z: true"))

	back, err := ParseYAML(out)
	require.NoError(t, err)
	require.Equal(t, map[string]any{
		"b": 1,
		"a": map[string]any{"z": true, "m": []any{"x", 2}},
	}, back)
}

func TestSerializeYAML_Empty(t *testing.T) {
	out, err := SerializeYAML(nil)
	require.NoError(t, err)
	require.Empty(t, out)
}
