package content

import (
	"strings"

	"github.com/inful/mdfp"

	"git.home.luguber.info/inful/sitebuilder/internal/frontmatter"
)

// Fingerprint computes a stable content fingerprint over the front matter
// (minus any stored fingerprint field) and the body.
func Fingerprint(data map[string]any, body string) (string, error) {
	fields := make(map[string]any, len(data))
	for k, v := range data {
		if k == mdfp.FingerprintField {
			continue
		}
		fields[k] = v
	}

	var fm string
	if len(fields) > 0 {
		serialized, err := frontmatter.SerializeYAML(fields)
		if err != nil {
			return "", err
		}
		fm = strings.TrimSuffix(string(serialized), "\n")
	}
	return mdfp.CalculateFingerprintFromParts(fm, body), nil
}
