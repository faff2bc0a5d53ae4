package spec

import (
	"strings"

	"github.com/jittakal/geobin/pkg/schema"
)

// Encode renders attributes and feature options as a canonical spec string.
// Parsing the result yields the same attributes and options.
func Encode(attrs []schema.AttributeSpec, opts []schema.FeatureOption) string {
	var b strings.Builder
	for i, a := range attrs {
		if i > 0 {
			b.WriteByte(',')
		}
		b.WriteString(a.ToSpec())
	}
	if len(opts) > 0 {
		b.WriteByte(';')
		for i, o := range opts {
			if i > 0 {
				b.WriteByte(',')
			}
			b.WriteString(o.ToSpec())
		}
	}
	return b.String()
}

// Canonicalize parses text and re-encodes it in canonical form.
func Canonicalize(text string) (string, error) {
	res, err := Parse(text)
	if err != nil {
		return "", err
	}
	return Encode(res.Attributes, res.Options), nil
}
