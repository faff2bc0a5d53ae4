package schema

import (
	"sort"
	"strings"
)

// Well-known feature option keys.
const (
	SplitterClassKey = "table.splitter.class"
	DefaultDtgKey    = "geomesa.index.dtg"
)

// FeatureOption is schema-level metadata declared after the ';' of a spec
// string. The set is closed: Splitter and UserData.
type FeatureOption interface {
	// ToSpec renders the option as it appears in a spec string.
	ToSpec() string

	featureOption()
}

// Splitter configures table pre-splitting for the schema.
type Splitter struct {
	ClassName string
	Options   map[string]string
}

// ToSpec renders the splitter with options in key order.
func (s Splitter) ToSpec() string {
	var b strings.Builder
	b.WriteString(SplitterClassKey)
	b.WriteByte('=')
	b.WriteString(QuoteValue(s.ClassName))
	keys := make([]string, 0, len(s.Options))
	for k := range s.Options {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		b.WriteByte(':')
		b.WriteString(QuoteValue(k))
		b.WriteByte('=')
		b.WriteString(QuoteValue(s.Options[k]))
	}
	return b.String()
}

// Clone returns a copy that does not share the options map.
func (s Splitter) Clone() Splitter {
	opts := make(map[string]string, len(s.Options))
	for k, v := range s.Options {
		opts[k] = v
	}
	return Splitter{ClassName: s.ClassName, Options: opts}
}

func (Splitter) featureOption() {}

// UserData is a free-form key/value pair attached to the schema.
type UserData struct {
	Key   string
	Value string
}

func (u UserData) ToSpec() string {
	return QuoteValue(u.Key) + "=" + QuoteValue(u.Value)
}

func (UserData) featureOption() {}

// QuoteValue wraps v in single quotes when it is empty or contains a
// character the spec grammar treats as a delimiter. Quotes inside v are
// doubled.
func QuoteValue(v string) string {
	if v == "" || strings.ContainsAny(v, ",;:=[]' \t\r\n") {
		return "'" + strings.ReplaceAll(v, "'", "''") + "'"
	}
	return v
}
