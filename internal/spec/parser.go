// Package spec parses and encodes the textual schema specification:
//
//	[*]name:Type[:key=value]*,... [;featureOption,...]
//
// Type names are matched longest first against a fixed keyword table that
// includes literal aliases ("0" for Integer, "true" for Boolean, and so on).
// Whitespace outside single quotes is ignored.
package spec

import (
	"fmt"
	"strconv"
	"strings"
	"unicode"

	apperrors "github.com/jittakal/geobin/internal/errors"
	"github.com/jittakal/geobin/pkg/schema"
)

// Result is a parsed spec string.
type Result struct {
	Attributes []schema.AttributeSpec
	Options    []schema.FeatureOption
}

// Parse parses a full spec string.
func Parse(text string) (*Result, error) {
	p := &parser{input: stripWhitespace(text)}
	if p.input == "" {
		return nil, &apperrors.ParseError{Remainder: "", Message: "empty spec"}
	}
	return p.parseSpec()
}

// ParseAttribute parses a single attribute declaration such as
// "tags:List[String]:index=join".
func ParseAttribute(text string) (schema.AttributeSpec, error) {
	p := &parser{input: stripWhitespace(text)}
	attr, err := p.parseAttribute()
	if err != nil {
		return nil, err
	}
	if !p.eof() {
		return nil, p.errorf(nil, "unexpected trailing input")
	}
	return attr, nil
}

type parser struct {
	input string
	pos   int
}

func (p *parser) eof() bool { return p.pos >= len(p.input) }

func (p *parser) peek() byte {
	if p.eof() {
		return 0
	}
	return p.input[p.pos]
}

func (p *parser) rest() string { return p.input[p.pos:] }

func (p *parser) errorf(err error, format string, args ...any) *apperrors.ParseError {
	return &apperrors.ParseError{
		Remainder: p.rest(),
		Message:   fmt.Sprintf(format, args...),
		Err:       err,
	}
}

func (p *parser) expect(c byte) error {
	if p.peek() != c {
		return p.errorf(nil, "expected %q", c)
	}
	p.pos++
	return nil
}

func (p *parser) parseSpec() (*Result, error) {
	res := &Result{}
	for {
		attr, err := p.parseAttribute()
		if err != nil {
			return nil, err
		}
		res.Attributes = append(res.Attributes, attr)

		switch {
		case p.eof():
			return res, nil
		case p.peek() == ',':
			p.pos++
		case p.peek() == ';':
			p.pos++
			opts, err := p.parseFeatureOptions()
			if err != nil {
				return nil, err
			}
			res.Options = opts
			return res, nil
		default:
			return nil, p.errorf(nil, "expected ',' or ';' after attribute %q", attr.AttributeName())
		}
	}
}

func (p *parser) parseAttribute() (schema.AttributeSpec, error) {
	isDefault := false
	if p.peek() == '*' {
		isDefault = true
		p.pos++
	}

	start := p.pos
	for !p.eof() && !strings.ContainsRune(":,;", rune(p.peek())) {
		p.pos++
	}
	name := p.input[start:p.pos]
	if name == "" {
		return nil, p.errorf(nil, "missing attribute name")
	}
	if err := p.expect(':'); err != nil {
		return nil, p.errorf(nil, "missing type for attribute %q", name)
	}

	attr, err := p.parseType(name)
	if err != nil {
		return nil, err
	}

	if g, ok := attr.(schema.GeometrySpec); ok {
		attr = g.WithDefault(isDefault)
	} else if isDefault {
		return nil, p.errorf(nil, "attribute %q is not a geometry and cannot be the default geometry", name)
	}

	for p.peek() == ':' {
		p.pos++
		if attr, err = p.parseAttributeOption(attr); err != nil {
			return nil, err
		}
	}
	return attr, nil
}

func (p *parser) parseType(name string) (schema.AttributeSpec, error) {
	kw, ok := p.matchKeyword(typeKeywords, ":,;[")
	if !ok {
		return nil, p.errorf(apperrors.ErrUnknownType, "unknown type for attribute %q", name)
	}

	switch kw.kind {
	case kwGeometry:
		return schema.GeometrySpec{Name: name, Type: kw.geomType, SRID: schema.SRIDWGS84}, nil
	case kwList:
		elem := schema.TypeString
		if p.peek() == '[' {
			p.pos++
			if p.peek() != ']' {
				k, err := p.parseElementType()
				if err != nil {
					return nil, err
				}
				elem = k
			}
			if err := p.expect(']'); err != nil {
				return nil, err
			}
		}
		return schema.ListSpec{Name: name, ElementType: elem}, nil
	case kwMap:
		key, value := schema.TypeString, schema.TypeString
		if p.peek() == '[' {
			p.pos++
			if p.peek() != ']' {
				var err error
				if key, err = p.parseElementType(); err != nil {
					return nil, err
				}
				if err := p.expect(','); err != nil {
					return nil, err
				}
				if value, err = p.parseElementType(); err != nil {
					return nil, err
				}
			}
			if err := p.expect(']'); err != nil {
				return nil, err
			}
		}
		return schema.MapSpec{Name: name, KeyType: key, ValueType: value}, nil
	default:
		if p.peek() == '[' {
			return nil, p.errorf(nil, "type %s does not take parameters", kw.dataType)
		}
		return schema.SimpleSpec{Name: name, Type: kw.dataType}, nil
	}
}

func (p *parser) parseElementType() (schema.DataType, error) {
	kw, ok := p.matchKeyword(elementKeywords, ",]")
	if !ok {
		return 0, p.errorf(apperrors.ErrUnknownType, "unknown element type")
	}
	return kw.dataType, nil
}

// matchKeyword consumes the longest keyword at the current position that is
// followed by one of delims or the end of input.
func (p *parser) matchKeyword(table []keyword, delims string) (keyword, bool) {
	rest := p.rest()
	for _, kw := range table {
		if !strings.HasPrefix(rest, kw.text) {
			continue
		}
		if len(rest) > len(kw.text) && !strings.ContainsRune(delims, rune(rest[len(kw.text)])) {
			continue
		}
		p.pos += len(kw.text)
		return kw, true
	}
	return keyword{}, false
}

func (p *parser) parseAttributeOption(attr schema.AttributeSpec) (schema.AttributeSpec, error) {
	optStart := p.pos
	key, value, err := p.parseKeyValue(":,;")
	if err != nil {
		return nil, err
	}
	fail := func(format string, args ...any) error {
		return &apperrors.ParseError{Remainder: p.input[optStart:], Message: fmt.Sprintf(format, args...)}
	}

	switch a := attr.(type) {
	case schema.GeometrySpec:
		if key != "srid" {
			return nil, fail("option %q is not valid for geometry attribute %q", key, a.Name)
		}
		srid, err := strconv.Atoi(value)
		if err != nil {
			return nil, fail("invalid srid %q", value)
		}
		a.SRID = srid
		return a, nil

	case schema.SimpleSpec:
		switch key {
		case "index":
			if a.Index, err = schema.ParseIndexCoverage(value); err != nil {
				return nil, fail("%v", err)
			}
		case "index-value":
			if a.IndexValue, err = strconv.ParseBool(value); err != nil {
				return nil, fail("invalid index-value %q", value)
			}
		case "cardinality":
			if a.Cardinality, err = schema.ParseCardinality(value); err != nil {
				return nil, fail("%v", err)
			}
		default:
			return nil, fail("unknown option %q for attribute %q", key, a.Name)
		}
		return a, nil

	case schema.ListSpec:
		idx, card, err := collectionOption(key, value, a.Index, a.Cardinality)
		if err != nil {
			return nil, fail("%v for attribute %q", err, a.Name)
		}
		a.Index, a.Cardinality = idx, card
		return a, nil

	case schema.MapSpec:
		idx, card, err := collectionOption(key, value, a.Index, a.Cardinality)
		if err != nil {
			return nil, fail("%v for attribute %q", err, a.Name)
		}
		a.Index, a.Cardinality = idx, card
		return a, nil
	}
	return nil, fail("unsupported attribute %T", attr)
}

// collectionOption applies an option to a list or map attribute. index-value
// is accepted for compatibility and ignored: collections never store values.
func collectionOption(key, value string, idx schema.IndexCoverage, card schema.Cardinality) (schema.IndexCoverage, schema.Cardinality, error) {
	var err error
	switch key {
	case "index":
		idx, err = schema.ParseIndexCoverage(value)
	case "index-value":
		_, err = strconv.ParseBool(value)
	case "cardinality":
		card, err = schema.ParseCardinality(value)
	default:
		err = fmt.Errorf("unknown option %q", key)
	}
	return idx, card, err
}

func (p *parser) parseFeatureOptions() ([]schema.FeatureOption, error) {
	var opts []schema.FeatureOption
	for !p.eof() {
		key, value, err := p.parseKeyValue(":,;")
		if err != nil {
			return nil, err
		}

		if key == schema.SplitterClassKey {
			splitter := schema.Splitter{ClassName: value, Options: map[string]string{}}
			for p.peek() == ':' {
				p.pos++
				k, v, err := p.parseKeyValue(":,;")
				if err != nil {
					return nil, err
				}
				splitter.Options[k] = v
			}
			opts = append(opts, splitter)
		} else {
			if p.peek() == ':' {
				return nil, p.errorf(nil, "unexpected ':' after option %q", key)
			}
			opts = append(opts, schema.UserData{Key: key, Value: value})
		}

		if p.eof() {
			break
		}
		if p.peek() != ',' {
			return nil, p.errorf(nil, "expected ',' between feature options")
		}
		p.pos++
	}
	return opts, nil
}

func (p *parser) parseKeyValue(stop string) (string, string, error) {
	key, err := p.parseValue("=" + stop)
	if err != nil {
		return "", "", err
	}
	if key == "" {
		return "", "", p.errorf(nil, "missing option key")
	}
	if err := p.expect('='); err != nil {
		return "", "", p.errorf(nil, "expected '=' after option %q", key)
	}
	value, err := p.parseValue(stop)
	if err != nil {
		return "", "", err
	}
	return key, value, nil
}

// parseValue reads a bare token up to one of stop, or a single-quoted string
// in which '' stands for a literal quote.
func (p *parser) parseValue(stop string) (string, error) {
	if p.peek() == '\'' {
		start := p.pos
		var b strings.Builder
		i := p.pos + 1
		for {
			end := strings.IndexByte(p.input[i:], '\'')
			if end < 0 {
				return "", &apperrors.ParseError{Remainder: p.input[start:], Message: "unterminated quoted value"}
			}
			b.WriteString(p.input[i : i+end])
			i += end + 1
			if i < len(p.input) && p.input[i] == '\'' {
				b.WriteByte('\'')
				i++
				continue
			}
			break
		}
		p.pos = i
		return b.String(), nil
	}
	start := p.pos
	for !p.eof() && !strings.ContainsRune(stop, rune(p.peek())) {
		p.pos++
	}
	return p.input[start:p.pos], nil
}

// stripWhitespace removes whitespace that is not inside single quotes.
func stripWhitespace(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	quoted := false
	for _, r := range s {
		if r == '\'' {
			quoted = !quoted
		}
		if !quoted && unicode.IsSpace(r) {
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}
