package typesys

import (
	"fmt"
)

// Parse reads a type expression in the closed grammar:
//
//	type     := alt ("|" alt)*
//	alt      := "array" "<" type ">"
//	          | "nullable" "<" type ">"
//	          | "map" "<" type "," type ">"
//	          | "string" | "number" | "integer" | "boolean" | "object" | "any"
//
// Whitespace around tokens is ignored. Object property declarations are
// not part of the textual grammar; they come from schema documents.
func Parse(expr string) (Type, error) {
	p := &parser{input: expr}
	t, err := p.parseType()
	if err != nil {
		return Type{}, err
	}
	p.skipSpace()
	if p.pos < len(p.input) {
		return Type{}, fmt.Errorf("parse type %q: trailing input at offset %d", expr, p.pos)
	}
	return t, nil
}

// MustParse parses a type expression and panics on error. Intended for
// statically known expressions in tests and registries.
func MustParse(expr string) Type {
	t, err := Parse(expr)
	if err != nil {
		panic(err)
	}
	return t
}

type parser struct {
	input string
	pos   int
}

func (p *parser) parseType() (Type, error) {
	first, err := p.parseAlt()
	if err != nil {
		return Type{}, err
	}
	members := []Type{first}
	for {
		p.skipSpace()
		if !p.consume('|') {
			break
		}
		next, err := p.parseAlt()
		if err != nil {
			return Type{}, err
		}
		members = append(members, next)
	}
	if len(members) == 1 {
		return members[0], nil
	}
	return Union(members...), nil
}

func (p *parser) parseAlt() (Type, error) {
	p.skipSpace()
	word := p.readWord()
	if word == "" {
		return Type{}, fmt.Errorf("parse type %q: expected type name at offset %d", p.input, p.pos)
	}

	switch word {
	case "string":
		return String(), nil
	case "number":
		return Number(), nil
	case "integer":
		return Integer(), nil
	case "boolean":
		return Boolean(), nil
	case "object":
		return Object(nil), nil
	case "any":
		return Any(), nil
	case "array", "nullable":
		if err := p.expect('<'); err != nil {
			return Type{}, err
		}
		elem, err := p.parseType()
		if err != nil {
			return Type{}, err
		}
		if err := p.expect('>'); err != nil {
			return Type{}, err
		}
		if word == "array" {
			return Array(elem), nil
		}
		return Nullable(elem), nil
	case "map":
		if err := p.expect('<'); err != nil {
			return Type{}, err
		}
		key, err := p.parseType()
		if err != nil {
			return Type{}, err
		}
		if err := p.expect(','); err != nil {
			return Type{}, err
		}
		value, err := p.parseType()
		if err != nil {
			return Type{}, err
		}
		if err := p.expect('>'); err != nil {
			return Type{}, err
		}
		return Map(key, value), nil
	default:
		return Type{}, fmt.Errorf("parse type %q: unknown type name %q", p.input, word)
	}
}

func (p *parser) readWord() string {
	start := p.pos
	for p.pos < len(p.input) {
		c := p.input[p.pos]
		if (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z') || c == '_' {
			p.pos++
			continue
		}
		break
	}
	return p.input[start:p.pos]
}

func (p *parser) skipSpace() {
	for p.pos < len(p.input) && (p.input[p.pos] == ' ' || p.input[p.pos] == '\t') {
		p.pos++
	}
}

func (p *parser) consume(c byte) bool {
	if p.pos < len(p.input) && p.input[p.pos] == c {
		p.pos++
		return true
	}
	return false
}

func (p *parser) expect(c byte) error {
	p.skipSpace()
	if !p.consume(c) {
		return fmt.Errorf("parse type %q: expected %q at offset %d", p.input, string(c), p.pos)
	}
	return nil
}
