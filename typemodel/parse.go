package typemodel

import (
	"fmt"
	"github.com/cottand/qlub/atm"
	"github.com/cottand/qlub/qual"
	"strings"
	"text/scanner"
)

// ParseError reports a malformed annotated type
type ParseError struct {
	Src string
	Pos scanner.Position
	Msg string
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("parse %q at column %d: %s", e.Src, e.Pos.Column, e.Msg)
}

// parser is a recursive descent parser over the grammar
//
//	type    = inter { "|" inter }
//	inter   = postfix { "&" postfix }
//	postfix = prefix { annos "[" "]" }
//	prefix  = annos ( "(" type ")" | "null" | "?" [ "extends" postfix ] [ "super" postfix ] | name [ "<" type { "," type } ">" ] )
//	annos   = { "@" name }
//
// A parser may be reused for several sources that belong to one declaration; deferred
// work (annotated uses of type variables whose bounds are not known yet) runs in finish.
type parser struct {
	m      *Model
	scope  map[string]*atm.TypeVar
	fixups []func() error

	src string
	sc  scanner.Scanner
	tok rune
	err error
}

func newParser(m *Model, scope map[string]*atm.TypeVar) *parser {
	return &parser{m: m, scope: scope}
}

func (p *parser) parse(src string) (atm.Node, error) {
	p.src = src
	p.err = nil
	p.sc.Init(strings.NewReader(src))
	p.sc.Mode = scanner.ScanIdents
	p.sc.Error = func(s *scanner.Scanner, msg string) {
		if p.err == nil {
			p.err = &ParseError{Src: src, Pos: s.Position, Msg: msg}
		}
	}
	p.next()
	n, err := p.parseType()
	if err != nil {
		return nil, err
	}
	if p.tok != scanner.EOF {
		return nil, p.errorf("unexpected %q after type", p.sc.TokenText())
	}
	if p.err != nil {
		return nil, p.err
	}
	return n, nil
}

func (p *parser) finish() error {
	fixups := p.fixups
	p.fixups = nil
	for _, fixup := range fixups {
		if err := fixup(); err != nil {
			return err
		}
	}
	return nil
}

func (p *parser) next() {
	p.tok = p.sc.Scan()
}

func (p *parser) errorf(format string, args ...any) error {
	return &ParseError{Src: p.src, Pos: p.sc.Position, Msg: fmt.Sprintf(format, args...)}
}

func (p *parser) expect(tok rune) error {
	if p.tok != tok {
		return p.errorf("expected %q, found %q", string(tok), p.sc.TokenText())
	}
	p.next()
	return nil
}

func (p *parser) parseType() (atm.Node, error) {
	first, err := p.parseIntersection()
	if err != nil || p.tok != '|' {
		return first, err
	}
	alternatives := []atm.Node{first}
	for p.tok == '|' {
		p.next()
		alt, err := p.parseIntersection()
		if err != nil {
			return nil, err
		}
		alternatives = append(alternatives, alt)
	}
	for _, alt := range alternatives {
		if alt.Kind() != atm.KindDeclared {
			return nil, p.errorf("union alternative %v is not a class type", alt)
		}
	}
	return atm.NewUnion(alternatives, p.m.defaults(qual.EmptySet())), nil
}

func (p *parser) parseIntersection() (atm.Node, error) {
	first, err := p.parsePostfix()
	if err != nil || p.tok != '&' {
		return first, err
	}
	bounds := []atm.Node{first}
	for p.tok == '&' {
		p.next()
		bound, err := p.parsePostfix()
		if err != nil {
			return nil, err
		}
		bounds = append(bounds, bound)
	}
	for _, bound := range bounds {
		if bound.Kind() != atm.KindDeclared {
			return nil, p.errorf("intersection bound %v is not a class type", bound)
		}
	}
	return atm.NewIntersection(bounds, p.m.defaults(qual.EmptySet())), nil
}

func (p *parser) parsePostfix() (atm.Node, error) {
	n, err := p.parsePrefix()
	if err != nil {
		return nil, err
	}
	for {
		annos, err := p.parseAnnos()
		if err != nil {
			return nil, err
		}
		if p.tok != '[' {
			if annos.Len() > 0 {
				return nil, p.errorf("annotations %v must be followed by []", annos)
			}
			return n, nil
		}
		p.next()
		if err := p.expect(']'); err != nil {
			return nil, err
		}
		n = atm.NewArray(n, p.m.defaults(annos))
	}
}

func (p *parser) parseAnnos() (qual.Set, error) {
	annos := qual.EmptySet()
	for p.tok == '@' {
		p.next()
		if p.tok != scanner.Ident {
			return annos, p.errorf("expected qualifier name after @")
		}
		q := qual.Qualifier(p.sc.TokenText())
		top, ok := p.m.quals.TopAnnotation(q)
		if !ok {
			return annos, p.errorf("unknown qualifier %v", q)
		}
		if existing, dup := annos.Get(top); dup {
			return annos, p.errorf("qualifiers %v and %v belong to the same hierarchy", existing, q)
		}
		annos = annos.With(top, q)
		p.next()
	}
	return annos, nil
}

func (p *parser) parsePrefix() (atm.Node, error) {
	annos, err := p.parseAnnos()
	if err != nil {
		return nil, err
	}
	switch p.tok {
	case '(':
		p.next()
		inner, err := p.parseType()
		if err != nil {
			return nil, err
		}
		if err := p.expect(')'); err != nil {
			return nil, err
		}
		if annos.Len() > 0 {
			inner = atm.WithPrimary(inner, inner.Primary().Merge(annos))
		}
		return inner, nil
	case '?':
		p.next()
		return p.parseWildcard(annos)
	case scanner.Ident:
		name := p.sc.TokenText()
		p.next()
		return p.parseNamed(name, annos)
	case scanner.EOF:
		return nil, p.errorf("unexpected end of type")
	default:
		return nil, p.errorf("unexpected %q", p.sc.TokenText())
	}
}

func (p *parser) parseWildcard(annos qual.Set) (atm.Node, error) {
	var extends, super atm.Node
	var err error
	if p.keyword("extends") {
		if extends, err = p.parsePostfix(); err != nil {
			return nil, err
		}
	}
	// printed wildcards carry both bounds
	if p.keyword("super") {
		if super, err = p.parsePostfix(); err != nil {
			return nil, err
		}
	}
	if extends == nil {
		extends = atm.NewDeclared(objectClass, nil, false, p.m.defaults(qual.EmptySet()))
	}
	if super == nil {
		super = atm.NewNull(p.m.bottoms(qual.EmptySet()))
	}
	return atm.NewWildcard(extends, super, annos), nil
}

// keyword consumes the identifier word if it is the current token
func (p *parser) keyword(word string) bool {
	if p.tok != scanner.Ident || p.sc.TokenText() != word {
		return false
	}
	p.next()
	return true
}

func (p *parser) lookupTypeVar(name string) (*atm.TypeVar, bool) {
	if tv, ok := p.scope[name]; ok {
		return tv, true
	}
	return p.m.TypeVar(name)
}

func (p *parser) parseNamed(name string, annos qual.Set) (atm.Node, error) {
	if name == "null" {
		return atm.NewNull(p.m.bottoms(annos)), nil
	}
	if tv, ok := p.lookupTypeVar(name); ok {
		return p.typeVarUse(tv, annos), nil
	}
	if isPrimitive(name) {
		return atm.NewPrimitive(name, p.m.defaults(annos)), nil
	}
	class, ok := p.m.classes[name]
	if !ok {
		return nil, p.errorf("unknown type %s", name)
	}
	quals := p.m.defaults(annos)
	if p.tok != '<' {
		if class.IsGeneric() {
			return p.m.rawNode(class, quals), nil
		}
		return atm.NewDeclared(name, nil, false, quals), nil
	}
	p.next()
	var args []atm.Node
	for {
		arg, err := p.parseType()
		if err != nil {
			return nil, err
		}
		args = append(args, arg)
		if p.tok != ',' {
			break
		}
		p.next()
	}
	if err := p.expect('>'); err != nil {
		return nil, err
	}
	if len(args) != len(class.Params) {
		return nil, p.errorf("class %s takes %d type arguments, found %d", name, len(class.Params), len(args))
	}
	return atm.NewDeclared(name, args, false, quals), nil
}

// typeVarUse returns the canonical use of tv when unannotated. An annotated use gets its own
// node whose bounds carry the annotations too, since a qualifier written on a type variable
// use constrains both of its bounds.
func (p *parser) typeVarUse(tv *atm.TypeVar, annos qual.Set) atm.Node {
	if annos.Len() == 0 {
		return tv
	}
	use := atm.NewTypeVar(tv.Decl, annos)
	bind := func() error {
		if tv.Upper == nil || tv.Lower == nil {
			return fmt.Errorf("bounds of type variable %s are unresolved", tv.Decl.Name)
		}
		use.Upper = atm.WithPrimary(tv.Upper, tv.Upper.Primary().Merge(annos))
		use.Lower = atm.WithPrimary(tv.Lower, tv.Lower.Primary().Merge(annos))
		return nil
	}
	if tv.Upper == nil {
		p.fixups = append(p.fixups, bind)
	} else {
		_ = bind()
	}
	return use
}

func (p *parser) declareBounds(tv *atm.TypeVar, upper, lower string) error {
	if upper == "" {
		upper = objectClass
	}
	if lower == "" {
		lower = "null"
	}
	upperNode, err := p.parse(upper)
	if err != nil {
		return err
	}
	lowerNode, err := p.parse(lower)
	if err != nil {
		return err
	}
	tv.Upper, tv.Lower = upperNode, lowerNode
	tv.Decl.Upper, tv.Decl.Lower = upperNode.Shape(), lowerNode.Shape()
	return nil
}
