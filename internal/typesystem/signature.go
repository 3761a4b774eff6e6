package typesystem

import (
	"fmt"
	"strconv"
	"strings"
	"unicode"
)

// Keywords of the interface signature grammar.
const (
	sigInt    = "int"
	sigDouble = "double"
	sigString = "string"
	sigBool   = "bool"
	sigUnit   = "unit"
	sigList   = "list"
	sigResult = "result"
	sigForall = "forall"
)

// RenderSignature writes t in the interface descriptor grammar.
// ParseSignature(RenderSignature(t)) is equal to t for every type.
func RenderSignature(t Type) string {
	var sb strings.Builder
	renderSig(&sb, t)
	return sb.String()
}

func renderSig(sb *strings.Builder, t Type) {
	switch t := t.(type) {
	case TInt:
		sb.WriteString(sigInt)
	case TDouble:
		sb.WriteString(sigDouble)
	case TString:
		sb.WriteString(sigString)
	case TBool:
		sb.WriteString(sigBool)
	case TUnit:
		sb.WriteString(sigUnit)
	case TVar:
		sb.WriteString(t.String())
	case TNumeric:
		sb.WriteString(t.String())
	case THost:
		sb.WriteString(t.String())
	case TNamed:
		sb.WriteString(t.Name)
	case TList:
		renderPostfixArg(sb, t.Elem)
		sb.WriteString(" " + sigList)
	case TResult:
		renderArgs(sb, []Type{t.Ok, t.Err})
		sb.WriteString(" " + sigResult)
	case TApp:
		if len(t.Args) == 1 {
			renderPostfixArg(sb, t.Args[0])
		} else {
			renderArgs(sb, t.Args)
		}
		sb.WriteString(" " + t.Name)
	case TFunc:
		switch t.Param.(type) {
		case TFunc, TScheme:
			sb.WriteByte('(')
			renderSig(sb, t.Param)
			sb.WriteByte(')')
		default:
			renderSig(sb, t.Param)
		}
		sb.WriteString(" -> ")
		renderSig(sb, t.Result)
	case TScheme:
		kinds := varKinds(t.Body)
		sb.WriteString(sigForall)
		for _, id := range t.Vars {
			sb.WriteByte(' ')
			if kinds[id] {
				sb.WriteString(TNumeric{ID: id}.String())
			} else {
				sb.WriteString(TVar{ID: id}.String())
			}
		}
		sb.WriteString(". ")
		renderSig(sb, t.Body)
	}
}

// renderPostfixArg parenthesizes arguments that would otherwise swallow the
// postfix type name.
func renderPostfixArg(sb *strings.Builder, t Type) {
	switch t.(type) {
	case TFunc, TScheme:
		sb.WriteByte('(')
		renderSig(sb, t)
		sb.WriteByte(')')
	default:
		renderSig(sb, t)
	}
}

func renderArgs(sb *strings.Builder, args []Type) {
	sb.WriteByte('(')
	for i, a := range args {
		if i > 0 {
			sb.WriteString(", ")
		}
		renderSig(sb, a)
	}
	sb.WriteByte(')')
}

// SignatureError reports a malformed signature.
type SignatureError struct {
	Input  string
	Offset int
	Msg    string
}

func (e *SignatureError) Error() string {
	return fmt.Sprintf("bad signature %q at offset %d: %s", e.Input, e.Offset, e.Msg)
}

// ParseSignature reads a type written by RenderSignature.
func ParseSignature(src string) (Type, error) {
	p := &sigParser{src: src}
	p.next()
	t, err := p.parseType()
	if err != nil {
		return nil, err
	}
	if p.tok.kind != sigEOF {
		return nil, p.errorf("unexpected %q", p.tok.text)
	}
	return t, nil
}

type sigTokenKind int

const (
	sigEOF sigTokenKind = iota
	sigIdent
	sigVar
	sigHost
	sigArrow
	sigLParen
	sigRParen
	sigComma
	sigDot
	sigInvalid
)

type sigToken struct {
	kind sigTokenKind
	text string
	pos  int
}

type sigParser struct {
	src string
	off int
	tok sigToken
}

func (p *sigParser) errorf(format string, args ...any) error {
	return &SignatureError{Input: p.src, Offset: p.tok.pos, Msg: fmt.Sprintf(format, args...)}
}

func (p *sigParser) next() {
	for p.off < len(p.src) && unicode.IsSpace(rune(p.src[p.off])) {
		p.off++
	}
	start := p.off
	if p.off >= len(p.src) {
		p.tok = sigToken{kind: sigEOF, pos: start}
		return
	}
	c := p.src[p.off]
	switch {
	case c == '(':
		p.off++
		p.tok = sigToken{kind: sigLParen, text: "(", pos: start}
	case c == ')':
		p.off++
		p.tok = sigToken{kind: sigRParen, text: ")", pos: start}
	case c == ',':
		p.off++
		p.tok = sigToken{kind: sigComma, text: ",", pos: start}
	case c == '.':
		p.off++
		p.tok = sigToken{kind: sigDot, text: ".", pos: start}
	case c == '-' && strings.HasPrefix(p.src[p.off:], "->"):
		p.off += 2
		p.tok = sigToken{kind: sigArrow, text: "->", pos: start}
	case c == '\'':
		p.off++
		p.scanWord(false)
		p.tok = sigToken{kind: sigVar, text: p.src[start:p.off], pos: start}
	case c == '@':
		p.off++
		p.scanWord(true)
		p.tok = sigToken{kind: sigHost, text: p.src[start+1 : p.off], pos: start}
	case isSigWordByte(c):
		p.scanWord(false)
		p.tok = sigToken{kind: sigIdent, text: p.src[start:p.off], pos: start}
	default:
		p.off++
		p.tok = sigToken{kind: sigInvalid, text: string(c), pos: start}
	}
}

func (p *sigParser) scanWord(dots bool) {
	for p.off < len(p.src) {
		c := p.src[p.off]
		if isSigWordByte(c) || (dots && (c == '.' || c == '/')) {
			p.off++
			continue
		}
		break
	}
}

func isSigWordByte(c byte) bool {
	return c == '_' || c == '$' || c >= '0' && c <= '9' || c >= 'a' && c <= 'z' || c >= 'A' && c <= 'Z'
}

// type := postfix ("->" type)?
func (p *sigParser) parseType() (Type, error) {
	if p.tok.kind == sigIdent && p.tok.text == sigForall {
		return p.parseScheme()
	}
	left, err := p.parsePostfix()
	if err != nil {
		return nil, err
	}
	if p.tok.kind != sigArrow {
		return left, nil
	}
	p.next()
	right, err := p.parseType()
	if err != nil {
		return nil, err
	}
	return TFunc{Param: left, Result: right}, nil
}

func (p *sigParser) parseScheme() (Type, error) {
	p.next()
	var vars []int
	for p.tok.kind == sigVar {
		v, err := p.varType()
		if err != nil {
			return nil, err
		}
		switch v := v.(type) {
		case TVar:
			vars = append(vars, v.ID)
		case TNumeric:
			vars = append(vars, v.ID)
		}
		p.next()
	}
	if p.tok.kind != sigDot {
		return nil, p.errorf("expected '.' after quantified variables")
	}
	p.next()
	body, err := p.parseType()
	if err != nil {
		return nil, err
	}
	return TScheme{Vars: vars, Body: body}, nil
}

// postfix := atom NAME*
func (p *sigParser) parsePostfix() (Type, error) {
	args, err := p.parseAtom()
	if err != nil {
		return nil, err
	}
	for p.tok.kind == sigIdent && !isPrimitiveKeyword(p.tok.text) && p.tok.text != sigForall {
		name := p.tok.text
		p.next()
		var t Type
		switch name {
		case sigList:
			if len(args) != 1 {
				return nil, p.errorf("list takes one argument, got %d", len(args))
			}
			t = TList{Elem: args[0]}
		case sigResult:
			if len(args) != 2 {
				return nil, p.errorf("result takes two arguments, got %d", len(args))
			}
			t = TResult{Ok: args[0], Err: args[1]}
		default:
			t = TApp{Name: name, Args: args}
		}
		args = []Type{t}
	}
	if len(args) != 1 {
		return nil, p.errorf("type argument list must be followed by a type name")
	}
	return args[0], nil
}

// parseAtom returns a single type, or the argument list of a parenthesized
// tuple that must be consumed by a postfix name.
func (p *sigParser) parseAtom() ([]Type, error) {
	tok := p.tok
	switch tok.kind {
	case sigIdent:
		p.next()
		switch tok.text {
		case sigInt:
			return []Type{Int}, nil
		case sigDouble:
			return []Type{Double}, nil
		case sigString:
			return []Type{String}, nil
		case sigBool:
			return []Type{Bool}, nil
		case sigUnit:
			return []Type{Unit}, nil
		case sigList, sigResult, sigForall:
			return nil, &SignatureError{Input: p.src, Offset: tok.pos, Msg: fmt.Sprintf("unexpected %q", tok.text)}
		}
		return []Type{TNamed{Name: tok.text}}, nil
	case sigVar:
		t, err := p.varType()
		if err != nil {
			return nil, err
		}
		p.next()
		return []Type{t}, nil
	case sigHost:
		p.next()
		if tok.text == "" {
			return nil, &SignatureError{Input: p.src, Offset: tok.pos, Msg: "empty host type name"}
		}
		return []Type{THost{Name: tok.text}}, nil
	case sigLParen:
		p.next()
		var args []Type
		if p.tok.kind == sigRParen {
			p.next()
			return args, nil
		}
		for {
			t, err := p.parseType()
			if err != nil {
				return nil, err
			}
			args = append(args, t)
			if p.tok.kind == sigComma {
				p.next()
				continue
			}
			if p.tok.kind != sigRParen {
				return nil, p.errorf("expected ')'")
			}
			p.next()
			return args, nil
		}
	case sigEOF:
		return nil, p.errorf("unexpected end of signature")
	}
	return nil, p.errorf("unexpected %q", tok.text)
}

func (p *sigParser) varType() (Type, error) {
	text := p.tok.text
	if len(text) < 3 {
		return nil, p.errorf("malformed type variable %q", text)
	}
	id, err := strconv.Atoi(text[2:])
	if err != nil || id < 0 {
		return nil, p.errorf("malformed type variable %q", text)
	}
	switch text[1] {
	case 't':
		return TVar{ID: id}, nil
	case 'n':
		return TNumeric{ID: id}, nil
	}
	return nil, p.errorf("malformed type variable %q", text)
}

// IsReservedName reports whether name cannot be used for a user type because
// the signature grammar gives it another meaning.
func IsReservedName(name string) bool {
	return isPrimitiveKeyword(name) || name == sigList || name == sigResult || name == sigForall
}

func isPrimitiveKeyword(s string) bool {
	switch s {
	case sigInt, sigDouble, sigString, sigBool, sigUnit:
		return true
	}
	return false
}
