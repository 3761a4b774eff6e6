package ast

import "github.com/funvibe/miniml/internal/token"

type WildcardPattern struct {
	Pos token.Position
}

func (p *WildcardPattern) GetPos() token.Position { return p.Pos }
func (p *WildcardPattern) patternNode()           {}

type VarPattern struct {
	Pos  token.Position
	Name string
}

func (p *VarPattern) GetPos() token.Position { return p.Pos }
func (p *VarPattern) patternNode()           {}

type IntPattern struct {
	Pos   token.Position
	Value int64
}

func (p *IntPattern) GetPos() token.Position { return p.Pos }
func (p *IntPattern) patternNode()           {}

type BoolPattern struct {
	Pos   token.Position
	Value bool
}

func (p *BoolPattern) GetPos() token.Position { return p.Pos }
func (p *BoolPattern) patternNode()           {}

type StringPattern struct {
	Pos   token.Position
	Value string
}

func (p *StringPattern) GetPos() token.Position { return p.Pos }
func (p *StringPattern) patternNode()           {}

// NilPattern matches [].
type NilPattern struct {
	Pos token.Position
}

func (p *NilPattern) GetPos() token.Position { return p.Pos }
func (p *NilPattern) patternNode()           {}

// ConsPattern matches head :: tail.
type ConsPattern struct {
	Pos  token.Position
	Head Pattern
	Tail Pattern
}

func (p *ConsPattern) GetPos() token.Position { return p.Pos }
func (p *ConsPattern) patternNode()           {}

// ConstructorPattern matches a sum-type constructor, optionally
// destructuring its payload with Arg.
type ConstructorPattern struct {
	Pos  token.Position
	Name string
	Arg  Pattern
}

func (p *ConstructorPattern) GetPos() token.Position { return p.Pos }
func (p *ConstructorPattern) patternNode()           {}
