package compiler

import "github.com/emberlang/ember/internal/token"

// Precedence levels, lowest first, matching the grammar's expression
// hierarchy from assignment down to primary expressions.
type Precedence int

const (
	PrecNone Precedence = iota
	PrecAssignment
	PrecOr
	PrecAnd
	PrecEquality
	PrecComparison
	PrecTerm
	PrecFactor
	PrecUnary
	PrecCall
	PrecPrimary
)

type parseFn func(p *Parser, canAssign bool)

type parseRule struct {
	prefix parseFn
	infix  parseFn
	prec   Precedence
}

var rules map[token.Type]parseRule

func init() {
	rules = map[token.Type]parseRule{
		token.LeftParen:    {(*Parser).grouping, (*Parser).call, PrecCall},
		token.Dot:          {nil, (*Parser).dot, PrecCall},
		token.Minus:        {(*Parser).unary, (*Parser).binary, PrecTerm},
		token.Plus:         {nil, (*Parser).binary, PrecTerm},
		token.Slash:        {nil, (*Parser).binary, PrecFactor},
		token.Star:         {nil, (*Parser).binary, PrecFactor},
		token.Bang:         {(*Parser).unary, nil, PrecNone},
		token.BangEqual:    {nil, (*Parser).binary, PrecEquality},
		token.EqualEqual:   {nil, (*Parser).binary, PrecEquality},
		token.Greater:      {nil, (*Parser).binary, PrecComparison},
		token.GreaterEqual: {nil, (*Parser).binary, PrecComparison},
		token.Less:         {nil, (*Parser).binary, PrecComparison},
		token.LessEqual:    {nil, (*Parser).binary, PrecComparison},
		token.Identifier:   {(*Parser).variable, nil, PrecNone},
		token.String:       {(*Parser).string_, nil, PrecNone},
		token.Number:       {(*Parser).number, nil, PrecNone},
		token.And:          {nil, (*Parser).and_, PrecAnd},
		token.Or:           {nil, (*Parser).or_, PrecOr},
		token.False:        {(*Parser).literal, nil, PrecNone},
		token.Nil:          {(*Parser).literal, nil, PrecNone},
		token.True:         {(*Parser).literal, nil, PrecNone},
		token.This:         {(*Parser).this_, nil, PrecNone},
		token.Super:        {(*Parser).super_, nil, PrecNone},
	}
}

func (p *Parser) getRule(t token.Type) parseRule {
	if r, ok := rules[t]; ok {
		return r
	}
	return parseRule{}
}
