package pricing

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

// FormulaVars are the only variables a price formula may reference
type FormulaVars struct {
	BasePrice decimal.Decimal
	CostPrice decimal.Decimal
	HasCost   bool
	Quantity  decimal.Decimal
}

// EvaluateFormula evaluates a restricted arithmetic expression over the
// whitelisted variables base_price, cost_price and quantity with the
// operators + - * / and parentheses. It is a closed evaluator with no
// side effects; anything outside the whitelist, and division by zero,
// fails with ErrFormula.
func EvaluateFormula(expr string, vars FormulaVars) (decimal.Decimal, error) {
	tokens, err := tokenizeFormula(expr)
	if err != nil {
		return decimal.Zero, err
	}

	p := &formulaParser{tokens: tokens, vars: vars}
	result, err := p.parseExpr()
	if err != nil {
		return decimal.Zero, err
	}
	if p.pos != len(p.tokens) {
		return decimal.Zero, formulaErrf("unexpected token %q", p.tokens[p.pos].text)
	}
	return result, nil
}

func formulaErrf(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrFormula, fmt.Sprintf(format, args...))
}

type formulaTokenKind int

const (
	tokNumber formulaTokenKind = iota
	tokIdent
	tokOp
	tokLParen
	tokRParen
)

type formulaToken struct {
	kind formulaTokenKind
	text string
}

func tokenizeFormula(expr string) ([]formulaToken, error) {
	var tokens []formulaToken
	i := 0
	for i < len(expr) {
		ch := expr[i]
		switch {
		case ch == ' ' || ch == '\t' || ch == '\n':
			i++
		case ch == '(':
			tokens = append(tokens, formulaToken{tokLParen, "("})
			i++
		case ch == ')':
			tokens = append(tokens, formulaToken{tokRParen, ")"})
			i++
		case ch == '+' || ch == '-' || ch == '*' || ch == '/':
			tokens = append(tokens, formulaToken{tokOp, string(ch)})
			i++
		case ch >= '0' && ch <= '9' || ch == '.':
			j := i
			for j < len(expr) && (expr[j] >= '0' && expr[j] <= '9' || expr[j] == '.') {
				j++
			}
			tokens = append(tokens, formulaToken{tokNumber, expr[i:j]})
			i = j
		case ch >= 'a' && ch <= 'z' || ch == '_':
			j := i
			for j < len(expr) && (expr[j] >= 'a' && expr[j] <= 'z' || expr[j] == '_') {
				j++
			}
			tokens = append(tokens, formulaToken{tokIdent, expr[i:j]})
			i = j
		default:
			return nil, formulaErrf("illegal character %q", string(ch))
		}
	}
	if len(tokens) == 0 {
		return nil, formulaErrf("empty formula")
	}
	return tokens, nil
}

type formulaParser struct {
	tokens []formulaToken
	pos    int
	vars   FormulaVars
}

func (p *formulaParser) peek() *formulaToken {
	if p.pos < len(p.tokens) {
		return &p.tokens[p.pos]
	}
	return nil
}

// parseExpr handles + and -
func (p *formulaParser) parseExpr() (decimal.Decimal, error) {
	left, err := p.parseTerm()
	if err != nil {
		return decimal.Zero, err
	}
	for {
		tok := p.peek()
		if tok == nil || tok.kind != tokOp || (tok.text != "+" && tok.text != "-") {
			return left, nil
		}
		p.pos++
		right, err := p.parseTerm()
		if err != nil {
			return decimal.Zero, err
		}
		if tok.text == "+" {
			left = left.Add(right)
		} else {
			left = left.Sub(right)
		}
	}
}

// parseTerm handles * and /
func (p *formulaParser) parseTerm() (decimal.Decimal, error) {
	left, err := p.parseFactor()
	if err != nil {
		return decimal.Zero, err
	}
	for {
		tok := p.peek()
		if tok == nil || tok.kind != tokOp || (tok.text != "*" && tok.text != "/") {
			return left, nil
		}
		p.pos++
		right, err := p.parseFactor()
		if err != nil {
			return decimal.Zero, err
		}
		if tok.text == "*" {
			left = left.Mul(right)
		} else {
			if right.IsZero() {
				return decimal.Zero, formulaErrf("division by zero")
			}
			left = left.Div(right)
		}
	}
}

// parseFactor handles numbers, variables, parentheses and unary minus
func (p *formulaParser) parseFactor() (decimal.Decimal, error) {
	tok := p.peek()
	if tok == nil {
		return decimal.Zero, formulaErrf("unexpected end of formula")
	}

	switch tok.kind {
	case tokOp:
		if tok.text == "-" {
			p.pos++
			val, err := p.parseFactor()
			if err != nil {
				return decimal.Zero, err
			}
			return val.Neg(), nil
		}
		return decimal.Zero, formulaErrf("unexpected operator %q", tok.text)

	case tokNumber:
		p.pos++
		val, err := decimal.NewFromString(tok.text)
		if err != nil {
			return decimal.Zero, formulaErrf("invalid number %q", tok.text)
		}
		return val, nil

	case tokIdent:
		p.pos++
		switch strings.ToLower(tok.text) {
		case "base_price":
			return p.vars.BasePrice, nil
		case "cost_price":
			if !p.vars.HasCost {
				return decimal.Zero, formulaErrf("cost_price is not available")
			}
			return p.vars.CostPrice, nil
		case "quantity":
			return p.vars.Quantity, nil
		default:
			return decimal.Zero, formulaErrf("unknown variable %q", tok.text)
		}

	case tokLParen:
		p.pos++
		val, err := p.parseExpr()
		if err != nil {
			return decimal.Zero, err
		}
		closing := p.peek()
		if closing == nil || closing.kind != tokRParen {
			return decimal.Zero, formulaErrf("missing closing parenthesis")
		}
		p.pos++
		return val, nil

	default:
		return decimal.Zero, formulaErrf("unexpected token %q", tok.text)
	}
}
