package cmd

import (
	"strconv"
	"strings"
	"unicode"

	"github.com/pkg/errors"

	"github.com/thingsql/thingsql"
	"github.com/thingsql/thingsql/physical"
)

// parseWhere turns a --where filter into a predicate tree. The accepted
// grammar covers what the scan can evaluate: comparisons of a column
// against a literal, IN lists, AND / OR / NOT and parentheses.
func parseWhere(input string) (physical.Formula, error) {
	tokens, err := tokenizeWhere(input)
	if err != nil {
		return nil, err
	}
	parser := &whereParser{tokens: tokens}
	formula, err := parser.parseOr()
	if err != nil {
		return nil, err
	}
	if !parser.done() {
		return nil, errors.Errorf("unexpected token %q", parser.peek())
	}
	return formula, nil
}

type whereParser struct {
	tokens []string
	pos    int
}

func (p *whereParser) done() bool {
	return p.pos >= len(p.tokens)
}

func (p *whereParser) peek() string {
	if p.done() {
		return ""
	}
	return p.tokens[p.pos]
}

func (p *whereParser) next() string {
	token := p.peek()
	p.pos++
	return token
}

func (p *whereParser) accept(keyword string) bool {
	if strings.EqualFold(p.peek(), keyword) {
		p.pos++
		return true
	}
	return false
}

func (p *whereParser) expect(token string) error {
	if p.next() != token {
		return errors.Errorf("expected %q", token)
	}
	return nil
}

func (p *whereParser) parseOr() (physical.Formula, error) {
	left, err := p.parseAnd()
	if err != nil {
		return nil, err
	}
	for p.accept("or") {
		right, err := p.parseAnd()
		if err != nil {
			return nil, err
		}
		left = physical.NewOr(left, right)
	}
	return left, nil
}

func (p *whereParser) parseAnd() (physical.Formula, error) {
	left, err := p.parseUnary()
	if err != nil {
		return nil, err
	}
	for p.accept("and") {
		right, err := p.parseUnary()
		if err != nil {
			return nil, err
		}
		left = physical.NewAnd(left, right)
	}
	return left, nil
}

func (p *whereParser) parseUnary() (physical.Formula, error) {
	if p.accept("not") {
		child, err := p.parseUnary()
		if err != nil {
			return nil, err
		}
		return physical.NewNot(child), nil
	}
	return p.parseAtom()
}

func (p *whereParser) parseAtom() (physical.Formula, error) {
	switch {
	case p.accept("("):
		inner, err := p.parseOr()
		if err != nil {
			return nil, err
		}
		if err := p.expect(")"); err != nil {
			return nil, err
		}
		return inner, nil
	case p.accept("true"):
		return physical.NewConstant(true), nil
	case p.accept("false"):
		return physical.NewConstant(false), nil
	}
	return p.parseComparison()
}

func (p *whereParser) parseComparison() (physical.Formula, error) {
	column := p.next()
	if column == "" {
		return nil, errors.New("expected a column name")
	}
	if !isIdentifier(column) {
		return nil, errors.Errorf("expected a column name, got %q", column)
	}
	left := physical.NewVariable(column)

	operator := p.next()
	negated := false
	if strings.EqualFold(operator, "not") {
		negated = true
		operator = p.next()
	}

	var relation physical.Relation
	switch strings.ToLower(operator) {
	case "=":
		relation = physical.Equal
	case "!=", "<>":
		relation = physical.NotEqual
	case ">":
		relation = physical.MoreThan
	case "<":
		relation = physical.LessThan
	case ">=":
		relation = physical.GreaterEqual
	case "<=":
		relation = physical.LessEqual
	case "like":
		relation = physical.Like
	case "in":
		return p.parseInList(left, negated)
	default:
		return nil, errors.Errorf("unsupported operator %q", operator)
	}
	if negated {
		return nil, errors.Errorf("NOT is only valid before IN or a parenthesized condition")
	}

	literal, err := p.parseLiteral()
	if err != nil {
		return nil, err
	}
	return physical.NewPredicate(left, relation, physical.NewConstantValue(literal)), nil
}

func (p *whereParser) parseInList(left physical.Expression, negated bool) (physical.Formula, error) {
	if err := p.expect("("); err != nil {
		return nil, err
	}
	var elements []string
	for {
		literal, err := p.parseLiteral()
		if err != nil {
			return nil, err
		}
		if literal.Type.TypeID != thingsql.TypeIDString {
			return nil, errors.New("IN lists only support string literals")
		}
		elements = append(elements, literal.Str)
		if p.accept(",") {
			continue
		}
		break
	}
	if err := p.expect(")"); err != nil {
		return nil, err
	}

	relation := physical.In
	if negated {
		relation = physical.NotIn
	}
	return physical.NewPredicate(left, relation, physical.NewConstantValue(thingsql.NewStringSet(elements))), nil
}

func (p *whereParser) parseLiteral() (thingsql.Value, error) {
	token := p.next()
	if token == "" {
		return thingsql.ZeroValue, errors.New("expected a literal")
	}
	if strings.HasPrefix(token, "'") {
		return thingsql.NewString(strings.Trim(token, "'")), nil
	}
	if number, err := strconv.Atoi(token); err == nil {
		return thingsql.NewInt(number), nil
	}
	return thingsql.ZeroValue, errors.Errorf("expected a literal, got %q", token)
}

func isIdentifier(token string) bool {
	for i, r := range token {
		if unicode.IsLetter(r) || r == '_' || (i > 0 && unicode.IsDigit(r)) {
			continue
		}
		return false
	}
	return len(token) > 0
}

// tokenizeWhere splits the filter into identifiers, quoted strings,
// numbers and operator symbols. Quoted strings keep their quotes so the
// parser can tell them from identifiers.
func tokenizeWhere(input string) ([]string, error) {
	var tokens []string
	runes := []rune(input)
	i := 0
	for i < len(runes) {
		r := runes[i]
		switch {
		case unicode.IsSpace(r):
			i++
		case r == '\'':
			start := i
			i++
			for i < len(runes) && runes[i] != '\'' {
				i++
			}
			if i >= len(runes) {
				return nil, errors.New("unterminated string literal")
			}
			i++
			tokens = append(tokens, string(runes[start:i]))
		case r == '(' || r == ')' || r == ',':
			tokens = append(tokens, string(r))
			i++
		case r == '=':
			tokens = append(tokens, "=")
			i++
		case r == '!':
			if i+1 < len(runes) && runes[i+1] == '=' {
				tokens = append(tokens, "!=")
				i += 2
			} else {
				return nil, errors.New("unexpected '!'")
			}
		case r == '<':
			if i+1 < len(runes) && runes[i+1] == '=' {
				tokens = append(tokens, "<=")
				i += 2
			} else if i+1 < len(runes) && runes[i+1] == '>' {
				tokens = append(tokens, "<>")
				i += 2
			} else {
				tokens = append(tokens, "<")
				i++
			}
		case r == '>':
			if i+1 < len(runes) && runes[i+1] == '=' {
				tokens = append(tokens, ">=")
				i += 2
			} else {
				tokens = append(tokens, ">")
				i++
			}
		case unicode.IsLetter(r) || r == '_':
			start := i
			for i < len(runes) && (unicode.IsLetter(runes[i]) || unicode.IsDigit(runes[i]) || runes[i] == '_') {
				i++
			}
			tokens = append(tokens, string(runes[start:i]))
		case unicode.IsDigit(r) || r == '-':
			start := i
			i++
			for i < len(runes) && unicode.IsDigit(runes[i]) {
				i++
			}
			tokens = append(tokens, string(runes[start:i]))
		default:
			return nil, errors.Errorf("unexpected character %q", string(r))
		}
	}
	return tokens, nil
}
