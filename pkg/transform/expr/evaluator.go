// Package expr is a small, dependency-free expression evaluator used by the
// transform pipeline and the renderer.
//
// Supported forms:
// - literals: strings, numbers, booleans, null
// - identifier paths with dot traversal: `item.unitPrice`, `bindings.currency`
// - comparisons: `==`, `!=`, `<`, `<=`, `>`, `>=`
// - arithmetic: `+`, `-`, `*`, `/` (`+` concatenates when either side is a string)
// - boolean composition: `&&`, `||`, `!`, parentheses
//
// Identifier resolution is delegated to a Scope so callers decide which
// namespaces exist and whether unknown names are errors.
package expr

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// Eval parses and evaluates an expression against the scope.
func Eval(expression string, scope Scope) (any, error) {
	node, err := parse(expression)
	if err != nil {
		return nil, err
	}
	if node == nil {
		return nil, nil
	}
	return node.eval(scope)
}

// EvalBool evaluates an expression and coerces the result to a boolean.
// An empty expression is true, matching predicate composition semantics.
func EvalBool(expression string, scope Scope) (bool, error) {
	if strings.TrimSpace(expression) == "" {
		return true, nil
	}
	value, err := Eval(expression, scope)
	if err != nil {
		return false, err
	}
	return Truthy(value), nil
}

func parse(expression string) (exprNode, error) {
	trimmed := strings.TrimSpace(expression)
	if trimmed == "" {
		return nil, nil
	}
	tokens, err := tokenize(trimmed)
	if err != nil {
		return nil, err
	}
	if len(tokens) == 0 {
		return nil, nil
	}
	stream := &tokenStream{tokens: tokens}
	node, err := parseOr(stream)
	if err != nil {
		return nil, err
	}
	if stream.pos < len(stream.tokens) {
		return nil, fmt.Errorf("transform/expr: unexpected token %q", stream.tokens[stream.pos].raw)
	}
	return node, nil
}

type tokenKind int

const (
	tokenIdentifier tokenKind = iota
	tokenString
	tokenNumber
	tokenBool
	tokenNull
	tokenEq
	tokenNeq
	tokenLt
	tokenLte
	tokenGt
	tokenGte
	tokenAnd
	tokenOr
	tokenNot
	tokenPlus
	tokenMinus
	tokenStar
	tokenSlash
	tokenLParen
	tokenRParen
)

type token struct {
	kind tokenKind
	raw  string
}

func tokenize(input string) ([]token, error) {
	var tokens []token
	i := 0

	next := func() byte {
		if i >= len(input) {
			return 0
		}
		return input[i]
	}
	consume := func() byte {
		if i >= len(input) {
			return 0
		}
		ch := input[i]
		i++
		return ch
	}

	for i < len(input) {
		ch := next()
		if ch == ' ' || ch == '\t' || ch == '\n' || ch == '\r' {
			i++
			continue
		}

		switch ch {
		case '(':
			consume()
			tokens = append(tokens, token{kind: tokenLParen, raw: "("})
			continue
		case ')':
			consume()
			tokens = append(tokens, token{kind: tokenRParen, raw: ")"})
			continue
		case '+':
			consume()
			tokens = append(tokens, token{kind: tokenPlus, raw: "+"})
			continue
		case '*':
			consume()
			tokens = append(tokens, token{kind: tokenStar, raw: "*"})
			continue
		case '/':
			consume()
			tokens = append(tokens, token{kind: tokenSlash, raw: "/"})
			continue
		case '!':
			consume()
			if next() == '=' {
				consume()
				tokens = append(tokens, token{kind: tokenNeq, raw: "!="})
				continue
			}
			tokens = append(tokens, token{kind: tokenNot, raw: "!"})
			continue
		case '<':
			consume()
			if next() == '=' {
				consume()
				tokens = append(tokens, token{kind: tokenLte, raw: "<="})
				continue
			}
			tokens = append(tokens, token{kind: tokenLt, raw: "<"})
			continue
		case '>':
			consume()
			if next() == '=' {
				consume()
				tokens = append(tokens, token{kind: tokenGte, raw: ">="})
				continue
			}
			tokens = append(tokens, token{kind: tokenGt, raw: ">"})
			continue
		case '=':
			consume()
			if next() != '=' {
				return nil, errors.New("transform/expr: unexpected '='; use '=='")
			}
			consume()
			tokens = append(tokens, token{kind: tokenEq, raw: "=="})
			continue
		case '&':
			consume()
			if next() != '&' {
				return nil, errors.New("transform/expr: unexpected '&'; use '&&'")
			}
			consume()
			tokens = append(tokens, token{kind: tokenAnd, raw: "&&"})
			continue
		case '|':
			consume()
			if next() != '|' {
				return nil, errors.New("transform/expr: unexpected '|'; use '||'")
			}
			consume()
			tokens = append(tokens, token{kind: tokenOr, raw: "||"})
			continue
		case '"', '\'':
			quote := consume()
			start := i
			escaped := false
			for i < len(input) {
				c := consume()
				if escaped {
					escaped = false
					continue
				}
				if c == '\\' {
					escaped = true
					continue
				}
				if c == quote {
					content := input[start : i-1]
					if quote == '\'' {
						// Unquote only accepts single-char rune literals in
						// single quotes, so normalize to a double-quoted form.
						content = strings.ReplaceAll(content, `\'`, "'")
						content = strings.ReplaceAll(content, `"`, `\"`)
					}
					value, err := strconv.Unquote(`"` + content + `"`)
					if err != nil {
						return nil, fmt.Errorf("transform/expr: invalid string literal: %w", err)
					}
					tokens = append(tokens, token{kind: tokenString, raw: value})
					goto nextToken
				}
			}
			return nil, errors.New("transform/expr: unterminated string literal")
		case '-':
			consume()
			tokens = append(tokens, token{kind: tokenMinus, raw: "-"})
			continue
		default:
			start := i
			for i < len(input) {
				c := input[i]
				if strings.IndexByte(" \t\n\r()!=<>&|+-*/", c) >= 0 {
					break
				}
				i++
			}
			raw := strings.TrimSpace(input[start:i])
			if raw == "" {
				continue
			}
			switch strings.ToLower(raw) {
			case "true", "false":
				tokens = append(tokens, token{kind: tokenBool, raw: strings.ToLower(raw)})
			case "null", "nil":
				tokens = append(tokens, token{kind: tokenNull, raw: "null"})
			default:
				if looksLikeNumber(raw) {
					tokens = append(tokens, token{kind: tokenNumber, raw: raw})
				} else {
					tokens = append(tokens, token{kind: tokenIdentifier, raw: raw})
				}
			}
		}

	nextToken:
		continue
	}

	return tokens, nil
}

func looksLikeNumber(raw string) bool {
	if raw == "" {
		return false
	}
	ch := raw[0]
	return ch >= '0' && ch <= '9'
}

type exprNode interface {
	eval(scope Scope) (any, error)
}

type orNode struct{ left, right exprNode }

func (n orNode) eval(scope Scope) (any, error) {
	left, err := n.left.eval(scope)
	if err != nil {
		return nil, err
	}
	if Truthy(left) {
		return true, nil
	}
	right, err := n.right.eval(scope)
	if err != nil {
		return nil, err
	}
	return Truthy(right), nil
}

type andNode struct{ left, right exprNode }

func (n andNode) eval(scope Scope) (any, error) {
	left, err := n.left.eval(scope)
	if err != nil {
		return nil, err
	}
	if !Truthy(left) {
		return false, nil
	}
	right, err := n.right.eval(scope)
	if err != nil {
		return nil, err
	}
	return Truthy(right), nil
}

type notNode struct{ inner exprNode }

func (n notNode) eval(scope Scope) (any, error) {
	value, err := n.inner.eval(scope)
	if err != nil {
		return nil, err
	}
	return !Truthy(value), nil
}

type negNode struct{ inner exprNode }

func (n negNode) eval(scope Scope) (any, error) {
	value, err := n.inner.eval(scope)
	if err != nil {
		return nil, err
	}
	number, ok := Number(value)
	if !ok {
		return nil, fmt.Errorf("transform/expr: cannot negate %T", value)
	}
	return -number, nil
}

type cmpNode struct {
	op          tokenKind
	left, right exprNode
}

func (n cmpNode) eval(scope Scope) (any, error) {
	left, err := n.left.eval(scope)
	if err != nil {
		return nil, err
	}
	right, err := n.right.eval(scope)
	if err != nil {
		return nil, err
	}

	switch n.op {
	case tokenEq:
		return equal(left, right), nil
	case tokenNeq:
		return !equal(left, right), nil
	}

	leftNum, leftOK := Number(left)
	rightNum, rightOK := Number(right)
	if leftOK && rightOK {
		switch n.op {
		case tokenLt:
			return leftNum < rightNum, nil
		case tokenLte:
			return leftNum <= rightNum, nil
		case tokenGt:
			return leftNum > rightNum, nil
		case tokenGte:
			return leftNum >= rightNum, nil
		}
	}

	leftText, rightText := Text(left), Text(right)
	switch n.op {
	case tokenLt:
		return leftText < rightText, nil
	case tokenLte:
		return leftText <= rightText, nil
	case tokenGt:
		return leftText > rightText, nil
	case tokenGte:
		return leftText >= rightText, nil
	default:
		return nil, fmt.Errorf("transform/expr: unsupported comparison operator")
	}
}

func equal(left, right any) bool {
	if left == nil || right == nil {
		return left == nil && right == nil
	}
	if leftNum, ok := Number(left); ok {
		if rightNum, ok := Number(right); ok {
			return leftNum == rightNum
		}
	}
	if leftBool, ok := left.(bool); ok {
		return leftBool == Truthy(right)
	}
	if rightBool, ok := right.(bool); ok {
		return Truthy(left) == rightBool
	}
	return Text(left) == Text(right)
}

type arithNode struct {
	op          tokenKind
	left, right exprNode
}

func (n arithNode) eval(scope Scope) (any, error) {
	left, err := n.left.eval(scope)
	if err != nil {
		return nil, err
	}
	right, err := n.right.eval(scope)
	if err != nil {
		return nil, err
	}

	if n.op == tokenPlus {
		_, leftIsString := left.(string)
		_, rightIsString := right.(string)
		if leftIsString || rightIsString {
			return Text(left) + Text(right), nil
		}
	}

	leftNum, leftOK := Number(left)
	rightNum, rightOK := Number(right)
	if !leftOK || !rightOK {
		return nil, fmt.Errorf("transform/expr: arithmetic requires numeric operands, got %T and %T", left, right)
	}

	switch n.op {
	case tokenPlus:
		return leftNum + rightNum, nil
	case tokenMinus:
		return leftNum - rightNum, nil
	case tokenStar:
		return leftNum * rightNum, nil
	case tokenSlash:
		if rightNum == 0 {
			return nil, errors.New("transform/expr: division by zero")
		}
		return leftNum / rightNum, nil
	default:
		return nil, errors.New("transform/expr: unsupported arithmetic operator")
	}
}

type litNode struct{ value any }

func (n litNode) eval(Scope) (any, error) { return n.value, nil }

type identNode struct{ path string }

func (n identNode) eval(scope Scope) (any, error) {
	if scope == nil {
		return nil, nil
	}
	return scope.Resolve(n.path)
}

type tokenStream struct {
	tokens []token
	pos    int
}

func parseOr(stream *tokenStream) (exprNode, error) {
	left, err := parseAnd(stream)
	if err != nil {
		return nil, err
	}
	for stream.match(tokenOr) {
		right, err := parseAnd(stream)
		if err != nil {
			return nil, err
		}
		left = orNode{left: left, right: right}
	}
	return left, nil
}

func parseAnd(stream *tokenStream) (exprNode, error) {
	left, err := parseComparison(stream)
	if err != nil {
		return nil, err
	}
	for stream.match(tokenAnd) {
		right, err := parseComparison(stream)
		if err != nil {
			return nil, err
		}
		left = andNode{left: left, right: right}
	}
	return left, nil
}

func parseComparison(stream *tokenStream) (exprNode, error) {
	left, err := parseAdditive(stream)
	if err != nil {
		return nil, err
	}
	for {
		op, ok := stream.matchAny(tokenEq, tokenNeq, tokenLt, tokenLte, tokenGt, tokenGte)
		if !ok {
			return left, nil
		}
		right, err := parseAdditive(stream)
		if err != nil {
			return nil, err
		}
		left = cmpNode{op: op, left: left, right: right}
	}
}

func parseAdditive(stream *tokenStream) (exprNode, error) {
	left, err := parseMultiplicative(stream)
	if err != nil {
		return nil, err
	}
	for {
		op, ok := stream.matchAny(tokenPlus, tokenMinus)
		if !ok {
			return left, nil
		}
		right, err := parseMultiplicative(stream)
		if err != nil {
			return nil, err
		}
		left = arithNode{op: op, left: left, right: right}
	}
}

func parseMultiplicative(stream *tokenStream) (exprNode, error) {
	left, err := parseUnary(stream)
	if err != nil {
		return nil, err
	}
	for {
		op, ok := stream.matchAny(tokenStar, tokenSlash)
		if !ok {
			return left, nil
		}
		right, err := parseUnary(stream)
		if err != nil {
			return nil, err
		}
		left = arithNode{op: op, left: left, right: right}
	}
}

func parseUnary(stream *tokenStream) (exprNode, error) {
	if stream.match(tokenNot) {
		inner, err := parseUnary(stream)
		if err != nil {
			return nil, err
		}
		return notNode{inner: inner}, nil
	}
	if stream.match(tokenMinus) {
		inner, err := parseUnary(stream)
		if err != nil {
			return nil, err
		}
		return negNode{inner: inner}, nil
	}
	return parsePrimary(stream)
}

func parsePrimary(stream *tokenStream) (exprNode, error) {
	if stream.match(tokenLParen) {
		inner, err := parseOr(stream)
		if err != nil {
			return nil, err
		}
		if !stream.match(tokenRParen) {
			return nil, errors.New("transform/expr: missing closing ')'")
		}
		return inner, nil
	}

	if stream.pos >= len(stream.tokens) {
		return nil, errors.New("transform/expr: unexpected end of expression")
	}

	tok := stream.tokens[stream.pos]
	stream.pos++
	switch tok.kind {
	case tokenString:
		return litNode{value: tok.raw}, nil
	case tokenNumber:
		value, err := strconv.ParseFloat(tok.raw, 64)
		if err != nil {
			return nil, fmt.Errorf("transform/expr: invalid number literal %q", tok.raw)
		}
		return litNode{value: value}, nil
	case tokenBool:
		return litNode{value: tok.raw == "true"}, nil
	case tokenNull:
		return litNode{value: nil}, nil
	case tokenIdentifier:
		return identNode{path: tok.raw}, nil
	default:
		return nil, fmt.Errorf("transform/expr: unexpected token %q", tok.raw)
	}
}

func (s *tokenStream) match(kind tokenKind) bool {
	if s.pos >= len(s.tokens) {
		return false
	}
	if s.tokens[s.pos].kind != kind {
		return false
	}
	s.pos++
	return true
}

func (s *tokenStream) matchAny(kinds ...tokenKind) (tokenKind, bool) {
	if s.pos >= len(s.tokens) {
		return 0, false
	}
	for _, kind := range kinds {
		if s.tokens[s.pos].kind == kind {
			s.pos++
			return kind, true
		}
	}
	return 0, false
}
