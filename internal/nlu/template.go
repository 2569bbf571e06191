package nlu

import (
	"fmt"
	"strings"
	"unicode"
)

type tokenKind int

const (
	tokWord tokenKind = iota
	tokLParen
	tokRParen
	tokLBracket
	tokRBracket
	tokPipe
	tokRule
	tokTag
	tokSub
)

type token struct {
	kind tokenKind
	text string
	pos  int
}

// special runes end a bare word.
const special = "()[]|<>{}"

func isSpecial(r rune) bool {
	return strings.ContainsRune(special, r)
}

// lexTemplate splits a template line into tokens. A ':' directly after a
// closing ')' or ']' starts a group substitution.
func lexTemplate(src string) ([]token, error) {
	runes := []rune(src)
	var tokens []token

	for i := 0; i < len(runes); {
		r := runes[i]

		switch {
		case unicode.IsSpace(r):
			i++

		case r == '(':
			tokens = append(tokens, token{kind: tokLParen, pos: i})
			i++
		case r == ')':
			tokens = append(tokens, token{kind: tokRParen, pos: i})
			i++
		case r == '[':
			tokens = append(tokens, token{kind: tokLBracket, pos: i})
			i++
		case r == ']':
			tokens = append(tokens, token{kind: tokRBracket, pos: i})
			i++
		case r == '|':
			tokens = append(tokens, token{kind: tokPipe, pos: i})
			i++

		case r == '<' || r == '{':
			closer := '>'
			kind := tokRule
			if r == '{' {
				closer = '}'
				kind = tokTag
			}
			end := i + 1
			for end < len(runes) && runes[end] != closer {
				end++
			}
			if end >= len(runes) {
				return nil, fmt.Errorf("%w: unterminated %q at column %d", ErrInvalidTemplate, string(r), i+1)
			}
			name := strings.TrimSpace(string(runes[i+1 : end]))
			if kind == tokTag {
				// {name:entity} and {name!converter} keep only the slot name.
				if cut := strings.IndexAny(name, ":!"); cut >= 0 {
					name = strings.TrimSpace(name[:cut])
				}
			}
			if name == "" {
				return nil, fmt.Errorf("%w: empty %q at column %d", ErrInvalidTemplate, string(r), i+1)
			}
			tokens = append(tokens, token{kind: kind, text: name, pos: i})
			i = end + 1

		case r == '>' || r == '}':
			return nil, fmt.Errorf("%w: unexpected %q at column %d", ErrInvalidTemplate, string(r), i+1)

		case r == ':' && i > 0 && (runes[i-1] == ')' || runes[i-1] == ']'):
			end := i + 1
			for end < len(runes) && !unicode.IsSpace(runes[end]) && !isSpecial(runes[end]) {
				end++
			}
			tokens = append(tokens, token{kind: tokSub, text: string(runes[i+1 : end]), pos: i})
			i = end

		default:
			end := i
			for end < len(runes) && !unicode.IsSpace(runes[end]) && !isSpecial(runes[end]) {
				end++
			}
			tokens = append(tokens, token{kind: tokWord, text: string(runes[i:end]), pos: i})
			i = end
		}
	}

	return tokens, nil
}

// Template AST.

type node interface{}

type wordNode struct {
	input  string
	output string
	hasSub bool
}

type ruleNode struct {
	name string
}

type groupNode struct {
	alts     [][]item
	optional bool
}

type item struct {
	node   node
	slot   string
	sub    string
	hasSub bool
}

type parser struct {
	tokens []token
	pos    int
}

// parseTemplate parses a whole template line. Top-level alternatives are
// allowed without enclosing parentheses.
func parseTemplate(src string) (*groupNode, error) {
	tokens, err := lexTemplate(src)
	if err != nil {
		return nil, err
	}

	p := &parser{tokens: tokens}
	g, err := p.parseAlternatives(-1)
	if err != nil {
		return nil, err
	}
	if p.pos < len(p.tokens) {
		tok := p.tokens[p.pos]
		return nil, fmt.Errorf("%w: unexpected token at column %d", ErrInvalidTemplate, tok.pos+1)
	}
	return g, nil
}

func (p *parser) peek() (token, bool) {
	if p.pos >= len(p.tokens) {
		return token{}, false
	}
	return p.tokens[p.pos], true
}

// parseAlternatives reads sequences separated by '|' up to closer
// (not consumed). A closer of -1 means end of input.
func (p *parser) parseAlternatives(closer tokenKind) (*groupNode, error) {
	g := &groupNode{}
	for {
		seq, err := p.parseSequence(closer)
		if err != nil {
			return nil, err
		}
		g.alts = append(g.alts, seq)

		tok, ok := p.peek()
		if !ok || tok.kind != tokPipe {
			return g, nil
		}
		p.pos++
	}
}

func (p *parser) parseSequence(closer tokenKind) ([]item, error) {
	var seq []item
	for {
		tok, ok := p.peek()
		if !ok || tok.kind == tokPipe || tok.kind == closer {
			return seq, nil
		}

		it, err := p.parseItem()
		if err != nil {
			return nil, err
		}
		seq = append(seq, it)
	}
}

func (p *parser) parseItem() (item, error) {
	tok, _ := p.peek()
	p.pos++

	var it item
	switch tok.kind {
	case tokWord:
		it.node = parseWord(tok.text)

	case tokRule:
		it.node = ruleNode{name: tok.text}

	case tokLParen, tokLBracket:
		closer := tokRParen
		if tok.kind == tokLBracket {
			closer = tokRBracket
		}
		g, err := p.parseAlternatives(closer)
		if err != nil {
			return item{}, err
		}
		end, ok := p.peek()
		if !ok || end.kind != closer {
			return item{}, fmt.Errorf("%w: unclosed group at column %d", ErrInvalidTemplate, tok.pos+1)
		}
		p.pos++
		g.optional = tok.kind == tokLBracket
		it.node = g

	default:
		return item{}, fmt.Errorf("%w: unexpected token at column %d", ErrInvalidTemplate, tok.pos+1)
	}

	if next, ok := p.peek(); ok && next.kind == tokSub {
		it.sub, it.hasSub = next.text, true
		p.pos++
	}
	if next, ok := p.peek(); ok && next.kind == tokTag {
		it.slot = next.text
		p.pos++
	}

	return it, nil
}

// parseWord splits raw:value substitutions. "raw:" drops the word from the
// output and ":value" inserts output without consuming input.
func parseWord(text string) wordNode {
	raw, sub, found := strings.Cut(text, ":")
	if !found {
		return wordNode{input: text, output: text}
	}
	return wordNode{input: raw, output: sub, hasSub: true}
}
