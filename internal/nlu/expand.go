package nlu

import (
	"context"
	"fmt"
	"strings"

	"github.com/nerrad567/nlu-hermes/internal/transform"
)

// fragment is a partial sentence produced while expanding a template.
type fragment struct {
	words []Word
	slots []SlotSpan
}

// ruleSet holds parsed rule bodies keyed by qualified name (Intent.rule).
type ruleSet map[string]*groupNode

// expander expands templates for a single intent.
type expander struct {
	ctx       context.Context
	intent    string
	rules     ruleSet
	transform transform.Func
	limit     int

	cache  map[string][]fragment
	active map[string]bool
}

func newExpander(ctx context.Context, intent string, rules ruleSet, f transform.Func, limit int) *expander {
	if f == nil {
		f = transform.Identity
	}
	return &expander{
		ctx:       ctx,
		intent:    intent,
		rules:     rules,
		transform: f,
		limit:     limit,
		cache:     make(map[string][]fragment),
		active:    make(map[string]bool),
	}
}

func (e *expander) expandGroup(g *groupNode) ([]fragment, error) {
	var out []fragment
	if g.optional {
		out = append(out, fragment{})
	}

	for _, alt := range g.alts {
		frags, err := e.expandSequence(alt)
		if err != nil {
			return nil, err
		}
		out = append(out, frags...)
		if len(out) > e.limit {
			return nil, fmt.Errorf("%w: intent %s expands to more than %d sentences", ErrTooManySentences, e.intent, e.limit)
		}
	}

	return out, nil
}

func (e *expander) expandSequence(items []item) ([]fragment, error) {
	result := []fragment{{}}

	for _, it := range items {
		if err := e.ctx.Err(); err != nil {
			return nil, err
		}

		frags, err := e.expandItem(it)
		if err != nil {
			return nil, err
		}

		if len(result)*len(frags) > e.limit {
			return nil, fmt.Errorf("%w: intent %s expands to more than %d sentences", ErrTooManySentences, e.intent, e.limit)
		}

		next := make([]fragment, 0, len(result)*len(frags))
		for _, a := range result {
			for _, b := range frags {
				next = append(next, concat(a, b))
			}
		}
		result = next
	}

	return result, nil
}

func (e *expander) expandItem(it item) ([]fragment, error) {
	var frags []fragment

	switch n := it.node.(type) {
	case wordNode:
		w := Word{Input: e.transform(n.input)}
		if n.hasSub {
			w.Output = n.output
		} else {
			w.Output = w.Input
		}
		frags = []fragment{{words: []Word{w}}}

	case ruleNode:
		var err error
		frags, err = e.expandRule(n.name)
		if err != nil {
			return nil, err
		}

	case *groupNode:
		var err error
		frags, err = e.expandGroup(n)
		if err != nil {
			return nil, err
		}

	default:
		return nil, fmt.Errorf("%w: unknown node %T", ErrInvalidTemplate, n)
	}

	if it.hasSub {
		frags = substitute(frags, it.sub)
	}
	if it.slot != "" {
		frags = tagSlot(frags, it.slot)
	}

	return frags, nil
}

// expandRule resolves <rule> against the current intent first, then as a
// qualified <Intent.rule> reference.
func (e *expander) expandRule(name string) ([]fragment, error) {
	key := e.intent + "." + name
	body, ok := e.rules[key]
	if !ok {
		key = name
		body, ok = e.rules[key]
	}
	if !ok {
		return nil, fmt.Errorf("%w: unknown rule <%s> in intent %s", ErrInvalidTemplate, name, e.intent)
	}

	if frags, ok := e.cache[key]; ok {
		return frags, nil
	}
	if e.active[key] {
		return nil, fmt.Errorf("%w: recursive rule <%s>", ErrInvalidTemplate, key)
	}

	e.active[key] = true
	frags, err := e.expandGroup(body)
	delete(e.active, key)
	if err != nil {
		return nil, err
	}

	e.cache[key] = frags
	return frags, nil
}

func concat(a, b fragment) fragment {
	out := fragment{
		words: make([]Word, 0, len(a.words)+len(b.words)),
		slots: make([]SlotSpan, 0, len(a.slots)+len(b.slots)),
	}
	out.words = append(out.words, a.words...)
	out.words = append(out.words, b.words...)
	out.slots = append(out.slots, a.slots...)

	shift := len(a.words)
	for _, s := range b.slots {
		out.slots = append(out.slots, SlotSpan{Name: s.Name, Start: s.Start + shift, End: s.End + shift})
	}
	return out
}

// substitute replaces the output of each fragment with value.
func substitute(frags []fragment, value string) []fragment {
	out := make([]fragment, len(frags))
	for i, f := range frags {
		words := make([]Word, len(f.words))
		copy(words, f.words)
		for j := range words {
			words[j].Output = ""
		}

		if len(words) == 0 {
			words = append(words, Word{Output: value})
		} else {
			words[0].Output = value
		}
		out[i] = fragment{words: words, slots: f.slots}
	}
	return out
}

func tagSlot(frags []fragment, name string) []fragment {
	out := make([]fragment, len(frags))
	for i, f := range frags {
		slots := make([]SlotSpan, len(f.slots), len(f.slots)+1)
		copy(slots, f.slots)
		slots = append(slots, SlotSpan{Name: name, Start: 0, End: len(f.words)})
		out[i] = fragment{words: f.words, slots: slots}
	}
	return out
}

// sentenceFromFragment finalises a fragment. It reports false when the
// fragment consumes no input.
func sentenceFromFragment(f fragment) (Sentence, bool) {
	var tokens []string
	for _, w := range f.words {
		tokens = append(tokens, strings.Fields(w.Input)...)
	}
	if len(tokens) == 0 {
		return Sentence{}, false
	}

	return Sentence{
		Text:  strings.Join(tokens, " "),
		Words: f.words,
		Slots: f.slots,
	}, true
}
