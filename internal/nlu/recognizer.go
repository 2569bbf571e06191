package nlu

import (
	"context"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/nerrad567/nlu-hermes/internal/transform"
)

// Query is a single recognition request.
type Query struct {
	// Text is the original, untransformed input.
	Text string

	// Transform canonicalises each input token before matching.
	Transform transform.Func

	// IntentFilter limits matches to these intents. Empty allows all.
	IntentFilter []string

	// Fuzzy drops tokens unknown to the graph before matching.
	Fuzzy bool
}

// Slot is a named value extracted from a recognised sentence.
type Slot struct {
	Name   string
	Entity string
	Value  string
	Raw    string

	// Start and End are rune offsets into Recognition.Text.
	Start int
	End   int

	// RawStart and RawEnd are rune offsets into Recognition.RawText.
	RawStart int
	RawEnd   int

	Confidence float64
}

// Recognition is a successful match.
type Recognition struct {
	Intent     string
	Confidence float64

	// Text is the recognised sentence with substitutions applied.
	Text string

	// RawText is the query text as received.
	RawText string

	// Tokens are the matched, transformed input tokens.
	Tokens []string

	Slots []Slot
}

// inputToken is a token of the original text with rune offsets.
type inputToken struct {
	text       string
	start, end int
}

// queryWord is one transformed word, remembering the input token it came from.
type queryWord struct {
	text   string
	origin int
}

// trimChars are stripped from both ends of input tokens.
const trimChars = `.,;:!?"'()[]{}`

// tokenize splits text on whitespace and strips surrounding punctuation,
// keeping rune offsets into text.
func tokenize(text string) []inputToken {
	var tokens []inputToken
	runes := []rune(text)

	for i := 0; i < len(runes); {
		if unicode.IsSpace(runes[i]) {
			i++
			continue
		}
		start := i
		for i < len(runes) && !unicode.IsSpace(runes[i]) {
			i++
		}
		end := i

		for start < end && strings.ContainsRune(trimChars, runes[start]) {
			start++
		}
		for end > start && strings.ContainsRune(trimChars, runes[end-1]) {
			end--
		}
		if start == end {
			continue
		}
		tokens = append(tokens, inputToken{text: string(runes[start:end]), start: start, end: end})
	}

	return tokens
}

// Recognizer matches queries against a Graph.
type Recognizer struct{}

// NewRecognizer creates a recognizer.
func NewRecognizer() *Recognizer {
	return &Recognizer{}
}

// Recognize returns the best match for q in g, or ErrNotRecognized.
// Exact matches win; with q.Fuzzy set, unknown tokens are dropped and the
// remainder is matched with confidence kept/total.
func (r *Recognizer) Recognize(ctx context.Context, g *Graph, q Query) (*Recognition, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if g == nil {
		return nil, ErrNotRecognized
	}

	f := q.Transform
	if f == nil {
		f = transform.Identity
	}

	tokens := tokenize(q.Text)
	var words []queryWord
	for i, tok := range tokens {
		for _, w := range strings.Fields(f(tok.text)) {
			words = append(words, queryWord{text: w, origin: i})
		}
	}
	if len(words) == 0 {
		return nil, ErrNotRecognized
	}

	allow := intentFilter(q.IntentFilter)

	if intent, s, ok := g.lookup(joinWords(words), allow); ok {
		return buildRecognition(q.Text, tokens, words, intent, s, 1.0), nil
	}

	if !q.Fuzzy {
		return nil, ErrNotRecognized
	}

	kept := make([]queryWord, 0, len(words))
	for _, w := range words {
		if g.Knows(w.text) {
			kept = append(kept, w)
		}
	}
	if len(kept) == 0 || len(kept) == len(words) {
		return nil, ErrNotRecognized
	}

	intent, s, ok := g.lookup(joinWords(kept), allow)
	if !ok {
		return nil, ErrNotRecognized
	}

	confidence := float64(len(kept)) / float64(len(words))
	return buildRecognition(q.Text, tokens, kept, intent, s, confidence), nil
}

func intentFilter(names []string) func(string) bool {
	if len(names) == 0 {
		return func(string) bool { return true }
	}
	set := make(map[string]struct{}, len(names))
	for _, n := range names {
		set[n] = struct{}{}
	}
	return func(name string) bool {
		_, ok := set[name]
		return ok
	}
}

func joinWords(words []queryWord) string {
	parts := make([]string, len(words))
	for i, w := range words {
		parts[i] = w.text
	}
	return strings.Join(parts, " ")
}

// buildRecognition assembles the result. matched holds one query word per
// sentence token, in order.
func buildRecognition(raw string, tokens []inputToken, matched []queryWord, intent *Intent, s *Sentence, confidence float64) *Recognition {
	rec := &Recognition{
		Intent:     intent.Name,
		Confidence: confidence,
		RawText:    raw,
		Tokens:     make([]string, len(matched)),
	}
	for i, w := range matched {
		rec.Tokens[i] = w.text
	}

	// Per sentence word: first token index and output rune span.
	tokenStart := make([]int, len(s.Words)+1)
	outStart := make([]int, len(s.Words))
	outEnd := make([]int, len(s.Words))

	var text strings.Builder
	pos := 0
	for i, w := range s.Words {
		tokenStart[i+1] = tokenStart[i] + len(strings.Fields(w.Input))

		outStart[i] = pos
		if w.Output != "" {
			if text.Len() > 0 {
				text.WriteByte(' ')
				pos++
				outStart[i] = pos
			}
			text.WriteString(w.Output)
			pos += utf8.RuneCountInString(w.Output)
		}
		outEnd[i] = pos
	}
	rec.Text = text.String()

	rawRunes := []rune(raw)
	for _, span := range s.Slots {
		slot := Slot{
			Name:       span.Name,
			Entity:     span.Name,
			Confidence: confidence,
		}

		var values []string
		for i := span.Start; i < span.End; i++ {
			if s.Words[i].Output != "" {
				values = append(values, s.Words[i].Output)
			}
		}
		slot.Value = strings.Join(values, " ")

		if span.End > span.Start {
			slot.Start, slot.End = outStart[span.Start], outEnd[span.End-1]
			for i := span.Start; i < span.End; i++ {
				if s.Words[i].Output != "" {
					slot.Start = outStart[i]
					break
				}
			}
		}

		first, last := tokenStart[span.Start], tokenStart[span.End]
		if last > first && last <= len(matched) {
			startTok := tokens[matched[first].origin]
			endTok := tokens[matched[last-1].origin]
			slot.RawStart, slot.RawEnd = startTok.start, endTok.end
			slot.Raw = string(rawRunes[slot.RawStart:slot.RawEnd])
		}

		rec.Slots = append(rec.Slots, slot)
	}

	return rec
}
