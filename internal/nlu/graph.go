package nlu

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"time"
)

// GraphFormatVersion is written into every encoded graph.
const GraphFormatVersion = 1

// Word is one template word after expansion.
//
// Input is what the speaker says (already word-transformed) and may contain
// several space-separated tokens after number expansion. Output is what the
// word contributes to the recognised text; it differs from Input when the
// template used a substitution.
type Word struct {
	Input  string `json:"input,omitempty"`
	Output string `json:"output,omitempty"`
}

// SlotSpan tags the words [Start, End) of a sentence as a slot.
type SlotSpan struct {
	Name  string `json:"name"`
	Start int    `json:"start"`
	End   int    `json:"end"`
}

// Sentence is one concrete sentence an intent accepts.
type Sentence struct {
	// Text is the space-joined input tokens and is the index key.
	Text  string     `json:"text"`
	Words []Word     `json:"words"`
	Slots []SlotSpan `json:"slots,omitempty"`
}

// Intent groups the sentences that map to one intent name.
type Intent struct {
	Name      string     `json:"name"`
	Sentences []Sentence `json:"sentences"`
}

type sentenceRef struct {
	intent   *Intent
	sentence int
}

// Graph is a compiled, immutable intent graph.
type Graph struct {
	createdAt  time.Time
	intents    []*Intent
	byName     map[string]*Intent
	index      map[string][]sentenceRef
	vocabulary map[string]struct{}
}

// NewGraph builds a graph from intents and indexes their sentences.
// Intents are ordered by name so lookups are deterministic.
func NewGraph(intents []Intent) *Graph {
	g := &Graph{
		createdAt:  time.Now().UTC(),
		byName:     make(map[string]*Intent, len(intents)),
		index:      make(map[string][]sentenceRef),
		vocabulary: make(map[string]struct{}),
	}

	for i := range intents {
		intent := intents[i]
		g.intents = append(g.intents, &intent)
	}
	sort.SliceStable(g.intents, func(i, j int) bool {
		return g.intents[i].Name < g.intents[j].Name
	})

	for _, intent := range g.intents {
		g.byName[intent.Name] = intent
		for i, s := range intent.Sentences {
			g.index[s.Text] = append(g.index[s.Text], sentenceRef{intent: intent, sentence: i})
			for _, tok := range strings.Fields(s.Text) {
				g.vocabulary[tok] = struct{}{}
			}
		}
	}

	return g
}

// CreatedAt returns when the graph was built or decoded.
func (g *Graph) CreatedAt() time.Time {
	return g.createdAt
}

// IntentNames returns the intent names in the graph, sorted.
func (g *Graph) IntentNames() []string {
	names := make([]string, 0, len(g.intents))
	for _, intent := range g.intents {
		names = append(names, intent.Name)
	}
	return names
}

// Intent returns the named intent.
func (g *Graph) Intent(name string) (Intent, bool) {
	intent, ok := g.byName[name]
	if !ok {
		return Intent{}, false
	}
	return *intent, true
}

// SentenceCount returns the total number of sentences across all intents.
func (g *Graph) SentenceCount() int {
	n := 0
	for _, intent := range g.intents {
		n += len(intent.Sentences)
	}
	return n
}

// Knows reports whether token appears in any sentence of the graph.
func (g *Graph) Knows(token string) bool {
	_, ok := g.vocabulary[token]
	return ok
}

// lookup returns the first sentence for text whose intent passes allow.
func (g *Graph) lookup(text string, allow func(string) bool) (*Intent, *Sentence, bool) {
	for _, ref := range g.index[text] {
		if allow(ref.intent.Name) {
			return ref.intent, &ref.intent.Sentences[ref.sentence], true
		}
	}
	return nil, nil, false
}

// graphFile is the on-disk representation of a Graph.
type graphFile struct {
	Version   int       `json:"version"`
	CreatedAt time.Time `json:"created_at"`
	Intents   []Intent  `json:"intents"`
}

// EncodeGraph serialises a graph as versioned JSON.
func EncodeGraph(g *Graph) ([]byte, error) {
	if g == nil {
		return nil, fmt.Errorf("%w: nil graph", ErrInvalidGraph)
	}

	file := graphFile{
		Version:   GraphFormatVersion,
		CreatedAt: g.createdAt,
		Intents:   make([]Intent, 0, len(g.intents)),
	}
	for _, intent := range g.intents {
		file.Intents = append(file.Intents, *intent)
	}

	data, err := json.Marshal(file)
	if err != nil {
		return nil, fmt.Errorf("encoding graph: %w", err)
	}
	return data, nil
}

// DecodeGraph parses a graph produced by EncodeGraph and rebuilds its index.
func DecodeGraph(data []byte) (*Graph, error) {
	var file graphFile
	if err := json.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidGraph, err)
	}

	if file.Version != GraphFormatVersion {
		return nil, fmt.Errorf("%w: unsupported version %d", ErrInvalidGraph, file.Version)
	}

	for _, intent := range file.Intents {
		if err := CheckIntentName(intent.Name); err != nil {
			return nil, fmt.Errorf("%w: %w", ErrInvalidGraph, err)
		}
		for _, s := range intent.Sentences {
			for _, span := range s.Slots {
				if span.Start < 0 || span.End < span.Start || span.End > len(s.Words) {
					return nil, fmt.Errorf("%w: slot %q out of range in intent %s", ErrInvalidGraph, span.Name, intent.Name)
				}
			}
		}
	}

	g := NewGraph(file.Intents)
	if !file.CreatedAt.IsZero() {
		g.createdAt = file.CreatedAt
	}
	return g, nil
}
