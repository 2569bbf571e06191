package nlu

import (
	"context"
	"fmt"

	"github.com/nerrad567/nlu-hermes/internal/transform"
)

// DefaultMaxSentencesPerIntent bounds template expansion per intent.
const DefaultMaxSentencesPerIntent = 100_000

// TrainerOptions configures a Trainer.
type TrainerOptions struct {
	// MaxSentencesPerIntent caps expansion. Zero uses the default.
	MaxSentencesPerIntent int
}

// TrainInput is a single training request.
type TrainInput struct {
	// Sentences is the decoded sentences payload (see ParseTemplates).
	Sentences map[string]any

	// Transform is applied to every template word before indexing.
	// Nil leaves words untouched.
	Transform transform.Func
}

// Trainer compiles sentence templates into a Graph.
type Trainer struct {
	maxSentences int
}

// NewTrainer creates a trainer.
func NewTrainer(opts TrainerOptions) *Trainer {
	limit := opts.MaxSentencesPerIntent
	if limit <= 0 {
		limit = DefaultMaxSentencesPerIntent
	}
	return &Trainer{maxSentences: limit}
}

// Train parses, expands and indexes the templates in input.
//
// It returns ErrInvalidTemplate for syntax errors and unknown rules,
// ErrTooManySentences when an intent exceeds the expansion limit, and
// ErrNoSentences when nothing would be recognisable.
func (t *Trainer) Train(ctx context.Context, input TrainInput) (*Graph, error) {
	templates, err := ParseTemplates(input.Sentences)
	if err != nil {
		return nil, err
	}

	rules, err := parseRules(templates)
	if err != nil {
		return nil, err
	}

	intents := make([]Intent, 0, len(templates))
	total := 0
	for _, tmpl := range templates {
		e := newExpander(ctx, tmpl.Name, rules, input.Transform, t.maxSentences)

		intent := Intent{Name: tmpl.Name}
		seen := make(map[string]bool)
		for _, line := range tmpl.Templates {
			root, err := parseTemplate(line)
			if err != nil {
				return nil, fmt.Errorf("intent %s: %q: %w", tmpl.Name, line, err)
			}

			frags, err := e.expandGroup(root)
			if err != nil {
				return nil, fmt.Errorf("intent %s: %w", tmpl.Name, err)
			}

			for _, f := range frags {
				s, ok := sentenceFromFragment(f)
				if !ok || seen[s.Text] {
					continue
				}
				seen[s.Text] = true
				intent.Sentences = append(intent.Sentences, s)
			}

			if len(intent.Sentences) > t.maxSentences {
				return nil, fmt.Errorf("%w: intent %s expands to more than %d sentences", ErrTooManySentences, tmpl.Name, t.maxSentences)
			}
		}

		if len(intent.Sentences) == 0 {
			continue
		}
		total += len(intent.Sentences)
		intents = append(intents, intent)
	}

	if total == 0 {
		return nil, ErrNoSentences
	}

	return NewGraph(intents), nil
}

// parseRules parses every rule body up front so errors surface once and
// cross-intent references resolve.
func parseRules(templates []IntentTemplates) (ruleSet, error) {
	rules := make(ruleSet)
	for _, tmpl := range templates {
		for name, body := range tmpl.Rules {
			root, err := parseTemplate(body)
			if err != nil {
				return nil, fmt.Errorf("intent %s: rule %s: %w", tmpl.Name, name, err)
			}
			rules[tmpl.Name+"."+name] = root
		}
	}
	return rules, nil
}
