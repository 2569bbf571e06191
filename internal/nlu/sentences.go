package nlu

import (
	"bufio"
	"fmt"
	"sort"
	"strings"
)

// IntentTemplates holds the raw templates collected for one intent.
type IntentTemplates struct {
	Name      string
	Templates []string

	// Rules maps local rule names to their template bodies.
	Rules map[string]string
}

// ParseTemplates collects templates from a train payload.
//
// Each value is either a string holding an ini-style document with
// [Intent] sections, or a list of template lines whose map key is the
// intent name. Intents that appear in several sources are merged.
func ParseTemplates(sentences map[string]any) ([]IntentTemplates, error) {
	merged := make(map[string]*IntentTemplates)
	get := func(name string) *IntentTemplates {
		t, ok := merged[name]
		if !ok {
			t = &IntentTemplates{Name: name, Rules: make(map[string]string)}
			merged[name] = t
		}
		return t
	}

	keys := make([]string, 0, len(sentences))
	for k := range sentences {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	for _, key := range keys {
		switch v := sentences[key].(type) {
		case string:
			if err := parseINI(key, v, get); err != nil {
				return nil, err
			}

		case []string:
			if err := CheckIntentName(key); err != nil {
				return nil, err
			}
			t := get(key)
			t.Templates = append(t.Templates, nonEmpty(v)...)

		case []any:
			if err := CheckIntentName(key); err != nil {
				return nil, err
			}
			lines := make([]string, 0, len(v))
			for i, raw := range v {
				s, ok := raw.(string)
				if !ok {
					return nil, fmt.Errorf("%w: %s[%d] is %T, want string", ErrInvalidTemplate, key, i, raw)
				}
				lines = append(lines, s)
			}
			t := get(key)
			t.Templates = append(t.Templates, nonEmpty(lines)...)

		default:
			return nil, fmt.Errorf("%w: %s is %T, want string or list of strings", ErrInvalidTemplate, key, v)
		}
	}

	out := make([]IntentTemplates, 0, len(merged))
	for _, t := range merged {
		out = append(out, *t)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

// parseINI reads an ini-style sentences document.
func parseINI(source, doc string, get func(string) *IntentTemplates) error {
	var current *IntentTemplates
	scanner := bufio.NewScanner(strings.NewReader(doc))
	scanner.Buffer(make([]byte, 0, 64*1024), 1<<20)

	lineNo := 0
	for scanner.Scan() {
		lineNo++
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") || strings.HasPrefix(line, ";") {
			continue
		}

		if name, ok := sectionName(line); ok {
			if err := CheckIntentName(name); err != nil {
				return fmt.Errorf("%s line %d: %w", source, lineNo, err)
			}
			current = get(name)
			continue
		}

		if current == nil {
			return fmt.Errorf("%w: %s line %d: sentence outside of an [Intent] section", ErrInvalidTemplate, source, lineNo)
		}

		if name, body, ok := ruleDefinition(line); ok {
			current.Rules[name] = body
			continue
		}

		current.Templates = append(current.Templates, line)
	}

	if err := scanner.Err(); err != nil {
		return fmt.Errorf("%w: %s: %w", ErrInvalidTemplate, source, err)
	}
	return nil
}

// CheckIntentName rejects names that cannot be published as the last level
// of an intent topic: empty names and names holding /, +, # or NUL.
func CheckIntentName(name string) error {
	if strings.TrimSpace(name) == "" {
		return fmt.Errorf("%w: empty intent name", ErrInvalidTemplate)
	}
	if strings.ContainsAny(name, "/+#\x00") {
		return fmt.Errorf("%w: intent name %q must not contain /, + or #", ErrInvalidTemplate, name)
	}
	return nil
}

// sectionName matches a whole-line [Name] header.
func sectionName(line string) (string, bool) {
	if !strings.HasPrefix(line, "[") || !strings.HasSuffix(line, "]") {
		return "", false
	}
	inner := strings.TrimSpace(line[1 : len(line)-1])
	if inner == "" || strings.ContainsAny(inner, "[]()|<>{} ") {
		return "", false
	}
	return inner, true
}

// ruleDefinition matches "name = body" where name is a bare identifier.
func ruleDefinition(line string) (string, string, bool) {
	name, body, found := strings.Cut(line, "=")
	if !found {
		return "", "", false
	}
	name = strings.TrimSpace(name)
	if name == "" || !isIdentifier(name) {
		return "", "", false
	}
	return name, strings.TrimSpace(body), true
}

func isIdentifier(s string) bool {
	for _, r := range s {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '_', r == '-':
		default:
			return false
		}
	}
	return true
}

func nonEmpty(lines []string) []string {
	out := make([]string, 0, len(lines))
	for _, l := range lines {
		if l = strings.TrimSpace(l); l != "" {
			out = append(out, l)
		}
	}
	return out
}
