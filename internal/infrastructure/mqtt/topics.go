package mqtt

import (
	"fmt"
	"strings"
)

// Topic wildcards.
const (
	// SingleLevelWildcard matches exactly one topic level.
	SingleLevelWildcard = "+"

	// MultiLevelWildcard matches any number of trailing levels.
	MultiLevelWildcard = "#"
)

// ValidatePublishTopic checks a concrete topic name. Topic names used for
// publishing must be non-empty and contain no wildcards.
func ValidatePublishTopic(topic string) error {
	if topic == "" {
		return ErrInvalidTopic
	}
	if strings.ContainsAny(topic, "+#") {
		return fmt.Errorf("%w: wildcards not allowed in %q", ErrInvalidTopic, topic)
	}
	return nil
}

// ValidateFilter checks a subscription filter. A + must fill a whole
// level, and # must be the last level.
func ValidateFilter(filter string) error {
	if filter == "" {
		return ErrInvalidTopic
	}

	levels := strings.Split(filter, "/")
	for i, level := range levels {
		switch {
		case level == MultiLevelWildcard:
			if i != len(levels)-1 {
				return fmt.Errorf("%w: # must be the last level in %q", ErrInvalidTopic, filter)
			}
		case level == SingleLevelWildcard:
		case strings.ContainsAny(level, "+#"):
			return fmt.Errorf("%w: wildcard must occupy a whole level in %q", ErrInvalidTopic, filter)
		}
	}
	return nil
}

// MatchTopic reports whether topic is matched by the subscription filter.
//
//	MatchTopic("rhasspy/nlu/+/train", "rhasspy/nlu/kitchen/train") // true
//	MatchTopic("hermes/#", "hermes/nlu/query")                     // true
//	MatchTopic("hermes/nlu/query", "hermes/nlu/query/extra")       // false
func MatchTopic(filter, topic string) bool {
	fl := strings.Split(filter, "/")
	tl := strings.Split(topic, "/")

	for i, level := range fl {
		if level == MultiLevelWildcard {
			return true
		}
		if i >= len(tl) {
			return false
		}
		if level != SingleLevelWildcard && level != tl[i] {
			return false
		}
	}
	return len(fl) == len(tl)
}

// TopicLevel returns the level at index i, or "" when the topic is shorter.
//
//	TopicLevel("rhasspy/nlu/kitchen/train", 2) // "kitchen"
func TopicLevel(topic string, i int) string {
	levels := strings.Split(topic, "/")
	if i < 0 || i >= len(levels) {
		return ""
	}
	return levels[i]
}
