// Package nlu is the built-in intent recognition engine.
//
// Training turns sentence templates into an intent Graph: every template is
// expanded into the concrete sentences it can produce, and each sentence
// keeps the word-level substitutions and slot spans needed to build a result.
// Recognition tokenises a query, applies the caller's word transform, and
// looks the words up in the graph's sentence index. Fuzzy recognition first
// drops words the graph has never seen.
//
// # Template syntax
//
//	[LightOn]
//	colour = (red | green | blue){colour}
//	turn on [the] (kitchen | living room){room} light
//	set the light to <colour>
//	(switch | turn):on on the fan
//
// Alternatives are written (a | b), optional parts [a], rule references
// <rule> or <Intent.rule>, slot tags {name} after a word or group, and
// substitutions raw:value after a word or ):value after a group.
//
// A Graph is immutable once built. It is safe to share between goroutines.
package nlu
