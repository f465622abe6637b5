package plugin

import (
	"strings"
	"unicode"
	"unicode/utf8"
)

const (
	minPhraseLen = 2
	maxPhraseLen = 120
)

// quotePairs maps each opening quote to its closing quote.
var quotePairs = map[rune]rune{
	'"':      '"',
	'\u201c': '\u201d',
	'\'':     '\'',
}

// ExtractTriggerPhrases returns the quoted spans of a description, trimmed,
// de-duplicated case-insensitively and in order of first appearance. Single
// quotes that sit inside a word are apostrophes and are ignored.
func ExtractTriggerPhrases(description string) []string {
	var (
		out  = []string{}
		seen = map[string]struct{}{}
		rs   = []rune(description)
	)
	for i := 0; i < len(rs); i++ {
		closer, ok := quotePairs[rs[i]]
		if !ok {
			continue
		}
		if rs[i] == '\'' && i > 0 && isWordRune(rs[i-1]) {
			continue
		}
		end := findCloser(rs, i+1, closer)
		if end < 0 {
			continue
		}
		span := string(rs[i+1 : end])
		i = end

		phrase := strings.TrimSpace(span)
		if strings.ContainsAny(phrase, "\n\r") {
			continue
		}
		if n := utf8.RuneCountInString(phrase); n < minPhraseLen || n > maxPhraseLen {
			continue
		}
		key := strings.ToLower(phrase)
		if _, dup := seen[key]; dup {
			continue
		}
		seen[key] = struct{}{}
		out = append(out, phrase)
	}
	return out
}

func findCloser(rs []rune, from int, closer rune) int {
	for j := from; j < len(rs); j++ {
		if rs[j] == '\n' {
			return -1
		}
		if rs[j] != closer {
			continue
		}
		if closer == '\'' && j+1 < len(rs) && isWordRune(rs[j+1]) {
			continue
		}
		return j
	}
	return -1
}

func isWordRune(r rune) bool { return unicode.IsLetter(r) || unicode.IsDigit(r) }

var (
	fillerWords = set("please", "can", "could", "would", "will", "you", "i", "me",
		"help", "want", "need", "to", "let's", "lets", "just")
	contextWords = set("for", "in", "when", "while", "during", "within", "using", "before", "after")
	articles     = set("a", "an", "the")
)

func set(words ...string) map[string]struct{} {
	m := make(map[string]struct{}, len(words))
	for _, w := range words {
		m[w] = struct{}{}
	}
	return m
}

func has(m map[string]struct{}, w string) bool {
	_, ok := m[w]
	return ok
}

// ExtractIntent splits a trigger phrase into action, object and optional
// context. ok is false when no action/object pair can be recognised; that
// is an expected outcome, not an error.
func ExtractIntent(phrase string) (SemanticIntent, bool) {
	var words []string
	for _, f := range strings.Fields(phrase) {
		if w := strings.ToLower(strings.TrimFunc(f, isEdgePunct)); w != "" {
			words = append(words, w)
		}
	}

	i := 0
	for i < len(words) && has(fillerWords, words[i]) {
		i++
	}
	if i >= len(words) || !isActionWord(words[i]) {
		return SemanticIntent{}, false
	}
	action := words[i]
	rest := words[i+1:]

	ctxAt := len(rest)
	for j := 1; j < len(rest); j++ {
		if has(contextWords, rest[j]) {
			ctxAt = j
			break
		}
	}
	object := rest[:ctxAt]
	for len(object) > 1 && has(articles, object[0]) {
		object = object[1:]
	}
	if len(object) == 0 {
		return SemanticIntent{}, false
	}

	intent := SemanticIntent{
		Action:    action,
		Object:    strings.Join(object, " "),
		RawPhrase: phrase,
	}
	if ctxAt < len(rest) {
		intent.Context = strings.Join(rest[ctxAt:], " ")
	}
	return intent, true
}

// ExtractIntents runs ExtractIntent over phrases and keeps the hits.
func ExtractIntents(phrases []string) []SemanticIntent {
	out := []SemanticIntent{}
	for _, p := range phrases {
		if in, ok := ExtractIntent(p); ok {
			out = append(out, in)
		}
	}
	return out
}

func isEdgePunct(r rune) bool {
	return unicode.IsPunct(r) || unicode.IsSymbol(r)
}

func isActionWord(w string) bool {
	if utf8.RuneCountInString(w) < 2 {
		return false
	}
	for _, r := range w {
		if !unicode.IsLetter(r) && r != '-' {
			return false
		}
	}
	return true
}
