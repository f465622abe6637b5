package plugin

import (
	"slices"
	"strings"
	"unicode/utf8"
)

// Conflict flags two components whose trigger phrases share domain words,
// meaning a user message could reasonably activate either one.
type Conflict struct {
	A      ComponentRef `json:"a"`
	B      ComponentRef `json:"b"`
	Shared []string     `json:"shared"`
}

// DetectConflicts compares the trigger phrases of every component pair.
// Words shorter than minPart runes, fillers and prepositions do not count.
func DetectConflicts(components []Component, minPart int) []Conflict {
	words := make([]map[string]struct{}, len(components))
	for i, c := range components {
		words[i] = domainWords(c.Triggers(), minPart)
	}

	var out []Conflict
	for i := range components {
		for j := i + 1; j < len(components); j++ {
			var shared []string
			for w := range words[i] {
				if has(words[j], w) {
					shared = append(shared, w)
				}
			}
			if len(shared) == 0 {
				continue
			}
			slices.Sort(shared)
			out = append(out, Conflict{A: components[i].Ref(), B: components[j].Ref(), Shared: shared})
		}
	}
	return out
}

func domainWords(phrases []string, minPart int) map[string]struct{} {
	out := map[string]struct{}{}
	for _, p := range phrases {
		for _, f := range strings.Fields(p) {
			w := strings.ToLower(strings.TrimFunc(f, isEdgePunct))
			if utf8.RuneCountInString(w) < minPart || has(fillerWords, w) || has(contextWords, w) {
				continue
			}
			out[w] = struct{}{}
		}
	}
	return out
}
