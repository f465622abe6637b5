package variation

import (
	"context"
	"strings"

	"github.com/xkilldash9x/plugin-eval/internal/plugin"
)

// actionSynonyms maps common trigger verbs to a near synonym.
var actionSynonyms = map[string]string{
	"add":       "insert",
	"analyze":   "examine",
	"audit":     "inspect",
	"build":     "construct",
	"check":     "verify",
	"commit":    "save",
	"configure": "set up",
	"create":    "make",
	"debug":     "troubleshoot",
	"delete":    "remove",
	"deploy":    "ship",
	"document":  "write up",
	"explain":   "describe",
	"find":      "locate",
	"fix":       "repair",
	"format":    "tidy",
	"generate":  "produce",
	"install":   "set up",
	"migrate":   "move",
	"monitor":   "watch",
	"optimize":  "speed up",
	"plan":      "outline",
	"refactor":  "restructure",
	"review":    "look over",
	"run":       "execute",
	"scan":      "inspect",
	"search":    "look through",
	"summarize": "recap",
	"test":      "exercise",
	"translate": "convert",
	"update":    "modify",
	"validate":  "verify",
	"write":     "draft",
}

// relatedObjects maps an object's head noun to a neighbouring concept.
var relatedObjects = map[string]string{
	"api":           "endpoints",
	"branch":        "feature branch",
	"bug":           "issue",
	"changes":       "diff",
	"code":          "source",
	"commit":        "changeset",
	"database":      "schema",
	"dependencies":  "packages",
	"docs":          "readme",
	"documentation": "readme",
	"pr":            "merge request",
	"pull request":  "merge request",
	"tests":         "test suite",
	"test":          "test case",
	"release":       "version",
}

// RuleGenerator derives variations from fixed rewrite rules. It is
// deterministic and needs no network.
type RuleGenerator struct{}

func NewRuleGenerator() *RuleGenerator { return &RuleGenerator{} }

func (RuleGenerator) GenerateVariations(ctx context.Context, intent plugin.SemanticIntent, budget Budget) ([]plugin.SemanticVariation, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if budget.MaxVariations <= 0 || intent.Action == "" || intent.Object == "" {
		return nil, nil
	}

	object := bareObject(intent.Object)
	var vs []plugin.SemanticVariation
	add := func(t plugin.VariationType, text, why string) {
		vs = append(vs, plugin.SemanticVariation{Variation: text, VariationType: t, Explanation: why})
	}

	if syn, ok := actionSynonyms[intent.Action]; ok {
		add(plugin.VariationSynonym, join(syn, "the", object, intent.Context), "action replaced with "+syn)
	}
	if rel, ok := relatedObject(object); ok {
		add(plugin.VariationRelatedConcept, join(intent.Action, "the", rel, intent.Context), "object generalised to "+rel)
	}
	if intent.Context != "" {
		add(plugin.VariationStructure, join(intent.Context+",", intent.Action, "the", object), "context moved to the front")
	} else {
		add(plugin.VariationStructure, join("I'd like you to", intent.Action, "the", object), "embedded in a request clause")
	}
	add(plugin.VariationInformal, join("hey can you", intent.Action, "this", object)+"?", "casual phrasing")

	return Filter(intent.RawPhrase, vs, budget.MaxVariations), nil
}

// bareObject drops a leading possessive or demonstrative so templates can
// supply their own determiner.
func bareObject(object string) string {
	words := strings.Fields(object)
	if len(words) > 1 {
		switch words[0] {
		case "my", "our", "your", "this", "that", "these", "those", "some":
			words = words[1:]
		}
	}
	return strings.Join(words, " ")
}

// relatedObject swaps the whole object, or else its last word, for a known
// neighbour.
func relatedObject(object string) (string, bool) {
	if rel, ok := relatedObjects[object]; ok {
		return rel, true
	}
	return lastWordRelated(object)
}

// lastWordRelated swaps the last word of object when it has a known neighbour.
func lastWordRelated(object string) (string, bool) {
	words := strings.Fields(object)
	if len(words) == 0 {
		return "", false
	}
	rel, ok := relatedObjects[words[len(words)-1]]
	if !ok {
		return "", false
	}
	return strings.Join(append(words[:len(words)-1:len(words)-1], rel), " "), true
}

func join(parts ...string) string {
	var kept []string
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			kept = append(kept, p)
		}
	}
	return strings.Join(kept, " ")
}
