/*
PURPOSE:
  Defines the fixed allergen vocabulary the classifier is allowed to emit,
  plus the ingredient keywords used to decide whether a predicted allergen
  is grounded in the ingredient list.

REQUIREMENTS:
  User-specified:
  - Nine labels: milk, egg, peanut, tree nut, wheat, soy, fish, shellfish, sesame.
  - The enumeration order is what the prompt lists.
  - Extracted payloads list labels in lexicographic order, the order the
    native bridge's label set iterates in.

  Implementation-discovered:
  - Callers need both ordered iteration and O(1) membership.

ARCHITECTURE INTEGRATION:
  - Used by: internal/allergen (Extract), internal/result, internal/evaluate,
    internal/engine (prompt builder).

ERROR HANDLING:
  - None (immutable data).

IMPLEMENTATION RULES:
  - Never mutate the vocabulary at runtime. Expose copies only.

RELATED FILES:
  - internal/allergen/extract.go
*/

package allergen

import "slices"

// Empty is the payload emitted when no allergen is asserted.
const Empty = "EMPTY"

var vocabulary = []string{
	"milk",
	"egg",
	"peanut",
	"tree nut",
	"wheat",
	"soy",
	"fish",
	"shellfish",
	"sesame",
}

// payloadOrder is the vocabulary sorted lexicographically.
var payloadOrder = func() []string {
	out := slices.Clone(vocabulary)
	slices.Sort(out)
	return out
}()

var allowed = func() map[string]bool {
	m := make(map[string]bool, len(vocabulary))
	for _, a := range vocabulary {
		m[a] = true
	}
	return m
}()

// keywords maps each allergen to ingredient terms that indicate its presence.
var keywords = map[string][]string{
	"milk":      {"milk", "cream", "butter", "cheese", "whey", "casein", "lactose", "dairy", "yogurt", "ghee", "curd", "buttermilk"},
	"egg":       {"egg", "albumin", "mayonnaise", "meringue", "ovum", "lysozyme", "ovalbumin"},
	"peanut":    {"peanut", "groundnut", "arachis", "monkey nut"},
	"tree nut":  {"almond", "walnut", "cashew", "pecan", "pistachio", "hazelnut", "macadamia", "brazil nut", "chestnut", "nut", "praline", "marzipan", "nougat"},
	"wheat":     {"wheat", "flour", "gluten", "semolina", "durum", "spelt", "bulgur", "couscous", "bread", "pasta", "noodle", "cereal", "bran", "starch"},
	"soy":       {"soy", "soya", "tofu", "edamame", "miso", "tempeh", "lecithin"},
	"fish":      {"fish", "anchovy", "sardine", "tuna", "salmon", "cod", "bass", "mackerel", "tilapia", "trout", "herring", "haddock"},
	"shellfish": {"shrimp", "prawn", "crab", "lobster", "crayfish", "oyster", "mussel", "clam", "scallop", "crustacean", "mollusk", "squid", "octopus"},
	"sesame":    {"sesame", "tahini", "halvah", "hummus"},
}

// Vocabulary returns the allergen labels in their fixed enumeration order.
func Vocabulary() []string {
	out := make([]string, len(vocabulary))
	copy(out, vocabulary)
	return out
}

// Size is the number of labels in the vocabulary.
func Size() int {
	return len(vocabulary)
}

// IsAllowed reports whether label is a vocabulary member. The check is exact;
// callers normalize first.
func IsAllowed(label string) bool {
	return allowed[label]
}

// Keywords returns the ingredient terms associated with an allergen.
func Keywords(label string) []string {
	return keywords[label]
}
