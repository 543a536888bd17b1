package allergen

import (
	"slices"
	"strings"
)

// Extract maps raw model output to a payload: either Empty or the matched
// vocabulary labels joined with "," in lexicographic order.
//
// Matching is plain substring search over the lowercased text, so a label that
// occurs inside another word still matches ("fish" in "shellfish"). The only
// negation understood is the literal phrase "not empty".
func Extract(raw string) string {
	return Join(Match(raw))
}

// Match returns the vocabulary labels asserted by raw, sorted.
// A nil result means the text asserts no allergen.
func Match(raw string) []string {
	text := strings.ToLower(raw)

	if strings.Contains(text, "empty") && !strings.Contains(text, "not empty") {
		return nil
	}

	var found []string
	seen := make(map[string]bool, len(payloadOrder))
	for _, label := range payloadOrder {
		if seen[label] {
			continue
		}
		if strings.Contains(text, label) {
			found = append(found, label)
			seen[label] = true
		}
	}
	return found
}

// Join renders labels as a payload. An empty list renders as Empty.
func Join(labels []string) string {
	if len(labels) == 0 {
		return Empty
	}
	return strings.Join(labels, ",")
}

// Normalize turns a comma separated label string (ground truth or prediction)
// into a set. Blank input and Empty yield an empty set. Entries are lowercased
// and trimmed but not filtered against the vocabulary.
func Normalize(s string) map[string]bool {
	set := make(map[string]bool)
	if strings.TrimSpace(s) == "" || strings.EqualFold(strings.TrimSpace(s), Empty) {
		return set
	}
	for _, part := range strings.Split(strings.ToLower(s), ",") {
		part = strings.TrimSpace(part)
		if part == "" || part == "empty" {
			continue
		}
		set[part] = true
	}
	return set
}

// Ordered returns the members of set that belong to the vocabulary, in
// vocabulary order, followed by any unknown members in sorted order.
func Ordered(set map[string]bool) []string {
	out := make([]string, 0, len(set))
	for _, label := range vocabulary {
		if set[label] {
			out = append(out, label)
		}
	}
	var unknown []string
	for label := range set {
		if !allowed[label] {
			unknown = append(unknown, label)
		}
	}
	slices.Sort(unknown)
	return append(out, unknown...)
}
