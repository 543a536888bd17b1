package evaluate

import (
	"strings"

	"github.com/IsseiKhai277/foodallergens/internal/allergen"
	"github.com/IsseiKhai277/foodallergens/internal/model"
)

// Safety analyses the errors of one prediction.
//
// A predicted label outside the ground truth is over-predicted; it is also
// hallucinated when none of its keywords occur in the ingredient text, i.e.
// nothing in the input could have suggested it.
func Safety(ingredients, groundTruth, predicted string) model.SafetyMetrics {
	actual := allergen.Normalize(groundTruth)
	pred := allergen.Normalize(predicted)

	var s model.SafetyMetrics
	for _, l := range allergen.Ordered(pred) {
		if actual[l] {
			continue
		}
		s.OverPredicted = append(s.OverPredicted, l)
		if !InIngredients(l, ingredients) {
			s.Hallucinated = append(s.Hallucinated, l)
		}
	}
	for _, l := range allergen.Ordered(actual) {
		if !pred[l] {
			s.Missed = append(s.Missed, l)
		}
	}
	if len(actual) == 0 {
		ok := len(pred) == 0
		s.CorrectAbstention = &ok
	}
	return s
}

// InIngredients reports whether any keyword of label occurs in ingredients.
// Labels outside the vocabulary have no keywords.
func InIngredients(label, ingredients string) bool {
	text := strings.ToLower(ingredients)
	for _, kw := range allergen.Keywords(strings.ToLower(label)) {
		if strings.Contains(text, kw) {
			return true
		}
	}
	return false
}
