package engine

import (
	"strings"

	"github.com/IsseiKhai277/foodallergens/internal/allergen"
)

// BuildPrompt returns the allergen instruction for an ingredient list.
func BuildPrompt(ingredients string) string {
	var sb strings.Builder
	sb.WriteString("\n\nAnalyze these ingredients and identify allergens.\n\n")
	sb.WriteString("Ingredients: " + ingredients + "\n\n")
	sb.WriteString("Allowed allergens: " + strings.Join(allergen.Vocabulary(), ", ") + "\n\n")
	sb.WriteString(`Output format: List only the allergens found as comma-separated values (e.g., "milk,egg,wheat"). `)
	sb.WriteString(`If no allergens are found, output "EMPTY". Do not include explanations or extra text.`)
	sb.WriteString("\n\nAllergens:")
	return sb.String()
}

// WrapChatTemplate wraps content in the chat template of the model family
// named by modelName (usually the GGUF file name). Unknown families get the
// content unchanged.
func WrapChatTemplate(modelName, content string) string {
	name := strings.ToLower(modelName)
	switch {
	case strings.Contains(name, "llama"):
		return "<|begin_of_text|><|start_header_id|>user<|end_header_id|>\n\n" +
			content +
			"<|eot_id|><|start_header_id|>assistant<|end_header_id|>\n\n"
	case strings.Contains(name, "phi"):
		return "<|user|>\n" + content + "<|end|>\n<|assistant|>\n"
	case strings.Contains(name, "qwen"):
		return "<|im_start|>user\n" + content + "<|im_end|>\n<|im_start|>assistant\n"
	case strings.Contains(name, "vikhr"), strings.Contains(name, "gemma"):
		return "<start_of_turn>user\n" + content + "<end_of_turn>\n<start_of_turn>model\n"
	default:
		return content
	}
}

// PromptFor builds and wraps the prompt for ingredients on modelName.
func PromptFor(modelName, ingredients string) string {
	return WrapChatTemplate(modelName, BuildPrompt(ingredients))
}
