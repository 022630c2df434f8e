package model

import (
	"path/filepath"
	"strings"

	"github.com/why-cli/why/internal/trailer"
)

// SystemInstructions is the instruction block shared by every backend,
// local and remote, so all providers produce the same section structure.
const SystemInstructions = `You are a helpful programming assistant that explains error messages.
When given an error message or stack trace, respond with:

SUMMARY: A one-line summary of what went wrong
EXPLANATION: Why this error occurred
SUGGESTION: Concrete steps to fix the issue

If the input is not an error message, respond with exactly NO_ERROR.
Be concise and practical.`

// templateChatML is the ChatML turn format used by Qwen and SmolLM models.
const templateChatML = `<|im_start|>system
` + SystemInstructions + `<|im_end|>
<|im_start|>user
{error}<|im_end|>
<|im_start|>assistant
`

// templateGemma is the Gemma turn format. Gemma has no system role, so the
// instructions ride in the user turn.
const templateGemma = `<start_of_turn>user
` + SystemInstructions + `

{error}<end_of_turn>
<start_of_turn>model
`

// BuildPrompt renders the template for fam with the trimmed error text.
func BuildPrompt(errText string, fam trailer.Family) string {
	tpl := templateChatML
	if fam == trailer.FamilyGemma {
		tpl = templateGemma
	}
	return strings.ReplaceAll(tpl, "{error}", strings.TrimSpace(errText))
}

// DetectFamily guesses the prompt family from the model filename. Qwen is
// the default: it is the most common and its ChatML format works for most
// generic instruct models.
func DetectFamily(modelPath string) trailer.Family {
	name := strings.ToLower(filepath.Base(modelPath))
	switch {
	case strings.Contains(name, "gemma"):
		return trailer.FamilyGemma
	case strings.Contains(name, "smol"):
		return trailer.FamilySmolLM
	default:
		return trailer.FamilyQwen
	}
}

// ResolveFamily applies the family precedence: an explicit override, then
// the family recorded in the trailer, then filename detection.
func ResolveFamily(override *trailer.Family, src *Source) trailer.Family {
	if override != nil {
		return *override
	}
	if src.EmbeddedFamily != nil {
		return *src.EmbeddedFamily
	}
	return DetectFamily(src.Path)
}
