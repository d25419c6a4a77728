package llm

import "strings"

// formalArticleInstruction asks for a formal article with no framing around it.
const formalArticleInstruction = "Write a formal article starting directly with the content. " +
	"Do not include phrases like 'Here is your report' or any commentary about the request either at the beginning or the end. "

func buildPrompt(text string, formalArticle bool) string {
	if !formalArticle {
		return text
	}
	return formalArticleInstruction + "\n\n" + text
}

const (
	gemmaTurnStart = "<start_of_turn>model"
	gemmaTurnEnd   = "<end_of_turn>"
)

// cleanLocalOutput strips chat-template residue from locally generated text.
// Gemma models may echo their turn delimiters; only the model turn is kept.
func cleanLocalOutput(model, out string) string {
	if !strings.Contains(strings.ToLower(model), "gemma") {
		return strings.TrimSpace(out)
	}

	i := strings.LastIndex(out, gemmaTurnStart)
	if i < 0 {
		return strings.TrimSpace(out)
	}
	turn := out[i+len(gemmaTurnStart):]
	if j := strings.Index(turn, gemmaTurnEnd); j >= 0 {
		turn = turn[:j]
	}
	return strings.TrimSpace(turn)
}
