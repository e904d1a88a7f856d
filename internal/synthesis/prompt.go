package synthesis

import (
	"fmt"
	"strings"

	"github.com/hyperjump/kangae/internal/models"
	"github.com/hyperjump/kangae/pkg/utils"
)

const (
	// SystemPrompt is sent with every synthesis and repair request.
	SystemPrompt = "You are a thinking partner. Return ONLY valid JSON."
	// DefaultGuidance is used when the caller gives no instruction.
	DefaultGuidance = "Summarize the themes and connections."

	schemaDescription = `{"themes": ["...", "...", "..."], "connections": ["...", "...", "..."], "questions": ["...", "...", "..."]}`
)

// BuildPrompt renders the items, one per line, followed by the guidance.
func BuildPrompt(items []models.InputItem, guidance string) string {
	guidance = strings.TrimSpace(guidance)
	if guidance == "" {
		guidance = DefaultGuidance
	}

	var b strings.Builder
	b.WriteString("Return ONLY valid JSON with exactly the keys themes, connections and questions. ")
	b.WriteString("Each must be an array of exactly 3 strings. No extra keys, no extra text.\n\n")
	b.WriteString("Items:\n")
	for _, it := range items {
		fmt.Fprintf(&b, "- (%s) %s: %s\n", it.Type, it.ID, it.Text)
	}
	b.WriteString("\nInstruction: ")
	b.WriteString(guidance)
	return b.String()
}

// BuildRepairPrompt asks the model to rewrite invalid output to the schema. The echoed
// output is cut to maxChars code points.
func BuildRepairPrompt(invalid string, maxChars int) string {
	if maxChars > 0 {
		invalid = utils.Truncate(invalid, maxChars)
	}
	var b strings.Builder
	b.WriteString("The text below was supposed to be a JSON object but it is invalid or does not match the schema.\n\n")
	b.WriteString("Schema (each array has exactly 3 strings):\n")
	b.WriteString(schemaDescription)
	b.WriteString("\n\nText:\n")
	b.WriteString(invalid)
	b.WriteString("\n\nReturn ONLY the corrected JSON object.")
	return b.String()
}
