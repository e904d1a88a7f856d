// Package cli provides CLI utilities for kangae: an API client and output rendering.
package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/hyperjump/kangae/internal/models"
)

// OutputFormat is the format for command output.
type OutputFormat string

const (
	// OutputText is human-readable text (default).
	OutputText OutputFormat = "text"
	// OutputJSON is indented JSON for machine consumption.
	OutputJSON OutputFormat = "json"
)

// ParseFormat accepts "text" or "json".
func ParseFormat(s string) (OutputFormat, error) {
	switch OutputFormat(s) {
	case OutputText, OutputJSON:
		return OutputFormat(s), nil
	default:
		return "", fmt.Errorf("unknown output format %q; use text or json", s)
	}
}

// WriteJSON writes v as indented JSON.
func WriteJSON(w io.Writer, v interface{}) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// WriteEmbed writes embedding vectors. Text output shows dimensions and a short preview.
func WriteEmbed(w io.Writer, resp *models.EmbedResponse, format OutputFormat) error {
	if format == OutputJSON {
		return WriteJSON(w, resp)
	}
	fmt.Fprintf(w, "Model: %s\n", resp.Model)
	for i, v := range resp.Vectors {
		preview := v
		if len(preview) > 5 {
			preview = preview[:5]
		}
		fmt.Fprintf(w, "[%d] dim=%d %v\n", i, len(v), preview)
	}
	return nil
}

// WriteSynthesis writes a synthesis result.
func WriteSynthesis(w io.Writer, resp *models.SynthesisResponse, format OutputFormat) error {
	if format == OutputJSON {
		return WriteJSON(w, resp)
	}
	if resp.Model != "" {
		fmt.Fprintf(w, "Model: %s\n", resp.Model)
	}
	if resp.Warning != "" {
		fmt.Fprintf(w, "Warning: %s\n", resp.Warning)
	}
	writeSection(w, "Themes", resp.Themes)
	writeSection(w, "Connections", resp.Connections)
	writeSection(w, "Questions", resp.Questions)
	if t := resp.Truncation; t != nil && t.Truncated {
		fmt.Fprintf(w, "\nInput truncated: %d→%d items, %d→%d chars\n",
			t.ItemsBefore, t.ItemsAfter, t.CharsBefore, t.CharsAfter)
	}
	return nil
}

func writeSection(w io.Writer, title string, entries []string) {
	fmt.Fprintf(w, "\n%s:\n", title)
	for i, e := range entries {
		fmt.Fprintf(w, "  %d. %s\n", i+1, e)
	}
}

// WriteSearchResults writes search hits in the given format.
func WriteSearchResults(w io.Writer, response *models.SearchResponse, format OutputFormat) error {
	if format == OutputJSON {
		return WriteJSON(w, response)
	}
	fmt.Fprintf(w, "\nFound %d results in %dms\n\n", len(response.Results), response.QueryTime)
	for i, hit := range response.Results {
		fmt.Fprintf(w, "─────────────────────────────────────────────────────────\n")
		fmt.Fprintf(w, "Rank: %d | Score: %.4f | %s/%s\n", i+1, hit.Score, hit.Collection, hit.ID)
		if len(hit.Payload) > 0 {
			b, _ := json.Marshal(hit.Payload)
			fmt.Fprintf(w, "%s\n", Truncate(string(b), 200))
		}
		fmt.Fprintln(w)
	}
	return nil
}

// Truncate truncates s to maxLen runes and appends "..." if truncated.
func Truncate(s string, maxLen int) string {
	r := []rune(s)
	if maxLen <= 0 || len(r) <= maxLen {
		return s
	}
	return string(r[:maxLen]) + "..."
}

// JoinArgs joins positional args with spaces so quoting is optional.
func JoinArgs(args []string) string {
	return strings.TrimSpace(strings.Join(args, " "))
}
