// Package models defines the request, response and error types shared by the gateway components.
package models

// InputItem is one caller-supplied piece of text for synthesis.
type InputItem struct {
	Type string `json:"type"`
	ID   string `json:"id"`
	Text string `json:"text"`
}

// TruncationStats describes what budgeting did to a synthesis request.
// Character counts are in Unicode code points.
type TruncationStats struct {
	ItemsBefore        int  `json:"items_before"`
	ItemsAfter         int  `json:"items_after"`
	CharsBefore        int  `json:"chars_before"`
	CharsAfter         int  `json:"chars_after"`
	MaxItemCharsBefore int  `json:"max_item_chars_before"`
	MaxItemCharsAfter  int  `json:"max_item_chars_after"`
	Truncated          bool `json:"truncated"`
}

// EmbedRequest is the body of POST /embed.
type EmbedRequest struct {
	Texts []string `json:"texts"`
}

// EmbedResponse is the result of an embed call.
type EmbedResponse struct {
	Vectors [][]float32 `json:"vectors"`
	Model   string      `json:"model"`
}

// SynthesizeRequest is the body of POST /synthesize.
type SynthesizeRequest struct {
	Items  []InputItem `json:"items"`
	Prompt string      `json:"prompt,omitempty"`
}
