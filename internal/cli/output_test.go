package cli

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"

	"github.com/hyperjump/kangae/internal/models"
)

func TestWriteSearchResults_JSON(t *testing.T) {
	response := &models.SearchResponse{
		Query:     "test query",
		QueryTime: 42,
		Results: []models.SearchHit{
			{ID: "n1", Collection: "items", Score: 0.9, Payload: map[string]interface{}{"title": "River"}},
		},
	}
	var buf bytes.Buffer
	if err := WriteSearchResults(&buf, response, OutputJSON); err != nil {
		t.Fatalf("WriteSearchResults(json): %v", err)
	}
	var decoded models.SearchResponse
	if err := json.NewDecoder(&buf).Decode(&decoded); err != nil {
		t.Fatalf("output is not valid JSON: %v", err)
	}
	if decoded.Query != "test query" || decoded.QueryTime != 42 {
		t.Errorf("decoded query=%q query_time=%d", decoded.Query, decoded.QueryTime)
	}
	if len(decoded.Results) != 1 || decoded.Results[0].ID != "n1" {
		t.Errorf("decoded results: %+v", decoded.Results)
	}
}

func TestWriteSearchResults_Text(t *testing.T) {
	response := &models.SearchResponse{
		QueryTime: 7,
		Results: []models.SearchHit{
			{ID: "n1", Collection: "items", Score: 0.91234, Payload: map[string]interface{}{"title": "River"}},
			{ID: "h2", Collection: "highlights", Score: 0.5},
		},
	}
	var buf bytes.Buffer
	if err := WriteSearchResults(&buf, response, OutputText); err != nil {
		t.Fatal(err)
	}
	out := buf.String()
	for _, want := range []string{"Found 2 results in 7ms", "Rank: 1 | Score: 0.9123 | items/n1", `"title":"River"`, "highlights/h2"} {
		if !strings.Contains(out, want) {
			t.Errorf("text output missing %q:\n%s", want, out)
		}
	}
}

func TestWriteSynthesis_Text(t *testing.T) {
	resp := models.FallbackSynthesis()
	resp.Model = "m1"
	resp.Truncation = &models.TruncationStats{ItemsBefore: 40, ItemsAfter: 30, CharsBefore: 20000, CharsAfter: 12000, Truncated: true}

	var buf bytes.Buffer
	if err := WriteSynthesis(&buf, &resp, OutputText); err != nil {
		t.Fatal(err)
	}
	out := buf.String()
	for _, want := range []string{"Model: m1", "Warning: invalid_json", "Themes:", "  3. (AI unavailable)", "Questions:", "40→30 items"} {
		if !strings.Contains(out, want) {
			t.Errorf("text output missing %q:\n%s", want, out)
		}
	}
}

func TestWriteEmbed_Text(t *testing.T) {
	resp := &models.EmbedResponse{Model: "e5", Vectors: [][]float32{{1, 2, 3, 4, 5, 6, 7}}}
	var buf bytes.Buffer
	if err := WriteEmbed(&buf, resp, OutputText); err != nil {
		t.Fatal(err)
	}
	if got := buf.String(); !strings.Contains(got, "[0] dim=7 [1 2 3 4 5]") {
		t.Errorf("unexpected output: %q", got)
	}
}

func TestParseFormat(t *testing.T) {
	for _, s := range []string{"text", "json"} {
		if _, err := ParseFormat(s); err != nil {
			t.Errorf("ParseFormat(%q): %v", s, err)
		}
	}
	if _, err := ParseFormat("yaml"); err == nil {
		t.Error("expected error for yaml")
	}
}

func TestTruncate(t *testing.T) {
	tests := []struct {
		s      string
		maxLen int
		want   string
	}{
		{"short", 10, "short"},
		{"exactly ten", 11, "exactly ten"},
		{"this is long", 4, "this..."},
		{"日本語テキスト", 3, "日本語..."},
		{"x", 0, "x"},
	}
	for _, tt := range tests {
		if got := Truncate(tt.s, tt.maxLen); got != tt.want {
			t.Errorf("Truncate(%q, %d) = %q, want %q", tt.s, tt.maxLen, got, tt.want)
		}
	}
}

func TestJoinArgs(t *testing.T) {
	tests := []struct {
		args []string
		want string
	}{
		{[]string{"walked", "by", "the", "river"}, "walked by the river"},
		{[]string{"walked by the river"}, "walked by the river"},
		{[]string{"  ", " "}, ""},
		{nil, ""},
	}
	for _, tt := range tests {
		if got := JoinArgs(tt.args); got != tt.want {
			t.Errorf("JoinArgs(%v) = %q, want %q", tt.args, got, tt.want)
		}
	}
}
