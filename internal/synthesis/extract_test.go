package synthesis

import (
	"encoding/json"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"
)

func TestClean(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"think span", "<think>x</think>{\"a\":1}", `{"a":1}`},
		{"think multiline case-insensitive", "<THINK>\nplan\nmore</Think>\n ok ", "ok"},
		{"several think spans", "<think>a</think>1<think>b</think>2", "12"},
		{"fence with language", "```json\n{\"a\":1}\n```", `{"a":1}`},
		{"bare fence", "```\n[1]\n```", "[1]"},
		{"plain", "  hello  ", "hello"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Clean(tt.in))
		})
	}
}

func TestExtractObject(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"think then object", "<think>x</think>{\"a\":1}", `{"a":1}`},
		{"fenced", "```json\n{\"a\":1}\n```", `{"a":1}`},
		{"prose around", `Sure! Here it is: {"a": {"b": 2}} Hope that helps {`, `{"a": {"b": 2}}`},
		{"brace in string", `note {"a": "x { y", "b": "}"} tail`, `{"a": "x { y", "b": "}"}`},
		{"escaped quote in string", `{"a": "say \"{\" now"} rest`, `{"a": "say \"{\" now"}`},
		{"escaped backslash", `{"a": "c:\\"} rest`, `{"a": "c:\\"}`},
		{"no brace", "  just words ", "just words"},
		{"unbalanced", `pre {"a": [1, 2`, `{"a": [1, 2`},
		{"think hides braces", "<think>{not this}</think> {\"ok\":true}", `{"ok":true}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ExtractObject(tt.in))
		})
	}
}

func TestExtractObject_FindsEmbeddedObject(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		obj := map[string]string{}
		n := rapid.IntRange(1, 4).Draw(t, "keys")
		for i := 0; i < n; i++ {
			obj[rapid.StringMatching(`[a-z]{1,6}`).Draw(t, "key")] = rapid.String().Draw(t, "value")
		}
		raw, err := json.Marshal(obj)
		if err != nil {
			t.Fatal(err)
		}
		prefix := rapid.StringMatching(`[^{}<`+"`"+`]{0,20}`).Draw(t, "prefix")
		suffix := rapid.StringMatching(`[^<`+"`"+`]{0,20}`).Draw(t, "suffix")
		text := prefix + string(raw) + suffix

		got := ExtractObject(text)
		var back map[string]string
		if err := json.Unmarshal([]byte(got), &back); err != nil {
			t.Fatalf("extracted %q from %q is not valid JSON: %v", got, text, err)
		}
		if len(back) != len(obj) {
			t.Fatalf("extracted object has %d keys, want %d", len(back), len(obj))
		}
	})
}

func TestExtractObject_ResultStartsWithBrace(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		text := rapid.String().Draw(t, "text")
		got := ExtractObject(text)
		if strings.Contains(Clean(text), "{") {
			require.True(t, strings.HasPrefix(got, "{"), "got %q", got)
		}
	})
}
