package synthesis

import (
	"testing"

	"github.com/hyperjump/kangae/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const validJSON = `{"themes":["t1","t2","t3"],"connections":["c1","c2","c3"],"questions":["q1","q2","q3"]}`

func TestValidate_Accepts(t *testing.T) {
	got, err := Validate(validJSON)
	require.NoError(t, err)
	assert.Equal(t, &models.SynthesisResult{
		Themes:      []string{"t1", "t2", "t3"},
		Connections: []string{"c1", "c2", "c3"},
		Questions:   []string{"q1", "q2", "q3"},
	}, got)
}

func TestValidate_Rejects(t *testing.T) {
	tests := []struct {
		name string
		in   string
	}{
		{"not json", `{"themes": [`},
		{"array", `["a","b","c"]`},
		{"null", `null`},
		{"empty object", `{}`},
		{"missing key", `{"themes":["a","b","c"],"connections":["a","b","c"]}`},
		{"extra key", `{"themes":["a","b","c"],"connections":["a","b","c"],"questions":["a","b","c"],"summary":"x"}`},
		{"wrong key", `{"themes":["a","b","c"],"connections":["a","b","c"],"question":["a","b","c"]}`},
		{"two entries", `{"themes":["a","b"],"connections":["a","b","c"],"questions":["a","b","c"]}`},
		{"four entries", `{"themes":["a","b","c","d"],"connections":["a","b","c"],"questions":["a","b","c"]}`},
		{"non string entry", `{"themes":["a","b",3],"connections":["a","b","c"],"questions":["a","b","c"]}`},
		{"object entry", `{"themes":["a","b","c"],"connections":[{"a":"x","b":"y","why":"z"},"b","c"],"questions":["a","b","c"]}`},
		{"null entry", `{"themes":["a","b",null],"connections":["a","b","c"],"questions":["a","b","c"]}`},
		{"string value", `{"themes":"a","connections":["a","b","c"],"questions":["a","b","c"]}`},
		{"null array", `{"themes":null,"connections":["a","b","c"],"questions":["a","b","c"]}`},
		{"trailing data", validJSON + ` {}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Validate(tt.in)
			require.Error(t, err)
			assert.True(t, models.IsKind(err, models.KindOutputValidation))
		})
	}
}
