package models

const (
	// SynthesisSentinel fills every entry of a fallback result.
	SynthesisSentinel = "(AI unavailable)"
	// WarningInvalidJSON marks a fallback produced after repair failed.
	WarningInvalidJSON = "invalid_json"
	// SynthesisArity is the required length of every synthesis array.
	SynthesisArity = 3
)

// SynthesisResult is the only valid synthesis shape: three arrays of exactly three strings.
type SynthesisResult struct {
	Themes      []string `json:"themes"`
	Connections []string `json:"connections"`
	Questions   []string `json:"questions"`
}

// SynthesisResponse is what Synthesize returns. Warning is set only on the fallback payload.
type SynthesisResponse struct {
	SynthesisResult
	Warning    string           `json:"warning,omitempty"`
	Model      string           `json:"model,omitempty"`
	Truncation *TruncationStats `json:"truncation,omitempty"`
}

// FallbackSynthesis returns the deterministic sentinel result.
func FallbackSynthesis() SynthesisResponse {
	fill := func() []string {
		out := make([]string, SynthesisArity)
		for i := range out {
			out[i] = SynthesisSentinel
		}
		return out
	}
	return SynthesisResponse{
		SynthesisResult: SynthesisResult{
			Themes:      fill(),
			Connections: fill(),
			Questions:   fill(),
		},
		Warning: WarningInvalidJSON,
	}
}

// IsFallback reports whether r is the sentinel payload.
func (r *SynthesisResponse) IsFallback() bool {
	return r.Warning != ""
}
