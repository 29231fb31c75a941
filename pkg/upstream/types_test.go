package upstream

import "testing"

func TestIsFallbackBody(t *testing.T) {
	tests := []struct {
		name string
		body string
		want bool
	}{
		{"envelope", `{"items":[],"error":"fallback"}`, true},
		{"reordered with whitespace", `{ "error": "fallback", "items": [] }`, true},
		{"extra key", `{"items":[],"error":"fallback","total":0}`, false},
		{"non-empty items", `{"items":[1],"error":"fallback"}`, false},
		{"null items", `{"items":null,"error":"fallback"}`, false},
		{"other error", `{"items":[],"error":"missing path"}`, false},
		{"array", `[]`, false},
		{"not json", `fallback`, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := IsFallbackBody([]byte(tt.body)); got != tt.want {
				t.Errorf("IsFallbackBody(%s) = %v, want %v", tt.body, got, tt.want)
			}
		})
	}
}

func TestFallbackBody_IsACopy(t *testing.T) {
	b := FallbackBody()
	b[0] = 'x'

	if !IsFallbackBody(FallbackBody()) {
		t.Error("expected FallbackBody to be unaffected by caller mutation")
	}
}
