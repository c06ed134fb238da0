package template

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSubstitute(t *testing.T) {
	context := map[string]any{
		"contactFirstName": "Ann",
		"leadScore":        float64(42),
		"active":           true,
	}

	tests := []struct {
		name  string
		input string
		want  string
	}{
		{"single token", "Hi {{contactFirstName}}", "Hi Ann"},
		{"multiple tokens", "{{contactFirstName}} has {{leadScore}} points", "Ann has 42 points"},
		{"missing key stays literal", "Hi {{missingKey}}", "Hi {{missingKey}}"},
		{"mixed resolved and unresolved", "{{contactFirstName}} / {{missingKey}}", "Ann / {{missingKey}}"},
		{"non-string value", "active={{active}}", "active=true"},
		{"whitespace inside braces", "Hi {{ contactFirstName }}", "Hi Ann"},
		{"no tokens", "plain text", "plain text"},
		{"empty input", "", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Substitute(tt.input, context))
		})
	}
}

func TestSubstitute_NilContext(t *testing.T) {
	assert.Equal(t, "Hi {{name}}", Substitute("Hi {{name}}", nil))
}
