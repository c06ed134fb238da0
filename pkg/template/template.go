// Package template provides placeholder substitution for step content
// rendered against the execution context.
package template

import (
	"fmt"
	"regexp"
)

var placeholderPattern = regexp.MustCompile(`\{\{\s*([a-zA-Z0-9_.-]+)\s*\}\}`)

// Substitute replaces every {{key}} token in input with the string form of
// context[key]. Keys missing from the context leave the literal placeholder
// in place rather than blanking it, so unresolved tokens stay visible.
func Substitute(input string, context map[string]any) string {
	return placeholderPattern.ReplaceAllStringFunc(input, func(match string) string {
		key := placeholderPattern.FindStringSubmatch(match)[1]

		value, ok := context[key]
		if !ok {
			return match
		}

		return fmt.Sprintf("%v", value)
	})
}
