// Package recommend extracts structured adjustments from the recommendation
// model's free-form answer.
package recommend

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/gomcpgo/photo_adjust_ai/pkg/types"
)

// linePattern matches "[property] +15" anywhere in the text
var linePattern = regexp.MustCompile(`(?i)\[([a-z]+)\] ([+-]\d+)`)

// Parse returns every known property found in text. When a property appears
// more than once the last occurrence wins. Unknown properties and
// malformed lines are ignored; text without matches yields an empty map.
func Parse(text string) types.Adjustments {
	found := make(map[string]int)
	for _, m := range linePattern.FindAllStringSubmatch(text, -1) {
		value, err := strconv.Atoi(m[2])
		if err != nil {
			continue
		}
		name := strings.ToLower(m[1])
		if !types.IsKnownProperty(name) {
			continue
		}
		found[name] = value
	}

	adjustments := make(types.Adjustments)
	for _, p := range types.KnownProperties {
		if v, ok := found[string(p)]; ok {
			adjustments[p] = v
		}
	}
	return adjustments
}

// Format renders adjustments back into the bracketed line format, in canonical order
func Format(a types.Adjustments) string {
	var b strings.Builder
	for _, p := range a.Ordered() {
		b.WriteString("[")
		b.WriteString(string(p))
		b.WriteString("] ")
		if a[p] >= 0 {
			b.WriteString("+")
		}
		b.WriteString(strconv.Itoa(a[p]))
		b.WriteString("\n")
	}
	return b.String()
}
