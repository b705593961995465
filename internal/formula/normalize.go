package formula

import (
	"regexp"
	"strings"
)

// greek maps Greek control words to the identifiers used after normalization.
var greek = map[string]string{
	"alpha":   "alpha",
	"beta":    "beta",
	"gamma":   "gamma",
	"delta":   "delta",
	"epsilon": "epsilon",
	"theta":   "theta",
	"lambda":  "lambda",
	"mu":      "mu",
	"pi":      "pi",
	"rho":     "rho",
	"sigma":   "sigma",
	"phi":     "phi",
	"omega":   "omega",
}

// spacing holds macros that are dropped outright.
var spacing = map[string]bool{
	"left":  true,
	"right": true,
	",":     true,
	";":     true,
	":":     true,
	"!":     true,
}

var textMacro = regexp.MustCompile(`\\text\s*\{([^{}]*)\}`)

// Normalize strips display wrappers and presentation-only macros from a raw
// formula and maps Greek letters and \cdot/\times to plain tokens. ASCII
// control characters become spaces. It never fails and is idempotent.
func Normalize(raw string) string {
	s := strings.TrimSpace(raw)
	s = strings.ReplaceAll(s, "$$", "")
	s = strings.ReplaceAll(s, "$", "")

	if i := lastTopLevelEquals(s); i >= 0 {
		s = s[i+1:]
	}

	s = textMacro.ReplaceAllString(s, "$1")

	var b strings.Builder
	b.Grow(len(s))
	for i := 0; i < len(s); {
		if c := s[i]; c < ' ' || c == 0x7f {
			b.WriteByte(' ')
			i++
			continue
		}
		if s[i] != '\\' {
			b.WriteByte(s[i])
			i++
			continue
		}
		name, end := macroAt(s, i)
		switch {
		case spacing[name]:
		case greek[name] != "":
			b.WriteString(greek[name])
		case name == "cdot" || name == "times":
			b.WriteByte('*')
		default:
			b.WriteString(s[i:end])
		}
		i = end
	}
	return strings.TrimSpace(b.String())
}

// lastTopLevelEquals returns the index of the last '=' outside any brace
// group, or -1.
func lastTopLevelEquals(s string) int {
	depth, last := 0, -1
	for i := 0; i < len(s); i++ {
		switch s[i] {
		case '{':
			depth++
		case '}':
			if depth > 0 {
				depth--
			}
		case '=':
			if depth == 0 {
				last = i
			}
		}
	}
	return last
}
