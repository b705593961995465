package formula

import "strings"

// fractionMacros are the control words treated as \frac.
var fractionMacros = map[string]bool{
	"frac":  true,
	"dfrac": true,
	"tfrac": true,
}

// ResolveFractions rewrites every \frac{n}{d} (and \dfrac, \tfrac) into
// ((n)/(d)), innermost content included. The original service's
// \frac{n}/{d} spelling is accepted too. The result contains no fraction
// macro.
func ResolveFractions(s string) (string, error) {
	limit := rewriteCap(s)
	for n := 0; ; n++ {
		start, end := nextFraction(s)
		if start < 0 {
			return s, nil
		}
		if n >= limit {
			return "", newError(CodeMalformedFraction, nil, "fraction rewriting did not converge")
		}
		num, den, stop, err := fractionOperands(s, end)
		if err != nil {
			return "", err
		}
		s = s[:start] + "((" + num + ")/(" + den + "))" + s[stop:]
	}
}

// nextFraction finds the first fraction macro and returns its span.
func nextFraction(s string) (start, end int) {
	for i := strings.IndexByte(s, '\\'); i >= 0 && i < len(s); {
		name, e := macroAt(s, i)
		if fractionMacros[name] {
			return i, e
		}
		j := strings.IndexByte(s[e:], '\\')
		if j < 0 {
			break
		}
		i = e + j
	}
	return -1, -1
}

// fractionOperands reads "{num}{den}" or "{num}/{den}" starting at i.
func fractionOperands(s string, i int) (num, den string, end int, err error) {
	i = skipSpace(s, i)
	num, i, st := braceGroup(s, i)
	if err := groupError(st, "numerator", i); err != nil {
		return "", "", 0, err
	}
	i = skipSpace(s, i)
	if i < len(s) && s[i] == '/' {
		i = skipSpace(s, i+1)
	}
	den, i, st = braceGroup(s, i)
	if err := groupError(st, "denominator", i); err != nil {
		return "", "", 0, err
	}
	if strings.TrimSpace(num) == "" || strings.TrimSpace(den) == "" {
		return "", "", 0, newError(CodeMalformedFraction, nil, "empty fraction operand")
	}
	return num, den, i, nil
}

func groupError(st scanStatus, part string, pos int) error {
	switch st {
	case scanOK:
		return nil
	case scanTooDeep:
		return exhausted("depth", "fraction %s nested deeper than %d", part, maxGroupDepth)
	default:
		return newError(CodeMalformedFraction, map[string]string{"part": part},
			"fraction %s is missing or unbalanced near offset %d", part, pos)
	}
}
