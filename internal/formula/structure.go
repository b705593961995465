package formula

import (
	"math"
	"strconv"
	"strings"
)

// sumShield stands in for a \sum header while the structural rules run.
const sumShield = "\x00"

// eLiteral is Euler's number as it appears in canonical output.
var eLiteral = strconv.FormatFloat(math.E, 'g', -1, 64)

// callMacros are control words rewritten to plain function names.
var callMacros = map[string]bool{
	"max": true,
	"min": true,
	"log": true,
}

// RewriteStructure flattens subscripts, bracket/expectation notation and
// exponents, turns \max/\min/\log into call syntax and replaces leftover
// grouping braces with parentheses. The rules run in a fixed order because
// each assumes the previous ones have fired. \sum headers pass through
// untouched for ExpandSums; any other remaining macro is rejected.
func RewriteStructure(s string) (string, error) {
	if i := strings.Index(s, sumShield); i >= 0 {
		return "", newError(CodeSyntaxError, map[string]string{"pos": strconv.Itoa(i + 1)},
			"control character at column %d", i+1)
	}
	s, headers, err := shieldSums(s)
	if err != nil {
		return "", err
	}
	rules := []func(string) (string, error){
		rewriteCallMacros,
		flattenSubscripts,
		flattenBrackets,
		rewriteExponents,
		tightenLog,
		replaceGrouping,
		rejectMacros,
	}
	for _, rule := range rules {
		if s, err = rule(s); err != nil {
			return "", err
		}
	}
	s = strings.Join(strings.Fields(s), " ")
	for _, h := range headers {
		s = strings.Replace(s, sumShield, h, 1)
	}
	return s, nil
}

// shieldSums swaps each \sum_{...}^{...} header for sumShield and returns the
// headers in order of appearance.
func shieldSums(s string) (string, []string, error) {
	var headers []string
	var b strings.Builder
	for i := 0; i < len(s); {
		if s[i] != '\\' {
			b.WriteByte(s[i])
			i++
			continue
		}
		name, end := macroAt(s, i)
		if name != "sum" {
			b.WriteString(s[i:end])
			i = end
			continue
		}
		h, err := parseSumHeader(s, end)
		if err != nil {
			return "", nil, err
		}
		headers = append(headers, s[i:h.end])
		b.WriteString(sumShield)
		i = h.end
	}
	return b.String(), headers, nil
}

// rewriteCallMacros turns \max{ into max( and bare \max into max; \min and
// \log likewise.
func rewriteCallMacros(s string) (string, error) {
	var b strings.Builder
	for i := 0; i < len(s); {
		if s[i] != '\\' {
			b.WriteByte(s[i])
			i++
			continue
		}
		name, end := macroAt(s, i)
		if !callMacros[name] {
			b.WriteString(s[i:end])
			i = end
			continue
		}
		b.WriteString(name)
		if j := skipSpace(s, end); j < len(s) && s[j] == '{' {
			b.WriteByte('(')
			end = j + 1
		}
		i = end
	}
	return b.String(), nil
}

// flattenSubscripts rewrites name_{sub} to name_sub, one level deep.
func flattenSubscripts(s string) (string, error) {
	var b strings.Builder
	for i := 0; i < len(s); {
		if s[i] != '_' || i == 0 || !isIdentChar(s[i-1]) || i+1 >= len(s) || s[i+1] != '{' {
			b.WriteByte(s[i])
			i++
			continue
		}
		inner, end, st := braceGroup(s, i+1)
		if st == scanTooDeep {
			return "", exhausted("depth", "subscript nested deeper than %d", maxGroupDepth)
		}
		if st != scanOK {
			return "", newError(CodeUnsupportedConstruct, nil, "unbalanced subscript near offset %d", i)
		}
		if strings.ContainsAny(inner, "{}") {
			return "", newError(CodeUnsupportedConstruct, map[string]string{"subscript": inner},
				"nested subscript %q is not supported", inner)
		}
		sub := strings.Join(strings.Fields(inner), "")
		if sub == "" || !isSubscript(sub) {
			return "", newError(CodeUnsupportedConstruct, map[string]string{"subscript": inner},
				"subscript %q is not a plain name", inner)
		}
		b.WriteByte('_')
		b.WriteString(sub)
		i = end
	}
	return b.String(), nil
}

func isSubscript(s string) bool {
	for i := 0; i < len(s); i++ {
		if !isIdentChar(s[i]) {
			return false
		}
	}
	return true
}

// flattenBrackets rewrites Name[idx] to Name_idx, dropping backslashes in idx.
func flattenBrackets(s string) (string, error) {
	var b strings.Builder
	for i := 0; i < len(s); {
		if s[i] != '[' || i == 0 || !isIdentChar(s[i-1]) {
			b.WriteByte(s[i])
			i++
			continue
		}
		rb := strings.IndexByte(s[i:], ']')
		if rb < 0 {
			b.WriteByte(s[i])
			i++
			continue
		}
		idx := strings.ReplaceAll(s[i+1:i+rb], `\`, "")
		if idx == "" || !isSubscript(idx) {
			b.WriteByte(s[i])
			i++
			continue
		}
		b.WriteByte('_')
		b.WriteString(idx)
		i += rb + 1
	}
	return b.String(), nil
}

// rewriteExponents rewrites a^{b}, a^b and (group)^b into (a)**(b), leftmost
// first, so an exponent that itself holds a caret is rewritten on a later
// pass. In e^{x} the base is written as the numeric value of e so a binding
// named e cannot replace it.
func rewriteExponents(s string) (string, error) {
	limit := rewriteCap(s)
	for n := 0; ; n++ {
		i := strings.IndexByte(s, '^')
		if i < 0 {
			return s, nil
		}
		if n >= limit {
			return "", exhausted("iterations", "exponent rewriting did not converge")
		}
		bs, be, err := exponentBase(s, i)
		if err != nil {
			return "", err
		}
		exp, end, err := exponentPower(s, i)
		if err != nil {
			return "", err
		}
		if k := skipSpace(s, end); k < len(s) && s[k] == '^' {
			return "", newError(CodeUnsupportedConstruct, nil,
				"chained exponent %q is ambiguous; group it with braces", strings.TrimSpace(s[bs:k+1]))
		}
		base := s[bs:be]
		if base == "e" {
			base = eLiteral
		}
		s = s[:bs] + "(" + base + ")**(" + exp + ")" + s[end:]
	}
}

// exponentBase finds the operand to the left of the caret at i.
func exponentBase(s string, i int) (start, end int, err error) {
	end = skipSpaceBack(s, i)
	if end == 0 {
		return 0, 0, newError(CodeUnsupportedConstruct, nil, "exponent without a base")
	}
	c := s[end-1]
	switch {
	case strings.IndexByte(closers, c) >= 0:
		open, st := scanGroupBack(s, end)
		if st == scanTooDeep {
			return 0, 0, exhausted("depth", "exponent base nested deeper than %d", maxGroupDepth)
		}
		if st != scanOK {
			return 0, 0, newError(CodeUnsupportedConstruct, nil, "unbalanced exponent base")
		}
		// max(a,b)^2 raises the call, not its argument list.
		name := open
		for name > 0 && isIdentChar(s[name-1]) {
			name--
		}
		if callMacros[s[name:open]] {
			open = name
		}
		return open, end, nil
	case isIdentChar(c) || c == '.':
		start = end
		for start > 0 && (isIdentChar(s[start-1]) || s[start-1] == '.') {
			start--
		}
		// 2x^2 raises x, not 2x.
		for start < end && (isDigit(s[start]) || s[start] == '.') {
			start++
		}
		if start == end {
			for start > 0 && (isDigit(s[start-1]) || s[start-1] == '.') {
				start--
			}
		}
		return start, end, nil
	}
	return 0, 0, newError(CodeUnsupportedConstruct, nil, "exponent base %q is not supported", string(c))
}

// exponentPower reads the operand to the right of the caret at i.
func exponentPower(s string, i int) (exp string, end int, err error) {
	k := skipSpace(s, i+1)
	if k >= len(s) {
		return "", 0, newError(CodeUnsupportedConstruct, nil, "exponent without a power")
	}
	switch c := s[k]; {
	case c == '{' || c == '(' || c == '[':
		stop, st := scanGroup(s, k)
		if st == scanTooDeep {
			return "", 0, exhausted("depth", "exponent nested deeper than %d", maxGroupDepth)
		}
		if st != scanOK {
			return "", 0, newError(CodeUnsupportedConstruct, nil, "unbalanced exponent group")
		}
		exp = strings.TrimSpace(s[k+1 : stop-1])
		if exp == "" {
			return "", 0, newError(CodeUnsupportedConstruct, nil, "empty exponent")
		}
		return exp, stop, nil
	case isIdentChar(c) || c == '.' || c == '-':
		end = k + 1
		for end < len(s) && (isIdentChar(s[end]) || s[end] == '.') {
			end++
		}
		if s[k:end] == "-" {
			return "", 0, newError(CodeUnsupportedConstruct, nil, "exponent without a power")
		}
		return s[k:end], end, nil
	}
	return "", 0, newError(CodeUnsupportedConstruct, nil, "exponent %q is not supported", string(s[k]))
}

// tightenLog drops whitespace between a standalone log and its "(".
// Identifiers that merely end in "log" are left alone.
func tightenLog(s string) (string, error) {
	var b strings.Builder
	for i := 0; i < len(s); {
		if !strings.HasPrefix(s[i:], "log") || (i > 0 && isIdentChar(s[i-1])) {
			b.WriteByte(s[i])
			i++
			continue
		}
		j := i + 3
		if j < len(s) && isIdentChar(s[j]) {
			b.WriteString(s[i:j])
			i = j
			continue
		}
		k := skipSpace(s, j)
		b.WriteString("log")
		if k < len(s) && s[k] == '(' {
			i = k
		} else {
			i = j
		}
	}
	return b.String(), nil
}

// replaceGrouping turns leftover braces and square brackets into parentheses.
func replaceGrouping(s string) (string, error) {
	return strings.NewReplacer("{", "(", "}", ")", "[", "(", "]", ")").Replace(s), nil
}

// rejectMacros fails on the first control sequence still present.
func rejectMacros(s string) (string, error) {
	i := strings.IndexByte(s, '\\')
	if i < 0 {
		return s, nil
	}
	name, _ := macroAt(s, i)
	return "", newError(CodeUnsupportedConstruct, map[string]string{"macro": name},
		`unsupported macro \%s`, name)
}
