package formula

import (
	"strconv"
	"strings"
)

// sumHeader is a parsed \sum_{index=lower}^{upper}.
type sumHeader struct {
	index string
	lower string
	upper string
	end   int
}

// parseSumHeader reads "_{index=lower}^{upper}" or "_{index=lower}^upper"
// starting just past the \sum control word.
func parseSumHeader(s string, i int) (sumHeader, error) {
	malformed := func() error {
		return newError(CodeUnsupportedConstruct, map[string]string{"macro": "sum"},
			`\sum must be written \sum_{var=lower}^{upper}(body)`)
	}
	var h sumHeader
	i = skipSpace(s, i)
	if i >= len(s) || s[i] != '_' {
		return h, malformed()
	}
	sub, i, st := braceGroup(s, skipSpace(s, i+1))
	if st == scanTooDeep {
		return h, exhausted("depth", "summation bound nested deeper than %d", maxGroupDepth)
	}
	if st != scanOK {
		return h, malformed()
	}
	index, lower, ok := strings.Cut(sub, "=")
	h.index = strings.TrimSpace(index)
	h.lower = strings.TrimSpace(lower)
	if !ok || !isIdentifier(h.index) || h.lower == "" {
		return h, malformed()
	}

	i = skipSpace(s, i)
	if i >= len(s) || s[i] != '^' {
		return h, malformed()
	}
	i = skipSpace(s, i+1)
	if i < len(s) && s[i] == '{' {
		h.upper, i, st = braceGroup(s, i)
		if st == scanTooDeep {
			return h, exhausted("depth", "summation bound nested deeper than %d", maxGroupDepth)
		}
		if st != scanOK {
			return h, malformed()
		}
		h.upper = strings.TrimSpace(h.upper)
	} else {
		j := i
		for j < len(s) && (isIdentChar(s[j]) || s[j] == '.') {
			j++
		}
		h.upper = s[i:j]
		i = j
	}
	if h.upper == "" {
		return h, malformed()
	}
	h.end = i
	return h, nil
}

// nextMacro finds the first occurrence of the control word name.
func nextMacro(s, name string) (start, end int) {
	for i := 0; i < len(s); {
		j := strings.IndexByte(s[i:], '\\')
		if j < 0 {
			break
		}
		n, e := macroAt(s, i+j)
		if n == name {
			return i + j, e
		}
		i = e
	}
	return -1, -1
}

// expandSums replaces each \sum_{i=a}^{b}(body) with the explicit sum of body
// for i = trunc(a) .. trunc(b). Bounds may reference bindings. The body is a
// single flat parenthesized group: nested parentheses or brackets and a \sum
// inside it are rejected.
func (r *run) expandSums(s string) (string, error) {
	limit := rewriteCap(s)
	for n := 0; ; n++ {
		start, end := nextMacro(s, "sum")
		if start < 0 {
			return s, nil
		}
		if n >= limit {
			return "", exhausted("iterations", "summation expansion did not converge")
		}
		h, err := parseSumHeader(s, end)
		if err != nil {
			return "", err
		}
		open := skipSpace(s, h.end)
		if open >= len(s) || s[open] != '(' {
			return "", newError(CodeUnsupportedConstruct, map[string]string{"macro": "sum"},
				"summation body must be parenthesized")
		}
		stop, st := scanGroup(s, open)
		if st == scanTooDeep {
			return "", exhausted("depth", "summation body nested deeper than %d", maxGroupDepth)
		}
		if st != scanOK {
			return "", newError(CodeUnsupportedConstruct, map[string]string{"macro": "sum"},
				"unbalanced summation body")
		}
		body := s[open+1 : stop-1]
		if i, _ := nextMacro(body, "sum"); i >= 0 {
			return "", newError(CodeUnsupportedConstruct, map[string]string{"macro": "sum"},
				"nested summations are not supported")
		}
		if strings.ContainsAny(body, "()[]") {
			return "", newError(CodeUnsupportedConstruct, map[string]string{"macro": "sum"},
				"summation body %q must not contain parentheses", strings.TrimSpace(body))
		}
		if strings.TrimSpace(body) == "" {
			return "", newError(CodeUnsupportedConstruct, map[string]string{"macro": "sum"},
				"empty summation body")
		}

		lo, err := r.sumBound(h.lower)
		if err != nil {
			return "", err
		}
		hi, err := r.sumBound(h.upper)
		if err != nil {
			return "", err
		}
		budget := r.limits.MaxExpandedLength - (len(s) - (stop - start))
		expansion, err := r.expandTerms(h.index, body, lo, hi, budget)
		if err != nil {
			return "", err
		}
		s = s[:start] + expansion + s[stop:]
	}
}

func (r *run) expandTerms(index, body string, lo, hi int64, budget int) (string, error) {
	if hi < lo {
		return "(0)", nil
	}
	if hi-lo+1 > int64(r.limits.MaxSumTerms) {
		return "", exhausted("sum_terms", "summation over %s has more than %d terms", index, r.limits.MaxSumTerms)
	}
	toks := tokenize(body)
	var b strings.Builder
	b.WriteByte('(')
	for k := lo; k <= hi; k++ {
		if k > lo {
			b.WriteByte('+')
		}
		b.WriteByte('(')
		substitute(&b, body, toks, index, "("+strconv.FormatInt(k, 10)+")")
		b.WriteByte(')')
		if b.Len() > budget {
			return "", exhausted("expanded_length", "expanded formula exceeds %d bytes", r.limits.MaxExpandedLength)
		}
		if err := r.ctx.Err(); err != nil {
			return "", wrapError(CodeResourceExhausted, err, map[string]string{"limit": "time"},
				"evaluation time budget exceeded")
		}
	}
	b.WriteByte(')')
	return b.String(), nil
}

// substitute writes body with every identifier equal to index replaced.
func substitute(b *strings.Builder, body string, toks []token, index, value string) {
	prev := 0
	for _, t := range toks {
		if t.kind != tokenIdent || t.text != index {
			continue
		}
		b.WriteString(body[prev:t.start])
		b.WriteString(value)
		prev = t.end
	}
	b.WriteString(body[prev:])
}

// sumBound evaluates a summation bound with the caller's bindings and
// truncates it toward zero.
func (r *run) sumBound(text string) (int64, error) {
	v, err := r.evalFragment(text)
	if err != nil {
		if CodeOf(err) == CodeResourceExhausted {
			return 0, err
		}
		return 0, wrapError(CodeUnsupportedConstruct, err, map[string]string{"bound": text},
			"summation bound %q does not evaluate to an integer: %v", text, err)
	}
	return truncBound(v)
}
