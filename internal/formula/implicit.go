package formula

import "strings"

// callNames are identifiers that keep call syntax before "(".
var callNames = map[string]bool{
	"max": true,
	"min": true,
	"log": true,
}

// InsertImplicitMultiplication makes juxtaposition explicit:
//
//	x(y)  -> x*(y)     (y)z  -> (y)*z
//	2x    -> 2*x       2 x   -> 2*x
//
// max, min and log followed by "(" stay calls. It never fails.
func InsertImplicitMultiplication(s string) string {
	toks := tokenize(s)
	var b strings.Builder
	b.Grow(len(s) + len(s)/4)
	prevEnd := 0
	for i, t := range toks {
		if t.kind == tokenEOF {
			b.WriteString(s[prevEnd:])
			break
		}
		if i > 0 && juxtaposed(toks[i-1], t) {
			b.WriteByte('*')
		} else {
			b.WriteString(s[prevEnd:t.start])
		}
		b.WriteString(t.text)
		prevEnd = t.end
	}
	return b.String()
}

// juxtaposed reports whether a multiplication belongs between prev and cur.
func juxtaposed(prev, cur token) bool {
	switch {
	case cur.kind == tokenOpen:
		switch prev.kind {
		case tokenIdent:
			return !callNames[prev.text]
		case tokenNum, tokenClose:
			return true
		}
	case prev.kind == tokenClose:
		return cur.kind == tokenIdent || cur.kind == tokenNum && !cur.space
	case prev.kind == tokenNum:
		return cur.kind == tokenIdent
	}
	return false
}
