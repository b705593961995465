package formula

import "strconv"

type tokenKind int

const (
	tokenEOF tokenKind = iota
	// tokenNum is a decimal number, optionally with an exponent.
	tokenNum
	// tokenIdent is a variable or function name.
	tokenIdent
	// tokenOp is one of + - * / **.
	tokenOp
	// tokenOpen is ( or [.
	tokenOpen
	// tokenClose is ) or ].
	tokenClose
	// tokenSep is the argument separator ",".
	tokenSep
	// tokenOther is any byte the grammar does not know.
	tokenOther
)

func (k tokenKind) String() string {
	switch k {
	case tokenEOF:
		return "end of input"
	case tokenNum:
		return "number"
	case tokenIdent:
		return "identifier"
	case tokenOp:
		return "operator"
	case tokenOpen:
		return "open bracket"
	case tokenClose:
		return "close bracket"
	case tokenSep:
		return "separator"
	}
	return "character"
}

type token struct {
	kind  tokenKind
	text  string
	start int // byte offset of the first byte
	end   int // byte offset past the last byte
	space bool
}

func (t token) String() string {
	return t.kind.String() + " " + strconv.Quote(t.text) + " at column " + strconv.Itoa(t.start+1)
}

// tokenize splits s into tokens. It never fails: bytes outside the grammar
// become tokenOther and are reported by the parser. The final token is always
// tokenEOF.
func tokenize(s string) []token {
	var toks []token
	space := false
	for i := 0; i < len(s); {
		c := s[i]
		if isSpace(c) {
			space = true
			i++
			continue
		}
		t := token{start: i, space: space}
		switch {
		case isDigit(c) || c == '.' && i+1 < len(s) && isDigit(s[i+1]):
			t.kind = tokenNum
			t.end = scanNumber(s, i)
		case isIdentStart(c):
			t.kind = tokenIdent
			j := i + 1
			for j < len(s) && isIdentChar(s[j]) {
				j++
			}
			t.end = j
		case c == '*' && i+1 < len(s) && s[i+1] == '*':
			t.kind = tokenOp
			t.end = i + 2
		case c == '+' || c == '-' || c == '*' || c == '/':
			t.kind = tokenOp
			t.end = i + 1
		case c == '(' || c == '[':
			t.kind = tokenOpen
			t.end = i + 1
		case c == ')' || c == ']':
			t.kind = tokenClose
			t.end = i + 1
		case c == ',':
			t.kind = tokenSep
			t.end = i + 1
		default:
			t.kind = tokenOther
			t.end = i + 1
		}
		t.text = s[t.start:t.end]
		toks = append(toks, t)
		space = false
		i = t.end
	}
	return append(toks, token{kind: tokenEOF, start: len(s), end: len(s), space: space})
}

// scanNumber returns the end of the number starting at i. An exponent marker
// only belongs to the number when digits follow it, so 2e reads as 2 then e.
func scanNumber(s string, i int) int {
	for i < len(s) && isDigit(s[i]) {
		i++
	}
	if i < len(s) && s[i] == '.' {
		i++
		for i < len(s) && isDigit(s[i]) {
			i++
		}
	}
	if i < len(s) && (s[i] == 'e' || s[i] == 'E') {
		j := i + 1
		if j < len(s) && (s[j] == '+' || s[j] == '-') {
			j++
		}
		if j < len(s) && isDigit(s[j]) {
			for j < len(s) && isDigit(s[j]) {
				j++
			}
			i = j
		}
	}
	return i
}
