package formula

import "strings"

// maxGroupDepth bounds bracket nesting inside a single scanned group.
const maxGroupDepth = 128

type scanStatus int

const (
	scanOK scanStatus = iota
	// scanUnbalanced means the input ended before the group closed.
	scanUnbalanced
	// scanTooDeep means nesting passed maxGroupDepth.
	scanTooDeep
)

const (
	openers = "([{"
	closers = ")]}"
)

// scanGroup reads the bracket group that opens at s[start]. It returns the
// index just past the matching closer. Any of ([{ opens and any of )]} closes,
// so mixed groups produced by earlier rewrites still balance.
func scanGroup(s string, start int) (end int, status scanStatus) {
	depth := 0
	for i := start; i < len(s); i++ {
		switch {
		case strings.IndexByte(openers, s[i]) >= 0:
			depth++
			if depth > maxGroupDepth {
				return i, scanTooDeep
			}
		case strings.IndexByte(closers, s[i]) >= 0:
			depth--
			if depth == 0 {
				return i + 1, scanOK
			}
		}
	}
	return len(s), scanUnbalanced
}

// scanGroupBack reads the bracket group that closes at s[end-1] and returns
// the index of its opener.
func scanGroupBack(s string, end int) (start int, status scanStatus) {
	depth := 0
	for i := end - 1; i >= 0; i-- {
		switch {
		case strings.IndexByte(closers, s[i]) >= 0:
			depth++
			if depth > maxGroupDepth {
				return i, scanTooDeep
			}
		case strings.IndexByte(openers, s[i]) >= 0:
			depth--
			if depth == 0 {
				return i, scanOK
			}
		}
	}
	return 0, scanUnbalanced
}

// braceGroup reads a {...} group starting at s[start], which must be '{'.
// inner is the text between the braces.
func braceGroup(s string, start int) (inner string, end int, status scanStatus) {
	if start >= len(s) || s[start] != '{' {
		return "", start, scanUnbalanced
	}
	depth := 0
	for i := start; i < len(s); i++ {
		switch s[i] {
		case '{':
			depth++
			if depth > maxGroupDepth {
				return "", i, scanTooDeep
			}
		case '}':
			depth--
			if depth == 0 {
				return s[start+1 : i], i + 1, scanOK
			}
		}
	}
	return "", len(s), scanUnbalanced
}

func skipSpace(s string, i int) int {
	for i < len(s) && isSpace(s[i]) {
		i++
	}
	return i
}

func skipSpaceBack(s string, i int) int {
	for i > 0 && isSpace(s[i-1]) {
		i--
	}
	return i
}

func isSpace(c byte) bool {
	return c == ' ' || c == '\t' || c == '\n' || c == '\r' || c == '\f' || c == '\v'
}

func isLetter(c byte) bool {
	return 'a' <= c && c <= 'z' || 'A' <= c && c <= 'Z'
}

func isDigit(c byte) bool {
	return '0' <= c && c <= '9'
}

func isIdentStart(c byte) bool {
	return isLetter(c) || c == '_'
}

func isIdentChar(c byte) bool {
	return isLetter(c) || isDigit(c) || c == '_'
}

// isIdentifier reports whether s matches [A-Za-z_][A-Za-z0-9_]*.
func isIdentifier(s string) bool {
	if s == "" || !isIdentStart(s[0]) {
		return false
	}
	for i := 1; i < len(s); i++ {
		if !isIdentChar(s[i]) {
			return false
		}
	}
	return true
}

// macroAt returns the control word starting at s[i] (which must be '\'),
// without the backslash, and the index past it. Control symbols such as \,
// are returned as their single punctuation character.
func macroAt(s string, i int) (name string, end int) {
	j := i + 1
	if j >= len(s) {
		return "", j
	}
	if !isLetter(s[j]) {
		return s[j : j+1], j + 1
	}
	for j < len(s) && isLetter(s[j]) {
		j++
	}
	return s[i+1 : j], j
}

// rewriteCap is the iteration budget for fixpoint stages.
func rewriteCap(s string) int {
	return len(s) + 1
}
