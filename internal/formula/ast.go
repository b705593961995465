package formula

import (
	"strconv"
	"strings"
)

// Node is a node of a parsed expression. The set of implementations is
// closed; evaluation dispatches over exactly these types.
type Node interface {
	String() string
	node()
}

// Number is a numeric literal.
type Number struct {
	Value float64
}

// Ident is a reference to a variable or constant.
type Ident struct {
	Name string
}

// Binary is an arithmetic operation. Op is one of + - * / **.
type Binary struct {
	Op    string
	Left  Node
	Right Node
}

// Neg is unary minus.
type Neg struct {
	Operand Node
}

// Call is a call to a whitelisted function.
type Call struct {
	Name string
	Args []Node
}

// Sum adds Body for each integer value of Var from Lower to Upper inclusive.
// The pipeline expands sums textually before parsing, so the parser never
// produces Sum; it exists for callers that build trees directly.
type Sum struct {
	Var   string
	Lower Node
	Upper Node
	Body  Node
}

func (*Number) node() {}
func (*Ident) node()  {}
func (*Binary) node() {}
func (*Neg) node()    {}
func (*Call) node()   {}
func (*Sum) node()    {}

func (n *Number) String() string {
	return strconv.FormatFloat(n.Value, 'g', -1, 64)
}

func (n *Ident) String() string {
	return n.Name
}

func (n *Binary) String() string {
	return "(" + n.Left.String() + " " + n.Op + " " + n.Right.String() + ")"
}

func (n *Neg) String() string {
	return "(-" + n.Operand.String() + ")"
}

func (n *Call) String() string {
	args := make([]string, len(n.Args))
	for i, a := range n.Args {
		args[i] = a.String()
	}
	return n.Name + "(" + strings.Join(args, ", ") + ")"
}

func (n *Sum) String() string {
	return "sum(" + n.Var + " = " + n.Lower.String() + " .. " + n.Upper.String() + ", " + n.Body.String() + ")"
}
