package parser

import (
	"errors"
	"fmt"
	"strings"
)

var ErrBadFunctionName = errors.New("function without a name")

// Node is either a Branch or a Leaf.
type Node interface {
	node()
}

type Entry struct {
	Key  string
	Node Node
}

// Branch is an ordered set of keyed children.
type Branch []Entry

// Leaf is a list of declarations.
type Leaf []string

func (Branch) node() {}
func (Leaf) node()   {}

// Tree exposes the library as object -> role -> declarations.
func (l *Library) Tree() Node {
	objs := l.Objects()
	tree := make(Branch, 0, len(objs))

	for _, o := range objs {
		roles := make(Branch, 0, numRoles)
		for _, r := range Roles() {
			roles = append(roles, Entry{Key: r.String(), Node: Leaf(o.Bucket(r))})
		}
		tree = append(tree, Entry{Key: o.ShortName, Node: roles})
	}

	return tree
}

// FuncNames collects the name of every function declaration under n.
func FuncNames(n Node) ([]string, error) {
	var names []string

	switch v := n.(type) {
	case Branch:
		for _, e := range v {
			sub, err := FuncNames(e.Node)
			if err != nil {
				return nil, err
			}
			names = append(names, sub...)
		}

	case Leaf:
		for _, decl := range v {
			head, _, found := strings.Cut(decl, "(")
			if !found {
				continue
			}

			fields := strings.Fields(head)
			if len(fields) == 0 {
				return nil, fmt.Errorf("%w: %q", ErrBadFunctionName, decl)
			}
			names = append(names, fields[len(fields)-1])
		}
	}

	return names, nil
}
