package router

import (
	"fmt"
	"sort"
	"strings"

	"github.com/Ceapa-git/anidle/core/http"
)

// Route declares one path segment, the method and handler bound to it and
// the routes one level below it. The root declaration's segment is ignored.
type Route struct {
	Segment  string
	Method   http.Method
	Handler  http.HandlerFunc
	Children []Route
}

// Tree is an immutable route tree. It is safe for concurrent lookups.
type Tree struct {
	root *node
}

type node struct {
	segment  string
	method   http.Method
	handler  http.HandlerFunc
	children map[string]*node
}

// New builds a tree from a nested declaration. When two siblings share a
// segment the first one declared wins.
func New(root Route) (*Tree, error) {
	n, err := build(root)
	if err != nil {
		return nil, err
	}
	n.segment = ""
	return &Tree{root: n}, nil
}

// MustNew is like New but panics on an invalid declaration.
func MustNew(root Route) *Tree {
	t, err := New(root)
	if err != nil {
		panic(err)
	}
	return t
}

func build(r Route) (*node, error) {
	n := &node{
		segment: r.Segment,
		method:  r.Method,
		handler: r.Handler,
	}
	for _, child := range r.Children {
		if strings.Contains(child.Segment, "/") {
			return nil, fmt.Errorf("router: segment %q contains '/'", child.Segment)
		}
		if _, dup := n.children[child.Segment]; dup {
			continue
		}
		c, err := build(child)
		if err != nil {
			return nil, err
		}
		if n.children == nil {
			n.children = make(map[string]*node, len(r.Children))
		}
		n.children[child.Segment] = c
	}
	return n, nil
}

// Wrap returns a copy of the tree with every bound handler replaced by
// wrap(handler). Handler-less nodes stay unbound and t is left unchanged.
func (t *Tree) Wrap(wrap func(http.HandlerFunc) http.HandlerFunc) *Tree {
	if t == nil || t.root == nil {
		return t
	}
	return &Tree{root: t.root.wrap(wrap)}
}

func (n *node) wrap(wrap func(http.HandlerFunc) http.HandlerFunc) *node {
	c := &node{segment: n.segment, method: n.method, handler: n.handler}
	if c.handler != nil {
		c.handler = wrap(c.handler)
	}
	if len(n.children) > 0 {
		c.children = make(map[string]*node, len(n.children))
		for seg, child := range n.children {
			c.children[seg] = child.wrap(wrap)
		}
	}
	return c
}

// Find returns the handler bound to path for method. "/" and "" resolve to
// the root; any other path is split on '/' after its leading slash and
// every segment must match a child exactly.
func (t *Tree) Find(method http.Method, path string) (http.HandlerFunc, bool) {
	if t == nil || t.root == nil {
		return nil, false
	}

	n := t.root
	if path != "" && path != "/" {
		rest := strings.TrimPrefix(path, "/")
		for {
			seg, tail, more := strings.Cut(rest, "/")
			child, ok := n.children[seg]
			if !ok {
				return nil, false
			}
			n = child
			if !more {
				break
			}
			rest = tail
		}
	}

	if n.handler == nil || n.method != method {
		return nil, false
	}
	return n.handler, true
}

// Routes lists every bound route as "METHOD /path", sorted by path.
func (t *Tree) Routes() []string {
	if t == nil || t.root == nil {
		return nil
	}
	var out []string
	var walk func(n *node, prefix string)
	walk = func(n *node, prefix string) {
		path := prefix
		if path == "" {
			path = "/"
		}
		if n.handler != nil {
			out = append(out, n.method.String()+" "+path)
		}
		for seg, child := range n.children {
			walk(child, prefix+"/"+seg)
		}
	}
	walk(t.root, "")
	sort.Slice(out, func(i, j int) bool {
		return routePath(out[i]) < routePath(out[j])
	})
	return out
}

func routePath(route string) string {
	_, path, _ := strings.Cut(route, " ")
	return path
}
