// Package vfs implements the virtual directory tree clients navigate.
//
// A Tree is an arena of nodes addressed by NodeID. Parent links are plain
// indices, so walking up for pwd or ".." never involves ownership. The shape
// is fixed once built; sessions keep their own NodeID as working directory.
package vfs

import (
	"strings"
	"sync"
	"unicode"
)

// NodeID addresses a node inside one Tree.
type NodeID int

const (
	// Root is the ID of the root directory in every Tree.
	Root NodeID = 0

	// NoNode is the parent of the root.
	NoNode NodeID = -1
)

// Kind distinguishes directories from files.
type Kind uint8

const (
	KindDir Kind = iota
	KindFile
)

func (k Kind) String() string {
	if k == KindFile {
		return "file"
	}
	return "dir"
}

// Node is a read-only view of one tree entry.
type Node struct {
	ID       NodeID
	Name     string
	Kind     Kind
	Parent   NodeID
	Children []NodeID // definition order; nil for files
}

// IsDir reports whether the node is a directory.
func (n Node) IsDir() bool { return n.Kind == KindDir }

type node struct {
	name     string
	kind     Kind
	parent   NodeID
	children []NodeID
}

// Tree is an immutable directory hierarchy safe for concurrent readers.
type Tree struct {
	mu    sync.RWMutex
	nodes []node
}

// Len returns the number of nodes including the root.
func (t *Tree) Len() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return len(t.nodes)
}

// Node returns a copy of the node with the given ID.
func (t *Tree) Node(id NodeID) (Node, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()

	if !t.valid(id) {
		return Node{}, false
	}
	n := t.nodes[id]
	return Node{
		ID:       id,
		Name:     n.name,
		Kind:     n.kind,
		Parent:   n.parent,
		Children: append([]NodeID(nil), n.children...),
	}, true
}

// Pwd renders the absolute path of id: "/" for the root, else "/a/b".
func (t *Tree) Pwd(id NodeID) string {
	t.mu.RLock()
	defer t.mu.RUnlock()

	if !t.valid(id) || id == Root {
		return "/"
	}

	var parts []string
	for cur := id; cur != Root && cur != NoNode; cur = t.nodes[cur].parent {
		parts = append(parts, t.nodes[cur].name)
	}
	var b strings.Builder
	for i := len(parts) - 1; i >= 0; i-- {
		b.WriteByte('/')
		b.WriteString(parts[i])
	}
	return b.String()
}

// Ls lists child names in definition order. Files list as empty.
func (t *Tree) Ls(id NodeID) []string {
	t.mu.RLock()
	defer t.mu.RUnlock()

	names := []string{}
	if !t.valid(id) {
		return names
	}
	for _, c := range t.nodes[id].children {
		names = append(names, t.nodes[c].name)
	}
	return names
}

// Cd moves one step from id. ".." goes to the parent and fails at the root;
// any other name must match a directory child exactly.
func (t *Tree) Cd(id NodeID, name string) (NodeID, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()

	next, err := t.step(id, name)
	if err != nil {
		return id, false
	}
	return next, true
}

// Lookup finds a child of any kind by exact name.
func (t *Tree) Lookup(id NodeID, name string) (NodeID, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()

	c := t.child(id, name)
	return c, c != NoNode
}

// Resolve walks a "/"-separated path from id. Absolute paths start at the
// root; empty and "." components are skipped.
func (t *Tree) Resolve(id NodeID, path string) (NodeID, error) {
	t.mu.RLock()
	defer t.mu.RUnlock()

	if !t.valid(id) {
		return id, &PathError{Path: path, Component: path, Err: ErrNotExist}
	}

	cur := id
	if strings.HasPrefix(path, "/") {
		cur = Root
	}
	for _, comp := range strings.Split(path, "/") {
		if comp == "" || comp == "." {
			continue
		}
		next, err := t.step(cur, comp)
		if err != nil {
			return id, &PathError{Path: path, Component: comp, Err: err}
		}
		cur = next
	}
	return cur, nil
}

// TabComplete returns children of id whose names start with prefix, in
// definition order. The result is never nil.
func (t *Tree) TabComplete(id NodeID, prefix string) []string {
	t.mu.RLock()
	defer t.mu.RUnlock()

	out := []string{}
	if !t.valid(id) {
		return out
	}
	for _, c := range t.nodes[id].children {
		if name := t.nodes[c].name; strings.HasPrefix(name, prefix) {
			out = append(out, name)
		}
	}
	return out
}

// TabCompleteArg completes the last whitespace-delimited token of line.
// A line that is empty or ends in whitespace completes the empty prefix.
func (t *Tree) TabCompleteArg(id NodeID, line string) []string {
	return t.TabComplete(id, LastToken(line))
}

// LastToken returns the token being typed at the end of line.
func LastToken(line string) string {
	if line == "" || strings.TrimRightFunc(line, unicode.IsSpace) != line {
		return ""
	}
	fields := strings.Fields(line)
	return fields[len(fields)-1]
}

func (t *Tree) valid(id NodeID) bool {
	return id >= 0 && int(id) < len(t.nodes)
}

// step is Cd with a typed error. Callers hold the read lock.
func (t *Tree) step(id NodeID, name string) (NodeID, error) {
	if !t.valid(id) {
		return id, ErrNotExist
	}
	if name == ".." {
		if p := t.nodes[id].parent; p != NoNode {
			return p, nil
		}
		return id, ErrAtRoot
	}
	c := t.child(id, name)
	switch {
	case c == NoNode:
		return id, ErrNotExist
	case t.nodes[c].kind != KindDir:
		return id, ErrNotDir
	}
	return c, nil
}

func (t *Tree) child(id NodeID, name string) NodeID {
	if !t.valid(id) {
		return NoNode
	}
	for _, c := range t.nodes[id].children {
		if t.nodes[c].name == name {
			return c
		}
	}
	return NoNode
}
