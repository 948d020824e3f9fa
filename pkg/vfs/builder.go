package vfs

import (
	"fmt"
	"strings"
)

// Builder assembles a Tree. The root directory exists from the start.
type Builder struct {
	nodes []node
}

// NewBuilder returns a Builder holding only the root.
func NewBuilder() *Builder {
	return &Builder{nodes: []node{{name: "", kind: KindDir, parent: NoNode}}}
}

// AddDir adds a directory under parent.
func (b *Builder) AddDir(parent NodeID, name string) (NodeID, error) {
	return b.add(parent, name, KindDir)
}

// AddFile adds a file under parent.
func (b *Builder) AddFile(parent NodeID, name string) (NodeID, error) {
	return b.add(parent, name, KindFile)
}

func (b *Builder) add(parent NodeID, name string, kind Kind) (NodeID, error) {
	if err := ValidateName(name); err != nil {
		return NoNode, err
	}
	if parent < 0 || int(parent) >= len(b.nodes) || b.nodes[parent].kind != KindDir {
		return NoNode, fmt.Errorf("%w: %d", ErrInvalidParent, parent)
	}
	for _, c := range b.nodes[parent].children {
		if b.nodes[c].name == name {
			return NoNode, fmt.Errorf("%w: %q", ErrDuplicateName, name)
		}
	}

	id := NodeID(len(b.nodes))
	b.nodes = append(b.nodes, node{name: name, kind: kind, parent: parent})
	b.nodes[parent].children = append(b.nodes[parent].children, id)
	return id, nil
}

// Build freezes the current shape into a Tree. The Builder may keep being
// used; later additions do not affect trees already built.
func (b *Builder) Build() *Tree {
	nodes := make([]node, len(b.nodes))
	for i, n := range b.nodes {
		n.children = append([]NodeID(nil), n.children...)
		nodes[i] = n
	}
	return &Tree{nodes: nodes}
}

// ValidateName checks a single node name.
func ValidateName(name string) error {
	if name == "" || name == "." || name == ".." || strings.Contains(name, "/") {
		return fmt.Errorf("%w: %q", ErrInvalidName, name)
	}
	return nil
}
