package vfs

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Spec describes a tree in configuration files:
//
//	type: dir
//	children:
//	  - name: dir1
//	    type: dir
//	    children:
//	      - name: file1.txt
//	        type: file
//
// The top-level entry is the root; its name is ignored.
type Spec struct {
	Name     string `yaml:"name,omitempty" json:"name,omitempty"`
	Type     string `yaml:"type" json:"type" jsonschema:"enum=dir,enum=file"`
	Children []Spec `yaml:"children,omitempty" json:"children,omitempty"`
}

// DefaultSpec is the tree served when no tree file is configured.
func DefaultSpec() Spec {
	file := func(name string) Spec { return Spec{Name: name, Type: "file"} }
	return Spec{
		Type: "dir",
		Children: []Spec{
			{Name: "dir1", Type: "dir", Children: []Spec{file("file1.txt"), file("file2.txt")}},
			{Name: "dir2", Type: "dir", Children: []Spec{file("file3.txt")}},
			{Name: "dir3", Type: "dir", Children: []Spec{file("file4.txt")}},
		},
	}
}

// LoadSpec reads a YAML tree spec from path.
func LoadSpec(path string) (Spec, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Spec{}, fmt.Errorf("read tree spec: %w", err)
	}
	return ParseSpec(data)
}

// ParseSpec decodes a YAML tree spec.
func ParseSpec(data []byte) (Spec, error) {
	var s Spec
	if err := yaml.Unmarshal(data, &s); err != nil {
		return Spec{}, fmt.Errorf("parse tree spec: %w", err)
	}
	if s.Type == "" {
		s.Type = "dir"
	}
	return s, nil
}

// Build turns the spec into a Tree.
func (s Spec) Build() (*Tree, error) {
	if s.Type != "dir" {
		return nil, fmt.Errorf("tree root must be a dir, got %q", s.Type)
	}
	b := NewBuilder()
	if err := addChildren(b, Root, s.Children, "/"); err != nil {
		return nil, err
	}
	return b.Build(), nil
}

func addChildren(b *Builder, parent NodeID, children []Spec, at string) error {
	for _, c := range children {
		var (
			id  NodeID
			err error
		)
		switch c.Type {
		case "dir", "":
			id, err = b.AddDir(parent, c.Name)
		case "file":
			if len(c.Children) > 0 {
				return fmt.Errorf("tree spec %s%s: file cannot have children", at, c.Name)
			}
			id, err = b.AddFile(parent, c.Name)
		default:
			return fmt.Errorf("tree spec %s%s: unknown type %q", at, c.Name, c.Type)
		}
		if err != nil {
			return fmt.Errorf("tree spec %s: %w", at, err)
		}
		if err := addChildren(b, id, c.Children, at+c.Name+"/"); err != nil {
			return err
		}
	}
	return nil
}

// Load builds the tree described at path, or the default tree when path is
// empty.
func Load(path string) (*Tree, error) {
	spec := DefaultSpec()
	if path != "" {
		var err error
		if spec, err = LoadSpec(path); err != nil {
			return nil, err
		}
	}
	return spec.Build()
}
