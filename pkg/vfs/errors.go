package vfs

import "errors"

var (
	// ErrNotExist is returned when a path component names no child.
	ErrNotExist = errors.New("no such directory")

	// ErrNotDir is returned when a path component names a file.
	ErrNotDir = errors.New("not a directory")

	// ErrAtRoot is returned for ".." at the root.
	ErrAtRoot = errors.New("already at root")

	// ErrInvalidName rejects empty, ".", ".." and "/"-containing names.
	ErrInvalidName = errors.New("invalid node name")

	// ErrDuplicateName rejects a second child with the same name.
	ErrDuplicateName = errors.New("duplicate node name")

	// ErrInvalidParent rejects additions under a file or an unknown node.
	ErrInvalidParent = errors.New("invalid parent node")
)

// PathError records the component that stopped a Resolve.
type PathError struct {
	Path      string // full path as given
	Component string // component that failed
	Err       error
}

func (e *PathError) Error() string {
	return e.Component + ": " + e.Err.Error()
}

func (e *PathError) Unwrap() error { return e.Err }
