package vfs

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBuilder(t *testing.T) {
	b := NewBuilder()
	etc, err := b.AddDir(Root, "etc")
	require.NoError(t, err)
	hosts, err := b.AddFile(etc, "hosts")
	require.NoError(t, err)

	t.Run("RejectsBadNames", func(t *testing.T) {
		for _, name := range []string{"", ".", "..", "a/b", "/"} {
			_, err := b.AddDir(Root, name)
			assert.ErrorIs(t, err, ErrInvalidName, name)
		}
	})

	t.Run("RejectsDuplicates", func(t *testing.T) {
		_, err := b.AddFile(Root, "etc")
		assert.ErrorIs(t, err, ErrDuplicateName)
	})

	t.Run("RejectsFileParent", func(t *testing.T) {
		_, err := b.AddFile(hosts, "nested")
		assert.ErrorIs(t, err, ErrInvalidParent)
	})

	t.Run("RejectsUnknownParent", func(t *testing.T) {
		_, err := b.AddDir(NodeID(42), "x")
		assert.ErrorIs(t, err, ErrInvalidParent)
	})

	t.Run("SameNameDifferentParents", func(t *testing.T) {
		_, err := b.AddDir(etc, "etc")
		assert.NoError(t, err)
	})

	tree := b.Build()
	assert.Equal(t, 4, tree.Len())

	n, ok := tree.Node(hosts)
	require.True(t, ok)
	assert.Equal(t, "hosts", n.Name)
	assert.Equal(t, KindFile, n.Kind)
	assert.Equal(t, etc, n.Parent)
	assert.False(t, n.IsDir())
	assert.Empty(t, n.Children)

	root, ok := tree.Node(Root)
	require.True(t, ok)
	assert.Equal(t, NoNode, root.Parent)

	_, ok = tree.Node(NodeID(100))
	assert.False(t, ok)

	t.Run("BuiltTreeIsDetached", func(t *testing.T) {
		_, err := b.AddDir(Root, "later")
		require.NoError(t, err)
		assert.Equal(t, []string{"etc"}, tree.Ls(Root))
	})
}

func TestKindString(t *testing.T) {
	assert.Equal(t, "dir", KindDir.String())
	assert.Equal(t, "file", KindFile.String())
}
