package vfs

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func exampleTree(t *testing.T) *Tree {
	t.Helper()
	tree, err := DefaultSpec().Build()
	require.NoError(t, err)
	return tree
}

func mustCd(t *testing.T, tree *Tree, from NodeID, name string) NodeID {
	t.Helper()
	id, ok := tree.Cd(from, name)
	require.True(t, ok, "cd %s", name)
	return id
}

// ============================================================================
// Navigation
// ============================================================================

func TestPwd(t *testing.T) {
	tree := exampleTree(t)

	assert.Equal(t, "/", tree.Pwd(Root))

	dir1 := mustCd(t, tree, Root, "dir1")
	assert.Equal(t, "/dir1", tree.Pwd(dir1))

	file, ok := tree.Lookup(dir1, "file2.txt")
	require.True(t, ok)
	assert.Equal(t, "/dir1/file2.txt", tree.Pwd(file))

	assert.Equal(t, "/", tree.Pwd(NodeID(999)))
}

func TestLs(t *testing.T) {
	tree := exampleTree(t)

	assert.Equal(t, []string{"dir1", "dir2", "dir3"}, tree.Ls(Root))
	assert.Equal(t, []string{"file1.txt", "file2.txt"}, tree.Ls(mustCd(t, tree, Root, "dir1")))

	file, ok := tree.Lookup(mustCd(t, tree, Root, "dir3"), "file4.txt")
	require.True(t, ok)
	assert.Equal(t, []string{}, tree.Ls(file))
	assert.NotNil(t, tree.Ls(NodeID(-5)))
}

func TestCd(t *testing.T) {
	tree := exampleTree(t)

	t.Run("IntoDirAndBack", func(t *testing.T) {
		dir1 := mustCd(t, tree, Root, "dir1")
		back := mustCd(t, tree, dir1, "..")
		assert.Equal(t, Root, back)
		assert.Equal(t, "/", tree.Pwd(back))
	})

	t.Run("ParentOfRoot", func(t *testing.T) {
		id, ok := tree.Cd(Root, "..")
		assert.False(t, ok)
		assert.Equal(t, Root, id)
	})

	t.Run("Missing", func(t *testing.T) {
		_, ok := tree.Cd(Root, "nofile")
		assert.False(t, ok)
	})

	t.Run("FileIsNotTarget", func(t *testing.T) {
		dir1 := mustCd(t, tree, Root, "dir1")
		_, ok := tree.Cd(dir1, "file1.txt")
		assert.False(t, ok)
	})

	t.Run("CaseSensitive", func(t *testing.T) {
		_, ok := tree.Cd(Root, "DIR1")
		assert.False(t, ok)
	})
}

func TestResolve(t *testing.T) {
	tree := exampleTree(t)
	dir1 := mustCd(t, tree, Root, "dir1")

	tests := []struct {
		name string
		from NodeID
		path string
		want string
		err  error
	}{
		{"Relative", Root, "dir2", "/dir2", nil},
		{"Absolute", dir1, "/dir3", "/dir3", nil},
		{"RootOnly", dir1, "/", "/", nil},
		{"Parent", dir1, "..", "/", nil},
		{"Sibling", dir1, "../dir2", "/dir2", nil},
		{"DotsAndSlashes", Root, "./dir1//", "/dir1", nil},
		{"AboveRoot", dir1, "../..", "", ErrAtRoot},
		{"Missing", Root, "dir1/nope", "", ErrNotExist},
		{"ThroughFile", Root, "dir1/file1.txt", "", ErrNotDir},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := tree.Resolve(tt.from, tt.path)
			if tt.err != nil {
				require.ErrorIs(t, err, tt.err)
				assert.Equal(t, tt.from, got)

				var pe *PathError
				require.ErrorAs(t, err, &pe)
				assert.Equal(t, tt.path, pe.Path)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, tree.Pwd(got))
		})
	}
}

// ============================================================================
// Tab Completion
// ============================================================================

func TestTabComplete(t *testing.T) {
	tree := exampleTree(t)

	assert.Equal(t, []string{"dir1", "dir2", "dir3"}, tree.TabComplete(Root, "di"))
	assert.Equal(t, []string{"dir2"}, tree.TabComplete(Root, "dir2"))
	assert.Equal(t, []string{"dir1", "dir2", "dir3"}, tree.TabComplete(Root, ""))

	none := tree.TabComplete(Root, "file")
	assert.NotNil(t, none)
	assert.Empty(t, none)

	dir1 := mustCd(t, tree, Root, "dir1")
	assert.Equal(t, []string{"file1.txt", "file2.txt"}, tree.TabComplete(dir1, "file"))
}

func TestTabCompleteArg(t *testing.T) {
	tree := exampleTree(t)

	tests := []struct {
		line string
		want []string
	}{
		{"", []string{"dir1", "dir2", "dir3"}},
		{"cd ", []string{"dir1", "dir2", "dir3"}},
		{"cd di", []string{"dir1", "dir2", "dir3"}},
		{"cd   dir3", []string{"dir3"}},
		{"ls\tdir", []string{"dir1", "dir2", "dir3"}},
		{"cd x", []string{}},
		{"d", []string{"dir1", "dir2", "dir3"}},
	}

	for _, tt := range tests {
		t.Run(tt.line, func(t *testing.T) {
			assert.Equal(t, tt.want, tree.TabCompleteArg(Root, tt.line))
		})
	}
}

func TestLastToken(t *testing.T) {
	assert.Equal(t, "", LastToken(""))
	assert.Equal(t, "", LastToken("cd "))
	assert.Equal(t, "", LastToken("   "))
	assert.Equal(t, "di", LastToken("cd di"))
	assert.Equal(t, "cd", LastToken("cd"))
}

// ============================================================================
// Concurrency
// ============================================================================

func TestConcurrentNavigationIsIndependent(t *testing.T) {
	tree := exampleTree(t)

	var wg sync.WaitGroup
	for _, dir := range []string{"dir1", "dir2", "dir3"} {
		wg.Add(1)
		go func(dir string) {
			defer wg.Done()
			cwd := Root
			for i := 0; i < 500; i++ {
				next, ok := tree.Cd(cwd, dir)
				if !assert.True(t, ok) {
					return
				}
				cwd = next
				assert.Equal(t, "/"+dir, tree.Pwd(cwd))
				cwd, _ = tree.Cd(cwd, "..")
				assert.Equal(t, "/", tree.Pwd(cwd))
			}
		}(dir)
	}
	wg.Wait()
}
