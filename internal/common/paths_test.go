package common

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNormalizePath(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name  string
		input string
		want  string
	}{
		// Empty and root
		{"empty", "", "/"},
		{"root", "/", "/"},
		{"double_root", "//", "/"},
		{"dot", ".", "/"},

		// Simple paths
		{"simple", "foo", "/foo"},
		{"leading_slash", "/foo", "/foo"},
		{"trailing_slash", "/foo/", "/foo"},

		// Nested paths
		{"two_parts", "/foo/bar", "/foo/bar"},
		{"two_parts_trailing_slash", "/foo/bar/", "/foo/bar"},
		{"three_parts", "/foo/bar/baz", "/foo/bar/baz"},

		// Multiple slashes
		{"double_slash", "/foo//bar", "/foo/bar"},
		{"many_slashes", "///foo///bar///", "/foo/bar"},

		// Dots collapse
		{"dot_middle", "/foo/./bar", "/foo/bar"},
		{"dotdot_middle", "/foo/../bar", "/bar"},
		{"dotdot_suffix", "/foo/..", "/"},

		// Whitespace
		{"surrounding_space", "  /foo  ", "/foo"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			got := NormalizePath(tt.input)
			assert.Equal(t, tt.want, got, "NormalizePath(%q)", tt.input)
		})
	}
}

func TestSplitPath(t *testing.T) {
	t.Parallel()

	assert.Nil(t, SplitPath("/"))
	assert.Equal(t, []string{"foo"}, SplitPath("/foo"))
	assert.Equal(t, []string{"foo", "bar"}, SplitPath("/foo/bar"))
	assert.Equal(t, []string{"foo", "bar"}, SplitPath("foo/bar/"))
}

func TestJoinPath(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "/home", JoinPath("/", "home"))
	assert.Equal(t, "/home", JoinPath("", "home"))
	assert.Equal(t, "/home/sub", JoinPath("/home", "sub"))
}

func TestParentPath(t *testing.T) {
	t.Parallel()

	_, ok := ParentPath("/")
	assert.False(t, ok, "root has no parent")

	parent, ok := ParentPath("/foo")
	assert.True(t, ok)
	assert.Equal(t, "/", parent)

	parent, ok = ParentPath("/foo/bar")
	assert.True(t, ok)
	assert.Equal(t, "/foo", parent)
}

func TestBaseName(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "", BaseName("/"))
	assert.Equal(t, "foo", BaseName("/foo"))
	assert.Equal(t, "bar", BaseName("/foo/bar"))
}

func TestPathKey(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "/foo/bar", PathKey("/Foo/BAR"))
	assert.Equal(t, PathKey("/Shared"), PathKey("/shared"), "keys are case-folded")
	assert.Equal(t, "/", PathKey(""))
}
