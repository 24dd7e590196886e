package sandbox

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestResolve(t *testing.T) {
	root, err := New("/sandbox")
	require.NoError(t, err)

	tests := []struct {
		name    string
		rel     string
		want    string
		wantErr bool
	}{
		{name: "empty is root", rel: "", want: "/sandbox"},
		{name: "dot is root", rel: ".", want: "/sandbox"},
		{name: "plain file", rel: "a.txt", want: "/sandbox/a.txt"},
		{name: "nested", rel: "docs/notes/a.txt", want: "/sandbox/docs/notes/a.txt"},
		{name: "repeated separators", rel: "docs//notes///a.txt", want: "/sandbox/docs/notes/a.txt"},
		{name: "inner dotdot stays inside", rel: "docs/../a.txt", want: "/sandbox/a.txt"},
		{name: "leading slash is relative", rel: "/etc/passwd", want: "/sandbox/etc/passwd"},
		{name: "dotfile", rel: ".env", want: "/sandbox/.env"},
		{name: "climb to root", rel: "docs/..", want: "/sandbox"},
		{name: "escape", rel: "../../etc/passwd", wantErr: true},
		{name: "escape to parent", rel: "..", wantErr: true},
		{name: "sibling directory", rel: "../sandbox-evil/secret.txt", wantErr: true},
		{name: "deep escape", rel: "a/b/../../../sandbox-evil", wantErr: true},
		{name: "nul byte", rel: "a\x00b", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := root.Resolve(tt.rel)
			if tt.wantErr {
				require.ErrorIs(t, err, ErrAccessDenied)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, filepath.FromSlash(tt.want), got)
		})
	}
}

func TestContains_SegmentBoundary(t *testing.T) {
	root, err := New("/sandbox")
	require.NoError(t, err)

	assert.True(t, root.Contains("/sandbox"))
	assert.True(t, root.Contains("/sandbox/"))
	assert.True(t, root.Contains("/sandbox/x"))
	assert.False(t, root.Contains("/sandbox-evil"))
	assert.False(t, root.Contains("/sandbox-evil/secret.txt"))
	assert.False(t, root.Contains("/sandboxed"))
	assert.False(t, root.Contains("/"))
}

func TestNew_RelativeRootIsMadeAbsolute(t *testing.T) {
	root, err := New("some/dir/../data")
	require.NoError(t, err)
	assert.True(t, filepath.IsAbs(root.Path()))
	assert.Equal(t, "data", filepath.Base(root.Path()))

	_, err = New("")
	assert.Error(t, err)
}

func TestRel(t *testing.T) {
	root, err := New("/sandbox")
	require.NoError(t, err)

	rel, err := root.Rel("/sandbox")
	require.NoError(t, err)
	assert.Equal(t, "", rel)

	rel, err = root.Rel("/sandbox/docs/a.txt")
	require.NoError(t, err)
	assert.Equal(t, "docs/a.txt", rel)

	_, err = root.Rel("/elsewhere")
	assert.ErrorIs(t, err, ErrAccessDenied)
}

func TestIsRoot(t *testing.T) {
	root, err := New("/sandbox")
	require.NoError(t, err)

	assert.True(t, root.IsRoot("/sandbox/"))
	assert.True(t, root.IsRoot("/sandbox/docs/.."))
	assert.False(t, root.IsRoot("/sandbox/docs"))
}

func FuzzResolveStaysInside(f *testing.F) {
	for _, seed := range []string{"", "..", "../x", "a/../../b", "/etc/passwd", "./../sandbox-evil", "a//b/./c"} {
		f.Add(seed)
	}
	root, err := New("/sandbox")
	if err != nil {
		f.Fatal(err)
	}
	f.Fuzz(func(t *testing.T, rel string) {
		got, err := root.Resolve(rel)
		if err != nil {
			return
		}
		if !root.Contains(got) {
			t.Fatalf("Resolve(%q) = %q escapes root", rel, got)
		}
	})
}

func TestWithin(t *testing.T) {
	assert.True(t, Within("/a/b", "/a/b"))
	assert.True(t, Within("/a/b", "/a/b/c/../d"))
	assert.False(t, Within("/a/b", "/a/bc"))
	assert.False(t, Within("/a/b", "/a"))
}
